package types

import (
	"testing"
	"time"
)

func TestValidateWindow(t *testing.T) {
	now := time.Now().UTC()
	severity := 60
	leverage := 40

	cases := []struct {
		name    string
		window  *ForecastWindow
		wantErr bool
	}{
		{
			name: "valid_risk",
			window: &ForecastWindow{
				WindowType: WindowRisk, TimeHorizon: HorizonShort,
				StartTime: now, EndTime: now.Add(72 * time.Hour),
				Severity: &severity,
			},
		},
		{
			name: "valid_opportunity",
			window: &ForecastWindow{
				WindowType: WindowOpportunity, TimeHorizon: HorizonMid,
				StartTime: now, EndTime: now.Add(14 * 24 * time.Hour),
				Leverage: &leverage,
			},
		},
		{
			name: "risk_with_leverage_rejected",
			window: &ForecastWindow{
				WindowType: WindowRisk, TimeHorizon: HorizonShort,
				StartTime: now, EndTime: now.Add(time.Hour),
				Severity: &severity, Leverage: &leverage,
			},
			wantErr: true,
		},
		{
			name: "opportunity_without_leverage_rejected",
			window: &ForecastWindow{
				WindowType: WindowOpportunity, TimeHorizon: HorizonShort,
				StartTime: now, EndTime: now.Add(time.Hour),
			},
			wantErr: true,
		},
		{
			name: "end_before_start_rejected",
			window: &ForecastWindow{
				WindowType: WindowRisk, TimeHorizon: HorizonShort,
				StartTime: now, EndTime: now.Add(-time.Hour),
				Severity: &severity,
			},
			wantErr: true,
		},
		{
			name: "unknown_horizon_rejected",
			window: &ForecastWindow{
				WindowType: WindowRisk, TimeHorizon: TimeHorizon("forever"),
				StartTime: now, EndTime: now.Add(time.Hour),
				Severity: &severity,
			},
			wantErr: true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateWindow(tc.window)
			if (err != nil) != tc.wantErr {
				t.Fatalf("ValidateWindow error=%v, wantErr=%v", err, tc.wantErr)
			}
		})
	}
}

func TestConsentEffectiveStatus(t *testing.T) {
	now := time.Now().UTC()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	var missing *ConsentRecord
	if got := missing.EffectiveStatus(now); got != ConsentUnknown {
		t.Fatalf("nil record status=%s, want %s", got, ConsentUnknown)
	}

	granted := &ConsentRecord{Status: ConsentGranted, ExpiresAt: &future}
	if got := granted.EffectiveStatus(now); got != ConsentGranted {
		t.Fatalf("unexpired grant status=%s, want %s", got, ConsentGranted)
	}

	expired := &ConsentRecord{Status: ConsentGranted, ExpiresAt: &past}
	if got := expired.EffectiveStatus(now); got != ConsentExpired {
		t.Fatalf("expired grant status=%s, want %s", got, ConsentExpired)
	}
}
