package services

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/quantumlife-hq/horizon-backend/internal/apierr"
	"github.com/quantumlife-hq/horizon-backend/internal/types"
)

func seedActiveSignal(repo *fakeSignalRepo, signalType types.SignalType, confidence int, impact types.UserImpact, now time.Time) *types.Signal {
	sig := &types.Signal{
		ID:          uuid.New(),
		TenantID:    testTenantID,
		UserID:      testUserID,
		SignalType:  signalType,
		Confidence:  confidence,
		WindowStart: now.AddDate(0, 0, -14),
		WindowEnd:   now,
		UserImpact:  impact,
		Status:      types.SignalStatusActive,
		ExpiresAt:   now.AddDate(0, 0, 14),
		CreatedAt:   now,
	}
	repo.signals = append(repo.signals, sig)
	return sig
}

func seedPassedWindow(repo *fakeWindowRepo, domain types.Domain, signalType types.SignalType, now time.Time) {
	raw, _ := json.Marshal([]WindowDriver{{SignalID: uuid.New(), SignalType: signalType, Confidence: 60}})
	severity := 50
	repo.windows = append(repo.windows, &types.ForecastWindow{
		ID:          uuid.New(),
		TenantID:    testTenantID,
		UserID:      testUserID,
		WindowType:  types.WindowRisk,
		Domain:      domain,
		TimeHorizon: types.HorizonMid,
		StartTime:   now.AddDate(0, 0, -30),
		EndTime:     now.AddDate(0, 0, -20),
		Confidence:  50,
		Severity:    &severity,
		Drivers:     datatypes.JSON(raw),
		Status:      types.WindowStatusPassed,
	})
}

func newForecastFixture() (*fakeSignalRepo, *fakeWindowRepo, *fakeGate, *fakeEmitter, ForecastService) {
	signalRepo := &fakeSignalRepo{}
	windowRepo := &fakeWindowRepo{}
	gate := &fakeGate{}
	emitter := &fakeEmitter{}
	svc := NewForecastService(nil, testLogger(), gate, signalRepo, windowRepo, emitter)
	return signalRepo, windowRepo, gate, emitter, svc
}

func TestGenerateRiskWindowFromHealthSignal(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	signalRepo, _, _, emitter, svc := newForecastFixture()
	sig := seedActiveSignal(signalRepo, types.SignalHealthDrift, 60, types.ImpactHigh, now)

	windows, err := svc.Generate(testContext(), ForecastOptions{Now: now})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if len(windows) != 1 {
		t.Fatalf("Generate returned %d windows, want 1", len(windows))
	}
	w := windows[0]
	if w.WindowType != types.WindowRisk || w.Domain != types.DomainHealth {
		t.Fatalf("window %s/%s, want risk/health", w.WindowType, w.Domain)
	}
	if w.TimeHorizon != types.HorizonShort {
		t.Fatalf("TimeHorizon=%s, want %s", w.TimeHorizon, types.HorizonShort)
	}
	// High impact starts immediately, so the window opens active.
	if w.Status != types.WindowStatusActive {
		t.Fatalf("Status=%s, want %s", w.Status, types.WindowStatusActive)
	}
	if w.Severity == nil || *w.Severity != 70 || w.Leverage != nil {
		t.Fatalf("severity/leverage=%v/%v, want 70/nil", w.Severity, w.Leverage)
	}
	if w.RecommendedMode != types.ModeGentlePrep {
		t.Fatalf("RecommendedMode=%s, want %s", w.RecommendedMode, types.ModeGentlePrep)
	}
	// No precedent yet, so the signal confidence is discounted.
	if w.Confidence != 50 {
		t.Fatalf("Confidence=%d, want 50", w.Confidence)
	}
	var drivers []WindowDriver
	if err := json.Unmarshal(w.Drivers, &drivers); err != nil || len(drivers) != 1 || drivers[0].SignalID != sig.ID {
		t.Fatalf("drivers=%v err=%v, want one driver for signal %s", drivers, err, sig.ID)
	}
	if got := emitter.byType("forecast.window_opened"); len(got) != 1 {
		t.Fatalf("emitted %d forecast.window_opened events, want 1", len(got))
	}
}

func TestGenerateIsIdempotentWhileWindowOpen(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	signalRepo, windowRepo, _, _, svc := newForecastFixture()
	seedActiveSignal(signalRepo, types.SignalHealthDrift, 60, types.ImpactHigh, now)

	first, err := svc.Generate(testContext(), ForecastOptions{Now: now})
	if err != nil {
		t.Fatalf("first Generate returned error: %v", err)
	}
	second, err := svc.Generate(testContext(), ForecastOptions{Now: now})
	if err != nil {
		t.Fatalf("second Generate returned error: %v", err)
	}
	if len(first) != 1 || len(second) != 0 {
		t.Fatalf("generated %d then %d windows, want 1 then 0", len(first), len(second))
	}
	if len(windowRepo.windows) != 1 {
		t.Fatalf("repo holds %d windows, want 1", len(windowRepo.windows))
	}
}

func TestGenerateOpportunityWindow(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	signalRepo, _, _, _, svc := newForecastFixture()
	seedActiveSignal(signalRepo, types.SignalPositiveMomentum, 55, types.ImpactMedium, now)

	windows, err := svc.Generate(testContext(), ForecastOptions{Now: now})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if len(windows) != 1 {
		t.Fatalf("Generate returned %d windows, want 1", len(windows))
	}
	w := windows[0]
	if w.WindowType != types.WindowOpportunity {
		t.Fatalf("WindowType=%s, want %s", w.WindowType, types.WindowOpportunity)
	}
	if w.Leverage == nil || *w.Leverage != 50 || w.Severity != nil {
		t.Fatalf("leverage/severity=%v/%v, want 50/nil", w.Leverage, w.Severity)
	}
	if w.RecommendedMode != types.ModeAwareness {
		t.Fatalf("RecommendedMode=%s, want %s", w.RecommendedMode, types.ModeAwareness)
	}
	// Mid horizon starts three days out, so the window opens upcoming.
	if w.Status != types.WindowStatusUpcoming {
		t.Fatalf("Status=%s, want %s", w.Status, types.WindowStatusUpcoming)
	}
	if !w.StartTime.Equal(now.AddDate(0, 0, 3)) || !w.EndTime.Equal(now.AddDate(0, 0, 14)) {
		t.Fatalf("bounds=%s..%s, want +3d..+14d", w.StartTime, w.EndTime)
	}
}

func TestGeneratePrecedentBoostsConfidence(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	signalRepo, windowRepo, _, _, svc := newForecastFixture()
	seedActiveSignal(signalRepo, types.SignalHealthDrift, 60, types.ImpactHigh, now)
	seedPassedWindow(windowRepo, types.DomainHealth, types.SignalHealthDrift, now)
	seedPassedWindow(windowRepo, types.DomainHealth, types.SignalHealthDrift, now)

	windows, err := svc.Generate(testContext(), ForecastOptions{Now: now})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if len(windows) != 1 {
		t.Fatalf("Generate returned %d windows, want 1", len(windows))
	}
	if windows[0].Confidence != 70 {
		t.Fatalf("Confidence=%d, want 70 with two precedents", windows[0].Confidence)
	}
}

func TestGenerateHonorsHorizonFilter(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	signalRepo, windowRepo, _, _, svc := newForecastFixture()
	// High impact maps to the short horizon.
	seedActiveSignal(signalRepo, types.SignalHealthDrift, 60, types.ImpactHigh, now)

	windows, err := svc.Generate(testContext(), ForecastOptions{Now: now, Horizons: []types.TimeHorizon{types.HorizonMid}})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if len(windows) != 0 || len(windowRepo.windows) != 0 {
		t.Fatalf("mid-only generation produced %d windows, want 0", len(windows))
	}

	windows, err = svc.Generate(testContext(), ForecastOptions{Now: now, Horizons: []types.TimeHorizon{types.HorizonShort}})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if len(windows) != 1 {
		t.Fatalf("short-only generation produced %d windows, want 1", len(windows))
	}

	_, err = svc.Generate(testContext(), ForecastOptions{Now: now, Horizons: []types.TimeHorizon{"someday"}})
	apiErr, ok := apierr.AsError(err)
	if !ok || apiErr.Code != apierr.CodeInvalidInput {
		t.Fatalf("Generate error=%v, want %s", err, apierr.CodeInvalidInput)
	}
}

func TestInvalidateRecordsReason(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	signalRepo, _, _, emitter, svc := newForecastFixture()
	seedActiveSignal(signalRepo, types.SignalHealthDrift, 60, types.ImpactHigh, now)
	windows, err := svc.Generate(testContext(), ForecastOptions{Now: now})
	if err != nil || len(windows) != 1 {
		t.Fatalf("Generate windows=%d err=%v, want 1/nil", len(windows), err)
	}

	w, err := svc.Invalidate(testContext(), windows[0].ID, "check-in contradicts the projection")
	if err != nil {
		t.Fatalf("Invalidate returned error: %v", err)
	}
	if w.Status != types.WindowStatusInvalidated {
		t.Fatalf("Status=%s, want %s", w.Status, types.WindowStatusInvalidated)
	}
	if w.InvalidationReason != "check-in contradicts the projection" {
		t.Fatalf("InvalidationReason=%q, want the recorded reason", w.InvalidationReason)
	}
	if got := emitter.byType("forecast.window_invalidated"); len(got) != 1 {
		t.Fatalf("emitted %d forecast.window_invalidated events, want 1", len(got))
	}

	// Invalidated is terminal.
	_, err = svc.Invalidate(testContext(), w.ID, "again")
	apiErr, ok := apierr.AsError(err)
	if !ok || apiErr.Code != apierr.CodeInvalidStateTransition {
		t.Fatalf("Invalidate error=%v, want %s", err, apierr.CodeInvalidStateTransition)
	}
}

func TestGenerateSuppressedByGate(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	signalRepo, windowRepo, gate, _, svc := newForecastFixture()
	gate.verdict = &GateVerdict{Allowed: false, BoundaryType: types.BoundaryConsentRequired, Topic: "health_insights"}
	seedActiveSignal(signalRepo, types.SignalHealthDrift, 60, types.ImpactHigh, now)

	windows, err := svc.Generate(testContext(), ForecastOptions{Now: now})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if len(windows) != 0 || len(windowRepo.windows) != 0 {
		t.Fatal("gated window was created")
	}
}
