package services

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/quantumlife-hq/horizon-backend/internal/apierr"
	"github.com/quantumlife-hq/horizon-backend/internal/types"
)

func seedDrift(repo *fakeDriftRepo, domain types.Domain, confidence, magnitude int, baseline, recent float64, now time.Time) *types.DriftEvent {
	ev := &types.DriftEvent{
		ID:              uuid.New(),
		TenantID:        testTenantID,
		UserID:          testUserID,
		Domain:          domain,
		DriftType:       types.DriftGradual,
		Magnitude:       magnitude,
		Confidence:      confidence,
		BaselineValue:   baseline,
		RecentValue:     recent,
		EvidenceSummary: "seeded",
		CreatedAt:       now.AddDate(0, 0, -2),
	}
	repo.events = append(repo.events, ev)
	return ev
}

func newSignalFixture() (*fakeDriftRepo, *fakeSignalRepo, *fakeGate, *fakeEmitter, SignalService) {
	driftRepo := &fakeDriftRepo{}
	signalRepo := &fakeSignalRepo{}
	gate := &fakeGate{}
	emitter := &fakeEmitter{}
	svc := NewSignalService(nil, testLogger(), gate, driftRepo, signalRepo, emitter)
	return driftRepo, signalRepo, gate, emitter, svc
}

func TestEvaluateEmitsHealthDriftSignal(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	driftRepo, _, _, emitter, svc := newSignalFixture()
	seedDrift(driftRepo, types.DomainSleep, 60, 60, 7.5, 5.8, now)

	signals, err := svc.Evaluate(testContext(), SignalOptions{Now: now})
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if len(signals) != 1 {
		t.Fatalf("Evaluate returned %d signals, want 1", len(signals))
	}
	sig := signals[0]
	if sig.SignalType != types.SignalHealthDrift {
		t.Fatalf("SignalType=%s, want %s", sig.SignalType, types.SignalHealthDrift)
	}
	if sig.Confidence != 60 {
		t.Fatalf("Confidence=%d, want 60", sig.Confidence)
	}
	if sig.EvidenceCount != 1 || len(sig.Evidence) != 1 {
		t.Fatalf("EvidenceCount=%d len(Evidence)=%d, want 1/1", sig.EvidenceCount, len(sig.Evidence))
	}
	if sig.UserImpact != types.ImpactHigh {
		t.Fatalf("UserImpact=%s, want %s", sig.UserImpact, types.ImpactHigh)
	}
	if sig.SuggestedAction != types.ActionCheckIn {
		t.Fatalf("SuggestedAction=%s, want %s", sig.SuggestedAction, types.ActionCheckIn)
	}
	if !sig.ExpiresAt.Equal(now.AddDate(0, 0, 14)) {
		t.Fatalf("ExpiresAt=%s, want %s", sig.ExpiresAt, now.AddDate(0, 0, 14))
	}
	if got := emitter.byType("signal.emitted"); len(got) != 1 {
		t.Fatalf("emitted %d signal.emitted events, want 1", len(got))
	}
}

func TestEvaluateCombinesEvidence(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	driftRepo, _, _, _, svc := newSignalFixture()
	seedDrift(driftRepo, types.DomainSleep, 60, 40, 7.5, 6.0, now)
	seedDrift(driftRepo, types.DomainHealth, 70, 40, 60.0, 72.0, now)

	signals, err := svc.Evaluate(testContext(), SignalOptions{Now: now})
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if len(signals) != 1 {
		t.Fatalf("Evaluate returned %d signals, want 1", len(signals))
	}
	sig := signals[0]
	if sig.EvidenceCount != 2 {
		t.Fatalf("EvidenceCount=%d, want 2", sig.EvidenceCount)
	}
	// Weighted mean of 60 and 70 (weights 54 and 63) plus the corroboration
	// bonus for the second evidence item.
	if sig.Confidence != 68 {
		t.Fatalf("Confidence=%d, want 68", sig.Confidence)
	}
}

func TestEvaluateRespectsConfidenceFloor(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	driftRepo, signalRepo, _, _, svc := newSignalFixture()
	// Below the health floor of 50.
	seedDrift(driftRepo, types.DomainSleep, 45, 30, 7.5, 6.8, now)

	signals, err := svc.Evaluate(testContext(), SignalOptions{Now: now})
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if len(signals) != 0 || len(signalRepo.signals) != 0 {
		t.Fatalf("low-confidence candidate was emitted: %d returned, %d stored", len(signals), len(signalRepo.signals))
	}
}

func TestEvaluateDeduplicatesActiveSignals(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	driftRepo, signalRepo, _, _, svc := newSignalFixture()
	seedDrift(driftRepo, types.DomainSleep, 80, 50, 7.5, 5.5, now)
	signalRepo.signals = append(signalRepo.signals, &types.Signal{
		ID:         uuid.New(),
		TenantID:   testTenantID,
		UserID:     testUserID,
		SignalType: types.SignalHealthDrift,
		Status:     types.SignalStatusActive,
		ExpiresAt:  now.AddDate(0, 0, 7),
	})

	signals, err := svc.Evaluate(testContext(), SignalOptions{Now: now})
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if len(signals) != 0 {
		t.Fatalf("Evaluate returned %d signals, want 0 while one is active", len(signals))
	}
	if len(signalRepo.signals) != 1 {
		t.Fatalf("repo holds %d signals, want the original 1", len(signalRepo.signals))
	}
}

func TestEvaluateSuppressedByGate(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	driftRepo, signalRepo, gate, _, svc := newSignalFixture()
	gate.verdict = &GateVerdict{Allowed: false, BoundaryType: types.BoundaryConsentRequired, Topic: "health_insights"}
	seedDrift(driftRepo, types.DomainSleep, 80, 50, 7.5, 5.5, now)

	signals, err := svc.Evaluate(testContext(), SignalOptions{Now: now})
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if len(signals) != 0 || len(signalRepo.signals) != 0 {
		t.Fatal("gated candidate was emitted")
	}
}

func TestEvaluateIgnoresStableDrift(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	driftRepo, _, _, _, svc := newSignalFixture()
	ev := seedDrift(driftRepo, types.DomainSleep, 80, 0, 7.5, 7.5, now)
	ev.DriftType = types.DriftStable

	signals, err := svc.Evaluate(testContext(), SignalOptions{Now: now})
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if len(signals) != 0 {
		t.Fatalf("Evaluate returned %d signals from stable drift, want 0", len(signals))
	}
}

func TestEvaluateMapsImprovementToMomentum(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	driftRepo, _, _, _, svc := newSignalFixture()
	seedDrift(driftRepo, types.DomainGoal, 60, 30, 2.0, 4.0, now)

	signals, err := svc.Evaluate(testContext(), SignalOptions{Now: now})
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if len(signals) != 1 {
		t.Fatalf("Evaluate returned %d signals, want 1", len(signals))
	}
	if signals[0].SignalType != types.SignalPositiveMomentum {
		t.Fatalf("SignalType=%s, want %s", signals[0].SignalType, types.SignalPositiveMomentum)
	}
	if signals[0].SuggestedAction != types.ActionAwareness {
		t.Fatalf("SuggestedAction=%s, want %s", signals[0].SuggestedAction, types.ActionAwareness)
	}
}

func TestSignalTransitionGuardsState(t *testing.T) {
	_, signalRepo, _, _, svc := newSignalFixture()
	id := uuid.New()
	signalRepo.signals = append(signalRepo.signals, &types.Signal{
		ID: id, TenantID: testTenantID, UserID: testUserID,
		SignalType: types.SignalHealthDrift,
		Status:     types.SignalStatusActive,
	})

	sig, err := svc.Transition(testContext(), id, types.SignalStatusAcknowledged)
	if err != nil {
		t.Fatalf("Transition returned error: %v", err)
	}
	if sig.Status != types.SignalStatusAcknowledged {
		t.Fatalf("Status=%s, want %s", sig.Status, types.SignalStatusAcknowledged)
	}

	// Acknowledged is not allowed back to active.
	_, err = svc.Transition(testContext(), id, types.SignalStatusActive)
	apiErr, ok := apierr.AsError(err)
	if !ok || apiErr.Code != apierr.CodeInvalidStateTransition {
		t.Fatalf("Transition error=%v, want %s", err, apierr.CodeInvalidStateTransition)
	}
}
