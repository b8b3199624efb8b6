package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/quantumlife-hq/horizon-backend/internal/apierr"
	"github.com/quantumlife-hq/horizon-backend/internal/types"
)

func seedObservation(repo *fakeObservationRepo, domain types.Domain, key string, dayOffset int, value float64, now time.Time) {
	v := value
	repo.rows = append(repo.rows, &types.Observation{
		ID:           uuid.New(),
		TenantID:     testTenantID,
		UserID:       testUserID,
		Domain:       domain,
		Key:          key,
		NumericValue: &v,
		Source:       types.SourceBehavioral,
		Confidence:   90,
		RecordedAt:   now.AddDate(0, 0, dayOffset),
		CreatedAt:    now.AddDate(0, 0, dayOffset),
	})
}

func newDriftFixture() (*fakeObservationRepo, *fakeDriftRepo, DriftService) {
	obsRepo := &fakeObservationRepo{}
	driftRepo := &fakeDriftRepo{}
	svc := NewDriftService(nil, testLogger(), obsRepo, driftRepo)
	return obsRepo, driftRepo, svc
}

func TestDetectGradualSleepDecline(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	obsRepo, driftRepo, svc := newDriftFixture()

	// Three weeks of a steady 7.5h baseline, then a week sliding downward.
	for day := -27; day <= -8; day++ {
		seedObservation(obsRepo, types.DomainSleep, "sleep_hours", day, 7.5, now)
	}
	recent := []float64{6.1, 6.0, 5.9, 5.8, 5.7, 5.6}
	for i, v := range recent {
		seedObservation(obsRepo, types.DomainSleep, "sleep_hours", -6+i, v, now)
	}

	events, err := svc.Detect(testContext(), types.DomainSleep, DriftOptions{Now: now})
	if err != nil {
		t.Fatalf("Detect returned error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("Detect returned %d events, want 1", len(events))
	}
	ev := events[0]
	if ev.DriftType != types.DriftGradual {
		t.Fatalf("DriftType=%s, want %s", ev.DriftType, types.DriftGradual)
	}
	if ev.Magnitude < 40 {
		t.Fatalf("Magnitude=%d, want >= 40", ev.Magnitude)
	}
	if ev.Confidence < 50 {
		t.Fatalf("Confidence=%d, want >= 50", ev.Confidence)
	}
	if ev.BaselineValue <= ev.RecentValue {
		t.Fatalf("baseline %.2f should exceed recent %.2f", ev.BaselineValue, ev.RecentValue)
	}
	if len(driftRepo.events) != 1 {
		t.Fatalf("repo holds %d events, want 1", len(driftRepo.events))
	}
}

func TestDetectRepeatedRunEmitsOnce(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	obsRepo, driftRepo, svc := newDriftFixture()

	for day := -27; day <= -8; day++ {
		seedObservation(obsRepo, types.DomainSleep, "sleep_hours", day, 7.5, now)
	}
	for i, v := range []float64{6.1, 6.0, 5.9, 5.8, 5.7, 5.6} {
		seedObservation(obsRepo, types.DomainSleep, "sleep_hours", -6+i, v, now)
	}

	first, err := svc.Detect(testContext(), types.DomainSleep, DriftOptions{Now: now})
	if err != nil {
		t.Fatalf("first Detect returned error: %v", err)
	}
	second, err := svc.Detect(testContext(), types.DomainSleep, DriftOptions{Now: now})
	if err != nil {
		t.Fatalf("second Detect returned error: %v", err)
	}
	if len(first) != 1 || len(second) != 0 {
		t.Fatalf("detected %d then %d events, want 1 then 0", len(first), len(second))
	}
	if len(driftRepo.events) != 1 {
		t.Fatalf("after two identical Detect runs repo holds %d drift events, want 1", len(driftRepo.events))
	}

	// Acknowledging the event reopens detection for the metric.
	if _, err := svc.Acknowledge(testContext(), first[0].ID, "noted"); err != nil {
		t.Fatalf("Acknowledge returned error: %v", err)
	}
	third, err := svc.Detect(testContext(), types.DomainSleep, DriftOptions{Now: now})
	if err != nil {
		t.Fatalf("third Detect returned error: %v", err)
	}
	if len(third) != 1 {
		t.Fatalf("Detect after acknowledgment returned %d events, want 1", len(third))
	}
}

func TestDetectAbruptStepChange(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	obsRepo, _, svc := newDriftFixture()

	for day := -27; day <= -8; day++ {
		seedObservation(obsRepo, types.DomainSleep, "sleep_hours", day, 7.5, now)
	}
	// Flat, then a cliff mid-week.
	recent := []float64{7.5, 7.5, 7.5, 5.0, 5.0, 5.0}
	for i, v := range recent {
		seedObservation(obsRepo, types.DomainSleep, "sleep_hours", -6+i, v, now)
	}

	events, err := svc.Detect(testContext(), types.DomainSleep, DriftOptions{Now: now})
	if err != nil {
		t.Fatalf("Detect returned error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("Detect returned %d events, want 1", len(events))
	}
	if events[0].DriftType != types.DriftAbrupt {
		t.Fatalf("DriftType=%s, want %s", events[0].DriftType, types.DriftAbrupt)
	}
}

func TestDetectInsufficientDataProducesNothing(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	obsRepo, driftRepo, svc := newDriftFixture()

	for day := -27; day <= -8; day++ {
		seedObservation(obsRepo, types.DomainSleep, "sleep_hours", day, 7.5, now)
	}
	// Only three recent samples, below the default minimum.
	for i, v := range []float64{6.0, 5.9, 5.8} {
		seedObservation(obsRepo, types.DomainSleep, "sleep_hours", -3+i, v, now)
	}

	events, err := svc.Detect(testContext(), types.DomainSleep, DriftOptions{Now: now})
	if err != nil {
		t.Fatalf("Detect returned error: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("Detect returned %d events, want 0", len(events))
	}
	if len(driftRepo.events) != 0 {
		t.Fatalf("repo holds %d events, want 0", len(driftRepo.events))
	}
}

func TestDetectStableOnlyAfterPriorDrift(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	seedFlat := func(obsRepo *fakeObservationRepo) {
		for day := -27; day <= -1; day++ {
			seedObservation(obsRepo, types.DomainSleep, "sleep_hours", day, 7.5, now)
		}
	}

	// Without any history, an unchanged baseline stays silent.
	obsRepo, _, svc := newDriftFixture()
	seedFlat(obsRepo)
	events, err := svc.Detect(testContext(), types.DomainSleep, DriftOptions{Now: now})
	if err != nil {
		t.Fatalf("Detect returned error: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("Detect returned %d events, want 0 without prior drift", len(events))
	}

	// After an earlier non-stable event, the same flat data resets attention.
	obsRepo, driftRepo, svc := newDriftFixture()
	seedFlat(obsRepo)
	driftRepo.events = append(driftRepo.events, &types.DriftEvent{
		ID:            uuid.New(),
		TenantID:      testTenantID,
		UserID:        testUserID,
		Domain:        types.DomainSleep,
		DriftType:     types.DriftGradual,
		Magnitude:     44,
		Confidence:    80,
		BaselineValue: 7.5,
		RecentValue:   5.8,
		CreatedAt:     now.AddDate(0, 0, -10),
	})

	events, err = svc.Detect(testContext(), types.DomainSleep, DriftOptions{Now: now})
	if err != nil {
		t.Fatalf("Detect returned error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("Detect returned %d events, want 1", len(events))
	}
	if events[0].DriftType != types.DriftStable {
		t.Fatalf("DriftType=%s, want %s", events[0].DriftType, types.DriftStable)
	}
}

func TestDetectRejectsInvalidDomain(t *testing.T) {
	_, _, svc := newDriftFixture()
	_, err := svc.Detect(testContext(), types.Domain("astrology"), DriftOptions{})
	apiErr, ok := apierr.AsError(err)
	if !ok || apiErr.Code != apierr.CodeInvalidInput {
		t.Fatalf("Detect error=%v, want %s", err, apierr.CodeInvalidInput)
	}
}

func TestDetectRequiresUserContext(t *testing.T) {
	_, _, svc := newDriftFixture()
	_, err := svc.Detect(context.Background(), types.DomainSleep, DriftOptions{})
	apiErr, ok := apierr.AsError(err)
	if !ok || apiErr.Code != apierr.CodeUnauthenticated {
		t.Fatalf("Detect error=%v, want %s", err, apierr.CodeUnauthenticated)
	}
}

func TestAcknowledgeDriftEvent(t *testing.T) {
	_, driftRepo, svc := newDriftFixture()
	id := uuid.New()
	driftRepo.events = append(driftRepo.events, &types.DriftEvent{
		ID: id, TenantID: testTenantID, UserID: testUserID,
		Domain: types.DomainSleep, DriftType: types.DriftGradual,
	})

	ev, err := svc.Acknowledge(testContext(), id, "yes, exams week")
	if err != nil {
		t.Fatalf("Acknowledge returned error: %v", err)
	}
	if !ev.AcknowledgedByUser || ev.UserResponse != "yes, exams week" {
		t.Fatalf("event not acknowledged: %+v", ev)
	}

	_, err = svc.Acknowledge(testContext(), uuid.New(), "nope")
	apiErr, ok := apierr.AsError(err)
	if !ok || apiErr.Code != apierr.CodeNotFound {
		t.Fatalf("Acknowledge unknown id error=%v, want %s", err, apierr.CodeNotFound)
	}
}
