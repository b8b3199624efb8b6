package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/quantumlife-hq/horizon-backend/internal/apierr"
	"github.com/quantumlife-hq/horizon-backend/internal/types"
)

func newObservationFixture() (*fakeObservationRepo, ObservationService) {
	repo := &fakeObservationRepo{}
	return repo, NewObservationService(nil, testLogger(), repo)
}

func TestRecordNormalizesAndClamps(t *testing.T) {
	repo, svc := newObservationFixture()
	recorded := time.Date(2026, 2, 20, 8, 0, 0, 0, time.UTC)

	rows, err := svc.Record(testContext(), nil, []ObservationInput{
		{Domain: " Sleep ", Key: " Sleep_Hours ", Value: " 7.5 ", NumericValue: floatPtr(7.5), Source: "EXPLICIT", Confidence: 140, RecordedAt: &recorded},
	})
	if err != nil {
		t.Fatalf("Record returned error: %v", err)
	}
	if len(rows) != 1 || len(repo.rows) != 1 {
		t.Fatalf("recorded %d rows, want 1", len(rows))
	}
	row := rows[0]
	if row.Domain != types.DomainSleep || row.Key != "sleep_hours" || row.Source != types.SourceExplicit {
		t.Fatalf("row not normalized: %+v", row)
	}
	if row.Confidence != 100 {
		t.Fatalf("Confidence=%d, want clamped to 100", row.Confidence)
	}
	if !row.RecordedAt.Equal(recorded) {
		t.Fatalf("RecordedAt=%s, want %s", row.RecordedAt, recorded)
	}
	if row.TenantID != testTenantID || row.UserID != testUserID {
		t.Fatalf("row not stamped with caller identity: %+v", row)
	}
}

func TestRecordRejectsBadInput(t *testing.T) {
	_, svc := newObservationFixture()

	cases := []struct {
		name  string
		input ObservationInput
	}{
		{name: "bad_domain", input: ObservationInput{Domain: "astrology", Key: "sign", Source: "explicit"}},
		{name: "bad_source", input: ObservationInput{Domain: "sleep", Key: "sleep_hours", Source: "gossip"}},
		{name: "key_too_short", input: ObservationInput{Domain: "sleep", Key: "x", Source: "explicit"}},
		{name: "key_bad_chars", input: ObservationInput{Domain: "sleep", Key: "sleep hours!", Source: "explicit"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Record(testContext(), nil, []ObservationInput{tc.input})
			apiErr, ok := apierr.AsError(err)
			if !ok || apiErr.Code != apierr.CodeInvalidInput {
				t.Fatalf("Record error=%v, want %s", err, apierr.CodeInvalidInput)
			}
		})
	}
}

func TestRecordBatchLimits(t *testing.T) {
	_, svc := newObservationFixture()

	rows, err := svc.Record(testContext(), nil, nil)
	if err != nil || len(rows) != 0 {
		t.Fatalf("empty batch rows=%d err=%v, want 0/nil", len(rows), err)
	}

	batch := make([]ObservationInput, 201)
	for i := range batch {
		batch[i] = ObservationInput{Domain: "sleep", Key: fmt.Sprintf("key_%d", i), Source: "explicit"}
	}
	_, err = svc.Record(testContext(), nil, batch)
	apiErr, ok := apierr.AsError(err)
	if !ok || apiErr.Code != apierr.CodeInvalidInput {
		t.Fatalf("oversized batch error=%v, want %s", err, apierr.CodeInvalidInput)
	}
}

func TestQueryFiltersByDomain(t *testing.T) {
	repo, svc := newObservationFixture()
	now := time.Now().UTC()
	seedObservation(repo, types.DomainSleep, "sleep_hours", -1, 7.5, now)
	seedObservation(repo, types.DomainRoutine, "wake_time", -1, 6.5, now)

	domain := types.DomainSleep
	rows, err := svc.Query(testContext(), &domain, now.AddDate(0, 0, -7), 50, 0)
	if err != nil {
		t.Fatalf("Query returned error: %v", err)
	}
	if len(rows) != 1 || rows[0].Domain != types.DomainSleep {
		t.Fatalf("Query returned %d rows, want the single sleep row", len(rows))
	}
}
