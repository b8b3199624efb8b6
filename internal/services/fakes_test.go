package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/quantumlife-hq/horizon-backend/internal/logger"
	"github.com/quantumlife-hq/horizon-backend/internal/repos"
	"github.com/quantumlife-hq/horizon-backend/internal/requestdata"
	"github.com/quantumlife-hq/horizon-backend/internal/types"
)

var (
	testTenantID = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	testUserID   = uuid.MustParse("22222222-2222-2222-2222-222222222222")
)

func testContext() context.Context {
	return requestdata.WithRequestData(context.Background(), &requestdata.RequestData{
		TenantID: testTenantID,
		UserID:   testUserID,
	})
}

func testLogger() *logger.Logger {
	log, err := logger.New("development")
	if err != nil {
		panic(err)
	}
	return log
}

func floatPtr(v float64) *float64 { return &v }

// --- observation repo fake ---

type fakeObservationRepo struct {
	rows []*types.Observation
}

func (f *fakeObservationRepo) Create(ctx context.Context, tx *gorm.DB, rows []*types.Observation) ([]*types.Observation, error) {
	f.rows = append(f.rows, rows...)
	return rows, nil
}

func (f *fakeObservationRepo) ListByUser(ctx context.Context, tx *gorm.DB, tenantID, userID uuid.UUID, domain *types.Domain, since time.Time, limit, offset int) ([]*types.Observation, error) {
	out := []*types.Observation{}
	for _, row := range f.rows {
		if domain != nil && row.Domain != *domain {
			continue
		}
		if !since.IsZero() && row.RecordedAt.Before(since) {
			continue
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecordedAt.After(out[j].RecordedAt) })
	return out, nil
}

func (f *fakeObservationRepo) ListNumericWindow(ctx context.Context, tx *gorm.DB, tenantID, userID uuid.UUID, domain types.Domain, key string, start, end time.Time) ([]*types.Observation, error) {
	out := []*types.Observation{}
	for _, row := range f.rows {
		if row.Domain != domain || row.Key != key || row.NumericValue == nil {
			continue
		}
		if row.RecordedAt.Before(start) || !row.RecordedAt.Before(end) {
			continue
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecordedAt.Before(out[j].RecordedAt) })
	return out, nil
}

func (f *fakeObservationRepo) DistinctNumericKeys(ctx context.Context, tx *gorm.DB, tenantID, userID uuid.UUID, domain types.Domain, since time.Time) ([]string, error) {
	seen := map[string]bool{}
	keys := []string{}
	for _, row := range f.rows {
		if row.Domain != domain || row.NumericValue == nil || row.RecordedAt.Before(since) {
			continue
		}
		if !seen[row.Key] {
			seen[row.Key] = true
			keys = append(keys, row.Key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// --- drift event repo fake ---

type fakeDriftRepo struct {
	events []*types.DriftEvent
}

func (f *fakeDriftRepo) Create(ctx context.Context, tx *gorm.DB, row *types.DriftEvent) (*types.DriftEvent, error) {
	f.events = append(f.events, row)
	return row, nil
}

func (f *fakeDriftRepo) GetByID(ctx context.Context, tx *gorm.DB, tenantID, userID, id uuid.UUID) (*types.DriftEvent, error) {
	for _, ev := range f.events {
		if ev.ID == id {
			return ev, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeDriftRepo) ListByUser(ctx context.Context, tx *gorm.DB, tenantID, userID uuid.UUID, domain *types.Domain, limit, offset int) ([]*types.DriftEvent, error) {
	out := []*types.DriftEvent{}
	for _, ev := range f.events {
		if domain != nil && ev.Domain != *domain {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

func (f *fakeDriftRepo) ListSince(ctx context.Context, tx *gorm.DB, tenantID, userID uuid.UUID, since time.Time) ([]*types.DriftEvent, error) {
	out := []*types.DriftEvent{}
	for _, ev := range f.events {
		if !ev.CreatedAt.Before(since) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (f *fakeDriftRepo) ListByDomainSince(ctx context.Context, tx *gorm.DB, tenantID, userID uuid.UUID, domain types.Domain, since time.Time) ([]*types.DriftEvent, error) {
	out := []*types.DriftEvent{}
	for _, ev := range f.events {
		if ev.Domain == domain && !ev.CreatedAt.Before(since) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (f *fakeDriftRepo) Acknowledge(ctx context.Context, tx *gorm.DB, tenantID, userID, id uuid.UUID, response string) (int64, error) {
	for _, ev := range f.events {
		if ev.ID == id {
			ev.AcknowledgedByUser = true
			ev.UserResponse = response
			return 1, nil
		}
	}
	return 0, nil
}

// --- signal repo fake ---

type fakeSignalRepo struct {
	signals []*types.Signal
}

func (f *fakeSignalRepo) CreateWithEvidence(ctx context.Context, tx *gorm.DB, signal *types.Signal, evidence []*types.SignalEvidence) (*types.Signal, error) {
	signal.EvidenceCount = len(evidence)
	for _, ev := range evidence {
		ev.SignalID = signal.ID
	}
	signal.Evidence = evidence
	f.signals = append(f.signals, signal)
	return signal, nil
}

func (f *fakeSignalRepo) GetByID(ctx context.Context, tx *gorm.DB, tenantID, userID, id uuid.UUID) (*types.Signal, error) {
	for _, s := range f.signals {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeSignalRepo) ListByUser(ctx context.Context, tx *gorm.DB, tenantID, userID uuid.UUID, filters repos.SignalFilters, limit, offset int) ([]*types.Signal, error) {
	out := []*types.Signal{}
	for _, s := range f.signals {
		if filters.SignalType != nil && s.SignalType != *filters.SignalType {
			continue
		}
		if filters.Status != nil && s.Status != *filters.Status {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeSignalRepo) ListActive(ctx context.Context, tx *gorm.DB, tenantID, userID uuid.UUID) ([]*types.Signal, error) {
	out := []*types.Signal{}
	for _, s := range f.signals {
		if s.Status == types.SignalStatusActive {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSignalRepo) ActiveByType(ctx context.Context, tx *gorm.DB, tenantID, userID uuid.UUID, signalType types.SignalType) (*types.Signal, error) {
	for _, s := range f.signals {
		if s.SignalType == signalType && s.Status == types.SignalStatusActive {
			return s, nil
		}
	}
	return nil, nil
}

func (f *fakeSignalRepo) UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, from, to types.SignalStatus) (int64, error) {
	for _, s := range f.signals {
		if s.ID == id && s.Status == from {
			s.Status = to
			return 1, nil
		}
	}
	return 0, nil
}

func (f *fakeSignalRepo) ExpireDue(ctx context.Context, tx *gorm.DB, now time.Time) (int64, error) {
	var n int64
	for _, s := range f.signals {
		if s.Status == types.SignalStatusActive && !s.ExpiresAt.After(now) {
			s.Status = types.SignalStatusExpired
			n++
		}
	}
	return n, nil
}

func (f *fakeSignalRepo) CountEvidence(ctx context.Context, tx *gorm.DB, signalID uuid.UUID) (int64, error) {
	for _, s := range f.signals {
		if s.ID == signalID {
			return int64(len(s.Evidence)), nil
		}
	}
	return 0, nil
}

// --- window repo fake ---

type fakeWindowRepo struct {
	windows []*types.ForecastWindow
}

func (f *fakeWindowRepo) Create(ctx context.Context, tx *gorm.DB, row *types.ForecastWindow) (*types.ForecastWindow, error) {
	if err := types.ValidateWindow(row); err != nil {
		return nil, err
	}
	f.windows = append(f.windows, row)
	return row, nil
}

func (f *fakeWindowRepo) GetByID(ctx context.Context, tx *gorm.DB, tenantID, userID, id uuid.UUID) (*types.ForecastWindow, error) {
	for _, w := range f.windows {
		if w.ID == id {
			return w, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeWindowRepo) ListByUser(ctx context.Context, tx *gorm.DB, tenantID, userID uuid.UUID, filters repos.WindowFilters, limit, offset int) ([]*types.ForecastWindow, error) {
	out := []*types.ForecastWindow{}
	for _, w := range f.windows {
		if filters.WindowType != nil && w.WindowType != *filters.WindowType {
			continue
		}
		if filters.Domain != nil && w.Domain != *filters.Domain {
			continue
		}
		if filters.Status != nil && w.Status != *filters.Status {
			continue
		}
		out = append(out, w)
	}
	return out, nil
}

func (f *fakeWindowRepo) ListOpen(ctx context.Context, tx *gorm.DB, tenantID, userID uuid.UUID) ([]*types.ForecastWindow, error) {
	out := []*types.ForecastWindow{}
	for _, w := range f.windows {
		switch w.Status {
		case types.WindowStatusUpcoming, types.WindowStatusActive, types.WindowStatusAcknowledged:
			out = append(out, w)
		}
	}
	return out, nil
}

func (f *fakeWindowRepo) ListHistorical(ctx context.Context, tx *gorm.DB, tenantID, userID uuid.UUID, limit int) ([]*types.ForecastWindow, error) {
	out := []*types.ForecastWindow{}
	for _, w := range f.windows {
		switch w.Status {
		case types.WindowStatusPassed, types.WindowStatusAcknowledged:
			out = append(out, w)
		}
	}
	return out, nil
}

func (f *fakeWindowRepo) UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, from, to types.WindowStatus) (int64, error) {
	for _, w := range f.windows {
		if w.ID == id && w.Status == from {
			w.Status = to
			return 1, nil
		}
	}
	return 0, nil
}

func (f *fakeWindowRepo) Invalidate(ctx context.Context, tx *gorm.DB, id uuid.UUID, from types.WindowStatus, reason string) (int64, error) {
	for _, w := range f.windows {
		if w.ID == id && w.Status == from {
			w.Status = types.WindowStatusInvalidated
			w.InvalidationReason = reason
			return 1, nil
		}
	}
	return 0, nil
}

func (f *fakeWindowRepo) PromoteDue(ctx context.Context, tx *gorm.DB, now time.Time) (int64, error) {
	var n int64
	for _, w := range f.windows {
		if w.Status == types.WindowStatusUpcoming && !w.StartTime.After(now) && w.EndTime.After(now) {
			w.Status = types.WindowStatusActive
			n++
		}
	}
	return n, nil
}

func (f *fakeWindowRepo) PassDue(ctx context.Context, tx *gorm.DB, now time.Time) (int64, error) {
	var n int64
	for _, w := range f.windows {
		switch w.Status {
		case types.WindowStatusUpcoming, types.WindowStatusActive, types.WindowStatusAcknowledged:
			if !w.EndTime.After(now) {
				w.Status = types.WindowStatusPassed
				n++
			}
		}
	}
	return n, nil
}

// --- suggestion repo fake ---

type fakeSuggestionRepo struct {
	suggestions []*types.Suggestion
}

func (f *fakeSuggestionRepo) Create(ctx context.Context, tx *gorm.DB, row *types.Suggestion) (*types.Suggestion, error) {
	f.suggestions = append(f.suggestions, row)
	return row, nil
}

func (f *fakeSuggestionRepo) GetByID(ctx context.Context, tx *gorm.DB, tenantID, userID, id uuid.UUID) (*types.Suggestion, error) {
	for _, s := range f.suggestions {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeSuggestionRepo) ListByUser(ctx context.Context, tx *gorm.DB, tenantID, userID uuid.UUID, filters repos.SuggestionFilters, limit, offset int) ([]*types.Suggestion, error) {
	out := []*types.Suggestion{}
	for _, s := range f.suggestions {
		if filters.Kind != nil && s.Kind != *filters.Kind {
			continue
		}
		if filters.Domain != nil && s.Domain != *filters.Domain {
			continue
		}
		if filters.Status != nil && s.Status != *filters.Status {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeSuggestionRepo) LatestByFingerprint(ctx context.Context, tx *gorm.DB, tenantID, userID uuid.UUID, domain types.Domain, fingerprint string) (*types.Suggestion, error) {
	var latest *types.Suggestion
	for _, s := range f.suggestions {
		if s.Domain != domain || s.Fingerprint != fingerprint {
			continue
		}
		if latest == nil || s.CreatedAt.After(latest.CreatedAt) {
			latest = s
		}
	}
	return latest, nil
}

func (f *fakeSuggestionRepo) ActiveByTrigger(ctx context.Context, tx *gorm.DB, tenantID, userID uuid.UUID, windowID, signalID *uuid.UUID) (*types.Suggestion, error) {
	for _, s := range f.suggestions {
		if s.Status != types.SuggestionStatusActive {
			continue
		}
		if windowID != nil && s.TriggerWindowID != nil && *s.TriggerWindowID == *windowID {
			return s, nil
		}
		if signalID != nil && s.TriggerSignalID != nil && *s.TriggerSignalID == *signalID {
			return s, nil
		}
	}
	return nil, nil
}

func (f *fakeSuggestionRepo) UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, from, to types.SuggestionStatus) (int64, error) {
	for _, s := range f.suggestions {
		if s.ID == id && s.Status == from {
			s.Status = to
			return 1, nil
		}
	}
	return 0, nil
}

func (f *fakeSuggestionRepo) ExpireDue(ctx context.Context, tx *gorm.DB, now time.Time) (int64, error) {
	var n int64
	for _, s := range f.suggestions {
		if s.Status == types.SuggestionStatusActive && !s.ExpiresAt.After(now) {
			s.Status = types.SuggestionStatusExpired
			n++
		}
	}
	return n, nil
}

// --- boundary profile / consent fakes ---

type fakeBoundaryProfileRepo struct {
	profile *types.BoundaryProfile
}

func (f *fakeBoundaryProfileRepo) GetByUser(ctx context.Context, tx *gorm.DB, tenantID, userID uuid.UUID) (*types.BoundaryProfile, error) {
	return f.profile, nil
}

func (f *fakeBoundaryProfileRepo) Upsert(ctx context.Context, tx *gorm.DB, row *types.BoundaryProfile) (*types.BoundaryProfile, error) {
	f.profile = row
	return row, nil
}

type fakeConsentRepo struct {
	records map[string]*types.ConsentRecord
}

func (f *fakeConsentRepo) GetByTopic(ctx context.Context, tx *gorm.DB, tenantID, userID uuid.UUID, topic string) (*types.ConsentRecord, error) {
	if f.records == nil {
		return nil, nil
	}
	return f.records[topic], nil
}

func (f *fakeConsentRepo) ListByUser(ctx context.Context, tx *gorm.DB, tenantID, userID uuid.UUID) ([]*types.ConsentRecord, error) {
	out := []*types.ConsentRecord{}
	for _, r := range f.records {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeConsentRepo) Upsert(ctx context.Context, tx *gorm.DB, row *types.ConsentRecord) (*types.ConsentRecord, error) {
	if f.records == nil {
		f.records = map[string]*types.ConsentRecord{}
	}
	f.records[row.Topic] = row
	return row, nil
}

// --- gate and emitter fakes ---

type fakeGate struct {
	verdict *GateVerdict
	checks  []types.Domain
}

func (f *fakeGate) Check(ctx context.Context, action string, domain types.Domain) (*GateVerdict, error) {
	f.checks = append(f.checks, domain)
	if f.verdict != nil {
		return f.verdict, nil
	}
	return &GateVerdict{Allowed: true, BoundaryType: types.BoundarySafeToProceed, Topic: "test"}, nil
}

type fakeEmitter struct {
	mu     sync.Mutex
	events []Event
}

func (f *fakeEmitter) Emit(ctx context.Context, event Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func (f *fakeEmitter) byType(eventType string) []Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []Event{}
	for _, ev := range f.events {
		if ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}
