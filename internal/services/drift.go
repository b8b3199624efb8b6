package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/quantumlife-hq/horizon-backend/internal/apierr"
	"github.com/quantumlife-hq/horizon-backend/internal/logger"
	"github.com/quantumlife-hq/horizon-backend/internal/repos"
	"github.com/quantumlife-hq/horizon-backend/internal/requestdata"
	"github.com/quantumlife-hq/horizon-backend/internal/types"
)

type DriftOptions struct {
	ReferenceDays int
	RecentDays    int
	MinSamples    int
	Now           time.Time
}

func (o *DriftOptions) applyDefaults() {
	if o.ReferenceDays <= 0 {
		o.ReferenceDays = 28
	}
	if o.RecentDays <= 0 {
		o.RecentDays = 7
	}
	if o.RecentDays >= o.ReferenceDays {
		o.RecentDays = o.ReferenceDays / 2
	}
	if o.MinSamples <= 0 {
		o.MinSamples = 5
	}
	if o.Now.IsZero() {
		o.Now = time.Now().UTC()
	}
}

type DriftService interface {
	// Detect compares the recent window against the rolling baseline for
	// every numeric key in the domain. Insufficient data produces no events
	// and no error: absence of evidence is the normal case.
	Detect(ctx context.Context, domain types.Domain, opts DriftOptions) ([]*types.DriftEvent, error)
	Acknowledge(ctx context.Context, id uuid.UUID, response string) (*types.DriftEvent, error)
	List(ctx context.Context, domain *types.Domain, limit, offset int) ([]*types.DriftEvent, error)
}

type driftService struct {
	db      *gorm.DB
	log     *logger.Logger
	obsRepo repos.ObservationRepo
	repo    repos.DriftEventRepo
}

func NewDriftService(db *gorm.DB, baseLog *logger.Logger, obsRepo repos.ObservationRepo, repo repos.DriftEventRepo) DriftService {
	return &driftService{
		db:      db,
		log:     baseLog.With("service", "DriftService"),
		obsRepo: obsRepo,
		repo:    repo,
	}
}

func (s *driftService) Detect(ctx context.Context, domain types.Domain, opts DriftOptions) ([]*types.DriftEvent, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, apierr.Unauthenticated()
	}
	if !types.ValidDomain(domain) {
		return nil, apierr.InvalidInput(fmt.Errorf("invalid domain %q", domain))
	}
	opts.applyDefaults()

	refStart := opts.Now.AddDate(0, 0, -opts.ReferenceDays)
	recentStart := opts.Now.AddDate(0, 0, -opts.RecentDays)

	keys, err := s.obsRepo.DistinctNumericKeys(ctx, nil, rd.TenantID, rd.UserID, domain, refStart)
	if err != nil {
		return nil, err
	}

	priorEvents, err := s.repo.ListByDomainSince(ctx, nil, rd.TenantID, rd.UserID, domain, opts.Now.AddDate(0, 0, -2*opts.ReferenceDays))
	if err != nil {
		return nil, err
	}

	events := []*types.DriftEvent{}
	for _, key := range keys {
		baseline, err := s.obsRepo.ListNumericWindow(ctx, nil, rd.TenantID, rd.UserID, domain, key, refStart, recentStart)
		if err != nil {
			return nil, err
		}
		recent, err := s.obsRepo.ListNumericWindow(ctx, nil, rd.TenantID, rd.UserID, domain, key, recentStart, opts.Now)
		if err != nil {
			return nil, err
		}
		if len(baseline) < opts.MinSamples || len(recent) < opts.MinSamples {
			continue
		}

		ev := s.classify(ctx, rd, domain, key, baseline, recent, priorEvents, opts)
		if ev == nil {
			continue
		}
		// An unacknowledged event of the same kind inside the recent window
		// means this run would just restate it.
		if hasOpenDriftEvent(priorEvents, key, ev.DriftType, opts.Now.AddDate(0, 0, -opts.RecentDays)) {
			continue
		}
		created, err := s.repo.Create(ctx, nil, ev)
		if err != nil {
			return nil, err
		}
		events = append(events, created)
	}
	return events, nil
}

func (s *driftService) classify(ctx context.Context, rd *requestdata.RequestData, domain types.Domain, key string, baseline, recent []*types.Observation, priorEvents []*types.DriftEvent, opts DriftOptions) *types.DriftEvent {
	baseVals := numericValues(baseline)
	recentVals := numericValues(recent)

	baseMean := meanOf(baseVals)
	baseStd := stdOf(baseVals, baseMean)
	recentMean := meanOf(recentVals)
	recentStd := stdOf(recentVals, recentMean)

	delta := recentMean - baseMean
	relChange := math.Abs(delta) / math.Max(math.Abs(baseMean), 1e-9)

	// Floor the noise estimate so a perfectly flat baseline does not blow
	// the signal-to-noise ratio up to infinity.
	noise := math.Max(baseStd, 0.05*math.Abs(baseMean))
	noise = math.Max(noise, 1e-9)
	z := math.Abs(delta) / noise

	samples := len(baseVals) + len(recentVals)
	confidence := clampInt(int(math.Round(25+2*float64(samples)+10*z)), 0, 95)
	magnitude := clampInt(int(math.Round(relChange*200)), 0, 100)

	summary := fmt.Sprintf("mean %s moved %.2f -> %.2f over %dd (baseline %dd, n=%d)",
		key, baseMean, recentMean, opts.RecentDays, opts.ReferenceDays, samples)

	newEvent := func(dt types.DriftType, seasonal bool) *types.DriftEvent {
		now := opts.Now
		domains, _ := json.Marshal([]types.Domain{domain})
		return &types.DriftEvent{
			ID:                uuid.New(),
			TenantID:          rd.TenantID,
			UserID:            rd.UserID,
			Domain:            domain,
			MetricKey:         key,
			DriftType:         dt,
			Magnitude:         magnitude,
			Confidence:        confidence,
			BaselineValue:     baseMean,
			RecentValue:       recentMean,
			DomainsAffected:   datatypes.JSON(domains),
			EvidenceSummary:   summary,
			TimeWindowDays:    opts.RecentDays,
			IsSeasonalPattern: seasonal,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
	}

	// No statistically meaningful change. Emit stable only as an attention
	// reset after a prior non-stable event for this domain.
	if relChange < 0.05 || z < 0.8 {
		if recentStd > 2*noise && len(recentVals) >= opts.MinSamples {
			return newEvent(types.DriftExperimental, false)
		}
		for _, prior := range priorEvents {
			if prior.DriftType != types.DriftStable {
				return newEvent(types.DriftStable, false)
			}
		}
		return nil
	}

	if s.isSeasonalRecurrence(ctx, rd, domain, key, recentMean, delta, opts) {
		return newEvent(types.DriftSeasonal, true)
	}

	if reverted := s.revertsToPriorBaseline(priorEvents, recentMean, noise); reverted {
		return newEvent(types.DriftRegression, false)
	}

	dailyMeans := dailyMeansOf(recent)
	if len(dailyMeans) >= 3 {
		maxStep := 0.0
		directional := 0
		for i := 1; i < len(dailyMeans); i++ {
			step := dailyMeans[i] - dailyMeans[i-1]
			if math.Abs(step) > maxStep {
				maxStep = math.Abs(step)
			}
			if step == 0 || (step < 0) == (delta < 0) {
				directional++
			}
		}
		steps := len(dailyMeans) - 1
		if maxStep/math.Max(math.Abs(delta), 1e-9) >= 0.5 && z >= 2 {
			return newEvent(types.DriftAbrupt, false)
		}
		if float64(directional)/float64(steps) >= 0.7 {
			return newEvent(types.DriftGradual, false)
		}
	}
	if z >= 2 {
		return newEvent(types.DriftAbrupt, false)
	}
	return newEvent(types.DriftGradual, false)
}

// isSeasonalRecurrence checks whether the same period last year already
// showed values near the current recent mean.
func (s *driftService) isSeasonalRecurrence(ctx context.Context, rd *requestdata.RequestData, domain types.Domain, key string, recentMean, delta float64, opts DriftOptions) bool {
	priorStart := opts.Now.AddDate(-1, 0, -opts.RecentDays-14)
	priorEnd := opts.Now.AddDate(-1, 0, 14)
	prior, err := s.obsRepo.ListNumericWindow(ctx, nil, rd.TenantID, rd.UserID, domain, key, priorStart, priorEnd)
	if err != nil || len(prior) < opts.MinSamples {
		return false
	}
	priorMean := meanOf(numericValues(prior))
	return math.Abs(priorMean-recentMean) <= 0.25*math.Abs(delta)
}

// revertsToPriorBaseline detects a return toward the baseline of an earlier
// non-stable drift event; the regression event is the correction mechanism.
func (s *driftService) revertsToPriorBaseline(priorEvents []*types.DriftEvent, recentMean, noise float64) bool {
	for _, prior := range priorEvents {
		switch prior.DriftType {
		case types.DriftStable, types.DriftRegression:
			continue
		}
		if math.Abs(prior.BaselineValue-prior.RecentValue) < 1e-9 {
			continue
		}
		if math.Abs(recentMean-prior.BaselineValue) <= math.Max(noise, 0.25*math.Abs(prior.RecentValue-prior.BaselineValue)) {
			return true
		}
	}
	return false
}

func hasOpenDriftEvent(priors []*types.DriftEvent, key string, dt types.DriftType, since time.Time) bool {
	for _, prior := range priors {
		if prior.MetricKey != key || prior.DriftType != dt {
			continue
		}
		if prior.AcknowledgedByUser || prior.CreatedAt.Before(since) {
			continue
		}
		return true
	}
	return false
}

func (s *driftService) Acknowledge(ctx context.Context, id uuid.UUID, response string) (*types.DriftEvent, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, apierr.Unauthenticated()
	}
	affected, err := s.repo.Acknowledge(ctx, nil, rd.TenantID, rd.UserID, id, response)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, apierr.NotFound("drift event")
	}
	return s.repo.GetByID(ctx, nil, rd.TenantID, rd.UserID, id)
}

func (s *driftService) List(ctx context.Context, domain *types.Domain, limit, offset int) ([]*types.DriftEvent, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, apierr.Unauthenticated()
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.repo.ListByUser(ctx, nil, rd.TenantID, rd.UserID, domain, limit, offset)
}

func numericValues(rows []*types.Observation) []float64 {
	vals := make([]float64, 0, len(rows))
	for _, row := range rows {
		if row.NumericValue != nil {
			vals = append(vals, *row.NumericValue)
		}
	}
	return vals
}

// dailyMeansOf buckets observations by UTC day, oldest first.
func dailyMeansOf(rows []*types.Observation) []float64 {
	type bucket struct {
		sum   float64
		count int
	}
	byDay := map[string]*bucket{}
	order := []string{}
	for _, row := range rows {
		if row.NumericValue == nil {
			continue
		}
		day := row.RecordedAt.UTC().Format("2006-01-02")
		b, ok := byDay[day]
		if !ok {
			b = &bucket{}
			byDay[day] = b
			order = append(order, day)
		}
		b.sum += *row.NumericValue
		b.count++
	}
	means := make([]float64, 0, len(order))
	for _, day := range order {
		b := byDay[day]
		means = append(means, b.sum/float64(b.count))
	}
	return means
}

func meanOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stdOf(values []float64, mean float64) float64 {
	if len(values) < 2 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		d := v - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)-1))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
