package services

import (
	"context"
	"encoding/json"
	"fmt"
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

type ForecastOptions struct {
	Now time.Time
	// Horizons restricts generation to the listed horizons; empty means all.
	Horizons []types.TimeHorizon
}

// WindowDriver is the forward reference a forecast window keeps to the
// signals that produced it, stored in the drivers jsonb column.
type WindowDriver struct {
	SignalID   uuid.UUID        `json:"signal_id"`
	SignalType types.SignalType `json:"signal_type"`
	Confidence int              `json:"confidence"`
}

type ForecastService interface {
	// Generate projects the user's active signals into time-bounded risk and
	// opportunity windows. One open window per (domain, type); regeneration
	// is idempotent while a matching window stays open.
	Generate(ctx context.Context, opts ForecastOptions) ([]*types.ForecastWindow, error)
	Get(ctx context.Context, id uuid.UUID) (*types.ForecastWindow, error)
	List(ctx context.Context, filters repos.WindowFilters, limit, offset int) ([]*types.ForecastWindow, error)
	ListOpen(ctx context.Context) ([]*types.ForecastWindow, error)
	Transition(ctx context.Context, id uuid.UUID, to types.WindowStatus) (*types.ForecastWindow, error)
	// Invalidate closes an open window because contradicting evidence arrived,
	// recording why.
	Invalidate(ctx context.Context, id uuid.UUID, reason string) (*types.ForecastWindow, error)
}

type forecastService struct {
	db         *gorm.DB
	log        *logger.Logger
	gate       Gate
	signalRepo repos.SignalRepo
	repo       repos.WindowRepo
	emitter    EventEmitter
}

func NewForecastService(db *gorm.DB, baseLog *logger.Logger, gate Gate, signalRepo repos.SignalRepo, repo repos.WindowRepo, emitter EventEmitter) ForecastService {
	return &forecastService{
		db:         db,
		log:        baseLog.With("service", "ForecastService"),
		gate:       gate,
		signalRepo: signalRepo,
		repo:       repo,
		emitter:    emitter,
	}
}

func (s *forecastService) Generate(ctx context.Context, opts ForecastOptions) ([]*types.ForecastWindow, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, apierr.Unauthenticated()
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now().UTC()
	}
	for _, h := range opts.Horizons {
		if !types.ValidHorizon(h) {
			return nil, apierr.InvalidInput(fmt.Errorf("unknown time horizon %q", h))
		}
	}

	signals, err := s.signalRepo.ListActive(ctx, nil, rd.TenantID, rd.UserID)
	if err != nil {
		return nil, err
	}
	if len(signals) == 0 {
		return []*types.ForecastWindow{}, nil
	}

	open, err := s.repo.ListOpen(ctx, nil, rd.TenantID, rd.UserID)
	if err != nil {
		return nil, err
	}
	history, err := s.repo.ListHistorical(ctx, nil, rd.TenantID, rd.UserID, 200)
	if err != nil {
		return nil, err
	}

	created := []*types.ForecastWindow{}
	for _, signal := range signals {
		windowType := windowTypeFor(signal.SignalType)
		domain := domainFor(signal.SignalType)
		if hasOpenWindow(open, domain, windowType) {
			continue
		}
		horizon := horizonFor(signal.UserImpact)
		if !horizonRequested(opts.Horizons, horizon) {
			continue
		}

		verdict, err := s.gate.Check(ctx, "forecast_emission", domain)
		if err != nil {
			return nil, err
		}
		if !verdict.Allowed {
			s.log.Info("forecast suppressed by gate",
				"domain", domain, "boundary_type", verdict.BoundaryType)
			continue
		}

		start, end := horizonBounds(opts.Now, horizon)

		// Personal precedent beats base rate: two or more historical windows
		// driven by this signal type in this domain make the projection a
		// recurrence, not a guess.
		confidence := signal.Confidence - 10
		if precedentCount(history, domain, signal.SignalType) >= 2 {
			confidence = signal.Confidence + 10
		}
		confidence = clampInt(confidence, 30, 90)

		driversRaw, _ := json.Marshal([]WindowDriver{{
			SignalID:   signal.ID,
			SignalType: signal.SignalType,
			Confidence: signal.Confidence,
		}})

		window := &types.ForecastWindow{
			ID:              uuid.New(),
			TenantID:        rd.TenantID,
			UserID:          rd.UserID,
			WindowType:      windowType,
			Domain:          domain,
			TimeHorizon:     horizon,
			StartTime:       start,
			EndTime:         end,
			Confidence:      confidence,
			Drivers:         datatypes.JSON(driversRaw),
			RecommendedMode: modeFor(windowType, signal.UserImpact),
			Status:          types.WindowStatusUpcoming,
			CreatedAt:       opts.Now,
			UpdatedAt:       opts.Now,
		}
		intensity := intensityFor(signal.UserImpact)
		if windowType == types.WindowRisk {
			window.Severity = &intensity
		} else {
			window.Leverage = &intensity
		}
		if window.StartTime.Before(opts.Now) || window.StartTime.Equal(opts.Now) {
			window.Status = types.WindowStatusActive
		}

		row, err := s.repo.Create(ctx, nil, window)
		if err != nil {
			return nil, err
		}
		open = append(open, row)
		created = append(created, row)
		s.emitter.Emit(ctx, Event{
			TenantID: rd.TenantID,
			Subject:  rd.UserID,
			Type:     "forecast.window_opened",
			Status:   string(windowType),
			Payload:  map[string]any{"window_id": row.ID, "domain": domain, "horizon": horizon},
		})
	}
	return created, nil
}

func windowTypeFor(signalType types.SignalType) types.WindowType {
	if signalType == types.SignalPositiveMomentum {
		return types.WindowOpportunity
	}
	return types.WindowRisk
}

func domainFor(signalType types.SignalType) types.Domain {
	switch signalType {
	case types.SignalHealthDrift:
		return types.DomainHealth
	case types.SignalRoutineInstability:
		return types.DomainRoutine
	case types.SignalCognitiveLoad:
		return types.DomainCommunication
	case types.SignalSocialWithdrawal, types.SignalSocialOverload:
		return types.DomainSocial
	case types.SignalPreferenceShift:
		return types.DomainPreference
	default:
		return types.DomainEngagement
	}
}

func horizonFor(impact types.UserImpact) types.TimeHorizon {
	switch impact {
	case types.ImpactHigh:
		return types.HorizonShort
	case types.ImpactMedium:
		return types.HorizonMid
	default:
		return types.HorizonLong
	}
}

func horizonBounds(now time.Time, horizon types.TimeHorizon) (time.Time, time.Time) {
	switch horizon {
	case types.HorizonShort:
		return now, now.AddDate(0, 0, 3)
	case types.HorizonMid:
		return now.AddDate(0, 0, 3), now.AddDate(0, 0, 14)
	default:
		return now.AddDate(0, 0, 14), now.AddDate(0, 0, 45)
	}
}

func intensityFor(impact types.UserImpact) int {
	switch impact {
	case types.ImpactHigh:
		return 70
	case types.ImpactMedium:
		return 50
	default:
		return 30
	}
}

func modeFor(windowType types.WindowType, impact types.UserImpact) types.RecommendedMode {
	if windowType == types.WindowOpportunity {
		return types.ModeAwareness
	}
	switch impact {
	case types.ImpactHigh:
		return types.ModeGentlePrep
	case types.ImpactMedium:
		return types.ModeReflection
	default:
		return types.ModeAwareness
	}
}

func horizonRequested(requested []types.TimeHorizon, horizon types.TimeHorizon) bool {
	if len(requested) == 0 {
		return true
	}
	for _, h := range requested {
		if h == horizon {
			return true
		}
	}
	return false
}

func hasOpenWindow(open []*types.ForecastWindow, domain types.Domain, windowType types.WindowType) bool {
	for _, w := range open {
		if w.Domain == domain && w.WindowType == windowType {
			return true
		}
	}
	return false
}

func precedentCount(history []*types.ForecastWindow, domain types.Domain, signalType types.SignalType) int {
	count := 0
	for _, w := range history {
		if w.Domain != domain {
			continue
		}
		var drivers []WindowDriver
		if err := json.Unmarshal(w.Drivers, &drivers); err != nil {
			continue
		}
		for _, d := range drivers {
			if d.SignalType == signalType {
				count++
				break
			}
		}
	}
	return count
}

func (s *forecastService) Get(ctx context.Context, id uuid.UUID) (*types.ForecastWindow, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, apierr.Unauthenticated()
	}
	row, err := s.repo.GetByID(ctx, nil, rd.TenantID, rd.UserID, id)
	if err != nil {
		return nil, apierr.NotFound("forecast window")
	}
	return row, nil
}

func (s *forecastService) List(ctx context.Context, filters repos.WindowFilters, limit, offset int) ([]*types.ForecastWindow, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, apierr.Unauthenticated()
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.repo.ListByUser(ctx, nil, rd.TenantID, rd.UserID, filters, limit, offset)
}

func (s *forecastService) ListOpen(ctx context.Context) ([]*types.ForecastWindow, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, apierr.Unauthenticated()
	}
	return s.repo.ListOpen(ctx, nil, rd.TenantID, rd.UserID)
}

func (s *forecastService) Transition(ctx context.Context, id uuid.UUID, to types.WindowStatus) (*types.ForecastWindow, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, apierr.Unauthenticated()
	}
	current, err := s.repo.GetByID(ctx, nil, rd.TenantID, rd.UserID, id)
	if err != nil {
		return nil, apierr.NotFound("forecast window")
	}
	if !types.WindowCanTransition(current.Status, to) {
		return nil, apierr.InvalidStateTransition("forecast_window", string(current.Status), string(to))
	}
	affected, err := s.repo.UpdateStatus(ctx, nil, id, current.Status, to)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		latest, rerr := s.repo.GetByID(ctx, nil, rd.TenantID, rd.UserID, id)
		if rerr != nil {
			return nil, apierr.NotFound("forecast window")
		}
		return nil, apierr.InvalidStateTransition("forecast_window", string(latest.Status), string(to))
	}
	return s.repo.GetByID(ctx, nil, rd.TenantID, rd.UserID, id)
}

func (s *forecastService) Invalidate(ctx context.Context, id uuid.UUID, reason string) (*types.ForecastWindow, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, apierr.Unauthenticated()
	}
	current, err := s.repo.GetByID(ctx, nil, rd.TenantID, rd.UserID, id)
	if err != nil {
		return nil, apierr.NotFound("forecast window")
	}
	if !types.WindowCanTransition(current.Status, types.WindowStatusInvalidated) {
		return nil, apierr.InvalidStateTransition("forecast_window", string(current.Status), string(types.WindowStatusInvalidated))
	}
	affected, err := s.repo.Invalidate(ctx, nil, id, current.Status, reason)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		latest, rerr := s.repo.GetByID(ctx, nil, rd.TenantID, rd.UserID, id)
		if rerr != nil {
			return nil, apierr.NotFound("forecast window")
		}
		return nil, apierr.InvalidStateTransition("forecast_window", string(latest.Status), string(types.WindowStatusInvalidated))
	}
	s.emitter.Emit(ctx, Event{
		TenantID: rd.TenantID,
		Subject:  rd.UserID,
		Type:     "forecast.window_invalidated",
		Status:   string(types.WindowStatusInvalidated),
		Payload:  map[string]any{"window_id": id, "reason": reason},
	})
	return s.repo.GetByID(ctx, nil, rd.TenantID, rd.UserID, id)
}
