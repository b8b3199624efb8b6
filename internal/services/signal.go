package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/quantumlife-hq/horizon-backend/internal/apierr"
	"github.com/quantumlife-hq/horizon-backend/internal/logger"
	"github.com/quantumlife-hq/horizon-backend/internal/repos"
	"github.com/quantumlife-hq/horizon-backend/internal/requestdata"
	"github.com/quantumlife-hq/horizon-backend/internal/types"
)

type SignalOptions struct {
	LookbackDays int
	TTLDays      int
	Now          time.Time
}

func (o *SignalOptions) applyDefaults() {
	if o.LookbackDays <= 0 {
		o.LookbackDays = 14
	}
	if o.TTLDays <= 0 {
		o.TTLDays = 14
	}
	if o.Now.IsZero() {
		o.Now = time.Now().UTC()
	}
}

// Emission floors: a signal below its floor stays unspoken. Health and
// cognitive load carry a higher bar because a wrong nudge there costs trust.
var signalConfidenceFloor = map[types.SignalType]int{
	types.SignalHealthDrift:        50,
	types.SignalCognitiveLoad:      50,
	types.SignalBehavioralDrift:    40,
	types.SignalRoutineInstability: 40,
	types.SignalSocialWithdrawal:   40,
	types.SignalSocialOverload:     40,
	types.SignalPreferenceShift:    40,
	types.SignalPositiveMomentum:   40,
}

type SignalService interface {
	// Evaluate folds recent drift events into cross-domain signals. One
	// active signal per type: re-evaluation attaches nothing to an existing
	// active signal and never duplicates it.
	Evaluate(ctx context.Context, opts SignalOptions) ([]*types.Signal, error)
	Get(ctx context.Context, id uuid.UUID) (*types.Signal, error)
	List(ctx context.Context, filters repos.SignalFilters, limit, offset int) ([]*types.Signal, error)
	Transition(ctx context.Context, id uuid.UUID, to types.SignalStatus) (*types.Signal, error)
}

type signalService struct {
	db        *gorm.DB
	log       *logger.Logger
	gate      Gate
	driftRepo repos.DriftEventRepo
	repo      repos.SignalRepo
	emitter   EventEmitter
}

func NewSignalService(db *gorm.DB, baseLog *logger.Logger, gate Gate, driftRepo repos.DriftEventRepo, repo repos.SignalRepo, emitter EventEmitter) SignalService {
	return &signalService{
		db:        db,
		log:       baseLog.With("service", "SignalService"),
		gate:      gate,
		driftRepo: driftRepo,
		repo:      repo,
		emitter:   emitter,
	}
}

// signalCandidate accumulates evidence for one signal type during a pass.
type signalCandidate struct {
	signalType    types.SignalType
	primaryDomain types.Domain
	evidence      []*types.SignalEvidence
	weightedSum   float64
	weightTotal   float64
	magnitudeSum  int
}

func (s *signalService) Evaluate(ctx context.Context, opts SignalOptions) ([]*types.Signal, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, apierr.Unauthenticated()
	}
	opts.applyDefaults()

	since := opts.Now.AddDate(0, 0, -opts.LookbackDays)
	drifts, err := s.driftRepo.ListSince(ctx, nil, rd.TenantID, rd.UserID, since)
	if err != nil {
		return nil, err
	}

	candidates := map[types.SignalType]*signalCandidate{}
	for _, drift := range drifts {
		if drift.DriftType == types.DriftStable {
			continue
		}
		signalType := signalTypeFor(drift)
		cand, ok := candidates[signalType]
		if !ok {
			cand = &signalCandidate{signalType: signalType, primaryDomain: drift.Domain}
			candidates[signalType] = cand
		}
		// Drift events are system-derived evidence; their reliability is the
		// system source weight, not the raw drift confidence alone.
		reliability := types.SourceReliability(types.SourceSystem)
		weight := float64(drift.Confidence) * reliability
		cand.weightedSum += weight * float64(drift.Confidence)
		cand.weightTotal += weight
		cand.magnitudeSum += drift.Magnitude
		cand.evidence = append(cand.evidence, &types.SignalEvidence{
			ID:           uuid.New(),
			EvidenceType: "drift_event",
			SourceRef:    drift.ID.String(),
			Weight:       int(math.Round(weight)),
			Summary:      drift.EvidenceSummary,
			RecordedAt:   drift.CreatedAt,
			CreatedAt:    opts.Now,
		})
	}

	emitted := []*types.Signal{}
	for _, cand := range candidates {
		count := len(cand.evidence)
		if count == 0 || cand.weightTotal == 0 {
			continue
		}
		confidence := clampInt(int(math.Round(cand.weightedSum/cand.weightTotal))+3*(count-1), 0, 95)
		if confidence < signalConfidenceFloor[cand.signalType] {
			continue
		}

		existing, err := s.repo.ActiveByType(ctx, nil, rd.TenantID, rd.UserID, cand.signalType)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			continue
		}

		verdict, err := s.gate.Check(ctx, "signal_emission", cand.primaryDomain)
		if err != nil {
			return nil, err
		}
		if !verdict.Allowed {
			s.log.Info("signal suppressed by gate",
				"signal_type", cand.signalType, "boundary_type", verdict.BoundaryType)
			continue
		}

		avgMagnitude := cand.magnitudeSum / count
		signal := &types.Signal{
			ID:              uuid.New(),
			TenantID:        rd.TenantID,
			UserID:          rd.UserID,
			SignalType:      cand.signalType,
			Confidence:      confidence,
			WindowStart:     since,
			WindowEnd:       opts.Now,
			DetectedChange:  detectedChangeFor(cand.signalType, cand.primaryDomain, count),
			UserImpact:      impactFor(avgMagnitude),
			SuggestedAction: actionFor(cand.signalType),
			Status:          types.SignalStatusActive,
			ExpiresAt:       opts.Now.AddDate(0, 0, opts.TTLDays),
			CreatedAt:       opts.Now,
			UpdatedAt:       opts.Now,
		}
		created, err := s.repo.CreateWithEvidence(ctx, nil, signal, cand.evidence)
		if err != nil {
			return nil, err
		}
		s.emitter.Emit(ctx, Event{
			TenantID: rd.TenantID,
			Subject:  rd.UserID,
			Type:     "signal.emitted",
			Status:   string(created.SignalType),
			Payload:  map[string]any{"signal_id": created.ID, "confidence": created.Confidence},
		})
		emitted = append(emitted, created)
	}
	return emitted, nil
}

func signalTypeFor(drift *types.DriftEvent) types.SignalType {
	improving := drift.RecentValue > drift.BaselineValue
	switch drift.Domain {
	case types.DomainHealth, types.DomainSleep:
		return types.SignalHealthDrift
	case types.DomainRoutine:
		return types.SignalRoutineInstability
	case types.DomainCommunication:
		return types.SignalCognitiveLoad
	case types.DomainSocial:
		if improving {
			return types.SignalSocialOverload
		}
		return types.SignalSocialWithdrawal
	case types.DomainGoal, types.DomainEngagement:
		if improving {
			return types.SignalPositiveMomentum
		}
		return types.SignalBehavioralDrift
	case types.DomainPreference:
		return types.SignalPreferenceShift
	default:
		return types.SignalBehavioralDrift
	}
}

func detectedChangeFor(signalType types.SignalType, domain types.Domain, evidenceCount int) string {
	return fmt.Sprintf("%s pattern in %s domain backed by %d drift event(s)", signalType, domain, evidenceCount)
}

func impactFor(avgMagnitude int) types.UserImpact {
	switch {
	case avgMagnitude >= 50:
		return types.ImpactHigh
	case avgMagnitude >= 25:
		return types.ImpactMedium
	default:
		return types.ImpactLow
	}
}

func actionFor(signalType types.SignalType) types.SuggestedAction {
	switch signalType {
	case types.SignalHealthDrift, types.SignalCognitiveLoad, types.SignalSocialWithdrawal:
		return types.ActionCheckIn
	case types.SignalPositiveMomentum:
		return types.ActionAwareness
	default:
		return types.ActionReflection
	}
}

func (s *signalService) Get(ctx context.Context, id uuid.UUID) (*types.Signal, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, apierr.Unauthenticated()
	}
	row, err := s.repo.GetByID(ctx, nil, rd.TenantID, rd.UserID, id)
	if err != nil {
		return nil, apierr.NotFound("signal")
	}
	return row, nil
}

func (s *signalService) List(ctx context.Context, filters repos.SignalFilters, limit, offset int) ([]*types.Signal, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, apierr.Unauthenticated()
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.repo.ListByUser(ctx, nil, rd.TenantID, rd.UserID, filters, limit, offset)
}

func (s *signalService) Transition(ctx context.Context, id uuid.UUID, to types.SignalStatus) (*types.Signal, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, apierr.Unauthenticated()
	}
	current, err := s.repo.GetByID(ctx, nil, rd.TenantID, rd.UserID, id)
	if err != nil {
		return nil, apierr.NotFound("signal")
	}
	if !types.SignalCanTransition(current.Status, to) {
		return nil, apierr.InvalidStateTransition("signal", string(current.Status), string(to))
	}
	affected, err := s.repo.UpdateStatus(ctx, nil, id, current.Status, to)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		// Lost the race against another writer; re-read and report.
		latest, rerr := s.repo.GetByID(ctx, nil, rd.TenantID, rd.UserID, id)
		if rerr != nil {
			return nil, apierr.NotFound("signal")
		}
		return nil, apierr.InvalidStateTransition("signal", string(latest.Status), string(to))
	}
	return s.repo.GetByID(ctx, nil, rd.TenantID, rd.UserID, id)
}
