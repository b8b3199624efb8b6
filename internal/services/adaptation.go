package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
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

const (
	rollbackWindowDays           = 7
	defaultSnapshotRetentionDays = 90
)

type PlanInput struct {
	Domains        []types.Domain            `json:"domains_to_update"`
	Adjustments    map[string]map[string]any `json:"adjustments"`
	Strength       int                       `json:"adaptation_strength"`
	Confidence     int                       `json:"confidence"`
	TriggeredBy    string                    `json:"triggered_by"`
	TriggerDriftID *uuid.UUID                `json:"trigger_drift_id,omitempty"`
}

type AdaptationService interface {
	// Propose creates a plan and advances it to pending_confirmation when
	// the change is large or touches a sensitive domain, otherwise straight
	// to approved.
	Propose(ctx context.Context, input PlanInput) (*types.AdaptationPlan, error)
	Confirm(ctx context.Context, id uuid.UUID) (*types.AdaptationPlan, error)
	Reject(ctx context.Context, id uuid.UUID) (*types.AdaptationPlan, error)
	// Apply snapshots the personalization profile and mutates it in a single
	// transaction. If the snapshot cannot be written nothing changes and the
	// plan stays approved.
	Apply(ctx context.Context, id uuid.UUID) (*types.AdaptationPlan, error)
	// Rollback restores the plan's snapshot while the rollback window is
	// open.
	Rollback(ctx context.Context, id uuid.UUID) (*types.AdaptationPlan, error)
	Get(ctx context.Context, id uuid.UUID) (*types.AdaptationPlan, error)
	List(ctx context.Context, status *types.PlanStatus, limit, offset int) ([]*types.AdaptationPlan, error)
	Profile(ctx context.Context) (*types.PersonalizationProfile, error)
}

type adaptationService struct {
	db          *gorm.DB
	log         *logger.Logger
	gate        Gate
	repo        repos.AdaptationPlanRepo
	snapRepo    repos.SnapshotRepo
	profileRepo repos.PersonalizationRepo
	emitter     EventEmitter

	snapshotRetentionDays int

	// Serializes apply/rollback per plan; guarded status updates protect
	// against other processes, the mutex protects against racing goroutines
	// in this one.
	planLocks sync.Map
}

func NewAdaptationService(db *gorm.DB, baseLog *logger.Logger, gate Gate, repo repos.AdaptationPlanRepo, snapRepo repos.SnapshotRepo, profileRepo repos.PersonalizationRepo, emitter EventEmitter, snapshotRetentionDays int) AdaptationService {
	if snapshotRetentionDays <= 0 {
		snapshotRetentionDays = defaultSnapshotRetentionDays
	}
	return &adaptationService{
		db:                    db,
		log:                   baseLog.With("service", "AdaptationService"),
		gate:                  gate,
		repo:                  repo,
		snapRepo:              snapRepo,
		profileRepo:           profileRepo,
		emitter:               emitter,
		snapshotRetentionDays: snapshotRetentionDays,
	}
}

func (s *adaptationService) lockPlan(id uuid.UUID) func() {
	actual, _ := s.planLocks.LoadOrStore(id, &sync.Mutex{})
	mu := actual.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (s *adaptationService) Propose(ctx context.Context, input PlanInput) (*types.AdaptationPlan, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, apierr.Unauthenticated()
	}
	if len(input.Domains) == 0 {
		return nil, apierr.InvalidInput(fmt.Errorf("at least one domain is required"))
	}
	for _, d := range input.Domains {
		if !types.ValidDomain(d) {
			return nil, apierr.InvalidInput(fmt.Errorf("invalid domain %q", d))
		}
	}
	if input.Strength < 0 || input.Strength > 100 {
		return nil, apierr.InvalidInput(fmt.Errorf("adaptation_strength must be 0..100"))
	}
	if len(input.Adjustments) == 0 {
		return nil, apierr.InvalidInput(fmt.Errorf("adjustments are required"))
	}
	trigger := types.PlanTrigger(input.TriggeredBy)
	if !types.ValidPlanTrigger(trigger) {
		return nil, apierr.InvalidInput(fmt.Errorf("invalid trigger %q", input.TriggeredBy))
	}

	confirmationNeeded := input.Strength >= 50
	for _, d := range input.Domains {
		if d == types.DomainFinancial || d == types.DomainAutonomy {
			confirmationNeeded = true
		}
	}

	domainsRaw, _ := json.Marshal(input.Domains)
	adjustRaw, err := json.Marshal(input.Adjustments)
	if err != nil {
		return nil, apierr.InvalidInput(fmt.Errorf("adjustments not serializable: %w", err))
	}

	now := time.Now().UTC()
	plan := &types.AdaptationPlan{
		ID:                 uuid.New(),
		TenantID:           rd.TenantID,
		UserID:             rd.UserID,
		DomainsToUpdate:    datatypes.JSON(domainsRaw),
		Adjustments:        datatypes.JSON(adjustRaw),
		AdaptationStrength: input.Strength,
		Confidence:         clampInt(input.Confidence, 0, 100),
		TriggeredBy:        trigger,
		TriggerDriftID:     input.TriggerDriftID,
		Status:             types.PlanStatusProposed,
		ConfirmationNeeded: confirmationNeeded,
		CanRollback:        true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	created, err := s.repo.Create(ctx, nil, plan)
	if err != nil {
		return nil, err
	}

	next := types.PlanStatusApproved
	if confirmationNeeded {
		next = types.PlanStatusPendingConfirmation
	}
	if _, err := s.repo.UpdateStatus(ctx, nil, created.ID, types.PlanStatusProposed, next, nil); err != nil {
		return nil, err
	}
	s.emitter.Emit(ctx, Event{
		TenantID: rd.TenantID,
		Subject:  rd.UserID,
		Type:     "adaptation.proposed",
		Status:   string(next),
		Payload:  map[string]any{"plan_id": created.ID, "strength": created.AdaptationStrength},
	})
	return s.repo.GetByID(ctx, nil, rd.TenantID, rd.UserID, created.ID)
}

func (s *adaptationService) Confirm(ctx context.Context, id uuid.UUID) (*types.AdaptationPlan, error) {
	return s.transition(ctx, id, types.PlanStatusPendingConfirmation, types.PlanStatusApproved, "adaptation.confirmed")
}

func (s *adaptationService) Reject(ctx context.Context, id uuid.UUID) (*types.AdaptationPlan, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, apierr.Unauthenticated()
	}
	plan, err := s.repo.GetByID(ctx, nil, rd.TenantID, rd.UserID, id)
	if err != nil {
		return nil, apierr.NotFound("adaptation plan")
	}
	if !types.PlanCanTransition(plan.Status, types.PlanStatusRejected) {
		return nil, apierr.InvalidStateTransition("adaptation_plan", string(plan.Status), string(types.PlanStatusRejected))
	}
	affected, err := s.repo.UpdateStatus(ctx, nil, id, plan.Status, types.PlanStatusRejected, nil)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, apierr.InvalidStateTransition("adaptation_plan", string(plan.Status), string(types.PlanStatusRejected))
	}
	s.emitter.Emit(ctx, Event{
		TenantID: rd.TenantID,
		Subject:  rd.UserID,
		Type:     "adaptation.rejected",
		Status:   "ok",
		Payload:  map[string]any{"plan_id": id},
	})
	return s.repo.GetByID(ctx, nil, rd.TenantID, rd.UserID, id)
}

func (s *adaptationService) transition(ctx context.Context, id uuid.UUID, from, to types.PlanStatus, eventType string) (*types.AdaptationPlan, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, apierr.Unauthenticated()
	}
	plan, err := s.repo.GetByID(ctx, nil, rd.TenantID, rd.UserID, id)
	if err != nil {
		return nil, apierr.NotFound("adaptation plan")
	}
	if plan.Status != from {
		return nil, apierr.InvalidStateTransition("adaptation_plan", string(plan.Status), string(to))
	}
	affected, err := s.repo.UpdateStatus(ctx, nil, id, from, to, nil)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, apierr.InvalidStateTransition("adaptation_plan", string(plan.Status), string(to))
	}
	s.emitter.Emit(ctx, Event{
		TenantID: rd.TenantID,
		Subject:  rd.UserID,
		Type:     eventType,
		Status:   string(to),
		Payload:  map[string]any{"plan_id": id},
	})
	return s.repo.GetByID(ctx, nil, rd.TenantID, rd.UserID, id)
}

func (s *adaptationService) Apply(ctx context.Context, id uuid.UUID) (*types.AdaptationPlan, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, apierr.Unauthenticated()
	}
	unlock := s.lockPlan(id)
	defer unlock()

	plan, err := s.repo.GetByID(ctx, nil, rd.TenantID, rd.UserID, id)
	if err != nil {
		return nil, apierr.NotFound("adaptation plan")
	}
	if plan.Status != types.PlanStatusApproved {
		return nil, apierr.InvalidStateTransition("adaptation_plan", string(plan.Status), string(types.PlanStatusApplied))
	}

	var domains []types.Domain
	if err := json.Unmarshal(plan.DomainsToUpdate, &domains); err != nil {
		return nil, apierr.InvalidInput(fmt.Errorf("plan domains unreadable: %w", err))
	}
	for _, d := range domains {
		verdict, err := s.gate.Check(ctx, "adaptation_apply", d)
		if err != nil {
			return nil, err
		}
		if !verdict.Allowed {
			return nil, verdict.Deny()
		}
	}

	now := time.Now().UTC()
	rollbackUntil := now.AddDate(0, 0, rollbackWindowDays)
	var snapshotID uuid.UUID

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		profile, err := s.profileRepo.GetOrCreate(ctx, tx, rd.TenantID, rd.UserID)
		if err != nil {
			return err
		}

		// Snapshot first. If this write fails the whole transaction aborts
		// and the plan stays approved with the profile untouched.
		snapshot := &types.PersonalizationSnapshot{
			ID:        uuid.New(),
			TenantID:  rd.TenantID,
			UserID:    rd.UserID,
			PlanID:    plan.ID,
			State:     profile.Settings,
			Version:   profile.Version,
			ExpiresAt: now.AddDate(0, 0, s.snapshotRetentionDays),
			CreatedAt: now,
		}
		if _, err := s.snapRepo.Create(ctx, tx, snapshot); err != nil {
			return fmt.Errorf("snapshot write: %w", err)
		}
		snapshotID = snapshot.ID

		merged, err := mergeSettings(profile.Settings, plan.Adjustments)
		if err != nil {
			return err
		}
		profile.Settings = merged
		profile.Version++
		if err := s.profileRepo.Update(ctx, tx, profile); err != nil {
			return err
		}

		affected, err := s.repo.UpdateStatus(ctx, tx, plan.ID, types.PlanStatusApproved, types.PlanStatusApplied, map[string]any{
			"snapshot_id":    snapshotID,
			"can_rollback":   true,
			"rollback_until": rollbackUntil,
		})
		if err != nil {
			return err
		}
		if affected == 0 {
			return apierr.InvalidStateTransition("adaptation_plan", string(types.PlanStatusApproved), string(types.PlanStatusApplied))
		}
		return nil
	})
	if err != nil {
		s.log.Warn("plan apply failed", "plan_id", id, "error", err)
		if apiErr, ok := apierr.AsError(err); ok {
			return nil, apiErr
		}
		return nil, err
	}

	s.emitter.Emit(ctx, Event{
		TenantID: rd.TenantID,
		Subject:  rd.UserID,
		Type:     "adaptation.applied",
		Status:   "ok",
		Payload:  map[string]any{"plan_id": id, "snapshot_id": snapshotID, "rollback_until": rollbackUntil},
	})
	return s.repo.GetByID(ctx, nil, rd.TenantID, rd.UserID, id)
}

func (s *adaptationService) Rollback(ctx context.Context, id uuid.UUID) (*types.AdaptationPlan, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, apierr.Unauthenticated()
	}
	unlock := s.lockPlan(id)
	defer unlock()

	plan, err := s.repo.GetByID(ctx, nil, rd.TenantID, rd.UserID, id)
	if err != nil {
		return nil, apierr.NotFound("adaptation plan")
	}
	if plan.Status != types.PlanStatusApplied {
		return nil, apierr.RollbackNotAllowed(fmt.Sprintf("plan is %s, only applied plans roll back", plan.Status))
	}
	if !plan.CanRollback || plan.SnapshotID == nil {
		return nil, apierr.RollbackNotAllowed("plan has no open rollback window")
	}
	now := time.Now().UTC()
	if plan.RollbackUntil == nil || now.After(*plan.RollbackUntil) {
		return nil, apierr.RollbackExpired()
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		snapshot, err := s.snapRepo.GetByID(ctx, tx, rd.TenantID, rd.UserID, *plan.SnapshotID)
		if err != nil {
			return apierr.RollbackNotAllowed("snapshot no longer available")
		}
		profile, err := s.profileRepo.GetOrCreate(ctx, tx, rd.TenantID, rd.UserID)
		if err != nil {
			return err
		}
		profile.Settings = snapshot.State
		profile.Version++
		if err := s.profileRepo.Update(ctx, tx, profile); err != nil {
			return err
		}
		affected, err := s.repo.UpdateStatus(ctx, tx, plan.ID, types.PlanStatusApplied, types.PlanStatusRolledBack, map[string]any{
			"can_rollback": false,
		})
		if err != nil {
			return err
		}
		if affected == 0 {
			return apierr.InvalidStateTransition("adaptation_plan", string(types.PlanStatusApplied), string(types.PlanStatusRolledBack))
		}
		return nil
	})
	if err != nil {
		s.log.Warn("plan rollback failed", "plan_id", id, "error", err)
		if apiErr, ok := apierr.AsError(err); ok {
			return nil, apiErr
		}
		return nil, err
	}

	s.emitter.Emit(ctx, Event{
		TenantID: rd.TenantID,
		Subject:  rd.UserID,
		Type:     "adaptation.rolled_back",
		Status:   "ok",
		Payload:  map[string]any{"plan_id": id},
	})
	return s.repo.GetByID(ctx, nil, rd.TenantID, rd.UserID, id)
}

// mergeSettings overlays plan adjustments onto the current settings map,
// preserving keys the plan does not touch.
func mergeSettings(current, adjustments datatypes.JSON) (datatypes.JSON, error) {
	settings := map[string]map[string]any{}
	if len(current) > 0 {
		if err := json.Unmarshal(current, &settings); err != nil {
			return nil, fmt.Errorf("settings unreadable: %w", err)
		}
	}
	overlay := map[string]map[string]any{}
	if err := json.Unmarshal(adjustments, &overlay); err != nil {
		return nil, fmt.Errorf("adjustments unreadable: %w", err)
	}
	for domain, keys := range overlay {
		if settings[domain] == nil {
			settings[domain] = map[string]any{}
		}
		for k, v := range keys {
			settings[domain][k] = v
		}
	}
	raw, err := json.Marshal(settings)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

func (s *adaptationService) Get(ctx context.Context, id uuid.UUID) (*types.AdaptationPlan, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, apierr.Unauthenticated()
	}
	plan, err := s.repo.GetByID(ctx, nil, rd.TenantID, rd.UserID, id)
	if err != nil {
		return nil, apierr.NotFound("adaptation plan")
	}
	return plan, nil
}

func (s *adaptationService) List(ctx context.Context, status *types.PlanStatus, limit, offset int) ([]*types.AdaptationPlan, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, apierr.Unauthenticated()
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.repo.ListByUser(ctx, nil, rd.TenantID, rd.UserID, status, limit, offset)
}

func (s *adaptationService) Profile(ctx context.Context) (*types.PersonalizationProfile, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, apierr.Unauthenticated()
	}
	return s.profileRepo.GetOrCreate(ctx, nil, rd.TenantID, rd.UserID)
}
