package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/quantumlife-hq/horizon-backend/internal/apierr"
	"github.com/quantumlife-hq/horizon-backend/internal/logger"
	"github.com/quantumlife-hq/horizon-backend/internal/repos"
	"github.com/quantumlife-hq/horizon-backend/internal/requestdata"
	"github.com/quantumlife-hq/horizon-backend/internal/types"
)

const (
	defaultSuggestionCooldownDays = 14
	suggestionTTLDays             = 7
)

const mitigationDisclaimer = "This is a pattern observation, not medical advice. If something feels off, talk to a professional you trust."

type SuggestionService interface {
	// GenerateForWindow produces at most one low-friction suggestion for an
	// open forecast window. Repeat calls while a matching suggestion is active
	// return the existing one; when the window's content has changed the stale
	// suggestion is marked superseded and replaced. A matching fingerprint
	// inside the cooldown period is rejected with the remaining days.
	GenerateForWindow(ctx context.Context, windowID uuid.UUID) (*types.Suggestion, error)
	GenerateForSignal(ctx context.Context, signalID uuid.UUID) (*types.Suggestion, error)
	Get(ctx context.Context, id uuid.UUID) (*types.Suggestion, error)
	List(ctx context.Context, filters repos.SuggestionFilters, limit, offset int) ([]*types.Suggestion, error)
	Transition(ctx context.Context, id uuid.UUID, to types.SuggestionStatus) (*types.Suggestion, error)
}

type suggestionService struct {
	db           *gorm.DB
	log          *logger.Logger
	gate         Gate
	windowRepo   repos.WindowRepo
	signalRepo   repos.SignalRepo
	repo         repos.SuggestionRepo
	emitter      EventEmitter
	cooldownDays int
}

func NewSuggestionService(db *gorm.DB, baseLog *logger.Logger, gate Gate, windowRepo repos.WindowRepo, signalRepo repos.SignalRepo, repo repos.SuggestionRepo, emitter EventEmitter, cooldownDays int) SuggestionService {
	if cooldownDays <= 0 {
		cooldownDays = defaultSuggestionCooldownDays
	}
	return &suggestionService{
		db:           db,
		log:          baseLog.With("service", "SuggestionService"),
		gate:         gate,
		windowRepo:   windowRepo,
		signalRepo:   signalRepo,
		repo:         repo,
		emitter:      emitter,
		cooldownDays: cooldownDays,
	}
}

// SuggestionFingerprint is the stable identity of a suggestion: domain plus
// normalized adjustment text, hashed. Wording tweaks that normalize to the
// same text share a fingerprint and a cooldown.
func SuggestionFingerprint(domain types.Domain, adjustment string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(adjustment)), " ")
	sum := sha256.Sum256([]byte(string(domain) + "\n" + normalized))
	return hex.EncodeToString(sum[:])
}

func (s *suggestionService) GenerateForWindow(ctx context.Context, windowID uuid.UUID) (*types.Suggestion, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, apierr.Unauthenticated()
	}
	window, err := s.windowRepo.GetByID(ctx, nil, rd.TenantID, rd.UserID, windowID)
	if err != nil {
		return nil, apierr.NotFound("forecast window")
	}
	switch window.Status {
	case types.WindowStatusUpcoming, types.WindowStatusActive, types.WindowStatusAcknowledged:
	default:
		return nil, apierr.InvalidInput(fmt.Errorf("window %s is %s, not open", windowID, window.Status))
	}

	kind := types.SuggestionMitigation
	if window.WindowType == types.WindowOpportunity {
		kind = types.SuggestionReinforcement
	}
	adjustment, rationale := windowCopy(window)
	return s.generate(ctx, rd, generateParams{
		kind:        kind,
		domain:      window.Domain,
		confidence:  window.Confidence,
		adjustment:  adjustment,
		rationale:   rationale,
		triggerWindow: &window.ID,
	})
}

func (s *suggestionService) GenerateForSignal(ctx context.Context, signalID uuid.UUID) (*types.Suggestion, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, apierr.Unauthenticated()
	}
	signal, err := s.signalRepo.GetByID(ctx, nil, rd.TenantID, rd.UserID, signalID)
	if err != nil {
		return nil, apierr.NotFound("signal")
	}
	if signal.Status != types.SignalStatusActive {
		return nil, apierr.InvalidInput(fmt.Errorf("signal %s is %s, not active", signalID, signal.Status))
	}

	kind := types.SuggestionMitigation
	if signal.SignalType == types.SignalPositiveMomentum {
		kind = types.SuggestionReinforcement
	}
	domain := domainFor(signal.SignalType)
	adjustment, rationale := signalCopy(signal)
	return s.generate(ctx, rd, generateParams{
		kind:          kind,
		domain:        domain,
		confidence:    signal.Confidence,
		adjustment:    adjustment,
		rationale:     rationale,
		triggerSignal: &signal.ID,
	})
}

type generateParams struct {
	kind          types.SuggestionKind
	domain        types.Domain
	confidence    int
	adjustment    string
	rationale     string
	triggerWindow *uuid.UUID
	triggerSignal *uuid.UUID
}

func (s *suggestionService) generate(ctx context.Context, rd *requestdata.RequestData, p generateParams) (*types.Suggestion, error) {
	verdict, err := s.gate.Check(ctx, "suggestion_generation", p.domain)
	if err != nil {
		return nil, err
	}
	if !verdict.Allowed {
		return nil, verdict.Deny()
	}

	now := time.Now().UTC()
	fingerprint := SuggestionFingerprint(p.domain, p.adjustment)

	existing, err := s.repo.ActiveByTrigger(ctx, nil, rd.TenantID, rd.UserID, p.triggerWindow, p.triggerSignal)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.Fingerprint == fingerprint {
		return existing, nil
	}

	prior, err := s.repo.LatestByFingerprint(ctx, nil, rd.TenantID, rd.UserID, p.domain, fingerprint)
	if err != nil {
		return nil, err
	}
	if prior != nil {
		elapsed := now.Sub(prior.CreatedAt)
		cooldown := time.Duration(s.cooldownDays) * 24 * time.Hour
		if elapsed < cooldown {
			remaining := int(math.Ceil((cooldown - elapsed).Hours() / 24))
			return nil, apierr.CooldownActive(remaining)
		}
	}

	// The trigger still has an unresolved suggestion but its content no longer
	// matches; the stale one is retired in favor of the replacement.
	if existing != nil {
		if _, err := s.repo.UpdateStatus(ctx, nil, existing.ID, types.SuggestionStatusActive, types.SuggestionStatusSuperseded); err != nil {
			return nil, err
		}
		s.emitter.Emit(ctx, Event{
			TenantID: rd.TenantID,
			Subject:  rd.UserID,
			Type:     "suggestion.superseded",
			Status:   string(types.SuggestionStatusSuperseded),
			Payload:  map[string]any{"suggestion_id": existing.ID, "domain": existing.Domain},
		})
	}

	row := &types.Suggestion{
		ID:                  uuid.New(),
		TenantID:            rd.TenantID,
		UserID:              rd.UserID,
		Kind:                p.kind,
		Domain:              p.domain,
		Confidence:          clampInt(p.confidence, 0, 95),
		SuggestedAdjustment: p.adjustment,
		Rationale:           p.rationale,
		EffortLevel:         "low",
		Fingerprint:         fingerprint,
		TriggerWindowID:     p.triggerWindow,
		TriggerSignalID:     p.triggerSignal,
		Status:              types.SuggestionStatusActive,
		ExpiresAt:           now.AddDate(0, 0, suggestionTTLDays),
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if p.kind == types.SuggestionMitigation {
		row.SafetyDisclaimer = mitigationDisclaimer
	}

	created, err := s.repo.Create(ctx, nil, row)
	if err != nil {
		return nil, err
	}
	s.emitter.Emit(ctx, Event{
		TenantID: rd.TenantID,
		Subject:  rd.UserID,
		Type:     "suggestion.generated",
		Status:   string(created.Kind),
		Payload:  map[string]any{"suggestion_id": created.ID, "domain": created.Domain},
	})
	return created, nil
}

func windowCopy(window *types.ForecastWindow) (adjustment, rationale string) {
	if window.WindowType == types.WindowOpportunity {
		adjustment = fmt.Sprintf("Lean into the current momentum in your %s patterns with one small, repeatable step.", window.Domain)
		rationale = fmt.Sprintf("An opportunity window is open in the %s domain through %s.", window.Domain, window.EndTime.Format("Jan 2"))
		return
	}
	switch window.RecommendedMode {
	case types.ModeGentlePrep:
		adjustment = fmt.Sprintf("Block a short buffer in the next few days to reduce load in your %s routine.", window.Domain)
	case types.ModeReflection:
		adjustment = fmt.Sprintf("Take a few minutes to review what changed recently in your %s patterns.", window.Domain)
	default:
		adjustment = fmt.Sprintf("Keep a light eye on your %s patterns this week.", window.Domain)
	}
	rationale = fmt.Sprintf("A %s-horizon risk window is open in the %s domain through %s.", window.TimeHorizon, window.Domain, window.EndTime.Format("Jan 2"))
	return
}

func signalCopy(signal *types.Signal) (adjustment, rationale string) {
	if signal.SignalType == types.SignalPositiveMomentum {
		adjustment = "Note what has been working lately and repeat one piece of it this week."
		rationale = fmt.Sprintf("Positive momentum detected: %s.", signal.DetectedChange)
		return
	}
	switch signal.SuggestedAction {
	case types.ActionCheckIn:
		adjustment = "Check in with yourself on how the last week has felt, no fixing required."
	case types.ActionReflection:
		adjustment = "Spend a few quiet minutes reflecting on the recent shift in your routine."
	default:
		adjustment = "Nothing to do right now, just worth being aware of the recent pattern."
	}
	rationale = fmt.Sprintf("Signal observed: %s.", signal.DetectedChange)
	return
}

func (s *suggestionService) Get(ctx context.Context, id uuid.UUID) (*types.Suggestion, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, apierr.Unauthenticated()
	}
	row, err := s.repo.GetByID(ctx, nil, rd.TenantID, rd.UserID, id)
	if err != nil {
		return nil, apierr.NotFound("suggestion")
	}
	return row, nil
}

func (s *suggestionService) List(ctx context.Context, filters repos.SuggestionFilters, limit, offset int) ([]*types.Suggestion, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, apierr.Unauthenticated()
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.repo.ListByUser(ctx, nil, rd.TenantID, rd.UserID, filters, limit, offset)
}

func (s *suggestionService) Transition(ctx context.Context, id uuid.UUID, to types.SuggestionStatus) (*types.Suggestion, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, apierr.Unauthenticated()
	}
	current, err := s.repo.GetByID(ctx, nil, rd.TenantID, rd.UserID, id)
	if err != nil {
		return nil, apierr.NotFound("suggestion")
	}
	if !types.SuggestionCanTransition(current.Status, to) {
		return nil, apierr.InvalidStateTransition("suggestion", string(current.Status), string(to))
	}
	affected, err := s.repo.UpdateStatus(ctx, nil, id, current.Status, to)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		latest, rerr := s.repo.GetByID(ctx, nil, rd.TenantID, rd.UserID, id)
		if rerr != nil {
			return nil, apierr.NotFound("suggestion")
		}
		return nil, apierr.InvalidStateTransition("suggestion", string(latest.Status), string(to))
	}
	return s.repo.GetByID(ctx, nil, rd.TenantID, rd.UserID, id)
}
