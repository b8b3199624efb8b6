package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/quantumlife-hq/horizon-backend/internal/apierr"
	"github.com/quantumlife-hq/horizon-backend/internal/config"
	"github.com/quantumlife-hq/horizon-backend/internal/logger"
	"github.com/quantumlife-hq/horizon-backend/internal/repos"
	"github.com/quantumlife-hq/horizon-backend/internal/requestdata"
	"github.com/quantumlife-hq/horizon-backend/internal/types"
)

// GateVerdict is the outcome of a policy check. A denied verdict carries the
// boundary type and a reason the caller can surface or log.
type GateVerdict struct {
	Allowed      bool               `json:"allowed"`
	BoundaryType types.BoundaryType `json:"boundary_type"`
	Topic        string             `json:"topic"`
	Reason       string             `json:"reason,omitempty"`
}

// Deny converts a denied verdict into the API error the caller returns.
func (v *GateVerdict) Deny() error {
	return apierr.BoundaryDenied(string(v.BoundaryType), v.Reason)
}

// Gate is the narrow interface generators consult before emitting anything
// outward. Every check is audited regardless of outcome.
type Gate interface {
	Check(ctx context.Context, action string, domain types.Domain) (*GateVerdict, error)
}

type BoundaryProfileInput struct {
	PrivacyLevel          *int    `json:"privacy_level,omitempty"`
	HealthSensitivity     *int    `json:"health_sensitivity,omitempty"`
	MonetizationTolerance *int    `json:"monetization_tolerance,omitempty"`
	SocialExposure        *int    `json:"social_exposure,omitempty"`
	EmotionalSafety       *string `json:"emotional_safety,omitempty"`
}

type ConsentInput struct {
	Topic      string     `json:"topic"`
	Status     string     `json:"status"`
	Reversible *bool      `json:"reversible,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

type BoundaryService interface {
	Gate
	GetProfile(ctx context.Context) (*types.BoundaryProfile, error)
	UpdateProfile(ctx context.Context, input BoundaryProfileInput) (*types.BoundaryProfile, error)
	RecordConsent(ctx context.Context, input ConsentInput) (*types.ConsentRecord, error)
	ListConsents(ctx context.Context) ([]*types.ConsentRecord, error)
}

type boundaryService struct {
	db          *gorm.DB
	log         *logger.Logger
	policy      *config.GatePolicy
	profileRepo repos.BoundaryProfileRepo
	consentRepo repos.ConsentRecordRepo
	emitter     EventEmitter
}

func NewBoundaryService(db *gorm.DB, baseLog *logger.Logger, policy *config.GatePolicy, profileRepo repos.BoundaryProfileRepo, consentRepo repos.ConsentRecordRepo, emitter EventEmitter) BoundaryService {
	return &boundaryService{
		db:          db,
		log:         baseLog.With("service", "BoundaryService"),
		policy:      policy,
		profileRepo: profileRepo,
		consentRepo: consentRepo,
		emitter:     emitter,
	}
}

// Check resolves topic policy, emotional safety, and consent into a single
// verdict. Missing rows never fail the check: no profile means defaults, no
// consent record means unknown.
func (s *boundaryService) Check(ctx context.Context, action string, domain types.Domain) (*GateVerdict, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, apierr.Unauthenticated()
	}
	if !types.ValidDomain(domain) {
		return nil, apierr.InvalidInput(fmt.Errorf("invalid domain %q", domain))
	}

	topic := s.policy.TopicFor(domain)
	verdict := s.evaluate(ctx, rd, topic, domain)

	status := "allowed"
	if !verdict.Allowed {
		status = "denied"
	}
	s.emitter.Emit(ctx, Event{
		TenantID: rd.TenantID,
		Subject:  rd.UserID,
		Type:     "gate.check",
		Status:   status,
		Payload: map[string]any{
			"action":        action,
			"domain":        domain,
			"topic":         verdict.Topic,
			"boundary_type": verdict.BoundaryType,
			"reason":        verdict.Reason,
		},
	})
	return verdict, nil
}

func (s *boundaryService) evaluate(ctx context.Context, rd *requestdata.RequestData, topic config.TopicPolicy, domain types.Domain) *GateVerdict {
	now := time.Now().UTC()

	profile, err := s.profileRepo.GetByUser(ctx, nil, rd.TenantID, rd.UserID)
	if err != nil {
		s.log.Warn("boundary profile lookup failed, denying", "error", err)
		return &GateVerdict{Allowed: false, BoundaryType: types.BoundaryHard, Topic: topic.Name, Reason: "boundary profile unavailable"}
	}
	safety := types.SafetySteady
	if profile != nil {
		safety = profile.EmotionalSafety
	}

	// Emotional safety overrides everything for autonomy-sensitive domains:
	// no generation, not even a consent prompt, while the user is vulnerable.
	if (safety == types.SafetyVulnerable || safety == types.SafetyFragile) && s.policy.IsAutonomySensitive(domain) {
		return &GateVerdict{
			Allowed:      false,
			BoundaryType: types.BoundaryHard,
			Topic:        topic.Name,
			Reason:       fmt.Sprintf("emotional safety %s suppresses %s actions", safety, domain),
		}
	}

	consent, err := s.consentRepo.GetByTopic(ctx, nil, rd.TenantID, rd.UserID, topic.Name)
	if err != nil {
		s.log.Warn("consent lookup failed, denying", "error", err)
		return &GateVerdict{Allowed: false, BoundaryType: types.BoundaryHard, Topic: topic.Name, Reason: "consent record unavailable"}
	}
	status := consent.EffectiveStatus(now)

	switch status {
	case types.ConsentDenied, types.ConsentRevoked:
		return &GateVerdict{
			Allowed:      false,
			BoundaryType: types.BoundaryTopicBlocked,
			Topic:        topic.Name,
			Reason:       fmt.Sprintf("consent %s for topic %s", status, topic.Name),
		}
	case types.ConsentSoftRefusal:
		return &GateVerdict{
			Allowed:      false,
			BoundaryType: types.BoundarySoft,
			Topic:        topic.Name,
			Reason:       fmt.Sprintf("soft refusal on topic %s", topic.Name),
		}
	case types.ConsentGranted:
		return &GateVerdict{Allowed: true, BoundaryType: types.BoundarySafeToProceed, Topic: topic.Name}
	}

	// unknown or expired: absence of consent is never a grant above low
	// sensitivity.
	switch topic.Sensitivity {
	case config.SensitivityLow:
		return &GateVerdict{Allowed: true, BoundaryType: types.BoundarySafeToProceed, Topic: topic.Name}
	case config.SensitivityMedium:
		return &GateVerdict{
			Allowed:      false,
			BoundaryType: types.BoundaryConsentRequired,
			Topic:        topic.Name,
			Reason:       fmt.Sprintf("topic %s requires consent (%s)", topic.Name, status),
		}
	default:
		return &GateVerdict{
			Allowed:      false,
			BoundaryType: types.BoundaryHard,
			Topic:        topic.Name,
			Reason:       fmt.Sprintf("high-sensitivity topic %s without granted consent", topic.Name),
		}
	}
}

func (s *boundaryService) GetProfile(ctx context.Context) (*types.BoundaryProfile, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, apierr.Unauthenticated()
	}
	profile, err := s.profileRepo.GetByUser(ctx, nil, rd.TenantID, rd.UserID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return s.defaultProfile(rd), nil
	}
	return profile, nil
}

func (s *boundaryService) defaultProfile(rd *requestdata.RequestData) *types.BoundaryProfile {
	prov, _ := json.Marshal(map[string]types.Provenance{
		"privacy_level":          types.ProvenanceDefault,
		"health_sensitivity":     types.ProvenanceDefault,
		"monetization_tolerance": types.ProvenanceDefault,
		"social_exposure":        types.ProvenanceDefault,
		"emotional_safety":       types.ProvenanceDefault,
	})
	return &types.BoundaryProfile{
		TenantID:              rd.TenantID,
		UserID:                rd.UserID,
		PrivacyLevel:          50,
		HealthSensitivity:     50,
		MonetizationTolerance: 50,
		SocialExposure:        50,
		EmotionalSafety:       types.SafetySteady,
		Provenance:            datatypes.JSON(prov),
	}
}

func (s *boundaryService) UpdateProfile(ctx context.Context, input BoundaryProfileInput) (*types.BoundaryProfile, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, apierr.Unauthenticated()
	}
	current, err := s.GetProfile(ctx)
	if err != nil {
		return nil, err
	}

	prov := map[string]types.Provenance{}
	if len(current.Provenance) > 0 {
		_ = json.Unmarshal(current.Provenance, &prov)
	}

	setLevel := func(field string, dst *int, v *int) error {
		if v == nil {
			return nil
		}
		if *v < 0 || *v > 100 {
			return apierr.InvalidInput(fmt.Errorf("%s must be 0..100", field))
		}
		*dst = *v
		prov[field] = types.ProvenanceExplicit
		return nil
	}
	if err := setLevel("privacy_level", &current.PrivacyLevel, input.PrivacyLevel); err != nil {
		return nil, err
	}
	if err := setLevel("health_sensitivity", &current.HealthSensitivity, input.HealthSensitivity); err != nil {
		return nil, err
	}
	if err := setLevel("monetization_tolerance", &current.MonetizationTolerance, input.MonetizationTolerance); err != nil {
		return nil, err
	}
	if err := setLevel("social_exposure", &current.SocialExposure, input.SocialExposure); err != nil {
		return nil, err
	}
	if input.EmotionalSafety != nil {
		level := types.EmotionalSafetyLevel(strings.TrimSpace(strings.ToLower(*input.EmotionalSafety)))
		switch level {
		case types.SafetySteady, types.SafetySensitive, types.SafetyVulnerable, types.SafetyFragile:
		default:
			return nil, apierr.InvalidInput(fmt.Errorf("invalid emotional_safety %q", *input.EmotionalSafety))
		}
		current.EmotionalSafety = level
		prov["emotional_safety"] = types.ProvenanceExplicit
	}

	raw, _ := json.Marshal(prov)
	current.Provenance = datatypes.JSON(raw)

	updated, err := s.profileRepo.Upsert(ctx, nil, current)
	if err != nil {
		return nil, err
	}
	s.emitter.Emit(ctx, Event{
		TenantID: rd.TenantID,
		Subject:  rd.UserID,
		Type:     "boundary.profile_updated",
		Status:   "ok",
		Payload:  map[string]any{"emotional_safety": updated.EmotionalSafety},
	})
	return updated, nil
}

func (s *boundaryService) RecordConsent(ctx context.Context, input ConsentInput) (*types.ConsentRecord, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, apierr.Unauthenticated()
	}
	topic := strings.TrimSpace(strings.ToLower(input.Topic))
	if topic == "" {
		return nil, apierr.InvalidInput(fmt.Errorf("topic is required"))
	}
	status := types.ConsentStatus(strings.TrimSpace(strings.ToLower(input.Status)))
	switch status {
	case types.ConsentGranted, types.ConsentDenied, types.ConsentSoftRefusal, types.ConsentRevoked:
	default:
		return nil, apierr.InvalidInput(fmt.Errorf("invalid consent status %q", input.Status))
	}

	reversible := true
	if input.Reversible != nil {
		reversible = *input.Reversible
	}
	row := &types.ConsentRecord{
		TenantID:   rd.TenantID,
		UserID:     rd.UserID,
		Topic:      topic,
		Status:     status,
		Reversible: reversible,
		ExpiresAt:  input.ExpiresAt,
	}
	saved, err := s.consentRepo.Upsert(ctx, nil, row)
	if err != nil {
		return nil, err
	}
	s.emitter.Emit(ctx, Event{
		TenantID: rd.TenantID,
		Subject:  rd.UserID,
		Type:     "consent.recorded",
		Status:   string(status),
		Payload:  map[string]any{"topic": topic},
	})
	return saved, nil
}

func (s *boundaryService) ListConsents(ctx context.Context) ([]*types.ConsentRecord, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, apierr.Unauthenticated()
	}
	return s.consentRepo.ListByUser(ctx, nil, rd.TenantID, rd.UserID)
}
