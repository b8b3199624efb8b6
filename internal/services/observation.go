package services

import (
	"context"
	"fmt"
	"regexp"
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

var observationKeyRe = regexp.MustCompile(`^[a-z0-9_\.]{2,64}$`)

type ObservationInput struct {
	Domain       string     `json:"domain"`
	Key          string     `json:"key"`
	Value        string     `json:"value"`
	NumericValue *float64   `json:"numeric_value,omitempty"`
	Source       string     `json:"source"`
	Confidence   int        `json:"confidence"`
	RecordedAt   *time.Time `json:"recorded_at,omitempty"`
}

type ObservationService interface {
	Record(ctx context.Context, tx *gorm.DB, inputs []ObservationInput) ([]*types.Observation, error)
	Query(ctx context.Context, domain *types.Domain, since time.Time, limit, offset int) ([]*types.Observation, error)
}

type observationService struct {
	db   *gorm.DB
	log  *logger.Logger
	repo repos.ObservationRepo
}

func NewObservationService(db *gorm.DB, baseLog *logger.Logger, repo repos.ObservationRepo) ObservationService {
	return &observationService{
		db:   db,
		log:  baseLog.With("service", "ObservationService"),
		repo: repo,
	}
}

func (s *observationService) Record(ctx context.Context, tx *gorm.DB, inputs []ObservationInput) ([]*types.Observation, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, apierr.Unauthenticated()
	}
	if len(inputs) == 0 {
		return []*types.Observation{}, nil
	}
	if len(inputs) > 200 {
		return nil, apierr.InvalidInput(fmt.Errorf("too many observations (max 200)"))
	}
	now := time.Now().UTC()
	rows := make([]*types.Observation, 0, len(inputs))
	for i, in := range inputs {
		domain := types.Domain(strings.TrimSpace(strings.ToLower(in.Domain)))
		if !types.ValidDomain(domain) {
			return nil, apierr.InvalidInput(fmt.Errorf("invalid domain at index %d", i))
		}
		source := types.ObservationSource(strings.TrimSpace(strings.ToLower(in.Source)))
		if !types.ValidSource(source) {
			return nil, apierr.InvalidInput(fmt.Errorf("invalid source at index %d", i))
		}
		key := strings.TrimSpace(strings.ToLower(in.Key))
		if !observationKeyRe.MatchString(key) {
			return nil, apierr.InvalidInput(fmt.Errorf("invalid key at index %d", i))
		}
		confidence := in.Confidence
		if confidence < 0 {
			confidence = 0
		}
		if confidence > 100 {
			confidence = 100
		}
		recorded := now
		if in.RecordedAt != nil && !in.RecordedAt.IsZero() {
			recorded = in.RecordedAt.UTC()
		}
		rows = append(rows, &types.Observation{
			ID:           uuid.New(),
			TenantID:     rd.TenantID,
			UserID:       rd.UserID,
			Domain:       domain,
			Key:          key,
			Value:        strings.TrimSpace(in.Value),
			NumericValue: in.NumericValue,
			Source:       source,
			Confidence:   confidence,
			RecordedAt:   recorded,
			CreatedAt:    now,
		})
	}
	transaction := tx
	if transaction == nil {
		transaction = s.db
	}
	created, err := s.repo.Create(ctx, transaction, rows)
	if err != nil {
		s.log.Warn("observation record failed", "error", err)
		return nil, err
	}
	return created, nil
}

func (s *observationService) Query(ctx context.Context, domain *types.Domain, since time.Time, limit, offset int) ([]*types.Observation, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, apierr.Unauthenticated()
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.repo.ListByUser(ctx, nil, rd.TenantID, rd.UserID, domain, since, limit, offset)
}
