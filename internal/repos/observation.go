package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/quantumlife-hq/horizon-backend/internal/logger"
	"github.com/quantumlife-hq/horizon-backend/internal/types"
)

// ObservationRepo is append-only: there is deliberately no update or delete.
type ObservationRepo interface {
	Create(ctx context.Context, tx *gorm.DB, rows []*types.Observation) ([]*types.Observation, error)
	ListByUser(ctx context.Context, tx *gorm.DB, tenantID, userID uuid.UUID, domain *types.Domain, since time.Time, limit, offset int) ([]*types.Observation, error)
	ListNumericWindow(ctx context.Context, tx *gorm.DB, tenantID, userID uuid.UUID, domain types.Domain, key string, start, end time.Time) ([]*types.Observation, error)
	DistinctNumericKeys(ctx context.Context, tx *gorm.DB, tenantID, userID uuid.UUID, domain types.Domain, since time.Time) ([]string, error)
}

type observationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewObservationRepo(db *gorm.DB, baseLog *logger.Logger) ObservationRepo {
	return &observationRepo{db: db, log: baseLog.With("repo", "ObservationRepo")}
}

func (r *observationRepo) Create(ctx context.Context, tx *gorm.DB, rows []*types.Observation) ([]*types.Observation, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rows) == 0 {
		return []*types.Observation{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *observationRepo) ListByUser(ctx context.Context, tx *gorm.DB, tenantID, userID uuid.UUID, domain *types.Domain, since time.Time, limit, offset int) ([]*types.Observation, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Observation
	if userID == uuid.Nil {
		return results, nil
	}
	q := transaction.WithContext(ctx).
		Where("tenant_id = ? AND user_id = ?", tenantID, userID)
	if domain != nil {
		q = q.Where("domain = ?", *domain)
	}
	if !since.IsZero() {
		q = q.Where("recorded_at >= ?", since)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	if err := q.Order("recorded_at DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *observationRepo) ListNumericWindow(ctx context.Context, tx *gorm.DB, tenantID, userID uuid.UUID, domain types.Domain, key string, start, end time.Time) ([]*types.Observation, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Observation
	if err := transaction.WithContext(ctx).
		Where("tenant_id = ? AND user_id = ? AND domain = ? AND key = ?", tenantID, userID, domain, key).
		Where("numeric_value IS NOT NULL").
		Where("recorded_at >= ? AND recorded_at < ?", start, end).
		Order("recorded_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *observationRepo) DistinctNumericKeys(ctx context.Context, tx *gorm.DB, tenantID, userID uuid.UUID, domain types.Domain, since time.Time) ([]string, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var keys []string
	if err := transaction.WithContext(ctx).
		Model(&types.Observation{}).
		Where("tenant_id = ? AND user_id = ? AND domain = ?", tenantID, userID, domain).
		Where("numeric_value IS NOT NULL").
		Where("recorded_at >= ?", since).
		Distinct("key").
		Pluck("key", &keys).Error; err != nil {
		return nil, err
	}
	return keys, nil
}
