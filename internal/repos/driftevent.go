package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/quantumlife-hq/horizon-backend/internal/logger"
	"github.com/quantumlife-hq/horizon-backend/internal/types"
)

type DriftEventRepo interface {
	Create(ctx context.Context, tx *gorm.DB, row *types.DriftEvent) (*types.DriftEvent, error)
	GetByID(ctx context.Context, tx *gorm.DB, tenantID, userID, id uuid.UUID) (*types.DriftEvent, error)
	ListByUser(ctx context.Context, tx *gorm.DB, tenantID, userID uuid.UUID, domain *types.Domain, limit, offset int) ([]*types.DriftEvent, error)
	ListSince(ctx context.Context, tx *gorm.DB, tenantID, userID uuid.UUID, since time.Time) ([]*types.DriftEvent, error)
	ListByDomainSince(ctx context.Context, tx *gorm.DB, tenantID, userID uuid.UUID, domain types.Domain, since time.Time) ([]*types.DriftEvent, error)
	Acknowledge(ctx context.Context, tx *gorm.DB, tenantID, userID, id uuid.UUID, response string) (int64, error)
}

type driftEventRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDriftEventRepo(db *gorm.DB, baseLog *logger.Logger) DriftEventRepo {
	return &driftEventRepo{db: db, log: baseLog.With("repo", "DriftEventRepo")}
}

func (r *driftEventRepo) Create(ctx context.Context, tx *gorm.DB, row *types.DriftEvent) (*types.DriftEvent, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *driftEventRepo) GetByID(ctx context.Context, tx *gorm.DB, tenantID, userID, id uuid.UUID) (*types.DriftEvent, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	row := &types.DriftEvent{}
	err := transaction.WithContext(ctx).
		Where("tenant_id = ? AND user_id = ? AND id = ?", tenantID, userID, id).
		First(row).Error
	if err != nil {
		return nil, err
	}
	return row, nil
}

func (r *driftEventRepo) ListByUser(ctx context.Context, tx *gorm.DB, tenantID, userID uuid.UUID, domain *types.Domain, limit, offset int) ([]*types.DriftEvent, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.DriftEvent
	q := transaction.WithContext(ctx).
		Where("tenant_id = ? AND user_id = ?", tenantID, userID)
	if domain != nil {
		q = q.Where("domain = ?", *domain)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	if err := q.Order("created_at DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *driftEventRepo) ListSince(ctx context.Context, tx *gorm.DB, tenantID, userID uuid.UUID, since time.Time) ([]*types.DriftEvent, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.DriftEvent
	if err := transaction.WithContext(ctx).
		Where("tenant_id = ? AND user_id = ? AND created_at >= ?", tenantID, userID, since).
		Order("created_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *driftEventRepo) ListByDomainSince(ctx context.Context, tx *gorm.DB, tenantID, userID uuid.UUID, domain types.Domain, since time.Time) ([]*types.DriftEvent, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.DriftEvent
	if err := transaction.WithContext(ctx).
		Where("tenant_id = ? AND user_id = ? AND domain = ? AND created_at >= ?", tenantID, userID, domain, since).
		Order("created_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *driftEventRepo) Acknowledge(ctx context.Context, tx *gorm.DB, tenantID, userID, id uuid.UUID, response string) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(ctx).
		Model(&types.DriftEvent{}).
		Where("tenant_id = ? AND user_id = ? AND id = ?", tenantID, userID, id).
		Updates(map[string]any{
			"acknowledged_by_user": true,
			"user_response":        response,
			"updated_at":           time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}
