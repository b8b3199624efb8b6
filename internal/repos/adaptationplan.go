package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/quantumlife-hq/horizon-backend/internal/logger"
	"github.com/quantumlife-hq/horizon-backend/internal/types"
)

type AdaptationPlanRepo interface {
	Create(ctx context.Context, tx *gorm.DB, row *types.AdaptationPlan) (*types.AdaptationPlan, error)
	GetByID(ctx context.Context, tx *gorm.DB, tenantID, userID, id uuid.UUID) (*types.AdaptationPlan, error)
	ListByUser(ctx context.Context, tx *gorm.DB, tenantID, userID uuid.UUID, status *types.PlanStatus, limit, offset int) ([]*types.AdaptationPlan, error)
	UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, from, to types.PlanStatus, extra map[string]any) (int64, error)
	CloseRollbackWindows(ctx context.Context, tx *gorm.DB, now time.Time) (int64, error)
}

type adaptationPlanRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAdaptationPlanRepo(db *gorm.DB, baseLog *logger.Logger) AdaptationPlanRepo {
	return &adaptationPlanRepo{db: db, log: baseLog.With("repo", "AdaptationPlanRepo")}
}

func (r *adaptationPlanRepo) Create(ctx context.Context, tx *gorm.DB, row *types.AdaptationPlan) (*types.AdaptationPlan, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *adaptationPlanRepo) GetByID(ctx context.Context, tx *gorm.DB, tenantID, userID, id uuid.UUID) (*types.AdaptationPlan, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	row := &types.AdaptationPlan{}
	err := transaction.WithContext(ctx).
		Where("tenant_id = ? AND user_id = ? AND id = ?", tenantID, userID, id).
		First(row).Error
	if err != nil {
		return nil, err
	}
	return row, nil
}

func (r *adaptationPlanRepo) ListByUser(ctx context.Context, tx *gorm.DB, tenantID, userID uuid.UUID, status *types.PlanStatus, limit, offset int) ([]*types.AdaptationPlan, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.AdaptationPlan
	q := transaction.WithContext(ctx).
		Where("tenant_id = ? AND user_id = ?", tenantID, userID)
	if status != nil {
		q = q.Where("status = ?", *status)
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

func (r *adaptationPlanRepo) UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, from, to types.PlanStatus, extra map[string]any) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	updates := map[string]any{"status": to, "updated_at": time.Now().UTC()}
	for k, v := range extra {
		updates[k] = v
	}
	res := transaction.WithContext(ctx).
		Model(&types.AdaptationPlan{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	return res.RowsAffected, res.Error
}

// CloseRollbackWindows flips can_rollback off once rollback_until has
// passed, which makes applied a terminal state for those plans.
func (r *adaptationPlanRepo) CloseRollbackWindows(ctx context.Context, tx *gorm.DB, now time.Time) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(ctx).
		Model(&types.AdaptationPlan{}).
		Where("status = ? AND can_rollback = ? AND rollback_until IS NOT NULL AND rollback_until <= ?", types.PlanStatusApplied, true, now).
		Updates(map[string]any{"can_rollback": false, "updated_at": now})
	return res.RowsAffected, res.Error
}
