package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/quantumlife-hq/horizon-backend/internal/logger"
	"github.com/quantumlife-hq/horizon-backend/internal/types"
)

type SnapshotRepo interface {
	Create(ctx context.Context, tx *gorm.DB, row *types.PersonalizationSnapshot) (*types.PersonalizationSnapshot, error)
	GetByID(ctx context.Context, tx *gorm.DB, tenantID, userID, id uuid.UUID) (*types.PersonalizationSnapshot, error)
	PruneExpired(ctx context.Context, tx *gorm.DB, now time.Time) (int64, error)
}

type snapshotRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSnapshotRepo(db *gorm.DB, baseLog *logger.Logger) SnapshotRepo {
	return &snapshotRepo{db: db, log: baseLog.With("repo", "SnapshotRepo")}
}

func (r *snapshotRepo) Create(ctx context.Context, tx *gorm.DB, row *types.PersonalizationSnapshot) (*types.PersonalizationSnapshot, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *snapshotRepo) GetByID(ctx context.Context, tx *gorm.DB, tenantID, userID, id uuid.UUID) (*types.PersonalizationSnapshot, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	row := &types.PersonalizationSnapshot{}
	err := transaction.WithContext(ctx).
		Where("tenant_id = ? AND user_id = ? AND id = ?", tenantID, userID, id).
		First(row).Error
	if err != nil {
		return nil, err
	}
	return row, nil
}

// PruneExpired deletes snapshots past retention, but only for plans that can
// no longer roll back (terminal, or rollback window closed).
func (r *snapshotRepo) PruneExpired(ctx context.Context, tx *gorm.DB, now time.Time) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(ctx).
		Where("expires_at <= ?", now).
		Where("plan_id NOT IN (?)", transaction.
			Model(&types.AdaptationPlan{}).
			Select("id").
			Where("status = ? AND can_rollback = ?", types.PlanStatusApplied, true)).
		Delete(&types.PersonalizationSnapshot{})
	return res.RowsAffected, res.Error
}
