package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/quantumlife-hq/horizon-backend/internal/logger"
	"github.com/quantumlife-hq/horizon-backend/internal/types"
)

type WindowFilters struct {
	WindowType *types.WindowType
	Domain     *types.Domain
	Status     *types.WindowStatus
}

type WindowRepo interface {
	Create(ctx context.Context, tx *gorm.DB, row *types.ForecastWindow) (*types.ForecastWindow, error)
	GetByID(ctx context.Context, tx *gorm.DB, tenantID, userID, id uuid.UUID) (*types.ForecastWindow, error)
	ListByUser(ctx context.Context, tx *gorm.DB, tenantID, userID uuid.UUID, filters WindowFilters, limit, offset int) ([]*types.ForecastWindow, error)
	ListOpen(ctx context.Context, tx *gorm.DB, tenantID, userID uuid.UUID) ([]*types.ForecastWindow, error)
	ListHistorical(ctx context.Context, tx *gorm.DB, tenantID, userID uuid.UUID, limit int) ([]*types.ForecastWindow, error)
	UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, from, to types.WindowStatus) (int64, error)
	Invalidate(ctx context.Context, tx *gorm.DB, id uuid.UUID, from types.WindowStatus, reason string) (int64, error)
	PromoteDue(ctx context.Context, tx *gorm.DB, now time.Time) (int64, error)
	PassDue(ctx context.Context, tx *gorm.DB, now time.Time) (int64, error)
}

type windowRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewWindowRepo(db *gorm.DB, baseLog *logger.Logger) WindowRepo {
	return &windowRepo{db: db, log: baseLog.With("repo", "WindowRepo")}
}

func (r *windowRepo) Create(ctx context.Context, tx *gorm.DB, row *types.ForecastWindow) (*types.ForecastWindow, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := types.ValidateWindow(row); err != nil {
		return nil, err
	}
	if err := transaction.WithContext(ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *windowRepo) GetByID(ctx context.Context, tx *gorm.DB, tenantID, userID, id uuid.UUID) (*types.ForecastWindow, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	row := &types.ForecastWindow{}
	err := transaction.WithContext(ctx).
		Where("tenant_id = ? AND user_id = ? AND id = ?", tenantID, userID, id).
		First(row).Error
	if err != nil {
		return nil, err
	}
	return row, nil
}

func (r *windowRepo) ListByUser(ctx context.Context, tx *gorm.DB, tenantID, userID uuid.UUID, filters WindowFilters, limit, offset int) ([]*types.ForecastWindow, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.ForecastWindow
	q := transaction.WithContext(ctx).
		Where("tenant_id = ? AND user_id = ?", tenantID, userID)
	if filters.WindowType != nil {
		q = q.Where("window_type = ?", *filters.WindowType)
	}
	if filters.Domain != nil {
		q = q.Where("domain = ?", *filters.Domain)
	}
	if filters.Status != nil {
		q = q.Where("status = ?", *filters.Status)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	if err := q.Order("start_time DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *windowRepo) ListOpen(ctx context.Context, tx *gorm.DB, tenantID, userID uuid.UUID) ([]*types.ForecastWindow, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.ForecastWindow
	if err := transaction.WithContext(ctx).
		Where("tenant_id = ? AND user_id = ? AND status IN ?", tenantID, userID,
			[]types.WindowStatus{types.WindowStatusUpcoming, types.WindowStatusActive, types.WindowStatusAcknowledged}).
		Order("start_time ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *windowRepo) ListHistorical(ctx context.Context, tx *gorm.DB, tenantID, userID uuid.UUID, limit int) ([]*types.ForecastWindow, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.ForecastWindow
	q := transaction.WithContext(ctx).
		Where("tenant_id = ? AND user_id = ? AND status IN ?", tenantID, userID,
			[]types.WindowStatus{types.WindowStatusPassed, types.WindowStatusAcknowledged})
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Order("end_time DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *windowRepo) UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, from, to types.WindowStatus) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(ctx).
		Model(&types.ForecastWindow{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{"status": to, "updated_at": time.Now().UTC()})
	return res.RowsAffected, res.Error
}

func (r *windowRepo) Invalidate(ctx context.Context, tx *gorm.DB, id uuid.UUID, from types.WindowStatus, reason string) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(ctx).
		Model(&types.ForecastWindow{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{
			"status":              types.WindowStatusInvalidated,
			"invalidation_reason": reason,
			"updated_at":          time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}

func (r *windowRepo) PromoteDue(ctx context.Context, tx *gorm.DB, now time.Time) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(ctx).
		Model(&types.ForecastWindow{}).
		Where("status = ? AND start_time <= ? AND end_time > ?", types.WindowStatusUpcoming, now, now).
		Updates(map[string]any{"status": types.WindowStatusActive, "updated_at": now})
	return res.RowsAffected, res.Error
}

func (r *windowRepo) PassDue(ctx context.Context, tx *gorm.DB, now time.Time) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(ctx).
		Model(&types.ForecastWindow{}).
		Where("status IN ? AND end_time <= ?",
			[]types.WindowStatus{types.WindowStatusUpcoming, types.WindowStatusActive, types.WindowStatusAcknowledged}, now).
		Updates(map[string]any{"status": types.WindowStatusPassed, "updated_at": now})
	return res.RowsAffected, res.Error
}
