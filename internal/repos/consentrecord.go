package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/quantumlife-hq/horizon-backend/internal/logger"
	"github.com/quantumlife-hq/horizon-backend/internal/types"
)

type ConsentRecordRepo interface {
	GetByTopic(ctx context.Context, tx *gorm.DB, tenantID, userID uuid.UUID, topic string) (*types.ConsentRecord, error)
	ListByUser(ctx context.Context, tx *gorm.DB, tenantID, userID uuid.UUID) ([]*types.ConsentRecord, error)
	Upsert(ctx context.Context, tx *gorm.DB, row *types.ConsentRecord) (*types.ConsentRecord, error)
}

type consentRecordRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewConsentRecordRepo(db *gorm.DB, baseLog *logger.Logger) ConsentRecordRepo {
	return &consentRecordRepo{db: db, log: baseLog.With("repo", "ConsentRecordRepo")}
}

func (r *consentRecordRepo) GetByTopic(ctx context.Context, tx *gorm.DB, tenantID, userID uuid.UUID, topic string) (*types.ConsentRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	row := &types.ConsentRecord{}
	err := transaction.WithContext(ctx).
		Where("tenant_id = ? AND user_id = ? AND topic = ?", tenantID, userID, topic).
		First(row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row, nil
}

func (r *consentRecordRepo) ListByUser(ctx context.Context, tx *gorm.DB, tenantID, userID uuid.UUID) ([]*types.ConsentRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.ConsentRecord
	if err := transaction.WithContext(ctx).
		Where("tenant_id = ? AND user_id = ?", tenantID, userID).
		Order("topic ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *consentRecordRepo) Upsert(ctx context.Context, tx *gorm.DB, row *types.ConsentRecord) (*types.ConsentRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	existing, err := r.GetByTopic(ctx, transaction, row.TenantID, row.UserID, row.Topic)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if existing == nil {
		if row.ID == uuid.Nil {
			row.ID = uuid.New()
		}
		row.CreatedAt = now
		row.UpdatedAt = now
		if err := transaction.WithContext(ctx).Create(row).Error; err != nil {
			return nil, err
		}
		return row, nil
	}
	row.ID = existing.ID
	row.CreatedAt = existing.CreatedAt
	row.UpdatedAt = now
	if err := transaction.WithContext(ctx).
		Model(&types.ConsentRecord{}).
		Where("id = ?", existing.ID).
		Updates(map[string]any{
			"status":     row.Status,
			"reversible": row.Reversible,
			"expires_at": row.ExpiresAt,
			"updated_at": now,
		}).Error; err != nil {
		return nil, err
	}
	return row, nil
}
