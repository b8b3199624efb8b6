package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/quantumlife-hq/horizon-backend/internal/logger"
	"github.com/quantumlife-hq/horizon-backend/internal/types"
)

type PersonalizationRepo interface {
	GetByUser(ctx context.Context, tx *gorm.DB, tenantID, userID uuid.UUID) (*types.PersonalizationProfile, error)
	GetOrCreate(ctx context.Context, tx *gorm.DB, tenantID, userID uuid.UUID) (*types.PersonalizationProfile, error)
	Update(ctx context.Context, tx *gorm.DB, row *types.PersonalizationProfile) error
}

type personalizationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPersonalizationRepo(db *gorm.DB, baseLog *logger.Logger) PersonalizationRepo {
	return &personalizationRepo{db: db, log: baseLog.With("repo", "PersonalizationRepo")}
}

func (r *personalizationRepo) GetByUser(ctx context.Context, tx *gorm.DB, tenantID, userID uuid.UUID) (*types.PersonalizationProfile, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	row := &types.PersonalizationProfile{}
	err := transaction.WithContext(ctx).
		Where("tenant_id = ? AND user_id = ?", tenantID, userID).
		First(row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row, nil
}

func (r *personalizationRepo) GetOrCreate(ctx context.Context, tx *gorm.DB, tenantID, userID uuid.UUID) (*types.PersonalizationProfile, error) {
	row, err := r.GetByUser(ctx, tx, tenantID, userID)
	if err != nil {
		return nil, err
	}
	if row != nil {
		return row, nil
	}
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	now := time.Now().UTC()
	row = &types.PersonalizationProfile{
		ID:        uuid.New(),
		TenantID:  tenantID,
		UserID:    userID,
		Settings:  datatypes.JSON([]byte(`{}`)),
		Version:   0,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := transaction.WithContext(ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *personalizationRepo) Update(ctx context.Context, tx *gorm.DB, row *types.PersonalizationProfile) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	row.UpdatedAt = time.Now().UTC()
	return transaction.WithContext(ctx).
		Model(&types.PersonalizationProfile{}).
		Where("id = ?", row.ID).
		Updates(map[string]any{
			"settings":   row.Settings,
			"version":    row.Version,
			"updated_at": row.UpdatedAt,
		}).Error
}
