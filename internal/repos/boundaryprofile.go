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

type BoundaryProfileRepo interface {
	GetByUser(ctx context.Context, tx *gorm.DB, tenantID, userID uuid.UUID) (*types.BoundaryProfile, error)
	Upsert(ctx context.Context, tx *gorm.DB, row *types.BoundaryProfile) (*types.BoundaryProfile, error)
}

type boundaryProfileRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewBoundaryProfileRepo(db *gorm.DB, baseLog *logger.Logger) BoundaryProfileRepo {
	return &boundaryProfileRepo{db: db, log: baseLog.With("repo", "BoundaryProfileRepo")}
}

func (r *boundaryProfileRepo) GetByUser(ctx context.Context, tx *gorm.DB, tenantID, userID uuid.UUID) (*types.BoundaryProfile, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	row := &types.BoundaryProfile{}
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

func (r *boundaryProfileRepo) Upsert(ctx context.Context, tx *gorm.DB, row *types.BoundaryProfile) (*types.BoundaryProfile, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	existing, err := r.GetByUser(ctx, transaction, row.TenantID, row.UserID)
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
		Model(&types.BoundaryProfile{}).
		Where("id = ?", existing.ID).
		Updates(map[string]any{
			"privacy_level":          row.PrivacyLevel,
			"health_sensitivity":     row.HealthSensitivity,
			"monetization_tolerance": row.MonetizationTolerance,
			"social_exposure":        row.SocialExposure,
			"emotional_safety":       row.EmotionalSafety,
			"provenance":             row.Provenance,
			"updated_at":             now,
		}).Error; err != nil {
		return nil, err
	}
	return row, nil
}
