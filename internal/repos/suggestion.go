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

type SuggestionFilters struct {
	Kind   *types.SuggestionKind
	Domain *types.Domain
	Status *types.SuggestionStatus
}

type SuggestionRepo interface {
	Create(ctx context.Context, tx *gorm.DB, row *types.Suggestion) (*types.Suggestion, error)
	GetByID(ctx context.Context, tx *gorm.DB, tenantID, userID, id uuid.UUID) (*types.Suggestion, error)
	ListByUser(ctx context.Context, tx *gorm.DB, tenantID, userID uuid.UUID, filters SuggestionFilters, limit, offset int) ([]*types.Suggestion, error)
	LatestByFingerprint(ctx context.Context, tx *gorm.DB, tenantID, userID uuid.UUID, domain types.Domain, fingerprint string) (*types.Suggestion, error)
	ActiveByTrigger(ctx context.Context, tx *gorm.DB, tenantID, userID uuid.UUID, windowID, signalID *uuid.UUID) (*types.Suggestion, error)
	UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, from, to types.SuggestionStatus) (int64, error)
	ExpireDue(ctx context.Context, tx *gorm.DB, now time.Time) (int64, error)
}

type suggestionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSuggestionRepo(db *gorm.DB, baseLog *logger.Logger) SuggestionRepo {
	return &suggestionRepo{db: db, log: baseLog.With("repo", "SuggestionRepo")}
}

func (r *suggestionRepo) Create(ctx context.Context, tx *gorm.DB, row *types.Suggestion) (*types.Suggestion, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *suggestionRepo) GetByID(ctx context.Context, tx *gorm.DB, tenantID, userID, id uuid.UUID) (*types.Suggestion, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	row := &types.Suggestion{}
	err := transaction.WithContext(ctx).
		Where("tenant_id = ? AND user_id = ? AND id = ?", tenantID, userID, id).
		First(row).Error
	if err != nil {
		return nil, err
	}
	return row, nil
}

func (r *suggestionRepo) ListByUser(ctx context.Context, tx *gorm.DB, tenantID, userID uuid.UUID, filters SuggestionFilters, limit, offset int) ([]*types.Suggestion, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Suggestion
	q := transaction.WithContext(ctx).
		Where("tenant_id = ? AND user_id = ?", tenantID, userID)
	if filters.Kind != nil {
		q = q.Where("kind = ?", *filters.Kind)
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
	if err := q.Order("created_at DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// LatestByFingerprint ignores terminal status on purpose: cooldown is keyed
// on (user, domain, fingerprint, created_at) alone.
func (r *suggestionRepo) LatestByFingerprint(ctx context.Context, tx *gorm.DB, tenantID, userID uuid.UUID, domain types.Domain, fingerprint string) (*types.Suggestion, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	row := &types.Suggestion{}
	err := transaction.WithContext(ctx).
		Where("tenant_id = ? AND user_id = ? AND domain = ? AND fingerprint = ?", tenantID, userID, domain, fingerprint).
		Order("created_at DESC").
		First(row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row, nil
}

func (r *suggestionRepo) ActiveByTrigger(ctx context.Context, tx *gorm.DB, tenantID, userID uuid.UUID, windowID, signalID *uuid.UUID) (*types.Suggestion, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(ctx).
		Where("tenant_id = ? AND user_id = ? AND status = ?", tenantID, userID, types.SuggestionStatusActive)
	switch {
	case windowID != nil:
		q = q.Where("trigger_window_id = ?", *windowID)
	case signalID != nil:
		q = q.Where("trigger_signal_id = ?", *signalID)
	default:
		return nil, nil
	}
	row := &types.Suggestion{}
	err := q.Order("created_at DESC").First(row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row, nil
}

func (r *suggestionRepo) UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, from, to types.SuggestionStatus) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(ctx).
		Model(&types.Suggestion{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{"status": to, "updated_at": time.Now().UTC()})
	return res.RowsAffected, res.Error
}

func (r *suggestionRepo) ExpireDue(ctx context.Context, tx *gorm.DB, now time.Time) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(ctx).
		Model(&types.Suggestion{}).
		Where("status = ? AND expires_at <= ?", types.SuggestionStatusActive, now).
		Updates(map[string]any{"status": types.SuggestionStatusExpired, "updated_at": now})
	return res.RowsAffected, res.Error
}
