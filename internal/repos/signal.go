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

type SignalFilters struct {
	SignalType *types.SignalType
	Status     *types.SignalStatus
}

type SignalRepo interface {
	CreateWithEvidence(ctx context.Context, tx *gorm.DB, signal *types.Signal, evidence []*types.SignalEvidence) (*types.Signal, error)
	GetByID(ctx context.Context, tx *gorm.DB, tenantID, userID, id uuid.UUID) (*types.Signal, error)
	ListByUser(ctx context.Context, tx *gorm.DB, tenantID, userID uuid.UUID, filters SignalFilters, limit, offset int) ([]*types.Signal, error)
	ListActive(ctx context.Context, tx *gorm.DB, tenantID, userID uuid.UUID) ([]*types.Signal, error)
	ActiveByType(ctx context.Context, tx *gorm.DB, tenantID, userID uuid.UUID, signalType types.SignalType) (*types.Signal, error)
	UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, from, to types.SignalStatus) (int64, error)
	ExpireDue(ctx context.Context, tx *gorm.DB, now time.Time) (int64, error)
	CountEvidence(ctx context.Context, tx *gorm.DB, signalID uuid.UUID) (int64, error)
}

type signalRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSignalRepo(db *gorm.DB, baseLog *logger.Logger) SignalRepo {
	return &signalRepo{db: db, log: baseLog.With("repo", "SignalRepo")}
}

// CreateWithEvidence writes the signal and its evidence rows in one
// transaction so evidence_count can never drift from the live row count.
func (r *signalRepo) CreateWithEvidence(ctx context.Context, tx *gorm.DB, signal *types.Signal, evidence []*types.SignalEvidence) (*types.Signal, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	signal.EvidenceCount = len(evidence)
	err := transaction.WithContext(ctx).Transaction(func(inner *gorm.DB) error {
		if err := inner.Create(signal).Error; err != nil {
			return err
		}
		for _, ev := range evidence {
			ev.SignalID = signal.ID
		}
		if len(evidence) > 0 {
			if err := inner.Create(&evidence).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	signal.Evidence = evidence
	return signal, nil
}

func (r *signalRepo) GetByID(ctx context.Context, tx *gorm.DB, tenantID, userID, id uuid.UUID) (*types.Signal, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	row := &types.Signal{}
	err := transaction.WithContext(ctx).
		Preload("Evidence").
		Where("tenant_id = ? AND user_id = ? AND id = ?", tenantID, userID, id).
		First(row).Error
	if err != nil {
		return nil, err
	}
	return row, nil
}

func (r *signalRepo) ListByUser(ctx context.Context, tx *gorm.DB, tenantID, userID uuid.UUID, filters SignalFilters, limit, offset int) ([]*types.Signal, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Signal
	q := transaction.WithContext(ctx).
		Where("tenant_id = ? AND user_id = ?", tenantID, userID)
	if filters.SignalType != nil {
		q = q.Where("signal_type = ?", *filters.SignalType)
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

func (r *signalRepo) ListActive(ctx context.Context, tx *gorm.DB, tenantID, userID uuid.UUID) ([]*types.Signal, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Signal
	if err := transaction.WithContext(ctx).
		Where("tenant_id = ? AND user_id = ? AND status = ?", tenantID, userID, types.SignalStatusActive).
		Order("created_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *signalRepo) ActiveByType(ctx context.Context, tx *gorm.DB, tenantID, userID uuid.UUID, signalType types.SignalType) (*types.Signal, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	row := &types.Signal{}
	err := transaction.WithContext(ctx).
		Where("tenant_id = ? AND user_id = ? AND signal_type = ? AND status = ?", tenantID, userID, signalType, types.SignalStatusActive).
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

// UpdateStatus is a guarded conditional update; zero rows affected means the
// entity was not in the expected from-state.
func (r *signalRepo) UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, from, to types.SignalStatus) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(ctx).
		Model(&types.Signal{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{"status": to, "updated_at": time.Now().UTC()})
	return res.RowsAffected, res.Error
}

func (r *signalRepo) ExpireDue(ctx context.Context, tx *gorm.DB, now time.Time) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(ctx).
		Model(&types.Signal{}).
		Where("status = ? AND expires_at <= ?", types.SignalStatusActive, now).
		Updates(map[string]any{"status": types.SignalStatusExpired, "updated_at": now})
	return res.RowsAffected, res.Error
}

func (r *signalRepo) CountEvidence(ctx context.Context, tx *gorm.DB, signalID uuid.UUID) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var count int64
	err := transaction.WithContext(ctx).
		Model(&types.SignalEvidence{}).
		Where("signal_id = ?", signalID).
		Count(&count).Error
	return count, err
}
