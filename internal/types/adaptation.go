package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// AdaptationPlan is a reversible personalization change. Terminal states are
// applied (once the rollback window passes), rejected, and rolled_back.
type AdaptationPlan struct {
	ID                 uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TenantID           uuid.UUID      `gorm:"type:uuid;not null;index" json:"tenant_id"`
	UserID             uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	DomainsToUpdate    datatypes.JSON `gorm:"type:jsonb" json:"domains_to_update"`
	Adjustments        datatypes.JSON `gorm:"type:jsonb" json:"adjustments"`
	AdaptationStrength int            `gorm:"not null" json:"adaptation_strength"`
	Confidence         int            `gorm:"not null" json:"confidence"`
	TriggeredBy        PlanTrigger    `gorm:"type:varchar(32);not null" json:"triggered_by"`
	TriggerDriftID     *uuid.UUID     `gorm:"type:uuid;index" json:"trigger_drift_id,omitempty"`
	Status             PlanStatus     `gorm:"type:varchar(32);not null;index" json:"status"`
	ConfirmationNeeded bool           `gorm:"not null;default:false" json:"confirmation_needed"`
	CanRollback        bool           `gorm:"not null;default:true" json:"can_rollback"`
	RollbackUntil      *time.Time     `json:"rollback_until,omitempty"`
	SnapshotID         *uuid.UUID     `gorm:"type:uuid" json:"snapshot_ref,omitempty"`
	CreatedAt          time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt          time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (AdaptationPlan) TableName() string { return "adaptation_plan" }

// PersonalizationSnapshot is an immutable capture of the personalization
// profile taken immediately before a plan is applied. It is the sole
// rollback mechanism and expires after a fixed retention period.
type PersonalizationSnapshot struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TenantID  uuid.UUID      `gorm:"type:uuid;not null;index" json:"tenant_id"`
	UserID    uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	PlanID    uuid.UUID      `gorm:"type:uuid;not null;index" json:"plan_id"`
	State     datatypes.JSON `gorm:"type:jsonb;not null" json:"state"`
	Version   int            `gorm:"not null" json:"version"`
	ExpiresAt time.Time      `gorm:"not null;index" json:"expires_at"`
	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
}

func (PersonalizationSnapshot) TableName() string { return "personalization_snapshot" }

// PersonalizationProfile is the live per-user personalization state the
// adaptation manager mutates. Settings is a closed map of known keys per
// domain; unknown keys are preserved opaquely for display only.
type PersonalizationProfile struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TenantID  uuid.UUID      `gorm:"type:uuid;not null;index" json:"tenant_id"`
	UserID    uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`
	Settings  datatypes.JSON `gorm:"type:jsonb" json:"settings"`
	Version   int            `gorm:"not null;default:0" json:"version"`
	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (PersonalizationProfile) TableName() string { return "personalization_profile" }
