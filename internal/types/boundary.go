package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// BoundaryProfile holds per-user sensitivity levels. Provenance records
// whether each level was set explicitly, inferred, or defaulted.
type BoundaryProfile struct {
	ID                    uuid.UUID            `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TenantID              uuid.UUID            `gorm:"type:uuid;not null;index" json:"tenant_id"`
	UserID                uuid.UUID            `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`
	PrivacyLevel          int                  `gorm:"not null;default:50" json:"privacy_level"`
	HealthSensitivity     int                  `gorm:"not null;default:50" json:"health_sensitivity"`
	MonetizationTolerance int                  `gorm:"not null;default:50" json:"monetization_tolerance"`
	SocialExposure        int                  `gorm:"not null;default:50" json:"social_exposure"`
	EmotionalSafety       EmotionalSafetyLevel `gorm:"type:varchar(16);not null;default:'steady'" json:"emotional_safety"`
	Provenance            datatypes.JSON       `gorm:"type:jsonb" json:"provenance"`
	CreatedAt             time.Time            `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt             time.Time            `gorm:"not null;default:now()" json:"updated_at"`
}

func (BoundaryProfile) TableName() string { return "boundary_profile" }

// ConsentRecord is an explicit, topic-scoped, time-aware permission.
// Absence of a record for a topic is treated as unknown, never as grant.
type ConsentRecord struct {
	ID         uuid.UUID     `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TenantID   uuid.UUID     `gorm:"type:uuid;not null;index" json:"tenant_id"`
	UserID     uuid.UUID     `gorm:"type:uuid;not null;uniqueIndex:idx_consent_user_topic" json:"user_id"`
	Topic      string        `gorm:"type:varchar(64);not null;uniqueIndex:idx_consent_user_topic" json:"topic"`
	Status     ConsentStatus `gorm:"type:varchar(16);not null" json:"status"`
	Reversible bool          `gorm:"not null;default:true" json:"reversible"`
	ExpiresAt  *time.Time    `json:"expires_at,omitempty"`
	CreatedAt  time.Time     `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt  time.Time     `gorm:"not null;default:now()" json:"updated_at"`
}

func (ConsentRecord) TableName() string { return "consent_record" }

// EffectiveStatus resolves expiry at read time.
func (c *ConsentRecord) EffectiveStatus(now time.Time) ConsentStatus {
	if c == nil {
		return ConsentUnknown
	}
	if c.ExpiresAt != nil && now.After(*c.ExpiresAt) {
		return ConsentExpired
	}
	return c.Status
}
