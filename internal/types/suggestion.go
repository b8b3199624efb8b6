package types

import (
	"time"

	"github.com/google/uuid"
)

// Suggestion is a low-friction mitigation or reinforcement. Fingerprint is a
// stable hash of domain + normalized adjustment text and drives cooldown
// deduplication regardless of the prior suggestion's terminal status.
type Suggestion struct {
	ID                  uuid.UUID        `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TenantID            uuid.UUID        `gorm:"type:uuid;not null;index" json:"tenant_id"`
	UserID              uuid.UUID        `gorm:"type:uuid;not null;index:idx_suggestion_user_fp" json:"user_id"`
	Kind                SuggestionKind   `gorm:"type:varchar(16);not null" json:"kind"`
	Domain              Domain           `gorm:"type:varchar(32);not null;index:idx_suggestion_user_fp" json:"domain"`
	Confidence          int              `gorm:"not null" json:"confidence"`
	SuggestedAdjustment string           `gorm:"type:text;not null" json:"suggested_adjustment"`
	Rationale           string           `gorm:"type:text;not null" json:"rationale"`
	EffortLevel         string           `gorm:"type:varchar(8);not null;default:'low'" json:"effort_level"`
	SafetyDisclaimer    string           `gorm:"type:text" json:"safety_disclaimer,omitempty"`
	Fingerprint         string           `gorm:"type:varchar(64);not null;index:idx_suggestion_user_fp" json:"suggestion_fingerprint"`
	TriggerWindowID     *uuid.UUID       `gorm:"type:uuid;index" json:"trigger_window_id,omitempty"`
	TriggerSignalID     *uuid.UUID       `gorm:"type:uuid;index" json:"trigger_signal_id,omitempty"`
	Status              SuggestionStatus `gorm:"type:varchar(16);not null;index" json:"status"`
	ExpiresAt           time.Time        `gorm:"not null;index" json:"expires_at"`
	CreatedAt           time.Time        `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt           time.Time        `gorm:"not null;default:now()" json:"updated_at"`
}

func (Suggestion) TableName() string { return "suggestion" }
