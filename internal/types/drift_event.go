package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// DriftEvent records a classified change in the user's own baseline.
// Events are never deleted; a later regression event is the correction
// mechanism. The only mutation is user acknowledgment.
type DriftEvent struct {
	ID                uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TenantID          uuid.UUID      `gorm:"type:uuid;not null;index" json:"tenant_id"`
	UserID            uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	Domain            Domain         `gorm:"type:varchar(32);not null;index" json:"domain"`
	MetricKey         string         `gorm:"type:varchar(64);not null;index" json:"metric_key"`
	DriftType         DriftType      `gorm:"type:varchar(16);not null" json:"drift_type"`
	Magnitude         int            `gorm:"not null" json:"magnitude"`
	Confidence        int            `gorm:"not null" json:"confidence"`
	BaselineValue     float64        `json:"baseline_value"`
	RecentValue       float64        `json:"recent_value"`
	DomainsAffected   datatypes.JSON `gorm:"type:jsonb" json:"domains_affected"`
	EvidenceSummary   string         `gorm:"type:text" json:"evidence_summary"`
	TimeWindowDays    int            `gorm:"not null" json:"time_window_days"`
	IsSeasonalPattern bool           `gorm:"not null;default:false" json:"is_seasonal_pattern"`
	AcknowledgedByUser bool          `gorm:"not null;default:false" json:"acknowledged_by_user"`
	UserResponse      string         `gorm:"type:text" json:"user_response,omitempty"`
	CreatedAt         time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt         time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (DriftEvent) TableName() string { return "drift_event" }
