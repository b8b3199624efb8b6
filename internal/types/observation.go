package types

import (
	"time"

	"github.com/google/uuid"
)

// Observation is one timestamped reading in the per-user timeseries.
// Rows are append-only; there is no update or delete path.
type Observation struct {
	ID           uuid.UUID         `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TenantID     uuid.UUID         `gorm:"type:uuid;not null;index" json:"tenant_id"`
	UserID       uuid.UUID         `gorm:"type:uuid;not null;index:idx_observation_user_domain" json:"user_id"`
	Domain       Domain            `gorm:"type:varchar(32);not null;index:idx_observation_user_domain" json:"domain"`
	Key          string            `gorm:"type:varchar(64);not null" json:"key"`
	Value        string            `gorm:"type:text" json:"value"`
	NumericValue *float64          `json:"numeric_value,omitempty"`
	Source       ObservationSource `gorm:"type:varchar(16);not null" json:"source"`
	Confidence   int               `gorm:"not null" json:"confidence"`
	RecordedAt   time.Time         `gorm:"not null;index" json:"recorded_at"`
	CreatedAt    time.Time         `gorm:"not null;default:now()" json:"created_at"`
}

func (Observation) TableName() string { return "observation" }
