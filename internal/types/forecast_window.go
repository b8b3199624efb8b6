package types

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ForecastWindow is a time-bounded forecast of elevated risk or opportunity.
// Exactly one of Severity/Leverage is set, enforced at construction.
// Drivers holds forward references to the signal IDs that caused it.
type ForecastWindow struct {
	ID                 uuid.UUID       `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TenantID           uuid.UUID       `gorm:"type:uuid;not null;index" json:"tenant_id"`
	UserID             uuid.UUID       `gorm:"type:uuid;not null;index:idx_window_user_status" json:"user_id"`
	WindowType         WindowType      `gorm:"type:varchar(16);not null" json:"window_type"`
	Domain             Domain          `gorm:"type:varchar(32);not null" json:"domain"`
	TimeHorizon        TimeHorizon     `gorm:"type:varchar(8);not null" json:"time_horizon"`
	StartTime          time.Time       `gorm:"not null;index" json:"start_time"`
	EndTime            time.Time       `gorm:"not null;index" json:"end_time"`
	Confidence         int             `gorm:"not null" json:"confidence"`
	Severity           *int            `json:"severity,omitempty"`
	Leverage           *int            `json:"leverage,omitempty"`
	Drivers            datatypes.JSON  `gorm:"type:jsonb" json:"drivers"`
	RecommendedMode    RecommendedMode `gorm:"type:varchar(16);not null" json:"recommended_mode"`
	Status             WindowStatus    `gorm:"type:varchar(16);not null;index:idx_window_user_status" json:"status"`
	InvalidationReason string          `gorm:"type:text" json:"invalidation_reason,omitempty"`
	CreatedAt          time.Time       `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt          time.Time       `gorm:"not null;default:now()" json:"updated_at"`
}

func (ForecastWindow) TableName() string { return "forecast_window" }

// ValidateWindow rejects construction input that violates the window
// invariants: end after start, severity XOR leverage matching the type.
func ValidateWindow(w *ForecastWindow) error {
	if w == nil {
		return fmt.Errorf("window is nil")
	}
	if !w.EndTime.After(w.StartTime) {
		return fmt.Errorf("window end_time must be after start_time")
	}
	switch w.WindowType {
	case WindowRisk:
		if w.Severity == nil || w.Leverage != nil {
			return fmt.Errorf("risk window must set severity and not leverage")
		}
	case WindowOpportunity:
		if w.Leverage == nil || w.Severity != nil {
			return fmt.Errorf("opportunity window must set leverage and not severity")
		}
	default:
		return fmt.Errorf("unknown window type %q", w.WindowType)
	}
	if !ValidHorizon(w.TimeHorizon) {
		return fmt.Errorf("unknown time horizon %q", w.TimeHorizon)
	}
	return nil
}
