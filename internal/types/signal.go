package types

import (
	"time"

	"github.com/google/uuid"
)

// Signal is a cross-domain weak indicator backed by weighted evidence.
// EvidenceCount always equals the number of attached SignalEvidence rows;
// both are written in the same transaction.
type Signal struct {
	ID              uuid.UUID       `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TenantID        uuid.UUID       `gorm:"type:uuid;not null;index" json:"tenant_id"`
	UserID          uuid.UUID       `gorm:"type:uuid;not null;index:idx_signal_user_status" json:"user_id"`
	SignalType      SignalType      `gorm:"type:varchar(32);not null" json:"signal_type"`
	Confidence      int             `gorm:"not null" json:"confidence"`
	WindowStart     time.Time       `gorm:"not null" json:"window_start"`
	WindowEnd       time.Time       `gorm:"not null" json:"window_end"`
	DetectedChange  string          `gorm:"type:text" json:"detected_change"`
	UserImpact      UserImpact      `gorm:"type:varchar(8);not null" json:"user_impact"`
	SuggestedAction SuggestedAction `gorm:"type:varchar(16);not null" json:"suggested_action"`
	EvidenceCount   int             `gorm:"not null" json:"evidence_count"`
	Status          SignalStatus    `gorm:"type:varchar(16);not null;index:idx_signal_user_status" json:"status"`
	ExpiresAt       time.Time       `gorm:"not null;index" json:"expires_at"`
	CreatedAt       time.Time       `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"not null;default:now()" json:"updated_at"`

	Evidence []*SignalEvidence `gorm:"foreignKey:SignalID;references:ID" json:"evidence,omitempty"`
}

func (Signal) TableName() string { return "signal" }

// SignalEvidence is owned by its parent signal and deleted only with it.
type SignalEvidence struct {
	ID           uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	SignalID     uuid.UUID `gorm:"type:uuid;not null;index" json:"signal_id"`
	EvidenceType string    `gorm:"type:varchar(32);not null" json:"evidence_type"`
	SourceRef    string    `gorm:"type:varchar(128)" json:"source_ref"`
	Weight       int       `gorm:"not null" json:"weight"`
	Summary      string    `gorm:"type:text" json:"summary"`
	RecordedAt   time.Time `gorm:"not null" json:"recorded_at"`
	CreatedAt    time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (SignalEvidence) TableName() string { return "signal_evidence" }
