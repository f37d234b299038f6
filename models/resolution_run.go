package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// ResolutionRun stores an immutable snapshot of the product ids a rebuild produced
// for a badge. Each row is correlated to the rebuild that wrote it and backs the
// badge history view.
type ResolutionRun struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	CorrelationID uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:uk_resolution_runs_correlation_id" json:"correlation_id"`
	TenantID      uint           `gorm:"not null;index:idx_resolution_runs_tenant_badge_created" json:"tenant_id"`
	BadgeID       uint           `gorm:"not null;index:idx_resolution_runs_tenant_badge_created" json:"badge_id"`
	RuleType      RuleType       `gorm:"type:varchar(20);not null" json:"rule_type"`
	ProductIDs    pq.StringArray `gorm:"type:text[];not null;default:'{}'" json:"product_ids"`
	MatchedCount  int            `gorm:"not null;default:0" json:"matched_count"`
	CreatedAt     time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
}

func (ResolutionRun) TableName() string { return "resolution_runs" }

// BeforeCreate ensures CorrelationID is set
func (r *ResolutionRun) BeforeCreate(tx *gorm.DB) error {
	if r.CorrelationID == uuid.Nil {
		r.CorrelationID = uuid.New()
	}
	return nil
}

// ResolutionRunFilter represents filter criteria for resolution run queries
type ResolutionRunFilter struct {
	ID       *uint      `json:"id,omitempty"`
	TenantID *uint      `json:"tenant_id,omitempty"`
	BadgeID  *uint      `json:"badge_id,omitempty"`
	RuleType *RuleType  `json:"rule_type,omitempty"`
	Before   *time.Time `json:"before,omitempty"`
}
