package models

import (
	"time"
)

// Assignment provenance constants. Manual assignments are authored by the merchant;
// rule assignments are materialized by the resolver and replaced wholesale on rebuild.
const (
	AssignedByManual = "manual"
	AssignedByRule   = "rule"
)

// BadgeAssignment is one (badge, product) pairing. The table is the materialized
// output of resolving a badge's rule at a point in time, not a live view of the
// catalog.
type BadgeAssignment struct {
	ID uint `gorm:"primaryKey;autoIncrement" json:"id"`

	TenantID  uint   `gorm:"not null;index;uniqueIndex:uk_badge_assignments_tenant_badge_product" json:"tenant_id"`
	BadgeID   uint   `gorm:"not null;index;uniqueIndex:uk_badge_assignments_tenant_badge_product" json:"badge_id"`
	ProductID string `gorm:"type:varchar(64);not null;uniqueIndex:uk_badge_assignments_tenant_badge_product" json:"product_id"`

	AssignedBy string `gorm:"type:varchar(20);not null;default:'rule'" json:"assigned_by"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`

	// Relationships
	Badge Badge `gorm:"foreignKey:BadgeID;constraint:OnDelete:CASCADE" json:"badge,omitempty"`
}

func (BadgeAssignment) TableName() string { return "badge_assignments" }

// BadgeAssignmentFilter represents filter criteria for assignment queries
type BadgeAssignmentFilter struct {
	ID         *uint   `json:"id,omitempty"`
	TenantID   *uint   `json:"tenant_id,omitempty"`
	BadgeID    *uint   `json:"badge_id,omitempty"`
	ProductID  *string `json:"product_id,omitempty"`
	AssignedBy *string `json:"assigned_by,omitempty"`
}
