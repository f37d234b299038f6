package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RuleType identifies the assignment strategy of a badge rule. The variant set is
// closed: resolution switches exhaustively over these values.
type RuleType string

const (
	RuleTypeManual      RuleType = "manual"
	RuleTypeCollection  RuleType = "collection"
	RuleTypeTag         RuleType = "tag"
	RuleTypeProductType RuleType = "product_type"
	RuleTypeVendor      RuleType = "vendor"
)

// String returns the string representation of the rule type
func (t RuleType) String() string {
	return string(t)
}

// Valid checks if the rule type is valid
func (t RuleType) Valid() bool {
	switch t {
	case RuleTypeManual, RuleTypeCollection, RuleTypeTag, RuleTypeProductType, RuleTypeVendor:
		return true
	default:
		return false
	}
}

// IsManual returns true for the manual variant; manual rules are never re-resolved
// against the catalog.
func (t RuleType) IsManual() bool {
	return t == RuleTypeManual
}

// AssignmentRule is the JSON specification of how a badge derives its product set.
// Exactly one variant is active per rule; Criteria carries the variant-specific
// identifiers (product ids, collection ids, tag tokens, or attribute values).
type AssignmentRule struct {
	Type     RuleType `json:"type"`
	Criteria []string `json:"criteria"`
}

// Value implements the driver.Valuer interface for AssignmentRule
func (r AssignmentRule) Value() (driver.Value, error) {
	return json.Marshal(r)
}

// Scan implements the sql.Scanner interface for AssignmentRule
func (r *AssignmentRule) Scan(value any) error {
	if value == nil {
		*r = AssignmentRule{}
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, r)
	case string:
		return json.Unmarshal([]byte(v), r)
	default:
		return fmt.Errorf("cannot scan %T into AssignmentRule", value)
	}
}

// Empty reports whether the rule has no criteria. An empty rule resolves to the
// empty set, never to "match all".
func (r AssignmentRule) Empty() bool {
	return len(r.Criteria) == 0
}

// Badge represents a visual badge a tenant overlays on its products. Design is an
// opaque JSON payload authored by the badge designer UI; the rule engine only reads
// the assignment rule.
type Badge struct {
	ID   uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID uuid.UUID `gorm:"type:uuid;uniqueIndex;not null;default:gen_random_uuid()" json:"uuid"`

	TenantID uint `gorm:"not null;index:idx_badges_tenant" json:"tenant_id"`

	Name   string          `gorm:"type:varchar(255);not null" json:"name"`
	Design json.RawMessage `gorm:"type:jsonb;not null;default:'{}'" json:"design"`
	Rule   AssignmentRule  `gorm:"type:jsonb;not null;default:'{\"type\":\"manual\",\"criteria\":[]}'" json:"rule"`

	IsActive *bool `gorm:"default:true;index" json:"is_active"`

	CreatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	// Relationships
	Tenant      Tenant            `gorm:"foreignKey:TenantID;constraint:OnDelete:CASCADE" json:"tenant,omitempty"`
	Assignments []BadgeAssignment `gorm:"foreignKey:BadgeID" json:"assignments,omitempty"`
}

func (Badge) TableName() string { return "badges" }

// BeforeCreate ensures UUID is set
func (b *Badge) BeforeCreate(tx *gorm.DB) error {
	if b.UUID == uuid.Nil {
		b.UUID = uuid.New()
	}
	return nil
}

// BadgeFilter represents filter criteria for badge queries
type BadgeFilter struct {
	ID       *uint      `json:"id,omitempty"`
	UUID     *uuid.UUID `json:"uuid,omitempty"`
	TenantID *uint      `json:"tenant_id,omitempty"`
	Name     *string    `json:"name,omitempty"`
	IsActive *bool      `json:"is_active,omitempty"`
	RuleType *RuleType  `json:"rule_type,omitempty"`
}
