// Package models contains domain entities and business models for the badge platform
package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TenantStatus represents the lifecycle status of a tenant (shop) installation
type TenantStatus string

const (
	TenantStatusActive      TenantStatus = "active"
	TenantStatusUninstalled TenantStatus = "uninstalled"
)

// String returns the string representation of the status
func (s TenantStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s TenantStatus) Valid() bool {
	switch s {
	case TenantStatusActive, TenantStatusUninstalled:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for TenantStatus
func (s *TenantStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = TenantStatus(v)
	case []byte:
		*s = TenantStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into TenantStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for TenantStatus
func (s TenantStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid TenantStatus: %s", s)
	}
	return string(s), nil
}

// Tenant represents a single merchant shop account. All data is partitioned by tenant.
type Tenant struct {
	ID   uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID uuid.UUID `gorm:"type:uuid;uniqueIndex;not null;default:gen_random_uuid()" json:"uuid"`

	// ShopDomain is the platform-side shop identifier (e.g. example.myshopify.com)
	ShopDomain  string `gorm:"type:varchar(255);uniqueIndex;not null" json:"shop_domain"`
	AccessToken string `gorm:"type:varchar(255);not null" json:"-"`

	Status        TenantStatus `gorm:"type:varchar(20);not null;default:'active';index" json:"status"`
	InstalledAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"installed_at"`
	UninstalledAt *time.Time   `json:"uninstalled_at,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Tenant) TableName() string { return "tenants" }

// BeforeCreate ensures UUID is set
func (t *Tenant) BeforeCreate(tx *gorm.DB) error {
	if t.UUID == uuid.Nil {
		t.UUID = uuid.New()
	}
	return nil
}

// IsActive returns true if the tenant installation is still active
func (t *Tenant) IsActive() bool {
	return t.Status == TenantStatusActive
}

// TenantFilter represents filter criteria for tenant queries
type TenantFilter struct {
	ID         *uint         `json:"id,omitempty"`
	UUID       *uuid.UUID    `json:"uuid,omitempty"`
	ShopDomain *string       `json:"shop_domain,omitempty"`
	Status     *TenantStatus `json:"status,omitempty"`
}
