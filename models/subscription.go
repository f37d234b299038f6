package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SubscriptionStatus represents the status of a tenant subscription
type SubscriptionStatus string

const (
	SubscriptionStatusPending   SubscriptionStatus = "pending"   // Created with a trial window, awaiting payment approval
	SubscriptionStatusActive    SubscriptionStatus = "active"    // Approved by the billing authority
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled" // Cancelled by the merchant or a failed subscribe attempt
	SubscriptionStatusExpired   SubscriptionStatus = "expired"   // Trial ended without payment
)

// String returns the string representation of the status
func (s SubscriptionStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s SubscriptionStatus) Valid() bool {
	switch s {
	case SubscriptionStatusPending, SubscriptionStatusActive,
		SubscriptionStatusCancelled, SubscriptionStatusExpired:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for SubscriptionStatus
func (s *SubscriptionStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = SubscriptionStatus(v)
	case []byte:
		*s = SubscriptionStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into SubscriptionStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for SubscriptionStatus
func (s SubscriptionStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid SubscriptionStatus: %s", s)
	}
	return string(s), nil
}

// Subscription tracks a tenant's trial/paid lifecycle. One row per tenant; status
// transitions are the only mutations after creation.
type Subscription struct {
	ID   uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID uuid.UUID `gorm:"type:uuid;uniqueIndex;not null;default:gen_random_uuid()" json:"uuid"`

	TenantID uint `gorm:"not null;uniqueIndex:uk_subscriptions_tenant" json:"tenant_id"`

	// ExternalID is the billing authority's identifier once a subscribe succeeds
	ExternalID *string `gorm:"type:varchar(255);index" json:"external_id,omitempty"`

	Status SubscriptionStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`

	PlanName        string  `gorm:"type:varchar(100);not null" json:"plan_name"`
	Price           float64 `gorm:"type:numeric(10,2);not null" json:"price"`
	Currency        string  `gorm:"type:varchar(3);not null;default:'USD'" json:"currency"`
	BillingInterval string  `gorm:"type:varchar(30);not null;default:'EVERY_30_DAYS'" json:"billing_interval"`

	TrialDays   int        `gorm:"not null;default:0" json:"trial_days"`
	TrialEndsAt *time.Time `gorm:"index" json:"trial_ends_at,omitempty"`

	CurrentPeriodStart *time.Time `json:"current_period_start,omitempty"`
	CurrentPeriodEnd   *time.Time `json:"current_period_end,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`

	// Relationships
	Tenant Tenant `gorm:"foreignKey:TenantID;constraint:OnDelete:CASCADE" json:"tenant,omitempty"`
}

func (Subscription) TableName() string { return "subscriptions" }

// BeforeCreate ensures UUID is set
func (s *Subscription) BeforeCreate(tx *gorm.DB) error {
	if s.UUID == uuid.Nil {
		s.UUID = uuid.New()
	}
	return nil
}

// IsActive returns true if the subscription has been approved by the billing authority
func (s *Subscription) IsActive() bool {
	return s.Status == SubscriptionStatusActive
}

// InTrial returns true if the subscription is pending and its trial window has not
// passed at the given instant.
func (s *Subscription) InTrial(now time.Time) bool {
	if s.Status != SubscriptionStatusPending || s.TrialEndsAt == nil {
		return false
	}
	return now.Before(*s.TrialEndsAt)
}

// Authorized is the single authorization predicate every protected operation must
// consult. A pending record past its trial end is unauthorized even before the
// sweep moves its stored status to expired.
func (s *Subscription) Authorized(now time.Time) bool {
	if s == nil {
		return false
	}
	if s.IsActive() {
		return true
	}
	return s.InTrial(now)
}

// TrialDaysRemaining returns the whole days left in the trial window, rounded up
// and floored at zero.
func (s *Subscription) TrialDaysRemaining(now time.Time) int {
	if s == nil || s.TrialEndsAt == nil {
		return 0
	}
	remaining := s.TrialEndsAt.Sub(now)
	if remaining <= 0 {
		return 0
	}
	days := int((remaining + 24*time.Hour - 1) / (24 * time.Hour))
	return days
}

// SubscriptionFilter represents filter criteria for subscription queries
type SubscriptionFilter struct {
	ID             *uint               `json:"id,omitempty"`
	UUID           *uuid.UUID          `json:"uuid,omitempty"`
	TenantID       *uint               `json:"tenant_id,omitempty"`
	Status         *SubscriptionStatus `json:"status,omitempty"`
	ExternalID     *string             `json:"external_id,omitempty"`
	TrialEndBefore *time.Time          `json:"trial_end_before,omitempty"`
}
