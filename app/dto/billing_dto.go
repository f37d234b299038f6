package dto

import (
	"time"
)

// SubscriptionDTO represents a tenant's subscription in responses
type SubscriptionDTO struct {
	UUID               string     `json:"uuid"`
	Status             string     `json:"status"`
	PlanName           string     `json:"plan_name"`
	Price              float64    `json:"price"`
	Currency           string     `json:"currency"`
	BillingInterval    string     `json:"billing_interval"`
	TrialDays          int        `json:"trial_days"`
	TrialEndsAt        *time.Time `json:"trial_ends_at,omitempty"`
	TrialDaysRemaining int        `json:"trial_days_remaining"`
	CurrentPeriodStart *time.Time `json:"current_period_start,omitempty"`
	CurrentPeriodEnd   *time.Time `json:"current_period_end,omitempty"`
	Authorized         bool       `json:"authorized"`
	CreatedAt          time.Time  `json:"created_at"`
}

// GetSubscriptionRequest represents the request to read the tenant's subscription
type GetSubscriptionRequest struct {
	TenantID uint `json:"-"`
}

// GetSubscriptionResponse represents the response to read the tenant's subscription
type GetSubscriptionResponse struct {
	Message      string          `json:"message"`
	Subscription SubscriptionDTO `json:"subscription"`
}

// SubscribeRequest represents the request to start or retry a paid subscription
type SubscribeRequest struct {
	TenantID  uint   `json:"-"`
	ReturnURL string `json:"return_url" validate:"omitempty,url"`
}

// SubscribeResponse represents the billing authority's pending charge handle
type SubscribeResponse struct {
	Message         string `json:"message"`
	ConfirmationURL string `json:"confirmation_url"`
	ExternalID      string `json:"external_id"`
	Status          string `json:"status"`
}

// ActivateSubscriptionRequest represents the billing authority's approval callback
type ActivateSubscriptionRequest struct {
	TenantID   uint   `json:"-"`
	ExternalID string `json:"charge_id" validate:"required"`
}

// ActivateSubscriptionResponse represents the response to a subscription activation
type ActivateSubscriptionResponse struct {
	Message      string          `json:"message"`
	Subscription SubscriptionDTO `json:"subscription"`
}

// CancelSubscriptionRequest represents the request to cancel the tenant's subscription
type CancelSubscriptionRequest struct {
	TenantID uint `json:"-"`
}

// CancelSubscriptionResponse represents the response to a subscription cancellation
type CancelSubscriptionResponse struct {
	Message      string          `json:"message"`
	Subscription SubscriptionDTO `json:"subscription"`
}
