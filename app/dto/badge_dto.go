package dto

import (
	"encoding/json"
	"time"
)

// AssignmentRuleDTO carries a badge's automatic assignment rule across the API boundary
type AssignmentRuleDTO struct {
	Type     string   `json:"type" validate:"required,oneof=manual collection tag product_type vendor"`
	Criteria []string `json:"criteria" validate:"omitempty,dive,min=1"`
}

// CreateBadgeRequest represents the request to create a new badge
type CreateBadgeRequest struct {
	TenantID uint               `json:"-"`
	Name     string             `json:"name" validate:"required,min=1,max=100"`
	Design   json.RawMessage    `json:"design,omitempty"`
	Rule     *AssignmentRuleDTO `json:"rule,omitempty"`
	IsActive *bool              `json:"is_active,omitempty"`
}

// CreateBadgeResponse represents the response to create a new badge
type CreateBadgeResponse struct {
	Message   string `json:"message"`
	UUID      string `json:"uuid"`
	CreatedAt string `json:"created_at"`
}

// BadgeDTO represents a badge in responses
type BadgeDTO struct {
	UUID          string            `json:"uuid"`
	Name          string            `json:"name"`
	Design        json.RawMessage   `json:"design,omitempty"`
	Rule          AssignmentRuleDTO `json:"rule"`
	IsActive      bool              `json:"is_active"`
	AssignedCount int64             `json:"assigned_count"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     *time.Time        `json:"updated_at,omitempty"`
}

// GetBadgeRequest represents the request to get an existing badge
type GetBadgeRequest struct {
	UUID     string `json:"-"`
	TenantID uint   `json:"-"`
}

// UpdateBadgeRequest represents the request to update an existing badge
type UpdateBadgeRequest struct {
	UUID     string          `json:"-"`
	TenantID uint            `json:"-"`
	Name     *string         `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	Design   json.RawMessage `json:"design,omitempty"`
}

// UpdateBadgeResponse represents the response to update an existing badge
type UpdateBadgeResponse struct {
	Message string   `json:"message"`
	Badge   BadgeDTO `json:"badge"`
}

// ToggleBadgeRequest represents the request to flip a badge's active flag
type ToggleBadgeRequest struct {
	UUID     string `json:"-"`
	TenantID uint   `json:"-"`
}

// ToggleBadgeResponse represents the response to a badge toggle
type ToggleBadgeResponse struct {
	Message  string `json:"message"`
	UUID     string `json:"uuid"`
	IsActive bool   `json:"is_active"`
}

// ListBadgesRequest represents the request to list a tenant's badges
type ListBadgesRequest struct {
	TenantID uint `json:"-"`
	Page     int  `json:"page" validate:"omitempty,min=1"`
	PageSize int  `json:"page_size" validate:"omitempty,min=1,max=100"`
}

// ListBadgesResponse represents the response to list a tenant's badges
type ListBadgesResponse struct {
	Message string     `json:"message"`
	Items   []BadgeDTO `json:"items"`
	Total   int64      `json:"total"`
}

// DeleteBadgeRequest represents the request to delete a badge
type DeleteBadgeRequest struct {
	UUID     string `json:"-"`
	TenantID uint   `json:"-"`
}

// DeleteBadgeResponse represents the response to delete a badge
type DeleteBadgeResponse struct {
	Message string `json:"message"`
}
