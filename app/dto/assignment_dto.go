package dto

import (
	"time"
)

// UpdateRuleRequest represents the request to replace a badge's assignment rule
type UpdateRuleRequest struct {
	UUID     string            `json:"-"`
	TenantID uint              `json:"-"`
	Rule     AssignmentRuleDTO `json:"rule" validate:"required"`
	// Async defers the re-resolution to the background worker instead of
	// rebuilding inline before the response
	Async *bool `json:"async,omitempty"`
}

// UpdateRuleResponse represents the response to a rule replacement
type UpdateRuleResponse struct {
	Message       string            `json:"message"`
	UUID          string            `json:"uuid"`
	Rule          AssignmentRuleDTO `json:"rule"`
	MatchedCount  int               `json:"matched_count"`
	RebuildQueued bool              `json:"rebuild_queued"`
}

// PreviewRuleRequest represents the request to evaluate a rule without persisting it
type PreviewRuleRequest struct {
	TenantID uint              `json:"-"`
	Rule     AssignmentRuleDTO `json:"rule" validate:"required"`
}

// PreviewRuleResponse represents the products a candidate rule would match
type PreviewRuleResponse struct {
	Message      string   `json:"message"`
	MatchedCount int      `json:"matched_count"`
	ProductIDs   []string `json:"product_ids"`
}

// RebuildAssignmentsRequest represents the request to re-resolve a badge's assignments
type RebuildAssignmentsRequest struct {
	UUID     string `json:"-"`
	TenantID uint   `json:"-"`
}

// RebuildAssignmentsResponse represents the outcome of an assignment rebuild
type RebuildAssignmentsResponse struct {
	Message       string `json:"message"`
	UUID          string `json:"uuid"`
	MatchedCount  int    `json:"matched_count"`
	CorrelationID string `json:"correlation_id"`
}

// AssignManualRequest represents the request to replace a manual badge's product list
type AssignManualRequest struct {
	UUID       string   `json:"-"`
	TenantID   uint     `json:"-"`
	ProductIDs []string `json:"product_ids" validate:"required,dive,min=1"`
}

// AssignManualResponse represents the response to a manual assignment replacement
type AssignManualResponse struct {
	Message       string `json:"message"`
	UUID          string `json:"uuid"`
	AssignedCount int    `json:"assigned_count"`
}

// AssignmentDTO represents a single badge-to-product assignment
type AssignmentDTO struct {
	ProductID  string    `json:"product_id"`
	AssignedBy string    `json:"assigned_by"`
	CreatedAt  time.Time `json:"created_at"`
}

// ListAssignmentsRequest represents the request to list a badge's assignments
type ListAssignmentsRequest struct {
	UUID     string `json:"-"`
	TenantID uint   `json:"-"`
	Page     int    `json:"page" validate:"omitempty,min=1"`
	PageSize int    `json:"page_size" validate:"omitempty,min=1,max=250"`
}

// ListAssignmentsResponse represents the response to list a badge's assignments
type ListAssignmentsResponse struct {
	Message string          `json:"message"`
	Items   []AssignmentDTO `json:"items"`
	Total   int64           `json:"total"`
}

// ResolutionRunDTO represents one historical resolution pass
type ResolutionRunDTO struct {
	CorrelationID string    `json:"correlation_id"`
	RuleType      string    `json:"rule_type"`
	MatchedCount  int       `json:"matched_count"`
	CreatedAt     time.Time `json:"created_at"`
}

// ListResolutionRunsRequest represents the request to list a badge's resolution history
type ListResolutionRunsRequest struct {
	UUID     string `json:"-"`
	TenantID uint   `json:"-"`
	Limit    int    `json:"limit" validate:"omitempty,min=1,max=100"`
}

// ListResolutionRunsResponse represents the response to list a badge's resolution history
type ListResolutionRunsResponse struct {
	Message string             `json:"message"`
	Items   []ResolutionRunDTO `json:"items"`
}

// ExportAssignmentsRequest represents the request to export a badge's assignments as a spreadsheet
type ExportAssignmentsRequest struct {
	UUID     string `json:"-"`
	TenantID uint   `json:"-"`
}
