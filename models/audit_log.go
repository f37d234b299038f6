package models

import (
	"encoding/json"
	"time"
)

type AuditLog struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	TenantID     *uint           `gorm:"index:idx_audit_tenant_id" json:"tenant_id,omitempty"`
	Tenant       *Tenant         `gorm:"foreignKey:TenantID;references:ID" json:"tenant,omitempty"`
	Action       string          `gorm:"type:varchar(100);not null;index:idx_audit_action" json:"action"`
	Description  *string         `gorm:"type:text" json:"description,omitempty"`
	IPAddress    *string         `gorm:"type:inet;index:idx_audit_ip_address" json:"ip_address,omitempty"`
	UserAgent    *string         `gorm:"type:text" json:"user_agent,omitempty"`
	RequestID    *string         `gorm:"size:255;index:idx_audit_request_id" json:"request_id,omitempty"`
	Metadata     json.RawMessage `gorm:"type:jsonb;index:idx_audit_metadata,type:gin" json:"metadata,omitempty"`
	Success      *bool           `gorm:"default:true;index:idx_audit_success" json:"success"`
	ErrorMessage *string         `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt    time.Time       `gorm:"default:CURRENT_TIMESTAMP;index:idx_audit_created_at" json:"created_at"`
}

func (AuditLog) TableName() string {
	return "audit_log"
}

// Audit action constants
const (
	AuditActionTenantInstalled   = "tenant_installed"
	AuditActionTenantUninstalled = "tenant_uninstalled"
	AuditActionTenantDataErased  = "tenant_data_erased"

	AuditActionBadgeCreated = "badge_created"
	AuditActionBadgeUpdated = "badge_updated"
	AuditActionBadgeToggled = "badge_toggled"
	AuditActionBadgeDeleted = "badge_deleted"

	AuditActionRuleUpdated              = "rule_updated"
	AuditActionAssignmentsRebuilt       = "assignments_rebuilt"
	AuditActionAssignmentsRebuildFailed = "assignments_rebuild_failed"

	AuditActionSubscriptionCreated   = "subscription_created"
	AuditActionSubscriptionActivated = "subscription_activated"
	AuditActionSubscriptionCancelled = "subscription_cancelled"
	AuditActionSubscriptionExpired   = "subscription_expired"
	AuditActionSubscribeFailed       = "subscribe_failed"

	AuditActionWebhookReceived    = "webhook_received"
	AuditActionCustomerDataReport = "customer_data_report"
)

// AuditLogFilter represents filter criteria for audit log queries
type AuditLogFilter struct {
	ID            *uint      `json:"id,omitempty"`
	TenantID      *uint      `json:"tenant_id,omitempty"`
	Action        *string    `json:"action,omitempty"`
	Success       *bool      `json:"success,omitempty"`
	RequestID     *string    `json:"request_id,omitempty"`
	CreatedAfter  *time.Time `json:"created_after,omitempty"`
	CreatedBefore *time.Time `json:"created_before,omitempty"`
}
