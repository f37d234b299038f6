// Package businessflow contains the business logic for the application.
package businessflow

import (
	"context"
	"time"

	"github.com/badgify/badgify-server/app/dto"
	"github.com/badgify/badgify-server/models"
	"github.com/badgify/badgify-server/repository"
	"github.com/badgify/badgify-server/utils"
)

const RequestIDKey = "X-Request-ID"

// ClientMetadata holds all client-related information for audit logging and session tracking
type ClientMetadata struct {
	IPAddress  string            `json:"ip_address"`
	UserAgent  string            `json:"user_agent"`
	DeviceInfo map[string]string `json:"device_info,omitempty"`
	RequestID  string            `json:"request_id,omitempty"`
	Additional map[string]string `json:"additional,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance with basic information
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
		DeviceInfo: make(map[string]string),
		Additional: make(map[string]string),
	}
}

// AddDeviceInfo adds device information to the metadata
func (cm *ClientMetadata) AddDeviceInfo(key, value string) {
	if cm.DeviceInfo == nil {
		cm.DeviceInfo = make(map[string]string)
	}
	cm.DeviceInfo[key] = value
}

// AddAdditional adds additional custom information to the metadata
func (cm *ClientMetadata) AddAdditional(key, value string) {
	if cm.Additional == nil {
		cm.Additional = make(map[string]string)
	}
	cm.Additional[key] = value
}

// SetRequestID sets the request ID
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

// ToTenantDTO converts a tenant model for API responses
func ToTenantDTO(tenant models.Tenant) dto.TenantDTO {
	return dto.TenantDTO{
		UUID:        tenant.UUID.String(),
		ShopDomain:  tenant.ShopDomain,
		Status:      string(tenant.Status),
		InstalledAt: tenant.InstalledAt.Format(time.RFC3339),
	}
}

// ToBadgeDTO converts a badge model for API responses
func ToBadgeDTO(badge models.Badge, assignedCount int64) dto.BadgeDTO {
	return dto.BadgeDTO{
		UUID:   badge.UUID.String(),
		Name:   badge.Name,
		Design: badge.Design,
		Rule: dto.AssignmentRuleDTO{
			Type:     string(badge.Rule.Type),
			Criteria: badge.Rule.Criteria,
		},
		IsActive:      utils.IsTrue(badge.IsActive),
		AssignedCount: assignedCount,
		CreatedAt:     badge.CreatedAt,
		UpdatedAt:     utils.ToPtr(badge.UpdatedAt),
	}
}

// ToSubscriptionDTO converts a subscription model for API responses. Authorized
// and the remaining trial days are computed against now so callers always see a
// consistent pair.
func ToSubscriptionDTO(sub models.Subscription, now time.Time) dto.SubscriptionDTO {
	return dto.SubscriptionDTO{
		UUID:               sub.UUID.String(),
		Status:             string(sub.Status),
		PlanName:           sub.PlanName,
		Price:              sub.Price,
		Currency:           sub.Currency,
		BillingInterval:    sub.BillingInterval,
		TrialDays:          sub.TrialDays,
		TrialEndsAt:        sub.TrialEndsAt,
		TrialDaysRemaining: sub.TrialDaysRemaining(now),
		CurrentPeriodStart: sub.CurrentPeriodStart,
		CurrentPeriodEnd:   sub.CurrentPeriodEnd,
		Authorized:         sub.Authorized(now),
		CreatedAt:          sub.CreatedAt,
	}
}

// getTenant fetches a tenant by ID and rejects uninstalled tenants
func getTenant(ctx context.Context, tenantRepo repository.TenantRepository, tenantID uint) (models.Tenant, error) {
	tenant, err := tenantRepo.ByID(ctx, tenantID)
	if err != nil {
		return models.Tenant{}, err
	}
	if tenant == nil {
		return models.Tenant{}, ErrTenantNotFound
	}
	if !tenant.IsActive() {
		return models.Tenant{}, ErrTenantUninstalled
	}
	return *tenant, nil
}

// getBadge fetches a badge by UUID scoped to the owning tenant
func getBadge(ctx context.Context, badgeRepo repository.BadgeRepository, badgeUUID string, tenantID uint) (models.Badge, error) {
	if badgeUUID == "" {
		return models.Badge{}, ErrBadgeUUIDRequired
	}
	parsed, err := utils.ParseUUID(badgeUUID)
	if err != nil {
		return models.Badge{}, ErrBadgeNotFound
	}
	badge, err := badgeRepo.ByUUIDAndTenant(ctx, parsed, tenantID)
	if err != nil {
		return models.Badge{}, err
	}
	if badge == nil {
		return models.Badge{}, ErrBadgeNotFound
	}
	return *badge, nil
}

// createAuditLog persists an audit record; failure to audit never fails the flow
func createAuditLog(ctx context.Context, auditRepo repository.AuditLogRepository, tenant *models.Tenant, action, description string, success bool, errorMsg *string, metadata *ClientMetadata) error {
	var tenantID *uint
	if tenant != nil {
		tenantID = &tenant.ID
	}

	ipAddress := ""
	userAgent := ""
	if metadata != nil {
		ipAddress = metadata.IPAddress
		userAgent = metadata.UserAgent
	}

	audit := &models.AuditLog{
		TenantID:     tenantID,
		Action:       action,
		Description:  &description,
		Success:      utils.ToPtr(success),
		IPAddress:    &ipAddress,
		UserAgent:    &userAgent,
		ErrorMessage: errorMsg,
	}

	// Extract request ID from context if available
	requestID := ctx.Value(utils.RequestIDKey)
	if requestID != nil {
		requestIDStr, ok := requestID.(string)
		if ok {
			audit.RequestID = &requestIDStr
		}
	}

	return auditRepo.Save(ctx, audit)
}
