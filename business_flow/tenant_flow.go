// Package businessflow contains the core business logic for tenant install workflows
package businessflow

import (
	"context"
	"fmt"

	"github.com/badgify/badgify-server/app/dto"
	"github.com/badgify/badgify-server/app/services"
	"github.com/badgify/badgify-server/models"
	"github.com/badgify/badgify-server/repository"
	"github.com/badgify/badgify-server/utils"
	"gorm.io/gorm"
)

// TenantFlow handles the install handshake and tenant session logic
type TenantFlow interface {
	Install(ctx context.Context, req *dto.InstallTenantRequest, metadata *ClientMetadata) (*dto.InstallTenantResponse, error)
	GetTenant(ctx context.Context, req *dto.GetTenantRequest) (*dto.GetTenantResponse, error)
}

// TenantFlowImpl implements the tenant business flow
type TenantFlowImpl struct {
	tenantRepo repository.TenantRepository
	auditRepo  repository.AuditLogRepository
	billing    BillingFlow
	tokens     services.TokenService
	db         *gorm.DB
}

// NewTenantFlow creates a new tenant flow instance
func NewTenantFlow(
	tenantRepo repository.TenantRepository,
	auditRepo repository.AuditLogRepository,
	billing BillingFlow,
	tokens services.TokenService,
	db *gorm.DB,
) TenantFlow {
	return &TenantFlowImpl{
		tenantRepo: tenantRepo,
		auditRepo:  auditRepo,
		billing:    billing,
		tokens:     tokens,
		db:         db,
	}
}

// Install handles the app installation handshake: upsert the tenant record, start
// the trial subscription on first install, and issue a session token. Reinstalling
// an uninstalled shop reactivates it with the fresh access token.
func (s *TenantFlowImpl) Install(ctx context.Context, req *dto.InstallTenantRequest, metadata *ClientMetadata) (*dto.InstallTenantResponse, error) {
	if req.ShopDomain == "" {
		return nil, NewBusinessError("TENANT_VALIDATION_FAILED", "Tenant validation failed", ErrShopDomainRequired)
	}

	var tenant *models.Tenant

	err := repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		existing, err := s.tenantRepo.ByShopDomain(txCtx, req.ShopDomain)
		if err != nil {
			return err
		}

		if existing == nil {
			tenant = &models.Tenant{
				ShopDomain:  req.ShopDomain,
				AccessToken: req.AccessToken,
				Status:      models.TenantStatusActive,
				InstalledAt: utils.UTCNow(),
			}
			return s.tenantRepo.Save(txCtx, tenant)
		}

		existing.AccessToken = req.AccessToken
		existing.Status = models.TenantStatusActive
		existing.InstalledAt = utils.UTCNow()
		existing.UninstalledAt = nil
		tenant = existing
		return s.tenantRepo.Update(txCtx, existing)
	})
	if err != nil {
		errMsg := fmt.Sprintf("Install failed for shop %s: %s", req.ShopDomain, err.Error())
		_ = createAuditLog(ctx, s.auditRepo, nil, models.AuditActionTenantInstalled, errMsg, false, &errMsg, metadata)

		return nil, NewBusinessError("TENANT_INSTALL_FAILED", "Tenant installation failed", err)
	}

	sub, err := s.billing.GetOrCreateSubscription(ctx, tenant.ID)
	if err != nil {
		return nil, NewBusinessError("SUBSCRIPTION_CREATION_FAILED", "Failed to create subscription", err)
	}

	token, err := s.tokens.GenerateToken(tenant.ID, tenant.ShopDomain)
	if err != nil {
		return nil, NewBusinessError("TOKEN_GENERATION_FAILED", "Failed to generate session token", err)
	}

	msg := fmt.Sprintf("Tenant installed successfully: %s", tenant.ShopDomain)
	_ = createAuditLog(ctx, s.auditRepo, tenant, models.AuditActionTenantInstalled, msg, true, nil, metadata)

	return &dto.InstallTenantResponse{
		Message:      "Tenant installed successfully",
		Token:        token,
		Tenant:       ToTenantDTO(*tenant),
		Subscription: ToSubscriptionDTO(*sub, utils.UTCNow()),
	}, nil
}

// GetTenant returns the current tenant
func (s *TenantFlowImpl) GetTenant(ctx context.Context, req *dto.GetTenantRequest) (*dto.GetTenantResponse, error) {
	tenant, err := getTenant(ctx, s.tenantRepo, req.TenantID)
	if err != nil {
		return nil, NewBusinessError("TENANT_LOOKUP_FAILED", "Failed to lookup tenant", err)
	}

	return &dto.GetTenantResponse{
		Message: "Tenant retrieved successfully",
		Tenant:  ToTenantDTO(tenant),
	}, nil
}
