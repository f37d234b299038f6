// Package businessflow contains the core business logic for platform webhook workflows
package businessflow

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/badgify/badgify-server/app/dto"
	"github.com/badgify/badgify-server/app/services"
	"github.com/badgify/badgify-server/models"
	"github.com/badgify/badgify-server/repository"
	"github.com/badgify/badgify-server/utils"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// WebhookFlow handles platform webhook deliveries. Deliveries are acknowledged even
// when the shop is unknown; the platform retries on non-2xx and an unknown shop
// will never become known by retrying.
type WebhookFlow interface {
	HandleCatalogChanged(ctx context.Context, req *dto.WebhookRequest, metadata *ClientMetadata) (*dto.WebhookResponse, error)
	HandleAppUninstalled(ctx context.Context, req *dto.WebhookRequest, metadata *ClientMetadata) (*dto.WebhookResponse, error)
	HandleShopRedact(ctx context.Context, req *dto.WebhookRequest, metadata *ClientMetadata) (*dto.WebhookResponse, error)
	HandleCustomersRedact(ctx context.Context, req *dto.WebhookRequest, metadata *ClientMetadata) (*dto.WebhookResponse, error)
	HandleCustomersDataRequest(ctx context.Context, req *dto.WebhookRequest, metadata *ClientMetadata) (*dto.WebhookResponse, error)
}

// WebhookFlowImpl implements the webhook business flow
type WebhookFlowImpl struct {
	tenantRepo       repository.TenantRepository
	badgeRepo        repository.BadgeRepository
	assignmentRepo   repository.BadgeAssignmentRepository
	runRepo          repository.ResolutionRunRepository
	jobRepo          repository.ResolutionJobRepository
	subscriptionRepo repository.SubscriptionRepository
	auditRepo        repository.AuditLogRepository
	rc               *redis.Client
	db               *gorm.DB
}

// NewWebhookFlow creates a new webhook flow instance
func NewWebhookFlow(
	tenantRepo repository.TenantRepository,
	badgeRepo repository.BadgeRepository,
	assignmentRepo repository.BadgeAssignmentRepository,
	runRepo repository.ResolutionRunRepository,
	jobRepo repository.ResolutionJobRepository,
	subscriptionRepo repository.SubscriptionRepository,
	auditRepo repository.AuditLogRepository,
	rc *redis.Client,
	db *gorm.DB,
) WebhookFlow {
	return &WebhookFlowImpl{
		tenantRepo:       tenantRepo,
		badgeRepo:        badgeRepo,
		assignmentRepo:   assignmentRepo,
		runRepo:          runRepo,
		jobRepo:          jobRepo,
		subscriptionRepo: subscriptionRepo,
		auditRepo:        auditRepo,
		rc:               rc,
		db:               db,
	}
}

// HandleCatalogChanged reacts to product and collection change deliveries: the
// cached catalog snapshot is dropped and every automatic badge of the tenant gets a
// re-resolution queued. Manual badges are untouched by catalog changes.
func (s *WebhookFlowImpl) HandleCatalogChanged(ctx context.Context, req *dto.WebhookRequest, metadata *ClientMetadata) (*dto.WebhookResponse, error) {
	tenant, err := s.tenantRepo.ByShopDomain(ctx, req.ShopDomain)
	if err != nil {
		return nil, NewBusinessError("TENANT_LOOKUP_FAILED", "Failed to lookup tenant", err)
	}
	if tenant == nil || !tenant.IsActive() {
		return &dto.WebhookResponse{Message: "Webhook acknowledged"}, nil
	}

	if err := services.InvalidateCatalogSnapshot(ctx, s.rc, tenant.ID); err != nil {
		// Stale cache only delays the rebuild by one TTL; the jobs below still
		// run against whatever snapshot the next read produces
		errMsg := fmt.Sprintf("Catalog cache invalidation failed for %s: %s", tenant.ShopDomain, err.Error())
		_ = createAuditLog(ctx, s.auditRepo, tenant, models.AuditActionWebhookReceived, errMsg, false, &errMsg, metadata)
	}

	badges, err := s.badgeRepo.ListAutomaticByTenant(ctx, tenant.ID)
	if err != nil {
		return nil, NewBusinessError("BADGE_LIST_FAILED", "Failed to list badges", err)
	}

	reason := fmt.Sprintf("webhook:%s", req.Topic)
	for _, badge := range badges {
		if err := s.jobRepo.EnqueuePending(ctx, tenant.ID, badge.ID, reason); err != nil {
			return nil, NewBusinessError("REBUILD_ENQUEUE_FAILED", "Failed to enqueue rebuild", err)
		}
	}

	msg := fmt.Sprintf("Catalog webhook %s for %s: %d badges queued", req.Topic, tenant.ShopDomain, len(badges))
	_ = createAuditLog(ctx, s.auditRepo, tenant, models.AuditActionWebhookReceived, msg, true, nil, metadata)

	return &dto.WebhookResponse{Message: "Webhook acknowledged"}, nil
}

// HandleAppUninstalled cancels the subscription and marks the tenant uninstalled.
// Badge data is kept so a reinstall restores the merchant's setup; erasure happens
// only on the shop-redact delivery.
func (s *WebhookFlowImpl) HandleAppUninstalled(ctx context.Context, req *dto.WebhookRequest, metadata *ClientMetadata) (*dto.WebhookResponse, error) {
	tenant, err := s.tenantRepo.ByShopDomain(ctx, req.ShopDomain)
	if err != nil {
		return nil, NewBusinessError("TENANT_LOOKUP_FAILED", "Failed to lookup tenant", err)
	}
	if tenant == nil {
		return &dto.WebhookResponse{Message: "Webhook acknowledged"}, nil
	}

	err = repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		sub, err := s.subscriptionRepo.ByTenantID(txCtx, tenant.ID)
		if err != nil {
			return err
		}
		if sub != nil && sub.Status != models.SubscriptionStatusCancelled {
			sub.Status = models.SubscriptionStatusCancelled
			if err := s.subscriptionRepo.Update(txCtx, sub); err != nil {
				return err
			}
		}

		return s.tenantRepo.MarkUninstalled(txCtx, tenant.ID, utils.UTCNow())
	})
	if err != nil {
		return nil, NewBusinessError("TENANT_UNINSTALL_FAILED", "Failed to process uninstall", err)
	}

	msg := fmt.Sprintf("Tenant uninstalled: %s", tenant.ShopDomain)
	_ = createAuditLog(ctx, s.auditRepo, tenant, models.AuditActionTenantUninstalled, msg, true, nil, metadata)

	return &dto.WebhookResponse{Message: "Webhook acknowledged"}, nil
}

// HandleShopRedact erases everything stored for the shop: badges, assignments,
// resolution history, queued jobs, the subscription, and past audit entries. The
// tenant row itself survives as an uninstalled tombstone.
func (s *WebhookFlowImpl) HandleShopRedact(ctx context.Context, req *dto.WebhookRequest, metadata *ClientMetadata) (*dto.WebhookResponse, error) {
	var payload dto.ShopRedactPayload
	if len(req.Payload) > 0 {
		_ = json.Unmarshal(req.Payload, &payload)
	}
	shopDomain := payload.ShopDomain
	if shopDomain == "" {
		shopDomain = req.ShopDomain
	}

	tenant, err := s.tenantRepo.ByShopDomain(ctx, shopDomain)
	if err != nil {
		return nil, NewBusinessError("TENANT_LOOKUP_FAILED", "Failed to lookup tenant", err)
	}
	if tenant == nil {
		return &dto.WebhookResponse{Message: "Webhook acknowledged"}, nil
	}

	err = repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		if err := s.assignmentRepo.DeleteByTenant(txCtx, tenant.ID); err != nil {
			return err
		}
		if err := s.runRepo.DeleteByTenant(txCtx, tenant.ID); err != nil {
			return err
		}
		if err := s.jobRepo.DeleteByTenant(txCtx, tenant.ID); err != nil {
			return err
		}
		if err := s.badgeRepo.DeleteByTenant(txCtx, tenant.ID); err != nil {
			return err
		}
		if err := s.subscriptionRepo.DeleteByTenant(txCtx, tenant.ID); err != nil {
			return err
		}
		if err := s.auditRepo.DeleteByTenant(txCtx, tenant.ID); err != nil {
			return err
		}
		if tenant.IsActive() {
			return s.tenantRepo.MarkUninstalled(txCtx, tenant.ID, utils.UTCNow())
		}
		return nil
	})
	if err != nil {
		return nil, NewBusinessError("TENANT_REDACT_FAILED", "Failed to erase tenant data", err)
	}

	msg := fmt.Sprintf("Tenant data erased: %s", shopDomain)
	_ = createAuditLog(ctx, s.auditRepo, tenant, models.AuditActionTenantDataErased, msg, true, nil, metadata)

	return &dto.WebhookResponse{Message: "Webhook acknowledged"}, nil
}

// HandleCustomersRedact acknowledges the delivery. The platform requires the
// endpoint, but no shopper-level data is stored here: assignments reference
// products, not customers.
func (s *WebhookFlowImpl) HandleCustomersRedact(ctx context.Context, req *dto.WebhookRequest, metadata *ClientMetadata) (*dto.WebhookResponse, error) {
	return s.acknowledgeCustomerWebhook(ctx, req, models.AuditActionWebhookReceived, metadata)
}

// HandleCustomersDataRequest reports that no customer data is stored
func (s *WebhookFlowImpl) HandleCustomersDataRequest(ctx context.Context, req *dto.WebhookRequest, metadata *ClientMetadata) (*dto.WebhookResponse, error) {
	return s.acknowledgeCustomerWebhook(ctx, req, models.AuditActionCustomerDataReport, metadata)
}

func (s *WebhookFlowImpl) acknowledgeCustomerWebhook(ctx context.Context, req *dto.WebhookRequest, action string, metadata *ClientMetadata) (*dto.WebhookResponse, error) {
	tenant, err := s.tenantRepo.ByShopDomain(ctx, req.ShopDomain)
	if err != nil {
		return nil, NewBusinessError("TENANT_LOOKUP_FAILED", "Failed to lookup tenant", err)
	}

	msg := fmt.Sprintf("Customer webhook %s for %s: no customer data stored", req.Topic, req.ShopDomain)
	_ = createAuditLog(ctx, s.auditRepo, tenant, action, msg, true, nil, metadata)

	return &dto.WebhookResponse{Message: "Webhook acknowledged"}, nil
}
