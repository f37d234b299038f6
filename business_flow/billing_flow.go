// Package businessflow contains the core business logic for subscription workflows
package businessflow

import (
	"context"
	"fmt"
	"time"

	"github.com/badgify/badgify-server/app/dto"
	"github.com/badgify/badgify-server/app/services"
	"github.com/badgify/badgify-server/config"
	"github.com/badgify/badgify-server/models"
	"github.com/badgify/badgify-server/repository"
	"github.com/badgify/badgify-server/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gorm.io/gorm"
)

var (
	trialsExpiredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trials_expired_total",
			Help: "Total number of trial subscriptions expired by the sweeper",
		},
	)

	subscriptionTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscription_transitions_total",
			Help: "Total number of subscription status transitions",
		},
		[]string{"to"},
	)
)

// BillingFlow handles the subscription lifecycle business logic
type BillingFlow interface {
	GetOrCreateSubscription(ctx context.Context, tenantID uint) (*models.Subscription, error)
	GetSubscription(ctx context.Context, req *dto.GetSubscriptionRequest) (*dto.GetSubscriptionResponse, error)
	Subscribe(ctx context.Context, req *dto.SubscribeRequest, metadata *ClientMetadata) (*dto.SubscribeResponse, error)
	ActivateSubscription(ctx context.Context, req *dto.ActivateSubscriptionRequest, metadata *ClientMetadata) (*dto.ActivateSubscriptionResponse, error)
	CancelSubscription(ctx context.Context, req *dto.CancelSubscriptionRequest, metadata *ClientMetadata) (*dto.CancelSubscriptionResponse, error)
	IsAuthorized(ctx context.Context, tenantID uint, now time.Time) (bool, error)
	SweepExpiredTrials(ctx context.Context) (int64, error)
}

// BillingFlowImpl implements the billing business flow
type BillingFlowImpl struct {
	tenantRepo       repository.TenantRepository
	subscriptionRepo repository.SubscriptionRepository
	auditRepo        repository.AuditLogRepository
	billing          services.BillingClient
	billingConfig    config.BillingConfig
	db               *gorm.DB
}

// NewBillingFlow creates a new billing flow instance
func NewBillingFlow(
	tenantRepo repository.TenantRepository,
	subscriptionRepo repository.SubscriptionRepository,
	auditRepo repository.AuditLogRepository,
	billing services.BillingClient,
	billingConfig config.BillingConfig,
	db *gorm.DB,
) BillingFlow {
	return &BillingFlowImpl{
		tenantRepo:       tenantRepo,
		subscriptionRepo: subscriptionRepo,
		auditRepo:        auditRepo,
		billing:          billing,
		billingConfig:    billingConfig,
		db:               db,
	}
}

// GetOrCreateSubscription returns the tenant's subscription, creating the pending
// trial record on first touch. The trial window is fixed at creation and never
// extended.
func (s *BillingFlowImpl) GetOrCreateSubscription(ctx context.Context, tenantID uint) (*models.Subscription, error) {
	sub, err := s.subscriptionRepo.ByTenantID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if sub != nil {
		return sub, nil
	}

	now := utils.UTCNow()
	sub = &models.Subscription{
		TenantID:        tenantID,
		Status:          models.SubscriptionStatusPending,
		PlanName:        s.billingConfig.PlanName,
		Price:           s.billingConfig.Price,
		Currency:        s.billingConfig.Currency,
		BillingInterval: s.billingConfig.BillingInterval,
		TrialDays:       s.billingConfig.TrialDays,
		TrialEndsAt:     utils.ToPtr(now.Add(time.Duration(s.billingConfig.TrialDays) * 24 * time.Hour)),
	}
	if err := s.subscriptionRepo.Save(ctx, sub); err != nil {
		return nil, err
	}

	subscriptionTransitionsTotal.WithLabelValues(string(models.SubscriptionStatusPending)).Inc()

	return sub, nil
}

// GetSubscription returns the tenant's subscription summary including the live
// authorization verdict and remaining trial days.
func (s *BillingFlowImpl) GetSubscription(ctx context.Context, req *dto.GetSubscriptionRequest) (*dto.GetSubscriptionResponse, error) {
	tenant, err := getTenant(ctx, s.tenantRepo, req.TenantID)
	if err != nil {
		return nil, NewBusinessError("TENANT_LOOKUP_FAILED", "Failed to lookup tenant", err)
	}

	sub, err := s.GetOrCreateSubscription(ctx, tenant.ID)
	if err != nil {
		return nil, NewBusinessError("SUBSCRIPTION_LOOKUP_FAILED", "Failed to lookup subscription", err)
	}

	return &dto.GetSubscriptionResponse{
		Message:      "Subscription retrieved successfully",
		Subscription: ToSubscriptionDTO(*sub, utils.UTCNow()),
	}, nil
}

// Subscribe submits the plan to the billing authority. A cancelled or expired
// subscription re-enters the flow here; an already-active one is rejected. When the
// authority reports the charge active immediately the subscription activates in the
// same call, otherwise it stays pending until the approval callback.
func (s *BillingFlowImpl) Subscribe(ctx context.Context, req *dto.SubscribeRequest, metadata *ClientMetadata) (*dto.SubscribeResponse, error) {
	tenant, err := getTenant(ctx, s.tenantRepo, req.TenantID)
	if err != nil {
		return nil, NewBusinessError("TENANT_LOOKUP_FAILED", "Failed to lookup tenant", err)
	}

	sub, err := s.GetOrCreateSubscription(ctx, tenant.ID)
	if err != nil {
		return nil, NewBusinessError("SUBSCRIPTION_LOOKUP_FAILED", "Failed to lookup subscription", err)
	}

	if sub.IsActive() {
		return nil, NewBusinessError("SUBSCRIPTION_ALREADY_ACTIVE", "Subscription is already active", ErrSubscriptionAlreadyActive)
	}

	returnURL := req.ReturnURL
	if returnURL == "" {
		returnURL = s.billingConfig.ReturnURL
	}

	result, err := s.billing.RequestSubscription(ctx, &tenant, &services.SubscriptionRequest{
		PlanName:        sub.PlanName,
		Price:           sub.Price,
		Currency:        sub.Currency,
		BillingInterval: sub.BillingInterval,
		TrialDays:       sub.TrialDays,
		ReturnURL:       returnURL,
	})
	if err != nil {
		// A failed authority call invalidates the pending record so the guard
		// stops authorizing on a stale trial
		sub.Status = models.SubscriptionStatusCancelled
		_ = s.subscriptionRepo.Update(ctx, sub)
		subscriptionTransitionsTotal.WithLabelValues(string(models.SubscriptionStatusCancelled)).Inc()

		errMsg := fmt.Sprintf("Subscribe failed for tenant %s: %s", tenant.ShopDomain, err.Error())
		_ = createAuditLog(ctx, s.auditRepo, &tenant, models.AuditActionSubscribeFailed, errMsg, false, &errMsg, metadata)

		return nil, NewBusinessError("BILLING_AUTHORITY_FAILURE", "Billing authority failure", fmt.Errorf("%w: %v", ErrBillingAuthorityFailure, err))
	}

	sub.ExternalID = &result.ExternalID
	sub.Status = models.SubscriptionStatusPending
	if result.Status == "active" {
		s.applyActivation(sub)
	}
	if err := s.subscriptionRepo.Update(ctx, sub); err != nil {
		return nil, NewBusinessError("SUBSCRIPTION_UPDATE_FAILED", "Failed to update subscription", err)
	}
	subscriptionTransitionsTotal.WithLabelValues(string(sub.Status)).Inc()

	action := models.AuditActionSubscriptionCreated
	if sub.IsActive() {
		action = models.AuditActionSubscriptionActivated
	}
	msg := fmt.Sprintf("Subscription %s for tenant %s: external_id=%s", sub.Status, tenant.ShopDomain, result.ExternalID)
	_ = createAuditLog(ctx, s.auditRepo, &tenant, action, msg, true, nil, metadata)

	return &dto.SubscribeResponse{
		Message:         "Subscription requested successfully",
		ConfirmationURL: result.ConfirmationURL,
		ExternalID:      result.ExternalID,
		Status:          string(sub.Status),
	}, nil
}

// ActivateSubscription handles the billing authority's approval callback. The
// external id must match the charge the subscribe call recorded.
func (s *BillingFlowImpl) ActivateSubscription(ctx context.Context, req *dto.ActivateSubscriptionRequest, metadata *ClientMetadata) (*dto.ActivateSubscriptionResponse, error) {
	tenant, err := getTenant(ctx, s.tenantRepo, req.TenantID)
	if err != nil {
		return nil, NewBusinessError("TENANT_LOOKUP_FAILED", "Failed to lookup tenant", err)
	}

	sub, err := s.subscriptionRepo.ByTenantID(ctx, tenant.ID)
	if err != nil {
		return nil, NewBusinessError("SUBSCRIPTION_LOOKUP_FAILED", "Failed to lookup subscription", err)
	}
	if sub == nil {
		return nil, NewBusinessError("SUBSCRIPTION_NOT_FOUND", "Subscription not found", ErrSubscriptionNotFound)
	}

	if sub.ExternalID == nil || *sub.ExternalID != req.ExternalID {
		return nil, NewBusinessError("SUBSCRIPTION_NOT_PENDING", "No matching pending charge", ErrSubscriptionNotPending)
	}
	if sub.IsActive() {
		return &dto.ActivateSubscriptionResponse{
			Message:      "Subscription already active",
			Subscription: ToSubscriptionDTO(*sub, utils.UTCNow()),
		}, nil
	}

	s.applyActivation(sub)
	if err := s.subscriptionRepo.Update(ctx, sub); err != nil {
		return nil, NewBusinessError("SUBSCRIPTION_UPDATE_FAILED", "Failed to update subscription", err)
	}
	subscriptionTransitionsTotal.WithLabelValues(string(models.SubscriptionStatusActive)).Inc()

	msg := fmt.Sprintf("Subscription activated for tenant %s: external_id=%s", tenant.ShopDomain, req.ExternalID)
	_ = createAuditLog(ctx, s.auditRepo, &tenant, models.AuditActionSubscriptionActivated, msg, true, nil, metadata)

	return &dto.ActivateSubscriptionResponse{
		Message:      "Subscription activated successfully",
		Subscription: ToSubscriptionDTO(*sub, utils.UTCNow()),
	}, nil
}

// CancelSubscription cancels the tenant's subscription. The billing authority is
// notified best-effort; the local transition is authoritative for the guard.
func (s *BillingFlowImpl) CancelSubscription(ctx context.Context, req *dto.CancelSubscriptionRequest, metadata *ClientMetadata) (*dto.CancelSubscriptionResponse, error) {
	tenant, err := getTenant(ctx, s.tenantRepo, req.TenantID)
	if err != nil {
		return nil, NewBusinessError("TENANT_LOOKUP_FAILED", "Failed to lookup tenant", err)
	}

	sub, err := s.subscriptionRepo.ByTenantID(ctx, tenant.ID)
	if err != nil {
		return nil, NewBusinessError("SUBSCRIPTION_LOOKUP_FAILED", "Failed to lookup subscription", err)
	}
	if sub == nil {
		return nil, NewBusinessError("SUBSCRIPTION_NOT_FOUND", "Subscription not found", ErrSubscriptionNotFound)
	}

	if sub.ExternalID != nil {
		_ = s.billing.CancelSubscription(ctx, &tenant, *sub.ExternalID)
	}

	sub.Status = models.SubscriptionStatusCancelled
	if err := s.subscriptionRepo.Update(ctx, sub); err != nil {
		return nil, NewBusinessError("SUBSCRIPTION_UPDATE_FAILED", "Failed to update subscription", err)
	}
	subscriptionTransitionsTotal.WithLabelValues(string(models.SubscriptionStatusCancelled)).Inc()

	msg := fmt.Sprintf("Subscription cancelled for tenant %s", tenant.ShopDomain)
	_ = createAuditLog(ctx, s.auditRepo, &tenant, models.AuditActionSubscriptionCancelled, msg, true, nil, metadata)

	return &dto.CancelSubscriptionResponse{
		Message:      "Subscription cancelled successfully",
		Subscription: ToSubscriptionDTO(*sub, utils.UTCNow()),
	}, nil
}

// IsAuthorized is the flow-level authorization check. A tenant with no
// subscription row is unauthorized, never an error path crash.
func (s *BillingFlowImpl) IsAuthorized(ctx context.Context, tenantID uint, now time.Time) (bool, error) {
	sub, err := s.subscriptionRepo.ByTenantID(ctx, tenantID)
	if err != nil {
		return false, err
	}
	return sub.Authorized(now), nil
}

// SweepExpiredTrials moves every pending subscription whose trial window has passed
// to expired. The update is conditional on the stored status so a concurrent
// activation always wins; running the sweep twice is a no-op.
func (s *BillingFlowImpl) SweepExpiredTrials(ctx context.Context) (int64, error) {
	count, err := s.subscriptionRepo.ExpireTrials(ctx, utils.UTCNow())
	if err != nil {
		return 0, err
	}

	if count > 0 {
		trialsExpiredTotal.Add(float64(count))
		subscriptionTransitionsTotal.WithLabelValues(string(models.SubscriptionStatusExpired)).Add(float64(count))
	}

	return count, nil
}

// applyActivation moves a subscription to active and opens the current billing period
func (s *BillingFlowImpl) applyActivation(sub *models.Subscription) {
	now := utils.UTCNow()
	sub.Status = models.SubscriptionStatusActive
	sub.CurrentPeriodStart = utils.ToPtr(now)
	sub.CurrentPeriodEnd = utils.ToPtr(now.Add(time.Duration(s.billingConfig.PeriodDays) * 24 * time.Hour))
}
