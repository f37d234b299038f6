// Package middleware contains HTTP middleware functions for request processing
package middleware

import (
	"context"
	"log"
	"time"

	"github.com/badgify/badgify-server/app/dto"
	businessflow "github.com/badgify/badgify-server/business_flow"
	"github.com/badgify/badgify-server/utils"
	"github.com/gofiber/fiber/v3"
)

// SubscriptionGuard blocks badge management for tenants whose trial has lapsed
// without an active subscription. Billing endpoints stay reachable so the
// merchant can subscribe their way back in.
type SubscriptionGuard struct {
	billingFlow businessflow.BillingFlow
}

// NewSubscriptionGuard creates a new subscription guard middleware
func NewSubscriptionGuard(billingFlow businessflow.BillingFlow) *SubscriptionGuard {
	return &SubscriptionGuard{
		billingFlow: billingFlow,
	}
}

// RequireActiveSubscription is the middleware function that enforces the
// trial-or-active authorization predicate
func (m *SubscriptionGuard) RequireActiveSubscription() fiber.Handler {
	return func(c fiber.Ctx) error {
		tenantID, ok := GetTenantIDFromContext(c)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
				Success: false,
				Message: "Tenant ID not found in context",
				Error: dto.ErrorDetail{
					Code: "MISSING_TENANT_ID",
				},
			})
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		authorized, err := m.billingFlow.IsAuthorized(ctx, tenantID, utils.UTCNow())
		if err != nil {
			log.Println("Subscription check failed", err)
			return c.Status(fiber.StatusInternalServerError).JSON(dto.APIResponse{
				Success: false,
				Message: "Subscription check failed",
				Error: dto.ErrorDetail{
					Code: "SUBSCRIPTION_CHECK_FAILED",
				},
			})
		}

		if !authorized {
			return c.Status(fiber.StatusPaymentRequired).JSON(dto.APIResponse{
				Success: false,
				Message: "An active subscription is required",
				Error: dto.ErrorDetail{
					Code:    "SUBSCRIPTION_REQUIRED",
					Details: fiber.Map{"subscribe_url": "/api/v1/billing/subscribe"},
				},
			})
		}

		return c.Next()
	}
}
