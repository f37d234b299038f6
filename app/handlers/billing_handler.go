// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"log"

	"github.com/badgify/badgify-server/app/dto"
	businessflow "github.com/badgify/badgify-server/business_flow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// BillingHandlerInterface defines the contract for billing handlers
type BillingHandlerInterface interface {
	GetSubscription(c fiber.Ctx) error
	Subscribe(c fiber.Ctx) error
	ActivateSubscription(c fiber.Ctx) error
	CancelSubscription(c fiber.Ctx) error
}

// BillingHandler handles subscription HTTP requests
type BillingHandler struct {
	billingFlow businessflow.BillingFlow
	validator   *validator.Validate
}

func (h *BillingHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *BillingHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// NewBillingHandler creates a new billing handler
func NewBillingHandler(billingFlow businessflow.BillingFlow) *BillingHandler {
	return &BillingHandler{
		billingFlow: billingFlow,
		validator:   validator.New(),
	}
}

func (h *BillingHandler) mapBillingError(c fiber.Ctx, err error) (error, bool) {
	if businessflow.IsTenantNotFound(err) {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Tenant not found", "TENANT_NOT_FOUND", nil), true
	}
	if businessflow.IsTenantUninstalled(err) {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Tenant is uninstalled", "TENANT_UNINSTALLED", nil), true
	}
	if businessflow.IsSubscriptionNotFound(err) {
		return h.ErrorResponse(c, fiber.StatusNotFound, "Subscription not found", "SUBSCRIPTION_NOT_FOUND", nil), true
	}
	return nil, false
}

// GetSubscription handles fetching the tenant's subscription
// @Summary Get Subscription
// @Description Get the current tenant's subscription state
// @Tags Billing
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.GetSubscriptionResponse} "Subscription retrieved successfully"
// @Failure 401 {object} dto.APIResponse "Unauthorized - tenant not found or uninstalled"
// @Router /api/v1/billing/subscription [get]
func (h *BillingHandler) GetSubscription(c fiber.Ctx) error {
	tenantID, ok := tenantIDFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Tenant ID not found in context", "MISSING_TENANT_ID", nil)
	}

	req := dto.GetSubscriptionRequest{TenantID: tenantID}

	result, err := h.billingFlow.GetSubscription(createRequestContext(c, "/api/v1/billing/subscription"), &req)
	if err != nil {
		if resp, handled := h.mapBillingError(c, err); handled {
			return resp
		}

		log.Println("Subscription retrieval failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Subscription retrieval failed", "SUBSCRIPTION_RETRIEVAL_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Subscription retrieved successfully", result)
}

// Subscribe handles starting a paid subscription
// @Summary Subscribe
// @Description Request a paid subscription from the billing authority
// @Tags Billing
// @Accept json
// @Produce json
// @Param request body dto.SubscribeRequest true "Subscription data"
// @Success 200 {object} dto.APIResponse{data=dto.SubscribeResponse} "Subscription requested successfully"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 401 {object} dto.APIResponse "Unauthorized - tenant not found or uninstalled"
// @Failure 409 {object} dto.APIResponse "Subscription already active"
// @Failure 502 {object} dto.APIResponse "Billing authority failure"
// @Router /api/v1/billing/subscribe [post]
func (h *BillingHandler) Subscribe(c fiber.Ctx) error {
	var req dto.SubscribeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	tenantID, ok := tenantIDFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Tenant ID not found in context", "MISSING_TENANT_ID", nil)
	}
	req.TenantID = tenantID

	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors(err))
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.billingFlow.Subscribe(createRequestContext(c, "/api/v1/billing/subscribe"), &req, metadata)
	if err != nil {
		if resp, handled := h.mapBillingError(c, err); handled {
			return resp
		}
		if businessflow.IsSubscriptionAlreadyActive(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Subscription is already active", "SUBSCRIPTION_ALREADY_ACTIVE", nil)
		}
		if businessflow.IsBillingAuthorityFailure(err) {
			return h.ErrorResponse(c, fiber.StatusBadGateway, "Billing authority rejected the request", "BILLING_AUTHORITY_FAILURE", nil)
		}

		log.Println("Subscription request failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Subscription request failed", "SUBSCRIBE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Subscription requested successfully", result)
}

// ActivateSubscription handles the billing authority's activation callback
// @Summary Activate Subscription
// @Description Activate a pending subscription after merchant approval
// @Tags Billing
// @Accept json
// @Produce json
// @Param request body dto.ActivateSubscriptionRequest true "Activation data"
// @Success 200 {object} dto.APIResponse{data=dto.ActivateSubscriptionResponse} "Subscription activated successfully"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 401 {object} dto.APIResponse "Unauthorized - tenant not found or uninstalled"
// @Failure 404 {object} dto.APIResponse "Subscription not found"
// @Failure 409 {object} dto.APIResponse "Subscription not pending"
// @Router /api/v1/billing/activate [post]
func (h *BillingHandler) ActivateSubscription(c fiber.Ctx) error {
	var req dto.ActivateSubscriptionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	tenantID, ok := tenantIDFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Tenant ID not found in context", "MISSING_TENANT_ID", nil)
	}
	req.TenantID = tenantID

	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors(err))
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.billingFlow.ActivateSubscription(createRequestContext(c, "/api/v1/billing/activate"), &req, metadata)
	if err != nil {
		if resp, handled := h.mapBillingError(c, err); handled {
			return resp
		}
		if businessflow.IsSubscriptionNotPending(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Subscription is not awaiting activation", "SUBSCRIPTION_NOT_PENDING", nil)
		}

		log.Println("Subscription activation failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Subscription activation failed", "ACTIVATION_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Subscription activated successfully", result)
}

// CancelSubscription handles cancelling the tenant's subscription
// @Summary Cancel Subscription
// @Description Cancel the current tenant's subscription
// @Tags Billing
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.CancelSubscriptionResponse} "Subscription cancelled successfully"
// @Failure 401 {object} dto.APIResponse "Unauthorized - tenant not found or uninstalled"
// @Failure 404 {object} dto.APIResponse "Subscription not found"
// @Router /api/v1/billing/cancel [post]
func (h *BillingHandler) CancelSubscription(c fiber.Ctx) error {
	tenantID, ok := tenantIDFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Tenant ID not found in context", "MISSING_TENANT_ID", nil)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	req := dto.CancelSubscriptionRequest{TenantID: tenantID}

	result, err := h.billingFlow.CancelSubscription(createRequestContext(c, "/api/v1/billing/cancel"), &req, metadata)
	if err != nil {
		if resp, handled := h.mapBillingError(c, err); handled {
			return resp
		}

		log.Println("Subscription cancellation failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Subscription cancellation failed", "CANCELLATION_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Subscription cancelled successfully", result)
}
