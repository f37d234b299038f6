// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"log"

	"github.com/badgify/badgify-server/app/dto"
	businessflow "github.com/badgify/badgify-server/business_flow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// TenantHandlerInterface defines the contract for tenant handlers
type TenantHandlerInterface interface {
	Install(c fiber.Ctx) error
	GetTenant(c fiber.Ctx) error
}

// TenantHandler handles tenant installation HTTP requests
type TenantHandler struct {
	tenantFlow businessflow.TenantFlow
	validator  *validator.Validate
}

func (h *TenantHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *TenantHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// NewTenantHandler creates a new tenant handler
func NewTenantHandler(tenantFlow businessflow.TenantFlow) *TenantHandler {
	return &TenantHandler{
		tenantFlow: tenantFlow,
		validator:  validator.New(),
	}
}

// Install handles shop installation and reinstallation
// @Summary Install Tenant
// @Description Register a shop, start its trial subscription and issue an API token
// @Tags Tenants
// @Accept json
// @Produce json
// @Param request body dto.InstallTenantRequest true "Installation data"
// @Success 201 {object} dto.APIResponse{data=dto.InstallTenantResponse} "Tenant installed successfully"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Router /api/v1/tenants/install [post]
func (h *TenantHandler) Install(c fiber.Ctx) error {
	var req dto.InstallTenantRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors(err))
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.tenantFlow.Install(createRequestContext(c, "/api/v1/tenants/install"), &req, metadata)
	if err != nil {
		if businessflow.IsShopDomainRequired(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Shop domain is required", "SHOP_DOMAIN_REQUIRED", nil)
		}

		log.Println("Tenant installation failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Tenant installation failed", "INSTALLATION_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Tenant installed successfully", result)
}

// GetTenant handles fetching the current tenant
// @Summary Get Tenant
// @Description Get the authenticated tenant's profile
// @Tags Tenants
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.GetTenantResponse} "Tenant retrieved successfully"
// @Failure 401 {object} dto.APIResponse "Unauthorized - tenant not found or uninstalled"
// @Router /api/v1/tenants/me [get]
func (h *TenantHandler) GetTenant(c fiber.Ctx) error {
	tenantID, ok := tenantIDFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Tenant ID not found in context", "MISSING_TENANT_ID", nil)
	}

	req := dto.GetTenantRequest{TenantID: tenantID}

	result, err := h.tenantFlow.GetTenant(createRequestContext(c, "/api/v1/tenants/me"), &req)
	if err != nil {
		if businessflow.IsTenantNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusUnauthorized, "Tenant not found", "TENANT_NOT_FOUND", nil)
		}
		if businessflow.IsTenantUninstalled(err) {
			return h.ErrorResponse(c, fiber.StatusUnauthorized, "Tenant is uninstalled", "TENANT_UNINSTALLED", nil)
		}

		log.Println("Tenant retrieval failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Tenant retrieval failed", "TENANT_RETRIEVAL_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Tenant retrieved successfully", result)
}
