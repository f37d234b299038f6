// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"log"
	"strconv"

	"github.com/badgify/badgify-server/app/dto"
	businessflow "github.com/badgify/badgify-server/business_flow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// BadgeHandlerInterface defines the contract for badge handlers
type BadgeHandlerInterface interface {
	CreateBadge(c fiber.Ctx) error
	GetBadge(c fiber.Ctx) error
	ListBadges(c fiber.Ctx) error
	UpdateBadge(c fiber.Ctx) error
	ToggleBadge(c fiber.Ctx) error
	DeleteBadge(c fiber.Ctx) error
}

// BadgeHandler handles badge-related HTTP requests
type BadgeHandler struct {
	badgeFlow businessflow.BadgeFlow
	validator *validator.Validate
}

func (h *BadgeHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *BadgeHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// NewBadgeHandler creates a new badge handler
func NewBadgeHandler(badgeFlow businessflow.BadgeFlow) *BadgeHandler {
	return &BadgeHandler{
		badgeFlow: badgeFlow,
		validator: validator.New(),
	}
}

// mapBadgeError translates the shared badge lookup failures; returns false when the
// caller should fall through to its own generic handling
func (h *BadgeHandler) mapBadgeError(c fiber.Ctx, err error) (error, bool) {
	if businessflow.IsTenantNotFound(err) {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Tenant not found", "TENANT_NOT_FOUND", nil), true
	}
	if businessflow.IsTenantUninstalled(err) {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Tenant is uninstalled", "TENANT_UNINSTALLED", nil), true
	}
	if businessflow.IsBadgeNotFound(err) {
		return h.ErrorResponse(c, fiber.StatusNotFound, "Badge not found", "BADGE_NOT_FOUND", nil), true
	}
	return nil, false
}

// CreateBadge handles the badge creation process
// @Summary Create Badge
// @Description Create a new badge with an optional design payload and assignment rule
// @Tags Badges
// @Accept json
// @Produce json
// @Param request body dto.CreateBadgeRequest true "Badge creation data"
// @Success 201 {object} dto.APIResponse{data=dto.CreateBadgeResponse} "Badge created successfully"
// @Failure 400 {object} dto.APIResponse "Validation error or invalid request"
// @Failure 401 {object} dto.APIResponse "Unauthorized - tenant not found or uninstalled"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/badges [post]
func (h *BadgeHandler) CreateBadge(c fiber.Ctx) error {
	var req dto.CreateBadgeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors(err))
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	tenantID, ok := tenantIDFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Tenant ID not found in context", "MISSING_TENANT_ID", nil)
	}
	req.TenantID = tenantID

	result, err := h.badgeFlow.CreateBadge(createRequestContext(c, "/api/v1/badges"), &req, metadata)
	if err != nil {
		if resp, handled := h.mapBadgeError(c, err); handled {
			return resp
		}
		if businessflow.IsBadgeNameRequired(err) || businessflow.IsInvalidRuleType(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Badge validation failed", "BADGE_VALIDATION_FAILED", nil)
		}

		log.Println("Badge creation failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Badge creation failed", "BADGE_CREATION_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Badge created successfully", result)
}

// GetBadge handles reading a single badge
// @Summary Get Badge
// @Description Get a badge with its rule and current assignment count
// @Tags Badges
// @Produce json
// @Param uuid path string true "Badge UUID"
// @Success 200 {object} dto.APIResponse{data=dto.BadgeDTO} "Badge retrieved successfully"
// @Failure 401 {object} dto.APIResponse "Unauthorized - tenant not found or uninstalled"
// @Failure 404 {object} dto.APIResponse "Badge not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/badges/{uuid} [get]
func (h *BadgeHandler) GetBadge(c fiber.Ctx) error {
	badgeUUID := c.Params("uuid")
	if badgeUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Badge UUID is required", "MISSING_BADGE_UUID", nil)
	}

	tenantID, ok := tenantIDFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Tenant ID not found in context", "MISSING_TENANT_ID", nil)
	}

	req := dto.GetBadgeRequest{UUID: badgeUUID, TenantID: tenantID}

	result, err := h.badgeFlow.GetBadge(createRequestContext(c, "/api/v1/badges/"+badgeUUID), &req)
	if err != nil {
		if resp, handled := h.mapBadgeError(c, err); handled {
			return resp
		}

		log.Println("Badge retrieval failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Badge retrieval failed", "BADGE_RETRIEVAL_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Badge retrieved successfully", result)
}

// ListBadges handles listing a tenant's badges
// @Summary List Badges
// @Description List the tenant's badges with pagination
// @Tags Badges
// @Produce json
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} dto.APIResponse{data=dto.ListBadgesResponse} "Badges listed successfully"
// @Failure 401 {object} dto.APIResponse "Unauthorized - tenant not found or uninstalled"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/badges [get]
func (h *BadgeHandler) ListBadges(c fiber.Ctx) error {
	tenantID, ok := tenantIDFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Tenant ID not found in context", "MISSING_TENANT_ID", nil)
	}

	page, _ := strconv.Atoi(c.Query("page", "1"))
	pageSize, _ := strconv.Atoi(c.Query("page_size", "20"))

	req := dto.ListBadgesRequest{
		TenantID: tenantID,
		Page:     page,
		PageSize: pageSize,
	}

	result, err := h.badgeFlow.ListBadges(createRequestContext(c, "/api/v1/badges"), &req)
	if err != nil {
		if resp, handled := h.mapBadgeError(c, err); handled {
			return resp
		}

		log.Println("Badge listing failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Badge listing failed", "BADGE_LIST_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Badges listed successfully", result)
}

// UpdateBadge handles updating a badge's name and design
// @Summary Update Badge
// @Description Update a badge's name and design payload
// @Tags Badges
// @Accept json
// @Produce json
// @Param uuid path string true "Badge UUID"
// @Param request body dto.UpdateBadgeRequest true "Badge update data"
// @Success 200 {object} dto.APIResponse{data=dto.UpdateBadgeResponse} "Badge updated successfully"
// @Failure 400 {object} dto.APIResponse "Validation error or invalid request"
// @Failure 401 {object} dto.APIResponse "Unauthorized - tenant not found or uninstalled"
// @Failure 404 {object} dto.APIResponse "Badge not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/badges/{uuid} [put]
func (h *BadgeHandler) UpdateBadge(c fiber.Ctx) error {
	badgeUUID := c.Params("uuid")
	if badgeUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Badge UUID is required", "MISSING_BADGE_UUID", nil)
	}

	var req dto.UpdateBadgeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	req.UUID = badgeUUID

	tenantID, ok := tenantIDFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Tenant ID not found in context", "MISSING_TENANT_ID", nil)
	}
	req.TenantID = tenantID

	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors(err))
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.badgeFlow.UpdateBadge(createRequestContext(c, "/api/v1/badges/"+badgeUUID), &req, metadata)
	if err != nil {
		if resp, handled := h.mapBadgeError(c, err); handled {
			return resp
		}

		log.Println("Badge update failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Badge update failed", "BADGE_UPDATE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Badge updated successfully", result)
}

// ToggleBadge handles flipping a badge's active flag
// @Summary Toggle Badge
// @Description Flip a badge's active flag without touching its assignments
// @Tags Badges
// @Produce json
// @Param uuid path string true "Badge UUID"
// @Success 200 {object} dto.APIResponse{data=dto.ToggleBadgeResponse} "Badge toggled successfully"
// @Failure 401 {object} dto.APIResponse "Unauthorized - tenant not found or uninstalled"
// @Failure 404 {object} dto.APIResponse "Badge not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/badges/{uuid}/toggle [post]
func (h *BadgeHandler) ToggleBadge(c fiber.Ctx) error {
	badgeUUID := c.Params("uuid")
	if badgeUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Badge UUID is required", "MISSING_BADGE_UUID", nil)
	}

	tenantID, ok := tenantIDFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Tenant ID not found in context", "MISSING_TENANT_ID", nil)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	req := dto.ToggleBadgeRequest{UUID: badgeUUID, TenantID: tenantID}

	result, err := h.badgeFlow.ToggleBadge(createRequestContext(c, "/api/v1/badges/"+badgeUUID+"/toggle"), &req, metadata)
	if err != nil {
		if resp, handled := h.mapBadgeError(c, err); handled {
			return resp
		}

		log.Println("Badge toggle failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Badge toggle failed", "BADGE_TOGGLE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Badge toggled successfully", result)
}

// DeleteBadge handles deleting a badge and its assignments
// @Summary Delete Badge
// @Description Delete a badge; its assignments are removed in the same transaction
// @Tags Badges
// @Produce json
// @Param uuid path string true "Badge UUID"
// @Success 200 {object} dto.APIResponse{data=dto.DeleteBadgeResponse} "Badge deleted successfully"
// @Failure 401 {object} dto.APIResponse "Unauthorized - tenant not found or uninstalled"
// @Failure 404 {object} dto.APIResponse "Badge not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/badges/{uuid} [delete]
func (h *BadgeHandler) DeleteBadge(c fiber.Ctx) error {
	badgeUUID := c.Params("uuid")
	if badgeUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Badge UUID is required", "MISSING_BADGE_UUID", nil)
	}

	tenantID, ok := tenantIDFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Tenant ID not found in context", "MISSING_TENANT_ID", nil)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	req := dto.DeleteBadgeRequest{UUID: badgeUUID, TenantID: tenantID}

	result, err := h.badgeFlow.DeleteBadge(createRequestContext(c, "/api/v1/badges/"+badgeUUID), &req, metadata)
	if err != nil {
		if resp, handled := h.mapBadgeError(c, err); handled {
			return resp
		}

		log.Println("Badge deletion failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Badge deletion failed", "BADGE_DELETION_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Badge deleted successfully", result)
}
