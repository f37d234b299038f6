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

// AssignmentHandlerInterface defines the contract for assignment handlers
type AssignmentHandlerInterface interface {
	UpdateRule(c fiber.Ctx) error
	PreviewRule(c fiber.Ctx) error
	AssignManual(c fiber.Ctx) error
	RebuildAssignments(c fiber.Ctx) error
	ListAssignments(c fiber.Ctx) error
	ListResolutionRuns(c fiber.Ctx) error
	ExportAssignments(c fiber.Ctx) error
}

// AssignmentHandler handles rule and assignment HTTP requests
type AssignmentHandler struct {
	assignmentFlow businessflow.AssignmentFlow
	validator      *validator.Validate
}

func (h *AssignmentHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *AssignmentHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// NewAssignmentHandler creates a new assignment handler
func NewAssignmentHandler(assignmentFlow businessflow.AssignmentFlow) *AssignmentHandler {
	return &AssignmentHandler{
		assignmentFlow: assignmentFlow,
		validator:      validator.New(),
	}
}

// mapResolutionError translates the shared resolution failures; returns false when
// the caller should fall through to its own generic handling
func (h *AssignmentHandler) mapResolutionError(c fiber.Ctx, err error) (error, bool) {
	if businessflow.IsTenantNotFound(err) {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Tenant not found", "TENANT_NOT_FOUND", nil), true
	}
	if businessflow.IsTenantUninstalled(err) {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Tenant is uninstalled", "TENANT_UNINSTALLED", nil), true
	}
	if businessflow.IsBadgeNotFound(err) {
		return h.ErrorResponse(c, fiber.StatusNotFound, "Badge not found", "BADGE_NOT_FOUND", nil), true
	}
	if businessflow.IsInvalidRuleType(err) {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid rule type", "INVALID_RULE_TYPE", nil), true
	}
	if businessflow.IsRebuildInProgress(err) {
		// The client retries after backoff; the running rebuild will land shortly
		return h.ErrorResponse(c, fiber.StatusConflict, "Rebuild already in progress", "REBUILD_IN_PROGRESS", nil), true
	}
	if businessflow.IsCatalogUnavailable(err) {
		return h.ErrorResponse(c, fiber.StatusServiceUnavailable, "Catalog unavailable", "CATALOG_UNAVAILABLE", nil), true
	}
	return nil, false
}

// UpdateRule handles replacing a badge's assignment rule
// @Summary Update Rule
// @Description Replace a badge's assignment rule and rebuild its assignments
// @Tags Assignments
// @Accept json
// @Produce json
// @Param uuid path string true "Badge UUID"
// @Param request body dto.UpdateRuleRequest true "Rule data"
// @Success 200 {object} dto.APIResponse{data=dto.UpdateRuleResponse} "Rule updated successfully"
// @Failure 400 {object} dto.APIResponse "Validation error or invalid rule"
// @Failure 401 {object} dto.APIResponse "Unauthorized - tenant not found or uninstalled"
// @Failure 404 {object} dto.APIResponse "Badge not found"
// @Failure 409 {object} dto.APIResponse "Rebuild already in progress"
// @Failure 503 {object} dto.APIResponse "Catalog unavailable"
// @Router /api/v1/badges/{uuid}/rule [put]
func (h *AssignmentHandler) UpdateRule(c fiber.Ctx) error {
	badgeUUID := c.Params("uuid")
	if badgeUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Badge UUID is required", "MISSING_BADGE_UUID", nil)
	}

	var req dto.UpdateRuleRequest
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

	result, err := h.assignmentFlow.UpdateRule(createRequestContext(c, "/api/v1/badges/"+badgeUUID+"/rule"), &req, metadata)
	if err != nil {
		if resp, handled := h.mapResolutionError(c, err); handled {
			return resp
		}

		log.Println("Rule update failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Rule update failed", "RULE_UPDATE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Rule updated successfully", result)
}

// PreviewRule handles evaluating a candidate rule without persisting it
// @Summary Preview Rule
// @Description Evaluate a rule against the live catalog without changing anything
// @Tags Assignments
// @Accept json
// @Produce json
// @Param request body dto.PreviewRuleRequest true "Rule data"
// @Success 200 {object} dto.APIResponse{data=dto.PreviewRuleResponse} "Rule previewed successfully"
// @Failure 400 {object} dto.APIResponse "Validation error or invalid rule"
// @Failure 401 {object} dto.APIResponse "Unauthorized - tenant not found or uninstalled"
// @Failure 503 {object} dto.APIResponse "Catalog unavailable"
// @Router /api/v1/badges/preview-rule [post]
func (h *AssignmentHandler) PreviewRule(c fiber.Ctx) error {
	var req dto.PreviewRuleRequest
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

	result, err := h.assignmentFlow.PreviewRule(createRequestContext(c, "/api/v1/badges/preview-rule"), &req, metadata)
	if err != nil {
		if resp, handled := h.mapResolutionError(c, err); handled {
			return resp
		}

		log.Println("Rule preview failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Rule preview failed", "RULE_PREVIEW_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Rule previewed successfully", result)
}

// AssignManual handles replacing a manual badge's product list
// @Summary Assign Products
// @Description Replace a manual badge's assigned product list
// @Tags Assignments
// @Accept json
// @Produce json
// @Param uuid path string true "Badge UUID"
// @Param request body dto.AssignManualRequest true "Product ids"
// @Success 200 {object} dto.APIResponse{data=dto.AssignManualResponse} "Products assigned successfully"
// @Failure 400 {object} dto.APIResponse "Validation error or badge not manual"
// @Failure 401 {object} dto.APIResponse "Unauthorized - tenant not found or uninstalled"
// @Failure 404 {object} dto.APIResponse "Badge not found"
// @Failure 409 {object} dto.APIResponse "Rebuild already in progress"
// @Router /api/v1/badges/{uuid}/assignments [post]
func (h *AssignmentHandler) AssignManual(c fiber.Ctx) error {
	badgeUUID := c.Params("uuid")
	if badgeUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Badge UUID is required", "MISSING_BADGE_UUID", nil)
	}

	var req dto.AssignManualRequest
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

	result, err := h.assignmentFlow.AssignManual(createRequestContext(c, "/api/v1/badges/"+badgeUUID+"/assignments"), &req, metadata)
	if err != nil {
		if resp, handled := h.mapResolutionError(c, err); handled {
			return resp
		}
		if businessflow.IsNotManualRule(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Badge is driven by an automatic rule", "NOT_MANUAL_RULE", nil)
		}

		log.Println("Manual assignment failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Manual assignment failed", "MANUAL_ASSIGNMENT_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Products assigned successfully", result)
}

// RebuildAssignments handles re-resolving a badge's assignments
// @Summary Rebuild Assignments
// @Description Re-resolve a badge's rule and replace its assignment cache
// @Tags Assignments
// @Produce json
// @Param uuid path string true "Badge UUID"
// @Success 200 {object} dto.APIResponse{data=dto.RebuildAssignmentsResponse} "Assignments rebuilt successfully"
// @Failure 401 {object} dto.APIResponse "Unauthorized - tenant not found or uninstalled"
// @Failure 404 {object} dto.APIResponse "Badge not found"
// @Failure 409 {object} dto.APIResponse "Rebuild already in progress"
// @Failure 503 {object} dto.APIResponse "Catalog unavailable"
// @Router /api/v1/badges/{uuid}/rebuild [post]
func (h *AssignmentHandler) RebuildAssignments(c fiber.Ctx) error {
	badgeUUID := c.Params("uuid")
	if badgeUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Badge UUID is required", "MISSING_BADGE_UUID", nil)
	}

	tenantID, ok := tenantIDFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Tenant ID not found in context", "MISSING_TENANT_ID", nil)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	req := dto.RebuildAssignmentsRequest{UUID: badgeUUID, TenantID: tenantID}

	result, err := h.assignmentFlow.RebuildAssignments(createRequestContext(c, "/api/v1/badges/"+badgeUUID+"/rebuild"), &req, metadata)
	if err != nil {
		if resp, handled := h.mapResolutionError(c, err); handled {
			return resp
		}

		log.Println("Assignment rebuild failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Assignment rebuild failed", "REBUILD_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Assignments rebuilt successfully", result)
}

// ListAssignments handles listing a badge's assignments
// @Summary List Assignments
// @Description List a badge's current product assignments with pagination
// @Tags Assignments
// @Produce json
// @Param uuid path string true "Badge UUID"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} dto.APIResponse{data=dto.ListAssignmentsResponse} "Assignments listed successfully"
// @Failure 401 {object} dto.APIResponse "Unauthorized - tenant not found or uninstalled"
// @Failure 404 {object} dto.APIResponse "Badge not found"
// @Router /api/v1/badges/{uuid}/assignments [get]
func (h *AssignmentHandler) ListAssignments(c fiber.Ctx) error {
	badgeUUID := c.Params("uuid")
	if badgeUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Badge UUID is required", "MISSING_BADGE_UUID", nil)
	}

	tenantID, ok := tenantIDFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Tenant ID not found in context", "MISSING_TENANT_ID", nil)
	}

	page, _ := strconv.Atoi(c.Query("page", "1"))
	pageSize, _ := strconv.Atoi(c.Query("page_size", "50"))

	req := dto.ListAssignmentsRequest{
		UUID:     badgeUUID,
		TenantID: tenantID,
		Page:     page,
		PageSize: pageSize,
	}

	result, err := h.assignmentFlow.ListAssignments(createRequestContext(c, "/api/v1/badges/"+badgeUUID+"/assignments"), &req)
	if err != nil {
		if resp, handled := h.mapResolutionError(c, err); handled {
			return resp
		}

		log.Println("Assignment listing failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Assignment listing failed", "ASSIGNMENT_LIST_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Assignments listed successfully", result)
}

// ListResolutionRuns handles listing a badge's resolution history
// @Summary List Resolution Runs
// @Description List a badge's recent resolution passes
// @Tags Assignments
// @Produce json
// @Param uuid path string true "Badge UUID"
// @Param limit query int false "Maximum rows"
// @Success 200 {object} dto.APIResponse{data=dto.ListResolutionRunsResponse} "Resolution runs listed successfully"
// @Failure 401 {object} dto.APIResponse "Unauthorized - tenant not found or uninstalled"
// @Failure 404 {object} dto.APIResponse "Badge not found"
// @Router /api/v1/badges/{uuid}/runs [get]
func (h *AssignmentHandler) ListResolutionRuns(c fiber.Ctx) error {
	badgeUUID := c.Params("uuid")
	if badgeUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Badge UUID is required", "MISSING_BADGE_UUID", nil)
	}

	tenantID, ok := tenantIDFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Tenant ID not found in context", "MISSING_TENANT_ID", nil)
	}

	limit, _ := strconv.Atoi(c.Query("limit", "20"))

	req := dto.ListResolutionRunsRequest{
		UUID:     badgeUUID,
		TenantID: tenantID,
		Limit:    limit,
	}

	result, err := h.assignmentFlow.ListResolutionRuns(createRequestContext(c, "/api/v1/badges/"+badgeUUID+"/runs"), &req)
	if err != nil {
		if resp, handled := h.mapResolutionError(c, err); handled {
			return resp
		}

		log.Println("Resolution run listing failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Resolution run listing failed", "RESOLUTION_RUN_LIST_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Resolution runs listed successfully", result)
}

// ExportAssignments handles exporting a badge's assignments as a spreadsheet
// @Summary Export Assignments
// @Description Download a badge's assignments as an xlsx workbook
// @Tags Assignments
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param uuid path string true "Badge UUID"
// @Success 200 {file} binary "Spreadsheet download"
// @Failure 401 {object} dto.APIResponse "Unauthorized - tenant not found or uninstalled"
// @Failure 404 {object} dto.APIResponse "Badge not found"
// @Router /api/v1/badges/{uuid}/export [get]
func (h *AssignmentHandler) ExportAssignments(c fiber.Ctx) error {
	badgeUUID := c.Params("uuid")
	if badgeUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Badge UUID is required", "MISSING_BADGE_UUID", nil)
	}

	tenantID, ok := tenantIDFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Tenant ID not found in context", "MISSING_TENANT_ID", nil)
	}

	req := dto.ExportAssignmentsRequest{UUID: badgeUUID, TenantID: tenantID}

	data, filename, err := h.assignmentFlow.ExportAssignments(createRequestContext(c, "/api/v1/badges/"+badgeUUID+"/export"), &req)
	if err != nil {
		if resp, handled := h.mapResolutionError(c, err); handled {
			return resp
		}

		log.Println("Assignment export failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Assignment export failed", "EXPORT_FAILED", nil)
	}

	c.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	return c.Send(data)
}
