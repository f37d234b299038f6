// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"log"

	"github.com/badgify/badgify-server/app/dto"
	businessflow "github.com/badgify/badgify-server/business_flow"
	"github.com/gofiber/fiber/v3"
)

// CatalogHandlerInterface defines the contract for catalog handlers
type CatalogHandlerInterface interface {
	ListProducts(c fiber.Ctx) error
	ListCollections(c fiber.Ctx) error
}

// CatalogHandler handles catalog browsing HTTP requests
type CatalogHandler struct {
	catalogFlow businessflow.CatalogFlow
}

func (h *CatalogHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *CatalogHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(catalogFlow businessflow.CatalogFlow) *CatalogHandler {
	return &CatalogHandler{catalogFlow: catalogFlow}
}

func (h *CatalogHandler) mapCatalogError(c fiber.Ctx, err error) (error, bool) {
	if businessflow.IsTenantNotFound(err) {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Tenant not found", "TENANT_NOT_FOUND", nil), true
	}
	if businessflow.IsTenantUninstalled(err) {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Tenant is uninstalled", "TENANT_UNINSTALLED", nil), true
	}
	if businessflow.IsCatalogUnavailable(err) {
		return h.ErrorResponse(c, fiber.StatusServiceUnavailable, "Catalog unavailable", "CATALOG_UNAVAILABLE", nil), true
	}
	return nil, false
}

// ListProducts handles browsing the tenant's catalog products
// @Summary List Products
// @Description Browse the tenant's catalog products for the rule builder
// @Tags Catalog
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.ListProductsResponse} "Products retrieved successfully"
// @Failure 401 {object} dto.APIResponse "Unauthorized - tenant not found or uninstalled"
// @Failure 503 {object} dto.APIResponse "Catalog unavailable"
// @Router /api/v1/catalog/products [get]
func (h *CatalogHandler) ListProducts(c fiber.Ctx) error {
	tenantID, ok := tenantIDFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Tenant ID not found in context", "MISSING_TENANT_ID", nil)
	}

	req := dto.ListProductsRequest{TenantID: tenantID}

	result, err := h.catalogFlow.ListProducts(createRequestContext(c, "/api/v1/catalog/products"), &req)
	if err != nil {
		if resp, handled := h.mapCatalogError(c, err); handled {
			return resp
		}

		log.Println("Product listing failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Product listing failed", "PRODUCT_LIST_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Products retrieved successfully", result)
}

// ListCollections handles listing the tenant's collections
// @Summary List Collections
// @Description List the tenant's collections for the rule builder
// @Tags Catalog
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.ListCollectionsResponse} "Collections retrieved successfully"
// @Failure 401 {object} dto.APIResponse "Unauthorized - tenant not found or uninstalled"
// @Failure 503 {object} dto.APIResponse "Catalog unavailable"
// @Router /api/v1/catalog/collections [get]
func (h *CatalogHandler) ListCollections(c fiber.Ctx) error {
	tenantID, ok := tenantIDFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Tenant ID not found in context", "MISSING_TENANT_ID", nil)
	}

	req := dto.ListCollectionsRequest{TenantID: tenantID}

	result, err := h.catalogFlow.ListCollections(createRequestContext(c, "/api/v1/catalog/collections"), &req)
	if err != nil {
		if resp, handled := h.mapCatalogError(c, err); handled {
			return resp
		}

		log.Println("Collection listing failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Collection listing failed", "COLLECTION_LIST_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Collections retrieved successfully", result)
}
