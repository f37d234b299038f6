// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"log"
	"strings"

	"github.com/badgify/badgify-server/app/dto"
	businessflow "github.com/badgify/badgify-server/business_flow"
	"github.com/gofiber/fiber/v3"
)

// WebhookHandlerInterface defines the contract for webhook handlers
type WebhookHandlerInterface interface {
	Receive(c fiber.Ctx) error
}

// WebhookHandler handles e-commerce platform webhook deliveries. The platform
// redelivers on any non-2xx, so business outcomes always acknowledge with 200;
// only malformed deliveries are rejected.
type WebhookHandler struct {
	webhookFlow businessflow.WebhookFlow
}

func (h *WebhookHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *WebhookHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(webhookFlow businessflow.WebhookFlow) *WebhookHandler {
	return &WebhookHandler{webhookFlow: webhookFlow}
}

// Receive handles an incoming platform webhook delivery
// @Summary Receive Webhook
// @Description Accept a platform webhook delivery and dispatch it by topic
// @Tags Webhooks
// @Accept json
// @Produce json
// @Param X-Webhook-Topic header string true "Webhook topic"
// @Param X-Shop-Domain header string true "Shop domain"
// @Success 200 {object} dto.APIResponse{data=dto.WebhookResponse} "Webhook processed"
// @Failure 400 {object} dto.APIResponse "Missing topic or shop domain"
// @Router /webhooks [post]
func (h *WebhookHandler) Receive(c fiber.Ctx) error {
	topic := c.Get("X-Webhook-Topic")
	shopDomain := c.Get("X-Shop-Domain")
	if topic == "" || shopDomain == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Missing webhook headers", "MISSING_WEBHOOK_HEADERS", nil)
	}

	req := dto.WebhookRequest{
		Topic:      topic,
		ShopDomain: strings.ToLower(shopDomain),
		Payload:    c.Body(),
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	ctx := createRequestContext(c, "/webhooks/"+topic)

	result, err := h.dispatch(ctx, topic, &req, metadata)
	if err != nil {
		// An error here means our side failed to process; a 500 makes the
		// platform redeliver so the change is not lost
		log.Println("Webhook processing failed", topic, err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Webhook processing failed", "WEBHOOK_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Webhook processed", result)
}

func (h *WebhookHandler) dispatch(ctx context.Context, topic string, req *dto.WebhookRequest, metadata *businessflow.ClientMetadata) (*dto.WebhookResponse, error) {
	switch topic {
	case "products/create", "products/update", "products/delete",
		"collections/create", "collections/update", "collections/delete":
		return h.webhookFlow.HandleCatalogChanged(ctx, req, metadata)
	case "app/uninstalled":
		return h.webhookFlow.HandleAppUninstalled(ctx, req, metadata)
	case "shop/redact":
		return h.webhookFlow.HandleShopRedact(ctx, req, metadata)
	case "customers/redact":
		return h.webhookFlow.HandleCustomersRedact(ctx, req, metadata)
	case "customers/data_request":
		return h.webhookFlow.HandleCustomersDataRequest(ctx, req, metadata)
	default:
		// Unknown topics are acknowledged so the platform stops redelivering
		return &dto.WebhookResponse{Message: "Webhook acknowledged"}, nil
	}
}
