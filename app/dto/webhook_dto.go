package dto

import (
	"encoding/json"
)

// WebhookRequest represents a raw platform webhook delivery. Topic and shop
// domain arrive in headers; the payload shape depends on the topic.
type WebhookRequest struct {
	Topic      string          `json:"-"`
	ShopDomain string          `json:"-"`
	Payload    json.RawMessage `json:"-"`
}

// WebhookResponse acknowledges a webhook delivery
type WebhookResponse struct {
	Message string `json:"message"`
}

// ShopRedactPayload is the platform's request to erase all data held for a shop
type ShopRedactPayload struct {
	ShopDomain string `json:"shop_domain"`
}

// CustomersRedactPayload is the platform's request to erase specific customers' data
type CustomersRedactPayload struct {
	ShopDomain string   `json:"shop_domain"`
	Customers  []string `json:"customer_ids"`
}

// CustomersDataRequestPayload is the platform's request to report stored customer data
type CustomersDataRequestPayload struct {
	ShopDomain string   `json:"shop_domain"`
	Customers  []string `json:"customer_ids"`
}
