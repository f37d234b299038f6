package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/badgify/badgify-server/config"
	"github.com/badgify/badgify-server/models"
	"github.com/google/uuid"
)

// ErrBillingRequestFailed indicates the billing authority rejected or failed a call
var ErrBillingRequestFailed = errors.New("billing request failed")

// SubscriptionRequest carries the plan terms submitted to the billing authority
type SubscriptionRequest struct {
	PlanName        string  `json:"plan_name"`
	Price           float64 `json:"price"`
	Currency        string  `json:"currency"`
	BillingInterval string  `json:"billing_interval"`
	TrialDays       int     `json:"trial_days"`
	ReturnURL       string  `json:"return_url"`
}

// SubscriptionResult is the billing authority's acknowledgement of a charge.
// ExternalID identifies the charge on the authority's side; ConfirmationURL is
// where the merchant approves it.
type SubscriptionResult struct {
	ExternalID      string `json:"external_id"`
	ConfirmationURL string `json:"confirmation_url"`
	Status          string `json:"status"`
}

// BillingClient is the billing authority that owns charge lifecycles. Activation
// and external cancellation arrive back through it; the local subscription row
// mirrors its decisions.
type BillingClient interface {
	RequestSubscription(ctx context.Context, tenant *models.Tenant, req *SubscriptionRequest) (*SubscriptionResult, error)
	CancelSubscription(ctx context.Context, tenant *models.Tenant, externalID string) error
}

type httpBillingClient struct {
	cfg    config.BillingConfig
	client *http.Client
}

// NewBillingClient selects the billing implementation from configuration.
// The mock provider keeps development and tests off the real authority.
func NewBillingClient(cfg config.BillingConfig) BillingClient {
	switch cfg.Provider {
	case "mock":
		return NewMockBillingClient()
	default:
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		return &httpBillingClient{
			cfg: cfg,
			client: &http.Client{
				Timeout: timeout,
			},
		}
	}
}

func (c *httpBillingClient) RequestSubscription(ctx context.Context, tenant *models.Tenant, req *SubscriptionRequest) (*SubscriptionResult, error) {
	url := fmt.Sprintf("https://%s/admin/api/%s/recurring_application_charges.json", tenant.ShopDomain, c.cfg.APIVersion)

	payload, err := json.Marshal(map[string]any{
		"recurring_application_charge": req,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal billing request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build billing request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Access-Token", tenant.AccessToken)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBillingRequestFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrBillingRequestFailed, err)
	}
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrBillingRequestFailed, resp.StatusCode)
	}

	var envelope struct {
		Charge struct {
			ID              json.Number `json:"id"`
			Status          string      `json:"status"`
			ConfirmationURL string      `json:"confirmation_url"`
		} `json:"recurring_application_charge"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrBillingRequestFailed, err)
	}

	return &SubscriptionResult{
		ExternalID:      envelope.Charge.ID.String(),
		ConfirmationURL: envelope.Charge.ConfirmationURL,
		Status:          envelope.Charge.Status,
	}, nil
}

func (c *httpBillingClient) CancelSubscription(ctx context.Context, tenant *models.Tenant, externalID string) error {
	url := fmt.Sprintf("https://%s/admin/api/%s/recurring_application_charges/%s.json", tenant.ShopDomain, c.cfg.APIVersion, externalID)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build billing request: %w", err)
	}
	httpReq.Header.Set("X-Access-Token", tenant.AccessToken)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBillingRequestFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("%w: status %d", ErrBillingRequestFailed, resp.StatusCode)
	}
	return nil
}

// MockBillingClient approves every request without contacting an authority
type MockBillingClient struct{}

// NewMockBillingClient creates a billing client for development and tests
func NewMockBillingClient() *MockBillingClient {
	return &MockBillingClient{}
}

func (m *MockBillingClient) RequestSubscription(_ context.Context, tenant *models.Tenant, req *SubscriptionRequest) (*SubscriptionResult, error) {
	// The mock approves immediately; there is no merchant confirmation step
	externalID := fmt.Sprintf("mock-%s", uuid.New().String())
	return &SubscriptionResult{
		ExternalID:      externalID,
		ConfirmationURL: fmt.Sprintf("https://%s/admin/charges/%s/confirm", tenant.ShopDomain, externalID),
		Status:          "active",
	}, nil
}

func (m *MockBillingClient) CancelSubscription(_ context.Context, _ *models.Tenant, _ string) error {
	return nil
}
