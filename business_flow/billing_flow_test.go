package businessflow

import (
	"context"
	"fmt"
	"testing"

	"github.com/badgify/badgify-server/app/dto"
	"github.com/badgify/badgify-server/app/services"
	"github.com/badgify/badgify-server/config"
	"github.com/badgify/badgify-server/models"
	"github.com/badgify/badgify-server/repository"
	testingutil "github.com/badgify/badgify-server/testing"
	"github.com/badgify/badgify-server/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubBillingClient lets a test pick the authority's verdict
type stubBillingClient struct {
	externalID string
	status     string
	err        error
}

func (c *stubBillingClient) RequestSubscription(_ context.Context, tenant *models.Tenant, _ *services.SubscriptionRequest) (*services.SubscriptionResult, error) {
	if c.err != nil {
		return nil, c.err
	}
	return &services.SubscriptionResult{
		ExternalID:      c.externalID,
		ConfirmationURL: fmt.Sprintf("https://%s/admin/charges/%s/confirm", tenant.ShopDomain, c.externalID),
		Status:          c.status,
	}, nil
}

func (c *stubBillingClient) CancelSubscription(_ context.Context, _ *models.Tenant, _ string) error {
	return nil
}

func testBillingConfig() config.BillingConfig {
	return config.BillingConfig{
		Provider:        "mock",
		PlanName:        "Basic Plan",
		Price:           9.99,
		Currency:        "USD",
		BillingInterval: "EVERY_30_DAYS",
		TrialDays:       3,
		PeriodDays:      30,
		ReturnURL:       "https://badgify.app/billing/return",
	}
}

func newTestBillingFlow(testDB *testingutil.TestDB, client services.BillingClient) BillingFlow {
	return NewBillingFlow(
		repository.NewTenantRepository(testDB.DB),
		repository.NewSubscriptionRepository(testDB.DB),
		repository.NewAuditLogRepository(testDB.DB),
		client,
		testBillingConfig(),
		testDB.DB,
	)
}

func TestBillingFlowTrialAndSubscribe(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()
		metadata := NewClientMetadata("127.0.0.1", "test-agent")

		t.Run("GetSubscriptionCreatesTrial", func(t *testing.T) {
			flow := newTestBillingFlow(testDB, services.NewMockBillingClient())
			tenant, err := fixtures.CreateTestTenant()
			require.NoError(t, err)

			resp, err := flow.GetSubscription(ctx, &dto.GetSubscriptionRequest{TenantID: tenant.ID})
			require.NoError(t, err)
			assert.Equal(t, string(models.SubscriptionStatusPending), resp.Subscription.Status)
			assert.Equal(t, 3, resp.Subscription.TrialDays)
			assert.Equal(t, 3, resp.Subscription.TrialDaysRemaining)
			assert.True(t, resp.Subscription.Authorized)

			authorized, err := flow.IsAuthorized(ctx, tenant.ID, utils.UTCNow())
			require.NoError(t, err)
			assert.True(t, authorized)
		})

		t.Run("SubscribeImmediateActivation", func(t *testing.T) {
			// The mock authority approves in the same call, so the subscription
			// skips the confirmation step entirely.
			flow := newTestBillingFlow(testDB, services.NewMockBillingClient())
			tenant, err := fixtures.CreateTestTenant()
			require.NoError(t, err)

			resp, err := flow.Subscribe(ctx, &dto.SubscribeRequest{TenantID: tenant.ID}, metadata)
			require.NoError(t, err)
			assert.Equal(t, string(models.SubscriptionStatusActive), resp.Status)
			assert.NotEmpty(t, resp.ExternalID)

			sub, err := flow.GetSubscription(ctx, &dto.GetSubscriptionRequest{TenantID: tenant.ID})
			require.NoError(t, err)
			assert.True(t, sub.Subscription.Authorized)
			assert.NotNil(t, sub.Subscription.CurrentPeriodEnd)

			_, err = flow.Subscribe(ctx, &dto.SubscribeRequest{TenantID: tenant.ID}, metadata)
			require.Error(t, err)
			assert.True(t, IsSubscriptionAlreadyActive(err))
		})

		t.Run("SubscribeThenActivateCallback", func(t *testing.T) {
			flow := newTestBillingFlow(testDB, &stubBillingClient{externalID: "charge-777", status: "pending"})
			tenant, err := fixtures.CreateTestTenant()
			require.NoError(t, err)

			resp, err := flow.Subscribe(ctx, &dto.SubscribeRequest{TenantID: tenant.ID}, metadata)
			require.NoError(t, err)
			assert.Equal(t, string(models.SubscriptionStatusPending), resp.Status)
			assert.Equal(t, "charge-777", resp.ExternalID)
			assert.NotEmpty(t, resp.ConfirmationURL)

			_, err = flow.ActivateSubscription(ctx, &dto.ActivateSubscriptionRequest{TenantID: tenant.ID, ExternalID: "charge-999"}, metadata)
			require.Error(t, err)
			assert.True(t, IsSubscriptionNotPending(err))

			activated, err := flow.ActivateSubscription(ctx, &dto.ActivateSubscriptionRequest{TenantID: tenant.ID, ExternalID: "charge-777"}, metadata)
			require.NoError(t, err)
			assert.Equal(t, string(models.SubscriptionStatusActive), activated.Subscription.Status)

			// Activation callbacks are delivered at least once; a replay reports
			// success without touching the billing period.
			again, err := flow.ActivateSubscription(ctx, &dto.ActivateSubscriptionRequest{TenantID: tenant.ID, ExternalID: "charge-777"}, metadata)
			require.NoError(t, err)
			assert.Equal(t, string(models.SubscriptionStatusActive), again.Subscription.Status)
		})

		t.Run("SubscribeAuthorityFailure", func(t *testing.T) {
			flow := newTestBillingFlow(testDB, &stubBillingClient{err: services.ErrBillingRequestFailed})
			tenant, err := fixtures.CreateTestTenant()
			require.NoError(t, err)

			_, err = flow.Subscribe(ctx, &dto.SubscribeRequest{TenantID: tenant.ID}, metadata)
			require.Error(t, err)
			assert.True(t, IsBillingAuthorityFailure(err))

			// The failed attempt invalidates the trial record
			authorized, err := flow.IsAuthorized(ctx, tenant.ID, utils.UTCNow())
			require.NoError(t, err)
			assert.False(t, authorized)
		})

		t.Run("CancelSubscription", func(t *testing.T) {
			flow := newTestBillingFlow(testDB, services.NewMockBillingClient())
			tenant, err := fixtures.CreateTestTenant()
			require.NoError(t, err)

			_, err = flow.Subscribe(ctx, &dto.SubscribeRequest{TenantID: tenant.ID}, metadata)
			require.NoError(t, err)

			resp, err := flow.CancelSubscription(ctx, &dto.CancelSubscriptionRequest{TenantID: tenant.ID}, metadata)
			require.NoError(t, err)
			assert.Equal(t, string(models.SubscriptionStatusCancelled), resp.Subscription.Status)

			authorized, err := flow.IsAuthorized(ctx, tenant.ID, utils.UTCNow())
			require.NoError(t, err)
			assert.False(t, authorized)
		})

		t.Run("CancelWithoutSubscription", func(t *testing.T) {
			flow := newTestBillingFlow(testDB, services.NewMockBillingClient())
			tenant, err := fixtures.CreateTestTenant()
			require.NoError(t, err)

			_, err = flow.CancelSubscription(ctx, &dto.CancelSubscriptionRequest{TenantID: tenant.ID}, metadata)
			require.Error(t, err)
			assert.True(t, IsSubscriptionNotFound(err))
		})

		t.Run("UninstalledTenantRejected", func(t *testing.T) {
			flow := newTestBillingFlow(testDB, services.NewMockBillingClient())
			tenant, err := fixtures.CreateUninstalledTenant()
			require.NoError(t, err)

			_, err = flow.Subscribe(ctx, &dto.SubscribeRequest{TenantID: tenant.ID}, metadata)
			require.Error(t, err)
			assert.True(t, IsTenantUninstalled(err))
		})

		return nil
	})
	require.NoError(t, err)
}

func TestBillingFlowTrialSweep(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()
		flow := newTestBillingFlow(testDB, services.NewMockBillingClient())

		lapsedTenant, err := fixtures.CreateTestTenant()
		require.NoError(t, err)
		_, err = fixtures.CreateTestSubscription(lapsedTenant.ID, models.SubscriptionStatusPending, -1)
		require.NoError(t, err)

		freshTenant, err := fixtures.CreateTestTenant()
		require.NoError(t, err)
		_, err = fixtures.CreateTestSubscription(freshTenant.ID, models.SubscriptionStatusPending, 3)
		require.NoError(t, err)

		t.Run("LapsedTrialUnauthorizedBeforeSweep", func(t *testing.T) {
			// Authorization is computed from the trial window, not from the
			// stored status, so a lapsed trial loses access immediately.
			authorized, err := flow.IsAuthorized(ctx, lapsedTenant.ID, utils.UTCNow())
			require.NoError(t, err)
			assert.False(t, authorized)

			authorized, err = flow.IsAuthorized(ctx, freshTenant.ID, utils.UTCNow())
			require.NoError(t, err)
			assert.True(t, authorized)
		})

		t.Run("SweepExpiredTrials", func(t *testing.T) {
			count, err := flow.SweepExpiredTrials(ctx)
			require.NoError(t, err)
			assert.Equal(t, int64(1), count)

			resp, err := flow.GetSubscription(ctx, &dto.GetSubscriptionRequest{TenantID: lapsedTenant.ID})
			require.NoError(t, err)
			assert.Equal(t, string(models.SubscriptionStatusExpired), resp.Subscription.Status)
			assert.False(t, resp.Subscription.Authorized)

			count, err = flow.SweepExpiredTrials(ctx)
			require.NoError(t, err)
			assert.Equal(t, int64(0), count)
		})

		t.Run("NoSubscriptionRowUnauthorized", func(t *testing.T) {
			orphan, err := fixtures.CreateTestTenant()
			require.NoError(t, err)

			authorized, err := flow.IsAuthorized(ctx, orphan.ID, utils.UTCNow())
			require.NoError(t, err)
			assert.False(t, authorized)
		})

		return nil
	})
	require.NoError(t, err)
}
