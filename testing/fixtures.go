// Package testing provides test utilities and database setup for testing the badge platform
package testing

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/badgify/badgify-server/models"
	"github.com/badgify/badgify-server/utils"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestTenant creates an installed tenant with a unique shop domain
func (tf *TestFixtures) CreateTestTenant() (*models.Tenant, error) {
	tenant := &models.Tenant{
		ShopDomain:  fmt.Sprintf("shop-%d.example-platform.com", rand.Intn(100000000)),
		AccessToken: fmt.Sprintf("shpat_test_%d", rand.Intn(100000000)),
		Status:      models.TenantStatusActive,
		InstalledAt: utils.UTCNow(),
	}

	if err := tf.DB.DB.Create(tenant).Error; err != nil {
		return nil, fmt.Errorf("failed to create test tenant: %w", err)
	}

	return tenant, nil
}

// CreateUninstalledTenant creates a tenant already marked uninstalled
func (tf *TestFixtures) CreateUninstalledTenant() (*models.Tenant, error) {
	tenant, err := tf.CreateTestTenant()
	if err != nil {
		return nil, err
	}

	now := utils.UTCNow()
	tenant.Status = models.TenantStatusUninstalled
	tenant.UninstalledAt = &now
	if err := tf.DB.DB.Save(tenant).Error; err != nil {
		return nil, fmt.Errorf("failed to uninstall test tenant: %w", err)
	}

	return tenant, nil
}

// CreateTestBadge creates an active badge with the given rule
func (tf *TestFixtures) CreateTestBadge(tenantID uint, ruleType models.RuleType, criteria []string) (*models.Badge, error) {
	if criteria == nil {
		criteria = []string{}
	}

	badge := &models.Badge{
		TenantID: tenantID,
		Name:     fmt.Sprintf("Test Badge %d", rand.Intn(100000)),
		Design:   json.RawMessage(`{"shape":"circle","color":"#ff0000"}`),
		Rule: models.AssignmentRule{
			Type:     ruleType,
			Criteria: criteria,
		},
		IsActive: utils.ToPtr(true),
	}

	if err := tf.DB.DB.Create(badge).Error; err != nil {
		return nil, fmt.Errorf("failed to create test badge: %w", err)
	}

	return badge, nil
}

// CreateTestAssignments persists one assignment row per product ID
func (tf *TestFixtures) CreateTestAssignments(tenantID, badgeID uint, productIDs []string, assignedBy string) ([]*models.BadgeAssignment, error) {
	assignments := make([]*models.BadgeAssignment, 0, len(productIDs))
	for _, productID := range productIDs {
		assignment := &models.BadgeAssignment{
			TenantID:   tenantID,
			BadgeID:    badgeID,
			ProductID:  productID,
			AssignedBy: assignedBy,
		}
		if err := tf.DB.DB.Create(assignment).Error; err != nil {
			return nil, fmt.Errorf("failed to create test assignment for product %s: %w", productID, err)
		}
		assignments = append(assignments, assignment)
	}

	return assignments, nil
}

// CreateTestSubscription creates a subscription in the given status. Pending
// subscriptions get a trial window ending trialDays from now (negative values
// produce an already-lapsed trial).
func (tf *TestFixtures) CreateTestSubscription(tenantID uint, status models.SubscriptionStatus, trialDays int) (*models.Subscription, error) {
	sub := &models.Subscription{
		TenantID:        tenantID,
		Status:          status,
		PlanName:        "Basic Plan",
		Price:           9.99,
		Currency:        "USD",
		BillingInterval: "EVERY_30_DAYS",
		TrialDays:       trialDays,
	}

	now := utils.UTCNow()
	trialEnd := now.Add(time.Duration(trialDays) * 24 * time.Hour)
	sub.TrialEndsAt = &trialEnd

	if status == models.SubscriptionStatusActive {
		periodEnd := now.Add(30 * 24 * time.Hour)
		externalID := fmt.Sprintf("charge_%d", rand.Intn(100000000))
		sub.ExternalID = &externalID
		sub.CurrentPeriodStart = &now
		sub.CurrentPeriodEnd = &periodEnd
	}

	if err := tf.DB.DB.Create(sub).Error; err != nil {
		return nil, fmt.Errorf("failed to create test subscription: %w", err)
	}

	return sub, nil
}

// CreateTestAuditLog creates a test audit log entry
func (tf *TestFixtures) CreateTestAuditLog(tenantID *uint, action string, success bool) (*models.AuditLog, error) {
	description := fmt.Sprintf("Test %s action", action)
	ipAddress := "127.0.0.1"
	userAgent := "Test User Agent"

	audit := &models.AuditLog{
		TenantID:    tenantID,
		Action:      action,
		Description: &description,
		Success:     &success,
		IPAddress:   &ipAddress,
		UserAgent:   &userAgent,
	}

	if !success {
		errorMessage := "Test failed action"
		audit.ErrorMessage = &errorMessage
	}

	if err := tf.DB.DB.Create(audit).Error; err != nil {
		return nil, fmt.Errorf("failed to create test audit log: %w", err)
	}

	return audit, nil
}
