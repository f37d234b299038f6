package businessflow

import (
	"context"
	"testing"
	"time"

	"github.com/badgify/badgify-server/app/dto"
	"github.com/badgify/badgify-server/app/services"
	"github.com/badgify/badgify-server/config"
	"github.com/badgify/badgify-server/models"
	"github.com/badgify/badgify-server/repository"
	testingutil "github.com/badgify/badgify-server/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dtoRule(ruleType string, criteria []string) dto.AssignmentRuleDTO {
	return dto.AssignmentRuleDTO{Type: ruleType, Criteria: criteria}
}

func testSnapshot() *models.CatalogSnapshot {
	return &models.CatalogSnapshot{
		Products: []models.Product{
			{
				ID:            "P1",
				Title:         "Alpha Tee",
				Vendor:        "Acme",
				ProductType:   "T-Shirt",
				Tags:          []string{"sale"},
				CollectionIDs: []string{"C1"},
			},
			{
				ID:            "P2",
				Title:         "Beta Hoodie",
				Vendor:        "Acme",
				ProductType:   "Hoodie",
				Tags:          []string{"sale", "new"},
				CollectionIDs: []string{"C1", "C2"},
			},
			{
				ID:            "P3",
				Title:         "Gamma Mug",
				Vendor:        "Umbrella",
				ProductType:   "Mug",
				Tags:          []string{"gift"},
				CollectionIDs: []string{"C3"},
			},
		},
		Collections: []models.Collection{
			{ID: "C1", Title: "Apparel"},
			{ID: "C2", Title: "Winter"},
			{ID: "C3", Title: "Kitchen"},
		},
	}
}

func matchedSet(t *testing.T, rule models.AssignmentRule, snapshot *models.CatalogSnapshot) map[string]struct{} {
	t.Helper()
	return ResolveRule(rule, snapshot)
}

func TestResolveRuleManual(t *testing.T) {
	snapshot := testSnapshot()

	t.Run("ReturnsCriteriaVerbatim", func(t *testing.T) {
		rule := models.AssignmentRule{Type: models.RuleTypeManual, Criteria: []string{"P1", "P3"}}
		got := matchedSet(t, rule, snapshot)
		assert.Len(t, got, 2)
		assert.Contains(t, got, "P1")
		assert.Contains(t, got, "P3")
	})

	t.Run("KeepsIDsAbsentFromCatalog", func(t *testing.T) {
		rule := models.AssignmentRule{Type: models.RuleTypeManual, Criteria: []string{"P999"}}
		got := matchedSet(t, rule, snapshot)
		assert.Contains(t, got, "P999")
	})

	t.Run("IgnoresCatalogEntirely", func(t *testing.T) {
		rule := models.AssignmentRule{Type: models.RuleTypeManual, Criteria: []string{"P1"}}
		withSnapshot := matchedSet(t, rule, snapshot)
		withoutSnapshot := matchedSet(t, rule, nil)
		assert.Equal(t, withSnapshot, withoutSnapshot)
	})

	t.Run("EmptyCriteriaMatchNothing", func(t *testing.T) {
		rule := models.AssignmentRule{Type: models.RuleTypeManual, Criteria: []string{}}
		assert.Empty(t, matchedSet(t, rule, snapshot))
	})

	t.Run("DeduplicatesRepeatedIDs", func(t *testing.T) {
		rule := models.AssignmentRule{Type: models.RuleTypeManual, Criteria: []string{"P1", "P1"}}
		assert.Len(t, matchedSet(t, rule, snapshot), 1)
	})
}

func TestResolveRuleCollection(t *testing.T) {
	snapshot := testSnapshot()

	t.Run("SingleCollection", func(t *testing.T) {
		rule := models.AssignmentRule{Type: models.RuleTypeCollection, Criteria: []string{"C2"}}
		got := matchedSet(t, rule, snapshot)
		assert.Len(t, got, 1)
		assert.Contains(t, got, "P2")
	})

	t.Run("AnyCollectionMatches", func(t *testing.T) {
		rule := models.AssignmentRule{Type: models.RuleTypeCollection, Criteria: []string{"C2", "C3"}}
		got := matchedSet(t, rule, snapshot)
		assert.Len(t, got, 2)
		assert.Contains(t, got, "P2")
		assert.Contains(t, got, "P3")
	})

	t.Run("ProductInBothCriteriaCountsOnce", func(t *testing.T) {
		rule := models.AssignmentRule{Type: models.RuleTypeCollection, Criteria: []string{"C1", "C2"}}
		got := matchedSet(t, rule, snapshot)
		assert.Len(t, got, 2)
	})

	t.Run("UnknownCollectionMatchesNothing", func(t *testing.T) {
		rule := models.AssignmentRule{Type: models.RuleTypeCollection, Criteria: []string{"C999"}}
		assert.Empty(t, matchedSet(t, rule, snapshot))
	})
}

func TestResolveRuleTag(t *testing.T) {
	snapshot := testSnapshot()

	t.Run("SharedTagMatchesBoth", func(t *testing.T) {
		rule := models.AssignmentRule{Type: models.RuleTypeTag, Criteria: []string{"sale"}}
		got := matchedSet(t, rule, snapshot)
		assert.Len(t, got, 2)
		assert.Contains(t, got, "P1")
		assert.Contains(t, got, "P2")
	})

	t.Run("ORSemanticsAcrossCriteria", func(t *testing.T) {
		rule := models.AssignmentRule{Type: models.RuleTypeTag, Criteria: []string{"new", "gift"}}
		got := matchedSet(t, rule, snapshot)
		assert.Len(t, got, 2)
		assert.Contains(t, got, "P2")
		assert.Contains(t, got, "P3")
	})

	t.Run("TagMatchIsCaseSensitive", func(t *testing.T) {
		rule := models.AssignmentRule{Type: models.RuleTypeTag, Criteria: []string{"Sale"}}
		assert.Empty(t, matchedSet(t, rule, snapshot))
	})
}

func TestResolveRuleAttributes(t *testing.T) {
	snapshot := testSnapshot()

	t.Run("ProductType", func(t *testing.T) {
		rule := models.AssignmentRule{Type: models.RuleTypeProductType, Criteria: []string{"Hoodie", "Mug"}}
		got := matchedSet(t, rule, snapshot)
		assert.Len(t, got, 2)
		assert.Contains(t, got, "P2")
		assert.Contains(t, got, "P3")
	})

	t.Run("Vendor", func(t *testing.T) {
		rule := models.AssignmentRule{Type: models.RuleTypeVendor, Criteria: []string{"Acme"}}
		got := matchedSet(t, rule, snapshot)
		assert.Len(t, got, 2)
		assert.Contains(t, got, "P1")
		assert.Contains(t, got, "P2")
	})
}

func TestResolveRuleEmptyAndDegenerate(t *testing.T) {
	snapshot := testSnapshot()

	t.Run("EmptyCriteriaMatchNothingForAllVariants", func(t *testing.T) {
		for _, ruleType := range []models.RuleType{
			models.RuleTypeCollection,
			models.RuleTypeTag,
			models.RuleTypeProductType,
			models.RuleTypeVendor,
		} {
			rule := models.AssignmentRule{Type: ruleType, Criteria: []string{}}
			assert.Empty(t, matchedSet(t, rule, snapshot), "rule type %s", ruleType)
		}
	})

	t.Run("NilSnapshotMatchesNothing", func(t *testing.T) {
		rule := models.AssignmentRule{Type: models.RuleTypeTag, Criteria: []string{"sale"}}
		assert.Empty(t, matchedSet(t, rule, nil))
	})

	t.Run("UnknownRuleTypeMatchesNothing", func(t *testing.T) {
		rule := models.AssignmentRule{Type: models.RuleType("bogus"), Criteria: []string{"sale"}}
		assert.Empty(t, matchedSet(t, rule, snapshot))
	})

	t.Run("BlankCriteriaValuesContributeNothing", func(t *testing.T) {
		rule := models.AssignmentRule{Type: models.RuleTypeTag, Criteria: []string{""}}
		assert.Empty(t, matchedSet(t, rule, snapshot))
	})
}

func TestResolveRulePurity(t *testing.T) {
	snapshot := testSnapshot()
	rule := models.AssignmentRule{Type: models.RuleTypeTag, Criteria: []string{"sale", "gift"}}

	first := matchedSet(t, rule, snapshot)
	second := matchedSet(t, rule, snapshot)
	require.Equal(t, first, second)

	// Inputs are untouched by resolution
	assert.Equal(t, []string{"sale", "gift"}, rule.Criteria)
	assert.Equal(t, testSnapshot(), snapshot)
}

func TestSortedIDs(t *testing.T) {
	set := map[string]struct{}{"P3": {}, "P1": {}, "P2": {}}
	assert.Equal(t, []string{"P1", "P2", "P3"}, sortedIDs(set))
	assert.Empty(t, sortedIDs(map[string]struct{}{}))
}

func TestRuleFromDTO(t *testing.T) {
	t.Run("NilCriteriaBecomeEmptySlice", func(t *testing.T) {
		rule, err := ruleFromDTO(dtoRule("tag", nil))
		require.NoError(t, err)
		assert.NotNil(t, rule.Criteria)
		assert.Empty(t, rule.Criteria)
	})

	t.Run("InvalidTypeRejected", func(t *testing.T) {
		_, err := ruleFromDTO(dtoRule("bogus", []string{"x"}))
		assert.ErrorIs(t, err, ErrInvalidRuleType)
	})
}

// stubCatalogClient serves a fixed snapshot or a fixed failure
type stubCatalogClient struct {
	snapshot *models.CatalogSnapshot
	err      error
}

func (c *stubCatalogClient) ListProducts(_ context.Context, _ *models.Tenant) ([]models.Product, error) {
	snap, err := c.Snapshot(nil, nil)
	if err != nil {
		return nil, err
	}
	return snap.Products, nil
}

func (c *stubCatalogClient) ListCollections(_ context.Context, _ *models.Tenant) ([]models.Collection, error) {
	snap, err := c.Snapshot(nil, nil)
	if err != nil {
		return nil, err
	}
	return snap.Collections, nil
}

func (c *stubCatalogClient) Snapshot(_ context.Context, _ *models.Tenant) (*models.CatalogSnapshot, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.snapshot, nil
}

func newTestAssignmentFlow(testDB *testingutil.TestDB, catalog services.CatalogClient) AssignmentFlow {
	return NewAssignmentFlow(
		repository.NewTenantRepository(testDB.DB),
		repository.NewBadgeRepository(testDB.DB),
		repository.NewBadgeAssignmentRepository(testDB.DB),
		repository.NewResolutionRunRepository(testDB.DB),
		repository.NewResolutionJobRepository(testDB.DB),
		repository.NewAuditLogRepository(testDB.DB),
		catalog,
		config.CatalogConfig{APIVersion: "2024-07", Timeout: 5 * time.Second, SnapshotTimeout: 10 * time.Second, PageLimit: 250},
		testDB.DB,
	)
}

func assignedProductIDs(t *testing.T, testDB *testingutil.TestDB, tenantID, badgeID uint) []string {
	t.Helper()
	repo := repository.NewBadgeAssignmentRepository(testDB.DB)
	assignments, err := repo.ListByBadge(context.Background(), tenantID, badgeID)
	require.NoError(t, err)
	ids := make([]string, 0, len(assignments))
	for _, a := range assignments {
		ids = append(ids, a.ProductID)
	}
	return ids
}

func TestAssignmentFlowRebuild(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		tenant, err := fixtures.CreateTestTenant()
		require.NoError(t, err)

		badge, err := fixtures.CreateTestBadge(tenant.ID, models.RuleTypeTag, []string{"sale"})
		require.NoError(t, err)

		saleSnapshot := &models.CatalogSnapshot{
			Products: []models.Product{
				{ID: "P1", Tags: []string{"sale"}},
				{ID: "P2", Tags: []string{"winter"}},
				{ID: "P3", Tags: []string{"sale", "winter"}},
			},
		}

		t.Run("RebuildMaterializesMatches", func(t *testing.T) {
			flow := newTestAssignmentFlow(testDB, &stubCatalogClient{snapshot: saleSnapshot})

			matched, err := flow.RebuildByID(ctx, tenant.ID, badge.ID)
			require.NoError(t, err)
			assert.Equal(t, 2, matched)
			assert.ElementsMatch(t, []string{"P1", "P3"}, assignedProductIDs(t, testDB, tenant.ID, badge.ID))
		})

		t.Run("CatalogFailureLeavesAssignmentsIntact", func(t *testing.T) {
			flow := newTestAssignmentFlow(testDB, &stubCatalogClient{err: services.ErrCatalogRequestFailed})

			_, err := flow.RebuildByID(ctx, tenant.ID, badge.ID)
			require.Error(t, err)
			assert.True(t, IsCatalogUnavailable(err))

			// The failed pass wrote nothing: the previous set survives untouched
			assert.ElementsMatch(t, []string{"P1", "P3"}, assignedProductIDs(t, testDB, tenant.ID, badge.ID))
		})

		t.Run("RebuildIsFullReplace", func(t *testing.T) {
			shrunk := &models.CatalogSnapshot{
				Products: []models.Product{
					{ID: "P3", Tags: []string{"sale"}},
					{ID: "P9", Tags: []string{"sale"}},
				},
			}
			flow := newTestAssignmentFlow(testDB, &stubCatalogClient{snapshot: shrunk})

			matched, err := flow.RebuildByID(ctx, tenant.ID, badge.ID)
			require.NoError(t, err)
			assert.Equal(t, 2, matched)
			assert.ElementsMatch(t, []string{"P3", "P9"}, assignedProductIDs(t, testDB, tenant.ID, badge.ID))
		})

		t.Run("ConcurrentRebuildRejected", func(t *testing.T) {
			flow := newTestAssignmentFlow(testDB, &stubCatalogClient{snapshot: saleSnapshot})
			impl := flow.(*AssignmentFlowImpl)

			require.True(t, impl.locks.TryLock(badge.ID))
			defer impl.locks.Unlock(badge.ID)

			_, err := flow.RebuildByID(ctx, tenant.ID, badge.ID)
			require.Error(t, err)
			assert.True(t, IsRebuildInProgress(err))
		})

		t.Run("ManualRuleNeverReadsCatalog", func(t *testing.T) {
			manual, err := fixtures.CreateTestBadge(tenant.ID, models.RuleTypeManual, []string{"M1", "M2"})
			require.NoError(t, err)

			// A broken catalog must not matter for manual badges
			flow := newTestAssignmentFlow(testDB, &stubCatalogClient{err: services.ErrCatalogRequestFailed})

			matched, err := flow.RebuildByID(ctx, tenant.ID, manual.ID)
			require.NoError(t, err)
			assert.Equal(t, 2, matched)
			assert.ElementsMatch(t, []string{"M1", "M2"}, assignedProductIDs(t, testDB, tenant.ID, manual.ID))
		})

		t.Run("UnknownBadgeRejected", func(t *testing.T) {
			flow := newTestAssignmentFlow(testDB, &stubCatalogClient{snapshot: saleSnapshot})

			_, err := flow.RebuildByID(ctx, tenant.ID, 999999)
			require.Error(t, err)
			assert.True(t, IsBadgeNotFound(err))
		})

		return nil
	})
	require.NoError(t, err)
}
