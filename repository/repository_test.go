// Package repository_test contains database-backed tests for the repository layer
package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/badgify/badgify-server/models"
	"github.com/badgify/badgify-server/repository"
	testingutil "github.com/badgify/badgify-server/testing"
	"github.com/badgify/badgify-server/utils"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTenantRepository(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		repo := repository.NewTenantRepository(testDB.DB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		tenant, err := fixtures.CreateTestTenant()
		require.NoError(t, err)

		t.Run("ByShopDomain", func(t *testing.T) {
			found, err := repo.ByShopDomain(ctx, tenant.ShopDomain)
			require.NoError(t, err)
			require.NotNil(t, found)
			assert.Equal(t, tenant.ID, found.ID)
			assert.Equal(t, models.TenantStatusActive, found.Status)
		})

		t.Run("ByShopDomainNotFound", func(t *testing.T) {
			found, err := repo.ByShopDomain(ctx, "nobody.example-platform.com")
			assert.NoError(t, err)
			assert.Nil(t, found)
		})

		t.Run("ByUUID", func(t *testing.T) {
			found, err := repo.ByUUID(ctx, tenant.UUID.String())
			require.NoError(t, err)
			require.NotNil(t, found)
			assert.Equal(t, tenant.ShopDomain, found.ShopDomain)
		})

		t.Run("MarkUninstalled", func(t *testing.T) {
			victim, err := fixtures.CreateTestTenant()
			require.NoError(t, err)

			at := utils.UTCNow()
			require.NoError(t, repo.MarkUninstalled(ctx, victim.ID, at))

			found, err := repo.ByID(ctx, victim.ID)
			require.NoError(t, err)
			require.NotNil(t, found)
			assert.Equal(t, models.TenantStatusUninstalled, found.Status)
			require.NotNil(t, found.UninstalledAt)
			assert.WithinDuration(t, at, *found.UninstalledAt, time.Second)
			assert.False(t, found.IsActive())
		})

		return nil
	})
	require.NoError(t, err)
}

func TestBadgeRepository(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		repo := repository.NewBadgeRepository(testDB.DB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		tenant, err := fixtures.CreateTestTenant()
		require.NoError(t, err)

		badge, err := fixtures.CreateTestBadge(tenant.ID, models.RuleTypeTag, []string{"sale"})
		require.NoError(t, err)

		t.Run("ByUUIDAndTenant", func(t *testing.T) {
			found, err := repo.ByUUIDAndTenant(ctx, badge.UUID, tenant.ID)
			require.NoError(t, err)
			require.NotNil(t, found)
			assert.Equal(t, badge.Name, found.Name)
			assert.Equal(t, models.RuleTypeTag, found.Rule.Type)
			assert.Equal(t, []string{"sale"}, found.Rule.Criteria)
		})

		t.Run("ByUUIDAndTenantWrongTenant", func(t *testing.T) {
			other, err := fixtures.CreateTestTenant()
			require.NoError(t, err)

			found, err := repo.ByUUIDAndTenant(ctx, badge.UUID, other.ID)
			assert.NoError(t, err)
			assert.Nil(t, found)
		})

		t.Run("ByUUIDAndTenantUnknown", func(t *testing.T) {
			found, err := repo.ByUUIDAndTenant(ctx, uuid.New(), tenant.ID)
			assert.NoError(t, err)
			assert.Nil(t, found)
		})

		t.Run("ListAutomaticByTenant", func(t *testing.T) {
			owner, err := fixtures.CreateTestTenant()
			require.NoError(t, err)

			auto, err := fixtures.CreateTestBadge(owner.ID, models.RuleTypeVendor, []string{"Acme"})
			require.NoError(t, err)

			_, err = fixtures.CreateTestBadge(owner.ID, models.RuleTypeManual, nil)
			require.NoError(t, err)

			paused, err := fixtures.CreateTestBadge(owner.ID, models.RuleTypeCollection, []string{"111"})
			require.NoError(t, err)
			paused.IsActive = utils.ToPtr(false)
			require.NoError(t, repo.Update(ctx, paused))

			badges, err := repo.ListAutomaticByTenant(ctx, owner.ID)
			require.NoError(t, err)
			require.Len(t, badges, 1)
			assert.Equal(t, auto.ID, badges[0].ID)
		})

		t.Run("UpdateRule", func(t *testing.T) {
			target, err := fixtures.CreateTestBadge(tenant.ID, models.RuleTypeTag, []string{"new"})
			require.NoError(t, err)

			rule := models.AssignmentRule{Type: models.RuleTypeProductType, Criteria: []string{"Snowboard"}}
			require.NoError(t, repo.UpdateRule(ctx, target.ID, rule))

			found, err := repo.ByID(ctx, target.ID)
			require.NoError(t, err)
			require.NotNil(t, found)
			assert.Equal(t, models.RuleTypeProductType, found.Rule.Type)
			assert.Equal(t, []string{"Snowboard"}, found.Rule.Criteria)
		})

		t.Run("SoftDelete", func(t *testing.T) {
			target, err := fixtures.CreateTestBadge(tenant.ID, models.RuleTypeManual, nil)
			require.NoError(t, err)

			require.NoError(t, repo.Delete(ctx, target.ID))

			found, err := repo.ByUUIDAndTenant(ctx, target.UUID, tenant.ID)
			assert.NoError(t, err)
			assert.Nil(t, found)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestBadgeAssignmentRepository(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		repo := repository.NewBadgeAssignmentRepository(testDB.DB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		tenant, err := fixtures.CreateTestTenant()
		require.NoError(t, err)

		badge, err := fixtures.CreateTestBadge(tenant.ID, models.RuleTypeTag, []string{"sale"})
		require.NoError(t, err)

		t.Run("ListAndCountByBadge", func(t *testing.T) {
			_, err := fixtures.CreateTestAssignments(tenant.ID, badge.ID, []string{"p1", "p2", "p3"}, models.AssignedByRule)
			require.NoError(t, err)

			assignments, err := repo.ListByBadge(ctx, tenant.ID, badge.ID)
			require.NoError(t, err)
			assert.Len(t, assignments, 3)

			count, err := repo.CountByBadge(ctx, tenant.ID, badge.ID)
			require.NoError(t, err)
			assert.Equal(t, int64(3), count)
		})

		t.Run("UniquePerTenantBadgeProduct", func(t *testing.T) {
			dup := &models.BadgeAssignment{
				TenantID:   tenant.ID,
				BadgeID:    badge.ID,
				ProductID:  "p1",
				AssignedBy: models.AssignedByRule,
			}
			err := repo.Save(ctx, dup)
			assert.Error(t, err)
		})

		t.Run("FullReplaceRebuild", func(t *testing.T) {
			// A rebuild deletes the badge's rows and writes the new set inside one
			// transaction, so products dropped by a rule change leave no residue.
			target, err := fixtures.CreateTestBadge(tenant.ID, models.RuleTypeVendor, []string{"Acme"})
			require.NoError(t, err)

			_, err = fixtures.CreateTestAssignments(tenant.ID, target.ID, []string{"old-1", "old-2"}, models.AssignedByRule)
			require.NoError(t, err)

			err = repository.WithTransaction(ctx, testDB.DB, func(txCtx context.Context) error {
				if err := repo.DeleteByBadge(txCtx, tenant.ID, target.ID); err != nil {
					return err
				}
				newSet := []*models.BadgeAssignment{
					{TenantID: tenant.ID, BadgeID: target.ID, ProductID: "old-2", AssignedBy: models.AssignedByRule},
					{TenantID: tenant.ID, BadgeID: target.ID, ProductID: "new-1", AssignedBy: models.AssignedByRule},
				}
				return repo.SaveBatch(txCtx, newSet)
			})
			require.NoError(t, err)

			assignments, err := repo.ListByBadge(ctx, tenant.ID, target.ID)
			require.NoError(t, err)
			require.Len(t, assignments, 2)

			productIDs := make([]string, 0, len(assignments))
			for _, a := range assignments {
				productIDs = append(productIDs, a.ProductID)
			}
			assert.ElementsMatch(t, []string{"old-2", "new-1"}, productIDs)
		})

		t.Run("DeleteByBadgeScoped", func(t *testing.T) {
			kept, err := fixtures.CreateTestBadge(tenant.ID, models.RuleTypeTag, []string{"keep"})
			require.NoError(t, err)
			gone, err := fixtures.CreateTestBadge(tenant.ID, models.RuleTypeTag, []string{"gone"})
			require.NoError(t, err)

			_, err = fixtures.CreateTestAssignments(tenant.ID, kept.ID, []string{"k1"}, models.AssignedByRule)
			require.NoError(t, err)
			_, err = fixtures.CreateTestAssignments(tenant.ID, gone.ID, []string{"g1", "g2"}, models.AssignedByRule)
			require.NoError(t, err)

			require.NoError(t, repo.DeleteByBadge(ctx, tenant.ID, gone.ID))

			count, err := repo.CountByBadge(ctx, tenant.ID, gone.ID)
			require.NoError(t, err)
			assert.Equal(t, int64(0), count)

			count, err = repo.CountByBadge(ctx, tenant.ID, kept.ID)
			require.NoError(t, err)
			assert.Equal(t, int64(1), count)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestSubscriptionRepository(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		repo := repository.NewSubscriptionRepository(testDB.DB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		t.Run("ByTenantID", func(t *testing.T) {
			tenant, err := fixtures.CreateTestTenant()
			require.NoError(t, err)

			sub, err := fixtures.CreateTestSubscription(tenant.ID, models.SubscriptionStatusPending, 3)
			require.NoError(t, err)

			found, err := repo.ByTenantID(ctx, tenant.ID)
			require.NoError(t, err)
			require.NotNil(t, found)
			assert.Equal(t, sub.ID, found.ID)
			assert.Equal(t, models.SubscriptionStatusPending, found.Status)
		})

		t.Run("ByTenantIDNotFound", func(t *testing.T) {
			tenant, err := fixtures.CreateTestTenant()
			require.NoError(t, err)

			found, err := repo.ByTenantID(ctx, tenant.ID)
			assert.NoError(t, err)
			assert.Nil(t, found)
		})

		t.Run("UpdateStatusIf", func(t *testing.T) {
			tenant, err := fixtures.CreateTestTenant()
			require.NoError(t, err)

			sub, err := fixtures.CreateTestSubscription(tenant.ID, models.SubscriptionStatusPending, 3)
			require.NoError(t, err)

			ok, err := repo.UpdateStatusIf(ctx, sub.ID, models.SubscriptionStatusPending, models.SubscriptionStatusActive)
			require.NoError(t, err)
			assert.True(t, ok)

			// The row no longer holds the expected status, so a second
			// identical transition must report a lost race.
			ok, err = repo.UpdateStatusIf(ctx, sub.ID, models.SubscriptionStatusPending, models.SubscriptionStatusActive)
			require.NoError(t, err)
			assert.False(t, ok)

			found, err := repo.ByTenantID(ctx, tenant.ID)
			require.NoError(t, err)
			require.NotNil(t, found)
			assert.Equal(t, models.SubscriptionStatusActive, found.Status)
		})

		t.Run("ExpireTrials", func(t *testing.T) {
			lapsedTenant, err := fixtures.CreateTestTenant()
			require.NoError(t, err)
			lapsed, err := fixtures.CreateTestSubscription(lapsedTenant.ID, models.SubscriptionStatusPending, -1)
			require.NoError(t, err)

			freshTenant, err := fixtures.CreateTestTenant()
			require.NoError(t, err)
			fresh, err := fixtures.CreateTestSubscription(freshTenant.ID, models.SubscriptionStatusPending, 3)
			require.NoError(t, err)

			activeTenant, err := fixtures.CreateTestTenant()
			require.NoError(t, err)
			active, err := fixtures.CreateTestSubscription(activeTenant.ID, models.SubscriptionStatusActive, -1)
			require.NoError(t, err)

			count, err := repo.ExpireTrials(ctx, utils.UTCNow())
			require.NoError(t, err)
			assert.Equal(t, int64(1), count)

			found, err := repo.ByID(ctx, lapsed.ID)
			require.NoError(t, err)
			require.NotNil(t, found)
			assert.Equal(t, models.SubscriptionStatusExpired, found.Status)

			found, err = repo.ByID(ctx, fresh.ID)
			require.NoError(t, err)
			require.NotNil(t, found)
			assert.Equal(t, models.SubscriptionStatusPending, found.Status)

			found, err = repo.ByID(ctx, active.ID)
			require.NoError(t, err)
			require.NotNil(t, found)
			assert.Equal(t, models.SubscriptionStatusActive, found.Status)

			// Everything lapsed is already expired, so a second sweep is a no-op.
			count, err = repo.ExpireTrials(ctx, utils.UTCNow())
			require.NoError(t, err)
			assert.Equal(t, int64(0), count)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestResolutionJobRepository(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		repo := repository.NewResolutionJobRepository(testDB.DB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		tenant, err := fixtures.CreateTestTenant()
		require.NoError(t, err)

		badge, err := fixtures.CreateTestBadge(tenant.ID, models.RuleTypeTag, []string{"sale"})
		require.NoError(t, err)

		t.Run("EnqueuePendingCollapsesDuplicates", func(t *testing.T) {
			require.NoError(t, repo.EnqueuePending(ctx, tenant.ID, badge.ID, "rule_changed"))
			require.NoError(t, repo.EnqueuePending(ctx, tenant.ID, badge.ID, "catalog_changed"))

			jobs, err := repo.ListPending(ctx, 10)
			require.NoError(t, err)
			require.Len(t, jobs, 1)
			assert.Equal(t, badge.ID, jobs[0].BadgeID)
			assert.Equal(t, "rule_changed", jobs[0].Reason)
			assert.Equal(t, models.ResolutionJobStatusPending, jobs[0].Status)
		})

		t.Run("MarkCompleted", func(t *testing.T) {
			jobs, err := repo.ListPending(ctx, 1)
			require.NoError(t, err)
			require.Len(t, jobs, 1)

			at := utils.UTCNow()
			require.NoError(t, repo.MarkCompleted(ctx, jobs[0].ID, at))

			found, err := repo.ByID(ctx, jobs[0].ID)
			require.NoError(t, err)
			require.NotNil(t, found)
			assert.Equal(t, models.ResolutionJobStatusCompleted, found.Status)
			assert.Equal(t, 1, found.Attempts)
			require.NotNil(t, found.ProcessedAt)
			assert.WithinDuration(t, at, *found.ProcessedAt, time.Second)

			// The badge has no pending job anymore, so a new enqueue creates one.
			require.NoError(t, repo.EnqueuePending(ctx, tenant.ID, badge.ID, "catalog_changed"))
			jobs, err = repo.ListPending(ctx, 10)
			require.NoError(t, err)
			assert.Len(t, jobs, 1)
		})

		t.Run("MarkFailed", func(t *testing.T) {
			jobs, err := repo.ListPending(ctx, 1)
			require.NoError(t, err)
			require.Len(t, jobs, 1)

			require.NoError(t, repo.MarkFailed(ctx, jobs[0].ID, utils.UTCNow()))

			found, err := repo.ByID(ctx, jobs[0].ID)
			require.NoError(t, err)
			require.NotNil(t, found)
			assert.Equal(t, models.ResolutionJobStatusFailed, found.Status)
		})

		t.Run("PendingUniquePerBadge", func(t *testing.T) {
			// The dedupe must hold at the database, not just in the enqueue
			// fast path: a raw insert that skips the pending-count check has
			// to hit the partial unique index.
			target, err := fixtures.CreateTestBadge(tenant.ID, models.RuleTypeVendor, []string{"Acme"})
			require.NoError(t, err)

			require.NoError(t, repo.EnqueuePending(ctx, tenant.ID, target.ID, "rule_changed"))

			dup := &models.ResolutionJob{
				TenantID: tenant.ID,
				BadgeID:  target.ID,
				Reason:   "catalog_changed",
				Status:   models.ResolutionJobStatusPending,
			}
			err = testDB.DB.Create(dup).Error
			assert.Error(t, err)

			jobs, err := repo.ListPending(ctx, 10)
			require.NoError(t, err)
			require.Len(t, jobs, 1)

			// Once the pending job is finalized the badge can be queued again
			require.NoError(t, repo.MarkCompleted(ctx, jobs[0].ID, utils.UTCNow()))
			require.NoError(t, repo.EnqueuePending(ctx, tenant.ID, target.ID, "catalog_changed"))

			jobs, err = repo.ListPending(ctx, 10)
			require.NoError(t, err)
			require.Len(t, jobs, 1)
			require.NoError(t, repo.MarkCompleted(ctx, jobs[0].ID, utils.UTCNow()))
		})

		t.Run("ListPendingOldestFirst", func(t *testing.T) {
			first, err := fixtures.CreateTestBadge(tenant.ID, models.RuleTypeTag, []string{"a"})
			require.NoError(t, err)
			second, err := fixtures.CreateTestBadge(tenant.ID, models.RuleTypeTag, []string{"b"})
			require.NoError(t, err)

			require.NoError(t, repo.EnqueuePending(ctx, tenant.ID, first.ID, "rule_changed"))
			require.NoError(t, repo.EnqueuePending(ctx, tenant.ID, second.ID, "rule_changed"))

			jobs, err := repo.ListPending(ctx, 1)
			require.NoError(t, err)
			require.Len(t, jobs, 1)
			assert.Equal(t, first.ID, jobs[0].BadgeID)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestResolutionRunRepository(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		repo := repository.NewResolutionRunRepository(testDB.DB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		tenant, err := fixtures.CreateTestTenant()
		require.NoError(t, err)

		badge, err := fixtures.CreateTestBadge(tenant.ID, models.RuleTypeTag, []string{"sale"})
		require.NoError(t, err)

		t.Run("SaveAndListByBadge", func(t *testing.T) {
			for _, products := range [][]string{{"p1"}, {"p1", "p2"}} {
				run := &models.ResolutionRun{
					CorrelationID: uuid.New(),
					TenantID:      tenant.ID,
					BadgeID:       badge.ID,
					RuleType:      models.RuleTypeTag,
					ProductIDs:    pq.StringArray(products),
					MatchedCount:  len(products),
				}
				require.NoError(t, repo.Save(ctx, run))
			}

			runs, err := repo.ListByBadge(ctx, tenant.ID, badge.ID, 10, 0)
			require.NoError(t, err)
			require.Len(t, runs, 2)
			// Newest first: the two-product run was recorded last.
			assert.Equal(t, 2, runs[0].MatchedCount)
			assert.ElementsMatch(t, []string{"p1", "p2"}, []string(runs[0].ProductIDs))
		})

		t.Run("DeleteByTenant", func(t *testing.T) {
			require.NoError(t, repo.DeleteByTenant(ctx, tenant.ID))

			runs, err := repo.ListByBadge(ctx, tenant.ID, badge.ID, 10, 0)
			require.NoError(t, err)
			assert.Empty(t, runs)
		})

		return nil
	})
	require.NoError(t, err)
}
