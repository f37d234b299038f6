package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/badgify/badgify-server/models"
	"github.com/badgify/badgify-server/utils"
	"gorm.io/gorm"
)

// SubscriptionRepositoryImpl implements the SubscriptionRepository interface
type SubscriptionRepositoryImpl struct {
	*BaseRepository[models.Subscription, models.SubscriptionFilter]
}

// NewSubscriptionRepository creates a new subscription repository
func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &SubscriptionRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Subscription, models.SubscriptionFilter](db),
	}
}

// ByTenantID retrieves the single subscription of a tenant
func (r *SubscriptionRepositoryImpl) ByTenantID(ctx context.Context, tenantID uint) (*models.Subscription, error) {
	db := r.getDB(ctx)

	var sub models.Subscription
	err := db.Where("tenant_id = ?", tenantID).Last(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find subscription by tenant %d: %w", tenantID, err)
	}

	return &sub, nil
}

// Update updates a subscription
func (r *SubscriptionRepositoryImpl) Update(ctx context.Context, subscription *models.Subscription) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}

	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	subscription.UpdatedAt = utils.UTCNow()
	err = db.Save(subscription).Error
	if err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}

	return nil
}

// UpdateStatusIf performs a conditional status transition: the row is updated only
// if it still holds the expected current status. Returns false when another writer
// got there first.
func (r *SubscriptionRepositoryImpl) UpdateStatusIf(ctx context.Context, subscriptionID uint, from, to models.SubscriptionStatus) (bool, error) {
	db := r.getDB(ctx)

	res := db.Model(&models.Subscription{}).
		Where("id = ? AND status = ?", subscriptionID, from).
		Updates(map[string]any{
			"status":     to,
			"updated_at": utils.UTCNow(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to transition subscription %d from %s to %s: %w",
			subscriptionID, from, to, res.Error)
	}

	return res.RowsAffected > 0, nil
}

// ExpireTrials transitions every pending subscription whose trial window has passed
// to expired. The WHERE clause makes the sweep idempotent and keeps it from
// clobbering a subscribe that completed concurrently.
func (r *SubscriptionRepositoryImpl) ExpireTrials(ctx context.Context, now time.Time) (int64, error) {
	db := r.getDB(ctx)

	res := db.Model(&models.Subscription{}).
		Where("status = ? AND trial_ends_at IS NOT NULL AND trial_ends_at < ?",
			models.SubscriptionStatusPending, now).
		Updates(map[string]any{
			"status":     models.SubscriptionStatusExpired,
			"updated_at": now,
		})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to expire trials: %w", res.Error)
	}

	return res.RowsAffected, nil
}

// DeleteByTenant removes a tenant's subscription (data erasure only)
func (r *SubscriptionRepositoryImpl) DeleteByTenant(ctx context.Context, tenantID uint) error {
	db := r.getDB(ctx)

	if err := db.Where("tenant_id = ?", tenantID).Delete(&models.Subscription{}).Error; err != nil {
		return fmt.Errorf("failed to delete subscription for tenant %d: %w", tenantID, err)
	}

	return nil
}

// ByFilter retrieves subscriptions based on filter criteria
func (r *SubscriptionRepositoryImpl) ByFilter(ctx context.Context, filter models.SubscriptionFilter, orderBy string, limit, offset int) ([]*models.Subscription, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Subscription{}), filter)

	if orderBy == "" {
		orderBy = "id DESC"
	}
	query = query.Order(orderBy)

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var rows []*models.Subscription
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to find subscriptions by filter: %w", err)
	}
	return rows, nil
}

// Count returns the number of subscriptions matching the filter
func (r *SubscriptionRepositoryImpl) Count(ctx context.Context, filter models.SubscriptionFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Subscription{}), filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any subscription matching the filter exists
func (r *SubscriptionRepositoryImpl) Exists(ctx context.Context, filter models.SubscriptionFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *SubscriptionRepositoryImpl) applyFilter(query *gorm.DB, filter models.SubscriptionFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.TenantID != nil {
		query = query.Where("tenant_id = ?", *filter.TenantID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.ExternalID != nil {
		query = query.Where("external_id = ?", *filter.ExternalID)
	}
	if filter.TrialEndBefore != nil {
		query = query.Where("trial_ends_at IS NOT NULL AND trial_ends_at < ?", *filter.TrialEndBefore)
	}
	return query
}
