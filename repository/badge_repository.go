package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/badgify/badgify-server/models"
	"github.com/badgify/badgify-server/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BadgeRepositoryImpl implements the BadgeRepository interface
type BadgeRepositoryImpl struct {
	*BaseRepository[models.Badge, models.BadgeFilter]
}

// NewBadgeRepository creates a new badge repository
func NewBadgeRepository(db *gorm.DB) BadgeRepository {
	return &BadgeRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Badge, models.BadgeFilter](db),
	}
}

// ByUUIDAndTenant retrieves a badge by UUID scoped to its owning tenant
func (r *BadgeRepositoryImpl) ByUUIDAndTenant(ctx context.Context, badgeUUID uuid.UUID, tenantID uint) (*models.Badge, error) {
	db := r.getDB(ctx)

	var badge models.Badge
	err := db.Where("uuid = ? AND tenant_id = ?", badgeUUID, tenantID).Last(&badge).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find badge by UUID: %w", err)
	}

	return &badge, nil
}

// ListByTenant retrieves badges for a tenant with pagination, newest first
func (r *BadgeRepositoryImpl) ListByTenant(ctx context.Context, tenantID uint, limit, offset int) ([]*models.Badge, error) {
	filter := models.BadgeFilter{TenantID: &tenantID}
	return r.ByFilter(ctx, filter, "created_at DESC", limit, offset)
}

// ListAutomaticByTenant retrieves the tenant's active badges whose rule derives from
// the catalog (anything but the manual variant). These are the badges a catalog
// change can invalidate.
func (r *BadgeRepositoryImpl) ListAutomaticByTenant(ctx context.Context, tenantID uint) ([]*models.Badge, error) {
	db := r.getDB(ctx)

	var badges []*models.Badge
	err := db.Where("tenant_id = ? AND is_active = ? AND rule->>'type' <> ?",
		tenantID, true, models.RuleTypeManual.String()).
		Find(&badges).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list automatic badges: %w", err)
	}

	return badges, nil
}

// Update updates a badge
func (r *BadgeRepositoryImpl) Update(ctx context.Context, badge *models.Badge) error {
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

	badge.UpdatedAt = utils.UTCNow()
	err = db.Save(badge).Error
	if err != nil {
		return fmt.Errorf("failed to update badge: %w", err)
	}

	return nil
}

// UpdateRule upserts the assignment rule onto the badge record
func (r *BadgeRepositoryImpl) UpdateRule(ctx context.Context, badgeID uint, rule models.AssignmentRule) error {
	db := r.getDB(ctx)

	err := db.Model(&models.Badge{}).
		Where("id = ?", badgeID).
		Updates(map[string]any{
			"rule":       rule,
			"updated_at": utils.UTCNow(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to update badge rule: %w", err)
	}

	return nil
}

// Delete soft-deletes a badge. Assignments are removed separately in the same
// transaction by the caller so readers never observe a deleted badge's cache.
func (r *BadgeRepositoryImpl) Delete(ctx context.Context, badgeID uint) error {
	db := r.getDB(ctx)

	if err := db.Delete(&models.Badge{}, badgeID).Error; err != nil {
		return fmt.Errorf("failed to delete badge %d: %w", badgeID, err)
	}

	return nil
}

// DeleteByTenant hard-deletes all badges of a tenant (data erasure)
func (r *BadgeRepositoryImpl) DeleteByTenant(ctx context.Context, tenantID uint) error {
	db := r.getDB(ctx)

	if err := db.Unscoped().Where("tenant_id = ?", tenantID).Delete(&models.Badge{}).Error; err != nil {
		return fmt.Errorf("failed to delete badges for tenant %d: %w", tenantID, err)
	}

	return nil
}

// ByFilter retrieves badges based on filter criteria
func (r *BadgeRepositoryImpl) ByFilter(ctx context.Context, filter models.BadgeFilter, orderBy string, limit, offset int) ([]*models.Badge, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Badge{}), filter)

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

	var rows []*models.Badge
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to find badges by filter: %w", err)
	}
	return rows, nil
}

// Count returns the number of badges matching the filter
func (r *BadgeRepositoryImpl) Count(ctx context.Context, filter models.BadgeFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Badge{}), filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any badge matching the filter exists
func (r *BadgeRepositoryImpl) Exists(ctx context.Context, filter models.BadgeFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *BadgeRepositoryImpl) applyFilter(query *gorm.DB, filter models.BadgeFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.TenantID != nil {
		query = query.Where("tenant_id = ?", *filter.TenantID)
	}
	if filter.Name != nil {
		query = query.Where("name = ?", *filter.Name)
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}
	if filter.RuleType != nil {
		query = query.Where("rule->>'type' = ?", filter.RuleType.String())
	}
	return query
}
