package repository

import (
	"context"
	"fmt"

	"github.com/badgify/badgify-server/models"
	"gorm.io/gorm"
)

// BadgeAssignmentRepositoryImpl implements the BadgeAssignmentRepository interface
type BadgeAssignmentRepositoryImpl struct {
	*BaseRepository[models.BadgeAssignment, models.BadgeAssignmentFilter]
}

// NewBadgeAssignmentRepository creates a new badge assignment repository
func NewBadgeAssignmentRepository(db *gorm.DB) BadgeAssignmentRepository {
	return &BadgeAssignmentRepositoryImpl{
		BaseRepository: NewBaseRepository[models.BadgeAssignment, models.BadgeAssignmentFilter](db),
	}
}

// ListByBadge retrieves all assignments of a badge
func (r *BadgeAssignmentRepositoryImpl) ListByBadge(ctx context.Context, tenantID, badgeID uint) ([]*models.BadgeAssignment, error) {
	db := r.getDB(ctx)

	var rows []*models.BadgeAssignment
	err := db.Where("tenant_id = ? AND badge_id = ?", tenantID, badgeID).
		Order("product_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments for badge %d: %w", badgeID, err)
	}

	return rows, nil
}

// CountByBadge returns the number of products a badge is currently assigned to
func (r *BadgeAssignmentRepositoryImpl) CountByBadge(ctx context.Context, tenantID, badgeID uint) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	err := db.Model(&models.BadgeAssignment{}).
		Where("tenant_id = ? AND badge_id = ?", tenantID, badgeID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count assignments for badge %d: %w", badgeID, err)
	}

	return count, nil
}

// DeleteByBadge removes all assignments of a badge. Callers rebuildng the cache
// must run this and the subsequent insert inside one transaction so readers never
// observe a partially replaced set.
func (r *BadgeAssignmentRepositoryImpl) DeleteByBadge(ctx context.Context, tenantID, badgeID uint) error {
	db := r.getDB(ctx)

	err := db.Where("tenant_id = ? AND badge_id = ?", tenantID, badgeID).
		Delete(&models.BadgeAssignment{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete assignments for badge %d: %w", badgeID, err)
	}

	return nil
}

// DeleteByTenant removes every assignment of a tenant (data erasure)
func (r *BadgeAssignmentRepositoryImpl) DeleteByTenant(ctx context.Context, tenantID uint) error {
	db := r.getDB(ctx)

	err := db.Where("tenant_id = ?", tenantID).Delete(&models.BadgeAssignment{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete assignments for tenant %d: %w", tenantID, err)
	}

	return nil
}

// ByFilter retrieves assignments based on filter criteria
func (r *BadgeAssignmentRepositoryImpl) ByFilter(ctx context.Context, filter models.BadgeAssignmentFilter, orderBy string, limit, offset int) ([]*models.BadgeAssignment, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.BadgeAssignment{}), filter)

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

	var rows []*models.BadgeAssignment
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to find assignments by filter: %w", err)
	}
	return rows, nil
}

// Count returns the number of assignments matching the filter
func (r *BadgeAssignmentRepositoryImpl) Count(ctx context.Context, filter models.BadgeAssignmentFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.BadgeAssignment{}), filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any assignment matching the filter exists
func (r *BadgeAssignmentRepositoryImpl) Exists(ctx context.Context, filter models.BadgeAssignmentFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *BadgeAssignmentRepositoryImpl) applyFilter(query *gorm.DB, filter models.BadgeAssignmentFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.TenantID != nil {
		query = query.Where("tenant_id = ?", *filter.TenantID)
	}
	if filter.BadgeID != nil {
		query = query.Where("badge_id = ?", *filter.BadgeID)
	}
	if filter.ProductID != nil {
		query = query.Where("product_id = ?", *filter.ProductID)
	}
	if filter.AssignedBy != nil {
		query = query.Where("assigned_by = ?", *filter.AssignedBy)
	}
	return query
}
