package repository

import (
	"context"
	"fmt"

	"github.com/badgify/badgify-server/models"
	"gorm.io/gorm"
)

// ResolutionRunRepositoryImpl implements the ResolutionRunRepository interface
type ResolutionRunRepositoryImpl struct {
	*BaseRepository[models.ResolutionRun, models.ResolutionRunFilter]
}

// NewResolutionRunRepository creates a new resolution run repository
func NewResolutionRunRepository(db *gorm.DB) ResolutionRunRepository {
	return &ResolutionRunRepositoryImpl{
		BaseRepository: NewBaseRepository[models.ResolutionRun, models.ResolutionRunFilter](db),
	}
}

// ListByBadge retrieves the resolution history of a badge, newest first
func (r *ResolutionRunRepositoryImpl) ListByBadge(ctx context.Context, tenantID, badgeID uint, limit, offset int) ([]*models.ResolutionRun, error) {
	db := r.getDB(ctx)

	var rows []*models.ResolutionRun
	query := db.Where("tenant_id = ? AND badge_id = ?", tenantID, badgeID).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list resolution runs for badge %d: %w", badgeID, err)
	}

	return rows, nil
}

// DeleteByTenant removes a tenant's resolution history (data erasure)
func (r *ResolutionRunRepositoryImpl) DeleteByTenant(ctx context.Context, tenantID uint) error {
	db := r.getDB(ctx)

	if err := db.Where("tenant_id = ?", tenantID).Delete(&models.ResolutionRun{}).Error; err != nil {
		return fmt.Errorf("failed to delete resolution runs for tenant %d: %w", tenantID, err)
	}

	return nil
}

// ByFilter retrieves resolution runs based on filter criteria
func (r *ResolutionRunRepositoryImpl) ByFilter(ctx context.Context, filter models.ResolutionRunFilter, orderBy string, limit, offset int) ([]*models.ResolutionRun, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.ResolutionRun{}), filter)

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

	var rows []*models.ResolutionRun
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to find resolution runs by filter: %w", err)
	}
	return rows, nil
}

// Count returns the number of resolution runs matching the filter
func (r *ResolutionRunRepositoryImpl) Count(ctx context.Context, filter models.ResolutionRunFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.ResolutionRun{}), filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any resolution run matching the filter exists
func (r *ResolutionRunRepositoryImpl) Exists(ctx context.Context, filter models.ResolutionRunFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *ResolutionRunRepositoryImpl) applyFilter(query *gorm.DB, filter models.ResolutionRunFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.TenantID != nil {
		query = query.Where("tenant_id = ?", *filter.TenantID)
	}
	if filter.BadgeID != nil {
		query = query.Where("badge_id = ?", *filter.BadgeID)
	}
	if filter.RuleType != nil {
		query = query.Where("rule_type = ?", filter.RuleType.String())
	}
	if filter.Before != nil {
		query = query.Where("created_at < ?", *filter.Before)
	}
	return query
}
