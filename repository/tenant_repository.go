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

// TenantRepositoryImpl implements the TenantRepository interface
type TenantRepositoryImpl struct {
	*BaseRepository[models.Tenant, models.TenantFilter]
}

// NewTenantRepository creates a new tenant repository
func NewTenantRepository(db *gorm.DB) TenantRepository {
	return &TenantRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Tenant, models.TenantFilter](db),
	}
}

// ByUUID retrieves a tenant by UUID
func (r *TenantRepositoryImpl) ByUUID(ctx context.Context, uuidStr string) (*models.Tenant, error) {
	parsed, err := utils.ParseUUID(uuidStr)
	if err != nil {
		return nil, err
	}

	filter := models.TenantFilter{UUID: &parsed}
	tenants, err := r.ByFilter(ctx, filter, "", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(tenants) == 0 {
		return nil, nil
	}
	return tenants[0], nil
}

// ByShopDomain retrieves a tenant by its shop domain
func (r *TenantRepositoryImpl) ByShopDomain(ctx context.Context, shopDomain string) (*models.Tenant, error) {
	db := r.getDB(ctx)

	var tenant models.Tenant
	err := db.Where("shop_domain = ?", shopDomain).Last(&tenant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find tenant by shop domain: %w", err)
	}

	return &tenant, nil
}

// Update updates a tenant
func (r *TenantRepositoryImpl) Update(ctx context.Context, tenant *models.Tenant) error {
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

	tenant.UpdatedAt = utils.UTCNow()
	err = db.Save(tenant).Error
	if err != nil {
		return fmt.Errorf("failed to update tenant: %w", err)
	}

	return nil
}

// MarkUninstalled transitions a tenant to the uninstalled status
func (r *TenantRepositoryImpl) MarkUninstalled(ctx context.Context, tenantID uint, at time.Time) error {
	db := r.getDB(ctx)

	err := db.Model(&models.Tenant{}).
		Where("id = ?", tenantID).
		Updates(map[string]any{
			"status":         models.TenantStatusUninstalled,
			"uninstalled_at": at,
			"updated_at":     utils.UTCNow(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to mark tenant %d uninstalled: %w", tenantID, err)
	}

	return nil
}

// ByFilter retrieves tenants based on filter criteria
func (r *TenantRepositoryImpl) ByFilter(ctx context.Context, filter models.TenantFilter, orderBy string, limit, offset int) ([]*models.Tenant, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Tenant{}), filter)

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

	var rows []*models.Tenant
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to find tenants by filter: %w", err)
	}
	return rows, nil
}

// Count returns the number of tenants matching the filter
func (r *TenantRepositoryImpl) Count(ctx context.Context, filter models.TenantFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Tenant{}), filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any tenant matching the filter exists
func (r *TenantRepositoryImpl) Exists(ctx context.Context, filter models.TenantFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *TenantRepositoryImpl) applyFilter(query *gorm.DB, filter models.TenantFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.ShopDomain != nil {
		query = query.Where("shop_domain = ?", *filter.ShopDomain)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	return query
}
