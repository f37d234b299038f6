// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/badgify/badgify-server/models"
	"github.com/google/uuid"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// TenantRepository defines operations for tenants
type TenantRepository interface {
	Repository[models.Tenant, models.TenantFilter]
	ByUUID(ctx context.Context, uuid string) (*models.Tenant, error)
	ByShopDomain(ctx context.Context, shopDomain string) (*models.Tenant, error)
	Update(ctx context.Context, tenant *models.Tenant) error
	MarkUninstalled(ctx context.Context, tenantID uint, at time.Time) error
}

// BadgeRepository defines operations for badges
type BadgeRepository interface {
	Repository[models.Badge, models.BadgeFilter]
	ByUUIDAndTenant(ctx context.Context, uuid uuid.UUID, tenantID uint) (*models.Badge, error)
	ListByTenant(ctx context.Context, tenantID uint, limit, offset int) ([]*models.Badge, error)
	ListAutomaticByTenant(ctx context.Context, tenantID uint) ([]*models.Badge, error)
	Update(ctx context.Context, badge *models.Badge) error
	UpdateRule(ctx context.Context, badgeID uint, rule models.AssignmentRule) error
	Delete(ctx context.Context, badgeID uint) error
	DeleteByTenant(ctx context.Context, tenantID uint) error
}

// BadgeAssignmentRepository defines operations for the materialized assignment cache
type BadgeAssignmentRepository interface {
	Repository[models.BadgeAssignment, models.BadgeAssignmentFilter]
	ListByBadge(ctx context.Context, tenantID, badgeID uint) ([]*models.BadgeAssignment, error)
	CountByBadge(ctx context.Context, tenantID, badgeID uint) (int64, error)
	DeleteByBadge(ctx context.Context, tenantID, badgeID uint) error
	DeleteByTenant(ctx context.Context, tenantID uint) error
}

// SubscriptionRepository defines operations for tenant subscriptions
type SubscriptionRepository interface {
	Repository[models.Subscription, models.SubscriptionFilter]
	ByTenantID(ctx context.Context, tenantID uint) (*models.Subscription, error)
	Update(ctx context.Context, subscription *models.Subscription) error
	UpdateStatusIf(ctx context.Context, subscriptionID uint, from, to models.SubscriptionStatus) (bool, error)
	ExpireTrials(ctx context.Context, now time.Time) (int64, error)
	DeleteByTenant(ctx context.Context, tenantID uint) error
}

// ResolutionJobRepository defines operations for queued badge re-resolutions
type ResolutionJobRepository interface {
	Repository[models.ResolutionJob, models.ResolutionJobFilter]
	EnqueuePending(ctx context.Context, tenantID, badgeID uint, reason string) error
	ListPending(ctx context.Context, limit int) ([]*models.ResolutionJob, error)
	MarkCompleted(ctx context.Context, jobID uint, at time.Time) error
	MarkFailed(ctx context.Context, jobID uint, at time.Time) error
	DeleteByTenant(ctx context.Context, tenantID uint) error
}

// ResolutionRunRepository defines operations for resolution history snapshots
type ResolutionRunRepository interface {
	Repository[models.ResolutionRun, models.ResolutionRunFilter]
	ListByBadge(ctx context.Context, tenantID, badgeID uint, limit, offset int) ([]*models.ResolutionRun, error)
	DeleteByTenant(ctx context.Context, tenantID uint) error
}

// AuditLogRepository defines operations for audit logs
type AuditLogRepository interface {
	Repository[models.AuditLog, models.AuditLogFilter]
	ListByTenant(ctx context.Context, tenantID uint, limit, offset int) ([]*models.AuditLog, error)
	ListByAction(ctx context.Context, action string, limit, offset int) ([]*models.AuditLog, error)
	DeleteByTenant(ctx context.Context, tenantID uint) error
}
