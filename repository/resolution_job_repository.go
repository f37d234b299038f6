package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/badgify/badgify-server/models"
	"github.com/badgify/badgify-server/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ResolutionJobRepositoryImpl implements the ResolutionJobRepository interface
type ResolutionJobRepositoryImpl struct {
	*BaseRepository[models.ResolutionJob, models.ResolutionJobFilter]
}

// NewResolutionJobRepository creates a new resolution job repository
func NewResolutionJobRepository(db *gorm.DB) ResolutionJobRepository {
	return &ResolutionJobRepositoryImpl{
		BaseRepository: NewBaseRepository[models.ResolutionJob, models.ResolutionJobFilter](db),
	}
}

// EnqueuePending queues a re-resolution for a badge unless one is already waiting.
// The count is only a fast path; the partial unique index on pending jobs is what
// makes concurrent enqueues collapse — the ON CONFLICT clause absorbs the losing
// insert so webhook bursts never stack duplicate work.
func (r *ResolutionJobRepositoryImpl) EnqueuePending(ctx context.Context, tenantID, badgeID uint, reason string) error {
	db := r.getDB(ctx)

	var existing int64
	err := db.Model(&models.ResolutionJob{}).
		Where("badge_id = ? AND status = ?", badgeID, models.ResolutionJobStatusPending).
		Count(&existing).Error
	if err != nil {
		return fmt.Errorf("failed to check pending jobs for badge %d: %w", badgeID, err)
	}
	if existing > 0 {
		return nil
	}

	job := models.ResolutionJob{
		TenantID: tenantID,
		BadgeID:  badgeID,
		Reason:   reason,
		Status:   models.ResolutionJobStatusPending,
	}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&job).Error; err != nil {
		return fmt.Errorf("failed to enqueue resolution job for badge %d: %w", badgeID, err)
	}

	return nil
}

// ListPending retrieves the oldest pending jobs up to limit
func (r *ResolutionJobRepositoryImpl) ListPending(ctx context.Context, limit int) ([]*models.ResolutionJob, error) {
	db := r.getDB(ctx)

	var jobs []*models.ResolutionJob
	query := db.Where("status = ?", models.ResolutionJobStatusPending).Order("id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("failed to list pending resolution jobs: %w", err)
	}

	return jobs, nil
}

// MarkCompleted finalizes a job after a successful rebuild
func (r *ResolutionJobRepositoryImpl) MarkCompleted(ctx context.Context, jobID uint, at time.Time) error {
	return r.finalize(ctx, jobID, models.ResolutionJobStatusCompleted, at)
}

// MarkFailed finalizes a job whose rebuild errored out
func (r *ResolutionJobRepositoryImpl) MarkFailed(ctx context.Context, jobID uint, at time.Time) error {
	return r.finalize(ctx, jobID, models.ResolutionJobStatusFailed, at)
}

func (r *ResolutionJobRepositoryImpl) finalize(ctx context.Context, jobID uint, status models.ResolutionJobStatus, at time.Time) error {
	db := r.getDB(ctx)

	err := db.Model(&models.ResolutionJob{}).
		Where("id = ?", jobID).
		Updates(map[string]any{
			"status":       status,
			"attempts":     gorm.Expr("attempts + 1"),
			"processed_at": at,
			"updated_at":   utils.UTCNow(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to finalize resolution job %d: %w", jobID, err)
	}

	return nil
}

// DeleteByTenant removes all of a tenant's resolution jobs
func (r *ResolutionJobRepositoryImpl) DeleteByTenant(ctx context.Context, tenantID uint) error {
	db := r.getDB(ctx)

	if err := db.Where("tenant_id = ?", tenantID).Delete(&models.ResolutionJob{}).Error; err != nil {
		return fmt.Errorf("failed to delete resolution jobs for tenant %d: %w", tenantID, err)
	}

	return nil
}

// ByFilter retrieves resolution jobs based on filter criteria
func (r *ResolutionJobRepositoryImpl) ByFilter(ctx context.Context, filter models.ResolutionJobFilter, orderBy string, limit, offset int) ([]*models.ResolutionJob, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.ResolutionJob{}), filter)

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

	var rows []*models.ResolutionJob
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to find resolution jobs by filter: %w", err)
	}
	return rows, nil
}

// Count returns the number of resolution jobs matching the filter
func (r *ResolutionJobRepositoryImpl) Count(ctx context.Context, filter models.ResolutionJobFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.ResolutionJob{}), filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any resolution job matching the filter exists
func (r *ResolutionJobRepositoryImpl) Exists(ctx context.Context, filter models.ResolutionJobFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *ResolutionJobRepositoryImpl) applyFilter(query *gorm.DB, filter models.ResolutionJobFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.TenantID != nil {
		query = query.Where("tenant_id = ?", *filter.TenantID)
	}
	if filter.BadgeID != nil {
		query = query.Where("badge_id = ?", *filter.BadgeID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	return query
}
