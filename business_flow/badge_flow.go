// Package businessflow contains the core business logic for badge workflows
package businessflow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/badgify/badgify-server/app/dto"
	"github.com/badgify/badgify-server/models"
	"github.com/badgify/badgify-server/repository"
	"github.com/badgify/badgify-server/utils"
	"gorm.io/gorm"
)

// BadgeFlow handles the badge lifecycle business logic
type BadgeFlow interface {
	CreateBadge(ctx context.Context, req *dto.CreateBadgeRequest, metadata *ClientMetadata) (*dto.CreateBadgeResponse, error)
	GetBadge(ctx context.Context, req *dto.GetBadgeRequest) (*dto.BadgeDTO, error)
	ListBadges(ctx context.Context, req *dto.ListBadgesRequest) (*dto.ListBadgesResponse, error)
	UpdateBadge(ctx context.Context, req *dto.UpdateBadgeRequest, metadata *ClientMetadata) (*dto.UpdateBadgeResponse, error)
	ToggleBadge(ctx context.Context, req *dto.ToggleBadgeRequest, metadata *ClientMetadata) (*dto.ToggleBadgeResponse, error)
	DeleteBadge(ctx context.Context, req *dto.DeleteBadgeRequest, metadata *ClientMetadata) (*dto.DeleteBadgeResponse, error)
}

// BadgeFlowImpl implements the badge business flow
type BadgeFlowImpl struct {
	tenantRepo     repository.TenantRepository
	badgeRepo      repository.BadgeRepository
	assignmentRepo repository.BadgeAssignmentRepository
	auditRepo      repository.AuditLogRepository
	db             *gorm.DB
}

// NewBadgeFlow creates a new badge flow instance
func NewBadgeFlow(
	tenantRepo repository.TenantRepository,
	badgeRepo repository.BadgeRepository,
	assignmentRepo repository.BadgeAssignmentRepository,
	auditRepo repository.AuditLogRepository,
	db *gorm.DB,
) BadgeFlow {
	return &BadgeFlowImpl{
		tenantRepo:     tenantRepo,
		badgeRepo:      badgeRepo,
		assignmentRepo: assignmentRepo,
		auditRepo:      auditRepo,
		db:             db,
	}
}

// CreateBadge handles the badge creation process. A badge starts with a manual
// empty rule unless the request carries one; assignments appear only after the
// first rebuild.
func (s *BadgeFlowImpl) CreateBadge(ctx context.Context, req *dto.CreateBadgeRequest, metadata *ClientMetadata) (*dto.CreateBadgeResponse, error) {
	if req.Name == "" {
		return nil, NewBusinessError("BADGE_VALIDATION_FAILED", "Badge validation failed", ErrBadgeNameRequired)
	}

	tenant, err := getTenant(ctx, s.tenantRepo, req.TenantID)
	if err != nil {
		return nil, NewBusinessError("TENANT_LOOKUP_FAILED", "Failed to lookup tenant", err)
	}

	rule := models.AssignmentRule{Type: models.RuleTypeManual, Criteria: []string{}}
	if req.Rule != nil {
		rule, err = ruleFromDTO(*req.Rule)
		if err != nil {
			return nil, NewBusinessError("RULE_VALIDATION_FAILED", "Rule validation failed", err)
		}
	}

	design := req.Design
	if len(design) == 0 {
		design = json.RawMessage(`{}`)
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	badge := &models.Badge{
		TenantID: tenant.ID,
		Name:     req.Name,
		Design:   design,
		Rule:     rule,
		IsActive: utils.ToPtr(isActive),
	}

	if err := s.badgeRepo.Save(ctx, badge); err != nil {
		errMsg := fmt.Sprintf("Badge creation failed: %s", err.Error())
		_ = createAuditLog(ctx, s.auditRepo, &tenant, models.AuditActionBadgeCreated, errMsg, false, &errMsg, metadata)

		return nil, NewBusinessError("BADGE_CREATION_FAILED", "Badge creation failed", err)
	}

	msg := fmt.Sprintf("Badge created successfully: %s", badge.UUID.String())
	_ = createAuditLog(ctx, s.auditRepo, &tenant, models.AuditActionBadgeCreated, msg, true, nil, metadata)

	return &dto.CreateBadgeResponse{
		Message:   "Badge created successfully",
		UUID:      badge.UUID.String(),
		CreatedAt: badge.CreatedAt.Format(time.RFC3339),
	}, nil
}

// GetBadge returns a single badge with its current assignment count
func (s *BadgeFlowImpl) GetBadge(ctx context.Context, req *dto.GetBadgeRequest) (*dto.BadgeDTO, error) {
	tenant, err := getTenant(ctx, s.tenantRepo, req.TenantID)
	if err != nil {
		return nil, NewBusinessError("TENANT_LOOKUP_FAILED", "Failed to lookup tenant", err)
	}

	badge, err := getBadge(ctx, s.badgeRepo, req.UUID, tenant.ID)
	if err != nil {
		return nil, NewBusinessError("BADGE_LOOKUP_FAILED", "Failed to lookup badge", err)
	}

	count, err := s.assignmentRepo.CountByBadge(ctx, tenant.ID, badge.ID)
	if err != nil {
		return nil, NewBusinessError("ASSIGNMENT_COUNT_FAILED", "Failed to count assignments", err)
	}

	out := ToBadgeDTO(badge, count)
	return &out, nil
}

// ListBadges pages through a tenant's badges
func (s *BadgeFlowImpl) ListBadges(ctx context.Context, req *dto.ListBadgesRequest) (*dto.ListBadgesResponse, error) {
	tenant, err := getTenant(ctx, s.tenantRepo, req.TenantID)
	if err != nil {
		return nil, NewBusinessError("TENANT_LOOKUP_FAILED", "Failed to lookup tenant", err)
	}

	page := req.Page
	if page < 1 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize < 1 {
		pageSize = 20
	}

	badges, err := s.badgeRepo.ListByTenant(ctx, tenant.ID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, NewBusinessError("BADGE_LIST_FAILED", "Failed to list badges", err)
	}

	total, err := s.badgeRepo.Count(ctx, models.BadgeFilter{TenantID: &tenant.ID})
	if err != nil {
		return nil, NewBusinessError("BADGE_COUNT_FAILED", "Failed to count badges", err)
	}

	items := make([]dto.BadgeDTO, 0, len(badges))
	for _, badge := range badges {
		count, err := s.assignmentRepo.CountByBadge(ctx, tenant.ID, badge.ID)
		if err != nil {
			return nil, NewBusinessError("ASSIGNMENT_COUNT_FAILED", "Failed to count assignments", err)
		}
		items = append(items, ToBadgeDTO(*badge, count))
	}

	return &dto.ListBadgesResponse{
		Message: "Badges listed successfully",
		Items:   items,
		Total:   total,
	}, nil
}

// UpdateBadge updates a badge's name and design. Rule changes go through the
// assignment flow so they always trigger a re-resolution.
func (s *BadgeFlowImpl) UpdateBadge(ctx context.Context, req *dto.UpdateBadgeRequest, metadata *ClientMetadata) (*dto.UpdateBadgeResponse, error) {
	tenant, err := getTenant(ctx, s.tenantRepo, req.TenantID)
	if err != nil {
		return nil, NewBusinessError("TENANT_LOOKUP_FAILED", "Failed to lookup tenant", err)
	}

	badge, err := getBadge(ctx, s.badgeRepo, req.UUID, tenant.ID)
	if err != nil {
		return nil, NewBusinessError("BADGE_LOOKUP_FAILED", "Failed to lookup badge", err)
	}

	if req.Name != nil {
		badge.Name = *req.Name
	}
	if len(req.Design) > 0 {
		badge.Design = req.Design
	}

	if err := s.badgeRepo.Update(ctx, &badge); err != nil {
		return nil, NewBusinessError("BADGE_UPDATE_FAILED", "Badge update failed", err)
	}

	msg := fmt.Sprintf("Badge updated successfully: %s", badge.UUID.String())
	_ = createAuditLog(ctx, s.auditRepo, &tenant, models.AuditActionBadgeUpdated, msg, true, nil, metadata)

	count, err := s.assignmentRepo.CountByBadge(ctx, tenant.ID, badge.ID)
	if err != nil {
		return nil, NewBusinessError("ASSIGNMENT_COUNT_FAILED", "Failed to count assignments", err)
	}

	return &dto.UpdateBadgeResponse{
		Message: "Badge updated successfully",
		Badge:   ToBadgeDTO(badge, count),
	}, nil
}

// ToggleBadge flips a badge's active flag. Inactive badges keep their assignments
// but the storefront stops rendering them.
func (s *BadgeFlowImpl) ToggleBadge(ctx context.Context, req *dto.ToggleBadgeRequest, metadata *ClientMetadata) (*dto.ToggleBadgeResponse, error) {
	tenant, err := getTenant(ctx, s.tenantRepo, req.TenantID)
	if err != nil {
		return nil, NewBusinessError("TENANT_LOOKUP_FAILED", "Failed to lookup tenant", err)
	}

	badge, err := getBadge(ctx, s.badgeRepo, req.UUID, tenant.ID)
	if err != nil {
		return nil, NewBusinessError("BADGE_LOOKUP_FAILED", "Failed to lookup badge", err)
	}

	next := !utils.IsTrue(badge.IsActive)
	badge.IsActive = utils.ToPtr(next)

	if err := s.badgeRepo.Update(ctx, &badge); err != nil {
		return nil, NewBusinessError("BADGE_TOGGLE_FAILED", "Badge toggle failed", err)
	}

	msg := fmt.Sprintf("Badge toggled: %s active=%t", badge.UUID.String(), next)
	_ = createAuditLog(ctx, s.auditRepo, &tenant, models.AuditActionBadgeToggled, msg, true, nil, metadata)

	return &dto.ToggleBadgeResponse{
		Message:  "Badge toggled successfully",
		UUID:     badge.UUID.String(),
		IsActive: next,
	}, nil
}

// DeleteBadge soft-deletes a badge and hard-deletes its assignment rows in one
// transaction, so a deleted badge never leaves orphan assignments behind.
func (s *BadgeFlowImpl) DeleteBadge(ctx context.Context, req *dto.DeleteBadgeRequest, metadata *ClientMetadata) (*dto.DeleteBadgeResponse, error) {
	tenant, err := getTenant(ctx, s.tenantRepo, req.TenantID)
	if err != nil {
		return nil, NewBusinessError("TENANT_LOOKUP_FAILED", "Failed to lookup tenant", err)
	}

	badge, err := getBadge(ctx, s.badgeRepo, req.UUID, tenant.ID)
	if err != nil {
		return nil, NewBusinessError("BADGE_LOOKUP_FAILED", "Failed to lookup badge", err)
	}

	err = repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		if err := s.assignmentRepo.DeleteByBadge(txCtx, tenant.ID, badge.ID); err != nil {
			return err
		}
		return s.badgeRepo.Delete(txCtx, badge.ID)
	})
	if err != nil {
		errMsg := fmt.Sprintf("Badge deletion failed: %s", err.Error())
		_ = createAuditLog(ctx, s.auditRepo, &tenant, models.AuditActionBadgeDeleted, errMsg, false, &errMsg, metadata)

		return nil, NewBusinessError("BADGE_DELETION_FAILED", "Badge deletion failed", err)
	}

	msg := fmt.Sprintf("Badge deleted successfully: %s", badge.UUID.String())
	_ = createAuditLog(ctx, s.auditRepo, &tenant, models.AuditActionBadgeDeleted, msg, true, nil, metadata)

	return &dto.DeleteBadgeResponse{
		Message: "Badge deleted successfully",
	}, nil
}
