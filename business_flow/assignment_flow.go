// Package businessflow contains the core business logic for badge assignment resolution
package businessflow

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/badgify/badgify-server/app/dto"
	"github.com/badgify/badgify-server/app/services"
	"github.com/badgify/badgify-server/config"
	"github.com/badgify/badgify-server/models"
	"github.com/badgify/badgify-server/repository"
	"github.com/badgify/badgify-server/utils"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

var (
	// Rebuild outcomes partitioned by result
	badgeRebuildsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "badge_rebuilds_total",
			Help: "Total number of badge assignment rebuilds",
		},
		[]string{"result"},
	)
)

// ResolveRule evaluates an assignment rule against a catalog snapshot and returns
// the matched product id set. The function is pure: no I/O, no clock, and the same
// inputs always produce the same set.
//
// Manual rules return their criteria verbatim, whether or not the ids exist in the
// snapshot. Every other variant matches a product when ANY criterion matches (OR
// semantics); empty criteria match nothing. Unknown rule types match nothing.
func ResolveRule(rule models.AssignmentRule, snapshot *models.CatalogSnapshot) map[string]struct{} {
	matched := make(map[string]struct{})

	if rule.Type.IsManual() {
		for _, id := range rule.Criteria {
			if id != "" {
				matched[id] = struct{}{}
			}
		}
		return matched
	}

	if snapshot == nil || rule.Empty() {
		return matched
	}

	want := make(map[string]struct{}, len(rule.Criteria))
	for _, c := range rule.Criteria {
		if c != "" {
			want[c] = struct{}{}
		}
	}
	if len(want) == 0 {
		return matched
	}

	switch rule.Type {
	case models.RuleTypeCollection:
		for _, p := range snapshot.Products {
			for _, cid := range p.CollectionIDs {
				if _, ok := want[cid]; ok {
					matched[p.ID] = struct{}{}
					break
				}
			}
		}
	case models.RuleTypeTag:
		for _, p := range snapshot.Products {
			for _, tag := range p.Tags {
				if _, ok := want[tag]; ok {
					matched[p.ID] = struct{}{}
					break
				}
			}
		}
	case models.RuleTypeProductType:
		for _, p := range snapshot.Products {
			if _, ok := want[p.ProductType]; ok {
				matched[p.ID] = struct{}{}
			}
		}
	case models.RuleTypeVendor:
		for _, p := range snapshot.Products {
			if _, ok := want[p.Vendor]; ok {
				matched[p.ID] = struct{}{}
			}
		}
	}

	return matched
}

// AssignmentFlow handles rule resolution and the materialized assignment cache
type AssignmentFlow interface {
	PreviewRule(ctx context.Context, req *dto.PreviewRuleRequest, metadata *ClientMetadata) (*dto.PreviewRuleResponse, error)
	UpdateRule(ctx context.Context, req *dto.UpdateRuleRequest, metadata *ClientMetadata) (*dto.UpdateRuleResponse, error)
	AssignManual(ctx context.Context, req *dto.AssignManualRequest, metadata *ClientMetadata) (*dto.AssignManualResponse, error)
	RebuildAssignments(ctx context.Context, req *dto.RebuildAssignmentsRequest, metadata *ClientMetadata) (*dto.RebuildAssignmentsResponse, error)
	RebuildByID(ctx context.Context, tenantID, badgeID uint) (int, error)
	ListAssignments(ctx context.Context, req *dto.ListAssignmentsRequest) (*dto.ListAssignmentsResponse, error)
	ListResolutionRuns(ctx context.Context, req *dto.ListResolutionRunsRequest) (*dto.ListResolutionRunsResponse, error)
	ExportAssignments(ctx context.Context, req *dto.ExportAssignmentsRequest) ([]byte, string, error)
}

// AssignmentFlowImpl implements the assignment business flow
type AssignmentFlowImpl struct {
	tenantRepo     repository.TenantRepository
	badgeRepo      repository.BadgeRepository
	assignmentRepo repository.BadgeAssignmentRepository
	runRepo        repository.ResolutionRunRepository
	jobRepo        repository.ResolutionJobRepository
	auditRepo      repository.AuditLogRepository
	catalog        services.CatalogClient
	catalogConfig  config.CatalogConfig
	locks          *badgeLocks
	db             *gorm.DB
}

// NewAssignmentFlow creates a new assignment flow instance
func NewAssignmentFlow(
	tenantRepo repository.TenantRepository,
	badgeRepo repository.BadgeRepository,
	assignmentRepo repository.BadgeAssignmentRepository,
	runRepo repository.ResolutionRunRepository,
	jobRepo repository.ResolutionJobRepository,
	auditRepo repository.AuditLogRepository,
	catalog services.CatalogClient,
	catalogConfig config.CatalogConfig,
	db *gorm.DB,
) AssignmentFlow {
	return &AssignmentFlowImpl{
		tenantRepo:     tenantRepo,
		badgeRepo:      badgeRepo,
		assignmentRepo: assignmentRepo,
		runRepo:        runRepo,
		jobRepo:        jobRepo,
		auditRepo:      auditRepo,
		catalog:        catalog,
		catalogConfig:  catalogConfig,
		locks:          newBadgeLocks(),
		db:             db,
	}
}

// PreviewRule evaluates a candidate rule against the live catalog without touching
// the badge or the assignment cache.
func (s *AssignmentFlowImpl) PreviewRule(ctx context.Context, req *dto.PreviewRuleRequest, metadata *ClientMetadata) (*dto.PreviewRuleResponse, error) {
	rule, err := ruleFromDTO(req.Rule)
	if err != nil {
		return nil, NewBusinessError("RULE_VALIDATION_FAILED", "Rule validation failed", err)
	}

	tenant, err := getTenant(ctx, s.tenantRepo, req.TenantID)
	if err != nil {
		return nil, NewBusinessError("TENANT_LOOKUP_FAILED", "Failed to lookup tenant", err)
	}

	var snapshot *models.CatalogSnapshot
	if !rule.Type.IsManual() {
		snapshot, err = s.snapshot(ctx, &tenant)
		if err != nil {
			return nil, NewBusinessError("CATALOG_UNAVAILABLE", "Catalog unavailable", err)
		}
	}

	ids := sortedIDs(ResolveRule(rule, snapshot))

	return &dto.PreviewRuleResponse{
		Message:      "Rule previewed successfully",
		MatchedCount: len(ids),
		ProductIDs:   ids,
	}, nil
}

// UpdateRule replaces a badge's assignment rule. By default the assignment cache is
// rebuilt inline so the response reflects the new rule; with Async the rebuild is
// queued for the background worker instead.
func (s *AssignmentFlowImpl) UpdateRule(ctx context.Context, req *dto.UpdateRuleRequest, metadata *ClientMetadata) (*dto.UpdateRuleResponse, error) {
	rule, err := ruleFromDTO(req.Rule)
	if err != nil {
		return nil, NewBusinessError("RULE_VALIDATION_FAILED", "Rule validation failed", err)
	}

	tenant, err := getTenant(ctx, s.tenantRepo, req.TenantID)
	if err != nil {
		return nil, NewBusinessError("TENANT_LOOKUP_FAILED", "Failed to lookup tenant", err)
	}

	badge, err := getBadge(ctx, s.badgeRepo, req.UUID, tenant.ID)
	if err != nil {
		return nil, NewBusinessError("BADGE_LOOKUP_FAILED", "Failed to lookup badge", err)
	}

	if err := s.badgeRepo.UpdateRule(ctx, badge.ID, rule); err != nil {
		return nil, NewBusinessError("RULE_UPDATE_FAILED", "Failed to update rule", err)
	}
	badge.Rule = rule

	msg := fmt.Sprintf("Rule updated for badge %s: type=%s criteria=%d", badge.UUID.String(), rule.Type, len(rule.Criteria))
	_ = createAuditLog(ctx, s.auditRepo, &tenant, models.AuditActionRuleUpdated, msg, true, nil, metadata)

	resp := &dto.UpdateRuleResponse{
		Message: "Rule updated successfully",
		UUID:    badge.UUID.String(),
		Rule:    req.Rule,
	}

	if utils.IsTrue(req.Async) {
		if err := s.jobRepo.EnqueuePending(ctx, tenant.ID, badge.ID, "rule_updated"); err != nil {
			return nil, NewBusinessError("REBUILD_ENQUEUE_FAILED", "Failed to enqueue rebuild", err)
		}
		resp.RebuildQueued = true
		return resp, nil
	}

	matched, _, err := s.rebuild(ctx, &tenant, &badge, metadata)
	if err != nil {
		return nil, err
	}
	resp.MatchedCount = matched

	return resp, nil
}

// AssignManual replaces a badge's product list by rewriting its rule as a manual
// rule carrying the ids, then rebuilding. Only manual-rule badges accept this
// operation; automatic badges are driven by the catalog.
func (s *AssignmentFlowImpl) AssignManual(ctx context.Context, req *dto.AssignManualRequest, metadata *ClientMetadata) (*dto.AssignManualResponse, error) {
	tenant, err := getTenant(ctx, s.tenantRepo, req.TenantID)
	if err != nil {
		return nil, NewBusinessError("TENANT_LOOKUP_FAILED", "Failed to lookup tenant", err)
	}

	badge, err := getBadge(ctx, s.badgeRepo, req.UUID, tenant.ID)
	if err != nil {
		return nil, NewBusinessError("BADGE_LOOKUP_FAILED", "Failed to lookup badge", err)
	}

	if !badge.Rule.Type.IsManual() {
		return nil, NewBusinessError("NOT_MANUAL_RULE", "Badge is driven by an automatic rule", ErrNotManualRule)
	}

	rule := models.AssignmentRule{
		Type:     models.RuleTypeManual,
		Criteria: req.ProductIDs,
	}
	if err := s.badgeRepo.UpdateRule(ctx, badge.ID, rule); err != nil {
		return nil, NewBusinessError("RULE_UPDATE_FAILED", "Failed to update rule", err)
	}
	badge.Rule = rule

	matched, _, err := s.rebuild(ctx, &tenant, &badge, metadata)
	if err != nil {
		return nil, err
	}

	return &dto.AssignManualResponse{
		Message:       "Products assigned successfully",
		UUID:          badge.UUID.String(),
		AssignedCount: matched,
	}, nil
}

// RebuildAssignments re-resolves a badge's rule and replaces its assignment cache
func (s *AssignmentFlowImpl) RebuildAssignments(ctx context.Context, req *dto.RebuildAssignmentsRequest, metadata *ClientMetadata) (*dto.RebuildAssignmentsResponse, error) {
	tenant, err := getTenant(ctx, s.tenantRepo, req.TenantID)
	if err != nil {
		return nil, NewBusinessError("TENANT_LOOKUP_FAILED", "Failed to lookup tenant", err)
	}

	badge, err := getBadge(ctx, s.badgeRepo, req.UUID, tenant.ID)
	if err != nil {
		return nil, NewBusinessError("BADGE_LOOKUP_FAILED", "Failed to lookup badge", err)
	}

	matched, correlationID, err := s.rebuild(ctx, &tenant, &badge, metadata)
	if err != nil {
		return nil, err
	}

	return &dto.RebuildAssignmentsResponse{
		Message:       "Assignments rebuilt successfully",
		UUID:          badge.UUID.String(),
		MatchedCount:  matched,
		CorrelationID: correlationID.String(),
	}, nil
}

// RebuildByID re-resolves a badge addressed by raw ids. Used by the background
// resolution worker, which has no request metadata.
func (s *AssignmentFlowImpl) RebuildByID(ctx context.Context, tenantID, badgeID uint) (int, error) {
	tenant, err := getTenant(ctx, s.tenantRepo, tenantID)
	if err != nil {
		return 0, err
	}

	badge, err := s.badgeRepo.ByID(ctx, badgeID)
	if err != nil {
		return 0, err
	}
	if badge == nil || badge.TenantID != tenant.ID {
		return 0, ErrBadgeNotFound
	}

	matched, _, err := s.rebuild(ctx, &tenant, badge, nil)
	return matched, err
}

// rebuild is the single resolution path. It holds the badge's resolution lock for
// the duration, reads one catalog snapshot, and replaces the badge's assignment rows
// in one transaction. Either the full new set commits or the old set survives.
func (s *AssignmentFlowImpl) rebuild(ctx context.Context, tenant *models.Tenant, badge *models.Badge, metadata *ClientMetadata) (int, uuid.UUID, error) {
	if !s.locks.TryLock(badge.ID) {
		return 0, uuid.Nil, NewBusinessError("REBUILD_IN_PROGRESS", "Rebuild already in progress", ErrRebuildInProgress)
	}
	defer s.locks.Unlock(badge.ID)

	var snapshot *models.CatalogSnapshot
	if !badge.Rule.Type.IsManual() {
		var err error
		snapshot, err = s.snapshot(ctx, tenant)
		if err != nil {
			badgeRebuildsTotal.WithLabelValues("catalog_unavailable").Inc()

			errMsg := fmt.Sprintf("Rebuild failed for badge %s: %s", badge.UUID.String(), err.Error())
			_ = createAuditLog(ctx, s.auditRepo, tenant, models.AuditActionAssignmentsRebuildFailed, errMsg, false, &errMsg, metadata)

			return 0, uuid.Nil, NewBusinessError("CATALOG_UNAVAILABLE", "Catalog unavailable", err)
		}
	}

	ids := sortedIDs(ResolveRule(badge.Rule, snapshot))

	assignedBy := models.AssignedByRule
	if badge.Rule.Type.IsManual() {
		assignedBy = models.AssignedByManual
	}

	correlationID := uuid.New()

	err := repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		if err := s.assignmentRepo.DeleteByBadge(txCtx, tenant.ID, badge.ID); err != nil {
			return err
		}

		if len(ids) > 0 {
			assignments := make([]*models.BadgeAssignment, 0, len(ids))
			for _, id := range ids {
				assignments = append(assignments, &models.BadgeAssignment{
					TenantID:   tenant.ID,
					BadgeID:    badge.ID,
					ProductID:  id,
					AssignedBy: assignedBy,
				})
			}
			if err := s.assignmentRepo.SaveBatch(txCtx, assignments); err != nil {
				return err
			}
		}

		run := &models.ResolutionRun{
			CorrelationID: correlationID,
			TenantID:      tenant.ID,
			BadgeID:       badge.ID,
			RuleType:      badge.Rule.Type,
			ProductIDs:    ids,
			MatchedCount:  len(ids),
		}
		return s.runRepo.Save(txCtx, run)
	})

	if err != nil {
		badgeRebuildsTotal.WithLabelValues("failed").Inc()

		errMsg := fmt.Sprintf("Rebuild failed for badge %s: %s", badge.UUID.String(), err.Error())
		_ = createAuditLog(ctx, s.auditRepo, tenant, models.AuditActionAssignmentsRebuildFailed, errMsg, false, &errMsg, metadata)

		return 0, uuid.Nil, NewBusinessError("REBUILD_FAILED", "Assignment rebuild failed", err)
	}

	badgeRebuildsTotal.WithLabelValues("success").Inc()

	msg := fmt.Sprintf("Assignments rebuilt for badge %s: matched=%d correlation=%s", badge.UUID.String(), len(ids), correlationID.String())
	_ = createAuditLog(ctx, s.auditRepo, tenant, models.AuditActionAssignmentsRebuilt, msg, true, nil, metadata)

	return len(ids), correlationID, nil
}

// ListAssignments pages through a badge's current assignment rows
func (s *AssignmentFlowImpl) ListAssignments(ctx context.Context, req *dto.ListAssignmentsRequest) (*dto.ListAssignmentsResponse, error) {
	tenant, err := getTenant(ctx, s.tenantRepo, req.TenantID)
	if err != nil {
		return nil, NewBusinessError("TENANT_LOOKUP_FAILED", "Failed to lookup tenant", err)
	}

	badge, err := getBadge(ctx, s.badgeRepo, req.UUID, tenant.ID)
	if err != nil {
		return nil, NewBusinessError("BADGE_LOOKUP_FAILED", "Failed to lookup badge", err)
	}

	page := req.Page
	if page < 1 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize < 1 {
		pageSize = 50
	}

	filter := models.BadgeAssignmentFilter{
		TenantID: &tenant.ID,
		BadgeID:  &badge.ID,
	}
	rows, err := s.assignmentRepo.ByFilter(ctx, filter, "product_id ASC", pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, NewBusinessError("ASSIGNMENT_LIST_FAILED", "Failed to list assignments", err)
	}
	total, err := s.assignmentRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("ASSIGNMENT_COUNT_FAILED", "Failed to count assignments", err)
	}

	items := make([]dto.AssignmentDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, dto.AssignmentDTO{
			ProductID:  row.ProductID,
			AssignedBy: row.AssignedBy,
			CreatedAt:  row.CreatedAt,
		})
	}

	return &dto.ListAssignmentsResponse{
		Message: "Assignments listed successfully",
		Items:   items,
		Total:   total,
	}, nil
}

// ListResolutionRuns returns a badge's most recent resolution history
func (s *AssignmentFlowImpl) ListResolutionRuns(ctx context.Context, req *dto.ListResolutionRunsRequest) (*dto.ListResolutionRunsResponse, error) {
	tenant, err := getTenant(ctx, s.tenantRepo, req.TenantID)
	if err != nil {
		return nil, NewBusinessError("TENANT_LOOKUP_FAILED", "Failed to lookup tenant", err)
	}

	badge, err := getBadge(ctx, s.badgeRepo, req.UUID, tenant.ID)
	if err != nil {
		return nil, NewBusinessError("BADGE_LOOKUP_FAILED", "Failed to lookup badge", err)
	}

	limit := req.Limit
	if limit < 1 {
		limit = 20
	}

	runs, err := s.runRepo.ListByBadge(ctx, tenant.ID, badge.ID, limit, 0)
	if err != nil {
		return nil, NewBusinessError("RESOLUTION_RUN_LIST_FAILED", "Failed to list resolution runs", err)
	}

	items := make([]dto.ResolutionRunDTO, 0, len(runs))
	for _, run := range runs {
		items = append(items, dto.ResolutionRunDTO{
			CorrelationID: run.CorrelationID.String(),
			RuleType:      string(run.RuleType),
			MatchedCount:  run.MatchedCount,
			CreatedAt:     run.CreatedAt,
		})
	}

	return &dto.ListResolutionRunsResponse{
		Message: "Resolution runs listed successfully",
		Items:   items,
	}, nil
}

// ExportAssignments renders a badge's assignments as an xlsx workbook and returns
// the bytes with a download filename.
func (s *AssignmentFlowImpl) ExportAssignments(ctx context.Context, req *dto.ExportAssignmentsRequest) ([]byte, string, error) {
	tenant, err := getTenant(ctx, s.tenantRepo, req.TenantID)
	if err != nil {
		return nil, "", NewBusinessError("TENANT_LOOKUP_FAILED", "Failed to lookup tenant", err)
	}

	badge, err := getBadge(ctx, s.badgeRepo, req.UUID, tenant.ID)
	if err != nil {
		return nil, "", NewBusinessError("BADGE_LOOKUP_FAILED", "Failed to lookup badge", err)
	}

	rows, err := s.assignmentRepo.ListByBadge(ctx, tenant.ID, badge.ID)
	if err != nil {
		return nil, "", NewBusinessError("ASSIGNMENT_LIST_FAILED", "Failed to list assignments", err)
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	const sheet = "Assignments"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, "", NewBusinessError("EXPORT_FAILED", "Failed to build export", err)
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	headers := []string{"Product ID", "Assigned By", "Assigned At"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, row := range rows {
		values := []any{row.ProductID, row.AssignedBy, row.CreatedAt.Format(time.RFC3339)}
		for j, v := range values {
			cell, _ := excelize.CoordinatesToCellName(j+1, i+2)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", NewBusinessError("EXPORT_FAILED", "Failed to build export", err)
	}

	filename := fmt.Sprintf("badge-%s-assignments.xlsx", badge.UUID.String())
	return buf.Bytes(), filename, nil
}

// snapshot reads one catalog snapshot under the configured deadline
func (s *AssignmentFlowImpl) snapshot(ctx context.Context, tenant *models.Tenant) (*models.CatalogSnapshot, error) {
	timeout := s.catalogConfig.SnapshotTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	snapCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	snapshot, err := s.catalog.Snapshot(snapCtx, tenant)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	return snapshot, nil
}

// ruleFromDTO validates and converts an incoming rule
func ruleFromDTO(in dto.AssignmentRuleDTO) (models.AssignmentRule, error) {
	ruleType := models.RuleType(in.Type)
	if !ruleType.Valid() {
		return models.AssignmentRule{}, ErrInvalidRuleType
	}

	criteria := in.Criteria
	if criteria == nil {
		criteria = []string{}
	}

	return models.AssignmentRule{
		Type:     ruleType,
		Criteria: criteria,
	}, nil
}

func sortedIDs(set map[string]struct{}) []string {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
