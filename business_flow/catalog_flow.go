// Package businessflow contains business logic flows for catalog browsing
package businessflow

import (
	"context"

	"github.com/badgify/badgify-server/app/dto"
	"github.com/badgify/badgify-server/app/services"
	"github.com/badgify/badgify-server/config"
	"github.com/badgify/badgify-server/models"
	"github.com/badgify/badgify-server/repository"
)

// CatalogFlow exposes read-only catalog browsing for the rule builder UI.
type CatalogFlow interface {
	ListProducts(ctx context.Context, req *dto.ListProductsRequest) (*dto.ListProductsResponse, error)
	ListCollections(ctx context.Context, req *dto.ListCollectionsRequest) (*dto.ListCollectionsResponse, error)
}

type CatalogFlowImpl struct {
	tenantRepo    repository.TenantRepository
	catalog       services.CatalogClient
	catalogConfig config.CatalogConfig
}

// NewCatalogFlow creates a new catalog flow
func NewCatalogFlow(
	tenantRepo repository.TenantRepository,
	catalog services.CatalogClient,
	catalogConfig config.CatalogConfig,
) CatalogFlow {
	return &CatalogFlowImpl{
		tenantRepo:    tenantRepo,
		catalog:       catalog,
		catalogConfig: catalogConfig,
	}
}

func (s *CatalogFlowImpl) ListProducts(ctx context.Context, req *dto.ListProductsRequest) (*dto.ListProductsResponse, error) {
	tenant, err := getTenant(ctx, s.tenantRepo, req.TenantID)
	if err != nil {
		return nil, err
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.catalogConfig.Timeout)
	defer cancel()

	products, err := s.catalog.ListProducts(fetchCtx, &tenant)
	if err != nil {
		return nil, NewBusinessError("CATALOG_UNAVAILABLE", "Failed to fetch products", ErrCatalogUnavailable)
	}

	items := make([]dto.ProductDTO, 0, len(products))
	for i := range products {
		items = append(items, toProductDTO(&products[i]))
	}

	return &dto.ListProductsResponse{
		Message: "Products retrieved successfully",
		Items:   items,
	}, nil
}

func (s *CatalogFlowImpl) ListCollections(ctx context.Context, req *dto.ListCollectionsRequest) (*dto.ListCollectionsResponse, error) {
	tenant, err := getTenant(ctx, s.tenantRepo, req.TenantID)
	if err != nil {
		return nil, err
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.catalogConfig.Timeout)
	defer cancel()

	collections, err := s.catalog.ListCollections(fetchCtx, &tenant)
	if err != nil {
		return nil, NewBusinessError("CATALOG_UNAVAILABLE", "Failed to fetch collections", ErrCatalogUnavailable)
	}

	items := make([]dto.CollectionDTO, 0, len(collections))
	for _, col := range collections {
		items = append(items, dto.CollectionDTO{
			ID:            col.ID,
			Title:         col.Title,
			Handle:        col.Handle,
			ProductsCount: col.ProductsCount,
		})
	}

	return &dto.ListCollectionsResponse{
		Message: "Collections retrieved successfully",
		Items:   items,
	}, nil
}

func toProductDTO(p *models.Product) dto.ProductDTO {
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	return dto.ProductDTO{
		ID:          p.ID,
		Title:       p.Title,
		Handle:      p.Handle,
		Vendor:      p.Vendor,
		ProductType: p.ProductType,
		Tags:        tags,
		Status:      p.Status,
	}
}
