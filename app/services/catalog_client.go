package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/badgify/badgify-server/config"
	"github.com/badgify/badgify-server/models"
	"github.com/redis/go-redis/v9"
)

// ErrCatalogRequestFailed indicates the platform catalog API rejected or failed a read
var ErrCatalogRequestFailed = errors.New("catalog request failed")

// CatalogClient reads a tenant's product catalog from the e-commerce platform.
// The catalog is consumed read-only; Snapshot returns a single consistent view
// for one resolution pass.
type CatalogClient interface {
	ListProducts(ctx context.Context, tenant *models.Tenant) ([]models.Product, error)
	ListCollections(ctx context.Context, tenant *models.Tenant) ([]models.Collection, error)
	Snapshot(ctx context.Context, tenant *models.Tenant) (*models.CatalogSnapshot, error)
}

type httpCatalogClient struct {
	cfg    config.CatalogConfig
	client *http.Client
}

// NewCatalogClient creates an HTTP catalog client with the configured per-request timeout
func NewCatalogClient(cfg config.CatalogConfig) CatalogClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &httpCatalogClient{
		cfg: cfg,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

type apiProduct struct {
	ID          json.Number `json:"id"`
	Title       string      `json:"title"`
	Handle      string      `json:"handle"`
	Vendor      string      `json:"vendor"`
	ProductType string      `json:"product_type"`
	Tags        string      `json:"tags"`
	Status      string      `json:"status"`
	Collections []struct {
		ID json.Number `json:"id"`
	} `json:"collections"`
}

type apiCollection struct {
	ID            json.Number `json:"id"`
	Title         string      `json:"title"`
	Handle        string      `json:"handle"`
	ProductsCount int         `json:"products_count"`
}

func (c *httpCatalogClient) baseURL(tenant *models.Tenant) string {
	return fmt.Sprintf("https://%s/admin/api/%s", tenant.ShopDomain, c.cfg.APIVersion)
}

// get performs one paginated read. The returned cursor is the page_info token of
// the next page, or empty when this was the last page.
func (c *httpCatalogClient) get(ctx context.Context, tenant *models.Tenant, path string, out any) (string, error) {
	reqURL := c.baseURL(tenant) + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build catalog request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Access-Token", tenant.AccessToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCatalogRequestFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read body: %v", ErrCatalogRequestFailed, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", ErrCatalogRequestFailed, resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return "", fmt.Errorf("%w: decode: %v", ErrCatalogRequestFailed, err)
	}
	return nextPageInfo(resp.Header.Get("Link")), nil
}

// nextPageInfo extracts the page_info cursor from the rel="next" entry of a Link
// header. The platform paginates with comma-separated entries of the form
// <https://shop/admin/api/v/products.json?page_info=TOKEN&limit=N>; rel="next".
func nextPageInfo(linkHeader string) string {
	for _, entry := range strings.Split(linkHeader, ",") {
		if !strings.Contains(entry, `rel="next"`) {
			continue
		}
		start := strings.Index(entry, "<")
		end := strings.Index(entry, ">")
		if start < 0 || end <= start {
			continue
		}
		u, err := url.Parse(entry[start+1 : end])
		if err != nil {
			continue
		}
		return u.Query().Get("page_info")
	}
	return ""
}

func (c *httpCatalogClient) pageLimit() int {
	if c.cfg.PageLimit > 0 {
		return c.cfg.PageLimit
	}
	return 250
}

// ListProducts fetches the tenant's products with their tags and collection
// memberships, following the cursor until the catalog is exhausted. A failure on
// any page fails the whole read so callers never see a truncated catalog.
func (c *httpCatalogClient) ListProducts(ctx context.Context, tenant *models.Tenant) ([]models.Product, error) {
	limit := c.pageLimit()

	var products []models.Product
	path := fmt.Sprintf("/products.json?limit=%d", limit)
	for {
		var payload struct {
			Products []apiProduct `json:"products"`
		}
		cursor, err := c.get(ctx, tenant, path, &payload)
		if err != nil {
			return nil, err
		}

		for _, p := range payload.Products {
			collectionIDs := make([]string, 0, len(p.Collections))
			for _, col := range p.Collections {
				collectionIDs = append(collectionIDs, col.ID.String())
			}
			products = append(products, models.Product{
				ID:            p.ID.String(),
				Title:         p.Title,
				Handle:        p.Handle,
				Vendor:        p.Vendor,
				ProductType:   p.ProductType,
				Tags:          splitTags(p.Tags),
				CollectionIDs: collectionIDs,
				Status:        p.Status,
			})
		}

		if cursor == "" {
			break
		}
		path = fmt.Sprintf("/products.json?limit=%d&page_info=%s", limit, url.QueryEscape(cursor))
	}

	if products == nil {
		products = []models.Product{}
	}
	return products, nil
}

// ListCollections fetches all of the tenant's collections, cursor-paginated like
// ListProducts.
func (c *httpCatalogClient) ListCollections(ctx context.Context, tenant *models.Tenant) ([]models.Collection, error) {
	limit := c.pageLimit()

	var collections []models.Collection
	path := fmt.Sprintf("/collections.json?limit=%d", limit)
	for {
		var payload struct {
			Collections []apiCollection `json:"collections"`
		}
		cursor, err := c.get(ctx, tenant, path, &payload)
		if err != nil {
			return nil, err
		}

		for _, col := range payload.Collections {
			collections = append(collections, models.Collection{
				ID:            col.ID.String(),
				Title:         col.Title,
				Handle:        col.Handle,
				ProductsCount: col.ProductsCount,
			})
		}

		if cursor == "" {
			break
		}
		path = fmt.Sprintf("/collections.json?limit=%d&page_info=%s", limit, url.QueryEscape(cursor))
	}

	if collections == nil {
		collections = []models.Collection{}
	}
	return collections, nil
}

// Snapshot assembles a point-in-time catalog view. Both reads share the caller's
// context; if either fails the whole snapshot fails so a resolution never runs
// against a partial catalog.
func (c *httpCatalogClient) Snapshot(ctx context.Context, tenant *models.Tenant) (*models.CatalogSnapshot, error) {
	products, err := c.ListProducts(ctx, tenant)
	if err != nil {
		return nil, err
	}

	collections, err := c.ListCollections(ctx, tenant)
	if err != nil {
		return nil, err
	}

	return &models.CatalogSnapshot{
		Products:    products,
		Collections: collections,
	}, nil
}

// splitTags parses the platform's comma-separated tag field into tokens
func splitTags(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// cachedCatalogClient wraps a CatalogClient with a redis snapshot cache. Webhook
// handlers invalidate the cache when the catalog changes, so re-resolutions always
// see fresh data while interactive previews stay cheap.
type cachedCatalogClient struct {
	inner CatalogClient
	rc    *redis.Client
	ttl   time.Duration
}

// NewCachedCatalogClient wraps the client with a redis snapshot cache. A nil redis
// client disables caching and returns the inner client unchanged.
func NewCachedCatalogClient(inner CatalogClient, rc *redis.Client, ttl time.Duration) CatalogClient {
	if rc == nil {
		return inner
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &cachedCatalogClient{inner: inner, rc: rc, ttl: ttl}
}

func catalogSnapshotKey(tenantID uint) string {
	return fmt.Sprintf("catalog:snapshot:%d", tenantID)
}

func (c *cachedCatalogClient) ListProducts(ctx context.Context, tenant *models.Tenant) ([]models.Product, error) {
	snap, err := c.Snapshot(ctx, tenant)
	if err != nil {
		return nil, err
	}
	return snap.Products, nil
}

func (c *cachedCatalogClient) ListCollections(ctx context.Context, tenant *models.Tenant) ([]models.Collection, error) {
	snap, err := c.Snapshot(ctx, tenant)
	if err != nil {
		return nil, err
	}
	return snap.Collections, nil
}

func (c *cachedCatalogClient) Snapshot(ctx context.Context, tenant *models.Tenant) (*models.CatalogSnapshot, error) {
	key := catalogSnapshotKey(tenant.ID)

	if raw, err := c.rc.Get(ctx, key).Bytes(); err == nil {
		var snap models.CatalogSnapshot
		if err := json.Unmarshal(raw, &snap); err == nil {
			return &snap, nil
		}
		// Corrupt cache entry: drop it and fall through to a fresh read
		_ = c.rc.Del(ctx, key).Err()
	}

	snap, err := c.inner.Snapshot(ctx, tenant)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(snap); err == nil {
		_ = c.rc.Set(ctx, key, raw, c.ttl).Err()
	}

	return snap, nil
}

// InvalidateCatalogSnapshot drops a tenant's cached snapshot after a catalog change
func InvalidateCatalogSnapshot(ctx context.Context, rc *redis.Client, tenantID uint) error {
	if rc == nil {
		return nil
	}
	return rc.Del(ctx, catalogSnapshotKey(tenantID)).Err()
}
