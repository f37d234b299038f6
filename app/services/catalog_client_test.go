package services

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/badgify/badgify-server/config"
	"github.com/badgify/badgify-server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextPageInfo(t *testing.T) {
	t.Run("NextPresent", func(t *testing.T) {
		header := `<https://shop.example.com/admin/api/2024-07/products.json?page_info=abc123&limit=2>; rel="next"`
		assert.Equal(t, "abc123", nextPageInfo(header))
	})

	t.Run("PreviousAndNext", func(t *testing.T) {
		header := `<https://shop.example.com/admin/api/2024-07/products.json?page_info=prev111&limit=2>; rel="previous", ` +
			`<https://shop.example.com/admin/api/2024-07/products.json?page_info=next222&limit=2>; rel="next"`
		assert.Equal(t, "next222", nextPageInfo(header))
	})

	t.Run("LastPage", func(t *testing.T) {
		header := `<https://shop.example.com/admin/api/2024-07/products.json?page_info=prev111&limit=2>; rel="previous"`
		assert.Equal(t, "", nextPageInfo(header))
	})

	t.Run("Empty", func(t *testing.T) {
		assert.Equal(t, "", nextPageInfo(""))
	})
}

func TestCatalogClientPagination(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cursor := r.URL.Query().Get("page_info")

		switch {
		case strings.HasSuffix(r.URL.Path, "/products.json") && cursor == "":
			w.Header().Set("Link", fmt.Sprintf(`<https://%s%s?page_info=page2&limit=2>; rel="next"`, r.Host, r.URL.Path))
			fmt.Fprint(w, `{"products":[
				{"id":1,"title":"Alpha","vendor":"Acme","product_type":"Snowboard","tags":"sale, winter"},
				{"id":2,"title":"Beta","vendor":"Acme","product_type":"Snowboard","tags":""}
			]}`)
		case strings.HasSuffix(r.URL.Path, "/products.json") && cursor == "page2":
			fmt.Fprint(w, `{"products":[
				{"id":3,"title":"Gamma","vendor":"Other","product_type":"Boots","tags":"sale"}
			]}`)
		case strings.HasSuffix(r.URL.Path, "/collections.json") && cursor == "":
			w.Header().Set("Link", fmt.Sprintf(`<https://%s%s?page_info=colpage2&limit=2>; rel="next"`, r.Host, r.URL.Path))
			fmt.Fprint(w, `{"collections":[{"id":10,"title":"Featured","products_count":2}]}`)
		case strings.HasSuffix(r.URL.Path, "/collections.json") && cursor == "colpage2":
			fmt.Fprint(w, `{"collections":[{"id":11,"title":"Clearance","products_count":1}]}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := &httpCatalogClient{
		cfg:    config.CatalogConfig{APIVersion: "2024-07", PageLimit: 2},
		client: srv.Client(),
	}
	tenant := &models.Tenant{
		ShopDomain:  strings.TrimPrefix(srv.URL, "https://"),
		AccessToken: "shpat_test",
	}
	ctx := context.Background()

	t.Run("ProductsFollowCursor", func(t *testing.T) {
		products, err := client.ListProducts(ctx, tenant)
		require.NoError(t, err)
		require.Len(t, products, 3)
		assert.Equal(t, "1", products[0].ID)
		assert.Equal(t, []string{"sale", "winter"}, products[0].Tags)
		assert.Equal(t, "3", products[2].ID)
	})

	t.Run("CollectionsFollowCursor", func(t *testing.T) {
		collections, err := client.ListCollections(ctx, tenant)
		require.NoError(t, err)
		require.Len(t, collections, 2)
		assert.Equal(t, "10", collections[0].ID)
		assert.Equal(t, "11", collections[1].ID)
	})

	t.Run("SnapshotSpansAllPages", func(t *testing.T) {
		snap, err := client.Snapshot(ctx, tenant)
		require.NoError(t, err)
		assert.Len(t, snap.Products, 3)
		assert.Len(t, snap.Collections, 2)
	})
}

func TestCatalogClientFailurePropagates(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cursor := r.URL.Query().Get("page_info")
		if strings.HasSuffix(r.URL.Path, "/products.json") && cursor == "" {
			w.Header().Set("Link", fmt.Sprintf(`<https://%s%s?page_info=page2&limit=2>; rel="next"`, r.Host, r.URL.Path))
			fmt.Fprint(w, `{"products":[{"id":1,"title":"Alpha"}]}`)
			return
		}
		// Second page fails: the whole read must fail rather than truncate
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := &httpCatalogClient{
		cfg:    config.CatalogConfig{APIVersion: "2024-07", PageLimit: 2},
		client: srv.Client(),
	}
	tenant := &models.Tenant{
		ShopDomain:  strings.TrimPrefix(srv.URL, "https://"),
		AccessToken: "shpat_test",
	}

	products, err := client.ListProducts(context.Background(), tenant)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCatalogRequestFailed)
	assert.Nil(t, products)
}
