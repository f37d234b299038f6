package dto

// ProductDTO represents a catalog product in responses
type ProductDTO struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Handle      string   `json:"handle"`
	Vendor      string   `json:"vendor,omitempty"`
	ProductType string   `json:"product_type,omitempty"`
	Tags        []string `json:"tags"`
	Status      string   `json:"status,omitempty"`
}

// CollectionDTO represents a catalog collection in responses
type CollectionDTO struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Handle        string `json:"handle"`
	ProductsCount int    `json:"products_count"`
}

// ListProductsRequest represents the request to browse the tenant's catalog
type ListProductsRequest struct {
	TenantID uint `json:"-"`
}

// ListProductsResponse represents the response to browse the tenant's catalog
type ListProductsResponse struct {
	Message string       `json:"message"`
	Items   []ProductDTO `json:"items"`
}

// ListCollectionsRequest represents the request to list the tenant's collections
type ListCollectionsRequest struct {
	TenantID uint `json:"-"`
}

// ListCollectionsResponse represents the response to list the tenant's collections
type ListCollectionsResponse struct {
	Message string          `json:"message"`
	Items   []CollectionDTO `json:"items"`
}
