package models

// Catalog types are owned by the e-commerce platform and consumed read-only. The
// resolver never mutates them; a snapshot is fetched once per resolution so a rule
// always evaluates against a single consistent view.

// Product is one catalog product with the attributes the rule variants match on.
type Product struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Handle        string   `json:"handle"`
	Vendor        string   `json:"vendor"`
	ProductType   string   `json:"product_type"`
	Tags          []string `json:"tags"`
	CollectionIDs []string `json:"collection_ids"`
	Status        string   `json:"status"`
}

// HasTag reports membership with case-sensitive exact match per tag token.
func (p *Product) HasTag(tag string) bool {
	for _, t := range p.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// InCollection reports whether the product belongs to the given collection.
func (p *Product) InCollection(collectionID string) bool {
	for _, id := range p.CollectionIDs {
		if id == collectionID {
			return true
		}
	}
	return false
}

// Collection is a catalog collection; the product count is informational only.
type Collection struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Handle        string `json:"handle"`
	ProductsCount int    `json:"products_count"`
}

// CatalogSnapshot is a point-in-time read of a tenant's catalog.
type CatalogSnapshot struct {
	Products    []Product    `json:"products"`
	Collections []Collection `json:"collections"`
}
