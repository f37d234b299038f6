package dto

// TenantDTO represents a tenant in responses
type TenantDTO struct {
	UUID        string `json:"uuid"`
	ShopDomain  string `json:"shop_domain"`
	Status      string `json:"status"`
	InstalledAt string `json:"installed_at"`
}

// InstallTenantRequest represents the request to install the app on a shop
type InstallTenantRequest struct {
	ShopDomain  string `json:"shop_domain" validate:"required,fqdn"`
	AccessToken string `json:"access_token" validate:"required,min=10"`
}

// InstallTenantResponse represents the response to an app installation
type InstallTenantResponse struct {
	Message      string          `json:"message"`
	Token        string          `json:"token"`
	Tenant       TenantDTO       `json:"tenant"`
	Subscription SubscriptionDTO `json:"subscription"`
}

// GetTenantRequest represents the request to read the current tenant
type GetTenantRequest struct {
	TenantID uint `json:"-"`
}

// GetTenantResponse represents the response to read the current tenant
type GetTenantResponse struct {
	Message string    `json:"message"`
	Tenant  TenantDTO `json:"tenant"`
}
