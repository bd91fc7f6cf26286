package catalogsync

import (
	"context"
	"time"
)

// Location is a stock location on a platform
type Location struct {
	ID      string
	Name    string
	Primary bool
	Active  bool
}

// PrimaryLocation returns the location flagged primary, else the first one
func PrimaryLocation(locations []Location) (Location, bool) {
	for _, loc := range locations {
		if loc.Primary {
			return loc, true
		}
	}
	if len(locations) > 0 {
		return locations[0], true
	}
	return Location{}, false
}

// InventoryLevel is the available quantity of an inventory item at a location
type InventoryLevel struct {
	InventoryItemID string
	LocationID      string
	Available       int
	UpdatedAt       time.Time
}

// WebhookSubscription is a webhook registered on a platform
type WebhookSubscription struct {
	ID        string
	Topic     string
	Address   string
	Format    string
	CreatedAt time.Time
}

// Webhook topics the engine subscribes to
const (
	TopicProductsCreate        = "products/create"
	TopicProductsUpdate        = "products/update"
	TopicProductsDelete        = "products/delete"
	TopicInventoryLevelsUpdate = "inventory_levels/update"
)

// SyncTopics returns every topic the engine needs on each store
func SyncTopics() []string {
	return []string{
		TopicProductsCreate,
		TopicProductsUpdate,
		TopicProductsDelete,
		TopicInventoryLevelsUpdate,
	}
}

// CatalogPlatform is the port for a remote catalog platform.
// Implementations must wrap rate-limit failures with ErrTargetPlatformRateLimited
// and any other remote failure with ErrTargetPlatformError.
type CatalogPlatform interface {
	// Store identifies which side this platform serves
	Store() Store

	GetProduct(ctx context.Context, productID string) (*Product, error)
	CreateProduct(ctx context.Context, input ProductInput) (*Product, error)
	UpdateProduct(ctx context.Context, productID string, input ProductInput) (*Product, error)
	DeleteProduct(ctx context.Context, productID string) error
	// GetAllProducts follows pagination until limit products were read (0 = all)
	GetAllProducts(ctx context.Context, limit int) ([]Product, error)

	GetInventoryLevel(ctx context.Context, inventoryItemID, locationID string) (*InventoryLevel, error)
	UpdateInventoryLevel(ctx context.Context, inventoryItemID, locationID string, available int) (*InventoryLevel, error)
	GetLocations(ctx context.Context) ([]Location, error)
}

// WebhookAdmin manages webhook subscriptions on a platform
type WebhookAdmin interface {
	ListWebhooks(ctx context.Context) ([]WebhookSubscription, error)
	CreateWebhook(ctx context.Context, topic, address string) (*WebhookSubscription, error)
	DeleteWebhook(ctx context.Context, webhookID string) error
}

// PlatformRegistry resolves the platform serving a store
type PlatformRegistry interface {
	Get(store Store) (CatalogPlatform, error)
}
