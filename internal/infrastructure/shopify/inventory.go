package shopify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/storesync/backend/internal/domain/catalogsync"
)

// GetInventoryLevel reads the available quantity of an item at a location
func (c *Client) GetInventoryLevel(ctx context.Context, inventoryItemID, locationID string) (*catalogsync.InventoryLevel, error) {
	query := url.Values{
		"inventory_item_ids": {inventoryItemID},
		"location_ids":       {locationID},
	}
	var env inventoryLevelsEnvelope
	if _, err := c.do(ctx, "get_inventory_level", http.MethodGet, "/inventory_levels.json", query, nil, &env); err != nil {
		return nil, err
	}
	if len(env.InventoryLevels) == 0 {
		return nil, fmt.Errorf("%w: no inventory level for item %s at location %s",
			catalogsync.ErrMissingTargetMapping, inventoryItemID, locationID)
	}
	return env.InventoryLevels[0].toDomain(), nil
}

// UpdateInventoryLevel sets the absolute available quantity
func (c *Client) UpdateInventoryLevel(ctx context.Context, inventoryItemID, locationID string, available int) (*catalogsync.InventoryLevel, error) {
	body := setInventoryLevel{
		LocationID:      json.Number(locationID),
		InventoryItemID: json.Number(inventoryItemID),
		Available:       available,
	}
	var env inventoryLevelEnvelope
	if _, err := c.do(ctx, "set_inventory_level", http.MethodPost, "/inventory_levels/set.json", nil, body, &env); err != nil {
		return nil, err
	}
	return env.InventoryLevel.toDomain(), nil
}

// GetLocations lists the shop's stock locations
func (c *Client) GetLocations(ctx context.Context) ([]catalogsync.Location, error) {
	var env locationsEnvelope
	if _, err := c.do(ctx, "list_locations", http.MethodGet, "/locations.json", nil, nil, &env); err != nil {
		return nil, err
	}
	locations := make([]catalogsync.Location, 0, len(env.Locations))
	for _, l := range env.Locations {
		locations = append(locations, l.toDomain())
	}
	return locations, nil
}
