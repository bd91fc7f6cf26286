package shopify

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/storesync/backend/internal/domain/catalogsync"
)

// ErrMalformedPayload is returned when a webhook body cannot be decoded
var ErrMalformedPayload = errors.New("shopify: malformed webhook payload")

// Webhook bodies are the bare resource, not the {"product": ...} envelope the
// Admin API returns.

// DecodeProductPayload decodes a products/create or products/update delivery
func DecodeProductPayload(body []byte) (catalogsync.Product, error) {
	var p wireProduct
	if err := decodeStrict(body, &p); err != nil {
		return catalogsync.Product{}, err
	}
	if p.ID.String() == "" {
		return catalogsync.Product{}, fmt.Errorf("%w: product id is required", ErrMalformedPayload)
	}
	return p.toDomain(), nil
}

// DecodeProductDeletePayload returns the product id of a products/delete delivery
func DecodeProductDeletePayload(body []byte) (string, error) {
	var p struct {
		ID json.Number `json:"id"`
	}
	if err := decodeStrict(body, &p); err != nil {
		return "", err
	}
	if p.ID.String() == "" {
		return "", fmt.Errorf("%w: product id is required", ErrMalformedPayload)
	}
	return p.ID.String(), nil
}

// InventoryLevelPayload is an inventory_levels/update delivery
type InventoryLevelPayload struct {
	InventoryItemID string
	LocationID      string
	Available       int
	// Tracked is false when "available" is null; Available is then meaningless
	Tracked bool
}

// DecodeInventoryLevelPayload decodes an inventory_levels/update delivery.
// A level without "available" decodes with Tracked false.
func DecodeInventoryLevelPayload(body []byte) (InventoryLevelPayload, error) {
	var l wireInventoryLevel
	if err := decodeStrict(body, &l); err != nil {
		return InventoryLevelPayload{}, err
	}
	if l.InventoryItemID.String() == "" {
		return InventoryLevelPayload{}, fmt.Errorf("%w: inventory_item_id is required", ErrMalformedPayload)
	}
	level := InventoryLevelPayload{
		InventoryItemID: l.InventoryItemID.String(),
		LocationID:      l.LocationID.String(),
	}
	if l.Available != nil {
		level.Available = *l.Available
		level.Tracked = true
	}
	return level, nil
}

func decodeStrict(body []byte, out any) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return fmt.Errorf("%w: empty body", ErrMalformedPayload)
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return nil
}
