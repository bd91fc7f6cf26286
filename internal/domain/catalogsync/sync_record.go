package catalogsync

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// SyncState tracks progress of the multi-step create flow
type SyncState string

const (
	// SyncStateCreated means the product exists on both stores but initial
	// inventory propagation has not fully succeeded yet.
	SyncStateCreated SyncState = "created"
	// SyncStateInventorySynced means every paired variant had its initial
	// inventory level copied to the target store.
	SyncStateInventorySynced SyncState = "inventory_synced"
)

// IsValid returns true if the state is known
func (s SyncState) IsValid() bool {
	return s == SyncStateCreated || s == SyncStateInventorySynced
}

// ---------------------------------------------------------------------------
// VariantMapping
// ---------------------------------------------------------------------------

// VariantMapping links one variant across both stores. SKU is the join key.
type VariantMapping struct {
	// SKU identifies the variant within its SyncRecord
	SKU string
	// StoreAID / StoreBID are the variant IDs on each store
	StoreAID string
	StoreBID string
	// InventoryItemStoreAID / InventoryItemStoreBID are the stock-tracking handles
	InventoryItemStoreAID string
	InventoryItemStoreBID string
	// InventoryQuantityStoreA / InventoryQuantityStoreB are the last known on-hand quantities
	InventoryQuantityStoreA int
	InventoryQuantityStoreB int
	// Mirrored fields, last writer wins
	Price               decimal.Decimal
	CompareAtPrice      *decimal.Decimal
	InventoryPolicy     string
	FulfillmentService  string
	InventoryManagement string
	Option1             string
	Option2             string
	Option3             string
	Position            int
	Weight              float64
	WeightUnit          string
	RequiresShipping    bool
	Taxable             bool
}

// VariantID returns the variant ID on the given store
func (v VariantMapping) VariantID(store Store) string {
	if store == StoreA {
		return v.StoreAID
	}
	return v.StoreBID
}

// InventoryItemID returns the inventory item ID on the given store
func (v VariantMapping) InventoryItemID(store Store) string {
	if store == StoreA {
		return v.InventoryItemStoreAID
	}
	return v.InventoryItemStoreBID
}

// InventoryQuantity returns the last known quantity on the given store
func (v VariantMapping) InventoryQuantity(store Store) int {
	if store == StoreA {
		return v.InventoryQuantityStoreA
	}
	return v.InventoryQuantityStoreB
}

func (v *VariantMapping) setVariantID(store Store, id string) {
	if store == StoreA {
		v.StoreAID = id
	} else {
		v.StoreBID = id
	}
}

func (v *VariantMapping) setInventoryItemID(store Store, id string) {
	if store == StoreA {
		v.InventoryItemStoreAID = id
	} else {
		v.InventoryItemStoreBID = id
	}
}

// SetInventoryQuantity records the on-hand quantity for the given store
func (v *VariantMapping) SetInventoryQuantity(store Store, qty int) {
	if store == StoreA {
		v.InventoryQuantityStoreA = qty
	} else {
		v.InventoryQuantityStoreB = qty
	}
}

// mirror copies the catalog fields of a source variant
func (v *VariantMapping) mirror(src Variant) {
	v.SKU = src.SKU
	v.Price = src.Price
	v.CompareAtPrice = src.CompareAtPrice
	v.InventoryPolicy = src.InventoryPolicy
	v.FulfillmentService = src.FulfillmentService
	v.InventoryManagement = src.InventoryManagement
	v.Option1 = src.Option1
	v.Option2 = src.Option2
	v.Option3 = src.Option3
	v.Position = src.Position
	v.Weight = src.Weight
	v.WeightUnit = src.WeightUnit
	v.RequiresShipping = src.RequiresShipping
	v.Taxable = src.Taxable
}

// ---------------------------------------------------------------------------
// SyncRecord
// ---------------------------------------------------------------------------

// SyncRecord is the cross-store identity of one product
type SyncRecord struct {
	// SyncID is the stable opaque key of the record
	SyncID string
	// StoreAID / StoreBID are the product IDs on each store; "" means unmapped
	StoreAID string
	StoreBID string
	// LastUpdatedByStore is the store whose edit is currently reflected
	LastUpdatedByStore Store
	// UpdatedAt is the source platform's own modification time of the last applied edit
	UpdatedAt time.Time
	// CreatedAt is the source platform's creation time
	CreatedAt time.Time
	// LastSyncedAt is when this engine last wrote the record
	LastSyncedAt time.Time
	// StoreAUpdatedAt / StoreBUpdatedAt are the latest modification times
	// observed on each store, from inbound events and from the responses of
	// writes this engine made. They let the conflict guard recognise echoes.
	StoreAUpdatedAt time.Time
	StoreBUpdatedAt time.Time
	// Version is incremented by the engine on every successful save
	Version int64
	// State tracks the create flow (created -> inventory_synced)
	State SyncState

	Title       string
	Description string
	Vendor      string
	ProductType string
	Status      string
	Handle      string
	Tags        string
	Images      []Image
	Options     []Option
	Variants    []VariantMapping
}

// NewSyncRecord builds a record for a product just created on the target store
func NewSyncRecord(
	syncID string,
	source Store,
	product Product,
	targetProductID string,
	variants []VariantMapping,
	now time.Time,
) (*SyncRecord, error) {
	if syncID == "" {
		return nil, fmt.Errorf("%w: empty sync id", ErrInvalidSyncRecord)
	}
	if !source.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStore, source)
	}
	if product.ID == "" && targetProductID == "" {
		return nil, fmt.Errorf("%w: at least one store id is required", ErrInvalidSyncRecord)
	}

	r := &SyncRecord{
		SyncID:             syncID,
		LastUpdatedByStore: source,
		UpdatedAt:          product.UpdatedAt,
		CreatedAt:          product.CreatedAt,
		LastSyncedAt:       now,
		State:              SyncStateCreated,
		Variants:           variants,
	}
	r.SetStoreID(source, product.ID)
	r.SetStoreID(source.Other(), targetProductID)
	r.ObserveUpdatedAt(source, product.UpdatedAt)
	r.MirrorCatalog(product)
	return r, nil
}

// StoreID returns the product ID on the given store
func (r *SyncRecord) StoreID(store Store) string {
	if store == StoreA {
		return r.StoreAID
	}
	return r.StoreBID
}

// SetStoreID sets the product ID on the given store
func (r *SyncRecord) SetStoreID(store Store, id string) {
	if store == StoreA {
		r.StoreAID = id
	} else {
		r.StoreBID = id
	}
}

// HasStoreID returns true if the record is mapped on the given store
func (r *SyncRecord) HasStoreID(store Store) bool {
	return r.StoreID(store) != ""
}

// MirrorCatalog copies the catalog fields of a source product
func (r *SyncRecord) MirrorCatalog(p Product) {
	r.Title = p.Title
	r.Description = p.Description
	r.Vendor = p.Vendor
	r.ProductType = p.ProductType
	r.Status = p.Status
	r.Handle = p.Handle
	r.Tags = p.Tags
	r.Images = p.Images
	r.Options = p.Options
}

// RecordUpdate marks the record as reflecting an edit from source at updatedAt
func (r *SyncRecord) RecordUpdate(source Store, updatedAt, now time.Time) {
	r.LastUpdatedByStore = source
	r.UpdatedAt = updatedAt
	r.LastSyncedAt = now
	r.ObserveUpdatedAt(source, updatedAt)
}

// ObservedUpdatedAt returns the latest modification time seen on store
func (r *SyncRecord) ObservedUpdatedAt(store Store) time.Time {
	if store == StoreA {
		return r.StoreAUpdatedAt
	}
	return r.StoreBUpdatedAt
}

// ObserveUpdatedAt records a modification time seen on store. Older or zero
// times are ignored.
func (r *SyncRecord) ObserveUpdatedAt(store Store, t time.Time) {
	if t.IsZero() || !t.After(r.ObservedUpdatedAt(store)) {
		return
	}
	if store == StoreA {
		r.StoreAUpdatedAt = t
	} else {
		r.StoreBUpdatedAt = t
	}
}

// FindVariantBySKU returns the index of the variant with the SKU, or -1
func (r *SyncRecord) FindVariantBySKU(sku string) int {
	if sku == "" {
		return -1
	}
	for i := range r.Variants {
		if r.Variants[i].SKU == sku {
			return i
		}
	}
	return -1
}

// FindVariantByInventoryItem returns the index of the variant whose inventory
// item on store matches, or -1
func (r *SyncRecord) FindVariantByInventoryItem(store Store, inventoryItemID string) int {
	if inventoryItemID == "" {
		return -1
	}
	for i := range r.Variants {
		if r.Variants[i].InventoryItemID(store) == inventoryItemID {
			return i
		}
	}
	return -1
}

// MarkInventorySynced advances the create flow to its final state
func (r *SyncRecord) MarkInventorySynced() {
	r.State = SyncStateInventorySynced
}

// NeedsInventoryResume returns true if initial inventory propagation is pending
func (r *SyncRecord) NeedsInventoryResume() bool {
	return r.State == SyncStateCreated
}

// ResumeResult counts the outcome of one pass over records pending initial inventory
type ResumeResult struct {
	Scanned  int
	Advanced int
	Failed   int
}
