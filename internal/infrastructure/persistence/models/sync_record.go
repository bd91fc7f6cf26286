package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/storesync/backend/internal/domain/catalogsync"
)

// SyncRecordModel is the persistence model for catalogsync.SyncRecord.
// Store product IDs are nullable so the unique indexes ignore unmapped sides.
type SyncRecordModel struct {
	SyncID             string    `gorm:"type:varchar(64);primaryKey"`
	StoreAID           *string   `gorm:"type:varchar(64);uniqueIndex:idx_sync_records_store_a"`
	StoreBID           *string   `gorm:"type:varchar(64);uniqueIndex:idx_sync_records_store_b"`
	LastUpdatedByStore string    `gorm:"type:varchar(16);not null"`
	SourceUpdatedAt    time.Time `gorm:"not null"`
	SourceCreatedAt    time.Time `gorm:"not null"`
	LastSyncedAt       time.Time `gorm:"not null;index:idx_sync_records_state_synced,priority:2"`
	StoreAUpdatedAt    *time.Time
	StoreBUpdatedAt    *time.Time
	Version            int64  `gorm:"not null;default:1"`
	State              string `gorm:"type:varchar(32);not null;index:idx_sync_records_state_synced,priority:1"`

	Title       string `gorm:"type:varchar(255)"`
	Description string `gorm:"type:text"`
	Vendor      string `gorm:"type:varchar(255)"`
	ProductType string `gorm:"type:varchar(255)"`
	Status      string `gorm:"type:varchar(32)"`
	Handle      string `gorm:"type:varchar(255)"`
	Tags        string `gorm:"type:text"`
	Images      datatypes.JSON
	Options     datatypes.JSON

	Variants []VariantMappingModel `gorm:"foreignKey:SyncID;references:SyncID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM
func (SyncRecordModel) TableName() string {
	return "sync_records"
}

// VariantMappingModel is one row per VariantMapping. Ordinal preserves the
// order of the mapping list.
type VariantMappingModel struct {
	ID                      uint   `gorm:"primaryKey;autoIncrement"`
	SyncID                  string `gorm:"type:varchar(64);not null;index"`
	Ordinal                 int    `gorm:"not null"`
	SKU                     string `gorm:"type:varchar(255);index"`
	StoreAVariantID         string `gorm:"type:varchar(64)"`
	StoreBVariantID         string `gorm:"type:varchar(64)"`
	InventoryItemStoreAID   string `gorm:"type:varchar(64);index"`
	InventoryItemStoreBID   string `gorm:"type:varchar(64);index"`
	InventoryQuantityStoreA int
	InventoryQuantityStoreB int
	Price                   decimal.Decimal     `gorm:"type:decimal(12,2);not null"`
	CompareAtPrice          decimal.NullDecimal `gorm:"type:decimal(12,2)"`
	InventoryPolicy         string              `gorm:"type:varchar(32)"`
	FulfillmentService      string              `gorm:"type:varchar(64)"`
	InventoryManagement     string              `gorm:"type:varchar(64)"`
	Option1                 string              `gorm:"type:varchar(255)"`
	Option2                 string              `gorm:"type:varchar(255)"`
	Option3                 string              `gorm:"type:varchar(255)"`
	Position                int
	Weight                  float64
	WeightUnit              string `gorm:"type:varchar(8)"`
	RequiresShipping        bool
	Taxable                 bool
}

// TableName returns the table name for GORM
func (VariantMappingModel) TableName() string {
	return "variant_mappings"
}

// ToDomain converts the persistence model to a domain SyncRecord.
func (m *SyncRecordModel) ToDomain() *catalogsync.SyncRecord {
	r := &catalogsync.SyncRecord{
		SyncID:             m.SyncID,
		StoreAID:           deref(m.StoreAID),
		StoreBID:           deref(m.StoreBID),
		LastUpdatedByStore: catalogsync.Store(m.LastUpdatedByStore),
		UpdatedAt:          m.SourceUpdatedAt,
		CreatedAt:          m.SourceCreatedAt,
		LastSyncedAt:       m.LastSyncedAt,
		StoreAUpdatedAt:    derefTime(m.StoreAUpdatedAt),
		StoreBUpdatedAt:    derefTime(m.StoreBUpdatedAt),
		Version:            m.Version,
		State:              catalogsync.SyncState(m.State),
		Title:              m.Title,
		Description:        m.Description,
		Vendor:             m.Vendor,
		ProductType:        m.ProductType,
		Status:             m.Status,
		Handle:             m.Handle,
		Tags:               m.Tags,
		Images:             []catalogsync.Image{},
		Options:            []catalogsync.Option{},
		Variants:           make([]catalogsync.VariantMapping, len(m.Variants)),
	}

	if len(m.Images) > 0 {
		_ = json.Unmarshal(m.Images, &r.Images)
	}
	if len(m.Options) > 0 {
		_ = json.Unmarshal(m.Options, &r.Options)
	}
	for i := range m.Variants {
		r.Variants[i] = m.Variants[i].ToDomain()
	}
	return r
}

// ToDomain converts the row to a domain VariantMapping.
func (m *VariantMappingModel) ToDomain() catalogsync.VariantMapping {
	v := catalogsync.VariantMapping{
		SKU:                     m.SKU,
		StoreAID:                m.StoreAVariantID,
		StoreBID:                m.StoreBVariantID,
		InventoryItemStoreAID:   m.InventoryItemStoreAID,
		InventoryItemStoreBID:   m.InventoryItemStoreBID,
		InventoryQuantityStoreA: m.InventoryQuantityStoreA,
		InventoryQuantityStoreB: m.InventoryQuantityStoreB,
		Price:                   m.Price,
		InventoryPolicy:         m.InventoryPolicy,
		FulfillmentService:      m.FulfillmentService,
		InventoryManagement:     m.InventoryManagement,
		Option1:                 m.Option1,
		Option2:                 m.Option2,
		Option3:                 m.Option3,
		Position:                m.Position,
		Weight:                  m.Weight,
		WeightUnit:              m.WeightUnit,
		RequiresShipping:        m.RequiresShipping,
		Taxable:                 m.Taxable,
	}
	if m.CompareAtPrice.Valid {
		d := m.CompareAtPrice.Decimal
		v.CompareAtPrice = &d
	}
	return v
}

// SyncRecordModelFromDomain creates a persistence model from a domain SyncRecord.
func SyncRecordModelFromDomain(r *catalogsync.SyncRecord) *SyncRecordModel {
	m := &SyncRecordModel{
		SyncID:             r.SyncID,
		StoreAID:           nullable(r.StoreAID),
		StoreBID:           nullable(r.StoreBID),
		LastUpdatedByStore: string(r.LastUpdatedByStore),
		SourceUpdatedAt:    r.UpdatedAt,
		SourceCreatedAt:    r.CreatedAt,
		LastSyncedAt:       r.LastSyncedAt,
		StoreAUpdatedAt:    nullableTime(r.StoreAUpdatedAt),
		StoreBUpdatedAt:    nullableTime(r.StoreBUpdatedAt),
		Version:            r.Version,
		State:              string(r.State),
		Title:              r.Title,
		Description:        r.Description,
		Vendor:             r.Vendor,
		ProductType:        r.ProductType,
		Status:             r.Status,
		Handle:             r.Handle,
		Tags:               r.Tags,
		Images:             marshalJSON(r.Images),
		Options:            marshalJSON(r.Options),
		Variants:           make([]VariantMappingModel, len(r.Variants)),
	}
	for i, v := range r.Variants {
		m.Variants[i] = variantMappingModelFromDomain(r.SyncID, i, v)
	}
	return m
}

func variantMappingModelFromDomain(syncID string, ordinal int, v catalogsync.VariantMapping) VariantMappingModel {
	m := VariantMappingModel{
		SyncID:                  syncID,
		Ordinal:                 ordinal,
		SKU:                     v.SKU,
		StoreAVariantID:         v.StoreAID,
		StoreBVariantID:         v.StoreBID,
		InventoryItemStoreAID:   v.InventoryItemStoreAID,
		InventoryItemStoreBID:   v.InventoryItemStoreBID,
		InventoryQuantityStoreA: v.InventoryQuantityStoreA,
		InventoryQuantityStoreB: v.InventoryQuantityStoreB,
		Price:                   v.Price,
		InventoryPolicy:         v.InventoryPolicy,
		FulfillmentService:      v.FulfillmentService,
		InventoryManagement:     v.InventoryManagement,
		Option1:                 v.Option1,
		Option2:                 v.Option2,
		Option3:                 v.Option3,
		Position:                v.Position,
		Weight:                  v.Weight,
		WeightUnit:              v.WeightUnit,
		RequiresShipping:        v.RequiresShipping,
		Taxable:                 v.Taxable,
	}
	if v.CompareAtPrice != nil {
		m.CompareAtPrice = decimal.NewNullDecimal(*v.CompareAtPrice)
	}
	return m
}

func marshalJSON(v any) datatypes.JSON {
	b, err := json.Marshal(v)
	if err != nil || string(b) == "null" {
		return datatypes.JSON("[]")
	}
	return datatypes.JSON(b)
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
