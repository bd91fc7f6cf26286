package catalogsync

import (
	"time"

	"github.com/storesync/backend/internal/domain/catalogsync"
	"github.com/storesync/backend/internal/domain/shared"
)

// ---------------------------------------------------------------------------
// Sync results
// ---------------------------------------------------------------------------

// SyncResult is the outcome of one product or inventory sync
type SyncResult struct {
	Operation       catalogsync.Operation `json:"operation"`
	Status          catalogsync.LogStatus `json:"status"`
	SyncID          string                `json:"sync_id,omitempty"`
	SourceStore     catalogsync.Store     `json:"source_store"`
	TargetStore     catalogsync.Store     `json:"target_store"`
	SourceProductID string                `json:"source_product_id,omitempty"`
	TargetProductID string                `json:"target_product_id,omitempty"`
	// Message explains a skip
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`

	// InventorySynced is set by create when every paired variant had its
	// initial level copied
	InventorySynced bool `json:"inventory_synced,omitempty"`

	// Inventory updates only
	VariantSKU string `json:"variant_sku,omitempty"`
	Quantity   *int   `json:"quantity,omitempty"`
}

func newSyncResult(op catalogsync.Operation, source catalogsync.Store, sourceProductID string) *SyncResult {
	return &SyncResult{
		Operation:       op,
		Status:          catalogsync.LogStatusFailed,
		SourceStore:     source,
		TargetStore:     source.Other(),
		SourceProductID: sourceProductID,
	}
}

func (r *SyncResult) succeed() *SyncResult {
	r.Status = catalogsync.LogStatusSuccess
	return r
}

func (r *SyncResult) skip(reason string) *SyncResult {
	r.Status = catalogsync.LogStatusSkipped
	r.Message = reason
	return r
}

// Succeeded returns true unless the sync failed
func (r *SyncResult) Succeeded() bool {
	return r.Status != catalogsync.LogStatusFailed
}

// Skipped returns true when nothing was propagated
func (r *SyncResult) Skipped() bool {
	return r.Status == catalogsync.LogStatusSkipped
}

// logEntry converts the result into its audit record
func (r *SyncResult) logEntry(now time.Time) *catalogsync.SyncLogEntry {
	entry := catalogsync.NewSyncLogEntry(r.Operation, r.SourceStore, r.SourceProductID, now)
	entry.TargetStore = r.TargetStore
	entry.SyncID = r.SyncID
	entry.TargetProductID = r.TargetProductID
	entry.Status = r.Status
	entry.Error = r.Error
	return entry
}

// ---------------------------------------------------------------------------
// Bulk sync
// ---------------------------------------------------------------------------

// BulkOptions controls a bulk sync run
type BulkOptions struct {
	// Limit caps the products read from the source (default 50, max 250)
	Limit int
	// SkipExisting leaves products that already have a target id untouched.
	// When false they are re-pushed as forced updates.
	SkipExisting bool
}

// BulkError describes one product that failed during a bulk run
type BulkError struct {
	ProductID string `json:"product_id"`
	Title     string `json:"title,omitempty"`
	Error     string `json:"error"`
}

// BulkResult aggregates a bulk run
type BulkResult struct {
	SourceStore catalogsync.Store `json:"source_store"`
	TargetStore catalogsync.Store `json:"target_store"`
	Total       int               `json:"total"`
	Success     int               `json:"success"`
	Failed      int               `json:"failed"`
	Skipped     int               `json:"skipped"`
	Errors      []BulkError       `json:"errors"`
	StartedAt   time.Time         `json:"started_at"`
	CompletedAt time.Time         `json:"completed_at"`
}

// ---------------------------------------------------------------------------
// Query responses
// ---------------------------------------------------------------------------

// VariantSummary is a variant mapping as shown by the status API
type VariantSummary struct {
	SKU                     string `json:"sku"`
	StoreAID                string `json:"store_a_id,omitempty"`
	StoreBID                string `json:"store_b_id,omitempty"`
	InventoryItemStoreAID   string `json:"inventory_item_store_a_id,omitempty"`
	InventoryItemStoreBID   string `json:"inventory_item_store_b_id,omitempty"`
	InventoryQuantityStoreA int    `json:"inventory_quantity_store_a"`
	InventoryQuantityStoreB int    `json:"inventory_quantity_store_b"`
	Price                   string `json:"price"`
}

// RecordSummary is a SyncRecord as shown by the query API
type RecordSummary struct {
	SyncID             string            `json:"sync_id"`
	Title              string            `json:"title"`
	StoreAID           string            `json:"store_a_id,omitempty"`
	StoreBID           string            `json:"store_b_id,omitempty"`
	LastUpdatedByStore catalogsync.Store `json:"last_updated_by_store"`
	State              string            `json:"state"`
	Version            int64             `json:"version"`
	UpdatedAt          time.Time         `json:"updated_at"`
	LastSyncedAt       time.Time         `json:"last_synced_at"`
	VariantCount       int               `json:"variant_count"`
	Variants           []VariantSummary  `json:"variants,omitempty"`
}

// ToRecordSummary converts a record. Variants are included when withVariants is set.
func ToRecordSummary(r *catalogsync.SyncRecord, withVariants bool) RecordSummary {
	s := RecordSummary{
		SyncID:             r.SyncID,
		Title:              r.Title,
		StoreAID:           r.StoreAID,
		StoreBID:           r.StoreBID,
		LastUpdatedByStore: r.LastUpdatedByStore,
		State:              string(r.State),
		Version:            r.Version,
		UpdatedAt:          r.UpdatedAt,
		LastSyncedAt:       r.LastSyncedAt,
		VariantCount:       len(r.Variants),
	}
	if !withVariants {
		return s
	}
	s.Variants = make([]VariantSummary, 0, len(r.Variants))
	for _, v := range r.Variants {
		s.Variants = append(s.Variants, VariantSummary{
			SKU:                     v.SKU,
			StoreAID:                v.StoreAID,
			StoreBID:                v.StoreBID,
			InventoryItemStoreAID:   v.InventoryItemStoreAID,
			InventoryItemStoreBID:   v.InventoryItemStoreBID,
			InventoryQuantityStoreA: v.InventoryQuantityStoreA,
			InventoryQuantityStoreB: v.InventoryQuantityStoreB,
			Price:                   v.Price.StringFixed(2),
		})
	}
	return s
}

// LogSummary is a SyncLogEntry as shown by the query API
type LogSummary struct {
	ID              string                `json:"id"`
	SyncID          string                `json:"sync_id,omitempty"`
	Operation       catalogsync.Operation `json:"operation"`
	SourceStore     catalogsync.Store     `json:"source_store"`
	TargetStore     catalogsync.Store     `json:"target_store"`
	SourceProductID string                `json:"source_product_id,omitempty"`
	TargetProductID string                `json:"target_product_id,omitempty"`
	Status          catalogsync.LogStatus `json:"status"`
	Error           string                `json:"error,omitempty"`
	Timestamp       time.Time             `json:"timestamp"`
}

// ToLogSummary converts a log entry
func ToLogSummary(e catalogsync.SyncLogEntry) LogSummary {
	return LogSummary{
		ID:              e.ID.String(),
		SyncID:          e.SyncID,
		Operation:       e.Operation,
		SourceStore:     e.SourceStore,
		TargetStore:     e.TargetStore,
		SourceProductID: e.SourceProductID,
		TargetProductID: e.TargetProductID,
		Status:          e.Status,
		Error:           e.Error,
		Timestamp:       e.Timestamp,
	}
}

// ListRecordsQuery pages through sync records
type ListRecordsQuery struct {
	Page     int
	PageSize int
	State    catalogsync.SyncState
}

// Filter converts the query into a repository filter with bounds applied
func (q ListRecordsQuery) Filter() catalogsync.SyncRecordFilter {
	f := shared.DefaultFilter()
	if q.Page > 0 {
		f.Page = q.Page
	}
	if q.PageSize > 0 {
		f.PageSize = min(q.PageSize, MaxPageSize)
	}
	return catalogsync.SyncRecordFilter{Filter: f, State: q.State}
}

// ListLogsQuery selects recent log entries
type ListLogsQuery struct {
	Limit     int
	Operation catalogsync.Operation
	Status    catalogsync.LogStatus
	SyncID    string
}

// Filter converts the query into a repository filter with bounds applied
func (q ListLogsQuery) Filter() catalogsync.SyncLogFilter {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLogLimit
	}
	return catalogsync.SyncLogFilter{
		Limit:     min(limit, MaxLogLimit),
		Operation: q.Operation,
		Status:    q.Status,
		SyncID:    q.SyncID,
	}
}

// Query bounds
const (
	MaxPageSize     = 250
	DefaultLogLimit = 100
	MaxLogLimit     = 500
)
