package catalogsync

import (
	"context"
	"time"

	"github.com/storesync/backend/internal/domain/shared"
)

// SyncRecordFilter defines list options for sync records
type SyncRecordFilter struct {
	shared.Filter
	// State filters by create-flow state when set
	State SyncState
}

// SyncRecordReader defines read operations for SyncRecord
type SyncRecordReader interface {
	// FindBySyncID returns ErrMappingNotFound when absent
	FindBySyncID(ctx context.Context, syncID string) (*SyncRecord, error)
	// FindByStoreProductID looks up by the product ID on the given store
	FindByStoreProductID(ctx context.Context, store Store, productID string) (*SyncRecord, error)
	// FindBySKU looks up the record owning a variant with the SKU
	FindBySKU(ctx context.Context, sku string) (*SyncRecord, error)
	// FindByInventoryItem looks up the record owning a variant whose inventory item on store matches
	FindByInventoryItem(ctx context.Context, store Store, inventoryItemID string) (*SyncRecord, error)
	// FindPendingInventory returns records still in SyncStateCreated last synced before cutoff
	FindPendingInventory(ctx context.Context, cutoff time.Time, limit int) ([]SyncRecord, error)
	// List returns a page of records and the total count
	List(ctx context.Context, filter SyncRecordFilter) ([]SyncRecord, int64, error)
}

// SyncRecordWriter defines write operations for SyncRecord
type SyncRecordWriter interface {
	// Save inserts a record with Version 0, otherwise updates it only if the
	// stored version still matches (ErrVersionConflict if not). On success
	// record.Version holds the new version.
	Save(ctx context.Context, record *SyncRecord) error
	// Delete removes the record and its variant mappings
	Delete(ctx context.Context, syncID string) error
}

// SyncRecordRepository combines read and write operations
type SyncRecordRepository interface {
	SyncRecordReader
	SyncRecordWriter
}

// SyncLogFilter defines list options for sync log entries
type SyncLogFilter struct {
	Limit     int
	Operation Operation
	Status    LogStatus
	SyncID    string
}

// SyncLogRepository stores append-only sync log entries
type SyncLogRepository interface {
	Append(ctx context.Context, entry *SyncLogEntry) error
	// List returns the newest entries first
	List(ctx context.Context, filter SyncLogFilter) ([]SyncLogEntry, error)
}

// ConfigEntryRepository is a simple key/value store for operational settings
type ConfigEntryRepository interface {
	// Get returns ok=false when the key is absent
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
}

// Well-known config keys
const (
	ConfigKeyLastStartupAt        = "last_startup_at"
	ConfigKeyWebhooksRegisteredAt = "webhooks_registered_at"
	ConfigKeyLastBulkSyncAt       = "last_bulk_sync_at"
	ConfigKeyHealthProbe          = "health_probe"
)
