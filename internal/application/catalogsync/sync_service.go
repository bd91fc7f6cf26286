package catalogsync

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/storesync/backend/internal/domain/catalogsync"
	"github.com/storesync/backend/internal/domain/shared"
	"github.com/storesync/backend/internal/infrastructure/telemetry"
)

// SyncProductRequest triggers a product sync by id
type SyncProductRequest struct {
	SourceStore catalogsync.Store
	ProductID   string
	Operation   catalogsync.Operation
}

// SyncInventoryRequest triggers an inventory sync
type SyncInventoryRequest struct {
	SourceStore     catalogsync.Store
	InventoryItemID string
	LocationID      string
	Quantity        int
}

// SyncServiceConfig holds the tuning of the sync service
type SyncServiceConfig struct {
	Bulk        BulkConfig
	Idempotency shared.IdempotencyConfig
}

// SyncService is the entry point for webhook intake and the operator API
type SyncService struct {
	platforms catalogsync.PlatformRegistry
	records   catalogsync.SyncRecordRepository
	logs      catalogsync.SyncLogRepository

	catalog   *CatalogReconciler
	inventory *InventoryReconciler
	bulk      *BulkOrchestrator
	dedupe    *WebhookDeduplicator
	logger    *zap.Logger
}

// NewSyncService wires the reconcilers over the given ports
func NewSyncService(
	platforms catalogsync.PlatformRegistry,
	records catalogsync.SyncRecordRepository,
	logs catalogsync.SyncLogRepository,
	configs catalogsync.ConfigEntryRepository,
	deliveries shared.IdempotencyStore,
	config SyncServiceConfig,
	logger *zap.Logger,
) *SyncService {
	locks := NewKeyedLock()
	catalog := NewCatalogReconciler(platforms, records, logs, locks, logger)
	return &SyncService{
		platforms: platforms,
		records:   records,
		logs:      logs,
		catalog:   catalog,
		inventory: NewInventoryReconciler(platforms, records, logs, locks, logger),
		bulk:      NewBulkOrchestrator(platforms, records, configs, catalog, config.Bulk, logger),
		dedupe:    NewWebhookDeduplicator(deliveries, config.Idempotency, logger),
		logger:    logger,
	}
}

// SetSyncMetrics sets the sync metrics collector
func (s *SyncService) SetSyncMetrics(m *telemetry.SyncMetrics) {
	s.catalog.SetSyncMetrics(m)
	s.inventory.SetSyncMetrics(m)
}

// ---------------------------------------------------------------------------
// Event intake
// ---------------------------------------------------------------------------

// CheckDelivery reports whether a webhook delivery was already accepted
func (s *SyncService) CheckDelivery(ctx context.Context, deliveryID string) Verdict {
	return s.dedupe.Check(ctx, deliveryID)
}

// ReleaseDelivery forgets a delivery whose processing failed transiently
func (s *SyncService) ReleaseDelivery(ctx context.Context, deliveryID string) {
	s.dedupe.Release(ctx, deliveryID)
}

// Deduplicator returns the webhook deduplicator
func (s *SyncService) Deduplicator() *WebhookDeduplicator {
	return s.dedupe
}

// HandleProductEvent applies a product event whose payload is already known
func (s *SyncService) HandleProductEvent(ctx context.Context, source catalogsync.Store, op catalogsync.Operation, product catalogsync.Product) (*SyncResult, error) {
	switch op {
	case catalogsync.OperationCreate:
		return s.catalog.Create(ctx, source, product)
	case catalogsync.OperationUpdate:
		return s.catalog.Update(ctx, source, product, UpdateOptions{})
	case catalogsync.OperationDelete:
		return s.catalog.Delete(ctx, source, product.ID)
	default:
		return nil, fmt.Errorf("%w: %q", catalogsync.ErrInvalidOperation, op)
	}
}

// ---------------------------------------------------------------------------
// Operator API
// ---------------------------------------------------------------------------

// SyncProduct syncs a product by id. Create and update fetch the product from
// the source store first; delete needs no fetch.
func (s *SyncService) SyncProduct(ctx context.Context, req SyncProductRequest) (*SyncResult, error) {
	if !req.SourceStore.IsValid() {
		return nil, fmt.Errorf("%w: %q", catalogsync.ErrInvalidStore, req.SourceStore)
	}
	op := req.Operation
	if op == "" {
		op = catalogsync.OperationCreate
	}
	if _, err := catalogsync.ParseOperation(string(op)); err != nil {
		return nil, fmt.Errorf("%w: %q", err, op)
	}

	if op == catalogsync.OperationDelete {
		return s.catalog.Delete(ctx, req.SourceStore, req.ProductID)
	}

	product, err := s.fetchProduct(ctx, req.SourceStore, req.ProductID)
	if err != nil {
		return nil, err
	}
	return s.HandleProductEvent(ctx, req.SourceStore, op, *product)
}

// SyncInventory propagates an inventory level change
func (s *SyncService) SyncInventory(ctx context.Context, req SyncInventoryRequest) (*SyncResult, error) {
	return s.inventory.SyncInventory(ctx, req.SourceStore, req.InventoryItemID, req.LocationID, req.Quantity)
}

// BulkSync runs a bulk sync. The run is not cancelled when ctx is.
func (s *SyncService) BulkSync(ctx context.Context, source, target catalogsync.Store, opts BulkOptions) (*BulkResult, error) {
	return s.bulk.Run(context.WithoutCancel(ctx), source, target, opts)
}

// ForceResync re-pushes a tracked product in the given direction even when the
// conflict guard would skip it
func (s *SyncService) ForceResync(ctx context.Context, syncID string, direction catalogsync.Direction) (*SyncResult, error) {
	record, err := s.records.FindBySyncID(ctx, syncID)
	if err != nil {
		return nil, err
	}
	productID := record.StoreID(direction.Source)
	if productID == "" {
		return nil, fmt.Errorf("%w: record %s has no %s product", catalogsync.ErrInvalidSyncRecord, syncID, direction.Source)
	}

	product, err := s.fetchProduct(ctx, direction.Source, productID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Force resync",
		zap.String("sync_id", syncID),
		zap.String("direction", direction.String()),
	)
	return s.catalog.Update(ctx, direction.Source, *product, UpdateOptions{Force: true})
}

// ResumePendingInventory advances records stuck before inventory_synced
func (s *SyncService) ResumePendingInventory(ctx context.Context, cutoff time.Time, limit int) (catalogsync.ResumeResult, error) {
	return s.catalog.ResumePendingInventory(ctx, cutoff, limit)
}

// ---------------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------------

// GetStatus returns the record summary including variant quantities
func (s *SyncService) GetStatus(ctx context.Context, syncID string) (*RecordSummary, error) {
	record, err := s.records.FindBySyncID(ctx, syncID)
	if err != nil {
		return nil, err
	}
	summary := ToRecordSummary(record, true)
	return &summary, nil
}

// ListRecords returns a page of record summaries
func (s *SyncService) ListRecords(ctx context.Context, q ListRecordsQuery) (shared.Paginated[RecordSummary], error) {
	filter := q.Filter()
	records, total, err := s.records.List(ctx, filter)
	if err != nil {
		return shared.Paginated[RecordSummary]{}, err
	}
	items := make([]RecordSummary, 0, len(records))
	for i := range records {
		items = append(items, ToRecordSummary(&records[i], false))
	}
	return shared.NewPaginated(items, total, filter.Page, filter.PageSize), nil
}

// ListLogs returns the newest log entries first
func (s *SyncService) ListLogs(ctx context.Context, q ListLogsQuery) ([]LogSummary, error) {
	entries, err := s.logs.List(ctx, q.Filter())
	if err != nil {
		return nil, err
	}
	out := make([]LogSummary, 0, len(entries))
	for _, e := range entries {
		out = append(out, ToLogSummary(e))
	}
	return out, nil
}

func (s *SyncService) fetchProduct(ctx context.Context, store catalogsync.Store, productID string) (*catalogsync.Product, error) {
	platform, err := s.platforms.Get(store)
	if err != nil {
		return nil, err
	}
	product, err := platform.GetProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("fetch product %s from %s: %w", productID, store, err)
	}
	return product, nil
}
