package catalogsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/storesync/backend/internal/domain/catalogsync"
	"github.com/storesync/backend/internal/infrastructure/telemetry"
)

// InventoryReconciler copies inventory level changes to the other store
type InventoryReconciler struct {
	platforms catalogsync.PlatformRegistry
	records   catalogsync.SyncRecordRepository
	logs      catalogsync.SyncLogRepository
	locks     *KeyedLock
	metrics   *telemetry.SyncMetrics
	logger    *zap.Logger
	now       func() time.Time
}

// NewInventoryReconciler creates a new InventoryReconciler
func NewInventoryReconciler(
	platforms catalogsync.PlatformRegistry,
	records catalogsync.SyncRecordRepository,
	logs catalogsync.SyncLogRepository,
	locks *KeyedLock,
	logger *zap.Logger,
) *InventoryReconciler {
	return &InventoryReconciler{
		platforms: platforms,
		records:   records,
		logs:      logs,
		locks:     locks,
		logger:    logger,
		now:       time.Now,
	}
}

// SetSyncMetrics sets the sync metrics collector
func (r *InventoryReconciler) SetSyncMetrics(m *telemetry.SyncMetrics) {
	r.metrics = m
}

// SyncInventory sets the target level of the variant owning inventoryItemID on
// source to quantity. locationID is the source location; the target always
// receives the update at its primary location.
func (r *InventoryReconciler) SyncInventory(ctx context.Context, source catalogsync.Store, inventoryItemID, locationID string, quantity int) (*SyncResult, error) {
	result := newSyncResult(catalogsync.OperationInventoryUpdate, source, "")
	result.Quantity = &quantity

	fn := func(ctx context.Context, result *SyncResult) (*SyncResult, error) {
		trace.SpanFromContext(ctx).SetAttributes(attribute.String(telemetry.SpanAttrInventoryItemID, inventoryItemID))
		found, err := r.records.FindByInventoryItem(ctx, source, inventoryItemID)
		if errors.Is(err, catalogsync.ErrMappingNotFound) {
			return result, fmt.Errorf("%w: inventory item %s on %s", catalogsync.ErrVariantNotFound, inventoryItemID, source)
		}
		if err != nil {
			return result, err
		}

		defer r.locks.Lock(found.SyncID)()
		record, err := r.records.FindBySyncID(ctx, found.SyncID)
		if err != nil {
			if errors.Is(err, catalogsync.ErrMappingNotFound) {
				err = fmt.Errorf("%w: inventory item %s on %s", catalogsync.ErrVariantNotFound, inventoryItemID, source)
			}
			return result, err
		}
		return r.apply(ctx, source, record, inventoryItemID, locationID, quantity, result)
	}
	if !source.IsValid() {
		fn = invalidStore(source)
	}

	return runTracked(ctx, trackDeps{logs: r.logs, metrics: r.metrics, logger: r.logger, now: r.now}, result, fn)
}

func (r *InventoryReconciler) apply(
	ctx context.Context,
	source catalogsync.Store,
	record *catalogsync.SyncRecord,
	inventoryItemID, locationID string,
	quantity int,
	result *SyncResult,
) (*SyncResult, error) {
	target := source.Other()
	result.SyncID = record.SyncID
	result.SourceProductID = record.StoreID(source)
	result.TargetProductID = record.StoreID(target)

	idx := record.FindVariantByInventoryItem(source, inventoryItemID)
	if idx < 0 {
		return result, fmt.Errorf("%w: inventory item %s on %s", catalogsync.ErrVariantNotFound, inventoryItemID, source)
	}
	variant := &record.Variants[idx]
	result.VariantSKU = variant.SKU

	// our own write coming back from the target
	if variant.InventoryQuantity(source) == quantity && variant.InventoryQuantity(target) == quantity {
		return result.skip(ReasonConverged), nil
	}

	targetItem := variant.InventoryItemID(target)
	if targetItem == "" {
		return result, fmt.Errorf("%w: no %s inventory item for sku %q", catalogsync.ErrMissingTargetMapping, target, variant.SKU)
	}

	platform, err := r.platforms.Get(target)
	if err != nil {
		return result, err
	}
	targetLoc, err := primaryLocation(ctx, platform)
	if err != nil {
		return result, err
	}

	ctx = context.WithoutCancel(ctx)
	if _, err := platform.UpdateInventoryLevel(ctx, targetItem, targetLoc.ID, quantity); err != nil {
		return result, fmt.Errorf("set inventory of %s on %s: %w", targetItem, target, err)
	}

	variant.SetInventoryQuantity(source, quantity)
	variant.SetInventoryQuantity(target, quantity)
	record.LastSyncedAt = r.now()
	if err := r.records.Save(ctx, record); err != nil {
		return result, err
	}

	r.logger.Info("Inventory synced",
		zap.String("sync_id", record.SyncID),
		zap.String("source_store", string(source)),
		zap.String("sku", variant.SKU),
		zap.String("source_location_id", locationID),
		zap.String("target_location_id", targetLoc.ID),
		zap.Int("quantity", quantity),
	)
	return result.succeed(), nil
}
