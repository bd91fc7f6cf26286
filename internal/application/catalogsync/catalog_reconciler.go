package catalogsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/storesync/backend/internal/domain/catalogsync"
	"github.com/storesync/backend/internal/infrastructure/telemetry"
)

// Skip reasons reported in SyncResult.Message
const (
	ReasonAlreadySynced  = "already synced"
	ReasonUpToDate       = "already up to date"
	ReasonEcho           = "echo of a change this engine applied"
	ReasonNotTracked     = "product is not tracked"
	ReasonConverged      = "inventory already converged"
	ReasonLevelUntracked = "inventory level is not tracked"
)

// UpdateOptions controls Update
type UpdateOptions struct {
	// Force applies the change even when the conflict guard would skip it
	Force bool
}

// CatalogReconciler propagates product create, update and delete events to
// the other store and keeps the SyncRecord in step
type CatalogReconciler struct {
	platforms catalogsync.PlatformRegistry
	records   catalogsync.SyncRecordRepository
	logs      catalogsync.SyncLogRepository
	resolver  *IdentityResolver
	locks     *KeyedLock
	metrics   *telemetry.SyncMetrics
	logger    *zap.Logger
	now       func() time.Time
}

// NewCatalogReconciler creates a new CatalogReconciler. locks serializes work
// per sync id and must be shared with the InventoryReconciler.
func NewCatalogReconciler(
	platforms catalogsync.PlatformRegistry,
	records catalogsync.SyncRecordRepository,
	logs catalogsync.SyncLogRepository,
	locks *KeyedLock,
	logger *zap.Logger,
) *CatalogReconciler {
	return &CatalogReconciler{
		platforms: platforms,
		records:   records,
		logs:      logs,
		resolver:  NewIdentityResolver(records),
		locks:     locks,
		logger:    logger,
		now:       time.Now,
	}
}

// SetSyncMetrics sets the sync metrics collector
func (r *CatalogReconciler) SetSyncMetrics(m *telemetry.SyncMetrics) {
	r.metrics = m
}

// ---------------------------------------------------------------------------
// Create
// ---------------------------------------------------------------------------

// Create copies a product created on source to the other store. A product that
// is already mapped on both stores is skipped.
func (r *CatalogReconciler) Create(ctx context.Context, source catalogsync.Store, product catalogsync.Product) (*SyncResult, error) {
	product = product.Sanitize()
	return r.track(ctx, catalogsync.OperationCreate, source, product.ID, func(ctx context.Context, result *SyncResult) (*SyncResult, error) {
		release := r.resolver.Acquire(source, product.ID)
		defer release()

		record, syncID, err := r.resolveLocked(ctx, source, product, result)
		if err != nil {
			return result, err
		}
		defer r.locks.Lock(syncID)()
		if record, err = r.reload(ctx, record, syncID, source, product.ID); err != nil {
			return result, err
		}

		if record != nil && record.HasStoreID(source.Other()) {
			result.TargetProductID = record.StoreID(source.Other())
			return result.skip(ReasonAlreadySynced), nil
		}
		return r.create(ctx, source, product, syncID, record, result)
	})
}

func (r *CatalogReconciler) create(
	ctx context.Context,
	source catalogsync.Store,
	product catalogsync.Product,
	syncID string,
	existing *catalogsync.SyncRecord,
	result *SyncResult,
) (*SyncResult, error) {
	target := source.Other()
	result.Operation = catalogsync.OperationCreate
	result.SyncID = syncID

	platform, err := r.platforms.Get(target)
	if err != nil {
		return result, err
	}

	ctx = context.WithoutCancel(ctx)
	created, err := platform.CreateProduct(ctx, catalogsync.NewProductInput(product))
	if err != nil {
		return result, fmt.Errorf("create product on %s: %w", target, err)
	}
	result.TargetProductID = created.ID

	pairs := catalogsync.PairVariants(product.Variants, created.Variants)
	now := r.now()

	var record *catalogsync.SyncRecord
	if existing == nil {
		record, err = catalogsync.NewSyncRecord(syncID, source, product, created.ID, catalogsync.BuildVariantMappings(source, pairs), now)
		if err != nil {
			return result, err
		}
	} else {
		record = existing
		record.SetStoreID(source, product.ID)
		record.SetStoreID(target, created.ID)
		record.MirrorCatalog(product)
		record.Variants = catalogsync.MergeVariantMappings(record.Variants, source, pairs)
		record.RecordUpdate(source, product.UpdatedAt, now)
		record.State = catalogsync.SyncStateCreated
	}
	record.ObserveUpdatedAt(target, created.UpdatedAt)

	if err := r.records.Save(ctx, record); err != nil {
		r.logger.Error("Product created on target but sync record not saved",
			zap.String("sync_id", syncID),
			zap.String("target_store", string(target)),
			zap.String("target_product_id", created.ID),
			zap.Error(err),
		)
		return result, err
	}
	result.succeed()

	if r.propagateInitialInventory(ctx, record, source) {
		record.MarkInventorySynced()
		if err := r.records.Save(ctx, record); err != nil {
			r.logger.Warn("Inventory synced but state not advanced",
				zap.String("sync_id", syncID),
				zap.Error(err),
			)
		} else {
			result.InventorySynced = true
		}
	}

	r.logger.Info("Product created on target",
		zap.String("sync_id", syncID),
		zap.String("source_store", string(source)),
		zap.String("target_product_id", created.ID),
		zap.Int("variants", len(record.Variants)),
		zap.Bool("inventory_synced", result.InventorySynced),
	)
	return result, nil
}

// ---------------------------------------------------------------------------
// Update
// ---------------------------------------------------------------------------

// Update propagates an edit made on source. Unknown products and records
// without a target id are created instead.
func (r *CatalogReconciler) Update(ctx context.Context, source catalogsync.Store, product catalogsync.Product, opts UpdateOptions) (*SyncResult, error) {
	product = product.Sanitize()
	return r.track(ctx, catalogsync.OperationUpdate, source, product.ID, func(ctx context.Context, result *SyncResult) (*SyncResult, error) {
		release := r.resolver.Acquire(source, product.ID)
		defer release()

		record, syncID, err := r.resolveLocked(ctx, source, product, result)
		if err != nil {
			return result, err
		}
		defer r.locks.Lock(syncID)()
		if record, err = r.reload(ctx, record, syncID, source, product.ID); err != nil {
			return result, err
		}

		if opts.Force && record != nil {
			// hand the record to the target so the edit is treated as foreign
			record.LastUpdatedByStore = source.Other()
		}
		decision := catalogsync.Decide(record, source, product.UpdatedAt)
		if opts.Force && decision == catalogsync.DecisionSkip {
			decision = catalogsync.DecisionApply
		}

		switch decision {
		case catalogsync.DecisionTreatAsCreate:
			r.logger.Info("No target product for update, creating",
				zap.String("sync_id", syncID),
				zap.String("source_store", string(source)),
				zap.String("product_id", product.ID),
			)
			return r.create(ctx, source, product, syncID, record, result)
		case catalogsync.DecisionSkip:
			result.TargetProductID = record.StoreID(source.Other())
			reason := ReasonUpToDate
			if record.LastUpdatedByStore != source {
				reason = ReasonEcho
			}
			r.logger.Debug("Skipping update",
				zap.String("sync_id", syncID),
				zap.String("source_store", string(source)),
				zap.String("reason", reason),
			)
			return result.skip(reason), nil
		default:
			return r.update(ctx, source, product, record, result)
		}
	})
}

func (r *CatalogReconciler) update(
	ctx context.Context,
	source catalogsync.Store,
	product catalogsync.Product,
	record *catalogsync.SyncRecord,
	result *SyncResult,
) (*SyncResult, error) {
	target := source.Other()
	targetID := record.StoreID(target)
	result.TargetProductID = targetID

	platform, err := r.platforms.Get(target)
	if err != nil {
		return result, err
	}

	ctx = context.WithoutCancel(ctx)
	updated, err := platform.UpdateProduct(ctx, targetID, catalogsync.NewProductInput(product))
	if err != nil {
		return result, fmt.Errorf("update product %s on %s: %w", targetID, target, err)
	}

	pairs := catalogsync.PairVariants(product.Variants, updated.Variants)
	record.SetStoreID(source, product.ID)
	record.MirrorCatalog(product)
	record.Variants = catalogsync.MergeVariantMappings(record.Variants, source, pairs)
	record.RecordUpdate(source, product.UpdatedAt, r.now())
	record.ObserveUpdatedAt(target, updated.UpdatedAt)

	if err := r.records.Save(ctx, record); err != nil {
		return result, err
	}

	r.logger.Info("Product updated on target",
		zap.String("sync_id", record.SyncID),
		zap.String("source_store", string(source)),
		zap.String("target_product_id", targetID),
		zap.Int64("version", record.Version),
	)
	return result.succeed(), nil
}

// ---------------------------------------------------------------------------
// Delete
// ---------------------------------------------------------------------------

// Delete removes the counterpart of a product deleted on source. The record is
// only removed after the remote delete succeeded.
func (r *CatalogReconciler) Delete(ctx context.Context, source catalogsync.Store, productID string) (*SyncResult, error) {
	return r.track(ctx, catalogsync.OperationDelete, source, productID, func(ctx context.Context, result *SyncResult) (*SyncResult, error) {
		release := r.resolver.Acquire(source, productID)
		defer release()

		record, err := r.records.FindByStoreProductID(ctx, source, productID)
		if errors.Is(err, catalogsync.ErrMappingNotFound) {
			return result.skip(ReasonNotTracked), nil
		}
		if err != nil {
			return result, err
		}
		result.SyncID = record.SyncID

		defer r.locks.Lock(record.SyncID)()
		record, err = r.records.FindBySyncID(ctx, record.SyncID)
		if errors.Is(err, catalogsync.ErrMappingNotFound) {
			return result.skip(ReasonNotTracked), nil
		}
		if err != nil {
			return result, err
		}
		return r.delete(ctx, source, record, result)
	})
}

func (r *CatalogReconciler) delete(ctx context.Context, source catalogsync.Store, record *catalogsync.SyncRecord, result *SyncResult) (*SyncResult, error) {
	target := source.Other()
	targetID := record.StoreID(target)
	result.TargetProductID = targetID

	ctx = context.WithoutCancel(ctx)
	if targetID != "" {
		platform, err := r.platforms.Get(target)
		if err != nil {
			return result, err
		}
		if err := platform.DeleteProduct(ctx, targetID); err != nil {
			return result, fmt.Errorf("delete product %s on %s: %w", targetID, target, err)
		}
	}

	if err := r.records.Delete(ctx, record.SyncID); err != nil {
		return result, err
	}

	r.logger.Info("Product deleted",
		zap.String("sync_id", record.SyncID),
		zap.String("source_store", string(source)),
		zap.String("target_product_id", targetID),
	)
	return result.succeed(), nil
}

// ---------------------------------------------------------------------------
// Initial inventory
// ---------------------------------------------------------------------------

// propagateInitialInventory copies the source level of every paired variant to
// the target's primary location. It returns true when no variant failed;
// variants without inventory items on both sides are not counted.
func (r *CatalogReconciler) propagateInitialInventory(ctx context.Context, record *catalogsync.SyncRecord, source catalogsync.Store) bool {
	target := source.Other()
	log := r.logger.With(zap.String("sync_id", record.SyncID), zap.String("source_store", string(source)))

	sourcePlatform, err := r.platforms.Get(source)
	if err != nil {
		log.Warn("Initial inventory skipped: source platform unavailable", zap.Error(err))
		return false
	}
	targetPlatform, err := r.platforms.Get(target)
	if err != nil {
		log.Warn("Initial inventory skipped: target platform unavailable", zap.Error(err))
		return false
	}
	sourceLoc, err := primaryLocation(ctx, sourcePlatform)
	if err != nil {
		log.Warn("Initial inventory skipped: no source location", zap.Error(err))
		return false
	}
	targetLoc, err := primaryLocation(ctx, targetPlatform)
	if err != nil {
		log.Warn("Initial inventory skipped: no target location", zap.Error(err))
		return false
	}

	ok := true
	for i := range record.Variants {
		v := &record.Variants[i]
		sourceItem, targetItem := v.InventoryItemID(source), v.InventoryItemID(target)
		if sourceItem == "" || targetItem == "" {
			continue
		}

		level, err := sourcePlatform.GetInventoryLevel(ctx, sourceItem, sourceLoc.ID)
		if errors.Is(err, catalogsync.ErrMissingTargetMapping) {
			// not stocked at the source location
			continue
		}
		if err != nil {
			log.Warn("Failed to read source inventory level", zap.String("sku", v.SKU), zap.Error(err))
			ok = false
			continue
		}
		if _, err := targetPlatform.UpdateInventoryLevel(ctx, targetItem, targetLoc.ID, level.Available); err != nil {
			log.Warn("Failed to set target inventory level", zap.String("sku", v.SKU), zap.Error(err))
			ok = false
			continue
		}
		v.SetInventoryQuantity(source, level.Available)
		v.SetInventoryQuantity(target, level.Available)
	}
	return ok
}

// ResumePendingInventory re-runs initial inventory propagation for records
// still in the created state that were last synced before cutoff
func (r *CatalogReconciler) ResumePendingInventory(ctx context.Context, cutoff time.Time, limit int) (catalogsync.ResumeResult, error) {
	pending, err := r.records.FindPendingInventory(ctx, cutoff, limit)
	if err != nil {
		return catalogsync.ResumeResult{}, err
	}

	result := catalogsync.ResumeResult{Scanned: len(pending)}
	for i := range pending {
		if ctx.Err() != nil {
			break
		}
		if r.resumeOne(ctx, pending[i].SyncID) {
			result.Advanced++
		} else {
			result.Failed++
		}
	}
	return result, nil
}

func (r *CatalogReconciler) resumeOne(ctx context.Context, syncID string) bool {
	defer r.locks.Lock(syncID)()

	record, err := r.records.FindBySyncID(ctx, syncID)
	if err != nil {
		// deleted since the scan
		return errors.Is(err, catalogsync.ErrMappingNotFound)
	}
	if !record.NeedsInventoryResume() {
		return true
	}

	ctx = context.WithoutCancel(ctx)
	if !r.propagateInitialInventory(ctx, record, record.LastUpdatedByStore) {
		return false
	}
	record.MarkInventorySynced()
	record.LastSyncedAt = r.now()
	if err := r.records.Save(ctx, record); err != nil {
		r.logger.Warn("Failed to advance sync record", zap.String("sync_id", syncID), zap.Error(err))
		return false
	}
	return true
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// syncFunc performs one operation and returns its result. The result passed in
// is pre-filled and marked failed.
type syncFunc func(ctx context.Context, result *SyncResult) (*SyncResult, error)

// track runs fn inside a span, then appends exactly one log entry and records
// metrics whatever the outcome
func (r *CatalogReconciler) track(ctx context.Context, op catalogsync.Operation, source catalogsync.Store, sourceProductID string, fn syncFunc) (*SyncResult, error) {
	if !source.IsValid() {
		fn = invalidStore(source)
	}
	return runTracked(ctx, r.trackDeps(), newSyncResult(op, source, sourceProductID), fn)
}

func (r *CatalogReconciler) trackDeps() trackDeps {
	return trackDeps{logs: r.logs, metrics: r.metrics, logger: r.logger, now: r.now}
}

func invalidStore(source catalogsync.Store) syncFunc {
	return func(context.Context, *SyncResult) (*SyncResult, error) {
		return nil, fmt.Errorf("%w: %q", catalogsync.ErrInvalidStore, source)
	}
}

// resolveLocked resolves the sync id for product. The caller holds the
// external id lock.
func (r *CatalogReconciler) resolveLocked(ctx context.Context, source catalogsync.Store, product catalogsync.Product, result *SyncResult) (*catalogsync.SyncRecord, string, error) {
	res, err := r.resolver.Resolve(ctx, source, product)
	if err != nil {
		return nil, "", err
	}
	result.SyncID = res.SyncID
	return res.Existing, res.SyncID, nil
}

// reload re-reads record after its sync id lock was taken. A generated
// resolution is looked up again: a create running under the same id may have
// saved the record, mapping this product as its target, while we waited.
func (r *CatalogReconciler) reload(
	ctx context.Context,
	record *catalogsync.SyncRecord,
	syncID string,
	source catalogsync.Store,
	productID string,
) (*catalogsync.SyncRecord, error) {
	if record != nil {
		return optionalRecord(r.records.FindBySyncID(ctx, record.SyncID))
	}

	fresh, err := optionalRecord(r.records.FindBySyncID(ctx, syncID))
	if err != nil {
		return nil, err
	}
	if fresh != nil {
		if owner := fresh.StoreID(source); owner == "" || owner == productID {
			return fresh, nil
		}
	}
	if productID != "" {
		byStore, err := optionalRecord(r.records.FindByStoreProductID(ctx, source, productID))
		if err != nil || byStore != nil {
			return byStore, err
		}
	}
	if fresh != nil {
		// the generated id now belongs to another product; a retry resolves a new one
		return nil, fmt.Errorf("%w: sync id %s was taken by another product", catalogsync.ErrVersionConflict, syncID)
	}
	return nil, nil
}

// optionalRecord maps ErrMappingNotFound to a nil record
func optionalRecord(record *catalogsync.SyncRecord, err error) (*catalogsync.SyncRecord, error) {
	if errors.Is(err, catalogsync.ErrMappingNotFound) {
		return nil, nil
	}
	return record, err
}

// primaryLocation returns the platform's primary stock location
func primaryLocation(ctx context.Context, platform catalogsync.CatalogPlatform) (catalogsync.Location, error) {
	locations, err := platform.GetLocations(ctx)
	if err != nil {
		return catalogsync.Location{}, err
	}
	loc, ok := catalogsync.PrimaryLocation(locations)
	if !ok {
		return catalogsync.Location{}, fmt.Errorf("%w: no location on %s", catalogsync.ErrMissingTargetMapping, platform.Store())
	}
	return loc, nil
}

// trackDeps are the collaborators shared by tracked operations
type trackDeps struct {
	logs    catalogsync.SyncLogRepository
	metrics *telemetry.SyncMetrics
	logger  *zap.Logger
	now     func() time.Time
}

func runTracked(ctx context.Context, deps trackDeps, result *SyncResult, fn syncFunc) (*SyncResult, error) {
	start := deps.now()
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanName("catalogsync", string(result.Operation)),
		attribute.String(telemetry.SpanAttrSourceStore, string(result.SourceStore)),
		attribute.String(telemetry.SpanAttrProductID, result.SourceProductID),
	)
	defer span.End()

	out, err := fn(ctx, result)
	if out == nil {
		out = result
	}
	if err != nil {
		out.Status = catalogsync.LogStatusFailed
		out.Error = err.Error()
		telemetry.RecordError(span, err)
		deps.logger.Error("Sync operation failed",
			zap.String("operation", string(out.Operation)),
			zap.String("sync_id", out.SyncID),
			zap.String("source_store", string(out.SourceStore)),
			zap.String("source_product_id", out.SourceProductID),
			zap.Error(err),
		)
	}
	span.SetAttributes(
		attribute.String(telemetry.SpanAttrSyncID, out.SyncID),
		attribute.String(telemetry.SpanAttrOperation, string(out.Operation)),
		attribute.String("sync.status", string(out.Status)),
	)

	if appendErr := deps.logs.Append(context.WithoutCancel(ctx), out.logEntry(deps.now())); appendErr != nil {
		deps.logger.Warn("Failed to append sync log", zap.String("sync_id", out.SyncID), zap.Error(appendErr))
	}
	deps.metrics.RecordOperation(ctx, string(out.Operation), string(out.SourceStore), string(out.Status), deps.now().Sub(start))
	return out, err
}
