package catalogsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/storesync/backend/internal/domain/catalogsync"
)

// BulkConfig tunes bulk runs
type BulkConfig struct {
	DefaultLimit int
	MaxLimit     int
	// ItemDelay paces calls to stay within the target platform's quota
	ItemDelay time.Duration
}

// DefaultBulkConfig returns the default bulk configuration
func DefaultBulkConfig() BulkConfig {
	return BulkConfig{
		DefaultLimit: 50,
		MaxLimit:     250,
		ItemDelay:    500 * time.Millisecond,
	}
}

// BulkOrchestrator pushes a page of the source catalog through the create path
type BulkOrchestrator struct {
	platforms catalogsync.PlatformRegistry
	records   catalogsync.SyncRecordReader
	configs   catalogsync.ConfigEntryRepository
	catalog   *CatalogReconciler
	config    BulkConfig
	logger    *zap.Logger
	now       func() time.Time
}

// NewBulkOrchestrator creates a new BulkOrchestrator
func NewBulkOrchestrator(
	platforms catalogsync.PlatformRegistry,
	records catalogsync.SyncRecordReader,
	configs catalogsync.ConfigEntryRepository,
	catalog *CatalogReconciler,
	config BulkConfig,
	logger *zap.Logger,
) *BulkOrchestrator {
	defaults := DefaultBulkConfig()
	if config.DefaultLimit <= 0 {
		config.DefaultLimit = defaults.DefaultLimit
	}
	if config.MaxLimit <= 0 {
		config.MaxLimit = defaults.MaxLimit
	}
	if config.ItemDelay < 0 {
		config.ItemDelay = 0
	}
	return &BulkOrchestrator{
		platforms: platforms,
		records:   records,
		configs:   configs,
		catalog:   catalog,
		config:    config,
		logger:    logger,
		now:       time.Now,
	}
}

// Run reads up to opts.Limit products from source and syncs each one to
// target. A failing product is counted and never aborts the batch.
func (o *BulkOrchestrator) Run(ctx context.Context, source, target catalogsync.Store, opts BulkOptions) (*BulkResult, error) {
	if !source.IsValid() {
		return nil, fmt.Errorf("%w: %q", catalogsync.ErrInvalidStore, source)
	}
	if !target.IsValid() {
		return nil, fmt.Errorf("%w: %q", catalogsync.ErrInvalidStore, target)
	}
	if target != source.Other() {
		return nil, catalogsync.ErrSameStore
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = o.config.DefaultLimit
	}
	limit = min(limit, o.config.MaxLimit)

	platform, err := o.platforms.Get(source)
	if err != nil {
		return nil, err
	}
	products, err := platform.GetAllProducts(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list products on %s: %w", source, err)
	}

	result := &BulkResult{
		SourceStore: source,
		TargetStore: target,
		Total:       len(products),
		Errors:      []BulkError{},
		StartedAt:   o.now(),
	}
	o.logger.Info("Bulk sync started",
		zap.String("source_store", string(source)),
		zap.String("target_store", string(target)),
		zap.Int("products", len(products)),
		zap.Bool("skip_existing", opts.SkipExisting),
	)

	pacer := newItemPacer(o.config.ItemDelay)
	for _, product := range products {
		if err := pacer.Wait(ctx); err != nil {
			result.CompletedAt = o.now()
			return result, err
		}
		o.syncOne(ctx, source, product, opts, result)
	}

	result.CompletedAt = o.now()
	if o.configs != nil {
		if err := o.configs.Set(context.WithoutCancel(ctx), catalogsync.ConfigKeyLastBulkSyncAt, result.CompletedAt.UTC().Format(time.RFC3339)); err != nil {
			o.logger.Warn("Failed to record bulk sync time", zap.Error(err))
		}
	}

	o.logger.Info("Bulk sync completed",
		zap.String("source_store", string(source)),
		zap.Int("total", result.Total),
		zap.Int("success", result.Success),
		zap.Int("failed", result.Failed),
		zap.Int("skipped", result.Skipped),
	)
	return result, nil
}

func (o *BulkOrchestrator) syncOne(ctx context.Context, source catalogsync.Store, product catalogsync.Product, opts BulkOptions, result *BulkResult) {
	fail := func(err error) {
		result.Failed++
		result.Errors = append(result.Errors, BulkError{ProductID: product.ID, Title: product.Title, Error: err.Error()})
	}

	existing, err := o.records.FindByStoreProductID(ctx, source, product.ID)
	if err != nil && !errors.Is(err, catalogsync.ErrMappingNotFound) {
		fail(err)
		return
	}
	mapped := existing != nil && existing.HasStoreID(source.Other())

	var res *SyncResult
	switch {
	case mapped && opts.SkipExisting:
		result.Skipped++
		return
	case mapped:
		res, err = o.catalog.Update(ctx, source, product, UpdateOptions{Force: true})
	default:
		res, err = o.catalog.Create(ctx, source, product)
	}

	switch {
	case err != nil:
		fail(err)
	case res.Skipped():
		result.Skipped++
	default:
		result.Success++
	}
}

// newItemPacer allows one item per delay. The first item goes through at once.
func newItemPacer(delay time.Duration) *rate.Limiter {
	if delay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(delay), 1)
}
