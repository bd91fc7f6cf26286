package catalogsync

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/storesync/backend/internal/domain/shared"
)

// Verdict classifies a webhook delivery
type Verdict int

const (
	// VerdictFresh means the delivery should be processed
	VerdictFresh Verdict = iota
	// VerdictDuplicate means the delivery was already accepted
	VerdictDuplicate
)

func (v Verdict) String() string {
	if v == VerdictDuplicate {
		return "duplicate"
	}
	return "fresh"
}

// WebhookDeduplicator suppresses re-delivered webhooks by delivery id
type WebhookDeduplicator struct {
	store  shared.IdempotencyStore
	config shared.IdempotencyConfig
	logger *zap.Logger
}

// NewWebhookDeduplicator creates a new WebhookDeduplicator
func NewWebhookDeduplicator(store shared.IdempotencyStore, config shared.IdempotencyConfig, logger *zap.Logger) *WebhookDeduplicator {
	if config.TTL <= 0 {
		config.TTL = shared.DefaultIdempotencyConfig().TTL
	}
	return &WebhookDeduplicator{store: store, config: config, logger: logger}
}

// Check marks deliveryID as seen and reports whether it was seen before.
// Store failures are logged and the delivery is treated as fresh.
func (d *WebhookDeduplicator) Check(ctx context.Context, deliveryID string) Verdict {
	if deliveryID == "" || !d.config.Enabled || d.store == nil {
		return VerdictFresh
	}
	fresh, err := d.store.MarkProcessed(ctx, deliveryID, d.config.TTL)
	if err != nil {
		d.logger.Warn("Dedupe store unavailable, processing delivery",
			zap.String("webhook_id", deliveryID),
			zap.Error(err),
		)
		return VerdictFresh
	}
	if !fresh {
		return VerdictDuplicate
	}
	return VerdictFresh
}

// Release forgets deliveryID after processing failed in a way the platform
// will retry, so the re-delivery is not mistaken for a duplicate.
func (d *WebhookDeduplicator) Release(ctx context.Context, deliveryID string) {
	if deliveryID == "" || !d.config.Enabled || d.store == nil {
		return
	}
	if err := d.store.Release(ctx, deliveryID); err != nil {
		d.logger.Warn("Failed to release delivery id, re-delivery will be dropped",
			zap.String("webhook_id", deliveryID),
			zap.Error(err),
		)
	}
}

// TTL returns how long delivery ids are remembered
func (d *WebhookDeduplicator) TTL() time.Duration {
	return d.config.TTL
}

// Size returns the number of remembered ids when the store can report it, else -1
func (d *WebhookDeduplicator) Size() int {
	if sized, ok := d.store.(interface{ Size() int }); ok {
		return sized.Size()
	}
	return -1
}
