package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	syncapp "github.com/storesync/backend/internal/application/catalogsync"
	"github.com/storesync/backend/internal/domain/catalogsync"
	"github.com/storesync/backend/internal/infrastructure/shopify"
	"github.com/storesync/backend/internal/infrastructure/telemetry"
	"github.com/storesync/backend/internal/interfaces/http/dto"
	"github.com/storesync/backend/internal/interfaces/http/middleware"
)

// WebhookProcessor is the part of the sync service the webhook intake drives
type WebhookProcessor interface {
	CheckDelivery(ctx context.Context, deliveryID string) syncapp.Verdict
	ReleaseDelivery(ctx context.Context, deliveryID string)
	HandleProductEvent(ctx context.Context, source catalogsync.Store, op catalogsync.Operation, product catalogsync.Product) (*syncapp.SyncResult, error)
	SyncInventory(ctx context.Context, req syncapp.SyncInventoryRequest) (*syncapp.SyncResult, error)
}

// Webhook outcomes reported to metrics
const (
	webhookOutcomeProcessed = "processed"
	webhookOutcomeSkipped   = "skipped"
	webhookOutcomeDuplicate = "duplicate"
	webhookOutcomeMalformed = "malformed"
	webhookOutcomeRejected  = "rejected"
	webhookOutcomeFailed    = "failed"
)

// WebhookHandler receives platform deliveries. Responses are the bare
// acknowledgement the platform expects, not the API envelope. The signature
// is checked by middleware.WebhookSignature before any of these run.
type WebhookHandler struct {
	processor WebhookProcessor
	metrics   *telemetry.SyncMetrics
	logger    *zap.Logger
	now       func() time.Time
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(processor WebhookProcessor, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{processor: processor, logger: logger, now: time.Now}
}

// SetMetrics enables webhook counters
func (h *WebhookHandler) SetMetrics(m *telemetry.SyncMetrics) {
	h.metrics = m
}

// ProductEvent handles products/create, products/update and products/delete
// deliveries from store.
func (h *WebhookHandler) ProductEvent(store catalogsync.Store, op catalogsync.Operation) gin.HandlerFunc {
	topic := productTopic(op)
	return func(c *gin.Context) {
		body, ok := middleware.GetRawBody(c)
		if !ok {
			h.reject(c, store, topic, http.StatusBadRequest, "Missing request body")
			return
		}

		var (
			product catalogsync.Product
			err     error
		)
		if op == catalogsync.OperationDelete {
			product.ID, err = shopify.DecodeProductDeletePayload(body)
		} else {
			product, err = shopify.DecodeProductPayload(body)
		}
		if err != nil {
			h.malformed(c, store, topic, err)
			return
		}

		h.process(c, store, topic, func(ctx context.Context) (*syncapp.SyncResult, error) {
			return h.processor.HandleProductEvent(ctx, store, op, product)
		})
	}
}

// InventoryEvent handles inventory_levels/update deliveries from store
func (h *WebhookHandler) InventoryEvent(store catalogsync.Store) gin.HandlerFunc {
	topic := catalogsync.TopicInventoryLevelsUpdate
	return func(c *gin.Context) {
		body, ok := middleware.GetRawBody(c)
		if !ok {
			h.reject(c, store, topic, http.StatusBadRequest, "Missing request body")
			return
		}

		level, err := shopify.DecodeInventoryLevelPayload(body)
		if err != nil {
			h.malformed(c, store, topic, err)
			return
		}

		if !level.Tracked {
			h.process(c, store, topic, func(context.Context) (*syncapp.SyncResult, error) {
				return &syncapp.SyncResult{
					Operation:   catalogsync.OperationInventoryUpdate,
					Status:      catalogsync.LogStatusSkipped,
					SourceStore: store,
					TargetStore: store.Other(),
					Message:     syncapp.ReasonLevelUntracked,
				}, nil
			})
			return
		}

		h.process(c, store, topic, func(ctx context.Context) (*syncapp.SyncResult, error) {
			return h.processor.SyncInventory(ctx, syncapp.SyncInventoryRequest{
				SourceStore:     store,
				InventoryItemID: level.InventoryItemID,
				LocationID:      level.LocationID,
				Quantity:        level.Available,
			})
		})
	}
}

// process runs the dedupe check and then fn, translating the outcome
func (h *WebhookHandler) process(c *gin.Context, store catalogsync.Store, topic string, fn func(context.Context) (*syncapp.SyncResult, error)) {
	ctx := c.Request.Context()
	deliveryID := c.GetHeader(shopify.HeaderWebhookID)
	log := h.logger.With(
		zap.String("store", string(store)),
		zap.String("topic", topic),
		zap.String("webhook_id", deliveryID),
		zap.String("request_id", getRequestID(c)),
	)

	if h.processor.CheckDelivery(ctx, deliveryID) == syncapp.VerdictDuplicate {
		log.Info("Duplicate webhook delivery acknowledged")
		h.metrics.RecordWebhook(ctx, string(store), topic, webhookOutcomeDuplicate)
		c.JSON(http.StatusOK, dto.WebhookAck{Received: true, Duplicate: true})
		return
	}

	result, err := fn(ctx)
	if err != nil {
		_ = c.Error(err)
		if isRetryable(err) {
			log.Error("Webhook processing failed", zap.Error(err))
			// the platform re-delivers with the same id after a 5xx
			h.processor.ReleaseDelivery(context.WithoutCancel(ctx), deliveryID)
			h.metrics.RecordWebhook(ctx, string(store), topic, webhookOutcomeFailed)
			c.JSON(http.StatusInternalServerError, dto.WebhookAck{
				Received: false,
				Error:    "Processing failed",
				Message:  err.Error(),
			})
			return
		}
		// A 2xx stops the platform from retrying a delivery that cannot succeed.
		log.Warn("Webhook rejected by sync engine", zap.Error(err))
		h.metrics.RecordWebhook(ctx, string(store), topic, webhookOutcomeRejected)
		ack := dto.WebhookAck{Received: true, Error: "Invalid data", Message: err.Error()}
		if result != nil {
			ack.SyncID = result.SyncID
		}
		c.JSON(http.StatusOK, ack)
		return
	}

	synced := !result.Skipped()
	outcome := webhookOutcomeProcessed
	if !synced {
		outcome = webhookOutcomeSkipped
	}
	log.Info("Webhook processed",
		zap.String("sync_id", result.SyncID),
		zap.String("status", string(result.Status)),
		zap.String("message", result.Message),
	)
	h.metrics.RecordWebhook(ctx, string(store), topic, outcome)
	c.JSON(http.StatusOK, dto.WebhookAck{
		Received: true,
		Synced:   &synced,
		SyncID:   result.SyncID,
		Skipped:  result.Message,
	})
}

func (h *WebhookHandler) malformed(c *gin.Context, store catalogsync.Store, topic string, err error) {
	h.logger.Warn("Malformed webhook payload",
		zap.String("store", string(store)),
		zap.String("topic", topic),
		zap.Error(err),
	)
	h.metrics.RecordWebhook(c.Request.Context(), string(store), topic, webhookOutcomeMalformed)
	c.JSON(http.StatusBadRequest, dto.WebhookAck{Received: false, Error: "Invalid payload", Message: err.Error()})
}

func (h *WebhookHandler) reject(c *gin.Context, store catalogsync.Store, topic string, status int, message string) {
	h.metrics.RecordWebhook(c.Request.Context(), string(store), topic, webhookOutcomeMalformed)
	c.JSON(status, dto.WebhookAck{Received: false, Error: message})
}

// Test accepts any JSON body without a signature, for wiring checks
func (h *WebhookHandler) Test(c *gin.Context) {
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, dto.WebhookAck{Received: false, Error: "Invalid payload", Message: err.Error()})
		return
	}
	h.logger.Info("Test webhook received",
		zap.String("topic", c.GetHeader(shopify.HeaderTopic)),
		zap.String("shop_domain", c.GetHeader(shopify.HeaderShopDomain)),
		zap.Int("fields", len(body)),
	)
	c.JSON(http.StatusOK, dto.WebhookAck{
		Received:  true,
		Timestamp: h.now().UTC().Format(time.RFC3339),
		Message:   "Test webhook processed successfully",
	})
}

// WebhookEndpoints lists the delivery paths of every store
type WebhookEndpoints struct {
	Status    string              `json:"status"`
	Endpoints map[string][]string `json:"endpoints"`
}

// Health lists the webhook endpoints this service accepts
func (h *WebhookHandler) Health(c *gin.Context) {
	endpoints := make(map[string][]string, 2)
	for _, store := range catalogsync.AllStores() {
		paths := make([]string, 0, len(catalogsync.SyncTopics()))
		for _, topic := range catalogsync.SyncTopics() {
			paths = append(paths, WebhookPath(store, topic))
		}
		endpoints[store.Slug()] = paths
	}
	c.JSON(http.StatusOK, WebhookEndpoints{Status: dto.HealthHealthy, Endpoints: endpoints})
}

// WebhookPath is the route a store delivers topic to, relative to the host
func WebhookPath(store catalogsync.Store, topic string) string {
	return "/webhooks/" + store.Slug() + "/" + topic
}

func productTopic(op catalogsync.Operation) string {
	switch op {
	case catalogsync.OperationCreate:
		return catalogsync.TopicProductsCreate
	case catalogsync.OperationDelete:
		return catalogsync.TopicProductsDelete
	default:
		return catalogsync.TopicProductsUpdate
	}
}

// isRetryable reports whether the platform should redeliver
func isRetryable(err error) bool {
	return catalogsync.IsTransient(err) || errors.Is(err, catalogsync.ErrConfigurationMissing)
}
