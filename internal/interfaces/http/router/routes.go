package router

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/storesync/backend/internal/domain/catalogsync"
	"github.com/storesync/backend/internal/infrastructure/auth"
	"github.com/storesync/backend/internal/infrastructure/config"
	"github.com/storesync/backend/internal/infrastructure/logger"
	"github.com/storesync/backend/internal/interfaces/http/handler"
	"github.com/storesync/backend/internal/interfaces/http/middleware"
)

// Handlers are the endpoint groups served by the engine
type Handlers struct {
	Health  *handler.HealthHandler
	Webhook *handler.WebhookHandler
	Sync    *handler.SyncHandler
}

// EngineConfig carries what the engine needs beyond the handlers
type EngineConfig struct {
	HTTP    config.HTTPConfig
	Webhook config.WebhookConfig
	// ServiceName names the otelgin spans
	ServiceName    string
	TracingEnabled bool
	// Meter enables HTTP metrics when set
	Meter metric.Meter

	// WebhookSecrets holds the signing secret per store
	WebhookSecrets map[catalogsync.Store]string
	JWT            *auth.JWTService
	// RateLimiter guards the operator API when set
	RateLimiter *middleware.RateLimiter

	Logger *zap.Logger
}

// NewEngine builds the gin engine with the global middleware chain and every
// route mounted.
func NewEngine(cfg EngineConfig, h Handlers) (*gin.Engine, error) {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		return nil, err
	}

	// Order matters: the request id must exist before the access log and
	// the span attributes read it.
	engine.Use(
		middleware.RequestID(),
		logger.GinMiddleware(log),
		logger.Recovery(log),
		middleware.Tracing(middleware.TracingConfig{ServiceName: cfg.ServiceName, Enabled: cfg.TracingEnabled}),
		middleware.SpanAttributes(),
		middleware.HTTPMetrics(cfg.Meter, log),
		middleware.Secure(),
		middleware.CORSWithConfig(corsConfig(cfg.HTTP)),
	)

	r := NewRouter(engine, WithAPIVersion("v1"))
	r.RegisterRoot(HealthRoutes(h.Health))
	r.RegisterRoot(WebhookRoutes(h.Webhook, cfg.WebhookSecrets, cfg.Webhook.MaxBodySize, log))
	r.Register(SyncRoutes(h.Sync, cfg, log))
	r.Setup()

	return engine, nil
}

func corsConfig(httpCfg config.HTTPConfig) middleware.CORSConfig {
	cors := middleware.DefaultCORSConfig()
	cors.AllowOrigins = httpCfg.CORSAllowOrigins
	if len(httpCfg.CORSAllowMethods) > 0 {
		cors.AllowMethods = httpCfg.CORSAllowMethods
	}
	if len(httpCfg.CORSAllowHeaders) > 0 {
		cors.AllowHeaders = httpCfg.CORSAllowHeaders
	}
	if httpCfg.RateLimitEnabled {
		cors.ExposeHeaders = append(cors.ExposeHeaders, "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After")
	}
	return cors
}

// HealthRoutes mounts /health and /health/detailed
func HealthRoutes(h *handler.HealthHandler) *DomainGroup {
	return NewDomainGroup("health", "/health").
		GET("", h.Health).
		GET("/detailed", h.Detailed)
}

// WebhookRoutes mounts the platform delivery endpoints. Each store has its
// own group so its deliveries are verified with its own secret.
func WebhookRoutes(h *handler.WebhookHandler, secrets map[catalogsync.Store]string, maxBody int64, log *zap.Logger) *DomainGroup {
	webhooks := NewDomainGroup("webhooks", "/webhooks").
		POST("/test", middleware.BodyLimit(maxBody), h.Test).
		GET("/health", h.Health)

	for _, store := range catalogsync.AllStores() {
		webhooks.Group(store.Slug(), "/"+store.Slug()).
			Use(middleware.WebhookSignature(store, secrets[store], maxBody, log)).
			POST("/"+catalogsync.TopicProductsCreate, h.ProductEvent(store, catalogsync.OperationCreate)).
			POST("/"+catalogsync.TopicProductsUpdate, h.ProductEvent(store, catalogsync.OperationUpdate)).
			POST("/"+catalogsync.TopicProductsDelete, h.ProductEvent(store, catalogsync.OperationDelete)).
			POST("/"+catalogsync.TopicInventoryLevelsUpdate, h.InventoryEvent(store))
	}
	return webhooks
}

// SyncRoutes mounts the operator API: triggers need sync:write, queries
// sync:read.
func SyncRoutes(h *handler.SyncHandler, cfg EngineConfig, log *zap.Logger) *DomainGroup {
	api := NewDomainGroup("sync", "/sync").
		Use(middleware.JWTAuth(cfg.JWT, log))
	if cfg.RateLimiter != nil {
		api.Use(middleware.RateLimit(cfg.RateLimiter))
	}

	api.Group("triggers", "").
		Use(middleware.RequireScope(auth.ScopeSyncWrite), middleware.BodyLimit(cfg.HTTP.MaxBodySize)).
		POST("/product", h.SyncProduct).
		POST("/inventory", h.SyncInventory).
		POST("/bulk", h.BulkSync).
		POST("/force-resync", h.ForceResync)

	api.Group("queries", "").
		Use(middleware.RequireScope(auth.ScopeSyncRead)).
		GET("/status/:syncId", h.GetStatus).
		GET("/products", h.ListProducts).
		GET("/logs", h.ListLogs)

	return api
}
