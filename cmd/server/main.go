package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	syncapp "github.com/storesync/backend/internal/application/catalogsync"
	"github.com/storesync/backend/internal/domain/catalogsync"
	"github.com/storesync/backend/internal/domain/shared"
	"github.com/storesync/backend/internal/infrastructure/auth"
	"github.com/storesync/backend/internal/infrastructure/cache"
	"github.com/storesync/backend/internal/infrastructure/config"
	"github.com/storesync/backend/internal/infrastructure/logger"
	"github.com/storesync/backend/internal/infrastructure/migration"
	"github.com/storesync/backend/internal/infrastructure/persistence"
	"github.com/storesync/backend/internal/infrastructure/scheduler"
	"github.com/storesync/backend/internal/infrastructure/shopify"
	"github.com/storesync/backend/internal/infrastructure/telemetry"
	"github.com/storesync/backend/internal/interfaces/http/handler"
	"github.com/storesync/backend/internal/interfaces/http/middleware"
	"github.com/storesync/backend/internal/interfaces/http/router"
)

func main() {
	var (
		migrationsPath string
		skipMigrations bool
	)
	flag.StringVar(&migrationsPath, "migrations", "migrations", "Path to the SQL migrations directory")
	flag.BoolVar(&skipMigrations, "skip-migrations", false, "Do not apply schema migrations on startup")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		Fields: map[string]string{
			"service": cfg.App.Name,
			"version": cfg.App.Version,
		},
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting storesync",
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("store_a", cfg.StoreA.Domain),
		zap.String("store_b", cfg.StoreB.Domain),
	)
	if missing := cfg.MissingRequired(); len(missing) > 0 {
		log.Warn("Required configuration is missing, affected stores will fail to sync",
			zap.Strings("missing", missing),
		)
	}

	ctx := context.Background()

	// Telemetry
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    cfg.App.Version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.ExportInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    cfg.App.Version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := meterProvider.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down meter provider", zap.Error(err))
		}
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	var syncMetrics *telemetry.SyncMetrics
	if meterProvider.IsEnabled() {
		syncMetrics, err = telemetry.NewSyncMetrics(meterProvider.Meter(telemetry.MeterName))
		if err != nil {
			log.Warn("Sync metrics disabled", zap.Error(err))
		}
	}

	// Database
	db, err := persistence.NewDatabase(&cfg.Database,
		persistence.WithLogger(log, logger.MapGormLogLevel(cfg.Log.Level), cfg.Telemetry.DBSlowQueryThresh),
	)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected", zap.String("driver", db.Driver()))

	dbSystem := "postgresql"
	if db.Driver() == "sqlite" {
		dbSystem = "sqlite"
	}
	if err := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.App.Env == "development",
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		DBSystem:        dbSystem,
	}, log).Register(db.DB); err != nil {
		log.Warn("Failed to register database tracing", zap.Error(err))
	}

	if !skipMigrations {
		if err := migrate(db, migrationsPath, log); err != nil {
			log.Fatal("Failed to migrate database", zap.Error(err))
		}
	}

	// Repositories
	recordRepo := persistence.NewGormSyncRecordRepository(db.DB)
	logRepo := persistence.NewGormSyncLogRepository(db.DB)
	configRepo := persistence.NewGormConfigEntryRepository(db.DB)

	// Platform clients
	var clients []*shopify.Client
	for _, store := range catalogsync.AllStores() {
		client, err := shopify.NewClient(
			shopify.ConfigFromApp(store, storeConfig(cfg, store), cfg.Sync),
			shopify.WithLogger(log),
			shopify.WithMetrics(syncMetrics),
		)
		if err != nil {
			// the service still starts so webhooks for the other store and
			// health checks keep working
			log.Error("Platform client not configured", zap.String("store", store.String()), zap.Error(err))
			continue
		}
		clients = append(clients, client)
	}
	platforms := shopify.NewRegistry(clients...)

	// Webhook dedupe store
	deliveryStore, err := cache.NewDeliveryStoreFactory(cfg.Dedupe, cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(cfg.App.Env != "production"),
	).CreateStore(ctx)
	if err != nil {
		log.Fatal("Failed to create delivery dedupe store", zap.Error(err))
	}
	defer func() {
		if closer, ok := deliveryStore.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				log.Error("Error closing dedupe store", zap.Error(err))
			}
		}
	}()

	// Sync service
	syncService := syncapp.NewSyncService(platforms, recordRepo, logRepo, configRepo, deliveryStore,
		syncapp.SyncServiceConfig{
			Bulk: syncapp.BulkConfig{
				DefaultLimit: cfg.Sync.BulkDefaultLimit,
				MaxLimit:     cfg.Sync.BulkMaxLimit,
				ItemDelay:    cfg.Sync.BulkItemDelay,
			},
			Idempotency: shared.IdempotencyConfig{
				TTL:     cfg.Dedupe.TTL,
				Enabled: cfg.Dedupe.Enabled,
			},
		}, log)
	syncService.SetSyncMetrics(syncMetrics)

	// Inventory resume scheduler
	if cfg.Sync.InventoryResumeEnabled {
		resumeCfg := scheduler.DefaultInventoryResumeConfig()
		resumeCfg.Interval = cfg.Sync.InventoryResumeInterval
		resumeCfg.Grace = cfg.Sync.InventoryResumeGrace
		resumeCfg.BatchSize = cfg.Sync.InventoryResumeBatch
		resumeScheduler, err := scheduler.NewInventoryResumeScheduler(resumeCfg, syncService, log)
		if err != nil {
			log.Fatal("Failed to create inventory resume scheduler", zap.Error(err))
		}
		if err := resumeScheduler.Start(ctx); err != nil {
			log.Fatal("Failed to start inventory resume scheduler", zap.Error(err))
		}
		defer func() {
			if err := resumeScheduler.Stop(context.Background()); err != nil {
				log.Error("Error stopping inventory resume scheduler", zap.Error(err))
			}
		}()
		log.Info("Inventory resume scheduler started",
			zap.Duration("interval", resumeCfg.Interval),
			zap.Duration("grace", resumeCfg.Grace),
		)
	}

	// HTTP
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	webhookHandler := handler.NewWebhookHandler(syncService, log)
	webhookHandler.SetMetrics(syncMetrics)

	var rateLimiter *middleware.RateLimiter
	if cfg.HTTP.RateLimitEnabled {
		rateLimiter = middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		defer rateLimiter.Close()
	}

	engineCfg := router.EngineConfig{
		HTTP:           cfg.HTTP,
		Webhook:        cfg.Webhook,
		ServiceName:    cfg.Telemetry.ServiceName,
		TracingEnabled: cfg.Telemetry.Enabled,
		WebhookSecrets: map[catalogsync.Store]string{
			catalogsync.StoreA: cfg.StoreA.WebhookSecret,
			catalogsync.StoreB: cfg.StoreB.WebhookSecret,
		},
		JWT:         auth.NewJWTService(cfg.Auth),
		RateLimiter: rateLimiter,
		Logger:      log,
	}
	if meterProvider.IsEnabled() {
		engineCfg.Meter = meterProvider.Meter(telemetry.MeterName)
	}

	engine, err := router.NewEngine(engineCfg, router.Handlers{
		Health: handler.NewHealthHandler(handler.HealthInfo{
			Service:       cfg.App.Name,
			Version:       cfg.App.Version,
			Environment:   cfg.App.Env,
			MissingConfig: cfg.MissingRequired,
		}, db, configRepo, syncService.Deduplicator()),
		Webhook: webhookHandler,
		Sync:    handler.NewSyncHandler(syncService),
	})
	if err != nil {
		log.Fatal("Failed to build HTTP engine", zap.Error(err))
	}

	if err := configRepo.Set(ctx, catalogsync.ConfigKeyLastStartupAt, time.Now().UTC().Format(time.RFC3339)); err != nil {
		log.Warn("Failed to record startup time", zap.Error(err))
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
		return
	}
	log.Info("Server exited gracefully")
}

func storeConfig(cfg *config.Config, store catalogsync.Store) config.StoreConfig {
	if store == catalogsync.StoreB {
		return cfg.StoreB
	}
	return cfg.StoreA
}

// migrate applies the SQL migrations on postgres and falls back to gorm's
// AutoMigrate on sqlite, which golang-migrate's postgres driver cannot serve.
func migrate(db *persistence.Database, path string, log *zap.Logger) error {
	if db.Driver() == "sqlite" {
		return db.AutoMigrate()
	}
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	migrator, err := migration.New(sqlDB, path, log)
	if err != nil {
		return err
	}
	return migrator.Up()
}
