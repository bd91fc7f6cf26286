package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/storesync/backend/internal/domain/catalogsync"
	"github.com/storesync/backend/internal/infrastructure/logger"
	"github.com/storesync/backend/internal/interfaces/http/dto"
)

// Pinger reports database reachability
type Pinger interface {
	Ping(ctx context.Context) error
}

// DedupeSizer reports the number of remembered webhook deliveries, or -1 when
// the backing store cannot tell.
type DedupeSizer interface {
	Size() int
}

// HealthInfo identifies the running service
type HealthInfo struct {
	Service     string
	Version     string
	Environment string
	// MissingConfig lists required settings that are unset
	MissingConfig func() []string
}

const healthCheckTimeout = 5 * time.Second

// HealthHandler serves liveness and readiness probes
type HealthHandler struct {
	info      HealthInfo
	db        Pinger
	configs   catalogsync.ConfigEntryRepository
	dedupe    DedupeSizer
	startTime time.Time
	now       func() time.Time
}

// NewHealthHandler creates a new HealthHandler. Nil dependencies are reported
// as not configured.
func NewHealthHandler(info HealthInfo, db Pinger, configs catalogsync.ConfigEntryRepository, dedupe DedupeSizer) *HealthHandler {
	return &HealthHandler{
		info:      info,
		db:        db,
		configs:   configs,
		dedupe:    dedupe,
		startTime: time.Now(),
		now:       time.Now,
	}
}

// Health is the liveness probe
// GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, h.status(dto.HealthHealthy))
}

// Detailed checks every dependency and answers 503 when one fails
// GET /health/detailed
func (h *HealthHandler) Detailed(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	checks := map[string]string{
		"database":      h.checkDatabase(ctx),
		"config_store":  h.checkConfigStore(ctx),
		"dedupe":        h.checkDedupe(),
		"configuration": h.checkConfiguration(),
	}

	healthy := true
	for name, result := range checks {
		if !strings.HasPrefix(result, "ok") {
			healthy = false
			logger.GetGinLogger(c).Warn("Health check failed",
				zap.String("check", name),
				zap.String("result", result),
			)
		}
	}

	resp := h.status(dto.HealthHealthy)
	resp.Environment = h.info.Environment
	resp.Checks = checks
	if !healthy {
		resp.Status = dto.HealthUnhealthy
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *HealthHandler) status(status string) dto.HealthStatus {
	now := h.now()
	return dto.HealthStatus{
		Status:    status,
		Timestamp: now.UTC(),
		Service:   h.info.Service,
		Version:   h.info.Version,
		Uptime:    now.Sub(h.startTime).Seconds(),
	}
}

func (h *HealthHandler) checkDatabase(ctx context.Context) string {
	if h.db == nil {
		return "error: not configured"
	}
	if err := h.db.Ping(ctx); err != nil {
		return "error: " + err.Error()
	}
	return "ok"
}

// checkConfigStore writes the probe key and reads it back
func (h *HealthHandler) checkConfigStore(ctx context.Context) string {
	if h.configs == nil {
		return "error: not configured"
	}
	want := h.now().UTC().Format(time.RFC3339Nano)
	if err := h.configs.Set(ctx, catalogsync.ConfigKeyHealthProbe, want); err != nil {
		return "error: " + err.Error()
	}
	got, ok, err := h.configs.Get(ctx, catalogsync.ConfigKeyHealthProbe)
	switch {
	case err != nil:
		return "error: " + err.Error()
	case !ok || got != want:
		return "error: probe value not read back"
	}
	return "ok"
}

func (h *HealthHandler) checkDedupe() string {
	if h.dedupe == nil {
		return "ok (disabled)"
	}
	if n := h.dedupe.Size(); n >= 0 {
		return fmt.Sprintf("ok (%d entries)", n)
	}
	return "ok"
}

func (h *HealthHandler) checkConfiguration() string {
	if h.info.MissingConfig == nil {
		return "ok"
	}
	if missing := h.info.MissingConfig(); len(missing) > 0 {
		return "error: missing " + strings.Join(missing, ", ")
	}
	return "ok"
}
