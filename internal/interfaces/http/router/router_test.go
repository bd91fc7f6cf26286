package router

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	syncapp "github.com/storesync/backend/internal/application/catalogsync"
	"github.com/storesync/backend/internal/domain/catalogsync"
	"github.com/storesync/backend/internal/domain/shared"
	"github.com/storesync/backend/internal/infrastructure/auth"
	"github.com/storesync/backend/internal/infrastructure/config"
	"github.com/storesync/backend/internal/infrastructure/shopify"
	"github.com/storesync/backend/internal/interfaces/http/handler"
	"github.com/storesync/backend/internal/interfaces/http/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRouterSetup(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine, WithAPIVersion("v2"))

	r.Register(NewDomainGroup("test", "/test").GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	}))
	r.RegisterRoot(NewDomainGroup("root", "/health").GET("", func(c *gin.Context) {
		c.String(http.StatusOK, "up")
	}))
	r.Setup()

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v2/test/ping", nil))
	assert.Equal(t, "pong", w.Body.String())

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, "up", w.Body.String())
}

func TestDomainGroup_SubgroupMiddleware(t *testing.T) {
	engine := gin.New()
	g := NewDomainGroup("sync", "/sync")
	g.Group("writes", "").
		Use(func(c *gin.Context) { c.Header("X-Group", "writes"); c.Next() }).
		POST("/bulk", func(c *gin.Context) { c.Status(http.StatusOK) })
	g.Group("reads", "").
		GET("/logs", func(c *gin.Context) { c.Status(http.StatusOK) })
	g.RegisterRoutes(engine.Group("/api/v1"))

	assert.Equal(t, "sync", g.Name())
	assert.Equal(t, "/sync", g.Prefix())

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/sync/bulk", nil))
	assert.Equal(t, "writes", w.Header().Get("X-Group"))

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/sync/logs", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("X-Group"))
}

// fakeSync answers every call with a canned success
type fakeSync struct{}

func (fakeSync) CheckDelivery(context.Context, string) syncapp.Verdict { return syncapp.VerdictFresh }

func (fakeSync) ReleaseDelivery(context.Context, string) {}

func (fakeSync) HandleProductEvent(_ context.Context, store catalogsync.Store, op catalogsync.Operation, p catalogsync.Product) (*syncapp.SyncResult, error) {
	return &syncapp.SyncResult{Operation: op, SourceStore: store, SourceProductID: p.ID, Status: catalogsync.LogStatusSuccess}, nil
}

func (fakeSync) SyncProduct(context.Context, syncapp.SyncProductRequest) (*syncapp.SyncResult, error) {
	return &syncapp.SyncResult{Status: catalogsync.LogStatusSuccess}, nil
}

func (fakeSync) SyncInventory(context.Context, syncapp.SyncInventoryRequest) (*syncapp.SyncResult, error) {
	return &syncapp.SyncResult{Status: catalogsync.LogStatusSuccess}, nil
}

func (fakeSync) BulkSync(context.Context, catalogsync.Store, catalogsync.Store, syncapp.BulkOptions) (*syncapp.BulkResult, error) {
	return &syncapp.BulkResult{Errors: []syncapp.BulkError{}}, nil
}

func (fakeSync) ForceResync(context.Context, string, catalogsync.Direction) (*syncapp.SyncResult, error) {
	return &syncapp.SyncResult{Status: catalogsync.LogStatusSuccess}, nil
}

func (fakeSync) GetStatus(_ context.Context, syncID string) (*syncapp.RecordSummary, error) {
	return &syncapp.RecordSummary{SyncID: syncID}, nil
}

func (fakeSync) ListRecords(context.Context, syncapp.ListRecordsQuery) (shared.Paginated[syncapp.RecordSummary], error) {
	return shared.NewPaginated([]syncapp.RecordSummary{}, 0, 1, 50), nil
}

func (fakeSync) ListLogs(context.Context, syncapp.ListLogsQuery) ([]syncapp.LogSummary, error) {
	return []syncapp.LogSummary{}, nil
}

func newTestEngine(t *testing.T, jwt *auth.JWTService) *gin.Engine {
	t.Helper()
	limiter := middleware.NewRateLimiter(100, time.Minute)
	t.Cleanup(limiter.Close)

	engine, err := NewEngine(EngineConfig{
		HTTP:        config.HTTPConfig{MaxBodySize: 1 << 20, RateLimitEnabled: true},
		Webhook:     config.WebhookConfig{MaxBodySize: 1 << 20},
		ServiceName: "storesync-test",
		WebhookSecrets: map[catalogsync.Store]string{
			catalogsync.StoreA: "secret-a",
			catalogsync.StoreB: "secret-b",
		},
		JWT:         jwt,
		RateLimiter: limiter,
		Logger:      zap.NewNop(),
	}, Handlers{
		Health:  handler.NewHealthHandler(handler.HealthInfo{Service: "storesync"}, nil, nil, nil),
		Webhook: handler.NewWebhookHandler(fakeSync{}, zap.NewNop()),
		Sync:    handler.NewSyncHandler(fakeSync{}),
	})
	require.NoError(t, err)
	return engine
}

func TestNewEngine_Webhooks(t *testing.T) {
	engine := newTestEngine(t, auth.NewJWTService(config.AuthConfig{}))
	body := []byte(`{"id":1,"title":"Tee"}`)

	send := func(path, secret string) int {
		req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
		req.Header.Set(shopify.HeaderHmac, shopify.Sign(body, secret))
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, send("/webhooks/store-a/products/update", "secret-a"))
	assert.Equal(t, http.StatusOK, send("/webhooks/store-b/products/create", "secret-b"))
	// each store verifies with its own secret
	assert.Equal(t, http.StatusUnauthorized, send("/webhooks/store-b/products/create", "secret-a"))
	assert.Equal(t, http.StatusNotFound, send("/webhooks/store-c/products/create", "secret-a"))

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/webhooks/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
}

func TestNewEngine_Health(t *testing.T) {
	engine := newTestEngine(t, auth.NewJWTService(config.AuthConfig{}))

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	// no database configured
	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/detailed", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestNewEngine_OperatorAuth(t *testing.T) {
	jwt := auth.NewJWTService(config.AuthConfig{JWTSecret: "operator-secret"})
	engine := newTestEngine(t, jwt)

	call := func(method, path, body, token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
		return w
	}

	w := call(http.MethodGet, "/api/v1/sync/logs", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	reader, err := jwt.GenerateToken("dashboard", time.Hour, auth.ScopeSyncRead)
	require.NoError(t, err)

	w = call(http.MethodGet, "/api/v1/sync/logs", "", reader.Token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-RateLimit-Limit"))

	w = call(http.MethodPost, "/api/v1/sync/bulk", `{"sourceStore":"storeA"}`, reader.Token)
	assert.Equal(t, http.StatusForbidden, w.Code)

	writer, err := jwt.GenerateToken("ops", time.Hour)
	require.NoError(t, err)
	w = call(http.MethodPost, "/api/v1/sync/bulk", `{"sourceStore":"storeA"}`, writer.Token)
	assert.Equal(t, http.StatusOK, w.Code)
}
