package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	syncapp "github.com/storesync/backend/internal/application/catalogsync"
	"github.com/storesync/backend/internal/domain/catalogsync"
	"github.com/storesync/backend/internal/domain/shared"
	"github.com/storesync/backend/internal/interfaces/http/dto"
	"github.com/storesync/backend/internal/interfaces/http/middleware"
)

type MockSyncOperator struct {
	mock.Mock
}

func (m *MockSyncOperator) SyncProduct(ctx context.Context, req syncapp.SyncProductRequest) (*syncapp.SyncResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*syncapp.SyncResult), args.Error(1)
}

func (m *MockSyncOperator) SyncInventory(ctx context.Context, req syncapp.SyncInventoryRequest) (*syncapp.SyncResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*syncapp.SyncResult), args.Error(1)
}

func (m *MockSyncOperator) BulkSync(ctx context.Context, source, target catalogsync.Store, opts syncapp.BulkOptions) (*syncapp.BulkResult, error) {
	args := m.Called(ctx, source, target, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*syncapp.BulkResult), args.Error(1)
}

func (m *MockSyncOperator) ForceResync(ctx context.Context, syncID string, direction catalogsync.Direction) (*syncapp.SyncResult, error) {
	args := m.Called(ctx, syncID, direction)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*syncapp.SyncResult), args.Error(1)
}

func (m *MockSyncOperator) GetStatus(ctx context.Context, syncID string) (*syncapp.RecordSummary, error) {
	args := m.Called(ctx, syncID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*syncapp.RecordSummary), args.Error(1)
}

func (m *MockSyncOperator) ListRecords(ctx context.Context, q syncapp.ListRecordsQuery) (shared.Paginated[syncapp.RecordSummary], error) {
	args := m.Called(ctx, q)
	return args.Get(0).(shared.Paginated[syncapp.RecordSummary]), args.Error(1)
}

func (m *MockSyncOperator) ListLogs(ctx context.Context, q syncapp.ListLogsQuery) ([]syncapp.LogSummary, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]syncapp.LogSummary), args.Error(1)
}

func newSyncRouter(service SyncOperator) *gin.Engine {
	middleware.SetupValidator()
	h := NewSyncHandler(service)

	r := gin.New()
	g := r.Group("/api/v1/sync")
	g.POST("/product", h.SyncProduct)
	g.POST("/inventory", h.SyncInventory)
	g.POST("/bulk", h.BulkSync)
	g.POST("/force-resync", h.ForceResync)
	g.GET("/status/:syncId", h.GetStatus)
	g.GET("/products", h.ListProducts)
	g.GET("/logs", h.ListLogs)
	return r
}

func doJSON(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSyncHandler_SyncProduct(t *testing.T) {
	t.Run("numeric id and default operation", func(t *testing.T) {
		service := &MockSyncOperator{}
		service.On("SyncProduct", mock.Anything, syncapp.SyncProductRequest{
			SourceStore: catalogsync.StoreA,
			ProductID:   "8001",
		}).Return(&syncapp.SyncResult{Status: catalogsync.LogStatusSuccess, SyncID: "sync-1"}, nil).Once()

		w := doJSON(newSyncRouter(service), http.MethodPost, "/api/v1/sync/product", `{"sourceStore":"storeA","productId":8001}`)

		assert.Equal(t, http.StatusOK, w.Code)
		resp := decodeResponse(t, w)
		assert.True(t, resp.Success)
		service.AssertExpectations(t)
	})

	t.Run("validation", func(t *testing.T) {
		service := &MockSyncOperator{}
		r := newSyncRouter(service)

		bodies := []string{
			`{"sourceStore":"storeC","productId":"1"}`,
			`{"sourceStore":"storeA"}`,
			`{"sourceStore":"storeA","productId":"1","operation":"inventory_update"}`,
		}
		for _, body := range bodies {
			w := doJSON(r, http.MethodPost, "/api/v1/sync/product", body)
			assert.Equal(t, http.StatusBadRequest, w.Code, body)
			resp := decodeResponse(t, w)
			assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code, body)
			assert.NotEmpty(t, resp.Error.Details, body)
		}
		service.AssertNotCalled(t, "SyncProduct", mock.Anything, mock.Anything)
	})

	t.Run("malformed json", func(t *testing.T) {
		w := doJSON(newSyncRouter(&MockSyncOperator{}), http.MethodPost, "/api/v1/sync/product", `{`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("platform failure", func(t *testing.T) {
		service := &MockSyncOperator{}
		service.On("SyncProduct", mock.Anything, mock.Anything).
			Return(nil, fmt.Errorf("%w: 404 not found", catalogsync.ErrTargetPlatformError))

		w := doJSON(newSyncRouter(service), http.MethodPost, "/api/v1/sync/product", `{"sourceStore":"storeB","productId":"9","operation":"update"}`)

		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.Equal(t, dto.ErrCodePlatform, decodeResponse(t, w).Error.Code)
	})
}

func TestSyncHandler_SyncInventory(t *testing.T) {
	service := &MockSyncOperator{}
	service.On("SyncInventory", mock.Anything, syncapp.SyncInventoryRequest{
		SourceStore:     catalogsync.StoreB,
		InventoryItemID: "900",
		LocationID:      "7",
		Quantity:        0,
	}).Return(&syncapp.SyncResult{Status: catalogsync.LogStatusSuccess}, nil).Once()
	r := newSyncRouter(service)

	w := doJSON(r, http.MethodPost, "/api/v1/sync/inventory", `{"sourceStore":"storeB","inventoryItemId":"900","locationId":7,"quantity":0}`)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodPost, "/api/v1/sync/inventory", `{"sourceStore":"storeB","inventoryItemId":"900"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	service.AssertExpectations(t)
}

func TestSyncHandler_BulkSync(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		service := &MockSyncOperator{}
		service.On("BulkSync", mock.Anything, catalogsync.StoreA, catalogsync.StoreB, syncapp.BulkOptions{SkipExisting: true}).
			Return(&syncapp.BulkResult{Total: 2, Success: 2, Errors: []syncapp.BulkError{}}, nil).Once()

		w := doJSON(newSyncRouter(service), http.MethodPost, "/api/v1/sync/bulk", `{"sourceStore":"storeA"}`)

		assert.Equal(t, http.StatusOK, w.Code)
		service.AssertExpectations(t)
	})

	t.Run("explicit options", func(t *testing.T) {
		service := &MockSyncOperator{}
		service.On("BulkSync", mock.Anything, catalogsync.StoreB, catalogsync.StoreA, syncapp.BulkOptions{Limit: 10}).
			Return(&syncapp.BulkResult{}, nil).Once()

		w := doJSON(newSyncRouter(service), http.MethodPost, "/api/v1/sync/bulk",
			`{"sourceStore":"storeB","targetStore":"storeA","limit":10,"skipExisting":false}`)

		assert.Equal(t, http.StatusOK, w.Code)
		service.AssertExpectations(t)
	})

	t.Run("rejects same store and large limits", func(t *testing.T) {
		r := newSyncRouter(&MockSyncOperator{})
		for _, body := range []string{
			`{"sourceStore":"storeA","targetStore":"storeA"}`,
			`{"sourceStore":"storeA","limit":251}`,
		} {
			w := doJSON(r, http.MethodPost, "/api/v1/sync/bulk", body)
			assert.Equal(t, http.StatusBadRequest, w.Code, body)
		}
	})
}

func TestSyncHandler_ForceResync(t *testing.T) {
	direction := catalogsync.Direction{Source: catalogsync.StoreB, Target: catalogsync.StoreA}

	t.Run("not found", func(t *testing.T) {
		service := &MockSyncOperator{}
		service.On("ForceResync", mock.Anything, "sync-x", direction).
			Return(nil, fmt.Errorf("%w: sync-x", catalogsync.ErrMappingNotFound))

		w := doJSON(newSyncRouter(service), http.MethodPost, "/api/v1/sync/force-resync", `{"syncId":"sync-x","direction":"storeB_to_storeA"}`)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("record without source", func(t *testing.T) {
		service := &MockSyncOperator{}
		service.On("ForceResync", mock.Anything, "sync-1", direction).
			Return(nil, fmt.Errorf("%w: no storeB product", catalogsync.ErrInvalidSyncRecord))

		w := doJSON(newSyncRouter(service), http.MethodPost, "/api/v1/sync/force-resync", `{"syncId":"sync-1","direction":"storeB_to_storeA"}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeInvalidRecord, decodeResponse(t, w).Error.Code)
	})

	t.Run("invalid direction", func(t *testing.T) {
		w := doJSON(newSyncRouter(&MockSyncOperator{}), http.MethodPost, "/api/v1/sync/force-resync", `{"syncId":"sync-1","direction":"storeA_to_storeA"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestSyncHandler_Queries(t *testing.T) {
	service := &MockSyncOperator{}
	service.On("GetStatus", mock.Anything, "sync-1").Return(&syncapp.RecordSummary{SyncID: "sync-1"}, nil)
	service.On("GetStatus", mock.Anything, "sync-404").Return(nil, catalogsync.ErrMappingNotFound)
	service.On("ListRecords", mock.Anything, syncapp.ListRecordsQuery{Page: 2, PageSize: 10}).
		Return(shared.NewPaginated([]syncapp.RecordSummary{{SyncID: "sync-11"}}, 11, 2, 10), nil)
	service.On("ListLogs", mock.Anything, syncapp.ListLogsQuery{Limit: 5, Status: catalogsync.LogStatusFailed}).
		Return([]syncapp.LogSummary{{SyncID: "sync-1", Status: catalogsync.LogStatusFailed}}, nil)
	r := newSyncRouter(service)

	w := doJSON(r, http.MethodGet, "/api/v1/sync/status/sync-1", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodGet, "/api/v1/sync/status/sync-404", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(r, http.MethodGet, "/api/v1/sync/products?page=2&page_size=10", "")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, int64(11), resp.Meta.Total)
	assert.Equal(t, 2, resp.Meta.TotalPages)

	w = doJSON(r, http.MethodGet, "/api/v1/sync/products?page_size=1000", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodGet, "/api/v1/sync/logs?limit=5&status=failed", "")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data []syncapp.LogSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)

	w = doJSON(r, http.MethodGet, "/api/v1/sync/logs?status=weird", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	service.AssertExpectations(t)
}

func TestPlatformID_UnmarshalJSON(t *testing.T) {
	var v struct {
		ID PlatformID `json:"id"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"id":7428291182}`), &v))
	assert.Equal(t, PlatformID("7428291182"), v.ID)
	require.NoError(t, json.Unmarshal([]byte(`{"id":" 42 "}`), &v))
	assert.Equal(t, PlatformID("42"), v.ID)
	assert.Error(t, json.Unmarshal([]byte(`{"id":true}`), &v))
}
