package catalogsync

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/storesync/backend/internal/domain/catalogsync"
	"github.com/storesync/backend/internal/domain/shared"
)

func newTestService(h *harness) *SyncService {
	registry := fakeRegistry{catalogsync.StoreA: h.a, catalogsync.StoreB: h.b}
	svc := NewSyncService(registry, h.records, h.logs, nil, &MockIdempotencyStore{}, SyncServiceConfig{
		Bulk:        BulkConfig{ItemDelay: 0},
		Idempotency: shared.IdempotencyConfig{Enabled: false},
	}, zaptest.NewLogger(h.t))
	svc.catalog.now = h.catalog.now
	return svc
}

func TestSyncService_SyncProduct(t *testing.T) {
	t.Run("delete needs no fetch", func(t *testing.T) {
		h := newHarness(t)
		svc := newTestService(h)

		result, err := svc.SyncProduct(context.Background(), SyncProductRequest{
			SourceStore: catalogsync.StoreA,
			ProductID:   "100",
			Operation:   catalogsync.OperationDelete,
		})

		require.NoError(t, err)
		assert.True(t, result.Skipped())
		h.a.AssertNotCalled(t, "GetProduct", mock.Anything, mock.Anything)
	})

	t.Run("defaults to create and fetches the product", func(t *testing.T) {
		h := newHarness(t).withLocations()
		svc := newTestService(h)
		src := testProduct(catalogsync.StoreA, "100", baseTime, "SKU-A")
		h.a.On("GetProduct", mock.Anything, "100").Return(&src, nil).Once()
		h.b.On("CreateProduct", mock.Anything, mock.Anything).
			Return(targetEcho(catalogsync.StoreB, "200", baseTime, src), nil).Once()
		h.withInventory(h.a, h.b, 2)

		result, err := svc.SyncProduct(context.Background(), SyncProductRequest{SourceStore: catalogsync.StoreA, ProductID: "100"})

		require.NoError(t, err)
		assert.Equal(t, catalogsync.OperationCreate, result.Operation)
		assert.Equal(t, "200", result.TargetProductID)
		h.assertExpectations()
	})

	t.Run("invalid operation", func(t *testing.T) {
		h := newHarness(t)
		_, err := newTestService(h).SyncProduct(context.Background(), SyncProductRequest{
			SourceStore: catalogsync.StoreA,
			ProductID:   "1",
			Operation:   catalogsync.OperationInventoryUpdate,
		})
		assert.ErrorIs(t, err, catalogsync.ErrInvalidOperation)
	})

	t.Run("invalid store", func(t *testing.T) {
		h := newHarness(t)
		_, err := newTestService(h).SyncProduct(context.Background(), SyncProductRequest{SourceStore: "storeZ", ProductID: "1"})
		assert.ErrorIs(t, err, catalogsync.ErrInvalidStore)
	})

	t.Run("fetch failure", func(t *testing.T) {
		h := newHarness(t)
		h.a.On("GetProduct", mock.Anything, "404").
			Return(nil, fmt.Errorf("%w: 404 not found", catalogsync.ErrTargetPlatformError))

		_, err := newTestService(h).SyncProduct(context.Background(), SyncProductRequest{
			SourceStore: catalogsync.StoreA,
			ProductID:   "404",
			Operation:   catalogsync.OperationUpdate,
		})
		assert.ErrorIs(t, err, catalogsync.ErrTargetPlatformError)
	})
}

func TestSyncService_HandleProductEvent(t *testing.T) {
	h := newHarness(t)
	svc := newTestService(h)

	_, err := svc.HandleProductEvent(context.Background(), catalogsync.StoreA, catalogsync.Operation("archive"), catalogsync.Product{ID: "1"})
	assert.ErrorIs(t, err, catalogsync.ErrInvalidOperation)

	result, err := svc.HandleProductEvent(context.Background(), catalogsync.StoreA, catalogsync.OperationDelete, catalogsync.Product{ID: "1"})
	require.NoError(t, err)
	assert.True(t, result.Skipped())

	assert.Equal(t, VerdictFresh, svc.CheckDelivery(context.Background(), "wh-1"))
}

func TestSyncService_ForceResync(t *testing.T) {
	direction := catalogsync.Direction{Source: catalogsync.StoreA, Target: catalogsync.StoreB}

	t.Run("record not found", func(t *testing.T) {
		h := newHarness(t)
		_, err := newTestService(h).ForceResync(context.Background(), "missing", direction)
		assert.ErrorIs(t, err, catalogsync.ErrMappingNotFound)
	})

	t.Run("no source product", func(t *testing.T) {
		h := newHarness(t)
		record, err := catalogsync.NewSyncRecord("sync-1", catalogsync.StoreB, catalogsync.Product{ID: "200"}, "", nil, baseTime)
		require.NoError(t, err)
		h.records.put(record)

		_, err = newTestService(h).ForceResync(context.Background(), "sync-1", direction)
		assert.ErrorIs(t, err, catalogsync.ErrInvalidSyncRecord)
	})

	t.Run("re-pushes an up to date product", func(t *testing.T) {
		h := newHarness(t)
		src := testProduct(catalogsync.StoreA, "100", baseTime, "SKU-A")
		seedRecord(h, "sync-1", src, *targetEcho(catalogsync.StoreB, "200", baseTime, src))
		h.a.On("GetProduct", mock.Anything, "100").Return(&src, nil).Once()
		h.b.On("UpdateProduct", mock.Anything, "200", mock.Anything).
			Return(targetEcho(catalogsync.StoreB, "200", baseTime.Add(time.Minute), src), nil).Once()

		result, err := newTestService(h).ForceResync(context.Background(), "sync-1", direction)

		require.NoError(t, err)
		assert.Equal(t, catalogsync.LogStatusSuccess, result.Status)
		assert.Equal(t, catalogsync.OperationUpdate, result.Operation)
		h.assertExpectations()
	})
}

func TestSyncService_Queries(t *testing.T) {
	h := newHarness(t)
	svc := newTestService(h)
	for _, id := range []string{"1", "2", "3"} {
		src := testProduct(catalogsync.StoreA, id, baseTime, "SKU-"+id)
		seedRecord(h, "sync-"+id, src, *targetEcho(catalogsync.StoreB, "b-"+id, baseTime, src))
	}
	ctx := context.Background()

	status, err := svc.GetStatus(ctx, "sync-2")
	require.NoError(t, err)
	assert.Equal(t, "2", status.StoreAID)
	require.Len(t, status.Variants, 1)
	assert.Equal(t, "19.99", status.Variants[0].Price)
	assert.Equal(t, 10, status.Variants[0].InventoryQuantityStoreA)

	_, err = svc.GetStatus(ctx, "nope")
	assert.ErrorIs(t, err, catalogsync.ErrMappingNotFound)

	page, err := svc.ListRecords(ctx, ListRecordsQuery{Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "sync-3", page.Items[0].SyncID)
	assert.Empty(t, page.Items[0].Variants)

	for _, status := range []catalogsync.LogStatus{catalogsync.LogStatusSuccess, catalogsync.LogStatusFailed, catalogsync.LogStatusSuccess} {
		entry := catalogsync.NewSyncLogEntry(catalogsync.OperationUpdate, catalogsync.StoreA, "1", baseTime)
		entry.Status = status
		require.NoError(t, h.logs.Append(ctx, entry))
	}
	logs, err := svc.ListLogs(ctx, ListLogsQuery{Status: catalogsync.LogStatusSuccess})
	require.NoError(t, err)
	assert.Len(t, logs, 2)
}

func TestQueryBounds(t *testing.T) {
	f := ListRecordsQuery{PageSize: 1000}.Filter()
	assert.Equal(t, MaxPageSize, f.PageSize)
	assert.Equal(t, 1, f.Page)

	l := ListLogsQuery{}.Filter()
	assert.Equal(t, DefaultLogLimit, l.Limit)
	l = ListLogsQuery{Limit: 9999}.Filter()
	assert.Equal(t, MaxLogLimit, l.Limit)
}
