package catalogsync

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/storesync/backend/internal/domain/catalogsync"
)

// seedInventoryRecord links inventory item 100 on store A with item 900 on store B
func seedInventoryRecord(h *harness) {
	h.t.Helper()
	record, err := catalogsync.NewSyncRecord("sync-inv", catalogsync.StoreA,
		catalogsync.Product{ID: "p-a", Title: "Tee"}, "p-b",
		[]catalogsync.VariantMapping{{
			SKU:                     "TEE-M",
			StoreAID:                "va",
			StoreBID:                "vb",
			InventoryItemStoreAID:   "100",
			InventoryItemStoreBID:   "900",
			InventoryQuantityStoreA: 3,
			InventoryQuantityStoreB: 3,
		}}, baseTime)
	require.NoError(h.t, err)
	h.records.put(record)
}

func TestSyncInventory_Converges(t *testing.T) {
	h := newHarness(t).withLocations()
	seedInventoryRecord(h)
	h.b.On("UpdateInventoryLevel", mock.Anything, "900", "loc-b", 7).
		Return(&catalogsync.InventoryLevel{InventoryItemID: "900", LocationID: "loc-b", Available: 7}, nil).Once()

	result, err := h.inventory.SyncInventory(context.Background(), catalogsync.StoreA, "100", "5", 7)

	require.NoError(t, err)
	assert.Equal(t, catalogsync.LogStatusSuccess, result.Status)
	assert.Equal(t, "TEE-M", result.VariantSKU)
	require.NotNil(t, result.Quantity)
	assert.Equal(t, 7, *result.Quantity)

	record := h.records.get("sync-inv")
	assert.Equal(t, 7, record.Variants[0].InventoryQuantityStoreB)
	assert.Equal(t, 7, record.Variants[0].InventoryQuantityStoreA)

	logs := h.logs.all()
	require.Len(t, logs, 1)
	assert.Equal(t, catalogsync.OperationInventoryUpdate, logs[0].Operation)
	assert.Equal(t, "p-a", logs[0].SourceProductID)
	h.assertExpectations()
}

func TestSyncInventory_EchoIsSkipped(t *testing.T) {
	h := newHarness(t).withLocations()
	seedInventoryRecord(h)
	h.b.On("UpdateInventoryLevel", mock.Anything, "900", "loc-b", 7).
		Return(&catalogsync.InventoryLevel{Available: 7}, nil).Once()

	_, err := h.inventory.SyncInventory(context.Background(), catalogsync.StoreA, "100", "5", 7)
	require.NoError(t, err)

	echo, err := h.inventory.SyncInventory(context.Background(), catalogsync.StoreB, "900", "loc-b", 7)

	require.NoError(t, err)
	assert.True(t, echo.Skipped())
	assert.Equal(t, ReasonConverged, echo.Message)
	h.a.AssertNotCalled(t, "UpdateInventoryLevel", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSyncInventory_VariantNotFound(t *testing.T) {
	h := newHarness(t)
	seedInventoryRecord(h)

	result, err := h.inventory.SyncInventory(context.Background(), catalogsync.StoreA, "unknown", "5", 1)

	require.ErrorIs(t, err, catalogsync.ErrVariantNotFound)
	assert.False(t, catalogsync.IsTransient(err))
	assert.Equal(t, catalogsync.LogStatusFailed, result.Status)
	assert.Len(t, h.logs.all(), 1)
}

func TestSyncInventory_MissingTargetMapping(t *testing.T) {
	t.Run("no target inventory item", func(t *testing.T) {
		h := newHarness(t)
		record, err := catalogsync.NewSyncRecord("sync-inv", catalogsync.StoreA,
			catalogsync.Product{ID: "p-a"}, "p-b",
			[]catalogsync.VariantMapping{{SKU: "TEE-M", InventoryItemStoreAID: "100"}}, baseTime)
		require.NoError(t, err)
		h.records.put(record)

		_, err = h.inventory.SyncInventory(context.Background(), catalogsync.StoreA, "100", "5", 1)
		assert.ErrorIs(t, err, catalogsync.ErrMissingTargetMapping)
	})

	t.Run("no target location", func(t *testing.T) {
		h := newHarness(t)
		seedInventoryRecord(h)
		h.b.On("GetLocations", mock.Anything).Return([]catalogsync.Location{}, nil)

		_, err := h.inventory.SyncInventory(context.Background(), catalogsync.StoreA, "100", "5", 1)
		assert.ErrorIs(t, err, catalogsync.ErrMissingTargetMapping)
		h.b.AssertNotCalled(t, "UpdateInventoryLevel", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestSyncInventory_PlatformFailureKeepsQuantity(t *testing.T) {
	h := newHarness(t).withLocations()
	seedInventoryRecord(h)
	h.b.On("UpdateInventoryLevel", mock.Anything, "900", "loc-b", 9).
		Return(nil, fmt.Errorf("%w: 502", catalogsync.ErrTargetPlatformError))

	_, err := h.inventory.SyncInventory(context.Background(), catalogsync.StoreA, "100", "5", 9)

	require.ErrorIs(t, err, catalogsync.ErrTargetPlatformError)
	assert.Equal(t, 3, h.records.get("sync-inv").Variants[0].InventoryQuantityStoreB)
}
