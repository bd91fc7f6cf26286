package catalogsync

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap/zaptest"

	"github.com/storesync/backend/internal/domain/catalogsync"
	"github.com/storesync/backend/internal/domain/shared"
)

// ---------------------------------------------------------------------------
// MockCatalogPlatform
// ---------------------------------------------------------------------------

type MockCatalogPlatform struct {
	mock.Mock
	store catalogsync.Store
}

func (m *MockCatalogPlatform) Store() catalogsync.Store {
	return m.store
}

func (m *MockCatalogPlatform) GetProduct(ctx context.Context, productID string) (*catalogsync.Product, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalogsync.Product), args.Error(1)
}

func (m *MockCatalogPlatform) CreateProduct(ctx context.Context, input catalogsync.ProductInput) (*catalogsync.Product, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalogsync.Product), args.Error(1)
}

func (m *MockCatalogPlatform) UpdateProduct(ctx context.Context, productID string, input catalogsync.ProductInput) (*catalogsync.Product, error) {
	args := m.Called(ctx, productID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalogsync.Product), args.Error(1)
}

func (m *MockCatalogPlatform) DeleteProduct(ctx context.Context, productID string) error {
	args := m.Called(ctx, productID)
	return args.Error(0)
}

func (m *MockCatalogPlatform) GetAllProducts(ctx context.Context, limit int) ([]catalogsync.Product, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalogsync.Product), args.Error(1)
}

func (m *MockCatalogPlatform) GetInventoryLevel(ctx context.Context, inventoryItemID, locationID string) (*catalogsync.InventoryLevel, error) {
	args := m.Called(ctx, inventoryItemID, locationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalogsync.InventoryLevel), args.Error(1)
}

func (m *MockCatalogPlatform) UpdateInventoryLevel(ctx context.Context, inventoryItemID, locationID string, available int) (*catalogsync.InventoryLevel, error) {
	args := m.Called(ctx, inventoryItemID, locationID, available)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalogsync.InventoryLevel), args.Error(1)
}

func (m *MockCatalogPlatform) GetLocations(ctx context.Context) ([]catalogsync.Location, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalogsync.Location), args.Error(1)
}

var _ catalogsync.CatalogPlatform = (*MockCatalogPlatform)(nil)

// fakeRegistry serves fixed platforms
type fakeRegistry map[catalogsync.Store]catalogsync.CatalogPlatform

func (r fakeRegistry) Get(store catalogsync.Store) (catalogsync.CatalogPlatform, error) {
	p, ok := r[store]
	if !ok {
		return nil, fmt.Errorf("%w: %s", catalogsync.ErrConfigurationMissing, store)
	}
	return p, nil
}

// ---------------------------------------------------------------------------
// memoryRecordRepo
// ---------------------------------------------------------------------------

// memoryRecordRepo is a stateful SyncRecordRepository with the same version
// semantics as the gorm repository
type memoryRecordRepo struct {
	mu      sync.Mutex
	records map[string]catalogsync.SyncRecord
	saves   int
	saveErr error
	findErr error
}

func newMemoryRecordRepo() *memoryRecordRepo {
	return &memoryRecordRepo{records: make(map[string]catalogsync.SyncRecord)}
}

func cloneRecord(r catalogsync.SyncRecord) *catalogsync.SyncRecord {
	r.Variants = slices.Clone(r.Variants)
	r.Images = slices.Clone(r.Images)
	r.Options = slices.Clone(r.Options)
	return &r
}

func (m *memoryRecordRepo) put(r *catalogsync.SyncRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.Version == 0 {
		r.Version = 1
	}
	m.records[r.SyncID] = *cloneRecord(*r)
}

func (m *memoryRecordRepo) get(syncID string) *catalogsync.SyncRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[syncID]
	if !ok {
		return nil
	}
	return cloneRecord(r)
}

func (m *memoryRecordRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

func (m *memoryRecordRepo) find(match func(catalogsync.SyncRecord) bool) (*catalogsync.SyncRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	for _, r := range m.records {
		if match(r) {
			return cloneRecord(r), nil
		}
	}
	return nil, catalogsync.ErrMappingNotFound
}

func (m *memoryRecordRepo) FindBySyncID(_ context.Context, syncID string) (*catalogsync.SyncRecord, error) {
	return m.find(func(r catalogsync.SyncRecord) bool { return r.SyncID == syncID })
}

func (m *memoryRecordRepo) FindByStoreProductID(_ context.Context, store catalogsync.Store, productID string) (*catalogsync.SyncRecord, error) {
	return m.find(func(r catalogsync.SyncRecord) bool { return productID != "" && r.StoreID(store) == productID })
}

func (m *memoryRecordRepo) FindBySKU(_ context.Context, sku string) (*catalogsync.SyncRecord, error) {
	return m.find(func(r catalogsync.SyncRecord) bool { return r.FindVariantBySKU(sku) >= 0 })
}

func (m *memoryRecordRepo) FindByInventoryItem(_ context.Context, store catalogsync.Store, inventoryItemID string) (*catalogsync.SyncRecord, error) {
	return m.find(func(r catalogsync.SyncRecord) bool { return r.FindVariantByInventoryItem(store, inventoryItemID) >= 0 })
}

func (m *memoryRecordRepo) FindPendingInventory(_ context.Context, cutoff time.Time, limit int) ([]catalogsync.SyncRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []catalogsync.SyncRecord
	for _, r := range m.records {
		if r.State == catalogsync.SyncStateCreated && r.LastSyncedAt.Before(cutoff) {
			out = append(out, *cloneRecord(r))
		}
	}
	slices.SortFunc(out, func(a, b catalogsync.SyncRecord) int { return a.LastSyncedAt.Compare(b.LastSyncedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryRecordRepo) List(_ context.Context, filter catalogsync.SyncRecordFilter) ([]catalogsync.SyncRecord, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []catalogsync.SyncRecord
	for _, r := range m.records {
		if filter.State != "" && r.State != filter.State {
			continue
		}
		all = append(all, *cloneRecord(r))
	}
	slices.SortFunc(all, func(a, b catalogsync.SyncRecord) int { return compareStrings(a.SyncID, b.SyncID) })
	total := int64(len(all))
	start := min(filter.Offset(), len(all))
	end := min(start+filter.PageSize, len(all))
	return all[start:end], total, nil
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func (m *memoryRecordRepo) Save(_ context.Context, record *catalogsync.SyncRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	stored, exists := m.records[record.SyncID]
	if record.Version == 0 && exists {
		return catalogsync.ErrVersionConflict
	}
	if record.Version > 0 && (!exists || stored.Version != record.Version) {
		return catalogsync.ErrVersionConflict
	}
	for id, other := range m.records {
		if id == record.SyncID {
			continue
		}
		for _, s := range catalogsync.AllStores() {
			if record.StoreID(s) != "" && other.StoreID(s) == record.StoreID(s) {
				return fmt.Errorf("%w: duplicate %s", catalogsync.ErrPersistence, s.IDField())
			}
		}
	}
	record.Version++
	m.records[record.SyncID] = *cloneRecord(*record)
	m.saves++
	return nil
}

func (m *memoryRecordRepo) Delete(_ context.Context, syncID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[syncID]; !ok {
		return catalogsync.ErrMappingNotFound
	}
	delete(m.records, syncID)
	return nil
}

var _ catalogsync.SyncRecordRepository = (*memoryRecordRepo)(nil)

// ---------------------------------------------------------------------------
// memoryLogRepo
// ---------------------------------------------------------------------------

type memoryLogRepo struct {
	mu      sync.Mutex
	entries []catalogsync.SyncLogEntry
}

func (m *memoryLogRepo) Append(_ context.Context, entry *catalogsync.SyncLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *memoryLogRepo) List(_ context.Context, filter catalogsync.SyncLogFilter) ([]catalogsync.SyncLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []catalogsync.SyncLogEntry
	for i := len(m.entries) - 1; i >= 0; i-- {
		e := m.entries[i]
		if filter.Operation != "" && e.Operation != filter.Operation {
			continue
		}
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		out = append(out, e)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func (m *memoryLogRepo) all() []catalogsync.SyncLogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.entries)
}

var _ catalogsync.SyncLogRepository = (*memoryLogRepo)(nil)

// ---------------------------------------------------------------------------
// MockConfigEntryRepository / MockIdempotencyStore
// ---------------------------------------------------------------------------

type MockConfigEntryRepository struct {
	mock.Mock
}

func (m *MockConfigEntryRepository) Get(ctx context.Context, key string) (string, bool, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockConfigEntryRepository) Set(ctx context.Context, key, value string) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

var _ catalogsync.ConfigEntryRepository = (*MockConfigEntryRepository)(nil)

type MockIdempotencyStore struct {
	mock.Mock
}

func (m *MockIdempotencyStore) MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, eventID, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	args := m.Called(ctx, eventID)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) Release(ctx context.Context, eventID string) error {
	return m.Called(ctx, eventID).Error(0)
}

func (m *MockIdempotencyStore) Close() error {
	return m.Called().Error(0)
}

var _ shared.IdempotencyStore = (*MockIdempotencyStore)(nil)

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

var baseTime = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

// testProduct builds a product on store with one variant per SKU
func testProduct(store catalogsync.Store, id string, updatedAt time.Time, skus ...string) catalogsync.Product {
	p := catalogsync.Product{
		ID:        id,
		Title:     "Product " + id,
		Vendor:    "Acme",
		Status:    "active",
		CreatedAt: baseTime,
		UpdatedAt: updatedAt,
	}
	for i, sku := range skus {
		n := strconv.Itoa(i + 1)
		p.Variants = append(p.Variants, catalogsync.Variant{
			ID:                string(store) + "-v-" + id + "-" + n,
			SKU:               sku,
			Price:             decimal.RequireFromString("19.99"),
			InventoryItemID:   string(store) + "-ii-" + id + "-" + n,
			InventoryQuantity: 10,
			Option1:           sku,
			Position:          i + 1,
		})
	}
	return p
}

// targetEcho is what the target platform returns after creating or updating
// source on store as product id
func targetEcho(store catalogsync.Store, id string, updatedAt time.Time, source catalogsync.Product) *catalogsync.Product {
	skus := make([]string, 0, len(source.Variants))
	for _, v := range source.Variants {
		skus = append(skus, v.SKU)
	}
	p := testProduct(store, id, updatedAt, skus...)
	for i := range p.Variants {
		p.Variants[i].InventoryQuantity = 0
	}
	return &p
}

type harness struct {
	t       *testing.T
	a, b    *MockCatalogPlatform
	records *memoryRecordRepo
	logs    *memoryLogRepo

	catalog   *CatalogReconciler
	inventory *InventoryReconciler
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		t:       t,
		a:       &MockCatalogPlatform{store: catalogsync.StoreA},
		b:       &MockCatalogPlatform{store: catalogsync.StoreB},
		records: newMemoryRecordRepo(),
		logs:    &memoryLogRepo{},
	}
	registry := fakeRegistry{catalogsync.StoreA: h.a, catalogsync.StoreB: h.b}
	locks := NewKeyedLock()
	logger := zaptest.NewLogger(t)

	h.catalog = NewCatalogReconciler(registry, h.records, h.logs, locks, logger)
	h.catalog.now = func() time.Time { return baseTime.Add(time.Hour) }
	h.inventory = NewInventoryReconciler(registry, h.records, h.logs, locks, logger)
	h.inventory.now = h.catalog.now
	return h
}

// withLocations stubs a primary location on both stores
func (h *harness) withLocations() *harness {
	h.a.On("GetLocations", mock.Anything).Return([]catalogsync.Location{{ID: "loc-a", Primary: true, Active: true}}, nil).Maybe()
	h.b.On("GetLocations", mock.Anything).Return([]catalogsync.Location{
		{ID: "loc-b-2", Active: true},
		{ID: "loc-b", Primary: true, Active: true},
	}, nil).Maybe()
	return h
}

// withInventory stubs level reads on source and writes on the other store
func (h *harness) withInventory(source *MockCatalogPlatform, target *MockCatalogPlatform, available int) *harness {
	source.On("GetInventoryLevel", mock.Anything, mock.Anything, mock.Anything).
		Return(&catalogsync.InventoryLevel{Available: available}, nil).Maybe()
	target.On("UpdateInventoryLevel", mock.Anything, mock.Anything, mock.Anything, available).
		Return(&catalogsync.InventoryLevel{Available: available}, nil).Maybe()
	return h
}

func (h *harness) assertExpectations() {
	h.a.AssertExpectations(h.t)
	h.b.AssertExpectations(h.t)
}
