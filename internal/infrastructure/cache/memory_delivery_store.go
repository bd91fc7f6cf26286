package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/storesync/backend/internal/domain/shared"
)

const (
	defaultMaxEntries      = 100_000
	defaultCleanupInterval = time.Hour
)

type deliveryEntry struct {
	id        string
	expiresAt time.Time
}

// MemoryDeliveryStore remembers webhook delivery IDs in process memory.
// Entries expire after their TTL and the oldest entry is evicted once
// MaxEntries is reached, so memory stays bounded between sweeps.
type MemoryDeliveryStore struct {
	mu         sync.Mutex
	order      *list.List // oldest first
	index      map[string]*list.Element
	maxEntries int
	now        func() time.Time

	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// MemoryStoreOption configures a MemoryDeliveryStore
type MemoryStoreOption func(*MemoryDeliveryStore)

// WithMaxEntries bounds the number of remembered IDs
func WithMaxEntries(n int) MemoryStoreOption {
	return func(s *MemoryDeliveryStore) {
		if n > 0 {
			s.maxEntries = n
		}
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) MemoryStoreOption {
	return func(s *MemoryDeliveryStore) {
		s.now = now
	}
}

// NewMemoryDeliveryStore creates the store and starts a sweeper that removes
// expired entries every cleanupInterval. Close stops the sweeper.
func NewMemoryDeliveryStore(cleanupInterval time.Duration, opts ...MemoryStoreOption) *MemoryDeliveryStore {
	s := &MemoryDeliveryStore{
		order:      list.New(),
		index:      make(map[string]*list.Element),
		maxEntries: defaultMaxEntries,
		now:        time.Now,
		stopChan:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if cleanupInterval <= 0 {
		cleanupInterval = defaultCleanupInterval
	}

	s.wg.Add(1)
	go s.sweepLoop(cleanupInterval)
	return s
}

// MarkProcessed records id for ttl. It returns false if id is already
// remembered and not yet expired.
func (s *MemoryDeliveryStore) MarkProcessed(_ context.Context, id string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if el, ok := s.index[id]; ok {
		if now.Before(el.Value.(*deliveryEntry).expiresAt) {
			return false, nil
		}
		s.order.Remove(el)
		delete(s.index, id)
	}

	for s.order.Len() >= s.maxEntries {
		s.removeElement(s.order.Front())
	}

	s.index[id] = s.order.PushBack(&deliveryEntry{id: id, expiresAt: now.Add(ttl)})
	return true, nil
}

// IsProcessed reports whether id is remembered and not yet expired
func (s *MemoryDeliveryStore) IsProcessed(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.index[id]
	if !ok {
		return false, nil
	}
	return s.now().Before(el.Value.(*deliveryEntry).expiresAt), nil
}

// Release forgets id
func (s *MemoryDeliveryStore) Release(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.index[id]; ok {
		s.removeElement(el)
	}
	return nil
}

// Size returns the number of remembered IDs, expired ones included until swept
func (s *MemoryDeliveryStore) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}

// Close stops the sweeper. Safe to call multiple times.
func (s *MemoryDeliveryStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
	})
	return nil
}

func (s *MemoryDeliveryStore) sweepLoop(interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep removes expired entries. TTLs differ per call so the whole list is scanned.
func (s *MemoryDeliveryStore) sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for el := s.order.Front(); el != nil; {
		next := el.Next()
		if !now.Before(el.Value.(*deliveryEntry).expiresAt) {
			s.removeElement(el)
			removed++
		}
		el = next
	}
	return removed
}

func (s *MemoryDeliveryStore) removeElement(el *list.Element) {
	e := s.order.Remove(el).(*deliveryEntry)
	delete(s.index, e.id)
}

var _ shared.IdempotencyStore = (*MemoryDeliveryStore)(nil)
