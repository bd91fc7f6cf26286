package catalogsync

import (
	"context"
	"errors"
	"time"

	"github.com/storesync/backend/internal/domain/catalogsync"
)

// Resolution is the outcome of identity resolution
type Resolution struct {
	SyncID string
	// Existing is the matched record, nil when none was found
	Existing *catalogsync.SyncRecord
	// Generated is true when SyncID was synthesized for a new record
	Generated bool
}

// IdentityResolver maps a store product to its cross-store SyncRecord
type IdentityResolver struct {
	records catalogsync.SyncRecordReader
	locks   *KeyedLock
	now     func() time.Time
}

// NewIdentityResolver creates a new IdentityResolver
func NewIdentityResolver(records catalogsync.SyncRecordReader) *IdentityResolver {
	return &IdentityResolver{
		records: records,
		locks:   NewKeyedLock(),
		now:     time.Now,
	}
}

// Acquire locks the external product id so that concurrent events for the same
// product resolve and act one after the other
func (r *IdentityResolver) Acquire(store catalogsync.Store, productID string) (release func()) {
	return r.locks.Lock(string(store) + ":" + productID)
}

// Resolve looks up the record for product on source: by store product id, then
// by the first variant's SKU. When neither matches a new id is synthesized.
func (r *IdentityResolver) Resolve(ctx context.Context, source catalogsync.Store, product catalogsync.Product) (Resolution, error) {
	if product.ID != "" {
		record, err := r.records.FindByStoreProductID(ctx, source, product.ID)
		if err == nil {
			return Resolution{SyncID: record.SyncID, Existing: record}, nil
		}
		if !errors.Is(err, catalogsync.ErrMappingNotFound) {
			return Resolution{}, err
		}
	}

	sku := product.PrimarySKU()
	if sku != "" {
		record, err := r.records.FindBySKU(ctx, sku)
		switch {
		case err == nil:
			// a SKU already bound to another product on this store is not a match
			if owner := record.StoreID(source); owner == "" || owner == product.ID {
				return Resolution{SyncID: record.SyncID, Existing: record}, nil
			}
		case !errors.Is(err, catalogsync.ErrMappingNotFound):
			return Resolution{}, err
		}
	}

	syncID := catalogsync.GenerateSyncID(sku, product.Title, r.now())
	taken, err := r.idTaken(ctx, syncID)
	if err != nil {
		return Resolution{}, err
	}
	if taken {
		syncID = catalogsync.GenerateSyncID(string(source)+":"+product.ID+":"+sku, product.Title, r.now())
	}
	return Resolution{SyncID: syncID, Generated: true}, nil
}

func (r *IdentityResolver) idTaken(ctx context.Context, syncID string) (bool, error) {
	_, err := r.records.FindBySyncID(ctx, syncID)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, catalogsync.ErrMappingNotFound) {
		return false, nil
	}
	return false, err
}
