package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/storesync/backend/internal/domain/catalogsync"
	"github.com/storesync/backend/internal/infrastructure/persistence/models"
)

// GormSyncRecordRepository implements catalogsync.SyncRecordRepository using GORM
type GormSyncRecordRepository struct {
	db *gorm.DB
}

// NewGormSyncRecordRepository creates a new GormSyncRecordRepository
func NewGormSyncRecordRepository(db *gorm.DB) *GormSyncRecordRepository {
	return &GormSyncRecordRepository{db: db}
}

func persistenceError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", catalogsync.ErrPersistence, op, err)
}

func (r *GormSyncRecordRepository) withVariants(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Preload("Variants", func(db *gorm.DB) *gorm.DB {
		return db.Order("ordinal ASC")
	})
}

func (r *GormSyncRecordRepository) findOne(ctx context.Context, op string, query any, args ...any) (*catalogsync.SyncRecord, error) {
	var model models.SyncRecordModel
	if err := r.withVariants(ctx).Where(query, args...).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, catalogsync.ErrMappingNotFound
		}
		return nil, persistenceError(op, err)
	}
	return model.ToDomain(), nil
}

// ---------------------------------------------------------------------------
// SyncRecordReader implementation
// ---------------------------------------------------------------------------

// FindBySyncID finds a record by its sync ID
func (r *GormSyncRecordRepository) FindBySyncID(ctx context.Context, syncID string) (*catalogsync.SyncRecord, error) {
	return r.findOne(ctx, "find by sync id", "sync_id = ?", syncID)
}

// FindByStoreProductID finds a record by the product ID on one store
func (r *GormSyncRecordRepository) FindByStoreProductID(ctx context.Context, store catalogsync.Store, productID string) (*catalogsync.SyncRecord, error) {
	if productID == "" {
		return nil, catalogsync.ErrMappingNotFound
	}
	switch store {
	case catalogsync.StoreA:
		return r.findOne(ctx, "find by store product", "store_a_id = ?", productID)
	case catalogsync.StoreB:
		return r.findOne(ctx, "find by store product", "store_b_id = ?", productID)
	default:
		return nil, catalogsync.ErrInvalidStore
	}
}

// FindBySKU finds the record owning a variant with the SKU
func (r *GormSyncRecordRepository) FindBySKU(ctx context.Context, sku string) (*catalogsync.SyncRecord, error) {
	if sku == "" {
		return nil, catalogsync.ErrMappingNotFound
	}
	sub := r.db.Model(&models.VariantMappingModel{}).Select("sync_id").Where("sku = ?", sku)
	return r.findOne(ctx, "find by sku", "sync_id IN (?)", sub)
}

// FindByInventoryItem finds the record owning a variant with the inventory item on store
func (r *GormSyncRecordRepository) FindByInventoryItem(ctx context.Context, store catalogsync.Store, inventoryItemID string) (*catalogsync.SyncRecord, error) {
	if inventoryItemID == "" {
		return nil, catalogsync.ErrMappingNotFound
	}
	var column string
	switch store {
	case catalogsync.StoreA:
		column = "inventory_item_store_a_id"
	case catalogsync.StoreB:
		column = "inventory_item_store_b_id"
	default:
		return nil, catalogsync.ErrInvalidStore
	}
	sub := r.db.Model(&models.VariantMappingModel{}).Select("sync_id").Where(column+" = ?", inventoryItemID)
	return r.findOne(ctx, "find by inventory item", "sync_id IN (?)", sub)
}

// FindPendingInventory returns records whose initial inventory copy has not completed
func (r *GormSyncRecordRepository) FindPendingInventory(ctx context.Context, cutoff time.Time, limit int) ([]catalogsync.SyncRecord, error) {
	var rows []models.SyncRecordModel
	if err := r.withVariants(ctx).
		Where("state = ? AND last_synced_at < ?", string(catalogsync.SyncStateCreated), cutoff).
		Order("last_synced_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, persistenceError("find pending inventory", err)
	}
	return toDomainRecords(rows), nil
}

// List returns a page of records and the total count
func (r *GormSyncRecordRepository) List(ctx context.Context, filter catalogsync.SyncRecordFilter) ([]catalogsync.SyncRecord, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.SyncRecordModel{})
	if filter.State != "" {
		query = query.Where("state = ?", string(filter.State))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, persistenceError("count sync records", err)
	}

	var rows []models.SyncRecordModel
	page := r.withVariants(ctx).Model(&models.SyncRecordModel{})
	if filter.State != "" {
		page = page.Where("state = ?", string(filter.State))
	}
	if filter.PageSize > 0 {
		page = page.Limit(filter.PageSize).Offset(filter.Offset())
	}
	if err := page.Order(syncRecordOrder(filter.OrderBy, filter.OrderDir)).Find(&rows).Error; err != nil {
		return nil, 0, persistenceError("list sync records", err)
	}
	return toDomainRecords(rows), total, nil
}

func toDomainRecords(rows []models.SyncRecordModel) []catalogsync.SyncRecord {
	out := make([]catalogsync.SyncRecord, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out
}

// ---------------------------------------------------------------------------
// SyncRecordWriter implementation
// ---------------------------------------------------------------------------

// Save inserts or version-checks and updates the record, replacing its
// variant rows in the same transaction.
func (r *GormSyncRecordRepository) Save(ctx context.Context, record *catalogsync.SyncRecord) error {
	model := models.SyncRecordModelFromDomain(record)
	expected := record.Version

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if expected == 0 {
			model.Version = 1
			if err := tx.Omit(clause.Associations).Create(model).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return fmt.Errorf("%w: %s already exists", catalogsync.ErrVersionConflict, record.SyncID)
				}
				return persistenceError("insert sync record", err)
			}
		} else {
			model.Version = expected + 1
			result := tx.Model(&models.SyncRecordModel{}).
				Where("sync_id = ? AND version = ?", record.SyncID, expected).
				Select("*").
				Omit("sync_id", clause.Associations).
				Updates(model)
			if result.Error != nil {
				if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
					return fmt.Errorf("%w: %s store id taken", catalogsync.ErrVersionConflict, record.SyncID)
				}
				return persistenceError("update sync record", result.Error)
			}
			if result.RowsAffected == 0 {
				return fmt.Errorf("%w: %s at version %d", catalogsync.ErrVersionConflict, record.SyncID, expected)
			}
			if err := tx.Where("sync_id = ?", record.SyncID).Delete(&models.VariantMappingModel{}).Error; err != nil {
				return persistenceError("replace variant mappings", err)
			}
		}

		if len(model.Variants) > 0 {
			if err := tx.Create(&model.Variants).Error; err != nil {
				return persistenceError("insert variant mappings", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	record.Version = model.Version
	return nil
}

// Delete removes the record and its variant mappings
func (r *GormSyncRecordRepository) Delete(ctx context.Context, syncID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("sync_id = ?", syncID).Delete(&models.VariantMappingModel{}).Error; err != nil {
			return persistenceError("delete variant mappings", err)
		}
		result := tx.Where("sync_id = ?", syncID).Delete(&models.SyncRecordModel{})
		if result.Error != nil {
			return persistenceError("delete sync record", result.Error)
		}
		if result.RowsAffected == 0 {
			return catalogsync.ErrMappingNotFound
		}
		return nil
	})
}

var _ catalogsync.SyncRecordRepository = (*GormSyncRecordRepository)(nil)
