package persistence

import (
	"context"

	"gorm.io/gorm"

	"github.com/storesync/backend/internal/domain/catalogsync"
	"github.com/storesync/backend/internal/infrastructure/persistence/models"
)

const (
	defaultSyncLogLimit = 100
	maxSyncLogLimit     = 500
)

// GormSyncLogRepository implements catalogsync.SyncLogRepository using GORM
type GormSyncLogRepository struct {
	db *gorm.DB
}

// NewGormSyncLogRepository creates a new GormSyncLogRepository
func NewGormSyncLogRepository(db *gorm.DB) *GormSyncLogRepository {
	return &GormSyncLogRepository{db: db}
}

// Append stores one log entry
func (r *GormSyncLogRepository) Append(ctx context.Context, entry *catalogsync.SyncLogEntry) error {
	model := models.SyncLogModelFromDomain(entry)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return persistenceError("append sync log", err)
	}
	entry.ID = model.ID
	return nil
}

// List returns the newest entries first, at most 500
func (r *GormSyncLogRepository) List(ctx context.Context, filter catalogsync.SyncLogFilter) ([]catalogsync.SyncLogEntry, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultSyncLogLimit
	}
	if limit > maxSyncLogLimit {
		limit = maxSyncLogLimit
	}

	query := r.db.WithContext(ctx).Model(&models.SyncLogModel{})
	if filter.Operation != "" {
		query = query.Where("operation = ?", string(filter.Operation))
	}
	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	}
	if filter.SyncID != "" {
		query = query.Where("sync_id = ?", filter.SyncID)
	}

	var rows []models.SyncLogModel
	if err := query.Order("timestamp DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, persistenceError("list sync logs", err)
	}

	entries := make([]catalogsync.SyncLogEntry, len(rows))
	for i := range rows {
		entries[i] = rows[i].ToDomain()
	}
	return entries, nil
}

var _ catalogsync.SyncLogRepository = (*GormSyncLogRepository)(nil)
