package persistence

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/storesync/backend/internal/domain/catalogsync"
	"github.com/storesync/backend/internal/infrastructure/persistence/models"
)

// GormConfigEntryRepository implements catalogsync.ConfigEntryRepository using GORM
type GormConfigEntryRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormConfigEntryRepository creates a new GormConfigEntryRepository
func NewGormConfigEntryRepository(db *gorm.DB) *GormConfigEntryRepository {
	return &GormConfigEntryRepository{db: db, now: time.Now}
}

// Get returns the value for key; ok is false when the key is absent
func (r *GormConfigEntryRepository) Get(ctx context.Context, key string) (string, bool, error) {
	var model models.ConfigEntryModel
	if err := r.db.WithContext(ctx).Where("key = ?", key).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, persistenceError("get config entry", err)
	}
	return model.Value, true, nil
}

// Set upserts the value for key
func (r *GormConfigEntryRepository) Set(ctx context.Context, key, value string) error {
	model := models.ConfigEntryModel{Key: key, Value: value, UpdatedAt: r.now().UTC()}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&model).Error; err != nil {
		return persistenceError("set config entry", err)
	}
	return nil
}

var _ catalogsync.ConfigEntryRepository = (*GormConfigEntryRepository)(nil)
