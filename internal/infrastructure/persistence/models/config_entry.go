package models

import "time"

// ConfigEntryModel stores one operational key/value setting.
type ConfigEntryModel struct {
	Key       string    `gorm:"type:varchar(128);primaryKey"`
	Value     string    `gorm:"type:text;not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ConfigEntryModel) TableName() string {
	return "config_entries"
}

// All returns every model, in dependency order, for AutoMigrate
func All() []any {
	return []any{
		&SyncRecordModel{},
		&VariantMappingModel{},
		&SyncLogModel{},
		&ConfigEntryModel{},
	}
}
