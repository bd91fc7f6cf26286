package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/storesync/backend/internal/domain/catalogsync"
)

// SyncLogModel is the persistence model for catalogsync.SyncLogEntry.
type SyncLogModel struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey"`
	SyncID          string    `gorm:"type:varchar(64);index"`
	Operation       string    `gorm:"type:varchar(32);not null;index:idx_sync_logs_operation"`
	SourceStore     string    `gorm:"type:varchar(16);not null"`
	TargetStore     string    `gorm:"type:varchar(16);not null"`
	SourceProductID string    `gorm:"type:varchar(64)"`
	TargetProductID string    `gorm:"type:varchar(64)"`
	Status          string    `gorm:"type:varchar(16);not null;index:idx_sync_logs_status"`
	Error           string    `gorm:"type:text"`
	Timestamp       time.Time `gorm:"not null;index:idx_sync_logs_timestamp,sort:desc"`
}

// TableName returns the table name for GORM
func (SyncLogModel) TableName() string {
	return "sync_logs"
}

// ToDomain converts the persistence model to a domain SyncLogEntry.
func (m *SyncLogModel) ToDomain() catalogsync.SyncLogEntry {
	return catalogsync.SyncLogEntry{
		ID:              m.ID,
		SyncID:          m.SyncID,
		Operation:       catalogsync.Operation(m.Operation),
		SourceStore:     catalogsync.Store(m.SourceStore),
		TargetStore:     catalogsync.Store(m.TargetStore),
		SourceProductID: m.SourceProductID,
		TargetProductID: m.TargetProductID,
		Status:          catalogsync.LogStatus(m.Status),
		Error:           m.Error,
		Timestamp:       m.Timestamp,
	}
}

// SyncLogModelFromDomain creates a persistence model from a domain SyncLogEntry.
func SyncLogModelFromDomain(e *catalogsync.SyncLogEntry) *SyncLogModel {
	id := e.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	return &SyncLogModel{
		ID:              id,
		SyncID:          e.SyncID,
		Operation:       string(e.Operation),
		SourceStore:     string(e.SourceStore),
		TargetStore:     string(e.TargetStore),
		SourceProductID: e.SourceProductID,
		TargetProductID: e.TargetProductID,
		Status:          string(e.Status),
		Error:           e.Error,
		Timestamp:       e.Timestamp,
	}
}
