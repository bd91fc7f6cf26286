package catalogsync

import (
	"time"

	"github.com/google/uuid"
)

// Operation is the kind of sync performed
type Operation string

const (
	OperationCreate          Operation = "create"
	OperationUpdate          Operation = "update"
	OperationDelete          Operation = "delete"
	OperationInventoryUpdate Operation = "inventory_update"
)

// ParseOperation validates a product operation name (create/update/delete)
func ParseOperation(s string) (Operation, error) {
	switch op := Operation(s); op {
	case OperationCreate, OperationUpdate, OperationDelete:
		return op, nil
	default:
		return "", ErrInvalidOperation
	}
}

// IsValid returns true for every known operation including inventory_update
func (o Operation) IsValid() bool {
	switch o {
	case OperationCreate, OperationUpdate, OperationDelete, OperationInventoryUpdate:
		return true
	}
	return false
}

// LogStatus is the outcome recorded in a SyncLogEntry
type LogStatus string

const (
	LogStatusSuccess LogStatus = "success"
	LogStatusFailed  LogStatus = "failed"
	LogStatusSkipped LogStatus = "skipped"
)

// IsValid returns true if the status is known
func (s LogStatus) IsValid() bool {
	return s == LogStatusSuccess || s == LogStatusFailed || s == LogStatusSkipped
}

// SyncLogEntry is an append-only audit record of one sync operation.
// It is never used for control decisions.
type SyncLogEntry struct {
	ID              uuid.UUID
	SyncID          string
	Operation       Operation
	SourceStore     Store
	TargetStore     Store
	SourceProductID string
	TargetProductID string
	Status          LogStatus
	Error           string
	Timestamp       time.Time
}

// NewSyncLogEntry creates a log entry stamped with now
func NewSyncLogEntry(op Operation, source Store, sourceProductID string, now time.Time) *SyncLogEntry {
	return &SyncLogEntry{
		ID:              uuid.New(),
		Operation:       op,
		SourceStore:     source,
		TargetStore:     source.Other(),
		SourceProductID: sourceProductID,
		Timestamp:       now,
	}
}
