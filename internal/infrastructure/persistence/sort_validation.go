package persistence

import "strings"

// ValidateSortOrder normalizes the sort order to ASC or DESC, defaulting to DESC
func ValidateSortOrder(orderDir string) string {
	if strings.ToUpper(strings.TrimSpace(orderDir)) == "ASC" {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField returns sortField if whitelisted, otherwise defaultField
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// SyncRecordSortFields maps API sort names to sync_records columns
var SyncRecordSortFields = map[string]string{
	"updated_at":     "source_updated_at",
	"created_at":     "source_created_at",
	"last_synced_at": "last_synced_at",
	"title":          "title",
	"sync_id":        "sync_id",
}

// syncRecordOrder builds a safe ORDER BY clause for sync records
func syncRecordOrder(orderBy, orderDir string) string {
	allowed := make(map[string]bool, len(SyncRecordSortFields))
	for k := range SyncRecordSortFields {
		allowed[k] = true
	}
	field := ValidateSortField(orderBy, allowed, "updated_at")
	return SyncRecordSortFields[field] + " " + ValidateSortOrder(orderDir)
}
