package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateSortOrder(t *testing.T) {
	assert.Equal(t, "ASC", ValidateSortOrder(" asc "))
	assert.Equal(t, "DESC", ValidateSortOrder("desc"))
	assert.Equal(t, "DESC", ValidateSortOrder("; DROP TABLE"))
	assert.Equal(t, "DESC", ValidateSortOrder(""))
}

func TestSyncRecordOrder(t *testing.T) {
	tests := []struct {
		name, by, dir, want string
	}{
		{"default", "", "", "source_updated_at DESC"},
		{"mapped field", "created_at", "asc", "source_created_at ASC"},
		{"title", "title", "ASC", "title ASC"},
		{"injection attempt falls back", "title; DROP TABLE sync_records", "asc", "source_updated_at ASC"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, syncRecordOrder(tt.by, tt.dir))
		})
	}
}
