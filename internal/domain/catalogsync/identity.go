package catalogsync

import (
	"crypto/md5"
	"encoding/hex"
	"strconv"
	"time"
)

// GenerateSyncID derives a sync identity from the first available of sku,
// title or the current time. Only the time-based form is non-deterministic.
func GenerateSyncID(sku, title string, now time.Time) string {
	input := sku
	if input == "" {
		input = title
	}
	if input == "" {
		input = strconv.FormatInt(now.UnixMilli(), 10)
	}
	sum := md5.Sum([]byte(input))
	return hex.EncodeToString(sum[:])
}
