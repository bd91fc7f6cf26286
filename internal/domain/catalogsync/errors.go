package catalogsync

import "errors"

// Sync engine errors. Adapters and services wrap these with fmt.Errorf("%w")
// so callers can classify failures with errors.Is.
var (
	// ErrSignatureInvalid is returned when a webhook HMAC does not verify
	ErrSignatureInvalid = errors.New("catalogsync: webhook signature invalid")
	// ErrConfigurationMissing is returned when credentials or secrets are absent
	ErrConfigurationMissing = errors.New("catalogsync: configuration missing")
	// ErrMappingNotFound is returned when no SyncRecord matches a lookup
	ErrMappingNotFound = errors.New("catalogsync: sync record not found")
	// ErrTargetPlatformRateLimited is returned when retries were exhausted on 429 responses
	ErrTargetPlatformRateLimited = errors.New("catalogsync: target platform rate limited")
	// ErrTargetPlatformError is returned for any other remote platform failure
	ErrTargetPlatformError = errors.New("catalogsync: target platform error")
	// ErrPersistence is returned when the sync store fails
	ErrPersistence = errors.New("catalogsync: persistence error")
	// ErrDuplicateDelivery marks an already-processed webhook delivery.
	// It is an acknowledgement, not a failure.
	ErrDuplicateDelivery = errors.New("catalogsync: duplicate delivery")
	// ErrVariantNotFound is returned when no VariantMapping matches an inventory item
	ErrVariantNotFound = errors.New("catalogsync: variant not found")
	// ErrMissingTargetMapping is returned when the target inventory item or location is unknown
	ErrMissingTargetMapping = errors.New("catalogsync: missing target mapping")
	// ErrSameStore is returned when source and target are the same store
	ErrSameStore = errors.New("catalogsync: source and target stores cannot be the same")
	// ErrInvalidStore is returned for an unknown store identifier
	ErrInvalidStore = errors.New("catalogsync: invalid store")
	// ErrInvalidOperation is returned for an unknown sync operation
	ErrInvalidOperation = errors.New("catalogsync: invalid operation")
	// ErrVersionConflict is returned when a SyncRecord was modified concurrently
	ErrVersionConflict = errors.New("catalogsync: sync record version conflict")
	// ErrInvalidSyncRecord is returned when a SyncRecord fails validation
	ErrInvalidSyncRecord = errors.New("catalogsync: invalid sync record")
)

// IsTransient reports whether err is an infrastructure failure that the
// sending platform should retry by re-delivering the event.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTargetPlatformRateLimited) ||
		errors.Is(err, ErrTargetPlatformError) ||
		errors.Is(err, ErrPersistence) ||
		errors.Is(err, ErrVersionConflict)
}
