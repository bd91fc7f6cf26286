package dto

import "net/http"

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	// ErrCodeUnknown is used when the error type is unknown
	ErrCodeUnknown = "ERR_UNKNOWN"
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "ERR_INTERNAL"
	// ErrCodeServiceUnavailable is used when a dependency is down
	ErrCodeServiceUnavailable = "ERR_SERVICE_UNAVAILABLE"
)

// Validation and input error codes
const (
	ErrCodeValidation      = "ERR_VALIDATION"
	ErrCodeBadRequest      = "ERR_BAD_REQUEST"
	ErrCodeInvalidInput    = "ERR_INVALID_INPUT"
	ErrCodeInvalidJSON     = "ERR_INVALID_JSON"
	ErrCodeRequestTooLarge = "ERR_REQUEST_TOO_LARGE"
)

// Authentication error codes
const (
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	ErrCodeForbidden    = "ERR_FORBIDDEN"
	ErrCodeTokenExpired = "ERR_TOKEN_EXPIRED"
	ErrCodeTokenInvalid = "ERR_TOKEN_INVALID"
	// ErrCodeSignatureInvalid is used when a webhook HMAC does not verify
	ErrCodeSignatureInvalid = "ERR_SIGNATURE_INVALID"
)

// Resource error codes
const (
	ErrCodeNotFound            = "ERR_NOT_FOUND"
	ErrCodeConflict            = "ERR_CONFLICT"
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
)

// Sync engine error codes
const (
	// ErrCodeConfigurationMissing is used when credentials or secrets are absent
	ErrCodeConfigurationMissing = "ERR_CONFIGURATION_MISSING"
	// ErrCodeMappingNotFound is used when no sync record matches
	ErrCodeMappingNotFound  = "ERR_MAPPING_NOT_FOUND"
	ErrCodeInvalidStore     = "ERR_INVALID_STORE"
	ErrCodeInvalidOperation = "ERR_INVALID_OPERATION"
	ErrCodeSameStore        = "ERR_SAME_STORE"
	ErrCodeInvalidRecord    = "ERR_INVALID_SYNC_RECORD"
	// ErrCodeVariantNotFound is used when an inventory item maps to no variant
	ErrCodeVariantNotFound = "ERR_VARIANT_NOT_FOUND"
	// ErrCodeMissingTargetMapping is used when the target item or location is unknown
	ErrCodeMissingTargetMapping = "ERR_MISSING_TARGET_MAPPING"
	// ErrCodePlatformRateLimited is used when the remote store kept answering 429
	ErrCodePlatformRateLimited = "ERR_PLATFORM_RATE_LIMITED"
	// ErrCodePlatform is used for any other remote store failure
	ErrCodePlatform    = "ERR_PLATFORM"
	ErrCodePersistence = "ERR_PERSISTENCE"
)

// Rate limiting error codes
const (
	ErrCodeRateLimited = "ERR_RATE_LIMITED"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:            http.StatusInternalServerError,
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,

	ErrCodeValidation:      http.StatusBadRequest,
	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeInvalidInput:    http.StatusBadRequest,
	ErrCodeInvalidJSON:     http.StatusBadRequest,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,

	ErrCodeUnauthorized:     http.StatusUnauthorized,
	ErrCodeForbidden:        http.StatusForbidden,
	ErrCodeTokenExpired:     http.StatusUnauthorized,
	ErrCodeTokenInvalid:     http.StatusUnauthorized,
	ErrCodeSignatureInvalid: http.StatusUnauthorized,

	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeConflict:            http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,

	// Client-correctable sync failures
	ErrCodeMappingNotFound:      http.StatusNotFound,
	ErrCodeInvalidStore:         http.StatusBadRequest,
	ErrCodeInvalidOperation:     http.StatusBadRequest,
	ErrCodeSameStore:            http.StatusBadRequest,
	ErrCodeInvalidRecord:        http.StatusBadRequest,
	ErrCodeVariantNotFound:      http.StatusUnprocessableEntity,
	ErrCodeMissingTargetMapping: http.StatusUnprocessableEntity,

	// Transient sync failures -> 5xx so the sender retries
	ErrCodeConfigurationMissing: http.StatusInternalServerError,
	ErrCodePlatformRateLimited:  http.StatusServiceUnavailable,
	ErrCodePlatform:             http.StatusBadGateway,
	ErrCodePersistence:          http.StatusInternalServerError,

	ErrCodeRateLimited: http.StatusTooManyRequests,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
