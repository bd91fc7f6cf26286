package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/storesync/backend/internal/domain/catalogsync"
	"github.com/storesync/backend/internal/infrastructure/shopify"
	"github.com/storesync/backend/internal/interfaces/http/dto"
)

// RequestIDKey is the gin context key set by the RequestID middleware
const RequestIDKey = "request_id"

// RequestIDHeader carries the request ID on requests and responses
const RequestIDHeader = "X-Request-ID"

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// getRequestID extracts the request ID from the context
func getRequestID(c *gin.Context) string {
	if id := c.GetString(RequestIDKey); id != "" {
		return id
	}
	return c.GetHeader(RequestIDHeader)
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// SuccessWithMeta sends a success response with pagination meta
func (h *BaseHandler) SuccessWithMeta(c *gin.Context, data any, total int64, page, pageSize int) {
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(data, total, page, pageSize))
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, getRequestID(c)))
}

// ErrorWithCode sends an error response, deriving status code from error code
func (h *BaseHandler) ErrorWithCode(c *gin.Context, code, message string) {
	h.Error(c, dto.GetHTTPStatus(code), code, message)
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// NotFound sends a 404 not found response
func (h *BaseHandler) NotFound(c *gin.Context, message string) {
	h.Error(c, http.StatusNotFound, dto.ErrCodeNotFound, message)
}

// InternalError sends a 500 internal server error response
func (h *BaseHandler) InternalError(c *gin.Context, message string) {
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, message)
}

// ValidationError sends a 400 validation error response with details
func (h *BaseHandler) ValidationError(c *gin.Context, details []dto.ValidationDetail) {
	c.JSON(http.StatusBadRequest, dto.NewValidationErrorResponse(
		"Request validation failed",
		getRequestID(c),
		details,
	))
}

// syncErrorCodes maps sync engine sentinels to API error codes.
// Order matters: the first match wins.
var syncErrorCodes = []struct {
	err  error
	code string
}{
	{catalogsync.ErrSignatureInvalid, dto.ErrCodeSignatureInvalid},
	{catalogsync.ErrConfigurationMissing, dto.ErrCodeConfigurationMissing},
	{catalogsync.ErrMappingNotFound, dto.ErrCodeMappingNotFound},
	{catalogsync.ErrInvalidStore, dto.ErrCodeInvalidStore},
	{catalogsync.ErrInvalidOperation, dto.ErrCodeInvalidOperation},
	{catalogsync.ErrSameStore, dto.ErrCodeSameStore},
	{catalogsync.ErrInvalidSyncRecord, dto.ErrCodeInvalidRecord},
	{catalogsync.ErrVariantNotFound, dto.ErrCodeVariantNotFound},
	{catalogsync.ErrMissingTargetMapping, dto.ErrCodeMissingTargetMapping},
	{catalogsync.ErrVersionConflict, dto.ErrCodeConcurrencyConflict},
	{catalogsync.ErrTargetPlatformRateLimited, dto.ErrCodePlatformRateLimited},
	{catalogsync.ErrTargetPlatformError, dto.ErrCodePlatform},
	{catalogsync.ErrPersistence, dto.ErrCodePersistence},
	{shopify.ErrMalformedPayload, dto.ErrCodeInvalidJSON},
}

// ErrorCode returns the API error code for err, or "" when err is not a
// known sync engine error.
func ErrorCode(err error) string {
	for _, m := range syncErrorCodes {
		if errors.Is(err, m.err) {
			return m.code
		}
	}
	return ""
}

// HandleError converts sync engine and domain errors to HTTP responses.
// Unknown errors become a 500 without leaking their message.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)

	code := ErrorCode(err)
	if code == "" {
		h.InternalError(c, "An unexpected error occurred")
		return
	}
	h.ErrorWithCode(c, code, err.Error())
}
