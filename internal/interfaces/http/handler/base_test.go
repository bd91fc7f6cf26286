package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storesync/backend/internal/domain/catalogsync"
	"github.com/storesync/backend/internal/infrastructure/shopify"
	"github.com/storesync/backend/internal/interfaces/http/dto"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestContext() (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	return c, w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestGetRequestID(t *testing.T) {
	c, _ := newTestContext()
	assert.Empty(t, getRequestID(c))

	c.Request.Header.Set(RequestIDHeader, "header-id")
	assert.Equal(t, "header-id", getRequestID(c))

	c.Set(RequestIDKey, "ctx-id")
	assert.Equal(t, "ctx-id", getRequestID(c))
}

func TestBaseHandler_Responses(t *testing.T) {
	h := &BaseHandler{}

	t.Run("success", func(t *testing.T) {
		c, w := newTestContext()
		h.Success(c, gin.H{"ok": true})

		assert.Equal(t, http.StatusOK, w.Code)
		resp := decodeResponse(t, w)
		assert.True(t, resp.Success)
		assert.Nil(t, resp.Error)
	})

	t.Run("success with meta", func(t *testing.T) {
		c, w := newTestContext()
		h.SuccessWithMeta(c, []int{1}, 41, 2, 20)

		resp := decodeResponse(t, w)
		require.NotNil(t, resp.Meta)
		assert.Equal(t, int64(41), resp.Meta.Total)
		assert.Equal(t, 3, resp.Meta.TotalPages)
	})

	t.Run("error carries request id", func(t *testing.T) {
		c, w := newTestContext()
		c.Set(RequestIDKey, "req-1")
		h.NotFound(c, "gone")

		assert.Equal(t, http.StatusNotFound, w.Code)
		resp := decodeResponse(t, w)
		assert.False(t, resp.Success)
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeNotFound, resp.Error.Code)
		assert.Equal(t, "req-1", resp.Error.RequestID)
	})

	t.Run("validation details", func(t *testing.T) {
		c, w := newTestContext()
		h.ValidationError(c, []dto.ValidationDetail{{Field: "productId", Message: "productId is required"}})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		resp := decodeResponse(t, w)
		require.Len(t, resp.Error.Details, 1)
		assert.Equal(t, "productId", resp.Error.Details[0].Field)
	})
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		code string
	}{
		{fmt.Errorf("%w: sync-9", catalogsync.ErrMappingNotFound), dto.ErrCodeMappingNotFound},
		{fmt.Errorf("%w: 429", catalogsync.ErrTargetPlatformRateLimited), dto.ErrCodePlatformRateLimited},
		{fmt.Errorf("%w: 502", catalogsync.ErrTargetPlatformError), dto.ErrCodePlatform},
		{catalogsync.ErrSameStore, dto.ErrCodeSameStore},
		{catalogsync.ErrVariantNotFound, dto.ErrCodeVariantNotFound},
		{fmt.Errorf("decode: %w", shopify.ErrMalformedPayload), dto.ErrCodeInvalidJSON},
		{errors.New("boom"), ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.code, ErrorCode(tt.err), tt.err.Error())
	}
}

func TestBaseHandler_HandleError(t *testing.T) {
	h := &BaseHandler{}

	t.Run("known error keeps its message", func(t *testing.T) {
		c, w := newTestContext()
		h.HandleError(c, fmt.Errorf("%w: record sync-1", catalogsync.ErrMappingNotFound))

		assert.Equal(t, http.StatusNotFound, w.Code)
		resp := decodeResponse(t, w)
		assert.Equal(t, dto.ErrCodeMappingNotFound, resp.Error.Code)
		assert.Contains(t, resp.Error.Message, "sync-1")
		assert.Len(t, c.Errors, 1)
	})

	t.Run("unknown error is hidden", func(t *testing.T) {
		c, w := newTestContext()
		h.HandleError(c, errors.New("dial tcp 10.0.0.1: refused"))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		resp := decodeResponse(t, w)
		assert.NotContains(t, resp.Error.Message, "10.0.0.1")
	})

	t.Run("nil is a no-op", func(t *testing.T) {
		c, w := newTestContext()
		h.HandleError(c, nil)
		assert.Equal(t, 0, w.Body.Len())
	})
}
