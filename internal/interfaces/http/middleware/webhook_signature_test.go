package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/storesync/backend/internal/domain/catalogsync"
	"github.com/storesync/backend/internal/infrastructure/shopify"
)

const testSecret = "hush"

func newSignedRouter(secret string, maxBytes int64, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.POST("/hook", WebhookSignature(catalogsync.StoreA, secret, maxBytes, logger), func(c *gin.Context) {
		body, ok := GetRawBody(c)
		if !ok {
			c.Status(http.StatusTeapot)
			return
		}
		c.String(http.StatusOK, string(body))
	})
	return router
}

func signedRequest(body, signature string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/hook", strings.NewReader(body))
	if signature != "" {
		req.Header.Set(shopify.HeaderHmac, signature)
	}
	return req
}

func TestWebhookSignature(t *testing.T) {
	body := `{"id":1}`

	t.Run("valid signature passes the raw body on", func(t *testing.T) {
		w := httptest.NewRecorder()
		newSignedRouter(testSecret, 0, zap.NewNop()).ServeHTTP(w, signedRequest(body, shopify.Sign([]byte(body), testSecret)))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, body, w.Body.String())
	})

	t.Run("missing signature", func(t *testing.T) {
		w := httptest.NewRecorder()
		newSignedRouter(testSecret, 0, zap.NewNop()).ServeHTTP(w, signedRequest(body, ""))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("tampered body", func(t *testing.T) {
		core, logs := observer.New(zap.WarnLevel)
		w := httptest.NewRecorder()
		newSignedRouter(testSecret, 0, zap.New(core)).ServeHTTP(w, signedRequest(`{"id":2}`, shopify.Sign([]byte(body), testSecret)))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.JSONEq(t, `{"received":false,"error":"Invalid signature"}`, w.Body.String())
		assert.Equal(t, 1, logs.FilterMessage("Rejected webhook with invalid signature").Len())
	})

	t.Run("missing secret is a server error", func(t *testing.T) {
		w := httptest.NewRecorder()
		newSignedRouter("", 0, zap.NewNop()).ServeHTTP(w, signedRequest(body, shopify.Sign([]byte(body), testSecret)))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})

	t.Run("oversized body", func(t *testing.T) {
		large := strings.Repeat("x", 64)
		w := httptest.NewRecorder()
		newSignedRouter(testSecret, 16, zap.NewNop()).ServeHTTP(w, signedRequest(large, shopify.Sign([]byte(large), testSecret)))

		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})
}
