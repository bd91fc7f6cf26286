package middleware

import (
	"bytes"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/storesync/backend/internal/domain/catalogsync"
	"github.com/storesync/backend/internal/infrastructure/shopify"
	"github.com/storesync/backend/internal/interfaces/http/dto"
)

// RawBodyKey holds the verified webhook body in the gin context
const RawBodyKey = "webhook_raw_body"

// WebhookSignature verifies the X-Shopify-Hmac-Sha256 header of a delivery
// against the raw body, which is read at most maxBytes long. The verified body
// is kept in the context under RawBodyKey and restored on the request.
//
// A missing secret answers 500 so the platform retries once the deployment is
// fixed; a bad signature answers 401.
func WebhookSignature(store catalogsync.Store, secret string, maxBytes int64, logger *zap.Logger) gin.HandlerFunc {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodySize
	}
	return func(c *gin.Context) {
		body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, dto.WebhookAck{Error: "Payload too large"})
				return
			}
			c.AbortWithStatusJSON(http.StatusBadRequest, dto.WebhookAck{Error: "Unreadable body"})
			return
		}

		err = shopify.VerifySignature(body, c.GetHeader(shopify.HeaderHmac), secret)
		switch {
		case err == nil:
		case errors.Is(err, catalogsync.ErrConfigurationMissing):
			logger.Error("Webhook secret is not configured", zap.String("store", store.String()))
			c.AbortWithStatusJSON(http.StatusInternalServerError, dto.WebhookAck{Error: "Server configuration error"})
			return
		default:
			logger.Warn("Rejected webhook with invalid signature",
				zap.String("store", store.String()),
				zap.String("path", c.Request.URL.Path),
				zap.Error(err),
			)
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.WebhookAck{Error: "Invalid signature"})
			return
		}

		c.Set(RawBodyKey, body)
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		c.Next()
	}
}

// GetRawBody returns the body stored by WebhookSignature
func GetRawBody(c *gin.Context) ([]byte, bool) {
	v, ok := c.Get(RawBodyKey)
	if !ok {
		return nil, false
	}
	body, ok := v.([]byte)
	return body, ok
}
