package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/storesync/backend/internal/infrastructure/shopify"
)

// TracingConfig holds configuration for the tracing middleware.
type TracingConfig struct {
	ServiceName string
	Enabled     bool
}

// DefaultTracingConfig returns default tracing configuration.
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		ServiceName: "storesync",
		Enabled:     true,
	}
}

// Tracing returns the otelgin middleware, or a pass-through when disabled.
// Register SpanAttributes right after it.
func Tracing(cfg TracingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}
	return otelgin.Middleware(cfg.ServiceName)
}

// SpanAttributes adds the request id and, for webhook deliveries, the topic,
// shop and delivery id to the server span. 4xx and 5xx responses are marked
// with codes.Error.
func SpanAttributes() gin.HandlerFunc {
	return spanAttributes
}

func spanAttributes(c *gin.Context) {
	span := trace.SpanFromContext(c.Request.Context())
	if !span.IsRecording() {
		c.Next()
		return
	}

	if requestID := GetRequestID(c); requestID != "" {
		span.SetAttributes(attribute.String("request_id", requestID))
	}
	for header, key := range map[string]string{
		shopify.HeaderTopic:      "webhook.topic",
		shopify.HeaderShopDomain: "webhook.shop_domain",
		shopify.HeaderWebhookID:  "webhook.id",
	} {
		if v := c.GetHeader(header); v != "" {
			span.SetAttributes(attribute.String(key, v))
		}
	}

	c.Next()

	if status := c.Writer.Status(); status >= http.StatusBadRequest {
		span.SetStatus(codes.Error, http.StatusText(status))
		span.SetAttributes(attribute.Int("http.status_code", status))
	}
}
