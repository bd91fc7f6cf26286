package shopify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/storesync/backend/internal/domain/catalogsync"
)

// Webhook delivery headers
const (
	HeaderHmac       = "X-Shopify-Hmac-Sha256"
	HeaderTopic      = "X-Shopify-Topic"
	HeaderShopDomain = "X-Shopify-Shop-Domain"
	HeaderWebhookID  = "X-Shopify-Webhook-Id"
)

// Sign returns the base64 HMAC-SHA256 of body keyed by secret
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a delivery's X-Shopify-Hmac-Sha256 value in constant time
func VerifySignature(body []byte, signature, secret string) error {
	if secret == "" {
		return fmt.Errorf("%w: webhook secret", catalogsync.ErrConfigurationMissing)
	}
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return fmt.Errorf("%w: missing signature", catalogsync.ErrSignatureInvalid)
	}
	given, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("%w: malformed signature", catalogsync.ErrSignatureInvalid)
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	if !hmac.Equal(given, mac.Sum(nil)) {
		return catalogsync.ErrSignatureInvalid
	}
	return nil
}
