package shopify

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/storesync/backend/internal/domain/catalogsync"
	"github.com/storesync/backend/internal/infrastructure/config"
)

// DefaultAPIVersion is the Admin REST API version the client speaks
const DefaultAPIVersion = "2023-10"

// Config validation errors
var (
	ErrConfigMissingDomain      = errors.New("shopify: shop domain is required")
	ErrConfigMissingAccessToken = errors.New("shopify: access token is required")
	ErrConfigInvalidStore       = errors.New("shopify: store must be storeA or storeB")
	ErrConfigInvalidTimeout     = errors.New("shopify: timeout must be positive")
	ErrConfigInvalidRetries     = errors.New("shopify: max retries cannot be negative")
)

// Config holds the connection settings for one shop
type Config struct {
	Store       catalogsync.Store
	Domain      string // shop name; "acme" resolves to acme.myshopify.com
	AccessToken string
	APIVersion  string
	Timeout     time.Duration

	// BaseURLOverride replaces the derived admin URL (used against test servers)
	BaseURLOverride string

	MaxRetries    int
	BaseDelay     time.Duration
	MaxJitter     time.Duration
	RateLimitWait time.Duration // wait on 429 without a Retry-After header
}

// DefaultConfig returns a Config with the retry policy filled in
func DefaultConfig(store catalogsync.Store) Config {
	return Config{
		Store:         store,
		APIVersion:    DefaultAPIVersion,
		Timeout:       30 * time.Second,
		MaxRetries:    3,
		BaseDelay:     time.Second,
		MaxJitter:     time.Second,
		RateLimitWait: 2 * time.Second,
	}
}

// ConfigFromApp builds a client config from the application settings of one store
func ConfigFromApp(store catalogsync.Store, sc config.StoreConfig, sync config.SyncConfig) Config {
	cfg := DefaultConfig(store)
	cfg.Domain = sc.Domain
	cfg.AccessToken = sc.AccessToken
	if sc.APIVersion != "" {
		cfg.APIVersion = sc.APIVersion
	}
	if sc.Timeout > 0 {
		cfg.Timeout = sc.Timeout
	}
	if sync.RetryMaxRetries > 0 {
		cfg.MaxRetries = sync.RetryMaxRetries
	}
	if sync.RetryBaseDelay > 0 {
		cfg.BaseDelay = sync.RetryBaseDelay
	}
	if sync.RetryMaxJitter > 0 {
		cfg.MaxJitter = sync.RetryMaxJitter
	}
	if sync.RateLimitDefaultWait > 0 {
		cfg.RateLimitWait = sync.RateLimitDefaultWait
	}
	return cfg
}

// Validate checks that the configuration is usable.
// Errors wrap catalogsync.ErrConfigurationMissing when a credential is absent.
func (c *Config) Validate() error {
	if !c.Store.IsValid() {
		return ErrConfigInvalidStore
	}
	if strings.TrimSpace(c.Domain) == "" && c.BaseURLOverride == "" {
		return fmt.Errorf("%w: %w", catalogsync.ErrConfigurationMissing, ErrConfigMissingDomain)
	}
	if strings.TrimSpace(c.AccessToken) == "" {
		return fmt.Errorf("%w: %w", catalogsync.ErrConfigurationMissing, ErrConfigMissingAccessToken)
	}
	if c.Timeout <= 0 {
		return ErrConfigInvalidTimeout
	}
	if c.MaxRetries < 0 {
		return ErrConfigInvalidRetries
	}
	return nil
}

// BaseURL returns the admin API root without a trailing slash
func (c *Config) BaseURL() string {
	if c.BaseURLOverride != "" {
		return strings.TrimSuffix(c.BaseURLOverride, "/")
	}
	version := c.APIVersion
	if version == "" {
		version = DefaultAPIVersion
	}
	host := strings.TrimSpace(c.Domain)
	if !strings.Contains(host, ".") {
		host += ".myshopify.com"
	}
	return fmt.Sprintf("https://%s/admin/api/%s", host, version)
}
