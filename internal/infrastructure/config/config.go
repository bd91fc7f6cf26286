package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	HTTP      HTTPConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	StoreA    StoreConfig
	StoreB    StoreConfig
	Webhook   WebhookConfig
	Sync      SyncConfig
	Dedupe    DedupeConfig
	Auth      AuthConfig
	Telemetry TelemetryConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name    string
	Env     string
	Port    string
	Version string
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	MaxHeaderBytes   int
	MaxBodySize      int64
	CORSAllowOrigins []string
	CORSAllowMethods []string
	CORSAllowHeaders []string
	TrustedProxies   []string

	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver          string // postgres, sqlite
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	SQLitePath      string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// StoreConfig holds credentials for one catalog platform
type StoreConfig struct {
	Domain        string // shop name, "<domain>.myshopify.com"
	AccessToken   string
	APIVersion    string
	Timeout       time.Duration
	WebhookSecret string
}

// WebhookConfig holds inbound webhook settings
type WebhookConfig struct {
	BaseURL     string // public callback base used when registering webhooks
	MaxBodySize int64
}

// SyncConfig holds sync engine tuning
type SyncConfig struct {
	BulkDefaultLimit int
	BulkMaxLimit     int
	BulkItemDelay    time.Duration

	RetryMaxRetries      int
	RetryBaseDelay       time.Duration
	RetryMaxJitter       time.Duration
	RateLimitDefaultWait time.Duration

	InventoryResumeEnabled  bool
	InventoryResumeInterval time.Duration
	InventoryResumeGrace    time.Duration
	InventoryResumeBatch    int
}

// DedupeConfig holds webhook deduplication settings
type DedupeConfig struct {
	Enabled         bool
	Backend         string // memory, redis
	TTL             time.Duration
	MaxEntries      int
	CleanupInterval time.Duration
	KeyPrefix       string
}

// AuthConfig holds operator API authentication settings.
// An empty JWTSecret disables authentication of the manual sync API.
type AuthConfig struct {
	JWTSecret string
	Issuer    string
	TokenTTL  time.Duration
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool
	MetricsEnabled    bool
	CollectorEndpoint string
	SamplingRatio     float64
	ServiceName       string
	Insecure          bool
	ExportInterval    time.Duration
	DBTraceEnabled    bool
	DBSlowQueryThresh time.Duration
}

// legacyEnv maps config keys to the unprefixed environment variable names
// used by existing deployments.
var legacyEnv = map[string]string{
	"store_a.domain":         "STORE_A_DOMAIN",
	"store_a.access_token":   "STORE_A_ACCESS_TOKEN",
	"store_a.webhook_secret": "WEBHOOK_SECRET_A",
	"store_b.domain":         "STORE_B_DOMAIN",
	"store_b.access_token":   "STORE_B_ACCESS_TOKEN",
	"store_b.webhook_secret": "WEBHOOK_SECRET_B",
	"webhook.base_url":       "WEBHOOK_BASE_URL",
	"app.port":               "PORT",
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with SYNC_ prefix (e.g., SYNC_STORE_A_ACCESS_TOKEN)
// 2. Legacy unprefixed variables (e.g., STORE_A_ACCESS_TOKEN)
// 3. config.toml
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/storesync")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return loadFrom(v)
}

func loadFrom(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix("SYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, legacy := range legacyEnv {
		prefixed := "SYNC_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	cfg := &Config{
		App: AppConfig{
			Name:    v.GetString("app.name"),
			Env:     v.GetString("app.env"),
			Port:    v.GetString("app.port"),
			Version: v.GetString("app.version"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:   v.GetInt("http.max_header_bytes"),
			MaxBodySize:      v.GetInt64("http.max_body_size"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods: v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders: v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:   v.GetStringSlice("http.trusted_proxies"),

			RateLimitEnabled:  v.GetBool("http.rate_limit_enabled"),
			RateLimitRequests: v.GetInt("http.rate_limit_requests"),
			RateLimitWindow:   v.GetDuration("http.rate_limit_window"),
		},
		Database: DatabaseConfig{
			Driver:          v.GetString("database.driver"),
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			SQLitePath:      v.GetString("database.sqlite_path"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		StoreA: loadStore(v, "store_a"),
		StoreB: loadStore(v, "store_b"),
		Webhook: WebhookConfig{
			BaseURL:     strings.TrimRight(v.GetString("webhook.base_url"), "/"),
			MaxBodySize: v.GetInt64("webhook.max_body_size"),
		},
		Sync: SyncConfig{
			BulkDefaultLimit:        v.GetInt("sync.bulk_default_limit"),
			BulkMaxLimit:            v.GetInt("sync.bulk_max_limit"),
			BulkItemDelay:           v.GetDuration("sync.bulk_item_delay"),
			RetryMaxRetries:         v.GetInt("sync.retry_max_retries"),
			RetryBaseDelay:          v.GetDuration("sync.retry_base_delay"),
			RetryMaxJitter:          v.GetDuration("sync.retry_max_jitter"),
			RateLimitDefaultWait:    v.GetDuration("sync.rate_limit_default_wait"),
			InventoryResumeEnabled:  v.GetBool("sync.inventory_resume_enabled"),
			InventoryResumeInterval: v.GetDuration("sync.inventory_resume_interval"),
			InventoryResumeGrace:    v.GetDuration("sync.inventory_resume_grace"),
			InventoryResumeBatch:    v.GetInt("sync.inventory_resume_batch"),
		},
		Dedupe: DedupeConfig{
			Enabled:         !v.IsSet("dedupe.enabled") || v.GetBool("dedupe.enabled"),
			Backend:         v.GetString("dedupe.backend"),
			TTL:             v.GetDuration("dedupe.ttl"),
			MaxEntries:      v.GetInt("dedupe.max_entries"),
			CleanupInterval: v.GetDuration("dedupe.cleanup_interval"),
			KeyPrefix:       v.GetString("dedupe.key_prefix"),
		},
		Auth: AuthConfig{
			JWTSecret: v.GetString("auth.jwt_secret"),
			Issuer:    v.GetString("auth.issuer"),
			TokenTTL:  v.GetDuration("auth.token_ttl"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			MetricsEnabled:    v.GetBool("telemetry.metrics_enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			ExportInterval:    v.GetDuration("telemetry.export_interval"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBSlowQueryThresh: v.GetDuration("telemetry.db_slow_query_threshold"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadStore(v *viper.Viper, prefix string) StoreConfig {
	return StoreConfig{
		Domain:        v.GetString(prefix + ".domain"),
		AccessToken:   v.GetString(prefix + ".access_token"),
		APIVersion:    v.GetString(prefix + ".api_version"),
		Timeout:       v.GetDuration(prefix + ".timeout"),
		WebhookSecret: v.GetString(prefix + ".webhook_secret"),
	}
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "storesync"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "3000"
	}
	if cfg.App.Version == "" {
		cfg.App.Version = "1.0.0"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		// bulk sync requests run synchronously
		cfg.HTTP.WriteTimeout = 10 * time.Minute
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 10 << 20
	}
	if cfg.HTTP.RateLimitRequests == 0 {
		cfg.HTTP.RateLimitRequests = 60
	}
	if cfg.HTTP.RateLimitWindow == 0 {
		cfg.HTTP.RateLimitWindow = time.Minute
	}
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "Authorization", "X-Request-ID"}
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "storesync"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "storesync.db"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	for _, s := range []*StoreConfig{&cfg.StoreA, &cfg.StoreB} {
		if s.APIVersion == "" {
			s.APIVersion = "2023-10"
		}
		if s.Timeout == 0 {
			s.Timeout = 30 * time.Second
		}
	}
	if cfg.Webhook.MaxBodySize == 0 {
		cfg.Webhook.MaxBodySize = 1 << 20
	}
	if cfg.Sync.BulkDefaultLimit == 0 {
		cfg.Sync.BulkDefaultLimit = 50
	}
	if cfg.Sync.BulkMaxLimit == 0 {
		cfg.Sync.BulkMaxLimit = 250
	}
	if cfg.Sync.BulkItemDelay == 0 {
		cfg.Sync.BulkItemDelay = 500 * time.Millisecond
	}
	if cfg.Sync.RetryMaxRetries == 0 {
		cfg.Sync.RetryMaxRetries = 3
	}
	if cfg.Sync.RetryBaseDelay == 0 {
		cfg.Sync.RetryBaseDelay = time.Second
	}
	if cfg.Sync.RetryMaxJitter == 0 {
		cfg.Sync.RetryMaxJitter = time.Second
	}
	if cfg.Sync.RateLimitDefaultWait == 0 {
		cfg.Sync.RateLimitDefaultWait = 2 * time.Second
	}
	if cfg.Sync.InventoryResumeInterval == 0 {
		cfg.Sync.InventoryResumeInterval = 10 * time.Minute
	}
	if cfg.Sync.InventoryResumeGrace == 0 {
		cfg.Sync.InventoryResumeGrace = 5 * time.Minute
	}
	if cfg.Sync.InventoryResumeBatch == 0 {
		cfg.Sync.InventoryResumeBatch = 20
	}
	if cfg.Dedupe.Backend == "" {
		cfg.Dedupe.Backend = "memory"
	}
	if cfg.Dedupe.TTL == 0 {
		cfg.Dedupe.TTL = time.Hour
	}
	if cfg.Dedupe.MaxEntries == 0 {
		cfg.Dedupe.MaxEntries = 100_000
	}
	if cfg.Dedupe.CleanupInterval == 0 {
		cfg.Dedupe.CleanupInterval = time.Hour
	}
	if cfg.Dedupe.KeyPrefix == "" {
		cfg.Dedupe.KeyPrefix = "webhook:dedupe:"
	}
	if cfg.Auth.Issuer == "" {
		cfg.Auth.Issuer = "storesync"
	}
	if cfg.Auth.TokenTTL == 0 {
		cfg.Auth.TokenTTL = 24 * time.Hour
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "storesync"
	}
	if cfg.Telemetry.ExportInterval == 0 {
		cfg.Telemetry.ExportInterval = 60 * time.Second
	}
	if cfg.Telemetry.DBSlowQueryThresh == 0 {
		cfg.Telemetry.DBSlowQueryThresh = 200 * time.Millisecond
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("database.driver must be postgres or sqlite, got %q", c.Database.Driver)
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}
	switch c.Dedupe.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("dedupe.backend must be memory or redis, got %q", c.Dedupe.Backend)
	}
	if c.Sync.BulkDefaultLimit > c.Sync.BulkMaxLimit {
		return fmt.Errorf("sync.bulk_default_limit (%d) cannot exceed sync.bulk_max_limit (%d)",
			c.Sync.BulkDefaultLimit, c.Sync.BulkMaxLimit)
	}
	if c.Sync.RetryMaxRetries < 0 {
		return fmt.Errorf("sync.retry_max_retries cannot be negative")
	}

	if c.App.Env == "production" {
		if missing := c.MissingRequired(); len(missing) > 0 {
			return fmt.Errorf("missing required configuration in production: %s", strings.Join(missing, ", "))
		}
		if c.Database.Driver == "postgres" && c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < 32 {
			return fmt.Errorf("auth.jwt_secret must be at least 32 characters in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

// MissingRequired lists the required settings that are empty, using their
// environment variable names.
func (c *Config) MissingRequired() []string {
	var missing []string
	check := func(value, name string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	check(c.StoreA.Domain, "STORE_A_DOMAIN")
	check(c.StoreA.AccessToken, "STORE_A_ACCESS_TOKEN")
	check(c.StoreA.WebhookSecret, "WEBHOOK_SECRET_A")
	check(c.StoreB.Domain, "STORE_B_DOMAIN")
	check(c.StoreB.AccessToken, "STORE_B_ACCESS_TOKEN")
	check(c.StoreB.WebhookSecret, "WEBHOOK_SECRET_B")
	return missing
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns the Redis address
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
