package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/storesync/backend/internal/domain/catalogsync"
	"github.com/storesync/backend/internal/infrastructure/telemetry"
)

// maxResponseSize is the maximum allowed response size from the Admin API (10MB)
const maxResponseSize = 10 * 1024 * 1024

// AccessTokenHeader carries the Admin API access token
const AccessTokenHeader = "X-Shopify-Access-Token"

// Client is a catalog platform backed by the Shopify Admin REST API.
// It implements catalogsync.CatalogPlatform and catalogsync.WebhookAdmin.
type Client struct {
	config     Config
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
	metrics    *telemetry.SyncMetrics
	jitter     func() float64
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger used for retry warnings
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithMetrics records retries on the sync metrics
func WithMetrics(m *telemetry.SyncMetrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// NewClient creates a client for one shop
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Client{
		config:     cfg,
		baseURL:    cfg.BaseURL(),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     zap.NewNop(),
		jitter:     rand.Float64,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Store returns the store this client serves
func (c *Client) Store() catalogsync.Store {
	return c.config.Store
}

// response is a fully read API response
type response struct {
	status int
	header http.Header
	body   []byte
}

// statusError is a non-2xx response
type statusError struct {
	status     int
	retryAfter time.Duration
	hasHint    bool
	body       string
}

func (e *statusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("HTTP %d", e.status)
	}
	return fmt.Sprintf("HTTP %d: %s", e.status, e.body)
}

// retryable reports whether a failed attempt may be repeated
func (e *statusError) retryable() bool {
	return e.status == http.StatusTooManyRequests || e.status >= 500
}

// do executes a request with retries and decodes the JSON body into out.
// op names the client span.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, out any) (*response, error) {
	ctx, span := telemetry.StartClientSpan(ctx, telemetry.SpanName("shopify", op),
		attribute.String(telemetry.SpanAttrTargetStore, c.config.Store.String()),
		attribute.String("http.request.method", method),
	)
	defer span.End()

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	policy := newRetryPolicy(c.config, c.jitter)
	var resp *response
	operation := func() error {
		r, err := c.send(ctx, method, path, query, payload)
		if err == nil {
			resp = r
			return nil
		}
		var se *statusError
		if errors.As(err, &se) {
			if !se.retryable() {
				return backoff.Permanent(err)
			}
			if se.status == http.StatusTooManyRequests {
				policy.hint(se.retryAfter, se.hasHint)
			}
		}
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		status := 0
		var se *statusError
		if errors.As(err, &se) {
			status = se.status
		}
		c.metrics.RecordRetry(ctx, c.config.Store.String(), status)
		c.logger.Warn("Shopify request failed, retrying",
			zap.String("store", c.config.Store.String()),
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}

	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(c.config.MaxRetries)), ctx)
	if err := backoff.RetryNotify(operation, b, notify); err != nil {
		err = classify(err)
		telemetry.RecordError(span, err)
		return nil, err
	}

	if out != nil && len(resp.body) > 0 {
		if err := json.Unmarshal(resp.body, out); err != nil {
			err = fmt.Errorf("%w: failed to decode response: %v", catalogsync.ErrTargetPlatformError, err)
			telemetry.RecordError(span, err)
			return nil, err
		}
	}
	return resp, nil
}

// send performs a single HTTP round trip
func (c *Client) send(ctx context.Context, method, path string, query url.Values, payload []byte) (*response, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set(AccessTokenHeader, c.config.AccessToken)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		se := &statusError{status: resp.StatusCode, body: truncate(string(data), 256)}
		if resp.StatusCode == http.StatusTooManyRequests {
			se.retryAfter, se.hasHint = parseRetryAfter(resp.Header.Get("Retry-After"))
		}
		return nil, se
	}
	return &response{status: resp.StatusCode, header: resp.Header, body: data}, nil
}

// classify wraps a final failure with the matching domain sentinel
func classify(err error) error {
	var se *statusError
	if errors.As(err, &se) && se.status == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %v", catalogsync.ErrTargetPlatformRateLimited, err)
	}
	return fmt.Errorf("%w: %v", catalogsync.ErrTargetPlatformError, err)
}

// parseRetryAfter reads a Retry-After value in seconds
func parseRetryAfter(v string) (time.Duration, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil || secs < 0 {
		return 0, false
	}
	return time.Duration(secs * float64(time.Second)), true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// retryPolicy is exponential backoff with additive jitter: base * 2^attempt + rand(jitter).
// A rate-limit hint replaces the computed delay for the next wait only.
type retryPolicy struct {
	base      time.Duration
	maxJitter time.Duration
	rateWait  time.Duration
	rand      func() float64

	attempt  int
	override time.Duration
	pending  bool
}

func newRetryPolicy(cfg Config, rnd func() float64) *retryPolicy {
	return &retryPolicy{
		base:      cfg.BaseDelay,
		maxJitter: cfg.MaxJitter,
		rateWait:  cfg.RateLimitWait,
		rand:      rnd,
	}
}

// hint sets the wait before the next attempt after a 429
func (p *retryPolicy) hint(retryAfter time.Duration, ok bool) {
	p.pending = true
	if ok {
		p.override = retryAfter
	} else {
		p.override = p.rateWait
	}
}

// NextBackOff implements backoff.BackOff
func (p *retryPolicy) NextBackOff() time.Duration {
	defer func() { p.attempt++ }()
	if p.pending {
		p.pending = false
		return p.override
	}
	d := p.base * time.Duration(1<<p.attempt)
	if p.maxJitter > 0 && p.rand != nil {
		d += time.Duration(p.rand() * float64(p.maxJitter))
	}
	return d
}

// Reset implements backoff.BackOff
func (p *retryPolicy) Reset() {
	p.attempt = 0
	p.pending = false
	p.override = 0
}
