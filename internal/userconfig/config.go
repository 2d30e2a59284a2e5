// Package userconfig fetches the per-business configuration (LLM key,
// billing key, persona instructions) that governs each inbound message.
package userconfig

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/agenda-assistant/internal/observability/metrics"
	"github.com/wolfman30/agenda-assistant/internal/store"
	"github.com/wolfman30/agenda-assistant/pkg/logging"
)

// ErrUnauthorized is returned when the backend rejects the caller's token.
var ErrUnauthorized = errors.New("userconfig: unauthorized")

// Config is the configuration bound to one panel account.
type Config struct {
	OpenAIKey          string `json:"openaiKey"`
	BillingKey         string `json:"asaasKey"`
	CustomInstructions string `json:"customInstructions"`
}

// HasBillingKey reports whether invoices can be issued for this account.
func (c Config) HasBillingKey() bool {
	return strings.TrimSpace(c.BillingKey) != ""
}

// Client reads /api/get-config, optionally through a cache keyed by a hash
// of the bearer token.
type Client struct {
	httpClient *http.Client
	baseURL    string
	cache      store.KeyedStore[Config]
	logger     *logging.Logger
	metrics    *metrics.GatewayMetrics
	tracer     trace.Tracer
}

// Option configures a Client.
type Option func(*Client)

// WithCache caches successful lookups. Expiry belongs to the store.
func WithCache(cache store.KeyedStore[Config]) Option {
	return func(c *Client) { c.cache = cache }
}

func WithMetrics(m *metrics.GatewayMetrics) Option {
	return func(c *Client) { c.metrics = m }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// NewClient constructs a config client against the panel backend.
func NewClient(baseURL string, logger *logging.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	c := &Client{
		httpClient: &http.Client{Timeout: 5 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logger,
		tracer:     otel.Tracer("assistant.internal.userconfig"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lookup returns the configuration for the account behind token.
func (c *Client) Lookup(ctx context.Context, token string) (Config, error) {
	ctx, span := c.tracer.Start(ctx, "userconfig.lookup")
	defer span.End()

	key := cacheKey(token)
	if c.cache != nil {
		cfg, ok, err := c.cache.Get(ctx, key)
		if err != nil {
			c.logger.Warn("user config cache read failed", "error", err)
		} else if ok {
			return cfg, nil
		}
	}

	cfg, err := c.fetch(ctx, token)
	if err != nil {
		span.RecordError(err)
		return Config{}, err
	}
	if c.cache != nil {
		if err := c.cache.Set(ctx, key, cfg); err != nil {
			c.logger.Warn("user config cache write failed", "error", err)
		}
	}
	return cfg, nil
}

func (c *Client) fetch(ctx context.Context, token string) (Config, error) {
	start := time.Now()
	status := "error"
	defer func() {
		c.metrics.ObserveRequest("userconfig", "get_config", status, time.Since(start).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/get-config", nil)
	if err != nil {
		return Config{}, fmt.Errorf("userconfig: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Config{}, fmt.Errorf("userconfig: http request: %w", err)
	}
	defer resp.Body.Close()
	status = fmt.Sprintf("%d", resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Config{}, fmt.Errorf("userconfig: read response: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return Config{}, ErrUnauthorized
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		msg := string(body)
		if len(msg) > 300 {
			msg = msg[:300]
		}
		c.logger.Warn("config API non-2xx response", "status", resp.StatusCode, "body", msg)
		return Config{}, fmt.Errorf("userconfig: config API returned %d", resp.StatusCode)
	}

	var cfg Config
	if err := json.Unmarshal(body, &cfg); err != nil {
		return Config{}, fmt.Errorf("userconfig: decode response: %w", err)
	}
	cfg.OpenAIKey = strings.TrimSpace(cfg.OpenAIKey)
	cfg.BillingKey = strings.TrimSpace(cfg.BillingKey)
	return cfg, nil
}

func cacheKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:16])
}
