package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/agenda-assistant/internal/app/bootstrap"
	appconfig "github.com/wolfman30/agenda-assistant/internal/config"
	"github.com/wolfman30/agenda-assistant/pkg/logging"
)

func testConfig(redisAddr string) *appconfig.Config {
	return &appconfig.Config{
		RedisAddr:      redisAddr,
		PanelBaseURL:   "http://127.0.0.1:1",
		BillingBaseURL: "http://127.0.0.1:1",
		GatewayTimeout: time.Second,
		UTCOffsetHours: -3,
		StateTTL:       time.Hour,
		UserConfigTTL:  time.Minute,
		LockTimeout:    time.Second,
		RateLimitRPS:   100,
		RateLimitBurst: 100,
		LLMProvider:    bootstrap.ProviderRules,
	}
}

func TestSetupMetricsExposesProcessCollectors(t *testing.T) {
	handler, registry := setupMetrics()
	require.NotNil(t, handler)
	require.NotNil(t, registry)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "go_goroutines")
}

func TestNewAppInMemory(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := newApp(ctx, testConfig(""), logging.Discard())
	require.NoError(t, err)
	defer a.Close()

	rr := httptest.NewRecorder()
	a.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"ok"`)

	rr = httptest.NewRecorder()
	a.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestNewAppWithRedisReportsHealth(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := newApp(ctx, testConfig(mr.Addr()), logging.Discard())
	require.NoError(t, err)
	defer a.Close()

	rr := httptest.NewRecorder()
	a.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	mr.Close()
	rr = httptest.NewRecorder()
	a.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "redis")
}

func TestNewAppRejectsBadRequests(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := newApp(ctx, testConfig(""), logging.Discard())
	require.NoError(t, err)
	defer a.Close()

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/generate", strings.NewReader(`{"sender":""}`))
	a.Handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestNewAppFailsOnBadDatabaseURL(t *testing.T) {
	cfg := testConfig("")
	cfg.DatabaseURL = "::not a url"

	_, err := newApp(context.Background(), cfg, logging.Discard())
	require.Error(t, err)
}
