// Package memory is the client for the chat-memory service that keeps a
// per-user transcript and a small profile (display name, phone).
package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/agenda-assistant/internal/observability/metrics"
	"github.com/wolfman30/agenda-assistant/internal/tenancy"
	"github.com/wolfman30/agenda-assistant/pkg/logging"
)

// Speaker values for Entry.From.
const (
	FromUser = "user"
	FromBot  = "bot"
)

// Entry is one transcript line. Name and Phone are optional profile hints
// extracted from the user's message.
type Entry struct {
	UserID    string
	From      string
	Text      string
	Timestamp time.Time
	Name      string
	Phone     string
}

// Client talks to the memory endpoints of the panel backend.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *logging.Logger
	metrics    *metrics.GatewayMetrics
	tracer     trace.Tracer
}

// NewClient constructs a memory client. A zero timeout keeps the 5s default.
func NewClient(baseURL string, timeout time.Duration, logger *logging.Logger, m *metrics.GatewayMetrics) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logger,
		metrics:    m,
		tracer:     otel.Tracer("assistant.internal.memory"),
	}
}

type wireEntry struct {
	From      string `json:"from"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

type appendRequest struct {
	Numero string    `json:"numero"`
	Entry  wireEntry `json:"entry"`
	Name   string    `json:"name,omitempty"`
	Phone  string    `json:"phone,omitempty"`
}

// Append records a transcript entry.
func (c *Client) Append(ctx context.Context, e Entry) error {
	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	body := appendRequest{
		Numero: e.UserID,
		Entry:  wireEntry{From: e.From, Text: e.Text, Timestamp: ts.UTC().Format(time.RFC3339)},
		Name:   strings.TrimSpace(e.Name),
		Phone:  strings.TrimSpace(e.Phone),
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("memory: marshal entry: %w", err)
	}
	if err := c.do(ctx, "append", http.MethodPost, "/api/memoria", payload, nil); err != nil {
		return fmt.Errorf("memory: append: %w", err)
	}
	return nil
}

// DisplayName returns the profile name recorded for the user, or "" when the
// profile is unknown.
func (c *Client) DisplayName(ctx context.Context, userID string) (string, error) {
	var out struct {
		Profile struct {
			Name string `json:"name"`
		} `json:"profile"`
	}
	path := "/api/memoria/" + url.PathEscape(userID)
	if err := c.do(ctx, "profile", http.MethodGet, path, nil, &out); err != nil {
		if isNotFound(err) {
			return "", nil
		}
		return "", fmt.Errorf("memory: profile: %w", err)
	}
	return strings.TrimSpace(out.Profile.Name), nil
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("memory API returned %d: %s", e.code, e.body)
}

func isNotFound(err error) bool {
	se, ok := err.(*statusError)
	return ok && se.code == http.StatusNotFound
}

func (c *Client) do(ctx context.Context, op, method, path string, payload []byte, out any) error {
	ctx, span := c.tracer.Start(ctx, "memory."+op)
	defer span.End()
	start := time.Now()
	status := "error"
	defer func() {
		c.metrics.ObserveRequest("memory", op, status, time.Since(start).Seconds())
	}()

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token, ok := tenancy.TokenFromContext(ctx); ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()
	status = fmt.Sprintf("%d", resp.StatusCode)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := string(respBody)
		if len(msg) > 300 {
			msg = msg[:300]
		}
		if resp.StatusCode != http.StatusNotFound {
			c.logger.Warn("memory API non-2xx response", "status", resp.StatusCode, "path", path, "body", msg)
		}
		return &statusError{code: resp.StatusCode, body: msg}
	}
	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
