// Package calendar talks to the panel backend that owns the business
// calendar: free slots, event edits and the event feed.
package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/agenda-assistant/internal/booking"
	"github.com/wolfman30/agenda-assistant/internal/observability/metrics"
	"github.com/wolfman30/agenda-assistant/internal/tenancy"
	"github.com/wolfman30/agenda-assistant/pkg/logging"
)

const (
	defaultBaseURL = "http://localhost:3001"
	defaultTimeout = 5 * time.Second
)

// Client wraps the panel backend's calendar endpoints. The caller's bearer
// token is read from the context and forwarded on every call.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	loc         *time.Location
	readRetries int
	logger      *logging.Logger
	metrics     *metrics.GatewayMetrics
	tracer      trace.Tracer
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithReadRetries retries idempotent reads up to n extra times on transport errors or 5xx.
func WithReadRetries(n int) Option {
	return func(c *Client) { c.readRetries = n }
}

// WithLocation sets the timezone used for timestamps that carry no offset.
func WithLocation(loc *time.Location) Option {
	return func(c *Client) { c.loc = loc }
}

func WithMetrics(m *metrics.GatewayMetrics) Option {
	return func(c *Client) { c.metrics = m }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// NewClient constructs a calendar client.
func NewClient(baseURL string, logger *logging.Logger, opts ...Option) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultBaseURL
	}
	if logger == nil {
		logger = logging.Default()
	}
	c := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		loc:        booking.FixedZone(booking.DefaultUTCOffsetHours),
		logger:     logger,
		tracer:     otel.Tracer("assistant.internal.calendar"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type wireSlot struct {
	ID    string `json:"id"`
	Title string `json:"titulo"`
	Start string `json:"inicio"`
	End   string `json:"fim"`
}

type wireTime struct {
	DateTime string `json:"dateTime"`
}

type wireEvent struct {
	ID      string   `json:"id"`
	Summary string   `json:"summary"`
	Start   wireTime `json:"start"`
	End     wireTime `json:"end"`
	ColorID string   `json:"colorId,omitempty"`
}

// ListSlots returns the free slots on a YYYY-MM-DD date, ordered by start.
func (c *Client) ListSlots(ctx context.Context, date string) ([]booking.Slot, error) {
	q := url.Values{}
	q.Set("date", date)
	return c.listSlots(ctx, "list_slots", "/api/horarios-disponiveis?"+q.Encode())
}

// ListAllSlots returns every free slot the backend knows about.
func (c *Client) ListAllSlots(ctx context.Context) ([]booking.Slot, error) {
	return c.listSlots(ctx, "list_all_slots", "/api/horarios-disponiveis")
}

func (c *Client) listSlots(ctx context.Context, op, path string) ([]booking.Slot, error) {
	var wrapped struct {
		Slots []wireSlot `json:"horarios"`
	}
	if err := c.read(ctx, op, path, &wrapped); err != nil {
		return nil, fmt.Errorf("calendar: %s: %w", op, err)
	}

	slots := make([]booking.Slot, 0, len(wrapped.Slots))
	for _, ws := range wrapped.Slots {
		start, err := c.parseTime(ws.Start)
		if err != nil || ws.ID == "" {
			c.logger.Warn("calendar slot skipped", "id", ws.ID, "start", ws.Start)
			continue
		}
		end, err := c.parseTime(ws.End)
		if err != nil {
			end = start.Add(booking.EventDuration)
		}
		slots = append(slots, booking.Slot{ID: ws.ID, Title: ws.Title, Start: start, End: end})
	}
	booking.SortByStart(slots)
	return slots, nil
}

// EditEvent turns the free slot event into the booked appointment.
func (c *Client) EditEvent(ctx context.Context, event booking.Event) error {
	if err := c.do(ctx, "edit_event", http.MethodPut, "/api/google/editar-evento", c.toWire(event), nil); err != nil {
		return fmt.Errorf("calendar: edit event: %w", err)
	}
	return nil
}

// CreateEvent books a new event at the slot's time.
func (c *Client) CreateEvent(ctx context.Context, event booking.Event) error {
	if err := c.do(ctx, "create_event", http.MethodPost, "/api/google/criar-evento", c.toWire(event), nil); err != nil {
		return fmt.Errorf("calendar: create event: %w", err)
	}
	return nil
}

func (c *Client) toWire(event booking.Event) wireEvent {
	return wireEvent{
		ID:      event.ID,
		Summary: event.Summary,
		Start:   wireTime{DateTime: event.Start.In(c.loc).Format(time.RFC3339)},
		End:     wireTime{DateTime: event.End.In(c.loc).Format(time.RFC3339)},
		ColorID: event.ColorID,
	}
}

// ListEvents returns the calendar feed.
func (c *Client) ListEvents(ctx context.Context) ([]booking.Event, error) {
	var wrapped struct {
		Events []wireEvent `json:"eventos"`
	}
	if err := c.read(ctx, "list_events", "/api/google/listar-eventos", &wrapped); err != nil {
		return nil, fmt.Errorf("calendar: list events: %w", err)
	}
	events := make([]booking.Event, 0, len(wrapped.Events))
	for _, we := range wrapped.Events {
		start, err := c.parseTime(we.Start.DateTime)
		if err != nil {
			continue
		}
		end, _ := c.parseTime(we.End.DateTime)
		events = append(events, booking.Event{ID: we.ID, Summary: we.Summary, Start: start, End: end, ColorID: we.ColorID})
	}
	return events, nil
}

func (c *Client) parseTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02T15:04:05", raw, c.loc)
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("calendar API returned %d: %s", e.code, e.body)
}

func (c *Client) read(ctx context.Context, op, path string, out any) error {
	var err error
	for attempt := 0; attempt <= c.readRetries; attempt++ {
		err = c.do(ctx, op, http.MethodGet, path, nil, out)
		if err == nil || !retryable(err) || ctx.Err() != nil {
			return err
		}
	}
	return err
}

func retryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= 500
	}
	return true
}

func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	ctx, span := c.tracer.Start(ctx, "calendar."+op, trace.WithAttributes(attribute.String("http.method", method)))
	defer span.End()
	start := time.Now()
	status := "error"
	defer func() {
		c.metrics.ObserveRequest("calendar", op, status, time.Since(start).Seconds())
	}()

	var bodyReader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
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
		c.logger.Warn("calendar API non-2xx response", "status", resp.StatusCode, "path", path, "body", msg)
		return &statusError{code: resp.StatusCode, body: msg}
	}
	if len(respBody) == 0 || out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
