package calendar

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/agenda-assistant/internal/booking"
	"github.com/wolfman30/agenda-assistant/internal/tenancy"
	"github.com/wolfman30/agenda-assistant/pkg/logging"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return NewClient(ts.URL, logging.Discard(), opts...)
}

func TestClient_ListSlots(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s, want GET", r.Method)
		}
		if r.URL.Path != "/api/horarios-disponiveis" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("date") != "2025-06-10" {
			t.Errorf("date = %s", r.URL.Query().Get("date"))
		}
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			t.Errorf("authorization = %q", r.Header.Get("Authorization"))
		}
		_, _ = w.Write([]byte(`{"horarios":[
			{"id":"e2","titulo":"Livre","inicio":"2025-06-10T14:00:00-03:00","fim":"2025-06-10T15:00:00-03:00"},
			{"id":"e1","titulo":"Livre","inicio":"2025-06-10T09:00:00-03:00","fim":"2025-06-10T10:00:00-03:00"},
			{"id":"bad","inicio":"not-a-time"}
		]}`))
	})

	ctx := tenancy.WithToken(context.Background(), "tok-1")
	slots, err := client.ListSlots(ctx, "2025-06-10")
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, "e1", slots[0].ID, "slots are ordered by start")
	assert.Equal(t, 9, slots[0].Start.Hour())
	assert.Equal(t, time.Hour, slots[0].End.Sub(slots[0].Start))
}

func TestClient_ListAllSlotsWithoutOffset(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.RawQuery != "" {
			t.Errorf("expected unscoped query, got %q", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"horarios":[{"id":"e1","inicio":"2025-06-10T09:00:00"}]}`))
	})

	slots, err := client.ListAllSlots(context.Background())
	require.NoError(t, err)
	require.Len(t, slots, 1)
	_, offset := slots[0].Start.Zone()
	assert.Equal(t, -3*3600, offset)
	assert.Equal(t, slots[0].Start.Add(booking.EventDuration), slots[0].End)
}

func TestClient_ListSlotsErrorStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"token"}`))
	})

	_, err := client.ListSlots(context.Background(), "2025-06-10")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestClient_ReadRetries(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"horarios":[]}`))
	}, WithReadRetries(1))

	slots, err := client.ListSlots(context.Background(), "2025-06-10")
	require.NoError(t, err)
	assert.Empty(t, slots)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestClient_NoRetryOn4xx(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}, WithReadRetries(2))

	_, err := client.ListAllSlots(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClient_EditEvent(t *testing.T) {
	var got map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/api/google/editar-evento" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	})

	loc := booking.FixedZone(-3)
	slot := booking.Slot{ID: "e1", Start: time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC).In(loc)}
	require.NoError(t, client.EditEvent(context.Background(), booking.EventForSlot(slot, "Maria")))

	assert.Equal(t, "e1", got["id"])
	assert.Equal(t, "Appointment Maria", got["summary"])
	assert.Equal(t, "10", got["colorId"])
	assert.Equal(t, "2025-06-10T06:00:00-03:00", got["start"].(map[string]any)["dateTime"])
	assert.Equal(t, "2025-06-10T07:00:00-03:00", got["end"].(map[string]any)["dateTime"])
}

func TestClient_CreateEvent(t *testing.T) {
	var method, path string
	var got map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
	})

	slot := booking.Slot{ID: "e2", Start: time.Date(2025, 6, 10, 14, 0, 0, 0, booking.FixedZone(-3))}
	require.NoError(t, client.CreateEvent(context.Background(), booking.EventForSlot(slot, "Customer")))
	assert.Equal(t, http.MethodPost, method)
	assert.Equal(t, "/api/google/criar-evento", path)
	assert.Equal(t, "Appointment Customer", got["summary"])
}

func TestClient_EditEventFailure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	err := client.EditEvent(context.Background(), booking.Event{ID: "e1"})
	require.Error(t, err)
}

func TestClient_ListEvents(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/google/listar-eventos" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"eventos":[
			{"id":"a","summary":"Appointment Ana","start":{"dateTime":"2025-06-10T09:00:00-03:00"},"end":{"dateTime":"2025-06-10T10:00:00-03:00"}},
			{"id":"allday","summary":"Holiday","start":{}}
		]}`))
	})

	events, err := client.ListEvents(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Appointment Ana", events[0].Summary)
}

func TestClient_Timeout(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`{"horarios":[]}`))
	}, WithTimeout(20*time.Millisecond))

	_, err := client.ListSlots(context.Background(), "2025-06-10")
	require.Error(t, err)
}
