// Package booking holds the scheduling domain types shared by the dialogue
// engine, the natural-language oracle and the calendar/billing gateways.
package booking

import (
	"sort"
	"time"
)

// EventDuration is the length of every appointment created from a slot.
const EventDuration = 60 * time.Minute

// Slot is one bookable calendar window offered by the availability backend.
type Slot struct {
	ID    string    `json:"id"`
	Title string    `json:"title,omitempty"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Event is a calendar entry created or edited when a slot is booked.
type Event struct {
	ID      string
	Summary string
	Start   time.Time
	End     time.Time
	ColorID string
}

// EventForSlot builds the appointment event for a chosen slot.
func EventForSlot(slot Slot, displayName string) Event {
	return Event{
		ID:      slot.ID,
		Summary: "Appointment " + displayName,
		Start:   slot.Start,
		End:     slot.Start.Add(EventDuration),
		ColorID: "10",
	}
}

// Cap returns at most n slots, keeping order.
func Cap(slots []Slot, n int) []Slot {
	if n < 0 || len(slots) <= n {
		return slots
	}
	return slots[:n]
}

// After keeps slots that start strictly after t.
func After(slots []Slot, t time.Time) []Slot {
	out := make([]Slot, 0, len(slots))
	for _, s := range slots {
		if s.Start.After(t) {
			out = append(out, s)
		}
	}
	return out
}

// WithLeadTime keeps slots starting more than lead after now.
func WithLeadTime(slots []Slot, now time.Time, lead time.Duration) []Slot {
	return After(slots, now.Add(lead))
}

// StartingAt returns the slots whose local wall clock start is HH:MM.
func StartingAt(slots []Slot, loc *time.Location, hhmm string) []Slot {
	var out []Slot
	for _, s := range slots {
		if s.Start.In(loc).Format("15:04") == hhmm {
			out = append(out, s)
		}
	}
	return out
}

// SortByStart orders slots chronologically in place.
func SortByStart(slots []Slot) {
	sort.SliceStable(slots, func(i, j int) bool {
		return slots[i].Start.Before(slots[j].Start)
	})
}

// ReducedCount is the size of the reduced offer built from n available
// slots: 40% rounded up, never less than one when anything is available.
func ReducedCount(n int) int {
	if n <= 0 {
		return 0
	}
	reduced := (n*2 + 4) / 5
	if reduced < 1 {
		reduced = 1
	}
	return reduced
}
