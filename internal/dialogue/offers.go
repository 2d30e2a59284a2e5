package dialogue

import (
	"context"
	"fmt"
	"time"

	"github.com/wolfman30/agenda-assistant/internal/booking"
)

const (
	maxOffer      = 6
	maxCheckOffer = 3
	todayLeadTime = time.Hour
	cascadeDays   = 3
)

// slotsOn lists the free slots on date. Gateway failures read as no slots.
// Slots already in the past are dropped when date is today.
func (e *Engine) slotsOn(ctx context.Context, date string) []booking.Slot {
	slots, err := e.Availability.ListSlots(ctx, date)
	if err != nil {
		e.Logger.Warn("availability lookup failed", "date", date, "error", err)
		return nil
	}
	if date == e.Clock.Today() {
		slots = booking.After(slots, e.Clock.Now())
	}
	return slots
}

// matching applies the day-period filter and the offer cap.
func (e *Engine) matching(slots []booking.Slot, period booking.Period, limit int) []booking.Slot {
	return booking.Cap(booking.FilterPeriod(slots, period, e.Clock.Location()), limit)
}

// present offers one or more slots: one goes to single confirmation, more go
// to a free choice. The offer replaces whatever was cached.
func (e *Engine) present(slots []booking.Slot) outcome {
	if len(slots) == 1 {
		return outcome{
			reply:    fmt.Sprintf("I have %s available. Shall I book it for you?", e.Clock.Describe(slots[0].Start)),
			next:     StateAwaitingSingleConfirm,
			offer:    slots,
			setOffer: true,
		}
	}
	items := make([]string, len(slots))
	for i, s := range slots {
		items[i] = e.Clock.Describe(s.Start)
	}
	return outcome{
		reply:    fmt.Sprintf("I have these times: %s. Which one works best for you?", booking.JoinNatural(items, "and")),
		next:     StateAwaitingHumanChoice,
		offer:    slots,
		setOffer: true,
	}
}

// alternateDate checks whether the message names another date and, when it
// does, offers the future slots of that day, capped at 40% of the day's
// listing, for a free choice.
// The boolean is false when no date was named.
func (e *Engine) alternateDate(ctx context.Context, t *turn) (outcome, bool) {
	date, err := e.Oracle.DetectAlternateDate(ctx, t.text)
	if err != nil || date == "" {
		return outcome{}, false
	}
	slots, err := e.Availability.ListSlots(ctx, date)
	if err != nil {
		e.Logger.Warn("availability lookup failed", "date", date, "error", err)
		slots = nil
	}
	reduced := booking.Cap(booking.After(slots, e.Clock.Now()), booking.ReducedCount(len(slots)))
	if len(reduced) == 0 {
		return stay(t, fmt.Sprintf("There are no free times on %s. Could you try another date?", booking.DateLabel(date))), true
	}
	label := booking.DateLabel(date)

	var reply string
	if len(reduced) == 1 {
		reply = fmt.Sprintf("For %s I only have %s at %s. Shall I book it?", label, label, booking.HourMinute(reduced[0].Start, e.Clock.Location()))
	} else {
		items := make([]string, len(reduced))
		for i, s := range reduced {
			items[i] = booking.DayMonth(s.Start, e.Clock.Location()) + " at " + booking.HourMinute(s.Start, e.Clock.Location())
		}
		reply = fmt.Sprintf("For %s I have %s. Which one do you prefer?", label, booking.JoinNatural(items, "and"))
	}
	return outcome{reply: reply, next: StateAwaitingFutureChoice, offer: reduced, setOffer: true}, true
}
