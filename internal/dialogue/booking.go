package dialogue

import (
	"context"
	"errors"
	"fmt"

	"github.com/wolfman30/agenda-assistant/internal/booking"
)

const (
	msgBookingFailed = "Oops, I couldn't create the appointment. Please try again later."
	msgChoiceUnclear = `I couldn't tell which time you picked. Reply with something like "1" or "the second one", please.`
	msgAskFutureDate = "Tell me the date that works best for you (for example 10/06)."
	msgYesNoUnclear  = `Sorry, I didn't get that. Reply "yes" to book this time, "no" to pick another one, or send a different date.`
	msgNoProblem     = "No problem! Tell me the date that works best for you."
	msgLostOffer     = "Sorry, I lost track of that time. Could you ask me to schedule again?"
	fallbackName     = "Customer"
)

func (e *Engine) handleSlotChoice(ctx context.Context, t *turn) (outcome, error) {
	idx, err := e.Oracle.ResolveSlotChoice(ctx, t.offer, t.text)
	if err != nil {
		idx = 0
	}
	if idx >= 1 && idx <= len(t.offer) {
		return e.book(ctx, t, t.offer[idx-1], t.state == StateAwaitingFutureChoice)
	}
	if t.state == StateAwaitingFutureChoice && len(t.offer) == 0 {
		if out, ok := e.alternateDate(ctx, t); ok {
			return out, nil
		}
		return stay(t, msgAskFutureDate), nil
	}
	return stay(t, msgChoiceUnclear), nil
}

func (e *Engine) handleSingleConfirm(ctx context.Context, t *turn) (outcome, error) {
	switch booking.MatchYesNo(t.text) {
	case booking.Yes:
		if len(t.offer) == 0 {
			return reset(msgLostOffer), nil
		}
		return e.book(ctx, t, t.offer[0], false)
	case booking.No:
		return outcome{reply: msgNoProblem, next: StateAwaitingFutureChoice, clearOffer: true}, nil
	}
	if out, ok := e.alternateDate(ctx, t); ok {
		return out, nil
	}
	return stay(t, msgYesNoUnclear), nil
}

// book turns slot into the user's appointment, then either starts the
// billing registration or issues the invoice for an already registered
// customer. The offer is cleared on every path.
func (e *Engine) book(ctx context.Context, t *turn, slot booking.Slot, create bool) (outcome, error) {
	name := e.displayName(ctx, t.userID)
	event := booking.EventForSlot(slot, name)

	var err error
	if create {
		err = e.Availability.CreateEvent(ctx, event)
	} else {
		err = e.Availability.EditEvent(ctx, event)
	}
	if err != nil {
		e.Logger.Warn("booking failed", "user_id", t.userID, "slot_id", slot.ID, "error", err)
		e.Metrics.ObserveBooking("calendar_error")
		out := reset(msgBookingFailed)
		out.speak = true
		return out, nil
	}
	e.Metrics.ObserveBooking("booked")

	loc := e.Clock.Location()
	text := fmt.Sprintf("Done, %s! Your appointment is booked for %s at %s.", name, booking.DayMonth(slot.Start, loc), booking.HourMinute(slot.Start, loc))

	customerID, bound, err := e.Bindings.CustomerID(ctx, t.userID)
	if err != nil {
		return outcome{}, fmt.Errorf("dialogue: load binding: %w", err)
	}
	if !bound {
		if err := e.Pending.Set(ctx, t.userID, Registration{}); err != nil {
			return outcome{}, fmt.Errorf("dialogue: start registration: %w", err)
		}
		return outcome{reply: text + "\n\n" + msgAskName, next: StateCollectingName, clearOffer: true}, nil
	}

	switch link, err := e.invoice(ctx, t, customerID); {
	case errors.Is(err, errNoBillingKey):
		text += " " + msgConfigureKey
	case err != nil:
		e.Logger.Warn("invoice generation failed", "user_id", t.userID, "customer_id", customerID, "error", err)
		text += " But I couldn't generate the invoice."
	default:
		text += " Here is your payment link: " + link
	}
	out := reset(text)
	out.speak = true
	return out, nil
}

func (e *Engine) displayName(ctx context.Context, userID string) string {
	if e.Memory == nil {
		return fallbackName
	}
	name, err := e.Memory.DisplayName(ctx, userID)
	if err != nil {
		e.Logger.Warn("display name lookup failed", "user_id", userID, "error", err)
		return fallbackName
	}
	if name == "" {
		return fallbackName
	}
	return name
}
