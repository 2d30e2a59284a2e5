package dialogue

import (
	"context"

	"github.com/wolfman30/agenda-assistant/internal/booking"
	"github.com/wolfman30/agenda-assistant/internal/knowledge"
)

const (
	msgNoAvailability = "I have no free times in the next few days. Please send me a specific date or try again later."
	msgReschedule     = "Sure! Which new date and time would you like?"
	msgCancel         = "Got it, your appointment request has been cancelled."
)

func (e *Engine) handleInitial(ctx context.Context, t *turn) (outcome, error) {
	intent, err := e.Oracle.ClassifyIntent(ctx, t.text)
	if err != nil {
		intent = booking.IntentOther
	}
	e.Logger.Debug("intent classified", "user_id", t.userID, "intent", intent)

	switch intent {
	case booking.IntentSchedule:
		return e.schedule(ctx, t), nil
	case booking.IntentCheck:
		return e.check(ctx, t), nil
	case booking.IntentReschedule:
		out := reset(msgReschedule)
		out.speak = true
		return out, nil
	case booking.IntentCancel:
		out := reset(msgCancel)
		out.speak = true
		return out, nil
	}
	return e.other(ctx, t), nil
}

func (e *Engine) schedule(ctx context.Context, t *turn) outcome {
	dt, err := e.Oracle.ExtractDateTime(ctx, t.text)
	if err != nil {
		dt = booking.DateTime{}
	}
	date, period := dt.Date, booking.PeriodAny
	if date == "" {
		if dp, err := e.Oracle.ExtractDateAndPeriod(ctx, t.text); err == nil {
			date, period = dp.Date, dp.Period
		}
	} else {
		period = booking.InferPeriod(t.text)
	}
	if date == "" {
		return e.cascade(ctx)
	}

	slots := booking.FilterPeriod(e.slotsOn(ctx, date), period, e.Clock.Location())
	if dt.Time != "" {
		if exact := booking.StartingAt(slots, e.Clock.Location(), dt.Time); len(exact) > 0 {
			slots = exact[:1]
		}
	}
	slots = booking.Cap(slots, maxOffer)
	if len(slots) == 0 {
		return moveTo(StateAwaitingManualDate, "I found no free times on "+booking.DateLabel(date)+". Which other date works for you?")
	}
	return e.present(slots)
}

// cascade looks for the first day with availability among today (at least
// an hour ahead), tomorrow and the day after.
func (e *Engine) cascade(ctx context.Context) outcome {
	for day := 0; day < cascadeDays; day++ {
		date := e.Clock.Day(day)
		slots, err := e.Availability.ListSlots(ctx, date)
		if err != nil {
			e.Logger.Warn("availability lookup failed", "date", date, "error", err)
			continue
		}
		if day == 0 {
			slots = booking.WithLeadTime(slots, e.Clock.Now(), todayLeadTime)
		}
		if slots = booking.Cap(slots, maxOffer); len(slots) > 0 {
			return e.present(slots)
		}
	}
	return reset(msgNoAvailability)
}

func (e *Engine) check(ctx context.Context, t *turn) outcome {
	dp, err := e.Oracle.ExtractDateAndPeriod(ctx, t.text)
	if err == nil && dp.Date != "" {
		slots := booking.After(e.slotsOn(ctx, dp.Date), e.Clock.Now())
		slots = e.matching(slots, dp.Period, maxCheckOffer)
		if len(slots) == 0 {
			out := stay(t, noSlotsOn(dp.Date, dp.Period))
			out.speak = true
			return out
		}
		out := e.present(slots)
		out.speak = true
		return out
	}

	all, err := e.Availability.ListAllSlots(ctx)
	if err != nil {
		e.Logger.Warn("availability lookup failed", "error", err)
		all = nil
	}
	slots := booking.Cap(booking.After(all, e.Clock.Now()), maxCheckOffer)
	if len(slots) > 0 {
		out := e.present(slots)
		out.speak = true
		return out
	}

	reply := knowledge.NoSlotsTodayFallback
	if e.Knowledge != nil {
		text, err := e.Knowledge.NoSlotsToday(ctx, knowledge.Query{UserID: t.userID, Text: t.text, Instructions: t.config.CustomInstructions})
		if err == nil && text != "" {
			reply = text
		}
	}
	out := moveTo(StateAwaitingTomorrowConfirm, reply)
	out.speak = true
	return out
}

// other answers from the knowledge base.
func (e *Engine) other(ctx context.Context, t *turn) outcome {
	answer := msgAnswerFailed
	if e.Knowledge != nil {
		text, err := e.Knowledge.Answer(ctx, knowledge.Query{UserID: t.userID, Text: t.text, Instructions: t.config.CustomInstructions})
		if err != nil {
			e.Logger.Warn("knowledge answer failed", "user_id", t.userID, "error", err)
		} else {
			answer = text
		}
	}
	out := reset(answer)
	out.speak = true
	return out
}
