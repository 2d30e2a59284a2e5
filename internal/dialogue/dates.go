package dialogue

import (
	"context"
	"fmt"

	"github.com/wolfman30/agenda-assistant/internal/booking"
)

const (
	msgDateUnclear    = `I couldn't understand the date. Please send it as "DD/MM" or like "June 9".`
	msgTomorrowFull   = "Tomorrow is fully booked as well. Which other date works for you?"
	msgTomorrowUnsure = "Shall I look at tomorrow's times? Reply yes or no, or send another date (DD/MM)."
	msgAskOtherDate   = "All right! Which date would you prefer? (for example 10/06)"
)

func noSlotsOn(date string, period booking.Period) string {
	if period != booking.PeriodAny {
		return fmt.Sprintf("There are no times available on %s in that period. Try another date (for example 10/06).", booking.DateLabel(date))
	}
	return fmt.Sprintf("There are no times available on %s. Try another date (for example 10/06).", booking.DateLabel(date))
}

func (e *Engine) handleManualDate(ctx context.Context, t *turn) (outcome, error) {
	dp, err := e.Oracle.ExtractDateAndPeriod(ctx, t.text)
	if err != nil || dp.Date == "" {
		return stay(t, msgDateUnclear), nil
	}
	slots := e.matching(e.slotsOn(ctx, dp.Date), dp.Period, maxOffer)
	if len(slots) == 0 {
		return stay(t, noSlotsOn(dp.Date, dp.Period)), nil
	}
	return e.present(slots), nil
}

func (e *Engine) handleTomorrowConfirm(ctx context.Context, t *turn) (outcome, error) {
	if dp, err := e.Oracle.ExtractDateAndPeriod(ctx, t.text); err == nil && dp.Date != "" {
		slots := e.matching(e.slotsOn(ctx, dp.Date), dp.Period, maxOffer)
		if len(slots) == 0 {
			return moveTo(StateAwaitingManualDate, noSlotsOn(dp.Date, dp.Period)), nil
		}
		return e.present(slots), nil
	}

	reply, err := e.Oracle.ClassifyTomorrowReply(ctx, t.text)
	if err != nil {
		reply = booking.TomorrowOther
	}
	switch reply {
	case booking.TomorrowConfirm:
		slots := booking.Cap(e.slotsOn(ctx, e.Clock.Day(1)), maxOffer)
		if len(slots) == 0 {
			return moveTo(StateAwaitingManualDate, msgTomorrowFull), nil
		}
		return e.present(slots), nil
	case booking.TomorrowDecline:
		return moveTo(StateAwaitingManualDate, msgAskOtherDate), nil
	}
	return stay(t, msgTomorrowUnsure), nil
}
