package booking

import "strings"

// Intent is the coarse scheduling action a free-text message asks for.
type Intent string

const (
	IntentSchedule   Intent = "SCHEDULE"
	IntentCheck      Intent = "CHECK"
	IntentReschedule Intent = "RESCHEDULE"
	IntentCancel     Intent = "CANCEL"
	IntentOther      Intent = "OTHER"
)

// ParseIntent maps a label to an Intent. Anything unknown is OTHER.
func ParseIntent(raw string) Intent {
	label := strings.ToUpper(strings.Trim(strings.TrimSpace(raw), ".\"'`"))
	switch Intent(label) {
	case IntentSchedule, IntentCheck, IntentReschedule, IntentCancel:
		return Intent(label)
	}
	return IntentOther
}

// TomorrowReply classifies the answer to "shall I look at tomorrow?".
type TomorrowReply string

const (
	TomorrowConfirm TomorrowReply = "CONFIRM_TOMORROW"
	TomorrowDecline TomorrowReply = "DECLINE"
	TomorrowOther   TomorrowReply = "OTHER"
)

// ParseTomorrowReply maps a label to a TomorrowReply, defaulting to OTHER.
func ParseTomorrowReply(raw string) TomorrowReply {
	label := strings.ToUpper(strings.Trim(strings.TrimSpace(raw), ".\"'`"))
	switch TomorrowReply(label) {
	case TomorrowConfirm, TomorrowDecline:
		return TomorrowReply(label)
	}
	return TomorrowOther
}

// DateTime is an extracted calendar date (YYYY-MM-DD) with an optional
// wall clock time (HH:MM). Empty fields mean "not mentioned".
type DateTime struct {
	Date string
	Time string
}

// DatePeriod is an extracted date with an optional day period.
type DatePeriod struct {
	Date   string
	Period Period
}

// Contact carries a name and phone the oracle found in free text.
type Contact struct {
	Name  string
	Phone string
}
