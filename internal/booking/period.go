package booking

import (
	"strings"
	"time"
)

// Period is a coarse part of the day a user may ask for.
type Period string

const (
	PeriodAny       Period = ""
	PeriodMorning   Period = "morning"
	PeriodAfternoon Period = "afternoon"
	PeriodEvening   Period = "evening"
)

var periodAliases = map[string]Period{
	"morning":   PeriodMorning,
	"manha":     PeriodMorning,
	"manhã":     PeriodMorning,
	"afternoon": PeriodAfternoon,
	"tarde":     PeriodAfternoon,
	"evening":   PeriodEvening,
	"night":     PeriodEvening,
	"noite":     PeriodEvening,
}

// ParsePeriod normalizes an oracle or user supplied period label.
func ParsePeriod(raw string) Period {
	return periodAliases[strings.ToLower(strings.TrimSpace(raw))]
}

// Contains reports whether a local hour falls in the period window.
// Morning is 07-12, afternoon 12-18 and evening from 18 on.
func (p Period) Contains(hour int) bool {
	switch p {
	case PeriodMorning:
		return hour >= 7 && hour < 12
	case PeriodAfternoon:
		return hour >= 12 && hour < 18
	case PeriodEvening:
		return hour >= 18
	default:
		return true
	}
}

// FilterPeriod keeps slots whose local start hour falls in p.
func FilterPeriod(slots []Slot, p Period, loc *time.Location) []Slot {
	if p == PeriodAny {
		return slots
	}
	out := make([]Slot, 0, len(slots))
	for _, s := range slots {
		if p.Contains(s.Start.In(loc).Hour()) {
			out = append(out, s)
		}
	}
	return out
}

var periodKeywords = []struct {
	words  []string
	period Period
}{
	{[]string{"morning", "manhã", "manha", "cedo", "early"}, PeriodMorning},
	{[]string{"afternoon", "tarde", "após o almoço", "after lunch"}, PeriodAfternoon},
	{[]string{"evening", "night", "noite", "late"}, PeriodEvening},
}

// InferPeriod guesses the day period from keywords in free text.
func InferPeriod(text string) Period {
	lower := strings.ToLower(text)
	for _, entry := range periodKeywords {
		if matchesAny(lower, entry.words) {
			return entry.period
		}
	}
	return PeriodAny
}
