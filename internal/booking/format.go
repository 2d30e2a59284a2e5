package booking

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// DayMonth formats t as DD/MM in loc.
func DayMonth(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("02/01")
}

// HourMinute formats t as HH:MM in loc.
func HourMinute(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("15:04")
}

// DateLabel turns a YYYY-MM-DD date into DD/MM. Unparseable input is returned unchanged.
func DateLabel(date string) string {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return date
	}
	return t.Format("02/01")
}

// NumberedList renders an offer as "1) DD/MM at HH:MM" lines.
func NumberedList(slots []Slot, loc *time.Location) string {
	lines := make([]string, 0, len(slots))
	for i, s := range slots {
		lines = append(lines, fmt.Sprintf("%d) %s at %s", i+1, DayMonth(s.Start, loc), HourMinute(s.Start, loc)))
	}
	return strings.Join(lines, "\n")
}

// JoinNatural joins items as "A, B and C" using conj for the last pair.
func JoinNatural(items []string, conj string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	}
	return strings.Join(items[:len(items)-1], ", ") + " " + conj + " " + items[len(items)-1]
}

var dateOrTimeLiteral = regexp.MustCompile(`\d{4}-\d{2}-\d{2}|\d{2}:\d{2}`)

// ContainsDateOrTime reports whether text carries an ISO date or HH:MM literal.
func ContainsDateOrTime(text string) bool {
	return dateOrTimeLiteral.MatchString(text)
}
