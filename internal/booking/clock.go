package booking

import (
	"fmt"
	"time"
)

// DateLayout is the wire layout for calendar dates.
const DateLayout = "2006-01-02"

// DefaultUTCOffsetHours is the local timezone offset used by the business.
const DefaultUTCOffsetHours = -3

// Clock reads the current time in the business timezone.
type Clock struct {
	loc *time.Location
	now func() time.Time
}

// NewClock builds a wall clock at a fixed UTC offset.
func NewClock(offsetHours int) Clock {
	return Clock{loc: FixedZone(offsetHours), now: time.Now}
}

// FixedClock returns a clock frozen at t. Used by tests.
func FixedClock(t time.Time, offsetHours int) Clock {
	return Clock{loc: FixedZone(offsetHours), now: func() time.Time { return t }}
}

// FixedZone returns the location for an hour offset from UTC.
func FixedZone(offsetHours int) *time.Location {
	return time.FixedZone(fmt.Sprintf("UTC%+03d", offsetHours), offsetHours*3600)
}

// Location returns the clock's timezone.
func (c Clock) Location() *time.Location {
	if c.loc == nil {
		return FixedZone(DefaultUTCOffsetHours)
	}
	return c.loc
}

// Now returns the current local time.
func (c Clock) Now() time.Time {
	now := c.now
	if now == nil {
		now = time.Now
	}
	return now().In(c.Location())
}

// Day returns the local calendar date offset days from today.
func (c Clock) Day(offset int) string {
	return c.Now().AddDate(0, 0, offset).Format(DateLayout)
}

// Today returns today's local date.
func (c Clock) Today() string {
	return c.Day(0)
}

// ParseDate parses a YYYY-MM-DD date at local midnight.
func (c Clock) ParseDate(date string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, date, c.Location())
}

// Label renders the relative day for t: "Today", "Tomorrow" or DD/MM.
func (c Clock) Label(t time.Time) string {
	day := t.In(c.Location()).Format(DateLayout)
	switch day {
	case c.Today():
		return "Today"
	case c.Day(1):
		return "Tomorrow"
	}
	return t.In(c.Location()).Format("02/01")
}

// Describe renders a slot start with its relative-day label, for example
// "Tomorrow at 09:00" or "12/06 at 15:30".
func (c Clock) Describe(t time.Time) string {
	return c.Label(t) + " at " + t.In(c.Location()).Format("15:04")
}
