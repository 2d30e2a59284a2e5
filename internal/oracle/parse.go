package oracle

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/wolfman30/agenda-assistant/internal/booking"
)

var (
	isoDate   = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`)
	clockTime = regexp.MustCompile(`\b([01]?\d|2[0-3]):([0-5]\d)\b`)
	firstInt  = regexp.MustCompile(`-?\d+`)
)

// jsonObject returns the first {...} block in s, tolerating code fences and chatter.
func jsonObject(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

func validDate(s string) string {
	s = strings.TrimSpace(s)
	if _, err := time.Parse(booking.DateLayout, s); err != nil {
		return ""
	}
	return s
}

func validTime(s string) string {
	m := clockTime.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return ""
	}
	h, _ := strconv.Atoi(m[1])
	return fmt.Sprintf("%02d:%s", h, m[2])
}

func parseDateTime(out string) booking.DateTime {
	var payload struct {
		Date *string `json:"date"`
		Time *string `json:"time"`
	}
	if raw := jsonObject(out); raw != "" && json.Unmarshal([]byte(raw), &payload) == nil {
		var dt booking.DateTime
		if payload.Date != nil {
			dt.Date = validDate(*payload.Date)
		}
		if payload.Time != nil {
			dt.Time = validTime(*payload.Time)
		}
		return dt
	}
	return booking.DateTime{Date: parseDate(out), Time: validTime(out)}
}

func parseDatePeriod(out string) booking.DatePeriod {
	var payload struct {
		Date   *string `json:"date"`
		Period *string `json:"period"`
	}
	if raw := jsonObject(out); raw != "" && json.Unmarshal([]byte(raw), &payload) == nil {
		var dp booking.DatePeriod
		if payload.Date != nil {
			dp.Date = validDate(*payload.Date)
		}
		if payload.Period != nil {
			dp.Period = booking.ParsePeriod(*payload.Period)
		}
		return dp
	}
	return booking.DatePeriod{Date: parseDate(out)}
}

func parseDate(out string) string {
	m := isoDate.FindStringSubmatch(out)
	if m == nil {
		return ""
	}
	return validDate(m[1])
}

// parseChoice returns a 1-based index within [1, n], or 0.
func parseChoice(out string, n int) int {
	m := firstInt.FindString(out)
	if m == "" {
		return 0
	}
	idx, err := strconv.Atoi(m)
	if err != nil || idx < 1 || idx > n {
		return 0
	}
	return idx
}

func parseContact(out string) booking.Contact {
	var payload struct {
		Name  *string `json:"name"`
		Phone *string `json:"phone"`
	}
	raw := jsonObject(out)
	if raw == "" || json.Unmarshal([]byte(raw), &payload) != nil {
		return booking.Contact{}
	}
	var c booking.Contact
	if payload.Name != nil {
		c.Name = strings.TrimSpace(*payload.Name)
	}
	if payload.Phone != nil {
		c.Phone = strings.TrimSpace(*payload.Phone)
	}
	return c
}
