package oracle

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/wolfman30/agenda-assistant/internal/booking"
)

// Rules is a deterministic keyword oracle. It serves deployments without a
// language model and backs the LLM oracle's behavior in tests.
type Rules struct {
	clock booking.Clock
}

func NewRules(clock booking.Clock) *Rules {
	return &Rules{clock: clock}
}

var (
	dayMonthYear = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})(?:/(\d{2,4}))?\b`)
	hourOnly     = regexp.MustCompile(`\b(?:at|às|as)\s+(\d{1,2})h?\b|\b(\d{1,2})h\b`)
	lastWords    = []string{"last", "último", "ultimo", "última", "ultima"}
)

// ordinals are checked in index order. Feminine forms that are also weekday
// names ("segunda" is Monday) only count when a choice noun follows them.
var ordinals = []struct {
	word    string
	index   int
	weekday bool
}{
	{"first", 1, false}, {"primeiro", 1, false}, {"primeira", 1, false},
	{"second", 2, false}, {"segundo", 2, false}, {"segunda", 2, true},
	{"third", 3, false}, {"terceiro", 3, false}, {"terceira", 3, false},
	{"fourth", 4, false}, {"quarto", 4, false}, {"quarta", 4, true},
	{"fifth", 5, false}, {"quinto", 5, false}, {"quinta", 5, true},
	{"sixth", 6, false}, {"sexto", 6, false}, {"sexta", 6, true},
}

var choiceNouns = []string{"opção", "opcao", "option", "horário", "horario", "hora", "vaga"}

func ordinalChoice(lower string, n int) int {
	for _, o := range ordinals {
		if o.index > n || !booking.ContainsWord(lower, o.word) {
			continue
		}
		if o.weekday && !followedByChoiceNoun(lower, o.word) {
			continue
		}
		return o.index
	}
	return 0
}

func followedByChoiceNoun(lower, word string) bool {
	for _, noun := range choiceNouns {
		if booking.ContainsWord(lower, word+" "+noun) {
			return true
		}
	}
	return false
}

var intentKeywords = []struct {
	intent booking.Intent
	words  []string
}{
	{booking.IntentCancel, []string{"cancel", "desmarcar"}},
	{booking.IntentReschedule, []string{"reschedule", "remarcar", "reagendar", "change my appointment"}},
	{booking.IntentCheck, []string{"available", "availability", "free times", "disponível", "disponivel", "disponíveis", "horários livres", "tem horário", "tem horario"}},
	{booking.IntentSchedule, []string{"book", "schedule", "appointment", "marcar", "agendar", "consulta"}},
}

func (r *Rules) ClassifyIntent(_ context.Context, text string) (booking.Intent, error) {
	lower := strings.ToLower(text)
	for _, entry := range intentKeywords {
		for _, w := range entry.words {
			if strings.Contains(lower, w) {
				return entry.intent, nil
			}
		}
	}
	return booking.IntentOther, nil
}

func (r *Rules) ExtractDateTime(_ context.Context, text string) (booking.DateTime, error) {
	dt := booking.DateTime{Date: r.date(text), Time: validTime(text)}
	if dt.Time == "" {
		if m := hourOnly.FindStringSubmatch(strings.ToLower(text)); m != nil {
			h := m[1]
			if h == "" {
				h = m[2]
			}
			if n, err := strconv.Atoi(h); err == nil && n < 24 {
				dt.Time = validTime(strconv.Itoa(n) + ":00")
			}
		}
	}
	return dt, nil
}

func (r *Rules) ExtractDateAndPeriod(_ context.Context, text string) (booking.DatePeriod, error) {
	return booking.DatePeriod{Date: r.date(text), Period: booking.InferPeriod(text)}, nil
}

func (r *Rules) ResolveSlotChoice(_ context.Context, offer []booking.Slot, text string) (int, error) {
	if len(offer) == 0 {
		return 0, nil
	}
	lower := strings.ToLower(text)
	loc := r.clock.Location()

	if hhmm := validTime(lower); hhmm != "" {
		for i, s := range offer {
			if booking.HourMinute(s.Start, loc) == hhmm {
				return i + 1, nil
			}
		}
	}
	for _, w := range lastWords {
		if booking.ContainsWord(lower, w) {
			return len(offer), nil
		}
	}
	if idx := ordinalChoice(lower, len(offer)); idx > 0 {
		return idx, nil
	}
	trimmed := strings.Trim(strings.TrimSpace(lower), ".)!º°")
	if n, err := strconv.Atoi(trimmed); err == nil && n >= 1 && n <= len(offer) {
		return n, nil
	}
	if len(offer) == 1 && booking.MatchYesNo(lower) == booking.Yes {
		return 1, nil
	}
	return 0, nil
}

func (r *Rules) DetectAlternateDate(_ context.Context, text string) (string, error) {
	return r.date(text), nil
}

var phoneDigits = regexp.MustCompile(`\+?\d[\d\s().-]{8,}\d`)

func (r *Rules) ExtractNameAndPhone(_ context.Context, text string) (booking.Contact, error) {
	var c booking.Contact
	if m := phoneDigits.FindString(text); m != "" {
		c.Phone = strings.Map(func(r rune) rune {
			if unicode.IsDigit(r) {
				return r
			}
			return -1
		}, m)
	}
	lower := strings.ToLower(text)
	for _, marker := range []string{"my name is ", "meu nome é ", "meu nome e ", "me chamo ", "sou o ", "sou a "} {
		if i := strings.Index(lower, marker); i >= 0 {
			rest := strings.Fields(text[i+len(marker):])
			if len(rest) > 0 {
				c.Name = strings.Trim(rest[0], ".,!?")
			}
			break
		}
	}
	return c, nil
}

func (r *Rules) ClassifyTomorrowReply(_ context.Context, text string) (booking.TomorrowReply, error) {
	switch booking.MatchYesNo(text) {
	case booking.Yes:
		return booking.TomorrowConfirm, nil
	case booking.No:
		return booking.TomorrowDecline, nil
	}
	return booking.TomorrowOther, nil
}

// date resolves ISO dates, DD/MM[/YYYY] and today/tomorrow words.
func (r *Rules) date(text string) string {
	if d := parseDate(text); d != "" {
		return d
	}
	now := r.clock.Now()
	if m := dayMonthYear.FindStringSubmatch(text); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year := now.Year()
		if m[3] != "" {
			year, _ = strconv.Atoi(m[3])
			if year < 100 {
				year += 2000
			}
		}
		t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, r.clock.Location())
		if t.Day() != day || int(t.Month()) != month {
			return ""
		}
		date := t.Format(booking.DateLayout)
		if m[3] == "" && date < r.clock.Today() {
			date = t.AddDate(1, 0, 0).Format(booking.DateLayout)
		}
		return date
	}
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "day after tomorrow"), strings.Contains(lower, "depois de amanhã"), strings.Contains(lower, "depois de amanha"):
		return r.clock.Day(2)
	case strings.Contains(lower, "tomorrow"), booking.ContainsWord(lower, "amanhã"), booking.ContainsWord(lower, "amanha"):
		return r.clock.Day(1)
	case booking.ContainsWord(lower, "today"), booking.ContainsWord(lower, "hoje"):
		return r.clock.Today()
	}
	return ""
}
