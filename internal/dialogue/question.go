package dialogue

import (
	"context"
	"fmt"
	"strings"

	"github.com/wolfman30/agenda-assistant/internal/booking"
	"github.com/wolfman30/agenda-assistant/internal/knowledge"
	"github.com/wolfman30/agenda-assistant/pkg/logging"
)

const (
	msgNoUpcoming    = "There are no upcoming appointments."
	msgCalendarDown  = "I couldn't reach the calendar right now. Please try again in a moment."
	msgQuestionUsage = `Ask me about your next appointment, or about a specific date and time, for example "do I have anything on 10/06 at 14:00?".`
)

var nextAppointmentPhrases = []string{
	"next appointment", "upcoming appointment", "próximo agendamento", "proximo agendamento",
	"próximo compromisso", "proximo compromisso",
}

// DateTimeExtractor is the part of the oracle the question desk needs.
type DateTimeExtractor interface {
	ExtractDateTime(ctx context.Context, text string) (booking.DateTime, error)
}

// QuestionDesk answers standalone appointment questions without touching
// any dialogue state.
type QuestionDesk struct {
	events    EventLister
	oracle    DateTimeExtractor
	knowledge Knowledge
	clock     booking.Clock
	logger    *logging.Logger
}

// NewQuestionDesk builds a desk. knowledge may be nil.
func NewQuestionDesk(events EventLister, oracle DateTimeExtractor, kb Knowledge, clock booking.Clock, logger *logging.Logger) *QuestionDesk {
	if logger == nil {
		logger = logging.Default()
	}
	return &QuestionDesk{events: events, oracle: oracle, knowledge: kb, clock: clock, logger: logger}
}

// Answer replies to question on behalf of userID.
func (d *QuestionDesk) Answer(ctx context.Context, userID, question string) string {
	lower := strings.ToLower(question)
	for _, phrase := range nextAppointmentPhrases {
		if strings.Contains(lower, phrase) {
			return d.nextAppointment(ctx)
		}
	}

	if dt, err := d.oracle.ExtractDateTime(ctx, question); err == nil && dt.Date != "" && dt.Time != "" {
		return d.appointmentAt(ctx, dt)
	}

	if d.knowledge != nil {
		answer, err := d.knowledge.Answer(ctx, knowledge.Query{UserID: userID, Text: question})
		if err == nil {
			return answer
		}
		d.logger.Warn("knowledge answer failed", "user_id", userID, "error", err)
	}
	return msgQuestionUsage
}

func (d *QuestionDesk) nextAppointment(ctx context.Context) string {
	events, err := d.events.ListEvents(ctx)
	if err != nil {
		d.logger.Warn("event feed unavailable", "error", err)
		return msgCalendarDown
	}
	now := d.clock.Now()
	var next *booking.Event
	for i := range events {
		ev := &events[i]
		if !ev.Start.After(now) {
			continue
		}
		if next == nil || ev.Start.Before(next.Start) {
			next = ev
		}
	}
	if next == nil {
		return msgNoUpcoming
	}
	return fmt.Sprintf("Your next appointment is “%s” on %s.", next.Summary, next.Start.In(d.clock.Location()).Format("02/01/2006 15:04"))
}

func (d *QuestionDesk) appointmentAt(ctx context.Context, dt booking.DateTime) string {
	day, err := d.clock.ParseDate(dt.Date)
	if err != nil {
		return msgQuestionUsage
	}
	label := day.Format("02/01/2006")

	events, err := d.events.ListEvents(ctx)
	if err != nil {
		d.logger.Warn("event feed unavailable", "error", err)
		return msgCalendarDown
	}
	loc := d.clock.Location()
	for _, ev := range events {
		start := ev.Start.In(loc)
		if start.Format(booking.DateLayout) == dt.Date && start.Format("15:04") == dt.Time {
			return fmt.Sprintf("You booked “%s” for %s at %s.", ev.Summary, label, dt.Time)
		}
	}
	return fmt.Sprintf("I couldn't find any appointment on %s at %s.", label, dt.Time)
}
