// Package oracle turns free-text messages into the structured answers the
// dialogue engine needs: intents, dates, periods, slot choices and contact
// details. Every capability answers with a zero value when the text cannot
// be interpreted; errors are reserved for backend failures.
package oracle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/agenda-assistant/internal/booking"
	"github.com/wolfman30/agenda-assistant/internal/llm"
	"github.com/wolfman30/agenda-assistant/internal/tenancy"
	"github.com/wolfman30/agenda-assistant/pkg/logging"
)

// LLM answers every capability with one short completion per call.
type LLM struct {
	client  llm.Client
	clock   booking.Clock
	model   string
	timeout time.Duration
	logger  *logging.Logger
}

// Option configures an LLM oracle.
type Option func(*LLM)

// WithModel pins the model used for extraction calls.
func WithModel(model string) Option {
	return func(o *LLM) { o.model = model }
}

// WithTimeout bounds each completion call.
func WithTimeout(d time.Duration) Option {
	return func(o *LLM) { o.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(o *LLM) { o.logger = logger }
}

func NewLLM(client llm.Client, clock booking.Clock, opts ...Option) *LLM {
	if client == nil {
		panic("oracle: llm client cannot be nil")
	}
	o := &LLM{client: client, clock: clock, timeout: 8 * time.Second}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = logging.Default()
	}
	return o
}

func (o *LLM) ClassifyIntent(ctx context.Context, text string) (booking.Intent, error) {
	out, err := o.ask(ctx, "classify_intent", intentPrompt, text)
	if err != nil {
		return booking.IntentOther, err
	}
	return booking.ParseIntent(firstWord(out)), nil
}

func (o *LLM) ExtractDateTime(ctx context.Context, text string) (booking.DateTime, error) {
	out, err := o.ask(ctx, "extract_date_time", o.withToday(dateTimePrompt), text)
	if err != nil {
		return booking.DateTime{}, err
	}
	return parseDateTime(out), nil
}

func (o *LLM) ExtractDateAndPeriod(ctx context.Context, text string) (booking.DatePeriod, error) {
	out, err := o.ask(ctx, "extract_date_period", o.withToday(datePeriodPrompt), text)
	if err != nil {
		return booking.DatePeriod{}, err
	}
	dp := parseDatePeriod(out)
	if dp.Date != "" && dp.Period == booking.PeriodAny {
		dp.Period = booking.InferPeriod(text)
	}
	return dp, nil
}

func (o *LLM) ResolveSlotChoice(ctx context.Context, offer []booking.Slot, text string) (int, error) {
	if len(offer) == 0 {
		return 0, nil
	}
	user := fmt.Sprintf("Options:\n%s\n\nMessage: %s", booking.NumberedList(offer, o.clock.Location()), text)
	out, err := o.ask(ctx, "resolve_slot_choice", slotChoicePrompt, user)
	if err != nil {
		return 0, err
	}
	return parseChoice(out, len(offer)), nil
}

func (o *LLM) DetectAlternateDate(ctx context.Context, text string) (string, error) {
	out, err := o.ask(ctx, "detect_alternate_date", o.withToday(alternateDatePrompt), text)
	if err != nil {
		return "", err
	}
	return parseDate(out), nil
}

func (o *LLM) ExtractNameAndPhone(ctx context.Context, text string) (booking.Contact, error) {
	out, err := o.ask(ctx, "extract_name_phone", contactPrompt, text)
	if err != nil {
		return booking.Contact{}, err
	}
	return parseContact(out), nil
}

func (o *LLM) ClassifyTomorrowReply(ctx context.Context, text string) (booking.TomorrowReply, error) {
	out, err := o.ask(ctx, "classify_tomorrow", tomorrowPrompt, text)
	if err != nil {
		return booking.TomorrowOther, err
	}
	return booking.ParseTomorrowReply(firstWord(out)), nil
}

func (o *LLM) ask(ctx context.Context, capability, system, user string) (string, error) {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}
	req := llm.UserPrompt(system, user)
	req.Model = o.model
	req.MaxTokens = 120
	req.APIKey = tenancy.LLMKeyFromContext(ctx)

	resp, err := o.client.Complete(ctx, req)
	if err != nil {
		o.logger.Warn("oracle call failed", "capability", capability, "error", err)
		return "", fmt.Errorf("oracle: %s: %w", capability, err)
	}
	o.logger.Debug("oracle answered", "capability", capability, "answer", resp.Text)
	return resp.Text, nil
}

func (o *LLM) withToday(prompt string) string {
	now := o.clock.Now()
	return fmt.Sprintf("Today is %s (%s), timezone %s.\n%s", now.Format(booking.DateLayout), now.Weekday(), now.Format("-07:00"), prompt)
}

func firstWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
