package oracle

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/agenda-assistant/internal/booking"
	"github.com/wolfman30/agenda-assistant/internal/llm"
	"github.com/wolfman30/agenda-assistant/internal/tenancy"
	"github.com/wolfman30/agenda-assistant/pkg/logging"
)

var testClock = booking.FixedClock(time.Date(2025, 6, 8, 13, 0, 0, 0, time.UTC), -3)

type scripted struct {
	answer string
	err    error
	last   llm.Request
}

func (s *scripted) Complete(_ context.Context, req llm.Request) (llm.Response, error) {
	s.last = req
	return llm.Response{Text: s.answer}, s.err
}

func newTestOracle(answer string) (*LLM, *scripted) {
	client := &scripted{answer: answer}
	return NewLLM(client, testClock, WithLogger(logging.Discard()), WithModel("gpt-4o-mini")), client
}

func TestClassifyIntent(t *testing.T) {
	tests := []struct {
		answer string
		want   booking.Intent
	}{
		{"SCHEDULE", booking.IntentSchedule},
		{"check.", booking.IntentCheck},
		{"CANCEL - wants to cancel", booking.IntentCancel},
		{"I think they want to book", booking.IntentOther},
		{"", booking.IntentOther},
	}
	for _, tt := range tests {
		t.Run(tt.answer, func(t *testing.T) {
			o, _ := newTestOracle(tt.answer)
			got, err := o.ClassifyIntent(context.Background(), "quero marcar")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassifyIntentBackendError(t *testing.T) {
	o, client := newTestOracle("")
	client.err = errors.New("timeout")
	got, err := o.ClassifyIntent(context.Background(), "hi")
	require.Error(t, err)
	assert.Equal(t, booking.IntentOther, got)
}

func TestExtractDateTime(t *testing.T) {
	o, client := newTestOracle("```json\n{\"date\":\"2025-06-10\",\"time\":\"9:30\"}\n```")
	dt, err := o.ExtractDateTime(context.Background(), "tuesday 9:30")
	require.NoError(t, err)
	assert.Equal(t, booking.DateTime{Date: "2025-06-10", Time: "09:30"}, dt)
	assert.Contains(t, client.last.System[0], "Today is 2025-06-08 (Sunday), timezone -03:00.")
	assert.Equal(t, "gpt-4o-mini", client.last.Model)

	o, _ = newTestOracle(`{"date":null,"time":null}`)
	dt, err = o.ExtractDateTime(context.Background(), "whenever")
	require.NoError(t, err)
	assert.Equal(t, booking.DateTime{}, dt)

	o, _ = newTestOracle(`{"date":"2025-13-45","time":"25:00"}`)
	dt, _ = o.ExtractDateTime(context.Background(), "garbage")
	assert.Equal(t, booking.DateTime{}, dt)
}

func TestExtractDateAndPeriod(t *testing.T) {
	o, _ := newTestOracle(`{"date":"2025-06-09","period":"afternoon"}`)
	dp, err := o.ExtractDateAndPeriod(context.Background(), "amanhã à tarde")
	require.NoError(t, err)
	assert.Equal(t, booking.DatePeriod{Date: "2025-06-09", Period: booking.PeriodAfternoon}, dp)

	o, _ = newTestOracle(`{"date":"2025-06-09","period":null}`)
	dp, err = o.ExtractDateAndPeriod(context.Background(), "amanhã de manhã")
	require.NoError(t, err)
	assert.Equal(t, booking.PeriodMorning, dp.Period, "period falls back to keywords")
}

func TestResolveSlotChoice(t *testing.T) {
	offer := []booking.Slot{
		{ID: "a", Start: time.Date(2025, 6, 9, 9, 0, 0, 0, booking.FixedZone(-3))},
		{ID: "b", Start: time.Date(2025, 6, 9, 14, 0, 0, 0, booking.FixedZone(-3))},
	}

	o, client := newTestOracle("2")
	idx, err := o.ResolveSlotChoice(context.Background(), offer, "the afternoon one")
	require.NoError(t, err)
	assert.Equal(t, 2, idx)
	assert.True(t, strings.Contains(client.last.Messages[0].Content, "1) 09/06 at 09:00\n2) 09/06 at 14:00"))

	for _, answer := range []string{"0", "3", "not sure", "-1"} {
		o, _ = newTestOracle(answer)
		idx, err = o.ResolveSlotChoice(context.Background(), offer, "hmm")
		require.NoError(t, err)
		assert.Equal(t, 0, idx, "answer %q", answer)
	}

	o, client = newTestOracle("1")
	idx, err = o.ResolveSlotChoice(context.Background(), nil, "1")
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
	assert.Empty(t, client.last.Messages, "empty offer never reaches the backend")
}

func TestDetectAlternateDate(t *testing.T) {
	o, _ := newTestOracle("2025-06-12")
	date, err := o.DetectAlternateDate(context.Background(), "can we do thursday?")
	require.NoError(t, err)
	assert.Equal(t, "2025-06-12", date)

	o, _ = newTestOracle("NONE")
	date, err = o.DetectAlternateDate(context.Background(), "hmm")
	require.NoError(t, err)
	assert.Empty(t, date)
}

func TestExtractNameAndPhone(t *testing.T) {
	o, _ := newTestOracle(`{"name":" Maria ","phone":"11 99999-0000"}`)
	c, err := o.ExtractNameAndPhone(context.Background(), "sou Maria 11 99999-0000")
	require.NoError(t, err)
	assert.Equal(t, booking.Contact{Name: "Maria", Phone: "11 99999-0000"}, c)

	o, _ = newTestOracle("no contact here")
	c, err = o.ExtractNameAndPhone(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, booking.Contact{}, c)
}

func TestClassifyTomorrowReply(t *testing.T) {
	o, _ := newTestOracle("CONFIRM_TOMORROW")
	got, err := o.ClassifyTomorrowReply(context.Background(), "yes tomorrow")
	require.NoError(t, err)
	assert.Equal(t, booking.TomorrowConfirm, got)
}

func TestTenantKeyIsForwarded(t *testing.T) {
	o, client := newTestOracle("OTHER")
	ctx := tenancy.WithLLMKey(context.Background(), "sk-tenant")
	_, err := o.ClassifyIntent(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, "sk-tenant", client.last.APIKey)
}
