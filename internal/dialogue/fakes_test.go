package dialogue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wolfman30/agenda-assistant/internal/billing"
	"github.com/wolfman30/agenda-assistant/internal/booking"
	"github.com/wolfman30/agenda-assistant/internal/knowledge"
	"github.com/wolfman30/agenda-assistant/internal/memory"
	"github.com/wolfman30/agenda-assistant/internal/store"
	"github.com/wolfman30/agenda-assistant/internal/tenancy"
	"github.com/wolfman30/agenda-assistant/internal/userconfig"
	"github.com/wolfman30/agenda-assistant/pkg/logging"
)

var (
	loc = booking.FixedZone(-3)
	// Sunday 2025-06-08 10:00 local.
	testNow   = time.Date(2025, 6, 8, 10, 0, 0, 0, loc)
	testClock = booking.FixedClock(testNow, -3)
)

func at(date string, hour, minute int) time.Time {
	d, err := time.ParseInLocation(booking.DateLayout, date, loc)
	if err != nil {
		panic(err)
	}
	return time.Date(d.Year(), d.Month(), d.Day(), hour, minute, 0, 0, loc)
}

func slot(id, date string, hour, minute int) booking.Slot {
	start := at(date, hour, minute)
	return booking.Slot{ID: id, Start: start, End: start.Add(time.Hour)}
}

type fakeOracle struct {
	mu         sync.Mutex
	intent     booking.Intent
	intentErr  error
	dateTime   booking.DateTime
	datePeriod booking.DatePeriod
	choice     int
	altDate    string
	contact    booking.Contact
	tomorrow   booking.TomorrowReply
	llmKeys    []string
}

func (o *fakeOracle) seen(ctx context.Context) {
	o.mu.Lock()
	o.llmKeys = append(o.llmKeys, tenancy.LLMKeyFromContext(ctx))
	o.mu.Unlock()
}

func (o *fakeOracle) ClassifyIntent(ctx context.Context, _ string) (booking.Intent, error) {
	o.seen(ctx)
	if o.intentErr != nil {
		return "", o.intentErr
	}
	if o.intent == "" {
		return booking.IntentOther, nil
	}
	return o.intent, nil
}

func (o *fakeOracle) ExtractDateTime(context.Context, string) (booking.DateTime, error) {
	return o.dateTime, nil
}

func (o *fakeOracle) ExtractDateAndPeriod(context.Context, string) (booking.DatePeriod, error) {
	return o.datePeriod, nil
}

func (o *fakeOracle) ResolveSlotChoice(_ context.Context, offer []booking.Slot, _ string) (int, error) {
	if len(offer) == 0 {
		return 0, nil
	}
	return o.choice, nil
}

func (o *fakeOracle) DetectAlternateDate(context.Context, string) (string, error) {
	return o.altDate, nil
}

func (o *fakeOracle) ExtractNameAndPhone(context.Context, string) (booking.Contact, error) {
	return o.contact, nil
}

func (o *fakeOracle) ClassifyTomorrowReply(context.Context, string) (booking.TomorrowReply, error) {
	if o.tomorrow == "" {
		return booking.TomorrowOther, nil
	}
	return o.tomorrow, nil
}

type fakeCalendar struct {
	mu       sync.Mutex
	byDate   map[string][]booking.Slot
	all      []booking.Slot
	listErr  error
	writeErr error
	delay    time.Duration
	created  []booking.Event
	edited   []booking.Event
	queried  []string
}

func (c *fakeCalendar) ListSlots(_ context.Context, date string) ([]booking.Slot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queried = append(c.queried, date)
	if c.listErr != nil {
		return nil, c.listErr
	}
	return append([]booking.Slot(nil), c.byDate[date]...), nil
}

func (c *fakeCalendar) ListAllSlots(context.Context) ([]booking.Slot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.listErr != nil {
		return nil, c.listErr
	}
	return append([]booking.Slot(nil), c.all...), nil
}

func (c *fakeCalendar) CreateEvent(_ context.Context, ev booking.Event) error {
	time.Sleep(c.delay)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	c.created = append(c.created, ev)
	return nil
}

func (c *fakeCalendar) EditEvent(_ context.Context, ev booking.Event) error {
	time.Sleep(c.delay)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	c.edited = append(c.edited, ev)
	return nil
}

func (c *fakeCalendar) bookings() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.created) + len(c.edited)
}

type fakeBilling struct {
	customerID  string
	customerErr error
	link        string
	invoiceErr  error
	customers   []billing.Customer
	keys        []string
	invoices    []string
	amounts     []float64
}

func (b *fakeBilling) CreateCustomer(_ context.Context, key string, c billing.Customer) (string, error) {
	b.keys = append(b.keys, key)
	b.customers = append(b.customers, c)
	return b.customerID, b.customerErr
}

func (b *fakeBilling) CreateInvoice(_ context.Context, key, customerID string, amount float64) (string, error) {
	b.keys = append(b.keys, key)
	b.invoices = append(b.invoices, customerID)
	b.amounts = append(b.amounts, amount)
	return b.link, b.invoiceErr
}

type fakeMemory struct {
	mu      sync.Mutex
	name    string
	err     error
	entries []memory.Entry
}

func (m *fakeMemory) Append(_ context.Context, e memory.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return m.err
}

func (m *fakeMemory) DisplayName(context.Context, string) (string, error) {
	return m.name, nil
}

type fakeConfigs struct {
	cfg userconfig.Config
	err error
}

func (c fakeConfigs) Lookup(context.Context, string) (userconfig.Config, error) {
	return c.cfg, c.err
}

type fakeKnowledge struct {
	answer  string
	err     error
	noSlots string
	queries []knowledge.Query
}

func (k *fakeKnowledge) Answer(_ context.Context, q knowledge.Query) (string, error) {
	k.queries = append(k.queries, q)
	return k.answer, k.err
}

func (k *fakeKnowledge) NoSlotsToday(_ context.Context, q knowledge.Query) (string, error) {
	k.queries = append(k.queries, q)
	return k.noSlots, nil
}

type fakeSpeech struct {
	texts []string
	err   error
}

func (s *fakeSpeech) Synthesize(_ context.Context, userID, text string) (string, error) {
	s.texts = append(s.texts, text)
	if s.err != nil {
		return "", s.err
	}
	return "audios/" + userID + ".mp3", nil
}

type harness struct {
	engine    *Engine
	oracle    *fakeOracle
	calendar  *fakeCalendar
	billing   *fakeBilling
	memory    *fakeMemory
	knowledge *fakeKnowledge
	speech    *fakeSpeech
	states    *store.MemoryStore[State]
	offers    *store.MemoryStore[[]booking.Slot]
	pending   *store.MemoryStore[Registration]
	bindings  *store.KeyedBindings
}

const user = "5511987654321"

func newHarness(t *testing.T, configure ...func(*Deps)) *harness {
	t.Helper()
	h := &harness{
		oracle:    &fakeOracle{},
		calendar:  &fakeCalendar{byDate: map[string][]booking.Slot{}},
		billing:   &fakeBilling{customerID: "cus_1", link: "https://pay.test/inv_1"},
		memory:    &fakeMemory{name: "Ana"},
		knowledge: &fakeKnowledge{answer: "We are open from 8h to 18h.", noSlots: "Today is fully booked. Shall I check tomorrow?"},
		speech:    &fakeSpeech{},
		states:    store.NewMemoryStore[State](0),
		offers:    store.NewMemoryStore[[]booking.Slot](0),
		pending:   store.NewMemoryStore[Registration](0),
	}
	h.bindings = store.NewKeyedBindings(store.NewMemoryStore[string](0))
	deps := Deps{
		Oracle:       h.oracle,
		Availability: h.calendar,
		Billing:      h.billing,
		Memory:       h.memory,
		Configs:      fakeConfigs{cfg: userconfig.Config{OpenAIKey: "sk-user", BillingKey: "aact_1"}},
		Knowledge:    h.knowledge,
		Speech:       h.speech,
		States:       h.states,
		Offers:       h.offers,
		Pending:      h.pending,
		Bindings:     h.bindings,
		Clock:        testClock,
		Logger:       logging.Discard(),
	}
	for _, fn := range configure {
		fn(&deps)
	}
	engine, err := NewEngine(deps)
	require.NoError(t, err)
	h.engine = engine
	return h
}

func (h *harness) send(t *testing.T, text string) Reply {
	t.Helper()
	reply, err := h.engine.Handle(context.Background(), Request{UserID: user, Text: text, Token: "tok"})
	require.NoError(t, err)
	h.engine.Wait()
	return reply
}

func (h *harness) state(t *testing.T) State {
	t.Helper()
	s, ok, err := h.states.Get(context.Background(), user)
	require.NoError(t, err)
	if !ok {
		return StateInitial
	}
	return s
}

func (h *harness) offer(t *testing.T) []booking.Slot {
	t.Helper()
	o, _, err := h.offers.Get(context.Background(), user)
	require.NoError(t, err)
	return o
}

func (h *harness) seed(t *testing.T, state State, offer ...booking.Slot) {
	t.Helper()
	require.NoError(t, h.states.Set(context.Background(), user, state))
	if len(offer) > 0 {
		require.NoError(t, h.offers.Set(context.Background(), user, offer))
	}
}

var errBackend = errors.New("backend down")
