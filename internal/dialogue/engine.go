package dialogue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wolfman30/agenda-assistant/internal/booking"
	"github.com/wolfman30/agenda-assistant/internal/keylock"
	"github.com/wolfman30/agenda-assistant/internal/memory"
	"github.com/wolfman30/agenda-assistant/internal/observability/metrics"
	"github.com/wolfman30/agenda-assistant/internal/store"
	"github.com/wolfman30/agenda-assistant/internal/tenancy"
	"github.com/wolfman30/agenda-assistant/internal/userconfig"
	"github.com/wolfman30/agenda-assistant/pkg/logging"
)

// DefaultInvoiceAmount is charged when Deps.InvoiceAmount is zero.
const DefaultInvoiceAmount = 300.0

// Request is one inbound message.
type Request struct {
	UserID string
	Text   string
	Token  string
}

// Reply is what goes back to the messaging side. Slots is kept for wire
// compatibility and is always empty.
type Reply struct {
	Text     string
	AudioRef string
	Slots    []booking.Slot
}

// Deps wires the engine. Oracle, Availability, Billing and the four stores
// are required; everything else is optional.
type Deps struct {
	Oracle       Oracle
	Availability Availability
	Billing      Billing
	Memory       ChatMemory
	Configs      ConfigSource
	Knowledge    Knowledge
	Speech       Synthesizer

	Locker   keylock.Locker
	States   store.KeyedStore[State]
	Offers   store.KeyedStore[[]booking.Slot]
	Pending  store.KeyedStore[Registration]
	Bindings store.Bindings

	Clock         booking.Clock
	InvoiceAmount float64
	Metrics       *metrics.DialogueMetrics
	Logger        *logging.Logger
}

// Engine runs one state handler per inbound message, serialized per user.
type Engine struct {
	Deps
	handlers   map[State]handler
	background sync.WaitGroup
}

type handler func(ctx context.Context, t *turn) (outcome, error)

// turn is the input of one handler: the message plus everything loaded for
// the user at the start of handling it.
type turn struct {
	userID string
	text   string
	state  State
	offer  []booking.Slot
	config userconfig.Config
}

// outcome is what a handler decided. The engine commits it.
type outcome struct {
	reply      string
	next       State
	offer      []booking.Slot
	setOffer   bool
	clearOffer bool
	speak      bool
}

func stay(t *turn, reply string) outcome {
	return outcome{reply: reply, next: t.state}
}

func reset(reply string) outcome {
	return outcome{reply: reply, next: StateInitial}
}

func moveTo(next State, reply string) outcome {
	return outcome{reply: reply, next: next}
}

// NewEngine validates deps and builds the state table.
func NewEngine(deps Deps) (*Engine, error) {
	switch {
	case deps.Oracle == nil:
		return nil, errors.New("dialogue: oracle is required")
	case deps.Availability == nil:
		return nil, errors.New("dialogue: availability gateway is required")
	case deps.Billing == nil:
		return nil, errors.New("dialogue: billing gateway is required")
	case deps.States == nil || deps.Offers == nil || deps.Pending == nil || deps.Bindings == nil:
		return nil, errors.New("dialogue: state, offer, pending and binding stores are required")
	}
	if deps.Locker == nil {
		deps.Locker = keylock.NewLocal(0)
	}
	if deps.InvoiceAmount <= 0 {
		deps.InvoiceAmount = DefaultInvoiceAmount
	}
	if deps.Logger == nil {
		deps.Logger = logging.Default()
	}
	e := &Engine{Deps: deps}
	e.handlers = map[State]handler{
		StateInitial:                 e.handleInitial,
		StateCollectingName:          e.handleCollectingName,
		StateCollectingTaxID:         e.handleCollectingTaxID,
		StateCollectingPhone:         e.handleCollectingPhone,
		StateAwaitingFutureChoice:    e.handleSlotChoice,
		StateAwaitingHumanChoice:     e.handleSlotChoice,
		StateAwaitingSingleConfirm:   e.handleSingleConfirm,
		StateAwaitingManualDate:      e.handleManualDate,
		StateAwaitingTomorrowConfirm: e.handleTomorrowConfirm,
	}
	return e, nil
}

// Handle processes one message. It returns userconfig.ErrUnauthorized when
// the token is rejected, and an error when the user's lock or stores fail;
// interpretation and gateway failures always produce a reply instead.
func (e *Engine) Handle(ctx context.Context, req Request) (Reply, error) {
	start := time.Now()
	ctx = tenancy.WithToken(ctx, req.Token)

	var cfg userconfig.Config
	if e.Configs != nil {
		var err error
		cfg, err = e.Configs.Lookup(ctx, req.Token)
		if errors.Is(err, userconfig.ErrUnauthorized) {
			return Reply{}, err
		}
		if err != nil {
			e.Logger.Warn("user config lookup failed", "user_id", req.UserID, "error", err)
		}
	}
	if cfg.OpenAIKey != "" {
		ctx = tenancy.WithLLMKey(ctx, cfg.OpenAIKey)
	}

	held, release, err := e.Locker.Acquire(ctx, req.UserID)
	if err != nil {
		return Reply{}, fmt.Errorf("dialogue: lock user: %w", err)
	}
	defer release()
	ctx = held

	t, err := e.load(ctx, req, cfg)
	if err != nil {
		return Reply{}, err
	}
	out, err := e.handlers[t.state](ctx, t)
	if err != nil {
		return Reply{}, err
	}
	// A holder whose lease ran out must not overwrite what the new holder did.
	if ctx.Err() != nil {
		return Reply{}, fmt.Errorf("dialogue: lock lost before commit: %w", context.Cause(ctx))
	}
	if err := e.commit(ctx, t, out); err != nil {
		return Reply{}, err
	}
	e.record(ctx, t, out.reply)

	connected, _ := tenancy.ConnectedNumberFromContext(ctx)
	e.Metrics.ObserveTurn(string(t.state), time.Since(start).Seconds())
	e.Metrics.ObserveTransition(string(t.state), string(out.next))
	e.Logger.Info("dialogue turn",
		"user_id", t.userID,
		"connected_number", connected,
		"state", t.state,
		"next_state", out.next,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return Reply{
		Text:     out.reply,
		AudioRef: e.speak(ctx, t.userID, out),
		Slots:    []booking.Slot{},
	}, nil
}

// Wait blocks until transcript writes started by Handle have finished.
func (e *Engine) Wait() {
	e.background.Wait()
}

// record appends both sides of the exchange to chat memory, with any name or
// phone the message carried, without delaying the reply.
func (e *Engine) record(ctx context.Context, t *turn, reply string) {
	if e.Memory == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	now := e.Clock.Now()
	e.background.Add(1)
	go func() {
		defer e.background.Done()
		contact, err := e.Oracle.ExtractNameAndPhone(ctx, t.text)
		if err != nil {
			contact = booking.Contact{}
		}
		entries := []memory.Entry{
			{UserID: t.userID, From: memory.FromUser, Text: t.text, Timestamp: now, Name: contact.Name, Phone: contact.Phone},
			{UserID: t.userID, From: memory.FromBot, Text: reply, Timestamp: now.Add(time.Millisecond)},
		}
		for _, entry := range entries {
			if err := e.Memory.Append(ctx, entry); err != nil {
				connected, _ := tenancy.ConnectedNumberFromContext(ctx)
				e.Logger.Warn("memory append failed", "user_id", t.userID, "connected_number", connected, "from", entry.From, "error", err)
			}
		}
	}()
}

func (e *Engine) load(ctx context.Context, req Request, cfg userconfig.Config) (*turn, error) {
	state, ok, err := e.States.Get(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("dialogue: load state: %w", err)
	}
	if !ok || !state.Valid() {
		state = StateInitial
	}
	offer, _, err := e.Offers.Get(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("dialogue: load offer: %w", err)
	}
	return &turn{
		userID: req.UserID,
		text:   req.Text,
		state:  state,
		offer:  offer,
		config: cfg,
	}, nil
}

func (e *Engine) commit(ctx context.Context, t *turn, out outcome) error {
	if out.next == StateInitial {
		if err := e.States.Delete(ctx, t.userID); err != nil {
			return fmt.Errorf("dialogue: reset state: %w", err)
		}
		if err := e.Offers.Delete(ctx, t.userID); err != nil {
			return fmt.Errorf("dialogue: clear offer: %w", err)
		}
		return nil
	}
	if err := e.States.Set(ctx, t.userID, out.next); err != nil {
		return fmt.Errorf("dialogue: save state: %w", err)
	}
	switch {
	case out.setOffer:
		if err := e.Offers.Set(ctx, t.userID, out.offer); err != nil {
			return fmt.Errorf("dialogue: save offer: %w", err)
		}
	case out.clearOffer:
		if err := e.Offers.Delete(ctx, t.userID); err != nil {
			return fmt.Errorf("dialogue: clear offer: %w", err)
		}
	}
	return nil
}

func (e *Engine) speak(ctx context.Context, userID string, out outcome) string {
	if e.Speech == nil || !out.speak || booking.ContainsDateOrTime(out.reply) {
		return ""
	}
	ref, err := e.Speech.Synthesize(ctx, userID, out.reply)
	if err != nil {
		e.Logger.Warn("speech synthesis failed", "user_id", userID, "error", err)
		return ""
	}
	return ref
}
