// Package dialogue is the per-user scheduling state machine: it reads the
// user's state and offered slots, interprets the message through the oracle,
// talks to the calendar and billing gateways and commits the next state.
package dialogue

import (
	"context"

	"github.com/wolfman30/agenda-assistant/internal/billing"
	"github.com/wolfman30/agenda-assistant/internal/booking"
	"github.com/wolfman30/agenda-assistant/internal/knowledge"
	"github.com/wolfman30/agenda-assistant/internal/memory"
	"github.com/wolfman30/agenda-assistant/internal/userconfig"
)

// Oracle interprets free text. Every capability returns a zero value when the
// text carries nothing it recognizes; errors are treated the same way.
type Oracle interface {
	ClassifyIntent(ctx context.Context, text string) (booking.Intent, error)
	ExtractDateTime(ctx context.Context, text string) (booking.DateTime, error)
	ExtractDateAndPeriod(ctx context.Context, text string) (booking.DatePeriod, error)
	// ResolveSlotChoice returns a 1-based index into offer, or 0.
	ResolveSlotChoice(ctx context.Context, offer []booking.Slot, text string) (int, error)
	DetectAlternateDate(ctx context.Context, text string) (string, error)
	ExtractNameAndPhone(ctx context.Context, text string) (booking.Contact, error)
	ClassifyTomorrowReply(ctx context.Context, text string) (booking.TomorrowReply, error)
}

// Availability is the calendar backend.
type Availability interface {
	ListSlots(ctx context.Context, date string) ([]booking.Slot, error)
	ListAllSlots(ctx context.Context) ([]booking.Slot, error)
	CreateEvent(ctx context.Context, event booking.Event) error
	EditEvent(ctx context.Context, event booking.Event) error
}

// EventLister reads the booked calendar feed.
type EventLister interface {
	ListEvents(ctx context.Context) ([]booking.Event, error)
}

// Billing registers customers and issues invoices with a per-account key.
type Billing interface {
	CreateCustomer(ctx context.Context, apiKey string, customer billing.Customer) (string, error)
	CreateInvoice(ctx context.Context, apiKey, customerID string, amount float64) (string, error)
}

// ChatMemory is the external transcript store.
type ChatMemory interface {
	Append(ctx context.Context, entry memory.Entry) error
	DisplayName(ctx context.Context, userID string) (string, error)
}

// ConfigSource resolves the account configuration behind a bearer token.
type ConfigSource interface {
	Lookup(ctx context.Context, token string) (userconfig.Config, error)
}

// Knowledge answers free-form questions and composes the "nothing left
// today" message.
type Knowledge interface {
	Answer(ctx context.Context, q knowledge.Query) (string, error)
	NoSlotsToday(ctx context.Context, q knowledge.Query) (string, error)
}

// Synthesizer renders a reply to audio and returns its reference.
type Synthesizer interface {
	Synthesize(ctx context.Context, userID, text string) (string, error)
}
