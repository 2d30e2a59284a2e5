package dialogue

// State tags how the next inbound message from a user is interpreted.
type State string

const (
	StateInitial                 State = "INITIAL"
	StateCollectingName          State = "COLLECTING_NAME"
	StateCollectingTaxID         State = "COLLECTING_TAX_ID"
	StateCollectingPhone         State = "COLLECTING_PHONE"
	StateAwaitingFutureChoice    State = "AWAITING_FUTURE_SLOT_CHOICE"
	StateAwaitingTomorrowConfirm State = "AWAITING_TOMORROW_CONFIRMATION"
	StateAwaitingSingleConfirm   State = "AWAITING_SINGLE_SLOT_CONFIRMATION"
	StateAwaitingHumanChoice     State = "AWAITING_HUMAN_SLOT_CHOICE"
	StateAwaitingManualDate      State = "AWAITING_MANUAL_DATE"
)

var knownStates = map[State]struct{}{
	StateInitial:                 {},
	StateCollectingName:          {},
	StateCollectingTaxID:         {},
	StateCollectingPhone:         {},
	StateAwaitingFutureChoice:    {},
	StateAwaitingTomorrowConfirm: {},
	StateAwaitingSingleConfirm:   {},
	StateAwaitingHumanChoice:     {},
	StateAwaitingManualDate:      {},
}

// Valid reports whether s is one of the known states.
func (s State) Valid() bool {
	_, ok := knownStates[s]
	return ok
}

// Registration accumulates the billing identity while it is being collected.
type Registration struct {
	Name  string `json:"name,omitempty"`
	TaxID string `json:"tax_id,omitempty"`
	Phone string `json:"phone,omitempty"`
}
