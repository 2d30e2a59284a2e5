package dialogue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/wolfman30/agenda-assistant/internal/billing"
	"github.com/wolfman30/agenda-assistant/internal/knowledge"
)

const (
	msgAskName        = "To issue the invoice I need to register you with our billing provider. What is your full name?"
	msgNameTooShort   = `That name looks too short. Please send your full name, for example "João da Silva".`
	msgAskTaxID       = "Great, thanks. Now send your CPF or CNPJ (numbers only, no dots or dashes)."
	msgInvalidTaxID   = `That CPF/CNPJ is not valid. Send only the numbers, for example "12345678901" (11 digits) for CPF or "12345678000199" (14 digits) for CNPJ.`
	msgInvalidPhone   = `That phone number is not valid. Send only the digits, for example "11988887766".`
	msgConfigureKey   = "I couldn't find your billing key. Please configure it in the panel before continuing."
	msgRegisterFailed = "I couldn't complete your registration to send the invoice. Please check your details and try again later."
	msgAnswerFailed   = "Sorry, I couldn't find an answer to that right now."
)

var interrogatives = []string{
	"what", "how", "when", "where", "why", "who", "which", "can", "could", "do", "does", "is", "are",
	"qual", "quais", "como", "quando", "onde", "porque", "por", "quanto", "quanta", "quem", "o que", "posso", "pode",
}

// looksLikeQuestion reports whether text is a question rather than data.
func looksLikeQuestion(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	if strings.Contains(lower, "?") {
		return true
	}
	for _, w := range interrogatives {
		if lower == w || strings.HasPrefix(lower, w+" ") {
			return true
		}
	}
	return false
}

func digitsOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}

// canonicalMobile derives the local mobile number from a user id: digits
// only, country code dropped when the number is longer than 11 digits, at
// most 10 digits kept.
func canonicalMobile(userID string) string {
	digits := digitsOnly(userID)
	if len(digits) > 11 && strings.HasPrefix(digits, "55") {
		digits = digits[2:]
	}
	if len(digits) > 10 {
		digits = digits[:10]
	}
	return digits
}

// answerInline answers a question raised mid-registration and repeats the
// pending prompt.
func (e *Engine) answerInline(ctx context.Context, t *turn, prompt string) string {
	answer := msgAnswerFailed
	if e.Knowledge != nil {
		text, err := e.Knowledge.Answer(ctx, knowledge.Query{UserID: t.userID, Text: t.text, Instructions: t.config.CustomInstructions})
		if err != nil {
			e.Logger.Warn("inline answer failed", "user_id", t.userID, "error", err)
		} else {
			answer = text
		}
	}
	return answer + "\n\n" + prompt
}

func (e *Engine) pending(ctx context.Context, userID string) (Registration, error) {
	reg, _, err := e.Pending.Get(ctx, userID)
	if err != nil {
		return Registration{}, fmt.Errorf("dialogue: load registration: %w", err)
	}
	return reg, nil
}

func (e *Engine) handleCollectingName(ctx context.Context, t *turn) (outcome, error) {
	if looksLikeQuestion(t.text) {
		return stay(t, e.answerInline(ctx, t, "Now, could you tell me your full name?")), nil
	}
	name := strings.Join(strings.Fields(t.text), " ")
	if utf8.RuneCountInString(name) < 3 {
		return stay(t, msgNameTooShort), nil
	}
	reg, err := e.pending(ctx, t.userID)
	if err != nil {
		return outcome{}, err
	}
	reg.Name = name
	if err := e.Pending.Set(ctx, t.userID, reg); err != nil {
		return outcome{}, fmt.Errorf("dialogue: save registration: %w", err)
	}
	return moveTo(StateCollectingTaxID, msgAskTaxID), nil
}

func (e *Engine) handleCollectingTaxID(ctx context.Context, t *turn) (outcome, error) {
	digits := digitsOnly(t.text)
	if len(digits) != 11 && len(digits) != 14 {
		if looksLikeQuestion(t.text) {
			return stay(t, e.answerInline(ctx, t, "Now please send your CPF or CNPJ (numbers only).")), nil
		}
		return stay(t, msgInvalidTaxID), nil
	}
	reg, err := e.pending(ctx, t.userID)
	if err != nil {
		return outcome{}, err
	}
	reg.TaxID = digits
	return e.register(ctx, t, reg, canonicalMobile(t.userID))
}

// handleCollectingPhone is the older variant of the flow that asks for the
// phone instead of deriving it from the user id.
func (e *Engine) handleCollectingPhone(ctx context.Context, t *turn) (outcome, error) {
	digits := digitsOnly(t.text)
	if len(digits) != 10 && len(digits) != 11 {
		return stay(t, msgInvalidPhone), nil
	}
	reg, err := e.pending(ctx, t.userID)
	if err != nil {
		return outcome{}, err
	}
	reg.Phone = digits
	return e.register(ctx, t, reg, digits)
}

// register creates the billing customer. Every exit leaves the pending
// registration discarded and the user back in INITIAL.
func (e *Engine) register(ctx context.Context, t *turn, reg Registration, mobile string) (outcome, error) {
	if err := e.Pending.Delete(ctx, t.userID); err != nil {
		return outcome{}, fmt.Errorf("dialogue: discard registration: %w", err)
	}
	if !t.config.HasBillingKey() {
		return reset(msgConfigureKey), nil
	}
	customerID, err := e.Billing.CreateCustomer(ctx, t.config.BillingKey, billing.Customer{
		Name:   reg.Name,
		TaxID:  reg.TaxID,
		Mobile: mobile,
	})
	if errors.Is(err, billing.ErrMissingCredential) {
		return reset(msgConfigureKey), nil
	}
	if err != nil {
		e.Logger.Warn("customer registration failed", "user_id", t.userID, "error", err)
		return reset(msgRegisterFailed), nil
	}
	if err := e.Bindings.Bind(ctx, t.userID, customerID); err != nil {
		return outcome{}, fmt.Errorf("dialogue: bind customer: %w", err)
	}
	return reset(fmt.Sprintf("Customer registered successfully! ID: %s. I can issue your invoice whenever you ask.", customerID)), nil
}

var errNoBillingKey = errors.New("dialogue: billing key not configured")

func (e *Engine) invoice(ctx context.Context, t *turn, customerID string) (string, error) {
	if !t.config.HasBillingKey() {
		return "", errNoBillingKey
	}
	link, err := e.Billing.CreateInvoice(ctx, t.config.BillingKey, customerID, e.InvoiceAmount)
	if errors.Is(err, billing.ErrMissingCredential) {
		return "", errNoBillingKey
	}
	return link, err
}
