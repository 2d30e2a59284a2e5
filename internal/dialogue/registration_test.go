package dialogue

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/agenda-assistant/internal/billing"
	"github.com/wolfman30/agenda-assistant/internal/userconfig"
)

func (h *harness) registration(t *testing.T) (Registration, bool) {
	t.Helper()
	reg, ok, err := h.pending.Get(context.Background(), user)
	require.NoError(t, err)
	return reg, ok
}

func TestRegistrationHappyPath(t *testing.T) {
	h := newHarness(t)
	h.seed(t, StateCollectingName)
	require.NoError(t, h.pending.Set(context.Background(), user, Registration{}))

	reply := h.send(t, "  Maria   da Silva ")
	assert.Equal(t, msgAskTaxID, reply.Text)
	assert.Equal(t, StateCollectingTaxID, h.state(t))
	reg, _ := h.registration(t)
	assert.Equal(t, "Maria da Silva", reg.Name)

	reply = h.send(t, "123.456.789-01")
	assert.Equal(t, "Customer registered successfully! ID: cus_1. I can issue your invoice whenever you ask.", reply.Text)
	assert.Equal(t, StateInitial, h.state(t))

	require.Len(t, h.billing.customers, 1)
	assert.Equal(t, billing.Customer{Name: "Maria da Silva", TaxID: "12345678901", Mobile: "1198765432"}, h.billing.customers[0])
	assert.Equal(t, []string{"aact_1"}, h.billing.keys)

	id, bound, err := h.bindings.CustomerID(context.Background(), user)
	require.NoError(t, err)
	assert.True(t, bound)
	assert.Equal(t, "cus_1", id)
	_, pending := h.registration(t)
	assert.False(t, pending)
}

func TestTaxIDLengths(t *testing.T) {
	tests := []struct {
		input    string
		accepted bool
	}{
		{"12345678901", true},
		{"12.345.678/0001-99", true},
		{"1234567890", false},
		{"123456789012", false},
		{"abc", false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			h := newHarness(t)
			h.seed(t, StateCollectingTaxID)
			require.NoError(t, h.pending.Set(context.Background(), user, Registration{Name: "Maria Souza"}))

			reply := h.send(t, tt.input)

			if tt.accepted {
				assert.Equal(t, StateInitial, h.state(t))
				assert.Len(t, h.billing.customers, 1)
				return
			}
			assert.Equal(t, msgInvalidTaxID, reply.Text)
			assert.Equal(t, StateCollectingTaxID, h.state(t))
			assert.Empty(t, h.billing.customers)
			reg, ok := h.registration(t)
			assert.True(t, ok)
			assert.Equal(t, "Maria Souza", reg.Name)
		})
	}
}

func TestRegistrationQuestionsAreAnswered(t *testing.T) {
	h := newHarness(t)
	h.seed(t, StateCollectingName)

	reply := h.send(t, "why do you need my name?")
	assert.Equal(t, "We are open from 8h to 18h.\n\nNow, could you tell me your full name?", reply.Text)
	assert.Equal(t, StateCollectingName, h.state(t))

	h.seed(t, StateCollectingTaxID)
	reply = h.send(t, "o que é CNPJ?")
	assert.Contains(t, reply.Text, "Now please send your CPF or CNPJ")
	assert.Equal(t, StateCollectingTaxID, h.state(t))
}

func TestShortNameIsRejected(t *testing.T) {
	h := newHarness(t)
	h.seed(t, StateCollectingName)

	reply := h.send(t, "Jo")

	assert.Equal(t, msgNameTooShort, reply.Text)
	assert.Equal(t, StateCollectingName, h.state(t))
}

func TestRegistrationWithoutBillingKey(t *testing.T) {
	h := newHarness(t, func(d *Deps) {
		d.Configs = fakeConfigs{cfg: userconfig.Config{OpenAIKey: "sk-user"}}
	})
	h.seed(t, StateCollectingTaxID)
	require.NoError(t, h.pending.Set(context.Background(), user, Registration{Name: "Maria Souza"}))

	reply := h.send(t, "12345678901")

	assert.Equal(t, msgConfigureKey, reply.Text)
	assert.Equal(t, StateInitial, h.state(t))
	assert.Empty(t, h.billing.customers)
	_, pending := h.registration(t)
	assert.False(t, pending)
}

func TestRegistrationBillingFailure(t *testing.T) {
	h := newHarness(t)
	h.billing.customerErr = errBackend
	h.seed(t, StateCollectingTaxID)

	reply := h.send(t, "12345678000199")

	assert.Equal(t, msgRegisterFailed, reply.Text)
	assert.Equal(t, StateInitial, h.state(t))
	_, bound, _ := h.bindings.CustomerID(context.Background(), user)
	assert.False(t, bound)
}

func TestRegistrationMissingCredentialFromGateway(t *testing.T) {
	h := newHarness(t)
	h.billing.customerErr = billing.ErrMissingCredential
	h.seed(t, StateCollectingTaxID)

	reply := h.send(t, "12345678901")

	assert.Equal(t, msgConfigureKey, reply.Text)
}

func TestLegacyPhoneCollection(t *testing.T) {
	h := newHarness(t)
	h.seed(t, StateCollectingPhone)
	require.NoError(t, h.pending.Set(context.Background(), user, Registration{Name: "Maria Souza", TaxID: "12345678901"}))

	reply := h.send(t, "12345")
	assert.Equal(t, msgInvalidPhone, reply.Text)
	assert.Equal(t, StateCollectingPhone, h.state(t))

	h.send(t, "(11) 98888-7766")
	assert.Equal(t, StateInitial, h.state(t))
	require.Len(t, h.billing.customers, 1)
	assert.Equal(t, "11988887766", h.billing.customers[0].Mobile)
}

func TestCanonicalMobile(t *testing.T) {
	tests := map[string]string{
		"5511987654321":      "1198765432",
		"+55 (11) 3333-4444": "1133334444",
		"11987654321":        "1198765432",
		"1133334444":         "1133334444",
		"55119":              "55119",
	}
	for in, want := range tests {
		assert.Equal(t, want, canonicalMobile(in), in)
	}
}

func TestLooksLikeQuestion(t *testing.T) {
	assert.True(t, looksLikeQuestion("Is this safe?"))
	assert.True(t, looksLikeQuestion("como funciona"))
	assert.True(t, looksLikeQuestion("o que é isso"))
	assert.False(t, looksLikeQuestion("Maria da Silva"))
	assert.False(t, looksLikeQuestion("12345678901"))
	assert.False(t, looksLikeQuestion("Isabela Costa"))
}
