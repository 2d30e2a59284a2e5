package billing

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/agenda-assistant/pkg/logging"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	c := NewClient(ts.URL, time.Second, logging.Discard(), nil)
	c.now = func() time.Time { return time.Date(2025, 6, 9, 12, 0, 0, 0, time.UTC) }
	return c
}

func TestCreateCustomer(t *testing.T) {
	var got map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/customers" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("access_token") != "key-1" {
			t.Errorf("access_token = %q", r.Header.Get("access_token"))
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"id":"cus_000005219613"}`))
	})

	id, err := client.CreateCustomer(context.Background(), "key-1", Customer{Name: "Maria", TaxID: "12345678901", Mobile: "1199999000"})
	require.NoError(t, err)
	assert.Equal(t, "cus_000005219613", id)
	assert.Equal(t, "Maria", got["name"])
	assert.Equal(t, "12345678901", got["cpfCnpj"])
	assert.Equal(t, "1199999000", got["mobilePhone"])
	assert.Nil(t, got["email"])
}

func TestCreateCustomerFailure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"errors":[{"code":"invalid_cpfCnpj"}]}`))
	})

	_, err := client.CreateCustomer(context.Background(), "key-1", Customer{Name: "Maria", TaxID: "1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}

func TestMissingCredential(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", time.Second, logging.Discard(), nil)

	_, err := client.CreateCustomer(context.Background(), "", Customer{})
	assert.True(t, errors.Is(err, ErrMissingCredential))
	_, err = client.CreateInvoice(context.Background(), " ", "cus_1", 300)
	assert.True(t, errors.Is(err, ErrMissingCredential))
}

func TestCreateInvoice(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     string
		wantErr  bool
	}{
		{"bank slip link", `{"id":"pay_1","bankSlipUrl":"https://asaas.test/b/pay_1"}`, "https://asaas.test/b/pay_1", false},
		{"invoice link fallback", `{"id":"pay_1","invoiceUrl":"https://asaas.test/i/pay_1"}`, "https://asaas.test/i/pay_1", false},
		{"no link", `{"id":"pay_1"}`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got map[string]any
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/payments" {
					t.Errorf("path = %s", r.URL.Path)
				}
				_ = json.NewDecoder(r.Body).Decode(&got)
				_, _ = w.Write([]byte(tt.response))
			})

			link, err := client.CreateInvoice(context.Background(), "key-1", "cus_1", 300)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, link)
			assert.Equal(t, "cus_1", got["customer"])
			assert.Equal(t, "BOLETO", got["billingType"])
			assert.Equal(t, 300.0, got["value"])
			assert.Equal(t, "2025-06-09", got["dueDate"])
		})
	}
}
