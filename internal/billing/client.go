// Package billing is the client for the Asaas payments API: customer
// registration and invoice (boleto) generation.
package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/agenda-assistant/internal/observability/metrics"
	"github.com/wolfman30/agenda-assistant/pkg/logging"
)

const (
	defaultBaseURL = "https://sandbox.asaas.com/api/v3"
	defaultTimeout = 5 * time.Second
)

// ErrMissingCredential is returned when no billing API key is configured for the caller.
var ErrMissingCredential = errors.New("billing: api key not configured")

// Customer is the identity sent when registering a billing customer.
type Customer struct {
	Name   string
	TaxID  string
	Mobile string
}

// Client wraps the Asaas REST endpoints. The API key is supplied per call
// because each business configures its own account.
type Client struct {
	httpClient *http.Client
	baseURL    string
	now        func() time.Time
	logger     *logging.Logger
	metrics    *metrics.GatewayMetrics
	tracer     trace.Tracer
}

// NewClient constructs a billing client.
func NewClient(baseURL string, timeout time.Duration, logger *logging.Logger, m *metrics.GatewayMetrics) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		now:        time.Now,
		logger:     logger,
		metrics:    m,
		tracer:     otel.Tracer("assistant.internal.billing"),
	}
}

type customerRequest struct {
	Name        string  `json:"name"`
	CpfCnpj     string  `json:"cpfCnpj"`
	Email       *string `json:"email"`
	MobilePhone string  `json:"mobilePhone"`
}

type paymentRequest struct {
	Customer    string  `json:"customer"`
	BillingType string  `json:"billingType"`
	Value       float64 `json:"value"`
	DueDate     string  `json:"dueDate"`
}

// CreateCustomer registers a customer and returns its Asaas id.
func (c *Client) CreateCustomer(ctx context.Context, apiKey string, customer Customer) (string, error) {
	if strings.TrimSpace(apiKey) == "" {
		return "", ErrMissingCredential
	}
	body := customerRequest{
		Name:        customer.Name,
		CpfCnpj:     customer.TaxID,
		MobilePhone: customer.Mobile,
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := c.doJSON(ctx, "create_customer", apiKey, "/customers", body, &out); err != nil {
		return "", fmt.Errorf("billing: create customer: %w", err)
	}
	if out.ID == "" {
		return "", errors.New("billing: create customer: response carried no id")
	}
	return out.ID, nil
}

// CreateInvoice issues a boleto due today and returns the payment link.
func (c *Client) CreateInvoice(ctx context.Context, apiKey, customerID string, amount float64) (string, error) {
	if strings.TrimSpace(apiKey) == "" {
		return "", ErrMissingCredential
	}
	body := paymentRequest{
		Customer:    customerID,
		BillingType: "BOLETO",
		Value:       amount,
		DueDate:     c.now().Format("2006-01-02"),
	}
	var out struct {
		BankSlipURL string `json:"bankSlipUrl"`
		InvoiceURL  string `json:"invoiceUrl"`
	}
	if err := c.doJSON(ctx, "create_invoice", apiKey, "/payments", body, &out); err != nil {
		return "", fmt.Errorf("billing: create invoice: %w", err)
	}
	switch {
	case out.BankSlipURL != "":
		return out.BankSlipURL, nil
	case out.InvoiceURL != "":
		return out.InvoiceURL, nil
	}
	return "", errors.New("billing: create invoice: response carried no payment link")
}

func (c *Client) doJSON(ctx context.Context, op, apiKey, path string, body, out any) error {
	ctx, span := c.tracer.Start(ctx, "billing."+op)
	defer span.End()
	start := time.Now()
	status := "error"
	defer func() {
		c.metrics.ObserveRequest("billing", op, status, time.Since(start).Seconds())
	}()

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("access_token", apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()
	status = fmt.Sprintf("%d", resp.StatusCode)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := string(respBody)
		if len(msg) > 300 {
			msg = msg[:300]
		}
		c.logger.Warn("billing API non-2xx response", "status", resp.StatusCode, "path", path, "body", msg)
		return fmt.Errorf("billing API returned %d: %s", resp.StatusCode, msg)
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
