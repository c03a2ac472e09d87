package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	ierr "github.com/quecocinohoy/backend/internal/errors"
)

// NotificationTypePreapproval is the webhook type for subscription changes.
const NotificationTypePreapproval = "subscription_preapproval"

// HeaderIdempotencyKey deduplicates retried creations on the gateway side.
const HeaderIdempotencyKey = "X-Idempotency-Key"

// AutoRecurring describes the billing cycle of a preapproval.
type AutoRecurring struct {
	Frequency         int     `json:"frequency"`
	FrequencyType     string  `json:"frequency_type"`
	TransactionAmount float64 `json:"transaction_amount"`
	CurrencyID        string  `json:"currency_id"`
}

// CreatePreapprovalRequest is the body of POST /preapproval.
type CreatePreapprovalRequest struct {
	Reason            string        `json:"reason"`
	ExternalReference string        `json:"external_reference"`
	PayerEmail        string        `json:"payer_email"`
	AutoRecurring     AutoRecurring `json:"auto_recurring"`
	BackURL           string        `json:"back_url"`
	Status            string        `json:"status"`
}

// Preapproval is the gateway's view of a subscription.
type Preapproval struct {
	ID                string `json:"id"`
	Status            string `json:"status"`
	PayerEmail        string `json:"payer_email"`
	ExternalReference string `json:"external_reference"`
	InitPoint         string `json:"init_point"`
	Reason            string `json:"reason"`
}

type apiError struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Status  int    `json:"status"`
}

// MercadoPagoClient implements the preapproval (recurring subscription) API.
type MercadoPagoClient struct {
	base        *BaseClient
	baseURL     string
	accessToken string
}

// NewMercadoPagoClient creates a client against baseURL (https://api.mercadopago.com).
func NewMercadoPagoClient(baseURL, accessToken string, opts ...BaseClientOption) *MercadoPagoClient {
	httpClient := &http.Client{Timeout: 15 * time.Second}
	return &MercadoPagoClient{
		base:        NewBaseClient(httpClient, "mercadopago", "quecocinohoy-backend/1.0", opts...),
		baseURL:     strings.TrimRight(baseURL, "/"),
		accessToken: accessToken,
	}
}

// CreatePreapproval starts a pending subscription and returns its checkout link.
// Every retry of one call carries the same idempotency key.
func (c *MercadoPagoClient) CreatePreapproval(ctx context.Context, in CreatePreapprovalRequest) (*Preapproval, error) {
	var out Preapproval
	if err := c.call(ctx, http.MethodPost, "/preapproval", uuid.NewString(), in, &out); err != nil {
		return nil, err
	}
	if out.ID == "" || out.InitPoint == "" {
		return nil, ierr.NewError("preapproval response missing id or init_point").
			WithHint("No pudimos iniciar la suscripción. Intentá de nuevo en unos minutos.").
			Mark(ierr.ErrGateway)
	}
	return &out, nil
}

// GetPreapproval fetches the current state of a subscription.
func (c *MercadoPagoClient) GetPreapproval(ctx context.Context, id string) (*Preapproval, error) {
	var out Preapproval
	if err := c.call(ctx, http.MethodGet, "/preapproval/"+url.PathEscape(id), "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CancelPreapproval moves a subscription to cancelled on the gateway side.
func (c *MercadoPagoClient) CancelPreapproval(ctx context.Context, id string) error {
	body := map[string]string{"status": "cancelled"}
	return c.call(ctx, http.MethodPut, "/preapproval/"+url.PathEscape(id), "", body, nil)
}

func (c *MercadoPagoClient) call(ctx context.Context, method, path, idempotencyKey string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return ierr.WithError(err).WithMessage("failed to marshal gateway request").Mark(ierr.ErrSystem)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return ierr.WithError(err).WithMessage("failed to create gateway request").Mark(ierr.ErrSystem)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")
	if idempotencyKey != "" {
		req.Header.Set(HeaderIdempotencyKey, idempotencyKey)
	}

	resp, err := c.base.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return ierr.WithError(err).
			WithMessage("failed to read gateway response").
			WithHint("No pudimos comunicarnos con el procesador de pagos. Intentá de nuevo en unos minutos.").
			Mark(ierr.ErrGateway)
	}

	if resp.StatusCode == http.StatusNotFound {
		return ierr.NewError(fmt.Sprintf("gateway resource %s not found", path)).
			WithHint("No encontramos la suscripción en el procesador de pagos.").
			Mark(ierr.ErrNotFound)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// the gateway message goes to the internal error text only
		var apiErr apiError
		_ = json.Unmarshal(respBody, &apiErr)
		return ierr.NewError(fmt.Sprintf("gateway rejected %s %s with %d: %s", method, path, resp.StatusCode, apiErr.Message)).
			WithHint("El procesador de pagos rechazó la operación. Intentá de nuevo en unos minutos.").
			Mark(ierr.ErrGateway)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return ierr.WithError(err).
			WithMessage("failed to decode gateway response").
			WithHint("No pudimos comunicarnos con el procesador de pagos. Intentá de nuevo en unos minutos.").
			Mark(ierr.ErrGateway)
	}
	return nil
}
