package funding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// DefaultPaystackBaseURL is the production Paystack API endpoint.
const DefaultPaystackBaseURL = "https://api.paystack.co"

// PaystackProvider talks to the Paystack REST API.
type PaystackProvider struct {
	client    *http.Client
	baseURL   string
	secretKey string
}

// NewPaystackProvider constructs a Paystack connector.
func NewPaystackProvider(baseURL, secretKey string) *PaystackProvider {
	if baseURL == "" {
		baseURL = DefaultPaystackBaseURL
	}
	return &PaystackProvider{
		client:    &http.Client{Timeout: 15 * time.Second},
		baseURL:   baseURL,
		secretKey: secretKey,
	}
}

// Paystack wraps every response in a status/message/data envelope.
type paystackEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type paystackCheckout struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type paystackCharge struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Channel   string `json:"channel"`
	PaidAt    string `json:"paid_at"`
}

// Initialize opens a hosted checkout session for the given reference.
func (p *PaystackProvider) Initialize(ctx context.Context, input InitializeInput) (Checkout, error) {
	payload := map[string]any{
		"email":     input.Email,
		"amount":    input.Amount,
		"reference": input.Reference,
		"currency":  "NGN",
	}
	if input.CallbackURL != "" {
		payload["callback_url"] = input.CallbackURL
	}

	var data paystackCheckout
	if err := p.do(ctx, http.MethodPost, "/transaction/initialize", payload, &data); err != nil {
		return Checkout{}, err
	}
	return Checkout{
		AuthorizationURL: data.AuthorizationURL,
		AccessCode:       data.AccessCode,
		Reference:        data.Reference,
	}, nil
}

// Verify fetches the provider's record of a charge. It never mutates local
// state; only the webhook path credits wallets.
func (p *PaystackProvider) Verify(ctx context.Context, reference string) (Charge, error) {
	var data paystackCharge
	if err := p.do(ctx, http.MethodGet, "/transaction/verify/"+reference, nil, &data); err != nil {
		return Charge{}, err
	}
	return Charge{
		Reference: data.Reference,
		Status:    data.Status,
		Amount:    data.Amount,
		Currency:  data.Currency,
		Channel:   data.Channel,
		PaidAt:    data.PaidAt,
	}, nil
}

func (p *PaystackProvider) do(ctx context.Context, method, path string, payload any, out any) error {
	var body *bytes.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(encoded)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+p.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("paystack request: %w", err)
	}
	defer resp.Body.Close()

	var envelope paystackEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode paystack response: %w", err)
	}
	if !envelope.Status {
		if envelope.Message == "" {
			envelope.Message = resp.Status
		}
		return fmt.Errorf("paystack: %s", envelope.Message)
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("decode paystack data: %w", err)
		}
	}
	return nil
}
