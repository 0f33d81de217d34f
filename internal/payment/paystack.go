package payment

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

	"ms-booking/internal/logger"
)

type Paystack struct {
	secretKey   string
	baseURL     string
	callbackURL string
	currency    string
	client      *http.Client
	logger      *logger.Logger
}

func NewPaystack(secretKey, baseURL, callbackURL, currency string, timeout time.Duration, log *logger.Logger) *Paystack {
	return &Paystack{
		secretKey:   secretKey,
		baseURL:     strings.TrimRight(baseURL, "/"),
		callbackURL: callbackURL,
		currency:    currency,
		client:      &http.Client{Timeout: timeout},
		logger:      log,
	}
}

func (p *Paystack) Name() string { return "paystack" }

type paystackEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type paystackInitData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type paystackVerifyData struct {
	Status    string `json:"status"`
	Reference string `json:"reference"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
}

// InitiatePayment → POST /transaction/initialize
func (p *Paystack) InitiatePayment(ctx context.Context, req InitRequest) (*Initialization, error) {
	body := map[string]interface{}{
		"email":  req.Email,
		"amount": req.AmountMinor,
	}
	if req.Reference != "" {
		body["reference"] = req.Reference
	}
	if p.callbackURL != "" {
		body["callback_url"] = p.callbackURL
	}
	if p.currency != "" {
		body["currency"] = p.currency
	}
	if len(req.Metadata) > 0 {
		body["metadata"] = req.Metadata
	}

	var data paystackInitData
	if err := p.do(ctx, http.MethodPost, "/transaction/initialize", body, &data); err != nil {
		return nil, err
	}

	p.logger.LogPayment("INITIALIZE", data.Reference, "transaction initialized")
	return &Initialization{
		Reference:        data.Reference,
		AuthorizationURL: data.AuthorizationURL,
	}, nil
}

// VerifyPayment → GET /transaction/verify/{reference}
func (p *Paystack) VerifyPayment(ctx context.Context, reference string) (*Verification, error) {
	var data paystackVerifyData
	path := "/transaction/verify/" + url.PathEscape(reference)
	if err := p.do(ctx, http.MethodGet, path, nil, &data); err != nil {
		return nil, err
	}

	p.logger.LogPayment("VERIFY", reference, fmt.Sprintf("status=%s amount=%d", data.Status, data.Amount))
	return &Verification{
		Reference:   reference,
		Status:      data.Status,
		AmountMinor: data.Amount,
		Currency:    data.Currency,
	}, nil
}

func (p *Paystack) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+p.secretKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Error("PAYMENT", fmt.Sprintf("Paystack %s %s failed: %v", method, path, err))
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrGatewayUnavailable, err)
	}

	var envelope paystackEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("%w: status %d: malformed response", ErrGatewayUnavailable, resp.StatusCode)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !envelope.Status {
		p.logger.Warn("PAYMENT", fmt.Sprintf("Paystack %s %s returned %d: %s", method, path, resp.StatusCode, envelope.Message))
		if transientStatus(resp.StatusCode) {
			return fmt.Errorf("%w: status %d: %s", ErrGatewayUnavailable, resp.StatusCode, envelope.Message)
		}
		return fmt.Errorf("%w: status %d: %s", ErrGatewayRejected, resp.StatusCode, envelope.Message)
	}

	return json.Unmarshal(envelope.Data, out)
}
