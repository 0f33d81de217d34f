// Package payment wraps the external payment gateways used to settle bookings.
package payment

import (
	"context"
	"errors"
	"net/http"
)

// StatusSuccess is the verification status of a settled payment.
const StatusSuccess = "success"

var (
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrGatewayRejected    = errors.New("payment gateway rejected the request")
)

// transientStatus reports gateway HTTP statuses that may succeed on retry.
// Rate limits and timeouts are not a verdict on the payment.
func transientStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout, http.StatusConflict, http.StatusTooManyRequests:
		return true
	}
	return code >= 500
}

type InitRequest struct {
	Email       string
	AmountMinor int64
	Reference   string
	Metadata    map[string]string
}

type Initialization struct {
	Reference        string
	AuthorizationURL string
}

type Verification struct {
	Reference   string
	Status      string
	AmountMinor int64
	Currency    string
}

func (v *Verification) Succeeded() bool {
	return v != nil && v.Status == StatusSuccess
}

// Settled reports whether the transaction reached a final status.
func (v *Verification) Settled() bool {
	if v == nil {
		return false
	}
	switch v.Status {
	case StatusSuccess, "failed", "reversed", "expired":
		return true
	}
	return false
}

// Gateway creates a pending transaction and later checks its status once.
type Gateway interface {
	Name() string
	InitiatePayment(ctx context.Context, req InitRequest) (*Initialization, error)
	VerifyPayment(ctx context.Context, reference string) (*Verification, error)
}
