package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v82"

	"ms-booking/internal/logger"
)

var ErrStripeClientInitFailed = errors.New("failed to initialize Stripe client")

// StripeCheckout settles bookings through hosted Stripe Checkout sessions.
// The session id is the gateway reference.
type StripeCheckout struct {
	client     *stripe.Client
	successURL string
	currency   string
	logger     *logger.Logger
}

func NewStripeCheckout(secretKey, successURL, currency string, log *logger.Logger) (*StripeCheckout, error) {
	if secretKey == "" {
		log.Error("STRIPE", "STRIPE_SECRET_KEY is not set")
		return nil, ErrStripeClientInitFailed
	}
	return newStripeCheckout(stripe.NewClient(secretKey), successURL, currency, log), nil
}

func newStripeCheckout(sc *stripe.Client, successURL, currency string, log *logger.Logger) *StripeCheckout {
	return &StripeCheckout{
		client:     sc,
		successURL: successURL,
		currency:   strings.ToLower(currency),
		logger:     log,
	}
}

func (s *StripeCheckout) Name() string { return "stripe" }

func (s *StripeCheckout) InitiatePayment(ctx context.Context, req InitRequest) (*Initialization, error) {
	params := &stripe.CheckoutSessionCreateParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(s.successURL),
		CustomerEmail:     stripe.String(req.Email),
		ClientReferenceID: stripe.String(req.Reference),
		LineItems: []*stripe.CheckoutSessionCreateLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionCreateLineItemPriceDataParams{
					Currency:   stripe.String(s.currency),
					UnitAmount: stripe.Int64(req.AmountMinor),
					ProductData: &stripe.CheckoutSessionCreateLineItemPriceDataProductDataParams{
						Name: stripe.String("Trip booking " + req.Reference),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		Metadata: req.Metadata,
	}

	session, err := s.client.V1CheckoutSessions.Create(ctx, params)
	if err != nil {
		s.logger.Error("STRIPE", fmt.Sprintf("Checkout session create failed for %s: %v", req.Reference, err))
		return nil, classifyStripeError(err)
	}

	s.logger.LogPayment("INITIALIZE", session.ID, "checkout session created")
	return &Initialization{
		Reference:        session.ID,
		AuthorizationURL: session.URL,
	}, nil
}

func (s *StripeCheckout) VerifyPayment(ctx context.Context, reference string) (*Verification, error) {
	session, err := s.client.V1CheckoutSessions.Retrieve(ctx, reference, &stripe.CheckoutSessionRetrieveParams{})
	if err != nil {
		s.logger.Error("STRIPE", fmt.Sprintf("Checkout session retrieve failed for %s: %v", reference, err))
		return nil, classifyStripeError(err)
	}

	status := checkoutStatus(session)
	s.logger.LogPayment("VERIFY", reference, fmt.Sprintf("status=%s amount=%d", status, session.AmountTotal))
	return &Verification{
		Reference:   reference,
		Status:      status,
		AmountMinor: session.AmountTotal,
		Currency:    string(session.Currency),
	}, nil
}

// checkoutStatus maps a session onto the gateway-neutral verification status.
func checkoutStatus(session *stripe.CheckoutSession) string {
	switch {
	case session.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid:
		return StatusSuccess
	case session.Status == stripe.CheckoutSessionStatusExpired:
		return "expired"
	case session.PaymentStatus == stripe.CheckoutSessionPaymentStatusUnpaid:
		return "pending"
	default:
		return string(session.PaymentStatus)
	}
}

// classifyStripeError separates request errors from transport or server failures.
func classifyStripeError(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode >= 400 && !transientStatus(stripeErr.HTTPStatusCode) {
		return fmt.Errorf("%w: %s", ErrGatewayRejected, stripeErr.Msg)
	}
	return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
}
