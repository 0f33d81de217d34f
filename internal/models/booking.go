package models

import (
	"time"

	"github.com/uptrace/bun"
)

// PaymentStatusCompleted marks a payment attempt the gateway verified.
const PaymentStatusCompleted = "Completed"

type Booking struct {
	bun.BaseModel `bun:"table:bookings,alias:b"`

	BookingID    string       `bun:"booking_id,pk" json:"booking_id"`
	TripID       string       `bun:"trip_id,notnull" json:"trip_id"`
	UserID       string       `bun:"user_id,notnull" json:"user_id"`
	IsRoundTrip  bool         `bun:"is_round_trip" json:"isRoundTrip"`
	ReturnTripID string       `bun:"return_trip_id,nullzero" json:"returnTrip_id,omitempty"`
	Snapshot     TripSnapshot `bun:"embed:trip_" json:"snapshot"`
	CreatedAt    time.Time    `bun:"created_at,notnull" json:"created_at"`

	Payments   []PaymentAttempt `bun:"rel:has-many,join:booking_id=booking_id" json:"payments"`
	Trip       *Trip            `bun:"rel:belongs-to,join:trip_id=trip_id" json:"-"`
	ReturnTrip *Trip            `bun:"rel:belongs-to,join:return_trip_id=trip_id" json:"-"`
	User       *User            `bun:"rel:belongs-to,join:user_id=user_id" json:"-"`
}

type PaymentAttempt struct {
	bun.BaseModel `bun:"table:payment_attempts,alias:pa"`

	PaymentID        string    `bun:"payment_id,pk" json:"-"`
	BookingID        string    `bun:"booking_id,notnull" json:"-"`
	Amount           float64   `bun:"amount,notnull" json:"amount"`
	PaymentReference string    `bun:"payment_reference,notnull,unique" json:"paymentReference"`
	PaymentStatus    string    `bun:"payment_status,notnull" json:"paymentStatus"`
	PaymentDate      time.Time `bun:"payment_date,notnull" json:"paymentDate"`
}

// BookedTrip is a booking as returned to its owner, with the outbound and
// return trip references expanded to full trip records.
type BookedTrip struct {
	BookingID   string           `json:"booking_id"`
	Trip        *Trip            `json:"trip_id"`
	ReturnTrip  *Trip            `json:"returnTrip_id"`
	UserID      string           `json:"user_id"`
	IsRoundTrip bool             `json:"isRoundTrip"`
	Snapshot    TripSnapshot     `json:"snapshot"`
	Payments    []PaymentAttempt `json:"payments"`
	CreatedAt   time.Time        `json:"created_at"`
}

func (b *Booking) Expanded() BookedTrip {
	payments := b.Payments
	if payments == nil {
		payments = []PaymentAttempt{}
	}
	return BookedTrip{
		BookingID:   b.BookingID,
		Trip:        b.Trip,
		ReturnTrip:  b.ReturnTrip,
		UserID:      b.UserID,
		IsRoundTrip: b.IsRoundTrip,
		Snapshot:    b.Snapshot,
		Payments:    payments,
		CreatedAt:   b.CreatedAt,
	}
}

// BookingConfirmation is the payload returned after a paid booking is stored.
type BookingConfirmation struct {
	*Booking
	Trip       TripSnapshot  `json:"trip"`
	ReturnTrip *TripSnapshot `json:"returnTrip"`
	User       *UserSummary  `json:"user"`
}

type InitiateBookingRequest struct {
	TripID       string `json:"trip_id"`
	UserID       string `json:"user_id"`
	IsRoundTrip  *bool  `json:"isRoundTrip"`
	ReturnTripID string `json:"returnTrip_id,omitempty"`
}

type ConfirmBookingRequest struct {
	Reference    string `json:"reference"`
	TripID       string `json:"trip_id"`
	UserID       string `json:"user_id"`
	IsRoundTrip  *bool  `json:"isRoundTrip"`
	ReturnTripID string `json:"returnTrip_id"`
}

type PaymentLink struct {
	Reference        string `json:"reference"`
	AuthorizationURL string `json:"authorization_url"`
}

type PaymentInitiation struct {
	Payment PaymentLink `json:"payment"`
	Amount  float64     `json:"amount"`
}
