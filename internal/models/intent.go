package models

import (
	"time"

	"github.com/uptrace/bun"
)

type IntentStatus string

const (
	IntentInitiated      IntentStatus = "Initiated"
	IntentPaymentPending IntentStatus = "PaymentPending"
	IntentConfirmed      IntentStatus = "Confirmed"
	IntentFailed         IntentStatus = "Failed"
	IntentAbandoned      IntentStatus = "Abandoned"
)

// BookingIntent records a booking between payment initialization and
// confirmation. No seat is held by an intent.
type BookingIntent struct {
	bun.BaseModel `bun:"table:booking_intents,alias:bi"`

	IntentID         string       `bun:"intent_id,pk" json:"intent_id"`
	GatewayReference string       `bun:"gateway_reference,nullzero,unique" json:"reference,omitempty"`
	TripID           string       `bun:"trip_id,notnull" json:"trip_id"`
	UserID           string       `bun:"user_id,notnull" json:"user_id"`
	IsRoundTrip      bool         `bun:"is_round_trip" json:"isRoundTrip"`
	ReturnTripID     string       `bun:"return_trip_id,nullzero" json:"returnTrip_id,omitempty"`
	Amount           float64      `bun:"amount,notnull" json:"amount"`
	Provider         string       `bun:"provider,notnull" json:"provider"`
	AuthorizationURL string       `bun:"authorization_url,nullzero" json:"authorization_url,omitempty"`
	Status           IntentStatus `bun:"status,notnull" json:"status"`
	CreatedAt        time.Time    `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt        time.Time    `bun:"updated_at,notnull" json:"updated_at"`
}

// BoardingPass is the payload sealed into a ticket QR code.
type BoardingPass struct {
	BookingID   string    `json:"booking_id"`
	Reference   string    `json:"reference"`
	TripID      string    `json:"trip_id"`
	UserID      string    `json:"user_id"`
	Destination string    `json:"destination"`
	Departure   string    `json:"departure"`
	Terminal    string    `json:"terminal"`
	Time        string    `json:"time"`
	IsRoundTrip bool      `json:"isRoundTrip"`
	IssuedAt    time.Time `json:"issued_at"`
}

// BookingEvent is published for every booking and trip lifecycle change.
type BookingEvent struct {
	Type      string    `json:"type"`
	Reference string    `json:"reference,omitempty"`
	BookingID string    `json:"booking_id,omitempty"`
	TripID    string    `json:"trip_id"`
	UserID    string    `json:"user_id"`
	Amount    float64   `json:"amount,omitempty"`
	Status    string    `json:"status,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
