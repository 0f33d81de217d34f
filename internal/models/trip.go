package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	VehicleBus          = "Bus"
	VehicleLuxuriousBus = "Luxurious Bus"
	VehicleTravel       = "Travel"
)

// VehicleTypes is the fixed set of vehicle categories a trip may use.
var VehicleTypes = []string{VehicleBus, VehicleLuxuriousBus, VehicleTravel}

func IsVehicleType(v string) bool {
	for _, t := range VehicleTypes {
		if t == v {
			return true
		}
	}
	return false
}

type Trip struct {
	bun.BaseModel `bun:"table:trips,alias:t"`

	TripID         string     `bun:"trip_id,pk" json:"trip_id"`
	Destination    string     `bun:"destination,notnull" json:"destination" validate:"required"`
	Departure      string     `bun:"departure,notnull" json:"departure" validate:"required"`
	Terminal       string     `bun:"terminal,notnull" json:"terminal" validate:"required"`
	Date           string     `bun:"date,notnull" json:"date" validate:"required"`
	Time           string     `bun:"time,notnull" json:"time" validate:"required"`
	NumberOfSeats  int        `bun:"number_of_seats,notnull" json:"numberOfSeats" validate:"gt=0"`
	SeatsLeft      int        `bun:"seats_left,notnull" json:"seatsLeft" validate:"gte=0,ltefield=NumberOfSeats"`
	VehicleType    string     `bun:"vehicle_type,notnull" json:"vehicleType" validate:"required,vehicletype"`
	Price          float64    `bun:"price,notnull" json:"price" validate:"gte=0"`
	RoundTrip      bool       `bun:"round_trip" json:"roundTrip"`
	ShowReturnDate bool       `bun:"show_return_date" json:"showReturnDate"`
	ReturnDate     *time.Time `bun:"return_date,nullzero" json:"returnDate,omitempty"`
	UserID         string     `bun:"user_id,notnull" json:"user_id" validate:"required"`
	CreatedAt      time.Time  `bun:"created_at,notnull" json:"created_at"`
}

// TripSnapshot is the copy of trip attributes frozen onto a booking.
type TripSnapshot struct {
	Destination string  `bun:"destination" json:"destination"`
	Departure   string  `bun:"departure" json:"departure"`
	Terminal    string  `bun:"terminal" json:"terminal"`
	Time        string  `bun:"time" json:"time"`
	Price       float64 `bun:"price" json:"price"`
}

func (t *Trip) Snapshot() TripSnapshot {
	return TripSnapshot{
		Destination: t.Destination,
		Departure:   t.Departure,
		Terminal:    t.Terminal,
		Time:        t.Time,
		Price:       t.Price,
	}
}

// TripFilter narrows a trip search. Empty fields are ignored.
type TripFilter struct {
	Date        string `json:"date"`
	Departure   string `json:"departure"`
	Destination string `json:"destination"`
}

func (f TripFilter) IsEmpty() bool {
	return f.Date == "" && f.Departure == "" && f.Destination == ""
}

type CreateTripRequest struct {
	Destination    string     `json:"destination"`
	Departure      string     `json:"departure"`
	Terminal       string     `json:"terminal"`
	Date           string     `json:"date"`
	Time           string     `json:"time"`
	NumberOfSeats  int        `json:"numberOfSeats"`
	VehicleType    string     `json:"vehicleType"`
	Price          float64    `json:"price"`
	RoundTrip      bool       `json:"roundTrip"`
	ShowReturnDate bool       `json:"showReturnDate"`
	ReturnDate     *time.Time `json:"returnDate,omitempty"`
	UserID         string     `json:"user_id"`
}
