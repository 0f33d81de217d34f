package utils

import (
	"math"

	"github.com/google/uuid"
)

func GenerateTripID() string {
	return "Trip-" + uuid.NewString()
}

func GenerateBookingID() string {
	return uuid.NewString()
}

// GenerateReference returns the merchant reference sent to the payment gateway.
func GenerateReference() string {
	return "BKG-" + uuid.NewString()
}

// ToMinorUnits converts a nominal price to the gateway's minor currency unit.
func ToMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
