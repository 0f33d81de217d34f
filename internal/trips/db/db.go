package db

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"ms-booking/internal/domain"
	"ms-booking/internal/models"
	"ms-booking/internal/utils"
)

type DB struct {
	Bun *bun.DB
}

// CreateTrip → validate and insert a new trip. The id is generated when empty
// and seatsLeft always starts at numberOfSeats.
func (d *DB) CreateTrip(ctx context.Context, trip *models.Trip) error {
	if trip.TripID == "" {
		trip.TripID = utils.GenerateTripID()
	}
	if trip.CreatedAt.IsZero() {
		trip.CreatedAt = time.Now().UTC()
	}
	trip.SeatsLeft = trip.NumberOfSeats

	if err := utils.Validate(trip); err != nil {
		return fmt.Errorf("invalid trip: %w", err)
	}

	_, err := d.Bun.NewInsert().Model(trip).Exec(ctx)
	return err
}

// GetTripByID → fetch one trip; sql.ErrNoRows when absent
func (d *DB) GetTripByID(ctx context.Context, id string) (*models.Trip, error) {
	var trip models.Trip
	err := d.Bun.NewSelect().
		Model(&trip).
		Where("trip_id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &trip, nil
}

// ListTrips → every trip, soonest first
func (d *DB) ListTrips(ctx context.Context) ([]models.Trip, error) {
	trips := []models.Trip{}
	err := d.Bun.NewSelect().
		Model(&trips).
		Order("date ASC", "time ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return trips, nil
}

// FindTrips → trips matching every non-empty filter field
func (d *DB) FindTrips(ctx context.Context, filter models.TripFilter) ([]models.Trip, error) {
	trips := []models.Trip{}
	q := d.Bun.NewSelect().Model(&trips)
	if filter.Date != "" {
		q = q.Where("? = ?", bun.Ident("date"), filter.Date)
	}
	if filter.Departure != "" {
		q = q.Where("departure = ?", filter.Departure)
	}
	if filter.Destination != "" {
		q = q.Where("destination = ?", filter.Destination)
	}
	if err := q.Order("date ASC", "time ASC").Scan(ctx); err != nil {
		return nil, err
	}
	return trips, nil
}

// UpdateTrip → persist editable trip fields. Seat counters are excluded and
// only change through DecrementSeatsLeft.
func (d *DB) UpdateTrip(ctx context.Context, trip *models.Trip) error {
	_, err := d.Bun.NewUpdate().
		Model(trip).
		Column("destination", "departure", "terminal", "date", "time", "vehicle_type",
			"price", "round_trip", "show_return_date", "return_date").
		Where("trip_id = ?", trip.TripID).
		Exec(ctx)
	return err
}

// DecrementSeatsLeft takes one seat from the trip in a single conditional
// update. It returns domain.ErrNoSeatsLeft when the trip is full or missing.
func (d *DB) DecrementSeatsLeft(ctx context.Context, tripID string) error {
	return DecrementSeatsLeft(ctx, d.Bun, tripID)
}

// DecrementSeatsLeft runs against any bun.IDB so callers can include it in
// their own transaction.
func DecrementSeatsLeft(ctx context.Context, idb bun.IDB, tripID string) error {
	res, err := idb.NewUpdate().
		Model((*models.Trip)(nil)).
		Set("seats_left = seats_left - 1").
		Where("trip_id = ?", tripID).
		Where("seats_left > 0").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("decrement seats for trip %s: %w", tripID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNoSeatsLeft
	}
	return nil
}
