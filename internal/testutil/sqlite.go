// Package testutil holds fixtures shared by repository and workflow tests.
package testutil

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"ms-booking/internal/models"
)

// NewSQLiteDB opens an in-memory SQLite database with the booking schema.
// A single connection keeps every query on the same in-memory database.
func NewSQLiteDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())

	tables := []interface{}{
		(*models.User)(nil),
		(*models.Trip)(nil),
		(*models.Booking)(nil),
		(*models.PaymentAttempt)(nil),
		(*models.BookingIntent)(nil),
	}
	for _, model := range tables {
		if _, err := bunDB.NewCreateTable().Model(model).Exec(context.Background()); err != nil {
			t.Fatalf("Failed to create table: %v", err)
		}
	}

	t.Cleanup(func() { bunDB.Close() })
	return bunDB
}

func SeedUser(t *testing.T, bunDB *bun.DB, id string) *models.User {
	t.Helper()
	user := &models.User{
		UserID:    id,
		FullName:  "Ada Obi",
		Email:     id + "@example.com",
		CreatedAt: time.Now().UTC(),
	}
	if _, err := bunDB.NewInsert().Model(user).Exec(context.Background()); err != nil {
		t.Fatalf("Failed to seed user: %v", err)
	}
	return user
}

func SeedTrip(t *testing.T, bunDB *bun.DB, id string, seats int, price float64) *models.Trip {
	t.Helper()
	trip := &models.Trip{
		TripID:        id,
		Destination:   "Abuja",
		Departure:     "Lagos",
		Terminal:      "Jibowu",
		Date:          "2024-06-01",
		Time:          "08:00",
		NumberOfSeats: seats,
		SeatsLeft:     seats,
		VehicleType:   models.VehicleBus,
		Price:         price,
		UserID:        "operator-1",
		CreatedAt:     time.Now().UTC(),
	}
	if _, err := bunDB.NewInsert().Model(trip).Exec(context.Background()); err != nil {
		t.Fatalf("Failed to seed trip: %v", err)
	}
	return trip
}

func SeatsLeft(t *testing.T, bunDB *bun.DB, tripID string) int {
	t.Helper()
	var seats int
	err := bunDB.NewSelect().
		Model((*models.Trip)(nil)).
		Column("seats_left").
		Where("trip_id = ?", tripID).
		Scan(context.Background(), &seats)
	if err != nil {
		t.Fatalf("Failed to read seats_left: %v", err)
	}
	return seats
}
