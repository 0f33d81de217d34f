// Command seed loads demo users and trips into a migrated booking database.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"ms-booking/internal/config"
	"ms-booking/internal/database/migrations"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	tripdb "ms-booking/internal/trips/db"
	userdb "ms-booking/internal/users/db"
)

var seedUsers = []models.User{
	{UserID: "user001", FullName: "Alice Okafor", Email: "alice@example.com", Phone: "+2348000000001"},
	{UserID: "user002", FullName: "Bola Adeyemi", Email: "bola@example.com"},
	{UserID: "operator001", FullName: "Jibowu Transport", Email: "ops@example.com"},
}

func seedTrips(date string) []models.Trip {
	return []models.Trip{
		{Departure: "Lagos", Destination: "Abuja", Terminal: "Jibowu", Date: date, Time: "07:00", NumberOfSeats: 14, VehicleType: models.VehicleBus, Price: 25000, UserID: "operator001"},
		{Departure: "Abuja", Destination: "Lagos", Terminal: "Utako", Date: date, Time: "09:30", NumberOfSeats: 14, VehicleType: models.VehicleBus, Price: 25000, UserID: "operator001"},
		{Departure: "Lagos", Destination: "Enugu", Terminal: "Ojota", Date: date, Time: "06:00", NumberOfSeats: 10, VehicleType: models.VehicleLuxuriousBus, Price: 32000, RoundTrip: true, UserID: "operator001"},
		{Departure: "Ibadan", Destination: "Lagos", Terminal: "Iwo Road", Date: date, Time: "12:00", NumberOfSeats: 4, VehicleType: models.VehicleTravel, Price: 8000, UserID: "operator001"},
	}
}

func main() {
	_ = godotenv.Load()
	logger := logger.NewLogger("booking-seed")
	defer logger.Close()

	cfg := config.Load()
	ctx := context.Background()

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Database.DSN)))
	defer sqldb.Close()
	if err := sqldb.PingContext(ctx); err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Failed to connect to database: %v", err))
	}
	db := bun.NewDB(sqldb, pgdialect.New())

	runner := migrations.NewRunner(db, migrations.Options{Dir: cfg.Database.MigrationsDir}, logger)
	if err := runner.RunMigrations(); err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Migration failed: %v", err))
	}
	defer runner.Close()

	users := &userdb.DB{Bun: db}
	for i := range seedUsers {
		if err := users.CreateUser(ctx, &seedUsers[i]); err != nil {
			logger.Warn("SEED", fmt.Sprintf("Skipping user %s: %v", seedUsers[i].UserID, err))
		}
	}

	trips := &tripdb.DB{Bun: db}
	tomorrow := time.Now().AddDate(0, 0, 1).Format("2006-01-02")
	for _, trip := range seedTrips(tomorrow) {
		trip := trip
		if err := trips.CreateTrip(ctx, &trip); err != nil {
			logger.Warn("SEED", fmt.Sprintf("Skipping trip %s -> %s: %v", trip.Departure, trip.Destination, err))
			continue
		}
		logger.Info("SEED", fmt.Sprintf("Created %s: %s -> %s at %s", trip.TripID, trip.Departure, trip.Destination, trip.Time))
	}

	logger.Info("SEED", "✅ Done.")
}
