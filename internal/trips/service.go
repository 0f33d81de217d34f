package trips

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"ms-booking/internal/domain"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/utils"
)

type DBLayer interface {
	CreateTrip(ctx context.Context, trip *models.Trip) error
	ListTrips(ctx context.Context) ([]models.Trip, error)
	FindTrips(ctx context.Context, filter models.TripFilter) ([]models.Trip, error)
}

type UserLookup interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, topic, key string, value []byte) error
}

// TripService manages the trip catalogue that bookings draw seats from.
type TripService struct {
	DB     DBLayer
	Users  UserLookup
	Logger *logger.Logger

	Events       EventPublisher
	CreatedTopic string
}

func NewTripService(db DBLayer, users UserLookup, log *logger.Logger) *TripService {
	return &TripService{DB: db, Users: users, Logger: log}
}

func (s *TripService) CreateTrip(ctx context.Context, req models.CreateTripRequest) (*models.Trip, error) {
	if req.UserID == "" {
		return nil, domain.InvalidRequest("User ID is required to create a trip")
	}
	if _, err := s.Users.GetUserByID(ctx, req.UserID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound("User not found")
		}
		return nil, domain.Internal("failed to load trip owner", err)
	}

	trip := &models.Trip{
		Destination:    strings.TrimSpace(req.Destination),
		Departure:      strings.TrimSpace(req.Departure),
		Terminal:       strings.TrimSpace(req.Terminal),
		Date:           req.Date,
		Time:           req.Time,
		NumberOfSeats:  req.NumberOfSeats,
		SeatsLeft:      req.NumberOfSeats,
		VehicleType:    req.VehicleType,
		Price:          req.Price,
		RoundTrip:      req.RoundTrip,
		ShowReturnDate: req.ShowReturnDate,
		ReturnDate:     req.ReturnDate,
		UserID:         req.UserID,
	}
	if err := utils.Validate(trip); err != nil {
		return nil, domain.InvalidRequest(err.Error())
	}

	if err := s.DB.CreateTrip(ctx, trip); err != nil {
		return nil, domain.Internal("failed to create trip", err)
	}

	s.Logger.Info("TRIP", fmt.Sprintf("Trip %s created: %s -> %s on %s %s (%d seats)",
		trip.TripID, trip.Departure, trip.Destination, trip.Date, trip.Time, trip.NumberOfSeats))
	s.publishCreated(ctx, trip)
	return trip, nil
}

func (s *TripService) AllTrips(ctx context.Context) ([]models.Trip, error) {
	trips, err := s.DB.ListTrips(ctx)
	if err != nil {
		return nil, domain.Internal("failed to list trips", err)
	}
	return trips, nil
}

// FindTrips returns trips matching every non-empty filter field. An empty
// result is reported as NotFound.
func (s *TripService) FindTrips(ctx context.Context, filter models.TripFilter) ([]models.Trip, error) {
	trips, err := s.DB.FindTrips(ctx, filter)
	if err != nil {
		return nil, domain.Internal("failed to search trips", err)
	}
	if len(trips) == 0 {
		return nil, domain.NotFound("Trips not available for the specified criteria.")
	}
	return trips, nil
}

func (s *TripService) publishCreated(ctx context.Context, trip *models.Trip) {
	if s.Events == nil || s.CreatedTopic == "" {
		return
	}
	value, err := json.Marshal(models.BookingEvent{
		Type:      "trip.created",
		TripID:    trip.TripID,
		UserID:    trip.UserID,
		Amount:    trip.Price,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		s.Logger.Error("KAFKA", fmt.Sprintf("Failed to encode trip.created event: %v", err))
		return
	}
	if err := s.Events.Publish(ctx, s.CreatedTopic, trip.TripID, value); err != nil {
		s.Logger.Error("KAFKA", fmt.Sprintf("Kafka publish error (trip.created): %v", err))
	}
}
