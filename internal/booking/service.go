package booking

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ms-booking/internal/config"
	"ms-booking/internal/domain"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/payment"
	"ms-booking/internal/utils"
)

const duplicateReferenceMessage = "A booking with this payment reference already exists. Please check your payment reference and try again."

type TripStore interface {
	GetTripByID(ctx context.Context, id string) (*models.Trip, error)
}

type UserStore interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

type BookingStore interface {
	ConfirmBooking(ctx context.Context, booking *models.Booking, intentID string) error
	GetBookingsByUserID(ctx context.Context, userID string) ([]models.Booking, error)
	GetBookingByReference(ctx context.Context, reference string) (*models.Booking, error)
	CreateIntent(ctx context.Context, intent *models.BookingIntent) error
	GetIntentByReference(ctx context.Context, reference string) (*models.BookingIntent, error)
	MarkIntentPending(ctx context.Context, intentID, reference, authorizationURL string) (bool, error)
	TransitionIntent(ctx context.Context, intentID string, to models.IntentStatus, from ...models.IntentStatus) (bool, error)
	ListStaleIntents(ctx context.Context, before time.Time) ([]models.BookingIntent, error)
}

type PaymentHold interface {
	PlaceHold(ctx context.Context, reference, tripID string) (bool, error)
	ReleaseHold(ctx context.Context, reference string) error
}

type EventPublisher interface {
	Publish(ctx context.Context, topic, key string, value []byte) error
}

// Publishers sends every event to each sink in turn.
type Publishers []EventPublisher

func (p Publishers) Publish(ctx context.Context, topic, key string, value []byte) error {
	var errs []error
	for _, pub := range p {
		if err := pub.Publish(ctx, topic, key, value); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type TicketEncoder interface {
	GenerateEncryptedQR(pass models.BoardingPass) ([]byte, error)
}

// BookingService runs the two-phase booking flow: initiate a payment, then
// confirm the booking once the gateway reports the payment as settled.
type BookingService struct {
	Trips    TripStore
	Users    UserStore
	Bookings BookingStore
	Gateway  payment.Gateway
	Logger   *logger.Logger

	// Optional collaborators; nil disables them.
	Holds   PaymentHold
	Events  EventPublisher
	Tickets TicketEncoder
	Topics  config.TopicConfig
}

func NewBookingService(trips TripStore, users UserStore, bookings BookingStore, gateway payment.Gateway, log *logger.Logger) *BookingService {
	return &BookingService{
		Trips:    trips,
		Users:    users,
		Bookings: bookings,
		Gateway:  gateway,
		Logger:   log,
	}
}

// BookingAmount is the nominal price of a booking. Round trips cost double.
func BookingAmount(price float64, isRoundTrip bool) float64 {
	if isRoundTrip {
		return price * 2
	}
	return price
}

func (s *BookingService) InitiateBooking(ctx context.Context, req models.InitiateBookingRequest) (*models.PaymentInitiation, error) {
	if req.TripID == "" || req.UserID == "" || req.IsRoundTrip == nil {
		return nil, domain.InvalidRequest("Trip ID, User ID, and isRoundTrip are required")
	}
	isRoundTrip := *req.IsRoundTrip

	trip, err := s.loadTrip(ctx, req.TripID, "Trip not found")
	if err != nil {
		return nil, err
	}
	user, err := s.loadUser(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if trip.SeatsLeft < 1 {
		return nil, domain.CapacityExceeded("Not enough seats available for the outbound trip")
	}

	amount := BookingAmount(trip.Price, isRoundTrip)
	intent := &models.BookingIntent{
		IntentID:    utils.GenerateReference(),
		TripID:      trip.TripID,
		UserID:      user.UserID,
		IsRoundTrip: isRoundTrip,
		Amount:      amount,
		Provider:    s.Gateway.Name(),
		Status:      models.IntentInitiated,
	}
	if isRoundTrip {
		intent.ReturnTripID = req.ReturnTripID
	}
	if err := s.Bookings.CreateIntent(ctx, intent); err != nil {
		return nil, domain.Internal("failed to record booking intent", err)
	}

	init, err := s.Gateway.InitiatePayment(ctx, payment.InitRequest{
		Email:       user.Email,
		AmountMinor: utils.ToMinorUnits(amount),
		Reference:   intent.IntentID,
		Metadata: map[string]string{
			"trip_id": trip.TripID,
			"user_id": user.UserID,
		},
	})
	if err != nil {
		s.Logger.Error("BOOKING", fmt.Sprintf("Payment initialization failed for intent %s: %v", intent.IntentID, err))
		if _, terr := s.Bookings.TransitionIntent(ctx, intent.IntentID, models.IntentFailed, models.IntentInitiated); terr != nil {
			s.Logger.Error("BOOKING", fmt.Sprintf("Failed to mark intent %s failed: %v", intent.IntentID, terr))
		}
		return nil, domain.UpstreamGateway("Payment initialization failed", err)
	}

	if _, err := s.Bookings.MarkIntentPending(ctx, intent.IntentID, init.Reference, init.AuthorizationURL); err != nil {
		return nil, domain.Internal("failed to update booking intent", err)
	}

	if s.Holds != nil {
		if _, err := s.Holds.PlaceHold(ctx, init.Reference, trip.TripID); err != nil {
			s.Logger.Warn("BOOKING", fmt.Sprintf("Failed to place payment hold for %s: %v", init.Reference, err))
		}
	}
	s.publish(ctx, s.Topics.BookingInitiated, models.BookingEvent{
		Type:      "booking.initiated",
		Reference: init.Reference,
		TripID:    trip.TripID,
		UserID:    user.UserID,
		Amount:    amount,
		Status:    string(models.IntentPaymentPending),
	})

	s.Logger.LogBooking("INITIATE", init.Reference, fmt.Sprintf("trip=%s user=%s amount=%.2f", trip.TripID, user.UserID, amount))
	return &models.PaymentInitiation{
		Payment: models.PaymentLink{
			Reference:        init.Reference,
			AuthorizationURL: init.AuthorizationURL,
		},
		Amount: amount,
	}, nil
}

func (s *BookingService) ConfirmBooking(ctx context.Context, req models.ConfirmBookingRequest) (*models.BookingConfirmation, error) {
	if req.Reference == "" || req.TripID == "" || req.UserID == "" || req.IsRoundTrip == nil {
		return nil, domain.InvalidRequest("Reference, Trip ID, User ID, and isRoundTrip are required")
	}
	isRoundTrip := *req.IsRoundTrip

	intent, err := s.Bookings.GetIntentByReference(ctx, req.Reference)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, domain.Internal("failed to load booking intent", err)
	}
	if intent != nil && (intent.TripID != req.TripID || intent.UserID != req.UserID) {
		return nil, domain.InvalidRequest("Booking details do not match the payment reference")
	}

	verification, err := s.Gateway.VerifyPayment(ctx, req.Reference)
	if err != nil {
		if errors.Is(err, payment.ErrGatewayRejected) {
			s.failIntent(ctx, intent)
			return nil, domain.PaymentFailed("Payment verification failed")
		}
		return nil, domain.UpstreamGateway("Payment gateway unavailable", err)
	}
	if !verification.Succeeded() {
		s.Logger.LogPayment("VERIFY", req.Reference, fmt.Sprintf("not successful: %s", verification.Status))
		if verification.Settled() {
			s.failIntent(ctx, intent)
		}
		return nil, domain.PaymentFailed("Payment verification failed")
	}

	trip, err := s.loadTrip(ctx, req.TripID, "Trip not found")
	if err != nil {
		return nil, err
	}
	if trip.SeatsLeft < 1 {
		return nil, domain.CapacityExceeded("No seats left")
	}

	amount := BookingAmount(trip.Price, isRoundTrip)
	if verification.AmountMinor > 0 && verification.AmountMinor < utils.ToMinorUnits(amount) {
		s.Logger.LogSecurity("UNDERPAYMENT", fmt.Sprintf("reference=%s paid=%d expected=%d", req.Reference, verification.AmountMinor, utils.ToMinorUnits(amount)))
		return nil, domain.PaymentFailed("Payment amount does not cover the booking")
	}

	user, err := s.loadUser(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	returnTripID := req.ReturnTripID
	if returnTripID == "" && intent != nil {
		returnTripID = intent.ReturnTripID
	}
	var returnTrip *models.TripSnapshot
	if isRoundTrip && returnTripID != "" {
		rt, err := s.loadTrip(ctx, returnTripID, "Return trip not found")
		if err != nil {
			return nil, err
		}
		snap := rt.Snapshot()
		returnTrip = &snap
	}

	now := time.Now().UTC()
	booking := &models.Booking{
		BookingID:   utils.GenerateBookingID(),
		TripID:      trip.TripID,
		UserID:      user.UserID,
		IsRoundTrip: isRoundTrip,
		Snapshot:    trip.Snapshot(),
		CreatedAt:   now,
	}
	if isRoundTrip {
		booking.ReturnTripID = returnTripID
	}
	booking.Payments = []models.PaymentAttempt{{
		PaymentID:        utils.GenerateBookingID(),
		BookingID:        booking.BookingID,
		Amount:           amount,
		PaymentReference: req.Reference,
		PaymentStatus:    models.PaymentStatusCompleted,
		PaymentDate:      now,
	}}

	intentID := ""
	if intent != nil {
		intentID = intent.IntentID
	}
	if err := s.Bookings.ConfirmBooking(ctx, booking, intentID); err != nil {
		switch {
		case errors.Is(err, domain.ErrNoSeatsLeft):
			return nil, domain.CapacityExceeded("No seats left")
		case errors.Is(err, domain.ErrDuplicateReference):
			s.Logger.LogSecurity("DUPLICATE_REFERENCE", req.Reference)
			return nil, domain.DuplicatePaymentReference(duplicateReferenceMessage, err)
		default:
			return nil, domain.Internal("failed to store booking", err)
		}
	}

	if s.Holds != nil {
		if err := s.Holds.ReleaseHold(ctx, req.Reference); err != nil {
			s.Logger.Warn("BOOKING", fmt.Sprintf("Failed to release payment hold for %s: %v", req.Reference, err))
		}
	}
	s.publish(ctx, s.Topics.BookingConfirmed, models.BookingEvent{
		Type:      "booking.confirmed",
		Reference: req.Reference,
		BookingID: booking.BookingID,
		TripID:    trip.TripID,
		UserID:    user.UserID,
		Amount:    amount,
		Status:    string(models.IntentConfirmed),
	})

	s.Logger.LogBooking("CONFIRM", req.Reference, fmt.Sprintf("booking=%s trip=%s", booking.BookingID, trip.TripID))
	return &models.BookingConfirmation{
		Booking:    booking,
		Trip:       booking.Snapshot,
		ReturnTrip: returnTrip,
		User:       user.Summary(),
	}, nil
}

func (s *BookingService) ListBookingsForUser(ctx context.Context, userID string) ([]models.BookedTrip, error) {
	if userID == "" {
		return nil, domain.InvalidRequest("User ID is required")
	}
	bookings, err := s.Bookings.GetBookingsByUserID(ctx, userID)
	if err != nil {
		return nil, domain.Internal("failed to load bookings", err)
	}

	result := make([]models.BookedTrip, 0, len(bookings))
	for i := range bookings {
		result = append(result, bookings[i].Expanded())
	}
	return result, nil
}

// BookingTicketQR renders the encrypted boarding pass of a confirmed booking.
func (s *BookingService) BookingTicketQR(ctx context.Context, reference string) ([]byte, error) {
	if s.Tickets == nil {
		return nil, domain.Internal("ticket generation is not configured", nil)
	}
	if reference == "" {
		return nil, domain.InvalidRequest("Reference is required")
	}

	booking, err := s.Bookings.GetBookingByReference(ctx, reference)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound("Booking not found")
		}
		return nil, domain.Internal("failed to load booking", err)
	}

	png, err := s.Tickets.GenerateEncryptedQR(models.BoardingPass{
		BookingID:   booking.BookingID,
		Reference:   reference,
		TripID:      booking.TripID,
		UserID:      booking.UserID,
		Destination: booking.Snapshot.Destination,
		Departure:   booking.Snapshot.Departure,
		Terminal:    booking.Snapshot.Terminal,
		Time:        booking.Snapshot.Time,
		IsRoundTrip: booking.IsRoundTrip,
		IssuedAt:    time.Now().UTC(),
	})
	if err != nil {
		return nil, domain.Internal("failed to generate ticket", err)
	}
	return png, nil
}

// AbandonBooking marks a pending payment as abandoned once its hold expires.
// Intents in any other state are left alone.
func (s *BookingService) AbandonBooking(ctx context.Context, reference string) error {
	intent, err := s.Bookings.GetIntentByReference(ctx, reference)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.Logger.Warn("BOOKING", fmt.Sprintf("Hold expired for unknown reference %s", reference))
			return nil
		}
		return err
	}
	return s.abandon(ctx, intent)
}

// AbandonStaleIntents abandons pending intents not updated since before.
// It backs up the Redis expiry events, which are not delivered reliably.
func (s *BookingService) AbandonStaleIntents(ctx context.Context, before time.Time) (int, error) {
	intents, err := s.Bookings.ListStaleIntents(ctx, before)
	if err != nil {
		return 0, err
	}
	abandoned := 0
	for i := range intents {
		if err := s.abandon(ctx, &intents[i]); err != nil {
			s.Logger.Error("BOOKING", fmt.Sprintf("Failed to abandon intent %s: %v", intents[i].IntentID, err))
			continue
		}
		abandoned++
	}
	return abandoned, nil
}

func (s *BookingService) abandon(ctx context.Context, intent *models.BookingIntent) error {
	changed, err := s.Bookings.TransitionIntent(ctx, intent.IntentID, models.IntentAbandoned, models.IntentPaymentPending)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	s.publish(ctx, s.Topics.BookingAbandoned, models.BookingEvent{
		Type:      "booking.abandoned",
		Reference: intent.GatewayReference,
		TripID:    intent.TripID,
		UserID:    intent.UserID,
		Amount:    intent.Amount,
		Status:    string(models.IntentAbandoned),
	})
	s.Logger.LogBooking("ABANDON", intent.GatewayReference, "payment hold expired")
	return nil
}

func (s *BookingService) loadTrip(ctx context.Context, id, notFound string) (*models.Trip, error) {
	trip, err := s.Trips.GetTripByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(notFound)
		}
		return nil, domain.Internal(fmt.Sprintf("failed to load trip %s", id), err)
	}
	return trip, nil
}

func (s *BookingService) loadUser(ctx context.Context, id string) (*models.User, error) {
	user, err := s.Users.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound("User not found")
		}
		return nil, domain.Internal(fmt.Sprintf("failed to load user %s", id), err)
	}
	return user, nil
}

func (s *BookingService) failIntent(ctx context.Context, intent *models.BookingIntent) {
	if intent == nil {
		return
	}
	if _, err := s.Bookings.TransitionIntent(ctx, intent.IntentID, models.IntentFailed, models.IntentInitiated, models.IntentPaymentPending); err != nil {
		s.Logger.Error("BOOKING", fmt.Sprintf("Failed to mark intent %s failed: %v", intent.IntentID, err))
	}
}

// publish is best effort; a Kafka outage never fails a booking.
func (s *BookingService) publish(ctx context.Context, topic string, event models.BookingEvent) {
	if s.Events == nil || topic == "" {
		return
	}
	event.Timestamp = time.Now().UTC()
	value, err := json.Marshal(event)
	if err != nil {
		s.Logger.Error("KAFKA", fmt.Sprintf("Failed to encode %s event: %v", event.Type, err))
		return
	}
	key := event.Reference
	if key == "" {
		key = event.TripID
	}
	if err := s.Events.Publish(ctx, topic, key, value); err != nil {
		s.Logger.Error("KAFKA", fmt.Sprintf("Kafka publish error (%s): %v", event.Type, err))
	}
}
