package booking_test

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"ms-booking/internal/models"
	"ms-booking/internal/payment"
)

type MockTripStore struct {
	mock.Mock
}

func (m *MockTripStore) GetTripByID(ctx context.Context, id string) (*models.Trip, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Trip), args.Error(1)
}

type MockUserStore struct {
	mock.Mock
}

func (m *MockUserStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

type MockBookingStore struct {
	mock.Mock
}

func (m *MockBookingStore) ConfirmBooking(ctx context.Context, booking *models.Booking, intentID string) error {
	args := m.Called(ctx, booking, intentID)
	return args.Error(0)
}

func (m *MockBookingStore) GetBookingsByUserID(ctx context.Context, userID string) ([]models.Booking, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Booking), args.Error(1)
}

func (m *MockBookingStore) GetBookingByReference(ctx context.Context, reference string) (*models.Booking, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

func (m *MockBookingStore) CreateIntent(ctx context.Context, intent *models.BookingIntent) error {
	args := m.Called(ctx, intent)
	return args.Error(0)
}

func (m *MockBookingStore) GetIntentByReference(ctx context.Context, reference string) (*models.BookingIntent, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BookingIntent), args.Error(1)
}

func (m *MockBookingStore) MarkIntentPending(ctx context.Context, intentID, reference, authorizationURL string) (bool, error) {
	args := m.Called(ctx, intentID, reference, authorizationURL)
	return args.Bool(0), args.Error(1)
}

func (m *MockBookingStore) TransitionIntent(ctx context.Context, intentID string, to models.IntentStatus, from ...models.IntentStatus) (bool, error) {
	args := m.Called(ctx, intentID, to, from)
	return args.Bool(0), args.Error(1)
}

func (m *MockBookingStore) ListStaleIntents(ctx context.Context, before time.Time) ([]models.BookingIntent, error) {
	args := m.Called(ctx, before)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.BookingIntent), args.Error(1)
}

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) Name() string { return "mock" }

func (m *MockGateway) InitiatePayment(ctx context.Context, req payment.InitRequest) (*payment.Initialization, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Initialization), args.Error(1)
}

func (m *MockGateway) VerifyPayment(ctx context.Context, reference string) (*payment.Verification, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Verification), args.Error(1)
}

type MockHold struct {
	mock.Mock
}

func (m *MockHold) PlaceHold(ctx context.Context, reference, tripID string) (bool, error) {
	args := m.Called(ctx, reference, tripID)
	return args.Bool(0), args.Error(1)
}

func (m *MockHold) ReleaseHold(ctx context.Context, reference string) error {
	args := m.Called(ctx, reference)
	return args.Error(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, topic, key string, value []byte) error {
	args := m.Called(ctx, topic, key, value)
	return args.Error(0)
}
