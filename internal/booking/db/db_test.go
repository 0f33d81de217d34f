package db_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"ms-booking/internal/booking/db"
	"ms-booking/internal/domain"
	"ms-booking/internal/models"
	"ms-booking/internal/testutil"
)

func setupTestDB(t *testing.T) (*db.DB, *bun.DB) {
	bunDB := testutil.NewSQLiteDB(t)
	testutil.SeedUser(t, bunDB, "user-1")
	return &db.DB{Bun: bunDB}, bunDB
}

func newBooking(tripID, reference string, amount float64) *models.Booking {
	bookingID := uuid.NewString()
	now := time.Now().UTC()
	return &models.Booking{
		BookingID: bookingID,
		TripID:    tripID,
		UserID:    "user-1",
		Snapshot: models.TripSnapshot{
			Destination: "Abuja",
			Departure:   "Lagos",
			Terminal:    "Jibowu",
			Time:        "08:00",
			Price:       amount,
		},
		CreatedAt: now,
		Payments: []models.PaymentAttempt{{
			PaymentID:        uuid.NewString(),
			Amount:           amount,
			PaymentReference: reference,
			PaymentStatus:    models.PaymentStatusCompleted,
			PaymentDate:      now,
		}},
	}
}

func TestConfirmBookingDecrementsOneSeat(t *testing.T) {
	bookingDB, bunDB := setupTestDB(t)
	ctx := context.Background()
	testutil.SeedTrip(t, bunDB, "Trip-abc", 3, 50)

	err := bookingDB.ConfirmBooking(ctx, newBooking("Trip-abc", "ref-1", 50), "")
	require.NoError(t, err)
	assert.Equal(t, 2, testutil.SeatsLeft(t, bunDB, "Trip-abc"))

	booking, err := bookingDB.GetBookingByReference(ctx, "ref-1")
	require.NoError(t, err)
	assert.Equal(t, "Trip-abc", booking.TripID)
	require.Len(t, booking.Payments, 1)
	assert.Equal(t, models.PaymentStatusCompleted, booking.Payments[0].PaymentStatus)
	assert.Equal(t, "Abuja", booking.Snapshot.Destination)
}

func TestConfirmBookingDuplicateReferenceKeepsSeats(t *testing.T) {
	bookingDB, bunDB := setupTestDB(t)
	ctx := context.Background()
	testutil.SeedTrip(t, bunDB, "Trip-abc", 3, 50)

	require.NoError(t, bookingDB.ConfirmBooking(ctx, newBooking("Trip-abc", "ref-dup", 50), ""))
	require.Equal(t, 2, testutil.SeatsLeft(t, bunDB, "Trip-abc"))

	err := bookingDB.ConfirmBooking(ctx, newBooking("Trip-abc", "ref-dup", 50), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDuplicateReference)
	assert.Equal(t, 2, testutil.SeatsLeft(t, bunDB, "Trip-abc"), "rolled back decrement")

	bookings, err := bookingDB.GetBookingsByUserID(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, bookings, 1)
}

func TestConfirmBookingNoSeatsLeft(t *testing.T) {
	bookingDB, bunDB := setupTestDB(t)
	ctx := context.Background()
	testutil.SeedTrip(t, bunDB, "Trip-full", 1, 50)

	require.NoError(t, bookingDB.ConfirmBooking(ctx, newBooking("Trip-full", "ref-a", 50), ""))

	err := bookingDB.ConfirmBooking(ctx, newBooking("Trip-full", "ref-b", 50), "")
	assert.ErrorIs(t, err, domain.ErrNoSeatsLeft)
	assert.Equal(t, 0, testutil.SeatsLeft(t, bunDB, "Trip-full"))

	_, err = bookingDB.GetBookingByReference(ctx, "ref-b")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestConcurrentConfirmationsOnLastSeat(t *testing.T) {
	bookingDB, bunDB := setupTestDB(t)
	testutil.SeedTrip(t, bunDB, "Trip-last", 1, 50)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			ref := []string{"ref-x", "ref-y"}[n]
			errs[n] = bookingDB.ConfirmBooking(context.Background(), newBooking("Trip-last", ref, 50), "")
		}(i)
	}
	wg.Wait()

	succeeded, full := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case assert.ErrorIs(t, err, domain.ErrNoSeatsLeft):
			full++
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, full)
	assert.Equal(t, 0, testutil.SeatsLeft(t, bunDB, "Trip-last"))
}

func TestGetBookingsByUserIDExpandsTrips(t *testing.T) {
	bookingDB, bunDB := setupTestDB(t)
	ctx := context.Background()
	testutil.SeedTrip(t, bunDB, "Trip-out", 5, 50)
	testutil.SeedTrip(t, bunDB, "Trip-back", 5, 50)

	oneWay := newBooking("Trip-out", "ref-one", 50)
	oneWay.CreatedAt = time.Now().UTC().Add(-time.Hour)
	require.NoError(t, bookingDB.ConfirmBooking(ctx, oneWay, ""))

	roundTrip := newBooking("Trip-out", "ref-round", 100)
	roundTrip.IsRoundTrip = true
	roundTrip.ReturnTripID = "Trip-back"
	require.NoError(t, bookingDB.ConfirmBooking(ctx, roundTrip, ""))

	bookings, err := bookingDB.GetBookingsByUserID(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, bookings, 2)

	latest := bookings[0]
	assert.Equal(t, roundTrip.BookingID, latest.BookingID)
	require.NotNil(t, latest.Trip)
	assert.Equal(t, "Trip-out", latest.Trip.TripID)
	require.NotNil(t, latest.ReturnTrip)
	assert.Equal(t, "Trip-back", latest.ReturnTrip.TripID)
	require.NotNil(t, latest.User)
	assert.Equal(t, "Ada Obi", latest.User.FullName)

	older := bookings[1]
	require.NotNil(t, older.Trip)
	assert.Nil(t, older.ReturnTrip)
	assert.Len(t, older.Payments, 1)

	none, err := bookingDB.GetBookingsByUserID(ctx, "user-unknown")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestIntentLifecycle(t *testing.T) {
	bookingDB, bunDB := setupTestDB(t)
	ctx := context.Background()
	testutil.SeedTrip(t, bunDB, "Trip-abc", 3, 50)

	intent := &models.BookingIntent{
		IntentID: "BKG-1",
		TripID:   "Trip-abc",
		UserID:   "user-1",
		Amount:   50,
		Provider: "paystack",
	}
	require.NoError(t, bookingDB.CreateIntent(ctx, intent))
	assert.Equal(t, models.IntentInitiated, intent.Status)

	ok, err := bookingDB.MarkIntentPending(ctx, "BKG-1", "BKG-1", "https://checkout.example/abc")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = bookingDB.MarkIntentPending(ctx, "BKG-1", "BKG-1", "https://checkout.example/abc")
	require.NoError(t, err)
	assert.False(t, ok, "only Initiated intents become pending")

	got, err := bookingDB.GetIntentByReference(ctx, "BKG-1")
	require.NoError(t, err)
	assert.Equal(t, models.IntentPaymentPending, got.Status)
	assert.Equal(t, "https://checkout.example/abc", got.AuthorizationURL)

	require.NoError(t, bookingDB.ConfirmBooking(ctx, newBooking("Trip-abc", "BKG-1", 50), "BKG-1"))
	got, err = bookingDB.GetIntentByReference(ctx, "BKG-1")
	require.NoError(t, err)
	assert.Equal(t, models.IntentConfirmed, got.Status)

	ok, err = bookingDB.TransitionIntent(ctx, "BKG-1", models.IntentAbandoned, models.IntentPaymentPending)
	require.NoError(t, err)
	assert.False(t, ok, "confirmed intents never change")

	_, err = bookingDB.GetIntentByReference(ctx, "BKG-missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestConfirmBookingRevivesFailedIntent(t *testing.T) {
	bookingDB, bunDB := setupTestDB(t)
	ctx := context.Background()
	testutil.SeedTrip(t, bunDB, "Trip-abc", 3, 50)

	require.NoError(t, bookingDB.CreateIntent(ctx, &models.BookingIntent{
		IntentID: "BKG-1", TripID: "Trip-abc", UserID: "user-1", Amount: 50, Provider: "paystack",
	}))
	ok, err := bookingDB.TransitionIntent(ctx, "BKG-1", models.IntentFailed, models.IntentInitiated)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, bookingDB.ConfirmBooking(ctx, newBooking("Trip-abc", "BKG-1", 50), "BKG-1"))

	got, err := bookingDB.GetIntentByReference(ctx, "BKG-1")
	require.NoError(t, err)
	assert.Equal(t, models.IntentConfirmed, got.Status)
	assert.Equal(t, 2, testutil.SeatsLeft(t, bunDB, "Trip-abc"))
}

func TestConfirmBookingUnknownIntentRollsBack(t *testing.T) {
	bookingDB, bunDB := setupTestDB(t)
	ctx := context.Background()
	testutil.SeedTrip(t, bunDB, "Trip-abc", 3, 50)

	err := bookingDB.ConfirmBooking(ctx, newBooking("Trip-abc", "ref-orphan", 50), "BKG-missing")
	assert.ErrorIs(t, err, db.ErrIntentNotConfirmable)
	assert.Equal(t, 3, testutil.SeatsLeft(t, bunDB, "Trip-abc"))

	_, err = bookingDB.GetBookingByReference(ctx, "ref-orphan")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestTransitionIntentRequiresSource(t *testing.T) {
	bookingDB, _ := setupTestDB(t)

	_, err := bookingDB.TransitionIntent(context.Background(), "BKG-1", models.IntentFailed)
	assert.Error(t, err)
}

func TestListStaleIntents(t *testing.T) {
	bookingDB, _ := setupTestDB(t)
	ctx := context.Background()

	for _, id := range []string{"BKG-a", "BKG-b"} {
		require.NoError(t, bookingDB.CreateIntent(ctx, &models.BookingIntent{
			IntentID: id, TripID: "Trip-abc", UserID: "user-1", Amount: 50, Provider: "paystack",
		}))
	}
	_, err := bookingDB.MarkIntentPending(ctx, "BKG-a", "BKG-a", "https://checkout.example/a")
	require.NoError(t, err)

	stale, err := bookingDB.ListStaleIntents(ctx, time.Now().UTC().Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "BKG-a", stale[0].IntentID)

	stale, err = bookingDB.ListStaleIntents(ctx, time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)
	assert.Empty(t, stale)
}
