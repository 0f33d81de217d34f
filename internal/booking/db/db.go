package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/uptrace/bun"

	"ms-booking/internal/domain"
	"ms-booking/internal/models"
	tripdb "ms-booking/internal/trips/db"
)

type DB struct {
	Bun *bun.DB
}

// Intent states a verified payment may still move to Confirmed. Abandoned
// and Failed are included: the gateway's success verdict overrides an expired
// hold or an earlier rejection.
var confirmableIntentStates = []models.IntentStatus{
	models.IntentInitiated,
	models.IntentPaymentPending,
	models.IntentAbandoned,
	models.IntentFailed,
}

// ErrIntentNotConfirmable is returned when the intent named in a
// confirmation is missing or already confirmed.
var ErrIntentNotConfirmable = errors.New("booking intent cannot be confirmed")

// ConfirmBooking stores a paid booking in one transaction: take a seat from
// the trip, insert the booking and its payment attempts, and confirm the
// intent identified by intentID when there is one. Any failure leaves the
// seat count untouched.
func (d *DB) ConfirmBooking(ctx context.Context, booking *models.Booking, intentID string) error {
	err := d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := tripdb.DecrementSeatsLeft(ctx, tx, booking.TripID); err != nil {
			return err
		}

		if _, err := tx.NewInsert().Model(booking).Exec(ctx); err != nil {
			return err
		}

		for i := range booking.Payments {
			booking.Payments[i].BookingID = booking.BookingID
		}
		if len(booking.Payments) > 0 {
			if _, err := tx.NewInsert().Model(&booking.Payments).Exec(ctx); err != nil {
				return err
			}
		}

		if intentID == "" {
			return nil
		}
		res, err := tx.NewUpdate().
			Model((*models.BookingIntent)(nil)).
			Set("status = ?", models.IntentConfirmed).
			Set("updated_at = ?", time.Now().UTC()).
			Where("intent_id = ?", intentID).
			Where("status IN (?)", bun.In(confirmableIntentStates)).
			Exec(ctx)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: %s", ErrIntentNotConfirmable, intentID)
		}
		return nil
	})
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %v", domain.ErrDuplicateReference, err)
	}
	return err
}

// GetBookingsByUserID → a user's bookings, newest first, with trip, return
// trip, user and payment attempts loaded
func (d *DB) GetBookingsByUserID(ctx context.Context, userID string) ([]models.Booking, error) {
	bookings := []models.Booking{}
	err := d.bookingQuery(&bookings).
		Where("?TableAlias.user_id = ?", userID).
		Order("b.created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	for i := range bookings {
		normalizeRelations(&bookings[i])
	}
	return bookings, nil
}

// GetBookingByReference → the booking paid with the given gateway reference
func (d *DB) GetBookingByReference(ctx context.Context, reference string) (*models.Booking, error) {
	var booking models.Booking
	err := d.bookingQuery(&booking).
		Where("?TableAlias.booking_id = (?)",
			d.Bun.NewSelect().
				Model((*models.PaymentAttempt)(nil)).
				Column("booking_id").
				Where("payment_reference = ?", reference).
				Limit(1)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	normalizeRelations(&booking)
	return &booking, nil
}

func (d *DB) bookingQuery(model interface{}) *bun.SelectQuery {
	return d.Bun.NewSelect().
		Model(model).
		Relation("Trip").
		Relation("ReturnTrip").
		Relation("User").
		Relation("Payments", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("payment_date ASC")
		})
}

// A LEFT JOIN on a NULL return_trip_id yields an empty struct; drop it.
func normalizeRelations(b *models.Booking) {
	if b.ReturnTrip != nil && b.ReturnTrip.TripID == "" {
		b.ReturnTrip = nil
	}
	if b.Payments == nil {
		b.Payments = []models.PaymentAttempt{}
	}
}

// CreateIntent → insert an intent in the Initiated state
func (d *DB) CreateIntent(ctx context.Context, intent *models.BookingIntent) error {
	now := time.Now().UTC()
	if intent.CreatedAt.IsZero() {
		intent.CreatedAt = now
	}
	intent.UpdatedAt = now
	if intent.Status == "" {
		intent.Status = models.IntentInitiated
	}
	_, err := d.Bun.NewInsert().Model(intent).Exec(ctx)
	return err
}

// GetIntentByReference → intent by gateway reference; sql.ErrNoRows when absent
func (d *DB) GetIntentByReference(ctx context.Context, reference string) (*models.BookingIntent, error) {
	var intent models.BookingIntent
	err := d.Bun.NewSelect().
		Model(&intent).
		Where("gateway_reference = ?", reference).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &intent, nil
}

// MarkIntentPending records the gateway's reference and checkout URL and
// moves an Initiated intent to PaymentPending.
func (d *DB) MarkIntentPending(ctx context.Context, intentID, reference, authorizationURL string) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.BookingIntent)(nil)).
		Set("status = ?", models.IntentPaymentPending).
		Set("gateway_reference = ?", reference).
		Set("authorization_url = ?", authorizationURL).
		Set("updated_at = ?", time.Now().UTC()).
		Where("intent_id = ?", intentID).
		Where("status = ?", models.IntentInitiated).
		Exec(ctx)
	return affected(res, err)
}

// TransitionIntent moves an intent to `to` only if it is currently in one of
// `from`. It reports whether a row changed.
func (d *DB) TransitionIntent(ctx context.Context, intentID string, to models.IntentStatus, from ...models.IntentStatus) (bool, error) {
	if len(from) == 0 {
		return false, errors.New("transition requires at least one source state")
	}
	res, err := d.Bun.NewUpdate().
		Model((*models.BookingIntent)(nil)).
		Set("status = ?", to).
		Set("updated_at = ?", time.Now().UTC()).
		Where("intent_id = ?", intentID).
		Where("status IN (?)", bun.In(from)).
		Exec(ctx)
	return affected(res, err)
}

// ListStaleIntents → PaymentPending intents untouched since before `before`
func (d *DB) ListStaleIntents(ctx context.Context, before time.Time) ([]models.BookingIntent, error) {
	intents := []models.BookingIntent{}
	err := d.Bun.NewSelect().
		Model(&intents).
		Where("status = ?", models.IntentPaymentPending).
		Where("updated_at < ?", before).
		Order("updated_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return intents, nil
}

func affected(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// isUniqueViolation recognizes unique-constraint errors from Postgres and SQLite.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
