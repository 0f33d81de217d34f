package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-booking/internal/auth"
	"ms-booking/internal/domain"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
)

type stubBookings struct {
	initiate func(models.InitiateBookingRequest) (*models.PaymentInitiation, error)
	confirm  func(models.ConfirmBookingRequest) (*models.BookingConfirmation, error)
	list     func(string) ([]models.BookedTrip, error)
	ticket   func(string) ([]byte, error)
}

func (s *stubBookings) InitiateBooking(_ context.Context, req models.InitiateBookingRequest) (*models.PaymentInitiation, error) {
	return s.initiate(req)
}

func (s *stubBookings) ConfirmBooking(_ context.Context, req models.ConfirmBookingRequest) (*models.BookingConfirmation, error) {
	return s.confirm(req)
}

func (s *stubBookings) ListBookingsForUser(_ context.Context, userID string) ([]models.BookedTrip, error) {
	return s.list(userID)
}

func (s *stubBookings) BookingTicketQR(_ context.Context, reference string) ([]byte, error) {
	return s.ticket(reference)
}

type stubTrips struct {
	create func(models.CreateTripRequest) (*models.Trip, error)
	all    func() ([]models.Trip, error)
	find   func(models.TripFilter) ([]models.Trip, error)
}

func (s *stubTrips) CreateTrip(_ context.Context, req models.CreateTripRequest) (*models.Trip, error) {
	return s.create(req)
}

func (s *stubTrips) AllTrips(_ context.Context) ([]models.Trip, error) { return s.all() }

func (s *stubTrips) FindTrips(_ context.Context, filter models.TripFilter) ([]models.Trip, error) {
	return s.find(filter)
}

type rejectAll struct{}

func (rejectAll) Verify(context.Context, string) (string, error) {
	return "", auth.ErrMissingSubject
}

type acceptAll struct{}

func (acceptAll) Verify(context.Context, string) (string, error) { return "user-1", nil }

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func serve(t *testing.T, router http.Handler, method, target, body string, headers ...string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func newTestRouter(b *stubBookings, tr *stubTrips) http.Handler {
	log := logger.NewLoggerWithOutput(io.Discard)
	return NewRouter(NewHandler(b, tr, log), rejectAll{}, log, RouterOptions{})
}

func TestBookTripCreated(t *testing.T) {
	var got models.InitiateBookingRequest
	bookings := &stubBookings{initiate: func(req models.InitiateBookingRequest) (*models.PaymentInitiation, error) {
		got = req
		return &models.PaymentInitiation{
			Payment: models.PaymentLink{Reference: "ref-1", AuthorizationURL: "https://pay/ref-1"},
			Amount:  100,
		}, nil
	}}

	rec, env := serve(t, newTestRouter(bookings, &stubTrips{}), http.MethodPost, "/book-trip",
		`{"trip_id":"Trip-1","user_id":"user-1","isRoundTrip":true,"returnTrip_id":"Trip-2"}`)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, env.Success)
	assert.Equal(t, "Trip booked successfully. Complete payment to confirm.", env.Message)
	assert.JSONEq(t, `{"payment":{"reference":"ref-1","authorization_url":"https://pay/ref-1"},"amount":100}`, string(env.Data))
	require.NotNil(t, got.IsRoundTrip)
	assert.True(t, *got.IsRoundTrip)
	assert.Equal(t, "Trip-2", got.ReturnTripID)
}

func TestErrorKindsMapToStatus(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{domain.InvalidRequest("Trip ID, User ID, and isRoundTrip are required"), http.StatusBadRequest, "invalid_request"},
		{domain.NotFound("Trip not found"), http.StatusNotFound, "not_found"},
		{domain.CapacityExceeded("No seats left"), http.StatusBadRequest, "capacity_exceeded"},
		{domain.PaymentFailed("Payment verification failed"), http.StatusBadRequest, "payment_failed"},
		{domain.DuplicatePaymentReference("dup", nil), http.StatusBadRequest, "duplicate_payment_reference"},
		{domain.UpstreamGateway("Payment gateway unavailable", nil), http.StatusBadGateway, "upstream_gateway_error"},
		{domain.Internal("db down", nil), http.StatusInternalServerError, "internal_error"},
	}

	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			bookings := &stubBookings{confirm: func(models.ConfirmBookingRequest) (*models.BookingConfirmation, error) {
				return nil, tc.err
			}}
			rec, env := serve(t, newTestRouter(bookings, &stubTrips{}), http.MethodPost, "/verify-booking",
				`{"reference":"ref-1","trip_id":"Trip-1","user_id":"user-1","isRoundTrip":false}`)

			assert.Equal(t, tc.status, rec.Code)
			assert.False(t, env.Success)
			assert.Equal(t, tc.code, env.Error)
			assert.Equal(t, "null", string(env.Data))
		})
	}
}

func TestInternalErrorDetailIsHidden(t *testing.T) {
	trips := &stubTrips{all: func() ([]models.Trip, error) {
		return nil, domain.Internal("failed to list trips", io.ErrUnexpectedEOF)
	}}
	rec, env := serve(t, newTestRouter(&stubBookings{}, trips), http.MethodGet, "/alltrip", "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal server error", env.Message)
	assert.NotContains(t, rec.Body.String(), "unexpected EOF")
}

func TestMalformedBody(t *testing.T) {
	rec, env := serve(t, newTestRouter(&stubBookings{}, &stubTrips{}), http.MethodPost, "/createtrip", `{"destination":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", env.Error)

	rec, _ = serve(t, newTestRouter(&stubBookings{}, &stubTrips{}), http.MethodPost, "/book-trip", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateTripAndAllTrips(t *testing.T) {
	trips := &stubTrips{
		create: func(req models.CreateTripRequest) (*models.Trip, error) {
			return &models.Trip{TripID: "Trip-9", Destination: req.Destination, NumberOfSeats: req.NumberOfSeats, SeatsLeft: req.NumberOfSeats}, nil
		},
		all: func() ([]models.Trip, error) { return []models.Trip{}, nil },
	}
	router := newTestRouter(&stubBookings{}, trips)

	rec, env := serve(t, router, http.MethodPost, "/createtrip", `{"destination":"Abuja","numberOfSeats":12,"user_id":"op"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Trip created successfully", env.Message)
	assert.Contains(t, string(env.Data), `"seatsLeft":12`)

	rec, env = serve(t, router, http.MethodGet, "/alltrip", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", string(env.Data))
}

func TestFindTripCriteriaSources(t *testing.T) {
	var got models.TripFilter
	trips := &stubTrips{find: func(f models.TripFilter) ([]models.Trip, error) {
		got = f
		if f.Destination == "Nowhere" {
			return nil, domain.NotFound("Trips not available for the specified criteria.")
		}
		return []models.Trip{{TripID: "Trip-1", Destination: f.Destination}}, nil
	}}
	router := newTestRouter(&stubBookings{}, trips)

	rec, _ := serve(t, router, http.MethodGet, "/findtrip", `{"destination":"Abuja","date":"2024-06-01"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.TripFilter{Destination: "Abuja", Date: "2024-06-01"}, got)

	rec, _ = serve(t, router, http.MethodGet, "/findtrip?departure=Lagos&destination=Kano", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.TripFilter{Departure: "Lagos", Destination: "Kano"}, got)

	rec, env := serve(t, router, http.MethodGet, "/findtrip?destination=Nowhere", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Trips not available for the specified criteria.", env.Message)
	assert.Equal(t, "null", string(env.Data))
}

func TestBookedTripsUserFromQueryOrBody(t *testing.T) {
	var got string
	bookings := &stubBookings{list: func(userID string) ([]models.BookedTrip, error) {
		got = userID
		return []models.BookedTrip{}, nil
	}}
	router := newTestRouter(bookings, &stubTrips{})

	rec, _ := serve(t, router, http.MethodGet, "/bookedtrips?user_id=user-7", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-7", got)

	rec, _ = serve(t, router, http.MethodGet, "/bookedtrips", `{"user_id":"user-8"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-8", got)
}

func TestBookingTicketPNG(t *testing.T) {
	bookings := &stubBookings{ticket: func(ref string) ([]byte, error) {
		if ref != "ref-1" {
			return nil, domain.NotFound("Booking not found")
		}
		return []byte("\x89PNG"), nil
	}}
	router := newTestRouter(bookings, &stubTrips{})

	rec, _ := serve(t, router, http.MethodGet, "/booking/ref-1/ticket", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "\x89PNG", rec.Body.String())

	rec, _ = serve(t, router, http.MethodGet, "/booking/ref-2/ticket", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelTripRequiresAuth(t *testing.T) {
	log := logger.NewLoggerWithOutput(io.Discard)
	h := NewHandler(&stubBookings{}, &stubTrips{}, log)

	rec, _ := serve(t, NewRouter(h, rejectAll{}, log, RouterOptions{}), http.MethodGet, "/canceltrip", "", "Authorization", "Bearer x")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, env := serve(t, NewRouter(h, acceptAll{}, log, RouterOptions{}), http.MethodGet, "/canceltrip", "", "Authorization", "Bearer x")
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
	assert.False(t, env.Success)
}

func TestCancelTripLogsCaller(t *testing.T) {
	var out bytes.Buffer
	log := logger.NewLoggerWithOutput(&out)
	h := NewHandler(&stubBookings{}, &stubTrips{}, log)

	serve(t, NewRouter(h, acceptAll{}, log, RouterOptions{}), http.MethodGet, "/canceltrip", "", "Authorization", "Bearer x")
	assert.Contains(t, out.String(), "Trip cancellation requested by user-1")
}

func TestHealth(t *testing.T) {
	rec, env := serve(t, newTestRouter(&stubBookings{}, &stubTrips{}), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
}

func TestCORSPreflight(t *testing.T) {
	log := logger.NewLoggerWithOutput(io.Discard)
	router := NewRouter(NewHandler(&stubBookings{}, &stubTrips{}, log), rejectAll{}, log, RouterOptions{
		AllowedOrigins: []string{"https://app.example.com"},
	})

	req := httptest.NewRequest(http.MethodOptions, "/book-trip", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}
