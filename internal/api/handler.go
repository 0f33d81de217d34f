package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-booking/internal/auth"
	"ms-booking/internal/domain"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/utils"
)

type BookingService interface {
	InitiateBooking(ctx context.Context, req models.InitiateBookingRequest) (*models.PaymentInitiation, error)
	ConfirmBooking(ctx context.Context, req models.ConfirmBookingRequest) (*models.BookingConfirmation, error)
	ListBookingsForUser(ctx context.Context, userID string) ([]models.BookedTrip, error)
	BookingTicketQR(ctx context.Context, reference string) ([]byte, error)
}

type TripService interface {
	CreateTrip(ctx context.Context, req models.CreateTripRequest) (*models.Trip, error)
	AllTrips(ctx context.Context) ([]models.Trip, error)
	FindTrips(ctx context.Context, filter models.TripFilter) ([]models.Trip, error)
}

type Handler struct {
	Bookings BookingService
	Trips    TripService
	Logger   *logger.Logger

	// Stream enables the SSE endpoints when set.
	Stream EventStream
}

func NewHandler(bookings BookingService, trips TripService, log *logger.Logger) *Handler {
	return &Handler{Bookings: bookings, Trips: trips, Logger: log}
}

func (h *Handler) CreateTrip(w http.ResponseWriter, r *http.Request) {
	var req models.CreateTripRequest
	if err := decodeBody(r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}

	trip, err := h.Trips.CreateTrip(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, http.StatusCreated, "Trip created successfully", trip)
}

func (h *Handler) AllTrips(w http.ResponseWriter, r *http.Request) {
	trips, err := h.Trips.AllTrips(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, http.StatusOK, "Trips retrieved successfully", trips)
}

// FindTrip reads its criteria from the JSON body. Clients that cannot send a
// body with GET may pass date, departure and destination as query parameters.
func (h *Handler) FindTrip(w http.ResponseWriter, r *http.Request) {
	var filter models.TripFilter
	if err := decodeBody(r, &filter, true); err != nil {
		h.writeError(w, r, err)
		return
	}
	if filter.IsEmpty() {
		q := r.URL.Query()
		filter = models.TripFilter{
			Date:        q.Get("date"),
			Departure:   q.Get("departure"),
			Destination: q.Get("destination"),
		}
	}

	trips, err := h.Trips.FindTrips(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, http.StatusOK, "Trips retrieved successfully", trips)
}

func (h *Handler) BookTrip(w http.ResponseWriter, r *http.Request) {
	var req models.InitiateBookingRequest
	if err := decodeBody(r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.Bookings.InitiateBooking(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, http.StatusCreated, "Trip booked successfully. Complete payment to confirm.", res)
}

func (h *Handler) VerifyBooking(w http.ResponseWriter, r *http.Request) {
	var req models.ConfirmBookingRequest
	if err := decodeBody(r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.Bookings.ConfirmBooking(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, http.StatusCreated, "Payment successful and trip booked.", res)
}

func (h *Handler) BookedTrips(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		var body struct {
			UserID string `json:"user_id"`
		}
		if err := decodeBody(r, &body, true); err != nil {
			h.writeError(w, r, err)
			return
		}
		userID = body.UserID
	}

	bookings, err := h.Bookings.ListBookingsForUser(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, http.StatusOK, "Booked trips retrieved successfully", bookings)
}

func (h *Handler) BookingTicket(w http.ResponseWriter, r *http.Request) {
	reference := chi.URLParam(r, "reference")

	png, err := h.Bookings.BookingTicketQR(r.Context(), reference)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// CancelTrip sits behind authentication but cancellation is not offered yet.
func (h *Handler) CancelTrip(w http.ResponseWriter, r *http.Request) {
	h.Logger.Info("API", fmt.Sprintf("Trip cancellation requested by %s", auth.UserID(r.Context())))
	_ = utils.WriteJSON(w, http.StatusNotImplemented, utils.ErrorResponse("Trip cancellation is not available", "not_implemented"))
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, http.StatusOK, "ok", map[string]string{"status": "healthy"})
}

// decodeBody decodes a JSON request body into v. An empty body is an error
// unless optional is set.
func decodeBody(r *http.Request, v interface{}, optional bool) error {
	if r.Body == nil {
		if optional {
			return nil
		}
		return domain.InvalidRequest("Request body is required")
	}
	err := json.NewDecoder(r.Body).Decode(v)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF):
		if optional {
			return nil
		}
		return domain.InvalidRequest("Request body is required")
	default:
		return domain.InvalidRequest("Invalid request body")
	}
}
