package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"ms-booking/internal/domain"
	"ms-booking/internal/models"
)

type EventStream interface {
	SubscribeToTrip(ctx context.Context, tripID string) <-chan models.BookingEvent
	SubscribeToReference(ctx context.Context, reference string) <-chan models.BookingEvent
}

// StreamTripEvents pushes seat availability changes for one trip.
func (h *Handler) StreamTripEvents(w http.ResponseWriter, r *http.Request) {
	tripID := chi.URLParam(r, "tripId")
	h.stream(w, r, "trip_id", tripID, h.Stream.SubscribeToTrip)
}

// StreamBookingEvents lets a payer wait for their booking to be confirmed
// or abandoned.
func (h *Handler) StreamBookingEvents(w http.ResponseWriter, r *http.Request) {
	reference := chi.URLParam(r, "reference")
	h.stream(w, r, "reference", reference, h.Stream.SubscribeToReference)
}

func (h *Handler) stream(w http.ResponseWriter, r *http.Request, field, key string,
	subscribe func(context.Context, string) <-chan models.BookingEvent) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeError(w, r, domain.Internal("streaming unsupported", nil))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	// Streams outlive the server's write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	ctx := r.Context()
	events := subscribe(ctx, key)

	connected, err := json.Marshal(map[string]string{"status": "connected", field: key})
	if err != nil {
		h.writeError(w, r, domain.Internal("failed to encode stream greeting", err))
		return
	}
	fmt.Fprintf(w, "event: connected\ndata: %s\n\n", connected)
	flusher.Flush()
	h.Logger.Info("SSE", fmt.Sprintf("Client subscribed to %s %s", field, key))

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				h.Logger.Error("SSE", fmt.Sprintf("Failed to serialize booking event: %v", err))
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
			flusher.Flush()
		case <-ctx.Done():
			h.Logger.Debug("SSE", fmt.Sprintf("Client disconnected from %s %s", field, key))
			return
		}
	}
}
