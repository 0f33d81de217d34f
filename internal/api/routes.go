package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"ms-booking/internal/auth"
	"ms-booking/internal/logger"
)

type RouterOptions struct {
	RequestTimeout time.Duration
	AllowedOrigins []string
}

// NewRouter wires every endpoint. Only /canceltrip requires a bearer token.
// Event streams are exempt from the request timeout.
func NewRouter(h *Handler, verifier auth.Verifier, log *logger.Logger, opts RouterOptions) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)
	if len(opts.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			MaxAge:         300,
		}))
	}

	r.Group(func(r chi.Router) {
		if opts.RequestTimeout > 0 {
			r.Use(middleware.Timeout(opts.RequestTimeout))
		}

		r.Get("/health", h.Health)

		r.Post("/createtrip", h.CreateTrip)
		r.Get("/alltrip", h.AllTrips)
		r.Get("/findtrip", h.FindTrip)

		r.Post("/book-trip", h.BookTrip)
		r.Post("/verify-booking", h.VerifyBooking)
		r.Get("/bookedtrips", h.BookedTrips)
		r.Get("/booking/{reference}/ticket", h.BookingTicket)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(verifier, log))
			r.Get("/canceltrip", h.CancelTrip)
		})
	})

	if h.Stream != nil {
		r.Get("/trips/{tripId}/events", h.StreamTripEvents)
		r.Get("/booking/{reference}/events", h.StreamBookingEvents)
	}

	return r
}

func requestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			log.LogAPI(r.Method, r.URL.Path, status, time.Since(start))
		})
	}
}
