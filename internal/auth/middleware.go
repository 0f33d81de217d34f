package auth

import (
	"context"
	"net/http"

	"ms-booking/internal/logger"
	"ms-booking/internal/utils"
)

type contextKey string

const userIDKey contextKey = "user_id"

// Middleware rejects requests without a valid bearer token and stores the
// token subject in the request context.
func Middleware(verifier Verifier, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawToken, err := ExtractTokenFromRequest(r)
			if err != nil {
				unauthorized(w, err.Error())
				return
			}

			userID, err := verifier.Verify(r.Context(), rawToken)
			if err != nil {
				log.LogSecurity("INVALID_TOKEN", r.Method+" "+r.URL.Path+": "+err.Error())
				unauthorized(w, "Invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Helper to extract user ID in handlers
func UserID(ctx context.Context) string {
	if uid, ok := ctx.Value(userIDKey).(string); ok {
		return uid
	}
	return ""
}

func unauthorized(w http.ResponseWriter, message string) {
	_ = utils.WriteJSON(w, http.StatusUnauthorized, utils.ErrorResponse(message, "unauthorized"))
}
