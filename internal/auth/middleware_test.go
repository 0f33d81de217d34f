package auth

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-booking/internal/logger"
	"ms-booking/internal/utils"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func protectedHandler() http.Handler {
	mw := Middleware(NewHMACVerifier(testSecret), logger.NewLoggerWithOutput(io.Discard))
	return mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(UserID(r.Context())))
	}))
}

func TestMiddlewareAcceptsValidToken(t *testing.T) {
	token := signToken(t, testSecret, jwt.MapClaims{
		"sub": "user-42",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/cancel-trip", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	protectedHandler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-42", rec.Body.String())
}

func TestMiddlewareRejects(t *testing.T) {
	cases := map[string]string{
		"missing header": "",
		"wrong scheme":   "Basic abc",
		"wrong secret":   "Bearer " + signToken(t, "other", jwt.MapClaims{"sub": "user-42"}),
		"expired":        "Bearer " + signToken(t, testSecret, jwt.MapClaims{"sub": "user-42", "exp": time.Now().Add(-time.Hour).Unix()}),
		"no subject":     "Bearer " + signToken(t, testSecret, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()}),
	}

	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodDelete, "/api/v1/cancel-trip", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()
			protectedHandler().ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			var body utils.APIResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.False(t, body.Success)
			assert.Equal(t, "unauthorized", body.Error)
		})
	}
}

func TestExtractTokenFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer abc.def.ghi")

	token, err := ExtractTokenFromRequest(req)
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", token)
}

func TestHMACVerifierWithoutSecret(t *testing.T) {
	_, err := NewHMACVerifier("").Verify(context.Background(), "anything")
	assert.Error(t, err)
}
