package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/httplog"

	"github.com/undeadops/slugger/internal/auth"
)

type TokenVerifier interface {
	Verify(ctx context.Context, header string) (auth.Claims, error)
}

// RequireToken rejects requests without a valid operator token and stores
// the verified claims in the request context.
func RequireToken(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := verifier.Verify(r.Context(), r.Header.Get("Authorization"))
			if err != nil {
				status := tokenErrorStatus(err)
				logger := httplog.LogEntry(r.Context())
				logger.Warn().Err(err).Int("status", status).Msg("Rejected request token")
				http.Error(w, http.StatusText(status), status)
				return
			}

			httplog.LogEntrySetField(r.Context(), "user", claims.User)
			next.ServeHTTP(w, r.WithContext(auth.WithClaims(r.Context(), claims)))
		})
	}
}

// Missing or forged tokens are the caller's fault; everything else,
// including tokens that cannot be parsed at all, is reported as a server
// error.
func tokenErrorStatus(err error) int {
	switch {
	case errors.Is(err, auth.ErrMissingToken), errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
