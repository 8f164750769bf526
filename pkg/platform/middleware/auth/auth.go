package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	request "bloodlink/pkg/platform/middleware/request"
	"bloodlink/pkg/requestcontext"
)

// TokenVerifier resolves a bearer token to the caller's normalized email.
type TokenVerifier interface {
	Verify(tokenString string) (string, error)
}

var errMissingToken = errors.New("missing bearer token")

// writeJSONError writes a JSON error response with the given status code and error details.
func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":"%s","error_description":"%s"}`, errCode, errDesc))
}

func bearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", errMissingToken
	}
	token, ok := strings.CutPrefix(authHeader, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return "", errors.New("malformed authorization header")
	}
	return strings.TrimSpace(token), nil
}

// RequireAuth rejects requests without a valid bearer token and stores the caller email
// in the request context.
func RequireAuth(verifier TokenVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return authenticate(verifier, logger, true)
}

// OptionalAuth authenticates when a bearer token is present and lets anonymous requests through.
// A present but invalid token is still rejected.
func OptionalAuth(verifier TokenVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return authenticate(verifier, logger, false)
}

func authenticate(verifier TokenVerifier, logger *slog.Logger, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := request.GetRequestID(ctx)

			token, err := bearerToken(r)
			if errors.Is(err, errMissingToken) && !required {
				next.ServeHTTP(w, r)
				return
			}
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"error", err,
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing or invalid Authorization header")
				return
			}

			subject, err := verifier.Verify(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}

			ctx = requestcontext.WithActorEmail(ctx, subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
