// Package scrapeauth guards operator endpoints such as the metrics scrape with a shared token.
package scrapeauth

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	dErrors "bloodlink/pkg/domain-errors"
	"bloodlink/pkg/platform/httputil"
	request "bloodlink/pkg/platform/middleware/request"
)

// HeaderToken carries the token for scrapers that cannot send a bearer header.
const HeaderToken = "X-Metrics-Token"

// RequireToken accepts either "Authorization: Bearer <token>" or the X-Metrics-Token header.
// An empty expected token leaves the route open.
func RequireToken(expected string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if expected == "" {
			return next
		}
		want := []byte(expected)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if subtle.ConstantTimeCompare([]byte(presented(r)), want) != 1 {
				if logger != nil {
					logger.WarnContext(r.Context(), "scrape token rejected",
						"path", r.URL.Path,
						"request_id", request.GetRequestID(r.Context()),
					)
				}
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "scrape token required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func presented(r *http.Request) string {
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return r.Header.Get(HeaderToken)
}
