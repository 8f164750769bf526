// Package httptransport assembles the HTTP surface: the shared middleware chain, operator
// endpoints and every bounded context's routes.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bloodlink/pkg/platform/httputil"
	"bloodlink/pkg/platform/middleware/metadata"
	"bloodlink/pkg/platform/middleware/request"
	"bloodlink/pkg/platform/middleware/requesttime"
	"bloodlink/pkg/platform/middleware/scrapeauth"
)

// Registrar is implemented by each context's HTTP handler.
type Registrar interface {
	Register(r chi.Router)
}

// HealthCheck probes one backing dependency.
type HealthCheck func(ctx context.Context) error

type Options struct {
	Logger         *slog.Logger
	Latency        request.LatencyObserver
	RequestTimeout time.Duration
	MetricsToken   string
	// Gatherer backs /metrics; nil means the default registry.
	Gatherer     prometheus.Gatherer
	HealthChecks map[string]HealthCheck
	// RateLimit runs after client metadata is resolved; nil disables it.
	RateLimit func(http.Handler) http.Handler
}

// NewRouter wires the common middleware chain, /health and /metrics, then mounts handlers.
func NewRouter(opts Options, handlers ...Registrar) http.Handler {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()
	r.Use(request.Recovery(opts.Logger))
	r.Use(request.RequestID)
	r.Use(request.Logger(opts.Logger))
	r.Use(request.Timeout(opts.RequestTimeout))
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	r.Use(request.ContentTypeJSON)
	r.Use(request.LatencyMiddleware(opts.Latency))
	if opts.RateLimit != nil {
		r.Use(opts.RateLimit)
	}

	r.Get("/health", healthHandler(opts.HealthChecks, opts.Logger))
	r.With(scrapeauth.RequireToken(opts.MetricsToken, opts.Logger)).
		Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	for _, h := range handlers {
		h.Register(r)
	}
	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthHandler(checks map[string]HealthCheck, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := healthResponse{Status: "ok"}
		status := http.StatusOK
		if len(checks) > 0 {
			resp.Checks = make(map[string]string, len(checks))
		}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				logger.WarnContext(ctx, "health check failed",
					"check", name,
					"request_id", request.GetRequestID(ctx),
					"error", err,
				)
				resp.Checks[name] = "down"
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
		httputil.WriteJSON(w, status, resp)
	}
}
