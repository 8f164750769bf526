package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"bloodlink/internal/authz"
	donationhandler "bloodlink/internal/donation/handler"
	donationmetrics "bloodlink/internal/donation/metrics"
	donationservice "bloodlink/internal/donation/service"
	identityhandler "bloodlink/internal/identity/handler"
	identityservice "bloodlink/internal/identity/service"
	jwttoken "bloodlink/internal/jwt_token"
	"bloodlink/internal/platform/config"
	"bloodlink/internal/platform/httpserver"
	"bloodlink/internal/platform/logger"
	"bloodlink/internal/platform/metrics"
	"bloodlink/internal/platform/otel"
	pledgehandler "bloodlink/internal/pledge/handler"
	pledgemetrics "bloodlink/internal/pledge/metrics"
	"bloodlink/internal/pledge/processor"
	pledgeservice "bloodlink/internal/pledge/service"
	httptransport "bloodlink/internal/transport/http"
	"bloodlink/pkg/platform/audit/publisher"
)

const auditBufferSize = 1024

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

// run wires dependencies and blocks until ctx is cancelled and the server has drained.
func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	shutdownTracing, err := otel.Setup(ctx, cfg.Otel)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Warn("tracing shutdown failed", "error", err)
		}
	}()

	deps, err := openInfra(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer deps.Close()

	st, err := buildStores(cfg, deps)
	if err != nil {
		return err
	}

	auditPublisher := publisher.NewPublisher(st.audit,
		publisher.WithLogger(log),
		publisher.WithAsyncBuffer(auditBufferSize),
	)
	defer auditPublisher.Close()

	platformMetrics := metrics.New()
	guard := authz.NewGuard(st.accounts)
	verifier := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.JWTIssuer, cfg.Auth.JWTAudience)

	identitySvc := identityservice.New(st.accounts, guard,
		identityservice.WithLogger(log),
		identityservice.WithAuditPublisher(auditPublisher),
		identityservice.WithMetrics(platformMetrics),
		identityservice.WithBootstrapAdmins(cfg.Auth.BootstrapAdmins...),
	)
	donationSvc := donationservice.New(st.requests, st.accounts, guard,
		donationservice.WithLogger(log),
		donationservice.WithAuditPublisher(auditPublisher),
		donationservice.WithMetrics(donationmetrics.New()),
	)
	pledgeSvc := pledgeservice.New(st.pledges, processor.NewStripe(cfg.Stripe, processor.WithLogger(log)), guard,
		pledgeservice.Settings{
			Currency:   cfg.Stripe.Currency,
			SuccessURL: cfg.Stripe.SuccessURL,
			CancelURL:  cfg.Stripe.CancelURL,
		},
		pledgeservice.WithLogger(log),
		pledgeservice.WithAuditPublisher(auditPublisher),
		pledgeservice.WithMetrics(pledgemetrics.New()),
	)

	rateLimit, err := buildRateLimit(cfg, deps)
	if err != nil {
		return err
	}

	router := httptransport.NewRouter(httptransport.Options{
		Logger:         log,
		Latency:        platformMetrics,
		RequestTimeout: cfg.Server.RequestTimeout,
		MetricsToken:   cfg.Server.MetricsToken,
		HealthChecks:   deps.healthChecks(),
		RateLimit:      rateLimit,
	},
		identityhandler.New(identitySvc, log, verifier),
		donationhandler.New(donationSvc, log, verifier),
		pledgehandler.New(pledgeSvc, log, verifier),
	)
	srv := httpserver.New(cfg.Server, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting bloodlink",
			"addr", cfg.Server.Addr,
			"storage", cfg.Storage.Backend,
			"ledger", cfg.Storage.Ledger(),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})
	return g.Wait()
}
