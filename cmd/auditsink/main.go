// Command auditsink consumes the audit topic and writes events to the Postgres audit log.
// Compliance events are always stored; operations events are sampled at
// AUDIT_OPS_SAMPLE_RATE.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"bloodlink/internal/platform/config"
	"bloodlink/internal/platform/kafka"
	"bloodlink/internal/platform/logger"
	"bloodlink/internal/platform/postgres"
	audit "bloodlink/pkg/platform/audit"
	"bloodlink/pkg/platform/audit/consumer"
	auditpostgres "bloodlink/pkg/platform/audit/store/postgres"
)

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
		log.Error("audit sink exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	if cfg.Postgres.DSN == "" {
		return fmt.Errorf("DATABASE_URL is required for the audit sink")
	}
	db, err := postgres.Open(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	client, err := kafka.NewConsumer(ctx, cfg.Kafka)
	if err != nil {
		return err
	}
	defer client.Close()

	store := auditpostgres.New(db)
	router := consumer.NewRouter(log, consumer.NewComplianceHandler(store))
	router.Register(audit.CategoryCompliance, consumer.NewComplianceHandler(store))
	router.Register(audit.CategoryOperations, consumer.NewOpsHandler(store, consumer.NewSampler(cfg.Kafka.OpsSampleRate), log))

	log.Info("starting audit sink",
		"topic", cfg.Kafka.AuditTopic,
		"group", cfg.Kafka.AuditGroup,
		"ops_sample_rate", cfg.Kafka.OpsSampleRate,
	)
	return consumer.New(client, router, log).Run(ctx)
}
