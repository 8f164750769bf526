package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/twmb/franz-go/pkg/kgo"

	donationservice "bloodlink/internal/donation/service"
	"bloodlink/internal/donation/store/request"
	identityservice "bloodlink/internal/identity/service"
	"bloodlink/internal/identity/store/account"
	"bloodlink/internal/ledger/store/pledge"
	"bloodlink/internal/platform/config"
	"bloodlink/internal/platform/dynamo"
	"bloodlink/internal/platform/kafka"
	"bloodlink/internal/platform/postgres"
	"bloodlink/internal/platform/redis"
	pledgeservice "bloodlink/internal/pledge/service"
	ratelimitmetrics "bloodlink/internal/ratelimit/metrics"
	ratelimitmiddleware "bloodlink/internal/ratelimit/middleware"
	ratelimitmodels "bloodlink/internal/ratelimit/models"
	ratelimitservice "bloodlink/internal/ratelimit/service"
	"bloodlink/internal/ratelimit/store/bucket"
	httptransport "bloodlink/internal/transport/http"
	audit "bloodlink/pkg/platform/audit"
	auditkafka "bloodlink/pkg/platform/audit/store/kafka"
	auditmemory "bloodlink/pkg/platform/audit/store/memory"
	auditpostgres "bloodlink/pkg/platform/audit/store/postgres"
)

// infra holds the external clients opened at start and closed on shutdown. Unused clients
// stay nil.
type infra struct {
	log    *slog.Logger
	db     *sql.DB
	redis  *redis.Client
	dynamo *dynamodb.Client
	kafka  *kgo.Client
}

func needsPostgres(cfg config.Config) bool {
	return cfg.Storage.Backend == config.BackendPostgres || cfg.Storage.Ledger() == config.BackendPostgres
}

func openInfra(ctx context.Context, cfg config.Config, log *slog.Logger) (*infra, error) {
	in := &infra{log: log}
	var err error

	if needsPostgres(cfg) {
		if in.db, err = postgres.Open(ctx, cfg.Postgres); err != nil {
			return nil, err
		}
		if err := postgres.EnsureSchema(ctx, in.db); err != nil {
			in.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
	}
	if cfg.NeedsRedis() {
		if in.redis, err = redis.New(ctx, cfg.Redis); err != nil {
			in.Close()
			return nil, err
		}
	}
	if cfg.Storage.Ledger() == config.BackendDynamoDB {
		if in.dynamo, err = dynamo.New(ctx, cfg.Dynamo); err != nil {
			in.Close()
			return nil, err
		}
		if err := dynamo.EnsureLedgerTable(ctx, in.dynamo, cfg.Dynamo.LedgerTable); err != nil {
			in.Close()
			return nil, err
		}
	}
	if in.kafka, err = kafka.New(ctx, cfg.Kafka); err != nil {
		in.Close()
		return nil, err
	}
	if in.kafka != nil {
		if err := kafka.EnsureTopic(ctx, in.kafka, cfg.Kafka.AuditTopic); err != nil {
			log.Warn("audit topic not ensured", "topic", cfg.Kafka.AuditTopic, "error", err)
		}
	}
	return in, nil
}

func (in *infra) healthChecks() map[string]httptransport.HealthCheck {
	checks := map[string]httptransport.HealthCheck{}
	if in.db != nil {
		checks["postgres"] = in.db.PingContext
	}
	if in.redis != nil {
		checks["redis"] = in.redis.Health
	}
	if in.kafka != nil {
		checks["kafka"] = in.kafka.Ping
	}
	return checks
}

func (in *infra) Close() {
	if in.kafka != nil {
		in.kafka.Close()
	}
	if in.redis != nil {
		if err := in.redis.Close(); err != nil {
			in.log.Warn("redis close failed", "error", err)
		}
	}
	if in.db != nil {
		if err := in.db.Close(); err != nil {
			in.log.Warn("postgres close failed", "error", err)
		}
	}
}

type stores struct {
	accounts identityservice.AccountStore
	requests donationservice.RequestStore
	pledges  pledgeservice.LedgerStore
	audit    audit.Store
}

func buildStores(cfg config.Config, in *infra) (*stores, error) {
	st := &stores{}

	switch cfg.Storage.Backend {
	case config.BackendPostgres:
		st.accounts = account.NewPostgres(in.db)
		st.requests = request.NewPostgres(in.db)
		st.audit = auditpostgres.New(in.db)
	default:
		st.accounts = account.NewInMemory()
		st.requests = request.NewInMemory()
		st.audit = auditmemory.NewInMemoryStore()
	}

	switch cfg.Storage.Ledger() {
	case config.BackendPostgres:
		st.pledges = pledge.NewPostgres(in.db)
	case config.BackendRedis:
		st.pledges = pledge.NewRedis(in.redis.Client)
	case config.BackendDynamoDB:
		st.pledges = pledge.NewDynamo(in.dynamo, cfg.Dynamo.LedgerTable)
	case config.BackendMemory:
		st.pledges = pledge.NewInMemory()
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.Storage.Ledger())
	}

	if in.kafka != nil {
		st.audit = audit.Fanout{st.audit, auditkafka.New(in.kafka, cfg.Kafka.AuditTopic)}
	}
	return st, nil
}

// buildRateLimit returns the router rate limit middleware on the configured bucket store.
func buildRateLimit(cfg config.Config, in *infra) (func(http.Handler) http.Handler, error) {
	var buckets ratelimitservice.BucketStore = bucket.NewInMemoryBucketStore()
	if cfg.RateLimit.Backend == config.BackendRedis {
		buckets = bucket.NewRedisBucketStore(in.redis.Client)
	}
	limiter, err := ratelimitservice.New(buckets,
		ratelimitservice.WithLogger(in.log),
		ratelimitservice.WithMetrics(ratelimitmetrics.New()),
		ratelimitservice.WithLimit(ratelimitmodels.ClassRead, ratelimitmodels.Limit{Requests: cfg.RateLimit.ReadPerMinute, Window: time.Minute}),
		ratelimitservice.WithLimit(ratelimitmodels.ClassWrite, ratelimitmodels.Limit{Requests: cfg.RateLimit.WritePerMinute, Window: time.Minute}),
		ratelimitservice.WithLimit(ratelimitmodels.ClassPayment, ratelimitmodels.Limit{Requests: cfg.RateLimit.PaymentPerMinute, Window: time.Minute}),
	)
	if err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	mw := ratelimitmiddleware.New(limiter, in.log, ratelimitmiddleware.WithDisabled(!cfg.RateLimit.Enabled))
	return mw.Handler, nil
}
