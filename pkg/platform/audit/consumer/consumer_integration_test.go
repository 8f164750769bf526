//go:build integration

package consumer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"bloodlink/internal/platform/config"
	"bloodlink/internal/platform/kafka"
	audit "bloodlink/pkg/platform/audit"
	auditkafka "bloodlink/pkg/platform/audit/store/kafka"
	auditmemory "bloodlink/pkg/platform/audit/store/memory"
	"bloodlink/pkg/testutil/containers"
)

func TestProducedEventsReachTheSink(t *testing.T) {
	broker := containers.GetManager().GetKafka(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cfg := config.Kafka{
		Brokers:    broker.Brokers,
		AuditTopic: "bloodlink.audit.it",
		AuditGroup: "bloodlink-audit-it",
	}
	producer, err := kafka.New(ctx, cfg)
	require.NoError(t, err)
	defer producer.Close()
	require.NoError(t, kafka.EnsureTopic(ctx, producer, cfg.AuditTopic))

	at := time.Date(2030, 1, 15, 10, 30, 0, 0, time.UTC)
	store := auditkafka.New(producer, cfg.AuditTopic)
	require.NoError(t, store.Append(ctx, audit.Event{
		Category: audit.CategoryCompliance, Timestamp: at, Action: "account.status_changed", Subject: "acc-1",
	}))
	require.NoError(t, store.Append(ctx, audit.Event{
		Category: audit.CategoryOperations, Timestamp: at, Action: "request.created", Subject: "req-1",
	}))

	client, err := kafka.NewConsumer(ctx, cfg)
	require.NoError(t, err)
	defer client.Close()

	compliance := auditmemory.NewInMemoryStore()
	ops := auditmemory.NewInMemoryStore()
	runCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() {
		done <- New(client, newRouter(compliance, ops, NewSampler(1)), discardLogger()).Run(runCtx)
	}()

	require.Eventually(t, func() bool {
		c, _ := compliance.ListAll(ctx)
		o, _ := ops.ListAll(ctx)
		return len(c) == 1 && len(o) == 1
	}, 30*time.Second, 200*time.Millisecond)

	stop()
	require.NoError(t, <-done)
}
