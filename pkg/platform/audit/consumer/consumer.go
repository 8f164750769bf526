package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	auditkafka "bloodlink/pkg/platform/audit/store/kafka"
)

// Fetcher is the subset of a consumer-group *kgo.Client the consumer needs.
type Fetcher interface {
	PollFetches(ctx context.Context) kgo.Fetches
	CommitUncommittedOffsets(ctx context.Context) error
}

// Consumer polls audit records, hands each to a Handler and commits after every batch.
// Malformed records are logged and skipped.
type Consumer struct {
	client  Fetcher
	handler Handler
	logger  *slog.Logger
}

func New(client Fetcher, handler Handler, logger *slog.Logger) *Consumer {
	return &Consumer{client: client, handler: handler, logger: logger}
}

// Run blocks until ctx is cancelled or a handler fails.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		if err := c.poll(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

func (c *Consumer) poll(ctx context.Context) error {
	fetches := c.client.PollFetches(ctx)
	if fetches.IsClientClosed() {
		return kgo.ErrClientClosed
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	for _, fe := range fetches.Errors() {
		if errors.Is(fe.Err, context.Canceled) {
			return fe.Err
		}
		c.logger.WarnContext(ctx, "audit fetch error",
			"topic", fe.Topic,
			"partition", fe.Partition,
			"error", fe.Err,
		)
	}

	var handleErr error
	fetches.EachRecord(func(rec *kgo.Record) {
		if handleErr != nil {
			return
		}
		event, err := auditkafka.Decode(rec.Value)
		if err != nil {
			c.logger.ErrorContext(ctx, "skipping malformed audit record",
				"topic", rec.Topic,
				"partition", rec.Partition,
				"offset", rec.Offset,
				"error", err,
			)
			return
		}
		if err := c.handler.Handle(ctx, event); err != nil {
			handleErr = fmt.Errorf("handle audit record at %s/%d/%d: %w", rec.Topic, rec.Partition, rec.Offset, err)
		}
	})
	if handleErr != nil {
		return handleErr
	}
	if fetches.NumRecords() == 0 {
		return nil
	}
	if err := c.client.CommitUncommittedOffsets(ctx); err != nil {
		return fmt.Errorf("commit audit offsets: %w", err)
	}
	return nil
}
