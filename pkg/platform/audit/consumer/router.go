// Package consumer drains audit events from Kafka into durable storage.
package consumer

import (
	"context"
	"log/slog"

	audit "bloodlink/pkg/platform/audit"
)

// Handler processes one decoded audit event. A returned error stops the consumer before
// the offset is committed, so the event is redelivered.
type Handler interface {
	Handle(ctx context.Context, event audit.Event) error
}

// Router dispatches events to category-specific handlers.
type Router struct {
	handlers map[audit.EventCategory]Handler
	fallback Handler
	logger   *slog.Logger
}

// NewRouter creates a category router with an optional fallback handler.
func NewRouter(logger *slog.Logger, fallback Handler) *Router {
	return &Router{
		handlers: make(map[audit.EventCategory]Handler),
		fallback: fallback,
		logger:   logger,
	}
}

// Register adds a handler for a category.
func (r *Router) Register(category audit.EventCategory, handler Handler) {
	r.handlers[category] = handler
}

func (r *Router) Handle(ctx context.Context, event audit.Event) error {
	handler, ok := r.handlers[event.Category]
	if !ok {
		if r.fallback != nil {
			return r.fallback.Handle(ctx, event)
		}
		r.logger.Warn("no handler for audit category, skipping event",
			"category", event.Category,
			"action", event.Action,
		)
		return nil // Commit to avoid redelivery
	}
	return handler.Handle(ctx, event)
}
