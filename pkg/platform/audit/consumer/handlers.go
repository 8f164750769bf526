package consumer

import (
	"context"
	"fmt"
	"log/slog"

	audit "bloodlink/pkg/platform/audit"
)

// ComplianceHandler persists account governance and ledger events. Failures are returned
// so nothing is lost.
type ComplianceHandler struct {
	store audit.Store
}

func NewComplianceHandler(store audit.Store) *ComplianceHandler {
	return &ComplianceHandler{store: store}
}

func (h *ComplianceHandler) Handle(ctx context.Context, event audit.Event) error {
	if err := h.store.Append(ctx, event); err != nil {
		return fmt.Errorf("persist %s for %s: %w", event.Action, event.Subject, err)
	}
	return nil
}

// OpsHandler persists a sample of routine request lifecycle events. It is best-effort.
type OpsHandler struct {
	store   audit.Store
	sampler *Sampler
	logger  *slog.Logger
}

func NewOpsHandler(store audit.Store, sampler *Sampler, logger *slog.Logger) *OpsHandler {
	return &OpsHandler{store: store, sampler: sampler, logger: logger}
}

func (h *OpsHandler) Handle(ctx context.Context, event audit.Event) error {
	if h.sampler != nil && !h.sampler.Keep(event) {
		return nil
	}
	if err := h.store.Append(ctx, event); err != nil {
		h.logger.Debug("failed to store ops event",
			"action", event.Action,
			"subject", event.Subject,
			"error", err,
		)
	}
	return nil
}
