package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	ledger "bloodlink/internal/ledger/models"
	"bloodlink/internal/pledge/models"
	"bloodlink/pkg/platform/httputil"
	"bloodlink/pkg/platform/middleware/auth"
	"bloodlink/pkg/platform/middleware/request"
)

// Service is the pledge command surface consumed by the HTTP layer.
type Service interface {
	Initiate(ctx context.Context, req *models.InitiateRequest) (*models.Checkout, error)
	Confirm(ctx context.Context, req *models.ConfirmRequest) (*models.ConfirmResult, error)
	List(ctx context.Context, donorEmail string) ([]*ledger.PledgeRecord, error)
	Summary(ctx context.Context) (*ledger.Summary, error)
}

type Handler struct {
	service  Service
	logger   *slog.Logger
	verifier auth.TokenVerifier
}

func New(service Service, logger *slog.Logger, verifier auth.TokenVerifier) *Handler {
	return &Handler{service: service, logger: logger, verifier: verifier}
}

// Register mounts the pledge routes. Only the funding summary is public.
func (h *Handler) Register(r chi.Router) {
	r.Get("/pledges/summary", h.HandleSummary)
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(h.verifier, h.logger))
		r.Post("/pledges/checkout", h.HandleCheckout)
		r.Post("/pledges/confirm", h.HandleConfirm)
		r.Get("/pledges", h.HandleList)
	})
}

func (h *Handler) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.InitiateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	out, err := h.service.Initiate(ctx, req)
	if err != nil {
		h.logger.ErrorContext(ctx, "pledge checkout failed", "request_id", requestID, "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, out)
}

// HandleConfirm answers 201 when this call recorded the pledge and 200 for the idempotent
// outcomes.
func (h *Handler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.ConfirmRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	out, err := h.service.Confirm(ctx, req)
	if err != nil {
		h.logger.WarnContext(ctx, "pledge confirmation failed",
			"request_id", requestID,
			"session_id", req.SessionID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	status := http.StatusOK
	if out.Outcome == models.OutcomeRecorded {
		status = http.StatusCreated
	}
	httputil.WriteJSON(w, status, out)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	recs, err := h.service.List(ctx, r.URL.Query().Get("email"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if recs == nil {
		recs = []*ledger.PledgeRecord{}
	}
	httputil.WriteJSON(w, http.StatusOK, recs)
}

func (h *Handler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.service.Summary(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sum)
}
