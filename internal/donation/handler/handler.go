package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"bloodlink/internal/donation/models"
	id "bloodlink/pkg/domain"
	dErrors "bloodlink/pkg/domain-errors"
	"bloodlink/pkg/platform/httputil"
	"bloodlink/pkg/platform/middleware/auth"
	"bloodlink/pkg/platform/middleware/request"
	platformstrings "bloodlink/pkg/platform/strings"
)

// Service is the donation request command surface consumed by the HTTP layer.
type Service interface {
	Create(ctx context.Context, in *models.CreateRequestInput) (*models.CreateOutcome, error)
	Get(ctx context.Context, requestID id.DonationRequestID) (*models.DonationRequest, error)
	ListByRequester(ctx context.Context, requesterEmail string, recent bool, statuses []models.Status) ([]*models.DonationRequest, error)
	ListPublic(ctx context.Context, statuses []models.Status, limit, offset int) (*models.RequestPage, error)
	Update(ctx context.Context, requestID id.DonationRequestID, in *models.UpdateRequestInput) (*models.DonationRequest, error)
	Claim(ctx context.Context, requestID id.DonationRequestID, in *models.ClaimInput) (*models.DonationRequest, error)
	SetStatus(ctx context.Context, requestID id.DonationRequestID, in *models.SetStatusInput) (*models.DonationRequest, error)
	Delete(ctx context.Context, requestID id.DonationRequestID) error
}

type Handler struct {
	service  Service
	logger   *slog.Logger
	verifier auth.TokenVerifier
}

func New(service Service, logger *slog.Logger, verifier auth.TokenVerifier) *Handler {
	return &Handler{service: service, logger: logger, verifier: verifier}
}

// Register mounts the donation request routes. The collection listing is public unless it
// is scoped by email; everything else requires a verified token.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(auth.OptionalAuth(h.verifier, h.logger))
		r.Get("/donation-requests", h.HandleList)
	})
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(h.verifier, h.logger))
		r.Post("/donation-requests", h.HandleCreate)
		r.Get("/donation-requests/{id}", h.HandleGet)
		r.Patch("/donation-requests/{id}", h.HandleUpdate)
		r.Post("/donation-requests/{id}/claim", h.HandleClaim)
		r.Patch("/donation-requests/{id}/status", h.HandleSetStatus)
		r.Delete("/donation-requests/{id}", h.HandleDelete)
	})
}

// HandleCreate answers 201 with the new request, or 200 with {"eligible":false,...} when
// the requester may not create requests.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	in, ok := httputil.DecodeAndPrepare[models.CreateRequestInput](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	out, err := h.service.Create(ctx, in)
	if err != nil {
		h.logger.ErrorContext(ctx, "create donation request failed", "request_id", requestID, "error", err)
		httputil.WriteError(w, err)
		return
	}
	if !out.Eligible {
		httputil.WriteJSON(w, http.StatusOK, out)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, out)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	statuses, err := parseStatuses(query["status"])
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if email := query.Get("email"); email != "" {
		recent := query.Get("recent") == "true"
		reqs, err := h.service.ListByRequester(ctx, email, recent, statuses)
		if err != nil {
			h.logger.WarnContext(ctx, "scoped listing rejected", "request_id", request.GetRequestID(ctx), "error", err)
			httputil.WriteError(w, err)
			return
		}
		if reqs == nil {
			reqs = []*models.DonationRequest{}
		}
		httputil.WriteJSON(w, http.StatusOK, reqs)
		return
	}

	limit, err := intParam(query.Get("limit"), "limit")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	offset, err := intParam(query.Get("offset"), "offset")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	page, err := h.service.ListPublic(ctx, statuses, limit, offset)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if page.Items == nil {
		page.Items = []*models.DonationRequest{}
	}
	httputil.WriteJSON(w, http.StatusOK, page)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	requestID, err := id.ParseDonationRequestID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, err := h.service.Get(r.Context(), requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, req)
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := request.GetRequestID(ctx)

	requestID, err := id.ParseDonationRequestID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	in, ok := httputil.DecodeAndPrepare[models.UpdateRequestInput](w, r, h.logger, ctx, reqID)
	if !ok {
		return
	}
	updated, err := h.service.Update(ctx, requestID, in)
	if err != nil {
		h.logger.WarnContext(ctx, "update donation request failed", "request_id", reqID, "donation_request_id", requestID.String(), "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, updated)
}

func (h *Handler) HandleClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := request.GetRequestID(ctx)

	requestID, err := id.ParseDonationRequestID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	in, ok := httputil.DecodeAndPrepare[models.ClaimInput](w, r, h.logger, ctx, reqID)
	if !ok {
		return
	}
	claimed, err := h.service.Claim(ctx, requestID, in)
	if err != nil {
		h.logger.WarnContext(ctx, "claim failed", "request_id", reqID, "donation_request_id", requestID.String(), "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, claimed)
}

func (h *Handler) HandleSetStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := request.GetRequestID(ctx)

	requestID, err := id.ParseDonationRequestID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	in, ok := httputil.DecodeAndPrepare[models.SetStatusInput](w, r, h.logger, ctx, reqID)
	if !ok {
		return
	}
	updated, err := h.service.SetStatus(ctx, requestID, in)
	if err != nil {
		h.logger.WarnContext(ctx, "status change failed", "request_id", reqID, "donation_request_id", requestID.String(), "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, updated)
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID, err := id.ParseDonationRequestID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.Delete(ctx, requestID); err != nil {
		h.logger.WarnContext(ctx, "delete failed", "request_id", request.GetRequestID(ctx), "donation_request_id", requestID.String(), "error", err)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseStatuses(raw []string) ([]models.Status, error) {
	values := platformstrings.SplitList(raw)
	if len(values) == 0 {
		return nil, nil
	}
	out := make([]models.Status, 0, len(values))
	for _, v := range values {
		st, err := models.ParseStatus(v)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

func intParam(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, dErrors.New(dErrors.CodeValidation, name+" must be a non-negative integer")
	}
	return n, nil
}
