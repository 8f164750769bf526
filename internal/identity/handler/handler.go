package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"bloodlink/internal/identity/models"
	id "bloodlink/pkg/domain"
	"bloodlink/pkg/platform/httputil"
	"bloodlink/pkg/platform/middleware/auth"
	"bloodlink/pkg/platform/middleware/request"
)

// Service is the account command surface consumed by the HTTP layer.
type Service interface {
	Register(ctx context.Context, req *models.RegisterAccountRequest) (*models.Account, error)
	List(ctx context.Context, emailFilter string) ([]*models.Account, error)
	Me(ctx context.Context) (*models.Account, error)
	UpdateProfile(ctx context.Context, accountID id.AccountID, req *models.UpdateProfileRequest) (*models.Account, error)
	UpdateStatus(ctx context.Context, accountID id.AccountID, req *models.UpdateStatusRequest) (*models.Account, error)
	UpdateRole(ctx context.Context, accountID id.AccountID, req *models.UpdateRoleRequest) (*models.Account, error)
}

type Handler struct {
	service  Service
	logger   *slog.Logger
	verifier auth.TokenVerifier
}

func New(service Service, logger *slog.Logger, verifier auth.TokenVerifier) *Handler {
	return &Handler{service: service, logger: logger, verifier: verifier}
}

// Register mounts the account routes. Every route requires a verified token.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(h.verifier, h.logger))
		r.Post("/users", h.HandleRegister)
		r.Get("/users", h.HandleList)
		r.Get("/users/me", h.HandleMe)
		r.Patch("/users/{id}", h.HandleUpdateProfile)
		r.Patch("/users/{id}/status", h.HandleUpdateStatus)
		r.Patch("/users/{id}/role", h.HandleUpdateRole)
	})
}

func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.RegisterAccountRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	acc, err := h.service.Register(ctx, req)
	if err != nil {
		h.logger.WarnContext(ctx, "account registration failed", "request_id", requestID, "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, acc)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	accounts, err := h.service.List(ctx, r.URL.Query().Get("email"))
	if err != nil {
		h.logger.WarnContext(ctx, "list accounts failed", "request_id", request.GetRequestID(ctx), "error", err)
		httputil.WriteError(w, err)
		return
	}
	if accounts == nil {
		accounts = []*models.Account{}
	}
	httputil.WriteJSON(w, http.StatusOK, accounts)
}

func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	acc, err := h.service.Me(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, acc)
}

func (h *Handler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	accountID, err := id.ParseAccountID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.UpdateProfileRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	acc, err := h.service.UpdateProfile(ctx, accountID, req)
	if err != nil {
		h.logger.WarnContext(ctx, "profile update failed", "request_id", requestID, "account_id", accountID.String(), "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, acc)
}

func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	accountID, err := id.ParseAccountID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.UpdateStatusRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	acc, err := h.service.UpdateStatus(ctx, accountID, req)
	if err != nil {
		h.logger.WarnContext(ctx, "status update failed", "request_id", requestID, "account_id", accountID.String(), "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, acc)
}

func (h *Handler) HandleUpdateRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	accountID, err := id.ParseAccountID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.UpdateRoleRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	acc, err := h.service.UpdateRole(ctx, accountID, req)
	if err != nil {
		h.logger.WarnContext(ctx, "role update failed", "request_id", requestID, "account_id", accountID.String(), "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, acc)
}
