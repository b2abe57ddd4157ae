// Package handler exposes the login flow over HTTP. Browser-facing routes answer
// with redirects; SPA-facing routes answer with JSON.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"rentgate/internal/auth/models"
	id "rentgate/pkg/domain"
	dErrors "rentgate/pkg/domain-errors"
	"rentgate/pkg/platform/httputil"
	"rentgate/pkg/platform/middleware/session"
	"rentgate/pkg/requestcontext"
)

// Service defines the auth flow operations used by the handler.
type Service interface {
	InitiateLogin(ctx context.Context, sid id.SessionID, opts models.LoginOptions) (string, error)
	HandleCallback(ctx context.Context, sid id.SessionID, code, state string) (*models.CallbackResult, error)
	AbandonLogin(ctx context.Context, sid id.SessionID) error
	Refresh(ctx context.Context, sid id.SessionID) (*models.Identity, error)
	Logout(ctx context.Context, sid id.SessionID) (string, error)
	Identity(ctx context.Context, sid id.SessionID) (*models.Identity, error)
	CurrentBusiness(ctx context.Context, sid id.SessionID) (string, error)
	SelectBusiness(ctx context.Context, sid id.SessionID, businessID string) error
}

const (
	loginErrorPath   = "/login"
	invitationPath   = "/invitations/accept"
	homePath         = "/"
	maxBodyBytes     = 4 << 10
	msgLoginFailed   = "Login failed"
	msgSessionMissed = "session context error"
)

// Handler handles the /auth routes.
type Handler struct {
	auth   Service
	logger *slog.Logger
}

func New(auth Service, logger *slog.Logger) *Handler {
	return &Handler{auth: auth, logger: logger}
}

// Register mounts the routes. Session, request id and logging middleware are
// installed by the caller on the parent router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.Get("/login", h.handleLogin)
		r.Get("/register", h.handleRegister)
		r.Get("/callback", h.handleCallback)
		r.Post("/refresh", h.handleRefresh)
		r.Get("/logout", h.handleLogout)
		r.Post("/logout", h.handleLogout)
		r.Get("/me", h.handleMe)
		r.Put("/business", h.handleSelectBusiness)
	})
}

func (h *Handler) sessionID(w http.ResponseWriter, r *http.Request) (id.SessionID, bool) {
	sid := requestcontext.SessionID(r.Context())
	if sid.IsNil() {
		h.logger.ErrorContext(r.Context(), "session id missing from context despite session middleware",
			"request_id", requestcontext.RequestID(r.Context()),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, msgSessionMissed))
		return id.SessionID{}, false
	}
	return sid, true
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	h.startLogin(w, r, false)
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	h.startLogin(w, r, true)
}

func (h *Handler) startLogin(w http.ResponseWriter, r *http.Request, registration bool) {
	ctx := r.Context()
	sid, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	target, err := h.auth.InitiateLogin(ctx, sid, models.LoginOptions{
		Registration:    registration,
		InvitationToken: r.URL.Query().Get("invitation"),
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to start login",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// handleCallback never answers with JSON: the browser arrives here by a top-level
// redirect, so every outcome is another redirect.
func (h *Handler) handleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sid, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()

	if providerErr := q.Get("error"); providerErr != "" {
		msg := q.Get("error_description")
		if msg == "" {
			msg = providerErr
		}
		h.logger.WarnContext(ctx, "provider returned an error to the callback",
			"request_id", requestcontext.RequestID(ctx),
			"error", providerErr,
		)
		if err := h.auth.AbandonLogin(ctx, sid); err != nil {
			h.logger.ErrorContext(ctx, "failed to discard login state",
				"request_id", requestcontext.RequestID(ctx),
				"error", err,
			)
		}
		redirectLoginError(w, r, msg)
		return
	}

	result, err := h.auth.HandleCallback(ctx, sid, q.Get("code"), q.Get("state"))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeConflict) {
			if _, idErr := h.auth.Identity(ctx, sid); idErr == nil {
				http.Redirect(w, r, homePath, http.StatusFound)
				return
			}
		}
		h.logger.WarnContext(ctx, "callback failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		redirectLoginError(w, r, publicMessage(err))
		return
	}

	if !result.SessionID.IsNil() && !session.Rotate(w, r, result.SessionID) {
		h.logger.ErrorContext(ctx, "signed-in session cookie not issued",
			"request_id", requestcontext.RequestID(ctx),
		)
		redirectLoginError(w, r, msgLoginFailed)
		return
	}
	if result.InvitationToken != nil {
		http.Redirect(w, r, invitationPath+"?token="+url.QueryEscape(*result.InvitationToken), http.StatusFound)
		return
	}
	http.Redirect(w, r, homePath, http.StatusFound)
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sid, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	identity, err := h.auth.Refresh(ctx, sid)
	if err != nil {
		h.logger.InfoContext(ctx, "token refresh rejected",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &models.RefreshResponse{User: identity})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sid, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	target, err := h.auth.Logout(ctx, sid)
	if err != nil {
		h.logger.ErrorContext(ctx, "session not fully cleared on logout",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
	if target == "" {
		target = homePath
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sid, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	identity, err := h.auth.Identity(ctx, sid)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	businessID, err := h.auth.CurrentBusiness(ctx, sid)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to load business selection",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &models.MeResponse{User: identity, CurrentBusinessID: businessID})
}

func (h *Handler) handleSelectBusiness(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sid, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	var req models.SelectBusinessRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid select business request",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if err := h.auth.SelectBusiness(ctx, sid, req.BusinessID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func redirectLoginError(w http.ResponseWriter, r *http.Request, msg string) {
	http.Redirect(w, r, loginErrorPath+"?error="+url.QueryEscape(msg), http.StatusFound)
}

// publicMessage hides internal details from the login page.
func publicMessage(err error) string {
	de, ok := dErrors.As(err)
	if !ok || de.Code == dErrors.CodeInternal || de.Message == "" {
		return msgLoginFailed
	}
	return de.Message
}
