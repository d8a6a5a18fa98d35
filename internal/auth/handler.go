package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/opanel/backoffice/internal/access"
	"github.com/opanel/backoffice/internal/audit"
	"github.com/opanel/backoffice/internal/i18n"
	"github.com/opanel/backoffice/internal/shared"
	"github.com/opanel/backoffice/internal/view"
)

// Recorder is satisfied by *audit.Recorder.
type Recorder interface {
	Record(ctx context.Context, entry audit.Entry)
}

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	templates      *view.Engine
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	recorder       Recorder
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance. recorder may be nil.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, sessions *shared.SessionManager, csrf *shared.CSRFManager, recorder Recorder) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		service:        service,
		templates:      templates,
		sessionManager: sessions,
		csrfManager:    csrf,
		recorder:       recorder,
		validator:      validator.New(),
	}
}

// MountRoutes registers auth routes on provided router. Logout is open to
// any session so an account that lost its grants can still leave.
func (h *Handler) MountRoutes(r chi.Router, guard access.Guard) {
	r.With(guard.Require(access.T("AuthAction", "showLogin"))).Get("/login", h.showLogin)
	r.With(guard.Require(access.T("AuthAction", "login"))).Post("/login", h.handleLogin)
	r.Get("/logout", h.handleLogout)
	r.Post("/logout", h.handleLogout)
}

type loginForm struct {
	Account  string `validate:"required,max=50"`
	Password string `validate:"required,max=72"`
}

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	if shared.IdentityFromContext(r.Context()) != nil {
		http.Redirect(w, r, h.templates.Prefix()+"/dashboard", http.StatusFound)
		return
	}
	if err := h.templates.Page(w, r, "pages/login.html", "Login", nil); err != nil {
		h.logger.Error("render login", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	loginURL := h.templates.Prefix() + "/login"
	form := loginForm{
		Account:  strings.TrimSpace(r.PostFormValue("account")),
		Password: r.PostFormValue("password"),
	}
	if err := h.validator.Struct(form); err != nil {
		h.redirectWithFlash(w, r, loginURL, shared.FlashInfo, i18n.T(ctx, i18n.MsgInvalidCredentials))
		return
	}

	acc, err := h.service.Authenticate(ctx, form.Account, form.Password)
	if err != nil {
		msg := i18n.T(ctx, i18n.MsgInvalidCredentials)
		switch {
		case errors.Is(err, shared.ErrAccountDisabled):
			msg = i18n.T(ctx, i18n.MsgAccountDisabled)
		case !errors.Is(err, shared.ErrInvalidCredentials):
			h.logger.Error("authenticate", slog.Any("error", err))
			msg = i18n.T(ctx, i18n.MsgServerError)
		}
		h.record(ctx, audit.Entry{
			ActorName: form.Account,
			Action:    audit.ActionLoginFailed,
			Target:    "user:" + form.Account,
			Memo:      err.Error(),
		})
		h.redirectWithFlash(w, r, loginURL, shared.FlashDanger, msg)
		return
	}

	sess := shared.SessionFromContext(ctx)
	if sess == nil {
		h.logger.Error("session missing during login")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	loginAt, err := h.service.MarkLogin(ctx, acc.ID)
	if err != nil {
		h.logger.Warn("update last login", slog.Int64("user_id", acc.ID), slog.Any("error", err))
	}
	h.sessionManager.Renew(sess)
	h.csrfManager.Rotate(sess)
	identity := shared.Identity{
		UserID:      acc.ID,
		Username:    acc.Username,
		DisplayName: acc.DisplayName,
		RoleID:      acc.RoleID,
		LoginAt:     loginAt,
	}
	sess.SetIdentity(identity)

	expiresAt := time.Now().Add(h.sessionManager.TTL())
	if err := h.service.RegisterSession(ctx, sess.ID, acc.ID, expiresAt, r.RemoteAddr, r.UserAgent()); err != nil {
		h.logger.Warn("register session", slog.Any("error", err))
	}

	h.record(ctx, audit.Entry{
		ActorID:   acc.ID,
		ActorName: acc.Username,
		Action:    audit.ActionLogin,
		Target:    "user:" + acc.Username,
	})
	name := acc.DisplayName
	if name == "" {
		name = acc.Username
	}
	h.redirectWithFlash(w, r, h.templates.Prefix()+"/dashboard", shared.FlashSuccess, i18n.T(ctx, i18n.MsgWelcome, name))
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := shared.SessionFromContext(ctx)
	if sess != nil {
		if id := sess.Identity(); id != nil {
			if err := h.service.RemoveSession(ctx, sess.ID); err != nil {
				h.logger.Warn("remove session", slog.Any("error", err))
			}
			h.record(ctx, audit.Entry{
				ActorID:   id.UserID,
				ActorName: id.Username,
				Action:    audit.ActionLogout,
				Target:    "user:" + id.Username,
			})
		}
		// A fresh anonymous session carries the goodbye flash.
		sess.ClearIdentity()
		h.sessionManager.Renew(sess)
		h.csrfManager.Rotate(sess)
		sess.AddFlash(shared.FlashMessage{Kind: shared.FlashSuccess, Message: i18n.T(ctx, i18n.MsgLoggedOut)})
	}
	http.Redirect(w, r, h.templates.Prefix()+"/login", http.StatusFound)
}

func (h *Handler) record(ctx context.Context, entry audit.Entry) {
	if h.recorder != nil {
		h.recorder.Record(ctx, entry)
	}
}

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, location, kind, message string) {
	shared.AddFlash(r.Context(), kind, message)
	http.Redirect(w, r, location, http.StatusFound)
}
