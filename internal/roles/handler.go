package roles

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/opanel/backoffice/internal/access"
	"github.com/opanel/backoffice/internal/i18n"
	"github.com/opanel/backoffice/internal/platform/httpx"
	"github.com/opanel/backoffice/internal/shared"
	"github.com/opanel/backoffice/internal/view"
)

// Handler manages role management endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	templates *view.Engine
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, templates: templates}
}

// MountRoutes registers role routes.
func (h *Handler) MountRoutes(r chi.Router, guard access.Guard) {
	r.With(guard.Require(access.T("AccessRoleAction", "lists"))).Get("/access/roles", h.showRoles)
	r.With(guard.Require(access.T("AccessRoleAction", "list"))).Get("/access/roles/list", h.listRoles)
	r.With(guard.Require(access.T("AccessRoleAction", "create"))).Post("/access/roles/create", h.createRole)
	r.With(guard.Require(access.T("AccessRoleAction", "delete"))).Delete("/access/roles/{id}", h.deleteRole)
}

func (h *Handler) showRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.ListRoles(r.Context())
	if err != nil {
		h.logger.Error("list roles", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	if err := h.templates.Page(w, r, "pages/roles/index.html", "Roles", map[string]any{"Roles": roles}); err != nil {
		h.logger.Error("render template", slog.Any("error", err))
	}
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.ListRoles(r.Context())
	if err != nil {
		h.logger.Error("list roles", slog.Any("error", err))
		httpx.JSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": "Internal error"})
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": roles})
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	jsonBody := strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")

	var in CreateInput
	if jsonBody {
		if err := httpx.DecodeJSON(r, &in); err != nil {
			h.fail(w, r, true, http.StatusBadRequest, i18n.T(ctx, i18n.MsgInvalidRequest))
			return
		}
	} else {
		in = CreateInput{
			Code: r.PostFormValue("code"),
			Name: r.PostFormValue("name"),
			Memo: r.PostFormValue("memo"),
		}
	}

	role, err := h.service.CreateRole(ctx, shared.IdentityFromContext(ctx), in)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			h.fail(w, r, jsonBody, http.StatusBadRequest, i18n.T(ctx, i18n.MsgInvalidRequest))
		case errors.Is(err, ErrCodeTaken):
			h.fail(w, r, jsonBody, http.StatusConflict, i18n.T(ctx, i18n.MsgRoleCodeTaken))
		default:
			h.logger.Error("create role", slog.Any("error", err))
			h.fail(w, r, jsonBody, http.StatusInternalServerError, i18n.T(ctx, i18n.MsgServerError))
		}
		return
	}

	if jsonBody {
		httpx.JSON(w, http.StatusCreated, map[string]any{"success": true, "role": role})
		return
	}
	h.redirectWithFlash(w, r, h.templates.Prefix()+"/access/roles", shared.FlashSuccess, i18n.T(ctx, i18n.MsgRoleCreated))
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.JSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": i18n.T(ctx, i18n.MsgInvalidRequest)})
		return
	}
	err = h.service.DeleteRole(ctx, shared.IdentityFromContext(ctx), id)
	switch {
	case err == nil:
		httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "message": i18n.T(ctx, i18n.MsgRoleDeleted)})
	case errors.Is(err, ErrNotFound):
		httpx.JSON(w, http.StatusNotFound, map[string]any{"success": false, "error": http.StatusText(http.StatusNotFound)})
	case errors.Is(err, ErrRoleInUse):
		httpx.JSON(w, http.StatusConflict, map[string]any{"success": false, "error": i18n.T(ctx, i18n.MsgRoleInUse)})
	case errors.Is(err, ErrProtectedRole):
		httpx.JSON(w, http.StatusConflict, map[string]any{"success": false, "error": i18n.T(ctx, i18n.MsgRoleProtected)})
	default:
		h.logger.Error("delete role", slog.Int64("role_id", id), slog.Any("error", err))
		httpx.JSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": i18n.T(ctx, i18n.MsgServerError)})
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, asJSON bool, status int, message string) {
	if asJSON {
		httpx.JSON(w, status, map[string]any{"success": false, "error": message})
		return
	}
	h.redirectWithFlash(w, r, h.templates.Prefix()+"/access/roles", shared.FlashDanger, message)
}

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, location, kind, message string) {
	shared.AddFlash(r.Context(), kind, message)
	http.Redirect(w, r, location, http.StatusSeeOther)
}
