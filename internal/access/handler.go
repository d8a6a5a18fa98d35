package access

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/opanel/backoffice/internal/i18n"
	"github.com/opanel/backoffice/internal/platform/httpx"
	"github.com/opanel/backoffice/internal/shared"
	"github.com/opanel/backoffice/internal/view"
)

// Guard is satisfied by *Gate.
type Guard interface {
	Require(target Target) func(http.Handler) http.Handler
}

// Handler serves the permission management endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	templates *view.Engine
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, templates: templates}
}

// MountRoutes registers the access routes, each behind its own target.
func (h *Handler) MountRoutes(r chi.Router, guard Guard) {
	denied := guard.Require(T("AccessDeniedAction", "show"))
	r.With(denied).Get("/access-denied", h.showDenied)
	r.With(denied).Get("/access-denied/{url}", h.showDenied)

	r.With(guard.Require(T("AccessRefineAction", "show"))).Get("/access/refine-names", h.showRefine)
	r.With(guard.Require(T("AccessRefineAction", "update"))).Post("/access/refine-names", h.submitRefine)
	r.With(guard.Require(T("AccessGroupAction", "matrix"))).Get("/access/group/{id}/matrix", h.matrix)
	r.With(guard.Require(T("AccessGroupAction", "permissions"))).Get("/access/group/{id}/permissions", h.permissions)
	r.With(guard.Require(T("AccessUpdatePermissionAction", "update"))).Post("/access/update-permission", h.updatePermission)
}

type deniedPageData struct {
	Path string
}

func (h *Handler) showDenied(w http.ResponseWriter, r *http.Request) {
	var data deniedPageData
	if raw := chi.URLParam(r, "url"); raw != "" {
		if path, err := url.PathUnescape(raw); err == nil {
			data.Path = path
		}
	}
	if err := h.templates.Page(w, r, "pages/access/denied.html", "Access denied", data); err != nil {
		h.serverError(w, "render access denied", err)
	}
}

type refinePageData struct {
	Functions []Function
}

func (h *Handler) showRefine(w http.ResponseWriter, r *http.Request) {
	fns, err := h.service.ListFunctions(r.Context())
	if err != nil {
		h.serverError(w, "list functions", err)
		return
	}
	if err := h.templates.Page(w, r, "pages/access/refine.html", "Function names", refinePageData{Functions: fns}); err != nil {
		h.serverError(w, "render refine names", err)
	}
}

func (h *Handler) submitRefine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	target := h.templates.Prefix() + "/access/refine-names"

	var updates []NameUpdate
	if err := json.Unmarshal([]byte(r.PostFormValue("json")), &updates); err != nil {
		shared.AddFlash(ctx, shared.FlashDanger, i18n.T(ctx, i18n.MsgRefineInvalid))
		http.Redirect(w, r, target, http.StatusSeeOther)
		return
	}
	result := h.service.RefineNames(ctx, shared.IdentityFromContext(ctx), updates)
	kind := shared.FlashSuccess
	if result.Failed > 0 {
		kind = shared.FlashWarning
	}
	shared.AddFlash(ctx, kind, i18n.T(ctx, i18n.MsgRefineResult, result.Updated, result.Failed))
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (h *Handler) matrix(w http.ResponseWriter, r *http.Request) {
	roleID, ok := roleIDParam(r)
	if !ok {
		invalidInput(w)
		return
	}
	ids, err := h.service.EnabledFunctionIDs(r.Context(), roleID)
	if err != nil {
		h.storeError(w, "load matrix", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"funcIds": ids})
}

func (h *Handler) permissions(w http.ResponseWriter, r *http.Request) {
	roleID, ok := roleIDParam(r)
	if !ok {
		invalidInput(w)
		return
	}
	perms, err := h.service.Permissions(r.Context(), roleID)
	if err != nil {
		h.storeError(w, "load permissions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": perms})
}

func (h *Handler) updatePermission(w http.ResponseWriter, r *http.Request) {
	var in UpdatePermissionInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		invalidInput(w)
		return
	}
	err := h.service.UpdatePermission(r.Context(), shared.IdentityFromContext(r.Context()), in)
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			invalidInput(w)
			return
		}
		h.storeError(w, "update permission", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true})
}

func roleIDParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(chi.URLParam(r, "id")), 10, 64)
	return id, err == nil && id > 0
}

func invalidInput(w http.ResponseWriter) {
	httpx.JSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "Invalid input"})
}

func (h *Handler) storeError(w http.ResponseWriter, message string, err error) {
	if errors.Is(err, ErrNotFound) {
		httpx.JSON(w, http.StatusNotFound, map[string]any{"success": false, "error": "Not found"})
		return
	}
	h.logger.Error(message, slog.Any("error", err))
	httpx.JSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": "Internal error"})
}

func (h *Handler) serverError(w http.ResponseWriter, message string, err error) {
	h.logger.Error(message, slog.Any("error", err))
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}
