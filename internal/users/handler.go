package users

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/opanel/backoffice/internal/access"
	"github.com/opanel/backoffice/internal/i18n"
	"github.com/opanel/backoffice/internal/platform/httpx"
	"github.com/opanel/backoffice/internal/roles"
	"github.com/opanel/backoffice/internal/shared"
	"github.com/opanel/backoffice/internal/view"
)

// RoleLister supplies the role choices for filters and forms.
type RoleLister interface {
	ListRoles(ctx context.Context) ([]roles.Role, error)
}

// Handler manages user administration endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	roles     RoleLister
	templates *view.Engine
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, roleLister RoleLister, templates *view.Engine) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, roles: roleLister, templates: templates}
}

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router, guard access.Guard) {
	r.With(guard.Require(access.T("UserAction", "index"))).Get("/users", h.showIndex)
	r.With(guard.Require(access.T("UserAction", "list"))).Get("/users/list", h.listUsers)
	r.With(guard.Require(access.T("UserAction", "showCreateForm"))).Get("/users/create", h.showCreateForm)
	r.With(guard.Require(access.T("UserAction", "create"))).Post("/users/create", h.createUser)
	r.With(guard.Require(access.T("UserAction", "showEditForm"))).Get("/users/{id}/edit", h.showEditForm)
	r.With(guard.Require(access.T("UserAction", "update"))).Post("/users/{id}/edit", h.updateUser)
	r.With(guard.Require(access.T("UserAction", "resetPassword"))).Post("/users/{id}/reset-password", h.resetPassword)
	r.With(guard.Require(access.T("UserAction", "toggleStatus"))).Post("/users/{id}/toggle-status", h.toggleStatus)
	r.With(guard.Require(access.T("UserAction", "delete"))).Post("/users/{id}/delete", h.deleteUser)
}

type formData struct {
	User   User
	Roles  []roles.Role
	Errors map[string]string
	IsEdit bool
}

func (h *Handler) showIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	filter := parseFilter(r)
	list, total, err := h.service.ListUsers(ctx, filter)
	if err != nil {
		h.logger.Error("list users", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	roleList, err := h.roles.ListRoles(ctx)
	if err != nil {
		h.logger.Error("list roles", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.render(w, r, "pages/users/index.html", "Users", map[string]any{
		"Users":  list,
		"Total":  total,
		"Filter": filter,
		"Roles":  roleList,
		"Paging": shared.NewPagination(filter.Page, pageSize(filter), total),
	})
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	filter := parseFilter(r)
	list, total, err := h.service.ListUsers(r.Context(), filter)
	if err != nil {
		h.logger.Error("list users", slog.Any("error", err))
		httpx.JSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": "Internal error"})
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"users": list, "total": total, "page": filter.Page})
}

func (h *Handler) showCreateForm(w http.ResponseWriter, r *http.Request) {
	h.renderForm(w, r, http.StatusOK, formData{User: User{Status: true}})
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	in := CreateInput{
		Username:        r.PostFormValue("username"),
		Password:        r.PostFormValue("password"),
		PasswordConfirm: r.PostFormValue("password_confirm"),
		DisplayName:     r.PostFormValue("display_name"),
		RoleID:          formInt(r, "group_id"),
		Status:          formBool(r, "status"),
	}
	_, err := h.service.CreateUser(ctx, shared.IdentityFromContext(ctx), in)
	if err != nil {
		attempted := User{Username: in.Username, DisplayName: in.DisplayName, RoleID: in.RoleID, Status: in.Status}
		var verr *ValidationError
		switch {
		case errors.As(err, &verr):
			h.renderForm(w, r, http.StatusBadRequest, formData{User: attempted, Errors: verr.Fields})
		case errors.Is(err, ErrUsernameTaken):
			h.renderForm(w, r, http.StatusConflict, formData{User: attempted, Errors: map[string]string{"Username": i18n.T(ctx, i18n.MsgUsernameTaken)}})
		case errors.Is(err, ErrUnknownRole):
			h.renderForm(w, r, http.StatusBadRequest, formData{User: attempted, Errors: map[string]string{"RoleID": i18n.T(ctx, i18n.MsgInvalidRequest)}})
		default:
			h.logger.Error("create user", slog.Any("error", err))
			h.redirectWithFlash(w, r, h.usersURL(), shared.FlashDanger, i18n.T(ctx, i18n.MsgServerError))
		}
		return
	}
	h.redirectWithFlash(w, r, h.usersURL(), shared.FlashSuccess, i18n.T(ctx, i18n.MsgUserCreated))
}

func (h *Handler) showEditForm(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}
	user, err := h.service.GetUser(r.Context(), id)
	if err != nil {
		h.handleLookupError(w, r, err)
		return
	}
	h.renderForm(w, r, http.StatusOK, formData{User: user, IsEdit: true})
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.userID(w, r)
	if !ok {
		return
	}
	in := UpdateInput{
		DisplayName: r.PostFormValue("display_name"),
		RoleID:      formInt(r, "group_id"),
		Status:      formBool(r, "status"),
	}
	_, err := h.service.UpdateUser(ctx, shared.IdentityFromContext(ctx), id, in)
	if err != nil {
		attempted := User{ID: id, DisplayName: in.DisplayName, RoleID: in.RoleID, Status: in.Status}
		var verr *ValidationError
		switch {
		case errors.As(err, &verr):
			if current, lookupErr := h.service.GetUser(ctx, id); lookupErr == nil {
				attempted.Username = current.Username
			}
			h.renderForm(w, r, http.StatusBadRequest, formData{User: attempted, Errors: verr.Fields, IsEdit: true})
		case errors.Is(err, ErrUnknownRole):
			h.renderForm(w, r, http.StatusBadRequest, formData{User: attempted, Errors: map[string]string{"RoleID": i18n.T(ctx, i18n.MsgInvalidRequest)}, IsEdit: true})
		default:
			h.handleLookupError(w, r, err)
		}
		return
	}
	h.redirectWithFlash(w, r, h.usersURL(), shared.FlashSuccess, i18n.T(ctx, i18n.MsgUserUpdated))
}

func (h *Handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.userID(w, r)
	if !ok {
		return
	}
	in := ResetPasswordInput{
		Password:        r.PostFormValue("password"),
		PasswordConfirm: r.PostFormValue("password_confirm"),
	}
	editURL := h.usersURL() + "/" + strconv.FormatInt(id, 10) + "/edit"
	err := h.service.ResetPassword(ctx, shared.IdentityFromContext(ctx), id, in)
	var verr *ValidationError
	switch {
	case err == nil:
		h.redirectWithFlash(w, r, editURL, shared.FlashSuccess, i18n.T(ctx, i18n.MsgPasswordReset))
	case errors.As(err, &verr):
		h.redirectWithFlash(w, r, editURL, shared.FlashDanger, i18n.T(ctx, i18n.MsgInvalidRequest))
	default:
		h.handleLookupError(w, r, err)
	}
}

func (h *Handler) toggleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.userID(w, r)
	if !ok {
		return
	}
	user, err := h.service.ToggleStatus(ctx, shared.IdentityFromContext(ctx), id)
	if err != nil {
		h.handleLookupError(w, r, err)
		return
	}
	if access.IsAPIRequest(r, h.templates.Prefix()) {
		httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "status": user.Status})
		return
	}
	h.redirectWithFlash(w, r, h.usersURL(), shared.FlashSuccess, i18n.T(ctx, i18n.MsgUserStatusChanged))
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.userID(w, r)
	if !ok {
		return
	}
	err := h.service.DeleteUser(ctx, shared.IdentityFromContext(ctx), id)
	if errors.Is(err, ErrSelfDelete) {
		if access.IsAPIRequest(r, h.templates.Prefix()) {
			httpx.JSON(w, http.StatusConflict, map[string]any{"success": false, "error": i18n.T(ctx, i18n.MsgUserSelfDelete)})
			return
		}
		h.redirectWithFlash(w, r, h.usersURL(), shared.FlashDanger, i18n.T(ctx, i18n.MsgUserSelfDelete))
		return
	}
	if err != nil {
		h.handleLookupError(w, r, err)
		return
	}
	if access.IsAPIRequest(r, h.templates.Prefix()) {
		httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "message": i18n.T(ctx, i18n.MsgUserDeleted)})
		return
	}
	h.redirectWithFlash(w, r, h.usersURL(), shared.FlashSuccess, i18n.T(ctx, i18n.MsgUserDeleted))
}

func (h *Handler) handleLookupError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	if errors.Is(err, ErrNotFound) {
		if access.IsAPIRequest(r, h.templates.Prefix()) {
			httpx.JSON(w, http.StatusNotFound, map[string]any{"success": false, "error": i18n.T(ctx, i18n.MsgUserNotFound)})
			return
		}
		h.redirectWithFlash(w, r, h.usersURL(), shared.FlashWarning, i18n.T(ctx, i18n.MsgUserNotFound))
		return
	}
	h.logger.Error("user operation", slog.String("path", r.URL.Path), slog.Any("error", err))
	if access.IsAPIRequest(r, h.templates.Prefix()) {
		httpx.JSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": i18n.T(ctx, i18n.MsgServerError)})
		return
	}
	h.redirectWithFlash(w, r, h.usersURL(), shared.FlashDanger, i18n.T(ctx, i18n.MsgServerError))
}

func (h *Handler) userID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, i18n.T(r.Context(), i18n.MsgInvalidRequest), http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func (h *Handler) renderForm(w http.ResponseWriter, r *http.Request, status int, data formData) {
	roleList, err := h.roles.ListRoles(r.Context())
	if err != nil {
		h.logger.Error("list roles", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	data.Roles = roleList
	title := "Create user"
	if data.IsEdit {
		title = "Edit user"
	}
	if status != http.StatusOK {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
	}
	h.render(w, r, "pages/users/form.html", title, data)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, name, title string, data any) {
	if h.templates == nil {
		return
	}
	if err := h.templates.Page(w, r, name, title, data); err != nil {
		h.logger.Error("render template", slog.String("template", name), slog.Any("error", err))
	}
}

func (h *Handler) usersURL() string {
	return h.templates.Prefix() + "/users"
}

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, location, kind, message string) {
	shared.AddFlash(r.Context(), kind, message)
	http.Redirect(w, r, location, http.StatusSeeOther)
}

func parseFilter(r *http.Request) ListFilter {
	q := r.URL.Query()
	filter := ListFilter{Keyword: q.Get("keyword")}
	filter.RoleID, _ = strconv.ParseInt(q.Get("group_id"), 10, 64)
	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.PageSize, _ = strconv.Atoi(q.Get("page_size"))
	if filter.Page < 1 {
		filter.Page = 1
	}
	return filter
}

func pageSize(f ListFilter) int {
	switch {
	case f.PageSize <= 0:
		return defaultPageSize
	case f.PageSize > maxPageSize:
		return maxPageSize
	}
	return f.PageSize
}

func formInt(r *http.Request, key string) int64 {
	v, _ := strconv.ParseInt(r.PostFormValue(key), 10, 64)
	return v
}

func formBool(r *http.Request, key string) bool {
	switch r.PostFormValue(key) {
	case "1", "true", "on":
		return true
	}
	return false
}
