package access

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opanel/backoffice/internal/shared"
)

type allowAll struct{}

func (allowAll) Require(Target) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler { return next }
}

func newHandlerFixture(t *testing.T) (*memStore, *recordingAudit, http.Handler) {
	t.Helper()
	store := newMemStore()
	store.addRole(editorRoleID, "editor")
	rec := &recordingAudit{}
	r := chi.NewRouter()
	NewHandler(nil, NewService(store, rec), nil).MountRoutes(r, allowAll{})
	return store, rec, r
}

func registerFunctions(t *testing.T, store *memStore, targets ...Target) []Function {
	t.Helper()
	resolver := NewResolver(store)
	out := make([]Function, 0, len(targets))
	for _, target := range targets {
		fn, err := resolver.ResolveOrRegister(context.Background(), target)
		require.NoError(t, err)
		out = append(out, fn)
	}
	return out
}

func TestMatrixReturnsEnabledFunctionIDs(t *testing.T) {
	store, _, router := newHandlerFixture(t)
	fns := registerFunctions(t, store, T("UserAction", "index"), T("UserAction", "create"))
	require.NoError(t, store.SetGrant(context.Background(), Grant{RoleID: editorRoleID, FunctionID: fns[1].ID, Enabled: true}))
	require.NoError(t, store.SetGrant(context.Background(), Grant{RoleID: editorRoleID, FunctionID: fns[0].ID, Enabled: false}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/access/group/2/matrix", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"funcIds":[2]}`, rec.Body.String())
}

func TestMatrixEmptyRoleReturnsEmptyList(t *testing.T) {
	_, _, router := newHandlerFixture(t)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/access/group/2/matrix", nil))
	assert.JSONEq(t, `{"funcIds":[]}`, rec.Body.String())
}

func TestMatrixRejectsBadAndUnknownRole(t *testing.T) {
	_, _, router := newHandlerFixture(t)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/access/group/abc/matrix", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/access/group/77/matrix", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPermissionsDefaultToDisabled(t *testing.T) {
	store, _, router := newHandlerFixture(t)
	fns := registerFunctions(t, store, T("UserAction", "index"), T("UserAction", "create"))
	require.NoError(t, store.SetGrant(context.Background(), Grant{RoleID: editorRoleID, FunctionID: fns[0].ID, Enabled: true}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/access/group/2/permissions", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"funcId":1`)
	assert.Contains(t, rec.Body.String(), `"code":"user_index","name":"User index","controller":"UserAction","method":"index","type":"backend","enabled":true`)
	assert.Contains(t, rec.Body.String(), `"code":"user_create","name":"User create","controller":"UserAction","method":"create","type":"backend","enabled":false`)
}

func TestUpdatePermissionRejectsInvalidInput(t *testing.T) {
	_, _, router := newHandlerFixture(t)
	for _, body := range []string{`not json`, `{"groupId":2}`, `{"groupId":0,"funcId":1,"enabled":true}`, `{"groupId":2,"funcId":1,"enabled":"maybe"}`} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/access/update-permission", strings.NewReader(body))
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.JSONEq(t, `{"success":false,"error":"Invalid input"}`, rec.Body.String(), body)
	}
}

func TestUpdatePermissionUpsertsAndAudits(t *testing.T) {
	store, audits, router := newHandlerFixture(t)
	fns := registerFunctions(t, store, T("UserAction", "index"))

	req := httptest.NewRequest(http.MethodPost, "/access/update-permission", strings.NewReader(`{"groupId":2,"funcId":1,"enabled":1}`))
	req = req.WithContext(shared.ContextWithIdentity(req.Context(), &shared.Identity{UserID: 1, Username: "root"}))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	grant, err := store.FindGrant(context.Background(), editorRoleID, fns[0].ID)
	require.NoError(t, err)
	assert.True(t, grant.Enabled)

	require.Len(t, audits.entries, 1)
	entry := audits.entries[0]
	assert.Equal(t, "permission_update", entry.Action)
	assert.Equal(t, "group:2/func:1", entry.Target)
	assert.Nil(t, entry.Before)
	assert.Equal(t, map[string]any{"enabled": true}, entry.After)
	assert.Equal(t, "root", entry.ActorName)
}

func TestUpdatePermissionUnknownFunction(t *testing.T) {
	_, _, router := newHandlerFixture(t)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/access/update-permission", strings.NewReader(`{"groupId":2,"funcId":42,"enabled":true}`)))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSubmitRefineRenamesByCode(t *testing.T) {
	store, audits, router := newHandlerFixture(t)
	registerFunctions(t, store, T("UserAction", "index"), T("UserAction", "create"))

	form := url.Values{"json": {`[{"code":"user_index","name":"List users"},{"code":"missing","name":"x"},{"code":"","name":"y"}]`}}
	req := httptest.NewRequest(http.MethodPost, "/access/refine-names", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	sess := &shared.Session{ID: "s"}
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/access/refine-names", rec.Header().Get("Location"))
	fn, err := store.FindFunction(context.Background(), T("UserAction", "index"))
	require.NoError(t, err)
	assert.Equal(t, "List users", fn.Name)

	flashes := sess.Flashes()
	require.Len(t, flashes, 1)
	assert.Equal(t, shared.FlashWarning, flashes[0].Kind)
	assert.Equal(t, "Renamed 1 functions, 2 failed.", flashes[0].Message)
	require.Len(t, audits.entries, 1)
	assert.Equal(t, "function_rename", audits.entries[0].Action)
}

func TestSubmitRefineRejectsBadJSON(t *testing.T) {
	_, _, router := newHandlerFixture(t)
	form := url.Values{"json": {`{oops`}}
	req := httptest.NewRequest(http.MethodPost, "/access/refine-names", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	sess := &shared.Session{ID: "s"}
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	require.Len(t, sess.Flashes(), 1)
	assert.Equal(t, shared.FlashDanger, sess.Flashes()[0].Kind)
}
