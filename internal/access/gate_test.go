package access

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opanel/backoffice/internal/audit"
	"github.com/opanel/backoffice/internal/shared"
)

type recordingAudit struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (r *recordingAudit) Record(ctx context.Context, entry audit.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
}

type countingObserver struct {
	mu     sync.Mutex
	counts map[string]int
}

func (o *countingObserver) ObserveDecision(outcome, reason string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.counts == nil {
		o.counts = map[string]int{}
	}
	o.counts[outcome+"/"+reason]++
}

type panicAuthorizer struct{}

func (panicAuthorizer) Evaluate(context.Context, *shared.Identity, Target) Decision {
	panic("driver bug")
}

type gateFixture struct {
	store    *memStore
	audit    *recordingAudit
	observer *countingObserver
	router   http.Handler
}

func newGateFixture(t *testing.T, authz Authorizer) *gateFixture {
	t.Helper()
	store := newMemStore()
	store.addRole(superadminRoleID, SuperadminCode)
	store.addRole(editorRoleID, "editor")
	if authz == nil {
		authz = NewEvaluator(store, NewResolver(store))
	}
	rec := &recordingAudit{}
	obs := &countingObserver{}
	gate := NewGate(authz, GateConfig{
		Prefix:   "/opanel",
		Recorder: rec,
		Policy:   audit.Policy{Prefix: "/opanel", Backend: true},
		Observer: obs,
	})

	ok := func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("ok")) }
	r := chi.NewRouter()
	r.Get("/healthz", ok)
	r.Route("/opanel", func(r chi.Router) {
		r.NotFound(gate.Unrouted(http.NotFoundHandler()).ServeHTTP)
		r.With(gate.Require(T("AuthAction", "showLogin"))).Get("/login", ok)
		r.With(gate.Require(T("DashboardAction", "show"))).Get("/dashboard", ok)
		r.With(gate.Require(T("ReportsAction", "export"))).Get("/reports/export", ok)
		r.With(gate.Require(T("ReportsAction", "export"))).Get("/api/reports/export", ok)
		NewHandler(nil, NewService(store, rec), nil).MountRoutes(r, gate)
	})
	return &gateFixture{store: store, audit: rec, observer: obs, router: r}
}

// serve runs req as identity with a fresh session and returns it.
func (f *gateFixture) serve(req *http.Request, identity *shared.Identity) (*httptest.ResponseRecorder, *shared.Session) {
	sess := &shared.Session{ID: "test-session"}
	ctx := shared.ContextWithSession(req.Context(), sess)
	if identity != nil {
		ctx = shared.ContextWithIdentity(ctx, identity)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req.WithContext(ctx))
	return rec, sess
}

func TestGateAnonymousBrowserRedirectsToLogin(t *testing.T) {
	f := newGateFixture(t, nil)
	rec, sess := f.serve(httptest.NewRequest(http.MethodGet, "/opanel/dashboard", nil), nil)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/opanel/login", rec.Header().Get("Location"))
	flashes := sess.Flashes()
	require.Len(t, flashes, 1)
	assert.Equal(t, shared.FlashWarning, flashes[0].Kind)
	assert.Equal(t, 1, f.observer.counts["denied/not_authenticated"])
}

func TestGateAnonymousAPIGetsJSON(t *testing.T) {
	f := newGateFixture(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/opanel/dashboard", nil)
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	rec, _ := f.serve(req, nil)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"status":"error","code":403,"message":"please log in"}`, rec.Body.String())
}

func TestGateExemptRoutesSkipEvaluation(t *testing.T) {
	f := newGateFixture(t, nil)
	rec, _ := f.serve(httptest.NewRequest(http.MethodGet, "/opanel/login", nil), nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = f.serve(httptest.NewRequest(http.MethodGet, "/healthz", nil), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, f.store.functionCount())
}

func TestGateEditorFirstTouchIsDeniedAndProvisioned(t *testing.T) {
	f := newGateFixture(t, nil)
	rec, sess := f.serve(httptest.NewRequest(http.MethodGet, "/opanel/reports/export", nil), editor())

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/opanel/access-denied/%2Fopanel%2Freports%2Fexport", rec.Header().Get("Location"))
	require.Len(t, sess.Flashes(), 1)
	assert.Equal(t, shared.FlashDanger, sess.Flashes()[0].Kind)

	fn, err := f.store.FindFunction(context.Background(), T("ReportsAction", "export"))
	require.NoError(t, err)
	grant, err := f.store.FindGrant(context.Background(), editorRoleID, fn.ID)
	require.NoError(t, err)
	assert.False(t, grant.Enabled)

	require.Len(t, f.audit.entries, 1)
	assert.Equal(t, audit.ActionAccessDenied, f.audit.entries[0].Action)
	assert.Equal(t, "ReportsAction:export", f.audit.entries[0].Target)
	assert.Equal(t, int64(10), f.audit.entries[0].ActorID)
}

func TestGateEditorFirstTouchAPIGetsForbidden(t *testing.T) {
	f := newGateFixture(t, nil)
	rec, _ := f.serve(httptest.NewRequest(http.MethodGet, "/opanel/api/reports/export", nil), editor())
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"status":"error","code":403,"message":"not permitted"}`, rec.Body.String())
}

func TestGateGrantToggleAllowsEditor(t *testing.T) {
	f := newGateFixture(t, nil)
	f.serve(httptest.NewRequest(http.MethodGet, "/opanel/reports/export", nil), editor())
	fn, err := f.store.FindFunction(context.Background(), T("ReportsAction", "export"))
	require.NoError(t, err)

	admin := &shared.Identity{UserID: 1, Username: "root", RoleID: superadminRoleID}
	body, _ := json.Marshal(map[string]any{"groupId": editorRoleID, "funcId": fn.ID, "enabled": true})
	req := httptest.NewRequest(http.MethodPost, "/opanel/access/update-permission", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	rec, _ := f.serve(req, admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())

	rec, _ = f.serve(httptest.NewRequest(http.MethodGet, "/opanel/reports/export", nil), editor())
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
	assert.Equal(t, 1, f.store.grantCount())
}

func TestGateUnroutedUsesPathTarget(t *testing.T) {
	f := newGateFixture(t, nil)
	rec, _ := f.serve(httptest.NewRequest(http.MethodGet, "/opanel/legacy/page", nil), editor())
	assert.Equal(t, http.StatusFound, rec.Code)

	fn, err := f.store.FindFunction(context.Background(), T("/opanel/legacy/page", "GET"))
	require.NoError(t, err)
	assert.Equal(t, "/opanel/legacy/page_get", fn.Code)

	admin := &shared.Identity{UserID: 1, RoleID: superadminRoleID}
	rec, _ = f.serve(httptest.NewRequest(http.MethodGet, "/opanel/legacy/page", nil), admin)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGateFailsClosedOnPanic(t *testing.T) {
	f := newGateFixture(t, panicAuthorizer{})
	req := httptest.NewRequest(http.MethodGet, "/opanel/dashboard", nil)
	req.Header.Set("Accept", "application/json")
	rec, _ := f.serve(req, editor())

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.NotContains(t, rec.Body.String(), "driver bug")
	assert.Equal(t, 1, f.observer.counts["denied/store_unavailable"])
}

func TestGateStoreFailureIsGenericDenial(t *testing.T) {
	f := newGateFixture(t, nil)
	f.store.findRoleErr = assert.AnError
	req := httptest.NewRequest(http.MethodGet, "/opanel/dashboard", nil)
	req.Header.Set("Accept", "application/json")
	rec, _ := f.serve(req, editor())

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"status":"error","code":403,"message":"not permitted"}`, rec.Body.String())
}

func TestJSONResponderExposesErrorsOnlyWhenEnabled(t *testing.T) {
	d := Decision{Reason: ReasonStoreUnavailable, Err: assert.AnError}
	req := httptest.NewRequest(http.MethodGet, "/opanel/x", nil)

	rec := httptest.NewRecorder()
	JSONResponder{}.Deny(rec, req, d)
	assert.NotContains(t, rec.Body.String(), assert.AnError.Error())

	rec = httptest.NewRecorder()
	JSONResponder{ExposeErrors: true}.Deny(rec, req, d)
	assert.Contains(t, rec.Body.String(), assert.AnError.Error())
}

func TestIsAPIRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/things", nil)
	assert.True(t, IsAPIRequest(req, "/opanel"))

	req = httptest.NewRequest(http.MethodGet, "/opanel/users", nil)
	assert.False(t, IsAPIRequest(req, "/opanel"))
	req.Header.Set("Accept", "text/html, application/json")
	assert.True(t, IsAPIRequest(req, "/opanel"))
}

func TestIsExempt(t *testing.T) {
	assert.True(t, IsExempt(T("AccessDeniedAction", "show")))
	assert.True(t, IsExempt(T("AuthAction", "login")))
	assert.True(t, IsExempt(T("AuthAction", "showLogin")))
	assert.False(t, IsExempt(T("AuthAction", "logout")))
	assert.False(t, IsExempt(T("UserAction", "index")))
}
