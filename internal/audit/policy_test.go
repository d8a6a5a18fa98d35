package audit

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opanel/backoffice/internal/shared"
)

func TestPolicyAllows(t *testing.T) {
	policy := Policy{Prefix: "/opanel", Backend: true, Frontend: false}
	assert.True(t, policy.Allows("/opanel"))
	assert.True(t, policy.Allows("/opanel/users"))
	assert.False(t, policy.Allows("/opanelx"))
	assert.False(t, policy.Allows("/"))

	policy = Policy{Prefix: "/opanel", Backend: false, Frontend: true}
	assert.False(t, policy.Allows("/opanel/users"))
	assert.True(t, policy.Allows("/healthz"))
}

func TestRequestLoggerRecordsRedactedForm(t *testing.T) {
	sink := &memorySink{}
	rec := NewRecorder(sink, nil, nil)
	var formSeen string
	handler := RequestLogger(rec, Policy{Prefix: "/opanel", Backend: true})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		formSeen = r.PostFormValue("display_name")
	}))

	form := url.Values{"display_name": {"Amy"}, "password": {"hunter2"}, shared.CSRFFormField: {"tok"}}
	req := httptest.NewRequest(http.MethodPost, "/opanel/users/create?from=list", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req = req.WithContext(shared.ContextWithIdentity(req.Context(), &shared.Identity{UserID: 4, Username: "root"}))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "Amy", formSeen, "downstream handler still reads the form")
	got := sink.last(t)
	assert.Equal(t, "request_POST", got.Action)
	assert.Equal(t, "/opanel/users/create", got.Target)
	assert.Equal(t, int64(4), got.ActorID)
	assert.Equal(t, map[string]any{"from": "list"}, got.After["query"])
	formData, ok := got.After["form"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, Mask, formData["password"])
	assert.Equal(t, "Amy", formData["display_name"])
	assert.NotContains(t, formData, shared.CSRFFormField)
}

func TestRequestLoggerSkipsPathsOutsidePolicy(t *testing.T) {
	sink := &memorySink{}
	handler := RequestLogger(NewRecorder(sink, nil, nil), Policy{Prefix: "/opanel", Backend: true})(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Empty(t, sink.entries)
}
