package access

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/opanel/backoffice/internal/i18n"
	"github.com/opanel/backoffice/internal/platform/httpx"
	"github.com/opanel/backoffice/internal/shared"
)

// Responder writes the response for a denied request.
type Responder interface {
	Deny(w http.ResponseWriter, r *http.Request, d Decision)
}

// Denial messages of the JSON body.
const (
	MessageLoginRequired = "please log in"
	MessageNotPermitted  = "not permitted"
)

// DenialMessage returns the public message for d.
func DenialMessage(d Decision) string {
	if d.Reason == ReasonNotAuthenticated {
		return MessageLoginRequired
	}
	return MessageNotPermitted
}

type denialBody struct {
	Status  string `json:"status"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// JSONResponder answers API and XHR clients with a 403 body.
type JSONResponder struct {
	ExposeErrors bool
}

// Deny implements Responder.
func (j JSONResponder) Deny(w http.ResponseWriter, r *http.Request, d Decision) {
	body := denialBody{Status: "error", Code: http.StatusForbidden, Message: DenialMessage(d)}
	if j.ExposeErrors && d.Err != nil {
		body.Error = d.Err.Error()
	}
	httpx.JSON(w, http.StatusForbidden, body)
}

// BrowserResponder redirects page navigations with a flash message.
type BrowserResponder struct {
	Prefix string
}

// Deny implements Responder.
func (b BrowserResponder) Deny(w http.ResponseWriter, r *http.Request, d Decision) {
	ctx := r.Context()
	if d.Reason == ReasonNotAuthenticated {
		shared.AddFlash(ctx, shared.FlashWarning, i18n.T(ctx, i18n.MsgLoginRequired))
		http.Redirect(w, r, b.Prefix+"/login", http.StatusFound)
		return
	}
	shared.AddFlash(ctx, shared.FlashDanger, i18n.T(ctx, i18n.MsgAccessDenied))
	http.Redirect(w, r, AccessDeniedURL(b.Prefix, r.URL.Path), http.StatusFound)
}

// AccessDeniedURL builds the denial page link carrying the original path.
func AccessDeniedURL(prefix, original string) string {
	return prefix + "/access-denied/" + url.PathEscape(original)
}

// IsAPIRequest reports whether r comes from a JSON or XHR client.
func IsAPIRequest(r *http.Request, prefix string) bool {
	path := r.URL.Path
	if strings.HasPrefix(path, "/api/") || (prefix != "" && strings.HasPrefix(path, prefix+"/api/")) {
		return true
	}
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	return r.Header.Get("X-Requested-With") == "XMLHttpRequest"
}

// NegotiateResponder picks the responder matching the client type.
func NegotiateResponder(r *http.Request, prefix string, exposeErrors bool) Responder {
	if IsAPIRequest(r, prefix) {
		return JSONResponder{ExposeErrors: exposeErrors}
	}
	return BrowserResponder{Prefix: prefix}
}
