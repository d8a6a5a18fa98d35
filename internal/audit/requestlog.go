package audit

import (
	"mime"
	"net/http"
	"net/url"

	"github.com/opanel/backoffice/internal/shared"
)

// RequestLogger records every request matching policy as a
// "request_<VERB>" entry carrying the query and form values.
func RequestLogger(recorder *Recorder, policy Policy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if recorder == nil || !policy.Allows(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			entry := Entry{
				Action: "request_" + r.Method,
				Target: r.URL.Path,
				After:  requestParams(r),
			}
			if id := shared.IdentityFromContext(r.Context()); id != nil {
				entry.ActorID = id.UserID
				entry.ActorName = id.Username
			}
			recorder.Record(r.Context(), entry)
			next.ServeHTTP(w, r)
		})
	}
}

func requestParams(r *http.Request) map[string]any {
	params := map[string]any{}
	if len(r.URL.RawQuery) > 0 {
		params["query"] = flatten(r.URL.Query())
	}
	if isFormBody(r) {
		if err := r.ParseForm(); err == nil && len(r.PostForm) > 0 {
			form := flatten(r.PostForm)
			delete(form, shared.CSRFFormField)
			// Redaction is top-level only, so sensitive form fields are
			// masked here before nesting.
			params["form"] = Redact(form)
		}
	}
	if len(params) == 0 {
		return nil
	}
	return params
}

func isFormBody(r *http.Request) bool {
	if r.Body == nil || r.Method == http.MethodGet || r.Method == http.MethodHead {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "application/x-www-form-urlencoded"
}

func flatten(values url.Values) map[string]any {
	out := make(map[string]any, len(values))
	for key, vals := range values {
		if len(vals) == 1 {
			out[key] = vals[0]
			continue
		}
		out[key] = append([]string(nil), vals...)
	}
	return out
}
