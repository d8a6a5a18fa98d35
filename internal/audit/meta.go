package audit

import (
	"context"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// Meta is the request context stamped onto every entry.
type Meta struct {
	IP        string
	UserAgent string
	Host      string
	RequestID string
}

type metaContextKey struct{}

// WithMeta stores request metadata in context.
func WithMeta(ctx context.Context, meta Meta) context.Context {
	return context.WithValue(ctx, metaContextKey{}, meta)
}

// MetaFromContext returns the captured request metadata.
func MetaFromContext(ctx context.Context) (Meta, bool) {
	meta, ok := ctx.Value(metaContextKey{}).(Meta)
	return meta, ok
}

// MetaFromRequest extracts metadata from r. chi's RequestID middleware is
// the preferred source of the correlation id.
func MetaFromRequest(r *http.Request) Meta {
	requestID := middleware.GetReqID(r.Context())
	if requestID == "" {
		requestID = uuid.NewString()
	}
	return Meta{
		IP:        clientIP(r.RemoteAddr),
		UserAgent: r.UserAgent(),
		Host:      r.Host,
		RequestID: requestID,
	}
}

// CaptureMeta stores request metadata for recorders further down the chain.
func CaptureMeta(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := WithMeta(r.Context(), MetaFromRequest(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func clientIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
