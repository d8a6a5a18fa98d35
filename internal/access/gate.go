package access

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/opanel/backoffice/internal/audit"
	"github.com/opanel/backoffice/internal/shared"
)

// Authorizer is satisfied by *Evaluator.
type Authorizer interface {
	Evaluate(ctx context.Context, identity *shared.Identity, target Target) Decision
}

// DecisionObserver counts decisions.
type DecisionObserver interface {
	ObserveDecision(outcome, reason string)
}

// AuditRecorder is satisfied by *audit.Recorder.
type AuditRecorder interface {
	Record(ctx context.Context, entry audit.Entry)
}

// GateConfig configures a Gate.
type GateConfig struct {
	// Prefix is the protected administrative area, e.g. "/opanel".
	Prefix       string
	ExposeErrors bool
	Logger       *slog.Logger
	Recorder     AuditRecorder
	Policy       audit.Policy
	Observer     DecisionObserver
}

// Gate enforces permission decisions on protected routes.
type Gate struct {
	authz Authorizer
	cfg   GateConfig
}

// NewGate constructs a Gate.
func NewGate(authz Authorizer, cfg GateConfig) *Gate {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Gate{authz: authz, cfg: cfg}
}

// Prefix returns the protected path prefix.
func (g *Gate) Prefix() string {
	return g.cfg.Prefix
}

// Require protects a route with target.
func (g *Gate) Require(target Target) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			g.serve(w, r, target, next)
		})
	}
}

// Unrouted protects requests that matched no route, using the raw path and
// verb as the target.
func (g *Gate) Unrouted(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g.serve(w, r, PathTarget(r), next)
	})
}

// PathTarget is the fallback target of an unmatched request.
func PathTarget(r *http.Request) Target {
	return Target{Controller: ControllerName(r.URL.Path), Action: ActionName(r.Method)}
}

// IsExempt reports whether target is reachable without a permission check.
func IsExempt(target Target) bool {
	switch target.Controller {
	case "AccessDeniedAction":
		return true
	case "AuthAction":
		return target.Action == "showLogin" || target.Action == "login"
	}
	return false
}

// Protects reports whether path lies inside the protected area.
func (g *Gate) Protects(path string) bool {
	return audit.IsBackendPath(g.cfg.Prefix, path)
}

func (g *Gate) serve(w http.ResponseWriter, r *http.Request, target Target, next http.Handler) {
	if !g.Protects(r.URL.Path) {
		next.ServeHTTP(w, r)
		return
	}
	if IsExempt(target) {
		g.observe(allow(ReasonExempt, Function{}))
		next.ServeHTTP(w, r)
		return
	}

	ctx := r.Context()
	identity := shared.IdentityFromContext(ctx)
	decision := g.evaluate(ctx, identity, target)
	g.observe(decision)
	if decision.Allowed {
		next.ServeHTTP(w, r)
		return
	}

	g.logDenial(r, identity, target, decision)
	g.recordDenial(r, identity, target, decision)
	NegotiateResponder(r, g.cfg.Prefix, g.cfg.ExposeErrors).Deny(w, r, decision)
}

func (g *Gate) evaluate(ctx context.Context, identity *shared.Identity, target Target) (d Decision) {
	defer func() {
		if rec := recover(); rec != nil {
			d = deny(ReasonStoreUnavailable, Function{}, fmt.Errorf("access: evaluate panic: %v", rec))
		}
	}()
	return g.authz.Evaluate(ctx, identity, target)
}

func (g *Gate) observe(d Decision) {
	if g.cfg.Observer != nil {
		g.cfg.Observer.ObserveDecision(d.Outcome(), string(d.Reason))
	}
}

func (g *Gate) logDenial(r *http.Request, identity *shared.Identity, target Target, d Decision) {
	attrs := []any{
		slog.String("target", target.String()),
		slog.String("path", r.URL.Path),
		slog.String("method", r.Method),
		slog.String("reason", string(d.Reason)),
	}
	if identity != nil {
		attrs = append(attrs, slog.Int64("user_id", identity.UserID), slog.Int64("role_id", identity.RoleID))
	}
	if d.Infrastructure() {
		attrs = append(attrs, slog.Any("error", d.Err))
		g.cfg.Logger.ErrorContext(r.Context(), "authorization unavailable", attrs...)
		return
	}
	g.cfg.Logger.InfoContext(r.Context(), "access denied", attrs...)
}

func (g *Gate) recordDenial(r *http.Request, identity *shared.Identity, target Target, d Decision) {
	if g.cfg.Recorder == nil || !g.cfg.Policy.Allows(r.URL.Path) {
		return
	}
	entry := audit.Entry{
		Action: audit.ActionAccessDenied,
		Target: target.String(),
		After: map[string]any{
			"path":   r.URL.Path,
			"method": r.Method,
			"reason": string(d.Reason),
		},
		Memo: string(d.Reason),
	}
	if identity != nil {
		entry.ActorID = identity.UserID
		entry.ActorName = identity.Username
	}
	g.cfg.Recorder.Record(r.Context(), entry)
}
