package access

import (
	"context"
	"errors"

	"github.com/opanel/backoffice/internal/shared"
)

// Reason explains a Decision.
type Reason string

// Decision reasons. The first two allow, the rest deny.
const (
	ReasonGranted           Reason = "granted"
	ReasonSuperadmin        Reason = "superadmin"
	ReasonExempt            Reason = "exempt"
	ReasonNotAuthenticated  Reason = "not_authenticated"
	ReasonNoRole            Reason = "no_role"
	ReasonRegistrationError Reason = "registration_error"
	ReasonNotGranted        Reason = "not_granted"
	ReasonStoreUnavailable  Reason = "store_unavailable"
)

// Decision is the outcome of one permission check.
type Decision struct {
	Allowed  bool
	Reason   Reason
	Function Function
	Err      error
}

// Infrastructure reports whether the denial came from a failing store
// rather than from policy.
func (d Decision) Infrastructure() bool {
	return d.Reason == ReasonRegistrationError || d.Reason == ReasonStoreUnavailable
}

// Outcome is "allowed" or "denied".
func (d Decision) Outcome() string {
	if d.Allowed {
		return "allowed"
	}
	return "denied"
}

func allow(reason Reason, fn Function) Decision {
	return Decision{Allowed: true, Reason: reason, Function: fn}
}

func deny(reason Reason, fn Function, err error) Decision {
	return Decision{Reason: reason, Function: fn, Err: err}
}

// FunctionResolver is satisfied by *Resolver.
type FunctionResolver interface {
	ResolveOrRegister(ctx context.Context, target Target) (Function, error)
}

// Evaluator decides whether an identity may invoke a target. Nothing is
// cached; every call reads the store.
type Evaluator struct {
	store    PolicyStore
	resolver FunctionResolver
}

// NewEvaluator constructs an Evaluator.
func NewEvaluator(store PolicyStore, resolver FunctionResolver) *Evaluator {
	return &Evaluator{store: store, resolver: resolver}
}

// Evaluate checks identity against target. Store failures deny.
func (e *Evaluator) Evaluate(ctx context.Context, identity *shared.Identity, target Target) Decision {
	if identity == nil {
		return deny(ReasonNotAuthenticated, Function{}, nil)
	}
	if identity.RoleID <= 0 {
		return deny(ReasonNoRole, Function{}, nil)
	}
	role, err := e.store.FindRole(ctx, identity.RoleID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return deny(ReasonNoRole, Function{}, nil)
		}
		return deny(ReasonStoreUnavailable, Function{}, err)
	}

	fn, err := e.resolver.ResolveOrRegister(ctx, target)
	if err != nil {
		return deny(ReasonRegistrationError, Function{}, err)
	}

	if IsSuperadmin(role) {
		return allow(ReasonSuperadmin, fn)
	}

	grant, err := e.store.FindGrant(ctx, role.ID, fn.ID)
	switch {
	case err == nil:
		return grantDecision(grant, fn)
	case !errors.Is(err, ErrNotFound):
		return deny(ReasonStoreUnavailable, fn, err)
	}

	// First touch: record the pair as known but disabled.
	err = e.store.InsertGrant(ctx, Grant{RoleID: role.ID, FunctionID: fn.ID, Enabled: false})
	switch {
	case err == nil:
		return deny(ReasonNotGranted, fn, nil)
	case !errors.Is(err, ErrDuplicate):
		return deny(ReasonStoreUnavailable, fn, err)
	}

	grant, err = e.store.FindGrant(ctx, role.ID, fn.ID)
	if err != nil {
		return deny(ReasonStoreUnavailable, fn, err)
	}
	return grantDecision(grant, fn)
}

func grantDecision(grant Grant, fn Function) Decision {
	if grant.Enabled {
		return allow(ReasonGranted, fn)
	}
	return deny(ReasonNotGranted, fn, nil)
}
