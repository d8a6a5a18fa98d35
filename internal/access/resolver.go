package access

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/singleflight"
)

// registrationTimeout bounds a shared lookup once it no longer follows the
// caller's context.
const registrationTimeout = 5 * time.Second

// Resolver finds the protected function for a target, registering it on
// first sight.
type Resolver struct {
	store FunctionStore
	group singleflight.Group
}

// NewResolver constructs a Resolver.
func NewResolver(store FunctionStore) *Resolver {
	return &Resolver{store: store}
}

// ResolveOrRegister returns the function row for target, inserting one
// when none exists. Concurrent callers for the same target share one lookup,
// which runs detached from any single caller's cancellation. Every failure is
// a *RegistrationError.
func (r *Resolver) ResolveOrRegister(ctx context.Context, target Target) (Function, error) {
	if err := target.Validate(); err != nil {
		return Function{}, &RegistrationError{Target: target, Err: err}
	}
	key := string(target.Controller) + "\x00" + string(target.Action)
	v, err, _ := r.group.Do(key, func() (any, error) {
		detached, cancel := context.WithTimeout(context.WithoutCancel(ctx), registrationTimeout)
		defer cancel()
		return r.resolve(detached, target)
	})
	if err != nil {
		return Function{}, err
	}
	return v.(Function), nil
}

func (r *Resolver) resolve(ctx context.Context, target Target) (Function, error) {
	fn, err := r.store.FindFunction(ctx, target)
	if err == nil {
		return fn, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Function{}, &RegistrationError{Target: target, Err: err}
	}

	fn, err = r.store.InsertFunction(ctx, Function{
		Code:       target.Code(),
		Name:       target.Name(),
		Controller: target.Controller,
		Action:     target.Action,
		Category:   CategoryBackend,
	})
	if err == nil {
		return fn, nil
	}
	if !errors.Is(err, ErrDuplicate) {
		return Function{}, &RegistrationError{Target: target, Err: err}
	}

	// Another process registered the pair first.
	fn, err = r.store.FindFunction(ctx, target)
	if err != nil {
		return Function{}, &RegistrationError{Target: target, Err: err}
	}
	return fn, nil
}
