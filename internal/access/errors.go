package access

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("access: not found")
	// ErrDuplicate indicates a unique constraint rejected an insert.
	ErrDuplicate = errors.New("access: duplicate")
)

// RegistrationError reports that a target could neither be found nor
// registered. Callers must deny the request.
type RegistrationError struct {
	Target Target
	Err    error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("access: register %s: %v", e.Target, e.Err)
}

func (e *RegistrationError) Unwrap() error {
	return e.Err
}
