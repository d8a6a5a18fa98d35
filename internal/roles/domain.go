package roles

import (
	"errors"
	"time"
)

// Role represents a permission group for management.
type Role struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Memo      string    `json:"memo"`
	UserCount int       `json:"userCount"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CreateInput carries the fields of a new role.
type CreateInput struct {
	Code string `json:"code" validate:"required,max=64"`
	Name string `json:"name" validate:"required,max=100"`
	Memo string `json:"memo" validate:"max=500"`
}

var (
	// ErrNotFound indicates the role does not exist.
	ErrNotFound = errors.New("roles: not found")
	// ErrRoleInUse blocks deleting a role that users still reference.
	ErrRoleInUse = errors.New("roles: role is assigned to users")
	// ErrProtectedRole blocks deleting the superadmin role.
	ErrProtectedRole = errors.New("roles: role is protected")
	// ErrCodeTaken indicates a duplicate role code.
	ErrCodeTaken = errors.New("roles: code already exists")
	// ErrInvalidInput wraps validation failures.
	ErrInvalidInput = errors.New("roles: invalid input")
)
