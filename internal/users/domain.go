package users

import (
	"errors"
	"time"
)

// User represents a staff account for management.
type User struct {
	ID          int64      `json:"id"`
	Username    string     `json:"username"`
	DisplayName string     `json:"displayName"`
	RoleID      int64      `json:"groupId"`
	RoleName    string     `json:"groupName"`
	Status      bool       `json:"status"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// ListFilter narrows the user list.
type ListFilter struct {
	RoleID   int64
	Keyword  string
	Page     int
	PageSize int
}

// CreateInput carries the fields of a new account.
type CreateInput struct {
	Username        string `validate:"required,min=3,max=50,alphanum"`
	Password        string `validate:"required,min=8,max=72"`
	PasswordConfirm string `validate:"required,eqfield=Password"`
	DisplayName     string `validate:"max=100"`
	RoleID          int64  `validate:"required,gt=0"`
	Status          bool
}

// UpdateInput carries the editable fields of an account.
type UpdateInput struct {
	DisplayName string `validate:"max=100"`
	RoleID      int64  `validate:"required,gt=0"`
	Status      bool
}

// ResetPasswordInput carries a new password.
type ResetPasswordInput struct {
	Password        string `validate:"required,min=8,max=72"`
	PasswordConfirm string `validate:"required,eqfield=Password"`
}

// NewUser is the repository form of a created account.
type NewUser struct {
	Username     string
	PasswordHash string
	DisplayName  string
	RoleID       int64
	Status       bool
}

var (
	// ErrNotFound indicates the user does not exist or was deleted.
	ErrNotFound = errors.New("users: not found")
	// ErrUsernameTaken indicates a duplicate username.
	ErrUsernameTaken = errors.New("users: username taken")
	// ErrSelfDelete blocks a user from deleting their own account.
	ErrSelfDelete = errors.New("users: cannot delete yourself")
	// ErrUnknownRole indicates the referenced role does not exist.
	ErrUnknownRole = errors.New("users: unknown role")
)

// ValidationError maps form fields to messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return "users: validation failed"
}
