// Package audit records security-relevant actions of back office users.
package audit

import (
	"context"
	"time"
)

// Entry is one append-only audit record.
type Entry struct {
	ActorID   int64
	ActorName string
	Action    string
	Target    string
	Before    map[string]any
	After     map[string]any
	Memo      string

	At        time.Time
	IP        string
	UserAgent string
	Host      string
	RequestID string
}

// Sink persists audit entries.
type Sink interface {
	Write(ctx context.Context, entry Entry) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, entry Entry) error

// Write implements Sink.
func (f SinkFunc) Write(ctx context.Context, entry Entry) error {
	return f(ctx, entry)
}

// Common action verbs.
const (
	ActionLogin            = "login"
	ActionLoginFailed      = "login_failed"
	ActionLogout           = "logout"
	ActionAccessDenied     = "access_denied"
	ActionUserCreate       = "user_create"
	ActionUserUpdate       = "user_update"
	ActionUserDelete       = "user_delete"
	ActionUserResetPass    = "user_reset_password"
	ActionUserToggle       = "user_toggle_status"
	ActionRoleCreate       = "role_create"
	ActionRoleDelete       = "role_delete"
	ActionPermissionUpdate = "permission_update"
	ActionFunctionRename   = "function_rename"
)
