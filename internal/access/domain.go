// Package access resolves protected functions and decides, per request,
// whether the current staff member may invoke them.
package access

import (
	"errors"
	"strings"
	"time"
)

// ControllerName identifies a group of protected actions, e.g. "UserAction".
type ControllerName string

// ActionName identifies one entry point of a controller, e.g. "create".
type ActionName string

// Target is the (controller, action) pair a request invokes.
type Target struct {
	Controller ControllerName
	Action     ActionName
}

// T is shorthand for building a Target.
func T(controller, action string) Target {
	return Target{Controller: ControllerName(controller), Action: ActionName(action)}
}

// String renders the target as "Controller:action".
func (t Target) String() string {
	return string(t.Controller) + ":" + string(t.Action)
}

// Validate reports whether both halves of the target are set.
func (t Target) Validate() error {
	if strings.TrimSpace(string(t.Controller)) == "" || strings.TrimSpace(string(t.Action)) == "" {
		return errors.New("access: target requires controller and action")
	}
	return nil
}

// Code is the generated machine code of a newly registered function.
func (t Target) Code() string {
	return strings.ToLower(shortController(t.Controller) + "_" + string(t.Action))
}

// Name is the generated display name of a newly registered function.
func (t Target) Name() string {
	return shortController(t.Controller) + " " + string(t.Action)
}

func shortController(c ControllerName) string {
	return strings.TrimSuffix(string(c), "Action")
}

// CategoryBackend tags functions discovered inside the admin area.
const CategoryBackend = "backend"

// Function is one registered protected function.
type Function struct {
	ID         int64          `json:"id"`
	Code       string         `json:"code"`
	Name       string         `json:"name"`
	Controller ControllerName `json:"controller"`
	Action     ActionName     `json:"method"`
	Category   string         `json:"type"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Target returns the pair the function protects.
func (f Function) Target() Target {
	return Target{Controller: f.Controller, Action: f.Action}
}

// Grant records whether a role may invoke a function.
type Grant struct {
	RoleID     int64
	FunctionID int64
	Enabled    bool
}

// Role is the slice of a role the evaluator needs.
type Role struct {
	ID   int64
	Code string
	Name string
	Memo string
}

// SuperadminCode is the role code that bypasses the permission matrix.
const SuperadminCode = "superadmin"

// IsSuperadmin reports whether role has implicit access to everything.
func IsSuperadmin(role Role) bool {
	return role.Code == SuperadminCode
}

// Permission is a function together with one role's grant flag.
type Permission struct {
	FunctionID int64          `json:"funcId"`
	Code       string         `json:"code"`
	Name       string         `json:"name"`
	Controller ControllerName `json:"controller"`
	Action     ActionName     `json:"method"`
	Category   string         `json:"type"`
	Enabled    bool           `json:"enabled"`
}
