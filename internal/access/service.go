package access

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/opanel/backoffice/internal/audit"
	"github.com/opanel/backoffice/internal/shared"
)

// Flag decodes a JSON boolean sent either as true/false or as 0/1.
type Flag bool

// UnmarshalJSON implements json.Unmarshaler.
func (f *Flag) UnmarshalJSON(data []byte) error {
	switch strings.Trim(string(data), `"`) {
	case "true", "1":
		*f = true
	case "false", "0":
		*f = false
	default:
		return fmt.Errorf("access: invalid flag %s", data)
	}
	return nil
}

// UpdatePermissionInput is the payload of a single matrix toggle.
type UpdatePermissionInput struct {
	GroupID int64 `json:"groupId" validate:"required,gt=0"`
	FuncID  int64 `json:"funcId" validate:"required,gt=0"`
	Enabled *Flag `json:"enabled" validate:"required"`
}

// NameUpdate renames the functions sharing Code.
type NameUpdate struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// RefineResult counts the outcome of a batch rename.
type RefineResult struct {
	Updated int
	Failed  int
}

// ErrInvalidInput wraps payload validation failures.
var ErrInvalidInput = errors.New("access: invalid input")

// Service manages the permission matrix and function registry.
type Service struct {
	store    AdminStore
	recorder AuditRecorder
	validate *validator.Validate
}

// NewService constructs a Service. recorder may be nil.
func NewService(store AdminStore, recorder AuditRecorder) *Service {
	return &Service{store: store, recorder: recorder, validate: validator.New()}
}

// EnabledFunctionIDs returns the ids of the functions roleID may invoke.
func (s *Service) EnabledFunctionIDs(ctx context.Context, roleID int64) ([]int64, error) {
	if _, err := s.store.FindRole(ctx, roleID); err != nil {
		return nil, err
	}
	ids, err := s.store.EnabledFunctionIDs(ctx, roleID)
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []int64{}
	}
	return ids, nil
}

// Permissions lists every function with roleID's flag.
func (s *Service) Permissions(ctx context.Context, roleID int64) ([]Permission, error) {
	if _, err := s.store.FindRole(ctx, roleID); err != nil {
		return nil, err
	}
	perms, err := s.store.RolePermissions(ctx, roleID)
	if err != nil {
		return nil, err
	}
	if perms == nil {
		perms = []Permission{}
	}
	return perms, nil
}

// ListFunctions lists the registry.
func (s *Service) ListFunctions(ctx context.Context) ([]Function, error) {
	return s.store.ListFunctions(ctx)
}

// UpdatePermission sets one grant flag and audits the change.
func (s *Service) UpdatePermission(ctx context.Context, actor *shared.Identity, in UpdatePermissionInput) error {
	if err := s.validate.Struct(in); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if _, err := s.store.FindRole(ctx, in.GroupID); err != nil {
		return err
	}
	enabled := bool(*in.Enabled)

	var before map[string]any
	prev, err := s.store.FindGrant(ctx, in.GroupID, in.FuncID)
	switch {
	case err == nil:
		before = map[string]any{"enabled": prev.Enabled}
	case !errors.Is(err, ErrNotFound):
		return err
	}

	if err := s.store.SetGrant(ctx, Grant{RoleID: in.GroupID, FunctionID: in.FuncID, Enabled: enabled}); err != nil {
		return err
	}

	s.record(ctx, actor, audit.Entry{
		Action: audit.ActionPermissionUpdate,
		Target: "group:" + strconv.FormatInt(in.GroupID, 10) + "/func:" + strconv.FormatInt(in.FuncID, 10),
		Before: before,
		After:  map[string]any{"enabled": enabled},
	})
	return nil
}

// RefineNames renames functions by code. Blank or unknown codes count as
// failures.
func (s *Service) RefineNames(ctx context.Context, actor *shared.Identity, updates []NameUpdate) RefineResult {
	var result RefineResult
	renamed := make(map[string]any, len(updates))
	for _, u := range updates {
		code := strings.TrimSpace(u.Code)
		name := strings.TrimSpace(u.Name)
		if code == "" || name == "" {
			result.Failed++
			continue
		}
		n, err := s.store.RenameFunction(ctx, code, name)
		if err != nil || n == 0 {
			result.Failed++
			continue
		}
		result.Updated++
		renamed[code] = name
	}
	if result.Updated > 0 {
		s.record(ctx, actor, audit.Entry{
			Action: audit.ActionFunctionRename,
			Target: "permissions_ctrl_func",
			After:  renamed,
			Memo:   fmt.Sprintf("updated=%d failed=%d", result.Updated, result.Failed),
		})
	}
	return result
}

func (s *Service) record(ctx context.Context, actor *shared.Identity, entry audit.Entry) {
	if s.recorder == nil {
		return
	}
	if actor != nil {
		entry.ActorID = actor.UserID
		entry.ActorName = actor.Username
	}
	s.recorder.Record(ctx, entry)
}
