package roles

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/opanel/backoffice/internal/access"
	"github.com/opanel/backoffice/internal/audit"
	"github.com/opanel/backoffice/internal/shared"
)

// RepositoryPort defines data access methods for roles.
type RepositoryPort interface {
	ListRoles(ctx context.Context) ([]Role, error)
	FindRole(ctx context.Context, id int64) (Role, error)
	CreateRole(ctx context.Context, in CreateInput) (Role, error)
	DeleteRole(ctx context.Context, id int64) error
}

var codePattern = regexp.MustCompile(`^[a-z0-9_-]+$`)

// Recorder is satisfied by *audit.Recorder.
type Recorder interface {
	Record(ctx context.Context, entry audit.Entry)
}

// Service handles role business logic.
type Service struct {
	repo     RepositoryPort
	recorder Recorder
	validate *validator.Validate
}

// NewService builds Service instance. recorder may be nil.
func NewService(repo RepositoryPort, recorder Recorder) *Service {
	return &Service{repo: repo, recorder: recorder, validate: validator.New()}
}

// ListRoles returns all roles.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	roles, err := s.repo.ListRoles(ctx)
	if err != nil {
		return nil, err
	}
	if roles == nil {
		roles = []Role{}
	}
	return roles, nil
}

// CreateRole validates and inserts a role.
func (s *Service) CreateRole(ctx context.Context, actor *shared.Identity, in CreateInput) (Role, error) {
	in.Code = strings.ToLower(strings.TrimSpace(in.Code))
	in.Name = strings.TrimSpace(in.Name)
	in.Memo = strings.TrimSpace(in.Memo)
	if err := s.validate.Struct(in); err != nil {
		return Role{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if !codePattern.MatchString(in.Code) {
		return Role{}, fmt.Errorf("%w: code may only contain a-z, 0-9, _ and -", ErrInvalidInput)
	}
	role, err := s.repo.CreateRole(ctx, in)
	if err != nil {
		return Role{}, err
	}
	s.record(ctx, actor, audit.Entry{
		Action: audit.ActionRoleCreate,
		Target: "role:" + strconv.FormatInt(role.ID, 10),
		After:  snapshot(role),
	})
	return role, nil
}

// DeleteRole removes a role. The superadmin role and roles still assigned
// to users are refused.
func (s *Service) DeleteRole(ctx context.Context, actor *shared.Identity, id int64) error {
	role, err := s.repo.FindRole(ctx, id)
	if err != nil {
		return err
	}
	if access.IsSuperadmin(access.Role{ID: role.ID, Code: role.Code}) {
		return ErrProtectedRole
	}
	if err := s.repo.DeleteRole(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actor, audit.Entry{
		Action: audit.ActionRoleDelete,
		Target: "role:" + strconv.FormatInt(role.ID, 10),
		Before: snapshot(role),
	})
	return nil
}

func snapshot(role Role) map[string]any {
	return map[string]any{"id": role.ID, "code": role.Code, "name": role.Name, "memo": role.Memo}
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
