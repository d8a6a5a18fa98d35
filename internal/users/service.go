package users

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/opanel/backoffice/internal/audit"
	"github.com/opanel/backoffice/internal/shared"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context, filter ListFilter) ([]User, int, error)
	FindUser(ctx context.Context, id int64) (User, error)
	CreateUser(ctx context.Context, in NewUser) (User, error)
	UpdateUser(ctx context.Context, id int64, in UpdateInput) (User, error)
	UpdatePassword(ctx context.Context, id int64, hash string) error
	SetStatus(ctx context.Context, id int64, status bool) error
	SoftDelete(ctx context.Context, id int64) error
}

// Recorder is satisfied by *audit.Recorder.
type Recorder interface {
	Record(ctx context.Context, entry audit.Entry)
}

// Service handles user business logic.
type Service struct {
	repo     RepositoryPort
	recorder Recorder
	validate *validator.Validate
	cost     int
}

// NewService builds Service instance. recorder may be nil.
func NewService(repo RepositoryPort, recorder Recorder) *Service {
	return &Service{repo: repo, recorder: recorder, validate: validator.New(), cost: bcrypt.DefaultCost}
}

// ListUsers returns a page of users with the matching total.
func (s *Service) ListUsers(ctx context.Context, filter ListFilter) ([]User, int, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = defaultPageSize
	}
	if filter.PageSize > maxPageSize {
		filter.PageSize = maxPageSize
	}
	filter.Keyword = strings.TrimSpace(filter.Keyword)
	users, total, err := s.repo.ListUsers(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	if users == nil {
		users = []User{}
	}
	return users, total, nil
}

// GetUser fetches a single user.
func (s *Service) GetUser(ctx context.Context, id int64) (User, error) {
	return s.repo.FindUser(ctx, id)
}

// CreateUser validates input, hashes the password and stores the account.
func (s *Service) CreateUser(ctx context.Context, actor *shared.Identity, in CreateInput) (User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.DisplayName = strings.TrimSpace(in.DisplayName)
	if err := s.check(in); err != nil {
		return User{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return User{}, err
	}
	user, err := s.repo.CreateUser(ctx, NewUser{
		Username:     in.Username,
		PasswordHash: string(hash),
		DisplayName:  in.DisplayName,
		RoleID:       in.RoleID,
		Status:       in.Status,
	})
	if err != nil {
		return User{}, err
	}
	s.record(ctx, actor, audit.Entry{
		Action: audit.ActionUserCreate,
		Target: target(user.ID),
		After:  snapshot(user),
	})
	return user, nil
}

// UpdateUser saves profile, role and status changes.
func (s *Service) UpdateUser(ctx context.Context, actor *shared.Identity, id int64, in UpdateInput) (User, error) {
	in.DisplayName = strings.TrimSpace(in.DisplayName)
	if err := s.check(in); err != nil {
		return User{}, err
	}
	before, err := s.repo.FindUser(ctx, id)
	if err != nil {
		return User{}, err
	}
	after, err := s.repo.UpdateUser(ctx, id, in)
	if err != nil {
		return User{}, err
	}
	s.record(ctx, actor, audit.Entry{
		Action: audit.ActionUserUpdate,
		Target: target(id),
		Before: snapshot(before),
		After:  snapshot(after),
	})
	return after, nil
}

// ResetPassword replaces the password of an account.
func (s *Service) ResetPassword(ctx context.Context, actor *shared.Identity, id int64, in ResetPasswordInput) error {
	if err := s.check(in); err != nil {
		return err
	}
	if _, err := s.repo.FindUser(ctx, id); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return err
	}
	if err := s.repo.UpdatePassword(ctx, id, string(hash)); err != nil {
		return err
	}
	s.record(ctx, actor, audit.Entry{
		Action: audit.ActionUserResetPass,
		Target: target(id),
		After:  map[string]any{"password": in.Password},
	})
	return nil
}

// ToggleStatus flips the enabled flag and returns the updated user.
func (s *Service) ToggleStatus(ctx context.Context, actor *shared.Identity, id int64) (User, error) {
	user, err := s.repo.FindUser(ctx, id)
	if err != nil {
		return User{}, err
	}
	if err := s.repo.SetStatus(ctx, id, !user.Status); err != nil {
		return User{}, err
	}
	s.record(ctx, actor, audit.Entry{
		Action: audit.ActionUserToggle,
		Target: target(id),
		Before: map[string]any{"status": user.Status},
		After:  map[string]any{"status": !user.Status},
	})
	user.Status = !user.Status
	return user, nil
}

// DeleteUser soft deletes an account. Actors cannot delete themselves.
func (s *Service) DeleteUser(ctx context.Context, actor *shared.Identity, id int64) error {
	if actor != nil && actor.UserID == id {
		return ErrSelfDelete
	}
	user, err := s.repo.FindUser(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actor, audit.Entry{
		Action: audit.ActionUserDelete,
		Target: target(id),
		Before: snapshot(user),
	})
	return nil
}

func (s *Service) check(in any) error {
	err := s.validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fieldMessage(fe)
	}
	return &ValidationError{Fields: fields}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "eqfield":
		return "does not match"
	case "alphanum":
		return "may only contain letters and digits"
	case "gt":
		return "must be selected"
	}
	return "is invalid"
}

func target(id int64) string {
	return "user:" + strconv.FormatInt(id, 10)
}

func snapshot(u User) map[string]any {
	return map[string]any{
		"id":           u.ID,
		"username":     u.Username,
		"display_name": u.DisplayName,
		"group_id":     u.RoleID,
		"status":       u.Status,
	}
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
