package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/opanel/backoffice/internal/shared"
)

// dummyHash keeps the unknown-user path as slow as a real comparison.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("opanel-unknown-user"), bcrypt.DefaultCost)

// Service wraps authentication business rules.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService constructs a new Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Authenticate validates username/password credentials. Disabled and
// soft-deleted accounts are reported only after the password matched.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*Account, error) {
	acc, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			return nil, shared.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("auth: find account: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !acc.Active() {
		return nil, shared.ErrAccountDisabled
	}
	return acc, nil
}

// MarkLogin stamps last_login_at and returns the login time.
func (s *Service) MarkLogin(ctx context.Context, id int64) (time.Time, error) {
	at := s.now()
	return at, s.repo.TouchLastLogin(ctx, id, at)
}

// RegisterSession persists the session metadata in postgres.
func (s *Service) RegisterSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	return s.repo.CreateSession(ctx, id, userID, expiresAt, ip, ua)
}

// RemoveSession deletes a session record from postgres.
func (s *Service) RemoveSession(ctx context.Context, id string) error {
	return s.repo.DeleteSession(ctx, id)
}
