package users

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/opanel/backoffice/internal/audit"
	"github.com/opanel/backoffice/internal/shared"
)

type entries struct{ list []audit.Entry }

func (e *entries) Record(ctx context.Context, entry audit.Entry) { e.list = append(e.list, entry) }

func newTestService() (*Service, *memRepo, *entries) {
	repo := newMemRepo()
	rec := &entries{}
	svc := NewService(repo, rec)
	svc.cost = bcrypt.MinCost
	return svc, repo, rec
}

var root = &shared.Identity{UserID: 999, Username: "root"}

func validCreate(username string) CreateInput {
	return CreateInput{Username: username, Password: "s3cret-pass", PasswordConfirm: "s3cret-pass", DisplayName: "Alice", RoleID: 2, Status: true}
}

func TestCreateUserHashesPassword(t *testing.T) {
	svc, repo, rec := newTestService()
	user, err := svc.CreateUser(context.Background(), root, validCreate("alice"))
	require.NoError(t, err)

	stored := repo.users[user.ID]
	require.NotNil(t, stored)
	assert.NotEqual(t, "s3cret-pass", stored.hash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.hash), []byte("s3cret-pass")))

	require.Len(t, rec.list, 1)
	assert.Equal(t, audit.ActionUserCreate, rec.list[0].Action)
	assert.Equal(t, int64(1), rec.list[0].ActorID)
	assert.NotContains(t, rec.list[0].After, "password")
}

func TestCreateUserValidation(t *testing.T) {
	svc, _, rec := newTestService()
	in := validCreate("al")
	in.PasswordConfirm = "different"
	_, err := svc.CreateUser(context.Background(), root, in)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "Username")
	assert.Contains(t, verr.Fields, "PasswordConfirm")
	assert.Empty(t, rec.list)
}

func TestCreateUserDuplicateUsername(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.CreateUser(context.Background(), root, validCreate("alice"))
	require.NoError(t, err)
	_, err = svc.CreateUser(context.Background(), root, validCreate("alice"))
	assert.ErrorIs(t, err, ErrUsernameTaken)
}

func TestUpdateUserRecordsBeforeAndAfter(t *testing.T) {
	svc, _, rec := newTestService()
	user, err := svc.CreateUser(context.Background(), root, validCreate("alice"))
	require.NoError(t, err)

	updated, err := svc.UpdateUser(context.Background(), root, user.ID, UpdateInput{DisplayName: "Alice B", RoleID: 1, Status: false})
	require.NoError(t, err)
	assert.Equal(t, "Superadmin", updated.RoleName)

	last := rec.list[len(rec.list)-1]
	assert.Equal(t, audit.ActionUserUpdate, last.Action)
	assert.Equal(t, "Alice", last.Before["display_name"])
	assert.Equal(t, "Alice B", last.After["display_name"])
	assert.Equal(t, false, last.After["status"])
}

func TestResetPassword(t *testing.T) {
	svc, repo, rec := newTestService()
	user, err := svc.CreateUser(context.Background(), root, validCreate("alice"))
	require.NoError(t, err)

	err = svc.ResetPassword(context.Background(), root, user.ID, ResetPasswordInput{Password: "another-pass", PasswordConfirm: "another-pass"})
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.users[user.ID].hash), []byte("another-pass")))
	assert.Equal(t, audit.ActionUserResetPass, rec.list[len(rec.list)-1].Action)

	err = svc.ResetPassword(context.Background(), root, 404, ResetPasswordInput{Password: "another-pass", PasswordConfirm: "another-pass"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestToggleStatus(t *testing.T) {
	svc, _, _ := newTestService()
	user, err := svc.CreateUser(context.Background(), root, validCreate("alice"))
	require.NoError(t, err)

	toggled, err := svc.ToggleStatus(context.Background(), root, user.ID)
	require.NoError(t, err)
	assert.False(t, toggled.Status)
	toggled, err = svc.ToggleStatus(context.Background(), root, user.ID)
	require.NoError(t, err)
	assert.True(t, toggled.Status)
}

func TestDeleteUser(t *testing.T) {
	svc, _, rec := newTestService()
	user, err := svc.CreateUser(context.Background(), root, validCreate("alice"))
	require.NoError(t, err)

	err = svc.DeleteUser(context.Background(), &shared.Identity{UserID: user.ID}, user.ID)
	assert.ErrorIs(t, err, ErrSelfDelete)

	require.NotEqual(t, root.UserID, user.ID)
	require.NoError(t, svc.DeleteUser(context.Background(), root, user.ID))
	_, err = svc.GetUser(context.Background(), user.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, audit.ActionUserDelete, rec.list[len(rec.list)-1].Action)

	list, total, err := svc.ListUsers(context.Background(), ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Zero(t, total)
}

func TestListUsersFilters(t *testing.T) {
	svc, _, _ := newTestService()
	for _, name := range []string{"alice", "bob", "carol"} {
		_, err := svc.CreateUser(context.Background(), root, validCreate(name))
		require.NoError(t, err)
	}
	list, total, err := svc.ListUsers(context.Background(), ListFilter{Keyword: " bo "})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, list, 1)
	assert.Equal(t, "bob", list[0].Username)

	list, total, err = svc.ListUsers(context.Background(), ListFilter{PageSize: 2, Page: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, list, 1)
}
