package users

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

type memUser struct {
	User
	hash    string
	deleted bool
}

type memRepo struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]*memUser
	roles  map[int64]string
}

func newMemRepo() *memRepo {
	return &memRepo{users: map[int64]*memUser{}, roles: map[int64]string{1: "Superadmin", 2: "Editor"}}
}

func (m *memRepo) ListUsers(ctx context.Context, filter ListFilter) ([]User, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []User
	for _, u := range m.users {
		if u.deleted {
			continue
		}
		if filter.RoleID > 0 && u.RoleID != filter.RoleID {
			continue
		}
		if filter.Keyword != "" && !strings.Contains(u.Username, filter.Keyword) && !strings.Contains(u.DisplayName, filter.Keyword) {
			continue
		}
		all = append(all, u.User)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	start := (filter.Page - 1) * filter.PageSize
	if start > len(all) {
		start = len(all)
	}
	end := start + filter.PageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], len(all), nil
}

func (m *memRepo) FindUser(ctx context.Context, id int64) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok || u.deleted {
		return User{}, ErrNotFound
	}
	return u.User, nil
}

func (m *memRepo) CreateUser(ctx context.Context, in NewUser) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == in.Username {
			return User{}, ErrUsernameTaken
		}
	}
	name, ok := m.roles[in.RoleID]
	if !ok {
		return User{}, ErrUnknownRole
	}
	m.nextID++
	now := time.Now()
	u := &memUser{
		User: User{ID: m.nextID, Username: in.Username, DisplayName: in.DisplayName, RoleID: in.RoleID,
			RoleName: name, Status: in.Status, CreatedAt: now, UpdatedAt: now},
		hash: in.PasswordHash,
	}
	m.users[u.ID] = u
	return u.User, nil
}

func (m *memRepo) UpdateUser(ctx context.Context, id int64, in UpdateInput) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok || u.deleted {
		return User{}, ErrNotFound
	}
	name, ok := m.roles[in.RoleID]
	if !ok {
		return User{}, ErrUnknownRole
	}
	u.DisplayName, u.RoleID, u.RoleName, u.Status = in.DisplayName, in.RoleID, name, in.Status
	return u.User, nil
}

func (m *memRepo) UpdatePassword(ctx context.Context, id int64, hash string) error {
	return m.mutate(id, func(u *memUser) { u.hash = hash })
}

func (m *memRepo) SetStatus(ctx context.Context, id int64, status bool) error {
	return m.mutate(id, func(u *memUser) { u.Status = status })
}

func (m *memRepo) SoftDelete(ctx context.Context, id int64) error {
	return m.mutate(id, func(u *memUser) { u.deleted = true })
}

func (m *memRepo) mutate(id int64, fn func(*memUser)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok || u.deleted {
		return ErrNotFound
	}
	fn(u)
	return nil
}
