package access

import (
	"context"
	"sort"
	"sync"
	"time"
)

// memStore mirrors the unique constraints of the schema.
type memStore struct {
	mu        sync.Mutex
	nextID    int64
	functions map[Target]Function
	roles     map[int64]Role
	grants    map[[2]int64]Grant

	findFunctionCalls int
	insertFuncCalls   int
	insertGrantCalls  int

	findFunctionErr error
	insertFuncErr   error
	findRoleErr     error
	findGrantErr    error
	insertGrantErr  error

	// beforeInsertFunction runs before the uniqueness check, letting tests
	// simulate a concurrent writer.
	beforeInsertFunction func(s *memStore)
	beforeInsertGrant    func(s *memStore)
}

func newMemStore() *memStore {
	return &memStore{
		functions: map[Target]Function{},
		roles:     map[int64]Role{},
		grants:    map[[2]int64]Grant{},
	}
}

func (s *memStore) addRole(id int64, code string) Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	role := Role{ID: id, Code: code, Name: code}
	s.roles[id] = role
	return role
}

func (s *memStore) putFunctionLocked(target Target) Function {
	s.nextID++
	fn := Function{
		ID:         s.nextID,
		Code:       target.Code(),
		Name:       target.Name(),
		Controller: target.Controller,
		Action:     target.Action,
		Category:   CategoryBackend,
		CreatedAt:  time.Now(),
	}
	s.functions[target] = fn
	return fn
}

func (s *memStore) grantCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.grants)
}

func (s *memStore) functionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.functions)
}

func (s *memStore) FindFunction(ctx context.Context, target Target) (Function, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.findFunctionCalls++
	if err := ctx.Err(); err != nil {
		return Function{}, err
	}
	if s.findFunctionErr != nil {
		return Function{}, s.findFunctionErr
	}
	fn, ok := s.functions[target]
	if !ok {
		return Function{}, ErrNotFound
	}
	return fn, nil
}

func (s *memStore) InsertFunction(ctx context.Context, fn Function) (Function, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertFuncCalls++
	if s.beforeInsertFunction != nil {
		s.beforeInsertFunction(s)
	}
	if s.insertFuncErr != nil {
		return Function{}, s.insertFuncErr
	}
	target := fn.Target()
	if _, exists := s.functions[target]; exists {
		return Function{}, ErrDuplicate
	}
	return s.putFunctionLocked(target), nil
}

func (s *memStore) FindRole(ctx context.Context, id int64) (Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findRoleErr != nil {
		return Role{}, s.findRoleErr
	}
	role, ok := s.roles[id]
	if !ok {
		return Role{}, ErrNotFound
	}
	return role, nil
}

func (s *memStore) FindGrant(ctx context.Context, roleID, functionID int64) (Grant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findGrantErr != nil {
		return Grant{}, s.findGrantErr
	}
	grant, ok := s.grants[[2]int64{roleID, functionID}]
	if !ok {
		return Grant{}, ErrNotFound
	}
	return grant, nil
}

func (s *memStore) InsertGrant(ctx context.Context, grant Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertGrantCalls++
	if s.beforeInsertGrant != nil {
		s.beforeInsertGrant(s)
	}
	if s.insertGrantErr != nil {
		return s.insertGrantErr
	}
	key := [2]int64{grant.RoleID, grant.FunctionID}
	if _, exists := s.grants[key]; exists {
		return ErrDuplicate
	}
	s.grants[key] = grant
	return nil
}

func (s *memStore) SetGrant(ctx context.Context, grant Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[grant.RoleID]; !ok {
		return ErrNotFound
	}
	found := false
	for _, fn := range s.functions {
		if fn.ID == grant.FunctionID {
			found = true
			break
		}
	}
	if !found {
		return ErrNotFound
	}
	s.grants[[2]int64{grant.RoleID, grant.FunctionID}] = grant
	return nil
}

func (s *memStore) ListFunctions(ctx context.Context) ([]Function, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Function, 0, len(s.functions))
	for _, fn := range s.functions {
		out = append(out, fn)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) EnabledFunctionIDs(ctx context.Context, roleID int64) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []int64
	for key, grant := range s.grants {
		if key[0] == roleID && grant.Enabled {
			ids = append(ids, key[1])
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *memStore) RolePermissions(ctx context.Context, roleID int64) ([]Permission, error) {
	fns, _ := s.ListFunctions(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Permission, 0, len(fns))
	for _, fn := range fns {
		grant := s.grants[[2]int64{roleID, fn.ID}]
		out = append(out, Permission{
			FunctionID: fn.ID, Code: fn.Code, Name: fn.Name,
			Controller: fn.Controller, Action: fn.Action, Category: fn.Category,
			Enabled: grant.Enabled,
		})
	}
	return out, nil
}

func (s *memStore) RenameFunction(ctx context.Context, code, name string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for target, fn := range s.functions {
		if fn.Code == code {
			fn.Name = name
			s.functions[target] = fn
			n++
		}
	}
	return n, nil
}
