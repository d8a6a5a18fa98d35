package access

import "context"

// FunctionStore persists the protected function registry.
type FunctionStore interface {
	FindFunction(ctx context.Context, target Target) (Function, error)
	InsertFunction(ctx context.Context, fn Function) (Function, error)
}

// PolicyStore reads roles and the role by function grant matrix.
type PolicyStore interface {
	FindRole(ctx context.Context, id int64) (Role, error)
	FindGrant(ctx context.Context, roleID, functionID int64) (Grant, error)
	InsertGrant(ctx context.Context, grant Grant) error
}

// AdminStore backs the permission management screens.
type AdminStore interface {
	FindRole(ctx context.Context, id int64) (Role, error)
	FindGrant(ctx context.Context, roleID, functionID int64) (Grant, error)
	ListFunctions(ctx context.Context) ([]Function, error)
	EnabledFunctionIDs(ctx context.Context, roleID int64) ([]int64, error)
	RolePermissions(ctx context.Context, roleID int64) ([]Permission, error)
	SetGrant(ctx context.Context, grant Grant) error
	RenameFunction(ctx context.Context, code, name string) (int64, error)
}
