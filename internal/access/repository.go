package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opanel/backoffice/internal/platform/db"
)

// PGRepository implements the access stores on PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const functionColumns = `id, code, name, controller, method, type, created_at`

func scanFunction(row pgx.Row) (Function, error) {
	var fn Function
	var controller, action string
	if err := row.Scan(&fn.ID, &fn.Code, &fn.Name, &controller, &action, &fn.Category, &fn.CreatedAt); err != nil {
		return Function{}, err
	}
	fn.Controller = ControllerName(controller)
	fn.Action = ActionName(action)
	return fn, nil
}

// FindFunction looks a function up by its exact (controller, action) pair.
func (r *PGRepository) FindFunction(ctx context.Context, target Target) (Function, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+functionColumns+` FROM permissions_ctrl_func WHERE controller = $1 AND method = $2`,
		string(target.Controller), string(target.Action))
	fn, err := scanFunction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Function{}, ErrNotFound
		}
		return Function{}, fmt.Errorf("access: find function: %w", err)
	}
	return fn, nil
}

// InsertFunction registers a new function.
func (r *PGRepository) InsertFunction(ctx context.Context, fn Function) (Function, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO permissions_ctrl_func (code, name, controller, method, type)
VALUES ($1, $2, $3, $4, $5)
RETURNING `+functionColumns,
		fn.Code, fn.Name, string(fn.Controller), string(fn.Action), fn.Category)
	created, err := scanFunction(row)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Function{}, ErrDuplicate
		}
		return Function{}, fmt.Errorf("access: insert function: %w", err)
	}
	return created, nil
}

// FindRole loads a role by id.
func (r *PGRepository) FindRole(ctx context.Context, id int64) (Role, error) {
	var role Role
	err := r.pool.QueryRow(ctx,
		`SELECT id, code, name, memo FROM permissions_groups WHERE id = $1`, id,
	).Scan(&role.ID, &role.Code, &role.Name, &role.Memo)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, ErrNotFound
		}
		return Role{}, fmt.Errorf("access: find role: %w", err)
	}
	return role, nil
}

// FindGrant loads the grant of roleID on functionID.
func (r *PGRepository) FindGrant(ctx context.Context, roleID, functionID int64) (Grant, error) {
	grant := Grant{RoleID: roleID, FunctionID: functionID}
	err := r.pool.QueryRow(ctx,
		`SELECT enabled FROM permissions_matrix WHERE group_id = $1 AND func_id = $2`,
		roleID, functionID,
	).Scan(&grant.Enabled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Grant{}, ErrNotFound
		}
		return Grant{}, fmt.Errorf("access: find grant: %w", err)
	}
	return grant, nil
}

// InsertGrant creates a grant row, failing with ErrDuplicate if one exists.
func (r *PGRepository) InsertGrant(ctx context.Context, grant Grant) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO permissions_matrix (group_id, func_id, enabled) VALUES ($1, $2, $3)`,
		grant.RoleID, grant.FunctionID, grant.Enabled)
	if err != nil {
		switch {
		case db.IsUniqueViolation(err):
			return ErrDuplicate
		case db.IsForeignKeyViolation(err):
			return ErrNotFound
		}
		return fmt.Errorf("access: insert grant: %w", err)
	}
	return nil
}

// SetGrant upserts the enabled flag of a grant.
func (r *PGRepository) SetGrant(ctx context.Context, grant Grant) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO permissions_matrix (group_id, func_id, enabled) VALUES ($1, $2, $3)
ON CONFLICT (group_id, func_id) DO UPDATE SET enabled = EXCLUDED.enabled, updated_at = NOW()`,
		grant.RoleID, grant.FunctionID, grant.Enabled)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return ErrNotFound
		}
		return fmt.Errorf("access: set grant: %w", err)
	}
	return nil
}

// ListFunctions returns every registered function.
func (r *PGRepository) ListFunctions(ctx context.Context) ([]Function, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+functionColumns+` FROM permissions_ctrl_func ORDER BY controller, method`)
	if err != nil {
		return nil, fmt.Errorf("access: list functions: %w", err)
	}
	defer rows.Close()
	var out []Function
	for rows.Next() {
		fn, err := scanFunction(rows)
		if err != nil {
			return nil, fmt.Errorf("access: scan function: %w", err)
		}
		out = append(out, fn)
	}
	return out, rows.Err()
}

// EnabledFunctionIDs lists the functions roleID may invoke.
func (r *PGRepository) EnabledFunctionIDs(ctx context.Context, roleID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT func_id FROM permissions_matrix WHERE group_id = $1 AND enabled ORDER BY func_id`, roleID)
	if err != nil {
		return nil, fmt.Errorf("access: enabled functions: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("access: enabled functions: %w", err)
	}
	return ids, nil
}

// RolePermissions lists every function with roleID's flag, false when no
// grant row exists.
func (r *PGRepository) RolePermissions(ctx context.Context, roleID int64) ([]Permission, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT f.id, f.code, f.name, f.controller, f.method, f.type, COALESCE(m.enabled, FALSE)
FROM permissions_ctrl_func f
LEFT JOIN permissions_matrix m ON m.func_id = f.id AND m.group_id = $1
ORDER BY f.controller, f.method`, roleID)
	if err != nil {
		return nil, fmt.Errorf("access: role permissions: %w", err)
	}
	defer rows.Close()
	var out []Permission
	for rows.Next() {
		var p Permission
		var controller, action string
		if err := rows.Scan(&p.FunctionID, &p.Code, &p.Name, &controller, &action, &p.Category, &p.Enabled); err != nil {
			return nil, fmt.Errorf("access: scan permission: %w", err)
		}
		p.Controller = ControllerName(controller)
		p.Action = ActionName(action)
		out = append(out, p)
	}
	return out, rows.Err()
}

// RenameFunction updates the display name of every function with code.
func (r *PGRepository) RenameFunction(ctx context.Context, code, name string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE permissions_ctrl_func SET name = $2 WHERE code = $1`, code, name)
	if err != nil {
		return 0, fmt.Errorf("access: rename function: %w", err)
	}
	return tag.RowsAffected(), nil
}

var (
	_ FunctionStore = (*PGRepository)(nil)
	_ PolicyStore   = (*PGRepository)(nil)
	_ AdminStore    = (*PGRepository)(nil)
)
