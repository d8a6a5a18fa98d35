package roles

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opanel/backoffice/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListRoles returns all roles with the number of users assigned.
func (r *Repository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT g.id, g.code, g.name, g.memo, g.created_at, g.updated_at,
       (SELECT COUNT(*) FROM admin_users u WHERE u.group_id = g.id AND u.deleted_at IS NULL)
FROM permissions_groups g
ORDER BY g.id`)
	if err != nil {
		return nil, fmt.Errorf("roles: list: %w", err)
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Code, &role.Name, &role.Memo, &role.CreatedAt, &role.UpdatedAt, &role.UserCount); err != nil {
			return nil, fmt.Errorf("roles: scan: %w", err)
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// FindRole fetches a role by id.
func (r *Repository) FindRole(ctx context.Context, id int64) (Role, error) {
	var role Role
	err := r.pool.QueryRow(ctx,
		`SELECT id, code, name, memo, created_at, updated_at FROM permissions_groups WHERE id = $1`, id,
	).Scan(&role.ID, &role.Code, &role.Name, &role.Memo, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, ErrNotFound
		}
		return Role{}, fmt.Errorf("roles: find: %w", err)
	}
	return role, nil
}

// CreateRole inserts a new role.
func (r *Repository) CreateRole(ctx context.Context, in CreateInput) (Role, error) {
	role := Role{Code: in.Code, Name: in.Name, Memo: in.Memo}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO permissions_groups (code, name, memo) VALUES ($1, $2, $3) RETURNING id, created_at, updated_at`,
		in.Code, in.Name, in.Memo,
	).Scan(&role.ID, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Role{}, ErrCodeTaken
		}
		return Role{}, fmt.Errorf("roles: create: %w", err)
	}
	return role, nil
}

// DeleteRole removes a role unless a user still references it. Grants go
// with it through the cascading foreign key.
func (r *Repository) DeleteRole(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var locked int64
		if err := tx.QueryRow(ctx, `SELECT id FROM permissions_groups WHERE id = $1 FOR UPDATE`, id).Scan(&locked); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("roles: lock: %w", err)
		}
		var users int
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM admin_users WHERE group_id = $1`, id).Scan(&users); err != nil {
			return fmt.Errorf("roles: count users: %w", err)
		}
		if users > 0 {
			return ErrRoleInUse
		}
		if _, err := tx.Exec(ctx, `DELETE FROM permissions_groups WHERE id = $1`, id); err != nil {
			if db.IsForeignKeyViolation(err) {
				return ErrRoleInUse
			}
			return fmt.Errorf("roles: delete: %w", err)
		}
		return nil
	})
}

var _ RepositoryPort = (*Repository)(nil)
