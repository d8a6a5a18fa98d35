package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
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

const userSelect = `SELECT u.id, u.username, u.display_name, COALESCE(u.group_id, 0), COALESCE(g.name, ''),
       u.status, u.last_login_at, u.created_at, u.updated_at
FROM admin_users u
LEFT JOIN permissions_groups g ON g.id = u.group_id`

func scanUser(row pgx.Row) (User, error) {
	var u User
	var lastLogin pgtype.Timestamptz
	if err := row.Scan(&u.ID, &u.Username, &u.DisplayName, &u.RoleID, &u.RoleName, &u.Status, &lastLogin, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return User{}, err
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLoginAt = &t
	}
	return u, nil
}

// ListUsers returns one page of live users and the total count.
func (r *Repository) ListUsers(ctx context.Context, filter ListFilter) ([]User, int, error) {
	where := []string{"u.deleted_at IS NULL"}
	args := []any{}
	if filter.RoleID > 0 {
		args = append(args, filter.RoleID)
		where = append(where, fmt.Sprintf("u.group_id = $%d", len(args)))
	}
	if kw := strings.TrimSpace(filter.Keyword); kw != "" {
		args = append(args, "%"+kw+"%")
		where = append(where, fmt.Sprintf("(u.username ILIKE $%d OR u.display_name ILIKE $%d)", len(args), len(args)))
	}
	clause := " WHERE " + strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM admin_users u`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("users: count: %w", err)
	}

	args = append(args, filter.PageSize, (filter.Page-1)*filter.PageSize)
	query := userSelect + clause + fmt.Sprintf(" ORDER BY u.id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("users: list: %w", err)
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("users: scan: %w", err)
		}
		out = append(out, u)
	}
	return out, total, rows.Err()
}

// FindUser fetches a live user by id.
func (r *Repository) FindUser(ctx context.Context, id int64) (User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, userSelect+` WHERE u.id = $1 AND u.deleted_at IS NULL`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("users: find: %w", err)
	}
	return u, nil
}

// CreateUser inserts an account.
func (r *Repository) CreateUser(ctx context.Context, in NewUser) (User, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO admin_users (username, password_hash, display_name, group_id, status)
VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		in.Username, in.PasswordHash, in.DisplayName, in.RoleID, in.Status,
	).Scan(&id)
	if err != nil {
		return User{}, mapWriteError("create", err)
	}
	return r.FindUser(ctx, id)
}

// UpdateUser saves the editable fields.
func (r *Repository) UpdateUser(ctx context.Context, id int64, in UpdateInput) (User, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE admin_users SET display_name = $2, group_id = $3, status = $4, updated_at = NOW()
WHERE id = $1 AND deleted_at IS NULL`,
		id, in.DisplayName, in.RoleID, in.Status)
	if err != nil {
		return User{}, mapWriteError("update", err)
	}
	if tag.RowsAffected() == 0 {
		return User{}, ErrNotFound
	}
	return r.FindUser(ctx, id)
}

// UpdatePassword replaces the password hash.
func (r *Repository) UpdatePassword(ctx context.Context, id int64, hash string) error {
	return r.execLive(ctx, "update password",
		`UPDATE admin_users SET password_hash = $2, updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id, hash)
}

// SetStatus enables or disables an account.
func (r *Repository) SetStatus(ctx context.Context, id int64, status bool) error {
	return r.execLive(ctx, "set status",
		`UPDATE admin_users SET status = $2, updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id, status)
}

// SoftDelete marks an account deleted.
func (r *Repository) SoftDelete(ctx context.Context, id int64) error {
	return r.execLive(ctx, "delete",
		`UPDATE admin_users SET deleted_at = NOW(), status = FALSE, updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id)
}

func (r *Repository) execLive(ctx context.Context, op, sql string, args ...any) error {
	tag, err := r.pool.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("users: %s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func mapWriteError(op string, err error) error {
	switch {
	case db.IsUniqueViolation(err):
		return ErrUsernameTaken
	case db.IsForeignKeyViolation(err):
		return ErrUnknownRole
	}
	return fmt.Errorf("users: %s: %w", op, err)
}

var _ RepositoryPort = (*Repository)(nil)
