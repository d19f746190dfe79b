package directory

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/emabi2002/landcasesystem-sub000/internal/shared/errors"
	"github.com/emabi2002/landcasesystem-sub000/internal/shared/types"
)

// PostgresRepository implements Repository backed by PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a user repository
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

var _ Repository = (*PostgresRepository)(nil)

func (r *PostgresRepository) Create(ctx context.Context, u *User) error {
	query := `
		INSERT INTO users (id, display_name, email, role, active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		u.ID, u.DisplayName, u.Email, u.Role, u.Active,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return errors.Conflict(fmt.Sprintf("user with email %s already exists", u.Email))
		}
		return errors.Wrap(err, "failed to create user")
	}

	return nil
}

func (r *PostgresRepository) FindByID(ctx context.Context, id types.ID) (*User, error) {
	return r.findBy(ctx, "id = $1", id)
}

func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	return r.findBy(ctx, "email = $1", email)
}

func (r *PostgresRepository) findBy(ctx context.Context, condition string, arg any) (*User, error) {
	query := fmt.Sprintf(`
		SELECT id, display_name, email, role, active, created_at, updated_at
		FROM users
		WHERE %s`, condition)

	var u User
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&u.ID, &u.DisplayName, &u.Email, &u.Role, &u.Active, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errors.NotFound("user", fmt.Sprint(arg))
		}
		return nil, errors.Wrap(err, "failed to find user")
	}

	return &u, nil
}

func (r *PostgresRepository) Update(ctx context.Context, u *User) error {
	query := `
		UPDATE users
		SET display_name = $2, email = $3, role = $4, active = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	err := r.pool.QueryRow(ctx, query,
		u.ID, u.DisplayName, u.Email, u.Role, u.Active,
	).Scan(&u.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return errors.NotFound("user", u.ID.String())
		}
		if strings.Contains(err.Error(), "duplicate key") {
			return errors.Conflict(fmt.Sprintf("user with email %s already exists", u.Email))
		}
		return errors.Wrap(err, "failed to update user")
	}

	return nil
}

func (r *PostgresRepository) Deactivate(ctx context.Context, id types.ID) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "failed to deactivate user")
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFound("user", id.String())
	}

	return nil
}

func (r *PostgresRepository) List(ctx context.Context, filter ListFilter) ([]User, int, error) {
	var conditions []string
	var args []any
	argNum := 1

	if filter.Role != "" {
		conditions = append(conditions, fmt.Sprintf("role = $%d", argNum))
		args = append(args, filter.Role)
		argNum++
	}

	if filter.ActiveOnly {
		conditions = append(conditions, "active = TRUE")
	}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(display_name ILIKE $%d OR email ILIKE $%d)", argNum, argNum))
		args = append(args, "%"+filter.Search+"%")
		argNum++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM users %s", whereClause)
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "failed to count users")
	}

	limit := 50
	if filter.Limit > 0 && filter.Limit <= 100 {
		limit = filter.Limit
	}

	query := fmt.Sprintf(`
		SELECT id, display_name, email, role, active, created_at, updated_at
		FROM users
		%s
		ORDER BY display_name ASC
		LIMIT $%d OFFSET $%d`, whereClause, argNum, argNum+1)

	args = append(args, limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list users")
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(
			&u.ID, &u.DisplayName, &u.Email, &u.Role, &u.Active, &u.CreatedAt, &u.UpdatedAt,
		); err != nil {
			return nil, 0, errors.Wrap(err, "failed to scan user")
		}
		users = append(users, u)
	}

	return users, total, rows.Err()
}

func (r *PostgresRepository) UserIDsByRole(ctx context.Context, role string) ([]types.ID, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id FROM users WHERE role = $1 AND active = TRUE`, role)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list users by role")
	}
	defer rows.Close()

	var ids []types.ID
	for rows.Next() {
		var id types.ID
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "failed to scan user ID")
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}
