// Package infrastructure provides the PostgreSQL-backed case repository.
package infrastructure

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/emabi2002/landcasesystem-sub000/internal/casefile/domain"
	"github.com/emabi2002/landcasesystem-sub000/internal/shared/errors"
	"github.com/emabi2002/landcasesystem-sub000/internal/shared/types"
)

// PostgresRepository persists cases in PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new case repository
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

var _ domain.Repository = (*PostgresRepository)(nil)

// Save inserts a new case
func (r *PostgresRepository) Save(ctx context.Context, c *domain.Case) error {
	query := `
		INSERT INTO cases (
			id, case_number, title, description, stage, priority, status,
			created_by, version, created_at, updated_at, closed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.pool.Exec(ctx, query,
		c.ID, c.CaseNumber, c.Title, c.Description, c.Stage, c.Priority, c.Status,
		c.CreatedBy, c.Version, c.CreatedAt, c.UpdatedAt, c.ClosedAt,
	)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return errors.Conflict("case with this number already exists")
		}
		return errors.Wrap(err, "failed to save case")
	}

	return nil
}

// FindByID retrieves a case by ID
func (r *PostgresRepository) FindByID(ctx context.Context, id types.ID) (*domain.Case, error) {
	query := `
		SELECT id, case_number, title, description, stage, priority, status,
			created_by, version, created_at, updated_at, closed_at
		FROM cases
		WHERE id = $1`

	return r.scanCase(r.pool.QueryRow(ctx, query, id), id.String())
}

// FindByCaseNumber retrieves a case by its case number
func (r *PostgresRepository) FindByCaseNumber(ctx context.Context, caseNumber string) (*domain.Case, error) {
	query := `
		SELECT id, case_number, title, description, stage, priority, status,
			created_by, version, created_at, updated_at, closed_at
		FROM cases
		WHERE case_number = $1`

	return r.scanCase(r.pool.QueryRow(ctx, query, caseNumber), caseNumber)
}

func (r *PostgresRepository) scanCase(row pgx.Row, key string) (*domain.Case, error) {
	c := &domain.Case{}
	err := row.Scan(
		&c.ID, &c.CaseNumber, &c.Title, &c.Description, &c.Stage, &c.Priority, &c.Status,
		&c.CreatedBy, &c.Version, &c.CreatedAt, &c.UpdatedAt, &c.ClosedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("case", key)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get case")
	}

	return c, nil
}

// Update persists a case only if the stored version still matches
// expectedVersion. A lost race surfaces as a conflict, not a silent
// overwrite.
func (r *PostgresRepository) Update(ctx context.Context, c *domain.Case, expectedVersion int64) error {
	query := `
		UPDATE cases SET
			title = $2, description = $3, stage = $4, priority = $5,
			status = $6, version = $7, updated_at = $8, closed_at = $9
		WHERE id = $1 AND version = $10`

	result, err := r.pool.Exec(ctx, query,
		c.ID, c.Title, c.Description, c.Stage, c.Priority,
		c.Status, c.Version, c.UpdatedAt, c.ClosedAt,
		expectedVersion,
	)

	if err != nil {
		return errors.Wrap(err, "failed to update case")
	}

	if result.RowsAffected() == 0 {
		// Distinguish a missing case from a version race
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM cases WHERE id = $1)`, c.ID).Scan(&exists); err != nil {
			return errors.Wrap(err, "failed to update case")
		}
		if !exists {
			return errors.NotFound("case", c.ID.String())
		}
		return errors.Conflict("case was modified concurrently")
	}

	return nil
}

// List queries cases with optional filters
func (r *PostgresRepository) List(ctx context.Context, filter domain.ListFilter) ([]domain.Case, int, error) {
	var conditions []string
	var args []interface{}
	argNum := 1

	if filter.Stage != nil {
		conditions = append(conditions, fmt.Sprintf("stage = $%d", argNum))
		args = append(args, *filter.Stage)
		argNum++
	}

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argNum))
		args = append(args, *filter.Status)
		argNum++
	}

	if filter.Priority != nil {
		conditions = append(conditions, fmt.Sprintf("priority = $%d", argNum))
		args = append(args, *filter.Priority)
		argNum++
	}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(title ILIKE $%d OR case_number ILIKE $%d)", argNum, argNum))
		args = append(args, "%"+filter.Search+"%")
		argNum++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM cases %s", whereClause)
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "failed to count cases")
	}

	limit := 50
	if filter.Limit > 0 && filter.Limit <= 100 {
		limit = filter.Limit
	}

	orderBy := "created_at"
	switch filter.OrderBy {
	case "updated_at", "case_number", "priority", "stage":
		orderBy = filter.OrderBy
	}
	direction := "ASC"
	if filter.OrderDesc {
		direction = "DESC"
	}

	query := fmt.Sprintf(`
		SELECT id, case_number, title, description, stage, priority, status,
			created_by, version, created_at, updated_at, closed_at
		FROM cases
		%s
		ORDER BY %s %s
		LIMIT $%d OFFSET $%d`, whereClause, orderBy, direction, argNum, argNum+1)

	args = append(args, limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list cases")
	}
	defer rows.Close()

	var cases []domain.Case
	for rows.Next() {
		var c domain.Case
		err := rows.Scan(
			&c.ID, &c.CaseNumber, &c.Title, &c.Description, &c.Stage, &c.Priority, &c.Status,
			&c.CreatedBy, &c.Version, &c.CreatedAt, &c.UpdatedAt, &c.ClosedAt,
		)
		if err != nil {
			return nil, 0, errors.Wrap(err, "failed to scan case")
		}
		cases = append(cases, c)
	}

	return cases, total, nil
}

// AddComment attaches a comment to a case
func (r *PostgresRepository) AddComment(ctx context.Context, comment *domain.Comment) error {
	query := `
		INSERT INTO case_comments (id, case_id, author_id, body)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`

	err := r.pool.QueryRow(ctx, query,
		comment.ID, comment.CaseID, comment.AuthorID, comment.Body,
	).Scan(&comment.CreatedAt)

	if err != nil {
		if strings.Contains(err.Error(), "foreign key") {
			return errors.NotFound("case", comment.CaseID.String())
		}
		return errors.Wrap(err, "failed to add comment")
	}

	return nil
}

// GetComments lists comments on a case, oldest first
func (r *PostgresRepository) GetComments(ctx context.Context, caseID types.ID, limit, offset int) ([]domain.Comment, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := `
		SELECT id, case_id, author_id, body, created_at
		FROM case_comments
		WHERE case_id = $1
		ORDER BY created_at
		LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, caseID, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list comments")
	}
	defer rows.Close()

	var comments []domain.Comment
	for rows.Next() {
		var c domain.Comment
		if err := rows.Scan(&c.ID, &c.CaseID, &c.AuthorID, &c.Body, &c.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan comment")
		}
		comments = append(comments, c)
	}

	return comments, nil
}
