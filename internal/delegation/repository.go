package delegation

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/emabi2002/landcasesystem-sub000/internal/casefile/domain"
	"github.com/emabi2002/landcasesystem-sub000/internal/shared/errors"
	"github.com/emabi2002/landcasesystem-sub000/internal/shared/types"
)

// PostgresRepository persists delegations in PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new delegation repository
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

var _ Repository = (*PostgresRepository)(nil)

// Allocate supersedes the active delegation and inserts the new one in
// a single transaction. The partial unique index on active rows makes
// two racing allocations impossible to both succeed.
func (r *PostgresRepository) Allocate(ctx context.Context, d *Delegation) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`UPDATE case_delegations SET status = 'superseded'
		 WHERE case_id = $1 AND stage = $2 AND status = 'active'`,
		d.CaseID, d.Stage,
	)
	if err != nil {
		return errors.Wrap(err, "failed to supersede delegation")
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO case_delegations (
			id, case_id, stage, delegated_to, delegated_by,
			reason, priority, instructions, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		d.ID, d.CaseID, d.Stage, d.DelegatedTo, d.DelegatedBy,
		d.Reason, d.Priority, d.Instructions, d.Status,
	)
	if err != nil {
		if strings.Contains(err.Error(), "foreign key") {
			return errors.NotFound("case", d.CaseID.String())
		}
		if strings.Contains(err.Error(), "duplicate key") {
			return errors.Conflict("case was delegated concurrently")
		}
		return errors.Wrap(err, "failed to insert delegation")
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}

	return nil
}

// CurrentDelegate returns the active delegation for a case and stage
func (r *PostgresRepository) CurrentDelegate(ctx context.Context, caseID types.ID, stage domain.Stage) (*Delegation, error) {
	query := `
		SELECT id, case_id, stage, delegated_to, delegated_by,
			reason, priority, instructions, status, created_at
		FROM case_delegations
		WHERE case_id = $1 AND stage = $2 AND status = 'active'`

	d := &Delegation{}
	err := r.pool.QueryRow(ctx, query, caseID, stage).Scan(
		&d.ID, &d.CaseID, &d.Stage, &d.DelegatedTo, &d.DelegatedBy,
		&d.Reason, &d.Priority, &d.Instructions, &d.Status, &d.CreatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("delegation", caseID.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get delegation")
	}

	return d, nil
}

// History lists all delegations for a case, newest first
func (r *PostgresRepository) History(ctx context.Context, caseID types.ID) ([]Delegation, error) {
	query := `
		SELECT id, case_id, stage, delegated_to, delegated_by,
			reason, priority, instructions, status, created_at
		FROM case_delegations
		WHERE case_id = $1
		ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, caseID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list delegations")
	}
	defer rows.Close()

	var out []Delegation
	for rows.Next() {
		var d Delegation
		err := rows.Scan(
			&d.ID, &d.CaseID, &d.Stage, &d.DelegatedTo, &d.DelegatedBy,
			&d.Reason, &d.Priority, &d.Instructions, &d.Status, &d.CreatedAt,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan delegation")
		}
		out = append(out, d)
	}

	return out, nil
}

// Complete marks the active delegation done
func (r *PostgresRepository) Complete(ctx context.Context, caseID types.ID, stage domain.Stage) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE case_delegations SET status = 'completed'
		 WHERE case_id = $1 AND stage = $2 AND status = 'active'`,
		caseID, stage,
	)
	if err != nil {
		return errors.Wrap(err, "failed to complete delegation")
	}

	if result.RowsAffected() == 0 {
		return errors.NotFound("delegation", caseID.String())
	}

	return nil
}
