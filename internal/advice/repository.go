package advice

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/emabi2002/landcasesystem-sub000/internal/authz"
	"github.com/emabi2002/landcasesystem-sub000/internal/shared/errors"
	"github.com/emabi2002/landcasesystem-sub000/internal/shared/types"
)

// PostgresRepository persists review chains in PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new advice repository
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

var _ Repository = (*PostgresRepository)(nil)

// CreateChain inserts the pending steps for a case atomically
func (r *PostgresRepository) CreateChain(ctx context.Context, steps []Step) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	for _, s := range steps {
		_, err := tx.Exec(ctx,
			`INSERT INTO executive_workflow (
				id, case_id, stage, officer_role, sequence, status
			) VALUES ($1, $2, $3, $4, $5, $6)`,
			s.ID, s.CaseID, s.Stage, s.OfficerRole, s.Sequence, s.Status,
		)
		if err != nil {
			if strings.Contains(err.Error(), "duplicate key") {
				return errors.Conflict("review chain already exists for this case")
			}
			if strings.Contains(err.Error(), "foreign key") {
				return errors.NotFound("case", s.CaseID.String())
			}
			return errors.Wrap(err, "failed to create review step")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}

	return nil
}

// NextPending returns the lowest-sequence pending step
func (r *PostgresRepository) NextPending(ctx context.Context, caseID types.ID) (*Step, error) {
	query := `
		SELECT id, case_id, stage, officer_role, officer_id, sequence, status,
			commentary, advice, recommendations, created_at, completed_at
		FROM executive_workflow
		WHERE case_id = $1 AND status = 'pending'
		ORDER BY sequence
		LIMIT 1`

	s := &Step{}
	err := r.pool.QueryRow(ctx, query, caseID).Scan(
		&s.ID, &s.CaseID, &s.Stage, &s.OfficerRole, &s.OfficerID, &s.Sequence, &s.Status,
		&s.Commentary, &s.Advice, &s.Recommendations, &s.CreatedAt, &s.CompletedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("pending review step", caseID.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get pending step")
	}

	return s, nil
}

// CompleteStep records a submission only while the reviewer's step is
// still pending. Two racing submissions cannot both update.
func (r *PostgresRepository) CompleteStep(ctx context.Context, caseID types.ID, role authz.ReviewerRole, sub Submission, officerID types.ID) (bool, error) {
	query := `
		UPDATE executive_workflow SET
			status = 'completed', officer_id = $3,
			commentary = $4, advice = $5, recommendations = $6,
			completed_at = NOW()
		WHERE case_id = $1 AND officer_role = $2 AND status = 'pending'`

	result, err := r.pool.Exec(ctx, query,
		caseID, role, officerID,
		sub.Commentary, sub.Advice, sub.Recommendations,
	)
	if err != nil {
		return false, errors.Wrap(err, "failed to complete review step")
	}

	return result.RowsAffected() > 0, nil
}

// Steps lists the chain for a case in sequence order
func (r *PostgresRepository) Steps(ctx context.Context, caseID types.ID) ([]Step, error) {
	query := `
		SELECT id, case_id, stage, officer_role, officer_id, sequence, status,
			commentary, advice, recommendations, created_at, completed_at
		FROM executive_workflow
		WHERE case_id = $1
		ORDER BY sequence`

	rows, err := r.pool.Query(ctx, query, caseID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list review steps")
	}
	defer rows.Close()

	var steps []Step
	for rows.Next() {
		var s Step
		err := rows.Scan(
			&s.ID, &s.CaseID, &s.Stage, &s.OfficerRole, &s.OfficerID, &s.Sequence, &s.Status,
			&s.Commentary, &s.Advice, &s.Recommendations, &s.CreatedAt, &s.CompletedAt,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan review step")
		}
		steps = append(steps, s)
	}

	return steps, nil
}

// PendingCount counts outstanding steps for a case
func (r *PostgresRepository) PendingCount(ctx context.Context, caseID types.ID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM executive_workflow WHERE case_id = $1 AND status = 'pending'`,
		caseID,
	).Scan(&count)
	if err != nil {
		return 0, errors.Wrap(err, "failed to count pending steps")
	}
	return count, nil
}
