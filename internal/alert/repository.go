package alert

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/emabi2002/landcasesystem-sub000/internal/casefile/domain"
	"github.com/emabi2002/landcasesystem-sub000/internal/shared/errors"
	"github.com/emabi2002/landcasesystem-sub000/internal/shared/types"
)

// PostgresRepository implements Repository backed by PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates an alert repository
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

var _ Repository = (*PostgresRepository)(nil)

func (r *PostgresRepository) Save(ctx context.Context, a *Alert) error {
	query := `
		INSERT INTO alerts (id, case_id, stage, recipient_role, priority, subject, message, raised_by, response_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at`

	err := r.pool.QueryRow(ctx, query,
		a.ID, a.CaseID, a.Stage, a.RecipientRole, a.Priority,
		a.Subject, a.Message, a.RaisedBy, a.ResponseStatus,
	).Scan(&a.CreatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "foreign key") {
			return errors.NotFound("case", a.CaseID.String())
		}
		return errors.Wrap(err, "failed to save alert")
	}

	return nil
}

func (r *PostgresRepository) FindByID(ctx context.Context, id types.ID) (*Alert, error) {
	query := `
		SELECT id, case_id, stage, recipient_role, priority, subject, message,
		       raised_by, response_status, response, responded_by, responded_at, created_at
		FROM alerts
		WHERE id = $1`

	var a Alert
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&a.ID, &a.CaseID, &a.Stage, &a.RecipientRole, &a.Priority,
		&a.Subject, &a.Message, &a.RaisedBy, &a.ResponseStatus,
		&a.Response, &a.RespondedBy, &a.RespondedAt, &a.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errors.NotFound("alert", id.String())
		}
		return nil, errors.Wrap(err, "failed to find alert")
	}

	return &a, nil
}

// Respond flips the alert to responded. The WHERE clause keeps the
// update conditional on the alert still being pending, so the first
// responder wins and everyone else sees zero rows.
func (r *PostgresRepository) Respond(ctx context.Context, id types.ID, response string, respondedBy types.ID) (bool, error) {
	query := `
		UPDATE alerts
		SET response_status = $2, response = $3, responded_by = $4, responded_at = NOW()
		WHERE id = $1 AND response_status = $5`

	tag, err := r.pool.Exec(ctx, query, id, ResponseResponded, response, respondedBy, ResponsePending)
	if err != nil {
		return false, errors.Wrap(err, "failed to respond to alert")
	}

	return tag.RowsAffected() > 0, nil
}

func (r *PostgresRepository) ListByCase(ctx context.Context, caseID types.ID) ([]Alert, error) {
	query := `
		SELECT id, case_id, stage, recipient_role, priority, subject, message,
		       raised_by, response_status, response, responded_by, responded_at, created_at
		FROM alerts
		WHERE case_id = $1
		ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, caseID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list alerts")
	}
	defer rows.Close()

	var alerts []Alert
	for rows.Next() {
		var a Alert
		if err := rows.Scan(
			&a.ID, &a.CaseID, &a.Stage, &a.RecipientRole, &a.Priority,
			&a.Subject, &a.Message, &a.RaisedBy, &a.ResponseStatus,
			&a.Response, &a.RespondedBy, &a.RespondedAt, &a.CreatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan alert")
		}
		alerts = append(alerts, a)
	}

	return alerts, rows.Err()
}

func (r *PostgresRepository) PendingCount(ctx context.Context, caseID types.ID, stage domain.Stage) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM alerts WHERE case_id = $1 AND stage = $2 AND response_status = $3`,
		caseID, stage, ResponsePending,
	).Scan(&count)
	if err != nil {
		return 0, errors.Wrap(err, "failed to count pending alerts")
	}

	return count, nil
}
