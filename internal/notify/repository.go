package notify

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/emabi2002/landcasesystem-sub000/internal/shared/errors"
	"github.com/emabi2002/landcasesystem-sub000/internal/shared/types"
)

// PostgresRepository implements Repository backed by PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a notification repository
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

var _ Repository = (*PostgresRepository)(nil)

// Save inserts a notification. The dedup index absorbs duplicate
// deliveries: ON CONFLICT DO NOTHING and a zero row count means the
// same event already reached this recipient in this minute.
func (r *PostgresRepository) Save(ctx context.Context, n *Notification) (bool, error) {
	query := `
		INSERT INTO notifications (id, recipient_id, case_id, event_type, title, message, priority, action_required, minute_bucket)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (case_id, event_type, recipient_id, minute_bucket) DO NOTHING`

	tag, err := r.pool.Exec(ctx, query,
		n.ID, n.RecipientID, n.CaseID, n.EventType,
		n.Title, n.Message, n.Priority, n.ActionRequired, n.MinuteBucket,
	)
	if err != nil {
		return false, errors.Wrap(err, "failed to save notification")
	}

	return tag.RowsAffected() > 0, nil
}

func (r *PostgresRepository) ListByRecipient(ctx context.Context, recipientID types.ID, filter ListFilter) ([]Notification, error) {
	query := `
		SELECT id, recipient_id, case_id, event_type, title, message, priority, action_required, read, minute_bucket, created_at
		FROM notifications
		WHERE recipient_id = $1`

	args := []any{recipientID}
	argNum := 2

	if filter.UnreadOnly {
		query += " AND read = FALSE"
	}

	query += " ORDER BY created_at DESC"

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	query += fmt.Sprintf(" LIMIT $%d", argNum)
	args = append(args, limit)
	argNum++

	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argNum)
		args = append(args, filter.Offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list notifications")
	}
	defer rows.Close()

	var notifications []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(
			&n.ID, &n.RecipientID, &n.CaseID, &n.EventType, &n.Title,
			&n.Message, &n.Priority, &n.ActionRequired, &n.Read,
			&n.MinuteBucket, &n.CreatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan notification")
		}
		notifications = append(notifications, n)
	}

	return notifications, rows.Err()
}

func (r *PostgresRepository) MarkRead(ctx context.Context, id, recipientID types.ID) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE notifications SET read = TRUE WHERE id = $1 AND recipient_id = $2`,
		id, recipientID,
	)
	if err != nil {
		return false, errors.Wrap(err, "failed to mark notification read")
	}

	return tag.RowsAffected() > 0, nil
}

func (r *PostgresRepository) UnreadCount(ctx context.Context, recipientID types.ID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE recipient_id = $1 AND read = FALSE`,
		recipientID,
	).Scan(&count)
	if err != nil {
		return 0, errors.Wrap(err, "failed to count unread notifications")
	}

	return count, nil
}
