package history

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/emabi2002/landcasesystem-sub000/internal/shared/errors"
	"github.com/emabi2002/landcasesystem-sub000/internal/shared/metrics"
	"github.com/emabi2002/landcasesystem-sub000/internal/shared/types"
)

// Repository provides append-only history operations. Appends are
// serialized behind a mutex so the hash chain never forks.
type Repository struct {
	pool     *pgxpool.Pool
	mu       sync.Mutex
	lastHash string
}

// NewRepository creates a history repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Initialize loads the tip of the chain from the database
func (r *Repository) Initialize(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var hash string
	err := r.pool.QueryRow(ctx, `
		SELECT hash FROM case_history
		ORDER BY sequence DESC
		LIMIT 1
	`).Scan(&hash)
	if err != nil && !strings.Contains(err.Error(), "no rows") {
		return errors.Wrap(err, "failed to load last history hash")
	}

	r.lastHash = hash
	return nil
}

// Append links the entry to the chain tip and persists it
func (r *Repository) Append(ctx context.Context, entry *Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry.PrevHash = r.lastHash
	entry.Hash = entry.computeHash()

	metadataJSON, err := json.Marshal(entry.Metadata)
	if err != nil {
		return errors.Wrap(err, "failed to marshal metadata")
	}

	query := `
		INSERT INTO case_history (id, case_id, action, description, metadata, actor_id, hash, prev_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING sequence`

	err = r.pool.QueryRow(ctx, query,
		entry.ID, entry.CaseID, entry.Action, entry.Description,
		metadataJSON, entry.ActorID, entry.Hash, entry.PrevHash, entry.CreatedAt,
	).Scan(&entry.Sequence)
	if err != nil {
		return errors.Wrap(err, "failed to append history entry")
	}

	r.lastHash = entry.Hash
	metrics.RecordHistoryEntry()

	return nil
}

// List lists history entries with filters, newest first
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Entry, int, error) {
	var conditions []string
	var args []any
	argNum := 1

	if filter.CaseID != nil {
		conditions = append(conditions, fmt.Sprintf("case_id = $%d", argNum))
		args = append(args, *filter.CaseID)
		argNum++
	}

	if filter.Action != "" {
		conditions = append(conditions, fmt.Sprintf("action LIKE $%d", argNum))
		args = append(args, filter.Action+"%")
		argNum++
	}

	if filter.ActorID != nil {
		conditions = append(conditions, fmt.Sprintf("actor_id = $%d", argNum))
		args = append(args, *filter.ActorID)
		argNum++
	}

	if filter.StartTime != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", argNum))
		args = append(args, *filter.StartTime)
		argNum++
	}

	if filter.EndTime != nil {
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", argNum))
		args = append(args, *filter.EndTime)
		argNum++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM case_history %s", whereClause)
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "failed to count history entries")
	}

	limit := 50
	if filter.Limit > 0 && filter.Limit <= 100 {
		limit = filter.Limit
	}

	query := fmt.Sprintf(`
		SELECT id, sequence, case_id, action, description, metadata, actor_id, hash, prev_hash, created_at
		FROM case_history
		%s
		ORDER BY sequence DESC
		LIMIT $%d OFFSET $%d`, whereClause, argNum, argNum+1)

	args = append(args, limit, filter.Offset)

	entries, err := r.queryEntries(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}

// ByCase returns a case's full history in chain order
func (r *Repository) ByCase(ctx context.Context, caseID types.ID, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 200
	}

	return r.queryEntries(ctx, `
		SELECT id, sequence, case_id, action, description, metadata, actor_id, hash, prev_hash, created_at
		FROM case_history
		WHERE case_id = $1
		ORDER BY sequence ASC
		LIMIT $2`, caseID, limit)
}

// VerifyResult summarizes a chain verification run
type VerifyResult struct {
	Valid          bool                `json:"valid"`
	Checked        int                 `json:"checked"`
	ContentValid   int                 `json:"content_valid"`
	ContentInvalid int                 `json:"content_invalid"`
	LinkageValid   int                 `json:"linkage_valid"`
	LinkageInvalid int                 `json:"linkage_invalid"`
	Violations     []string            `json:"violations,omitempty"`
	Entries        []VerifyEntryResult `json:"entries,omitempty"`
}

// VerifyEntryResult is the verification verdict for a single entry
type VerifyEntryResult struct {
	ID            types.ID `json:"id"`
	Sequence      int64    `json:"sequence"`
	Hash          string   `json:"hash"`
	ComputedHash  string   `json:"computed_hash,omitempty"`
	PrevHash      string   `json:"prev_hash"`
	Valid         bool     `json:"valid"`
	ContentValid  bool     `json:"content_valid"`
	LinkageValid  bool     `json:"linkage_valid"`
	Action        string   `json:"action"`
	ViolationType string   `json:"violation_type,omitempty"`
}

// VerifyChain walks the most recent entries and checks both that each
// entry's content still matches its hash and that every prev_hash
// points at the hash of the entry before it.
func (r *Repository) VerifyChain(ctx context.Context, limit int, includeDetails bool) (*VerifyResult, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	entries, err := r.queryEntries(ctx, `
		SELECT id, sequence, case_id, action, description, metadata, actor_id, hash, prev_hash, created_at
		FROM case_history
		ORDER BY sequence DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}

	result := &VerifyResult{
		Valid:   true,
		Entries: make([]VerifyEntryResult, 0),
	}

	// Entries are newest-first, so prevStoredHash carries the
	// prev_hash the later entry claims for the one we check next.
	var prevStoredHash string

	for i, e := range entries {
		verdict := VerifyEntryResult{
			ID:           e.ID,
			Sequence:     e.Sequence,
			Hash:         e.Hash,
			PrevHash:     e.PrevHash,
			Action:       e.Action,
			ContentValid: true,
			LinkageValid: true,
			Valid:        true,
		}

		computedHash := e.ComputeHash()
		verdict.ComputedHash = computedHash

		if computedHash != e.Hash {
			verdict.ContentValid = false
			verdict.Valid = false
			verdict.ViolationType = "content"
			result.ContentInvalid++
			result.Valid = false
			result.Violations = append(result.Violations,
				fmt.Sprintf("content tampered: entry %s (seq %d) no longer matches its hash", e.ID, e.Sequence))
		} else {
			result.ContentValid++
		}

		if i > 0 && prevStoredHash != "" && e.Hash != prevStoredHash {
			verdict.LinkageValid = false
			verdict.Valid = false
			result.LinkageInvalid++
			result.Valid = false
			result.Violations = append(result.Violations,
				fmt.Sprintf("chain broken: entry %s (seq %d) is not the entry its successor links to", e.ID, e.Sequence))
			if verdict.ViolationType == "content" {
				verdict.ViolationType = "both"
			} else {
				verdict.ViolationType = "linkage"
			}
		} else if i > 0 {
			result.LinkageValid++
		}

		if includeDetails {
			result.Entries = append(result.Entries, verdict)
		}

		prevStoredHash = e.PrevHash
		result.Checked++
	}

	return result, nil
}

func (r *Repository) queryEntries(ctx context.Context, query string, args ...any) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query history entries")
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var metadataJSON []byte

		if err := rows.Scan(
			&e.ID, &e.Sequence, &e.CaseID, &e.Action, &e.Description,
			&metadataJSON, &e.ActorID, &e.Hash, &e.PrevHash, &e.CreatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan history entry")
		}

		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &e.Metadata); err != nil {
				e.Metadata = nil
			}
		}

		entries = append(entries, e)
	}

	return entries, rows.Err()
}
