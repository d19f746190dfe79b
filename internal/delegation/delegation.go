// Package delegation records which user currently carries a case at a
// workflow stage. Allocating a delegate supersedes any earlier active
// delegation for the same case and stage.
package delegation

import (
	"context"
	"time"

	"github.com/emabi2002/landcasesystem-sub000/internal/casefile/domain"
	"github.com/emabi2002/landcasesystem-sub000/internal/shared/types"
)

// Status of a delegation record
type Status string

const (
	StatusActive     Status = "active"
	StatusSuperseded Status = "superseded"
	StatusCompleted  Status = "completed"
)

// Delegation assigns a case at a stage to a user
type Delegation struct {
	ID           types.ID     `json:"id"`
	CaseID       types.ID     `json:"case_id"`
	Stage        domain.Stage `json:"stage"`
	DelegatedTo  types.ID     `json:"delegated_to"`
	DelegatedBy  types.ID     `json:"delegated_by"`
	Reason       string       `json:"reason"`
	Priority     string       `json:"priority"`
	Instructions string       `json:"instructions"`
	Status       Status       `json:"status"`
	CreatedAt    time.Time    `json:"created_at"`
}

// Repository defines delegation persistence
type Repository interface {
	// Allocate supersedes any active delegation for the case and stage
	// and inserts the new one atomically.
	Allocate(ctx context.Context, d *Delegation) error

	// CurrentDelegate returns the active delegation for a case and
	// stage, or a not-found error.
	CurrentDelegate(ctx context.Context, caseID types.ID, stage domain.Stage) (*Delegation, error)

	// History lists all delegations for a case, newest first
	History(ctx context.Context, caseID types.ID) ([]Delegation, error)

	// Complete marks the active delegation done
	Complete(ctx context.Context, caseID types.ID, stage domain.Stage) error
}
