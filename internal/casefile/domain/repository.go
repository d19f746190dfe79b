package domain

import (
	"context"

	"github.com/emabi2002/landcasesystem-sub000/internal/shared/types"
)

// Repository defines the interface for case persistence
type Repository interface {
	// Case operations
	Save(ctx context.Context, c *Case) error
	FindByID(ctx context.Context, id types.ID) (*Case, error)
	FindByCaseNumber(ctx context.Context, caseNumber string) (*Case, error)

	// Update persists the case only if the stored version matches
	// expectedVersion; a mismatch returns a conflict error. Cases are
	// never deleted, only closed.
	Update(ctx context.Context, c *Case, expectedVersion int64) error

	// Query operations
	List(ctx context.Context, filter ListFilter) ([]Case, int, error)

	// Comment operations
	AddComment(ctx context.Context, comment *Comment) error
	GetComments(ctx context.Context, caseID types.ID, limit, offset int) ([]Comment, error)
}

// ListFilter defines filters for listing cases
type ListFilter struct {
	Stage     *Stage      `json:"stage,omitempty"`
	Status    *CaseStatus `json:"status,omitempty"`
	Priority  *Priority   `json:"priority,omitempty"`
	Search    string      `json:"search,omitempty"`
	Limit     int         `json:"limit,omitempty"`
	Offset    int         `json:"offset,omitempty"`
	OrderBy   string      `json:"order_by,omitempty"`
	OrderDesc bool        `json:"order_desc,omitempty"`
}
