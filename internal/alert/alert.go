// Package alert implements stage-bound alerts raised against a case.
// An alert targets a role, carries a priority and blocks case closure
// until its recipient responds. A response is recorded exactly once.
package alert

import (
	"context"
	"time"

	"github.com/emabi2002/landcasesystem-sub000/internal/authz"
	"github.com/emabi2002/landcasesystem-sub000/internal/casefile/domain"
	"github.com/emabi2002/landcasesystem-sub000/internal/shared/types"
)

// ResponseStatus of an alert
type ResponseStatus string

const (
	ResponsePending   ResponseStatus = "pending"
	ResponseResponded ResponseStatus = "responded"
)

// Alert raised on a case at a particular stage
type Alert struct {
	ID             types.ID        `json:"id"`
	CaseID         types.ID        `json:"case_id"`
	Stage          domain.Stage    `json:"stage"`
	RecipientRole  authz.Role      `json:"recipient_role"`
	Priority       domain.Priority `json:"priority"`
	Subject        string          `json:"subject"`
	Message        string          `json:"message"`
	RaisedBy       types.ID        `json:"raised_by"`
	ResponseStatus ResponseStatus  `json:"response_status"`
	Response       string          `json:"response,omitempty"`
	RespondedBy    *types.ID       `json:"responded_by,omitempty"`
	RespondedAt    *time.Time      `json:"responded_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Pending reports whether the alert still awaits a response
func (a *Alert) Pending() bool {
	return a.ResponseStatus == ResponsePending
}

// Repository defines alert persistence
type Repository interface {
	// Save inserts a new alert
	Save(ctx context.Context, a *Alert) error

	// FindByID loads a single alert
	FindByID(ctx context.Context, id types.ID) (*Alert, error)

	// Respond records a response on an alert only while it is still
	// pending. It reports whether a row was updated.
	Respond(ctx context.Context, id types.ID, response string, respondedBy types.ID) (bool, error)

	// ListByCase lists all alerts for a case, newest first
	ListByCase(ctx context.Context, caseID types.ID) ([]Alert, error)

	// PendingCount counts unresponded alerts raised against the given
	// stage of a case
	PendingCount(ctx context.Context, caseID types.ID, stage domain.Stage) (int, error)
}
