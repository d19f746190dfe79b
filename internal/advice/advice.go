// Package advice implements the executive review chain: a case under
// compliance review is escalated through secretary, director legal and
// manager legal in order, each recording commentary, advice and
// recommendations before the case may close.
package advice

import (
	"context"
	"time"

	"github.com/emabi2002/landcasesystem-sub000/internal/authz"
	"github.com/emabi2002/landcasesystem-sub000/internal/casefile/domain"
	"github.com/emabi2002/landcasesystem-sub000/internal/shared/types"
)

// StepStatus of a review step
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepCompleted StepStatus = "completed"
)

// Step is one reviewer's slot in the chain for a case
type Step struct {
	ID              types.ID           `json:"id"`
	CaseID          types.ID           `json:"case_id"`
	Stage           domain.Stage       `json:"stage"`
	OfficerRole     authz.ReviewerRole `json:"officer_role"`
	OfficerID       *types.ID          `json:"officer_id,omitempty"`
	Sequence        int                `json:"sequence"`
	Status          StepStatus         `json:"status"`
	Commentary      string             `json:"commentary"`
	Advice          string             `json:"advice"`
	Recommendations string             `json:"recommendations"`
	CreatedAt       time.Time          `json:"created_at"`
	CompletedAt     *time.Time         `json:"completed_at,omitempty"`
}

// Submission carries the three mandatory texts a reviewer records
type Submission struct {
	Commentary      string `json:"commentary"`
	Advice          string `json:"advice"`
	Recommendations string `json:"recommendations"`
}

// Complete reports whether all three texts are present
func (s Submission) Complete() bool {
	return s.Commentary != "" && s.Advice != "" && s.Recommendations != ""
}

// Repository defines review-chain persistence
type Repository interface {
	// CreateChain inserts the pending steps for a case atomically.
	// A second chain for the same case and stage is a conflict.
	CreateChain(ctx context.Context, steps []Step) error

	// NextPending returns the lowest-sequence pending step, or a
	// not-found error when the chain is complete or absent.
	NextPending(ctx context.Context, caseID types.ID) (*Step, error)

	// CompleteStep records a submission on the given reviewer's step
	// only while it is still pending. It reports whether a row was
	// updated.
	CompleteStep(ctx context.Context, caseID types.ID, role authz.ReviewerRole, sub Submission, officerID types.ID) (bool, error)

	// Steps lists the chain for a case in sequence order
	Steps(ctx context.Context, caseID types.ID) ([]Step, error)

	// PendingCount counts outstanding steps for a case
	PendingCount(ctx context.Context, caseID types.ID) (int, error)
}
