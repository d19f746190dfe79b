package delegation

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/emabi2002/landcasesystem-sub000/internal/authz"
	"github.com/emabi2002/landcasesystem-sub000/internal/casefile/domain"
	"github.com/emabi2002/landcasesystem-sub000/internal/shared/errors"
	"github.com/emabi2002/landcasesystem-sub000/internal/shared/events"
	"github.com/emabi2002/landcasesystem-sub000/internal/shared/types"
)

// CaseSource loads cases for validation
type CaseSource interface {
	FindByID(ctx context.Context, id types.ID) (*domain.Case, error)
}

// Service coordinates case delegations
type Service struct {
	repo      Repository
	cases     CaseSource
	evaluator *authz.Evaluator
	bus       events.EventBus
	log       zerolog.Logger
}

// NewService creates a delegation service
func NewService(repo Repository, cases CaseSource, evaluator *authz.Evaluator, bus events.EventBus, log zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		cases:     cases,
		evaluator: evaluator,
		bus:       bus,
		log:       log.With().Str("component", "delegation").Logger(),
	}
}

// Allocate assigns a case at its current stage to a user. An earlier
// active delegation for the same stage is superseded, never stacked.
func (s *Service) Allocate(ctx context.Context, actorID types.ID, actorRole authz.Role, caseID, delegateTo types.ID, reason, priority, instructions string) (*Delegation, error) {
	decision, err := s.evaluator.Authorize(ctx, actorID, actorRole, authz.ModuleDelegations, authz.ActionCreate)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, errors.Unauthorized(decision.Reason)
	}

	if delegateTo.IsZero() {
		return nil, errors.Validation("delegated_to is required", nil)
	}

	c, err := s.cases.FindByID(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if c.Status == domain.CaseStatusClosed {
		return nil, errors.PreconditionUnmet("case_open", "cannot delegate a closed case")
	}
	if priority == "" {
		priority = string(c.Priority)
	}

	d := &Delegation{
		ID:           types.NewID(),
		CaseID:       c.ID,
		Stage:        c.Stage,
		DelegatedTo:  delegateTo,
		DelegatedBy:  actorID,
		Reason:       reason,
		Priority:     priority,
		Instructions: instructions,
		Status:       StatusActive,
	}

	if err := s.repo.Allocate(ctx, d); err != nil {
		return nil, err
	}

	if s.bus != nil {
		event := events.NewEvent(string(domain.CaseEventTypeDelegated), "delegation", map[string]any{
			"case_id":      c.ID,
			"case_number":  c.CaseNumber,
			"stage":        c.Stage,
			"priority":     d.Priority,
			"delegated_to": d.DelegatedTo,
		}).WithActor(actorID, string(actorRole))
		if err := s.bus.Publish(ctx, event); err != nil {
			s.log.Error().Err(err).Str("case_id", c.ID.String()).Msg("failed to publish delegation event")
		}
	}

	s.log.Info().
		Str("case_id", c.ID.String()).
		Str("stage", string(c.Stage)).
		Str("delegated_to", delegateTo.String()).
		Msg("case allocated")

	return d, nil
}

// CurrentDelegate returns the active delegation for a case's stage
func (s *Service) CurrentDelegate(ctx context.Context, caseID types.ID, stage domain.Stage) (*Delegation, error) {
	return s.repo.CurrentDelegate(ctx, caseID, stage)
}

// History lists all delegations for a case
func (s *Service) History(ctx context.Context, actorID types.ID, actorRole authz.Role, caseID types.ID) ([]Delegation, error) {
	decision, err := s.evaluator.Authorize(ctx, actorID, actorRole, authz.ModuleDelegations, authz.ActionView)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, errors.Unauthorized(decision.Reason)
	}
	return s.repo.History(ctx, caseID)
}
