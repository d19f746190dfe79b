package advice

import (
	"context"
	"fmt"

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

// Service coordinates the executive review chain
type Service struct {
	repo      Repository
	cases     CaseSource
	evaluator *authz.Evaluator
	bus       events.EventBus
	log       zerolog.Logger
}

// NewService creates an advice service
func NewService(repo Repository, cases CaseSource, evaluator *authz.Evaluator, bus events.EventBus, log zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		cases:     cases,
		evaluator: evaluator,
		bus:       bus,
		log:       log.With().Str("component", "advice").Logger(),
	}
}

// Require opens the review chain on a case under compliance review.
// One pending step per reviewer role, in chain order.
func (s *Service) Require(ctx context.Context, actorID types.ID, actorRole authz.Role, caseID types.ID) ([]Step, error) {
	decision, err := s.evaluator.Authorize(ctx, actorID, actorRole, authz.ModuleAdvice, authz.ActionCreate)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, errors.Unauthorized(decision.Reason)
	}

	c, err := s.cases.FindByID(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if c.Stage != domain.StageComplianceReview {
		return nil, errors.PreconditionUnmet("compliance_review",
			fmt.Sprintf("case is at %s, advice is required at %s", c.Stage, domain.StageComplianceReview))
	}

	steps := make([]Step, 0, len(authz.ReviewerChain))
	for i, role := range authz.ReviewerChain {
		steps = append(steps, Step{
			ID:          types.NewID(),
			CaseID:      c.ID,
			Stage:       c.Stage,
			OfficerRole: role,
			Sequence:    i + 1,
			Status:      StepPending,
		})
	}

	if err := s.repo.CreateChain(ctx, steps); err != nil {
		return nil, err
	}

	s.publish(ctx, domain.CaseEventTypeAdviceRequired, c, actorID, actorRole, map[string]any{
		"next_reviewer": authz.ReviewerChain[0],
	})

	s.log.Info().
		Str("case_id", c.ID.String()).
		Msg("executive review chain opened")

	return steps, nil
}

// Submit records a reviewer's advice on the named seat. All three
// texts are mandatory, the actor must hold the static role that staffs
// the seat, and a seat accepts exactly one submission. Seats may be
// completed in any order; sequence only governs who is notified next.
func (s *Service) Submit(ctx context.Context, actorID types.ID, actorRole authz.Role, reviewerRole authz.ReviewerRole, caseID types.ID, sub Submission) (*Step, error) {
	if !authz.ValidReviewerRole(reviewerRole) {
		return nil, errors.BadRequest(fmt.Sprintf("unknown reviewer role: %q", reviewerRole))
	}
	if !sub.Complete() {
		return nil, errors.Validation("commentary, advice and recommendations are all required", nil)
	}
	if actorRole != authz.RoleAdmin && authz.ReviewerStaticRole(reviewerRole) != actorRole {
		return nil, errors.Unauthorized(
			fmt.Sprintf("role %s does not hold the %s seat", actorRole, reviewerRole))
	}

	steps, err := s.repo.Steps(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if len(steps) == 0 {
		return nil, errors.NotFound("review chain", caseID.String())
	}

	var seat *Step
	pending := 0
	for i := range steps {
		if steps[i].Status == StepPending {
			pending++
		}
		if steps[i].OfficerRole == reviewerRole {
			seat = &steps[i]
		}
	}
	if seat == nil {
		return nil, errors.NotFound("review step", string(reviewerRole))
	}
	if seat.Status == StepCompleted {
		if pending == 0 {
			return nil, errors.AlreadyCompleted("review chain", caseID.String())
		}
		return nil, errors.AlreadyResponded("review step", string(reviewerRole))
	}

	updated, err := s.repo.CompleteStep(ctx, caseID, reviewerRole, sub, actorID)
	if err != nil {
		return nil, err
	}
	if !updated {
		// Lost a race: the seat was taken between the read and write
		return nil, errors.AlreadyResponded("review step", string(reviewerRole))
	}

	c, err := s.cases.FindByID(ctx, caseID)
	if err != nil {
		return nil, err
	}

	data := map[string]any{
		"reviewer": reviewerRole,
		"sequence": seat.Sequence,
	}
	if following, err := s.repo.NextPending(ctx, caseID); err == nil {
		data["next_reviewer"] = following.OfficerRole
	} else {
		data["chain_complete"] = true
	}

	s.publish(ctx, domain.CaseEventTypeAdviceSubmitted, c, actorID, actorRole, data)

	s.log.Info().
		Str("case_id", caseID.String()).
		Str("reviewer", string(reviewerRole)).
		Int("sequence", seat.Sequence).
		Msg("advice submitted")

	completed := *seat
	completed.Status = StepCompleted
	completed.OfficerID = &actorID
	completed.Commentary = sub.Commentary
	completed.Advice = sub.Advice
	completed.Recommendations = sub.Recommendations

	return &completed, nil
}

// Steps lists the review chain for a case
func (s *Service) Steps(ctx context.Context, actorID types.ID, actorRole authz.Role, caseID types.ID) ([]Step, error) {
	decision, err := s.evaluator.Authorize(ctx, actorID, actorRole, authz.ModuleAdvice, authz.ActionView)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, errors.Unauthorized(decision.Reason)
	}
	return s.repo.Steps(ctx, caseID)
}

// PendingCount counts outstanding review steps; the case workflow uses
// this to gate closing
func (s *Service) PendingCount(ctx context.Context, caseID types.ID) (int, error) {
	return s.repo.PendingCount(ctx, caseID)
}

func (s *Service) publish(ctx context.Context, eventType domain.CaseEventType, c *domain.Case, actorID types.ID, actorRole authz.Role, data map[string]any) {
	if s.bus == nil {
		return
	}

	payload := map[string]any{
		"case_id":     c.ID,
		"case_number": c.CaseNumber,
		"stage":       c.Stage,
		"priority":    c.Priority,
	}
	for k, v := range data {
		payload[k] = v
	}

	event := events.NewEvent(string(eventType), "advice", payload).WithActor(actorID, string(actorRole))
	if err := s.bus.Publish(ctx, event); err != nil {
		s.log.Error().Err(err).Str("case_id", c.ID.String()).Msg("failed to publish advice event")
	}
}
