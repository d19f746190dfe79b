// Package casefile implements the case workflow: creation, stage
// advancement under role and precondition gates, admin overrides, and
// reopening.
package casefile

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/emabi2002/landcasesystem-sub000/internal/authz"
	"github.com/emabi2002/landcasesystem-sub000/internal/casefile/domain"
	"github.com/emabi2002/landcasesystem-sub000/internal/shared/errors"
	"github.com/emabi2002/landcasesystem-sub000/internal/shared/events"
	"github.com/emabi2002/landcasesystem-sub000/internal/shared/metrics"
	"github.com/emabi2002/landcasesystem-sub000/internal/shared/types"
)

// AlertGate reports unanswered alerts raised against a stage of a case
type AlertGate interface {
	PendingCount(ctx context.Context, caseID types.ID, stage domain.Stage) (int, error)
}

// AdviceGate reports outstanding executive review steps for a case
type AdviceGate interface {
	PendingCount(ctx context.Context, caseID types.ID) (int, error)
}

// Actor identifies who is performing an operation
type Actor struct {
	ID   types.ID
	Role authz.Role
}

// Service coordinates case workflow operations
type Service struct {
	repo      domain.Repository
	evaluator *authz.Evaluator
	bus       events.EventBus
	alerts    AlertGate
	advice    AdviceGate
	log       zerolog.Logger

	// Serializes mutations per case on top of the optimistic version
	// check, so concurrent advances fail fast instead of racing.
	mu    sync.Mutex
	locks map[types.ID]*sync.Mutex
}

// NewService creates a case workflow service
func NewService(repo domain.Repository, evaluator *authz.Evaluator, bus events.EventBus, alerts AlertGate, advice AdviceGate, log zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		evaluator: evaluator,
		bus:       bus,
		alerts:    alerts,
		advice:    advice,
		log:       log.With().Str("component", "casefile").Logger(),
		locks:     make(map[types.ID]*sync.Mutex),
	}
}

func (s *Service) caseLock(id types.ID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

// releaseLock drops the per-case mutex once a case reaches the
// terminal stage, so the map does not grow with closed cases. A reopen
// simply mints a fresh lock.
func (s *Service) releaseLock(id types.ID) {
	s.mu.Lock()
	delete(s.locks, id)
	s.mu.Unlock()
}

// Create opens a new case at the first workflow stage
func (s *Service) Create(ctx context.Context, actor Actor, title, description string, priority domain.Priority) (*domain.Case, error) {
	if err := s.authorize(ctx, actor, authz.ActionCreate); err != nil {
		return nil, err
	}

	c, err := domain.NewCase(title, description, priority, actor.ID)
	if err != nil {
		return nil, errors.Validation(err.Error(), nil)
	}

	if err := s.repo.Save(ctx, c); err != nil {
		return nil, err
	}

	metrics.RecordCaseCreated(string(c.Priority))
	s.publishEvents(ctx, c, actor)

	s.log.Info().
		Str("case_id", c.ID.String()).
		Str("case_number", c.CaseNumber).
		Msg("case created")

	return c, nil
}

// Get loads a case by ID
func (s *Service) Get(ctx context.Context, actor Actor, id types.ID) (*domain.Case, error) {
	if err := s.authorize(ctx, actor, authz.ActionView); err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, id)
}

// List queries cases
func (s *Service) List(ctx context.Context, actor Actor, filter domain.ListFilter) ([]domain.Case, int, error) {
	if err := s.authorize(ctx, actor, authz.ActionView); err != nil {
		return nil, 0, err
	}
	return s.repo.List(ctx, filter)
}

// Update edits the details of a case
func (s *Service) Update(ctx context.Context, actor Actor, id types.ID, title, description string, priority domain.Priority, expectedVersion int64) (*domain.Case, error) {
	if err := s.authorize(ctx, actor, authz.ActionEdit); err != nil {
		return nil, err
	}

	lock := s.caseLock(id)
	lock.Lock()
	defer lock.Unlock()

	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if expectedVersion > 0 && c.Version != expectedVersion {
		return nil, errors.Conflict("case was modified concurrently")
	}

	if err := c.Update(title, description, priority, actor.ID); err != nil {
		return nil, errors.Validation(err.Error(), nil)
	}

	if err := s.repo.Update(ctx, c, c.Version-1); err != nil {
		return nil, err
	}

	s.publishEvents(ctx, c, actor)
	return c, nil
}

// Advance moves a case to the given stage. The stage must be the
// immediate successor, the actor's role must be allowed to drive it,
// and stage preconditions must hold.
func (s *Service) Advance(ctx context.Context, actor Actor, id types.ID, to domain.Stage, expectedVersion int64) (*domain.Case, error) {
	if err := s.authorize(ctx, actor, authz.ActionEdit); err != nil {
		return nil, err
	}

	if !to.Valid() {
		return nil, errors.BadRequest(fmt.Sprintf("unknown stage: %q", to))
	}

	if !authz.CanDriveStage(actor.Role, to) {
		return nil, errors.Unauthorized(fmt.Sprintf("role %s may not move cases into %s", actor.Role, to))
	}

	lock := s.caseLock(id)
	lock.Lock()
	defer lock.Unlock()

	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if expectedVersion > 0 && c.Version != expectedVersion {
		return nil, errors.Conflict("case was modified concurrently")
	}

	// A repeated advance to the stage the case already reached is
	// reported distinctly from an invalid jump.
	if c.Stage == to {
		return nil, errors.AlreadyCompleted("stage transition", string(to))
	}
	if !c.Stage.CanAdvanceTo(to) {
		return nil, errors.InvalidTransition(string(c.Stage), string(to))
	}

	if err := s.checkPreconditions(ctx, c, to); err != nil {
		return nil, err
	}

	from := c.Stage
	if err := c.Advance(to, actor.ID); err != nil {
		return nil, errors.InvalidTransition(string(from), string(to))
	}

	if err := s.repo.Update(ctx, c, c.Version-1); err != nil {
		return nil, err
	}

	metrics.RecordStageTransition(string(from), string(to))
	s.publishEvents(ctx, c, actor)

	if c.Stage == domain.StageNotified {
		s.releaseLock(c.ID)
	}

	s.log.Info().
		Str("case_id", c.ID.String()).
		Str("from", string(from)).
		Str("to", string(to)).
		Str("actor", actor.ID.String()).
		Msg("case advanced")

	return c, nil
}

// checkPreconditions enforces the gates on entering a stage:
// closing requires the executive review chain complete and no pending
// alerts against the stage being closed. Alerts raised at earlier
// stages do not block. Notification presupposes closure, which the
// successor rule already guarantees.
func (s *Service) checkPreconditions(ctx context.Context, c *domain.Case, to domain.Stage) error {
	if to != domain.StageClosed {
		return nil
	}

	if s.advice != nil {
		pending, err := s.advice.PendingCount(ctx, c.ID)
		if err != nil {
			return errors.Wrap(err, "failed to check advice status")
		}
		if pending > 0 {
			return errors.PreconditionUnmet("executive_advice",
				fmt.Sprintf("%d review step(s) outstanding", pending))
		}
	}

	if s.alerts != nil {
		pending, err := s.alerts.PendingCount(ctx, c.ID, c.Stage)
		if err != nil {
			return errors.Wrap(err, "failed to check alert status")
		}
		if pending > 0 {
			return errors.PreconditionUnmet("alerts",
				fmt.Sprintf("%d alert(s) awaiting response at %s", pending, c.Stage))
		}
	}

	return nil
}

// Override moves a case to an arbitrary stage, admin only
func (s *Service) Override(ctx context.Context, actor Actor, id types.ID, to domain.Stage, reason string) (*domain.Case, error) {
	if !authz.CanOverride(actor.Role) {
		return nil, errors.Unauthorized("only administrators may override the workflow")
	}

	lock := s.caseLock(id)
	lock.Lock()
	defer lock.Unlock()

	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	from := c.Stage
	if err := c.Override(to, actor.ID, reason); err != nil {
		return nil, errors.BadRequest(err.Error())
	}

	if err := s.repo.Update(ctx, c, c.Version-1); err != nil {
		return nil, err
	}

	metrics.RecordStageTransition(string(from), string(to))
	s.publishEvents(ctx, c, actor)

	if c.Stage == domain.StageNotified {
		s.releaseLock(c.ID)
	}

	s.log.Warn().
		Str("case_id", c.ID.String()).
		Str("from", string(from)).
		Str("to", string(to)).
		Str("actor", actor.ID.String()).
		Str("reason", reason).
		Msg("workflow override")

	return c, nil
}

// Reopen moves a closed case back to compliance review
func (s *Service) Reopen(ctx context.Context, actor Actor, id types.ID, reason string) (*domain.Case, error) {
	if actor.Role != authz.RoleAdmin && actor.Role != authz.RoleExecutive {
		return nil, errors.Unauthorized("only executives or administrators may reopen a case")
	}

	lock := s.caseLock(id)
	lock.Lock()
	defer lock.Unlock()

	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	from := c.Stage
	if err := c.Reopen(actor.ID, reason); err != nil {
		return nil, errors.BadRequest(err.Error())
	}

	if err := s.repo.Update(ctx, c, c.Version-1); err != nil {
		return nil, err
	}

	metrics.RecordStageTransition(string(from), string(c.Stage))
	s.publishEvents(ctx, c, actor)

	return c, nil
}

// AddComment attaches a note to a case
func (s *Service) AddComment(ctx context.Context, actor Actor, caseID types.ID, body string) (*domain.Comment, error) {
	if err := s.authorize(ctx, actor, authz.ActionEdit); err != nil {
		return nil, err
	}
	if body == "" {
		return nil, errors.Validation("comment body is required", nil)
	}

	// Confirm the case exists before attaching
	c, err := s.repo.FindByID(ctx, caseID)
	if err != nil {
		return nil, err
	}

	comment := &domain.Comment{
		ID:       types.NewID(),
		CaseID:   c.ID,
		AuthorID: actor.ID,
		Body:     body,
	}

	if err := s.repo.AddComment(ctx, comment); err != nil {
		return nil, err
	}

	if s.bus != nil {
		event := events.NewEvent(string(domain.CaseEventTypeCommentAdded), "casefile", map[string]any{
			"case_id":     c.ID,
			"case_number": c.CaseNumber,
			"comment_id":  comment.ID,
			"created_by":  c.CreatedBy,
		}).WithActor(actor.ID, string(actor.Role))
		if err := s.bus.Publish(ctx, event); err != nil {
			s.log.Error().Err(err).Str("case_id", c.ID.String()).Msg("failed to publish comment event")
		}
	}

	return comment, nil
}

// Comments lists the notes on a case
func (s *Service) Comments(ctx context.Context, actor Actor, caseID types.ID, limit, offset int) ([]domain.Comment, error) {
	if err := s.authorize(ctx, actor, authz.ActionView); err != nil {
		return nil, err
	}
	return s.repo.GetComments(ctx, caseID, limit, offset)
}

func (s *Service) authorize(ctx context.Context, actor Actor, action authz.Action) error {
	decision, err := s.evaluator.Authorize(ctx, actor.ID, actor.Role, authz.ModuleCases, action)
	if err != nil {
		return err
	}
	if !decision.Allowed {
		return errors.Unauthorized(decision.Reason)
	}
	return nil
}

func (s *Service) publishEvents(ctx context.Context, c *domain.Case, actor Actor) {
	if s.bus == nil {
		c.GetDomainEvents()
		return
	}

	for _, e := range c.GetDomainEvents() {
		event := events.NewEvent(e.Type, "casefile", map[string]any{
			"case_id":     c.ID,
			"case_number": c.CaseNumber,
			"stage":       c.Stage,
			"priority":    c.Priority,
			"event":       e.CaseEvent,
		}).WithActor(actor.ID, string(actor.Role))

		if err := s.bus.Publish(ctx, event); err != nil {
			s.log.Error().Err(err).
				Str("case_id", c.ID.String()).
				Str("type", e.Type).
				Msg("failed to publish case event")
		}
	}
}
