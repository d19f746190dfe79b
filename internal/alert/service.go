package alert

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/emabi2002/landcasesystem-sub000/internal/authz"
	"github.com/emabi2002/landcasesystem-sub000/internal/casefile/domain"
	"github.com/emabi2002/landcasesystem-sub000/internal/shared/errors"
	"github.com/emabi2002/landcasesystem-sub000/internal/shared/events"
	"github.com/emabi2002/landcasesystem-sub000/internal/shared/metrics"
	"github.com/emabi2002/landcasesystem-sub000/internal/shared/types"
)

// CaseSource loads cases for validation
type CaseSource interface {
	FindByID(ctx context.Context, id types.ID) (*domain.Case, error)
}

// Service coordinates alerts on a case
type Service struct {
	repo      Repository
	cases     CaseSource
	evaluator *authz.Evaluator
	bus       events.EventBus
	log       zerolog.Logger
}

// NewService creates an alert service
func NewService(repo Repository, cases CaseSource, evaluator *authz.Evaluator, bus events.EventBus, log zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		cases:     cases,
		evaluator: evaluator,
		bus:       bus,
		log:       log.With().Str("component", "alert").Logger(),
	}
}

// RaiseInput carries the fields for a new alert
type RaiseInput struct {
	CaseID        types.ID
	RecipientRole authz.Role
	Priority      domain.Priority
	Subject       string
	Message       string
}

// Raise creates a pending alert on an open case. An unset priority
// inherits the case priority.
func (s *Service) Raise(ctx context.Context, actorID types.ID, actorRole authz.Role, in RaiseInput) (*Alert, error) {
	decision, err := s.evaluator.Authorize(ctx, actorID, actorRole, authz.ModuleAlerts, authz.ActionCreate)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, errors.Unauthorized(decision.Reason)
	}

	if in.Subject == "" || in.Message == "" {
		return nil, errors.Validation("subject and message are required", nil)
	}
	if !authz.ValidRole(in.RecipientRole) {
		return nil, errors.BadRequest(fmt.Sprintf("unknown recipient role: %q", in.RecipientRole))
	}

	c, err := s.cases.FindByID(ctx, in.CaseID)
	if err != nil {
		return nil, err
	}
	if c.Status == domain.CaseStatusClosed {
		return nil, errors.PreconditionUnmet("case_open", "cannot raise an alert on a closed case")
	}

	priority := in.Priority
	if priority == "" {
		priority = c.Priority
	}
	if !domain.ValidPriority(priority) {
		return nil, errors.BadRequest(fmt.Sprintf("unknown priority: %q", priority))
	}

	a := &Alert{
		ID:             types.NewID(),
		CaseID:         c.ID,
		Stage:          c.Stage,
		RecipientRole:  in.RecipientRole,
		Priority:       priority,
		Subject:        in.Subject,
		Message:        in.Message,
		RaisedBy:       actorID,
		ResponseStatus: ResponsePending,
	}

	if err := s.repo.Save(ctx, a); err != nil {
		return nil, err
	}

	metrics.RecordAlertRaised(string(priority))
	s.publish(ctx, domain.CaseEventTypeAlertRaised, c, actorID, actorRole, map[string]any{
		"alert_id":       a.ID,
		"recipient_role": a.RecipientRole,
		"subject":        a.Subject,
		"alert_priority": a.Priority,
	})

	s.log.Info().
		Str("alert_id", a.ID.String()).
		Str("case_id", c.ID.String()).
		Str("recipient_role", string(a.RecipientRole)).
		Str("priority", string(a.Priority)).
		Msg("alert raised")

	return a, nil
}

// Respond records the single response on a pending alert. The
// responder must hold the alert's recipient role; admins may respond
// to any alert.
func (s *Service) Respond(ctx context.Context, actorID types.ID, actorRole authz.Role, alertID types.ID, response string) (*Alert, error) {
	decision, err := s.evaluator.Authorize(ctx, actorID, actorRole, authz.ModuleAlerts, authz.ActionEdit)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, errors.Unauthorized(decision.Reason)
	}

	if response == "" {
		return nil, errors.Validation("response text is required", nil)
	}

	a, err := s.repo.FindByID(ctx, alertID)
	if err != nil {
		return nil, err
	}
	if actorRole != authz.RoleAdmin && a.RecipientRole != actorRole {
		return nil, errors.Unauthorized(
			fmt.Sprintf("alert is addressed to %s", a.RecipientRole))
	}

	updated, err := s.repo.Respond(ctx, alertID, response, actorID)
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, errors.AlreadyResponded("alert", alertID.String())
	}

	if c, err := s.cases.FindByID(ctx, a.CaseID); err == nil {
		s.publish(ctx, domain.CaseEventTypeAlertResponded, c, actorID, actorRole, map[string]any{
			"alert_id":  a.ID,
			"subject":   a.Subject,
			"raised_by": a.RaisedBy,
		})
	}

	s.log.Info().
		Str("alert_id", alertID.String()).
		Str("case_id", a.CaseID.String()).
		Msg("alert responded")

	return s.repo.FindByID(ctx, alertID)
}

// ListByCase lists all alerts for a case
func (s *Service) ListByCase(ctx context.Context, actorID types.ID, actorRole authz.Role, caseID types.ID) ([]Alert, error) {
	decision, err := s.evaluator.Authorize(ctx, actorID, actorRole, authz.ModuleAlerts, authz.ActionView)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, errors.Unauthorized(decision.Reason)
	}
	return s.repo.ListByCase(ctx, caseID)
}

// PendingCount counts unresponded alerts raised against a stage; the
// case workflow uses this to gate closing. Alerts on other stages do
// not block.
func (s *Service) PendingCount(ctx context.Context, caseID types.ID, stage domain.Stage) (int, error) {
	return s.repo.PendingCount(ctx, caseID, stage)
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

	event := events.NewEvent(string(eventType), "alert", payload).WithActor(actorID, string(actorRole))
	if err := s.bus.Publish(ctx, event); err != nil {
		s.log.Error().Err(err).Str("case_id", c.ID.String()).Msg("failed to publish alert event")
	}
}
