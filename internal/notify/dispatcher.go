package notify

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/emabi2002/landcasesystem-sub000/internal/advice"
	"github.com/emabi2002/landcasesystem-sub000/internal/authz"
	"github.com/emabi2002/landcasesystem-sub000/internal/casefile/domain"
	"github.com/emabi2002/landcasesystem-sub000/internal/delegation"
	"github.com/emabi2002/landcasesystem-sub000/internal/shared/config"
	"github.com/emabi2002/landcasesystem-sub000/internal/shared/events"
	"github.com/emabi2002/landcasesystem-sub000/internal/shared/metrics"
	"github.com/emabi2002/landcasesystem-sub000/internal/shared/types"
)

// DelegateSource reports the active delegate for a case and stage
type DelegateSource interface {
	CurrentDelegate(ctx context.Context, caseID types.ID, stage domain.Stage) (*delegation.Delegation, error)
}

// ReviewSource lists the advice chain for a case
type ReviewSource interface {
	Steps(ctx context.Context, caseID types.ID) ([]advice.Step, error)
}

// Dispatcher turns case events into per-recipient notifications
type Dispatcher struct {
	repo      Repository
	users     RecipientSource
	delegates DelegateSource
	reviews   ReviewSource
	cfg       config.NotifyConfig
	log       zerolog.Logger
}

// NewDispatcher creates a notification dispatcher
func NewDispatcher(repo Repository, users RecipientSource, delegates DelegateSource, reviews ReviewSource, cfg config.NotifyConfig, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		repo:      repo,
		users:     users,
		delegates: delegates,
		reviews:   reviews,
		cfg:       cfg,
		log:       log.With().Str("component", "notify").Logger(),
	}
}

// Start subscribes the dispatcher to all case events
func (d *Dispatcher) Start(ctx context.Context, bus events.EventBus) error {
	return bus.Subscribe(ctx, "case.*", "notify-dispatcher", d.Handle)
}

// delivery describes where one event goes and how it should read
type delivery struct {
	roles          []string
	recipients     []types.ID
	title          string
	message        string
	actionRequired bool
}

// Handle routes one event to its recipients. Failures on individual
// recipients are logged and skipped so one bad inbox cannot stall the
// rest of the fan-out.
func (d *Dispatcher) Handle(ctx context.Context, event events.Event) error {
	data := asMap(event.Data)

	caseID, err := types.ParseID(stringField(data, "case_id"))
	if err != nil {
		d.log.Warn().Str("type", event.Type).Msg("event without a case ID, skipping")
		return nil
	}

	del := d.resolve(ctx, event, data, caseID)
	if del == nil {
		return nil
	}

	recipients := del.recipients
	for _, role := range del.roles {
		ids, err := d.users.UserIDsByRole(ctx, loginRole(role))
		if err != nil {
			d.log.Error().Err(err).Str("role", role).Msg("failed to resolve recipients")
			continue
		}
		recipients = append(recipients, ids...)
	}

	priority := stringField(data, "priority")
	if p := stringField(data, "alert_priority"); p != "" {
		priority = p
	}
	if priority == "" {
		priority = string(domain.PriorityMedium)
	}

	bucket := event.Timestamp.Unix() / 60

	seen := make(map[types.ID]bool, len(recipients))
	for _, recipientID := range recipients {
		if recipientID.IsZero() || seen[recipientID] {
			continue
		}
		seen[recipientID] = true

		inserted, err := d.repo.Save(ctx, &Notification{
			ID:             types.NewID(),
			RecipientID:    recipientID,
			CaseID:         caseID,
			EventType:      event.Type,
			Title:          del.title,
			Message:        del.message,
			Priority:       priority,
			ActionRequired: del.actionRequired,
			MinuteBucket:   bucket,
		})
		if err != nil {
			d.log.Error().Err(err).
				Str("recipient_id", recipientID.String()).
				Str("type", event.Type).
				Msg("failed to deliver notification")
			continue
		}

		if inserted {
			metrics.RecordNotificationDispatched(event.Type)
		} else {
			metrics.RecordNotificationDeduped()
		}
	}

	return nil
}

func (d *Dispatcher) resolve(ctx context.Context, event events.Event, data map[string]any, caseID types.ID) *delivery {
	caseNumber := stringField(data, "case_number")
	stage := stringField(data, "stage")

	switch domain.CaseEventType(event.Type) {
	case domain.CaseEventTypeCreated:
		return &delivery{
			roles:   d.cfg.CreatedNotifyRoles,
			title:   fmt.Sprintf("New case %s", caseNumber),
			message: fmt.Sprintf("Case %s has been received and awaits direction", caseNumber),
		}

	case domain.CaseEventTypeStageChanged:
		del := &delivery{
			title:   fmt.Sprintf("Case %s moved to %s", caseNumber, stage),
			message: fmt.Sprintf("Case %s is now at the %s stage", caseNumber, stage),
		}
		if d.delegates != nil {
			if cur, err := d.delegates.CurrentDelegate(ctx, caseID, domain.Stage(stage)); err == nil {
				del.recipients = append(del.recipients, cur.DelegatedTo)
			}
		}
		if d.reviews != nil {
			if steps, err := d.reviews.Steps(ctx, caseID); err == nil {
				for _, step := range steps {
					if step.Status == advice.StepPending {
						del.roles = append(del.roles, string(step.OfficerRole))
					}
				}
			}
		}
		// Nobody owns the stage yet, tell the roles that drive it
		if len(del.recipients) == 0 && len(del.roles) == 0 {
			del.roles = rolesForStage(domain.Stage(stage))
		}
		return del

	case domain.CaseEventTypeCommentAdded:
		creator, err := types.ParseID(stringField(data, "created_by"))
		if err != nil || creator == event.ActorID {
			return nil
		}
		return &delivery{
			recipients: []types.ID{creator},
			title:      fmt.Sprintf("New comment on case %s", caseNumber),
			message:    fmt.Sprintf("A comment has been added to your case %s", caseNumber),
		}

	case domain.CaseEventTypeOverridden:
		return &delivery{
			roles:   append(rolesForStage(domain.Stage(stage)), string(authz.RoleManager)),
			title:   fmt.Sprintf("Case %s stage overridden", caseNumber),
			message: fmt.Sprintf("An administrator moved case %s to %s outside the normal order", caseNumber, stage),
		}

	case domain.CaseEventTypeReopened:
		return &delivery{
			roles:   []string{string(authz.RoleManager), string(authz.RoleExecutive)},
			title:   fmt.Sprintf("Case %s reopened", caseNumber),
			message: fmt.Sprintf("Case %s has been reopened for compliance review", caseNumber),
		}

	case domain.CaseEventTypeClosed:
		return &delivery{
			roles:   []string{string(authz.RoleManager), string(authz.RoleExecutive)},
			title:   fmt.Sprintf("Case %s closed", caseNumber),
			message: fmt.Sprintf("Case %s has been closed and awaits notification of parties", caseNumber),
		}

	case domain.CaseEventTypeDelegated:
		delegatedTo, err := types.ParseID(stringField(data, "delegated_to"))
		if err != nil {
			return nil
		}
		return &delivery{
			recipients:     []types.ID{delegatedTo},
			title:          fmt.Sprintf("Case %s allocated to you", caseNumber),
			message:        fmt.Sprintf("You have been allocated case %s at the %s stage", caseNumber, stage),
			actionRequired: true,
		}

	case domain.CaseEventTypeAdviceRequired:
		next := stringField(data, "next_reviewer")
		if next == "" {
			return nil
		}
		return &delivery{
			roles:          []string{next},
			title:          fmt.Sprintf("Advice required on case %s", caseNumber),
			message:        fmt.Sprintf("Case %s awaits your commentary, advice and recommendations", caseNumber),
			actionRequired: true,
		}

	case domain.CaseEventTypeAdviceSubmitted:
		if next := stringField(data, "next_reviewer"); next != "" {
			return &delivery{
				roles:          []string{next},
				title:          fmt.Sprintf("Advice required on case %s", caseNumber),
				message:        fmt.Sprintf("The review of case %s has passed to you", caseNumber),
				actionRequired: true,
			}
		}
		return &delivery{
			roles:   []string{string(authz.RoleManager)},
			title:   fmt.Sprintf("Review chain complete on case %s", caseNumber),
			message: fmt.Sprintf("All reviewers have advised on case %s; it may now be closed", caseNumber),
		}

	case domain.CaseEventTypeAlertRaised:
		role := stringField(data, "recipient_role")
		if role == "" {
			return nil
		}
		return &delivery{
			roles:          []string{role},
			title:          fmt.Sprintf("Alert on case %s: %s", caseNumber, stringField(data, "subject")),
			message:        fmt.Sprintf("An alert on case %s requires your response before the case can close", caseNumber),
			actionRequired: true,
		}

	case domain.CaseEventTypeAlertResponded:
		raisedBy, err := types.ParseID(stringField(data, "raised_by"))
		if err != nil {
			return nil
		}
		return &delivery{
			recipients: []types.ID{raisedBy},
			title:      fmt.Sprintf("Alert answered on case %s", caseNumber),
			message:    fmt.Sprintf("Your alert %q on case %s has been responded to", stringField(data, "subject"), caseNumber),
		}

	default:
		// Plain field updates stay out of inboxes
		return nil
	}
}

// loginRole translates a review-chain position into the static role
// whose holders sit in that seat. Static roles pass through unchanged.
func loginRole(role string) string {
	if r := authz.ReviewerRole(role); authz.ValidReviewerRole(r) {
		return string(authz.ReviewerStaticRole(r))
	}
	return role
}

// rolesForStage lists the role names allowed to drive a stage
func rolesForStage(stage domain.Stage) []string {
	var roles []string
	for role, stages := range authz.RoleStages {
		for _, s := range stages {
			if s == stage {
				roles = append(roles, string(role))
				break
			}
		}
	}
	return roles
}

func asMap(data any) map[string]any {
	if m, ok := data.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

func stringField(data map[string]any, key string) string {
	v, ok := data[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case types.ID:
		return t.String()
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}
