package history

import (
	"context"
	"fmt"
	"time"

	"github.com/emabi2002/landcasesystem-sub000/internal/casefile/domain"
	"github.com/emabi2002/landcasesystem-sub000/internal/shared/events"
	"github.com/emabi2002/landcasesystem-sub000/internal/shared/types"
)

// Appender accepts entries onto the chain
type Appender interface {
	Append(ctx context.Context, entry *Entry) error
}

// Subscriber mirrors case events into the history chain
type Subscriber struct {
	repo Appender
	bus  events.EventBus
}

// NewSubscriber creates a history subscriber
func NewSubscriber(repo Appender, bus events.EventBus) *Subscriber {
	return &Subscriber{repo: repo, bus: bus}
}

// Start subscribes to all case events
func (s *Subscriber) Start(ctx context.Context) error {
	if err := s.bus.Subscribe(ctx, "case.*", "history-subscriber", s.handleEvent); err != nil {
		return fmt.Errorf("failed to subscribe to case events: %w", err)
	}
	return nil
}

func (s *Subscriber) handleEvent(ctx context.Context, event events.Event) error {
	entry := s.eventToEntry(event)
	if entry == nil {
		return nil
	}

	if err := s.repo.Append(ctx, entry); err != nil {
		return fmt.Errorf("failed to append history entry: %w", err)
	}

	return nil
}

func (s *Subscriber) eventToEntry(event events.Event) *Entry {
	data, _ := event.Data.(map[string]any)

	var caseID *types.ID
	if raw, ok := data["case_id"]; ok {
		switch v := raw.(type) {
		case types.ID:
			caseID = &v
		case string:
			id := types.ID(v)
			caseID = &id
		}
	}

	metadata := make(map[string]any, len(data)+1)
	for k, v := range data {
		metadata[k] = v
	}
	if event.ActorRole != "" {
		metadata["actor_role"] = event.ActorRole
	}

	return &Entry{
		ID:          types.NewID(),
		CreatedAt:   event.Timestamp.UTC().Truncate(time.Microsecond),
		CaseID:      caseID,
		Action:      event.Type,
		Description: describe(event.Type, data),
		Metadata:    metadata,
		ActorID:     event.ActorID,
	}
}

// describe renders a short human-readable line for an event
func describe(eventType string, data map[string]any) string {
	caseNumber, _ := data["case_number"].(string)
	if caseNumber == "" {
		caseNumber = "unknown"
	}

	switch domain.CaseEventType(eventType) {
	case domain.CaseEventTypeCreated:
		return fmt.Sprintf("case %s received", caseNumber)
	case domain.CaseEventTypeStageChanged:
		return fmt.Sprintf("case %s moved to %v", caseNumber, data["stage"])
	case domain.CaseEventTypeOverridden:
		return fmt.Sprintf("case %s stage overridden to %v", caseNumber, data["stage"])
	case domain.CaseEventTypeReopened:
		return fmt.Sprintf("case %s reopened", caseNumber)
	case domain.CaseEventTypeClosed:
		return fmt.Sprintf("case %s closed", caseNumber)
	case domain.CaseEventTypeDelegated:
		return fmt.Sprintf("case %s allocated to an officer", caseNumber)
	case domain.CaseEventTypeAdviceRequired:
		return fmt.Sprintf("executive review opened on case %s", caseNumber)
	case domain.CaseEventTypeAdviceSubmitted:
		return fmt.Sprintf("advice recorded on case %s", caseNumber)
	case domain.CaseEventTypeAlertRaised:
		return fmt.Sprintf("alert raised on case %s", caseNumber)
	case domain.CaseEventTypeAlertResponded:
		return fmt.Sprintf("alert answered on case %s", caseNumber)
	default:
		return fmt.Sprintf("%s on case %s", eventType, caseNumber)
	}
}
