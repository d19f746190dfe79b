package domain

import (
	"time"

	"github.com/emabi2002/landcasesystem-sub000/internal/shared/types"
)

// CaseEventType identifies what happened to a case
type CaseEventType string

const (
	CaseEventTypeCreated         CaseEventType = "case.created"
	CaseEventTypeUpdated         CaseEventType = "case.updated"
	CaseEventTypeStageChanged    CaseEventType = "case.stage_changed"
	CaseEventTypeOverridden      CaseEventType = "case.stage_overridden"
	CaseEventTypeReopened        CaseEventType = "case.reopened"
	CaseEventTypeClosed          CaseEventType = "case.closed"
	CaseEventTypeCommentAdded    CaseEventType = "case.comment_added"
	CaseEventTypeDelegated       CaseEventType = "case.delegated"
	CaseEventTypeAdviceRequired  CaseEventType = "case.advice_required"
	CaseEventTypeAdviceSubmitted CaseEventType = "case.advice_submitted"
	CaseEventTypeAlertRaised     CaseEventType = "case.alert_raised"
	CaseEventTypeAlertResponded  CaseEventType = "case.alert_responded"
)

// CaseEvent records something that happened to a case
type CaseEvent struct {
	ID          types.ID       `json:"id"`
	CaseID      types.ID       `json:"case_id"`
	Type        CaseEventType  `json:"type"`
	ActorID     types.ID       `json:"actor_id"`
	Description string         `json:"description"`
	Data        map[string]any `json:"data,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}

// Event wraps a CaseEvent for publishing to the event bus
type Event struct {
	Type      string    `json:"type"`
	CaseID    types.ID  `json:"case_id"`
	CaseEvent CaseEvent `json:"case_event"`
}

// Comment is a free-text note attached to a case
type Comment struct {
	ID        types.ID  `json:"id"`
	CaseID    types.ID  `json:"case_id"`
	AuthorID  types.ID  `json:"author_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}
