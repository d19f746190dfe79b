package domain

import (
	"fmt"
	"time"

	"github.com/emabi2002/landcasesystem-sub000/internal/shared/types"
)

// CaseStatus defines the lifecycle status of a case, orthogonal to the
// workflow stage: a case at any stage is open until it reaches closed.
type CaseStatus string

const (
	CaseStatusOpen   CaseStatus = "open"
	CaseStatusClosed CaseStatus = "closed"
)

// Priority defines case priority
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// ValidPriority reports whether p is a known priority
func ValidPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Case is the aggregate root for a legal case file
type Case struct {
	ID          types.ID   `json:"id"`
	CaseNumber  string     `json:"case_number"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Stage       Stage      `json:"stage"`
	Priority    Priority   `json:"priority"`
	Status      CaseStatus `json:"status"`
	CreatedBy   types.ID   `json:"created_by"`

	// Version increments on every mutation; repositories use it for
	// optimistic concurrency control.
	Version int64 `json:"version"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`

	// Domain events (not persisted, drained for publishing)
	domainEvents []Event
}

// NewCase creates a new case at the first workflow stage
func NewCase(title, description string, priority Priority, createdBy types.ID) (*Case, error) {
	if title == "" {
		return nil, fmt.Errorf("title is required")
	}
	if createdBy.IsZero() {
		return nil, fmt.Errorf("creator is required")
	}
	if priority == "" {
		priority = PriorityMedium
	}
	if !ValidPriority(priority) {
		return nil, fmt.Errorf("invalid priority: %q", priority)
	}

	now := time.Now()
	c := &Case{
		ID:          types.NewID(),
		CaseNumber:  generateCaseNumber(),
		Title:       title,
		Description: description,
		Stage:       StageReceived,
		Priority:    priority,
		Status:      CaseStatusOpen,
		CreatedBy:   createdBy,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	c.addEvent(CaseEventTypeCreated, createdBy, "Case created", nil)

	return c, nil
}

// Advance moves the case to its immediate successor stage.
// Transitions that skip stages or move backward are rejected.
func (c *Case) Advance(to Stage, actorID types.ID) error {
	if c.Stage.IsFinal() {
		return fmt.Errorf("case workflow is already complete")
	}
	if !c.Stage.CanAdvanceTo(to) {
		return fmt.Errorf("cannot advance from %s to %s", c.Stage, to)
	}

	from := c.Stage
	c.Stage = to
	c.touch()

	if to == StageClosed {
		now := time.Now()
		c.Status = CaseStatusClosed
		c.ClosedAt = &now
		c.addEvent(CaseEventTypeClosed, actorID, "Case closed", map[string]any{
			"from_stage": from,
		})
	} else {
		c.addEvent(CaseEventTypeStageChanged, actorID, fmt.Sprintf("Stage %s -> %s", from, to), map[string]any{
			"from_stage": from,
			"to_stage":   to,
		})
	}

	return nil
}

// Override moves the case to any stage, bypassing the successor rule.
// Reserved for admins; the jump is recorded as a distinct event type.
func (c *Case) Override(to Stage, actorID types.ID, reason string) error {
	if !to.Valid() {
		return fmt.Errorf("unknown stage: %q", to)
	}
	if to == c.Stage {
		return fmt.Errorf("case is already at stage %s", to)
	}
	if reason == "" {
		return fmt.Errorf("override reason is required")
	}

	from := c.Stage
	c.Stage = to
	c.touch()

	if to == StageClosed {
		now := time.Now()
		c.Status = CaseStatusClosed
		c.ClosedAt = &now
	} else if from.Index() >= StageClosed.Index() && to.Index() < StageClosed.Index() {
		// Jumping back before closed reopens the case
		c.Status = CaseStatusOpen
		c.ClosedAt = nil
	}

	c.addEvent(CaseEventTypeOverridden, actorID, reason, map[string]any{
		"from_stage": from,
		"to_stage":   to,
		"reason":     reason,
	})

	return nil
}

// Reopen moves a closed or notified case back to compliance_review.
// The reopening is a distinct audited action, not a normal transition.
func (c *Case) Reopen(actorID types.ID, reason string) error {
	if c.Stage != StageClosed && c.Stage != StageNotified {
		return fmt.Errorf("can only reopen a closed case")
	}
	if reason == "" {
		return fmt.Errorf("reopen reason is required")
	}

	from := c.Stage
	c.Stage = StageComplianceReview
	c.Status = CaseStatusOpen
	c.ClosedAt = nil
	c.touch()

	c.addEvent(CaseEventTypeReopened, actorID, reason, map[string]any{
		"from_stage": from,
		"reason":     reason,
	})

	return nil
}

// Update modifies the editable fields of a case
func (c *Case) Update(title, description string, priority Priority, actorID types.ID) error {
	if c.Status == CaseStatusClosed {
		return fmt.Errorf("cannot edit a closed case")
	}
	if title == "" {
		return fmt.Errorf("title is required")
	}
	if priority != "" && !ValidPriority(priority) {
		return fmt.Errorf("invalid priority: %q", priority)
	}

	c.Title = title
	c.Description = description
	if priority != "" {
		c.Priority = priority
	}
	c.touch()

	c.addEvent(CaseEventTypeUpdated, actorID, "Case details updated", nil)

	return nil
}

// GetDomainEvents returns and clears domain events
func (c *Case) GetDomainEvents() []Event {
	events := c.domainEvents
	c.domainEvents = nil
	return events
}

func (c *Case) touch() {
	c.Version++
	c.UpdatedAt = time.Now()
}

// addEvent adds a domain event
func (c *Case) addEvent(eventType CaseEventType, actorID types.ID, description string, data map[string]any) {
	event := CaseEvent{
		ID:          types.NewID(),
		CaseID:      c.ID,
		Type:        eventType,
		ActorID:     actorID,
		Description: description,
		Data:        data,
		Timestamp:   time.Now(),
	}

	c.domainEvents = append(c.domainEvents, Event{
		Type:      string(eventType),
		CaseID:    c.ID,
		CaseEvent: event,
	})
}

// generateCaseNumber generates a unique case number
func generateCaseNumber() string {
	// Format: LC-YEAR-SEQUENCE (e.g., LC-2026-000001)
	year := time.Now().Year()
	seq := time.Now().UnixNano() % 1000000

	return fmt.Sprintf("LC-%d-%06d", year, seq)
}
