package domain

import (
	"testing"

	"github.com/emabi2002/landcasesystem-sub000/internal/shared/types"
)

// TestNewCase tests creating a new case
func TestNewCase(t *testing.T) {
	creatorID := types.NewID()

	c, err := NewCase("Boundary dispute, Portion 112", "Survey records conflict", PriorityHigh, creatorID)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if c.ID.IsZero() {
		t.Error("Expected non-zero ID")
	}

	if c.Stage != StageReceived {
		t.Errorf("Expected stage %s, got %s", StageReceived, c.Stage)
	}

	if c.Status != CaseStatusOpen {
		t.Errorf("Expected status %s, got %s", CaseStatusOpen, c.Status)
	}

	if c.Version != 1 {
		t.Errorf("Expected version 1, got %d", c.Version)
	}

	events := c.GetDomainEvents()
	if len(events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(events))
	}
	if events[0].CaseEvent.Type != CaseEventTypeCreated {
		t.Errorf("Expected event type %s, got %s", CaseEventTypeCreated, events[0].CaseEvent.Type)
	}
}

// TestNewCaseValidation tests validation when creating a case
func TestNewCaseValidation(t *testing.T) {
	creatorID := types.NewID()

	tests := []struct {
		name        string
		title       string
		priority    Priority
		creatorID   types.ID
		expectError bool
	}{
		{"Empty title", "", PriorityMedium, creatorID, true},
		{"Zero creator ID", "Test", PriorityMedium, types.ID(""), true},
		{"Invalid priority", "Test", Priority("critical"), creatorID, true},
		{"Default priority", "Test", "", creatorID, false},
		{"Valid case", "Test", PriorityLow, creatorID, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCase(tt.title, "Description", tt.priority, tt.creatorID)

			if tt.expectError && err == nil {
				t.Error("Expected error but got none")
			}
			if !tt.expectError && err != nil {
				t.Errorf("Expected no error but got: %v", err)
			}
		})
	}
}

// TestStageOrder tests the fixed workflow order
func TestStageOrder(t *testing.T) {
	if StageReceived.Next() != StageDirected {
		t.Errorf("Expected %s after received, got %s", StageDirected, StageReceived.Next())
	}

	if !StageNotified.IsFinal() {
		t.Error("Expected notified to be final")
	}

	if StageNotified.Next() != "" {
		t.Errorf("Expected no successor for final stage, got %s", StageNotified.Next())
	}

	if StageReceived.CanAdvanceTo(StageRegistered) {
		t.Error("Should not allow skipping directed")
	}

	if StageDirected.CanAdvanceTo(StageReceived) {
		t.Error("Should not allow moving backward")
	}
}

// TestCaseAdvance tests the stage machine transitions
func TestCaseAdvance(t *testing.T) {
	creatorID := types.NewID()
	c, _ := NewCase("Lease renewal", "Testing transitions", PriorityMedium, creatorID)
	c.GetDomainEvents()

	// Walk the full workflow in order
	for _, next := range StageOrder[1:] {
		if err := c.Advance(next, creatorID); err != nil {
			t.Fatalf("Failed to advance to %s: %v", next, err)
		}
		if c.Stage != next {
			t.Errorf("Expected stage %s, got %s", next, c.Stage)
		}
	}

	if c.Status != CaseStatusClosed {
		t.Errorf("Expected status %s after closed stage, got %s", CaseStatusClosed, c.Status)
	}
	if c.ClosedAt == nil {
		t.Error("Expected ClosedAt to be set")
	}

	// Final stage cannot advance further
	if err := c.Advance(StageNotified, creatorID); err == nil {
		t.Error("Expected error advancing past final stage")
	}
}

// TestCaseAdvanceRejectsSkips tests that skipping stages is rejected
func TestCaseAdvanceRejectsSkips(t *testing.T) {
	creatorID := types.NewID()
	c, _ := NewCase("Skip test", "", PriorityMedium, creatorID)

	if err := c.Advance(StageAllocated, creatorID); err == nil {
		t.Error("Expected error skipping from received to allocated")
	}
	if c.Stage != StageReceived {
		t.Errorf("Stage should be unchanged, got %s", c.Stage)
	}

	if err := c.Advance(StageReceived, creatorID); err == nil {
		t.Error("Expected error advancing to the current stage")
	}
}

// TestCaseVersionIncrements tests optimistic-lock version bumping
func TestCaseVersionIncrements(t *testing.T) {
	creatorID := types.NewID()
	c, _ := NewCase("Version test", "", PriorityMedium, creatorID)

	v := c.Version
	if err := c.Advance(StageDirected, creatorID); err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if c.Version != v+1 {
		t.Errorf("Expected version %d, got %d", v+1, c.Version)
	}

	if err := c.Update("Version test 2", "updated", "", creatorID); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if c.Version != v+2 {
		t.Errorf("Expected version %d, got %d", v+2, c.Version)
	}
}

// TestCaseOverride tests the admin stage override
func TestCaseOverride(t *testing.T) {
	creatorID := types.NewID()
	c, _ := NewCase("Override test", "", PriorityMedium, creatorID)
	c.GetDomainEvents()

	if err := c.Override(StageInProgress, creatorID, ""); err == nil {
		t.Error("Expected error for missing override reason")
	}

	if err := c.Override(StageInProgress, creatorID, "directive from secretary"); err != nil {
		t.Fatalf("Override failed: %v", err)
	}
	if c.Stage != StageInProgress {
		t.Errorf("Expected stage %s, got %s", StageInProgress, c.Stage)
	}

	events := c.GetDomainEvents()
	if len(events) != 1 || events[0].CaseEvent.Type != CaseEventTypeOverridden {
		t.Errorf("Expected a single %s event, got %+v", CaseEventTypeOverridden, events)
	}

	// Override back before closed reopens the case
	if err := c.Override(StageClosed, creatorID, "administrative closure"); err != nil {
		t.Fatalf("Override to closed failed: %v", err)
	}
	if c.Status != CaseStatusClosed {
		t.Errorf("Expected status closed, got %s", c.Status)
	}
	if err := c.Override(StageRegistered, creatorID, "reopening for correction"); err != nil {
		t.Fatalf("Override back failed: %v", err)
	}
	if c.Status != CaseStatusOpen {
		t.Errorf("Expected status open after jump back, got %s", c.Status)
	}
	if c.ClosedAt != nil {
		t.Error("Expected ClosedAt cleared after jump back")
	}
}

// TestCaseReopen tests reopening a closed case
func TestCaseReopen(t *testing.T) {
	creatorID := types.NewID()
	c, _ := NewCase("Reopen test", "", PriorityMedium, creatorID)

	if err := c.Reopen(creatorID, "new evidence"); err == nil {
		t.Error("Expected error reopening an open case")
	}

	for _, next := range StageOrder[1:] {
		if err := c.Advance(next, creatorID); err != nil {
			t.Fatalf("Failed to advance to %s: %v", next, err)
		}
	}
	c.GetDomainEvents()

	if err := c.Reopen(creatorID, ""); err == nil {
		t.Error("Expected error for missing reopen reason")
	}

	if err := c.Reopen(creatorID, "court remand"); err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	if c.Stage != StageComplianceReview {
		t.Errorf("Expected stage %s, got %s", StageComplianceReview, c.Stage)
	}
	if c.Status != CaseStatusOpen {
		t.Errorf("Expected status open, got %s", c.Status)
	}

	events := c.GetDomainEvents()
	if len(events) != 1 || events[0].CaseEvent.Type != CaseEventTypeReopened {
		t.Errorf("Expected a single %s event, got %+v", CaseEventTypeReopened, events)
	}
}

// TestCaseUpdate tests editing case details
func TestCaseUpdate(t *testing.T) {
	creatorID := types.NewID()
	c, _ := NewCase("Update test", "", PriorityMedium, creatorID)

	if err := c.Update("", "desc", "", creatorID); err == nil {
		t.Error("Expected error for empty title")
	}

	if err := c.Update("Updated title", "new desc", PriorityUrgent, creatorID); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if c.Title != "Updated title" || c.Priority != PriorityUrgent {
		t.Errorf("Update not applied: %+v", c)
	}

	for _, next := range StageOrder[1:7] {
		if err := c.Advance(next, creatorID); err != nil {
			t.Fatalf("Failed to advance to %s: %v", next, err)
		}
	}
	if err := c.Update("After close", "", "", creatorID); err == nil {
		t.Error("Expected error editing a closed case")
	}
}
