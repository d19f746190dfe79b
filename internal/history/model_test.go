package history

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/emabi2002/landcasesystem-sub000/internal/casefile/domain"
	"github.com/emabi2002/landcasesystem-sub000/internal/shared/events"
	"github.com/emabi2002/landcasesystem-sub000/internal/shared/types"
)

func TestNewEntry(t *testing.T) {
	actorID := types.NewID()
	caseID := types.NewID()

	entry := NewEntry(&caseID, string(domain.CaseEventTypeCreated), "case received",
		map[string]any{"case_number": "LC-2026-000001"}, actorID)

	if entry.ID.IsZero() {
		t.Error("Expected non-zero ID")
	}
	if entry.ActorID != actorID {
		t.Errorf("Expected actor %s, got %s", actorID, entry.ActorID)
	}
	if entry.Hash == "" {
		t.Error("Expected non-empty hash")
	}
	if entry.PrevHash != "" {
		t.Error("Expected empty prev_hash before linking")
	}
	if !entry.VerifyHash() {
		t.Error("Expected fresh entry hash to verify")
	}
}

func TestHashDeterminism(t *testing.T) {
	caseID := types.NewID()
	entry := NewEntry(&caseID, "case.stage_changed", "moved to directed",
		map[string]any{"stage": "directed", "from": "received", "nested": map[string]any{"b": 2, "a": 1}},
		types.NewID())

	first := entry.ComputeHash()
	for i := 0; i < 10; i++ {
		if got := entry.ComputeHash(); got != first {
			t.Fatalf("Hash changed between computations: %s vs %s", first, got)
		}
	}
}

func TestTamperDetection(t *testing.T) {
	caseID := types.NewID()
	entry := NewEntry(&caseID, "case.closed", "case closed",
		map[string]any{"stage": "closed"}, types.NewID())

	if !entry.VerifyHash() {
		t.Fatal("Hash should be valid before tampering")
	}

	entry.Metadata["stage"] = "in_progress"
	if entry.VerifyHash() {
		t.Error("Hash should be invalid after metadata tampering")
	}

	entry.Metadata["stage"] = "closed"
	if !entry.VerifyHash() {
		t.Error("Hash should be valid again after restoring content")
	}

	entry.Action = "case.reopened"
	if entry.VerifyHash() {
		t.Error("Hash should be invalid after action tampering")
	}
}

func TestChainLinking(t *testing.T) {
	actorID := types.NewID()
	caseID := types.NewID()

	prevHash := ""
	entries := make([]*Entry, 5)
	for i := 0; i < 5; i++ {
		e := NewEntry(&caseID, "case.stage_changed", "step", map[string]any{"index": i}, actorID)
		e.PrevHash = prevHash
		e.Hash = e.computeHash()
		entries[i] = e
		prevHash = e.Hash
	}

	for i := 1; i < len(entries); i++ {
		if entries[i].PrevHash != entries[i-1].Hash {
			t.Errorf("Chain broken at entry %d", i)
		}
		if !entries[i].VerifyHash() {
			t.Errorf("Entry %d hash invalid", i)
		}
	}
}

type memoryAppender struct {
	entries []*Entry
}

func (m *memoryAppender) Append(ctx context.Context, entry *Entry) error {
	prevHash := ""
	if len(m.entries) > 0 {
		prevHash = m.entries[len(m.entries)-1].Hash
	}
	entry.PrevHash = prevHash
	entry.Hash = entry.computeHash()
	entry.Sequence = int64(len(m.entries) + 1)
	m.entries = append(m.entries, entry)
	return nil
}

func TestSubscriberMirrorsEvents(t *testing.T) {
	repo := &memoryAppender{}
	bus := events.NewNoopBus(zerolog.Nop())
	sub := NewSubscriber(repo, bus)
	ctx := context.Background()

	if err := sub.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	caseID := types.NewID()
	actorID := types.NewID()

	eventTypes := []domain.CaseEventType{
		domain.CaseEventTypeCreated,
		domain.CaseEventTypeStageChanged,
		domain.CaseEventTypeClosed,
	}
	for _, et := range eventTypes {
		event := events.NewEvent(string(et), "casefile", map[string]any{
			"case_id":     caseID,
			"case_number": "LC-2026-000007",
			"stage":       domain.StageReceived,
		}).WithActor(actorID, "manager")
		if err := bus.Publish(ctx, event); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}
	}

	if len(repo.entries) != len(eventTypes) {
		t.Fatalf("Expected %d entries, got %d", len(eventTypes), len(repo.entries))
	}
	for i, e := range repo.entries {
		if e.Action != string(eventTypes[i]) {
			t.Errorf("Entry %d: expected action %s, got %s", i, eventTypes[i], e.Action)
		}
		if e.CaseID == nil || *e.CaseID != caseID {
			t.Errorf("Entry %d: expected case ID %s, got %v", i, caseID, e.CaseID)
		}
		if e.ActorID != actorID {
			t.Errorf("Entry %d: expected actor %s, got %s", i, actorID, e.ActorID)
		}
		if e.Metadata["actor_role"] != "manager" {
			t.Errorf("Entry %d: expected actor_role in metadata, got %v", i, e.Metadata["actor_role"])
		}
		if !e.VerifyHash() {
			t.Errorf("Entry %d: hash does not verify", i)
		}
	}

	// The chain links consecutively
	for i := 1; i < len(repo.entries); i++ {
		if repo.entries[i].PrevHash != repo.entries[i-1].Hash {
			t.Errorf("Chain broken between entries %d and %d", i-1, i)
		}
	}
}
