package delegation

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/emabi2002/landcasesystem-sub000/internal/authz"
	"github.com/emabi2002/landcasesystem-sub000/internal/casefile/domain"
	"github.com/emabi2002/landcasesystem-sub000/internal/shared/errors"
	"github.com/emabi2002/landcasesystem-sub000/internal/shared/events"
	"github.com/emabi2002/landcasesystem-sub000/internal/shared/types"
)

type memoryRepo struct {
	mu          sync.Mutex
	delegations []Delegation
}

func (r *memoryRepo) Allocate(ctx context.Context, d *Delegation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.delegations {
		if r.delegations[i].CaseID == d.CaseID && r.delegations[i].Stage == d.Stage && r.delegations[i].Status == StatusActive {
			r.delegations[i].Status = StatusSuperseded
		}
	}
	r.delegations = append(r.delegations, *d)
	return nil
}

func (r *memoryRepo) CurrentDelegate(ctx context.Context, caseID types.ID, stage domain.Stage) (*Delegation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.delegations {
		d := r.delegations[i]
		if d.CaseID == caseID && d.Stage == stage && d.Status == StatusActive {
			return &d, nil
		}
	}
	return nil, errors.NotFound("delegation", caseID.String())
}

func (r *memoryRepo) History(ctx context.Context, caseID types.ID) ([]Delegation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Delegation
	for _, d := range r.delegations {
		if d.CaseID == caseID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (r *memoryRepo) Complete(ctx context.Context, caseID types.ID, stage domain.Stage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.delegations {
		if r.delegations[i].CaseID == caseID && r.delegations[i].Stage == stage && r.delegations[i].Status == StatusActive {
			r.delegations[i].Status = StatusCompleted
			return nil
		}
	}
	return errors.NotFound("delegation", caseID.String())
}

type fakeCaseSource struct {
	cases map[types.ID]*domain.Case
}

func (f *fakeCaseSource) FindByID(ctx context.Context, id types.ID) (*domain.Case, error) {
	c, ok := f.cases[id]
	if !ok {
		return nil, errors.NotFound("case", id.String())
	}
	return c, nil
}

func newTestService(t *testing.T) (*Service, *domain.Case) {
	t.Helper()
	c, err := domain.NewCase("Allocation test", "", domain.PriorityMedium, types.NewID())
	if err != nil {
		t.Fatalf("NewCase failed: %v", err)
	}
	c.Advance(domain.StageDirected, c.CreatedBy)
	c.Advance(domain.StageRegistered, c.CreatedBy)
	c.Advance(domain.StageAllocated, c.CreatedBy)

	svc := NewService(
		&memoryRepo{},
		&fakeCaseSource{cases: map[types.ID]*domain.Case{c.ID: c}},
		authz.NewEvaluator(nil),
		events.NewNoopBus(zerolog.Nop()),
		zerolog.Nop(),
	)
	return svc, c
}

// TestAllocate tests delegating a case at its current stage
func TestAllocate(t *testing.T) {
	svc, c := newTestService(t)
	ctx := context.Background()
	managerID := types.NewID()
	lawyerID := types.NewID()

	d, err := svc.Allocate(ctx, managerID, authz.RoleManager, c.ID, lawyerID, "specialist in land law", "", "review survey first")
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}

	if d.Stage != domain.StageAllocated {
		t.Errorf("Expected stage %s, got %s", domain.StageAllocated, d.Stage)
	}
	if d.Priority != string(domain.PriorityMedium) {
		t.Errorf("Expected inherited priority, got %s", d.Priority)
	}

	current, err := svc.CurrentDelegate(ctx, c.ID, domain.StageAllocated)
	if err != nil {
		t.Fatalf("CurrentDelegate failed: %v", err)
	}
	if current.DelegatedTo != lawyerID {
		t.Errorf("Expected delegate %s, got %s", lawyerID, current.DelegatedTo)
	}
}

// TestAllocateSupersedes tests that reallocating replaces the delegate
func TestAllocateSupersedes(t *testing.T) {
	svc, c := newTestService(t)
	ctx := context.Background()
	managerID := types.NewID()
	first := types.NewID()
	second := types.NewID()

	if _, err := svc.Allocate(ctx, managerID, authz.RoleManager, c.ID, first, "", "", ""); err != nil {
		t.Fatalf("First allocate failed: %v", err)
	}
	if _, err := svc.Allocate(ctx, managerID, authz.RoleManager, c.ID, second, "workload", "", ""); err != nil {
		t.Fatalf("Second allocate failed: %v", err)
	}

	current, err := svc.CurrentDelegate(ctx, c.ID, domain.StageAllocated)
	if err != nil {
		t.Fatalf("CurrentDelegate failed: %v", err)
	}
	if current.DelegatedTo != second {
		t.Errorf("Expected delegate %s after supersession, got %s", second, current.DelegatedTo)
	}

	history, _ := svc.History(ctx, managerID, authz.RoleManager, c.ID)
	if len(history) != 2 {
		t.Fatalf("Expected 2 delegation records, got %d", len(history))
	}
	superseded := 0
	for _, d := range history {
		if d.Status == StatusSuperseded {
			superseded++
		}
	}
	if superseded != 1 {
		t.Errorf("Expected exactly 1 superseded record, got %d", superseded)
	}
}

// TestAllocateAuthorization tests role gating on allocation
func TestAllocateAuthorization(t *testing.T) {
	svc, c := newTestService(t)
	ctx := context.Background()

	_, err := svc.Allocate(ctx, types.NewID(), authz.RoleOfficer, c.ID, types.NewID(), "", "", "")
	if !errors.Is(err, errors.ErrUnauthorized) {
		t.Errorf("Expected ErrUnauthorized for officer, got %v", err)
	}

	if _, err := svc.Allocate(ctx, types.NewID(), authz.RoleAdmin, c.ID, types.NewID(), "", "", ""); err != nil {
		t.Errorf("Expected admin allocate to succeed, got %v", err)
	}
}

// TestAllocateClosedCase tests that closed cases cannot be delegated
func TestAllocateClosedCase(t *testing.T) {
	svc, c := newTestService(t)
	ctx := context.Background()

	c.Advance(domain.StageInProgress, c.CreatedBy)
	c.Advance(domain.StageComplianceReview, c.CreatedBy)
	c.Advance(domain.StageClosed, c.CreatedBy)

	_, err := svc.Allocate(ctx, types.NewID(), authz.RoleManager, c.ID, types.NewID(), "", "", "")
	if !errors.Is(err, errors.ErrPrecondition) {
		t.Errorf("Expected ErrPrecondition for closed case, got %v", err)
	}
}

// TestAllocateValidation tests required fields
func TestAllocateValidation(t *testing.T) {
	svc, c := newTestService(t)
	ctx := context.Background()

	_, err := svc.Allocate(ctx, types.NewID(), authz.RoleManager, c.ID, types.ID(""), "", "", "")
	if !errors.Is(err, errors.ErrValidation) {
		t.Errorf("Expected ErrValidation for missing delegate, got %v", err)
	}
}
