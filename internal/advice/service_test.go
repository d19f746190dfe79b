package advice

import (
	"context"
	"sort"
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
	mu    sync.Mutex
	steps map[types.ID][]Step
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{steps: make(map[types.ID][]Step)}
}

func (r *memoryRepo) CreateChain(ctx context.Context, steps []Step) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	caseID := steps[0].CaseID
	if len(r.steps[caseID]) > 0 {
		return errors.Conflict("review chain already exists")
	}
	r.steps[caseID] = append([]Step(nil), steps...)
	return nil
}

func (r *memoryRepo) NextPending(ctx context.Context, caseID types.ID) (*Step, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.nextPendingLocked(caseID)
}

func (r *memoryRepo) nextPendingLocked(caseID types.ID) (*Step, error) {
	chain := append([]Step(nil), r.steps[caseID]...)
	sort.Slice(chain, func(i, j int) bool { return chain[i].Sequence < chain[j].Sequence })
	for _, s := range chain {
		if s.Status == StepPending {
			step := s
			return &step, nil
		}
	}
	return nil, errors.NotFound("review step", caseID.String())
}

func (r *memoryRepo) CompleteStep(ctx context.Context, caseID types.ID, role authz.ReviewerRole, sub Submission, officerID types.ID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.steps[caseID] {
		s := &r.steps[caseID][i]
		if s.OfficerRole == role && s.Status == StepPending {
			s.Status = StepCompleted
			s.OfficerID = &officerID
			s.Commentary = sub.Commentary
			s.Advice = sub.Advice
			s.Recommendations = sub.Recommendations
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryRepo) Steps(ctx context.Context, caseID types.ID) ([]Step, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	chain := append([]Step(nil), r.steps[caseID]...)
	sort.Slice(chain, func(i, j int) bool { return chain[i].Sequence < chain[j].Sequence })
	return chain, nil
}

func (r *memoryRepo) PendingCount(ctx context.Context, caseID types.ID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, s := range r.steps[caseID] {
		if s.Status == StepPending {
			count++
		}
	}
	return count, nil
}

type fakeCaseSource struct {
	c *domain.Case
}

func (f *fakeCaseSource) FindByID(ctx context.Context, id types.ID) (*domain.Case, error) {
	if f.c == nil || f.c.ID != id {
		return nil, errors.NotFound("case", id.String())
	}
	return f.c, nil
}

func caseAtComplianceReview(t *testing.T) *domain.Case {
	t.Helper()
	c, err := domain.NewCase("Boundary dispute", "Portion 77 encroachment", domain.PriorityHigh, types.NewID())
	if err != nil {
		t.Fatalf("Failed to create case: %v", err)
	}
	actor := types.NewID()
	for _, stage := range []domain.Stage{
		domain.StageDirected,
		domain.StageRegistered,
		domain.StageAllocated,
		domain.StageInProgress,
		domain.StageComplianceReview,
	} {
		if err := c.Advance(stage, actor); err != nil {
			t.Fatalf("Failed to advance to %s: %v", stage, err)
		}
	}
	c.GetDomainEvents()
	return c
}

func newTestService(t *testing.T, c *domain.Case) (*Service, *memoryRepo) {
	t.Helper()
	repo := newMemoryRepo()
	svc := NewService(repo, &fakeCaseSource{c: c}, authz.NewEvaluator(nil), events.NewNoopBus(zerolog.Nop()), zerolog.Nop())
	return svc, repo
}

func fullSubmission() Submission {
	return Submission{
		Commentary:      "Reviewed the compliance file",
		Advice:          "Proceed to closure",
		Recommendations: "Notify the claimant in writing",
	}
}

func TestRequireBuildsChain(t *testing.T) {
	c := caseAtComplianceReview(t)
	svc, _ := newTestService(t, c)
	ctx := context.Background()

	steps, err := svc.Require(ctx, types.NewID(), authz.RoleManager, c.ID)
	if err != nil {
		t.Fatalf("Require failed: %v", err)
	}
	if len(steps) != len(authz.ReviewerChain) {
		t.Fatalf("Expected %d steps, got %d", len(authz.ReviewerChain), len(steps))
	}
	for i, step := range steps {
		if step.OfficerRole != authz.ReviewerChain[i] {
			t.Errorf("Step %d: expected role %s, got %s", i, authz.ReviewerChain[i], step.OfficerRole)
		}
		if step.Sequence != i+1 {
			t.Errorf("Step %d: expected sequence %d, got %d", i, i+1, step.Sequence)
		}
		if step.Status != StepPending {
			t.Errorf("Step %d: expected pending, got %s", i, step.Status)
		}
	}

	count, err := svc.PendingCount(ctx, c.ID)
	if err != nil {
		t.Fatalf("PendingCount failed: %v", err)
	}
	if count != 3 {
		t.Errorf("Expected 3 pending steps, got %d", count)
	}
}

func TestRequireStageGate(t *testing.T) {
	c, err := domain.NewCase("Lease renewal", "State lease 42", domain.PriorityMedium, types.NewID())
	if err != nil {
		t.Fatalf("Failed to create case: %v", err)
	}
	svc, _ := newTestService(t, c)

	_, err = svc.Require(context.Background(), types.NewID(), authz.RoleManager, c.ID)
	if !errors.Is(err, errors.ErrPrecondition) {
		t.Errorf("Expected precondition error for case at %s, got %v", c.Stage, err)
	}
}

func TestRequireAuthorization(t *testing.T) {
	c := caseAtComplianceReview(t)
	svc, _ := newTestService(t, c)

	_, err := svc.Require(context.Background(), types.NewID(), authz.RoleOfficer, c.ID)
	if !errors.Is(err, errors.ErrUnauthorized) {
		t.Errorf("Expected unauthorized for officer, got %v", err)
	}
}

func TestRequireDuplicate(t *testing.T) {
	c := caseAtComplianceReview(t)
	svc, _ := newTestService(t, c)
	ctx := context.Background()

	if _, err := svc.Require(ctx, types.NewID(), authz.RoleManager, c.ID); err != nil {
		t.Fatalf("Require failed: %v", err)
	}
	_, err := svc.Require(ctx, types.NewID(), authz.RoleManager, c.ID)
	if !errors.Is(err, errors.ErrConflict) {
		t.Errorf("Expected conflict on second chain, got %v", err)
	}
}

func TestSubmitInOrder(t *testing.T) {
	c := caseAtComplianceReview(t)
	svc, _ := newTestService(t, c)
	ctx := context.Background()

	if _, err := svc.Require(ctx, types.NewID(), authz.RoleManager, c.ID); err != nil {
		t.Fatalf("Require failed: %v", err)
	}

	for i, role := range authz.ReviewerChain {
		step, err := svc.Submit(ctx, types.NewID(), authz.ReviewerStaticRole(role), role, c.ID, fullSubmission())
		if err != nil {
			t.Fatalf("Submit as %s failed: %v", role, err)
		}
		if step.Status != StepCompleted {
			t.Errorf("Expected completed step, got %s", step.Status)
		}
		count, err := svc.PendingCount(ctx, c.ID)
		if err != nil {
			t.Fatalf("PendingCount failed: %v", err)
		}
		if want := len(authz.ReviewerChain) - i - 1; count != want {
			t.Errorf("After %s: expected %d pending, got %d", role, want, count)
		}
	}
}

func TestSubmitAnyOrder(t *testing.T) {
	c := caseAtComplianceReview(t)
	svc, _ := newTestService(t, c)
	ctx := context.Background()

	if _, err := svc.Require(ctx, types.NewID(), authz.RoleManager, c.ID); err != nil {
		t.Fatalf("Require failed: %v", err)
	}

	// The last seat in the chain may record its advice first
	step, err := svc.Submit(ctx, types.NewID(), authz.RoleManager, authz.ReviewerManagerLegal, c.ID, fullSubmission())
	if err != nil {
		t.Fatalf("Submit as %s failed: %v", authz.ReviewerManagerLegal, err)
	}
	if step.Status != StepCompleted {
		t.Errorf("Expected completed step, got %s", step.Status)
	}

	count, err := svc.PendingCount(ctx, c.ID)
	if err != nil {
		t.Fatalf("PendingCount failed: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 pending steps after out-of-sequence submission, got %d", count)
	}

	for _, role := range []authz.ReviewerRole{authz.ReviewerSecretary, authz.ReviewerDirectorLegal} {
		if _, err := svc.Submit(ctx, types.NewID(), authz.ReviewerStaticRole(role), role, c.ID, fullSubmission()); err != nil {
			t.Fatalf("Submit as %s failed: %v", role, err)
		}
	}
	count, err = svc.PendingCount(ctx, c.ID)
	if err != nil {
		t.Fatalf("PendingCount failed: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected chain complete, got %d pending", count)
	}
}

func TestSubmitSeatRoleEnforced(t *testing.T) {
	c := caseAtComplianceReview(t)
	svc, _ := newTestService(t, c)
	ctx := context.Background()

	if _, err := svc.Require(ctx, types.NewID(), authz.RoleManager, c.ID); err != nil {
		t.Fatalf("Require failed: %v", err)
	}

	tests := []struct {
		name  string
		actor authz.Role
		seat  authz.ReviewerRole
	}{
		{"officer claiming secretary seat", authz.RoleOfficer, authz.ReviewerSecretary},
		{"lawyer claiming director seat", authz.RoleLawyer, authz.ReviewerDirectorLegal},
		{"manager claiming secretary seat", authz.RoleManager, authz.ReviewerSecretary},
		{"executive claiming manager_legal seat", authz.RoleExecutive, authz.ReviewerManagerLegal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Submit(ctx, types.NewID(), tt.actor, tt.seat, c.ID, fullSubmission())
			if !errors.Is(err, errors.ErrUnauthorized) {
				t.Errorf("Expected unauthorized, got %v", err)
			}
		})
	}

	// Admins may record advice on any seat
	if _, err := svc.Submit(ctx, types.NewID(), authz.RoleAdmin, authz.ReviewerSecretary, c.ID, fullSubmission()); err != nil {
		t.Errorf("Expected admin submission to succeed, got %v", err)
	}
}

func TestSubmitRepeatedSeat(t *testing.T) {
	c := caseAtComplianceReview(t)
	svc, _ := newTestService(t, c)
	ctx := context.Background()

	if _, err := svc.Require(ctx, types.NewID(), authz.RoleManager, c.ID); err != nil {
		t.Fatalf("Require failed: %v", err)
	}
	if _, err := svc.Submit(ctx, types.NewID(), authz.RoleExecutive, authz.ReviewerSecretary, c.ID, fullSubmission()); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	_, err := svc.Submit(ctx, types.NewID(), authz.RoleExecutive, authz.ReviewerSecretary, c.ID, fullSubmission())
	if !errors.Is(err, errors.ErrAlreadyResponded) {
		t.Errorf("Expected already-responded on a completed seat, got %v", err)
	}
}

func TestSubmitValidation(t *testing.T) {
	c := caseAtComplianceReview(t)
	svc, _ := newTestService(t, c)
	ctx := context.Background()

	if _, err := svc.Require(ctx, types.NewID(), authz.RoleManager, c.ID); err != nil {
		t.Fatalf("Require failed: %v", err)
	}

	tests := []struct {
		name string
		sub  Submission
	}{
		{"missing commentary", Submission{Advice: "a", Recommendations: "r"}},
		{"missing advice", Submission{Commentary: "c", Recommendations: "r"}},
		{"missing recommendations", Submission{Commentary: "c", Advice: "a"}},
		{"all empty", Submission{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Submit(ctx, types.NewID(), authz.RoleExecutive, authz.ReviewerSecretary, c.ID, tt.sub)
			if !errors.Is(err, errors.ErrValidation) {
				t.Errorf("Expected validation error, got %v", err)
			}
		})
	}
}

func TestSubmitUnknownRole(t *testing.T) {
	c := caseAtComplianceReview(t)
	svc, _ := newTestService(t, c)

	_, err := svc.Submit(context.Background(), types.NewID(), authz.RoleManager, authz.ReviewerRole("clerk"), c.ID, fullSubmission())
	if !errors.Is(err, errors.ErrBadRequest) {
		t.Errorf("Expected bad request for unknown role, got %v", err)
	}
}

func TestSubmitChainComplete(t *testing.T) {
	c := caseAtComplianceReview(t)
	svc, _ := newTestService(t, c)
	ctx := context.Background()

	if _, err := svc.Require(ctx, types.NewID(), authz.RoleManager, c.ID); err != nil {
		t.Fatalf("Require failed: %v", err)
	}
	for _, role := range authz.ReviewerChain {
		if _, err := svc.Submit(ctx, types.NewID(), authz.ReviewerStaticRole(role), role, c.ID, fullSubmission()); err != nil {
			t.Fatalf("Submit as %s failed: %v", role, err)
		}
	}

	_, err := svc.Submit(ctx, types.NewID(), authz.RoleExecutive, authz.ReviewerSecretary, c.ID, fullSubmission())
	if !errors.Is(err, errors.ErrAlreadyCompleted) {
		t.Errorf("Expected already-completed error after chain done, got %v", err)
	}
}

func TestSubmitWithoutChain(t *testing.T) {
	c := caseAtComplianceReview(t)
	svc, _ := newTestService(t, c)

	_, err := svc.Submit(context.Background(), types.NewID(), authz.RoleExecutive, authz.ReviewerSecretary, c.ID, fullSubmission())
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("Expected not found without a chain, got %v", err)
	}
}

func TestSubmitSingleWinner(t *testing.T) {
	c := caseAtComplianceReview(t)
	svc, _ := newTestService(t, c)
	ctx := context.Background()

	if _, err := svc.Require(ctx, types.NewID(), authz.RoleManager, c.ID); err != nil {
		t.Fatalf("Require failed: %v", err)
	}

	const racers = 8
	results := make(chan error, racers)
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Submit(ctx, types.NewID(), authz.RoleExecutive, authz.ReviewerSecretary, c.ID, fullSubmission())
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var wins int
	for err := range results {
		if err == nil {
			wins++
			continue
		}
		if !errors.Is(err, errors.ErrAlreadyResponded) {
			t.Errorf("Unexpected racer error: %v", err)
		}
	}
	if wins != 1 {
		t.Errorf("Expected exactly 1 winning submission, got %d", wins)
	}
}
