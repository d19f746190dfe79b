package casefile

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

// memoryRepo is an in-memory domain.Repository with the same version
// semantics as the PostgreSQL implementation
type memoryRepo struct {
	mu       sync.Mutex
	cases    map[types.ID]domain.Case
	comments []domain.Comment
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{cases: make(map[types.ID]domain.Case)}
}

func (r *memoryRepo) Save(ctx context.Context, c *domain.Case) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cases[c.ID] = *c
	return nil
}

func (r *memoryRepo) FindByID(ctx context.Context, id types.ID) (*domain.Case, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cases[id]
	if !ok {
		return nil, errors.NotFound("case", id.String())
	}
	return &c, nil
}

func (r *memoryRepo) FindByCaseNumber(ctx context.Context, caseNumber string) (*domain.Case, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.cases {
		if c.CaseNumber == caseNumber {
			return &c, nil
		}
	}
	return nil, errors.NotFound("case", caseNumber)
}

func (r *memoryRepo) Update(ctx context.Context, c *domain.Case, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.cases[c.ID]
	if !ok {
		return errors.NotFound("case", c.ID.String())
	}
	if stored.Version != expectedVersion {
		return errors.Conflict("case was modified concurrently")
	}
	r.cases[c.ID] = *c
	return nil
}

func (r *memoryRepo) List(ctx context.Context, filter domain.ListFilter) ([]domain.Case, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Case
	for _, c := range r.cases {
		if filter.Stage != nil && c.Stage != *filter.Stage {
			continue
		}
		out = append(out, c)
	}
	return out, len(out), nil
}

func (r *memoryRepo) AddComment(ctx context.Context, comment *domain.Comment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.comments = append(r.comments, *comment)
	return nil
}

func (r *memoryRepo) GetComments(ctx context.Context, caseID types.ID, limit, offset int) ([]domain.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Comment
	for _, c := range r.comments {
		if c.CaseID == caseID {
			out = append(out, c)
		}
	}
	return out, nil
}

// fakeCounter returns a settable pending count
type fakeCounter struct {
	mu    sync.Mutex
	count int
}

func (f *fakeCounter) PendingCount(ctx context.Context, caseID types.ID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count, nil
}

func (f *fakeCounter) set(n int) {
	f.mu.Lock()
	f.count = n
	f.mu.Unlock()
}

// fakeAlertGate returns settable pending counts keyed by stage
type fakeAlertGate struct {
	mu     sync.Mutex
	counts map[domain.Stage]int
}

func (f *fakeAlertGate) PendingCount(ctx context.Context, caseID types.ID, stage domain.Stage) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[stage], nil
}

func (f *fakeAlertGate) set(stage domain.Stage, n int) {
	f.mu.Lock()
	if f.counts == nil {
		f.counts = make(map[domain.Stage]int)
	}
	f.counts[stage] = n
	f.mu.Unlock()
}

func newTestService(repo domain.Repository, alerts AlertGate, advice AdviceGate) *Service {
	return NewService(
		repo,
		authz.NewEvaluator(nil),
		events.NewNoopBus(zerolog.Nop()),
		alerts,
		advice,
		zerolog.Nop(),
	)
}

func officer() Actor  { return Actor{ID: types.NewID(), Role: authz.RoleOfficer} }
func manager() Actor  { return Actor{ID: types.NewID(), Role: authz.RoleManager} }
func lawyer() Actor   { return Actor{ID: types.NewID(), Role: authz.RoleLawyer} }
func adminUsr() Actor { return Actor{ID: types.NewID(), Role: authz.RoleAdmin} }

// advanceTo walks a case forward to the target stage using roles that
// may drive each step
func advanceTo(t *testing.T, svc *Service, id types.ID, target domain.Stage) *domain.Case {
	t.Helper()
	ctx := context.Background()

	drivers := map[domain.Stage]Actor{
		domain.StageDirected:         manager(),
		domain.StageRegistered:       officer(),
		domain.StageAllocated:        manager(),
		domain.StageInProgress:       lawyer(),
		domain.StageComplianceReview: lawyer(),
		domain.StageClosed:           manager(),
		domain.StageNotified:         manager(),
	}

	var c *domain.Case
	for _, next := range domain.StageOrder[1:] {
		var err error
		c, err = svc.Advance(ctx, drivers[next], id, next, 0)
		if err != nil {
			t.Fatalf("Failed to advance to %s: %v", next, err)
		}
		if next == target {
			return c
		}
	}
	return c
}

// TestCreateCase tests creation and role gating
func TestCreateCase(t *testing.T) {
	svc := newTestService(newMemoryRepo(), &fakeAlertGate{}, &fakeCounter{})
	ctx := context.Background()

	c, err := svc.Create(ctx, officer(), "Compulsory acquisition, Portion 9", "", domain.PriorityHigh)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if c.Stage != domain.StageReceived {
		t.Errorf("Expected stage %s, got %s", domain.StageReceived, c.Stage)
	}

	// Executives hold no create access on cases
	if _, err := svc.Create(ctx, Actor{ID: types.NewID(), Role: authz.RoleExecutive}, "X", "", ""); err == nil {
		t.Error("Expected executive create to be denied")
	}
}

// TestAdvanceOrder tests the full forward walk and the successor rule
func TestAdvanceOrder(t *testing.T) {
	svc := newTestService(newMemoryRepo(), &fakeAlertGate{}, &fakeCounter{})
	ctx := context.Background()

	c, err := svc.Create(ctx, officer(), "Lease transfer", "", "")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Skipping a stage is an invalid transition
	if _, err := svc.Advance(ctx, manager(), c.ID, domain.StageAllocated, 0); err == nil {
		t.Error("Expected invalid transition for stage skip")
	} else if !errors.Is(err, errors.ErrInvalidTransition) {
		t.Errorf("Expected ErrInvalidTransition, got %v", err)
	}

	final := advanceTo(t, svc, c.ID, domain.StageNotified)
	if final.Stage != domain.StageNotified {
		t.Errorf("Expected final stage, got %s", final.Stage)
	}
	if final.Status != domain.CaseStatusClosed {
		t.Errorf("Expected closed status, got %s", final.Status)
	}
}

// TestAdvanceRoleGate tests that only permitted roles drive a stage
func TestAdvanceRoleGate(t *testing.T) {
	svc := newTestService(newMemoryRepo(), &fakeAlertGate{}, &fakeCounter{})
	ctx := context.Background()

	c, _ := svc.Create(ctx, officer(), "Role gate", "", "")

	// Officer may not direct a case
	if _, err := svc.Advance(ctx, officer(), c.ID, domain.StageDirected, 0); err == nil {
		t.Error("Expected officer to be denied for directed")
	} else if !errors.Is(err, errors.ErrUnauthorized) {
		t.Errorf("Expected ErrUnauthorized, got %v", err)
	}

	// Manager may
	if _, err := svc.Advance(ctx, manager(), c.ID, domain.StageDirected, 0); err != nil {
		t.Errorf("Expected manager to direct, got %v", err)
	}
}

// TestAdvanceRepeat tests that a repeated advance reports completion
func TestAdvanceRepeat(t *testing.T) {
	svc := newTestService(newMemoryRepo(), &fakeAlertGate{}, &fakeCounter{})
	ctx := context.Background()

	c, _ := svc.Create(ctx, officer(), "Repeat advance", "", "")

	if _, err := svc.Advance(ctx, manager(), c.ID, domain.StageDirected, 0); err != nil {
		t.Fatalf("Advance failed: %v", err)
	}

	// The same transition again: already done, not an invalid jump
	_, err := svc.Advance(ctx, manager(), c.ID, domain.StageDirected, 0)
	if !errors.Is(err, errors.ErrAlreadyCompleted) {
		t.Errorf("Expected ErrAlreadyCompleted, got %v", err)
	}
}

// TestAdvanceVersionConflict tests the optimistic version gate
func TestAdvanceVersionConflict(t *testing.T) {
	svc := newTestService(newMemoryRepo(), &fakeAlertGate{}, &fakeCounter{})
	ctx := context.Background()

	c, _ := svc.Create(ctx, officer(), "Version gate", "", "")

	// Stale version is rejected before any transition check
	if _, err := svc.Advance(ctx, manager(), c.ID, domain.StageDirected, c.Version+5); err == nil {
		t.Error("Expected conflict for stale version")
	} else if !errors.Is(err, errors.ErrConflict) {
		t.Errorf("Expected ErrConflict, got %v", err)
	}

	// Matching version succeeds
	if _, err := svc.Advance(ctx, manager(), c.ID, domain.StageDirected, c.Version); err != nil {
		t.Errorf("Expected advance with matching version, got %v", err)
	}
}

// TestCloseGating tests that closing is blocked by outstanding review
// steps and pending alerts, and proceeds once both clear
func TestCloseGating(t *testing.T) {
	alerts := &fakeAlertGate{}
	advice := &fakeCounter{}
	svc := newTestService(newMemoryRepo(), alerts, advice)
	ctx := context.Background()

	c, _ := svc.Create(ctx, officer(), "Close gating", "", "")
	advanceTo(t, svc, c.ID, domain.StageComplianceReview)

	advice.set(2)
	alerts.set(domain.StageComplianceReview, 1)

	// Outstanding review steps block closing
	_, err := svc.Advance(ctx, manager(), c.ID, domain.StageClosed, 0)
	if !errors.Is(err, errors.ErrPrecondition) {
		t.Fatalf("Expected ErrPrecondition for pending advice, got %v", err)
	}

	// Advice complete, but an alert still awaits response
	advice.set(0)
	_, err = svc.Advance(ctx, manager(), c.ID, domain.StageClosed, 0)
	if !errors.Is(err, errors.ErrPrecondition) {
		t.Fatalf("Expected ErrPrecondition for pending alert, got %v", err)
	}

	// All clear
	alerts.set(domain.StageComplianceReview, 0)
	closed, err := svc.Advance(ctx, manager(), c.ID, domain.StageClosed, 0)
	if err != nil {
		t.Fatalf("Expected close to succeed, got %v", err)
	}
	if closed.Status != domain.CaseStatusClosed {
		t.Errorf("Expected closed status, got %s", closed.Status)
	}
	if closed.ClosedAt == nil {
		t.Error("Expected ClosedAt set")
	}

	// A second close attempt reports completion, with no extra events
	_, err = svc.Advance(ctx, manager(), c.ID, domain.StageClosed, 0)
	if !errors.Is(err, errors.ErrAlreadyCompleted) {
		t.Errorf("Expected ErrAlreadyCompleted on repeat close, got %v", err)
	}
}

// TestCloseIgnoresEarlierStageAlerts tests that only alerts raised
// against the stage being closed gate the transition
func TestCloseIgnoresEarlierStageAlerts(t *testing.T) {
	alerts := &fakeAlertGate{}
	svc := newTestService(newMemoryRepo(), alerts, &fakeCounter{})
	ctx := context.Background()

	c, _ := svc.Create(ctx, officer(), "Stale registry alert", "", "")
	advanceTo(t, svc, c.ID, domain.StageComplianceReview)

	// An unanswered alert from the registration stage must not block
	alerts.set(domain.StageRegistered, 1)

	closed, err := svc.Advance(ctx, manager(), c.ID, domain.StageClosed, 0)
	if err != nil {
		t.Fatalf("Expected close to succeed with an earlier-stage alert pending, got %v", err)
	}
	if closed.Stage != domain.StageClosed {
		t.Errorf("Expected stage %s, got %s", domain.StageClosed, closed.Stage)
	}
}

func TestTerminalCaseLockReleased(t *testing.T) {
	svc := newTestService(newMemoryRepo(), &fakeAlertGate{}, &fakeCounter{})
	ctx := context.Background()

	c, _ := svc.Create(ctx, officer(), "Lock lifecycle", "", "")
	advanceTo(t, svc, c.ID, domain.StageClosed)

	svc.mu.Lock()
	_, held := svc.locks[c.ID]
	svc.mu.Unlock()
	if !held {
		t.Fatal("Expected an active case to hold a lock entry")
	}

	if _, err := svc.Advance(ctx, manager(), c.ID, domain.StageNotified, 0); err != nil {
		t.Fatalf("Expected advance to notified, got %v", err)
	}

	svc.mu.Lock()
	_, held = svc.locks[c.ID]
	svc.mu.Unlock()
	if held {
		t.Error("Expected the lock entry to be dropped at the terminal stage")
	}
}

// TestOverride tests the admin-only workflow override
func TestOverride(t *testing.T) {
	svc := newTestService(newMemoryRepo(), &fakeAlertGate{}, &fakeCounter{})
	ctx := context.Background()

	c, _ := svc.Create(ctx, officer(), "Override", "", "")

	if _, err := svc.Override(ctx, manager(), c.ID, domain.StageInProgress, "hurry up"); err == nil {
		t.Error("Expected non-admin override to be denied")
	}

	moved, err := svc.Override(ctx, adminUsr(), c.ID, domain.StageInProgress, "ministerial direction")
	if err != nil {
		t.Fatalf("Override failed: %v", err)
	}
	if moved.Stage != domain.StageInProgress {
		t.Errorf("Expected stage %s, got %s", domain.StageInProgress, moved.Stage)
	}

	if _, err := svc.Override(ctx, adminUsr(), c.ID, domain.StageClosed, ""); err == nil {
		t.Error("Expected override without reason to fail")
	}
}

// TestReopen tests executive reopening of a closed case
func TestReopen(t *testing.T) {
	svc := newTestService(newMemoryRepo(), &fakeAlertGate{}, &fakeCounter{})
	ctx := context.Background()

	c, _ := svc.Create(ctx, officer(), "Reopen", "", "")
	advanceTo(t, svc, c.ID, domain.StageClosed)

	if _, err := svc.Reopen(ctx, lawyer(), c.ID, "missed filing"); err == nil {
		t.Error("Expected lawyer reopen to be denied")
	}

	reopened, err := svc.Reopen(ctx, Actor{ID: types.NewID(), Role: authz.RoleExecutive}, c.ID, "missed filing")
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	if reopened.Stage != domain.StageComplianceReview {
		t.Errorf("Expected stage %s, got %s", domain.StageComplianceReview, reopened.Stage)
	}
	if reopened.Status != domain.CaseStatusOpen {
		t.Errorf("Expected open status, got %s", reopened.Status)
	}
}

// TestConcurrentAdvance tests that racing advances produce exactly one
// winner
func TestConcurrentAdvance(t *testing.T) {
	svc := newTestService(newMemoryRepo(), &fakeAlertGate{}, &fakeCounter{})
	ctx := context.Background()

	c, _ := svc.Create(ctx, officer(), "Race", "", "")

	const racers = 8
	var wg sync.WaitGroup
	results := make([]error, racers)

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = svc.Advance(ctx, manager(), c.ID, domain.StageDirected, 0)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range results {
		if err == nil {
			wins++
		} else if !errors.Is(err, errors.ErrAlreadyCompleted) {
			t.Errorf("Expected ErrAlreadyCompleted for losers, got %v", err)
		}
	}
	if wins != 1 {
		t.Errorf("Expected exactly one winner, got %d", wins)
	}

	final, _ := svc.Get(ctx, manager(), c.ID)
	if final.Stage != domain.StageDirected {
		t.Errorf("Expected stage directed, got %s", final.Stage)
	}
}

// TestComments tests attaching and listing comments
func TestComments(t *testing.T) {
	svc := newTestService(newMemoryRepo(), &fakeAlertGate{}, &fakeCounter{})
	ctx := context.Background()

	c, _ := svc.Create(ctx, officer(), "Comments", "", "")

	if _, err := svc.AddComment(ctx, officer(), c.ID, ""); err == nil {
		t.Error("Expected empty comment to be rejected")
	}

	if _, err := svc.AddComment(ctx, lawyer(), c.ID, "survey plan requested"); err != nil {
		t.Fatalf("AddComment failed: %v", err)
	}

	comments, err := svc.Comments(ctx, manager(), c.ID, 0, 0)
	if err != nil {
		t.Fatalf("Comments failed: %v", err)
	}
	if len(comments) != 1 {
		t.Errorf("Expected 1 comment, got %d", len(comments))
	}
}
