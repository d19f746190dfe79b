package authz

import (
	"context"
	"errors"
	"testing"

	"github.com/emabi2002/landcasesystem-sub000/internal/casefile/domain"
	"github.com/emabi2002/landcasesystem-sub000/internal/shared/types"
)

type fakeGrantSource struct {
	grants map[string][]Grant
	err    error
}

func (f *fakeGrantSource) GrantsForUser(ctx context.Context, userID types.ID) ([]Grant, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.grants[userID.String()], nil
}

// TestAuthorizeStaticRoles tests the static role fast path
func TestAuthorizeStaticRoles(t *testing.T) {
	e := NewEvaluator(&fakeGrantSource{})
	ctx := context.Background()
	userID := types.NewID()

	tests := []struct {
		name    string
		role    Role
		module  string
		action  Action
		allowed bool
	}{
		{"Admin holds everything", RoleAdmin, ModuleGroups, ActionDelete, true},
		{"Officer creates cases", RoleOfficer, ModuleCases, ActionCreate, true},
		{"Officer cannot delegate", RoleOfficer, ModuleDelegations, ActionCreate, false},
		{"Manager creates delegations", RoleManager, ModuleDelegations, ActionCreate, true},
		{"Lawyer raises alerts", RoleLawyer, ModuleAlerts, ActionCreate, true},
		{"Lawyer cannot submit delegations", RoleLawyer, ModuleDelegations, ActionCreate, false},
		{"Executive edits advice", RoleExecutive, ModuleAdvice, ActionEdit, true},
		{"Executive cannot manage groups", RoleExecutive, ModuleGroups, ActionEdit, false},
		{"Manager creates groups", RoleManager, ModuleGroups, ActionCreate, true},
		{"Manager edits groups", RoleManager, ModuleGroups, ActionEdit, true},
		{"Manager deletes groups", RoleManager, ModuleGroups, ActionDelete, true},
		{"Manager cannot administer groups", RoleManager, ModuleGroups, ActionAdmin, false},
		{"Nobody but admin deletes cases", RoleManager, ModuleCases, ActionDelete, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := e.Authorize(ctx, userID, tt.role, tt.module, tt.action)
			if err != nil {
				t.Fatalf("Authorize failed: %v", err)
			}
			if d.Allowed != tt.allowed {
				t.Errorf("Expected allowed=%v, got %v (reason: %s)", tt.allowed, d.Allowed, d.Reason)
			}
			if tt.allowed && d.Source != "role" {
				t.Errorf("Expected role source, got %s", d.Source)
			}
			if !tt.allowed && d.Reason == "" {
				t.Error("Expected a deny reason")
			}
		})
	}
}

// TestAuthorizeGroupGrants tests the group-grant union path
func TestAuthorizeGroupGrants(t *testing.T) {
	ctx := context.Background()
	userID := types.NewID()

	src := &fakeGrantSource{grants: map[string][]Grant{
		userID.String(): {
			{Module: ModuleDelegations, CanView: true},
			{Module: ModuleDelegations, CanCreate: true},
			{Module: ModuleGroups, CanAdmin: true},
		},
	}}
	e := NewEvaluator(src)

	// Officer has no static delegation access but a group grants create
	d, err := e.Authorize(ctx, userID, RoleOfficer, ModuleDelegations, ActionCreate)
	if err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}
	if !d.Allowed {
		t.Errorf("Expected group grant to allow, got deny: %s", d.Reason)
	}
	if d.Source != "group" {
		t.Errorf("Expected group source, got %s", d.Source)
	}

	// Admin bit on a grant covers any action on that module
	d, _ = e.Authorize(ctx, userID, RoleOfficer, ModuleGroups, ActionDelete)
	if !d.Allowed {
		t.Errorf("Expected admin grant bit to allow, got deny: %s", d.Reason)
	}

	// Grants never subtract: absence of a grant for a module denies
	d, _ = e.Authorize(ctx, userID, RoleOfficer, ModuleUsers, ActionView)
	if d.Allowed {
		t.Error("Expected deny for module with no role access and no grant")
	}

	// Other users get nothing from this source
	d, _ = e.Authorize(ctx, types.NewID(), RoleOfficer, ModuleDelegations, ActionCreate)
	if d.Allowed {
		t.Error("Expected deny for user without grants")
	}
}

// TestAuthorizeGrantSourceError tests failure propagation
func TestAuthorizeGrantSourceError(t *testing.T) {
	e := NewEvaluator(&fakeGrantSource{err: errors.New("db down")})

	_, err := e.Authorize(context.Background(), types.NewID(), RoleOfficer, ModuleDelegations, ActionCreate)
	if err == nil {
		t.Fatal("Expected error when grant source fails")
	}
}

// TestCanDriveStage tests the role/stage registry
func TestCanDriveStage(t *testing.T) {
	tests := []struct {
		role  Role
		stage domain.Stage
		want  bool
	}{
		{RoleOfficer, domain.StageReceived, true},
		{RoleOfficer, domain.StageClosed, false},
		{RoleManager, domain.StageDirected, true},
		{RoleManager, domain.StageReceived, false},
		{RoleLawyer, domain.StageInProgress, true},
		{RoleLawyer, domain.StageNotified, false},
		{RoleExecutive, domain.StageClosed, true},
		{RoleAdmin, domain.StageNotified, true},
	}

	for _, tt := range tests {
		if got := CanDriveStage(tt.role, tt.stage); got != tt.want {
			t.Errorf("CanDriveStage(%s, %s) = %v, want %v", tt.role, tt.stage, got, tt.want)
		}
	}

	if CanOverride(RoleExecutive) {
		t.Error("Only admin may override the successor rule")
	}
	if !CanOverride(RoleAdmin) {
		t.Error("Admin must be able to override")
	}
}
