package authz

import (
	"context"
	"fmt"

	"github.com/emabi2002/landcasesystem-sub000/internal/shared/metrics"
	"github.com/emabi2002/landcasesystem-sub000/internal/shared/types"
)

// Module codes used in access decisions.
const (
	ModuleCases         = "cases"
	ModuleDelegations   = "delegations"
	ModuleAdvice        = "advice"
	ModuleAlerts        = "alerts"
	ModuleNotifications = "notifications"
	ModuleHistory       = "history"
	ModuleUsers         = "users"
	ModuleGroups        = "groups"
)

// Grant is the effective permission set a group confers on one module.
type Grant struct {
	Module    string
	CanView   bool
	CanCreate bool
	CanEdit   bool
	CanDelete bool
	CanAdmin  bool
}

// Allows checks whether the grant permits the action
func (g Grant) Allows(action Action) bool {
	switch action {
	case ActionView:
		return g.CanView
	case ActionCreate:
		return g.CanCreate
	case ActionEdit:
		return g.CanEdit
	case ActionDelete:
		return g.CanDelete
	case ActionAdmin:
		return g.CanAdmin
	}
	return false
}

// GrantSource resolves the module grants a user holds through active
// group memberships. Inactive groups and memberships never appear.
type GrantSource interface {
	GrantsForUser(ctx context.Context, userID types.ID) ([]Grant, error)
}

// Decision is the outcome of an access check
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
	Source  string `json:"source,omitempty"` // role or group
}

// roleModuleActions maps static roles to module actions they hold
// without any group grant. Group grants only ever add access; there
// are no negative grants.
var roleModuleActions = map[Role]map[string][]Action{
	RoleExecutive: {
		ModuleCases:         {ActionView, ActionEdit},
		ModuleAdvice:        {ActionView, ActionCreate, ActionEdit},
		ModuleAlerts:        {ActionView, ActionEdit},
		ModuleNotifications: {ActionView},
		ModuleHistory:       {ActionView},
	},
	RoleManager: {
		ModuleCases:         {ActionView, ActionCreate, ActionEdit},
		ModuleDelegations:   {ActionView, ActionCreate},
		ModuleAdvice:        {ActionView, ActionCreate},
		ModuleAlerts:        {ActionView, ActionCreate, ActionEdit},
		ModuleNotifications: {ActionView},
		ModuleHistory:       {ActionView},
		ModuleGroups:        {ActionView, ActionCreate, ActionEdit, ActionDelete},
	},
	RoleLawyer: {
		ModuleCases:         {ActionView, ActionEdit},
		ModuleDelegations:   {ActionView},
		ModuleAdvice:        {ActionView},
		ModuleAlerts:        {ActionView, ActionCreate},
		ModuleNotifications: {ActionView},
		ModuleHistory:       {ActionView},
	},
	RoleOfficer: {
		ModuleCases:         {ActionView, ActionCreate, ActionEdit},
		ModuleAlerts:        {ActionView, ActionCreate},
		ModuleNotifications: {ActionView},
	},
}

// Evaluator makes access decisions. The static role table is consulted
// first; on a miss the user's group grants are unioned.
type Evaluator struct {
	grants GrantSource
}

// NewEvaluator creates an access evaluator
func NewEvaluator(grants GrantSource) *Evaluator {
	return &Evaluator{grants: grants}
}

// Authorize decides whether a user may perform an action on a module
func (e *Evaluator) Authorize(ctx context.Context, userID types.ID, role Role, module string, action Action) (Decision, error) {
	decision, err := e.authorize(ctx, userID, role, module, action)
	if err != nil {
		return Decision{}, err
	}
	metrics.RecordAuthorizationDecision(module, string(action), decision.Allowed)
	return decision, nil
}

func (e *Evaluator) authorize(ctx context.Context, userID types.ID, role Role, module string, action Action) (Decision, error) {
	// Admins hold every module action
	if role == RoleAdmin {
		return Decision{Allowed: true, Source: "role"}, nil
	}

	// Static role fast path
	if actions, ok := roleModuleActions[role][module]; ok {
		for _, a := range actions {
			if a == action {
				return Decision{Allowed: true, Source: "role"}, nil
			}
		}
	}

	// Group grants: union across active memberships
	if e.grants != nil && !userID.IsZero() {
		grants, err := e.grants.GrantsForUser(ctx, userID)
		if err != nil {
			return Decision{}, fmt.Errorf("failed to resolve group grants: %w", err)
		}
		for _, g := range grants {
			if g.Module != module {
				continue
			}
			if g.CanAdmin || g.Allows(action) {
				return Decision{Allowed: true, Source: "group"}, nil
			}
		}
	}

	return Decision{
		Allowed: false,
		Reason:  fmt.Sprintf("role %s holds no %s access on %s and no group grants it", role, action, module),
	}, nil
}
