// Package authz provides role definitions and access decisions for case
// operations, combining static office roles with dynamic group grants.
package authz

import (
	"github.com/emabi2002/landcasesystem-sub000/internal/casefile/domain"
)

// Role represents a static office role.
type Role string

const (
	RoleExecutive Role = "executive" // Oversight, review and closure
	RoleManager   Role = "manager"   // Directs and allocates cases
	RoleLawyer    Role = "lawyer"    // Carries out legal work
	RoleOfficer   Role = "officer"   // Registry and clerical work
	RoleAdmin     Role = "admin"     // Full access, workflow override
)

// ReviewerRole represents a step in the executive escalation chain.
// These are workflow positions, not login roles: the users holding them
// are executives or managers acting in a named capacity.
type ReviewerRole string

const (
	ReviewerSecretary     ReviewerRole = "secretary"
	ReviewerDirectorLegal ReviewerRole = "director_legal"
	ReviewerManagerLegal  ReviewerRole = "manager_legal"
)

// ReviewerChain is the fixed review order for executive escalation.
var ReviewerChain = []ReviewerRole{
	ReviewerSecretary,
	ReviewerDirectorLegal,
	ReviewerManagerLegal,
}

// ValidRole reports whether r is a known static role
func ValidRole(r Role) bool {
	switch r {
	case RoleExecutive, RoleManager, RoleLawyer, RoleOfficer, RoleAdmin:
		return true
	}
	return false
}

// ReviewerStaticRole maps a chain position to the static role whose
// holders act in that capacity.
func ReviewerStaticRole(r ReviewerRole) Role {
	switch r {
	case ReviewerSecretary, ReviewerDirectorLegal:
		return RoleExecutive
	case ReviewerManagerLegal:
		return RoleManager
	}
	return ""
}

// ValidReviewerRole reports whether r is a known reviewer role
func ValidReviewerRole(r ReviewerRole) bool {
	for _, rr := range ReviewerChain {
		if r == rr {
			return true
		}
	}
	return false
}

// Action represents an operation on a module.
type Action string

const (
	ActionView   Action = "view"
	ActionCreate Action = "create"
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
	ActionAdmin  Action = "admin"
)

// RoleStages maps each static role to the workflow stages it may drive
// a case into. Admin is handled separately: it covers every stage and
// may override the successor rule.
var RoleStages = map[Role][]domain.Stage{
	RoleOfficer: {
		domain.StageReceived,
		domain.StageRegistered,
		domain.StageInProgress,
	},
	RoleLawyer: {
		domain.StageRegistered,
		domain.StageAllocated,
		domain.StageInProgress,
		domain.StageComplianceReview,
	},
	RoleManager: {
		domain.StageDirected,
		domain.StageAllocated,
		domain.StageComplianceReview,
		domain.StageClosed,
		domain.StageNotified,
	},
	RoleExecutive: {
		domain.StageComplianceReview,
		domain.StageClosed,
		domain.StageNotified,
	},
}

// CanDriveStage checks whether a static role may move a case into the
// given stage.
func CanDriveStage(role Role, stage domain.Stage) bool {
	if role == RoleAdmin {
		return true
	}
	for _, s := range RoleStages[role] {
		if s == stage {
			return true
		}
	}
	return false
}

// CanOverride reports whether the role may bypass the successor rule
func CanOverride(role Role) bool {
	return role == RoleAdmin
}
