// Package access manages user groups, group memberships, and the module
// grants groups confer. A user's effective access is the union of grants
// from every active group they actively belong to.
package access

import (
	"time"

	"github.com/emabi2002/landcasesystem-sub000/internal/shared/types"
)

// Group is a named set of users sharing module grants
type Group struct {
	ID          types.ID  `json:"id"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Active      bool      `json:"active"`
	Version     int64     `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Membership links a user to a group
type Membership struct {
	GroupID   types.ID  `json:"group_id"`
	UserID    types.ID  `json:"user_id"`
	Active    bool      `json:"active"`
	AddedBy   types.ID  `json:"added_by"`
	CreatedAt time.Time `json:"created_at"`
}

// Module is a grantable area of the system. Modules may nest for
// display purposes; grants always attach to a concrete module.
type Module struct {
	ID           types.ID  `json:"id"`
	Code         string    `json:"code"`
	Name         string    `json:"name"`
	ParentID     *types.ID `json:"parent_id,omitempty"`
	DisplayOrder int       `json:"display_order"`
	CreatedAt    time.Time `json:"created_at"`
}

// ModuleGrant is the permission set a group holds on one module.
// All bits false is equivalent to no row; there are no negative grants.
type ModuleGrant struct {
	GroupID   types.ID  `json:"group_id"`
	ModuleID  types.ID  `json:"module_id"`
	Module    string    `json:"module"` // module code, filled on reads
	CanCreate bool      `json:"can_create"`
	CanView   bool      `json:"can_view"`
	CanUpdate bool      `json:"can_update"`
	CanDelete bool      `json:"can_delete"`
	CanAdmin  bool      `json:"can_admin"`
	GrantedBy types.ID  `json:"granted_by"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Empty reports whether the grant carries no permissions
func (g ModuleGrant) Empty() bool {
	return !g.CanCreate && !g.CanView && !g.CanUpdate && !g.CanDelete && !g.CanAdmin
}
