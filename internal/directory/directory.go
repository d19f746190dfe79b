// Package directory manages the user register: the office's staff,
// their static roles and whether they are active. The notification
// dispatcher resolves role fan-outs against it.
package directory

import (
	"context"
	"time"

	"github.com/emabi2002/landcasesystem-sub000/internal/authz"
	"github.com/emabi2002/landcasesystem-sub000/internal/shared/types"
)

// User is one member of staff
type User struct {
	ID          types.ID   `json:"id"`
	DisplayName string     `json:"display_name"`
	Email       string     `json:"email"`
	Role        authz.Role `json:"role"`
	Active      bool       `json:"active"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// ListFilter narrows user queries
type ListFilter struct {
	Role       authz.Role
	ActiveOnly bool
	Search     string
	Limit      int
	Offset     int
}

// Repository defines user persistence
type Repository interface {
	Create(ctx context.Context, u *User) error
	FindByID(ctx context.Context, id types.ID) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, u *User) error
	Deactivate(ctx context.Context, id types.ID) error
	List(ctx context.Context, filter ListFilter) ([]User, int, error)

	// UserIDsByRole lists active users holding a role. The
	// notification dispatcher uses this for role fan-outs.
	UserIDsByRole(ctx context.Context, role string) ([]types.ID, error)
}
