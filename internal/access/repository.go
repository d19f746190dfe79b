package access

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/emabi2002/landcasesystem-sub000/internal/shared/errors"
	"github.com/emabi2002/landcasesystem-sub000/internal/shared/types"
)

// Repository provides database operations for groups, memberships,
// modules, and grants
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new access repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// --- Group Operations ---

// CreateGroup creates a new group
func (r *Repository) CreateGroup(ctx context.Context, group *Group) error {
	query := `
		INSERT INTO user_groups (id, code, name, description, active, version)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.pool.Exec(ctx, query,
		group.ID, group.Code, group.Name, group.Description, group.Active, group.Version,
	)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return errors.Conflict("group with this code already exists")
		}
		return errors.Wrap(err, "failed to create group")
	}

	return nil
}

// GetGroup retrieves a group by ID
func (r *Repository) GetGroup(ctx context.Context, id types.ID) (*Group, error) {
	query := `
		SELECT id, code, name, description, active, version, created_at, updated_at
		FROM user_groups
		WHERE id = $1`

	group := &Group{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&group.ID, &group.Code, &group.Name, &group.Description,
		&group.Active, &group.Version, &group.CreatedAt, &group.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("group", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get group")
	}

	return group, nil
}

// UpdateGroup updates a group's details and active flag
func (r *Repository) UpdateGroup(ctx context.Context, group *Group) error {
	query := `
		UPDATE user_groups SET
			name = $2, description = $3, active = $4,
			version = version + 1, updated_at = NOW()
		WHERE id = $1`

	result, err := r.pool.Exec(ctx, query,
		group.ID, group.Name, group.Description, group.Active,
	)

	if err != nil {
		return errors.Wrap(err, "failed to update group")
	}

	if result.RowsAffected() == 0 {
		return errors.NotFound("group", group.ID.String())
	}

	return nil
}

// DeleteGroup deletes a group; memberships and grants cascade
func (r *Repository) DeleteGroup(ctx context.Context, id types.ID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM user_groups WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "failed to delete group")
	}

	if result.RowsAffected() == 0 {
		return errors.NotFound("group", id.String())
	}

	return nil
}

// ListGroups lists groups with optional filters
func (r *Repository) ListGroups(ctx context.Context, activeOnly bool, search string, limit, offset int) ([]Group, int, error) {
	var conditions []string
	var args []interface{}
	argNum := 1

	if activeOnly {
		conditions = append(conditions, "active = TRUE")
	}

	if search != "" {
		conditions = append(conditions, fmt.Sprintf("(name ILIKE $%d OR code ILIKE $%d)", argNum, argNum))
		args = append(args, "%"+search+"%")
		argNum++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM user_groups %s", whereClause)
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "failed to count groups")
	}

	if limit <= 0 || limit > 100 {
		limit = 50
	}

	query := fmt.Sprintf(`
		SELECT id, code, name, description, active, version, created_at, updated_at
		FROM user_groups
		%s
		ORDER BY name
		LIMIT $%d OFFSET $%d`, whereClause, argNum, argNum+1)

	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list groups")
	}
	defer rows.Close()

	var groups []Group
	for rows.Next() {
		var group Group
		err := rows.Scan(
			&group.ID, &group.Code, &group.Name, &group.Description,
			&group.Active, &group.Version, &group.CreatedAt, &group.UpdatedAt,
		)
		if err != nil {
			return nil, 0, errors.Wrap(err, "failed to scan group")
		}
		groups = append(groups, group)
	}

	return groups, total, nil
}

// --- Membership Operations ---

// AddMember adds a user to a group, reactivating a prior membership
func (r *Repository) AddMember(ctx context.Context, m *Membership) error {
	query := `
		INSERT INTO group_memberships (group_id, user_id, active, added_by)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (group_id, user_id)
		DO UPDATE SET active = EXCLUDED.active, added_by = EXCLUDED.added_by`

	_, err := r.pool.Exec(ctx, query, m.GroupID, m.UserID, m.Active, m.AddedBy)
	if err != nil {
		if strings.Contains(err.Error(), "foreign key") {
			return errors.NotFound("group", m.GroupID.String())
		}
		return errors.Wrap(err, "failed to add member")
	}

	return nil
}

// RemoveMember deactivates a membership. The row is kept so the
// history of who belonged when survives.
func (r *Repository) RemoveMember(ctx context.Context, groupID, userID types.ID) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE group_memberships SET active = FALSE WHERE group_id = $1 AND user_id = $2`,
		groupID, userID,
	)
	if err != nil {
		return errors.Wrap(err, "failed to remove member")
	}

	if result.RowsAffected() == 0 {
		return errors.NotFound("membership", fmt.Sprintf("%s/%s", groupID, userID))
	}

	return nil
}

// ListMembers lists active memberships of a group
func (r *Repository) ListMembers(ctx context.Context, groupID types.ID) ([]Membership, error) {
	query := `
		SELECT group_id, user_id, active, added_by, created_at
		FROM group_memberships
		WHERE group_id = $1 AND active
		ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query, groupID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list members")
	}
	defer rows.Close()

	var members []Membership
	for rows.Next() {
		var m Membership
		if err := rows.Scan(&m.GroupID, &m.UserID, &m.Active, &m.AddedBy, &m.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan membership")
		}
		members = append(members, m)
	}

	return members, nil
}

// --- Module Operations ---

// CreateModule registers a grantable module
func (r *Repository) CreateModule(ctx context.Context, m *Module) error {
	query := `
		INSERT INTO system_modules (id, code, name, parent_id, display_order)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.pool.Exec(ctx, query, m.ID, m.Code, m.Name, m.ParentID, m.DisplayOrder)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return errors.Conflict("module with this code already exists")
		}
		return errors.Wrap(err, "failed to create module")
	}

	return nil
}

// ListModules lists all modules in display order
func (r *Repository) ListModules(ctx context.Context) ([]Module, error) {
	query := `
		SELECT id, code, name, parent_id, display_order, created_at
		FROM system_modules
		ORDER BY display_order, code`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list modules")
	}
	defer rows.Close()

	var modules []Module
	for rows.Next() {
		var m Module
		if err := rows.Scan(&m.ID, &m.Code, &m.Name, &m.ParentID, &m.DisplayOrder, &m.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan module")
		}
		modules = append(modules, m)
	}

	return modules, nil
}

// GetModuleByCode retrieves a module by its code
func (r *Repository) GetModuleByCode(ctx context.Context, code string) (*Module, error) {
	query := `
		SELECT id, code, name, parent_id, display_order, created_at
		FROM system_modules
		WHERE code = $1`

	m := &Module{}
	err := r.pool.QueryRow(ctx, query, code).Scan(
		&m.ID, &m.Code, &m.Name, &m.ParentID, &m.DisplayOrder, &m.CreatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("module", code)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get module")
	}

	return m, nil
}

// --- Grant Operations ---

// SetGrant upserts the grant a group holds on a module. An empty grant
// removes the row instead of storing all-false bits.
func (r *Repository) SetGrant(ctx context.Context, g *ModuleGrant) error {
	if g.Empty() {
		_, err := r.pool.Exec(ctx,
			`DELETE FROM group_module_access WHERE group_id = $1 AND module_id = $2`,
			g.GroupID, g.ModuleID,
		)
		if err != nil {
			return errors.Wrap(err, "failed to clear grant")
		}
		return nil
	}

	query := `
		INSERT INTO group_module_access (
			group_id, module_id, can_create, can_view, can_update,
			can_delete, can_admin, granted_by, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (group_id, module_id)
		DO UPDATE SET
			can_create = EXCLUDED.can_create,
			can_view = EXCLUDED.can_view,
			can_update = EXCLUDED.can_update,
			can_delete = EXCLUDED.can_delete,
			can_admin = EXCLUDED.can_admin,
			granted_by = EXCLUDED.granted_by,
			updated_at = NOW()`

	_, err := r.pool.Exec(ctx, query,
		g.GroupID, g.ModuleID, g.CanCreate, g.CanView, g.CanUpdate,
		g.CanDelete, g.CanAdmin, g.GrantedBy,
	)

	if err != nil {
		if strings.Contains(err.Error(), "foreign key") {
			return errors.NotFound("group or module", fmt.Sprintf("%s/%s", g.GroupID, g.ModuleID))
		}
		return errors.Wrap(err, "failed to set grant")
	}

	return nil
}

// ListGrants lists the grants held by a group
func (r *Repository) ListGrants(ctx context.Context, groupID types.ID) ([]ModuleGrant, error) {
	query := `
		SELECT g.group_id, g.module_id, m.code,
			g.can_create, g.can_view, g.can_update, g.can_delete, g.can_admin,
			g.granted_by, g.updated_at
		FROM group_module_access g
		JOIN system_modules m ON m.id = g.module_id
		WHERE g.group_id = $1
		ORDER BY m.display_order, m.code`

	rows, err := r.pool.Query(ctx, query, groupID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list grants")
	}
	defer rows.Close()

	var grants []ModuleGrant
	for rows.Next() {
		var g ModuleGrant
		err := rows.Scan(
			&g.GroupID, &g.ModuleID, &g.Module,
			&g.CanCreate, &g.CanView, &g.CanUpdate, &g.CanDelete, &g.CanAdmin,
			&g.GrantedBy, &g.UpdatedAt,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan grant")
		}
		grants = append(grants, g)
	}

	return grants, nil
}

// GrantsForUser resolves the effective grants a user holds through
// active memberships in active groups
func (r *Repository) GrantsForUser(ctx context.Context, userID types.ID) ([]ModuleGrant, error) {
	query := `
		SELECT g.group_id, g.module_id, m.code,
			g.can_create, g.can_view, g.can_update, g.can_delete, g.can_admin,
			g.granted_by, g.updated_at
		FROM group_module_access g
		JOIN system_modules m ON m.id = g.module_id
		JOIN user_groups ug ON ug.id = g.group_id AND ug.active
		JOIN group_memberships gm ON gm.group_id = g.group_id AND gm.active
		WHERE gm.user_id = $1`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve user grants")
	}
	defer rows.Close()

	var grants []ModuleGrant
	for rows.Next() {
		var g ModuleGrant
		err := rows.Scan(
			&g.GroupID, &g.ModuleID, &g.Module,
			&g.CanCreate, &g.CanView, &g.CanUpdate, &g.CanDelete, &g.CanAdmin,
			&g.GrantedBy, &g.UpdatedAt,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan grant")
		}
		grants = append(grants, g)
	}

	return grants, nil
}
