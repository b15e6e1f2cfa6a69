package permission

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/parapet/portal/pkg/model"
)

// DBChecker implements Checker against the roles/grants schema. Role
// membership is resolved once per request and memoized on the checker;
// individual grant checks hit the database so they always see committed
// truth.
type DBChecker struct {
	db        *sql.DB
	userID    int64
	companyID int64

	roleIDs []int64 // resolved lazily, including inherited parents
}

// NewDBChecker builds a checker for one acting user.
func NewDBChecker(db *sql.DB, userID, companyID int64) *DBChecker {
	return &DBChecker{db: db, userID: userID, companyID: companyID}
}

// UserID identifies the acting principal.
func (c *DBChecker) UserID() int64 {
	return c.userID
}

// HasGroupPermission checks an action grant at group scope.
func (c *DBChecker) HasGroupPermission(ctx context.Context, groupID int64, action Action) (bool, error) {
	return c.allowed(ctx, ResourceGroup, groupID, action)
}

// HasLayoutPermission checks an action over a specific layout. A grant on the
// layout itself or the owning group satisfies the check.
func (c *DBChecker) HasLayoutPermission(ctx context.Context, layout *model.Layout, action Action) (bool, error) {
	ok, err := c.allowed(ctx, ResourceLayout, layout.PLID, action)
	if err != nil || ok {
		return ok, err
	}
	return c.allowed(ctx, ResourceGroup, layout.GroupID, action)
}

// HasLayoutIDPermission checks an action over a layout addressed by
// (group, privacy, layout id).
func (c *DBChecker) HasLayoutIDPermission(ctx context.Context, groupID int64, private bool, layoutID int64, action Action) (bool, error) {
	query := `SELECT plid FROM layouts WHERE group_id = $1 AND private = $2 AND layout_id = $3`
	var plid int64
	err := c.db.QueryRowContext(ctx, query, groupID, private, layoutID).Scan(&plid)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to resolve layout: %w", err)
	}

	ok, err := c.allowed(ctx, ResourceLayout, plid, action)
	if err != nil || ok {
		return ok, err
	}
	return c.allowed(ctx, ResourceGroup, groupID, action)
}

// HasUserPermission checks an action over another user. Grants scoped to any
// of the target user's organizations also satisfy the check, which is how
// organization administrators manage their members' personal pages.
func (c *DBChecker) HasUserPermission(ctx context.Context, userID int64, organizationIDs []int64, action Action) (bool, error) {
	ok, err := c.allowed(ctx, ResourceUser, userID, action)
	if err != nil || ok {
		return ok, err
	}
	for _, orgID := range organizationIDs {
		ok, err = c.allowed(ctx, ResourceOrganization, orgID, action)
		if err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}

// HasOrganizationPermission checks an action grant at organization scope.
func (c *DBChecker) HasOrganizationPermission(ctx context.Context, organizationID int64, action Action) (bool, error) {
	return c.allowed(ctx, ResourceOrganization, organizationID, action)
}

// HasPrototypePermission checks an action over a layout or layout-set
// prototype by its class primary key.
func (c *DBChecker) HasPrototypePermission(ctx context.Context, resource Resource, classPK int64, action Action) (bool, error) {
	return c.allowed(ctx, resource, classPK, action)
}

// HasPortalPermission checks a portal-wide action grant.
func (c *DBChecker) HasPortalPermission(ctx context.Context, action Action) (bool, error) {
	return c.allowed(ctx, ResourcePortal, GlobalScope, action)
}

// allowed reports whether any of the user's roles grants (resource, action)
// at the given scope or globally for that resource kind.
func (c *DBChecker) allowed(ctx context.Context, resource Resource, scopePK int64, action Action) (bool, error) {
	roleIDs, err := c.resolveRoleIDs(ctx)
	if err != nil {
		return false, err
	}
	if len(roleIDs) == 0 {
		return false, nil
	}

	placeholders := make([]string, len(roleIDs))
	args := []interface{}{string(resource), string(action), scopePK}
	for i, id := range roleIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+4)
		args = append(args, id)
	}

	query := fmt.Sprintf(`
		SELECT EXISTS (
			SELECT 1 FROM resource_grants
			WHERE resource = $1 AND action = $2
			  AND (scope_pk = $3 OR scope_pk = 0)
			  AND role_id IN (%s)
		)`, strings.Join(placeholders, ", "))

	var exists bool
	if err := c.db.QueryRowContext(ctx, query, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check grant: %w", err)
	}
	return exists, nil
}

// resolveRoleIDs loads the user's directly assigned roles and walks parent
// roles to a fixed point.
func (c *DBChecker) resolveRoleIDs(ctx context.Context) ([]int64, error) {
	if c.roleIDs != nil {
		return c.roleIDs, nil
	}

	query := `
		SELECT r.id, r.parent_role_id
		FROM roles r
		JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = $1 AND r.company_id = $2
	`
	rows, err := c.db.QueryContext(ctx, query, c.userID, c.companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query user roles: %w", err)
	}
	defer rows.Close()

	seen := map[int64]bool{}
	var pending []int64
	for rows.Next() {
		var id int64
		var parent sql.NullInt64
		if err := rows.Scan(&id, &parent); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		if !seen[id] {
			seen[id] = true
		}
		if parent.Valid && !seen[parent.Int64] {
			pending = append(pending, parent.Int64)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for len(pending) > 0 {
		id := pending[len(pending)-1]
		pending = pending[:len(pending)-1]
		if seen[id] {
			continue
		}
		seen[id] = true

		var parent sql.NullInt64
		err := c.db.QueryRowContext(ctx,
			`SELECT parent_role_id FROM roles WHERE id = $1`, id).Scan(&parent)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to resolve parent role: %w", err)
		}
		if parent.Valid && !seen[parent.Int64] {
			pending = append(pending, parent.Int64)
		}
	}

	ids := make([]int64, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	c.roleIDs = ids
	return ids, nil
}

// DBRoleService implements RoleService over the same schema.
type DBRoleService struct {
	db *sql.DB
}

// NewDBRoleService creates a role service.
func NewDBRoleService(db *sql.DB) *DBRoleService {
	return &DBRoleService{db: db}
}

// HasRole reports whether the user holds the named role. With inherited set,
// roles reachable through parent-role chains of the user's assignments also
// count.
func (s *DBRoleService) HasRole(ctx context.Context, userID, companyID int64, roleName string, inherited bool) (bool, error) {
	direct := `
		SELECT EXISTS (
			SELECT 1 FROM roles r
			JOIN user_roles ur ON ur.role_id = r.id
			WHERE ur.user_id = $1 AND r.company_id = $2 AND r.name = $3
		)`
	var exists bool
	if err := s.db.QueryRowContext(ctx, direct, userID, companyID, roleName).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check role: %w", err)
	}
	if exists || !inherited {
		return exists, nil
	}

	checker := NewDBChecker(s.db, userID, companyID)
	roleIDs, err := checker.resolveRoleIDs(ctx)
	if err != nil {
		return false, err
	}
	if len(roleIDs) == 0 {
		return false, nil
	}

	placeholders := make([]string, len(roleIDs))
	args := []interface{}{companyID, roleName}
	for i, id := range roleIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+3)
		args = append(args, id)
	}
	query := fmt.Sprintf(`
		SELECT EXISTS (
			SELECT 1 FROM roles
			WHERE company_id = $1 AND name = $2 AND id IN (%s)
		)`, strings.Join(placeholders, ", "))
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check inherited role: %w", err)
	}
	return exists, nil
}
