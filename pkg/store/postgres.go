package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // postgres driver

	"github.com/parapet/portal/pkg/model"
)

// PostgresStore implements Store against PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection pool and verifies connectivity.
func NewPostgresStore(cfg Config) (*PostgresStore, error) {
	db, err := sql.Open("postgres", cfg.PostgresURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}

	db.SetMaxOpenConns(cfg.PostgresMaxConns)
	db.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.PostgresTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreWithDB wraps an existing database handle. Tests use this
// with an in-memory sqlite database.
func NewPostgresStoreWithDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Close closes the underlying connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// HealthCheck verifies database connectivity.
func (s *PostgresStore) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// DB exposes the underlying handle for collaborators that share the pool,
// such as the permission checker.
func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

// Company retrieves a company by id.
func (s *PostgresStore) Company(ctx context.Context, id int64) (*model.Company, error) {
	query := `
		SELECT id, web_id, active, default_locale, time_zone, default_user_id, site_logo, logo_id, created_at
		FROM companies
		WHERE id = $1
	`
	return scanCompany(s.db.QueryRowContext(ctx, query, id))
}

// CompanyByWebID retrieves a company by its web id (virtual host key).
func (s *PostgresStore) CompanyByWebID(ctx context.Context, webID string) (*model.Company, error) {
	query := `
		SELECT id, web_id, active, default_locale, time_zone, default_user_id, site_logo, logo_id, created_at
		FROM companies
		WHERE web_id = $1
	`
	return scanCompany(s.db.QueryRowContext(ctx, query, webID))
}

func scanCompany(row *sql.Row) (*model.Company, error) {
	c := &model.Company{}
	err := row.Scan(&c.ID, &c.WebID, &c.Active, &c.DefaultLocale, &c.TimeZone,
		&c.DefaultUserID, &c.SiteLogo, &c.LogoID, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan company: %w", err)
	}
	return c, nil
}

// User retrieves a user by id.
func (s *PostgresStore) User(ctx context.Context, id int64) (*model.User, error) {
	query := userSelect + ` WHERE id = $1`
	return scanUser(s.db.QueryRowContext(ctx, query, id))
}

// DefaultUser retrieves the anonymous principal for a company.
func (s *PostgresStore) DefaultUser(ctx context.Context, companyID int64) (*model.User, error) {
	query := userSelect + ` WHERE company_id = $1 AND default_user = TRUE`
	return scanUser(s.db.QueryRowContext(ctx, query, companyID))
}

const userSelect = `
	SELECT id, company_id, group_id, screen_name, language_tag, time_zone,
	       default_user, active, agreed_to_terms, created_at
	FROM users`

func scanUser(row *sql.Row) (*model.User, error) {
	u := &model.User{}
	err := row.Scan(&u.ID, &u.CompanyID, &u.GroupID, &u.ScreenName, &u.LanguageTag,
		&u.TimeZone, &u.DefaultUser, &u.Active, &u.AgreedToTerms, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return u, nil
}

// HasPrivateLayouts reports whether the user's personal group has any private
// layouts.
func (s *PostgresStore) HasPrivateLayouts(ctx context.Context, userID int64) (bool, error) {
	return s.hasLayouts(ctx, userID, true)
}

// HasPublicLayouts reports whether the user's personal group has any public
// layouts.
func (s *PostgresStore) HasPublicLayouts(ctx context.Context, userID int64) (bool, error) {
	return s.hasLayouts(ctx, userID, false)
}

func (s *PostgresStore) hasLayouts(ctx context.Context, userID int64, private bool) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM layouts l
			JOIN users u ON u.group_id = l.group_id
			WHERE u.id = $1 AND l.private = $2
		)
	`
	var exists bool
	if err := s.db.QueryRowContext(ctx, query, userID, private).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check user layouts: %w", err)
	}
	return exists, nil
}

// Group retrieves a group by id.
func (s *PostgresStore) Group(ctx context.Context, id int64) (*model.Group, error) {
	query := groupSelect + ` WHERE id = $1`
	return scanGroup(s.db.QueryRowContext(ctx, query, id))
}

// GroupByName retrieves a group by name within a company.
func (s *PostgresStore) GroupByName(ctx context.Context, companyID int64, name string) (*model.Group, error) {
	query := groupSelect + ` WHERE company_id = $1 AND name = $2`
	return scanGroup(s.db.QueryRowContext(ctx, query, companyID, name))
}

const groupSelect = `
	SELECT id, company_id, kind, name, class_pk, active, staging, live_group_id, type_settings, created_at
	FROM groups`

func scanGroup(row *sql.Row) (*model.Group, error) {
	g := &model.Group{}
	var typeSettings string
	err := row.Scan(&g.ID, &g.CompanyID, &g.Kind, &g.Name, &g.ClassPK, &g.Active,
		&g.Staging, &g.LiveGroupID, &typeSettings, &g.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan group: %w", err)
	}
	g.TypeSettings = model.ParseTypeSettings(typeSettings)
	return g, nil
}

// CreateGroup inserts a new group.
func (s *PostgresStore) CreateGroup(ctx context.Context, group *model.Group) error {
	query := `
		INSERT INTO groups (company_id, kind, name, class_pk, active, staging, live_group_id, type_settings, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	now := time.Now().UTC()
	err := s.db.QueryRowContext(ctx, query, group.CompanyID, group.Kind, group.Name,
		group.ClassPK, group.Active, group.Staging, group.LiveGroupID,
		group.TypeSettings.String(), now).Scan(&group.ID)
	if err != nil {
		return fmt.Errorf("failed to create group: %w", err)
	}
	group.CreatedAt = now
	return nil
}

// UpdateGroup persists group changes, including type settings.
func (s *PostgresStore) UpdateGroup(ctx context.Context, group *model.Group) error {
	query := `
		UPDATE groups
		SET name = $1, active = $2, staging = $3, live_group_id = $4, type_settings = $5
		WHERE id = $6
	`
	res, err := s.db.ExecContext(ctx, query, group.Name, group.Active,
		group.Staging, group.LiveGroupID, group.TypeSettings.String(), group.ID)
	if err != nil {
		return fmt.Errorf("failed to update group: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UserGroups returns the user's membership groups ordered by name then id.
func (s *PostgresStore) UserGroups(ctx context.Context, userID int64) ([]*model.Group, error) {
	query := `
		SELECT g.id, g.company_id, g.kind, g.name, g.class_pk, g.active, g.staging,
		       g.live_group_id, g.type_settings, g.created_at
		FROM groups g
		JOIN group_members gm ON gm.group_id = g.id
		WHERE gm.user_id = $1
		ORDER BY g.name, g.id
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query user groups: %w", err)
	}
	defer rows.Close()

	var groups []*model.Group
	for rows.Next() {
		g := &model.Group{}
		var typeSettings string
		if err := rows.Scan(&g.ID, &g.CompanyID, &g.Kind, &g.Name, &g.ClassPK,
			&g.Active, &g.Staging, &g.LiveGroupID, &typeSettings, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		g.TypeSettings = model.ParseTypeSettings(typeSettings)
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// HasUserGroup reports direct group membership.
func (s *PostgresStore) HasUserGroup(ctx context.Context, userID, groupID int64) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM group_members WHERE user_id = $1 AND group_id = $2)`
	var exists bool
	if err := s.db.QueryRowContext(ctx, query, userID, groupID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check group membership: %w", err)
	}
	return exists, nil
}

// Organization retrieves an organization by id.
func (s *PostgresStore) Organization(ctx context.Context, id int64) (*model.Organization, error) {
	query := `SELECT id, company_id, parent_id, name FROM organizations WHERE id = $1`
	o := &model.Organization{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(&o.ID, &o.CompanyID, &o.ParentID, &o.Name)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan organization: %w", err)
	}
	return o, nil
}

// HasUserOrganization reports direct organization membership.
func (s *PostgresStore) HasUserOrganization(ctx context.Context, userID, organizationID int64) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM organization_members WHERE user_id = $1 AND organization_id = $2)`
	var exists bool
	if err := s.db.QueryRowContext(ctx, query, userID, organizationID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check organization membership: %w", err)
	}
	return exists, nil
}

// UserOrganizations returns the organizations the user directly belongs to.
func (s *PostgresStore) UserOrganizations(ctx context.Context, userID int64) ([]*model.Organization, error) {
	query := `
		SELECT o.id, o.company_id, o.parent_id, o.name
		FROM organizations o
		JOIN organization_members om ON om.organization_id = o.id
		WHERE om.user_id = $1
		ORDER BY o.id
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query user organizations: %w", err)
	}
	defer rows.Close()
	return collectOrganizations(rows)
}

// Ancestors walks the parent chain of an organization, nearest first.
func (s *PostgresStore) Ancestors(ctx context.Context, organizationID int64) ([]*model.Organization, error) {
	var ancestors []*model.Organization

	current := organizationID
	for {
		org, err := s.Organization(ctx, current)
		if err != nil {
			return nil, err
		}
		if org.ParentID == 0 {
			return ancestors, nil
		}
		parent, err := s.Organization(ctx, org.ParentID)
		if err != nil {
			return nil, err
		}
		ancestors = append(ancestors, parent)
		current = parent.ID
	}
}

func collectOrganizations(rows *sql.Rows) ([]*model.Organization, error) {
	var orgs []*model.Organization
	for rows.Next() {
		o := &model.Organization{}
		if err := rows.Scan(&o.ID, &o.CompanyID, &o.ParentID, &o.Name); err != nil {
			return nil, fmt.Errorf("failed to scan organization: %w", err)
		}
		orgs = append(orgs, o)
	}
	return orgs, rows.Err()
}

// Layout retrieves a layout by its global primary key.
func (s *PostgresStore) Layout(ctx context.Context, plid int64) (*model.Layout, error) {
	query := layoutSelect + ` WHERE plid = $1`
	return scanLayout(s.db.QueryRowContext(ctx, query, plid))
}

// LayoutByID retrieves a layout by (group, privacy, layout id).
func (s *PostgresStore) LayoutByID(ctx context.Context, groupID int64, private bool, layoutID int64) (*model.Layout, error) {
	query := layoutSelect + ` WHERE group_id = $1 AND private = $2 AND layout_id = $3`
	return scanLayout(s.db.QueryRowContext(ctx, query, groupID, private, layoutID))
}

const layoutSelect = `
	SELECT plid, group_id, private, layout_id, parent_layout_id, name, friendly_url,
	       hidden, type, template_id, priority, type_settings, created_at, updated_at
	FROM layouts`

func scanLayout(row *sql.Row) (*model.Layout, error) {
	l := &model.Layout{}
	var typeSettings string
	err := row.Scan(&l.PLID, &l.GroupID, &l.Private, &l.LayoutID, &l.ParentLayoutID,
		&l.Name, &l.FriendlyURL, &l.Hidden, &l.Type, &l.TemplateID, &l.Priority,
		&typeSettings, &l.CreatedAt, &l.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan layout: %w", err)
	}
	l.TypeSettings = model.ParseTypeSettings(typeSettings)
	return l, nil
}

// LayoutsByParent returns ordered children of parentLayoutID in the given tree.
func (s *PostgresStore) LayoutsByParent(ctx context.Context, groupID int64, private bool, parentLayoutID int64) ([]*model.Layout, error) {
	query := layoutSelect + `
		WHERE group_id = $1 AND private = $2 AND parent_layout_id = $3
		ORDER BY priority, layout_id
	`
	rows, err := s.db.QueryContext(ctx, query, groupID, private, parentLayoutID)
	if err != nil {
		return nil, fmt.Errorf("failed to query layouts: %w", err)
	}
	defer rows.Close()

	var layouts []*model.Layout
	for rows.Next() {
		l := &model.Layout{}
		var typeSettings string
		if err := rows.Scan(&l.PLID, &l.GroupID, &l.Private, &l.LayoutID,
			&l.ParentLayoutID, &l.Name, &l.FriendlyURL, &l.Hidden, &l.Type,
			&l.TemplateID, &l.Priority, &typeSettings, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan layout: %w", err)
		}
		l.TypeSettings = model.ParseTypeSettings(typeSettings)
		layouts = append(layouts, l)
	}
	return layouts, rows.Err()
}

// CreateLayout inserts a new layout, assigning plid and a layout id unique
// within (group, privacy).
func (s *PostgresStore) CreateLayout(ctx context.Context, layout *model.Layout) error {
	if layout.LayoutID == 0 {
		next := `SELECT COALESCE(MAX(layout_id), 0) + 1 FROM layouts WHERE group_id = $1 AND private = $2`
		if err := s.db.QueryRowContext(ctx, next, layout.GroupID, layout.Private).Scan(&layout.LayoutID); err != nil {
			return fmt.Errorf("failed to allocate layout id: %w", err)
		}
	}

	query := `
		INSERT INTO layouts (group_id, private, layout_id, parent_layout_id, name, friendly_url,
		                     hidden, type, template_id, priority, type_settings, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
		RETURNING plid
	`
	now := time.Now().UTC()
	err := s.db.QueryRowContext(ctx, query, layout.GroupID, layout.Private, layout.LayoutID,
		layout.ParentLayoutID, layout.Name, layout.FriendlyURL, layout.Hidden, layout.Type,
		layout.TemplateID, layout.Priority, layout.TypeSettings.String(), now).Scan(&layout.PLID)
	if err != nil {
		return fmt.Errorf("failed to create layout: %w", err)
	}
	layout.CreatedAt = now
	layout.UpdatedAt = now
	return nil
}

// UpdateLayout persists layout changes.
func (s *PostgresStore) UpdateLayout(ctx context.Context, layout *model.Layout) error {
	query := `
		UPDATE layouts
		SET parent_layout_id = $1, name = $2, friendly_url = $3, hidden = $4,
		    type = $5, template_id = $6, priority = $7, type_settings = $8, updated_at = $9
		WHERE plid = $10
	`
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, query, layout.ParentLayoutID, layout.Name,
		layout.FriendlyURL, layout.Hidden, layout.Type, layout.TemplateID, layout.Priority,
		layout.TypeSettings.String(), now, layout.PLID)
	if err != nil {
		return fmt.Errorf("failed to update layout: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	layout.UpdatedAt = now
	return nil
}

// DeleteLayouts removes every layout of one privacy kind for a group.
func (s *PostgresStore) DeleteLayouts(ctx context.Context, groupID int64, private bool) error {
	query := `DELETE FROM layouts WHERE group_id = $1 AND private = $2`
	if _, err := s.db.ExecContext(ctx, query, groupID, private); err != nil {
		return fmt.Errorf("failed to delete layouts: %w", err)
	}
	return nil
}

// LayoutSet retrieves the layout set for (group, privacy).
func (s *PostgresStore) LayoutSet(ctx context.Context, groupID int64, private bool) (*model.LayoutSet, error) {
	query := `
		SELECT group_id, private, theme_id, color_scheme_id, mobile_theme_id,
		       mobile_color_scheme_id, logo_id, prototype_id, prototype_link_enabled,
		       page_count, updated_at
		FROM layout_sets
		WHERE group_id = $1 AND private = $2
	`
	ls := &model.LayoutSet{}
	err := s.db.QueryRowContext(ctx, query, groupID, private).Scan(
		&ls.GroupID, &ls.Private, &ls.ThemeID, &ls.ColorSchemeID, &ls.MobileThemeID,
		&ls.MobileColorSchemeID, &ls.LogoID, &ls.PrototypeID, &ls.PrototypeLinkEnabled,
		&ls.PageCount, &ls.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan layout set: %w", err)
	}
	return ls, nil
}

// UpdateLayoutSet persists layout set changes.
func (s *PostgresStore) UpdateLayoutSet(ctx context.Context, set *model.LayoutSet) error {
	query := `
		UPDATE layout_sets
		SET theme_id = $1, color_scheme_id = $2, mobile_theme_id = $3,
		    mobile_color_scheme_id = $4, logo_id = $5, prototype_id = $6,
		    prototype_link_enabled = $7, page_count = $8, updated_at = $9
		WHERE group_id = $10 AND private = $11
	`
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, query, set.ThemeID,
		set.ColorSchemeID, set.MobileThemeID, set.MobileColorSchemeID, set.LogoID,
		set.PrototypeID, set.PrototypeLinkEnabled, set.PageCount, now, set.GroupID, set.Private)
	if err != nil {
		return fmt.Errorf("failed to update layout set: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	set.UpdatedAt = now
	return nil
}
