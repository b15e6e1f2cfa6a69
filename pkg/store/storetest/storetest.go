// Package storetest provides an in-memory sqlite database wired with the
// portal schema for tests. The production queries avoid driver-specific SQL,
// so the same store code runs against it unchanged.
package storetest

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/parapet/portal/pkg/model"
	"github.com/parapet/portal/pkg/store"
)

// schema mirrors the production migrations in sqlite dialect.
var schema = []string{
	`CREATE TABLE companies (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		web_id TEXT NOT NULL UNIQUE,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		default_locale TEXT NOT NULL DEFAULT 'en-US',
		time_zone TEXT NOT NULL DEFAULT 'UTC',
		default_user_id INTEGER NOT NULL DEFAULT 0,
		site_logo BOOLEAN NOT NULL DEFAULT FALSE,
		logo_id INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		company_id INTEGER NOT NULL,
		group_id INTEGER NOT NULL DEFAULT 0,
		screen_name TEXT NOT NULL,
		language_tag TEXT NOT NULL DEFAULT '',
		time_zone TEXT NOT NULL DEFAULT '',
		default_user BOOLEAN NOT NULL DEFAULT FALSE,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		agreed_to_terms BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (company_id, screen_name)
	)`,
	`CREATE TABLE groups (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		company_id INTEGER NOT NULL,
		kind TEXT NOT NULL,
		name TEXT NOT NULL,
		class_pk INTEGER NOT NULL DEFAULT 0,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		staging BOOLEAN NOT NULL DEFAULT FALSE,
		live_group_id INTEGER NOT NULL DEFAULT 0,
		type_settings TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (company_id, name)
	)`,
	`CREATE TABLE group_members (
		user_id INTEGER NOT NULL,
		group_id INTEGER NOT NULL,
		PRIMARY KEY (user_id, group_id)
	)`,
	`CREATE TABLE organizations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		company_id INTEGER NOT NULL,
		parent_id INTEGER NOT NULL DEFAULT 0,
		name TEXT NOT NULL
	)`,
	`CREATE TABLE organization_members (
		user_id INTEGER NOT NULL,
		organization_id INTEGER NOT NULL,
		PRIMARY KEY (user_id, organization_id)
	)`,
	`CREATE TABLE layouts (
		plid INTEGER PRIMARY KEY AUTOINCREMENT,
		group_id INTEGER NOT NULL,
		private BOOLEAN NOT NULL,
		layout_id INTEGER NOT NULL,
		parent_layout_id INTEGER NOT NULL DEFAULT 0,
		name TEXT NOT NULL DEFAULT '',
		friendly_url TEXT NOT NULL DEFAULT '',
		hidden BOOLEAN NOT NULL DEFAULT FALSE,
		type TEXT NOT NULL DEFAULT 'portlet',
		template_id TEXT NOT NULL DEFAULT '',
		priority INTEGER NOT NULL DEFAULT 0,
		type_settings TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (group_id, private, layout_id)
	)`,
	`CREATE TABLE layout_sets (
		group_id INTEGER NOT NULL,
		private BOOLEAN NOT NULL,
		theme_id TEXT NOT NULL DEFAULT '',
		color_scheme_id TEXT NOT NULL DEFAULT '',
		mobile_theme_id TEXT NOT NULL DEFAULT '',
		mobile_color_scheme_id TEXT NOT NULL DEFAULT '',
		logo_id INTEGER NOT NULL DEFAULT 0,
		prototype_id INTEGER NOT NULL DEFAULT 0,
		prototype_link_enabled BOOLEAN NOT NULL DEFAULT FALSE,
		page_count INTEGER NOT NULL DEFAULT 0,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (group_id, private)
	)`,
	`CREATE TABLE roles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		company_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		parent_role_id INTEGER,
		UNIQUE (company_id, name)
	)`,
	`CREATE TABLE user_roles (
		user_id INTEGER NOT NULL,
		role_id INTEGER NOT NULL,
		PRIMARY KEY (user_id, role_id)
	)`,
	`CREATE TABLE resource_grants (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		role_id INTEGER NOT NULL,
		resource TEXT NOT NULL,
		scope_pk INTEGER NOT NULL DEFAULT 0,
		action TEXT NOT NULL,
		UNIQUE (role_id, resource, scope_pk, action)
	)`,
}

// New opens an in-memory database with the full portal schema and returns a
// store backed by it. The database is closed when the test ends.
func New(t *testing.T) (*store.PostgresStore, *sql.DB) {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	// A second connection would see a different empty in-memory database.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("failed to create schema: %v", err)
		}
	}
	return store.NewPostgresStoreWithDB(db), db
}

// SeedCompany inserts a company and returns it.
func SeedCompany(t *testing.T, db *sql.DB, webID string) *model.Company {
	t.Helper()
	var id int64
	err := db.QueryRow(
		`INSERT INTO companies (web_id, active) VALUES ($1, TRUE) RETURNING id`, webID,
	).Scan(&id)
	if err != nil {
		t.Fatalf("failed to seed company: %v", err)
	}
	return &model.Company{ID: id, WebID: webID, Active: true, DefaultLocale: "en-US", TimeZone: "UTC"}
}

// SeedUser inserts a user. The personal group, if wanted, is seeded
// separately and linked via groupID.
func SeedUser(t *testing.T, db *sql.DB, companyID, groupID int64, screenName string, defaultUser bool) *model.User {
	t.Helper()
	var id int64
	err := db.QueryRow(
		`INSERT INTO users (company_id, group_id, screen_name, default_user, active)
		 VALUES ($1, $2, $3, $4, TRUE) RETURNING id`,
		companyID, groupID, screenName, defaultUser,
	).Scan(&id)
	if err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	return &model.User{ID: id, CompanyID: companyID, GroupID: groupID, ScreenName: screenName, DefaultUser: defaultUser, Active: true}
}

// SeedGroup inserts a group of the given kind.
func SeedGroup(t *testing.T, db *sql.DB, companyID int64, kind model.GroupKind, name string, classPK int64) *model.Group {
	t.Helper()
	var id int64
	err := db.QueryRow(
		`INSERT INTO groups (company_id, kind, name, class_pk, active)
		 VALUES ($1, $2, $3, $4, TRUE) RETURNING id`,
		companyID, kind, name, classPK,
	).Scan(&id)
	if err != nil {
		t.Fatalf("failed to seed group: %v", err)
	}
	return &model.Group{ID: id, CompanyID: companyID, Kind: kind, Name: name, ClassPK: classPK, Active: true}
}

// SeedLayout inserts a layout and returns it with its assigned plid.
func SeedLayout(t *testing.T, db *sql.DB, groupID int64, private bool, layoutID int64, name string, hidden bool) *model.Layout {
	t.Helper()
	var plid int64
	err := db.QueryRow(
		`INSERT INTO layouts (group_id, private, layout_id, parent_layout_id, name, friendly_url, hidden, type, priority)
		 VALUES ($1, $2, $3, 0, $4, $5, $6, 'portlet', $3) RETURNING plid`,
		groupID, private, layoutID, name, "/"+name, hidden,
	).Scan(&plid)
	if err != nil {
		t.Fatalf("failed to seed layout: %v", err)
	}
	return &model.Layout{
		PLID: plid, GroupID: groupID, Private: private, LayoutID: layoutID,
		Name: name, FriendlyURL: "/" + name, Hidden: hidden,
		Type: model.LayoutTypePortlet, Priority: int(layoutID),
	}
}

// SeedLayoutSet inserts a layout set row for (group, privacy).
func SeedLayoutSet(t *testing.T, db *sql.DB, set *model.LayoutSet) {
	t.Helper()
	_, err := db.Exec(
		`INSERT INTO layout_sets (group_id, private, theme_id, color_scheme_id, mobile_theme_id,
		   mobile_color_scheme_id, logo_id, prototype_id, prototype_link_enabled, page_count, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		set.GroupID, set.Private, set.ThemeID, set.ColorSchemeID, set.MobileThemeID,
		set.MobileColorSchemeID, set.LogoID, set.PrototypeID, set.PrototypeLinkEnabled,
		set.PageCount, set.UpdatedAt,
	)
	if err != nil {
		t.Fatalf("failed to seed layout set: %v", err)
	}
}

// AddMember links a user to a group.
func AddMember(t *testing.T, db *sql.DB, userID, groupID int64) {
	t.Helper()
	if _, err := db.Exec(`INSERT INTO group_members (user_id, group_id) VALUES ($1, $2)`, userID, groupID); err != nil {
		t.Fatalf("failed to seed membership: %v", err)
	}
}

// SeedRole inserts a role, optionally inheriting from a parent role.
func SeedRole(t *testing.T, db *sql.DB, companyID int64, name string, parentRoleID int64) int64 {
	t.Helper()
	var parent interface{}
	if parentRoleID > 0 {
		parent = parentRoleID
	}
	var id int64
	err := db.QueryRow(
		`INSERT INTO roles (company_id, name, parent_role_id) VALUES ($1, $2, $3) RETURNING id`,
		companyID, name, parent,
	).Scan(&id)
	if err != nil {
		t.Fatalf("failed to seed role: %v", err)
	}
	return id
}

// AssignRole links a user to a role.
func AssignRole(t *testing.T, db *sql.DB, userID, roleID int64) {
	t.Helper()
	if _, err := db.Exec(`INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2)`, userID, roleID); err != nil {
		t.Fatalf("failed to assign role: %v", err)
	}
}

// Grant records a resource grant for a role.
func Grant(t *testing.T, db *sql.DB, roleID int64, resource string, scopePK int64, action string) {
	t.Helper()
	_, err := db.Exec(
		`INSERT INTO resource_grants (role_id, resource, scope_pk, action) VALUES ($1, $2, $3, $4)`,
		roleID, resource, scopePK, action,
	)
	if err != nil {
		t.Fatalf("failed to seed grant: %v", err)
	}
}
