package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Migrate creates the portal schema if it does not exist.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}
	return nil
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS companies (
		id BIGSERIAL PRIMARY KEY,
		web_id TEXT NOT NULL UNIQUE,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		default_locale TEXT NOT NULL DEFAULT 'en-US',
		time_zone TEXT NOT NULL DEFAULT 'UTC',
		default_user_id BIGINT NOT NULL DEFAULT 0,
		site_logo BOOLEAN NOT NULL DEFAULT FALSE,
		logo_id BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		company_id BIGINT NOT NULL REFERENCES companies(id),
		group_id BIGINT NOT NULL DEFAULT 0,
		screen_name TEXT NOT NULL,
		language_tag TEXT NOT NULL DEFAULT '',
		time_zone TEXT NOT NULL DEFAULT '',
		default_user BOOLEAN NOT NULL DEFAULT FALSE,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		agreed_to_terms BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (company_id, screen_name)
	)`,

	`CREATE TABLE IF NOT EXISTS groups (
		id BIGSERIAL PRIMARY KEY,
		company_id BIGINT NOT NULL REFERENCES companies(id),
		kind TEXT NOT NULL,
		name TEXT NOT NULL,
		class_pk BIGINT NOT NULL DEFAULT 0,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		staging BOOLEAN NOT NULL DEFAULT FALSE,
		live_group_id BIGINT NOT NULL DEFAULT 0,
		type_settings TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (company_id, name)
	)`,

	`CREATE TABLE IF NOT EXISTS group_members (
		user_id BIGINT NOT NULL,
		group_id BIGINT NOT NULL,
		PRIMARY KEY (user_id, group_id)
	)`,

	`CREATE TABLE IF NOT EXISTS organizations (
		id BIGSERIAL PRIMARY KEY,
		company_id BIGINT NOT NULL REFERENCES companies(id),
		parent_id BIGINT NOT NULL DEFAULT 0,
		name TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS organization_members (
		user_id BIGINT NOT NULL,
		organization_id BIGINT NOT NULL,
		PRIMARY KEY (user_id, organization_id)
	)`,

	`CREATE TABLE IF NOT EXISTS layouts (
		plid BIGSERIAL PRIMARY KEY,
		group_id BIGINT NOT NULL,
		private BOOLEAN NOT NULL,
		layout_id BIGINT NOT NULL,
		parent_layout_id BIGINT NOT NULL DEFAULT 0,
		name TEXT NOT NULL DEFAULT '',
		friendly_url TEXT NOT NULL DEFAULT '',
		hidden BOOLEAN NOT NULL DEFAULT FALSE,
		type TEXT NOT NULL DEFAULT 'portlet',
		template_id TEXT NOT NULL DEFAULT '',
		priority INTEGER NOT NULL DEFAULT 0,
		type_settings TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (group_id, private, layout_id)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_layouts_parent
		ON layouts (group_id, private, parent_layout_id, priority)`,

	`CREATE TABLE IF NOT EXISTS layout_sets (
		group_id BIGINT NOT NULL,
		private BOOLEAN NOT NULL,
		theme_id TEXT NOT NULL DEFAULT '',
		color_scheme_id TEXT NOT NULL DEFAULT '',
		mobile_theme_id TEXT NOT NULL DEFAULT '',
		mobile_color_scheme_id TEXT NOT NULL DEFAULT '',
		logo_id BIGINT NOT NULL DEFAULT 0,
		prototype_id BIGINT NOT NULL DEFAULT 0,
		prototype_link_enabled BOOLEAN NOT NULL DEFAULT FALSE,
		page_count INTEGER NOT NULL DEFAULT 0,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (group_id, private)
	)`,
}
