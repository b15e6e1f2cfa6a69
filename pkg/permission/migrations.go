package permission

import (
	"context"
	"database/sql"
	"fmt"
)

// Migrate creates the roles and grants schema if it does not exist.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to run permission migration: %w", err)
		}
	}
	return nil
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS roles (
		id BIGSERIAL PRIMARY KEY,
		company_id BIGINT NOT NULL,
		name TEXT NOT NULL,
		parent_role_id BIGINT,
		UNIQUE (company_id, name)
	)`,

	`CREATE TABLE IF NOT EXISTS user_roles (
		user_id BIGINT NOT NULL,
		role_id BIGINT NOT NULL,
		PRIMARY KEY (user_id, role_id)
	)`,

	`CREATE TABLE IF NOT EXISTS resource_grants (
		id BIGSERIAL PRIMARY KEY,
		role_id BIGINT NOT NULL,
		resource TEXT NOT NULL,
		scope_pk BIGINT NOT NULL DEFAULT 0,
		action TEXT NOT NULL,
		UNIQUE (role_id, resource, scope_pk, action)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_resource_grants_lookup
		ON resource_grants (resource, action, scope_pk)`,
}
