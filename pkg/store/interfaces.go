package store

import (
	"context"
	"errors"
	"time"

	"github.com/parapet/portal/pkg/model"
)

// ErrNotFound is returned by lookups when the requested entity does not
// exist. Callers decide whether absence is recoverable; the stores do not.
var ErrNotFound = errors.New("not found")

// CompanyStore provides company lookups.
type CompanyStore interface {
	Company(ctx context.Context, id int64) (*model.Company, error)
	CompanyByWebID(ctx context.Context, webID string) (*model.Company, error)
}

// UserStore provides user lookups and layout-existence checks.
type UserStore interface {
	User(ctx context.Context, id int64) (*model.User, error)
	DefaultUser(ctx context.Context, companyID int64) (*model.User, error)

	// HasPrivateLayouts and HasPublicLayouts reflect current persisted truth
	// for the user's personal group; they are queries, not cached flags.
	HasPrivateLayouts(ctx context.Context, userID int64) (bool, error)
	HasPublicLayouts(ctx context.Context, userID int64) (bool, error)
}

// GroupStore provides group lookups and membership queries.
type GroupStore interface {
	Group(ctx context.Context, id int64) (*model.Group, error)
	GroupByName(ctx context.Context, companyID int64, name string) (*model.Group, error)
	CreateGroup(ctx context.Context, group *model.Group) error
	UpdateGroup(ctx context.Context, group *model.Group) error

	// UserGroups returns the groups the user is a member of, in a stable
	// order. The default layout search iterates this list and stops at the
	// first group with layouts.
	UserGroups(ctx context.Context, userID int64) ([]*model.Group, error)
	HasUserGroup(ctx context.Context, userID, groupID int64) (bool, error)
}

// OrganizationStore provides organization membership and hierarchy queries.
type OrganizationStore interface {
	Organization(ctx context.Context, id int64) (*model.Organization, error)
	HasUserOrganization(ctx context.Context, userID, organizationID int64) (bool, error)

	// UserOrganizations returns the organizations the user directly belongs to.
	UserOrganizations(ctx context.Context, userID int64) ([]*model.Organization, error)

	// Ancestors returns the full parent chain of the organization, nearest
	// first. The visibility evaluator walks every directly-joined
	// organization's complete chain.
	Ancestors(ctx context.Context, organizationID int64) ([]*model.Organization, error)
}

// LayoutStore provides layout CRUD and ordered range queries.
type LayoutStore interface {
	Layout(ctx context.Context, plid int64) (*model.Layout, error)
	LayoutByID(ctx context.Context, groupID int64, private bool, layoutID int64) (*model.Layout, error)

	// LayoutsByParent returns the children of parentLayoutID within
	// (group, privacy), ordered by priority then layout id. The ordering is
	// deterministic; the resolution cascade depends on it.
	LayoutsByParent(ctx context.Context, groupID int64, private bool, parentLayoutID int64) ([]*model.Layout, error)

	CreateLayout(ctx context.Context, layout *model.Layout) error
	UpdateLayout(ctx context.Context, layout *model.Layout) error
	DeleteLayouts(ctx context.Context, groupID int64, private bool) error
}

// LayoutSetStore provides layout set lookups and updates.
type LayoutSetStore interface {
	LayoutSet(ctx context.Context, groupID int64, private bool) (*model.LayoutSet, error)
	UpdateLayoutSet(ctx context.Context, set *model.LayoutSet) error
}

// Store aggregates every persistence interface the pipeline consumes.
type Store interface {
	CompanyStore
	UserStore
	GroupStore
	OrganizationStore
	LayoutStore
	LayoutSetStore

	HealthCheck(ctx context.Context) error
}

// Config holds storage backend configuration.
type Config struct {
	PostgresURL      string
	PostgresMaxConns int
	PostgresTimeout  time.Duration

	// Redis cache layer; empty address disables caching.
	RedisAddr     string
	RedisPassword string
}

// DefaultConfig returns the default storage configuration.
func DefaultConfig() Config {
	return Config{
		PostgresMaxConns: 25,
		PostgresTimeout:  30 * time.Second,
	}
}
