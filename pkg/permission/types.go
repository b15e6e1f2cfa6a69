package permission

import (
	"context"
	"errors"
	"fmt"

	"github.com/parapet/portal/pkg/model"
)

// Action is an operation a principal may perform on a resource.
type Action string

const (
	ActionView             Action = "view"
	ActionUpdate           Action = "update"
	ActionManageLayouts    Action = "manage_layouts"
	ActionManageStaging    Action = "manage_staging"
	ActionPublishStaging   Action = "publish_staging"
	ActionViewControlPanel Action = "view_control_panel"
)

// Resource is a kind of securable entity.
type Resource string

const (
	ResourceGroup              Resource = "group"
	ResourceLayout             Resource = "layout"
	ResourceUser               Resource = "user"
	ResourceOrganization       Resource = "organization"
	ResourceLayoutPrototype    Resource = "layout_prototype"
	ResourceLayoutSetPrototype Resource = "layout_set_prototype"
	ResourcePortal             Resource = "portal"
)

// PowerUserRole is the role gate for auto-provisioned personal pages.
const PowerUserRole = "Power User"

// GlobalScope matches grants that apply to every instance of a resource kind.
const GlobalScope int64 = 0

// Checker answers permission questions for one acting principal. It is
// constructed once per request and treated as read-only afterwards.
type Checker interface {
	// UserID identifies the acting principal the checker was built for.
	UserID() int64

	HasGroupPermission(ctx context.Context, groupID int64, action Action) (bool, error)
	HasLayoutPermission(ctx context.Context, layout *model.Layout, action Action) (bool, error)
	HasLayoutIDPermission(ctx context.Context, groupID int64, private bool, layoutID int64, action Action) (bool, error)

	// HasUserPermission checks an action over another user, honoring grants
	// scoped to any organization that user belongs to.
	HasUserPermission(ctx context.Context, userID int64, organizationIDs []int64, action Action) (bool, error)
	HasOrganizationPermission(ctx context.Context, organizationID int64, action Action) (bool, error)
	HasPrototypePermission(ctx context.Context, resource Resource, classPK int64, action Action) (bool, error)
	HasPortalPermission(ctx context.Context, action Action) (bool, error)
}

// RoleService answers role membership questions outside the resource-grant
// model, such as the power-user gate.
type RoleService interface {
	HasRole(ctx context.Context, userID, companyID int64, roleName string, inherited bool) (bool, error)
}

// PrincipalError is the access-denied failure surfaced when a principal
// explicitly addresses a resource it may not view. It maps to a 403-class
// outcome.
type PrincipalError struct {
	UserID  int64
	GroupID int64
	Private bool
}

// Error implements the error interface.
func (e *PrincipalError) Error() string {
	kind := "public"
	if e.Private {
		kind = "private"
	}
	return fmt.Sprintf("user %d is not allowed to access the %s pages of group %d",
		e.UserID, kind, e.GroupID)
}

// IsPrincipalError reports whether err is an access-denied failure.
func IsPrincipalError(err error) bool {
	var pe *PrincipalError
	return errors.As(err, &pe)
}
