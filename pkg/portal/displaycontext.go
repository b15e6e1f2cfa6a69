package portal

import (
	"context"
	"strconv"

	"github.com/parapet/portal/pkg/model"
	"github.com/parapet/portal/pkg/permission"
	"github.com/parapet/portal/pkg/resolver"
)

// DisplayContext is the per-request bundle rendering consumes. It is
// assembled once, after every pipeline stage has finished, and is read-only
// from then on: no stage ever observes a partially-built context.
type DisplayContext struct {
	Company  *model.Company `json:"company"`
	RealUser *model.User    `json:"real_user"`
	User     *model.User    `json:"user"`
	SignedIn bool           `json:"signed_in"`

	Locale   string `json:"locale"`
	TimeZone string `json:"time_zone"`
	Device   Device `json:"device"`

	Layout            *model.Layout    `json:"layout,omitempty"`
	Layouts           []*model.Layout  `json:"layouts"`
	UnfilteredLayouts []*model.Layout  `json:"unfiltered_layouts,omitempty"`
	Group             *model.Group     `json:"group,omitempty"`
	LayoutSet         *model.LayoutSet `json:"layout_set,omitempty"`

	ScopeGroupID int64 `json:"scope_group_id"`
	DoAsUserID   int64 `json:"do_as_user_id,omitempty"`
	DoAsGroupID  int64 `json:"do_as_group_id,omitempty"`

	CustomizedView   bool   `json:"customized_view"`
	UsedDefault      bool   `json:"used_default"`
	PermissionNotice bool   `json:"permission_notice"`
	LogoPath         string `json:"logo_path,omitempty"`

	ShowAddContent   bool `json:"show_add_content"`
	ShowPageSettings bool `json:"show_page_settings"`
	ShowControlPanel bool `json:"show_control_panel"`
	ShowStaging      bool `json:"show_staging"`

	checker permission.Checker
}

// Checker returns the permission checker for the acting user.
func (dc *DisplayContext) Checker() permission.Checker {
	return dc.checker
}

// assembleInput carries everything Assemble needs, already resolved.
type assembleInput struct {
	Company        *model.Company
	RealUser       *model.User
	User           *model.User
	SignedIn       bool
	Locale         string
	TimeZone       string
	Device         Device
	Result         *resolver.Result
	Layouts        []*model.Layout
	LayoutSet      *model.LayoutSet
	DoAsUserID     int64
	CustomizedView bool
	Checker        permission.Checker
}

// Assemble builds the display context in a single step. The show-flags are
// pure functions of the resolved values; permission lookups they need run
// here, never later.
func Assemble(ctx context.Context, in assembleInput) (*DisplayContext, error) {
	var (
		layout           *model.Layout
		unfiltered       []*model.Layout
		group            *model.Group
		scopeGroupID     int64
		usedDefault      bool
		permissionNotice bool
		doAsGroupID      int64
	)
	if in.Result != nil {
		layout = in.Result.Layout
		unfiltered = in.Result.UnfilteredLayouts
		group = in.Result.Group
		usedDefault = in.Result.UsedDefault
		permissionNotice = in.Result.PermissionNotice
		doAsGroupID = in.Result.DoAsGroupID
	}
	if group != nil {
		scopeGroupID = group.ID
	}

	showAddContent := false
	showPageSettings := false
	showStaging := false
	if in.SignedIn && group != nil {
		manage, err := in.Checker.HasGroupPermission(ctx, group.ID, permission.ActionManageLayouts)
		if err != nil {
			return nil, err
		}
		showAddContent = manage
		showPageSettings = manage

		if group.IsStagingGroup() || group.IsSite() {
			staging, err := in.Checker.HasGroupPermission(ctx, group.ID, permission.ActionManageStaging)
			if err != nil {
				return nil, err
			}
			showStaging = staging
		}
	}

	showControlPanel := false
	if in.SignedIn {
		cp, err := in.Checker.HasPortalPermission(ctx, permission.ActionViewControlPanel)
		if err != nil {
			return nil, err
		}
		showControlPanel = cp
	}

	return &DisplayContext{
		Company:           in.Company,
		RealUser:          in.RealUser,
		User:              in.User,
		SignedIn:          in.SignedIn,
		Locale:            in.Locale,
		TimeZone:          in.TimeZone,
		Device:            in.Device,
		Layout:            layout,
		Layouts:           in.Layouts,
		UnfilteredLayouts: unfiltered,
		Group:             group,
		LayoutSet:         in.LayoutSet,
		ScopeGroupID:      scopeGroupID,
		DoAsUserID:        in.DoAsUserID,
		DoAsGroupID:       doAsGroupID,
		CustomizedView:    in.CustomizedView,
		UsedDefault:       usedDefault,
		PermissionNotice:  permissionNotice,
		LogoPath:          logoPath(in.Company, in.LayoutSet),
		ShowAddContent:    showAddContent,
		ShowPageSettings:  showPageSettings,
		ShowControlPanel:  showControlPanel,
		ShowStaging:       showStaging,
		checker:           in.Checker,
	}, nil
}

// logoPath prefers the layout set's own logo over the company logo.
func logoPath(company *model.Company, set *model.LayoutSet) string {
	if set != nil && set.HasLogo() {
		return "/image/layout_set_logo?img_id=" + strconv.FormatInt(set.LogoID, 10)
	}
	if company != nil && company.SiteLogo && company.LogoID > 0 {
		return "/image/company_logo?img_id=" + strconv.FormatInt(company.LogoID, 10)
	}
	return ""
}
