package model

import (
	"fmt"
	"time"
)

// GroupKind identifies what a group scopes: a site, a user's personal space,
// an organization, and so on. A group has exactly one kind; staging is a flag,
// not a kind.
type GroupKind string

const (
	KindSite               GroupKind = "site"
	KindUser               GroupKind = "user"
	KindOrganization       GroupKind = "organization"
	KindUserGroup          GroupKind = "user_group"
	KindLayoutPrototype    GroupKind = "layout_prototype"
	KindLayoutSetPrototype GroupKind = "layout_set_prototype"
	KindControlPanel       GroupKind = "control_panel"
	KindCompany            GroupKind = "company"
)

// validKinds is the closed set of group kinds.
var validKinds = map[GroupKind]bool{
	KindSite:               true,
	KindUser:               true,
	KindOrganization:       true,
	KindUserGroup:          true,
	KindLayoutPrototype:    true,
	KindLayoutSetPrototype: true,
	KindControlPanel:       true,
	KindCompany:            true,
}

// DefaultParentLayoutID is the parent id of root layouts.
const DefaultParentLayoutID int64 = 0

// LayoutTypePortlet is the layout type for portlet-composed pages.
const LayoutTypePortlet = "portlet"

// GuestGroupName is the well-known name of a company's Guest site group.
const GuestGroupName = "Guest"

// Company represents a portal instance (tenant).
type Company struct {
	ID            int64     `json:"id"`
	WebID         string    `json:"web_id"`
	Active        bool      `json:"active"`
	DefaultLocale string    `json:"default_locale"`
	TimeZone      string    `json:"time_zone"`
	DefaultUserID int64     `json:"default_user_id"`
	SiteLogo      bool      `json:"site_logo"`
	LogoID        int64     `json:"logo_id"`
	CreatedAt     time.Time `json:"created_at"`
}

// User represents a portal user. The default user is the anonymous principal
// for its company.
type User struct {
	ID            int64     `json:"id"`
	CompanyID     int64     `json:"company_id"`
	GroupID       int64     `json:"group_id"` // personal group
	ScreenName    string    `json:"screen_name"`
	LanguageTag   string    `json:"language_tag"`
	TimeZone      string    `json:"time_zone"`
	DefaultUser   bool      `json:"default_user"`
	Active        bool      `json:"active"`
	AgreedToTerms bool      `json:"agreed_to_terms"`
	CreatedAt     time.Time `json:"created_at"`
}

// Group represents an authorization/content scope owning layouts.
type Group struct {
	ID           int64        `json:"id"`
	CompanyID    int64        `json:"company_id"`
	Kind         GroupKind    `json:"kind"`
	Name         string       `json:"name"`
	ClassPK      int64        `json:"class_pk,omitempty"` // owning user/organization/prototype id
	Active       bool         `json:"active"`
	Staging      bool         `json:"staging"`
	LiveGroupID  int64        `json:"live_group_id,omitempty"`
	TypeSettings TypeSettings `json:"type_settings,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}

// NewGroup constructs a group, validating kind exclusivity up front so that
// downstream rule evaluation never depends on branch order to disambiguate a
// group that claims to be two things at once.
func NewGroup(companyID int64, kind GroupKind, name string) (*Group, error) {
	if !validKinds[kind] {
		return nil, fmt.Errorf("invalid group kind %q", kind)
	}
	return &Group{
		CompanyID:    companyID,
		Kind:         kind,
		Name:         name,
		Active:       true,
		TypeSettings: TypeSettings{},
	}, nil
}

// IsUser reports whether this is a user's personal group.
func (g *Group) IsUser() bool { return g.Kind == KindUser }

// IsSite reports whether this is a site group.
func (g *Group) IsSite() bool { return g.Kind == KindSite }

// IsOrganization reports whether this group is backed by an organization.
func (g *Group) IsOrganization() bool { return g.Kind == KindOrganization }

// IsUserGroup reports whether this group is backed by a user group.
func (g *Group) IsUserGroup() bool { return g.Kind == KindUserGroup }

// IsLayoutPrototype reports whether this group holds a page template.
func (g *Group) IsLayoutPrototype() bool { return g.Kind == KindLayoutPrototype }

// IsLayoutSetPrototype reports whether this group holds a site template.
func (g *Group) IsLayoutSetPrototype() bool { return g.Kind == KindLayoutSetPrototype }

// IsControlPanel reports whether this is the control panel group.
func (g *Group) IsControlPanel() bool { return g.Kind == KindControlPanel }

// IsCompany reports whether this is the company root group.
func (g *Group) IsCompany() bool { return g.Kind == KindCompany }

// IsStagingGroup reports whether this group is a staging shadow of a live group.
func (g *Group) IsStagingGroup() bool { return g.Staging }

// Layout represents a single page within a group's private or public tree.
type Layout struct {
	PLID           int64        `json:"plid"` // global primary key
	GroupID        int64        `json:"group_id"`
	Private        bool         `json:"private"`
	LayoutID       int64        `json:"layout_id"` // unique within (group, privacy)
	ParentLayoutID int64        `json:"parent_layout_id"`
	Name           string       `json:"name"`
	FriendlyURL    string       `json:"friendly_url"`
	Hidden         bool         `json:"hidden"`
	Type           string       `json:"type"`
	TemplateID     string       `json:"template_id,omitempty"`
	Priority       int          `json:"priority"`
	TypeSettings   TypeSettings `json:"type_settings,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// Clone returns a deep copy of the layout. Resolved layouts are cloned before
// per-request mutation so shared cache entries stay pristine.
func (l *Layout) Clone() *Layout {
	c := *l
	c.TypeSettings = l.TypeSettings.Clone()
	return &c
}

// LayoutSet holds the shared settings for all layouts of one privacy kind in
// a group.
type LayoutSet struct {
	GroupID              int64     `json:"group_id"`
	Private              bool      `json:"private"`
	ThemeID              string    `json:"theme_id,omitempty"`
	ColorSchemeID        string    `json:"color_scheme_id,omitempty"`
	MobileThemeID        string    `json:"mobile_theme_id,omitempty"`
	MobileColorSchemeID  string    `json:"mobile_color_scheme_id,omitempty"`
	LogoID               int64     `json:"logo_id,omitempty"`
	PrototypeID          int64     `json:"prototype_id,omitempty"`
	PrototypeLinkEnabled bool      `json:"prototype_link_enabled"`
	PageCount            int       `json:"page_count"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// HasLogo reports whether the layout set carries its own logo.
func (ls *LayoutSet) HasLogo() bool { return ls.LogoID > 0 }

// Organization represents an organization in a company's hierarchy. Only the
// parts the visibility rules need are modeled here.
type Organization struct {
	ID        int64  `json:"id"`
	CompanyID int64  `json:"company_id"`
	ParentID  int64  `json:"parent_id,omitempty"`
	Name      string `json:"name"`
}
