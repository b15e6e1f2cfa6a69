package visibility

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parapet/portal/pkg/model"
	"github.com/parapet/portal/pkg/observability"
	"github.com/parapet/portal/pkg/permission"
	"github.com/parapet/portal/pkg/store"
)

type fakeSources struct {
	users       map[int64]*model.User
	groups      map[int64]*model.Group
	memberships map[[2]int64]bool // (userID, groupID)
	orgMembers  map[[2]int64]bool // (userID, orgID)
	userOrgs    map[int64][]*model.Organization
	ancestors   map[int64][]*model.Organization
}

func newFakeSources() *fakeSources {
	return &fakeSources{
		users:       map[int64]*model.User{},
		groups:      map[int64]*model.Group{},
		memberships: map[[2]int64]bool{},
		orgMembers:  map[[2]int64]bool{},
		userOrgs:    map[int64][]*model.Organization{},
		ancestors:   map[int64][]*model.Organization{},
	}
}

func (f *fakeSources) User(ctx context.Context, id int64) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return u, nil
}

func (f *fakeSources) Group(ctx context.Context, id int64) (*model.Group, error) {
	g, ok := f.groups[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return g, nil
}

func (f *fakeSources) HasUserGroup(ctx context.Context, userID, groupID int64) (bool, error) {
	return f.memberships[[2]int64{userID, groupID}], nil
}

func (f *fakeSources) HasUserOrganization(ctx context.Context, userID, organizationID int64) (bool, error) {
	return f.orgMembers[[2]int64{userID, organizationID}], nil
}

func (f *fakeSources) UserOrganizations(ctx context.Context, userID int64) ([]*model.Organization, error) {
	return f.userOrgs[userID], nil
}

func (f *fakeSources) Ancestors(ctx context.Context, organizationID int64) ([]*model.Organization, error) {
	return f.ancestors[organizationID], nil
}

// grantChecker allows exactly the listed grants.
type grantChecker struct {
	userID       int64
	groupGrants  map[[2]interface{}]bool // (groupID, action)
	layoutGrants map[[3]interface{}]bool // (groupID, layoutID, action)
	userGrants   map[int64]bool          // target user id -> update allowed
	orgGrants    map[int64]bool
	protoGrants  map[int64]bool
	portalGrants map[permission.Action]bool
}

func newGrantChecker(userID int64) *grantChecker {
	return &grantChecker{
		userID:       userID,
		groupGrants:  map[[2]interface{}]bool{},
		layoutGrants: map[[3]interface{}]bool{},
		userGrants:   map[int64]bool{},
		orgGrants:    map[int64]bool{},
		protoGrants:  map[int64]bool{},
		portalGrants: map[permission.Action]bool{},
	}
}

func (c *grantChecker) UserID() int64 { return c.userID }

func (c *grantChecker) HasGroupPermission(ctx context.Context, groupID int64, action permission.Action) (bool, error) {
	return c.groupGrants[[2]interface{}{groupID, action}], nil
}

func (c *grantChecker) HasLayoutPermission(ctx context.Context, layout *model.Layout, action permission.Action) (bool, error) {
	return c.layoutGrants[[3]interface{}{layout.GroupID, layout.LayoutID, action}], nil
}

func (c *grantChecker) HasLayoutIDPermission(ctx context.Context, groupID int64, private bool, layoutID int64, action permission.Action) (bool, error) {
	return c.layoutGrants[[3]interface{}{groupID, layoutID, action}], nil
}

func (c *grantChecker) HasUserPermission(ctx context.Context, userID int64, organizationIDs []int64, action permission.Action) (bool, error) {
	return c.userGrants[userID], nil
}

func (c *grantChecker) HasOrganizationPermission(ctx context.Context, organizationID int64, action permission.Action) (bool, error) {
	return c.orgGrants[organizationID], nil
}

func (c *grantChecker) HasPrototypePermission(ctx context.Context, resource permission.Resource, classPK int64, action permission.Action) (bool, error) {
	return c.protoGrants[classPK], nil
}

func (c *grantChecker) HasPortalPermission(ctx context.Context, action permission.Action) (bool, error) {
	return c.portalGrants[action], nil
}

func siteGroup(id int64, active bool) *model.Group {
	return &model.Group{ID: id, CompanyID: 1, Kind: model.KindSite, Name: "site", Active: active}
}

func member(userID int64) *model.User {
	return &model.User{ID: userID, CompanyID: 1, GroupID: 100 + userID, Active: true}
}

func TestRuleOrder(t *testing.T) {
	e := NewEvaluator(newFakeSources(), newFakeSources(), newFakeSources())

	assert.Equal(t, []string{
		"inactive-group",
		"inactive-live-group",
		"personal-space",
		"staging-editorial",
		"public-layout",
		"control-panel",
		"site-membership",
		"company-root",
		"prototype",
		"organization",
		"user-group",
	}, e.RuleNames())
}

func TestIsViewable_RequiresResolvedInputs(t *testing.T) {
	src := newFakeSources()
	e := NewEvaluator(src, src, src)

	_, err := e.IsViewable(context.Background(), Input{User: member(1)})
	assert.Error(t, err)

	_, err = e.IsViewable(context.Background(), Input{Group: siteGroup(1, true)})
	assert.Error(t, err)
}

func TestIsViewable_InactiveGroupDenied(t *testing.T) {
	src := newFakeSources()
	e := NewEvaluator(src, src, src)

	ok, err := e.IsViewable(context.Background(), Input{
		User:    member(1),
		Group:   siteGroup(10, false),
		Checker: newGrantChecker(1),
	})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIsViewable_StagingGatedRegardlessOfGrants(t *testing.T) {
	src := newFakeSources()
	src.groups[20] = siteGroup(20, false) // inactive live counterpart
	e := NewEvaluator(src, src, src)

	staging := &model.Group{
		ID: 21, CompanyID: 1, Kind: model.KindSite, Active: true,
		Staging: true, LiveGroupID: 20,
	}

	// Even a checker that allows everything cannot see staging over a dead
	// live group.
	checker := newGrantChecker(1)
	checker.groupGrants[[2]interface{}{int64(21), permission.ActionManageStaging}] = true

	ok, err := e.IsViewable(context.Background(), Input{
		User:    member(1),
		Group:   staging,
		Checker: checker,
	})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIsViewable_StagingRequiresEditorialRole(t *testing.T) {
	src := newFakeSources()
	src.groups[20] = siteGroup(20, true)
	e := NewEvaluator(src, src, src)

	staging := &model.Group{
		ID: 21, CompanyID: 1, Kind: model.KindSite, Active: true,
		Staging: true, LiveGroupID: 20,
	}
	in := Input{User: member(1), Group: staging, Private: true, LayoutID: 5}

	in.Checker = newGrantChecker(1)
	ok, err := e.IsViewable(context.Background(), in)
	require.NoError(t, err)
	assert.False(t, ok, "no staging role, not viewable")

	granted := newGrantChecker(1)
	granted.groupGrants[[2]interface{}{int64(21), permission.ActionPublishStaging}] = true
	in.Checker = granted
	ok, err = e.IsViewable(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, ok, "publish-staging grants editorial access")

	// Per-layout update rights on the addressed layout also suffice.
	layoutOnly := newGrantChecker(1)
	layoutOnly.layoutGrants[[3]interface{}{int64(21), int64(5), permission.ActionUpdate}] = true
	in.Checker = layoutOnly
	ok, err = e.IsViewable(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestIsViewable_StagingAnonymousDenied(t *testing.T) {
	src := newFakeSources()
	src.groups[20] = siteGroup(20, true)
	e := NewEvaluator(src, src, src)

	anon := &model.User{ID: 2, CompanyID: 1, DefaultUser: true, Active: true}
	staging := &model.Group{
		ID: 21, CompanyID: 1, Kind: model.KindSite, Active: true,
		Staging: true, LiveGroupID: 20,
	}

	ok, err := e.IsViewable(context.Background(), Input{
		User: anon, Group: staging, Checker: newGrantChecker(2),
	})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIsViewable_PersonalSpace(t *testing.T) {
	src := newFakeSources()
	owner := member(5)
	src.users[5] = owner
	e := NewEvaluator(src, src, src)

	personal := &model.Group{ID: 105, CompanyID: 1, Kind: model.KindUser, Active: true, ClassPK: 5}

	// Owner sees their own pages.
	ok, err := e.IsViewable(context.Background(), Input{
		User: owner, Group: personal, Private: true, Checker: newGrantChecker(5),
	})
	require.NoError(t, err)
	assert.True(t, ok)

	// A stranger does not see private personal pages.
	ok, err = e.IsViewable(context.Background(), Input{
		User: member(6), Group: personal, Private: true, Checker: newGrantChecker(6),
	})
	require.NoError(t, err)
	assert.False(t, ok)

	// Unless they hold update over the owner.
	admin := newGrantChecker(7)
	admin.userGrants[5] = true
	ok, err = e.IsViewable(context.Background(), Input{
		User: member(7), Group: personal, Private: true, Checker: admin,
	})
	require.NoError(t, err)
	assert.True(t, ok)

	// Public personal pages of another user fall through to the public rule.
	ok, err = e.IsViewable(context.Background(), Input{
		User: member(6), Group: personal, Private: false, Checker: newGrantChecker(6),
	})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestIsViewable_SiteUpdateWithoutMembership(t *testing.T) {
	src := newFakeSources()
	e := NewEvaluator(src, src, src)

	site := siteGroup(30, true)
	checker := newGrantChecker(1)
	checker.groupGrants[[2]interface{}{int64(30), permission.ActionUpdate}] = true

	// Private layout, non-member, but group UPDATE held.
	ok, err := e.IsViewable(context.Background(), Input{
		User: member(1), Group: site, Private: true, Checker: checker,
	})
	require.NoError(t, err)
	assert.True(t, ok)

	// Without the grant the same input is denied.
	ok, err = e.IsViewable(context.Background(), Input{
		User: member(1), Group: site, Private: true, Checker: newGrantChecker(1),
	})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIsViewable_SiteMembership(t *testing.T) {
	src := newFakeSources()
	src.memberships[[2]int64{1, 30}] = true
	e := NewEvaluator(src, src, src)

	ok, err := e.IsViewable(context.Background(), Input{
		User: member(1), Group: siteGroup(30, true), Private: true, Checker: newGrantChecker(1),
	})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestIsViewable_ControlPanel(t *testing.T) {
	src := newFakeSources()
	e := NewEvaluator(src, src, src)

	cp := &model.Group{ID: 40, CompanyID: 1, Kind: model.KindControlPanel, Active: true}

	ok, err := e.IsViewable(context.Background(), Input{
		User: member(1), Group: cp, Private: true, Checker: newGrantChecker(1),
	})
	require.NoError(t, err)
	assert.False(t, ok)

	granted := newGrantChecker(1)
	granted.portalGrants[permission.ActionViewControlPanel] = true
	ok, err = e.IsViewable(context.Background(), Input{
		User: member(1), Group: cp, Private: true, Checker: granted,
	})
	require.NoError(t, err)
	assert.True(t, ok)

	// A category deep link is the escape hatch.
	ok, err = e.IsViewable(context.Background(), Input{
		User: member(1), Group: cp, Private: true,
		ControlPanelCategory: "sites", Checker: newGrantChecker(1),
	})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestIsViewable_OrganizationAncestorPropagation(t *testing.T) {
	parent := &model.Organization{ID: 1, CompanyID: 1, Name: "A"}
	child := &model.Organization{ID: 2, CompanyID: 1, ParentID: 1, Name: "B"}

	src := newFakeSources()
	src.orgMembers[[2]int64{9, 2}] = true
	src.userOrgs[9] = []*model.Organization{child}
	src.ancestors[2] = []*model.Organization{parent}

	parentGroup := &model.Group{ID: 50, CompanyID: 1, Kind: model.KindOrganization, Active: true, ClassPK: 1}
	in := Input{User: member(9), Group: parentGroup, Private: true, Checker: newGrantChecker(9)}

	// Non-strict: membership in B grants visibility of A's group.
	relaxed := NewEvaluator(src, src, src)
	ok, err := relaxed.IsViewable(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, ok)

	// Strict: the ancestor chain stops counting.
	strict := NewEvaluator(src, src, src, WithStrictMembership(true))
	ok, err = strict.IsViewable(context.Background(), in)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIsViewable_Prototype(t *testing.T) {
	src := newFakeSources()
	e := NewEvaluator(src, src, src)

	proto := &model.Group{ID: 60, CompanyID: 1, Kind: model.KindLayoutPrototype, Active: true, ClassPK: 600}

	ok, err := e.IsViewable(context.Background(), Input{
		User: member(1), Group: proto, Private: true, Checker: newGrantChecker(1),
	})
	require.NoError(t, err)
	assert.False(t, ok)

	granted := newGrantChecker(1)
	granted.protoGrants[600] = true
	ok, err = e.IsViewable(context.Background(), Input{
		User: member(1), Group: proto, Private: true, Checker: granted,
	})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestIsViewable_CompanyRootDenied(t *testing.T) {
	src := newFakeSources()
	e := NewEvaluator(src, src, src)

	root := &model.Group{ID: 70, CompanyID: 1, Kind: model.KindCompany, Active: true}
	ok, err := e.IsViewable(context.Background(), Input{
		User: member(1), Group: root, Private: true, Checker: newGrantChecker(1),
	})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIsViewable_UserGroupNeedsManageLayouts(t *testing.T) {
	src := newFakeSources()
	e := NewEvaluator(src, src, src)

	ug := &model.Group{ID: 80, CompanyID: 1, Kind: model.KindUserGroup, Active: true}

	ok, err := e.IsViewable(context.Background(), Input{
		User: member(1), Group: ug, Private: true, Checker: newGrantChecker(1),
	})
	require.NoError(t, err)
	assert.False(t, ok)

	granted := newGrantChecker(1)
	granted.groupGrants[[2]interface{}{int64(80), permission.ActionManageLayouts}] = true
	ok, err = e.IsViewable(context.Background(), Input{
		User: member(1), Group: ug, Private: true, Checker: granted,
	})
	require.NoError(t, err)
	assert.True(t, ok)
}

// Granting strictly more capabilities never turns a viewable input into a
// denied one.
func TestIsViewable_MonotonicInGrants(t *testing.T) {
	src := newFakeSources()
	src.memberships[[2]int64{1, 30}] = true
	e := NewEvaluator(src, src, src)

	in := Input{User: member(1), Group: siteGroup(30, true), Private: true}

	in.Checker = newGrantChecker(1)
	base, err := e.IsViewable(context.Background(), in)
	require.NoError(t, err)
	require.True(t, base)

	everything := newGrantChecker(1)
	for _, a := range []permission.Action{
		permission.ActionView, permission.ActionUpdate, permission.ActionManageLayouts,
		permission.ActionManageStaging, permission.ActionPublishStaging, permission.ActionViewControlPanel,
	} {
		everything.groupGrants[[2]interface{}{int64(30), a}] = true
		everything.portalGrants[a] = true
	}
	in.Checker = everything
	super, err := e.IsViewable(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, super, "more grants must not revoke access")
}

// Every denial shows up in the denial counter under the name of the rule
// that decided it, with the implicit fallthrough counted as "default".
func TestIsViewable_DenialRecordsDecidingRule(t *testing.T) {
	src := newFakeSources()
	m := observability.NewMetrics(nil)
	e := NewEvaluator(src, src, src, WithMetrics(m))

	// inactive-group decides immediately.
	ok, err := e.IsViewable(context.Background(), Input{
		User:    member(1),
		Group:   siteGroup(10, false),
		Checker: newGrantChecker(1),
	})
	require.NoError(t, err)
	require.False(t, ok)

	// A non-member on a private site with no grants passes every rule and
	// lands on the terminal deny.
	ok, err = e.IsViewable(context.Background(), Input{
		User: member(1), Group: siteGroup(30, true), Private: true, Checker: newGrantChecker(1),
	})
	require.NoError(t, err)
	require.False(t, ok)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := w.Body.String()
	assert.Contains(t, body, `portal_visibility_denials_total{rule="inactive-group"} 1`)
	assert.Contains(t, body, `portal_visibility_denials_total{rule="default"} 1`)
}
