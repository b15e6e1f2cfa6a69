package visibility

import (
	"context"
	"errors"
	"fmt"

	"github.com/parapet/portal/pkg/model"
	"github.com/parapet/portal/pkg/observability"
	"github.com/parapet/portal/pkg/permission"
)

// UserSource resolves users for the personal-space rule.
type UserSource interface {
	User(ctx context.Context, id int64) (*model.User, error)
}

// GroupSource resolves groups and direct group membership.
type GroupSource interface {
	Group(ctx context.Context, id int64) (*model.Group, error)
	HasUserGroup(ctx context.Context, userID, groupID int64) (bool, error)
}

// OrganizationSource resolves organization membership and hierarchy.
type OrganizationSource interface {
	HasUserOrganization(ctx context.Context, userID, organizationID int64) (bool, error)
	UserOrganizations(ctx context.Context, userID int64) ([]*model.Organization, error)
	Ancestors(ctx context.Context, organizationID int64) ([]*model.Organization, error)
}

// Input carries everything one viewability decision needs. The group must
// already be loaded: a missing group is the caller's precondition failure,
// not something the evaluator absorbs.
type Input struct {
	User                 *model.User
	Group                *model.Group
	Private              bool
	LayoutID             int64
	ControlPanelCategory string
	Checker              permission.Checker
}

// Evaluator is the hierarchical group-visibility state machine.
type Evaluator struct {
	users  UserSource
	groups GroupSource
	orgs   OrganizationSource

	// strictMembership disables transitive organization visibility through
	// ancestor organizations.
	strictMembership bool

	metrics *observability.Metrics

	rules []rule
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithStrictMembership controls the organization strict-membership mode.
func WithStrictMembership(strict bool) Option {
	return func(e *Evaluator) { e.strictMembership = strict }
}

// WithMetrics records each denial under the name of the deciding rule.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Evaluator) { e.metrics = m }
}

// NewEvaluator builds the rule table.
func NewEvaluator(users UserSource, groups GroupSource, orgs OrganizationSource, opts ...Option) *Evaluator {
	e := &Evaluator{users: users, groups: groups, orgs: orgs}
	for _, opt := range opts {
		opt(e)
	}
	e.rules = []rule{
		{"inactive-group", e.ruleInactiveGroup},
		{"inactive-live-group", e.ruleInactiveLiveGroup},
		{"personal-space", e.rulePersonalSpace},
		{"staging-editorial", e.ruleStagingEditorial},
		{"public-layout", e.rulePublicLayout},
		{"control-panel", e.ruleControlPanel},
		{"site-membership", e.ruleSiteMembership},
		{"company-root", e.ruleCompanyRoot},
		{"prototype", e.rulePrototype},
		{"organization", e.ruleOrganization},
		{"user-group", e.ruleUserGroup},
	}
	return e
}

// decision is a single rule's verdict. pass defers to the next rule.
type decision int

const (
	pass decision = iota
	allow
	deny
)

type rule struct {
	name   string
	decide func(ctx context.Context, in Input) (decision, error)
}

// RuleNames returns the rule order. The trailing default-deny is implicit.
func (e *Evaluator) RuleNames() []string {
	names := make([]string, len(e.rules))
	for i, r := range e.rules {
		names[i] = r.name
	}
	return names
}

// IsViewable runs the rule table top to bottom; the first allow or deny
// wins, and a fully passed-through input is denied.
func (e *Evaluator) IsViewable(ctx context.Context, in Input) (bool, error) {
	if in.Group == nil {
		return false, errors.New("visibility: group must be resolved before evaluation")
	}
	if in.User == nil {
		return false, errors.New("visibility: user must be resolved before evaluation")
	}

	for _, r := range e.rules {
		d, err := r.decide(ctx, in)
		if err != nil {
			return false, fmt.Errorf("rule %s: %w", r.name, err)
		}
		switch d {
		case allow:
			return true, nil
		case deny:
			e.countDenial(r.name)
			return false, nil
		}
	}
	e.countDenial("default")
	return false, nil
}

func (e *Evaluator) countDenial(rule string) {
	if e.metrics != nil {
		e.metrics.VisibilityDenials.WithLabelValues(rule).Inc()
	}
}

// Inactive groups are never viewable.
func (e *Evaluator) ruleInactiveGroup(ctx context.Context, in Input) (decision, error) {
	if !in.Group.Active {
		return deny, nil
	}
	return pass, nil
}

// A staging group whose live counterpart is inactive is never viewable.
func (e *Evaluator) ruleInactiveLiveGroup(ctx context.Context, in Input) (decision, error) {
	if !in.Group.IsStagingGroup() {
		return pass, nil
	}
	live, err := e.groups.Group(ctx, in.Group.LiveGroupID)
	if err != nil {
		return pass, err
	}
	if !live.Active {
		return deny, nil
	}
	return pass, nil
}

// Personal pages are viewable by their owner; private personal pages also by
// anyone who may update the (active) owner. Public personal pages of other
// users fall through to the public rule.
func (e *Evaluator) rulePersonalSpace(ctx context.Context, in Input) (decision, error) {
	if !in.Group.IsUser() {
		return pass, nil
	}

	ownerID := in.Group.ClassPK
	if ownerID == in.User.ID {
		return allow, nil
	}

	owner, err := e.users.User(ctx, ownerID)
	if err != nil {
		return pass, err
	}
	if !owner.Active {
		return deny, nil
	}

	if in.Private {
		orgs, err := e.orgs.UserOrganizations(ctx, ownerID)
		if err != nil {
			return pass, err
		}
		orgIDs := make([]int64, len(orgs))
		for i, o := range orgs {
			orgIDs[i] = o.ID
		}
		ok, err := in.Checker.HasUserPermission(ctx, ownerID, orgIDs, permission.ActionUpdate)
		if err != nil {
			return pass, err
		}
		if ok {
			return allow, nil
		}
		return deny, nil
	}

	return pass, nil
}

// Staging groups are only viewable with editorial rights; anonymous
// principals never see them.
func (e *Evaluator) ruleStagingEditorial(ctx context.Context, in Input) (decision, error) {
	if !in.Group.IsStagingGroup() {
		return pass, nil
	}
	if in.User.DefaultUser {
		return deny, nil
	}

	for _, action := range []permission.Action{
		permission.ActionManageLayouts,
		permission.ActionManageStaging,
		permission.ActionPublishStaging,
	} {
		ok, err := in.Checker.HasGroupPermission(ctx, in.Group.ID, action)
		if err != nil {
			return pass, err
		}
		if ok {
			return allow, nil
		}
	}

	if in.LayoutID > 0 {
		ok, err := in.Checker.HasLayoutIDPermission(ctx, in.Group.ID, in.Private, in.LayoutID, permission.ActionUpdate)
		if err != nil {
			return pass, err
		}
		if ok {
			return allow, nil
		}
	}
	return deny, nil
}

// Public pages are viewable by anyone once the inactive and staging rules
// above have had their say.
func (e *Evaluator) rulePublicLayout(ctx context.Context, in Input) (decision, error) {
	if !in.Private {
		return allow, nil
	}
	return pass, nil
}

// The control panel requires a portal-wide grant, with an explicit category
// deep link as the escape hatch.
func (e *Evaluator) ruleControlPanel(ctx context.Context, in Input) (decision, error) {
	if !in.Group.IsControlPanel() {
		return pass, nil
	}
	ok, err := in.Checker.HasPortalPermission(ctx, permission.ActionViewControlPanel)
	if err != nil {
		return pass, err
	}
	if ok {
		return allow, nil
	}
	if in.ControlPanelCategory != "" {
		return allow, nil
	}
	return deny, nil
}

// Site pages are viewable by members and by anyone who may update the site.
// A non-member without update rights falls through to the default deny.
func (e *Evaluator) ruleSiteMembership(ctx context.Context, in Input) (decision, error) {
	if !in.Group.IsSite() {
		return pass, nil
	}
	member, err := e.groups.HasUserGroup(ctx, in.User.ID, in.Group.ID)
	if err != nil {
		return pass, err
	}
	if member {
		return allow, nil
	}
	ok, err := in.Checker.HasGroupPermission(ctx, in.Group.ID, permission.ActionUpdate)
	if err != nil {
		return pass, err
	}
	if ok {
		return allow, nil
	}
	return pass, nil
}

// The company root group is never directly viewable.
func (e *Evaluator) ruleCompanyRoot(ctx context.Context, in Input) (decision, error) {
	if in.Group.IsCompany() {
		return deny, nil
	}
	return pass, nil
}

// Prototype groups require a VIEW grant on the specific prototype.
func (e *Evaluator) rulePrototype(ctx context.Context, in Input) (decision, error) {
	var resource permission.Resource
	switch {
	case in.Group.IsLayoutPrototype():
		resource = permission.ResourceLayoutPrototype
	case in.Group.IsLayoutSetPrototype():
		resource = permission.ResourceLayoutSetPrototype
	default:
		return pass, nil
	}
	ok, err := in.Checker.HasPrototypePermission(ctx, resource, in.Group.ClassPK, permission.ActionView)
	if err != nil {
		return pass, err
	}
	if ok {
		return allow, nil
	}
	return deny, nil
}

// Organization pages are viewable by members, by update holders, and -- in
// non-strict mode -- transitively through the ancestor chain of every
// organization the user directly belongs to.
func (e *Evaluator) ruleOrganization(ctx context.Context, in Input) (decision, error) {
	if !in.Group.IsOrganization() {
		return pass, nil
	}
	organizationID := in.Group.ClassPK

	member, err := e.orgs.HasUserOrganization(ctx, in.User.ID, organizationID)
	if err != nil {
		return pass, err
	}
	if member {
		return allow, nil
	}

	ok, err := in.Checker.HasOrganizationPermission(ctx, organizationID, permission.ActionUpdate)
	if err != nil {
		return pass, err
	}
	if ok {
		return allow, nil
	}

	if !e.strictMembership {
		userOrgs, err := e.orgs.UserOrganizations(ctx, in.User.ID)
		if err != nil {
			return pass, err
		}
		for _, org := range userOrgs {
			ancestors, err := e.orgs.Ancestors(ctx, org.ID)
			if err != nil {
				return pass, err
			}
			for _, ancestor := range ancestors {
				if ancestor.ID == organizationID {
					return allow, nil
				}
			}
		}
	}
	return pass, nil
}

// User-group-backed pages require layout management rights.
func (e *Evaluator) ruleUserGroup(ctx context.Context, in Input) (decision, error) {
	if !in.Group.IsUserGroup() {
		return pass, nil
	}
	ok, err := in.Checker.HasGroupPermission(ctx, in.Group.ID, permission.ActionManageLayouts)
	if err != nil {
		return pass, err
	}
	if ok {
		return allow, nil
	}
	return pass, nil
}
