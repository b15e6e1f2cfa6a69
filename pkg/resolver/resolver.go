package resolver

import (
	"context"
	"fmt"

	"github.com/parapet/portal/pkg/model"
	"github.com/parapet/portal/pkg/observability"
	"github.com/parapet/portal/pkg/permission"
	"github.com/parapet/portal/pkg/sitetemplate"
	"github.com/parapet/portal/pkg/store"
	"github.com/parapet/portal/pkg/visibility"
)

// Request is the explicit page target extracted from the inbound request.
// Zero values mean "not specified".
type Request struct {
	PLID                 int64
	GroupID              int64
	Private              bool
	LayoutID             int64
	ControlPanelCategory string
	DoAsGroupID          int64

	// VirtualHostLayoutSet is set when the request's host maps to a layout
	// set; the default search consults it first.
	VirtualHostLayoutSet *model.LayoutSet
}

// Result is the resolved page state handed to the presentation assembler.
type Result struct {
	Layout            *model.Layout
	Layouts           []*model.Layout
	UnfilteredLayouts []*model.Layout
	Group             *model.Group
	DoAsGroupID       int64

	// UsedDefault marks that no explicit target survived and the default
	// search supplied the layout.
	UsedDefault bool

	// PermissionNotice records the recoverable "you cannot view this page"
	// condition: group-level access held, but every sibling was filtered
	// out and the principal lacks update rights. Display-only.
	PermissionNotice bool
}

// Resolver implements the layout resolution cascade.
type Resolver struct {
	store   store.Store
	eval    Evaluator
	sync    Synchronizer
	logger  *observability.Logger
	metrics *observability.Metrics
}

// Evaluator is the group-visibility decision procedure the cascade consults.
type Evaluator interface {
	IsViewable(ctx context.Context, in visibility.Input) (bool, error)
}

// Synchronizer re-syncs layouts from their site template before visibility
// runs.
type Synchronizer interface {
	SyncIfStale(ctx context.Context, layout *model.Layout) (bool, error)
}

// NoopSynchronizer satisfies Synchronizer when template sync is disabled.
type NoopSynchronizer struct{}

// SyncIfStale reports no rewrite.
func (NoopSynchronizer) SyncIfStale(ctx context.Context, layout *model.Layout) (bool, error) {
	return false, nil
}

var _ Synchronizer = (*sitetemplate.Synchronizer)(nil)

// New creates a resolver.
func New(st store.Store, eval Evaluator, sync Synchronizer, logger *observability.Logger, metrics *observability.Metrics) *Resolver {
	if sync == nil {
		sync = NoopSynchronizer{}
	}
	return &Resolver{store: st, eval: eval, sync: sync, logger: logger, metrics: metrics}
}

// Resolve runs the cascade for one request. It returns a PrincipalError when
// the principal explicitly addressed a group it may not view; every other
// miss degrades to the default search.
func (r *Resolver) Resolve(ctx context.Context, user *model.User, checker permission.Checker, req Request) (*Result, error) {
	result := &Result{DoAsGroupID: req.DoAsGroupID}

	layout, err := r.explicitLayout(ctx, req)
	if err != nil {
		return nil, err
	}

	if layout != nil {
		layout = r.syncTemplate(ctx, layout)
	}

	var layouts []*model.Layout
	if layout != nil {
		layout, layouts, err = r.applyVisibility(ctx, user, checker, req, layout, result)
		if err != nil {
			return nil, err
		}
	}

	result.UnfilteredLayouts = layouts

	if layout == nil {
		layout, layouts, err = r.defaultLayout(ctx, user, req)
		if err != nil {
			return nil, err
		}
		result.UsedDefault = true
		if r.metrics != nil {
			r.metrics.DefaultSearches.Inc()
		}
	}

	layout, layouts, notice, err := r.viewableLayouts(ctx, checker, layout, layouts)
	if err != nil {
		return nil, err
	}
	result.Layout = layout
	result.Layouts = layouts
	result.PermissionNotice = notice

	if layout != nil {
		group, err := r.store.Group(ctx, layout.GroupID)
		if err != nil {
			return nil, fmt.Errorf("failed to load group %d: %w", layout.GroupID, err)
		}
		result.Group = group
	}

	if r.metrics != nil {
		r.metrics.Resolutions.Inc()
	}
	return result, nil
}

// explicitLayout loads the explicitly addressed layout, absorbing absence:
// a dangling plid or (group, layout) pair falls through to the default
// search rather than failing the request.
func (r *Resolver) explicitLayout(ctx context.Context, req Request) (*model.Layout, error) {
	switch {
	case req.PLID > 0:
		layout, err := r.store.Layout(ctx, req.PLID)
		if store.IsNotFound(err) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load layout %d: %w", req.PLID, err)
		}
		return layout, nil
	case req.GroupID > 0 && req.LayoutID > 0:
		layout, err := r.store.LayoutByID(ctx, req.GroupID, req.Private, req.LayoutID)
		if store.IsNotFound(err) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load layout %d/%d: %w", req.GroupID, req.LayoutID, err)
		}
		return layout, nil
	}
	return nil, nil
}

// syncTemplate runs the site-template synchronizer. Failures are logged and
// the pre-sync layout is kept; synchronization never blocks rendering.
func (r *Resolver) syncTemplate(ctx context.Context, layout *model.Layout) *model.Layout {
	rewritten, err := r.sync.SyncIfStale(ctx, layout)
	if err != nil {
		r.logger.WithError(err).Warn("failed to process site template sync")
		return layout
	}
	if !rewritten {
		return layout
	}
	fresh, err := r.store.Layout(ctx, layout.PLID)
	if err != nil {
		r.logger.WithError(err).Warn("failed to reload layout after template sync")
		return layout
	}
	if r.metrics != nil {
		r.metrics.TemplateSyncs.Inc()
	}
	return fresh
}

// applyVisibility evaluates the group rules for the explicit target and
// produces the surviving (layout, siblings) pair. Outcomes:
// a staging group that is not viewable drops the layout silently; any other
// non-viewable group is an access-denied failure; a viewable group without
// per-layout view permission keeps the sibling list but clears the
// selection; layout prototypes are standalone and get an empty list.
func (r *Resolver) applyVisibility(ctx context.Context, user *model.User, checker permission.Checker, req Request, layout *model.Layout, result *Result) (*model.Layout, []*model.Layout, error) {
	group, err := r.store.Group(ctx, layout.GroupID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load group %d: %w", layout.GroupID, err)
	}

	viewable, err := r.eval.IsViewable(ctx, visibility.Input{
		User:                 user,
		Group:                group,
		Private:              layout.Private,
		LayoutID:             layout.LayoutID,
		ControlPanelCategory: req.ControlPanelCategory,
		Checker:              checker,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to evaluate visibility: %w", err)
	}

	if !viewable && group.IsStagingGroup() {
		return nil, nil, nil
	}
	if !viewable {
		perr := &permission.PrincipalError{
			UserID:  user.ID,
			GroupID: layout.GroupID,
			Private: layout.Private,
		}
		r.logger.Warn(perr.Error())
		if r.metrics != nil {
			r.metrics.AccessDenied.Inc()
		}
		return nil, nil, perr
	}

	hasView, err := checker.HasLayoutPermission(ctx, layout, permission.ActionView)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to check layout view permission: %w", err)
	}
	if !hasView {
		layouts, err := r.rootLayouts(ctx, layout.GroupID, layout.Private)
		if err != nil {
			return nil, nil, err
		}
		return nil, layouts, nil
	}

	if group.IsLayoutPrototype() {
		return layout, []*model.Layout{}, nil
	}

	layouts, err := r.rootLayouts(ctx, layout.GroupID, layout.Private)
	if err != nil {
		return nil, nil, err
	}
	if !group.IsControlPanel() {
		result.DoAsGroupID = 0
	}
	return layout, layouts, nil
}

func (r *Resolver) rootLayouts(ctx context.Context, groupID int64, private bool) ([]*model.Layout, error) {
	layouts, err := r.store.LayoutsByParent(ctx, groupID, private, model.DefaultParentLayoutID)
	if err != nil {
		return nil, fmt.Errorf("failed to load root layouts of group %d: %w", groupID, err)
	}
	return layouts, nil
}
