package resolver

import (
	"context"
	"fmt"

	"github.com/parapet/portal/pkg/model"
	"github.com/parapet/portal/pkg/observability"
	"github.com/parapet/portal/pkg/permission"
	"github.com/parapet/portal/pkg/session"
	"github.com/parapet/portal/pkg/store"
)

// SettingsGate answers the per-group merge opt-in flag. Backed by the LRU
// group-settings cache; it is a navigation hint, never a permission input.
type SettingsGate interface {
	GetBool(ctx context.Context, groupID int64, key string) (bool, error)
}

// Merger splices guest public pages into a resolved sibling list. The
// pipeline invokes it exactly once per request, after the cascade and the
// viewable filter; it computes the merge fresh from current data each call.
type Merger struct {
	store    store.Store
	settings SettingsGate
	resolver *Resolver
	logger   *observability.Logger
	metrics  *observability.Metrics
}

// NewMerger creates a merger sharing the resolver's viewable filtering.
func NewMerger(st store.Store, settings SettingsGate, r *Resolver, logger *observability.Logger, metrics *observability.Metrics) *Merger {
	return &Merger{store: st, settings: settings, resolver: r, logger: logger, metrics: metrics}
}

// Merge augments layouts with guest pages per the owning group's opt-in.
// Private and unresolved layouts are returned unchanged. For a non-guest
// layout, the guest group's viewable public root pages are prepended; on a
// guest layout, the previously visited group's pages are appended instead.
// A vanished previous group is logged and skipped, never fatal.
func (m *Merger) Merge(ctx context.Context, user *model.User, checker permission.Checker, sess *session.Session, layout *model.Layout, layouts []*model.Layout) ([]*model.Layout, error) {
	if layout == nil || layout.Private {
		return layouts, nil
	}

	guest, err := m.store.GroupByName(ctx, user.CompanyID, model.GuestGroupName)
	if err != nil {
		return nil, fmt.Errorf("failed to load guest group: %w", err)
	}

	if layout.GroupID != guest.ID {
		return m.mergeGuestPages(ctx, user, checker, guest.ID, layout, layouts)
	}
	return m.mergePreviousGroupPages(ctx, user, checker, sess, layout, layouts)
}

func (m *Merger) mergeGuestPages(ctx context.Context, user *model.User, checker permission.Checker, guestGroupID int64, layout *model.Layout, layouts []*model.Layout) ([]*model.Layout, error) {
	merge, err := m.settings.GetBool(ctx, layout.GroupID, model.MergeGuestPublicPagesKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read merge setting: %w", err)
	}
	if !merge {
		return layouts, nil
	}

	guestLayouts, err := m.viewablePublicRoots(ctx, checker, guestGroupID, layout)
	if err != nil {
		return nil, err
	}
	if m.metrics != nil {
		m.metrics.GuestMerges.Inc()
	}
	return append(guestLayouts, layouts...), nil
}

func (m *Merger) mergePreviousGroupPages(ctx context.Context, user *model.User, checker permission.Checker, sess *session.Session, layout *model.Layout, layouts []*model.Layout) ([]*model.Layout, error) {
	if sess == nil {
		return layouts, nil
	}
	previousGroupID, ok := session.PreviousGroupID(sess)
	if !ok || previousGroupID == layout.GroupID {
		return layouts, nil
	}

	if _, err := m.store.Group(ctx, previousGroupID); err != nil {
		if store.IsNotFound(err) {
			m.logger.WithField("group_id", previousGroupID).
				Warn("previously visited group no longer exists, skipping merge")
			return layouts, nil
		}
		return nil, fmt.Errorf("failed to load previous group: %w", err)
	}

	merge, err := m.settings.GetBool(ctx, previousGroupID, model.MergeGuestPublicPagesKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read merge setting: %w", err)
	}
	if !merge {
		return layouts, nil
	}

	previousLayouts, err := m.viewablePublicRoots(ctx, checker, previousGroupID, layout)
	if err != nil {
		return nil, err
	}
	if m.metrics != nil {
		m.metrics.GuestMerges.Inc()
	}
	return append(layouts, previousLayouts...), nil
}

// viewablePublicRoots loads a group's public root pages filtered by the same
// per-layout view rules as the main sibling list, anchored at the current
// layout.
func (m *Merger) viewablePublicRoots(ctx context.Context, checker permission.Checker, groupID int64, anchor *model.Layout) ([]*model.Layout, error) {
	roots, err := m.resolver.rootLayouts(ctx, groupID, false)
	if err != nil {
		return nil, err
	}
	_, viewable, _, err := m.resolver.viewableLayouts(ctx, checker, anchor, roots)
	if err != nil {
		return nil, err
	}
	return viewable, nil
}
