package sitetemplate

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/parapet/portal/pkg/model"
	"github.com/parapet/portal/pkg/store"
)

// PrototypeStore is the slice of the store the prototype policy reads.
type PrototypeStore interface {
	LayoutSet(ctx context.Context, groupID int64, private bool) (*model.LayoutSet, error)
	Group(ctx context.Context, id int64) (*model.Group, error)
	LayoutsByParent(ctx context.Context, groupID int64, private bool, parentLayoutID int64) ([]*model.Layout, error)
}

// PrototypePolicy implements StalenessPolicy and TemplateSource over the
// store: a layout is stale when its owning layout set tracks a prototype,
// the link is enabled, and the prototype changed after the last copy stamp.
type PrototypePolicy struct {
	store PrototypeStore
}

// NewPrototypePolicy creates a store-backed prototype policy.
func NewPrototypePolicy(s PrototypeStore) *PrototypePolicy {
	return &PrototypePolicy{store: s}
}

// IsStale reports whether the layout is due for a re-sync.
func (p *PrototypePolicy) IsStale(ctx context.Context, layout *model.Layout) (bool, error) {
	set, err := p.store.LayoutSet(ctx, layout.GroupID, layout.Private)
	if store.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load layout set: %w", err)
	}
	if set.PrototypeID == 0 || !set.PrototypeLinkEnabled {
		return false, nil
	}

	stamp := layout.TypeSettings.Get(model.LastTemplateCopyKey)
	if stamp == "" {
		return true, nil
	}
	lastCopy, err := strconv.ParseInt(stamp, 10, 64)
	if err != nil {
		// Unreadable stamp counts as never copied.
		return true, nil
	}

	prototype, err := p.store.Group(ctx, set.PrototypeID)
	if store.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load prototype group: %w", err)
	}

	prototypeSet, err := p.store.LayoutSet(ctx, prototype.ID, layout.Private)
	if store.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load prototype layout set: %w", err)
	}

	return prototypeSet.UpdatedAt.After(time.UnixMilli(lastCopy)), nil
}

// TemplateLayout resolves the prototype layout the target tracks: the
// prototype group's root layout with the matching friendly URL, falling back
// to the first root layout.
func (p *PrototypePolicy) TemplateLayout(ctx context.Context, layout *model.Layout) (*model.Layout, error) {
	set, err := p.store.LayoutSet(ctx, layout.GroupID, layout.Private)
	if err != nil {
		return nil, fmt.Errorf("failed to load layout set: %w", err)
	}

	roots, err := p.store.LayoutsByParent(ctx, set.PrototypeID, layout.Private, model.DefaultParentLayoutID)
	if err != nil {
		return nil, fmt.Errorf("failed to load prototype layouts: %w", err)
	}
	if len(roots) == 0 {
		return nil, fmt.Errorf("prototype group %d has no layouts", set.PrototypeID)
	}
	for _, root := range roots {
		if root.FriendlyURL == layout.FriendlyURL {
			return root, nil
		}
	}
	return roots[0], nil
}

// SettingsCopier implements Copier by rewriting the target's presentation
// from the template: name, template id, and type settings. The copy stamp is
// not written here; the synchronizer owns it.
type SettingsCopier struct {
	layouts LayoutWriter
}

// NewSettingsCopier creates the copier.
func NewSettingsCopier(layouts LayoutWriter) *SettingsCopier {
	return &SettingsCopier{layouts: layouts}
}

// CopyLayout rewrites target from template in place and persists it.
func (c *SettingsCopier) CopyLayout(ctx context.Context, template, target *model.Layout) error {
	fresh, err := c.layouts.Layout(ctx, target.PLID)
	if err != nil {
		return fmt.Errorf("failed to load target layout: %w", err)
	}

	fresh.Name = template.Name
	fresh.TemplateID = template.TemplateID
	settings := template.TypeSettings.Clone()
	if settings == nil {
		settings = model.TypeSettings{}
	}
	// Carry the target's previous stamp forward; the synchronizer rewrites
	// it after the copy.
	if stamp := fresh.TypeSettings.Get(model.LastTemplateCopyKey); stamp != "" {
		settings.Set(model.LastTemplateCopyKey, stamp)
	}
	fresh.TypeSettings = settings

	if err := c.layouts.UpdateLayout(ctx, fresh); err != nil {
		return fmt.Errorf("failed to persist copied layout: %w", err)
	}
	return nil
}
