// Package sitetemplate keeps layouts in sync with the layout-set prototype
// they were instantiated from. Staleness detection and the structural copy
// are externally owned; this package owns the orchestration and the
// last-copied stamp.
package sitetemplate

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/parapet/portal/pkg/model"
)

// StalenessPolicy decides whether a layout is due for a re-sync from its
// prototype.
type StalenessPolicy interface {
	IsStale(ctx context.Context, layout *model.Layout) (bool, error)
}

// TemplateSource resolves the prototype layout a target layout tracks.
type TemplateSource interface {
	TemplateLayout(ctx context.Context, layout *model.Layout) (*model.Layout, error)
}

// Copier performs the structural and settings copy from template to target.
// The target keeps its identity; this is a content rewrite, not a new layout.
type Copier interface {
	CopyLayout(ctx context.Context, template, target *model.Layout) error
}

// LayoutWriter is the slice of the layout store the synchronizer needs.
type LayoutWriter interface {
	Layout(ctx context.Context, plid int64) (*model.Layout, error)
	UpdateLayout(ctx context.Context, layout *model.Layout) error
}

// Synchronizer rewrites stale layouts from their prototype.
type Synchronizer struct {
	policy    StalenessPolicy
	templates TemplateSource
	copier    Copier
	layouts   LayoutWriter

	now func() time.Time
}

// NewSynchronizer wires the collaborators together.
func NewSynchronizer(policy StalenessPolicy, templates TemplateSource, copier Copier, layouts LayoutWriter) *Synchronizer {
	return &Synchronizer{
		policy:    policy,
		templates: templates,
		copier:    copier,
		layouts:   layouts,
		now:       time.Now,
	}
}

// SyncIfStale copies the prototype onto the layout when it is stale, stamps
// the copy date, persists, and reports whether a rewrite happened. Callers
// treat any error as a warning: template sync must never block rendering.
func (s *Synchronizer) SyncIfStale(ctx context.Context, layout *model.Layout) (bool, error) {
	stale, err := s.policy.IsStale(ctx, layout)
	if err != nil {
		return false, fmt.Errorf("failed to evaluate staleness: %w", err)
	}
	if !stale {
		return false, nil
	}

	template, err := s.templates.TemplateLayout(ctx, layout)
	if err != nil {
		return false, fmt.Errorf("failed to resolve template layout: %w", err)
	}

	if err := s.copier.CopyLayout(ctx, template, layout); err != nil {
		return false, fmt.Errorf("failed to copy template layout: %w", err)
	}

	// Reload to pick up whatever the copy rewrote before stamping.
	fresh, err := s.layouts.Layout(ctx, layout.PLID)
	if err != nil {
		return false, fmt.Errorf("failed to reload layout after copy: %w", err)
	}

	if fresh.TypeSettings == nil {
		fresh.TypeSettings = model.TypeSettings{}
	}
	fresh.TypeSettings.Set(model.LastTemplateCopyKey,
		strconv.FormatInt(s.now().UnixMilli(), 10))

	if err := s.layouts.UpdateLayout(ctx, fresh); err != nil {
		return false, fmt.Errorf("failed to persist copy stamp: %w", err)
	}
	return true, nil
}
