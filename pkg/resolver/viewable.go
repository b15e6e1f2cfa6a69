package resolver

import (
	"context"
	"fmt"

	"github.com/parapet/portal/pkg/model"
	"github.com/parapet/portal/pkg/permission"
)

// viewableLayouts filters the sibling list down to layouts the principal may
// view, excluding hidden ones. When the anchor layout itself lacks view
// permission, the first accessible sibling is substituted for it; when
// nothing at all is accessible, the list is dropped and a display-only
// permission notice is recorded.
func (r *Resolver) viewableLayouts(ctx context.Context, checker permission.Checker, layout *model.Layout, layouts []*model.Layout) (*model.Layout, []*model.Layout, bool, error) {
	if len(layouts) == 0 {
		return layout, layouts, false, nil
	}

	hasViewPermission := false
	if layout != nil {
		ok, err := checker.HasLayoutPermission(ctx, layout, permission.ActionView)
		if err != nil {
			return nil, nil, false, fmt.Errorf("failed to check anchor layout permission: %w", err)
		}
		hasViewPermission = ok
	}

	var accessible []*model.Layout
	for _, cur := range layouts {
		if cur.Hidden {
			continue
		}
		ok, err := checker.HasLayoutPermission(ctx, cur, permission.ActionView)
		if err != nil {
			return nil, nil, false, fmt.Errorf("failed to check layout permission: %w", err)
		}
		if !ok {
			continue
		}
		if len(accessible) == 0 && !hasViewPermission {
			layout = cur
		}
		accessible = append(accessible, cur)
	}

	if len(accessible) == 0 {
		return layout, nil, !hasViewPermission, nil
	}
	return layout, accessible, false, nil
}
