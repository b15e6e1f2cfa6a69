package resolver

import (
	"context"
	"fmt"

	"github.com/parapet/portal/pkg/model"
	"github.com/parapet/portal/pkg/store"
)

// defaultLayout runs the ordered default search when no explicit target
// survived: virtual host, then the signed-in user's own pages, then the
// user's membership groups, then the company Guest site. The first
// non-empty candidate wins; candidate ordering within a step is the store's
// stable listing order.
func (r *Resolver) defaultLayout(ctx context.Context, user *model.User, req Request) (*model.Layout, []*model.Layout, error) {
	if set := req.VirtualHostLayoutSet; set != nil {
		layouts, err := r.rootLayouts(ctx, set.GroupID, set.Private)
		if err != nil {
			return nil, nil, err
		}
		if len(layouts) > 0 {
			return layouts[0], layouts, nil
		}
	}

	var layout *model.Layout
	var layouts []*model.Layout
	var err error

	if !user.DefaultUser {
		layout, layouts, err = r.personalOrMembershipLayout(ctx, user)
		if err != nil {
			return nil, nil, err
		}
	}

	if layout == nil {
		guest, gerr := r.store.GroupByName(ctx, user.CompanyID, model.GuestGroupName)
		if gerr != nil {
			return nil, nil, fmt.Errorf("failed to load guest group: %w", gerr)
		}
		layouts, err = r.rootLayouts(ctx, guest.ID, false)
		if err != nil {
			return nil, nil, err
		}
		if len(layouts) > 0 {
			layout = layouts[0]
		}
	}

	return layout, layouts, nil
}

// personalOrMembershipLayout checks the user's own private then public root
// pages, then walks membership groups stopping at the first with layouts.
func (r *Resolver) personalOrMembershipLayout(ctx context.Context, user *model.User) (*model.Layout, []*model.Layout, error) {
	layouts, err := r.rootLayouts(ctx, user.GroupID, true)
	if err != nil {
		return nil, nil, err
	}
	if len(layouts) == 0 {
		layouts, err = r.rootLayouts(ctx, user.GroupID, false)
		if err != nil {
			return nil, nil, err
		}
	}
	if len(layouts) > 0 {
		return layouts[0], layouts, nil
	}

	groups, err := r.store.UserGroups(ctx, user.ID)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("failed to load user groups: %w", err)
	}
	for _, group := range groups {
		layouts, err = r.rootLayouts(ctx, group.ID, true)
		if err != nil {
			return nil, nil, err
		}
		if len(layouts) == 0 {
			layouts, err = r.rootLayouts(ctx, group.ID, false)
			if err != nil {
				return nil, nil, err
			}
		}
		if len(layouts) > 0 {
			return layouts[0], layouts, nil
		}
	}
	return nil, nil, nil
}
