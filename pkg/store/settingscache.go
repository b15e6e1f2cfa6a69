package store

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/parapet/portal/pkg/model"
)

// GroupSettingsCache memoizes group type-settings flag reads behind a bounded
// LRU. It sits outside the permission trust boundary: the visibility
// evaluator never consults it, only navigation features (the guest-page
// merger gate) do. Entries live until Invalidate or eviction.
type GroupSettingsCache struct {
	groups GroupStore
	cache  *lru.Cache[int64, model.TypeSettings]
}

// NewGroupSettingsCache builds a cache of the given size over a group store.
func NewGroupSettingsCache(groups GroupStore, size int) (*GroupSettingsCache, error) {
	cache, err := lru.New[int64, model.TypeSettings](size)
	if err != nil {
		return nil, err
	}
	return &GroupSettingsCache{groups: groups, cache: cache}, nil
}

// GetBool returns the boolean type-settings flag for the group, loading and
// memoizing the group's settings on first use.
func (c *GroupSettingsCache) GetBool(ctx context.Context, groupID int64, key string) (bool, error) {
	if settings, ok := c.cache.Get(groupID); ok {
		return settings.GetBool(key), nil
	}

	group, err := c.groups.Group(ctx, groupID)
	if err != nil {
		return false, err
	}
	c.cache.Add(groupID, group.TypeSettings.Clone())
	return group.TypeSettings.GetBool(key), nil
}

// Invalidate drops the cached settings for a group. Callers that mutate group
// type settings are expected to invalidate here.
func (c *GroupSettingsCache) Invalidate(groupID int64) {
	c.cache.Remove(groupID)
}

// Purge drops every cached entry.
func (c *GroupSettingsCache) Purge() {
	c.cache.Purge()
}
