package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/parapet/portal/pkg/model"
)

// CachedStore wraps a Store with a Redis read-through cache for layout and
// layout-list reads. Writes invalidate the affected keys. Membership and
// permission-relevant queries pass through uncached: caches here serve
// navigation and rendering, never authorization decisions.
type CachedStore struct {
	Store
	redis *redis.Client
	ttl   map[string]time.Duration
}

// NewCachedStore connects to Redis and layers caching over the store.
func NewCachedStore(inner Store, redisAddr, password string) (*CachedStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: password,
		DB:       0,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return newCachedStore(inner, client), nil
}

// NewCachedStoreWithClient layers caching over the store using an existing
// Redis client. Tests use this with miniredis.
func NewCachedStoreWithClient(inner Store, client *redis.Client) *CachedStore {
	return newCachedStore(inner, client)
}

func newCachedStore(inner Store, client *redis.Client) *CachedStore {
	return &CachedStore{
		Store: inner,
		redis: client,
		ttl: map[string]time.Duration{
			"layout": 15 * time.Minute,
			"list":   5 * time.Minute,
		},
	}
}

// Close closes the Redis connection.
func (c *CachedStore) Close() error {
	return c.redis.Close()
}

// HealthCheck verifies both the inner store and Redis.
func (c *CachedStore) HealthCheck(ctx context.Context) error {
	if err := c.Store.HealthCheck(ctx); err != nil {
		return err
	}
	if err := c.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis unavailable: %w", err)
	}
	return nil
}

// Layout gets a layout by plid with caching.
func (c *CachedStore) Layout(ctx context.Context, plid int64) (*model.Layout, error) {
	key := fmt.Sprintf("layout:plid:%d", plid)

	if cached, err := c.redis.Get(ctx, key).Result(); err == nil {
		var layout model.Layout
		if err := json.Unmarshal([]byte(cached), &layout); err == nil {
			return &layout, nil
		}
	}

	layout, err := c.Store.Layout(ctx, plid)
	if err != nil {
		return nil, err
	}
	c.cacheJSON(ctx, key, layout, c.ttl["layout"])
	return layout, nil
}

// LayoutsByParent gets an ordered layout list with caching.
func (c *CachedStore) LayoutsByParent(ctx context.Context, groupID int64, private bool, parentLayoutID int64) ([]*model.Layout, error) {
	key := fmt.Sprintf("layout:list:%d:%t:%d", groupID, private, parentLayoutID)

	if cached, err := c.redis.Get(ctx, key).Result(); err == nil {
		var layouts []*model.Layout
		if err := json.Unmarshal([]byte(cached), &layouts); err == nil {
			return layouts, nil
		}
	}

	layouts, err := c.Store.LayoutsByParent(ctx, groupID, private, parentLayoutID)
	if err != nil {
		return nil, err
	}
	c.cacheJSON(ctx, key, layouts, c.ttl["list"])
	return layouts, nil
}

// CreateLayout creates a layout and invalidates the affected list.
func (c *CachedStore) CreateLayout(ctx context.Context, layout *model.Layout) error {
	if err := c.Store.CreateLayout(ctx, layout); err != nil {
		return err
	}
	c.invalidateLayout(ctx, layout)
	return nil
}

// UpdateLayout updates a layout and invalidates its cache entries.
func (c *CachedStore) UpdateLayout(ctx context.Context, layout *model.Layout) error {
	if err := c.Store.UpdateLayout(ctx, layout); err != nil {
		return err
	}
	c.invalidateLayout(ctx, layout)
	return nil
}

// DeleteLayouts removes a layout tree and clears the group's list entries.
func (c *CachedStore) DeleteLayouts(ctx context.Context, groupID int64, private bool) error {
	if err := c.Store.DeleteLayouts(ctx, groupID, private); err != nil {
		return err
	}
	c.invalidatePattern(ctx, fmt.Sprintf("layout:list:%d:%t:*", groupID, private))
	c.invalidatePattern(ctx, "layout:plid:*")
	return nil
}

func (c *CachedStore) invalidateLayout(ctx context.Context, layout *model.Layout) {
	c.redis.Del(ctx,
		fmt.Sprintf("layout:plid:%d", layout.PLID),
		fmt.Sprintf("layout:list:%d:%t:%d", layout.GroupID, layout.Private, layout.ParentLayoutID),
	)
}

func (c *CachedStore) invalidatePattern(ctx context.Context, pattern string) {
	iter := c.redis.Scan(ctx, 0, pattern, 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if len(keys) > 0 {
		c.redis.Del(ctx, keys...)
	}
}

// cacheJSON best-effort stores a value; cache failures never fail the read.
func (c *CachedStore) cacheJSON(ctx context.Context, key string, v any, ttl time.Duration) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	c.redis.Set(ctx, key, data, ttl)
}

// IsNotFound reports whether err is the store's absence sentinel.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
