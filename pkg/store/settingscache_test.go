package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parapet/portal/pkg/model"
	"github.com/parapet/portal/pkg/store"
	"github.com/parapet/portal/pkg/store/storetest"
)

type countingGroupStore struct {
	store.GroupStore
	loads int
}

func (c *countingGroupStore) Group(ctx context.Context, id int64) (*model.Group, error) {
	c.loads++
	return c.GroupStore.Group(ctx, id)
}

func TestGroupSettingsCache_Memoizes(t *testing.T) {
	st, db := storetest.New(t)
	ctx := context.Background()

	company := storetest.SeedCompany(t, db, "example.com")
	group, err := model.NewGroup(company.ID, model.KindSite, "Engineering")
	require.NoError(t, err)
	group.TypeSettings.Set(model.MergeGuestPublicPagesKey, "true")
	require.NoError(t, st.CreateGroup(ctx, group))

	counting := &countingGroupStore{GroupStore: st}
	cache, err := store.NewGroupSettingsCache(counting, 8)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		ok, err := cache.GetBool(ctx, group.ID, model.MergeGuestPublicPagesKey)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	assert.Equal(t, 1, counting.loads, "settings load once per group")
}

func TestGroupSettingsCache_InvalidateReloads(t *testing.T) {
	st, db := storetest.New(t)
	ctx := context.Background()

	company := storetest.SeedCompany(t, db, "example.com")
	group, err := model.NewGroup(company.ID, model.KindSite, "Engineering")
	require.NoError(t, err)
	require.NoError(t, st.CreateGroup(ctx, group))

	cache, err := store.NewGroupSettingsCache(st, 8)
	require.NoError(t, err)

	ok, err := cache.GetBool(ctx, group.ID, model.MergeGuestPublicPagesKey)
	require.NoError(t, err)
	assert.False(t, ok)

	group.TypeSettings = model.TypeSettings{}
	group.TypeSettings.Set(model.MergeGuestPublicPagesKey, "true")
	require.NoError(t, st.UpdateGroup(ctx, group))

	// Stale until invalidated.
	ok, err = cache.GetBool(ctx, group.ID, model.MergeGuestPublicPagesKey)
	require.NoError(t, err)
	assert.False(t, ok)

	cache.Invalidate(group.ID)
	ok, err = cache.GetBool(ctx, group.ID, model.MergeGuestPublicPagesKey)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGroupSettingsCache_MissingGroup(t *testing.T) {
	st, _ := storetest.New(t)

	cache, err := store.NewGroupSettingsCache(st, 8)
	require.NoError(t, err)

	_, err = cache.GetBool(context.Background(), 9999, model.MergeGuestPublicPagesKey)
	assert.True(t, store.IsNotFound(err))
}
