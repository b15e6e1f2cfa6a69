package sitetemplate

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parapet/portal/pkg/model"
	"github.com/parapet/portal/pkg/store/storetest"
)

func stamped(t time.Time) model.TypeSettings {
	ts := model.TypeSettings{}
	ts.Set(model.LastTemplateCopyKey, strconv.FormatInt(t.UnixMilli(), 10))
	return ts
}

func TestPrototypePolicy_IsStale(t *testing.T) {
	st, db := storetest.New(t)
	ctx := context.Background()

	company := storetest.SeedCompany(t, db, "example.com")
	site := storetest.SeedGroup(t, db, company.ID, model.KindSite, "Engineering", 0)
	prototype := storetest.SeedGroup(t, db, company.ID, model.KindLayoutSetPrototype, "Intranet Template", 0)

	protoUpdated := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	storetest.SeedLayoutSet(t, db, &model.LayoutSet{
		GroupID: prototype.ID, Private: false, UpdatedAt: protoUpdated,
	})

	policy := NewPrototypePolicy(st)

	t.Run("unlinked set is never stale", func(t *testing.T) {
		storetest.SeedLayoutSet(t, db, &model.LayoutSet{GroupID: site.ID, Private: true})
		stale, err := policy.IsStale(ctx, &model.Layout{GroupID: site.ID, Private: true})
		require.NoError(t, err)
		assert.False(t, stale)
	})

	t.Run("missing layout set is never stale", func(t *testing.T) {
		other := storetest.SeedGroup(t, db, company.ID, model.KindSite, "No Set", 0)
		stale, err := policy.IsStale(ctx, &model.Layout{GroupID: other.ID, Private: false})
		require.NoError(t, err)
		assert.False(t, stale)
	})

	storetest.SeedLayoutSet(t, db, &model.LayoutSet{
		GroupID: site.ID, Private: false,
		PrototypeID: prototype.ID, PrototypeLinkEnabled: true,
	})
	layout := &model.Layout{GroupID: site.ID, Private: false, TypeSettings: model.TypeSettings{}}

	t.Run("never copied is stale", func(t *testing.T) {
		stale, err := policy.IsStale(ctx, layout)
		require.NoError(t, err)
		assert.True(t, stale)
	})

	t.Run("unreadable stamp is stale", func(t *testing.T) {
		bad := layout.Clone()
		bad.TypeSettings.Set(model.LastTemplateCopyKey, "garbage")
		stale, err := policy.IsStale(ctx, bad)
		require.NoError(t, err)
		assert.True(t, stale)
	})

	t.Run("copied after last prototype change is fresh", func(t *testing.T) {
		fresh := layout.Clone()
		fresh.TypeSettings = stamped(protoUpdated.Add(time.Hour))
		stale, err := policy.IsStale(ctx, fresh)
		require.NoError(t, err)
		assert.False(t, stale)
	})

	t.Run("prototype changed after copy is stale", func(t *testing.T) {
		old := layout.Clone()
		old.TypeSettings = stamped(protoUpdated.Add(-time.Hour))
		stale, err := policy.IsStale(ctx, old)
		require.NoError(t, err)
		assert.True(t, stale)
	})
}

func TestPrototypePolicy_LinkDisabled(t *testing.T) {
	st, db := storetest.New(t)
	ctx := context.Background()

	company := storetest.SeedCompany(t, db, "example.com")
	site := storetest.SeedGroup(t, db, company.ID, model.KindSite, "Engineering", 0)
	storetest.SeedLayoutSet(t, db, &model.LayoutSet{
		GroupID: site.ID, Private: false, PrototypeID: 42, PrototypeLinkEnabled: false,
	})

	policy := NewPrototypePolicy(st)
	stale, err := policy.IsStale(ctx, &model.Layout{GroupID: site.ID, Private: false})
	require.NoError(t, err)
	assert.False(t, stale)
}

func TestPrototypePolicy_TemplateLayout(t *testing.T) {
	st, db := storetest.New(t)
	ctx := context.Background()

	company := storetest.SeedCompany(t, db, "example.com")
	site := storetest.SeedGroup(t, db, company.ID, model.KindSite, "Engineering", 0)
	prototype := storetest.SeedGroup(t, db, company.ID, model.KindLayoutSetPrototype, "Template", 0)
	storetest.SeedLayoutSet(t, db, &model.LayoutSet{
		GroupID: site.ID, Private: false, PrototypeID: prototype.ID, PrototypeLinkEnabled: true,
	})

	first := storetest.SeedLayout(t, db, prototype.ID, false, 1, "overview", false)
	match := storetest.SeedLayout(t, db, prototype.ID, false, 2, "team", false)

	policy := NewPrototypePolicy(st)

	got, err := policy.TemplateLayout(ctx, &model.Layout{GroupID: site.ID, Private: false, FriendlyURL: "/team"})
	require.NoError(t, err)
	assert.Equal(t, match.PLID, got.PLID, "friendly URL match wins")

	got, err = policy.TemplateLayout(ctx, &model.Layout{GroupID: site.ID, Private: false, FriendlyURL: "/elsewhere"})
	require.NoError(t, err)
	assert.Equal(t, first.PLID, got.PLID, "first root is the fallback")
}

func TestSettingsCopier_CopyLayout(t *testing.T) {
	st, db := storetest.New(t)
	ctx := context.Background()

	company := storetest.SeedCompany(t, db, "example.com")
	site := storetest.SeedGroup(t, db, company.ID, model.KindSite, "Engineering", 0)

	target := storetest.SeedLayout(t, db, site.ID, false, 1, "old", false)
	stamp := strconv.FormatInt(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli(), 10)
	target.TypeSettings = model.TypeSettings{}
	target.TypeSettings.Set(model.LastTemplateCopyKey, stamp)
	require.NoError(t, st.UpdateLayout(ctx, target))

	template := &model.Layout{
		Name:       "Fresh",
		TemplateID: "1_column",
		TypeSettings: model.TypeSettings{
			"column-0": "news",
		},
	}

	copier := NewSettingsCopier(st)
	require.NoError(t, copier.CopyLayout(ctx, template, target))

	got, err := st.Layout(ctx, target.PLID)
	require.NoError(t, err)
	assert.Equal(t, "Fresh", got.Name)
	assert.Equal(t, "1_column", got.TemplateID)
	assert.Equal(t, "news", got.TypeSettings.Get("column-0"))
	assert.Equal(t, stamp, got.TypeSettings.Get(model.LastTemplateCopyKey),
		"previous copy stamp carries forward")

	// The target's identity fields survive the copy.
	assert.Equal(t, target.PLID, got.PLID)
	assert.Equal(t, "/old", got.FriendlyURL)
}
