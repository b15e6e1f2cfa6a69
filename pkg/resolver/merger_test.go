package resolver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parapet/portal/pkg/model"
	"github.com/parapet/portal/pkg/session"
	"github.com/parapet/portal/pkg/store"
	"github.com/parapet/portal/pkg/store/storetest"
	"github.com/parapet/portal/pkg/visibility"
)

type mergerFixture struct {
	*fixture
	merger *Merger
	site   *model.Group
	user   *model.User
}

func newMergerFixture(t *testing.T) *mergerFixture {
	t.Helper()
	st, db := storetest.New(t)
	eval := visibility.NewEvaluator(st, st, st)
	r := New(st, eval, nil, testLogger(), nil)

	company := storetest.SeedCompany(t, db, "example.com")
	guest := storetest.SeedGroup(t, db, company.ID, model.KindSite, model.GuestGroupName, 0)
	anon := storetest.SeedUser(t, db, company.ID, 0, "guest", true)

	settings, err := store.NewGroupSettingsCache(st, 8)
	require.NoError(t, err)
	merger := NewMerger(st, settings, r, testLogger(), nil)

	site := storetest.SeedGroup(t, db, company.ID, model.KindSite, "Engineering", 0)
	user := storetest.SeedUser(t, db, company.ID, 0, "alice", false)

	return &mergerFixture{
		fixture: &fixture{resolver: r, db: db, company: company, guest: guest, anon: anon},
		merger:  merger,
		site:    site,
		user:    user,
	}
}

func (fx *mergerFixture) optIn(t *testing.T, groupID int64) {
	t.Helper()
	_, err := fx.db.Exec(
		`UPDATE groups SET type_settings = $1 WHERE id = $2`,
		model.MergeGuestPublicPagesKey+"=true", groupID)
	require.NoError(t, err)
}

func TestMerge_PrivateLayoutUnchanged(t *testing.T) {
	fx := newMergerFixture(t)
	ctx := context.Background()

	layout := storetest.SeedLayout(t, fx.db, fx.site.ID, true, 1, "home", false)
	layouts := []*model.Layout{layout}

	merged, err := fx.merger.Merge(ctx, fx.user, newAllowChecker(fx.user.ID), session.New(), layout, layouts)
	require.NoError(t, err)
	assert.Equal(t, layouts, merged)
}

func TestMerge_OptOutUnchanged(t *testing.T) {
	fx := newMergerFixture(t)
	ctx := context.Background()

	storetest.SeedLayout(t, fx.db, fx.guest.ID, false, 1, "welcome", false)
	layout := storetest.SeedLayout(t, fx.db, fx.site.ID, false, 1, "landing", false)
	layouts := []*model.Layout{layout}

	// The site never opted in, so nothing is spliced.
	merged, err := fx.merger.Merge(ctx, fx.user, newAllowChecker(fx.user.ID), session.New(), layout, layouts)
	require.NoError(t, err)
	assert.Equal(t, layouts, merged)
}

func TestMerge_GuestPagesPrepended(t *testing.T) {
	fx := newMergerFixture(t)
	ctx := context.Background()

	g1 := storetest.SeedLayout(t, fx.db, fx.guest.ID, false, 1, "welcome", false)
	g2 := storetest.SeedLayout(t, fx.db, fx.guest.ID, false, 2, "news", false)
	layout := storetest.SeedLayout(t, fx.db, fx.site.ID, false, 1, "landing", false)
	fx.optIn(t, fx.site.ID)

	merged, err := fx.merger.Merge(ctx, fx.user, newAllowChecker(fx.user.ID), session.New(),
		layout, []*model.Layout{layout})
	require.NoError(t, err)

	require.Len(t, merged, 3)
	assert.Equal(t, g1.PLID, merged[0].PLID)
	assert.Equal(t, g2.PLID, merged[1].PLID)
	assert.Equal(t, layout.PLID, merged[2].PLID)
}

func TestMerge_GuestPagesFilteredByView(t *testing.T) {
	fx := newMergerFixture(t)
	ctx := context.Background()

	restricted := storetest.SeedLayout(t, fx.db, fx.guest.ID, false, 1, "restricted", false)
	open := storetest.SeedLayout(t, fx.db, fx.guest.ID, false, 2, "open", false)
	storetest.SeedLayout(t, fx.db, fx.guest.ID, false, 3, "hidden", true)
	layout := storetest.SeedLayout(t, fx.db, fx.site.ID, false, 1, "landing", false)
	fx.optIn(t, fx.site.ID)

	checker := newAllowChecker(fx.user.ID)
	checker.deniedPLIDs[restricted.PLID] = true

	merged, err := fx.merger.Merge(ctx, fx.user, checker, session.New(), layout, []*model.Layout{layout})
	require.NoError(t, err)

	require.Len(t, merged, 2)
	assert.Equal(t, open.PLID, merged[0].PLID)
	assert.Equal(t, layout.PLID, merged[1].PLID)
}

func TestMerge_OnGuestAppendsPreviousGroup(t *testing.T) {
	fx := newMergerFixture(t)
	ctx := context.Background()

	guestPage := storetest.SeedLayout(t, fx.db, fx.guest.ID, false, 1, "welcome", false)
	sitePage := storetest.SeedLayout(t, fx.db, fx.site.ID, false, 1, "landing", false)
	fx.optIn(t, fx.site.ID)

	sess := session.New()
	session.RecordVisit(sess, fx.site.ID)
	session.RecordVisit(sess, fx.guest.ID)

	merged, err := fx.merger.Merge(ctx, fx.user, newAllowChecker(fx.user.ID), sess,
		guestPage, []*model.Layout{guestPage})
	require.NoError(t, err)

	require.Len(t, merged, 2)
	assert.Equal(t, guestPage.PLID, merged[0].PLID)
	assert.Equal(t, sitePage.PLID, merged[1].PLID)
}

func TestMerge_OnGuestWithoutTrailUnchanged(t *testing.T) {
	fx := newMergerFixture(t)
	ctx := context.Background()

	guestPage := storetest.SeedLayout(t, fx.db, fx.guest.ID, false, 1, "welcome", false)
	layouts := []*model.Layout{guestPage}

	merged, err := fx.merger.Merge(ctx, fx.user, newAllowChecker(fx.user.ID), session.New(), guestPage, layouts)
	require.NoError(t, err)
	assert.Equal(t, layouts, merged)

	merged, err = fx.merger.Merge(ctx, fx.user, newAllowChecker(fx.user.ID), nil, guestPage, layouts)
	require.NoError(t, err)
	assert.Equal(t, layouts, merged)
}

func TestMerge_VanishedPreviousGroupSkipped(t *testing.T) {
	fx := newMergerFixture(t)
	ctx := context.Background()

	guestPage := storetest.SeedLayout(t, fx.db, fx.guest.ID, false, 1, "welcome", false)

	sess := session.New()
	session.RecordVisit(sess, 9999)
	session.RecordVisit(sess, fx.guest.ID)

	merged, err := fx.merger.Merge(ctx, fx.user, newAllowChecker(fx.user.ID), sess,
		guestPage, []*model.Layout{guestPage})
	require.NoError(t, err)
	require.Len(t, merged, 1)
	assert.Equal(t, guestPage.PLID, merged[0].PLID)
}
