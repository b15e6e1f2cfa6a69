package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionValues(t *testing.T) {
	sess := New()
	require.NotEmpty(t, sess.ID)

	assert.Equal(t, "", sess.Get("missing"))
	_, ok := sess.GetInt64("missing")
	assert.False(t, ok)

	sess.Set(KeyLocale, "de-DE")
	assert.Equal(t, "de-DE", sess.Get(KeyLocale))

	sess.SetInt64(KeyUserID, 42)
	v, ok := sess.GetInt64(KeyUserID)
	require.True(t, ok)
	assert.EqualValues(t, 42, v)

	sess.Set(KeyUserID, "not-a-number")
	_, ok = sess.GetInt64(KeyUserID)
	assert.False(t, ok)

	sess.Delete(KeyLocale)
	assert.Equal(t, "", sess.Get(KeyLocale))
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	sess := New()
	sess.SetInt64(KeyUserID, 7)
	require.NoError(t, store.Save(ctx, sess))

	got, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	uid, _ := got.GetInt64(KeyUserID)
	assert.EqualValues(t, 7, uid)

	// Stored state is isolated from later mutation of the loaded copy.
	got.SetInt64(KeyUserID, 8)
	again, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	uid, _ = again.GetInt64(KeyUserID)
	assert.EqualValues(t, 7, uid)

	require.NoError(t, store.Invalidate(ctx, sess.ID))
	_, err = store.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStoreRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store := NewRedisStore(client, 30*time.Minute)
	ctx := context.Background()

	_, err := store.Get(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	sess := New()
	sess.SetInt64(KeyUserID, 7)
	sess.Set(KeyDevice, "phone")
	require.NoError(t, store.Save(ctx, sess))

	got, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "phone", got.Get(KeyDevice))

	require.NoError(t, store.Invalidate(ctx, sess.ID))
	_, err = store.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStoreTTLExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store := NewRedisStore(client, time.Minute)
	ctx := context.Background()

	sess := New()
	require.NoError(t, store.Save(ctx, sess))

	mr.FastForward(2 * time.Minute)
	_, err := store.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestVisitTrail(t *testing.T) {
	sess := New()

	_, ok := RecentGroupID(sess)
	assert.False(t, ok)

	assert.True(t, RecordVisit(sess, 10))
	recent, ok := RecentGroupID(sess)
	require.True(t, ok)
	assert.EqualValues(t, 10, recent)
	_, ok = PreviousGroupID(sess)
	assert.False(t, ok)

	// Revisiting the same group does not shift the trail.
	assert.False(t, RecordVisit(sess, 10))
	_, ok = PreviousGroupID(sess)
	assert.False(t, ok)

	assert.True(t, RecordVisit(sess, 20))
	recent, _ = RecentGroupID(sess)
	previous, ok := PreviousGroupID(sess)
	require.True(t, ok)
	assert.EqualValues(t, 20, recent)
	assert.EqualValues(t, 10, previous)

	assert.True(t, RecordVisit(sess, 30))
	recent, _ = RecentGroupID(sess)
	previous, _ = PreviousGroupID(sess)
	assert.EqualValues(t, 30, recent)
	assert.EqualValues(t, 20, previous, "oldest entry falls off")
}
