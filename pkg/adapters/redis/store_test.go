package redis_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/jotter/pkg/adapters/redis"
	"github.com/aretw0/jotter/pkg/core"
)

var epoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func setupStore(t *testing.T) (*redis.Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store, err := redis.New(redis.Config{
		Addr:   mr.Addr(),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	require.NoError(t, store.Initialize(context.Background()))
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

// waitFor drains snapshots until one satisfies cond.
func waitFor(t *testing.T, sub core.Subscription, cond func(core.Snapshot) bool) core.Snapshot {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case snap, ok := <-sub.Snapshots():
			require.True(t, ok, "subscription closed")
			if cond(snap) {
				return snap
			}
		case <-deadline:
			t.Fatal("timed out waiting for snapshot")
			return core.Snapshot{}
		}
	}
}

func TestStore_LiveQuery(t *testing.T) {
	ctx := context.Background()
	store, mr := setupStore(t)

	q, err := core.BuildQuery("u1", core.NoteFilters{SelectedTags: []string{"Work"}}, 0)
	require.NoError(t, err)
	sub, err := store.Subscribe(ctx, q)
	require.NoError(t, err)
	defer sub.Close()
	waitFor(t, sub, func(s core.Snapshot) bool { return s.Err == nil && len(s.Notes) == 0 })

	id, err := store.Create(ctx, core.NewNote("", "u1", core.NoteInput{Title: "Standup", Tags: []string{"Work"}}, epoch))
	require.NoError(t, err)
	assert.True(t, mr.Exists("jotter:note:"+id))

	snap := waitFor(t, sub, func(s core.Snapshot) bool { return len(s.Notes) == 1 })
	assert.Equal(t, "Standup", snap.Notes[0].Title)
	assert.Equal(t, "u1", snap.Notes[0].UserID)

	tags := []string{"Home"}
	require.NoError(t, store.Update(ctx, "u1", id, core.NotePatch{Tags: &tags}, epoch.Add(time.Hour)))
	waitFor(t, sub, func(s core.Snapshot) bool { return len(s.Notes) == 0 })

	t.Run("Ownership", func(t *testing.T) {
		assert.ErrorIs(t, store.Delete(ctx, "u2", id), core.ErrPermissionDenied)
		assert.ErrorIs(t, store.Update(ctx, "u1", "missing", core.NotePatch{}, epoch), core.ErrNotFound)
	})

	require.NoError(t, store.Delete(ctx, "u1", id))
	assert.False(t, mr.Exists("jotter:note:"+id))
	members, err := mr.SMembers("jotter:user:u1:notes")
	if err == nil {
		assert.NotContains(t, members, id)
	}

	state := store.State().(redis.StoreState)
	assert.Equal(t, 1, state.Listeners)
	assert.GreaterOrEqual(t, state.Published, 3)
}

func TestStore_UsersAreIsolated(t *testing.T) {
	ctx := context.Background()
	store, _ := setupStore(t)

	_, err := store.Create(ctx, core.NewNote("", "u2", core.NoteInput{Title: "Theirs"}, epoch))
	require.NoError(t, err)

	q, _ := core.CatalogQuery("u1")
	sub, err := store.Subscribe(ctx, q)
	require.NoError(t, err)
	defer sub.Close()

	snap := waitFor(t, sub, func(core.Snapshot) bool { return true })
	assert.Empty(t, snap.Notes)
}

func TestStore_CloseReleasesListener(t *testing.T) {
	store, _ := setupStore(t)
	q, _ := core.CatalogQuery("u1")
	ctx, cancel := context.WithCancel(context.Background())

	_, err := store.Subscribe(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, 1, store.ActiveListeners())

	cancel()
	require.Eventually(t, func() bool { return store.ActiveListeners() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestStore_SharedClient(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()

	store, err := redis.New(redis.Config{Client: client, Prefix: "test"})
	require.NoError(t, err)
	require.NoError(t, store.Initialize(context.Background()))

	id, err := store.Create(context.Background(), core.Note{UserID: "u1", Title: "x"})
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:note:"+id))

	require.NoError(t, store.Close())
	assert.NoError(t, client.Ping(context.Background()).Err(), "a caller-owned client stays open")
}

func TestStore_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	store, err := redis.New(redis.Config{Addr: addr, PingTimeout: 200 * time.Millisecond})
	require.NoError(t, err)
	defer store.Close()
	assert.ErrorIs(t, store.Initialize(context.Background()), core.ErrRemoteUnavailable)

	_, err = redis.New(redis.Config{})
	assert.Error(t, err)
}
