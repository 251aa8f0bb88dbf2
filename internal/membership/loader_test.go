package membership

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/setlist/internal/domain"
)

func TestLoader_EndToEnd(t *testing.T) {
	repo := newFakeRepo()
	repo.addSizedPlaylist("P1", 16, "T1", "T2")
	repo.addSizedPlaylist("P2", 42, "T2")
	repo.addSizedPlaylist("P3", 103, "T1")
	repo.addPlaylist("P4", "Editorial picks", false, "T1")

	cache := NewCache()
	loader := NewLoader(repo, cache, LoaderOptions{Concurrency: 2, PlaylistPageSize: 2, ItemPageSize: 10}, nil)
	obs := &recordingObserver{}

	result, err := loader.Rebuild(context.Background(), obs)
	require.NoError(t, err)
	assert.Equal(t, LoaderReady, result.State)
	assert.Equal(t, LoaderReady, loader.State())
	assert.Equal(t, 3, result.Playlists)
	assert.Empty(t, result.Missing)

	snap := cache.Read()
	assert.Same(t, result.Snapshot, snap)
	assert.Equal(t, StateReady, snap.State)
	require.NoError(t, snap.Validate())
	assert.Equal(t, []string{"P1", "P3"}, snap.PlaylistsFor("T1"))
	assert.Nil(t, snap.Playlist("P4"), "non-editable playlists are excluded")
	assert.Equal(t, 103, snap.Playlist("P3").ItemCount)
	assert.Equal(t, 11, repo.calls("P3"), "103 items at page size 10")

	others := make(map[string][]string)
	for _, id := range []string{"T2", "P1-t5", "P2-t40", "P3-t100"} {
		others[id] = snap.PlaylistsFor(id)
	}

	coord := NewCoordinator(repo, cache, nil)
	next, err := coord.Toggle(context.Background(), "T1", "P1", domain.DirectionRemove)
	require.NoError(t, err)
	require.NoError(t, next.Validate())
	assert.Equal(t, []string{"P3"}, next.PlaylistsFor("T1"))
	for id, want := range others {
		assert.Equal(t, want, next.PlaylistsFor(id), "item %s unaffected", id)
	}
	assert.Equal(t, snap.ItemCount(), next.ItemCount())

	events := obs.snapshotEvents()
	assert.Equal(t, "started", events[0])
	assert.Contains(t, events, "progress 3/3")
	assert.Equal(t, "ready", events[len(events)-1])
}

func TestLoader_PartialFailure(t *testing.T) {
	repo := newFakeRepo()
	repo.addPlaylist("p1", "One", true, "t1")
	repo.addPlaylist("p2", "Two", true, "t1", "t2")
	repo.addPlaylist("p3", "Three", true, "t3")
	repo.failItems["p2"] = &domain.RemoteError{Op: "get playlist items", Attempts: 1, Err: domain.ErrTimeout}

	cache := NewCache()
	loader := NewLoader(repo, cache, DefaultLoaderOptions(), nil)

	result, err := loader.Rebuild(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, LoaderPartial, result.State)

	snap := cache.Read()
	assert.Equal(t, StatePartial, snap.State)
	require.NoError(t, snap.Validate())
	assert.Nil(t, snap.Playlist("p2"))
	assert.Equal(t, []string{"p1"}, snap.PlaylistsFor("t1"))
	assert.False(t, snap.Contains("t2", "p2"))

	require.Contains(t, snap.Missing, "p2")
	assert.ErrorIs(t, snap.Missing["p2"], domain.ErrTimeout)
	assert.Contains(t, loader.Missing(), "p2")
}

func TestLoader_AllPlaylistsFail(t *testing.T) {
	repo := newFakeRepo()
	repo.addPlaylist("p1", "One", true, "t1")
	repo.addPlaylist("p2", "Two", true, "t2")
	repo.failItems["p1"] = domain.ErrRemoteUnavailable
	repo.failItems["p2"] = domain.ErrRemoteUnavailable

	cache := seedCache(map[string][]string{"old": {"t0"}})
	before := cache.Read()
	loader := NewLoader(repo, cache, DefaultLoaderOptions(), nil)
	obs := &recordingObserver{}

	result, err := loader.Rebuild(context.Background(), obs)
	require.ErrorIs(t, err, domain.ErrRemoteUnavailable)
	assert.Equal(t, LoaderError, result.State)
	assert.Nil(t, result.Snapshot)
	assert.Equal(t, LoaderError, loader.State())

	snap := cache.Read()
	assert.Equal(t, before.Version, snap.Version, "nothing published")
	assert.Equal(t, StateError, snap.State)
	assert.True(t, snap.Contains("t0", "old"), "previous index stays visible")
	assert.ErrorIs(t, obs.err, domain.ErrRemoteUnavailable)
}

func TestLoader_ListingFails(t *testing.T) {
	repo := newFakeRepo()
	repo.listErr = &domain.RemoteError{Op: "get playlists", Status: 403, Attempts: 1, Err: domain.ErrRemoteRejected}

	cache := NewCache()
	loader := NewLoader(repo, cache, DefaultLoaderOptions(), nil)

	result, err := loader.Rebuild(context.Background(), nil)
	require.ErrorIs(t, err, domain.ErrRemoteRejected)
	assert.Equal(t, LoaderError, result.State)
	assert.Zero(t, cache.Read().Version)
}

func TestLoader_NoEditablePlaylists(t *testing.T) {
	repo := newFakeRepo()
	repo.addPlaylist("p1", "Editorial", false, "t1")

	cache := NewCache()
	loader := NewLoader(repo, cache, DefaultLoaderOptions(), nil)

	result, err := loader.Rebuild(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, LoaderReady, result.State)
	assert.Equal(t, StateReady, cache.Read().State)
	assert.Zero(t, cache.Read().PlaylistCount())
	assert.Zero(t, repo.calls("p1"))
}

func TestLoader_BoundedConcurrency(t *testing.T) {
	repo := newFakeRepo()
	for i := range 12 {
		repo.addSizedPlaylist(fmt.Sprintf("p%d", i), 5)
	}

	var inFlight, peak atomic.Int32
	repo.onItems = func(string, int) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
	}

	loader := NewLoader(repo, NewCache(), LoaderOptions{Concurrency: 3}, nil)
	result, err := loader.Rebuild(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, LoaderReady, result.State)
	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.GreaterOrEqual(t, peak.Load(), int32(1))
}

func TestLoader_CancelAfterTwoOfFive(t *testing.T) {
	repo := newFakeRepo()
	for i := 1; i <= 5; i++ {
		repo.addSizedPlaylist(fmt.Sprintf("p%d", i), 3)
	}

	cache := seedCache(map[string][]string{"old": {"t0"}})
	before := cache.Read()
	loader := NewLoader(repo, cache, LoaderOptions{Concurrency: 1}, nil)

	// p3 may already be in flight when the flag is set; hold it until then
	gate := make(chan struct{})
	repo.onItems = func(playlistID string, _ int) {
		if playlistID == "p3" {
			<-gate
		}
	}
	obs := &recordingObserver{progress: func(current, _ int) {
		if current == 2 {
			loader.Cancel()
			close(gate)
		}
	}}

	result, err := loader.Rebuild(context.Background(), obs)
	require.ErrorIs(t, err, domain.ErrCancelled)
	assert.Equal(t, LoaderCancelled, result.State)
	assert.Equal(t, LoaderCancelled, loader.State())
	assert.Nil(t, result.Snapshot)

	assert.Equal(t, 1, repo.calls("p1"))
	assert.Equal(t, 1, repo.calls("p2"))
	assert.LessOrEqual(t, repo.calls("p3"), 1)
	assert.Zero(t, repo.calls("p4"))
	assert.Zero(t, repo.calls("p5"))

	snap := cache.Read()
	assert.Equal(t, before.Version, snap.Version, "nothing published")
	assert.Equal(t, StateReady, snap.State, "LOADING mark is undone")
	assert.True(t, snap.Contains("t0", "old"))

	events := obs.snapshotEvents()
	assert.Equal(t, "cancelled", events[len(events)-1])
	assert.NotContains(t, events, "ready")
}

func TestLoader_CancelledContext(t *testing.T) {
	repo := newFakeRepo()
	repo.addSizedPlaylist("p1", 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cache := NewCache()
	loader := NewLoader(repo, cache, DefaultLoaderOptions(), nil)
	result, err := loader.Rebuild(ctx, nil)
	require.ErrorIs(t, err, domain.ErrCancelled)
	assert.Equal(t, LoaderCancelled, result.State)
	assert.Zero(t, repo.calls("p1"))
	assert.Equal(t, StateEmpty, cache.Read().State)
}

func TestLoader_NewRebuildSupersedesRunning(t *testing.T) {
	repo := newFakeRepo()
	repo.addSizedPlaylist("p1", 3)
	repo.addSizedPlaylist("p2", 3)

	started := make(chan struct{})
	gate := make(chan struct{})
	repo.onItems = func(playlistID string, call int) {
		if playlistID == "p1" && call == 1 {
			close(started)
			<-gate
		}
	}

	cache := NewCache()
	loader := NewLoader(repo, cache, LoaderOptions{Concurrency: 1}, nil)

	var wg sync.WaitGroup
	var firstErr error
	var first *Result
	wg.Add(1)
	go func() {
		defer wg.Done()
		first, firstErr = loader.Rebuild(context.Background(), nil)
	}()
	<-started

	second, err := loader.Rebuild(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, LoaderReady, second.State)

	close(gate)
	wg.Wait()

	assert.True(t, errors.Is(firstErr, domain.ErrCancelled))
	assert.Equal(t, LoaderCancelled, first.State)
	assert.Nil(t, first.Snapshot)

	assert.Equal(t, LoaderReady, loader.State(), "superseded run does not overwrite state")
	assert.Same(t, second.Snapshot, cache.Read())
	assert.Equal(t, StateReady, cache.Read().State)
}
