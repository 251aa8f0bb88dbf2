package membership

import (
	"context"
	"fmt"
	"sync"

	"github.com/mmcdole/setlist/internal/domain"
)

// fakeRepo is an in-memory domain.PlaylistRepository
type fakeRepo struct {
	mu        sync.Mutex
	playlists []*domain.Playlist
	items     map[string][]string // playlist id -> item ids
	failItems map[string]error
	listErr   error

	itemCalls map[string]int // playlist id -> page requests
	onItems   func(playlistID string, call int)

	mutateErr     error
	mutateStarted chan struct{} // receives once per Add/Remove call when non-nil
	mutateGate    chan struct{} // Add/Remove block until closed when non-nil
	mutations     []string      // "add:p1:t1", "remove:p1:t1"
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		items:     make(map[string][]string),
		failItems: make(map[string]error),
		itemCalls: make(map[string]int),
	}
}

// addPlaylist registers an editable playlist holding ids
func (f *fakeRepo) addPlaylist(id, title string, editable bool, ids ...string) {
	f.playlists = append(f.playlists, &domain.Playlist{ID: id, Title: title, ItemCount: len(ids), Editable: editable})
	f.items[id] = ids
}

// addSizedPlaylist registers an editable playlist with count generated ids plus extra
func (f *fakeRepo) addSizedPlaylist(id string, count int, extra ...string) {
	ids := make([]string, 0, count)
	ids = append(ids, extra...)
	for i := len(extra); i < count; i++ {
		ids = append(ids, fmt.Sprintf("%s-t%d", id, i))
	}
	f.addPlaylist(id, "Playlist "+id, true, ids...)
}

func (f *fakeRepo) GetPlaylists(ctx context.Context, offset, limit int) ([]*domain.Playlist, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, 0, f.listErr
	}
	if offset >= len(f.playlists) {
		return nil, len(f.playlists), nil
	}
	end := min(offset+limit, len(f.playlists))
	return f.playlists[offset:end], len(f.playlists), nil
}

func (f *fakeRepo) GetPlaylistItemIDs(ctx context.Context, playlistID string, offset, limit int) ([]string, int, error) {
	f.mu.Lock()
	f.itemCalls[playlistID]++
	call := f.itemCalls[playlistID]
	hook := f.onItems
	failErr := f.failItems[playlistID]
	ids := f.items[playlistID]
	f.mu.Unlock()

	if hook != nil {
		hook(playlistID, call)
	}
	if failErr != nil {
		return nil, 0, failErr
	}
	if offset >= len(ids) {
		return nil, len(ids), nil
	}
	end := min(offset+limit, len(ids))
	return ids[offset:end], len(ids), nil
}

func (f *fakeRepo) AddToPlaylist(ctx context.Context, playlistID string, itemIDs []string) error {
	return f.mutate(ctx, "add", playlistID, itemIDs)
}

func (f *fakeRepo) RemoveFromPlaylist(ctx context.Context, playlistID string, itemIDs []string) error {
	return f.mutate(ctx, "remove", playlistID, itemIDs)
}

func (f *fakeRepo) mutate(ctx context.Context, op, playlistID string, itemIDs []string) error {
	f.mu.Lock()
	started, gate := f.mutateStarted, f.mutateGate
	for _, id := range itemIDs {
		f.mutations = append(f.mutations, fmt.Sprintf("%s:%s:%s", op, playlistID, id))
	}
	err := f.mutateErr
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (f *fakeRepo) calls(playlistID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.itemCalls[playlistID]
}

func (f *fakeRepo) mutationLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.mutations...)
}

// recordingObserver keeps every signal in order
type recordingObserver struct {
	mu       sync.Mutex
	events   []string
	ready    *Snapshot
	err      error
	progress func(current, total int)
}

func (o *recordingObserver) record(e string) {
	o.mu.Lock()
	o.events = append(o.events, e)
	o.mu.Unlock()
}

func (o *recordingObserver) OnLoadingStarted() { o.record("started") }

func (o *recordingObserver) OnProgress(current, total int) {
	o.record(fmt.Sprintf("progress %d/%d", current, total))
	if o.progress != nil {
		o.progress(current, total)
	}
}

func (o *recordingObserver) OnReady(s *Snapshot) {
	o.mu.Lock()
	o.ready = s
	o.mu.Unlock()
	o.record("ready")
}

func (o *recordingObserver) OnError(err error) {
	o.mu.Lock()
	o.err = err
	o.mu.Unlock()
	o.record("error")
}

func (o *recordingObserver) OnCancelled() { o.record("cancelled") }

func (o *recordingObserver) snapshotEvents() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.events...)
}

// seedCache publishes a READY snapshot built from playlist id -> item ids
func seedCache(members map[string][]string) *Cache {
	b := newBuilder()
	for id, ids := range members {
		b.add(&domain.Playlist{ID: id, Title: "Playlist " + id, ItemCount: len(ids), Editable: true}, ids)
	}
	c := NewCache()
	c.Publish(b.build(StateReady, nil))
	return c
}
