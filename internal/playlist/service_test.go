package playlist

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/setlist/internal/domain"
	"github.com/mmcdole/setlist/internal/membership"
	"github.com/mmcdole/setlist/internal/store"
)

// memoryRepo is a minimal in-memory domain.PlaylistRepository
type memoryRepo struct {
	mu        sync.Mutex
	playlists []*domain.Playlist
	items     map[string][]string
	failItems map[string]error
	mutateErr error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{items: make(map[string][]string), failItems: make(map[string]error)}
}

func (r *memoryRepo) add(id, title string, ids ...string) {
	r.playlists = append(r.playlists, &domain.Playlist{ID: id, Title: title, ItemCount: len(ids), Editable: true})
	r.items[id] = ids
}

func (r *memoryRepo) GetPlaylists(_ context.Context, offset, limit int) ([]*domain.Playlist, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if offset >= len(r.playlists) {
		return nil, len(r.playlists), nil
	}
	return r.playlists[offset:min(offset+limit, len(r.playlists))], len(r.playlists), nil
}

func (r *memoryRepo) GetPlaylistItemIDs(_ context.Context, playlistID string, offset, limit int) ([]string, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failItems[playlistID]; err != nil {
		return nil, 0, err
	}
	ids := r.items[playlistID]
	if offset >= len(ids) {
		return nil, len(ids), nil
	}
	return ids[offset:min(offset+limit, len(ids))], len(ids), nil
}

func (r *memoryRepo) AddToPlaylist(context.Context, string, []string) error {
	return r.mutateErr
}

func (r *memoryRepo) RemoveFromPlaylist(context.Context, string, []string) error {
	return r.mutateErr
}

func newTestService(t *testing.T, repo *memoryRepo) (*Service, *store.ReportStore) {
	t.Helper()
	reports, err := store.NewReportStore("", "https://api.example.com", 5)
	require.NoError(t, err)
	return NewService(repo, reports, membership.DefaultLoaderOptions(), nil), reports
}

func TestService_RebuildRecordsReport(t *testing.T) {
	repo := newMemoryRepo()
	repo.add("p1", "Road Trip", "t1", "t2")
	repo.add("p2", "Roadhouse Blues", "t2")
	repo.add("p3", "Chill", "t1")

	svc, reports := newTestService(t, repo)
	result, err := svc.Rebuild(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, membership.LoaderReady, result.State)
	assert.Equal(t, membership.LoaderReady, svc.LoaderState())

	latest, ok := reports.Latest()
	require.True(t, ok)
	assert.NotEmpty(t, latest.ID)
	assert.Equal(t, "READY", latest.State)
	assert.Equal(t, 3, latest.Playlists)
	assert.Equal(t, 2, latest.Items)
	assert.Equal(t, result.Snapshot.Version, latest.Version)
	assert.Empty(t, latest.Error)
}

func TestService_PartialRebuildReportsMissing(t *testing.T) {
	repo := newMemoryRepo()
	repo.add("p1", "One", "t1")
	repo.add("p2", "Two", "t2")
	repo.failItems["p2"] = &domain.RemoteError{Op: "get playlist items", Status: 503, Attempts: 3, Err: domain.ErrRateLimited}

	svc, _ := newTestService(t, repo)
	_, err := svc.Rebuild(context.Background(), nil)
	require.NoError(t, err)

	recent, err := svc.Reports(0)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "PARTIAL", recent[0].State)
	assert.Contains(t, recent[0].Missing["p2"], "rate limited")
}

func TestService_FailedRebuildReportsError(t *testing.T) {
	repo := newMemoryRepo()
	repo.add("p1", "One", "t1")
	repo.failItems["p1"] = domain.ErrRemoteUnavailable

	svc, _ := newTestService(t, repo)
	_, err := svc.Rebuild(context.Background(), nil)
	require.ErrorIs(t, err, domain.ErrRemoteUnavailable)

	recent, err := svc.Reports(1)
	require.NoError(t, err)
	assert.Equal(t, "ERROR", recent[0].State)
	assert.Contains(t, recent[0].Error, "unavailable")
}

func TestService_MembershipAndToggle(t *testing.T) {
	repo := newMemoryRepo()
	repo.add("p1", "Road Trip", "t1")
	repo.add("p2", "Chill", "t1")
	repo.add("p3", "Workout")

	svc, _ := newTestService(t, repo)
	_, err := svc.Rebuild(context.Background(), nil)
	require.NoError(t, err)

	titles := func(ps []*domain.Playlist) []string {
		var out []string
		for _, p := range ps {
			out = append(out, p.Title)
		}
		return out
	}
	assert.Equal(t, []string{"Chill", "Road Trip"}, titles(svc.Membership("t1")))

	_, err = svc.Toggle(context.Background(), "t1", "p3", domain.DirectionAdd)
	require.NoError(t, err)
	assert.Equal(t, []string{"Chill", "Road Trip", "Workout"}, titles(svc.Membership("t1")))
	assert.False(t, svc.IsPending("t1", "p3"))

	repo.mutateErr = &domain.RemoteError{Op: "remove from playlist", Status: 404, Attempts: 1, Err: domain.ErrRemoteRejected}
	_, err = svc.ToggleQueued(context.Background(), "t1", "p1", domain.DirectionRemove)
	require.ErrorIs(t, err, domain.ErrRemoteRejected)
	assert.Len(t, svc.Membership("t1"), 3, "failed toggle leaves cache untouched")
}

func TestQueries_Resolve(t *testing.T) {
	repo := newMemoryRepo()
	repo.add("p1", "Road Trip")
	repo.add("p2", "Roadhouse Blues")
	repo.add("p3", "Mix A")
	repo.add("p4", "Mix B")

	svc, _ := newTestService(t, repo)
	_, err := svc.Rebuild(context.Background(), nil)
	require.NoError(t, err)

	tests := []struct {
		name    string
		query   string
		wantID  string
		wantErr error
	}{
		{"by id", "p2", "p2", nil},
		{"exact title ignores case", "road trip", "p1", nil},
		{"closest fuzzy match", "road", "p1", nil},
		{"fuzzy subsequence", "rdhouse", "p2", nil},
		{"tie is ambiguous", "mix", "", domain.ErrAmbiguous},
		{"no match", "jazz", "", domain.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := svc.Resolve(tt.query)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, p.ID)
		})
	}
}
