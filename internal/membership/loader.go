package membership

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/mmcdole/setlist/internal/domain"
	"github.com/mmcdole/setlist/internal/paging"
)

// LoaderState is the rebuild state machine:
// IDLE -> LOADING -> READY | PARTIAL | ERROR, and LOADING -> CANCELLED.
type LoaderState int

const (
	LoaderIdle LoaderState = iota
	LoaderLoading
	LoaderReady
	LoaderPartial
	LoaderError
	LoaderCancelled
)

func (s LoaderState) String() string {
	switch s {
	case LoaderIdle:
		return "IDLE"
	case LoaderLoading:
		return "LOADING"
	case LoaderReady:
		return "READY"
	case LoaderPartial:
		return "PARTIAL"
	case LoaderError:
		return "ERROR"
	case LoaderCancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// LoaderOptions bounds the rebuild pipeline
type LoaderOptions struct {
	Concurrency      int // Playlists fetched in parallel
	PlaylistPageSize int
	ItemPageSize     int
}

// DefaultLoaderOptions returns the stock limits
func DefaultLoaderOptions() LoaderOptions {
	return LoaderOptions{Concurrency: 5, PlaylistPageSize: 50, ItemPageSize: 300}
}

// Result summarizes one rebuild
type Result struct {
	State      LoaderState
	Snapshot   *Snapshot // Published snapshot, nil unless READY or PARTIAL
	Playlists  int       // Editable playlists found
	Items      int       // Distinct items indexed
	Missing    map[string]error
	StartedAt  time.Time
	FinishedAt time.Time
}

// Loader rebuilds the cache from the remote service
type Loader struct {
	repo   domain.PlaylistRepository
	cache  *Cache
	opts   LoaderOptions
	logger *slog.Logger

	mu      sync.Mutex
	state   LoaderState
	missing map[string]error
	current *run
}

// run is one rebuild; its flag is checked between pages and before each playlist
type run struct {
	cancelled atomic.Bool
}

func (r *run) stopped(ctx context.Context) bool {
	return r.cancelled.Load() || ctx.Err() != nil
}

// playlistResult is what a worker hands to the accumulator
type playlistResult struct {
	playlist *domain.Playlist
	itemIDs  []string
	err      error
}

// NewLoader creates a loader publishing into cache
func NewLoader(repo domain.PlaylistRepository, cache *Cache, opts LoaderOptions, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultLoaderOptions()
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaults.Concurrency
	}
	if opts.PlaylistPageSize <= 0 {
		opts.PlaylistPageSize = defaults.PlaylistPageSize
	}
	if opts.ItemPageSize <= 0 {
		opts.ItemPageSize = defaults.ItemPageSize
	}
	return &Loader{repo: repo, cache: cache, opts: opts, logger: logger}
}

// State returns the current loader state
func (l *Loader) State() LoaderState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Missing returns the playlists that failed in the last PARTIAL rebuild
func (l *Loader) Missing() map[string]error {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]error, len(l.missing))
	for id, err := range l.missing {
		out[id] = err
	}
	return out
}

// Cancel asks the running rebuild to stop. In-flight requests finish; nothing further starts.
func (l *Loader) Cancel() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.current != nil {
		l.current.cancelled.Store(true)
	}
}

// Rebuild fetches every editable playlist and publishes a new snapshot.
// A rebuild started while another is LOADING cancels the older one.
// The returned error is nil for READY and PARTIAL.
func (l *Loader) Rebuild(ctx context.Context, obs Observer) (*Result, error) {
	if obs == nil {
		obs = NoOpObserver{}
	}

	r := &run{}
	l.mu.Lock()
	if l.current != nil {
		l.current.cancelled.Store(true)
	}
	l.current = r
	l.state = LoaderLoading
	l.missing = nil
	l.mu.Unlock()

	result := &Result{StartedAt: time.Now()}
	l.cache.setState(StateLoading)
	obs.OnLoadingStarted()
	l.logger.Info("rebuild started")

	playlists, err := l.fetchPlaylists(ctx, r)
	if err != nil {
		if r.stopped(ctx) {
			return l.cancelled(r, result, obs)
		}
		return l.failed(r, result, obs, fmt.Errorf("failed to list playlists: %w", err))
	}
	result.Playlists = len(playlists)

	b, missing, err := l.fetchMembers(ctx, r, playlists, obs)
	if err != nil {
		return l.cancelled(r, result, obs)
	}

	if len(playlists) > 0 && len(missing) == len(playlists) {
		return l.failed(r, result, obs, fmt.Errorf("all %d playlists failed: %w", len(playlists), firstError(missing)))
	}

	state, loaderState := StateReady, LoaderReady
	if len(missing) > 0 {
		state, loaderState = StatePartial, LoaderPartial
	} else {
		missing = nil
	}

	l.mu.Lock()
	if l.current != r || r.stopped(ctx) {
		l.mu.Unlock()
		return l.cancelled(r, result, obs)
	}
	snapshot := l.cache.Publish(b.build(state, missing))
	l.state = loaderState
	l.missing = missing
	l.current = nil
	l.mu.Unlock()

	result.State = loaderState
	result.Snapshot = snapshot
	result.Items = snapshot.ItemCount()
	result.Missing = missing
	result.FinishedAt = time.Now()

	l.logger.Info("rebuild finished",
		"state", loaderState.String(),
		"version", snapshot.Version,
		"playlists", len(playlists),
		"missing", len(missing),
		"items", result.Items,
		"duration", result.FinishedAt.Sub(result.StartedAt),
	)
	obs.OnReady(snapshot)
	return result, nil
}

// fetchPlaylists pages through the user's playlists and keeps the editable ones
func (l *Loader) fetchPlaylists(ctx context.Context, r *run) ([]*domain.Playlist, error) {
	var editable []*domain.Playlist
	for page, err := range paging.Pages(ctx, l.repo.GetPlaylists, l.opts.PlaylistPageSize) {
		if err != nil {
			return nil, err
		}
		for _, p := range page.Items {
			if p.Editable {
				editable = append(editable, p)
			}
		}
		if r.stopped(ctx) {
			return nil, domain.ErrCancelled
		}
	}
	return editable, nil
}

// fetchMembers loads every playlist's items with bounded parallelism.
// Workers send results to this goroutine, which is the only writer of the builder.
func (l *Loader) fetchMembers(
	ctx context.Context,
	r *run,
	playlists []*domain.Playlist,
	obs Observer,
) (*builder, map[string]error, error) {
	results := make(chan playlistResult)

	go func() {
		p := pool.New().WithMaxGoroutines(l.opts.Concurrency)
		for _, pl := range playlists {
			if r.stopped(ctx) {
				break
			}
			// Go blocks until a worker is free
			p.Go(func() {
				if r.stopped(ctx) {
					return
				}
				ids, err := l.fetchItemIDs(ctx, r, pl.ID)
				results <- playlistResult{playlist: pl, itemIDs: ids, err: err}
			})
		}
		p.Wait()
		close(results)
	}()

	b := newBuilder()
	missing := make(map[string]error)
	done := 0
	for res := range results {
		if errors.Is(res.err, domain.ErrCancelled) {
			continue
		}
		done++
		if res.err != nil {
			missing[res.playlist.ID] = res.err
			l.logger.Warn("failed to fetch playlist items",
				"playlistID", res.playlist.ID,
				"title", res.playlist.Title,
				"error", res.err,
			)
		} else {
			b.add(res.playlist, res.itemIDs)
		}
		obs.OnProgress(done, len(playlists))
	}

	if r.stopped(ctx) {
		return nil, nil, domain.ErrCancelled
	}
	return b, missing, nil
}

// fetchItemIDs pages through one playlist in offset order
func (l *Loader) fetchItemIDs(ctx context.Context, r *run, playlistID string) ([]string, error) {
	fetch := func(ctx context.Context, offset, limit int) ([]string, int, error) {
		return l.repo.GetPlaylistItemIDs(ctx, playlistID, offset, limit)
	}

	var ids []string
	for page, err := range paging.Pages(ctx, fetch, l.opts.ItemPageSize) {
		if err != nil {
			if r.stopped(ctx) {
				return nil, domain.ErrCancelled
			}
			return nil, err
		}
		ids = append(ids, page.Items...)
		if r.stopped(ctx) {
			return nil, domain.ErrCancelled
		}
	}
	return ids, nil
}

// cancelled finishes a run that must not publish
func (l *Loader) cancelled(r *run, result *Result, obs Observer) (*Result, error) {
	result.State = LoaderCancelled
	result.FinishedAt = time.Now()

	l.mu.Lock()
	superseded := l.current != r
	if !superseded {
		l.state = LoaderCancelled
		l.current = nil
		l.cache.restoreState()
	}
	l.mu.Unlock()

	if superseded {
		l.logger.Debug("rebuild superseded")
	} else {
		l.logger.Info("rebuild cancelled", "duration", result.FinishedAt.Sub(result.StartedAt))
		obs.OnCancelled()
	}
	return result, domain.ErrCancelled
}

// failed finishes a run in ERROR, leaving the previous index visible
func (l *Loader) failed(r *run, result *Result, obs Observer, err error) (*Result, error) {
	l.mu.Lock()
	if l.current != r {
		l.mu.Unlock()
		return l.cancelled(r, result, obs)
	}
	l.state = LoaderError
	l.current = nil
	l.cache.setState(StateError)
	l.mu.Unlock()

	result.State = LoaderError
	result.FinishedAt = time.Now()
	l.logger.Error("rebuild failed", "error", err)
	obs.OnError(err)
	return result, err
}

func firstError(errs map[string]error) error {
	for _, err := range errs {
		return err
	}
	return nil
}
