package membership

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mmcdole/setlist/internal/domain"
)

// PendingToggle is a mutation in flight for one (item, playlist) pair
type PendingToggle struct {
	ItemID     string
	PlaylistID string
	Direction  domain.Direction
	Prior      bool // membership before the toggle started

	done chan struct{}
}

// ToggleError reports a toggle that left the cache untouched.
// Prior is the membership the caller should restore on screen.
type ToggleError struct {
	ItemID     string
	PlaylistID string
	Direction  domain.Direction
	Prior      bool
	Err        error
}

func (e *ToggleError) Error() string {
	return fmt.Sprintf("failed to %s item %s (playlist %s): %v", e.Direction, e.ItemID, e.PlaylistID, e.Err)
}

func (e *ToggleError) Unwrap() error {
	return e.Err
}

type pairKey struct {
	itemID     string
	playlistID string
}

// Coordinator applies add/remove toggles to the remote service and then to the cache
type Coordinator struct {
	repo   domain.PlaylistRepository
	cache  *Cache
	logger *slog.Logger

	mu      sync.Mutex
	pending map[pairKey]*PendingToggle
}

// NewCoordinator creates a coordinator mutating cache
func NewCoordinator(repo domain.PlaylistRepository, cache *Cache, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		repo:    repo,
		cache:   cache,
		logger:  logger,
		pending: make(map[pairKey]*PendingToggle),
	}
}

// Pending returns the toggle in flight for the pair, or nil
func (c *Coordinator) Pending(itemID, playlistID string) *PendingToggle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending[pairKey{itemID, playlistID}]
}

// Toggle runs one mutation. A second toggle on a pair that is still in flight
// fails with domain.ErrAlreadyPending.
func (c *Coordinator) Toggle(ctx context.Context, itemID, playlistID string, dir domain.Direction) (*Snapshot, error) {
	c.mu.Lock()
	key := pairKey{itemID, playlistID}
	if _, ok := c.pending[key]; ok {
		c.mu.Unlock()
		return nil, &ToggleError{
			ItemID:     itemID,
			PlaylistID: playlistID,
			Direction:  dir,
			Prior:      c.cache.Read().Contains(itemID, playlistID),
			Err:        domain.ErrAlreadyPending,
		}
	}
	pt := c.register(key, dir)
	c.mu.Unlock()

	defer c.release(key, pt)
	return c.apply(ctx, pt)
}

// ToggleQueued waits for any toggle in flight on the pair and then runs
func (c *Coordinator) ToggleQueued(ctx context.Context, itemID, playlistID string, dir domain.Direction) (*Snapshot, error) {
	key := pairKey{itemID, playlistID}
	for {
		c.mu.Lock()
		existing, ok := c.pending[key]
		if !ok {
			pt := c.register(key, dir)
			c.mu.Unlock()

			defer c.release(key, pt)
			return c.apply(ctx, pt)
		}
		c.mu.Unlock()

		select {
		case <-existing.done:
		case <-ctx.Done():
			return nil, &ToggleError{
				ItemID:     itemID,
				PlaylistID: playlistID,
				Direction:  dir,
				Prior:      c.cache.Read().Contains(itemID, playlistID),
				Err:        ctx.Err(),
			}
		}
	}
}

// register must be called with mu held
func (c *Coordinator) register(key pairKey, dir domain.Direction) *PendingToggle {
	pt := &PendingToggle{
		ItemID:     key.itemID,
		PlaylistID: key.playlistID,
		Direction:  dir,
		done:       make(chan struct{}),
	}
	c.pending[key] = pt
	return pt
}

func (c *Coordinator) release(key pairKey, pt *PendingToggle) {
	c.mu.Lock()
	delete(c.pending, key)
	c.mu.Unlock()
	close(pt.done)
}

func (c *Coordinator) apply(ctx context.Context, pt *PendingToggle) (*Snapshot, error) {
	snap := c.cache.Read()
	pt.Prior = snap.Contains(pt.ItemID, pt.PlaylistID)

	fail := func(err error) (*Snapshot, error) {
		return nil, &ToggleError{
			ItemID:     pt.ItemID,
			PlaylistID: pt.PlaylistID,
			Direction:  pt.Direction,
			Prior:      pt.Prior,
			Err:        err,
		}
	}

	if snap.Playlist(pt.PlaylistID) == nil {
		return fail(fmt.Errorf("%w: %s", domain.ErrNotFound, pt.PlaylistID))
	}

	if pt.Prior == (pt.Direction == domain.DirectionAdd) {
		c.logger.Debug("toggle already reflected in cache",
			"itemID", pt.ItemID, "playlistID", pt.PlaylistID, "direction", pt.Direction.String())
		return snap, nil
	}

	var err error
	switch pt.Direction {
	case domain.DirectionAdd:
		err = c.repo.AddToPlaylist(ctx, pt.PlaylistID, []string{pt.ItemID})
	case domain.DirectionRemove:
		err = c.repo.RemoveFromPlaylist(ctx, pt.PlaylistID, []string{pt.ItemID})
	default:
		err = fmt.Errorf("unknown direction %d", pt.Direction)
	}
	if err != nil {
		c.logger.Error("failed to toggle membership",
			"error", err,
			"itemID", pt.ItemID,
			"playlistID", pt.PlaylistID,
			"direction", pt.Direction.String(),
		)
		return fail(err)
	}

	next, err := c.cache.Mutate(pt.ItemID, pt.PlaylistID, pt.Direction)
	if err != nil {
		// The playlist vanished in a rebuild published while the call was in flight
		c.logger.Warn("remote toggle succeeded but playlist left the cache",
			"itemID", pt.ItemID, "playlistID", pt.PlaylistID)
		return fail(err)
	}

	c.logger.Debug("toggled membership",
		"itemID", pt.ItemID,
		"playlistID", pt.PlaylistID,
		"direction", pt.Direction.String(),
		"version", next.Version,
	)
	return next, nil
}
