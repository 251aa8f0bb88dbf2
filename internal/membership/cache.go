package membership

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/mmcdole/setlist/internal/domain"
)

// Cache holds the current snapshot.
// Readers never lock; Publish and Mutate serialize on mu so neither loses the other's update.
type Cache struct {
	current atomic.Pointer[Snapshot]

	mu      sync.Mutex
	settled State // state of the last non-LOADING snapshot
}

// NewCache creates a cache holding an EMPTY snapshot
func NewCache() *Cache {
	c := &Cache{settled: StateEmpty}
	c.current.Store(emptySnapshot())
	return c
}

// Read returns the current snapshot
func (c *Cache) Read() *Snapshot {
	return c.current.Load()
}

// Publish replaces the current snapshot with s and returns the published copy
func (c *Cache) Publish(s *Snapshot) *Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := *s
	next.Version = c.current.Load().Version + 1
	if next.index == nil {
		next.index = emptySnapshot().index
	}
	if next.playlists == nil {
		next.playlists = emptySnapshot().playlists
	}
	c.current.Store(&next)
	if next.State != StateLoading {
		c.settled = next.State
	}
	return &next
}

// Mutate adds or removes playlistID from itemID's set and publishes the result
func (c *Cache) Mutate(itemID, playlistID string, dir domain.Direction) (*Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cur := c.current.Load()
	if cur.Playlist(playlistID) == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, playlistID)
	}

	next := cur.with(itemID, playlistID, dir)
	c.current.Store(next)
	return next, nil
}

// setState marks the current index with state without changing its contents
func (c *Cache) setState(state State) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.current.Store(c.current.Load().withState(state))
	if state != StateLoading {
		c.settled = state
	}
}

// restoreState undoes a LOADING mark left by a run that did not publish
func (c *Cache) restoreState() {
	c.mu.Lock()
	defer c.mu.Unlock()

	cur := c.current.Load()
	if cur.State == StateLoading {
		c.current.Store(cur.withState(c.settled))
	}
}
