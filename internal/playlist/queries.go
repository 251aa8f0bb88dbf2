package playlist

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/mmcdole/setlist/internal/domain"
	"github.com/mmcdole/setlist/internal/membership"
)

// Queries provides synchronous, cache-only reads.
// All methods return instantly and never touch the network.
type Queries struct {
	cache *membership.Cache
}

// NewQueries creates a new Queries instance.
func NewQueries(cache *membership.Cache) *Queries {
	return &Queries{cache: cache}
}

// Snapshot returns the current membership snapshot
func (q *Queries) Snapshot() *membership.Snapshot {
	return q.cache.Read()
}

// Playlists returns the cached editable playlists sorted by title
func (q *Queries) Playlists() []*domain.Playlist {
	return q.cache.Read().Playlists()
}

// Membership returns the playlists containing itemID, sorted by title
func (q *Queries) Membership(itemID string) []*domain.Playlist {
	snap := q.cache.Read()
	var out []*domain.Playlist
	for _, p := range snap.Playlists() {
		if snap.Contains(itemID, p.ID) {
			out = append(out, p)
		}
	}
	return out
}

// Resolve finds a playlist by id, exact title, or closest fuzzy title match
func (q *Queries) Resolve(query string) (*domain.Playlist, error) {
	snap := q.cache.Read()
	if p := snap.Playlist(query); p != nil {
		return p, nil
	}

	playlists := snap.Playlists()
	titles := make([]string, len(playlists))
	for i, p := range playlists {
		if strings.EqualFold(p.Title, query) {
			return p, nil
		}
		titles[i] = p.Title
	}

	ranks := fuzzy.RankFindFold(query, titles)
	if len(ranks) == 0 {
		return nil, fmt.Errorf("%w: %q", domain.ErrNotFound, query)
	}
	sort.Sort(ranks)

	if len(ranks) > 1 && ranks[0].Distance == ranks[1].Distance {
		return nil, fmt.Errorf("%w: %q matches %q and %q", domain.ErrAmbiguous, query, ranks[0].Target, ranks[1].Target)
	}
	return playlists[ranks[0].OriginalIndex], nil
}
