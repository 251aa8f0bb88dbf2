// Package membership keeps the item -> playlist membership index and the
// machinery that builds and mutates it.
package membership

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/scylladb/go-set/strset"

	"github.com/mmcdole/setlist/internal/domain"
)

// State describes how the published index came to be
type State int

const (
	StateEmpty State = iota
	StateLoading
	StateReady
	StatePartial
	StateError
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "EMPTY"
	case StateLoading:
		return "LOADING"
	case StateReady:
		return "READY"
	case StatePartial:
		return "PARTIAL"
	case StateError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Snapshot is an immutable view of the membership index.
// Sets held by a published snapshot are never modified; derivations copy what they change.
type Snapshot struct {
	index     map[string]*strset.Set      // item id -> playlist ids
	playlists map[string]*domain.Playlist // playlist id -> metadata

	Version uint64
	State   State
	Missing map[string]error // playlists that failed to load, PARTIAL only
	BuiltAt time.Time
}

func emptySnapshot() *Snapshot {
	return &Snapshot{
		index:     make(map[string]*strset.Set),
		playlists: make(map[string]*domain.Playlist),
		State:     StateEmpty,
	}
}

// Contains reports whether itemID is a member of playlistID
func (s *Snapshot) Contains(itemID, playlistID string) bool {
	set, ok := s.index[itemID]
	return ok && set.Has(playlistID)
}

// PlaylistsFor returns the sorted ids of the playlists containing itemID
func (s *Snapshot) PlaylistsFor(itemID string) []string {
	set, ok := s.index[itemID]
	if !ok {
		return nil
	}
	ids := set.List()
	sort.Strings(ids)
	return ids
}

// Playlist returns the metadata for id, or nil
func (s *Snapshot) Playlist(id string) *domain.Playlist {
	return s.playlists[id]
}

// Playlists returns all playlists sorted by title
func (s *Snapshot) Playlists() []*domain.Playlist {
	out := make([]*domain.Playlist, 0, len(s.playlists))
	for _, p := range s.playlists {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		ti, tj := strings.ToLower(out[i].Title), strings.ToLower(out[j].Title)
		if ti != tj {
			return ti < tj
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// PlaylistCount returns the number of playlists in the snapshot
func (s *Snapshot) PlaylistCount() int { return len(s.playlists) }

// ItemCount returns the number of distinct items with at least one membership
func (s *Snapshot) ItemCount() int { return len(s.index) }

// Validate checks that every referenced playlist has metadata and no item has an empty set
func (s *Snapshot) Validate() error {
	for itemID, set := range s.index {
		if set.IsEmpty() {
			return fmt.Errorf("item %s has an empty membership set", itemID)
		}
		var orphan string
		set.Each(func(pid string) bool {
			if _, ok := s.playlists[pid]; !ok {
				orphan = pid
				return false
			}
			return true
		})
		if orphan != "" {
			return fmt.Errorf("item %s references unknown playlist %s", itemID, orphan)
		}
	}
	return nil
}

// with returns a copy of s in which only itemID's set differs
func (s *Snapshot) with(itemID, playlistID string, dir domain.Direction) *Snapshot {
	next := &Snapshot{
		index:     make(map[string]*strset.Set, len(s.index)+1),
		playlists: s.playlists,
		Version:   s.Version + 1,
		State:     s.State,
		Missing:   s.Missing,
		BuiltAt:   s.BuiltAt,
	}
	for id, set := range s.index {
		next.index[id] = set
	}

	var set *strset.Set
	if cur, ok := s.index[itemID]; ok {
		set = cur.Copy()
	} else {
		set = strset.New()
	}

	switch dir {
	case domain.DirectionAdd:
		set.Add(playlistID)
	case domain.DirectionRemove:
		set.Remove(playlistID)
	}

	if set.IsEmpty() {
		delete(next.index, itemID)
	} else {
		next.index[itemID] = set
	}
	return next
}

// withState returns a copy of s sharing its index under a different state
func (s *Snapshot) withState(state State) *Snapshot {
	next := *s
	next.State = state
	return &next
}

// builder accumulates playlist results into a snapshot under construction.
// It is owned by a single goroutine.
type builder struct {
	index     map[string]*strset.Set
	playlists map[string]*domain.Playlist
}

func newBuilder() *builder {
	return &builder{
		index:     make(map[string]*strset.Set),
		playlists: make(map[string]*domain.Playlist),
	}
}

// add merges one playlist's contribution. Empty ids are skipped.
func (b *builder) add(p *domain.Playlist, itemIDs []string) {
	b.playlists[p.ID] = p
	for _, itemID := range itemIDs {
		if itemID == "" {
			continue
		}
		set, ok := b.index[itemID]
		if !ok {
			set = strset.New()
			b.index[itemID] = set
		}
		set.Add(p.ID)
	}
}

func (b *builder) build(state State, missing map[string]error) *Snapshot {
	return &Snapshot{
		index:     b.index,
		playlists: b.playlists,
		State:     state,
		Missing:   missing,
		BuiltAt:   time.Now(),
	}
}
