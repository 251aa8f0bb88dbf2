package domain

import (
	"context"
	"fmt"
)

// Playlist is the metadata of one user playlist as reported by the remote service
type Playlist struct {
	ID        string // Playlist identifier
	Title     string // Display title
	ItemCount int    // Number of items reported by the listing
	Editable  bool   // Whether the user may add/remove items
}

// GetDescription returns secondary info for display
func (p *Playlist) GetDescription() string {
	if p.ItemCount == 1 {
		return "1 item"
	}
	return fmt.Sprintf("%d items", p.ItemCount)
}

// Direction is the kind of membership mutation
type Direction int

const (
	DirectionAdd Direction = iota
	DirectionRemove
)

// String returns a human-readable representation of the direction
func (d Direction) String() string {
	switch d {
	case DirectionAdd:
		return "add"
	case DirectionRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// PlaylistRepository: Network operations (implemented by the remote client).
// Paged methods return (page, totalCount, error).
type PlaylistRepository interface {
	GetPlaylists(ctx context.Context, offset, limit int) ([]*Playlist, int, error)
	GetPlaylistItemIDs(ctx context.Context, playlistID string, offset, limit int) ([]string, int, error)
	AddToPlaylist(ctx context.Context, playlistID string, itemIDs []string) error
	RemoveFromPlaylist(ctx context.Context, playlistID string, itemIDs []string) error
}
