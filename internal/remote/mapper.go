package remote

import "github.com/mmcdole/setlist/internal/domain"

// MapPlaylists converts listing DTOs to domain playlists, dropping entries without an id
func MapPlaylists(dtos []playlistDTO) []*domain.Playlist {
	playlists := make([]*domain.Playlist, 0, len(dtos))
	for _, d := range dtos {
		if d.UUID == "" {
			continue
		}
		playlists = append(playlists, &domain.Playlist{
			ID:        d.UUID,
			Title:     d.Title,
			ItemCount: d.NumberOfItems,
			Editable:  d.Editable,
		})
	}
	return playlists
}

// MapItemIDs extracts item ids from a playlist items page.
// Entries are kept one-for-one so the page length still drives pagination.
func MapItemIDs(entries []itemEntryDTO) []string {
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.Item.ID
	}
	return ids
}
