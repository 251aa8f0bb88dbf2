package tui

import "github.com/mmcdole/setlist/internal/membership"

// Message types for the picker

// RebuildStartedMsg signals that the loader entered LOADING
type RebuildStartedMsg struct{}

// RebuildProgressMsg reports finished playlists
type RebuildProgressMsg struct {
	Current int
	Total   int
}

// CacheReadyMsg carries a freshly published snapshot
type CacheReadyMsg struct {
	Snapshot *membership.Snapshot
}

// RebuildErrorMsg signals a rebuild that ended in ERROR
type RebuildErrorMsg struct {
	Err error
}

// RebuildCancelledMsg signals a cancelled rebuild
type RebuildCancelledMsg struct{}

// ToggleResultMsg is the outcome of one toggle
type ToggleResultMsg struct {
	PlaylistID string
	Snapshot   *membership.Snapshot // nil on failure
	Err        error
}
