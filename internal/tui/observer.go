package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mmcdole/setlist/internal/membership"
)

// ChannelObserver adapts membership.Observer to a channel for Bubble Tea.
type ChannelObserver struct {
	ch chan<- tea.Msg
}

// NewChannelObserver creates a new channel-based observer.
func NewChannelObserver(ch chan<- tea.Msg) *ChannelObserver {
	return &ChannelObserver{ch: ch}
}

func (o *ChannelObserver) OnLoadingStarted() {
	o.ch <- RebuildStartedMsg{}
}

// OnProgress sends progress to the channel (non-blocking if full).
func (o *ChannelObserver) OnProgress(current, total int) {
	select {
	case o.ch <- RebuildProgressMsg{Current: current, Total: total}:
	default:
	}
}

func (o *ChannelObserver) OnReady(snapshot *membership.Snapshot) {
	o.ch <- CacheReadyMsg{Snapshot: snapshot}
}

func (o *ChannelObserver) OnError(err error) {
	o.ch <- RebuildErrorMsg{Err: err}
}

func (o *ChannelObserver) OnCancelled() {
	o.ch <- RebuildCancelledMsg{}
}

// listenCmd waits for the next observer message
func listenCmd(ch <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-ch
	}
}
