package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sahilm/fuzzy"

	"github.com/mmcdole/setlist/internal/domain"
	"github.com/mmcdole/setlist/internal/membership"
	"github.com/mmcdole/setlist/internal/tui/styles"
)

// MembershipService is what the picker needs from the playlist service
type MembershipService interface {
	Rebuild(ctx context.Context, obs membership.Observer) (*membership.Result, error)
	Cancel()
	Snapshot() *membership.Snapshot
	Toggle(ctx context.Context, itemID, playlistID string, dir domain.Direction) (*membership.Snapshot, error)
}

// playlistSource implements sahilm/fuzzy.Source over playlist titles
type playlistSource []*domain.Playlist

func (s playlistSource) String(i int) string { return s[i].Title }
func (s playlistSource) Len() int            { return len(s) }

// Picker shows every editable playlist with a check mark for those containing one item.
// Toggles are applied optimistically and reverted when the service rejects them.
type Picker struct {
	ctx    context.Context
	svc    MembershipService
	itemID string
	keys   KeyMap

	events   chan tea.Msg
	observer *ChannelObserver

	spinner   spinner.Model
	filter    textinput.Model
	filtering bool

	loading  bool
	progress RebuildProgressMsg

	snapshot  *membership.Snapshot
	playlists []*domain.Playlist // filtered view
	checked   map[string]bool    // shown state, optimistic while pending
	pending   map[string]bool

	cursor    int
	status    string
	statusErr bool

	width  int
	height int
}

// NewPicker creates a picker for itemID
func NewPicker(ctx context.Context, svc MembershipService, itemID string) *Picker {
	events := make(chan tea.Msg, 16)

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	sp.Style = styles.SpinnerStyle

	ti := textinput.New()
	ti.Placeholder = "Filter playlists..."
	ti.Prompt = "/ "
	ti.CharLimit = 50

	p := &Picker{
		ctx:      ctx,
		svc:      svc,
		itemID:   itemID,
		keys:     DefaultKeyMap(),
		events:   events,
		observer: NewChannelObserver(events),
		spinner:  sp,
		filter:   ti,
		checked:  make(map[string]bool),
		pending:  make(map[string]bool),
	}
	p.applySnapshot(svc.Snapshot())
	return p
}

// Init starts the first rebuild
func (p *Picker) Init() tea.Cmd {
	return tea.Batch(p.spinner.Tick, p.rebuildCmd(), listenCmd(p.events))
}

func (p *Picker) rebuildCmd() tea.Cmd {
	p.loading = true
	return func() tea.Msg {
		// Outcome arrives through the observer
		p.svc.Rebuild(p.ctx, p.observer)
		return nil
	}
}

func (p *Picker) toggleCmd(playlistID string, dir domain.Direction) tea.Cmd {
	return func() tea.Msg {
		snap, err := p.svc.Toggle(p.ctx, p.itemID, playlistID, dir)
		return ToggleResultMsg{PlaylistID: playlistID, Snapshot: snap, Err: err}
	}
}

// Update handles all messages
func (p *Picker) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		p.width, p.height = msg.Width, msg.Height
		return p, nil

	case tea.KeyMsg:
		return p.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		p.spinner, cmd = p.spinner.Update(msg)
		return p, cmd

	case RebuildStartedMsg:
		p.loading = true
		p.progress = RebuildProgressMsg{}
		return p, listenCmd(p.events)

	case RebuildProgressMsg:
		p.progress = msg
		return p, listenCmd(p.events)

	case CacheReadyMsg:
		p.loading = false
		p.applySnapshot(msg.Snapshot)
		if len(msg.Snapshot.Missing) > 0 {
			p.setStatus(fmt.Sprintf("%d playlist(s) could not be loaded", len(msg.Snapshot.Missing)), false)
		} else {
			p.setStatus("", false)
		}
		return p, listenCmd(p.events)

	case RebuildErrorMsg:
		p.loading = false
		p.setStatus("Could not load playlists", true)
		return p, listenCmd(p.events)

	case RebuildCancelledMsg:
		p.loading = false
		p.setStatus("Rebuild cancelled", false)
		return p, listenCmd(p.events)

	case ToggleResultMsg:
		return p.handleToggleResult(msg)
	}
	return p, nil
}

func (p *Picker) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if p.filtering {
		switch {
		case key.Matches(msg, p.keys.Escape):
			p.filtering = false
			p.filter.Blur()
			p.filter.SetValue("")
			p.refilter()
			return p, nil
		case msg.String() == "enter":
			p.filtering = false
			p.filter.Blur()
			return p, nil
		}
		var cmd tea.Cmd
		p.filter, cmd = p.filter.Update(msg)
		p.refilter()
		return p, cmd
	}

	switch {
	case key.Matches(msg, p.keys.Quit):
		p.svc.Cancel()
		return p, tea.Quit
	case key.Matches(msg, p.keys.Up):
		if p.cursor > 0 {
			p.cursor--
		}
	case key.Matches(msg, p.keys.Down):
		if p.cursor < len(p.playlists)-1 {
			p.cursor++
		}
	case key.Matches(msg, p.keys.Filter):
		p.filtering = true
		return p, p.filter.Focus()
	case key.Matches(msg, p.keys.Refresh):
		if !p.loading {
			return p, p.rebuildCmd()
		}
	case key.Matches(msg, p.keys.Escape):
		if p.loading {
			p.svc.Cancel()
		} else if p.filter.Value() != "" {
			p.filter.SetValue("")
			p.refilter()
		}
	case key.Matches(msg, p.keys.Toggle):
		return p, p.toggleSelected()
	}
	return p, nil
}

// toggleSelected flips the check mark at once and sends the toggle
func (p *Picker) toggleSelected() tea.Cmd {
	if p.cursor >= len(p.playlists) {
		return nil
	}
	pl := p.playlists[p.cursor]
	if p.pending[pl.ID] {
		p.setStatus("Still saving "+pl.Title, false)
		return nil
	}

	dir := domain.DirectionAdd
	if p.checked[pl.ID] {
		dir = domain.DirectionRemove
	}
	p.checked[pl.ID] = dir == domain.DirectionAdd
	p.pending[pl.ID] = true
	return p.toggleCmd(pl.ID, dir)
}

func (p *Picker) handleToggleResult(msg ToggleResultMsg) (tea.Model, tea.Cmd) {
	delete(p.pending, msg.PlaylistID)

	if msg.Err != nil {
		var toggleErr *membership.ToggleError
		if errors.As(msg.Err, &toggleErr) {
			p.checked[msg.PlaylistID] = toggleErr.Prior
		} else {
			p.checked[msg.PlaylistID] = !p.checked[msg.PlaylistID]
		}
		p.setStatus(toggleFailure(msg.Err), true)
		return p, nil
	}

	p.applySnapshot(msg.Snapshot)
	return p, nil
}

func toggleFailure(err error) string {
	switch {
	case errors.Is(err, domain.ErrAlreadyPending):
		return "Change already in progress"
	case errors.Is(err, domain.ErrRateLimited):
		return "Server is busy, try again shortly"
	case errors.Is(err, domain.ErrTimeout):
		return "Server did not respond in time"
	case errors.Is(err, domain.ErrNotFound):
		return "Playlist no longer exists"
	default:
		return "Could not update playlist"
	}
}

// applySnapshot takes membership from snap for every playlist without a toggle in flight
func (p *Picker) applySnapshot(snap *membership.Snapshot) {
	if snap == nil {
		return
	}
	p.snapshot = snap
	for _, pl := range snap.Playlists() {
		if !p.pending[pl.ID] {
			p.checked[pl.ID] = snap.Contains(p.itemID, pl.ID)
		}
	}
	p.refilter()
}

func (p *Picker) refilter() {
	all := p.snapshot.Playlists()
	query := strings.TrimSpace(p.filter.Value())
	if query == "" {
		p.playlists = all
	} else {
		matches := fuzzy.FindFrom(query, playlistSource(all))
		p.playlists = make([]*domain.Playlist, len(matches))
		for i, m := range matches {
			p.playlists[i] = all[m.Index]
		}
	}
	if p.cursor >= len(p.playlists) {
		p.cursor = max(len(p.playlists)-1, 0)
	}
}

func (p *Picker) setStatus(msg string, isErr bool) {
	p.status = msg
	p.statusErr = isErr
}

// View renders the picker
func (p *Picker) View() string {
	width := 48
	if p.width > 0 && p.width < 60 {
		width = p.width - 10
	}
	rowWidth := width - 4

	var lines []string
	lines = append(lines, styles.ModalTitleStyle.Render("Playlists for "+p.itemID))

	if p.filtering || p.filter.Value() != "" {
		lines = append(lines, p.filter.View(), "")
	}

	if len(p.playlists) == 0 && !p.loading {
		lines = append(lines, styles.DimStyle.Render("No editable playlists"))
	}

	for i, pl := range p.playlists {
		checkbox := "[ ]"
		if p.checked[pl.ID] {
			checkbox = "[x]"
		}
		line := styles.Pad(checkbox+" "+pl.Title, rowWidth-10) + styles.Pad(pl.GetDescription(), 10)

		switch {
		case i == p.cursor:
			line = styles.SelectedRowStyle.Render(line)
		case p.pending[pl.ID]:
			line = styles.PendingRowStyle.Render(line)
		case p.checked[pl.ID]:
			line = styles.MemberRowStyle.Render(line)
		default:
			line = styles.NormalRowStyle.Render(line)
		}
		lines = append(lines, line)
	}

	lines = append(lines, "")
	switch {
	case p.loading && p.progress.Total > 0:
		lines = append(lines, p.spinner.View()+" "+styles.DimStyle.Render(
			fmt.Sprintf("Loading playlists %d/%d", p.progress.Current, p.progress.Total)))
	case p.loading:
		lines = append(lines, p.spinner.View()+" "+styles.DimStyle.Render("Loading playlists"))
	case p.status != "" && p.statusErr:
		lines = append(lines, styles.ErrorStyle.Render(p.status))
	case p.status != "":
		lines = append(lines, styles.DimStyle.Render(p.status))
	}

	lines = append(lines, styles.DimStyle.Render(helpLine(p.keys.Toggle, p.keys.Filter, p.keys.Refresh, p.keys.Quit)))

	return styles.ModalStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// Run shows the picker until the user quits
func Run(ctx context.Context, svc MembershipService, itemID string) error {
	program := tea.NewProgram(NewPicker(ctx, svc, itemID), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := program.Run()
	return err
}
