package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	accent  = lipgloss.Color("#E5A00D")
	surface = lipgloss.Color("#1F2937")
	cursor  = lipgloss.Color("#374151")
	muted   = lipgloss.Color("#6B7280")
	text    = lipgloss.Color("#9CA3AF")
	bright  = lipgloss.Color("#F9FAFB")
	danger  = lipgloss.Color("#EF4444")
)

var (
	DimStyle   = lipgloss.NewStyle().Foreground(muted)
	ErrorStyle = lipgloss.NewStyle().Foreground(danger)

	SpinnerStyle = lipgloss.NewStyle().Foreground(accent)
)

// Playlist rows, by priority: cursor, pending toggle, member, other
var (
	SelectedRowStyle = lipgloss.NewStyle().Foreground(bright).Background(cursor)
	PendingRowStyle  = lipgloss.NewStyle().Foreground(muted).Italic(true)
	MemberRowStyle   = lipgloss.NewStyle().Foreground(accent)
	NormalRowStyle   = lipgloss.NewStyle().Foreground(text)
)

var (
	ModalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Background(surface).
			Padding(1, 2)

	ModalTitleStyle = lipgloss.NewStyle().Foreground(bright).Bold(true).MarginBottom(1)
)

// Pad truncates or right-pads s to exactly width cells
func Pad(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if lipgloss.Width(s) > width {
		r := []rune(s)
		for len(r) > 0 && lipgloss.Width(string(r))+1 > width {
			r = r[:len(r)-1]
		}
		s = string(r) + "…"
	}
	return s + strings.Repeat(" ", max(width-lipgloss.Width(s), 0))
}
