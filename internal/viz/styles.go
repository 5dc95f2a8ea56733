package viz

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// styles is the set of lipgloss styles the live view renders with, derived
// from a Theme.
type styles struct {
	canvas  lipgloss.Style
	stats   lipgloss.Style
	header  lipgloss.Style
	label   lipgloss.Style
	value   lipgloss.Style
	active  lipgloss.Style
	paused  lipgloss.Style
	warning lipgloss.Style
	graph   lipgloss.Style
	help    lipgloss.Style
	good    lipgloss.Style
	bad     lipgloss.Style
}

func newStyles(t Theme) styles {
	return styles{
		canvas:  lipgloss.NewStyle().Padding(1, 2).Foreground(t.Text),
		stats:   lipgloss.NewStyle().Border(lipgloss.NormalBorder(), false, false, false, true).BorderForeground(t.Muted).Padding(1, 2).Width(48),
		header:  lipgloss.NewStyle().Foreground(t.Primary).Bold(true).MarginBottom(1),
		label:   lipgloss.NewStyle().Foreground(t.Muted).Width(14),
		value:   lipgloss.NewStyle().Foreground(t.Text),
		active:  lipgloss.NewStyle().Foreground(t.Good).Bold(true),
		paused:  lipgloss.NewStyle().Foreground(t.Warning).Bold(true),
		warning: lipgloss.NewStyle().Foreground(t.Warning),
		graph:   lipgloss.NewStyle().Foreground(t.Accent).Padding(1, 0),
		help:    lipgloss.NewStyle().Foreground(t.Muted).MarginTop(1),
		good:    lipgloss.NewStyle().Foreground(t.Good),
		bad:     lipgloss.NewStyle().Foreground(t.Error),
	}
}

// Gauge renders value against limit as a bar of the given width. Values past
// the limit fill the bar and render in the error style.
func (s styles) Gauge(value, limit float64, width int) string {
	if limit <= 0 {
		return strings.Repeat("░", width)
	}
	ratio := value / limit
	filled := int(ratio * float64(width))
	filled = max(0, min(filled, width))

	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	if ratio >= 1 {
		return s.bad.Render(bar)
	}
	return s.good.Render(bar)
}
