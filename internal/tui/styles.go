package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/vango-dev/vstore/pkg/demo"
)

// palette holds the colors of one theme.
type palette struct {
	Text   string
	Muted  string
	Accent string
	Border string
}

var palettes = map[demo.Theme]palette{
	demo.ThemeLight:  {Text: "#1f2937", Muted: "#6b7280", Accent: "#2563eb", Border: "#d1d5db"},
	demo.ThemeDark:   {Text: "#e5e7eb", Muted: "#9ca3af", Accent: "#60a5fa", Border: "#374151"},
	demo.ThemeSystem: {Text: "#d0d0d0", Muted: "#8a8a8a", Accent: "#5fafd7", Border: "#585858"},
}

// styles are the lipgloss styles derived from a palette.
type styles struct {
	Title  lipgloss.Style
	Label  lipgloss.Style
	Value  lipgloss.Style
	Muted  lipgloss.Style
	Panel  lipgloss.Style
	Status lipgloss.Style
}

func stylesFor(theme demo.Theme) styles {
	p, ok := palettes[theme]
	if !ok {
		p = palettes[demo.ThemeSystem]
	}
	return styles{
		Title: lipgloss.NewStyle().
			Foreground(lipgloss.Color(p.Accent)).
			Bold(true),
		Label: lipgloss.NewStyle().
			Foreground(lipgloss.Color(p.Muted)).
			Width(14),
		Value: lipgloss.NewStyle().
			Foreground(lipgloss.Color(p.Text)).
			Bold(true),
		Muted: lipgloss.NewStyle().
			Foreground(lipgloss.Color(p.Muted)),
		Panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(p.Border)).
			Padding(0, 1),
		Status: lipgloss.NewStyle().
			Foreground(lipgloss.Color(p.Accent)).
			Italic(true),
	}
}
