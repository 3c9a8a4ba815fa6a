package cli

import "github.com/charmbracelet/lipgloss"

// Styles is the terminal palette shared by the help renderer and error
// output.
type Styles struct {
	Blue    lipgloss.Style
	Cyan    lipgloss.Style
	Orange  lipgloss.Style
	Violet  lipgloss.Style
	Red     lipgloss.Style
	Muted   lipgloss.Style
	Italic  lipgloss.Style
	Section lipgloss.Style
	Title   lipgloss.Style
}

// DefaultStyles uses the basic ANSI palette so it respects the user's
// terminal theme.
var DefaultStyles = Styles{
	Blue:    lipgloss.NewStyle().Foreground(lipgloss.Color("4")),
	Cyan:    lipgloss.NewStyle().Foreground(lipgloss.Color("6")),
	Orange:  lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
	Violet:  lipgloss.NewStyle().Foreground(lipgloss.Color("5")),
	Red:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1")),
	Muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	Italic:  lipgloss.NewStyle().Italic(true),
	Section: lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("3")),
	Title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("3")),
}
