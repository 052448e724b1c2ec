package tui

import "github.com/charmbracelet/lipgloss"

// Styles contains pre-configured lipgloss styles for the chat view.
type Styles struct {
	Title      lipgloss.Style
	Subtitle   lipgloss.Style
	User       lipgloss.Style
	Assistant  lipgloss.Style
	Meta       lipgloss.Style
	Error      lipgloss.Style
	Help       lipgloss.Style
	InputField lipgloss.Style
}

// DefaultStyles returns the default styles.
func DefaultStyles() *Styles {
	primary := lipgloss.Color("#7C3AED")
	secondary := lipgloss.Color("#06B6D4")
	muted := lipgloss.Color("#6C7086")
	errColour := lipgloss.Color("#F38BA8")
	border := lipgloss.Color("#45475A")

	return &Styles{
		Title:     lipgloss.NewStyle().Bold(true).Foreground(primary),
		Subtitle:  lipgloss.NewStyle().Foreground(muted),
		User:      lipgloss.NewStyle().Bold(true).Foreground(secondary),
		Assistant: lipgloss.NewStyle(),
		Meta:      lipgloss.NewStyle().Italic(true).Foreground(muted),
		Error:     lipgloss.NewStyle().Bold(true).Foreground(errColour),
		Help:      lipgloss.NewStyle().Foreground(muted),
		InputField: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(border).
			Padding(0, 1),
	}
}
