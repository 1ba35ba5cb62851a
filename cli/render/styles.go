package render

import "github.com/charmbracelet/lipgloss"

// Color palette.
var (
	accentColor  = lipgloss.Color("#7C3AED") // Purple
	successColor = lipgloss.Color("#10B981") // Green
	warningColor = lipgloss.Color("#F59E0B") // Amber
	errorColor   = lipgloss.Color("#EF4444") // Red
	mutedColor   = lipgloss.Color("#6B7280") // Gray
)

// State names accepted by Renderer.Styled.
const (
	StateOK      = "ok"
	StateRunning = "running"
	StateStopped = "stopped"
	StateWarning = "warning"
	StateError   = "error"
)

func headerStyle(r *lipgloss.Renderer) lipgloss.Style {
	return r.NewStyle().Bold(true).Foreground(accentColor)
}

// stateStyle returns the style for a state name. Unknown states are
// left unstyled.
func stateStyle(r *lipgloss.Renderer, state string) lipgloss.Style {
	s := r.NewStyle()
	switch state {
	case StateOK, StateRunning:
		return s.Foreground(successColor)
	case StateWarning:
		return s.Foreground(warningColor)
	case StateError:
		return s.Foreground(errorColor).Bold(true)
	case StateStopped:
		return s.Foreground(mutedColor)
	default:
		return s
	}
}
