package tui

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/knowzhq/knowz/pkg/client"
)

// sessionExpiredMsg asks the app to drop a session the backend rejected.
type sessionExpiredMsg struct{}

// navigateMsg asks the app to open another view.
type navigateMsg struct {
	to view
}

// expireOn returns a command that expires the session when err means the
// bearer token was rejected, and nil otherwise.
func expireOn(err error) tea.Cmd {
	if !client.IsAuth(err) {
		return nil
	}
	return func() tea.Msg { return sessionExpiredMsg{} }
}

func navigateTo(v view) tea.Cmd {
	return func() tea.Msg { return navigateMsg{to: v} }
}

// formatTime renders a relative timestamp.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

// formatChatTime renders a message timestamp as HH:MM, or the date when older than a day.
func formatChatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	if time.Since(t) > 24*time.Hour {
		return t.Format("Jan 02")
	}
	return t.Format("15:04")
}

// truncStr truncates a string to maxLen runes, appending an ellipsis if needed.
func truncStr(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen-1]) + "…"
}

// separator renders a dim horizontal rule sized to width.
func separator(width int) string {
	return " " + metaStyle.Render(strings.Repeat("─", max(width-2, 4)))
}

// centerLine pads s so it is centered within width.
func centerLine(s string, width int) string {
	pad := (width - lipgloss.Width(s)) / 2
	if pad < 0 {
		pad = 0
	}
	return strings.Repeat(" ", pad) + s
}
