package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Shimmer animation for the KNOWZ logo.
type shimmerTickMsg time.Time

func shimmerTickCmd() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(t time.Time) tea.Msg {
		return shimmerTickMsg(t)
	})
}

// renderShimmerLogo renders "K N O W Z" as a slow wave of green light,
// from deep moss (#1f3a2a) to bright leaf (#4ade80).
func renderShimmerLogo(frame int) string {
	const text = "KNOWZ"
	n := len(text)
	t := float64(frame)

	var out strings.Builder
	for i := 0; i < n; i++ {
		x := float64(i) / float64(n-1)

		phase := t*0.1 - x*2.5 + math.Sin(t*0.023)*2.0
		b := math.Pow(math.Sin(phase)*0.5+0.5, 1.3)
		b = b*0.75 + math.Sin(t*0.035)*0.12 + 0.18
		b = math.Min(math.Max(b, 0.05), 1.0)

		r := clampByte(31 + b*(74-31))
		g := clampByte(58 + b*(222-58))
		bl := clampByte(42 + b*(128-42))

		s := lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(fmt.Sprintf("#%02X%02X%02X", r, g, bl)))
		out.WriteString(s.Render(string(text[i])))
		if i < n-1 {
			out.WriteString("  ")
		}
	}
	return out.String()
}

func clampByte(v float64) int {
	if v > 255 {
		return 255
	}
	if v < 0 {
		return 0
	}
	return int(v)
}

var (
	// Base styles
	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8890a0"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#e4e4ec")).
			Bold(true)

	normalStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#c0c4d0"))

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#505868"))

	// Help bar
	helpKeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8890a0"))

	helpLabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#505868"))

	// Accent / action styles
	accentStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#34d474"))

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4ade80")).
			Bold(true)

	sectionHeaderStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#8890a0")).
				Bold(true)

	// Outcome styles
	likeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4ade80")).
			Bold(true)

	passStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#b45555")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#e06060"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#f0944a"))

	goldStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#d4a844"))

	skillStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#3ecce4"))

	// Notices and modals
	noticeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#0f1a12")).
			Background(lipgloss.Color("#4ade80")).
			Bold(true).
			Padding(0, 1)

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#f0944a")).
			Padding(1, 2)

	inputPromptStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#34d474")).
				Bold(true)

	inputPlaceholderStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#343c4a"))

	// Chat styles
	chatSelfNameStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#e4e4ec"))

	chatPeerNameStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#4ade80"))

	chatSelfTextStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#c0c4d0"))

	chatTextStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8890a0"))

	chatSepStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#404858"))

	unreadStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#34d474"))
)

// levelColors tints teaching skill levels.
var levelColors = map[string]lipgloss.Color{
	"Beginner":     lipgloss.Color("#8890a0"),
	"Intermediate": lipgloss.Color("#60a0e0"),
	"Advanced":     lipgloss.Color("#b080d0"),
	"Expert":       lipgloss.Color("#d4a844"),
}

// LevelStyle returns a bold style colored for a teaching skill level.
func LevelStyle(level string) lipgloss.Style {
	if c, ok := levelColors[level]; ok {
		return lipgloss.NewStyle().Foreground(c).Bold(true)
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color("#606878")).Bold(true)
}

// percentStyle colors a match percentage from dim to bright.
func percentStyle(pct int) lipgloss.Style {
	switch {
	case pct >= 60:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#4ade80")).Bold(true)
	case pct >= 20:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#fbbf24"))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#606878"))
	}
}

// helpEntry renders a single "key label" pair for help bars.
func helpEntry(key, label string) string {
	return helpKeyStyle.Render(key) + " " + helpLabelStyle.Render(label)
}

// helpView renders the help overlay.
func helpView() string {
	title := titleStyle.Render("K N O W Z")
	quote := lipgloss.NewStyle().
		Foreground(lipgloss.Color("245")).
		Italic(true).
		Render(`"Teach what you know. Learn what you don't."`)

	cmdStyle := lipgloss.NewStyle().Bold(true)
	descStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	sectionStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Bold(true)

	commands := []struct{ cmd, desc string }{
		{"knowz", "Open the terminal client"},
		{"knowz login", "Log in with username and password"},
		{"knowz register", "Create an account"},
		{"knowz logout", "Clear your session"},
		{"knowz whoami", "Show the logged-in user"},
		{"knowz devserver", "Run a local API for development"},
	}
	keys := []struct{ key, desc string }{
		{"1-4", "Dashboard, Discover, Messages, Profile"},
		{"esc", "Back"},
		{"L", "Log out"},
		{"q", "Quit"},
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\n  %s\n\n  %s\n\n", title, quote)
	fmt.Fprintf(&b, "  %s\n", sectionStyle.Render("Commands"))
	for _, c := range commands {
		fmt.Fprintf(&b, "    %s  %s\n", cmdStyle.Render(fmt.Sprintf("%-18s", c.cmd)), descStyle.Render(c.desc))
	}
	fmt.Fprintf(&b, "\n  %s\n", sectionStyle.Render("Keys"))
	for _, k := range keys {
		fmt.Fprintf(&b, "    %s  %s\n", cmdStyle.Render(fmt.Sprintf("%-18s", k.key)), descStyle.Render(k.desc))
	}
	return b.String()
}
