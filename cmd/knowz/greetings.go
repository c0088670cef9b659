package main

import (
	"fmt"
	"io"
	"math/rand/v2"

	"github.com/charmbracelet/lipgloss"
)

var welcomeTips = [...]string{
	"Add a skill you can teach. People find you by what you offer.",
	"A learning goal is half of every match. Add one on the Profile tab.",
	"Swipe right on someone whose skills cover your goals.",
	"Pending approvals wait on your dashboard. Say yes to start talking.",
	"Each match gets a fixed number of messages. Make them count.",
	"Press c in a conversation to copy the transcript.",
	"Decisions made offline are saved and delivered when you reconnect.",
	"Teaching levels help partners know what to expect. Pick one honestly.",
}

var (
	brandStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#4ade80")).Bold(true)
	quoteStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Italic(true)
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

func printHelp() {
	title := brandStyle.Render("K N O W Z")
	quote := quoteStyle.Render("Teach what you know. Learn what you don't.")

	cmdStyle := lipgloss.NewStyle().Bold(true)
	commands := []struct{ cmd, desc string }{
		{"knowz", "Open the skill exchange (interactive TUI)"},
		{"knowz login [user]", "Log in from the command line"},
		{"knowz register", "Create an account"},
		{"knowz logout", "Clear your session"},
		{"knowz whoami", "Show the logged in account"},
		{"knowz devserver", "Run the local API (--addr, --seed)"},
		{"knowz --version", "Show version"},
		{"knowz help", "You are here"},
	}

	fmt.Printf("\n  %s\n\n  %s\n\n  Commands:\n", title, quote)
	for _, c := range commands {
		fmt.Printf("    %s  %s\n", cmdStyle.Render(fmt.Sprintf("%-20s", c.cmd)), mutedStyle.Render(c.desc))
	}
	env := mutedStyle.Render("Environment: KNOWZ_API_URL, KNOWZ_HOME, KNOWZ_LOG_LEVEL, KNOWZ_POLL_INTERVAL")
	fmt.Printf("\n  %s\n\n", env)
}

// printWelcome shows a random getting-started tip after registration.
func printWelcome(out io.Writer) {
	tip := welcomeTips[rand.IntN(len(welcomeTips))]
	fmt.Fprintf(out, "\n%s\n%s\n\n%s\n\n",
		brandStyle.Render("KNOWZ"),
		quoteStyle.Render(tip),
		mutedStyle.Render("Run `knowz` to start swiping."))
}
