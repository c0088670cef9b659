package tui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/knowzhq/knowz/internal/logging"
	"github.com/knowzhq/knowz/internal/session"
	"github.com/knowzhq/knowz/internal/swipe"
	"github.com/knowzhq/knowz/pkg/client"
)

type view int

const (
	viewAuth view = iota
	viewDashboard
	viewSwiper
	viewMessages
	viewProfile
)

// protected reports whether v requires a session.
func (v view) protected() bool {
	return v != viewAuth
}

// sessionRestoredMsg reports that the stored session has been read.
type sessionRestoredMsg struct {
	err error
}

// outboxFlushedMsg reports the startup delivery of queued decisions.
type outboxFlushedMsg struct {
	result swipe.FlushResult
	err    error
}

// Deps are the collaborators the TUI drives.
type Deps struct {
	Client       *client.Client
	Session      *session.Store
	Outbox       *swipe.Outbox
	Log          *slog.Logger
	PollInterval time.Duration
}

// App is the root Bubbletea model.
type App struct {
	client    *client.Client
	session   *session.Store
	outbox    *swipe.Outbox
	log       *slog.Logger
	history   []view // top is the active view
	auth      authModel
	dashboard dashboardModel
	swiper    swiperModel
	messages  messagesModel
	profile   profileModel
	helpOpen  bool
	width     int
	height    int
	frame     int // logo shimmer animation frame
}

// NewApp creates a new TUI application. The dashboard is requested first;
// the guard decides whether it may render once the session is restored.
func NewApp(d Deps) App {
	if d.Log == nil {
		d.Log = logging.Discard()
	}
	if d.Outbox == nil {
		d.Outbox = swipe.NewOutbox(nil, d.Client, d.Log)
	}
	return App{
		client:    d.Client,
		session:   d.Session,
		outbox:    d.Outbox,
		log:       d.Log,
		history:   []view{viewDashboard},
		auth:      newAuthModel(d.Session),
		dashboard: newDashboardModel(d.Client, d.Session, d.Outbox),
		swiper:    newSwiperModel(d.Client, d.Session, d.Outbox, d.Log),
		messages:  newMessagesModel(d.Client, d.Session, d.PollInterval),
		profile:   newProfileModel(d.Client, d.Session),
	}
}

func (a App) Init() tea.Cmd {
	return tea.Batch(shimmerTickCmd(), a.restore())
}

func (a App) restore() tea.Cmd {
	s := a.session
	return func() tea.Msg {
		return sessionRestoredMsg{err: s.Restore(context.Background())}
	}
}

func (a App) flushOutbox() tea.Cmd {
	o, s := a.outbox, a.session
	return func() tea.Msg {
		sess, ok := s.Current()
		if !ok {
			return nil
		}
		res, err := o.Flush(context.Background(), sess.UserID)
		return outboxFlushedMsg{result: res, err: err}
	}
}

// current returns the active view.
func (a App) current() view {
	return a.history[len(a.history)-1]
}

// access is the guard verdict for the active view.
func (a App) access() session.Access {
	if !a.current().protected() {
		return session.AccessAllow
	}
	return session.Guard(a.session)
}

// show replaces the active view with v and mounts it.
func (a App) show(v view) (App, tea.Cmd) {
	a = a.leave()
	a.history[len(a.history)-1] = v
	return a.mount()
}

// push opens v on top of the active view.
func (a App) push(v view) (App, tea.Cmd) {
	if a.current() == v {
		return a, nil
	}
	a = a.leave()
	a.history = append(a.history, v)
	return a.mount()
}

// back pops the history stack.
func (a App) back() (App, tea.Cmd) {
	if len(a.history) < 2 {
		return a, nil
	}
	a = a.leave()
	a.history = a.history[:len(a.history)-1]
	return a.mount()
}

// leave runs the active view's unmount hook.
func (a App) leave() App {
	if a.current() == viewMessages {
		a.messages.unmount()
	}
	return a
}

// mount starts the active view if the guard allows it, or redirects.
func (a App) mount() (App, tea.Cmd) {
	switch a.access() {
	case session.AccessLoading:
		return a, nil
	case session.AccessRedirect:
		return a.redirect(), nil
	}
	var cmd tea.Cmd
	switch a.current() {
	case viewDashboard:
		cmd = a.dashboard.Init()
	case viewSwiper:
		a.swiper, cmd = a.swiper.mount()
	case viewMessages:
		a.messages, cmd = a.messages.mount()
	case viewProfile:
		cmd = a.profile.Init()
	}
	return a, cmd
}

// redirect replaces the protected view with login so back never returns to it.
func (a App) redirect() App {
	a = a.leave()
	a.history = []view{viewAuth}
	a.helpOpen = false
	return a
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		// Chrome: header(2) + tabs(1) + help(1) = 4 lines
		bodyMsg := tea.WindowSizeMsg{Width: msg.Width, Height: msg.Height - 4}
		a.auth, _ = a.auth.Update(bodyMsg)
		a.dashboard, _ = a.dashboard.Update(bodyMsg)
		a.swiper, _ = a.swiper.Update(bodyMsg)
		a.messages, _ = a.messages.Update(bodyMsg)
		a.profile, _ = a.profile.Update(bodyMsg)
		return a, nil

	case shimmerTickMsg:
		a.frame++
		return a, shimmerTickCmd()

	case sessionRestoredMsg:
		if msg.err != nil {
			a.log.Warn("restore session failed", "error", msg.err)
		}
		next, cmd := a.mount()
		if a.session.IsAuthenticated() {
			return next, tea.Batch(cmd, next.flushOutbox())
		}
		return next, cmd

	case outboxFlushedMsg:
		if msg.err != nil {
			a.log.Warn("startup outbox flush failed", "error", msg.err)
			return a, expireOn(msg.err)
		}
		if msg.result.Delivered > 0 {
			a.log.Info("delivered queued swipes", "delivered", msg.result.Delivered, "remaining", msg.result.Remaining)
		}
		return a, nil

	case authDoneMsg:
		var cmd tea.Cmd
		a.auth, cmd = a.auth.Update(msg)
		if msg.err == nil && a.session.IsAuthenticated() {
			next, mountCmd := a.show(viewDashboard)
			return next, tea.Batch(cmd, mountCmd, next.flushOutbox())
		}
		return a, cmd

	case sessionExpiredMsg:
		if a.session.IsAuthenticated() {
			if err := a.session.Expire(context.Background()); err != nil {
				a.log.Warn("expire session failed", "error", err)
			}
			a.log.Info("session expired")
		}
		return a.redirect(), nil

	case navigateMsg:
		return a.push(msg.to)

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}

		// Help overlay captures all keys when open
		if a.helpOpen {
			switch msg.String() {
			case "h", "esc":
				a.helpOpen = false
			case "q":
				return a, tea.Quit
			}
			return a, nil
		}

		if a.access() != session.AccessAllow {
			return a, nil
		}

		// Global keys (only when not editing)
		if !a.isEditing() {
			switch msg.String() {
			case "h":
				a.helpOpen = true
				return a, nil
			case "q":
				return a, tea.Quit
			case "1":
				return a.tab(viewDashboard)
			case "2":
				return a.tab(viewSwiper)
			case "3":
				return a.tab(viewMessages)
			case "4":
				return a.tab(viewProfile)
			case "L":
				if err := a.session.Logout(context.Background()); err != nil {
					a.log.Warn("logout failed", "error", err)
				}
				return a.redirect(), nil
			case "esc":
				if !a.escOwned() && len(a.history) > 1 {
					return a.back()
				}
			}
		}
	}

	if a.access() != session.AccessAllow {
		return a, nil
	}

	// Results go to the screen that asked for them, even after it was left.
	var cmd tea.Cmd
	switch msg.(type) {
	case dashboardLoadedMsg, approvalDoneMsg, dashboardNoticeExpiredMsg:
		a.dashboard, cmd = a.dashboard.Update(msg)
		return a, cmd
	case candidatesLoadedMsg, swipeAdvanceMsg, swipeResolvedMsg, celebrationExpiredMsg:
		a.swiper, cmd = a.swiper.Update(msg)
		return a, cmd
	case matchesLoadedMsg, conversationLoadedMsg, messageSentMsg, messagesPollTickMsg, transcriptCopiedMsg:
		a.messages, cmd = a.messages.Update(msg)
		return a, cmd
	case profileLoadedMsg, skillAddedMsg, skillRemovedMsg, emailUpdatedMsg:
		a.profile, cmd = a.profile.Update(msg)
		return a, cmd
	}

	switch a.current() {
	case viewAuth:
		a.auth, cmd = a.auth.Update(msg)
	case viewDashboard:
		a.dashboard, cmd = a.dashboard.Update(msg)
	case viewSwiper:
		a.swiper, cmd = a.swiper.Update(msg)
	case viewMessages:
		a.messages, cmd = a.messages.Update(msg)
	case viewProfile:
		a.profile, cmd = a.profile.Update(msg)
	}
	return a, cmd
}

// tab switches the active view in place, like a tab bar.
func (a App) tab(v view) (App, tea.Cmd) {
	if a.current() == v {
		return a, nil
	}
	return a.show(v)
}

// isEditing reports whether keystrokes belong to a text input.
func (a App) isEditing() bool {
	switch a.current() {
	case viewAuth:
		return true
	case viewMessages:
		return a.messages.inputFocused || a.messages.conv.Alert() != ""
	case viewProfile:
		return a.profile.state == profileAdding || a.profile.state == profileEmail
	}
	return false
}

// escOwned reports whether the active view handles esc itself.
func (a App) escOwned() bool {
	switch a.current() {
	case viewMessages:
		return a.messages.state == messagesConvoState
	case viewProfile:
		return a.profile.state != profileNormal
	}
	return false
}

func (a App) View() string {
	// Header: centered shimmer logo
	header := centerLine(renderShimmerLogo(a.frame), a.width)
	statsLine := ""
	if sess, ok := a.session.Current(); ok {
		statsLine = metaStyle.Render("@" + sess.Username)
	}
	header += "\n" + centerLine(statsLine, a.width)

	var tabBar, body, help string
	switch a.access() {
	case session.AccessLoading:
		body = "\n " + dimStyle.Render("Loading...")
		help = " " + helpEntry("ctrl+c", "quit")
	case session.AccessRedirect:
		// Protected views never render without a session.
		body = a.auth.View()
		help = " " + a.auth.helpKeys()
	default:
		body, help = a.body()
		if a.current().protected() {
			tabBar = a.tabBar()
		}
	}

	// Help overlay
	if a.helpOpen {
		body = helpView()
		help = " " + helpEntry("esc", "close")
	}

	// Chrome budget: header(2) + tabs(1) + help(1) = 4 lines + body
	chrome := 4
	body = strings.TrimRight(truncateToHeight(body, a.height-chrome), "\n")

	return fmt.Sprintf("%s\n%s\n%s\n%s", header, tabBar, body, help)
}

func (a App) body() (body, help string) {
	switch a.current() {
	case viewAuth:
		return a.auth.View(), " " + a.auth.helpKeys()
	case viewDashboard:
		return a.dashboard.View(), " " + helpEntry("1-4", "tabs") + "  " + a.dashboard.helpKeys()
	case viewSwiper:
		return a.swiper.View(), " " + helpEntry("1-4", "tabs") + "  " + a.swiper.helpKeys()
	case viewMessages:
		return a.messages.View(), " " + helpEntry("1-4", "tabs") + "  " + a.messages.helpKeys()
	case viewProfile:
		return a.profile.View(), " " + helpEntry("1-4", "tabs") + "  " + a.profile.helpKeys()
	}
	return "", ""
}

func (a App) tabBar() string {
	type tabEntry struct {
		key  string
		name string
		v    view
	}
	tabs := []tabEntry{
		{"1", "Dashboard", viewDashboard},
		{"2", "Discover", viewSwiper},
		{"3", "Messages", viewMessages},
		{"4", "Profile", viewProfile},
	}

	// 4 equal-width columns spread across the terminal
	colWidth := a.width / len(tabs)
	var tabBar strings.Builder
	for _, t := range tabs {
		var label string
		if t.v == a.current() {
			label = accentStyle.Render(t.key) + " " + selectedStyle.Underline(true).Render(t.name)
		} else {
			label = metaStyle.Render(t.key) + " " + dimStyle.Render(t.name)
		}
		if t.v == viewMessages {
			if unread := a.unread(); unread > 0 {
				label += " " + unreadStyle.Render(fmt.Sprintf("●%d", unread))
			}
		}
		labelWidth := lipgloss.Width(label)
		leftPad := max((colWidth-labelWidth)/2, 0)
		rightPad := max(colWidth-labelWidth-leftPad, 0)
		tabBar.WriteString(strings.Repeat(" ", leftPad) + label + strings.Repeat(" ", rightPad))
	}
	return tabBar.String()
}

// unread sums unread counts across the dashboard's match list.
func (a App) unread() int {
	n := 0
	for _, m := range a.dashboard.matches {
		n += m.UnreadCount
	}
	return n
}
