package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/knowzhq/knowz/internal/messaging"
	"github.com/knowzhq/knowz/internal/session"
	"github.com/knowzhq/knowz/pkg/client"
	"github.com/knowzhq/knowz/pkg/domain"
)

// messagesState distinguishes between the match list and a conversation.
type messagesState int

const (
	messagesListState  messagesState = iota
	messagesConvoState               // viewing a single conversation
)

// -- messages --

type matchesLoadedMsg struct {
	matches []domain.Match
	err     error
}

type conversationLoadedMsg struct {
	matchID  string
	messages []domain.Message
	err      error
}

type messageSentMsg struct {
	matchID string
	message *domain.Message
	err     error
}

type messagesPollTickMsg struct {
	gen int
}

type transcriptCopiedMsg struct {
	err error
}

// copyToClipboard is swapped out in tests.
var copyToClipboard = clipboard.WriteAll

func messagesPollCmd(gen int, every time.Duration) tea.Cmd {
	return tea.Tick(every, func(time.Time) tea.Msg {
		return messagesPollTickMsg{gen: gen}
	})
}

// -- model --

type messagesModel struct {
	client       *client.Client
	session      *session.Store
	conv         *messaging.Conversation
	poller       *messaging.Poller
	state        messagesState
	cursor       int
	loading      bool
	input        string
	inputFocused bool
	sending      bool
	status       string
	width        int
	height       int
}

func newMessagesModel(c *client.Client, s *session.Store, poll time.Duration) messagesModel {
	return messagesModel{
		client:  c,
		session: s,
		conv:    messaging.NewConversation(),
		poller:  messaging.NewPoller(poll),
		loading: true,
	}
}

// mount loads the match list and starts the refresh loop.
func (m messagesModel) mount() (messagesModel, tea.Cmd) {
	m.state = messagesListState
	m.inputFocused = false
	gen := m.poller.Start()
	return m, tea.Batch(m.loadMatches(), messagesPollCmd(gen, m.poller.Interval()))
}

// unmount stops the refresh loop; ticks already scheduled are dropped.
func (m messagesModel) unmount() {
	m.poller.Stop()
}

func (m messagesModel) loadMatches() tea.Cmd {
	c := m.client
	return func() tea.Msg {
		ms, err := c.ListMatches(context.Background())
		return matchesLoadedMsg{matches: ms, err: err}
	}
}

func (m messagesModel) loadMessages(matchID string) tea.Cmd {
	if matchID == "" {
		return nil
	}
	c := m.client
	return func() tea.Msg {
		msgs, err := c.GetMessages(context.Background(), matchID)
		return conversationLoadedMsg{matchID: matchID, messages: msgs, err: err}
	}
}

func (m messagesModel) sendMessage(matchID, text string) tea.Cmd {
	c := m.client
	return func() tea.Msg {
		msg, err := c.SendMessage(context.Background(), matchID, text)
		return messageSentMsg{matchID: matchID, message: msg, err: err}
	}
}

func (m messagesModel) myID() string {
	if m.session == nil {
		return ""
	}
	sess, _ := m.session.Current()
	return sess.UserID
}

func (m messagesModel) copyTranscript() tea.Cmd {
	match, ok := m.conv.SelectedMatch()
	if !ok {
		return nil
	}
	text := messaging.Transcript(m.myID(), match.Username, m.conv.Messages())
	return func() tea.Msg {
		return transcriptCopiedMsg{err: copyToClipboard(text)}
	}
}

func (m messagesModel) Update(msg tea.Msg) (messagesModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case matchesLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.conv.SetErr(client.Message(msg.err, messaging.LoadMatchesFailed))
			return m, expireOn(msg.err)
		}
		changed := m.conv.SetMatches(msg.matches)
		m.cursor = m.selectedIndex()
		if changed {
			return m, m.loadMessages(m.conv.Selected())
		}
		return m, nil

	case conversationLoadedMsg:
		if m.conv.ApplyFetch(msg.matchID, msg.messages, msg.err) {
			return m, expireOn(msg.err)
		}
		return m, nil

	case messagesPollTickMsg:
		if !m.poller.Live(msg.gen) {
			return m, nil
		}
		return m, tea.Batch(
			m.loadMessages(m.conv.Selected()),
			messagesPollCmd(msg.gen, m.poller.Interval()),
		)

	case messageSentMsg:
		m.sending = false
		if msg.err != nil {
			m.conv.SendFailed(msg.err)
			return m, expireOn(msg.err)
		}
		m.conv.ApplySent(msg.matchID, *msg.message)
		return m, nil

	case transcriptCopiedMsg:
		if msg.err != nil {
			m.status = "Could not copy transcript: " + msg.err.Error()
		} else {
			m.status = "Transcript copied to clipboard"
		}
		return m, nil

	case tea.KeyMsg:
		if m.conv.Alert() != "" {
			return m.updateAlert(msg)
		}
		switch m.state {
		case messagesConvoState:
			return m.updateConvo(msg)
		default:
			return m.updateList(msg)
		}
	}
	return m, nil
}

// updateAlert handles keys while the blocking limit notice is shown.
func (m messagesModel) updateAlert(msg tea.KeyMsg) (messagesModel, tea.Cmd) {
	switch msg.String() {
	case "enter", "esc":
		m.conv.DismissAlert()
	case "c":
		m.conv.DismissAlert()
		return m, m.copyTranscript()
	}
	return m, nil
}

func (m messagesModel) selectedIndex() int {
	for i, mt := range m.conv.Matches() {
		if mt.ID == m.conv.Selected() {
			return i
		}
	}
	return 0
}

func (m messagesModel) updateList(msg tea.KeyMsg) (messagesModel, tea.Cmd) {
	matches := m.conv.Matches()
	switch msg.String() {
	case "j", "down":
		if m.cursor < len(matches)-1 {
			m.cursor++
		}
	case "k", "up":
		if m.cursor > 0 {
			m.cursor--
		}
	case "enter":
		if m.cursor >= len(matches) {
			return m, nil
		}
		id := matches[m.cursor].ID
		m.state = messagesConvoState
		m.status = ""
		m.input = ""
		m.conv.Select(id)
		m.inputFocused = !m.conv.Limit().Reached()
		return m, m.loadMessages(id)
	case "r":
		return m, m.loadMatches()
	}
	return m, nil
}

func (m messagesModel) updateConvo(msg tea.KeyMsg) (messagesModel, tea.Cmd) {
	key := msg.String()

	if m.inputFocused {
		switch key {
		case "esc":
			m.inputFocused = false
			return m, nil
		case "enter":
			if m.sending {
				return m, nil
			}
			text := strings.TrimSpace(m.input)
			if err := m.conv.CanSend(text); err != nil {
				if errors.Is(err, messaging.ErrLimitReached) {
					m.inputFocused = false
				}
				return m, nil
			}
			m.input = ""
			m.sending = true
			return m, m.sendMessage(m.conv.Selected(), text)
		default:
			if m.conv.Limit().Reached() {
				return m, nil
			}
			m.input = editRune(m.input, key)
			return m, nil
		}
	}

	// Nav mode
	switch key {
	case "esc":
		m.state = messagesListState
		m.input = ""
		m.status = ""
		return m, m.loadMatches()
	case "enter", "i":
		if !m.conv.Limit().Reached() {
			m.inputFocused = true
		}
	case "c":
		return m, m.copyTranscript()
	}
	return m, nil
}

func (m messagesModel) View() string {
	var body string
	switch m.state {
	case messagesConvoState:
		body = m.viewConvo()
	default:
		body = m.viewList()
	}
	if alert := m.conv.Alert(); alert != "" {
		box := modalStyle.Width(min(max(m.width-8, 30), 64)).Render(
			warnStyle.Render(alert) + "\n\n" +
				helpEntry("enter", "ok") + "  " + helpEntry("c", "copy transcript"))
		return "\n" + lipgloss.PlaceHorizontal(m.width, lipgloss.Center, box) + "\n"
	}
	return body
}

func (m messagesModel) viewList() string {
	var b strings.Builder

	b.WriteString(" " + titleStyle.Render("Messages") + "\n")
	b.WriteString(separator(m.width) + "\n")

	if m.loading {
		b.WriteString(" " + dimStyle.Render("loading...") + "\n")
		return b.String()
	}
	if err := m.conv.Err(); err != "" {
		b.WriteString(" " + errorStyle.Render(err) + "\n")
		return b.String()
	}
	matches := m.conv.Matches()
	if len(matches) == 0 {
		b.WriteString("\n " + dimStyle.Render("No matches yet. Start swiping to find skill partners!") + "\n")
		return b.String()
	}

	for i, mt := range matches {
		isActive := i == m.cursor
		cursor := "  "
		if isActive {
			cursor = accentStyle.Render("▸") + " "
		}

		name := normalStyle.Render(fmt.Sprintf("%-18s", truncStr(mt.Username, 18)))
		if isActive {
			name = selectedStyle.Render(fmt.Sprintf("%-18s", truncStr(mt.Username, 18)))
		}

		preview := truncStr(mt.LastMessage, 40)
		if preview == "" {
			preview = "No messages yet"
		}

		unread := ""
		if mt.UnreadCount > 0 {
			unread = " " + unreadStyle.Render(fmt.Sprintf("●%d", mt.UnreadCount))
		}

		fmt.Fprintf(&b, " %s%s  %s  %s%s\n",
			cursor,
			name,
			dimStyle.Render(preview),
			metaStyle.Render(fmt.Sprintf("%d/%d", mt.MessageCount, mt.MaxMessages)),
			unread,
		)
	}

	if m.status != "" {
		b.WriteString("\n " + dimStyle.Render(m.status) + "\n")
	}
	return b.String()
}

func (m messagesModel) viewConvo() string {
	var b strings.Builder

	match, _ := m.conv.SelectedMatch()
	limit := m.conv.Limit()
	header := " " + titleStyle.Render(match.Username) + "  " +
		metaStyle.Render(fmt.Sprintf("%d/%d messages", limit.Current, limit.Max))
	if msgs := m.conv.Messages(); len(msgs) > 0 {
		if ago := formatTime(msgs[len(msgs)-1].Time()); ago != "" {
			header += "  " + dimStyle.Render("last message "+ago)
		}
	}
	b.WriteString(header + "\n")
	b.WriteString(separator(m.width) + "\n")

	footer := m.footerLines()
	chrome := 2 + len(footer) + 1 // header + sep + footer + input
	viewportHeight := max(m.height-chrome, 2)

	msgs := m.conv.Messages()
	if err := m.conv.Err(); err != "" && len(msgs) == 0 {
		for i := 1; i < viewportHeight; i++ {
			b.WriteByte('\n')
		}
		b.WriteString(" " + errorStyle.Render(err) + "\n")
	} else if len(msgs) == 0 {
		for i := 1; i < viewportHeight; i++ {
			b.WriteByte('\n')
		}
		b.WriteString(" " + dimStyle.Render("No messages yet. Start the conversation!") + "\n")
	} else {
		var allLines []string
		for _, msg := range msgs {
			allLines = append(allLines, strings.Split(m.renderMessage(msg, match.Username), "\n")...)
		}

		// Show last N lines
		start := max(len(allLines)-viewportHeight, 0)
		visible := allLines[start:]
		for i := len(visible); i < viewportHeight; i++ {
			b.WriteByte('\n')
		}
		for _, line := range visible {
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}

	for _, line := range footer {
		b.WriteString(line + "\n")
	}
	b.WriteString(m.renderInput())
	return b.String()
}

// footerLines are the status, warning and limit lines under the conversation.
func (m messagesModel) footerLines() []string {
	var lines []string
	limit := m.conv.Limit()
	if err := m.conv.Err(); err != "" && len(m.conv.Messages()) > 0 {
		lines = append(lines, " "+errorStyle.Render(err))
	}
	if w := limit.Warning(); w != "" {
		lines = append(lines, " "+warnStyle.Render(w))
	}
	if limit.Reached() {
		lines = append(lines, " "+warnStyle.Render(messaging.LimitReachedNotice))
	}
	if m.status != "" {
		lines = append(lines, " "+dimStyle.Render(m.status))
	}
	return lines
}

func (m messagesModel) renderMessage(msg domain.Message, peer string) string {
	timeStr := fmt.Sprintf("%8s", formatChatTime(msg.Time()))
	timePart := metaStyle.Render(timeStr)
	sep := chatSepStyle.Render(" · ")

	isSelf := msg.SenderID == m.myID()
	namePart := chatPeerNameStyle.Render(peer)
	bodyStyle := chatTextStyle
	if isSelf {
		namePart = chatSelfNameStyle.Render("you")
		bodyStyle = chatSelfTextStyle
	}

	bodyWidth := max(m.width-26, 20)
	wrapped := lipgloss.NewStyle().Width(bodyWidth).Render(msg.Text)
	lines := strings.Split(wrapped, "\n")

	result := " " + timePart + "  " + namePart + sep + bodyStyle.Render(lines[0])
	if len(lines) > 1 {
		indent := strings.Repeat(" ", 15)
		for _, line := range lines[1:] {
			result += "\n" + indent + bodyStyle.Render(line)
		}
	}
	return result
}

func (m messagesModel) renderInput() string {
	const timeIndent = "          "

	sep := chatSepStyle.Render(" · ")
	namePart := chatSelfNameStyle.Render("you")
	switch {
	case m.conv.Limit().Reached():
		return timeIndent + namePart + sep + inputPlaceholderStyle.Render("message limit reached")
	case m.sending:
		return timeIndent + namePart + sep + dimStyle.Render("sending...")
	case !m.inputFocused && m.input == "":
		return timeIndent + namePart + sep + inputPlaceholderStyle.Render("type a message...")
	case !m.inputFocused:
		return timeIndent + namePart + sep + dimStyle.Render(m.input)
	}
	return timeIndent + namePart + sep + chatSelfTextStyle.Render(m.input) + accentStyle.Render("█")
}

func (m messagesModel) helpKeys() string {
	if m.conv.Alert() != "" {
		return helpEntry("enter", "ok") + "  " + helpEntry("c", "copy transcript")
	}
	switch m.state {
	case messagesConvoState:
		if m.inputFocused {
			return helpEntry("enter", "send") + "  " + helpEntry("esc", "nav")
		}
		return helpEntry("enter", "type") + "  " + helpEntry("c", "copy") + "  " + helpEntry("esc", "back")
	default:
		return helpEntry("j/k", "nav") + "  " + helpEntry("enter", "open") + "  " + helpEntry("r", "refresh") + "  " + helpEntry("h", "help") + "  " + helpEntry("q", "quit")
	}
}
