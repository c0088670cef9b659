// Package messaging holds the state of the match conversations screen:
// the match list, the selected conversation and its messages, and the
// per-match message cap.
package messaging

import (
	"errors"
	"fmt"
	"time"

	"github.com/knowzhq/knowz/pkg/client"
	"github.com/knowzhq/knowz/pkg/domain"
)

const (
	// PollInterval is the default refresh period for the open conversation.
	PollInterval = 15 * time.Second
	// DefaultMaxMessages applies when the server omits max_messages.
	DefaultMaxMessages = 5
)

// User-facing messages.
const (
	LimitReachedAlert  = "Message limit reached for this match. Please exchange contact info to continue your conversation elsewhere."
	LimitReachedNotice = "Message limit reached. Exchange contact info to continue conversation elsewhere."
	SendFailedMessage  = "Failed to send message. Please try again."
	LoadMatchesFailed  = "Failed to load matches"
	LoadMessagesFailed = "Failed to load messages"
)

var (
	ErrNoSelection  = errors.New("messaging: no conversation selected")
	ErrEmptyMessage = errors.New("messaging: message is empty")
	ErrLimitReached = errors.New("messaging: message limit reached")
)

// LimitInfo describes how many messages are left for a match.
type LimitInfo struct {
	Current   int
	Max       int
	Remaining int
}

// Warning returns the low-quota warning, or "" when none applies.
func (l LimitInfo) Warning() string {
	if l.Remaining <= 0 || l.Remaining > 2 {
		return ""
	}
	noun := "messages"
	if l.Remaining == 1 {
		noun = "message"
	}
	return fmt.Sprintf("Only %d %s remaining before limit is reached.", l.Remaining, noun)
}

// Reached reports whether no more messages may be sent.
func (l LimitInfo) Reached() bool { return l.Remaining <= 0 }

// Conversation is the messaging screen's state. It is owned by the UI
// loop and is not safe for concurrent use.
type Conversation struct {
	matches  []domain.Match
	selected string
	messages []domain.Message
	sent     map[string]bool // ids appended locally after a successful send
	err      string
	alert    string
}

// NewConversation returns an empty conversation state.
func NewConversation() *Conversation {
	return &Conversation{sent: make(map[string]bool)}
}

// SetMatches replaces the match list. The current selection is kept when
// it is still present; otherwise the first match is selected. It reports
// whether the selection changed.
func (c *Conversation) SetMatches(ms []domain.Match) bool {
	c.matches = make([]domain.Match, len(ms))
	for i, m := range ms {
		if m.MaxMessages <= 0 {
			m.MaxMessages = DefaultMaxMessages
		}
		c.matches[i] = m
	}
	if _, ok := c.find(c.selected); ok {
		return false
	}
	if len(c.matches) == 0 {
		return c.Select("")
	}
	return c.Select(c.matches[0].ID)
}

// Select switches to matchID and clears the previous conversation's
// messages. It reports whether the selection changed.
func (c *Conversation) Select(matchID string) bool {
	if matchID == c.selected {
		return false
	}
	c.selected = matchID
	c.messages = nil
	c.sent = make(map[string]bool)
	c.err = ""
	return true
}

// ApplyFetch reconciles a fetched message list. Results for a match other
// than the selected one are discarded and false is returned.
func (c *Conversation) ApplyFetch(matchID string, msgs []domain.Message, err error) bool {
	if matchID == "" || matchID != c.selected {
		return false
	}
	if err != nil {
		c.err = client.Message(err, LoadMessagesFailed)
		return true
	}
	c.err = ""
	c.messages = Merge(msgs, c.messages, c.sent)
	if i, ok := c.find(matchID); ok {
		c.matches[i].UnreadCount = 0
	}
	return true
}

// Merge reconciles the server's list with the local one. The server list
// wins and keeps its order; locally sent messages it does not yet contain
// are kept at the end in their local order.
func Merge(server, local []domain.Message, sent map[string]bool) []domain.Message {
	out := make([]domain.Message, 0, len(server))
	seen := make(map[string]bool, len(server))
	for _, m := range server {
		if m.ID != "" && seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		out = append(out, m)
	}
	for _, m := range local {
		if sent[m.ID] && !seen[m.ID] {
			seen[m.ID] = true
			out = append(out, m)
		}
	}
	return out
}

// CanSend checks whether text may be sent to the selected match.
func (c *Conversation) CanSend(text string) error {
	i, ok := c.find(c.selected)
	if !ok {
		return ErrNoSelection
	}
	if text == "" {
		return ErrEmptyMessage
	}
	if c.matches[i].Remaining() == 0 {
		c.alert = LimitReachedAlert
		return ErrLimitReached
	}
	return nil
}

// ApplySent records the server-returned message for matchID.
func (c *Conversation) ApplySent(matchID string, m domain.Message) {
	i, ok := c.find(matchID)
	if !ok {
		return
	}
	c.matches[i].MessageCount++
	c.matches[i].LastMessage = m.Text
	if matchID != c.selected {
		return
	}
	for _, existing := range c.messages {
		if existing.ID == m.ID {
			return
		}
	}
	c.sent[m.ID] = true
	c.messages = append(c.messages, m)
}

// SendFailed converts a send error into display state. A 403 raises the
// blocking limit alert; local messages are never touched.
func (c *Conversation) SendFailed(err error) {
	if client.IsLimitExceeded(err) {
		c.alert = LimitReachedAlert
		return
	}
	c.err = client.Message(err, SendFailedMessage)
}

// Limit returns the cap state of the selected match.
func (c *Conversation) Limit() LimitInfo {
	i, ok := c.find(c.selected)
	if !ok {
		return LimitInfo{}
	}
	m := c.matches[i]
	return LimitInfo{Current: m.MessageCount, Max: m.MaxMessages, Remaining: m.Remaining()}
}

// Matches returns the match list.
func (c *Conversation) Matches() []domain.Match { return c.matches }

// Selected returns the selected match id, or "".
func (c *Conversation) Selected() string { return c.selected }

// SelectedMatch returns the selected match.
func (c *Conversation) SelectedMatch() (domain.Match, bool) {
	i, ok := c.find(c.selected)
	if !ok {
		return domain.Match{}, false
	}
	return c.matches[i], true
}

// Messages returns the selected conversation's messages.
func (c *Conversation) Messages() []domain.Message { return c.messages }

// Err returns the inline error.
func (c *Conversation) Err() string { return c.err }

// SetErr replaces the inline error.
func (c *Conversation) SetErr(msg string) { c.err = msg }

// Alert returns the blocking alert, or "".
func (c *Conversation) Alert() string { return c.alert }

// DismissAlert clears the blocking alert.
func (c *Conversation) DismissAlert() { c.alert = "" }

func (c *Conversation) find(matchID string) (int, bool) {
	if matchID == "" {
		return 0, false
	}
	for i, m := range c.matches {
		if m.ID == matchID {
			return i, true
		}
	}
	return 0, false
}
