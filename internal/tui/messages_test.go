package tui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/knowzhq/knowz/internal/messaging"
	"github.com/knowzhq/knowz/pkg/client"
	"github.com/knowzhq/knowz/pkg/domain"
)

func newTestMessagesModel() messagesModel {
	m := newMessagesModel(nil, nil, 0)
	m.width = 80
	m.height = 24
	return m
}

func testMatches() []domain.Match {
	return []domain.Match{
		{ID: "2", Username: "sarah_data", LastMessage: "Hey!", MessageCount: 1, UnreadCount: 1, MaxMessages: 5},
		{ID: "3", Username: "mike_design", MessageCount: 3, MaxMessages: 5},
	}
}

func loadedMessages(t *testing.T) messagesModel {
	t.Helper()
	m := newTestMessagesModel()
	m, cmd := m.Update(matchesLoadedMsg{matches: testMatches()})
	if cmd == nil {
		t.Fatal("first match list should fetch the selected conversation")
	}
	return m
}

func TestMessagesListRendersRows(t *testing.T) {
	m := loadedMessages(t)
	if m.conv.Selected() != "2" {
		t.Errorf("selected = %q, want first match", m.conv.Selected())
	}
	v := m.View()
	for _, want := range []string{"sarah_data", "Hey!", "mike_design", "No messages yet", "1/5", "●1"} {
		if !strings.Contains(v, want) {
			t.Errorf("list view missing %q:\n%s", want, v)
		}
	}
}

func TestMessagesEmptyState(t *testing.T) {
	m := newTestMessagesModel()
	m, _ = m.Update(matchesLoadedMsg{})
	if v := m.View(); !strings.Contains(v, "No matches yet") {
		t.Errorf("expected empty state, got:\n%s", v)
	}
}

func TestMessagesLoadFailure(t *testing.T) {
	m := newTestMessagesModel()
	m, _ = m.Update(matchesLoadedMsg{err: errors.New("refused")})
	if v := m.View(); !strings.Contains(v, messaging.LoadMatchesFailed) {
		t.Errorf("expected load failure, got:\n%s", v)
	}
}

func TestMessagesEnterOpensConvo(t *testing.T) {
	m := loadedMessages(t)
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if m.state != messagesConvoState {
		t.Fatalf("state = %d, want convo", m.state)
	}
	if m.conv.Selected() != "3" {
		t.Errorf("selected = %q, want 3", m.conv.Selected())
	}
	if !m.inputFocused {
		t.Error("input should be focused")
	}
	if cmd == nil {
		t.Error("expected fetch command")
	}
}

func TestMessagesFetchForOtherMatchDiscarded(t *testing.T) {
	m := loadedMessages(t)
	m, _ = m.Update(conversationLoadedMsg{matchID: "3", messages: []domain.Message{{ID: "x", Text: "wrong chat"}}})
	if len(m.conv.Messages()) != 0 {
		t.Error("result for a non-selected match should be discarded")
	}
	m, _ = m.Update(conversationLoadedMsg{matchID: "2", messages: []domain.Message{{ID: "m1", SenderID: "2", Text: "Hey!"}}})
	if len(m.conv.Messages()) != 1 {
		t.Error("result for the selected match should apply")
	}
	if got := m.conv.Matches()[0].UnreadCount; got != 0 {
		t.Errorf("unread = %d, want 0 after fetch", got)
	}
}

func TestMessagesConvoRendersMessages(t *testing.T) {
	m := loadedMessages(t)
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m, _ = m.Update(conversationLoadedMsg{matchID: "2", messages: []domain.Message{
		{ID: "m1", SenderID: "2", Text: "Want to pair on pandas?", Timestamp: "2024-03-01T10:00:00"},
	}})
	v := m.View()
	if !strings.Contains(v, "Want to pair on pandas?") || !strings.Contains(v, "sarah_data") {
		t.Errorf("convo view missing message:\n%s", v)
	}
	if !strings.Contains(v, "last message") || !strings.Contains(v, "d ago") {
		t.Errorf("convo header should show the last message age:\n%s", v)
	}
}

func TestMessagesSendFlow(t *testing.T) {
	m := loadedMessages(t)
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m.input = "Sounds good"

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("expected send command")
	}
	if m.input != "" || !m.sending {
		t.Errorf("input=%q sending=%v", m.input, m.sending)
	}

	m, _ = m.Update(messageSentMsg{matchID: "2", message: &domain.Message{ID: "m9", SenderID: "1001", Text: "Sounds good"}})
	if m.sending {
		t.Error("sending should clear")
	}
	match, _ := m.conv.SelectedMatch()
	if match.MessageCount != 2 || match.LastMessage != "Sounds good" {
		t.Errorf("match after send = %+v", match)
	}
	if len(m.conv.Messages()) != 1 {
		t.Errorf("messages = %d, want 1", len(m.conv.Messages()))
	}
}

func TestMessagesEmptyInputNotSent(t *testing.T) {
	m := loadedMessages(t)
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m.input = "   "
	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter}); cmd != nil {
		t.Error("blank input should not be sent")
	}
}

func TestMessagesLowQuotaWarning(t *testing.T) {
	m := newTestMessagesModel()
	m, _ = m.Update(matchesLoadedMsg{matches: []domain.Match{{ID: "2", Username: "sarah_data", MessageCount: 4, MaxMessages: 5}}})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if v := m.View(); !strings.Contains(v, "Only 1 message remaining before limit is reached.") {
		t.Errorf("expected warning, got:\n%s", v)
	}
}

func TestMessagesLimitReached(t *testing.T) {
	m := newTestMessagesModel()
	m, _ = m.Update(matchesLoadedMsg{matches: []domain.Match{{ID: "2", Username: "sarah_data", MessageCount: 5, MaxMessages: 5}}})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	if m.inputFocused {
		t.Error("input should stay disabled at the limit")
	}
	if v := m.View(); !strings.Contains(v, messaging.LimitReachedNotice) {
		t.Errorf("expected limit notice, got:\n%s", v)
	}

	// Forcing a send is refused locally with the blocking alert.
	m.inputFocused = true
	m.input = "one more"
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil {
		t.Error("no request should be sent at the limit")
	}
	if m.conv.Alert() != messaging.LimitReachedAlert {
		t.Errorf("alert = %q", m.conv.Alert())
	}
	if v := m.View(); !strings.Contains(v, "Message limit reached for this match") {
		t.Errorf("expected blocking alert, got:\n%s", v)
	}

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if m.conv.Alert() != "" {
		t.Error("enter should dismiss the alert")
	}
}

func TestMessagesForbiddenSendShowsAlert(t *testing.T) {
	m := loadedMessages(t)
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	before, _ := m.conv.SelectedMatch()

	m, _ = m.Update(messageSentMsg{matchID: "2", err: &client.HTTPError{StatusCode: 403, Message: "Message limit reached"}})
	if m.conv.Alert() != messaging.LimitReachedAlert {
		t.Errorf("alert = %q", m.conv.Alert())
	}
	after, _ := m.conv.SelectedMatch()
	if after.MessageCount != before.MessageCount {
		t.Error("a refused send must not change local state")
	}
}

func TestMessagesOtherSendFailure(t *testing.T) {
	m := loadedMessages(t)
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m, _ = m.Update(messageSentMsg{matchID: "2", err: errors.New("reset by peer")})
	if m.conv.Err() != messaging.SendFailedMessage {
		t.Errorf("err = %q, want %q", m.conv.Err(), messaging.SendFailedMessage)
	}
}

func TestMessagesCopyTranscriptFromAlert(t *testing.T) {
	var copied string
	orig := copyToClipboard
	copyToClipboard = func(s string) error { copied = s; return nil }
	t.Cleanup(func() { copyToClipboard = orig })

	m := loadedMessages(t)
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m, _ = m.Update(conversationLoadedMsg{matchID: "2", messages: []domain.Message{
		{ID: "m1", SenderID: "2", Text: "Hey!", Timestamp: "2024-03-01T10:00:00"},
	}})
	m.conv.SendFailed(&client.HTTPError{StatusCode: 403})

	m, cmd := m.Update(key("c"))
	if cmd == nil {
		t.Fatal("expected copy command")
	}
	if m.conv.Alert() != "" {
		t.Error("copy should dismiss the alert")
	}
	m, _ = m.Update(cmd())
	if !strings.Contains(copied, "sarah_data: Hey!") {
		t.Errorf("copied = %q", copied)
	}
	if m.status != "Transcript copied to clipboard" {
		t.Errorf("status = %q", m.status)
	}
}

func TestMessagesPollTick(t *testing.T) {
	m := loadedMessages(t)
	m, _ = m.mount()
	gen := 1

	if _, cmd := m.Update(messagesPollTickMsg{gen: gen}); cmd == nil {
		t.Error("live tick should refetch and re-arm")
	}

	m.unmount()
	if _, cmd := m.Update(messagesPollTickMsg{gen: gen}); cmd != nil {
		t.Error("tick after unmount should be dropped")
	}
}

func TestMessagesEscReturnsToList(t *testing.T) {
	m := loadedMessages(t)
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if m.inputFocused {
		t.Fatal("first esc should blur the input")
	}
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if m.state != messagesListState {
		t.Errorf("state = %d, want list", m.state)
	}
}
