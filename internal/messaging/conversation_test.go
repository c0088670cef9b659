package messaging

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/knowzhq/knowz/pkg/client"
	"github.com/knowzhq/knowz/pkg/domain"
)

func msg(id, sender, text string) domain.Message {
	return domain.Message{ID: id, SenderID: sender, Text: text, Timestamp: "2024-01-01T10:00:00"}
}

func twoMatches() []domain.Match {
	return []domain.Match{
		{ID: "42", Username: "bob", MessageCount: 1, UnreadCount: 2, MaxMessages: 5},
		{ID: "43", Username: "carol", MaxMessages: 5},
	}
}

func TestSetMatches_AutoSelectsFirst(t *testing.T) {
	c := NewConversation()
	if !c.SetMatches(twoMatches()) {
		t.Fatal("SetMatches() did not change selection")
	}
	if c.Selected() != "42" {
		t.Errorf("Selected() = %q, want 42", c.Selected())
	}

	c.Select("43")
	if c.SetMatches(twoMatches()) {
		t.Error("SetMatches() changed a selection that is still present")
	}
	if c.Selected() != "43" {
		t.Errorf("Selected() = %q, want 43", c.Selected())
	}

	c.SetMatches(nil)
	if c.Selected() != "" {
		t.Errorf("Selected() = %q with no matches", c.Selected())
	}
}

func TestSetMatches_DefaultsMax(t *testing.T) {
	c := NewConversation()
	c.SetMatches([]domain.Match{{ID: "42", MessageCount: 4}})
	if got := c.Limit(); got.Max != DefaultMaxMessages || got.Remaining != 1 {
		t.Errorf("Limit() = %+v", got)
	}
}

func TestApplyFetch_IdempotentAndResetsUnread(t *testing.T) {
	c := NewConversation()
	c.SetMatches(twoMatches())
	server := []domain.Message{msg("m1", "42", "hi"), msg("m2", "me", "hello")}

	c.ApplyFetch("42", server, nil)
	first := append([]domain.Message(nil), c.Messages()...)
	c.ApplyFetch("42", server, nil)

	if !reflect.DeepEqual(first, c.Messages()) {
		t.Errorf("second fetch changed messages:\n%v\n%v", first, c.Messages())
	}
	if len(c.Messages()) != 2 {
		t.Errorf("len(Messages()) = %d, want 2", len(c.Messages()))
	}
	if m, _ := c.SelectedMatch(); m.UnreadCount != 0 {
		t.Errorf("UnreadCount = %d, want 0", m.UnreadCount)
	}
}

func TestApplyFetch_DiscardsOtherSelection(t *testing.T) {
	c := NewConversation()
	c.SetMatches(twoMatches())
	c.Select("43")
	if c.ApplyFetch("42", []domain.Message{msg("m1", "42", "hi")}, nil) {
		t.Error("ApplyFetch() applied a result for an unselected match")
	}
	if len(c.Messages()) != 0 {
		t.Errorf("Messages() = %v, want empty", c.Messages())
	}
}

func TestApplyFetch_Error(t *testing.T) {
	c := NewConversation()
	c.SetMatches(twoMatches())
	c.ApplyFetch("42", nil, &client.HTTPError{StatusCode: 403, Message: "Invalid match or unauthorized access"})
	if c.Err() != "Invalid match or unauthorized access" {
		t.Errorf("Err() = %q", c.Err())
	}
	c.ApplyFetch("42", nil, errors.New("dial tcp: refused"))
	if c.Err() != LoadMessagesFailed {
		t.Errorf("Err() = %q, want %q", c.Err(), LoadMessagesFailed)
	}
}

func TestMerge_KeepsUnpersistedSend(t *testing.T) {
	c := NewConversation()
	c.SetMatches(twoMatches())
	c.ApplyFetch("42", []domain.Message{msg("m1", "42", "hi")}, nil)
	c.ApplySent("42", msg("m2", "me", "hello"))

	// poll races the send and does not contain m2 yet
	c.ApplyFetch("42", []domain.Message{msg("m1", "42", "hi")}, nil)
	if got := len(c.Messages()); got != 2 {
		t.Fatalf("len(Messages()) = %d, want 2", got)
	}

	// once persisted the server copy wins and nothing is duplicated
	persisted := msg("m2", "me", "hello")
	persisted.IsRead = true
	c.ApplyFetch("42", []domain.Message{msg("m1", "42", "hi"), persisted}, nil)
	if got := len(c.Messages()); got != 2 {
		t.Fatalf("len(Messages()) = %d, want 2", got)
	}
	if !c.Messages()[1].IsRead {
		t.Error("server copy of m2 did not replace the local one")
	}
}

func TestMerge_DropsServerDuplicates(t *testing.T) {
	got := Merge([]domain.Message{msg("a", "1", "x"), msg("a", "1", "x"), msg("b", "2", "y")}, nil, nil)
	if len(got) != 2 {
		t.Errorf("len(Merge()) = %d, want 2", len(got))
	}
}

func TestApplySent_UpdatesCounts(t *testing.T) {
	c := NewConversation()
	c.SetMatches(twoMatches())
	c.ApplySent("42", msg("m9", "me", "see you"))

	m, _ := c.SelectedMatch()
	if m.MessageCount != 2 || m.LastMessage != "see you" {
		t.Errorf("match = %+v", m)
	}
	if len(c.Messages()) != 1 {
		t.Errorf("len(Messages()) = %d, want 1", len(c.Messages()))
	}
	c.ApplySent("42", msg("m9", "me", "see you"))
	if len(c.Messages()) != 1 {
		t.Error("duplicate send appended twice")
	}
}

func TestCanSend_AtLimit(t *testing.T) {
	c := NewConversation()
	c.SetMatches([]domain.Match{{ID: "42", Username: "bob", MessageCount: 5, MaxMessages: 5}})
	c.ApplyFetch("42", []domain.Message{msg("m1", "42", "hi")}, nil)
	before := append([]domain.Message(nil), c.Messages()...)

	if err := c.CanSend("one more"); !errors.Is(err, ErrLimitReached) {
		t.Fatalf("CanSend() error = %v, want ErrLimitReached", err)
	}
	if c.Alert() != LimitReachedAlert {
		t.Errorf("Alert() = %q", c.Alert())
	}
	if !reflect.DeepEqual(before, c.Messages()) {
		t.Error("local messages changed")
	}
	if !c.Limit().Reached() {
		t.Error("Limit().Reached() = false")
	}
	c.DismissAlert()
	if c.Alert() != "" {
		t.Error("DismissAlert() left the alert")
	}
}

func TestCanSend_Validation(t *testing.T) {
	c := NewConversation()
	if err := c.CanSend("hi"); !errors.Is(err, ErrNoSelection) {
		t.Errorf("CanSend() error = %v, want ErrNoSelection", err)
	}
	c.SetMatches(twoMatches())
	if err := c.CanSend(""); !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("CanSend() error = %v, want ErrEmptyMessage", err)
	}
	if err := c.CanSend("hi"); err != nil {
		t.Errorf("CanSend() error = %v", err)
	}
}

func TestSendFailed(t *testing.T) {
	c := NewConversation()
	c.SetMatches(twoMatches())

	c.SendFailed(&client.HTTPError{StatusCode: 403, Message: "You can only message users you've matched with"})
	if c.Alert() != LimitReachedAlert {
		t.Errorf("403 Alert() = %q", c.Alert())
	}
	if c.Err() != "" {
		t.Errorf("403 set inline error %q", c.Err())
	}

	c.SendFailed(&client.HTTPError{StatusCode: 500, Message: "database down"})
	if c.Err() != "database down" {
		t.Errorf("Err() = %q", c.Err())
	}
	c.SendFailed(errors.New("timeout"))
	if c.Err() != SendFailedMessage {
		t.Errorf("Err() = %q", c.Err())
	}
}

func TestLimitWarning(t *testing.T) {
	tests := []struct {
		remaining int
		want      string
	}{
		{5, ""},
		{3, ""},
		{2, "Only 2 messages remaining before limit is reached."},
		{1, "Only 1 message remaining before limit is reached."},
		{0, ""},
	}
	for _, tt := range tests {
		if got := (LimitInfo{Remaining: tt.remaining}).Warning(); got != tt.want {
			t.Errorf("Warning(%d) = %q, want %q", tt.remaining, got, tt.want)
		}
	}
}

func TestPoller(t *testing.T) {
	p := NewPoller(0)
	if p.Interval() != PollInterval {
		t.Errorf("Interval() = %v, want %v", p.Interval(), PollInterval)
	}
	first := p.Start()
	if !p.Live(first) {
		t.Error("current generation not live")
	}
	second := p.Start()
	if p.Live(first) {
		t.Error("stale generation still live after restart")
	}
	p.Stop()
	if p.Live(second) {
		t.Error("generation live after Stop")
	}
	if NewPoller(time.Second).Interval() != time.Second {
		t.Error("custom interval ignored")
	}
}

func TestTranscript(t *testing.T) {
	out := Transcript("7", "bob", []domain.Message{
		msg("m1", "42", "hi"),
		msg("m2", "7", "email me at a@b.c"),
	})
	want := "[2024-01-01 10:00] bob: hi\n[2024-01-01 10:00] me: email me at a@b.c\n"
	if out != want {
		t.Errorf("Transcript() =\n%s\nwant\n%s", out, want)
	}
	if got := Transcript("7", "bob", nil); got != "" {
		t.Errorf("Transcript(nil) = %q, want empty", got)
	}
}
