package messaging

import (
	"fmt"
	"strings"

	"github.com/knowzhq/knowz/pkg/domain"
)

// Transcript renders a conversation as plain text, one line per message,
// for copying out when the message cap is reached.
func Transcript(myID, peer string, msgs []domain.Message) string {
	var b strings.Builder
	for _, m := range msgs {
		who := peer
		if m.SenderID == myID {
			who = "me"
		}
		ts := m.Timestamp
		if t := m.Time(); !t.IsZero() {
			ts = t.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(&b, "[%s] %s: %s\n", ts, who, m.Text)
	}
	return b.String()
}
