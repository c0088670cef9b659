package domain

import "time"

// Message is a single entry in a match conversation.
type Message struct {
	ID        string `json:"id"`
	SenderID  string `json:"senderId"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
	IsRead    bool   `json:"isRead"`
}

// timestampLayouts covers RFC 3339 and the zone-less ISO form the API emits.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// Time parses Timestamp. The zero time is returned when it cannot be parsed.
func (m Message) Time() time.Time {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, m.Timestamp); err == nil {
			return t
		}
	}
	return time.Time{}
}
