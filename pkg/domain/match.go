package domain

// Candidate is a user offered by the matching backend as a possible
// skill-exchange partner.
type Candidate struct {
	UserID          string  `json:"user_id"`
	Username        string  `json:"username"`
	MatchScore      int     `json:"match_score"`
	MatchPercentage int     `json:"match_percentage"`
	MatchingSkills  []Skill `json:"matching_skills"` // they can teach you
	MatchingGoals   []Skill `json:"matching_goals"`  // you can teach them
}

// MatchDetails identifies the other side of a mutual like.
type MatchDetails struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// SwipeResult is the backend verdict for a like/pass decision.
type SwipeResult struct {
	Success      bool          `json:"success"`
	IsMatch      bool          `json:"is_match"`
	MatchDetails *MatchDetails `json:"match_details"`
}

// Match is a mutual like with its conversation summary.
type Match struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	LastMessage  string `json:"last_message,omitempty"`
	MessageCount int    `json:"message_count"`
	UnreadCount  int    `json:"unread_count"`
	MaxMessages  int    `json:"max_messages"`
}

// Remaining is the number of messages left before the per-match cap.
func (m Match) Remaining() int {
	if r := m.MaxMessages - m.MessageCount; r > 0 {
		return r
	}
	return 0
}

// PendingMatch is a user who liked the current user and awaits approval.
type PendingMatch struct {
	UserID          string `json:"user_id"`
	Username        string `json:"username"`
	MatchPercentage int    `json:"match_percentage"`
}
