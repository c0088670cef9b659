package domain

// Session is the locally held proof of authentication.
// The token is opaque to the client and never parsed.
type Session struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Token    string `json:"-"`
}

// Complete reports whether all three session fields are present.
func (s Session) Complete() bool {
	return s.UserID != "" && s.Username != "" && s.Token != ""
}
