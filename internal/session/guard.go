package session

// Access is the route guard's verdict for a protected view.
type Access int

const (
	AccessLoading  Access = iota // initialization in flight: render a neutral placeholder
	AccessRedirect               // unauthenticated: replace the view with login
	AccessAllow                  // render the requested view
)

func (a Access) String() string {
	switch a {
	case AccessLoading:
		return "loading"
	case AccessRedirect:
		return "redirect"
	case AccessAllow:
		return "allow"
	}
	return "unknown"
}

// State is what the guard reads from the session store.
type State interface {
	Ready() bool
	IsAuthenticated() bool
}

// Guard decides whether a protected view may render. It has no state of its own.
func Guard(s State) Access {
	switch {
	case !s.Ready():
		return AccessLoading
	case !s.IsAuthenticated():
		return AccessRedirect
	default:
		return AccessAllow
	}
}
