// Package swipe drives the swipe-to-match flow: one candidate at a time,
// a binary decision per candidate, and the server's match verdict.
//
// The queue cursor and the set of in-flight decisions are independent:
// the cursor advances on a timer after each decision, never on the
// network response.
package swipe

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/knowzhq/knowz/pkg/domain"
)

// State is the engine's presentation state.
type State int

const (
	StateLoading State = iota
	StateError
	StatePresenting
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateError:
		return "error"
	case StatePresenting:
		return "presenting"
	case StateExhausted:
		return "exhausted"
	}
	return "unknown"
}

// Direction is the visual direction of the current decision.
type Direction int

const (
	DirNone Direction = iota
	DirLeft
	DirRight
)

const (
	// AdvanceDelay separates a decision from the cursor moving on.
	AdvanceDelay = 300 * time.Millisecond
	// CelebrationWindow is how long the swiper shows a match notice.
	CelebrationWindow = 2 * time.Second
	// DashboardNoticeWindow is how long the dashboard shows a match notice.
	DashboardNoticeWindow = 5 * time.Second
)

// Messages shown in the Error state.
const (
	EmptyQueueMessage = "No potential matches found. Try adding more skills!"
	LoadFailedMessage = "Failed to load potential matches"
)

var (
	ErrNotPresenting  = errors.New("swipe: no candidate is being presented")
	ErrAlreadyDecided = errors.New("swipe: current candidate already decided")
)

// Decision is a like or pass on one candidate.
type Decision struct {
	ID                uuid.UUID
	CandidateUserID   string
	CandidateUsername string
	Liked             bool
	CreatedAt         time.Time
}

// Notification announces a mutual like. Seq identifies it so a stale
// expiry timer cannot clear a newer notice.
type Notification struct {
	UserID   string
	Username string
	Seq      int
}

// Engine is the swipe state machine. The zero value is not usable; call NewEngine.
type Engine struct {
	state      State
	candidates []domain.Candidate
	index      int
	direction  Direction
	err        string

	pending  map[uuid.UUID]Decision
	advances int

	notice    *Notification
	noticeSeq int

	now func() time.Time
}

// NewEngine returns an engine in the Loading state.
func NewEngine() *Engine {
	return &Engine{
		state:   StateLoading,
		pending: make(map[uuid.UUID]Decision),
		now:     time.Now,
	}
}

// Begin (re)enters Loading: used on mount, retry from Error and refetch
// from Exhausted. The cursor resets to 0. In-flight decisions are kept.
func (e *Engine) Begin() {
	e.state = StateLoading
	e.candidates = nil
	e.index = 0
	e.direction = DirNone
	e.err = ""
}

// Refetch requests a fresh queue once the current one is exhausted.
func (e *Engine) Refetch() bool {
	if e.state != StateExhausted {
		return false
	}
	e.Begin()
	return true
}

// Retry re-enters Loading after a failed or empty fetch.
func (e *Engine) Retry() bool {
	if e.state != StateError {
		return false
	}
	e.Begin()
	return true
}

// Loaded applies the candidate fetch result. errMsg is the display text
// for a failed fetch and is ignored when err is nil.
func (e *Engine) Loaded(cands []domain.Candidate, err error, errMsg string) {
	if e.state != StateLoading {
		return
	}
	switch {
	case err != nil:
		e.state = StateError
		e.err = errMsg
		if e.err == "" {
			e.err = LoadFailedMessage
		}
	case len(cands) == 0:
		e.state = StateError
		e.err = EmptyQueueMessage
	default:
		e.state = StatePresenting
		e.candidates = cands
		e.index = 0
	}
}

// Decide records a like or pass on the current candidate and returns the
// decision to submit. The caller schedules Advance after AdvanceDelay.
func (e *Engine) Decide(liked bool) (Decision, error) {
	c, ok := e.Current()
	if !ok {
		return Decision{}, ErrNotPresenting
	}
	if e.direction != DirNone {
		return Decision{}, ErrAlreadyDecided
	}

	e.direction = DirLeft
	if liked {
		e.direction = DirRight
	}
	d := Decision{
		ID:                uuid.New(),
		CandidateUserID:   c.UserID,
		CandidateUsername: c.Username,
		Liked:             liked,
		CreatedAt:         e.now(),
	}
	e.pending[d.ID] = d
	return d, nil
}

// Advance moves the cursor past the decided candidate.
func (e *Engine) Advance() {
	if e.state != StatePresenting {
		return
	}
	e.index++
	e.direction = DirNone
	e.advances++
	if e.index >= len(e.candidates) {
		e.state = StateExhausted
	}
}

// Resolved removes a decision from the in-flight set and, on a mutual
// like, raises a notification. It never touches the cursor.
func (e *Engine) Resolved(id uuid.UUID, res *domain.SwipeResult, err error) (Notification, bool) {
	d, ok := e.pending[id]
	if !ok {
		return Notification{}, false
	}
	delete(e.pending, id)
	if err != nil || res == nil || !res.IsMatch {
		return Notification{}, false
	}

	n := Notification{UserID: d.CandidateUserID, Username: d.CandidateUsername}
	if md := res.MatchDetails; md != nil {
		n.UserID, n.Username = md.UserID, md.Username
	}
	e.noticeSeq++
	n.Seq = e.noticeSeq
	e.notice = &n
	return n, true
}

// ClearNotice clears the notification if seq is still the current one.
func (e *Engine) ClearNotice(seq int) {
	if e.notice != nil && e.notice.Seq == seq {
		e.notice = nil
	}
}

// Current returns the candidate being presented.
func (e *Engine) Current() (domain.Candidate, bool) {
	if e.state != StatePresenting || e.index >= len(e.candidates) {
		return domain.Candidate{}, false
	}
	return e.candidates[e.index], true
}

// State returns the presentation state.
func (e *Engine) State() State { return e.state }

// Index returns the queue cursor.
func (e *Engine) Index() int { return e.index }

// Len returns the number of candidates in the current queue.
func (e *Engine) Len() int { return len(e.candidates) }

// Direction returns the visual direction of the current decision.
func (e *Engine) Direction() Direction { return e.direction }

// Err returns the Error-state message.
func (e *Engine) Err() string { return e.err }

// Advances counts cursor advance events since the engine was created.
func (e *Engine) Advances() int { return e.advances }

// InFlight returns the number of decisions awaiting a server response.
func (e *Engine) InFlight() int { return len(e.pending) }

// Notice returns the active match notification, if any.
func (e *Engine) Notice() (Notification, bool) {
	if e.notice == nil {
		return Notification{}, false
	}
	return *e.notice, true
}
