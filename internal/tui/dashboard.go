package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/knowzhq/knowz/internal/session"
	"github.com/knowzhq/knowz/internal/swipe"
	"github.com/knowzhq/knowz/pkg/client"
	"github.com/knowzhq/knowz/pkg/domain"
)

const (
	dashboardLoadFailed = "Failed to load dashboard data"
	approveFailed       = "Failed to approve match"
	declineFailed       = "Failed to decline match"
)

// dashboardLoadedMsg carries matches, pending approvals and suggestions.
type dashboardLoadedMsg struct {
	matches    []domain.Match
	pending    []domain.PendingMatch
	candidates []domain.Candidate
	err        error
}

// approvalDoneMsg carries the verdict for a pending-match decision.
type approvalDoneMsg struct {
	userID   string
	username string
	liked    bool
	res      *domain.SwipeResult
	queued   bool
	err      error
}

// dashboardNoticeExpiredMsg clears the match notice if seq is still current.
type dashboardNoticeExpiredMsg struct {
	seq int
}

type dashboardModel struct {
	client     *client.Client
	session    *session.Store
	outbox     *swipe.Outbox
	matches    []domain.Match
	pending    []domain.PendingMatch
	candidates []domain.Candidate
	cursor     int
	deciding   string // user id of the decision in flight
	loading    bool
	err        string
	notice     string
	noticeSeq  int
	status     string
	width      int
	height     int
}

func newDashboardModel(c *client.Client, s *session.Store, o *swipe.Outbox) dashboardModel {
	return dashboardModel{client: c, session: s, outbox: o, loading: true}
}

func (m dashboardModel) Init() tea.Cmd {
	return m.load()
}

func (m dashboardModel) load() tea.Cmd {
	c := m.client
	return func() tea.Msg {
		ctx := context.Background()
		matches, err := c.ListMatches(ctx)
		if err != nil {
			return dashboardLoadedMsg{err: err}
		}
		pending, err := c.PendingMatches(ctx)
		if err != nil {
			return dashboardLoadedMsg{err: err}
		}
		cands, err := c.Predict(ctx)
		if err != nil {
			return dashboardLoadedMsg{err: err}
		}
		return dashboardLoadedMsg{matches: matches, pending: pending, candidates: cands}
	}
}

// decide submits a decision for the selected pending match. The entry is
// removed once the decision is delivered or saved to the outbox.
func (m dashboardModel) decide(liked bool) (dashboardModel, tea.Cmd) {
	if m.deciding != "" || m.cursor >= len(m.pending) {
		return m, nil
	}
	p := m.pending[m.cursor]
	m.deciding = p.UserID
	m.status = ""

	var userID string
	if m.session != nil {
		if sess, ok := m.session.Current(); ok {
			userID = sess.UserID
		}
	}
	o := m.outbox
	d := swipe.Decision{
		ID:                uuid.New(),
		CandidateUserID:   p.UserID,
		CandidateUsername: p.Username,
		Liked:             liked,
		CreatedAt:         time.Now(),
	}
	return m, func() tea.Msg {
		res, queued, err := o.Submit(context.Background(), userID, d)
		return approvalDoneMsg{userID: p.UserID, username: p.Username, liked: liked, res: res, queued: queued, err: err}
	}
}

func (m dashboardModel) withoutPending(userID string) dashboardModel {
	out := m.pending[:0:0]
	for _, p := range m.pending {
		if p.UserID != userID {
			out = append(out, p)
		}
	}
	m.pending = out
	if m.cursor >= len(m.pending) {
		m.cursor = max(len(m.pending)-1, 0)
	}
	return m
}

func noticeExpireCmd(seq int) tea.Cmd {
	return tea.Tick(swipe.DashboardNoticeWindow, func(time.Time) tea.Msg {
		return dashboardNoticeExpiredMsg{seq: seq}
	})
}

func (m dashboardModel) Update(msg tea.Msg) (dashboardModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case dashboardLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = dashboardLoadFailed
			return m, expireOn(msg.err)
		}
		m.err = ""
		m.matches = msg.matches
		m.pending = msg.pending
		m.candidates = msg.candidates
		if m.cursor >= len(m.pending) {
			m.cursor = max(len(m.pending)-1, 0)
		}

	case approvalDoneMsg:
		if msg.userID == m.deciding {
			m.deciding = ""
		}
		if msg.err != nil && !msg.queued {
			fallback := declineFailed
			if msg.liked {
				fallback = approveFailed
			}
			m.status = failure(msg.err, fallback)
			return m, expireOn(msg.err)
		}
		m = m.withoutPending(msg.userID)
		if !msg.liked {
			m.status = ""
			if msg.queued {
				m.status = "Offline: decision saved and will be retried."
			}
			return m, expireOn(msg.err)
		}
		var cmds []tea.Cmd
		switch {
		case msg.err == nil && msg.res != nil && msg.res.IsMatch:
			name := msg.username
			if msg.res.MatchDetails != nil && msg.res.MatchDetails.Username != "" {
				name = msg.res.MatchDetails.Username
			}
			m.noticeSeq++
			m.notice = fmt.Sprintf("It's a match with %s! You can now message each other.", name)
			cmds = append(cmds, noticeExpireCmd(m.noticeSeq))
		case msg.queued:
			m.status = "Offline: approval saved and will be retried."
		}
		cmds = append(cmds, expireOn(msg.err), m.load())
		return m, tea.Batch(cmds...)

	case dashboardNoticeExpiredMsg:
		if msg.seq == m.noticeSeq {
			m.notice = ""
		}

	case tea.KeyMsg:
		switch msg.String() {
		case "j", "down":
			if m.cursor < len(m.pending)-1 {
				m.cursor++
			}
		case "k", "up":
			if m.cursor > 0 {
				m.cursor--
			}
		case "a":
			return m.decide(true)
		case "d":
			return m.decide(false)
		case "r":
			m.loading = true
			return m, m.load()
		case "enter":
			if len(m.matches) > 0 {
				return m, navigateTo(viewMessages)
			}
			return m, navigateTo(viewSwiper)
		}
	}
	return m, nil
}

// stats returns pending approvals, matches, and total messages exchanged.
func (m dashboardModel) stats() (pending, matches, messages int) {
	for _, mt := range m.matches {
		messages += mt.MessageCount
	}
	return len(m.pending), len(m.matches), messages
}

func (m dashboardModel) View() string {
	if m.loading && m.matches == nil && m.err == "" {
		return "\n " + dimStyle.Render("Loading your dashboard...") + "\n"
	}
	if m.err != "" {
		return "\n " + errorStyle.Render(m.err) + "\n\n " + metaStyle.Render("press r to retry") + "\n"
	}

	var b strings.Builder
	b.WriteString("\n")
	if m.notice != "" {
		b.WriteString(" " + noticeStyle.Render(m.notice) + "\n\n")
	}

	pending, matches, messages := m.stats()
	b.WriteString(fmt.Sprintf(" %s %s   %s %s   %s %s\n\n",
		goldStyle.Render(fmt.Sprintf("%d", pending)), dimStyle.Render("pending"),
		likeStyle.Render(fmt.Sprintf("%d", matches)), dimStyle.Render("matches"),
		skillStyle.Render(fmt.Sprintf("%d", messages)), dimStyle.Render("messages")))

	b.WriteString(" " + sectionHeaderStyle.Render("Pending Match Approvals") + "\n")
	if len(m.pending) == 0 {
		b.WriteString(" " + metaStyle.Render("No pending approvals.") + "\n")
	} else {
		b.WriteString(" " + metaStyle.Render("These users have liked your profile. Approve to match with them!") + "\n")
		for i, p := range m.pending {
			line := fmt.Sprintf("%-20s %s", truncStr(p.Username, 20), percentStyle(p.MatchPercentage).Render(fmt.Sprintf("%d%% match", p.MatchPercentage)))
			if p.UserID == m.deciding {
				line += "  " + dimStyle.Render("sending...")
			}
			if i == m.cursor {
				b.WriteString(" " + accentStyle.Render("▸ ") + selectedStyle.Render(line) + "\n")
			} else {
				b.WriteString("   " + normalStyle.Render(line) + "\n")
			}
		}
	}

	b.WriteString("\n " + sectionHeaderStyle.Render("Your Matches") + "\n")
	if len(m.matches) == 0 {
		b.WriteString(" " + metaStyle.Render("No matches yet. Press 2 to discover skill partners.") + "\n")
	}
	for _, mt := range m.matches {
		last := mt.LastMessage
		if last == "" {
			last = "No messages yet"
		}
		b.WriteString(fmt.Sprintf("   %s  %s  %s\n",
			normalStyle.Render(fmt.Sprintf("%-20s", truncStr(mt.Username, 20))),
			metaStyle.Render(fmt.Sprintf("%d/%d", mt.MessageCount, mt.MaxMessages)),
			dimStyle.Render(truncStr(last, 40))))
	}

	if len(m.candidates) > 0 {
		b.WriteString("\n " + sectionHeaderStyle.Render("Top Skill Matches") + "\n")
		for i, c := range m.candidates {
			if i == 3 {
				break
			}
			line := fmt.Sprintf("   %s  %s",
				normalStyle.Render(fmt.Sprintf("%-20s", truncStr(c.Username, 20))),
				percentStyle(c.MatchPercentage).Render(fmt.Sprintf("%4d%%", c.MatchPercentage)))
			if teaches := domain.SkillNames(c.MatchingSkills); teaches != "" {
				line += "  " + dimStyle.Render("teaches "+truncStr(teaches, 40))
			}
			b.WriteString(line + "\n")
		}
	}

	if m.status != "" {
		b.WriteString("\n " + warnStyle.Render(m.status) + "\n")
	}
	return b.String()
}

func (m dashboardModel) helpKeys() string {
	return helpEntry("j/k", "nav") + "  " + helpEntry("a", "approve") + "  " + helpEntry("d", "decline") + "  " + helpEntry("r", "refresh") + "  " + helpEntry("h", "help") + "  " + helpEntry("q", "quit")
}
