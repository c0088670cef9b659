package tui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/knowzhq/knowz/internal/session"
	"github.com/knowzhq/knowz/internal/swipe"
	"github.com/knowzhq/knowz/pkg/client"
	"github.com/knowzhq/knowz/pkg/domain"
)

// candidatesLoadedMsg carries a predict result and the outbox flush that preceded it.
type candidatesLoadedMsg struct {
	candidates []domain.Candidate
	flushed    swipe.FlushResult
	err        error
}

// swipeAdvanceMsg fires AdvanceDelay after decision id was made.
type swipeAdvanceMsg struct {
	id uuid.UUID
}

// swipeResolvedMsg carries the server verdict for decision id.
type swipeResolvedMsg struct {
	id     uuid.UUID
	res    *domain.SwipeResult
	queued bool
	err    error
}

// celebrationExpiredMsg ends the match notice with the given sequence.
type celebrationExpiredMsg struct {
	seq int
}

type swiperModel struct {
	client   *client.Client
	session  *session.Store
	outbox   *swipe.Outbox
	log      *slog.Logger
	engine   *swipe.Engine
	awaiting uuid.UUID // decision whose advance timer is pending
	queued   int       // decisions saved to the outbox this visit
	flushed  int       // queued decisions delivered on load
	width    int
	height   int
}

func newSwiperModel(c *client.Client, s *session.Store, o *swipe.Outbox, log *slog.Logger) swiperModel {
	return swiperModel{client: c, session: s, outbox: o, log: log, engine: swipe.NewEngine()}
}

// mount (re)enters Loading and fetches a fresh queue. An advance timer
// still pending from an earlier visit is disarmed.
func (m swiperModel) mount() (swiperModel, tea.Cmd) {
	m.engine.Begin()
	m.awaiting = uuid.Nil
	return m, m.load()
}

func (m swiperModel) userID() string {
	if m.session == nil {
		return ""
	}
	sess, _ := m.session.Current()
	return sess.UserID
}

// load delivers any queued decisions, then asks for candidates.
func (m swiperModel) load() tea.Cmd {
	c, o, log, userID := m.client, m.outbox, m.log, m.userID()
	return func() tea.Msg {
		ctx := context.Background()
		var flushed swipe.FlushResult
		if o != nil {
			var err error
			flushed, err = o.Flush(ctx, userID)
			if err != nil {
				if client.IsAuth(err) {
					return candidatesLoadedMsg{flushed: flushed, err: err}
				}
				log.Warn("outbox flush failed", "error", err)
			}
		}
		cands, err := c.Predict(ctx)
		return candidatesLoadedMsg{candidates: cands, flushed: flushed, err: err}
	}
}

func advanceCmd(id uuid.UUID) tea.Cmd {
	return tea.Tick(swipe.AdvanceDelay, func(time.Time) tea.Msg {
		return swipeAdvanceMsg{id: id}
	})
}

func celebrationCmd(seq int) tea.Cmd {
	return tea.Tick(swipe.CelebrationWindow, func(time.Time) tea.Msg {
		return celebrationExpiredMsg{seq: seq}
	})
}

func (m swiperModel) decide(liked bool) (swiperModel, tea.Cmd) {
	d, err := m.engine.Decide(liked)
	if err != nil {
		return m, nil
	}
	m.awaiting = d.ID
	o, userID := m.outbox, m.userID()
	submit := func() tea.Msg {
		res, queued, err := o.Submit(context.Background(), userID, d)
		return swipeResolvedMsg{id: d.ID, res: res, queued: queued, err: err}
	}
	return m, tea.Batch(advanceCmd(d.ID), submit)
}

func (m swiperModel) Update(msg tea.Msg) (swiperModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case candidatesLoadedMsg:
		m.flushed += msg.flushed.Delivered
		m.engine.Loaded(msg.candidates, msg.err, client.Message(msg.err, swipe.LoadFailedMessage))
		return m, expireOn(msg.err)

	case swipeAdvanceMsg:
		if msg.id == m.awaiting {
			m.awaiting = uuid.Nil
			m.engine.Advance()
		}

	case swipeResolvedMsg:
		if msg.queued {
			m.queued++
		}
		if msg.err != nil && m.log != nil {
			m.log.Warn("swipe failed", "decision", msg.id, "queued", msg.queued, "error", msg.err)
		}
		if n, ok := m.engine.Resolved(msg.id, msg.res, msg.err); ok {
			return m, celebrationCmd(n.Seq)
		}
		return m, expireOn(msg.err)

	case celebrationExpiredMsg:
		m.engine.ClearNotice(msg.seq)

	case tea.KeyMsg:
		switch msg.String() {
		case "y", "right":
			return m.decide(true)
		case "n", "left":
			return m.decide(false)
		case "r":
			if m.engine.Refetch() || m.engine.Retry() {
				m.awaiting = uuid.Nil
				return m, m.load()
			}
		case "p":
			if m.engine.State() == swipe.StateError {
				return m, navigateTo(viewProfile)
			}
		}
	}
	return m, nil
}

func (m swiperModel) View() string {
	var b strings.Builder
	b.WriteString("\n " + titleStyle.Render("Find Knowledge Partners") + "\n\n")

	if n, ok := m.engine.Notice(); ok {
		msg := "It's a match! You can now message each other."
		if n.Username != "" {
			msg = fmt.Sprintf("It's a match with %s! You can now message each other.", n.Username)
		}
		b.WriteString(" " + noticeStyle.Render(msg) + "\n\n")
	}

	switch m.engine.State() {
	case swipe.StateLoading:
		b.WriteString(" " + dimStyle.Render("Finding potential skill matches...") + "\n")
	case swipe.StateError:
		b.WriteString(" " + selectedStyle.Render("No Matches Found") + "\n")
		b.WriteString(" " + errorStyle.Render(m.engine.Err()) + "\n\n")
		b.WriteString(" " + helpEntry("r", "try again") + "  " + helpEntry("p", "update skills") + "\n")
	case swipe.StateExhausted:
		b.WriteString(" " + selectedStyle.Render("You're All Caught Up!") + "\n")
		b.WriteString(" " + dimStyle.Render("You've gone through all potential matches.") + "\n\n")
		b.WriteString(" " + helpEntry("r", "find more matches") + "\n")
	case swipe.StatePresenting:
		b.WriteString(m.renderCard())
	}

	if m.queued > 0 || m.flushed > 0 {
		b.WriteString("\n")
		if m.queued > 0 {
			b.WriteString(" " + warnStyle.Render(fmt.Sprintf("%d decision(s) saved offline and will be retried.", m.queued)) + "\n")
		}
		if m.flushed > 0 {
			b.WriteString(" " + metaStyle.Render(fmt.Sprintf("%d saved decision(s) delivered.", m.flushed)) + "\n")
		}
	}
	return b.String()
}

func (m swiperModel) renderCard() string {
	c, ok := m.engine.Current()
	if !ok {
		return ""
	}
	var b strings.Builder

	name := selectedStyle.Render(c.Username)
	switch m.engine.Direction() {
	case swipe.DirRight:
		name = likeStyle.Render("✓ " + c.Username)
	case swipe.DirLeft:
		name = passStyle.Render("✗ " + c.Username)
	}
	b.WriteString(fmt.Sprintf(" %s  %s  %s\n\n",
		name,
		percentStyle(c.MatchPercentage).Render(fmt.Sprintf("%d%% match", c.MatchPercentage)),
		metaStyle.Render(fmt.Sprintf("%d/%d", m.engine.Index()+1, m.engine.Len()))))

	section := func(title string, skills []domain.Skill) {
		b.WriteString(" " + sectionHeaderStyle.Render(title) + "\n")
		if len(skills) == 0 {
			b.WriteString("   " + metaStyle.Render("No direct skill matches") + "\n")
		}
		for _, s := range skills {
			b.WriteString("   " + skillStyle.Render("• "+s.Name) + "\n")
		}
		b.WriteString("\n")
	}
	section("They can teach you:", c.MatchingSkills)
	section("You can teach them:", c.MatchingGoals)

	b.WriteString(" " + metaStyle.Render("Swipe right to connect, swipe left to pass") + "\n")
	return b.String()
}

func (m swiperModel) helpKeys() string {
	return helpEntry("→/y", "connect") + "  " + helpEntry("←/n", "pass") + "  " + helpEntry("r", "refresh") + "  " + helpEntry("h", "help") + "  " + helpEntry("q", "quit")
}
