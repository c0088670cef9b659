package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/knowzhq/knowz/internal/session"
)

type authMode int

const (
	authLogin authMode = iota
	authRegister
)

type authField int

const (
	fieldUsername authField = iota
	fieldEmail
	fieldPassword
	fieldSkills
)

// authDoneMsg carries the result of a login or register attempt.
type authDoneMsg struct {
	err error
}

type authModel struct {
	session    *session.Store
	mode       authMode
	field      authField
	username   string
	email      string
	password   string
	skills     string
	invalid    string // client-side validation error
	submitting bool
	width      int
	height     int
}

func newAuthModel(s *session.Store) authModel {
	return authModel{session: s}
}

// fields lists the inputs shown in the current mode, in tab order.
func (m authModel) fields() []authField {
	if m.mode == authRegister {
		return []authField{fieldUsername, fieldEmail, fieldPassword, fieldSkills}
	}
	return []authField{fieldUsername, fieldPassword}
}

func (m authModel) Update(msg tea.Msg) (authModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case authDoneMsg:
		m.submitting = false
		if msg.err == nil {
			m.password = ""
			m.invalid = ""
		}

	case tea.KeyMsg:
		if m.submitting {
			return m, nil
		}
		switch msg.String() {
		case "ctrl+r":
			if m.mode == authLogin {
				m.mode = authRegister
			} else {
				m.mode = authLogin
			}
			m.field = fieldUsername
			m.invalid = ""
			if m.session != nil {
				m.session.ClearErr()
			}
		case "tab", "down":
			m.field = m.step(1)
		case "shift+tab", "up":
			m.field = m.step(-1)
		case "ctrl+s":
			return m.submit()
		case "enter":
			fs := m.fields()
			if m.field == fs[len(fs)-1] {
				return m.submit()
			}
			m.field = m.step(1)
		default:
			m.setValue(editRune(m.value(m.field), msg.String()))
		}
	}
	return m, nil
}

func (m authModel) step(delta int) authField {
	fs := m.fields()
	for i, f := range fs {
		if f == m.field {
			return fs[(i+delta+len(fs))%len(fs)]
		}
	}
	return fs[0]
}

func (m authModel) value(f authField) string {
	switch f {
	case fieldEmail:
		return m.email
	case fieldPassword:
		return m.password
	case fieldSkills:
		return m.skills
	}
	return m.username
}

func (m *authModel) setValue(v string) {
	switch m.field {
	case fieldUsername:
		m.username = v
	case fieldEmail:
		m.email = v
	case fieldPassword:
		m.password = v
	case fieldSkills:
		m.skills = v
	}
}

// validate returns the first problem with the form, or "".
func (m authModel) validate() string {
	if strings.TrimSpace(m.username) == "" {
		return "Username is required"
	}
	if m.mode == authRegister && !strings.Contains(m.email, "@") {
		return "Enter a valid email address"
	}
	if m.password == "" {
		return "Password is required"
	}
	return ""
}

func (m authModel) submit() (authModel, tea.Cmd) {
	if m.invalid = m.validate(); m.invalid != "" {
		return m, nil
	}
	m.submitting = true
	s := m.session
	username := strings.TrimSpace(m.username)
	password := m.password
	if m.mode == authLogin {
		return m, func() tea.Msg {
			return authDoneMsg{err: s.Login(context.Background(), username, password)}
		}
	}
	req := session.NewRegisterRequest(username, strings.TrimSpace(m.email), password, m.skills)
	return m, func() tea.Msg {
		return authDoneMsg{err: s.Register(context.Background(), req)}
	}
}

func (m authModel) View() string {
	var b strings.Builder
	title := "Login to KnowZ"
	if m.mode == authRegister {
		title = "Create your KnowZ account"
	}
	b.WriteString("\n " + titleStyle.Render(title) + "\n\n")

	labels := map[authField]struct{ label, placeholder string }{
		fieldUsername: {"Username", "your username"},
		fieldEmail:    {"Email   ", "you@example.com"},
		fieldPassword: {"Password", "••••••••"},
		fieldSkills:   {"Skills  ", "Python, Design, Spanish"},
	}
	for _, f := range m.fields() {
		l := labels[f]
		b.WriteString(renderInput(l.label, m.value(f), l.placeholder, f == m.field, f == fieldPassword))
		b.WriteString("\n")
	}
	if m.mode == authRegister {
		b.WriteString("\n " + metaStyle.Render("Skills: what you teach, a second skill, then what you want to learn.") + "\n")
	}

	b.WriteString("\n")
	switch {
	case m.submitting && m.mode == authRegister:
		b.WriteString(" " + dimStyle.Render("Creating account...") + "\n")
	case m.submitting:
		b.WriteString(" " + dimStyle.Render("Logging in...") + "\n")
	case m.invalid != "":
		b.WriteString(" " + errorStyle.Render(m.invalid) + "\n")
	case m.session != nil && m.session.Err() != "":
		b.WriteString(" " + errorStyle.Render(m.session.Err()) + "\n")
	}

	other := "Don't have an account? ctrl+r to register"
	if m.mode == authRegister {
		other = "Already have an account? ctrl+r to login"
	}
	b.WriteString(fmt.Sprintf("\n %s\n", metaStyle.Render(other)))
	return b.String()
}

func (m authModel) helpKeys() string {
	return helpEntry("tab", "next") + "  " + helpEntry("enter", "submit") + "  " + helpEntry("ctrl+r", "switch") + "  " + helpEntry("ctrl+c", "quit")
}
