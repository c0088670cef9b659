package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/knowzhq/knowz/internal/session"
	"github.com/knowzhq/knowz/pkg/client"
	"github.com/knowzhq/knowz/pkg/domain"
)

// profileState is the state machine for skill add/remove interactions.
type profileState int

const (
	profileNormal   profileState = iota
	profileAdding                // typing a new skill name
	profileRemoving              // remove confirmation
	profileEmail                 // editing the account email
)

const (
	skillNameEmpty    = "Skill name cannot be empty"
	skillAddFailed    = "Failed to add skill"
	skillRemoveFailed = "Failed to remove skill. Please try again."
	profileLoadFailed = "Failed to load profile"
	emailInvalid      = "Enter a valid email address"
	emailUpdateFailed = "Failed to update email"
)

// -- messages --

type profileLoadedMsg struct {
	profile *domain.Profile
	err     error
}

type skillAddedMsg struct {
	typ   domain.SkillType
	skill *domain.Skill
	err   error
}

type skillRemovedMsg struct {
	typ domain.SkillType
	id  string
	err error
}

type emailUpdatedMsg struct {
	email string
	err   error
}

// -- model --

type profileModel struct {
	client  *client.Client
	session *session.Store
	profile *domain.Profile
	loading bool
	err     string
	width   int
	height  int

	section domain.SkillType // active section for navigation
	cursor  int
	state   profileState
	name    string // name field when adding, email field when editing
	level   int    // index into domain.SkillLevels
	busy    bool
}

func newProfileModel(c *client.Client, s *session.Store) profileModel {
	return profileModel{client: c, session: s, section: domain.SkillTeaching, loading: true, level: defaultLevelIndex()}
}

func defaultLevelIndex() int {
	for i, l := range domain.SkillLevels {
		if l == domain.DefaultSkillLevel {
			return i
		}
	}
	return 0
}

func (m profileModel) Init() tea.Cmd {
	return m.loadProfile()
}

func (m profileModel) loadProfile() tea.Cmd {
	c := m.client
	return func() tea.Msg {
		p, err := c.GetProfile(context.Background())
		return profileLoadedMsg{profile: p, err: err}
	}
}

func (m profileModel) addSkill(typ domain.SkillType, name, level string) tea.Cmd {
	c := m.client
	req := client.AddSkillRequest{Name: name, Type: typ}
	if typ == domain.SkillTeaching {
		req.Level = level
	}
	return func() tea.Msg {
		s, err := c.AddSkill(context.Background(), req)
		return skillAddedMsg{typ: typ, skill: s, err: err}
	}
}

func (m profileModel) removeSkill(typ domain.SkillType, id string) tea.Cmd {
	c := m.client
	return func() tea.Msg {
		return skillRemovedMsg{typ: typ, id: id, err: c.RemoveSkill(context.Background(), id, typ)}
	}
}

func (m profileModel) updateEmail(email string) tea.Cmd {
	c := m.client
	return func() tea.Msg {
		err := c.UpdateProfile(context.Background(), client.UpdateProfileRequest{Email: &email})
		return emailUpdatedMsg{email: email, err: err}
	}
}

// list returns the skills in the active section.
func (m profileModel) list() []domain.Skill {
	if m.profile == nil {
		return nil
	}
	if m.section == domain.SkillLearning {
		return m.profile.LearningGoals
	}
	return m.profile.Skills
}

// failure maps an API error to the inline message, preferring the
// session-expired text when the token was rejected.
func failure(err error, fallback string) string {
	if client.IsAuth(err) {
		return session.SessionExpired
	}
	return client.Message(err, fallback)
}

func (m profileModel) Update(msg tea.Msg) (profileModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case profileLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = failure(msg.err, profileLoadFailed)
			return m, expireOn(msg.err)
		}
		m.err = ""
		m.profile = msg.profile
		m.cursor = min(m.cursor, max(len(m.list())-1, 0))

	case skillAddedMsg:
		m.busy = false
		if msg.err != nil {
			m.err = failure(msg.err, skillAddFailed)
			return m, expireOn(msg.err)
		}
		m.err = ""
		m.state = profileNormal
		m.name = ""
		m.level = defaultLevelIndex()
		if m.profile == nil {
			m.profile = &domain.Profile{}
		}
		if msg.skill != nil {
			if msg.typ == domain.SkillLearning {
				m.profile.LearningGoals = append(m.profile.LearningGoals, *msg.skill)
			} else {
				m.profile.Skills = append(m.profile.Skills, *msg.skill)
			}
		}

	case skillRemovedMsg:
		m.busy = false
		if msg.err != nil {
			m.err = skillRemoveFailed
			if client.IsAuth(msg.err) {
				m.err = session.SessionExpired
			}
			return m, expireOn(msg.err)
		}
		m.err = ""
		if m.profile != nil {
			if msg.typ == domain.SkillLearning {
				m.profile.LearningGoals = withoutSkill(m.profile.LearningGoals, msg.id)
			} else {
				m.profile.Skills = withoutSkill(m.profile.Skills, msg.id)
			}
		}
		m.cursor = min(m.cursor, max(len(m.list())-1, 0))

	case emailUpdatedMsg:
		m.busy = false
		if msg.err != nil {
			m.err = failure(msg.err, emailUpdateFailed)
			return m, expireOn(msg.err)
		}
		m.err = ""
		m.state = profileNormal
		m.name = ""
		if m.profile != nil {
			m.profile.User.Email = msg.email
		}

	case tea.KeyMsg:
		if m.busy {
			return m, nil
		}
		switch m.state {
		case profileAdding:
			return m.handleKeyAdding(msg)
		case profileRemoving:
			return m.handleKeyRemoving(msg)
		case profileEmail:
			return m.handleKeyEmail(msg)
		default:
			return m.handleKey(msg)
		}
	}
	return m, nil
}

func withoutSkill(skills []domain.Skill, id string) []domain.Skill {
	out := skills[:0:0]
	for _, s := range skills {
		if s.ID != id {
			out = append(out, s)
		}
	}
	return out
}

func (m profileModel) handleKey(msg tea.KeyMsg) (profileModel, tea.Cmd) {
	switch msg.String() {
	case "tab":
		if m.section == domain.SkillTeaching {
			m.section = domain.SkillLearning
		} else {
			m.section = domain.SkillTeaching
		}
		m.cursor = 0
	case "j", "down":
		if m.cursor < len(m.list())-1 {
			m.cursor++
		}
	case "k", "up":
		if m.cursor > 0 {
			m.cursor--
		}
	case "a":
		m.state = profileAdding
		m.name = ""
		m.level = defaultLevelIndex()
		m.err = ""
	case "x":
		if m.cursor < len(m.list()) {
			m.state = profileRemoving
		}
	case "e":
		if m.profile == nil {
			return m, nil
		}
		m.state = profileEmail
		m.name = m.profile.User.Email
		m.err = ""
	case "r":
		return m, m.loadProfile()
	}
	return m, nil
}

func (m profileModel) handleKeyAdding(msg tea.KeyMsg) (profileModel, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.state = profileNormal
		m.name = ""
		m.err = ""
	case "left":
		if m.section == domain.SkillTeaching && m.level > 0 {
			m.level--
		}
	case "right":
		if m.section == domain.SkillTeaching && m.level < len(domain.SkillLevels)-1 {
			m.level++
		}
	case "enter":
		name := strings.TrimSpace(m.name)
		if name == "" {
			m.err = skillNameEmpty
			return m, nil
		}
		m.err = ""
		m.busy = true
		return m, m.addSkill(m.section, name, domain.SkillLevels[m.level])
	default:
		m.name = editRune(m.name, msg.String())
	}
	return m, nil
}

func (m profileModel) handleKeyRemoving(msg tea.KeyMsg) (profileModel, tea.Cmd) {
	switch msg.String() {
	case "y":
		m.state = profileNormal
		list := m.list()
		if m.cursor >= len(list) {
			return m, nil
		}
		m.busy = true
		return m, m.removeSkill(m.section, list[m.cursor].ID)
	case "n", "esc":
		m.state = profileNormal
	}
	return m, nil
}

func (m profileModel) handleKeyEmail(msg tea.KeyMsg) (profileModel, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.state = profileNormal
		m.name = ""
		m.err = ""
	case "enter":
		email := strings.TrimSpace(m.name)
		if !strings.Contains(email, "@") {
			m.err = emailInvalid
			return m, nil
		}
		m.err = ""
		m.busy = true
		return m, m.updateEmail(email)
	default:
		m.name = editRune(m.name, msg.String())
	}
	return m, nil
}

func (m profileModel) helpKeys() string {
	switch m.state {
	case profileAdding:
		if m.section == domain.SkillTeaching {
			return helpEntry("enter", "add") + "  " + helpEntry("←/→", "level") + "  " + helpEntry("esc", "cancel")
		}
		return helpEntry("enter", "add") + "  " + helpEntry("esc", "cancel")
	case profileRemoving:
		return helpEntry("y", "remove") + "  " + helpEntry("n", "keep")
	case profileEmail:
		return helpEntry("enter", "save") + "  " + helpEntry("esc", "cancel")
	}
	return helpEntry("tab", "section") + "  " + helpEntry("j/k", "nav") + "  " + helpEntry("a", "add") + "  " + helpEntry("x", "remove") + "  " + helpEntry("e", "email") + "  " + helpEntry("h", "help") + "  " + helpEntry("q", "quit")
}

func (m profileModel) View() string {
	if m.loading && m.profile == nil {
		return "\n " + dimStyle.Render("loading...") + "\n"
	}

	var b strings.Builder
	b.WriteString("\n")
	if m.profile != nil {
		u := m.profile.User
		b.WriteString(" " + titleStyle.Render(u.Username))
		if m.state == profileEmail {
			b.WriteString("\n" + renderInput("Email", m.name, "you@example.com", true, false))
		} else if u.Email != "" {
			b.WriteString("  " + metaStyle.Render(u.Email))
		}
		b.WriteString("\n\n")
	}

	b.WriteString(m.viewSection(domain.SkillTeaching, "Skills I Can Teach", "Add skills you can teach others"))
	b.WriteString("\n")
	b.WriteString(m.viewSection(domain.SkillLearning, "Skills I Want to Learn", "Add skills you want to learn"))

	if m.state == profileAdding {
		b.WriteString("\n")
		label := "New goal"
		if m.section == domain.SkillTeaching {
			label = "New skill"
		}
		b.WriteString(renderInput(label, m.name, "e.g. Python", true, false) + "\n")
		if m.section == domain.SkillTeaching {
			var levels []string
			for i, l := range domain.SkillLevels {
				if i == m.level {
					levels = append(levels, LevelStyle(l).Underline(true).Render(l))
				} else {
					levels = append(levels, metaStyle.Render(l))
				}
			}
			b.WriteString("   " + strings.Join(levels, "  ") + "\n")
		}
	}
	if m.state == profileRemoving {
		if list := m.list(); m.cursor < len(list) {
			b.WriteString("\n " + warnStyle.Render(fmt.Sprintf("Remove %s? y/n", list[m.cursor].Name)) + "\n")
		}
	}
	if m.busy {
		b.WriteString("\n " + dimStyle.Render("saving...") + "\n")
	}
	if m.err != "" {
		b.WriteString("\n " + errorStyle.Render(m.err) + "\n")
	}
	return b.String()
}

func (m profileModel) viewSection(typ domain.SkillType, title, empty string) string {
	var b strings.Builder
	header := sectionHeaderStyle.Render(title)
	if m.section == typ {
		header = accentStyle.Render("▸ ") + selectedStyle.Render(title)
	} else {
		header = "  " + header
	}
	b.WriteString(" " + header + "\n")

	var skills []domain.Skill
	if m.profile != nil {
		skills = m.profile.Skills
		if typ == domain.SkillLearning {
			skills = m.profile.LearningGoals
		}
	}
	if len(skills) == 0 {
		b.WriteString("    " + metaStyle.Render(empty) + "\n")
		return b.String()
	}
	for i, s := range skills {
		active := m.section == typ && i == m.cursor
		name := normalStyle.Render(s.Name)
		if active {
			name = selectedStyle.Render(s.Name)
		}
		line := "    " + name
		if typ == domain.SkillTeaching && s.Level != "" {
			line += "  " + LevelStyle(s.Level).Render(s.Level)
		}
		if active {
			line = "  " + accentStyle.Render("›") + " " + strings.TrimLeft(line, " ")
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}
