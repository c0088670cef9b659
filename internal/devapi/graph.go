package devapi

import (
	"slices"
	"sort"
	"strconv"
	"time"

	"github.com/knowzhq/knowz/pkg/domain"
)

// timestampLayout matches the zone-less ISO timestamps of the production API.
const timestampLayout = "2006-01-02T15:04:05.000000"

type userDoc struct {
	Key            string
	Username       string
	Email          string
	PasswordHash   []byte
	PrimarySkill   string
	SecondarySkill string
	LearningGoal   string
}

type skillDoc struct {
	Key      string
	Name     string
	Category string
}

type swipeDoc struct {
	UserID       string
	TargetUserID string
	Liked        bool
	CreatedAt    time.Time
}

type messageDoc struct {
	Key        string
	SenderID   string
	ReceiverID string
	Text       string
	IsRead     bool
	CreatedAt  time.Time
}

// graph is the in-memory user/skill graph. Callers hold Server.mu.
type graph struct {
	nextKey  int
	users    map[string]*userDoc
	order    []string
	skills   map[string]*skillDoc
	teaches  map[string][]string // user key -> skill keys
	learns   map[string][]string // user key -> skill keys
	swipes   []swipeDoc
	messages []*messageDoc
}

func newGraph() *graph {
	return &graph{
		nextKey: 1000,
		users:   make(map[string]*userDoc),
		skills:  make(map[string]*skillDoc),
		teaches: make(map[string][]string),
		learns:  make(map[string][]string),
	}
}

func (g *graph) insertUser(u *userDoc) string {
	g.nextKey++
	u.Key = strconv.Itoa(g.nextKey)
	g.users[u.Key] = u
	g.order = append(g.order, u.Key)
	return u.Key
}

func (g *graph) userByName(name string) *userDoc {
	for _, key := range g.order {
		if u := g.users[key]; u.Username == name {
			return u
		}
	}
	return nil
}

// ensureSkill creates the skill node for name when missing and returns its key.
func (g *graph) ensureSkill(name, category string) string {
	key := domain.SkillKey(name)
	if _, ok := g.skills[key]; !ok {
		g.skills[key] = &skillDoc{Key: key, Name: name, Category: category}
	}
	return key
}

func addEdge(edges map[string][]string, user, skill string) {
	if !slices.Contains(edges[user], skill) {
		edges[user] = append(edges[user], skill)
	}
}

func removeEdge(edges map[string][]string, user, skill string) {
	edges[user] = slices.DeleteFunc(edges[user], func(k string) bool { return k == skill })
}

func (g *graph) skillList(keys []string) []domain.Skill {
	out := make([]domain.Skill, 0, len(keys))
	for _, k := range keys {
		s := g.skills[k]
		out = append(out, domain.Skill{ID: s.Key, Name: s.Name, Category: s.Category})
	}
	return out
}

// refs renders skill keys as graph ids ("skills/python").
func refs(keys []string) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = "skills/" + k
	}
	return out
}

// intersect keeps the elements of a that are also in b, in a's order.
func intersect(a, b []string) []string {
	out := make([]string, 0)
	for _, x := range a {
		if slices.Contains(b, x) && !slices.Contains(out, x) {
			out = append(out, x)
		}
	}
	return out
}

// exchange returns what other can teach me and what I can teach other.
func (g *graph) exchange(me, other string) (theyTeach, iTeach []string) {
	return intersect(g.learns[me], g.teaches[other]), intersect(g.teaches[me], g.learns[other])
}

func matchPercentage(score int) int {
	return score * 20
}

func (g *graph) liked(from, to string) bool {
	for _, s := range g.swipes {
		if s.UserID == from && s.TargetUserID == to && s.Liked {
			return true
		}
	}
	return false
}

func (g *graph) mutual(a, b string) bool {
	return g.liked(a, b) && g.liked(b, a)
}

// conversation returns the messages between a and b, oldest first.
func (g *graph) conversation(a, b string) []*messageDoc {
	var out []*messageDoc
	for _, m := range g.messages {
		if (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a) {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (m *messageDoc) wire() domain.Message {
	return domain.Message{
		ID:        m.Key,
		SenderID:  m.SenderID,
		Text:      m.Text,
		Timestamp: m.CreatedAt.Format(timestampLayout),
		IsRead:    m.IsRead,
	}
}

// likedMe returns users with a like towards key, in first-like order.
func (g *graph) likedMe(key string) []string {
	var out []string
	for _, s := range g.swipes {
		if s.TargetUserID == key && s.Liked && !slices.Contains(out, s.UserID) {
			out = append(out, s.UserID)
		}
	}
	return out
}
