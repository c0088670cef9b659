package devapi

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// DemoPassword is the password of every seeded user.
const DemoPassword = "password123"

var catalog = map[string][]string{
	"Programming":  {"Python", "JavaScript", "Java", "C++", "Ruby", "Go", "TypeScript", "PHP", "Swift", "Kotlin", "Rust", "HTML", "CSS", "SQL", "NoSQL"},
	"Data Science": {"Machine Learning", "Deep Learning", "Natural Language Processing", "Computer Vision", "Data Analysis", "Data Visualization", "Statistics", "TensorFlow", "PyTorch", "Pandas", "Numpy", "R"},
	"Web Dev":      {"React", "Angular", "Vue.js", "Node.js", "Django", "Flask", "Express.js", "GraphQL", "REST API", "MongoDB", "PostgreSQL", "Firebase", "AWS", "Docker", "Kubernetes"},
	"Design":       {"UI Design", "UX Design", "Graphic Design", "Figma", "Adobe XD", "Photoshop", "Illustrator", "Sketch", "InDesign", "Typography", "Color Theory", "Motion Design"},
	"Business":     {"Project Management", "Agile", "Scrum", "Marketing", "Finance", "Accounting", "Sales", "Supply Chain", "HR Management", "Leadership", "Public Speaking", "Negotiation"},
	"Soft Skills":  {"Communication", "Teamwork", "Time Management", "Problem Solving", "Critical Thinking", "Creativity", "Adaptability", "Emotional Intelligence", "Conflict Resolution", "Stress Management"},
}

func categoryOf(name string) (string, bool) {
	for category, names := range catalog {
		for _, n := range names {
			if strings.EqualFold(n, name) {
				return category, true
			}
		}
	}
	return "", false
}

type demoUser struct {
	username string
	teaches  []string
	learns   []string
}

var demoUsers = []demoUser{
	{"alex_dev", []string{"JavaScript", "React", "Node.js", "CSS", "HTML"}, []string{"Machine Learning", "Python", "Data Analysis", "AWS"}},
	{"sarah_data", []string{"Python", "Machine Learning", "Data Analysis", "Statistics", "TensorFlow"}, []string{"JavaScript", "React", "UI Design", "Communication"}},
	{"mike_design", []string{"UI Design", "UX Design", "Figma", "Adobe XD", "Sketch"}, []string{"JavaScript", "React Native", "Swift", "Typography"}},
	{"lisa_pm", []string{"Project Management", "Agile", "Scrum", "Leadership", "Communication"}, []string{"Python", "Data Analysis", "UI Design", "SQL"}},
	{"david_mobile", []string{"Swift", "iOS Development", "UI Design", "REST API"}, []string{"Kotlin", "Android Development", "Flutter", "Firebase"}},
	{"emma_backend", []string{"Java", "Python", "SQL", "Docker", "AWS"}, []string{"Go", "Kubernetes", "GraphQL", "React"}},
	{"jason_ml", []string{"Computer Vision", "Deep Learning", "PyTorch", "Python"}, []string{"JavaScript", "React", "Data Visualization", "Cloud Computing"}},
	{"rachel_frontend", []string{"JavaScript", "React", "CSS", "HTML", "TypeScript"}, []string{"Node.js", "Python", "UX Design", "Project Management"}},
	{"tom_devops", []string{"Docker", "Kubernetes", "AWS", "CI/CD", "Linux"}, []string{"Go", "Python", "Machine Learning", "Security"}},
	{"nina_ux", []string{"UX Design", "User Research", "Usability Testing", "Prototyping"}, []string{"HTML", "CSS", "JavaScript", "Data Visualization"}},
}

// Seed loads the demo users. Skills outside the catalog are skipped.
// alex_dev and sarah_data start out matched with one message exchanged.
// Existing usernames are left alone.
func (s *Server) Seed() error {
	hash, err := hashPassword(DemoPassword, s.opts.BcryptCost)
	if err != nil {
		return fmt.Errorf("devapi.Seed: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.g

	added := 0
	for _, du := range demoUsers {
		if g.userByName(du.username) != nil {
			continue
		}
		key := g.insertUser(&userDoc{
			Username:     du.username,
			Email:        strings.SplitN(du.username, "_", 2)[0] + "@example.com",
			PasswordHash: hash,
		})
		for _, name := range du.teaches {
			if category, ok := categoryOf(name); ok {
				addEdge(g.teaches, key, g.ensureSkill(name, category))
			}
		}
		for _, name := range du.learns {
			if category, ok := categoryOf(name); ok {
				addEdge(g.learns, key, g.ensureSkill(name, category))
			}
		}
		added++
	}

	alex, sarah := g.userByName("alex_dev"), g.userByName("sarah_data")
	if added > 0 && alex != nil && sarah != nil && !g.mutual(alex.Key, sarah.Key) {
		now := s.now()
		g.swipes = append(g.swipes,
			swipeDoc{UserID: alex.Key, TargetUserID: sarah.Key, Liked: true, CreatedAt: now},
			swipeDoc{UserID: sarah.Key, TargetUserID: alex.Key, Liked: true, CreatedAt: now},
		)
		g.messages = append(g.messages, &messageDoc{
			Key:        uuid.NewString(),
			SenderID:   sarah.Key,
			ReceiverID: alex.Key,
			Text:       "Hi Alex! Happy to trade some Python for React.",
			CreatedAt:  now,
		})
	}

	s.log.Info("seeded demo data", "users", added, "skills", len(g.skills))
	return nil
}
