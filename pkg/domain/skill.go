package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SkillType selects which side of the exchange a skill belongs to.
type SkillType string

const (
	SkillTeaching SkillType = "teaching"
	SkillLearning SkillType = "learning"
)

// SkillLevels are the proficiency levels offered for teaching skills.
var SkillLevels = []string{"Beginner", "Intermediate", "Advanced", "Expert"}

// DefaultSkillLevel is preselected when adding a teaching skill.
const DefaultSkillLevel = "Intermediate"

// ValidSkillLevel reports whether level is one of SkillLevels.
func ValidSkillLevel(level string) bool {
	for _, l := range SkillLevels {
		if l == level {
			return true
		}
	}
	return false
}

// Skill is a named skill node. The backend sends skills either as objects
// or as bare graph ids such as "skills/machine_learning".
type Skill struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
	Level    string `json:"level,omitempty"`
}

// UnmarshalJSON accepts both the object and the bare id form.
func (s *Skill) UnmarshalJSON(data []byte) error {
	var ref string
	if err := json.Unmarshal(data, &ref); err == nil {
		*s = SkillFromRef(ref)
		return nil
	}

	var raw struct {
		ID       string  `json:"id"`
		GraphID  string  `json:"_id"`
		Key      string  `json:"_key"`
		Name     string  `json:"name"`
		Category string  `json:"category"`
		Level    *string `json:"level"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode skill: %w", err)
	}

	id := raw.ID
	if id == "" {
		id = raw.Key
	}
	if id == "" {
		id = strings.TrimPrefix(raw.GraphID, "skills/")
	}
	*s = Skill{ID: id, Name: raw.Name, Category: raw.Category}
	if raw.Level != nil {
		s.Level = *raw.Level
	}
	if s.Name == "" {
		s.Name = SkillFromRef(id).Name
	}
	return nil
}

// SkillFromRef builds a Skill from a graph reference like "skills/web_design".
func SkillFromRef(ref string) Skill {
	key := strings.TrimPrefix(ref, "skills/")
	return Skill{ID: key, Name: strings.ReplaceAll(key, "_", " ")}
}

// SkillKey derives the backend key for a skill name ("Web Design" -> "web_design").
func SkillKey(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, " ", "_"))
}

// SkillNames joins skill names for display.
func SkillNames(skills []Skill) string {
	names := make([]string, 0, len(skills))
	for _, s := range skills {
		names = append(names, s.Name)
	}
	return strings.Join(names, ", ")
}
