package domain

// User is the account document returned inside a profile.
type User struct {
	Key            string `json:"_key"`
	Username       string `json:"username"`
	Email          string `json:"email"`
	PrimarySkill   string `json:"primary_skill,omitempty"`
	SecondarySkill string `json:"secondary_skill,omitempty"`
	LearningGoal   string `json:"learning_goal,omitempty"`
}

// Profile is the authenticated user's account plus the skills they teach
// and the goals they want to learn.
type Profile struct {
	User          User    `json:"user"`
	Skills        []Skill `json:"skills"`
	LearningGoals []Skill `json:"learning_goals"`
}
