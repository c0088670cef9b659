package devapi

import (
	"fmt"
	"net/http"
	"net/url"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/knowzhq/knowz/pkg/domain"
)

// --- Auth ---

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username       string `json:"username"`
		Email          string `json:"email"`
		Password       string `json:"password"`
		PrimarySkill   string `json:"primary_skill"`
		SecondarySkill string `json:"secondary_skill"`
		LearningGoal   string `json:"learning_goal"`
	}
	if !decode(r, &req) || req.Username == "" || req.Email == "" || req.Password == "" {
		Error(w, http.StatusBadRequest, "Missing required fields")
		return
	}

	hash, err := hashPassword(req.Password, s.opts.BcryptCost)
	if err != nil {
		s.log.Error("hash password", "error", err)
		Error(w, http.StatusInternalServerError, "Registration failed. Please try again.")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.g

	if g.userByName(req.Username) != nil {
		Error(w, http.StatusBadRequest, "Username already exists")
		return
	}
	key := g.insertUser(&userDoc{
		Username:       req.Username,
		Email:          req.Email,
		PasswordHash:   hash,
		PrimarySkill:   req.PrimarySkill,
		SecondarySkill: req.SecondarySkill,
		LearningGoal:   req.LearningGoal,
	})
	if req.PrimarySkill != "" {
		addEdge(g.teaches, key, g.ensureSkill(req.PrimarySkill, "Technical"))
	}
	if req.LearningGoal != "" {
		addEdge(g.learns, key, g.ensureSkill(req.LearningGoal, "Technical"))
	}

	s.log.Info("user registered", "user_id", key, "username", req.Username)
	JSON(w, http.StatusCreated, map[string]string{"message": "User created successfully", "user_id": key})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if !decode(r, &req) || req.Username == "" || req.Password == "" {
		Error(w, http.StatusBadRequest, "Missing username or password")
		return
	}

	s.mu.Lock()
	u := s.g.userByName(req.Username)
	var (
		key  string
		hash []byte
	)
	if u != nil {
		key, hash = u.Key, u.PasswordHash
	}
	s.mu.Unlock()

	if u == nil || !checkPassword(hash, req.Password) {
		Error(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := GenerateToken(key, s.opts.Secret, s.opts.TokenTTL)
	if err != nil {
		s.log.Error("sign token", "error", err)
		Error(w, http.StatusInternalServerError, "Login failed. Please try again.")
		return
	}
	JSON(w, http.StatusOK, map[string]string{
		"message":      "Login successful",
		"access_token": token,
		"user_id":      key,
		"username":     req.Username,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string]string{"status": "healthy", "database": "connected"})
}

// --- Profile ---

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	me := UserIDFromContext(r.Context())

	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.g

	u, ok := g.users[me]
	if !ok {
		Error(w, http.StatusNotFound, "User not found")
		return
	}
	JSON(w, http.StatusOK, map[string]any{
		"user": map[string]string{
			"_key":            u.Key,
			"_id":             "users/" + u.Key,
			"username":        u.Username,
			"email":           u.Email,
			"primary_skill":   u.PrimarySkill,
			"secondary_skill": u.SecondarySkill,
			"learning_goal":   u.LearningGoal,
		},
		"skills":         g.skillList(g.teaches[me]),
		"learning_goals": g.skillList(g.learns[me]),
	})
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	me := UserIDFromContext(r.Context())
	var req struct {
		Email          *string `json:"email"`
		PrimarySkill   *string `json:"primary_skill"`
		SecondarySkill *string `json:"secondary_skill"`
		LearningGoal   *string `json:"learning_goal"`
	}
	if !decode(r, &req) {
		Error(w, http.StatusBadRequest, "Missing required fields")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.g

	u, ok := g.users[me]
	if !ok {
		Error(w, http.StatusNotFound, "User not found")
		return
	}
	if req.Email != nil {
		u.Email = *req.Email
	}
	if req.SecondarySkill != nil {
		u.SecondarySkill = *req.SecondarySkill
	}
	// a new primary skill or learning goal replaces the whole edge set
	if req.PrimarySkill != nil {
		u.PrimarySkill = *req.PrimarySkill
		if *req.PrimarySkill != "" {
			g.teaches[me] = []string{g.ensureSkill(*req.PrimarySkill, "Technical")}
		}
	}
	if req.LearningGoal != nil {
		u.LearningGoal = *req.LearningGoal
		if *req.LearningGoal != "" {
			g.learns[me] = []string{g.ensureSkill(*req.LearningGoal, "Technical")}
		}
	}
	JSON(w, http.StatusOK, map[string]string{"message": "Profile updated successfully"})
}

func (s *Server) handleAddSkill(w http.ResponseWriter, r *http.Request) {
	me := UserIDFromContext(r.Context())
	var req struct {
		Name  *string          `json:"skill_name"`
		Type  domain.SkillType `json:"skill_type"`
		Level string           `json:"skill_level"`
	}
	if !decode(r, &req) || req.Name == nil || req.Type == "" {
		Error(w, http.StatusBadRequest, "Missing required fields")
		return
	}
	if req.Type != domain.SkillTeaching && req.Type != domain.SkillLearning {
		Error(w, http.StatusBadRequest, "Invalid skill type. Must be 'teaching' or 'learning'")
		return
	}
	if req.Level == "" {
		req.Level = domain.DefaultSkillLevel
	}
	if req.Type == domain.SkillTeaching && !domain.ValidSkillLevel(req.Level) {
		Error(w, http.StatusBadRequest, "Invalid skill level")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.g

	skill := map[string]any{"id": domain.SkillKey(*req.Name), "name": *req.Name, "level": nil}
	if req.Type == domain.SkillTeaching {
		// teaching skills carry the level as their category
		key := g.ensureSkill(*req.Name, req.Level)
		g.skills[key].Category = req.Level
		addEdge(g.teaches, me, key)
		skill["level"] = req.Level
	} else {
		addEdge(g.learns, me, g.ensureSkill(*req.Name, "Technical"))
	}

	JSON(w, http.StatusOK, map[string]any{
		"message": fmt.Sprintf("Successfully added %s skill", req.Type),
		"skill":   skill,
	})
}

func (s *Server) handleRemoveSkill(w http.ResponseWriter, r *http.Request) {
	me := UserIDFromContext(r.Context())
	var req struct {
		ID   *string          `json:"skill_id"`
		Type domain.SkillType `json:"skill_type"`
	}
	if !decode(r, &req) || req.ID == nil || req.Type == "" {
		Error(w, http.StatusBadRequest, "Missing required fields")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	switch req.Type {
	case domain.SkillTeaching:
		removeEdge(s.g.teaches, me, *req.ID)
	case domain.SkillLearning:
		removeEdge(s.g.learns, me, *req.ID)
	default:
		Error(w, http.StatusBadRequest, "Invalid skill type. Must be 'teaching' or 'learning'")
		return
	}
	JSON(w, http.StatusOK, map[string]string{
		"message":  fmt.Sprintf("Successfully removed %s skill", req.Type),
		"skill_id": *req.ID,
	})
}

// --- Matching ---

type candidate struct {
	UserID          string   `json:"user_id"`
	Username        string   `json:"username"`
	MatchScore      int      `json:"match_score"`
	MatchingSkills  []string `json:"matching_skills"`
	MatchingGoals   []string `json:"matching_goals"`
	AllSkills       []string `json:"all_skills"`
	AllGoals        []string `json:"all_goals"`
	MatchPercentage int      `json:"match_percentage"`
}

const predictLimit = 5

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	me := UserIDFromContext(r.Context())

	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.g

	if _, ok := g.users[me]; !ok {
		JSON(w, http.StatusOK, map[string]any{"matches": []candidate{}})
		return
	}

	cands := make([]candidate, 0, len(g.order))
	for _, key := range g.order {
		if key == me {
			continue
		}
		theyTeach, iTeach := g.exchange(me, key)
		score := len(theyTeach) + len(iTeach)
		cands = append(cands, candidate{
			UserID:          key,
			Username:        g.users[key].Username,
			MatchScore:      score,
			MatchingSkills:  refs(theyTeach),
			MatchingGoals:   refs(iTeach),
			AllSkills:       refs(g.teaches[key]),
			AllGoals:        refs(g.learns[key]),
			MatchPercentage: matchPercentage(score),
		})
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].MatchScore > cands[j].MatchScore })
	if len(cands) > predictLimit {
		cands = cands[:predictLimit]
	}

	s.log.Debug("predicted matches", "user_id", me, "count", len(cands))
	JSON(w, http.StatusOK, map[string]any{"matches": cands})
}

func (s *Server) handleSwipe(w http.ResponseWriter, r *http.Request) {
	me := UserIDFromContext(r.Context())
	var req struct {
		TargetUserID *string `json:"target_user_id"`
		Liked        *bool   `json:"liked"`
	}
	if !decode(r, &req) || req.TargetUserID == nil || req.Liked == nil {
		Error(w, http.StatusBadRequest, "Missing required fields")
		return
	}
	target := *req.TargetUserID

	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.g

	g.swipes = append(g.swipes, swipeDoc{UserID: me, TargetUserID: target, Liked: *req.Liked, CreatedAt: s.now()})

	res := domain.SwipeResult{Success: true}
	if *req.Liked && g.liked(target, me) {
		res.IsMatch = true
		if u, ok := g.users[target]; ok {
			res.MatchDetails = &domain.MatchDetails{UserID: target, Username: u.Username}
		}
		s.log.Info("mutual match", "user_id", me, "target_user_id", target)
	}
	JSON(w, http.StatusOK, res)
}

func (s *Server) handleMatches(w http.ResponseWriter, r *http.Request) {
	me := UserIDFromContext(r.Context())

	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.g

	out := make([]domain.Match, 0)
	seen := make(map[string]bool)
	for _, sw := range g.swipes {
		other := sw.TargetUserID
		if sw.UserID != me || !sw.Liked || seen[other] || !g.liked(other, me) {
			continue
		}
		seen[other] = true

		m := domain.Match{ID: other, MaxMessages: s.opts.MaxMessages}
		if u, ok := g.users[other]; ok {
			m.Username = u.Username
		}
		conv := g.conversation(me, other)
		m.MessageCount = len(conv)
		for _, msg := range conv {
			if msg.SenderID == other && !msg.IsRead {
				m.UnreadCount++
			}
		}
		if len(conv) > 0 {
			m.LastMessage = conv[len(conv)-1].Text
		}
		out = append(out, m)
	}
	JSON(w, http.StatusOK, map[string]any{"matches": out})
}

func (s *Server) handlePendingMatches(w http.ResponseWriter, r *http.Request) {
	me := UserIDFromContext(r.Context())

	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.g

	out := make([]domain.PendingMatch, 0)
	for _, other := range g.likedMe(me) {
		if g.liked(me, other) {
			continue
		}
		theyTeach, iTeach := g.exchange(me, other)
		p := domain.PendingMatch{UserID: other, MatchPercentage: matchPercentage(len(theyTeach) + len(iTeach))}
		if u, ok := g.users[other]; ok {
			p.Username = u.Username
		}
		out = append(out, p)
	}
	JSON(w, http.StatusOK, map[string]any{"pending_matches": out})
}

// --- Messaging ---

func (s *Server) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	me := UserIDFromContext(r.Context())
	matchID, err := url.PathUnescape(chi.URLParam(r, "matchID"))
	if err != nil {
		Error(w, http.StatusBadRequest, "Invalid match id")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.g

	if !g.mutual(me, matchID) {
		Error(w, http.StatusForbidden, "Invalid match or unauthorized access")
		return
	}

	conv := g.conversation(me, matchID)
	out := make([]domain.Message, 0, len(conv))
	for _, m := range conv {
		out = append(out, m.wire())
	}
	// the returned list shows read state from before this fetch
	for _, m := range conv {
		if m.SenderID == matchID {
			m.IsRead = true
		}
	}
	JSON(w, http.StatusOK, map[string]any{"messages": out})
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	me := UserIDFromContext(r.Context())
	var req struct {
		RecipientID *string `json:"recipientId"`
		Text        *string `json:"text"`
	}
	if !decode(r, &req) || req.RecipientID == nil || req.Text == nil {
		Error(w, http.StatusBadRequest, "Missing required fields")
		return
	}
	recipient := *req.RecipientID

	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.g

	if !g.mutual(me, recipient) {
		Error(w, http.StatusForbidden, "You can only message users you've matched with")
		return
	}
	if len(g.conversation(me, recipient)) >= s.opts.MaxMessages {
		Error(w, http.StatusForbidden, "Message limit reached for this match")
		return
	}

	m := &messageDoc{
		Key:        uuid.NewString(),
		SenderID:   me,
		ReceiverID: recipient,
		Text:       *req.Text,
		CreatedAt:  s.now(),
	}
	g.messages = append(g.messages, m)
	JSON(w, http.StatusOK, map[string]any{"message": m.wire()})
}
