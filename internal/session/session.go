// Package session is the single source of truth for who is logged in and
// the bearer credential used by every API call.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/knowzhq/knowz/pkg/client"
	"github.com/knowzhq/knowz/pkg/domain"
)

// Fallback messages used when the server gives no error text.
const (
	LoginFailed        = "Login failed"
	RegistrationFailed = "Registration failed"
	SessionExpired     = "Your session has expired. Please login again."
)

// Authenticator is the subset of the API client the store needs.
type Authenticator interface {
	Register(ctx context.Context, req client.RegisterRequest) (*client.RegisterResponse, error)
	Login(ctx context.Context, username, password string) (*client.LoginResponse, error)
}

// Store holds the current session. It has a single writer (the UI loop)
// and many readers, including request goroutines reading the token.
type Store struct {
	auth    Authenticator
	storage Storage
	log     *slog.Logger

	mu      sync.RWMutex
	session *domain.Session
	ready   bool
	err     string
}

// New creates an uninitialized store. Call Restore before consulting the guard.
func New(auth Authenticator, storage Storage, log *slog.Logger) *Store {
	return &Store{auth: auth, storage: storage, log: log}
}

// Restore reads durable storage once. A session is restored only if token,
// user id and username are all present; no expiry check is made. The store
// is marked ready whatever the outcome.
func (s *Store) Restore(ctx context.Context) error {
	sess, err := s.storage.Load(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = true
	if err != nil {
		return fmt.Errorf("session.Restore: %w", err)
	}
	if sess.Complete() {
		s.session = &sess
	}
	return nil
}

// Login exchanges credentials for a session. On failure the error message is
// set and any prior session is left untouched.
func (s *Store) Login(ctx context.Context, username, password string) error {
	s.setErr("")

	resp, err := s.auth.Login(ctx, username, password)
	if err != nil {
		s.setErr(client.Message(err, LoginFailed))
		return fmt.Errorf("session.Login: %w", err)
	}

	sess := domain.Session{UserID: resp.UserID, Username: username, Token: resp.AccessToken}
	if err := s.storage.Save(ctx, sess); err != nil {
		s.log.Warn("persist session failed", "error", err)
	}

	s.mu.Lock()
	s.session = &sess
	s.mu.Unlock()
	s.log.Info("logged in", "user_id", sess.UserID, "username", sess.Username)
	return nil
}

// Register creates the account and then logs in with the same credentials.
// If the account is created but the login fails, no session exists.
func (s *Store) Register(ctx context.Context, req client.RegisterRequest) error {
	s.setErr("")

	if _, err := s.auth.Register(ctx, req); err != nil {
		s.setErr(client.Message(err, RegistrationFailed))
		return fmt.Errorf("session.Register: %w", err)
	}
	if err := s.Login(ctx, req.Username, req.Password); err != nil {
		s.setErr(client.Message(err, RegistrationFailed))
		return fmt.Errorf("session.Register: %w", err)
	}
	return nil
}

// Logout clears storage and memory unconditionally. It never contacts the backend.
func (s *Store) Logout(ctx context.Context) error {
	return s.drop(ctx, "")
}

// Expire drops a session the backend rejected and records why.
func (s *Store) Expire(ctx context.Context) error {
	return s.drop(ctx, SessionExpired)
}

func (s *Store) drop(ctx context.Context, reason string) error {
	s.mu.Lock()
	s.session = nil
	s.err = reason
	s.mu.Unlock()

	if err := s.storage.Clear(ctx); err != nil {
		s.log.Warn("clear stored session failed", "error", err)
		return fmt.Errorf("session.Logout: %w", err)
	}
	return nil
}

// Current returns the session and whether one exists.
func (s *Store) Current() (domain.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return domain.Session{}, false
	}
	return *s.session, true
}

// IsAuthenticated is true iff a session exists.
func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session != nil
}

// Ready reports whether initialization has finished.
func (s *Store) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// Err returns the current error message, or "".
func (s *Store) Err() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// ClearErr drops the current error message.
func (s *Store) ClearErr() {
	s.setErr("")
}

// Token implements client.TokenSource.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return ""
	}
	return s.session.Token
}

func (s *Store) setErr(msg string) {
	s.mu.Lock()
	s.err = msg
	s.mu.Unlock()
}

// SplitSkills splits a comma-separated skills field into primary skill,
// secondary skill and learning goal. Parts are trimmed; the count is not
// validated, and missing parts are nil.
func SplitSkills(input string) (primary, secondary, goal *string) {
	parts := strings.Split(input, ",")
	at := func(i int) *string {
		if i >= len(parts) {
			return nil
		}
		v := strings.TrimSpace(parts[i])
		return &v
	}
	return at(0), at(1), at(2)
}

// NewRegisterRequest builds a registration payload from form fields.
func NewRegisterRequest(username, email, password, skills string) client.RegisterRequest {
	primary, secondary, goal := SplitSkills(skills)
	return client.RegisterRequest{
		Username:       username,
		Email:          email,
		Password:       password,
		PrimarySkill:   primary,
		SecondarySkill: secondary,
		LearningGoal:   goal,
	}
}
