package tui

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/knowzhq/knowz/internal/logging"
	"github.com/knowzhq/knowz/internal/session"
	"github.com/knowzhq/knowz/internal/store"
	"github.com/knowzhq/knowz/pkg/client"
	"github.com/knowzhq/knowz/pkg/domain"
)

// stubAuth answers login and register without a network.
type stubAuth struct {
	loginErr    error
	registerErr error
	registered  *client.RegisterRequest
}

func (s *stubAuth) Login(_ context.Context, username, _ string) (*client.LoginResponse, error) {
	if s.loginErr != nil {
		return nil, s.loginErr
	}
	return &client.LoginResponse{AccessToken: "tok", UserID: "1001", Username: username}, nil
}

func (s *stubAuth) Register(_ context.Context, req client.RegisterRequest) (*client.RegisterResponse, error) {
	if s.registerErr != nil {
		return nil, s.registerErr
	}
	s.registered = &req
	return &client.RegisterResponse{UserID: "1001"}, nil
}

// newTestSession returns an unrestored session store over in-memory sqlite.
// A non-nil sess is persisted so Restore will find it.
func newTestSession(t *testing.T, auth session.Authenticator, sess *domain.Session) *session.Store {
	t.Helper()
	ctx := context.Background()
	st, err := store.Open(ctx, store.MemoryPath)
	if err != nil {
		t.Fatalf("store.Open() error: %v", err)
	}
	t.Cleanup(func() { st.Close() }) //nolint:errcheck

	storage := session.NewSQLiteStorage(st)
	if sess != nil {
		if err := storage.Save(ctx, *sess); err != nil {
			t.Fatalf("Save() error: %v", err)
		}
	}
	return session.New(auth, storage, logging.Discard())
}

var testSession = &domain.Session{UserID: "1001", Username: "alex_dev", Token: "tok"}

func newTestApp(t *testing.T, sess *domain.Session) App {
	t.Helper()
	a := NewApp(Deps{Session: newTestSession(t, &stubAuth{}, sess)})
	a.width = 100
	a.height = 40
	return a
}

// restored runs the startup restore and feeds its result back to the app.
func restored(t *testing.T, a App) App {
	t.Helper()
	msg := a.restore()()
	model, _ := a.Update(msg)
	return model.(App)
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestAppShowsLoadingUntilRestored(t *testing.T) {
	a := newTestApp(t, testSession)

	v := a.View()
	if !strings.Contains(v, "Loading...") {
		t.Errorf("expected neutral placeholder before restore, got:\n%s", v)
	}
	if strings.Contains(v, "Dashboard") || strings.Contains(v, "Login to KnowZ") {
		t.Errorf("neither protected view nor login should render before restore, got:\n%s", v)
	}

	// Keys are ignored while loading.
	model, _ := a.Update(key("2"))
	if got := model.(App).current(); got != viewDashboard {
		t.Errorf("current() = %d, want %d", got, viewDashboard)
	}
}

func TestAppRedirectsToLoginWithoutSession(t *testing.T) {
	a := restored(t, newTestApp(t, nil))

	if a.current() != viewAuth {
		t.Fatalf("current() = %d, want viewAuth", a.current())
	}
	if len(a.history) != 1 {
		t.Errorf("redirect should replace history, got %v", a.history)
	}
	if v := a.View(); !strings.Contains(v, "Login to KnowZ") {
		t.Errorf("expected login form, got:\n%s", v)
	}
}

func TestAppRestoredSessionShowsDashboard(t *testing.T) {
	a := newTestApp(t, testSession)
	model, cmd := a.Update(a.restore()())
	a = model.(App)

	if a.current() != viewDashboard {
		t.Fatalf("current() = %d, want viewDashboard", a.current())
	}
	if cmd == nil {
		t.Error("expected dashboard load command after restore")
	}
	v := a.View()
	if !strings.Contains(v, "Loading your dashboard...") {
		t.Errorf("expected dashboard loading text, got:\n%s", v)
	}
	if !strings.Contains(v, "@alex_dev") {
		t.Errorf("expected username in header, got:\n%s", v)
	}
}

func TestAppTabSwitching(t *testing.T) {
	tests := []struct {
		key      string
		wantView view
	}{
		{"2", viewSwiper},
		{"3", viewMessages},
		{"4", viewProfile},
	}

	for _, tc := range tests {
		t.Run(tc.key, func(t *testing.T) {
			a := restored(t, newTestApp(t, testSession))
			model, cmd := a.Update(key(tc.key))
			a = model.(App)
			if a.current() != tc.wantView {
				t.Errorf("after key %q: current() = %d, want %d", tc.key, a.current(), tc.wantView)
			}
			if cmd == nil {
				t.Errorf("after key %q: expected mount command", tc.key)
			}
			if len(a.history) != 1 {
				t.Errorf("tabs should not grow history, got %v", a.history)
			}
		})
	}
}

func TestAppSessionExpiredRedirectsAndStopsPolling(t *testing.T) {
	a := restored(t, newTestApp(t, testSession))
	model, _ := a.Update(key("3"))
	a = model.(App)
	const gen = 1 // first mount of the messages view
	if !a.messages.poller.Live(gen) {
		t.Fatal("expected the messages poller to run after mount")
	}

	model, _ = a.Update(sessionExpiredMsg{})
	a = model.(App)

	if a.current() != viewAuth || len(a.history) != 1 {
		t.Fatalf("history = %v, want [viewAuth]", a.history)
	}
	if a.session.IsAuthenticated() {
		t.Error("session should be cleared after expiry")
	}
	if a.messages.poller.Live(gen) {
		t.Error("poller should stop when the messages view is left")
	}
	if v := a.View(); !strings.Contains(v, session.SessionExpired) {
		t.Errorf("expected expiry notice on login form, got:\n%s", v)
	}
}

func TestAppExpiryFromDeepHistoryNeverGoesBack(t *testing.T) {
	a := restored(t, newTestApp(t, testSession))
	model, _ := a.Update(navigateMsg{to: viewSwiper})
	model, _ = model.(App).Update(navigateMsg{to: viewProfile})
	a = model.(App)
	if len(a.history) != 3 {
		t.Fatalf("history = %v, want 3 entries", a.history)
	}

	model, _ = a.Update(sessionExpiredMsg{})
	a = model.(App)
	model, _ = a.Update(tea.KeyMsg{Type: tea.KeyEsc})
	a = model.(App)
	if a.current() != viewAuth {
		t.Errorf("back after redirect reached %d, want viewAuth", a.current())
	}
}

func TestAppNavigateAndBack(t *testing.T) {
	a := restored(t, newTestApp(t, testSession))
	model, _ := a.Update(navigateMsg{to: viewMessages})
	a = model.(App)
	if a.current() != viewMessages {
		t.Fatalf("current() = %d, want viewMessages", a.current())
	}

	model, _ = a.Update(tea.KeyMsg{Type: tea.KeyEsc})
	a = model.(App)
	if a.current() != viewDashboard {
		t.Errorf("esc should return to dashboard, got %d", a.current())
	}
}

func TestAppLogout(t *testing.T) {
	a := restored(t, newTestApp(t, testSession))
	model, _ := a.Update(key("L"))
	a = model.(App)

	if a.current() != viewAuth {
		t.Errorf("current() = %d, want viewAuth", a.current())
	}
	if a.session.IsAuthenticated() {
		t.Error("session should be cleared after logout")
	}
	if a.session.Err() != "" {
		t.Errorf("logout should not set an error, got %q", a.session.Err())
	}
}

func TestAppLoginReachesDashboard(t *testing.T) {
	a := restored(t, newTestApp(t, nil))
	for _, r := range "alex_dev" {
		model, _ := a.Update(key(string(r)))
		a = model.(App)
	}
	model, _ := a.Update(tea.KeyMsg{Type: tea.KeyTab})
	a = model.(App)
	for _, r := range "password123" {
		model, _ = a.Update(key(string(r)))
		a = model.(App)
	}
	model, cmd := a.Update(tea.KeyMsg{Type: tea.KeyEnter})
	a = model.(App)
	if cmd == nil {
		t.Fatal("expected login command on enter")
	}

	model, _ = a.Update(cmd())
	a = model.(App)
	if a.current() != viewDashboard {
		t.Fatalf("current() = %d, want viewDashboard", a.current())
	}
	sess, ok := a.session.Current()
	if !ok || sess.Username != "alex_dev" {
		t.Errorf("session = %+v, %v", sess, ok)
	}
}

func TestAppQuitKeys(t *testing.T) {
	a := restored(t, newTestApp(t, testSession))
	if _, cmd := a.Update(key("q")); cmd == nil {
		t.Error("expected quit command on 'q'")
	}

	// On the login form q is typed, not a quit.
	a = restored(t, newTestApp(t, nil))
	model, _ := a.Update(key("q"))
	if got := model.(App).auth.username; got != "q" {
		t.Errorf("username = %q, want %q", got, "q")
	}
}

func TestAppHelpOverlay(t *testing.T) {
	a := restored(t, newTestApp(t, testSession))
	model, _ := a.Update(key("h"))
	a = model.(App)
	if !a.helpOpen {
		t.Fatal("expected help overlay after 'h'")
	}
	if v := a.View(); !strings.Contains(v, "knowz register") {
		t.Errorf("help overlay missing commands:\n%s", v)
	}
	model, _ = a.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if model.(App).helpOpen {
		t.Error("esc should close the help overlay")
	}
}

func TestAppRoutesResultsToTheirScreen(t *testing.T) {
	a := restored(t, newTestApp(t, testSession))
	model, _ := a.Update(dashboardLoadedMsg{
		matches: []domain.Match{{ID: "2", Username: "sarah_data", UnreadCount: 2, MaxMessages: 5}},
	})
	a = model.(App)

	// A late profile result arriving on the dashboard still lands on the profile.
	model, _ = a.Update(profileLoadedMsg{profile: &domain.Profile{User: domain.User{Username: "alex_dev"}}})
	a = model.(App)
	if a.profile.profile == nil {
		t.Error("profile result should be routed to the profile screen")
	}
	if v := a.View(); !strings.Contains(v, "●2") {
		t.Errorf("expected unread badge on Messages tab, got:\n%s", v)
	}
}
