// Package devapi is an in-memory stand-in for the KnowZ REST API. It backs
// `knowz devserver` for local use and the client integration tests.
package devapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/crypto/bcrypt"
)

// Options configures a Server.
type Options struct {
	Secret      []byte
	TokenTTL    time.Duration
	BcryptCost  int
	MaxMessages int
}

func (o *Options) withDefaults() {
	if o.TokenTTL <= 0 {
		o.TokenTTL = 24 * time.Hour
	}
	if o.BcryptCost == 0 {
		o.BcryptCost = bcrypt.DefaultCost
	}
	if o.MaxMessages <= 0 {
		o.MaxMessages = 5
	}
}

// Server holds the in-memory graph and serves the API.
type Server struct {
	opts Options
	log  *slog.Logger
	now  func() time.Time

	mu sync.Mutex
	g  *graph
}

// NewServer returns an empty server.
func NewServer(opts Options, log *slog.Logger) (*Server, error) {
	if len(opts.Secret) == 0 {
		return nil, errors.New("devapi: token secret is required")
	}
	opts.withDefaults()
	return &Server{opts: opts, log: log, now: time.Now, g: newGraph()}, nil
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  slog.NewLogLogger(s.log.Handler(), slog.LevelDebug),
		NoColor: true,
	}))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	r.Post("/register", s.handleRegister)
	r.Post("/login", s.handleLogin)
	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Get("/profile", s.handleGetProfile)
		r.Put("/profile", s.handleUpdateProfile)
		r.Post("/add-skill", s.handleAddSkill)
		r.Post("/remove-skill", s.handleRemoveSkill)
		r.Post("/predict", s.handlePredict)
		r.Post("/swipe", s.handleSwipe)
		r.Get("/matches", s.handleMatches)
		r.Post("/pending-matches", s.handlePendingMatches)
		r.Get("/messages/{matchID}", s.handleGetMessages)
		r.Post("/messages/send", s.handleSendMessage)
	})

	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Dev API listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("devapi.ListenAndServe: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info("Shutting down dev API")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("devapi.ListenAndServe: shutdown: %w", err)
	}
	return nil
}

// JSON writes a JSON response.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

func decode(r *http.Request, v any) bool {
	return json.NewDecoder(r.Body).Decode(v) == nil
}
