package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/knowzhq/knowz/pkg/domain"
)

// TokenSource supplies the bearer token for each outgoing request.
// It is consulted on every call so a session change takes effect immediately.
type TokenSource interface {
	Token() string
}

// Client is the KnowZ API client.
type Client struct {
	baseURL    string
	tokens     TokenSource
	httpClient *http.Client
}

// New creates a new API client. tokens may be nil for unauthenticated use.
func New(baseURL string, tokens TokenSource) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// BaseURL returns the API root this client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// --- Auth ---

// RegisterRequest is the payload for creating an account. The three skill
// fields are optional; nil fields are omitted from the request.
type RegisterRequest struct {
	Username       string  `json:"username"`
	Email          string  `json:"email"`
	Password       string  `json:"password"`
	PrimarySkill   *string `json:"primary_skill,omitempty"`
	SecondarySkill *string `json:"secondary_skill,omitempty"`
	LearningGoal   *string `json:"learning_goal,omitempty"`
}

// RegisterResponse is returned after an account is created.
type RegisterResponse struct {
	Message string `json:"message"`
	UserID  string `json:"user_id"`
}

// Register creates a new account.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	var resp RegisterResponse
	if err := c.post(ctx, "/register", req, &resp); err != nil {
		return nil, fmt.Errorf("client.Register: %w", err)
	}
	return &resp, nil
}

// LoginResponse carries the issued bearer token and account identity.
type LoginResponse struct {
	Message     string `json:"message"`
	AccessToken string `json:"access_token"`
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResponse, error) {
	body := map[string]string{"username": username, "password": password}
	var resp LoginResponse
	if err := c.post(ctx, "/login", body, &resp); err != nil {
		return nil, fmt.Errorf("client.Login: %w", err)
	}
	return &resp, nil
}

// --- Profile ---

// GetProfile returns the authenticated user's profile with skills and goals.
func (c *Client) GetProfile(ctx context.Context) (*domain.Profile, error) {
	var p domain.Profile
	if err := c.get(ctx, "/profile", &p); err != nil {
		return nil, fmt.Errorf("client.GetProfile: %w", err)
	}
	return &p, nil
}

// UpdateProfileRequest carries the editable account fields. Nil fields are left unchanged.
type UpdateProfileRequest struct {
	Email          *string `json:"email,omitempty"`
	PrimarySkill   *string `json:"primary_skill,omitempty"`
	SecondarySkill *string `json:"secondary_skill,omitempty"`
	LearningGoal   *string `json:"learning_goal,omitempty"`
}

// UpdateProfile edits account fields.
func (c *Client) UpdateProfile(ctx context.Context, req UpdateProfileRequest) error {
	if err := c.doRequest(ctx, http.MethodPut, "/profile", req, nil); err != nil {
		return fmt.Errorf("client.UpdateProfile: %w", err)
	}
	return nil
}

// AddSkillRequest is the payload for attaching a skill to the user.
type AddSkillRequest struct {
	Name  string           `json:"skill_name"`
	Type  domain.SkillType `json:"skill_type"`
	Level string           `json:"skill_level,omitempty"`
}

// AddSkill attaches a teaching skill or learning goal and returns the stored skill.
func (c *Client) AddSkill(ctx context.Context, req AddSkillRequest) (*domain.Skill, error) {
	var resp struct {
		Skill domain.Skill `json:"skill"`
	}
	if err := c.post(ctx, "/add-skill", req, &resp); err != nil {
		return nil, fmt.Errorf("client.AddSkill: %w", err)
	}
	return &resp.Skill, nil
}

// RemoveSkill detaches a skill by id and type.
func (c *Client) RemoveSkill(ctx context.Context, skillID string, typ domain.SkillType) error {
	body := map[string]string{"skill_id": skillID, "skill_type": string(typ)}
	if err := c.post(ctx, "/remove-skill", body, nil); err != nil {
		return fmt.Errorf("client.RemoveSkill: %w", err)
	}
	return nil
}

// --- Matching ---

// Predict fetches ranked match candidates for the current user.
func (c *Client) Predict(ctx context.Context) ([]domain.Candidate, error) {
	var resp struct {
		Matches []domain.Candidate `json:"matches"`
	}
	if err := c.post(ctx, "/predict", struct{}{}, &resp); err != nil {
		return nil, fmt.Errorf("client.Predict: %w", err)
	}
	return resp.Matches, nil
}

// Swipe records a like or pass on targetUserID and returns the match verdict.
func (c *Client) Swipe(ctx context.Context, targetUserID string, liked bool) (*domain.SwipeResult, error) {
	body := struct {
		TargetUserID string `json:"target_user_id"`
		Liked        bool   `json:"liked"`
	}{targetUserID, liked}
	var res domain.SwipeResult
	if err := c.post(ctx, "/swipe", body, &res); err != nil {
		return nil, fmt.Errorf("client.Swipe: %w", err)
	}
	return &res, nil
}

// ListMatches returns mutual matches with their message counts.
func (c *Client) ListMatches(ctx context.Context) ([]domain.Match, error) {
	var resp struct {
		Matches []domain.Match `json:"matches"`
	}
	if err := c.get(ctx, "/matches", &resp); err != nil {
		return nil, fmt.Errorf("client.ListMatches: %w", err)
	}
	return resp.Matches, nil
}

// PendingMatches returns users who liked the current user and await approval.
func (c *Client) PendingMatches(ctx context.Context) ([]domain.PendingMatch, error) {
	var resp struct {
		PendingMatches []domain.PendingMatch `json:"pending_matches"`
	}
	if err := c.post(ctx, "/pending-matches", struct{}{}, &resp); err != nil {
		return nil, fmt.Errorf("client.PendingMatches: %w", err)
	}
	return resp.PendingMatches, nil
}

// --- Messaging ---

// GetMessages returns the full conversation with matchID, oldest first.
func (c *Client) GetMessages(ctx context.Context, matchID string) ([]domain.Message, error) {
	var resp struct {
		Messages []domain.Message `json:"messages"`
	}
	if err := c.get(ctx, "/messages/"+url.PathEscape(matchID), &resp); err != nil {
		return nil, fmt.Errorf("client.GetMessages: %w", err)
	}
	return resp.Messages, nil
}

// SendMessage sends text to recipientID and returns the stored message.
func (c *Client) SendMessage(ctx context.Context, recipientID, text string) (*domain.Message, error) {
	body := struct {
		RecipientID string `json:"recipientId"`
		Text        string `json:"text"`
	}{recipientID, text}
	var resp struct {
		Message *domain.Message `json:"message"`
	}
	if err := c.post(ctx, "/messages/send", body, &resp); err != nil {
		return nil, fmt.Errorf("client.SendMessage: %w", err)
	}
	if resp.Message == nil {
		return nil, fmt.Errorf("client.SendMessage: empty response")
	}
	return resp.Message, nil
}

// HealthResponse reports API and database availability.
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// Health checks API availability.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var h HealthResponse
	if err := c.get(ctx, "/health", &h); err != nil {
		return nil, fmt.Errorf("client.Health: %w", err)
	}
	return &h, nil
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	return c.doRequest(ctx, http.MethodPost, path, body, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.doRequest(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) doRequest(ctx context.Context, method, path string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		if tok := c.tokens.Token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close

	if resp.StatusCode >= 400 {
		respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1 MB max error body
		if readErr != nil {
			return &HTTPError{StatusCode: resp.StatusCode, Body: fmt.Sprintf("failed to read body: %v", readErr)}
		}
		var apiErr struct {
			Error string `json:"error"`
			Msg   string `json:"msg"` // flask-jwt-extended auth failures
		}
		httpErr := &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
		if json.Unmarshal(respBody, &apiErr) == nil {
			httpErr.Message = apiErr.Error
			if httpErr.Message == "" {
				httpErr.Message = apiErr.Msg
			}
		}
		return httpErr
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
