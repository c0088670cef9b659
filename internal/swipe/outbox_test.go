package swipe

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knowzhq/knowz/internal/logging"
	"github.com/knowzhq/knowz/internal/store"
	"github.com/knowzhq/knowz/pkg/client"
	"github.com/knowzhq/knowz/pkg/domain"
)

type sendCall struct {
	target string
	liked  bool
}

// scriptedSender returns errs in order, then succeeds.
type scriptedSender struct {
	errs    []error
	matchOn string
	calls   []sendCall
}

func (s *scriptedSender) Swipe(_ context.Context, target string, liked bool) (*domain.SwipeResult, error) {
	s.calls = append(s.calls, sendCall{target, liked})
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	res := &domain.SwipeResult{Success: true}
	if target == s.matchOn {
		res.IsMatch = true
		res.MatchDetails = &domain.MatchDetails{UserID: target, Username: "bob"}
	}
	return res, nil
}

var (
	errOffline = &url.Error{Op: "Post", URL: "http://api/swipe", Err: errors.New("connection refused")}
	errBad     = &client.HTTPError{StatusCode: 400, Message: "Missing required fields"}
	errExpired = &client.HTTPError{StatusCode: 401, Message: "Token has expired"}
)

func newRepo(t *testing.T) *store.OutboxRepository {
	t.Helper()
	st, err := store.Open(context.Background(), store.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st.Outbox
}

func decision(target string, at time.Time) Decision {
	return Decision{ID: uuid.New(), CandidateUserID: target, Liked: true, CreatedAt: at}
}

func TestSubmit_Delivered(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	sender := &scriptedSender{matchOn: "u-bob"}
	ob := NewOutbox(repo, sender, logging.Discard())

	res, queued, err := ob.Submit(ctx, "me", decision("u-bob", time.Now()))
	require.NoError(t, err)
	assert.False(t, queued)
	assert.True(t, res.IsMatch)

	n, err := repo.Count(ctx, "me")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSubmit_QueuesRetryableFailures(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantQueued bool
	}{
		{"transport", errOffline, true},
		{"server error", &client.HTTPError{StatusCode: 503}, true},
		{"expired token", errExpired, true},
		{"bad request", errBad, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			repo := newRepo(t)
			ob := NewOutbox(repo, &scriptedSender{errs: []error{tt.err}}, logging.Discard())

			_, queued, err := ob.Submit(ctx, "me", decision("u-bob", time.Now()))
			require.Error(t, err)
			assert.Equal(t, tt.wantQueued, queued)

			n, err := repo.Count(ctx, "me")
			require.NoError(t, err)
			if tt.wantQueued {
				assert.Equal(t, 1, n)
			} else {
				assert.Zero(t, n)
			}
		})
	}
}

func TestSubmit_NilRepoDoesNotQueue(t *testing.T) {
	ob := NewOutbox(nil, &scriptedSender{errs: []error{errOffline}}, logging.Discard())
	_, queued, err := ob.Submit(context.Background(), "me", decision("u-bob", time.Now()))
	require.Error(t, err)
	assert.False(t, queued)
}

func TestFlush_DeliversOldestFirst(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	base := time.Now()
	for i, target := range []string{"u-c", "u-a", "u-b"} {
		// enqueue out of order; created_at decides delivery order
		offset := map[string]int{"u-a": 0, "u-b": 1, "u-c": 2}[target]
		require.NoError(t, repo.Enqueue(ctx, store.OutboxEntry{
			ID:           uuid.New(),
			UserID:       "me",
			TargetUserID: target,
			Liked:        i != 1,
			CreatedAt:    base.Add(time.Duration(offset) * time.Second),
			Attempts:     1,
		}))
	}
	require.NoError(t, repo.Enqueue(ctx, store.OutboxEntry{
		ID: uuid.New(), UserID: "someone-else", TargetUserID: "u-z", CreatedAt: base,
	}))

	sender := &scriptedSender{matchOn: "u-b"}
	ob := NewOutbox(repo, sender, logging.Discard())
	res, err := ob.Flush(ctx, "me")
	require.NoError(t, err)

	assert.Equal(t, 3, res.Delivered)
	require.Len(t, sender.calls, 3)
	assert.Equal(t, "u-a", sender.calls[0].target)
	assert.False(t, sender.calls[0].liked)
	assert.Equal(t, "u-b", sender.calls[1].target)
	assert.Equal(t, "u-c", sender.calls[2].target)
	require.Len(t, res.Matches, 1)
	assert.Equal(t, "bob", res.Matches[0].Username)

	n, err := repo.Count(ctx, "someone-else")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestFlush_StopsAtTransientFailure(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	base := time.Now()
	for i := range 3 {
		require.NoError(t, repo.Enqueue(ctx, store.OutboxEntry{
			ID:           uuid.New(),
			UserID:       "me",
			TargetUserID: fmt.Sprintf("u-%d", i),
			CreatedAt:    base.Add(time.Duration(i) * time.Second),
			Attempts:     1,
		}))
	}

	// first delivered, second rejected for good, third hits an outage
	sender := &scriptedSender{errs: []error{nil, errBad, errOffline}}
	ob := NewOutbox(repo, sender, logging.Discard())
	res, err := ob.Flush(ctx, "me")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Delivered)
	assert.Equal(t, 1, res.Dropped)
	assert.Equal(t, 1, res.Remaining)

	pending, err := repo.Pending(ctx, "me", 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "u-2", pending[0].TargetUserID)
	assert.Equal(t, 2, pending[0].Attempts)
	assert.Contains(t, pending[0].LastError, "connection refused")
}

func TestFlush_AuthFailureReturned(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	require.NoError(t, repo.Enqueue(ctx, store.OutboxEntry{
		ID: uuid.New(), UserID: "me", TargetUserID: "u-bob", CreatedAt: time.Now(),
	}))

	ob := NewOutbox(repo, &scriptedSender{errs: []error{errExpired}}, logging.Discard())
	_, err := ob.Flush(ctx, "me")
	require.Error(t, err)
	assert.True(t, client.IsAuth(err))

	n, err := repo.Count(ctx, "me")
	require.NoError(t, err)
	assert.Equal(t, 1, n, "entry must survive an auth failure")
}

func TestFlush_NilRepo(t *testing.T) {
	res, err := NewOutbox(nil, &scriptedSender{}, logging.Discard()).Flush(context.Background(), "me")
	require.NoError(t, err)
	assert.Zero(t, res.Delivered)
}
