package swipe

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/knowzhq/knowz/internal/store"
	"github.com/knowzhq/knowz/pkg/client"
	"github.com/knowzhq/knowz/pkg/domain"
)

// flushBatch bounds a single flush pass.
const flushBatch = 50

// Sender delivers a decision to the backend.
type Sender interface {
	Swipe(ctx context.Context, targetUserID string, liked bool) (*domain.SwipeResult, error)
}

// Outbox submits decisions and keeps the ones that could not be delivered
// so they are retried later instead of being lost.
type Outbox struct {
	repo   *store.OutboxRepository
	sender Sender
	log    *slog.Logger
}

// NewOutbox returns an outbox. With a nil repo, failed decisions are only logged.
func NewOutbox(repo *store.OutboxRepository, sender Sender, log *slog.Logger) *Outbox {
	return &Outbox{repo: repo, sender: sender, log: log}
}

// retryable reports whether a failed decision should be kept for later.
// Auth failures are kept so they go out after the same user logs in again.
func retryable(err error) bool {
	return client.IsTransient(err) || client.IsAuth(err)
}

// Submit sends d on behalf of userID. When delivery fails with a retryable
// error the decision is queued and queued is true. The send error is
// returned either way.
func (o *Outbox) Submit(ctx context.Context, userID string, d Decision) (res *domain.SwipeResult, queued bool, err error) {
	res, err = o.sender.Swipe(ctx, d.CandidateUserID, d.Liked)
	if err == nil {
		return res, false, nil
	}

	log := o.log.With("decision", d.ID, "candidate", d.CandidateUserID, "liked", d.Liked)
	if !retryable(err) || o.repo == nil {
		log.Warn("swipe rejected, dropping", "error", err)
		return nil, false, err
	}

	entry := store.OutboxEntry{
		ID:           d.ID,
		UserID:       userID,
		TargetUserID: d.CandidateUserID,
		Liked:        d.Liked,
		CreatedAt:    d.CreatedAt,
		Attempts:     1,
		LastError:    err.Error(),
	}
	if qerr := o.repo.Enqueue(ctx, entry); qerr != nil {
		log.Error("swipe lost: enqueue failed", "error", err, "enqueue_error", qerr)
		return nil, false, err
	}
	log.Info("swipe queued for retry", "error", err)
	return nil, true, err
}

// FlushResult summarizes one flush pass.
type FlushResult struct {
	Delivered int
	Dropped   int
	Remaining int
	Matches   []domain.MatchDetails
}

// Flush delivers queued decisions for userID, oldest first. It stops at
// the first retryable failure so ordering is preserved. An auth failure is
// returned so the caller can expire the session.
func (o *Outbox) Flush(ctx context.Context, userID string) (FlushResult, error) {
	var out FlushResult
	if o.repo == nil {
		return out, nil
	}

	entries, err := o.repo.Pending(ctx, userID, flushBatch)
	if err != nil {
		return out, fmt.Errorf("swipe.Flush: %w", err)
	}

	for i, e := range entries {
		res, sendErr := o.sender.Swipe(ctx, e.TargetUserID, e.Liked)
		switch {
		case sendErr == nil:
			if err := o.repo.Delete(ctx, e.ID); err != nil {
				return out, fmt.Errorf("swipe.Flush: %w", err)
			}
			out.Delivered++
			if res != nil && res.IsMatch && res.MatchDetails != nil {
				out.Matches = append(out.Matches, *res.MatchDetails)
			}
		case retryable(sendErr):
			if err := o.repo.MarkAttempt(ctx, e.ID, sendErr.Error()); err != nil {
				o.log.Warn("mark outbox attempt failed", "decision", e.ID, "error", err)
			}
			out.Remaining = len(entries) - i
			o.log.Info("outbox flush paused", "delivered", out.Delivered, "remaining", out.Remaining, "error", sendErr)
			if client.IsAuth(sendErr) {
				return out, fmt.Errorf("swipe.Flush: %w", sendErr)
			}
			return out, nil
		default:
			o.log.Warn("queued swipe rejected, dropping", "decision", e.ID, "candidate", e.TargetUserID, "error", sendErr)
			if err := o.repo.Delete(ctx, e.ID); err != nil {
				return out, fmt.Errorf("swipe.Flush: %w", err)
			}
			out.Dropped++
		}
	}

	if out.Delivered+out.Dropped > 0 {
		o.log.Info("outbox flushed", "delivered", out.Delivered, "dropped", out.Dropped)
	}
	return out, nil
}
