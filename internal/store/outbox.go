package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OutboxEntry is a swipe decision that has not yet reached the server.
type OutboxEntry struct {
	ID           uuid.UUID
	UserID       string // session owner that made the decision
	TargetUserID string
	Liked        bool
	CreatedAt    time.Time
	Attempts     int
	LastError    string
}

// OutboxRepository persists undelivered swipe decisions.
type OutboxRepository struct {
	db DBTX
}

// NewOutboxRepository binds the repository to db, which may be a transaction.
func NewOutboxRepository(db DBTX) *OutboxRepository {
	return &OutboxRepository{db: db}
}

// Enqueue stores e. Re-enqueueing an existing id is a no-op.
func (r *OutboxRepository) Enqueue(ctx context.Context, e OutboxEntry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO swipe_outbox (id, user_id, target_user_id, liked, created_at, attempts, last_error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, e.ID.String(), e.UserID, e.TargetUserID, e.Liked, e.CreatedAt.UnixNano(), e.Attempts, e.LastError)
	if err != nil {
		return fmt.Errorf("failed to enqueue swipe %s: %w", e.ID, err)
	}
	return nil
}

// Pending returns up to limit entries for userID, oldest first.
func (r *OutboxRepository) Pending(ctx context.Context, userID string, limit int) ([]OutboxEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, target_user_id, liked, created_at, attempts, last_error
		FROM swipe_outbox
		WHERE user_id = ?
		ORDER BY created_at, rowid
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list outbox: %w", err)
	}
	defer rows.Close()

	var out []OutboxEntry
	for rows.Next() {
		var (
			e       OutboxEntry
			id      string
			created int64
		)
		if err := rows.Scan(&id, &e.UserID, &e.TargetUserID, &e.Liked, &created, &e.Attempts, &e.LastError); err != nil {
			return nil, fmt.Errorf("failed to scan outbox row: %w", err)
		}
		if e.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("outbox row has bad id %q: %w", id, err)
		}
		e.CreatedAt = time.Unix(0, created)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate outbox rows: %w", err)
	}
	return out, nil
}

// MarkAttempt records a failed delivery attempt.
func (r *OutboxRepository) MarkAttempt(ctx context.Context, id uuid.UUID, cause string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE swipe_outbox SET attempts = attempts + 1, last_error = ? WHERE id = ?
	`, cause, id.String())
	if err != nil {
		return fmt.Errorf("failed to mark outbox attempt %s: %w", id, err)
	}
	return nil
}

// Delete removes a delivered or abandoned entry.
func (r *OutboxRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM swipe_outbox WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete outbox entry %s: %w", id, err)
	}
	return nil
}

// Count returns the number of entries queued for userID.
func (r *OutboxRepository) Count(ctx context.Context, userID string) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM swipe_outbox WHERE user_id = ?`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count outbox: %w", err)
	}
	return n, nil
}
