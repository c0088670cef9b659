package session

import (
	"context"
	"fmt"

	"github.com/knowzhq/knowz/internal/store"
	"github.com/knowzhq/knowz/pkg/domain"
)

// Keys under which the session is persisted.
const (
	keyToken    = "token"
	keyUserID   = "userId"
	keyUsername = "username"
)

// Storage is durable storage for a single session.
type Storage interface {
	Load(ctx context.Context) (domain.Session, error)
	Save(ctx context.Context, s domain.Session) error
	Clear(ctx context.Context) error
}

// SQLiteStorage keeps the session in the local metadata table.
type SQLiteStorage struct {
	st *store.Store
}

// NewSQLiteStorage returns session storage backed by st.
func NewSQLiteStorage(st *store.Store) *SQLiteStorage {
	return &SQLiteStorage{st: st}
}

// Load returns whatever session fields are stored; missing ones are empty.
func (s *SQLiteStorage) Load(ctx context.Context) (domain.Session, error) {
	all, err := s.st.Metadata.List(ctx)
	if err != nil {
		return domain.Session{}, fmt.Errorf("session.Load: %w", err)
	}
	return domain.Session{
		Token:    all[keyToken],
		UserID:   all[keyUserID],
		Username: all[keyUsername],
	}, nil
}

// Save writes all three fields atomically.
func (s *SQLiteStorage) Save(ctx context.Context, sess domain.Session) error {
	err := s.st.WithTx(ctx, func(ctx context.Context, tx store.DBTX) error {
		repo := store.NewMetadataRepository(tx)
		if err := repo.Set(ctx, keyToken, sess.Token); err != nil {
			return err
		}
		if err := repo.Set(ctx, keyUserID, sess.UserID); err != nil {
			return err
		}
		return repo.Set(ctx, keyUsername, sess.Username)
	})
	if err != nil {
		return fmt.Errorf("session.Save: %w", err)
	}
	return nil
}

// Clear removes all three fields.
func (s *SQLiteStorage) Clear(ctx context.Context) error {
	err := s.st.WithTx(ctx, func(ctx context.Context, tx store.DBTX) error {
		repo := store.NewMetadataRepository(tx)
		for _, k := range []string{keyToken, keyUserID, keyUsername} {
			if err := repo.Delete(ctx, k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("session.Clear: %w", err)
	}
	return nil
}
