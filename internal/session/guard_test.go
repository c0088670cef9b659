package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knowzhq/knowz/internal/logging"
	"github.com/knowzhq/knowz/pkg/domain"
)

type stubState struct{ ready, authed bool }

func (s stubState) Ready() bool           { return s.ready }
func (s stubState) IsAuthenticated() bool { return s.authed }

func TestGuard(t *testing.T) {
	tests := []struct {
		name  string
		state stubState
		want  Access
	}{
		{"initializing", stubState{ready: false, authed: false}, AccessLoading},
		{"initializing with session", stubState{ready: false, authed: true}, AccessLoading},
		{"unauthenticated", stubState{ready: true, authed: false}, AccessRedirect},
		{"authenticated", stubState{ready: true, authed: true}, AccessAllow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Guard(tt.state))
		})
	}
}

func TestGuardFollowsStore(t *testing.T) {
	ctx := context.Background()
	s := New(newFakeAuth(), &recordingStorage{sess: domain.Session{UserID: "1", Username: "a", Token: "t"}}, logging.Discard())
	assert.Equal(t, AccessLoading, Guard(s))

	require.NoError(t, s.Restore(ctx))
	assert.Equal(t, AccessAllow, Guard(s))

	require.NoError(t, s.Logout(ctx))
	assert.Equal(t, AccessRedirect, Guard(s))
}
