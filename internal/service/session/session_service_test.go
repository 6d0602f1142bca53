package session

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiwangfds/photosync/config"
	"github.com/weiwangfds/photosync/internal/errors"
)

func newTestService(t *testing.T, maxTokens int) (*sessionService, string) {
	t.Helper()
	file := filepath.Join(t.TempDir(), "auth.json")
	svc, err := NewService(config.AuthConfig{
		TokenExpiration: 3600,
		MaxTokens:       maxTokens,
	}, file)
	require.NoError(t, err)
	return svc.(*sessionService), file
}

func TestLoginReusesTokenForSameAddress(t *testing.T) {
	svc, _ := newTestService(t, 8)

	first, err := svc.Login("alice", "10.0.0.1")
	require.NoError(t, err)
	second, err := svc.Login("alice", "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	other, err := svc.Login("alice", "10.0.0.2")
	require.NoError(t, err)
	assert.NotEqual(t, first, other)
}

func TestLoginReuseExtendsExpiration(t *testing.T) {
	svc, _ := newTestService(t, 8)

	base := time.Now()
	svc.now = func() time.Time { return base }
	token, err := svc.Login("alice", "10.0.0.1")
	require.NoError(t, err)
	initial := svc.sessions[token].Expiration

	svc.now = func() time.Time { return base.Add(30 * time.Minute) }
	again, err := svc.Login("alice", "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, token, again)
	assert.Greater(t, svc.sessions[token].Expiration, initial)
}

func TestValidate(t *testing.T) {
	svc, _ := newTestService(t, 8)

	token, err := svc.Login("alice", "10.0.0.1")
	require.NoError(t, err)

	user, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", user)

	_, err = svc.Validate("")
	assert.True(t, errors.IsCode(err, errors.ErrTokenMissing))
	_, err = svc.Validate("not-a-token")
	assert.True(t, errors.IsCode(err, errors.ErrTokenInvalid))
}

func TestValidateRejectsExpiredWithoutExtending(t *testing.T) {
	svc, _ := newTestService(t, 8)

	base := time.Now()
	svc.now = func() time.Time { return base }
	token, err := svc.Login("alice", "10.0.0.1")
	require.NoError(t, err)

	svc.now = func() time.Time { return base.Add(2 * time.Hour) }
	_, err = svc.Validate(token)
	assert.True(t, errors.IsCode(err, errors.ErrTokenInvalid))

	// An expired token is also not reusable at login.
	fresh, err := svc.Login("alice", "10.0.0.1")
	require.NoError(t, err)
	assert.NotEqual(t, token, fresh)
}

func TestEvictionBoundsTokensPerUser(t *testing.T) {
	svc, _ := newTestService(t, 3)

	base := time.Now()
	var tokens []string
	for i := 0; i < 5; i++ {
		// Distinct issue times so the earliest expiration is unambiguous.
		offset := time.Duration(i) * time.Minute
		svc.now = func() time.Time { return base.Add(offset) }
		token, err := svc.Login("alice", fmt.Sprintf("10.0.0.%d", i))
		require.NoError(t, err)
		tokens = append(tokens, token)
	}

	count := 0
	for _, sess := range svc.sessions {
		if sess.Username == "alice" {
			count++
		}
	}
	assert.Equal(t, 3, count)

	// The earliest-issued tokens were evicted, the latest survive.
	for _, token := range tokens[:2] {
		_, err := svc.Validate(token)
		assert.Error(t, err)
	}
	for _, token := range tokens[2:] {
		_, err := svc.Validate(token)
		assert.NoError(t, err)
	}
}

func TestEvictionIsScopedToOneUser(t *testing.T) {
	svc, _ := newTestService(t, 2)

	bobToken, err := svc.Login("bob", "10.0.1.1")
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		_, err := svc.Login("alice", fmt.Sprintf("10.0.0.%d", i))
		require.NoError(t, err)
	}

	user, err := svc.Validate(bobToken)
	require.NoError(t, err)
	assert.Equal(t, "bob", user)
}

func TestRevokeIsIdempotent(t *testing.T) {
	svc, _ := newTestService(t, 8)

	token, err := svc.Login("alice", "10.0.0.1")
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(token))
	_, err = svc.Validate(token)
	assert.Error(t, err)

	require.NoError(t, svc.Revoke(token))
	require.NoError(t, svc.Revoke("never-existed"))
}

func TestReassign(t *testing.T) {
	svc, _ := newTestService(t, 8)

	token, err := svc.Login("alice", "10.0.0.1")
	require.NoError(t, err)

	previous, err := svc.Reassign(token, "<index>")
	require.NoError(t, err)
	assert.Equal(t, "alice", previous)

	user, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "<index>", user)

	_, err = svc.Reassign("unknown", "alice")
	assert.True(t, errors.IsCode(err, errors.ErrTokenInvalid))
}

func TestSessionsPersistAcrossRestart(t *testing.T) {
	svc, file := newTestService(t, 8)

	token, err := svc.Login("alice", "10.0.0.1")
	require.NoError(t, err)

	reopened, err := NewService(config.AuthConfig{TokenExpiration: 3600, MaxTokens: 8}, file)
	require.NoError(t, err)
	user, err := reopened.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", user)
}
