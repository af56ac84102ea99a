package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/salon-client/internal/model"
)

func TestMemoryTokenStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryTokenStore(model.Tokens{AccessToken: "a", RefreshToken: "r"})

	tokens, err := s.Load(ctx)
	require.NoError(t, err)
	assert.True(t, tokens.Complete())

	require.NoError(t, s.Clear(ctx))
	tokens, err = s.Load(ctx)
	require.NoError(t, err)
	assert.False(t, tokens.Complete())
}

func TestFileTokenStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	s := NewFileTokenStore(path)

	tokens, err := s.Load(ctx)
	require.NoError(t, err, "missing file is an empty session")
	assert.Equal(t, model.Tokens{}, tokens)

	want := model.Tokens{AccessToken: "access", RefreshToken: "refresh"}
	require.NoError(t, s.Save(ctx, want))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	got, err := NewFileTokenStore(path).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	require.NoError(t, s.Clear(ctx))
	require.NoError(t, s.Clear(ctx), "clearing twice is not an error")

	_, err = os.Stat(path)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestFileTokenStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := NewFileTokenStore(path).Load(context.Background())
	assert.Error(t, err)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, isRetryable(&pgconn.PgError{Code: pgerrcode.SerializationFailure}))
	assert.True(t, isRetryable(&pgconn.PgError{Code: pgerrcode.DeadlockDetected}))
	assert.False(t, isRetryable(&pgconn.PgError{Code: pgerrcode.UniqueViolation}))
	assert.True(t, isRetryable(errors.New("dial tcp: connection refused")))
	assert.False(t, isRetryable(context.Canceled))
}

func TestWithRetry_StopsOnPermanentError(t *testing.T) {
	calls := 0
	permanent := errors.New("syntax error")

	err := withRetry(context.Background(), func() error {
		calls++
		return permanent
	})

	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestWithRetry_RetriesConnectionErrors(t *testing.T) {
	calls := 0

	err := withRetry(context.Background(), func() error {
		calls++
		if calls < 2 {
			return errors.New("read: connection reset by peer")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}
