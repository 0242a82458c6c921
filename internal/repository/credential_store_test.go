package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"go-parking-directory/internal/model"
)

type memoryHashes struct {
	hashes    map[string]string
	revokedAt map[string]time.Time
	err       error
}

func (m *memoryHashes) PasswordHash(_ context.Context, userID string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	h, ok := m.hashes[userID]
	if !ok {
		return "", model.ErrUserNotFound
	}
	return h, nil
}

func (m *memoryHashes) ReplacePasswordHash(_ context.Context, userID string, hash string, at time.Time) error {
	if m.err != nil {
		return m.err
	}
	if _, ok := m.hashes[userID]; !ok {
		return model.ErrUserNotFound
	}
	m.hashes[userID] = hash
	m.revokedAt[userID] = at
	return nil
}

func TestCredentialStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	hashes := &memoryHashes{hashes: map[string]string{}, revokedAt: map[string]time.Time{}}
	store := NewCredentialStore(hashes, bcrypt.MinCost)

	hash, err := store.Hash("s3cret!")
	require.NoError(t, err)
	hashes.hashes["u1"] = hash

	ok, err := store.Verify(ctx, "u1", "s3cret!")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Verify(ctx, "u1", "wrong")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = store.Verify(ctx, "ghost", "s3cret!")
	require.NoError(t, err)
	assert.False(t, ok)

	changedAt := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	changed, err := store.SetPassword(ctx, "u1", "n3w-pass", changedAt)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, changedAt, hashes.revokedAt["u1"])

	ok, _ = store.Verify(ctx, "u1", "s3cret!")
	assert.False(t, ok)
	ok, _ = store.Verify(ctx, "u1", "n3w-pass")
	assert.True(t, ok)

	changed, err = store.SetPassword(ctx, "ghost", "x", changedAt)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestCredentialStorePropagatesStorageErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection refused")
	store := NewCredentialStore(&memoryHashes{err: boom}, 0)
	assert.Equal(t, DefaultBcryptCost, store.cost)

	_, err := store.Verify(context.Background(), "u1", "pw")
	assert.ErrorIs(t, err, boom)

	_, err = store.SetPassword(context.Background(), "u1", "pw", time.Now())
	assert.ErrorIs(t, err, boom)
}

func TestNewRepositoriesKeepPool(t *testing.T) {
	t.Parallel()

	assert.NotNil(t, NewLotRepository(nil))
	assert.NotNil(t, NewUserRepository(nil))
	assert.NotNil(t, NewTokenRepository(nil))
}
