package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-parking-directory/internal/event"
	"go-parking-directory/internal/model"
	"go-parking-directory/pkg/apierror"
)

type tokenFixture struct {
	users  *memUsers
	tokens *memTokens
	svc    *TokenService
	user   model.User
}

func newTokenFixture() tokenFixture {
	user := testUser()
	user.PasswordHash = "hashed:Correct#1"
	users := newMemUsers(user)
	tokens := newMemTokens()
	users.sessions = tokens
	svc := NewTokenService(users, users, newTestIssuer(tokens), tokens, event.NewBus())
	return tokenFixture{users: users, tokens: tokens, svc: svc, user: user}
}

func TestTokenService_Login(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("issues an access and a refresh token", func(t *testing.T) {
		f := newTokenFixture()

		pair, err := f.svc.Login(ctx, " LAN@example.com ", "Correct#1")
		require.NoError(t, err)
		assert.Equal(t, "Bearer", pair.TokenType)
		assert.Equal(t, int64(900), pair.AccessTokenExpiresIn)
		assert.NotEmpty(t, pair.AccessToken)
		assert.Equal(t, f.user.ID, pair.User.ID)
		assert.Len(t, f.tokens.active(f.user.ID, time.Now()), 1)

		claims, err := Verify(pair.AccessToken, []byte(testSecret), testIssuer, testAudience)
		require.NoError(t, err)
		assert.Equal(t, f.user.ID, claims.UserID)
	})

	t.Run("wrong password yields invalid credentials and no side effect", func(t *testing.T) {
		f := newTokenFixture()

		pair, err := f.svc.Login(ctx, "lan@example.com", "wrong")
		assert.True(t, apierror.Is(err, apierror.CodeInvalidCredentials))
		assert.Empty(t, pair.AccessToken)
		assert.Empty(t, f.tokens.tokens)
	})

	t.Run("unknown email is indistinguishable from a wrong password", func(t *testing.T) {
		f := newTokenFixture()

		_, unknownErr := f.svc.Login(ctx, "nobody@example.com", "Correct#1")
		_, wrongErr := f.svc.Login(ctx, "lan@example.com", "nope")
		require.Error(t, unknownErr)
		assert.Equal(t, wrongErr.Error(), unknownErr.Error())
		assert.Empty(t, f.tokens.tokens)
	})

	t.Run("disabled account is unauthorized", func(t *testing.T) {
		f := newTokenFixture()
		u := f.users.users[f.user.ID]
		u.Active = false
		f.users.users[f.user.ID] = u

		_, err := f.svc.Login(ctx, "lan@example.com", "Correct#1")
		assert.True(t, apierror.Is(err, apierror.CodeUnauthorized))
		assert.Empty(t, f.tokens.tokens)
	})

	t.Run("missing input is a validation error", func(t *testing.T) {
		f := newTokenFixture()
		_, err := f.svc.Login(ctx, "", "")
		assert.True(t, apierror.Is(err, apierror.CodeValidation))
	})

	t.Run("storage failure is an infrastructure error", func(t *testing.T) {
		f := newTokenFixture()
		f.users.err = errStorageDown
		_, err := f.svc.Login(ctx, "lan@example.com", "Correct#1")
		assert.True(t, apierror.Is(err, apierror.CodeInfrastructure))
	})
}

func TestTokenService_Refresh(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("rotates the presented token", func(t *testing.T) {
		f := newTokenFixture()
		login, err := f.svc.Login(ctx, "lan@example.com", "Correct#1")
		require.NoError(t, err)

		refreshed, err := f.svc.Refresh(ctx, login.RefreshToken)
		require.NoError(t, err)
		assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)
		assert.NotEmpty(t, refreshed.AccessToken)

		old := f.tokens.tokens[login.RefreshToken]
		assert.True(t, old.IsRevoked())

		active := f.tokens.active(f.user.ID, time.Now())
		require.Len(t, active, 1)
		assert.Equal(t, refreshed.RefreshToken, active[0].Token)

		_, err = f.svc.Refresh(ctx, login.RefreshToken)
		assert.True(t, apierror.Is(err, apierror.CodeInvalidToken))
		assert.Len(t, f.tokens.active(f.user.ID, time.Now()), 1)
	})

	t.Run("expired, revoked and unknown tokens are invalid", func(t *testing.T) {
		f := newTokenFixture()
		now := time.Now().UTC()
		revokedAt := now.Add(-time.Minute)
		f.tokens.tokens["expired"] = model.RefreshToken{Token: "expired", UserID: f.user.ID, IssuedAt: now.Add(-8 * 24 * time.Hour), ExpiresAt: now.Add(-time.Second)}
		f.tokens.tokens["revoked"] = model.RefreshToken{Token: "revoked", UserID: f.user.ID, IssuedAt: now, ExpiresAt: now.Add(time.Hour), RevokedAt: &revokedAt}

		for _, token := range []string{"expired", "revoked", "unknown", "  "} {
			_, err := f.svc.Refresh(ctx, token)
			assert.True(t, apierror.Is(err, apierror.CodeInvalidToken), "token %q: %v", token, err)
		}
		assert.Empty(t, f.tokens.active(f.user.ID, now))
	})

	t.Run("failed rotation leaves the old token usable", func(t *testing.T) {
		f := newTokenFixture()
		login, err := f.svc.Login(ctx, "lan@example.com", "Correct#1")
		require.NoError(t, err)

		f.tokens.rotateErr = errStorageDown
		_, err = f.svc.Refresh(ctx, login.RefreshToken)
		assert.True(t, apierror.Is(err, apierror.CodeInfrastructure))

		f.tokens.rotateErr = nil
		_, err = f.svc.Refresh(ctx, login.RefreshToken)
		assert.NoError(t, err)
	})

	t.Run("concurrent refreshes of one token succeed exactly once", func(t *testing.T) {
		f := newTokenFixture()
		login, err := f.svc.Login(ctx, "lan@example.com", "Correct#1")
		require.NoError(t, err)

		const workers = 16
		var wg sync.WaitGroup
		var mu sync.Mutex
		var wins, invalid int
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := f.svc.Refresh(ctx, login.RefreshToken)
				mu.Lock()
				defer mu.Unlock()
				if err == nil {
					wins++
				} else if apierror.Is(err, apierror.CodeInvalidToken) {
					invalid++
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, wins)
		assert.Equal(t, workers-1, invalid)
		assert.Len(t, f.tokens.active(f.user.ID, time.Now()), 1)
	})
}

func TestTokenService_Revoke(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newTokenFixture()

	login, err := f.svc.Login(ctx, "lan@example.com", "Correct#1")
	require.NoError(t, err)

	revoked, err := f.svc.Revoke(ctx, login.RefreshToken)
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = f.svc.Revoke(ctx, login.RefreshToken)
	require.NoError(t, err)
	assert.False(t, revoked)

	revoked, err = f.svc.Revoke(ctx, "never-issued")
	require.NoError(t, err)
	assert.False(t, revoked)

	_, err = f.svc.Refresh(ctx, login.RefreshToken)
	assert.True(t, apierror.Is(err, apierror.CodeInvalidToken))
}

func TestTokenService_PruneExpired(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newTokenFixture()
	now := time.Now().UTC()

	f.tokens.tokens["ancient"] = model.RefreshToken{Token: "ancient", UserID: f.user.ID, ExpiresAt: now.Add(-60 * 24 * time.Hour)}
	f.tokens.tokens["recent"] = model.RefreshToken{Token: "recent", UserID: f.user.ID, ExpiresAt: now.Add(-time.Hour)}

	removed, err := f.svc.PruneExpired(ctx, 30*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
	assert.Contains(t, f.tokens.tokens, "recent")
}

func TestRunTokenPrunerStopsOnCancel(t *testing.T) {
	t.Parallel()

	f := newTokenFixture()
	f.tokens.tokens["ancient"] = model.RefreshToken{Token: "ancient", ExpiresAt: time.Now().Add(-60 * 24 * time.Hour)}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		RunTokenPruner(ctx, f.svc, 5*time.Millisecond, 30*24*time.Hour)
		close(done)
	}()

	require.Eventually(t, func() bool {
		_, err := f.tokens.FindByToken(context.Background(), "ancient")
		return err != nil
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pruner did not stop")
	}
}

func TestRunTokenPrunerRetriesAfterFailure(t *testing.T) {
	t.Parallel()

	f := newTokenFixture()
	f.tokens.tokens["ancient"] = model.RefreshToken{Token: "ancient", ExpiresAt: time.Now().Add(-60 * 24 * time.Hour)}
	f.tokens.cleanErrs = 2

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go RunTokenPruner(ctx, f.svc, 5*time.Millisecond, 30*24*time.Hour)

	require.Eventually(t, func() bool {
		_, err := f.tokens.FindByToken(context.Background(), "ancient")
		return err != nil
	}, time.Second, 5*time.Millisecond)

	f.tokens.mu.Lock()
	defer f.tokens.mu.Unlock()
	assert.Zero(t, f.tokens.cleanErrs)
}
