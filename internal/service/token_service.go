package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go-parking-directory/internal/event"
	"go-parking-directory/internal/model"
	"go-parking-directory/pkg/apierror"
)

const tokenTypeBearer = "Bearer"

// TokenService runs login, refresh rotation and revocation against persisted
// refresh tokens. A refresh token moves one way: active, then revoked.
type TokenService struct {
	users       UserStore
	credentials CredentialStore
	issuer      *TokenIssuer
	tokens      RefreshTokenStore
	bus         event.Bus
	now         func() time.Time
}

func NewTokenService(users UserStore, credentials CredentialStore, issuer *TokenIssuer, tokens RefreshTokenStore, bus event.Bus) *TokenService {
	return &TokenService{
		users:       users,
		credentials: credentials,
		issuer:      issuer,
		tokens:      tokens,
		bus:         bus,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Login never reveals whether the email exists: unknown users and wrong
// passwords both yield InvalidCredentials.
func (s *TokenService) Login(ctx context.Context, email string, password string) (model.TokenPair, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return model.TokenPair{}, apierror.Validation("email and password are required", "")
	}

	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.TokenPair{}, apierror.InvalidCredentials()
	}
	if err != nil {
		return model.TokenPair{}, infraError("find user for login", err)
	}

	ok, err := s.credentials.Verify(ctx, user.ID, password)
	if err != nil {
		return model.TokenPair{}, infraError("verify credentials", err)
	}
	if !ok {
		return model.TokenPair{}, apierror.InvalidCredentials()
	}
	if !user.Active {
		return model.TokenPair{}, apierror.Unauthorized("account is disabled")
	}

	access, err := s.issuer.IssueAccessToken(user, user.Roles)
	if err != nil {
		return model.TokenPair{}, infraError("issue access token", err)
	}
	refresh, err := s.issuer.IssueRefreshToken(ctx, user.ID)
	if err != nil {
		return model.TokenPair{}, infraError("issue refresh token", err)
	}

	return s.pair(user, access, refresh), nil
}

// Refresh rotates presented for a new pair. The old token is revoked and the
// new one stored in one atomic step; a token that lost a concurrent rotation
// is reported as invalid.
func (s *TokenService) Refresh(ctx context.Context, presented string) (model.TokenPair, error) {
	presented = strings.TrimSpace(presented)
	if presented == "" {
		return model.TokenPair{}, apierror.InvalidToken("")
	}

	now := s.now()
	stored, err := s.tokens.FindByToken(ctx, presented)
	if errors.Is(err, model.ErrTokenNotFound) {
		return model.TokenPair{}, apierror.InvalidToken("")
	}
	if err != nil {
		return model.TokenPair{}, infraError("find refresh token", err)
	}
	if !stored.Usable(now) {
		return model.TokenPair{}, apierror.InvalidToken("")
	}

	user, err := s.users.FindByID(ctx, stored.UserID)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.TokenPair{}, apierror.InvalidToken("")
	}
	if err != nil {
		return model.TokenPair{}, infraError("find token owner", err)
	}
	if !user.Active {
		return model.TokenPair{}, apierror.Unauthorized("account is disabled")
	}

	next, err := s.issuer.NewRefreshToken(user.ID)
	if err != nil {
		return model.TokenPair{}, infraError("mint refresh token", err)
	}
	access, err := s.issuer.IssueAccessToken(user, user.Roles)
	if err != nil {
		return model.TokenPair{}, infraError("issue access token", err)
	}

	rotated, err := s.tokens.Rotate(ctx, stored.Token, next, now)
	if errors.Is(err, model.ErrTokenNotFound) {
		return model.TokenPair{}, apierror.InvalidToken("")
	}
	if err != nil {
		return model.TokenPair{}, infraError("rotate refresh token", err)
	}

	s.publish(event.TypeTokenRotated, user.ID, map[string]int64{"token_id": rotated.ID})
	return s.pair(user, access, rotated), nil
}

// Revoke reports false, without error, when token is unknown, already
// revoked or expired.
func (s *TokenService) Revoke(ctx context.Context, token string) (bool, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return false, nil
	}

	revoked, err := s.tokens.RevokeActive(ctx, token, s.now())
	if err != nil {
		return false, infraError("revoke refresh token", err)
	}
	if revoked {
		s.publish(event.TypeTokenRevoked, "", nil)
	}
	return revoked, nil
}

// PruneExpired deletes refresh tokens that expired more than retention ago.
func (s *TokenService) PruneExpired(ctx context.Context, retention time.Duration) (int64, error) {
	n, err := s.tokens.CleanExpired(ctx, s.now().Add(-retention))
	if err != nil {
		return 0, infraError("prune refresh tokens", err)
	}
	return n, nil
}

func (s *TokenService) pair(user model.User, access model.AccessToken, refresh model.RefreshToken) model.TokenPair {
	return model.TokenPair{
		AccessToken:           access.Token,
		RefreshToken:          refresh.Token,
		TokenType:             tokenTypeBearer,
		AccessTokenExpiresIn:  int64(s.issuer.AccessTTL().Seconds()),
		RefreshTokenExpiresAt: refresh.ExpiresAt,
		User:                  model.NewUserProfile(user),
	}
}

func (s *TokenService) publish(t event.Type, actorID string, payload any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(event.New(t, actorID, payload))
}
