package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"go-parking-directory/internal/model"
	"go-parking-directory/pkg/apierror"
)

// refreshTokenBytes is 128 bits of entropy.
const refreshTokenBytes = 16

type accessClaims struct {
	Email    string   `json:"email"`
	Name     string   `json:"name"`
	FullName string   `json:"full_name"`
	Active   bool     `json:"is_active"`
	Verified bool     `json:"is_verified"`
	Roles    []string `json:"roles"`
	jwt.RegisteredClaims
}

// TokenIssuer signs HS256 access tokens and mints opaque refresh tokens.
type TokenIssuer struct {
	key        []byte
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration
	tokens     RefreshTokenStore
	random     io.Reader
	now        func() time.Time
}

func NewTokenIssuer(secret string, issuer string, audience string, accessTTL time.Duration, refreshTTL time.Duration, tokens RefreshTokenStore) *TokenIssuer {
	return &TokenIssuer{
		key:        []byte(secret),
		issuer:     issuer,
		audience:   audience,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		tokens:     tokens,
		random:     rand.Reader,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (i *TokenIssuer) AccessTTL() time.Duration {
	return i.accessTTL
}

func (i *TokenIssuer) IssueAccessToken(user model.User, roles []string) (model.AccessToken, error) {
	now := i.now()
	expiresAt := now.Add(i.accessTTL)
	if roles == nil {
		roles = []string{}
	}

	claims := accessClaims{
		Email:    user.Email,
		Name:     user.Email,
		FullName: user.FullName(),
		Active:   user.Active,
		Verified: user.Verified(),
		Roles:    roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    i.issuer,
			Audience:  jwt.ClaimStrings{i.audience},
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.key)
	if err != nil {
		return model.AccessToken{}, fmt.Errorf("sign access token: %w", err)
	}

	return model.AccessToken{Token: signed, ExpiresAt: expiresAt}, nil
}

// NewRefreshToken mints a refresh token without persisting it.
func (i *TokenIssuer) NewRefreshToken(userID string) (model.RefreshToken, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := io.ReadFull(i.random, buf); err != nil {
		return model.RefreshToken{}, fmt.Errorf("generate refresh token: %w", err)
	}

	now := i.now()
	return model.RefreshToken{
		Token:     base64.StdEncoding.EncodeToString(buf),
		UserID:    userID,
		IssuedAt:  now,
		ExpiresAt: now.Add(i.refreshTTL),
	}, nil
}

// IssueRefreshToken mints and stores a refresh token for userID.
func (i *TokenIssuer) IssueRefreshToken(ctx context.Context, userID string) (model.RefreshToken, error) {
	token, err := i.NewRefreshToken(userID)
	if err != nil {
		return model.RefreshToken{}, err
	}

	stored, err := i.tokens.Create(ctx, token)
	if err != nil {
		return model.RefreshToken{}, fmt.Errorf("persist refresh token: %w", err)
	}
	return stored, nil
}

func (i *TokenIssuer) Verify(token string) (*model.AuthClaims, error) {
	return Verify(token, i.key, i.issuer, i.audience)
}

// Verify checks signature, expiry, issuer and audience of an access token
// without touching storage.
func Verify(token string, key []byte, issuer string, audience string) (*model.AuthClaims, error) {
	claims := &accessClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apierror.InvalidToken("token has expired")
		}
		return nil, apierror.InvalidToken("")
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, apierror.InvalidToken("")
	}

	return &model.AuthClaims{
		UserID:   claims.Subject,
		Email:    claims.Email,
		Name:     claims.Name,
		FullName: claims.FullName,
		Active:   claims.Active,
		Verified: claims.Verified,
		Roles:    claims.Roles,
		TokenID:  claims.ID,
		Expiry:   claims.ExpiresAt.Time,
	}, nil
}
