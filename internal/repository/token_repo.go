package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"go-parking-directory/internal/database"
	"go-parking-directory/internal/model"
)

type TokenRepository struct {
	pool *pgxpool.Pool
}

func NewTokenRepository(pool *pgxpool.Pool) *TokenRepository {
	return &TokenRepository{pool: pool}
}

func (r *TokenRepository) Create(ctx context.Context, token model.RefreshToken) (model.RefreshToken, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO refresh_tokens (token, user_id, issued_at, expires_at)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		token.Token, token.UserID, token.IssuedAt, token.ExpiresAt).Scan(&token.ID)
	if err != nil {
		return model.RefreshToken{}, fmt.Errorf("store refresh token: %w", err)
	}
	return token, nil
}

func (r *TokenRepository) FindByToken(ctx context.Context, token string) (model.RefreshToken, error) {
	var rt model.RefreshToken
	err := r.pool.QueryRow(ctx,
		`SELECT id, token, user_id, issued_at, expires_at, revoked_at
		 FROM refresh_tokens WHERE token = $1`, token).
		Scan(&rt.ID, &rt.Token, &rt.UserID, &rt.IssuedAt, &rt.ExpiresAt, &rt.RevokedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.RefreshToken{}, model.ErrTokenNotFound
	}
	if err != nil {
		return model.RefreshToken{}, fmt.Errorf("find refresh token: %w", err)
	}
	return rt, nil
}

// Rotate revokes oldToken and stores next in one transaction. The revoke is a
// compare-and-set on revoked_at IS NULL, so of two concurrent rotations of the
// same token only one commits; the other gets ErrTokenNotFound.
func (r *TokenRepository) Rotate(ctx context.Context, oldToken string, next model.RefreshToken, now time.Time) (model.RefreshToken, error) {
	err := database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE refresh_tokens SET revoked_at = $2
			 WHERE token = $1 AND revoked_at IS NULL AND expires_at > $2`,
			oldToken, now)
		if err != nil {
			return fmt.Errorf("revoke rotated refresh token: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return model.ErrTokenNotFound
		}

		if err := tx.QueryRow(ctx,
			`INSERT INTO refresh_tokens (token, user_id, issued_at, expires_at)
			 VALUES ($1, $2, $3, $4) RETURNING id`,
			next.Token, next.UserID, next.IssuedAt, next.ExpiresAt).Scan(&next.ID); err != nil {
			return fmt.Errorf("store rotated refresh token: %w", err)
		}
		return nil
	})
	if err != nil {
		return model.RefreshToken{}, err
	}
	return next, nil
}

// RevokeActive revokes token if it is neither revoked nor expired.
func (r *TokenRepository) RevokeActive(ctx context.Context, token string, now time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE refresh_tokens SET revoked_at = $2
		 WHERE token = $1 AND revoked_at IS NULL AND expires_at > $2`,
		token, now)
	if err != nil {
		return false, fmt.Errorf("revoke refresh token: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// CleanExpired deletes tokens that expired before cutoff.
func (r *TokenRepository) CleanExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at <= $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("clean expired tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}

// revokeUserTokens revokes every live refresh token of userID through db, which
// is either the pool or the transaction of a wider user write.
func revokeUserTokens(ctx context.Context, db execer, userID string, now time.Time) error {
	_, err := db.Exec(ctx,
		`UPDATE refresh_tokens SET revoked_at = $2
		 WHERE user_id = $1 AND revoked_at IS NULL AND expires_at > $2`,
		userID, now)
	if err != nil {
		return fmt.Errorf("revoke user refresh tokens: %w", err)
	}
	return nil
}
