package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"go-parking-directory/internal/database"
	"go-parking-directory/internal/model"
)

const uniqueViolation = "23505"

const userSelect = `SELECT u.id, u.email, u.password_hash, u.first_name, u.last_name,
	       u.phone_number, u.address, u.avatar, u.email_confirmed, u.phone_confirmed,
	       u.is_active, u.created_at, u.updated_at,
	       COALESCE(array_agg(r.name ORDER BY r.name) FILTER (WHERE r.name IS NOT NULL), '{}')
	FROM users u
	LEFT JOIN user_roles ur ON ur.user_id = u.id
	LEFT JOIN roles r ON r.id = ur.role_id`

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (model.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, userSelect+` WHERE u.id = $1 GROUP BY u.id`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, model.ErrUserNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("find user by id: %w", err)
	}
	return u, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (model.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx,
		userSelect+` WHERE lower(u.email) = lower($1) GROUP BY u.id`, strings.TrimSpace(email)))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, model.ErrUserNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("find user by email: %w", err)
	}
	return u, nil
}

// CreateWithRoles inserts the user and its role links in one transaction.
// Missing roles are created on the fly.
func (r *UserRepository) CreateWithRoles(ctx context.Context, u model.User, roles []string) error {
	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO users (id, email, password_hash, first_name, last_name, phone_number, address,
			                    avatar, email_confirmed, phone_confirmed, is_active, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			u.ID, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.PhoneNumber, u.Address,
			u.Avatar, u.EmailConfirmed, u.PhoneConfirmed, u.Active, u.CreatedAt)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				return model.ErrUserAlreadyExists
			}
			return fmt.Errorf("create user: %w", err)
		}

		for _, role := range roles {
			if err := ensureRole(ctx, tx, role); err != nil {
				return err
			}
			if _, err := tx.Exec(ctx,
				`INSERT INTO user_roles (user_id, role_id)
				 SELECT $1, id FROM roles WHERE name = $2
				 ON CONFLICT DO NOTHING`, u.ID, role); err != nil {
				return fmt.Errorf("assign role %q: %w", role, err)
			}
		}
		return nil
	})
}

func (r *UserRepository) EnsureRole(ctx context.Context, name string) error {
	return ensureRole(ctx, r.pool, name)
}

func (r *UserRepository) AssignRole(ctx context.Context, userID string, role string) error {
	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := ensureRole(ctx, tx, role); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx,
			`INSERT INTO user_roles (user_id, role_id)
			 SELECT u.id, r.id FROM users u, roles r WHERE u.id = $1 AND r.name = $2
			 ON CONFLICT DO NOTHING`, userID, role)
		if err != nil {
			return fmt.Errorf("assign role %q: %w", role, err)
		}
		if tag.RowsAffected() == 0 {
			if _, err := r.FindByID(ctx, userID); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *UserRepository) UpdateProfile(ctx context.Context, u model.User) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users
		 SET first_name = $2, last_name = $3, phone_number = $4, address = $5, avatar = $6, updated_at = $7
		 WHERE id = $1`,
		u.ID, u.FirstName, u.LastName, u.PhoneNumber, u.Address, u.Avatar, u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update user profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

// ToggleActive flips the active flag and returns the new value. A deactivation
// revokes the user's refresh tokens in the same transaction.
func (r *UserRepository) ToggleActive(ctx context.Context, id string, at time.Time) (bool, error) {
	var active bool
	err := database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`UPDATE users SET is_active = NOT is_active, updated_at = $2 WHERE id = $1 RETURNING is_active`,
			id, at).Scan(&active)
		if errors.Is(err, pgx.ErrNoRows) {
			return model.ErrUserNotFound
		}
		if err != nil {
			return fmt.Errorf("toggle user status: %w", err)
		}
		if active {
			return nil
		}
		return revokeUserTokens(ctx, tx, id, at)
	})
	if err != nil {
		return false, err
	}
	return active, nil
}

func (r *UserRepository) PasswordHash(ctx context.Context, id string) (string, error) {
	var hash string
	err := r.pool.QueryRow(ctx, `SELECT password_hash FROM users WHERE id = $1`, id).Scan(&hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", model.ErrUserNotFound
	}
	if err != nil {
		return "", fmt.Errorf("load password hash: %w", err)
	}
	return hash, nil
}

// ReplacePasswordHash stores hash and revokes every live refresh token of the
// user. Either both writes commit or neither does.
func (r *UserRepository) ReplacePasswordHash(ctx context.Context, id string, hash string, at time.Time) error {
	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`,
			id, hash, at)
		if err != nil {
			return fmt.Errorf("update password: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return model.ErrUserNotFound
		}
		return revokeUserTokens(ctx, tx, id, at)
	})
}

func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE lower(email) = lower($1))`,
		strings.TrimSpace(email)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check email exists: %w", err)
	}
	return exists, nil
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func ensureRole(ctx context.Context, db execer, name string) error {
	if _, err := db.Exec(ctx,
		`INSERT INTO roles (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, name); err != nil {
		return fmt.Errorf("ensure role %q: %w", name, err)
	}
	return nil
}

func scanUser(row pgx.Row) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName,
		&u.PhoneNumber, &u.Address, &u.Avatar, &u.EmailConfirmed, &u.PhoneConfirmed,
		&u.Active, &u.CreatedAt, &u.UpdatedAt, &u.Roles)
	return u, err
}
