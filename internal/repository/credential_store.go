package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"go-parking-directory/internal/model"
)

const DefaultBcryptCost = 12

// PasswordHashStore is the slice of UserRepository the credential store needs.
type PasswordHashStore interface {
	PasswordHash(ctx context.Context, userID string) (string, error)
	ReplacePasswordHash(ctx context.Context, userID string, hash string, at time.Time) error
}

// CredentialStore verifies and replaces bcrypt password hashes keyed by user id.
type CredentialStore struct {
	hashes PasswordHashStore
	cost   int
}

func NewCredentialStore(hashes PasswordHashStore, cost int) *CredentialStore {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	return &CredentialStore{hashes: hashes, cost: cost}
}

func (s *CredentialStore) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Verify returns false for unknown users and wrong passwords alike.
func (s *CredentialStore) Verify(ctx context.Context, userID string, password string) (bool, error) {
	hash, err := s.hashes.PasswordHash(ctx, userID)
	if errors.Is(err, model.ErrUserNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil, nil
}

// SetPassword replaces the hash and ends every session of the user as of at.
// It reports false when the user does not exist.
func (s *CredentialStore) SetPassword(ctx context.Context, userID string, newPassword string, at time.Time) (bool, error) {
	hash, err := s.Hash(newPassword)
	if err != nil {
		return false, err
	}

	err = s.hashes.ReplacePasswordHash(ctx, userID, hash, at)
	if errors.Is(err, model.ErrUserNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
