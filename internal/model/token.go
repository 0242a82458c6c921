package model

import "time"

// AccessToken is a signed, self-contained claim set. It is never persisted.
type AccessToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// RefreshToken is an opaque, persisted token. It refers to its owner by id only.
type RefreshToken struct {
	ID        int64      `json:"id"`
	Token     string     `json:"token"`
	UserID    string     `json:"user_id"`
	IssuedAt  time.Time  `json:"issued_at"`
	ExpiresAt time.Time  `json:"expires_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}

func (t RefreshToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

func (t RefreshToken) IsRevoked() bool {
	return t.RevokedAt != nil
}

func (t RefreshToken) Usable(now time.Time) bool {
	return !t.IsRevoked() && !t.IsExpired(now)
}
