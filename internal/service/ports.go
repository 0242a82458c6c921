package service

import (
	"context"
	"time"

	"go-parking-directory/internal/geo"
	"go-parking-directory/internal/model"
)

// LotSource lists active lots inside a bounding box. It is the only storage
// dependency of the nearby search.
type LotSource interface {
	ListActiveInBox(ctx context.Context, box geo.BoundingBox) ([]model.ParkingLot, error)
}

type LotStore interface {
	LotSource
	Create(ctx context.Context, lot model.ParkingLot) (model.ParkingLot, error)
	FindByID(ctx context.Context, id int64) (model.ParkingLot, error)
	ListActive(ctx context.Context) ([]model.ParkingLot, error)
	Update(ctx context.Context, lot model.ParkingLot) (model.ParkingLot, error)
	Deactivate(ctx context.Context, id int64, updatedBy string, at time.Time) error
}

type UserStore interface {
	FindByID(ctx context.Context, id string) (model.User, error)
	FindByEmail(ctx context.Context, email string) (model.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	CreateWithRoles(ctx context.Context, u model.User, roles []string) error
	EnsureRole(ctx context.Context, name string) error
	AssignRole(ctx context.Context, userID string, role string) error
	UpdateProfile(ctx context.Context, u model.User) error
	// ToggleActive flips the active flag. Deactivation revokes the user's
	// refresh tokens in the same atomic write.
	ToggleActive(ctx context.Context, id string, at time.Time) (bool, error)
}

// RefreshTokenStore persists refresh tokens. Rotate must revoke oldToken and
// insert next atomically, failing with model.ErrTokenNotFound when oldToken
// is unknown, revoked or expired at now.
type RefreshTokenStore interface {
	Create(ctx context.Context, token model.RefreshToken) (model.RefreshToken, error)
	FindByToken(ctx context.Context, token string) (model.RefreshToken, error)
	Rotate(ctx context.Context, oldToken string, next model.RefreshToken, now time.Time) (model.RefreshToken, error)
	RevokeActive(ctx context.Context, token string, now time.Time) (bool, error)
	CleanExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// CredentialStore owns password verification, keyed by user id. SetPassword
// replaces the password and revokes the user's refresh tokens as of at in one
// atomic write; it reports false for unknown users.
type CredentialStore interface {
	Verify(ctx context.Context, userID string, password string) (bool, error)
	SetPassword(ctx context.Context, userID string, newPassword string, at time.Time) (bool, error)
}

type PasswordHasher interface {
	Hash(password string) (string, error)
}

type GeocodingProvider interface {
	Geocode(ctx context.Context, address string) (model.GeocodeResult, error)
	ReverseGeocode(ctx context.Context, at geo.Coordinate) (model.GeocodeResult, error)
}
