package model

import (
	"strings"
	"time"
)

const (
	RoleAdmin = "Admin"
	RoleUser  = "User"
)

type User struct {
	ID             string     `json:"id"`
	Email          string     `json:"email"`
	PasswordHash   string     `json:"-"`
	FirstName      string     `json:"first_name"`
	LastName       string     `json:"last_name"`
	PhoneNumber    *string    `json:"phone_number,omitempty"`
	Address        *string    `json:"address,omitempty"`
	Avatar         *string    `json:"avatar,omitempty"`
	EmailConfirmed bool       `json:"email_confirmed"`
	PhoneConfirmed bool       `json:"phone_confirmed"`
	Active         bool       `json:"active"`
	Roles          []string   `json:"roles"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      *time.Time `json:"updated_at,omitempty"`
}

func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Verified is true once either the email or the phone number is confirmed.
func (u User) Verified() bool {
	return u.EmailConfirmed || u.PhoneConfirmed
}

// HasRole reports whether the user holds role, ignoring case.
func (u User) HasRole(role string) bool {
	return containsRole(u.Roles, role)
}

// AuthClaims is the verified content of an access token.
type AuthClaims struct {
	UserID   string    `json:"sub"`
	Email    string    `json:"email"`
	Name     string    `json:"name"`
	FullName string    `json:"full_name"`
	Active   bool      `json:"is_active"`
	Verified bool      `json:"is_verified"`
	Roles    []string  `json:"roles"`
	TokenID  string    `json:"jti"`
	Expiry   time.Time `json:"exp"`
}

func (c *AuthClaims) HasRole(role string) bool {
	if c == nil {
		return false
	}
	return containsRole(c.Roles, role)
}

type UserProfile struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	PhoneNumber string   `json:"phone_number"`
	FirstName   string   `json:"first_name"`
	LastName    string   `json:"last_name"`
	FullName    string   `json:"full_name"`
	Avatar      *string  `json:"avatar,omitempty"`
	Address     *string  `json:"address,omitempty"`
	IsVerified  bool     `json:"is_verified"`
	IsActive    bool     `json:"is_active"`
	Roles       []string `json:"roles"`
}

func NewUserProfile(u User) UserProfile {
	phone := ""
	if u.PhoneNumber != nil {
		phone = *u.PhoneNumber
	}
	roles := u.Roles
	if roles == nil {
		roles = []string{}
	}

	return UserProfile{
		ID:          u.ID,
		Email:       u.Email,
		PhoneNumber: phone,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		FullName:    u.FullName(),
		Avatar:      u.Avatar,
		Address:     u.Address,
		IsVerified:  u.Verified(),
		IsActive:    u.Active,
		Roles:       roles,
	}
}

type TokenPair struct {
	AccessToken           string      `json:"access_token"`
	RefreshToken          string      `json:"refresh_token"`
	TokenType             string      `json:"token_type"`
	AccessTokenExpiresIn  int64       `json:"access_token_expires_in"`
	RefreshTokenExpiresAt time.Time   `json:"refresh_token_expires_at"`
	User                  UserProfile `json:"user"`
}

func containsRole(roles []string, role string) bool {
	for _, r := range roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}
