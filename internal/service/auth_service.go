package service

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"go-parking-directory/internal/event"
	"go-parking-directory/internal/model"
	"go-parking-directory/internal/util"
	"go-parking-directory/pkg/apierror"
)

const minPasswordLength = 8

// RoleHolder is satisfied by model.User and *model.AuthClaims.
type RoleHolder interface {
	HasRole(role string) bool
}

func HasRole(h RoleHolder, role string) bool {
	return h != nil && h.HasRole(role)
}

// AuthService composes the token lifecycle with registration and profile
// management.
type AuthService struct {
	users       UserStore
	hasher      PasswordHasher
	credentials CredentialStore
	tokens      *TokenService
	bus         event.Bus
	now         func() time.Time
}

func NewAuthService(users UserStore, hasher PasswordHasher, credentials CredentialStore, tokens *TokenService, bus event.Bus) *AuthService {
	return &AuthService{
		users:       users,
		hasher:      hasher,
		credentials: credentials,
		tokens:      tokens,
		bus:         bus,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *AuthService) Login(ctx context.Context, email string, password string) (model.TokenPair, error) {
	return s.tokens.Login(ctx, email, password)
}

func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (model.TokenPair, error) {
	return s.tokens.Refresh(ctx, refreshToken)
}

func (s *AuthService) Revoke(ctx context.Context, refreshToken string) (bool, error) {
	return s.tokens.Revoke(ctx, refreshToken)
}

// Register creates the user and its role link in one transaction. Only an
// admin caller may register another admin.
func (s *AuthService) Register(ctx context.Context, req model.RegisterRequest, caller *model.AuthClaims) (model.UserProfile, error) {
	req.Email = strings.TrimSpace(req.Email)
	req.FirstName = util.CleanText(req.FirstName)
	req.LastName = util.CleanText(req.LastName)

	role, err := resolveRole(req.Role)
	var problems []string
	if err != nil {
		problems = append(problems, err.Error())
	}
	if _, err := mail.ParseAddress(req.Email); err != nil || strings.ContainsAny(req.Email, " <>") {
		problems = append(problems, "email is not a valid address")
	}
	problems = append(problems, passwordProblems(req.Password)...)
	if req.FirstName == "" {
		problems = append(problems, "first name is required")
	}
	if req.LastName == "" {
		problems = append(problems, "last name is required")
	}
	if len(problems) > 0 {
		return model.UserProfile{}, apierror.Validation("registration failed", strings.Join(problems, "; "))
	}

	if role == model.RoleAdmin && !HasRole(caller, model.RoleAdmin) {
		return model.UserProfile{}, apierror.Forbidden("only administrators can register administrators")
	}

	exists, err := s.users.ExistsByEmail(ctx, req.Email)
	if err != nil {
		return model.UserProfile{}, infraError("check email", err)
	}
	if exists {
		return model.UserProfile{}, apierror.Conflict("email is already registered", req.Email)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return model.UserProfile{}, infraError("hash password", err)
	}

	user := model.User{
		ID:           uuid.NewString(),
		Email:        req.Email,
		PasswordHash: hash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Active:       true,
		Roles:        []string{role},
		CreatedAt:    s.now(),
	}
	err = s.users.CreateWithRoles(ctx, user, user.Roles)
	if errors.Is(err, model.ErrUserAlreadyExists) {
		return model.UserProfile{}, apierror.Conflict("email is already registered", req.Email)
	}
	if err != nil {
		return model.UserProfile{}, infraError("create user", err)
	}

	s.publish(event.TypeUserRegistered, user.ID, map[string]string{"user_id": user.ID, "role": role})
	return model.NewUserProfile(user), nil
}

func (s *AuthService) GetUser(ctx context.Context, userID string) (model.UserProfile, error) {
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return model.UserProfile{}, err
	}
	return model.NewUserProfile(user), nil
}

// UpdateProfile merges only the fields present in req.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, req model.UpdateProfileRequest) (model.UserProfile, error) {
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return model.UserProfile{}, err
	}

	if req.FirstName != nil {
		first := util.CleanText(*req.FirstName)
		if first == "" {
			return model.UserProfile{}, apierror.Validation("first name cannot be empty", "")
		}
		user.FirstName = first
	}
	if req.LastName != nil {
		last := util.CleanText(*req.LastName)
		if last == "" {
			return model.UserProfile{}, apierror.Validation("last name cannot be empty", "")
		}
		user.LastName = last
	}
	if req.PhoneNumber != nil {
		user.PhoneNumber = trimmedPtr(*req.PhoneNumber)
	}
	if req.Address != nil {
		user.Address = trimmedPtr(*req.Address)
	}
	if req.Avatar != nil {
		user.Avatar = trimmedPtr(*req.Avatar)
	}

	now := s.now()
	user.UpdatedAt = &now
	err = s.users.UpdateProfile(ctx, user)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.UserProfile{}, apierror.NotFound("user not found", userID)
	}
	if err != nil {
		return model.UserProfile{}, infraError("update profile", err)
	}

	return model.NewUserProfile(user), nil
}

// ChangePassword rejects mismatched confirmation before touching storage. The
// new password and the revocation of every refresh token of the user commit
// together or not at all.
func (s *AuthService) ChangePassword(ctx context.Context, userID string, req model.ChangePasswordRequest) error {
	if req.NewPassword != req.ConfirmPassword {
		return apierror.Validation("new password and confirmation do not match", "")
	}
	if req.CurrentPassword == "" {
		return apierror.Validation("current password is required", "")
	}
	if problems := passwordProblems(req.NewPassword); len(problems) > 0 {
		return apierror.Validation("password does not meet requirements", strings.Join(problems, "; "))
	}

	ok, err := s.credentials.Verify(ctx, userID, req.CurrentPassword)
	if err != nil {
		return infraError("verify current password", err)
	}
	if !ok {
		return apierror.InvalidCredentials()
	}

	changed, err := s.credentials.SetPassword(ctx, userID, req.NewPassword, s.now())
	if err != nil {
		return infraError("set password", err)
	}
	if !changed {
		return apierror.NotFound("user not found", userID)
	}

	s.publish(event.TypePasswordChanged, userID, map[string]string{"user_id": userID})
	return nil
}

// ToggleUserStatus flips the active flag of userID. Deactivating a user also
// revokes its refresh tokens in the same write.
func (s *AuthService) ToggleUserStatus(ctx context.Context, caller *model.AuthClaims, userID string) (bool, error) {
	if !HasRole(caller, model.RoleAdmin) {
		return false, apierror.Forbidden("")
	}

	active, err := s.users.ToggleActive(ctx, userID, s.now())
	if errors.Is(err, model.ErrUserNotFound) {
		return false, apierror.NotFound("user not found", userID)
	}
	if err != nil {
		return false, infraError("toggle user status", err)
	}

	s.publish(event.TypeUserStatusChanged, caller.UserID, map[string]any{"user_id": userID, "active": active})
	return active, nil
}

// SeedAdmin makes sure the built-in roles exist and, when password is set,
// that an active, verified admin account exists for email.
func (s *AuthService) SeedAdmin(ctx context.Context, email string, password string) error {
	for _, role := range []string{model.RoleAdmin, model.RoleUser} {
		if err := s.users.EnsureRole(ctx, role); err != nil {
			return err
		}
	}
	if password == "" {
		return nil
	}

	existing, err := s.users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		if existing.HasRole(model.RoleAdmin) {
			return nil
		}
		return s.users.AssignRole(ctx, existing.ID, model.RoleAdmin)
	case !errors.Is(err, model.ErrUserNotFound):
		return err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}
	admin := model.User{
		ID:             uuid.NewString(),
		Email:          email,
		PasswordHash:   hash,
		FirstName:      "System",
		LastName:       "Administrator",
		EmailConfirmed: true,
		Active:         true,
		CreatedAt:      s.now(),
	}
	if err := s.users.CreateWithRoles(ctx, admin, []string{model.RoleAdmin}); err != nil {
		return err
	}

	slog.Info("seeded admin account", "email", email)
	return nil
}

func (s *AuthService) findUser(ctx context.Context, userID string) (model.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.User{}, apierror.NotFound("user not found", userID)
	}
	if err != nil {
		return model.User{}, infraError("find user", err)
	}
	return user, nil
}

func (s *AuthService) publish(t event.Type, actorID string, payload any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(event.New(t, actorID, payload))
}

func resolveRole(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "", strings.EqualFold(raw, model.RoleUser):
		return model.RoleUser, nil
	case strings.EqualFold(raw, model.RoleAdmin):
		return model.RoleAdmin, nil
	default:
		return "", errors.New("role must be Admin or User")
	}
}

func passwordProblems(password string) []string {
	var problems []string
	if len([]rune(password)) < minPasswordLength {
		problems = append(problems, "password must be at least 8 characters")
	}

	var digit, lower, upper, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case !unicode.IsLetter(r) && !unicode.IsSpace(r):
			symbol = true
		}
	}
	if !digit {
		problems = append(problems, "password must contain a digit")
	}
	if !lower {
		problems = append(problems, "password must contain a lowercase letter")
	}
	if !upper {
		problems = append(problems, "password must contain an uppercase letter")
	}
	if !symbol {
		problems = append(problems, "password must contain a non-alphanumeric character")
	}
	return problems
}

func trimmedPtr(v string) *string {
	v = util.CleanText(v)
	if v == "" {
		return nil
	}
	return &v
}
