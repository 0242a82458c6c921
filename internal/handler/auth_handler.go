package handler

import (
	"context"
	"net/http"
	"strings"

	"go-parking-directory/internal/model"
	"go-parking-directory/pkg/apierror"
)

type authService interface {
	Login(ctx context.Context, email string, password string) (model.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (model.TokenPair, error)
	Revoke(ctx context.Context, refreshToken string) (bool, error)
	Register(ctx context.Context, req model.RegisterRequest, caller *model.AuthClaims) (model.UserProfile, error)
	GetUser(ctx context.Context, userID string) (model.UserProfile, error)
	UpdateProfile(ctx context.Context, userID string, req model.UpdateProfileRequest) (model.UserProfile, error)
	ChangePassword(ctx context.Context, userID string, req model.ChangePasswordRequest) error
	ToggleUserStatus(ctx context.Context, caller *model.AuthClaims, userID string) (bool, error)
}

type AuthHandler struct {
	service authService
}

func NewAuthHandler(service authService) *AuthHandler {
	return &AuthHandler{service: service}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload model.LoginRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	tokens, err := h.service.Login(r.Context(), payload.Email, payload.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, tokens, nil)
}

// Register is open to anonymous callers; the caller's claims, when present,
// decide whether an Admin account may be created.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var payload model.RegisterRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	caller, _ := callerFromRequest(r)
	user, err := h.service.Register(r.Context(), payload, caller)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, user, nil)
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var payload model.RefreshRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	payload.RefreshToken = strings.TrimSpace(payload.RefreshToken)
	if payload.RefreshToken == "" {
		writeError(w, apierror.Validation("refresh_token is required", "refresh_token"))
		return
	}

	tokens, err := h.service.Refresh(r.Context(), payload.RefreshToken)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, tokens, nil)
}

func (h *AuthHandler) RevokeToken(w http.ResponseWriter, r *http.Request) {
	var payload model.RefreshRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	revoked, err := h.service.Revoke(r.Context(), payload.RefreshToken)
	if err != nil {
		writeError(w, err)
		return
	}
	if !revoked {
		writeError(w, apierror.Validation("invalid refresh token", "refresh_token"))
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"revoked": true}, nil)
}

// Logout always succeeds; a refresh token in the body is revoked on the way out.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var payload model.RefreshRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &payload); err != nil {
			writeError(w, err)
			return
		}
	}

	if token := strings.TrimSpace(payload.RefreshToken); token != "" {
		if _, err := h.service.Revoke(r.Context(), token); err != nil {
			writeError(w, err)
			return
		}
	}

	writeSuccess(w, http.StatusOK, map[string]any{"logged_out": true}, nil)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}

	user, err := h.service.GetUser(r.Context(), caller.UserID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, user, nil)
}
