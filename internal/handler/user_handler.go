package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"go-parking-directory/internal/model"
	"go-parking-directory/pkg/apierror"
)

type UserHandler struct {
	service authService
}

func NewUserHandler(service authService) *UserHandler {
	return &UserHandler{service: service}
}

func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var payload model.UpdateProfileRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.service.UpdateProfile(r.Context(), caller.UserID, payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, user, nil)
}

func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var payload model.ChangePasswordRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	if err := h.service.ChangePassword(r.Context(), caller.UserID, payload); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"changed": true}, nil)
}

func (h *UserHandler) ToggleStatus(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}

	userID := strings.TrimSpace(chi.URLParam(r, "userId"))
	if userID == "" {
		writeError(w, apierror.Validation("user id is required", "userId"))
		return
	}

	active, err := h.service.ToggleUserStatus(r.Context(), caller, userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"user_id": userID, "is_active": active}, nil)
}
