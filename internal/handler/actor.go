package handler

import (
	"net/http"

	"go-parking-directory/internal/middleware"
	"go-parking-directory/internal/model"
	"go-parking-directory/pkg/apierror"
)

// callerFromRequest returns the authenticated caller or an Unauthorized error.
func callerFromRequest(r *http.Request) (*model.AuthClaims, error) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok || claims.UserID == "" {
		return nil, apierror.Unauthorized("")
	}
	return claims, nil
}

// actorID is the id recorded as creator/updater on writes; empty for anonymous calls.
func actorID(r *http.Request) string {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		return ""
	}
	return claims.UserID
}
