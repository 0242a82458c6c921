package middleware

import (
	"context"
	"net/http"
	"strings"

	"go-parking-directory/internal/model"
	"go-parking-directory/pkg/apierror"
)

type tokenVerifier interface {
	Verify(token string) (*model.AuthClaims, error)
}

type contextKey string

const authClaimsContextKey contextKey = "auth_claims"

// AuthMiddleware verifies the bearer access token once at the request
// boundary and stores the claims in the request context.
type AuthMiddleware struct {
	verifier tokenVerifier
}

func NewAuthMiddleware(verifier tokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier}
}

func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeAPIError(w, apierror.Unauthorized("missing or invalid authorization header"))
			return
		}

		claims, err := m.verifier.Verify(token)
		if err != nil {
			writeAPIError(w, apierror.InvalidToken(""))
			return
		}
		if !claims.Active {
			writeAPIError(w, apierror.Unauthorized("account is disabled"))
			return
		}

		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

// OptionalAuth attaches claims when a valid bearer token is present and lets
// anonymous requests through unchanged.
func (m *AuthMiddleware) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token, ok := bearerToken(r); ok {
			if claims, err := m.verifier.Verify(token); err == nil && claims.Active {
				r = r.WithContext(WithClaims(r.Context(), claims))
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (m *AuthMiddleware) RequireRoles(allowedRoles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				writeAPIError(w, apierror.Unauthorized(""))
				return
			}

			for _, role := range allowedRoles {
				if claims.HasRole(strings.TrimSpace(role)) {
					next.ServeHTTP(w, r)
					return
				}
			}

			writeAPIError(w, apierror.Forbidden(""))
		})
	}
}

func WithClaims(ctx context.Context, claims *model.AuthClaims) context.Context {
	if info, ok := ctx.Value(requestInfoContextKey).(*requestInfo); ok && claims != nil {
		userID := claims.UserID
		info.userID.Store(&userID)
	}
	return context.WithValue(ctx, authClaimsContextKey, claims)
}

func ClaimsFromContext(ctx context.Context) (*model.AuthClaims, bool) {
	claims, ok := ctx.Value(authClaimsContextKey).(*model.AuthClaims)
	return claims, ok && claims != nil
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return "", false
	}

	token := strings.TrimSpace(header[7:])
	return token, token != ""
}
