package apierror

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeInvalidToken       = "INVALID_TOKEN"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeForbidden          = "FORBIDDEN"
	CodeNotFound           = "NOT_FOUND"
	CodeAlreadyExists      = "ALREADY_EXISTS"
	CodeInfrastructure     = "INFRASTRUCTURE_ERROR"
	CodeRateLimited        = "RATE_LIMITED"
	CodeBadRequest         = "BAD_REQUEST"
)

type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
	HTTPStatus int    `json:"-"`

	// cause is kept for logging only and never rendered.
	cause error
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}

	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}

	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

func New(code string, message string, details string, status int) *APIError {
	return &APIError{Code: code, Message: message, Details: details, HTTPStatus: status}
}

func Validation(message string, details string) *APIError {
	return New(CodeValidation, message, details, http.StatusBadRequest)
}

// InvalidCredentials deliberately carries no details so callers cannot tell an
// unknown email from a wrong password.
func InvalidCredentials() *APIError {
	return New(CodeInvalidCredentials, "invalid credentials", "", http.StatusUnauthorized)
}

func InvalidToken(message string) *APIError {
	if message == "" {
		message = "invalid or expired token"
	}
	return New(CodeInvalidToken, message, "", http.StatusUnauthorized)
}

func Unauthorized(message string) *APIError {
	if message == "" {
		message = "authentication required"
	}
	return New(CodeUnauthorized, message, "", http.StatusUnauthorized)
}

func Forbidden(message string) *APIError {
	if message == "" {
		message = "insufficient permissions"
	}
	return New(CodeForbidden, message, "", http.StatusForbidden)
}

func NotFound(message string, details string) *APIError {
	return New(CodeNotFound, message, details, http.StatusNotFound)
}

func Conflict(message string, details string) *APIError {
	return New(CodeAlreadyExists, message, details, http.StatusConflict)
}

// Infrastructure wraps a storage or provider failure behind a generic message.
func Infrastructure(cause error) *APIError {
	e := New(CodeInfrastructure, "service temporarily unavailable", "", http.StatusServiceUnavailable)
	e.cause = cause
	return e
}

// Is reports whether err is an APIError with the given code.
func Is(err error, code string) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == code
}
