package service

import (
	"errors"
	"fmt"
	"log/slog"

	"go-parking-directory/pkg/apierror"
)

// infraError logs a storage or provider failure and hides it behind a
// generic InfrastructureError. APIErrors pass through untouched.
func infraError(op string, err error) error {
	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	slog.Error("infrastructure failure", "op", op, "error", err)
	return apierror.Infrastructure(fmt.Errorf("%s: %w", op, err))
}
