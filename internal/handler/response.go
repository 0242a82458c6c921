package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"go-parking-directory/internal/model"
	"go-parking-directory/pkg/apierror"
)

const maxBodyBytes = 1 << 20

func writeSuccess(w http.ResponseWriter, status int, data any, meta *model.Meta) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: true,
		Data:    data,
		Meta:    meta,
	})
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	body := &model.APIError{
		Code:    "INTERNAL_ERROR",
		Message: "Unexpected server error",
	}

	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) {
		status = apiErr.HTTPStatus
		body.Code = apiErr.Code
		body.Message = apiErr.Message
		body.Details = apiErr.Details
		if apiErr.Code == apierror.CodeInfrastructure {
			slog.Error("request failed on infrastructure", "error", err)
		}
	} else if errors.Is(err, model.ErrLotNotFound) {
		status = http.StatusNotFound
		body.Code = apierror.CodeNotFound
		body.Message = "Parking lot not found"
	} else if errors.Is(err, model.ErrUserNotFound) {
		status = http.StatusNotFound
		body.Code = apierror.CodeNotFound
		body.Message = "User not found"
	} else if errors.Is(err, model.ErrAddressNotFound) {
		status = http.StatusNotFound
		body.Code = apierror.CodeNotFound
		body.Message = "Address not found"
	} else if errors.Is(err, model.ErrUserAlreadyExists) {
		status = http.StatusConflict
		body.Code = apierror.CodeAlreadyExists
		body.Message = "User already exists"
	} else if errors.Is(err, model.ErrTokenNotFound) {
		status = http.StatusUnauthorized
		body.Code = apierror.CodeInvalidToken
		body.Message = "Invalid or expired token"
	} else {
		slog.Error("unhandled error in writeError", "error", err.Error())
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: false,
		Error:   body,
	})
}

// decodeJSON reads a bounded JSON body into dst. An empty body is rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	defer r.Body.Close()

	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apierror.New(apierror.CodeBadRequest, "request body is required", "", http.StatusBadRequest)
		}
		return apierror.New(apierror.CodeBadRequest, "invalid JSON body", "", http.StatusBadRequest)
	}
	return nil
}

func queryFloat(r *http.Request, key string) (float64, bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0, false, nil
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, true, apierror.Validation(key+" must be a number", key)
	}
	return v, true, nil
}

func requiredQueryFloat(r *http.Request, key string) (float64, error) {
	v, ok, err := queryFloat(r, key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, apierror.Validation(key+" is required", key)
	}
	return v, nil
}
