package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go-parking-directory/internal/geo"
	"go-parking-directory/internal/geocoding"
	"go-parking-directory/internal/model"
	"go-parking-directory/pkg/apierror"
)

type geocoder interface {
	Geocode(ctx context.Context, address string) (model.GeocodeResult, error)
	ReverseGeocode(ctx context.Context, at geo.Coordinate) (model.GeocodeResult, error)
}

type GeocodeHandler struct {
	provider geocoder
}

func NewGeocodeHandler(provider geocoder) *GeocodeHandler {
	return &GeocodeHandler{provider: provider}
}

func (h *GeocodeHandler) Forward(w http.ResponseWriter, r *http.Request) {
	address := strings.TrimSpace(r.URL.Query().Get("address"))
	if address == "" {
		writeError(w, apierror.Validation("address is required", "address"))
		return
	}

	result, err := h.provider.Geocode(r.Context(), address)
	if err != nil {
		writeError(w, providerError(err))
		return
	}

	writeSuccess(w, http.StatusOK, result, nil)
}

func (h *GeocodeHandler) Reverse(w http.ResponseWriter, r *http.Request) {
	at, err := coordinateQuery(r, "lat", "lng")
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.provider.ReverseGeocode(r.Context(), at)
	if err != nil {
		writeError(w, providerError(err))
		return
	}

	writeSuccess(w, http.StatusOK, result, nil)
}

func providerError(err error) error {
	switch {
	case errors.Is(err, model.ErrAddressNotFound):
		return apierror.NotFound("address not found", "")
	case errors.Is(err, geocoding.ErrRateLimited):
		return apierror.New(apierror.CodeRateLimited, "maps provider is rate limited", "", http.StatusTooManyRequests)
	default:
		return apierror.Infrastructure(err)
	}
}
