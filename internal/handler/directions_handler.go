package handler

import (
	"context"
	"errors"
	"net/http"

	"go-parking-directory/internal/geo"
	"go-parking-directory/internal/model"
	"go-parking-directory/pkg/apierror"
)

type routePlanner interface {
	Directions(ctx context.Context, from geo.Coordinate, to geo.Coordinate) (model.Directions, error)
}

type DirectionsHandler struct {
	planner routePlanner
}

func NewDirectionsHandler(planner routePlanner) *DirectionsHandler {
	return &DirectionsHandler{planner: planner}
}

// Get answers GET /api/directions?fromLat&fromLng&toLat&toLng.
func (h *DirectionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	from, err := coordinateQuery(r, "fromLat", "fromLng")
	if err != nil {
		writeError(w, err)
		return
	}
	to, err := coordinateQuery(r, "toLat", "toLng")
	if err != nil {
		writeError(w, err)
		return
	}

	directions, err := h.planner.Directions(r.Context(), from, to)
	if errors.Is(err, model.ErrRouteNotFound) {
		writeError(w, apierror.NotFound("no route between the given points", ""))
		return
	}
	if err != nil {
		writeError(w, providerError(err))
		return
	}

	writeSuccess(w, http.StatusOK, directions, nil)
}

func coordinateQuery(r *http.Request, latKey string, lngKey string) (geo.Coordinate, error) {
	lat, err := requiredQueryFloat(r, latKey)
	if err != nil {
		return geo.Coordinate{}, err
	}
	lng, err := requiredQueryFloat(r, lngKey)
	if err != nil {
		return geo.Coordinate{}, err
	}

	at := geo.Coordinate{Lat: lat, Lng: lng}
	if err := at.Validate(); err != nil {
		return geo.Coordinate{}, apierror.Validation(err.Error(), latKey+","+lngKey)
	}
	return at, nil
}
