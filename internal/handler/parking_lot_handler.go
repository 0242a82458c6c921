package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"go-parking-directory/internal/model"
	"go-parking-directory/pkg/apierror"
)

const defaultNearbyRadiusKm = 1.0

type lotService interface {
	Nearby(ctx context.Context, lat float64, lng float64, radiusKm float64) ([]model.ParkingLot, error)
	ListActive(ctx context.Context) ([]model.ParkingLot, error)
	GetByID(ctx context.Context, id int64) (model.ParkingLot, error)
	Create(ctx context.Context, actorID string, req model.CreateParkingLotRequest) (model.ParkingLot, error)
	Update(ctx context.Context, actorID string, id int64, req model.UpdateParkingLotRequest) (model.ParkingLot, error)
	Deactivate(ctx context.Context, actorID string, id int64) error
}

type ParkingLotHandler struct {
	service lotService
}

func NewParkingLotHandler(service lotService) *ParkingLotHandler {
	return &ParkingLotHandler{service: service}
}

func (h *ParkingLotHandler) List(w http.ResponseWriter, r *http.Request) {
	lots, err := h.service.ListActive(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeLots(w, lots)
}

// Nearby answers GET ?lat=&lng=&radiusKm= with lots ordered as stored.
func (h *ParkingLotHandler) Nearby(w http.ResponseWriter, r *http.Request) {
	lat, err := requiredQueryFloat(r, "lat")
	if err != nil {
		writeError(w, err)
		return
	}
	lng, err := requiredQueryFloat(r, "lng")
	if err != nil {
		writeError(w, err)
		return
	}
	radiusKm, ok, err := queryFloat(r, "radiusKm")
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		radiusKm = defaultNearbyRadiusKm
	}

	lots, err := h.service.Nearby(r.Context(), lat, lng, radiusKm)
	if err != nil {
		writeError(w, err)
		return
	}

	writeLots(w, lots)
}

func (h *ParkingLotHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := lotID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	lot, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, lot, nil)
}

func (h *ParkingLotHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload model.CreateParkingLotRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	lot, err := h.service.Create(r.Context(), actorID(r), payload)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Location", "/api/parkinglots/"+strconv.FormatInt(lot.ID, 10))
	writeSuccess(w, http.StatusCreated, lot, nil)
}

func (h *ParkingLotHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := lotID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var payload model.UpdateParkingLotRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	lot, err := h.service.Update(r.Context(), actorID(r), id, payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, lot, nil)
}

func (h *ParkingLotHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := lotID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.service.Deactivate(r.Context(), actorID(r), id); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func writeLots(w http.ResponseWriter, lots []model.ParkingLot) {
	if lots == nil {
		lots = []model.ParkingLot{}
	}
	writeSuccess(w, http.StatusOK, model.ParkingLotList{Items: lots}, &model.Meta{Total: len(lots)})
}

func lotID(r *http.Request) (int64, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "id"))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apierror.Validation("parking lot id must be a positive integer", "id")
	}
	return id, nil
}
