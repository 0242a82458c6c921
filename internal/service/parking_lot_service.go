package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"go-parking-directory/internal/event"
	"go-parking-directory/internal/geo"
	"go-parking-directory/internal/model"
	"go-parking-directory/internal/util"
	"go-parking-directory/pkg/apierror"
)

const maxLotNameLength = 100

type ParkingLotService struct {
	lots         LotStore
	geocoder     GeocodingProvider
	bus          event.Bus
	toleranceDeg float64
	now          func() time.Time
}

func NewParkingLotService(lots LotStore, geocoder GeocodingProvider, bus event.Bus, toleranceDeg float64) *ParkingLotService {
	return &ParkingLotService{
		lots:         lots,
		geocoder:     geocoder,
		bus:          bus,
		toleranceDeg: toleranceDeg,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *ParkingLotService) Nearby(ctx context.Context, lat float64, lng float64, radiusKm float64) ([]model.ParkingLot, error) {
	return FindNearby(ctx, geo.Coordinate{Lat: lat, Lng: lng}, radiusKm, s.lots)
}

func (s *ParkingLotService) ListActive(ctx context.Context) ([]model.ParkingLot, error) {
	lots, err := s.lots.ListActive(ctx)
	if err != nil {
		return nil, infraError("list active lots", err)
	}
	return lots, nil
}

// GetByID returns the lot whether or not it is still active.
func (s *ParkingLotService) GetByID(ctx context.Context, id int64) (model.ParkingLot, error) {
	lot, err := s.lots.FindByID(ctx, id)
	if errors.Is(err, model.ErrLotNotFound) {
		return model.ParkingLot{}, apierror.NotFound("parking lot not found", fmt.Sprint(id))
	}
	if err != nil {
		return model.ParkingLot{}, infraError("find lot", err)
	}
	return lot, nil
}

// Create validates the submitted address against the geocoder before storing
// the lot. A new lot starts fully available.
func (s *ParkingLotService) Create(ctx context.Context, actorID string, req model.CreateParkingLotRequest) (model.ParkingLot, error) {
	req = normalizeLotRequest(req)
	if err := validateLotRequest(req); err != nil {
		return model.ParkingLot{}, err
	}

	location := geo.Coordinate{Lat: req.Latitude, Lng: req.Longitude}
	resolved, err := s.geocoder.Geocode(ctx, req.Address)
	if errors.Is(err, model.ErrAddressNotFound) {
		return model.ParkingLot{}, apierror.Validation("address could not be resolved", req.Address)
	}
	if err != nil {
		return model.ParkingLot{}, infraError("geocode address", err)
	}
	if !s.withinTolerance(location, resolved) {
		return model.ParkingLot{}, apierror.Validation("address does not match coordinates",
			fmt.Sprintf("address resolves to (%.5f, %.5f)", resolved.Latitude, resolved.Longitude))
	}

	created, err := s.lots.Create(ctx, model.ParkingLot{
		Name:           req.Name,
		Address:        req.Address,
		Location:       location,
		Capacity:       req.Capacity,
		AvailableSpots: req.Capacity,
		Description:    req.Description,
		PlaceID:        resolved.PlaceID,
		MarkerColor:    model.DefaultMarkerColor,
		Active:         true,
		CreatedAt:      s.now(),
		CreatedBy:      actorID,
	})
	if err != nil {
		return model.ParkingLot{}, infraError("create lot", err)
	}

	s.publish(event.TypeLotCreated, actorID, created)
	return created, nil
}

// Update replaces the editable fields of a lot. availableSpots must stay in
// [0, capacity]; out-of-range values are rejected, not clamped.
func (s *ParkingLotService) Update(ctx context.Context, actorID string, id int64, req model.UpdateParkingLotRequest) (model.ParkingLot, error) {
	req.CreateParkingLotRequest = normalizeLotRequest(req.CreateParkingLotRequest)
	if err := validateLotRequest(req.CreateParkingLotRequest); err != nil {
		return model.ParkingLot{}, err
	}
	if req.AvailableSpots < 0 || req.AvailableSpots > req.Capacity {
		return model.ParkingLot{}, apierror.Validation("available spots out of range",
			fmt.Sprintf("available_spots must be between 0 and capacity (%d)", req.Capacity))
	}

	now := s.now()
	updated, err := s.lots.Update(ctx, model.ParkingLot{
		ID:             id,
		Name:           req.Name,
		Address:        req.Address,
		Location:       geo.Coordinate{Lat: req.Latitude, Lng: req.Longitude},
		Capacity:       req.Capacity,
		AvailableSpots: req.AvailableSpots,
		Description:    req.Description,
		Active:         req.Active,
		UpdatedAt:      &now,
		UpdatedBy:      actorID,
	})
	if errors.Is(err, model.ErrLotNotFound) {
		return model.ParkingLot{}, apierror.NotFound("parking lot not found", fmt.Sprint(id))
	}
	if err != nil {
		return model.ParkingLot{}, infraError("update lot", err)
	}

	s.publish(event.TypeLotUpdated, actorID, updated)
	return updated, nil
}

// Deactivate is the soft delete: the row stays, the lot leaves every listing.
func (s *ParkingLotService) Deactivate(ctx context.Context, actorID string, id int64) error {
	err := s.lots.Deactivate(ctx, id, actorID, s.now())
	if errors.Is(err, model.ErrLotNotFound) {
		return apierror.NotFound("parking lot not found", fmt.Sprint(id))
	}
	if err != nil {
		return infraError("deactivate lot", err)
	}

	s.publish(event.TypeLotDeactivated, actorID, map[string]int64{"id": id})
	return nil
}

func (s *ParkingLotService) withinTolerance(submitted geo.Coordinate, resolved model.GeocodeResult) bool {
	return math.Abs(submitted.Lat-resolved.Latitude) <= s.toleranceDeg &&
		math.Abs(submitted.Lng-resolved.Longitude) <= s.toleranceDeg
}

func (s *ParkingLotService) publish(t event.Type, actorID string, payload any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(event.New(t, actorID, payload))
}

func normalizeLotRequest(req model.CreateParkingLotRequest) model.CreateParkingLotRequest {
	req.Name = util.CleanText(req.Name)
	req.Address = util.CleanText(req.Address)
	req.Description = util.CleanMultiline(req.Description)
	return req
}

func validateLotRequest(req model.CreateParkingLotRequest) error {
	var problems []string
	if req.Name == "" {
		problems = append(problems, "name is required")
	} else if utf8.RuneCountInString(req.Name) > maxLotNameLength {
		problems = append(problems, fmt.Sprintf("name must be at most %d characters", maxLotNameLength))
	}
	if req.Address == "" {
		problems = append(problems, "address is required")
	}
	if err := (geo.Coordinate{Lat: req.Latitude, Lng: req.Longitude}).Validate(); err != nil {
		problems = append(problems, err.Error())
	}
	if req.Capacity <= 0 {
		problems = append(problems, "capacity must be greater than zero")
	}

	if len(problems) > 0 {
		return apierror.Validation("invalid parking lot", strings.Join(problems, "; "))
	}
	return nil
}
