package service

import (
	"context"
	"fmt"
	"math"

	"go-parking-directory/internal/geo"
	"go-parking-directory/internal/model"
	"go-parking-directory/pkg/apierror"
)

const MaxNearbyRadiusKm = 10.0

// FindNearby returns the active lots within radiusKm of center. Candidates
// come from a bounding-box query against source and are then filtered by
// exact haversine distance. Result order is whatever source returns.
func FindNearby(ctx context.Context, center geo.Coordinate, radiusKm float64, source LotSource) ([]model.ParkingLot, error) {
	if math.IsNaN(radiusKm) || radiusKm <= 0 || radiusKm > MaxNearbyRadiusKm {
		return nil, apierror.Validation("radius out of range",
			fmt.Sprintf("radius_km must be in (0, %g]", MaxNearbyRadiusKm))
	}
	if err := center.Validate(); err != nil {
		return nil, apierror.Validation("invalid coordinates", err.Error())
	}

	candidates, err := source.ListActiveInBox(ctx, geo.BoundingBoxFor(center, radiusKm))
	if err != nil {
		return nil, infraError("list lots in bounding box", err)
	}

	nearby := make([]model.ParkingLot, 0, len(candidates))
	for _, lot := range candidates {
		if geo.DistanceKm(center, lot.Location) <= radiusKm {
			nearby = append(nearby, lot)
		}
	}
	return nearby, nil
}
