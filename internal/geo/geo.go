// Package geo holds the coordinate math used by the nearby search.
package geo

import (
	"fmt"
	"math"
)

const (
	EarthRadiusKm = 6371.0

	// KmPerDegree is the length of one degree of latitude on the sphere used
	// by DistanceKm.
	KmPerDegree = EarthRadiusKm * math.Pi / 180

	// boxPadding widens the prefilter so it always contains the search circle.
	boxPadding = 1.005

	minCosLat = 1e-12
)

type Coordinate struct {
	Lat float64 `json:"latitude"`
	Lng float64 `json:"longitude"`
}

func (c Coordinate) Validate() error {
	if math.IsNaN(c.Lat) || c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("latitude %v out of range [-90, 90]", c.Lat)
	}
	if math.IsNaN(c.Lng) || c.Lng < -180 || c.Lng > 180 {
		return fmt.Errorf("longitude %v out of range [-180, 180]", c.Lng)
	}
	return nil
}

// DistanceKm returns the haversine great-circle distance between a and b.
func DistanceKm(a, b Coordinate) float64 {
	dLat := radians(b.Lat - a.Lat)
	dLng := radians(b.Lng - a.Lng)

	sinLat := math.Sin(dLat / 2)
	sinLng := math.Sin(dLng / 2)
	h := sinLat*sinLat + math.Cos(radians(a.Lat))*math.Cos(radians(b.Lat))*sinLng*sinLng
	// Rounding can push h a hair outside [0, 1] for antipodal points.
	h = math.Min(1, math.Max(0, h))

	return 2 * EarthRadiusKm * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// BoundingBox is an axis-aligned lat/lng rectangle used as a cheap prefilter.
// When LngUnbounded is set the longitude bounds must be ignored.
type BoundingBox struct {
	MinLat       float64 `json:"min_lat"`
	MaxLat       float64 `json:"max_lat"`
	MinLng       float64 `json:"min_lng"`
	MaxLng       float64 `json:"max_lng"`
	LngUnbounded bool    `json:"lng_unbounded"`
}

// BoundingBoxFor returns a rectangle that contains every point within
// radiusKm of center. Longitude filtering is dropped near the poles and when
// the rectangle would cross the antimeridian.
func BoundingBoxFor(center Coordinate, radiusKm float64) BoundingBox {
	latDelta := radiusKm * boxPadding / KmPerDegree
	box := BoundingBox{
		MinLat: center.Lat - latDelta,
		MaxLat: center.Lat + latDelta,
	}

	cosLat := math.Cos(radians(center.Lat))
	if math.Abs(cosLat) < minCosLat || box.MaxLat >= 90 || box.MinLat <= -90 {
		return box.unboundedLng()
	}

	lngDelta := math.Abs(radiusKm * boxPadding / (KmPerDegree * cosLat))
	box.MinLng = center.Lng - lngDelta
	box.MaxLng = center.Lng + lngDelta
	if box.MinLng < -180 || box.MaxLng > 180 {
		return box.unboundedLng()
	}

	return box
}

func (b BoundingBox) Contains(c Coordinate) bool {
	if c.Lat < b.MinLat || c.Lat > b.MaxLat {
		return false
	}
	if b.LngUnbounded {
		return true
	}
	return c.Lng >= b.MinLng && c.Lng <= b.MaxLng
}

func (b BoundingBox) unboundedLng() BoundingBox {
	b.LngUnbounded = true
	b.MinLng = -180
	b.MaxLng = 180
	return b
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
