package model

import (
	"time"

	"go-parking-directory/internal/geo"
)

const DefaultMarkerColor = "#FF0000"

type ParkingLot struct {
	ID             int64          `json:"id"`
	Name           string         `json:"name"`
	Address        string         `json:"address"`
	Location       geo.Coordinate `json:"location"`
	Capacity       int            `json:"capacity"`
	AvailableSpots int            `json:"available_spots"`
	Description    string         `json:"description"`
	PlaceID        string         `json:"place_id"`
	IconURL        string         `json:"icon_url"`
	MarkerColor    string         `json:"marker_color"`
	Active         bool           `json:"active"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      *time.Time     `json:"updated_at,omitempty"`
	CreatedBy      string         `json:"created_by"`
	UpdatedBy      string         `json:"updated_by"`
}
