package model

type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
	Meta    *Meta     `json:"meta,omitempty"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

type Meta struct {
	Total int `json:"total"`
}

type ParkingLotList struct {
	Items []ParkingLot `json:"items"`
}

type GeocodeResult struct {
	Address   string  `json:"address"`
	PlaceID   string  `json:"place_id,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Directions lists the driving routes between two points, best first.
type Directions struct {
	Routes []Route `json:"routes"`
}

type Route struct {
	DistanceMeters  float64     `json:"distance_meters"`
	DurationSeconds float64     `json:"duration_seconds"`
	Polyline        string      `json:"polyline,omitempty"`
	Steps           []RouteStep `json:"steps"`
}

type RouteStep struct {
	Instruction     string  `json:"instruction"`
	DistanceMeters  float64 `json:"distance_meters"`
	DurationSeconds float64 `json:"duration_seconds"`
}
