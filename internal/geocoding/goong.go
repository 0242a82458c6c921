// Package geocoding resolves addresses to coordinates and back through the
// Goong maps API, optionally behind a Redis cache, and plans driving routes.
package geocoding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go-parking-directory/internal/geo"
	"go-parking-directory/internal/model"
)

var ErrRateLimited = errors.New("geocoding provider rate limit exceeded")

const maxErrorBody = 512

// Client talks to the Goong Geocode and Direction endpoints.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	apiKey     string
}

func NewClient(baseURL string, apiKey string, timeout time.Duration) (*Client, error) {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse geocoding base URL: %w", err)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    parsed,
		apiKey:     apiKey,
	}, nil
}

type geocodeResponse struct {
	Status  string `json:"status"`
	Results []struct {
		FormattedAddress string `json:"formatted_address"`
		PlaceID          string `json:"place_id"`
		Geometry         struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

func (c *Client) Geocode(ctx context.Context, address string) (model.GeocodeResult, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return model.GeocodeResult{}, model.ErrAddressNotFound
	}

	q := url.Values{}
	q.Set("address", address)
	return c.lookup(ctx, q)
}

func (c *Client) ReverseGeocode(ctx context.Context, at geo.Coordinate) (model.GeocodeResult, error) {
	q := url.Values{}
	q.Set("latlng", formatLatLng(at))
	return c.lookup(ctx, q)
}

func (c *Client) lookup(ctx context.Context, q url.Values) (model.GeocodeResult, error) {
	var payload geocodeResponse
	if err := c.get(ctx, "Geocode", q, &payload); err != nil {
		return model.GeocodeResult{}, err
	}

	if len(payload.Results) == 0 || strings.EqualFold(payload.Status, "ZERO_RESULTS") {
		return model.GeocodeResult{}, model.ErrAddressNotFound
	}

	first := payload.Results[0]
	return model.GeocodeResult{
		Address:   first.FormattedAddress,
		PlaceID:   first.PlaceID,
		Latitude:  first.Geometry.Location.Lat,
		Longitude: first.Geometry.Location.Lng,
	}, nil
}

type measure struct {
	Value float64 `json:"value"`
}

type directionsResponse struct {
	Status string `json:"status"`
	Routes []struct {
		Legs []struct {
			Distance measure `json:"distance"`
			Duration measure `json:"duration"`
			Steps    []struct {
				HTMLInstructions string  `json:"html_instructions"`
				Distance         measure `json:"distance"`
				Duration         measure `json:"duration"`
			} `json:"steps"`
		} `json:"legs"`
		OverviewPolyline struct {
			Points string `json:"points"`
		} `json:"overview_polyline"`
	} `json:"routes"`
}

// Directions asks for car routes from one point to another, alternatives
// included. It fails with model.ErrRouteNotFound when the provider has none.
func (c *Client) Directions(ctx context.Context, from geo.Coordinate, to geo.Coordinate) (model.Directions, error) {
	q := url.Values{}
	q.Set("origin", formatLatLng(from))
	q.Set("destination", formatLatLng(to))
	q.Set("vehicle", "car")
	q.Set("alternatives", "true")

	var payload directionsResponse
	if err := c.get(ctx, "Direction", q, &payload); err != nil {
		return model.Directions{}, err
	}
	if len(payload.Routes) == 0 || strings.EqualFold(payload.Status, "ZERO_RESULTS") {
		return model.Directions{}, model.ErrRouteNotFound
	}

	out := model.Directions{Routes: make([]model.Route, 0, len(payload.Routes))}
	for _, r := range payload.Routes {
		route := model.Route{Polyline: r.OverviewPolyline.Points, Steps: []model.RouteStep{}}
		for _, leg := range r.Legs {
			route.DistanceMeters += leg.Distance.Value
			route.DurationSeconds += leg.Duration.Value
			for _, step := range leg.Steps {
				route.Steps = append(route.Steps, model.RouteStep{
					Instruction:     step.HTMLInstructions,
					DistanceMeters:  step.Distance.Value,
					DurationSeconds: step.Duration.Value,
				})
			}
		}
		out.Routes = append(out.Routes, route)
	}
	return out, nil
}

// get calls endpoint with q plus the API key and decodes the JSON body into dst.
func (c *Client) get(ctx context.Context, endpoint string, q url.Values, dst any) error {
	q.Set("api_key", c.apiKey)
	target := c.baseURL.ResolveReference(&url.URL{Path: endpoint, RawQuery: q.Encode()})
	op := strings.ToLower(endpoint)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", op, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("%s request: status %d: %s", op, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode %s response: %w", op, err)
	}
	return nil
}

func formatLatLng(at geo.Coordinate) string {
	return strconv.FormatFloat(at.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(at.Lng, 'f', -1, 64)
}
