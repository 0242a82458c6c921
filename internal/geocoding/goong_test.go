package geocoding

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-parking-directory/internal/geo"
	"go-parking-directory/internal/model"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(srv.URL, "test-key", time.Second)
	require.NoError(t, err)
	return c
}

func TestClientGeocode(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Geocode", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("api_key"))
		assert.Equal(t, "135 Nam Ky Khoi Nghia", r.URL.Query().Get("address"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"OK","results":[{"formatted_address":"135 Nam Kỳ Khởi Nghĩa, Quận 1","place_id":"p-1","geometry":{"location":{"lat":10.7769,"lng":106.6953}}}]}`))
	})

	got, err := c.Geocode(context.Background(), " 135 Nam Ky Khoi Nghia ")
	require.NoError(t, err)
	assert.Equal(t, "p-1", got.PlaceID)
	assert.InDelta(t, 10.7769, got.Latitude, 1e-9)
	assert.InDelta(t, 106.6953, got.Longitude, 1e-9)
}

func TestClientReverseGeocode(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "10.5,106.25", r.URL.Query().Get("latlng"))
		_, _ = w.Write([]byte(`{"status":"OK","results":[{"formatted_address":"Long An"}]}`))
	})

	got, err := c.ReverseGeocode(context.Background(), geo.Coordinate{Lat: 10.5, Lng: 106.25})
	require.NoError(t, err)
	assert.Equal(t, "Long An", got.Address)
}

func TestClientFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{name: "no results", status: http.StatusOK, body: `{"status":"OK","results":[]}`, wantErr: model.ErrAddressNotFound},
		{name: "zero results status", status: http.StatusOK, body: `{"status":"ZERO_RESULTS","results":[{}]}`, wantErr: model.ErrAddressNotFound},
		{name: "rate limited", status: http.StatusTooManyRequests, wantErr: ErrRateLimited},
		{name: "server error", status: http.StatusBadGateway, body: "upstream down"},
		{name: "malformed body", status: http.StatusOK, body: "{"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})

			_, err := c.Geocode(context.Background(), "somewhere")
			require.Error(t, err)
			if tc.wantErr != nil {
				assert.True(t, errors.Is(err, tc.wantErr), "got %v", err)
			} else {
				assert.False(t, errors.Is(err, model.ErrAddressNotFound))
			}
		})
	}
}

func TestClientBlankAddress(t *testing.T) {
	t.Parallel()

	c, err := NewClient("http://127.0.0.1:1", "k", time.Second)
	require.NoError(t, err)

	_, err = c.Geocode(context.Background(), "   ")
	assert.ErrorIs(t, err, model.ErrAddressNotFound)
}

func TestClientDirections(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Direction", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "10.7725,106.698", q.Get("origin"))
		assert.Equal(t, "10.7769,106.7009", q.Get("destination"))
		assert.Equal(t, "car", q.Get("vehicle"))
		assert.Equal(t, "true", q.Get("alternatives"))
		assert.Equal(t, "test-key", q.Get("api_key"))

		_, _ = w.Write([]byte(`{"status":"OK","routes":[{
			"overview_polyline":{"points":"abc"},
			"legs":[{"distance":{"text":"1.2 km","value":1200},"duration":{"text":"4 mins","value":240},
				"steps":[
					{"html_instructions":"Head north on <b>Le Loi</b>","distance":{"value":700},"duration":{"value":150}},
					{"html_instructions":"Turn right","distance":{"value":500},"duration":{"value":90}}
				]}]
		}]}`))
	})

	got, err := c.Directions(context.Background(), geo.Coordinate{Lat: 10.7725, Lng: 106.698}, geo.Coordinate{Lat: 10.7769, Lng: 106.7009})
	require.NoError(t, err)
	require.Len(t, got.Routes, 1)

	route := got.Routes[0]
	assert.Equal(t, "abc", route.Polyline)
	assert.InDelta(t, 1200, route.DistanceMeters, 1e-9)
	assert.InDelta(t, 240, route.DurationSeconds, 1e-9)
	require.Len(t, route.Steps, 2)
	assert.Equal(t, "Turn right", route.Steps[1].Instruction)
	assert.InDelta(t, 90, route.Steps[1].DurationSeconds, 1e-9)
}

func TestClientDirectionsFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{name: "no routes", status: http.StatusOK, body: `{"status":"OK","routes":[]}`, wantErr: model.ErrRouteNotFound},
		{name: "zero results", status: http.StatusOK, body: `{"status":"ZERO_RESULTS","routes":[{}]}`, wantErr: model.ErrRouteNotFound},
		{name: "rate limited", status: http.StatusTooManyRequests, wantErr: ErrRateLimited},
		{name: "server error", status: http.StatusInternalServerError, body: "oops"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})

			_, err := c.Directions(context.Background(), geo.Coordinate{Lat: 1, Lng: 2}, geo.Coordinate{Lat: 3, Lng: 4})
			require.Error(t, err)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
			} else {
				assert.Contains(t, err.Error(), "status 500")
			}
		})
	}
}
