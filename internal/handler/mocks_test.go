package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"go-parking-directory/internal/geo"
	"go-parking-directory/internal/middleware"
	"go-parking-directory/internal/model"
)

type mockLots struct{ mock.Mock }

func (m *mockLots) Nearby(ctx context.Context, lat float64, lng float64, radiusKm float64) ([]model.ParkingLot, error) {
	args := m.Called(ctx, lat, lng, radiusKm)
	lots, _ := args.Get(0).([]model.ParkingLot)
	return lots, args.Error(1)
}

func (m *mockLots) ListActive(ctx context.Context) ([]model.ParkingLot, error) {
	args := m.Called(ctx)
	lots, _ := args.Get(0).([]model.ParkingLot)
	return lots, args.Error(1)
}

func (m *mockLots) GetByID(ctx context.Context, id int64) (model.ParkingLot, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.ParkingLot), args.Error(1)
}

func (m *mockLots) Create(ctx context.Context, actorID string, req model.CreateParkingLotRequest) (model.ParkingLot, error) {
	args := m.Called(ctx, actorID, req)
	return args.Get(0).(model.ParkingLot), args.Error(1)
}

func (m *mockLots) Update(ctx context.Context, actorID string, id int64, req model.UpdateParkingLotRequest) (model.ParkingLot, error) {
	args := m.Called(ctx, actorID, id, req)
	return args.Get(0).(model.ParkingLot), args.Error(1)
}

func (m *mockLots) Deactivate(ctx context.Context, actorID string, id int64) error {
	return m.Called(ctx, actorID, id).Error(0)
}

type mockAuth struct{ mock.Mock }

func (m *mockAuth) Login(ctx context.Context, email string, password string) (model.TokenPair, error) {
	args := m.Called(ctx, email, password)
	return args.Get(0).(model.TokenPair), args.Error(1)
}

func (m *mockAuth) Refresh(ctx context.Context, refreshToken string) (model.TokenPair, error) {
	args := m.Called(ctx, refreshToken)
	return args.Get(0).(model.TokenPair), args.Error(1)
}

func (m *mockAuth) Revoke(ctx context.Context, refreshToken string) (bool, error) {
	args := m.Called(ctx, refreshToken)
	return args.Bool(0), args.Error(1)
}

func (m *mockAuth) Register(ctx context.Context, req model.RegisterRequest, caller *model.AuthClaims) (model.UserProfile, error) {
	args := m.Called(ctx, req, caller)
	return args.Get(0).(model.UserProfile), args.Error(1)
}

func (m *mockAuth) GetUser(ctx context.Context, userID string) (model.UserProfile, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(model.UserProfile), args.Error(1)
}

func (m *mockAuth) UpdateProfile(ctx context.Context, userID string, req model.UpdateProfileRequest) (model.UserProfile, error) {
	args := m.Called(ctx, userID, req)
	return args.Get(0).(model.UserProfile), args.Error(1)
}

func (m *mockAuth) ChangePassword(ctx context.Context, userID string, req model.ChangePasswordRequest) error {
	return m.Called(ctx, userID, req).Error(0)
}

func (m *mockAuth) ToggleUserStatus(ctx context.Context, caller *model.AuthClaims, userID string) (bool, error) {
	args := m.Called(ctx, caller, userID)
	return args.Bool(0), args.Error(1)
}

type mockGeocoder struct{ mock.Mock }

func (m *mockGeocoder) Geocode(ctx context.Context, address string) (model.GeocodeResult, error) {
	args := m.Called(ctx, address)
	return args.Get(0).(model.GeocodeResult), args.Error(1)
}

func (m *mockGeocoder) ReverseGeocode(ctx context.Context, at geo.Coordinate) (model.GeocodeResult, error) {
	args := m.Called(ctx, at)
	return args.Get(0).(model.GeocodeResult), args.Error(1)
}

// envelope mirrors model.APIResponse with a raw data field for per-test decoding.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *model.APIError `json:"error"`
	Meta    *model.Meta     `json:"meta"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func withCaller(r *http.Request, claims *model.AuthClaims) *http.Request {
	return r.WithContext(middleware.WithClaims(r.Context(), claims))
}

type mockPlanner struct{ mock.Mock }

func (m *mockPlanner) Directions(ctx context.Context, from geo.Coordinate, to geo.Coordinate) (model.Directions, error) {
	args := m.Called(ctx, from, to)
	return args.Get(0).(model.Directions), args.Error(1)
}
