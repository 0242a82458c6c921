package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"go-parking-directory/internal/geo"
	"go-parking-directory/internal/model"
)

var errStorageDown = errors.New("storage unavailable")

type memLots struct {
	mu        sync.Mutex
	nextID    int64
	lots      map[int64]model.ParkingLot
	err       error
	boxCalls  int
	createErr error
}

func newMemLots(lots ...model.ParkingLot) *memLots {
	m := &memLots{lots: map[int64]model.ParkingLot{}}
	for _, l := range lots {
		m.nextID++
		if l.ID == 0 {
			l.ID = m.nextID
		}
		m.lots[l.ID] = l
	}
	return m
}

func (m *memLots) ListActiveInBox(_ context.Context, box geo.BoundingBox) ([]model.ParkingLot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.boxCalls++
	if m.err != nil {
		return nil, m.err
	}
	var out []model.ParkingLot
	for _, l := range m.lots {
		if l.Active && box.Contains(l.Location) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *memLots) Create(_ context.Context, lot model.ParkingLot) (model.ParkingLot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return model.ParkingLot{}, m.createErr
	}
	m.nextID++
	lot.ID = m.nextID
	m.lots[lot.ID] = lot
	return lot, nil
}

func (m *memLots) FindByID(_ context.Context, id int64) (model.ParkingLot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.lots[id]
	if !ok {
		return model.ParkingLot{}, model.ErrLotNotFound
	}
	return l, nil
}

func (m *memLots) ListActive(_ context.Context) ([]model.ParkingLot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := []model.ParkingLot{}
	for _, l := range m.lots {
		if l.Active {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *memLots) Update(_ context.Context, lot model.ParkingLot) (model.ParkingLot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.lots[lot.ID]
	if !ok {
		return model.ParkingLot{}, model.ErrLotNotFound
	}
	cur.Name, cur.Address, cur.Location = lot.Name, lot.Address, lot.Location
	cur.Capacity, cur.AvailableSpots, cur.Description = lot.Capacity, lot.AvailableSpots, lot.Description
	cur.Active, cur.UpdatedAt, cur.UpdatedBy = lot.Active, lot.UpdatedAt, lot.UpdatedBy
	m.lots[lot.ID] = cur
	return cur, nil
}

func (m *memLots) Deactivate(_ context.Context, id int64, updatedBy string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.lots[id]
	if !ok {
		return model.ErrLotNotFound
	}
	cur.Active = false
	cur.UpdatedBy = updatedBy
	cur.UpdatedAt = &at
	m.lots[id] = cur
	return nil
}

// memUsers is a UserStore, PasswordHasher and CredentialStore in one. Writes
// that end sessions revoke them in sessions, and writeErr fails such a write
// before anything is applied, as a rolled back transaction would.
type memUsers struct {
	mu          sync.Mutex
	users       map[string]model.User
	roles       map[string]bool
	sessions    *memTokens
	err         error
	createErr   error
	writeErr    error
	verifyCalls int
	setCalls    int
}

func newMemUsers(users ...model.User) *memUsers {
	m := &memUsers{users: map[string]model.User{}, roles: map[string]bool{}}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *memUsers) Hash(password string) (string, error) {
	return "hashed:" + password, nil
}

func (m *memUsers) Verify(_ context.Context, userID string, password string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verifyCalls++
	if m.err != nil {
		return false, m.err
	}
	u, ok := m.users[userID]
	return ok && u.PasswordHash == "hashed:"+password, nil
}

func (m *memUsers) SetPassword(_ context.Context, userID string, newPassword string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setCalls++
	if m.writeErr != nil {
		return false, m.writeErr
	}
	u, ok := m.users[userID]
	if !ok {
		return false, nil
	}
	u.PasswordHash = "hashed:" + newPassword
	u.UpdatedAt = &at
	m.users[userID] = u
	m.endSessions(userID, at)
	return true, nil
}

func (m *memUsers) FindByID(_ context.Context, id string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return model.User{}, m.err
	}
	u, ok := m.users[id]
	if !ok {
		return model.User{}, model.ErrUserNotFound
	}
	return u, nil
}

func (m *memUsers) FindByEmail(_ context.Context, email string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return model.User{}, m.err
	}
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return model.User{}, model.ErrUserNotFound
}

func (m *memUsers) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := m.FindByEmail(ctx, email)
	if errors.Is(err, model.ErrUserNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (m *memUsers) CreateWithRoles(_ context.Context, u model.User, roles []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	for _, existing := range m.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return model.ErrUserAlreadyExists
		}
	}
	u.Roles = append([]string(nil), roles...)
	for _, r := range roles {
		m.roles[r] = true
	}
	m.users[u.ID] = u
	return nil
}

func (m *memUsers) EnsureRole(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roles[name] = true
	return nil
}

func (m *memUsers) AssignRole(_ context.Context, userID string, role string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return model.ErrUserNotFound
	}
	if !u.HasRole(role) {
		u.Roles = append(u.Roles, role)
	}
	m.roles[role] = true
	m.users[userID] = u
	return nil
}

func (m *memUsers) UpdateProfile(_ context.Context, u model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; !ok {
		return model.ErrUserNotFound
	}
	m.users[u.ID] = u
	return nil
}

func (m *memUsers) ToggleActive(_ context.Context, id string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return false, m.writeErr
	}
	u, ok := m.users[id]
	if !ok {
		return false, model.ErrUserNotFound
	}
	u.Active = !u.Active
	u.UpdatedAt = &at
	m.users[id] = u
	if !u.Active {
		m.endSessions(id, at)
	}
	return u.Active, nil
}

func (m *memUsers) endSessions(userID string, at time.Time) {
	if m.sessions != nil {
		m.sessions.revokeUser(userID, at)
	}
}

// memTokens applies the same compare-and-set as the SQL store under a mutex.
type memTokens struct {
	mu        sync.Mutex
	nextID    int64
	tokens    map[string]model.RefreshToken
	rotateErr error
	cleanErrs int
}

func newMemTokens() *memTokens {
	return &memTokens{tokens: map[string]model.RefreshToken{}}
}

func (m *memTokens) Create(_ context.Context, t model.RefreshToken) (model.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	t.ID = m.nextID
	m.tokens[t.Token] = t
	return t, nil
}

func (m *memTokens) FindByToken(_ context.Context, token string) (model.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[token]
	if !ok {
		return model.RefreshToken{}, model.ErrTokenNotFound
	}
	return t, nil
}

func (m *memTokens) Rotate(_ context.Context, oldToken string, next model.RefreshToken, now time.Time) (model.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rotateErr != nil {
		return model.RefreshToken{}, m.rotateErr
	}
	old, ok := m.tokens[oldToken]
	if !ok || !old.Usable(now) {
		return model.RefreshToken{}, model.ErrTokenNotFound
	}
	old.RevokedAt = &now
	m.tokens[oldToken] = old
	m.nextID++
	next.ID = m.nextID
	m.tokens[next.Token] = next
	return next, nil
}

func (m *memTokens) RevokeActive(_ context.Context, token string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[token]
	if !ok || !t.Usable(now) {
		return false, nil
	}
	t.RevokedAt = &now
	m.tokens[token] = t
	return true, nil
}

func (m *memTokens) revokeUser(userID string, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, t := range m.tokens {
		if t.UserID == userID && t.Usable(now) {
			t.RevokedAt = &now
			m.tokens[k] = t
		}
	}
}

func (m *memTokens) CleanExpired(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cleanErrs > 0 {
		m.cleanErrs--
		return 0, errStorageDown
	}
	var n int64
	for k, t := range m.tokens {
		if !t.ExpiresAt.After(cutoff) {
			delete(m.tokens, k)
			n++
		}
	}
	return n, nil
}

func (m *memTokens) active(userID string, now time.Time) []model.RefreshToken {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.RefreshToken
	for _, t := range m.tokens {
		if t.UserID == userID && t.Usable(now) {
			out = append(out, t)
		}
	}
	return out
}

type mockGeocoder struct {
	mock.Mock
}

func (m *mockGeocoder) Geocode(ctx context.Context, address string) (model.GeocodeResult, error) {
	args := m.Called(ctx, address)
	return args.Get(0).(model.GeocodeResult), args.Error(1)
}

func (m *mockGeocoder) ReverseGeocode(ctx context.Context, at geo.Coordinate) (model.GeocodeResult, error) {
	args := m.Called(ctx, at)
	return args.Get(0).(model.GeocodeResult), args.Error(1)
}
