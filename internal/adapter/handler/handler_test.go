package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Neiland85/ochio-club-monorepo-sub001/internal/core/domain"
	"github.com/Neiland85/ochio-club-monorepo-sub001/internal/core/service"
)

const testSecret = "super-secret-jwt-token-with-at-least-32-characters"

// fakeUsers provisions users keyed by token subject.
type fakeUsers struct {
	UserService
	users map[string]domain.User
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{users: map[string]domain.User{}}
}

func (f *fakeUsers) EnsureUser(ctx context.Context, id service.Identity) (*domain.User, error) {
	if u, ok := f.users[id.Subject]; ok {
		return &u, nil
	}
	role := id.Role
	if !role.Valid() {
		role = domain.RoleFan
	}
	u := domain.User{ID: "user-" + id.Subject, AuthID: id.Subject, Email: id.Email, Role: role}
	f.users[id.Subject] = u
	return &u, nil
}

func (f *fakeUsers) UpdateDisplayName(ctx context.Context, id, displayName string) (*domain.User, error) {
	return &domain.User{ID: id, DisplayName: displayName}, nil
}

type fakeOrders struct {
	OrderService
	placed []service.PlaceOrderRequest
	err    error
}

func (f *fakeOrders) PlaceOrder(ctx context.Context, req service.PlaceOrderRequest) (*domain.Order, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.placed = append(f.placed, req)
	return &domain.Order{ID: "o1", UserID: req.UserID, Status: domain.OrderStatusPending, Items: req.Items}, nil
}

func (f *fakeOrders) ListAllOrders(ctx context.Context, requester domain.User, status domain.OrderStatus, limit int) ([]domain.Order, error) {
	return []domain.Order{{ID: "o1", Status: status}}, nil
}

type fakeCatalog struct {
	CatalogService
	activeOnly []bool
	created    []domain.Product
}

func (f *fakeCatalog) ListProducts(ctx context.Context, activeOnly bool) ([]domain.Product, error) {
	f.activeOnly = append(f.activeOnly, activeOnly)
	return []domain.Product{{ID: "p1", Name: "Ochío", Active: true}}, nil
}

func (f *fakeCatalog) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	return nil, fmt.Errorf("get product %s: %w", id, domain.ErrNotFound)
}

func (f *fakeCatalog) CreateProduct(ctx context.Context, p domain.Product) (*domain.Product, error) {
	p.ID = "p2"
	f.created = append(f.created, p)
	return &p, nil
}

type fakeLocations struct {
	LocationService
	nearby  [3]float64
	created bool
}

func (f *fakeLocations) NearbyFans(ctx context.Context, stadiumID string, lat, lng, radiusM float64) ([]domain.NearbyFan, error) {
	f.nearby = [3]float64{lat, lng, radiusM}
	return []domain.NearbyFan{{UserID: "u2", DistanceM: 12}}, nil
}

func (f *fakeLocations) CheckIn(ctx context.Context, userID, eventID string) (*domain.CheckInNotice, bool, error) {
	return &domain.CheckInNotice{EventID: eventID, Count: 7}, f.created, nil
}

func (f *fakeLocations) CheckInCount(ctx context.Context, eventID string) (int64, error) {
	if eventID != "e1" {
		return 0, fmt.Errorf("get event %s: %w", eventID, domain.ErrNotFound)
	}
	return 7, nil
}

type fakeSocket struct {
	user domain.User
}

func (f *fakeSocket) Handle(w http.ResponseWriter, r *http.Request, user domain.User) {
	f.user = user
	w.WriteHeader(http.StatusNoContent)
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

type testEnv struct {
	server    *httptest.Server
	users     *fakeUsers
	orders    *fakeOrders
	catalog   *fakeCatalog
	locations *fakeLocations
	socket    *fakeSocket
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		users:     newFakeUsers(),
		orders:    &fakeOrders{},
		catalog:   &fakeCatalog{},
		locations: &fakeLocations{},
		socket:    &fakeSocket{},
	}
	h := NewHTTPHandler(Dependencies{
		Catalog:   env.catalog,
		Orders:    env.orders,
		Users:     env.users,
		Locations: env.locations,
		Socket:    env.socket,
		Auth:      NewAuthenticator(testSecret, "authenticated", env.users),
		Health:    NewHealthHandler(map[string]Pinger{"postgres": stubPinger{}, "redis": stubPinger{}}),
	})
	env.server = httptest.NewServer(h.Routes(MiddlewareConfig{RateLimitDisabled: true}))
	t.Cleanup(env.server.Close)
	return env
}

func signToken(t *testing.T, subject, role, audience string, ttl time.Duration) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":          subject,
		"email":        subject + "@ochio.club",
		"aud":          audience,
		"exp":          time.Now().Add(ttl).Unix(),
		"app_metadata": map[string]any{"role": role},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func (env *testEnv) do(t *testing.T, method, path, token string, body any) (*http.Response, Response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, env.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out Response
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestAuth_RejectsMissingAndInvalidTokens(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name  string
		token string
	}{
		{"missing", ""},
		{"garbage", "not-a-jwt"},
		{"wrong audience", signToken(t, "a1", "fan", "anon", time.Hour)},
		{"expired", signToken(t, "a1", "fan", "authenticated", -time.Minute)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := env.do(t, http.MethodGet, "/api/v1/users/me", tt.token, nil)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			assert.False(t, body.Success)
		})
	}
}

func TestAuth_RejectsOtherSigningMethods(t *testing.T) {
	env := newTestEnv(t)

	claims := jwt.MapClaims{"sub": "a1", "aud": "authenticated", "exp": time.Now().Add(time.Hour).Unix()}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	resp, _ := env.do(t, http.MethodGet, "/api/v1/users/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAuth_ProvisionsUserFromClaims(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodGet, "/api/v1/users/me", signToken(t, "a1", "vendor", "authenticated", time.Hour), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, body.Success)

	u := env.users.users["a1"]
	assert.Equal(t, domain.RoleVendor, u.Role)
	assert.Equal(t, "a1@ochio.club", u.Email)
}

func TestAuth_TokenFromQuery(t *testing.T) {
	env := newTestEnv(t)
	token := signToken(t, "a1", "fan", "authenticated", time.Hour)

	resp, err := http.Get(env.server.URL + "/api/v1/ws?token=" + token)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "user-a1", env.socket.user.ID)

	// REST routes only take the Authorization header
	resp, err = http.Get(env.server.URL + "/api/v1/users/me?token=" + token)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRoles_AdminRoutes(t *testing.T) {
	env := newTestEnv(t)
	product := map[string]any{"sku": "OCH-1", "name": "Ochío", "priceCents": 250, "stock": 10}

	resp, _ := env.do(t, http.MethodPost, "/api/v1/products", signToken(t, "fan", "fan", "authenticated", time.Hour), product)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body := env.do(t, http.MethodPost, "/api/v1/products", signToken(t, "boss", "admin", "authenticated", time.Hour), product)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.True(t, body.Success)
	require.Len(t, env.catalog.created, 1)
	assert.True(t, env.catalog.created[0].Active, "products default to active")
}

func TestRoles_StaffRoutes(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(t, http.MethodGet, "/api/v1/admin/orders", signToken(t, "fan", "fan", "authenticated", time.Hour), nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/api/v1/admin/orders?status=pending", signToken(t, "v", "vendor", "authenticated", time.Hour), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestProducts_PublicListIsActiveOnly(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodGet, "/api/v1/products", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, body.Success)
	assert.Equal(t, []bool{true}, env.catalog.activeOnly)

	resp, body = env.do(t, http.MethodGet, "/api/v1/products/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not found", body.Message)
}

func TestPlaceOrder(t *testing.T) {
	token := signToken(t, "a1", "fan", "authenticated", time.Hour)
	valid := map[string]any{
		"requestId": "req-1",
		"items":     []map[string]any{{"productId": "p1", "quantity": 2}},
	}

	t.Run("accepted", func(t *testing.T) {
		env := newTestEnv(t)
		resp, body := env.do(t, http.MethodPost, "/api/v1/orders", token, valid)
		require.Equal(t, http.StatusAccepted, resp.StatusCode)
		assert.True(t, body.Success)
		require.Len(t, env.orders.placed, 1)
		assert.Equal(t, "user-a1", env.orders.placed[0].UserID)
		assert.Equal(t, "req-1", env.orders.placed[0].RequestID)
	})

	t.Run("missing request id", func(t *testing.T) {
		env := newTestEnv(t)
		resp, _ := env.do(t, http.MethodPost, "/api/v1/orders", token, map[string]any{
			"items": []map[string]any{{"productId": "p1", "quantity": 1}},
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("zero quantity", func(t *testing.T) {
		env := newTestEnv(t)
		resp, body := env.do(t, http.MethodPost, "/api/v1/orders", token, map[string]any{
			"requestId": "req-2",
			"items":     []map[string]any{{"productId": "p1", "quantity": 0}},
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Contains(t, body.Message, "quantity")
	})

	for _, tt := range []struct {
		err    error
		status int
	}{
		{service.ErrInsufficientStock, http.StatusGone},
		{service.ErrDuplicateRequest, http.StatusConflict},
		{service.ErrQueueClosed, http.StatusServiceUnavailable},
	} {
		t.Run(tt.err.Error(), func(t *testing.T) {
			env := newTestEnv(t)
			env.orders.err = tt.err
			resp, body := env.do(t, http.MethodPost, "/api/v1/orders", token, valid)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.False(t, body.Success)
		})
	}
}

func TestNearbyFans(t *testing.T) {
	env := newTestEnv(t)
	token := signToken(t, "a1", "fan", "authenticated", time.Hour)

	resp, _ := env.do(t, http.MethodGet, "/api/v1/stadiums/s1/fans/nearby?lat=abc&lng=1&radius=10", token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body := env.do(t, http.MethodGet, "/api/v1/stadiums/s1/fans/nearby?lat=37.15&lng=-3.6&radius=250", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, body.Success)
	assert.Equal(t, [3]float64{37.15, -3.6, 250}, env.locations.nearby)
}

func TestCheckIn_StatusReflectsCreation(t *testing.T) {
	env := newTestEnv(t)
	token := signToken(t, "a1", "fan", "authenticated", time.Hour)

	env.locations.created = true
	resp, _ := env.do(t, http.MethodPost, "/api/v1/events/e1/checkins", token, nil)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	env.locations.created = false
	resp, _ = env.do(t, http.MethodPost, "/api/v1/events/e1/checkins", token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCheckInCount_UnknownEvent(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodGet, "/api/v1/events/e1/checkins/count", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, body.Success)

	resp, body = env.do(t, http.MethodGet, "/api/v1/events/no-such-event/checkins/count", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.False(t, body.Success)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.server.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	failing := NewHealthHandler(map[string]Pinger{"redis": stubPinger{err: errors.New("connection refused")}})
	rec := httptest.NewRecorder()
	failing.Ready(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("%w: bad", service.ErrInvalidInput), http.StatusBadRequest},
		{service.ErrForbidden, http.StatusForbidden},
		{fmt.Errorf("get order: %w", domain.ErrNotFound), http.StatusNotFound},
		{domain.ErrOptimisticLock, http.StatusConflict},
		{domain.ErrConflict, http.StatusConflict},
		{domain.ErrReferenced, http.StatusConflict},
		{fmt.Errorf("%w: delivered -> pending", service.ErrInvalidTransition), http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		status, _ := classify(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
	}
}

func TestBearerToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := bearerToken(r)
	assert.ErrorIs(t, err, errMissingToken)

	r.Header.Set("Authorization", "Basic abc")
	_, err = bearerToken(r)
	assert.Error(t, err)

	r.Header.Set("Authorization", "bearer abc")
	token, err := bearerToken(r)
	require.NoError(t, err)
	assert.Equal(t, "abc", token)

	q := httptest.NewRequest(http.MethodGet, "/api/v1/ws?token=xyz", nil)
	_, err = bearerToken(q)
	assert.ErrorIs(t, err, errMissingToken)
	token, err = socketToken(q)
	require.NoError(t, err)
	assert.Equal(t, "xyz", token)
}
