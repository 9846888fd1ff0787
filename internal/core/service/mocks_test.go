package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"github.com/Neiland85/ochio-club-monorepo-sub001/internal/core/domain"
)

// Mock CacheRepository
type mockCacheRepo struct {
	mu             sync.Mutex
	stock          map[string]int
	idempotencySet map[string]bool
	values         map[string][]byte
	failReads      bool
}

func newMockCacheRepo(stock map[string]int) *mockCacheRepo {
	if stock == nil {
		stock = map[string]int{}
	}
	return &mockCacheRepo{
		stock:          stock,
		idempotencySet: make(map[string]bool),
		values:         make(map[string][]byte),
	}
}

func (m *mockCacheRepo) ReserveStock(ctx context.Context, quantities map[string]int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, q := range quantities {
		if m.stock[id] < q {
			return false, nil
		}
	}
	for id, q := range quantities {
		m.stock[id] -= q
	}
	return true, nil
}

func (m *mockCacheRepo) ReleaseStock(ctx context.Context, quantities map[string]int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, q := range quantities {
		m.stock[id] += q
	}
	return nil
}

func (m *mockCacheRepo) SetStock(ctx context.Context, productID string, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stock[productID] = quantity
	return nil
}

func (m *mockCacheRepo) stockOf(productID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stock[productID]
}

func (m *mockCacheRepo) SetIdempotency(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.idempotencySet[key] {
		return false, nil
	}
	m.idempotencySet[key] = true
	return true, nil
}

func (m *mockCacheRepo) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failReads {
		return false, errors.New("connection refused")
	}
	data, ok := m.values[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(data, dst)
}

func (m *mockCacheRepo) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = data
	return nil
}

func (m *mockCacheRepo) Delete(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

func (m *mockCacheRepo) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.values[key]
	return ok
}

// Mock ProductRepository
type mockProductRepo struct {
	mu       sync.Mutex
	products map[string]domain.Product
	lists    int
}

func newMockProductRepo(products ...domain.Product) *mockProductRepo {
	m := &mockProductRepo{products: make(map[string]domain.Product)}
	for _, p := range products {
		m.products[p.ID] = p
	}
	return m
}

func (m *mockProductRepo) CreateProduct(ctx context.Context, p domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.products {
		if existing.SKU == p.SKU {
			return domain.ErrConflict
		}
	}
	m.products[p.ID] = p
	return nil
}

func (m *mockProductRepo) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

func (m *mockProductRepo) ListProducts(ctx context.Context, activeOnly bool) ([]domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists++

	var out []domain.Product
	for _, p := range m.products {
		if activeOnly && !p.Active {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *mockProductRepo) UpdateProduct(ctx context.Context, p domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.products[p.ID]
	if !ok {
		return domain.ErrNotFound
	}
	p.Stock = existing.Stock
	p.Version = existing.Version
	p.CreatedAt = existing.CreatedAt
	m.products[p.ID] = p
	return nil
}

func (m *mockProductRepo) DeleteProduct(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.products, id)
	return nil
}

func (m *mockProductRepo) UpdateStock(ctx context.Context, id string, stock, version int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok || p.Version != version {
		return domain.ErrOptimisticLock
	}
	p.Stock = stock
	p.Version++
	m.products[id] = p
	return nil
}

// Mock OrderRepository
type mockOrderRepo struct {
	mu      sync.Mutex
	orders  map[string]domain.Order
	failErr error
}

func newMockOrderRepo(orders ...domain.Order) *mockOrderRepo {
	m := &mockOrderRepo{orders: make(map[string]domain.Order)}
	for _, o := range orders {
		m.orders[o.ID] = o
	}
	return m
}

func (m *mockOrderRepo) CreateOrder(ctx context.Context, order domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	m.orders[order.ID] = order
	return nil
}

func (m *mockOrderRepo) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &o, nil
}

func (m *mockOrderRepo) ListOrdersByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Order
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *mockOrderRepo) ListOrders(ctx context.Context, status domain.OrderStatus, limit int) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Order
	for _, o := range m.orders {
		if status == "" || o.Status == status {
			out = append(out, o)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *mockOrderRepo) UpdateOrderStatus(ctx context.Context, id string, from, to domain.OrderStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.Status != from {
		return domain.ErrOptimisticLock
	}
	o.Status = to
	m.orders[id] = o
	return nil
}

func (m *mockOrderRepo) CancelOrder(ctx context.Context, id string, from, to domain.OrderStatus) error {
	return m.UpdateOrderStatus(ctx, id, from, to)
}

func (m *mockOrderRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

// Mock Broadcaster
type sentMessage struct {
	Room    string
	Type    string
	Data    any
	Exclude uint64
}

type mockBroadcaster struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (m *mockBroadcaster) BroadcastToRoom(room, msgType string, data any, excludeClientID uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMessage{Room: room, Type: msgType, Data: data, Exclude: excludeClientID})
}

func (m *mockBroadcaster) SendToUser(userID, msgType string, data any) {
	m.BroadcastToRoom(domain.UserRoom(userID), msgType, data, 0)
}

func (m *mockBroadcaster) messages() []sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMessage(nil), m.sent...)
}

// Mock UserRepository
type mockUserRepo struct {
	mu    sync.Mutex
	users map[string]domain.User
}

func newMockUserRepo(users ...domain.User) *mockUserRepo {
	m := &mockUserRepo{users: make(map[string]domain.User)}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *mockUserRepo) CreateUser(ctx context.Context, u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.AuthID == u.AuthID || (u.Email != "" && existing.Email == u.Email) {
			return domain.ErrConflict
		}
	}
	m.users[u.ID] = u
	return nil
}

func (m *mockUserRepo) GetUser(ctx context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &u, nil
}

func (m *mockUserRepo) GetUserByAuthID(ctx context.Context, authID string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.AuthID == authID {
			return &u, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockUserRepo) ListUsers(ctx context.Context, limit, offset int) ([]domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.User
	for _, u := range m.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockUserRepo) UpdateUser(ctx context.Context, u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; !ok {
		return domain.ErrNotFound
	}
	m.users[u.ID] = u
	return nil
}

func (m *mockUserRepo) DeleteUser(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.users, id)
	return nil
}

// Mock VenueRepository
type mockVenueRepo struct {
	mu        sync.Mutex
	stadiums  map[string]domain.Stadium
	events    map[string]domain.Event
	gets      int
	lastAfter time.Time
}

func newMockVenueRepo() *mockVenueRepo {
	return &mockVenueRepo{
		stadiums: make(map[string]domain.Stadium),
		events:   make(map[string]domain.Event),
	}
}

func (m *mockVenueRepo) CreateStadium(ctx context.Context, s domain.Stadium) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stadiums[s.ID] = s
	return nil
}

func (m *mockVenueRepo) GetStadium(ctx context.Context, id string) (*domain.Stadium, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	s, ok := m.stadiums[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &s, nil
}

func (m *mockVenueRepo) ListStadiums(ctx context.Context) ([]domain.Stadium, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Stadium
	for _, s := range m.stadiums {
		out = append(out, s)
	}
	return out, nil
}

func (m *mockVenueRepo) UpdateStadium(ctx context.Context, s domain.Stadium) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.stadiums[s.ID]; !ok {
		return domain.ErrNotFound
	}
	m.stadiums[s.ID] = s
	return nil
}

func (m *mockVenueRepo) DeleteStadium(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.stadiums[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.stadiums, id)
	return nil
}

func (m *mockVenueRepo) CreateEvent(ctx context.Context, e domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[e.ID] = e
	return nil
}

func (m *mockVenueRepo) GetEvent(ctx context.Context, id string) (*domain.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &e, nil
}

func (m *mockVenueRepo) ListEvents(ctx context.Context, stadiumID string, after time.Time) ([]domain.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastAfter = after
	var out []domain.Event
	for _, e := range m.events {
		if stadiumID != "" && e.StadiumID != stadiumID {
			continue
		}
		if !after.IsZero() && e.EndsAt.Before(after) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (m *mockVenueRepo) UpdateEvent(ctx context.Context, e domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[e.ID]; !ok {
		return domain.ErrNotFound
	}
	m.events[e.ID] = e
	return nil
}

func (m *mockVenueRepo) DeleteEvent(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.events, id)
	return nil
}

// Mock PushRepository
type mockPushRepo struct {
	mu   sync.Mutex
	subs map[string]domain.PushSubscription // by endpoint
}

func newMockPushRepo() *mockPushRepo {
	return &mockPushRepo{subs: make(map[string]domain.PushSubscription)}
}

func (m *mockPushRepo) UpsertSubscription(ctx context.Context, sub domain.PushSubscription) (*domain.PushSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.subs[sub.Endpoint]; ok {
		sub.ID = existing.ID
		sub.CreatedAt = existing.CreatedAt
	}
	m.subs[sub.Endpoint] = sub
	return &sub, nil
}

func (m *mockPushRepo) DeleteSubscription(ctx context.Context, userID, endpoint string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.subs[endpoint]
	if !ok || sub.UserID != userID {
		return domain.ErrNotFound
	}
	delete(m.subs, endpoint)
	return nil
}

func (m *mockPushRepo) ListSubscriptionsByUser(ctx context.Context, userID string) ([]domain.PushSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.PushSubscription
	for _, s := range m.subs {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockPushRepo) ListSubscriptions(ctx context.Context, limit, offset int) ([]domain.PushSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.PushSubscription
	for _, s := range m.subs {
		out = append(out, s)
	}
	return out, nil
}

// Mock LocationRepository
type mockLocationRepo struct {
	mu        sync.Mutex
	locations map[string]domain.UserLocation // by user
	checkIns  map[string]domain.CheckIn      // by user|event
}

func newMockLocationRepo() *mockLocationRepo {
	return &mockLocationRepo{
		locations: make(map[string]domain.UserLocation),
		checkIns:  make(map[string]domain.CheckIn),
	}
}

func (m *mockLocationRepo) UpsertLocation(ctx context.Context, loc domain.UserLocation) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	previous := m.locations[loc.UserID].StadiumID
	m.locations[loc.UserID] = loc
	return previous, nil
}

func (m *mockLocationRepo) ListLocations(ctx context.Context, stadiumID string, since time.Time) ([]domain.UserLocation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.UserLocation
	for _, l := range m.locations {
		if l.StadiumID == stadiumID && !l.UpdatedAt.Before(since) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *mockLocationRepo) DeleteStaleLocations(ctx context.Context, before time.Time) ([]domain.UserLocation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.UserLocation
	for id, l := range m.locations {
		if l.UpdatedAt.Before(before) {
			out = append(out, l)
			delete(m.locations, id)
		}
	}
	return out, nil
}

func (m *mockLocationRepo) CreateCheckIn(ctx context.Context, c domain.CheckIn) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := c.UserID + "|" + c.EventID
	if _, ok := m.checkIns[key]; ok {
		return false, nil
	}
	m.checkIns[key] = c
	return true, nil
}

func (m *mockLocationRepo) CountCheckIns(ctx context.Context, eventID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, c := range m.checkIns {
		if c.EventID == eventID {
			n++
		}
	}
	return n, nil
}

// Mock GeoRepository
type mockGeoRepo struct {
	mu       sync.Mutex
	fans     map[string]map[string]domain.UserLocation // stadium -> user
	counters map[string]int64
	ttls     map[string]time.Duration
}

func newMockGeoRepo() *mockGeoRepo {
	return &mockGeoRepo{
		fans:     make(map[string]map[string]domain.UserLocation),
		counters: make(map[string]int64),
		ttls:     make(map[string]time.Duration),
	}
}

func (m *mockGeoRepo) AddFanPosition(ctx context.Context, loc domain.UserLocation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fans[loc.StadiumID] == nil {
		m.fans[loc.StadiumID] = make(map[string]domain.UserLocation)
	}
	m.fans[loc.StadiumID][loc.UserID] = loc
	return nil
}

func (m *mockGeoRepo) RemoveFanPosition(ctx context.Context, stadiumID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.fans[stadiumID], userID)
	return nil
}

func (m *mockGeoRepo) NearbyFans(ctx context.Context, stadiumID string, lat, lng, radiusM float64, limit int) ([]domain.NearbyFan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.NearbyFan
	for _, l := range m.fans[stadiumID] {
		out = append(out, domain.NearbyFan{UserID: l.UserID, Latitude: l.Latitude, Longitude: l.Longitude})
	}
	return out, nil
}

func (m *mockGeoRepo) IncrementCheckIns(ctx context.Context, eventID string) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.counters[eventID]
	if !ok {
		return 0, false, nil
	}
	m.counters[eventID] = n + 1
	return n + 1, true, nil
}

func (m *mockGeoRepo) CheckInCount(ctx context.Context, eventID string) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.counters[eventID]
	return n, ok, nil
}

func (m *mockGeoRepo) SeedCheckInCount(ctx context.Context, eventID string, count int64, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ttls[eventID] = ttl
	if current, ok := m.counters[eventID]; ok && current >= count {
		return current, nil
	}
	m.counters[eventID] = count
	return count, nil
}

func (m *mockGeoRepo) inStadium(stadiumID, userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.fans[stadiumID][userID]
	return ok
}
