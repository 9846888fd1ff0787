package port

import (
	"context"
	"time"

	"github.com/Neiland85/ochio-club-monorepo-sub001/internal/core/domain"
)

type OrderRepository interface {
	// CreateOrder persists a new order and its items, decrementing product stock
	CreateOrder(ctx context.Context, order domain.Order) error

	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	ListOrdersByUser(ctx context.Context, userID string) ([]domain.Order, error)
	ListOrders(ctx context.Context, status domain.OrderStatus, limit int) ([]domain.Order, error)

	// UpdateOrderStatus moves an order from one status to another, failing if it changed meanwhile
	UpdateOrderStatus(ctx context.Context, id string, from, to domain.OrderStatus) error

	// CancelOrder moves the order to to (cancelled or rejected) and returns its stock in one transaction
	CancelOrder(ctx context.Context, id string, from, to domain.OrderStatus) error
}

type ProductRepository interface {
	CreateProduct(ctx context.Context, p domain.Product) error
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	ListProducts(ctx context.Context, activeOnly bool) ([]domain.Product, error)
	UpdateProduct(ctx context.Context, p domain.Product) error
	DeleteProduct(ctx context.Context, id string) error

	// UpdateStock updates stock with version check for optimistic locking
	UpdateStock(ctx context.Context, id string, stock, version int) error
}

type UserRepository interface {
	CreateUser(ctx context.Context, u domain.User) error
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetUserByAuthID(ctx context.Context, authID string) (*domain.User, error)
	ListUsers(ctx context.Context, limit, offset int) ([]domain.User, error)
	UpdateUser(ctx context.Context, u domain.User) error
	DeleteUser(ctx context.Context, id string) error
}

type VenueRepository interface {
	CreateStadium(ctx context.Context, s domain.Stadium) error
	GetStadium(ctx context.Context, id string) (*domain.Stadium, error)
	ListStadiums(ctx context.Context) ([]domain.Stadium, error)
	UpdateStadium(ctx context.Context, s domain.Stadium) error
	DeleteStadium(ctx context.Context, id string) error

	CreateEvent(ctx context.Context, e domain.Event) error
	GetEvent(ctx context.Context, id string) (*domain.Event, error)
	// ListEvents filters by stadium when stadiumID is set and by end time when after is non-zero
	ListEvents(ctx context.Context, stadiumID string, after time.Time) ([]domain.Event, error)
	UpdateEvent(ctx context.Context, e domain.Event) error
	DeleteEvent(ctx context.Context, id string) error
}

type PushRepository interface {
	// UpsertSubscription inserts or re-owns a subscription keyed by endpoint
	UpsertSubscription(ctx context.Context, sub domain.PushSubscription) (*domain.PushSubscription, error)
	DeleteSubscription(ctx context.Context, userID, endpoint string) error
	ListSubscriptionsByUser(ctx context.Context, userID string) ([]domain.PushSubscription, error)
	ListSubscriptions(ctx context.Context, limit, offset int) ([]domain.PushSubscription, error)
}

type LocationRepository interface {
	// UpsertLocation returns the stadium of the replaced location, "" if none
	UpsertLocation(ctx context.Context, loc domain.UserLocation) (previousStadiumID string, err error)
	ListLocations(ctx context.Context, stadiumID string, since time.Time) ([]domain.UserLocation, error)

	// DeleteStaleLocations removes locations older than before and returns them
	DeleteStaleLocations(ctx context.Context, before time.Time) ([]domain.UserLocation, error)

	// CreateCheckIn returns created=false when the user already checked in to the event
	CreateCheckIn(ctx context.Context, c domain.CheckIn) (created bool, err error)
	CountCheckIns(ctx context.Context, eventID string) (int64, error)
}
