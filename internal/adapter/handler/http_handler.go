package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Neiland85/ochio-club-monorepo-sub001/internal/core/domain"
	"github.com/Neiland85/ochio-club-monorepo-sub001/internal/core/service"
)

type CatalogService interface {
	ListProducts(ctx context.Context, activeOnly bool) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	CreateProduct(ctx context.Context, p domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, p domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error
	RestockProduct(ctx context.Context, id string, stock, version int) (*domain.Product, error)
}

type OrderService interface {
	PlaceOrder(ctx context.Context, req service.PlaceOrderRequest) (*domain.Order, error)
	GetOrder(ctx context.Context, requester domain.User, id string) (*domain.Order, error)
	ListOrders(ctx context.Context, userID string) ([]domain.Order, error)
	ListAllOrders(ctx context.Context, requester domain.User, status domain.OrderStatus, limit int) ([]domain.Order, error)
	UpdateOrderStatus(ctx context.Context, requester domain.User, id string, to domain.OrderStatus) (*domain.Order, error)
	CancelOrder(ctx context.Context, requester domain.User, id string) (*domain.Order, error)
}

type VenueService interface {
	CreateStadium(ctx context.Context, st domain.Stadium) (*domain.Stadium, error)
	GetStadium(ctx context.Context, id string) (*domain.Stadium, error)
	ListStadiums(ctx context.Context) ([]domain.Stadium, error)
	UpdateStadium(ctx context.Context, st domain.Stadium) (*domain.Stadium, error)
	DeleteStadium(ctx context.Context, id string) error
	CreateEvent(ctx context.Context, e domain.Event) (*domain.Event, error)
	GetEvent(ctx context.Context, id string) (*domain.Event, error)
	ListEvents(ctx context.Context, stadiumID string, upcomingOnly bool) ([]domain.Event, error)
	UpdateEvent(ctx context.Context, e domain.Event) (*domain.Event, error)
	DeleteEvent(ctx context.Context, id string) error
}

type UserService interface {
	EnsureUser(ctx context.Context, id service.Identity) (*domain.User, error)
	GetUser(ctx context.Context, id string) (*domain.User, error)
	UpdateDisplayName(ctx context.Context, id, displayName string) (*domain.User, error)
	ListUsers(ctx context.Context, limit, offset int) ([]domain.User, error)
	UpdateUserRole(ctx context.Context, id string, role domain.Role) (*domain.User, error)
	DeleteUser(ctx context.Context, id string) error
}

type PushService interface {
	Subscribe(ctx context.Context, userID, endpoint, p256dh, auth string) (*domain.PushSubscription, error)
	Unsubscribe(ctx context.Context, userID, endpoint string) error
	ListSubscriptions(ctx context.Context, userID string) ([]domain.PushSubscription, error)
	ListAllSubscriptions(ctx context.Context, limit, offset int) ([]domain.PushSubscription, error)
}

type LocationService interface {
	UpdateLocation(ctx context.Context, userID string, in service.LocationUpdate, senderID uint64) (*domain.UserLocation, error)
	CheckIn(ctx context.Context, userID, eventID string) (*domain.CheckInNotice, bool, error)
	CheckInCount(ctx context.Context, eventID string) (int64, error)
	ListFans(ctx context.Context, stadiumID string) ([]domain.UserLocation, error)
	NearbyFans(ctx context.Context, stadiumID string, lat, lng, radiusM float64) ([]domain.NearbyFan, error)
}

// SocketEndpoint upgrades an authenticated request to a realtime client.
type SocketEndpoint interface {
	Handle(w http.ResponseWriter, r *http.Request, user domain.User)
}

// Dependencies groups what the router needs.
type Dependencies struct {
	Catalog   CatalogService
	Orders    OrderService
	Venues    VenueService
	Users     UserService
	Push      PushService
	Locations LocationService
	Socket    SocketEndpoint
	Auth      *Authenticator
	Health    *HealthHandler
}

type HTTPHandler struct {
	catalog   CatalogService
	orders    OrderService
	venues    VenueService
	users     UserService
	push      PushService
	locations LocationService
	socket    SocketEndpoint
	auth      *Authenticator
	health    *HealthHandler
}

func NewHTTPHandler(deps Dependencies) *HTTPHandler {
	return &HTTPHandler{
		catalog:   deps.Catalog,
		orders:    deps.Orders,
		venues:    deps.Venues,
		users:     deps.Users,
		push:      deps.Push,
		locations: deps.Locations,
		socket:    deps.Socket,
		auth:      deps.Auth,
		health:    deps.Health,
	}
}

// Routes builds the chi router for the REST API, WebSocket endpoint,
// health checks and metrics.
func (h *HTTPHandler) Routes(cfg MiddlewareConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestContext)
	r.Use(accessLog)
	r.Use(chimiddleware.Recoverer)
	r.Use(corsMiddleware(cfg.CORSOrigins))

	if h.health != nil {
		r.Get("/health", h.health.Live)
		r.Get("/health/ready", h.health.Ready)
	}
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// public reads
		r.Group(func(r chi.Router) {
			r.Use(rateLimit(cfg))
			r.Get("/products", h.ListProducts)
			r.Get("/products/{id}", h.GetProduct)
			r.Get("/stadiums", h.ListStadiums)
			r.Get("/stadiums/{id}", h.GetStadium)
			r.Get("/events", h.ListEvents)
			r.Get("/events/{id}", h.GetEvent)
			r.Get("/events/{id}/checkins/count", h.CheckInCount)
		})

		// the socket has its own per-message limiter
		r.With(h.auth.SocketMiddleware).Get("/ws", h.ServeWS)

		r.Group(func(r chi.Router) {
			r.Use(h.auth.Middleware)

			r.Group(func(r chi.Router) {
				r.Use(rateLimit(cfg))

				r.Get("/users/me", h.GetMe)
				r.Patch("/users/me", h.UpdateMe)

				r.Post("/orders", h.PlaceOrder)
				r.Get("/orders", h.ListMyOrders)
				r.Get("/orders/{id}", h.GetOrder)
				r.Post("/orders/{id}/cancel", h.CancelOrder)

				r.Get("/push/subscriptions", h.ListSubscriptions)
				r.Post("/push/subscriptions", h.Subscribe)
				r.Delete("/push/subscriptions", h.Unsubscribe)

				r.Post("/locations", h.UpdateLocation)
				r.Post("/events/{id}/checkins", h.CheckIn)
				r.Get("/stadiums/{id}/fans", h.ListFans)
				r.Get("/stadiums/{id}/fans/nearby", h.NearbyFans)

				r.Group(func(r chi.Router) {
					r.Use(requireStaff)
					r.Get("/admin/orders", h.ListAllOrders)
					r.Patch("/admin/orders/{id}/status", h.UpdateOrderStatus)
				})

				r.Group(func(r chi.Router) {
					r.Use(requireAdmin)

					r.Get("/admin/products", h.ListAllProducts)
					r.Post("/products", h.CreateProduct)
					r.Put("/products/{id}", h.UpdateProduct)
					r.Put("/products/{id}/stock", h.RestockProduct)
					r.Delete("/products/{id}", h.DeleteProduct)

					r.Post("/stadiums", h.CreateStadium)
					r.Put("/stadiums/{id}", h.UpdateStadium)
					r.Delete("/stadiums/{id}", h.DeleteStadium)
					r.Post("/events", h.CreateEvent)
					r.Put("/events/{id}", h.UpdateEvent)
					r.Delete("/events/{id}", h.DeleteEvent)

					r.Get("/admin/users", h.ListUsers)
					r.Get("/admin/users/{id}", h.GetUser)
					r.Patch("/admin/users/{id}/role", h.UpdateUserRole)
					r.Delete("/admin/users/{id}", h.DeleteUser)

					r.Get("/admin/push/subscriptions", h.ListAllSubscriptions)
				})
			})
		})
	})

	return r
}

// currentUser is only called behind the auth middleware.
func currentUser(r *http.Request) domain.User {
	u, _ := userFromContext(r.Context())
	return u
}

func (h *HTTPHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	h.socket.Handle(w, r, currentUser(r))
}
