package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Neiland85/ochio-club-monorepo-sub001/internal/core/domain"
	"github.com/Neiland85/ochio-club-monorepo-sub001/internal/logging"
	"github.com/Neiland85/ochio-club-monorepo-sub001/internal/metrics"
	"github.com/Neiland85/ochio-club-monorepo-sub001/internal/port"
)

const (
	defaultOrderListLimit = 100
	maxOrderListLimit     = 500
	maxOrderLines         = 50
)

func idempotencyKey(requestID string) string { return "order:req:" + requestID }

// ProductReader resolves products for pricing.
type ProductReader interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
}

type PlaceOrderRequest struct {
	RequestID string
	UserID    string
	EventID   string
	Items     []domain.OrderItem
}

type OrderService struct {
	cache      port.CacheRepository
	orders     port.OrderRepository
	products   ProductReader
	notifier   port.Broadcaster
	orderQueue chan domain.Order

	mu     sync.RWMutex
	closed bool
}

func NewOrderService(cache port.CacheRepository, orders port.OrderRepository, products ProductReader, notifier port.Broadcaster, queueSize int) *OrderService {
	return &OrderService{
		cache:      cache,
		orders:     orders,
		products:   products,
		notifier:   notifier,
		orderQueue: make(chan domain.Order, queueSize),
	}
}

func validateOrderRequest(req PlaceOrderRequest) error {
	if req.RequestID == "" || req.UserID == "" {
		return fmt.Errorf("%w: request id and user are required", ErrInvalidInput)
	}
	if len(req.Items) == 0 || len(req.Items) > maxOrderLines {
		return fmt.Errorf("%w: an order needs between 1 and %d items", ErrInvalidInput, maxOrderLines)
	}
	for _, item := range req.Items {
		if strings.TrimSpace(item.ProductID) == "" || item.Quantity <= 0 {
			return fmt.Errorf("%w: every item needs a product and a positive quantity", ErrInvalidInput)
		}
	}
	return nil
}

// PlaceOrder reserves stock in Redis and queues the order for persistence.
// The returned order is pending; workers write it to Postgres and notify the
// user on the order:status channel.
func (s *OrderService) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*domain.Order, error) {
	if err := validateOrderRequest(req); err != nil {
		metrics.OrdersPlaced.WithLabelValues("invalid").Inc()
		return nil, err
	}

	ok, err := s.cache.SetIdempotency(ctx, idempotencyKey(req.RequestID))
	if err != nil {
		metrics.OrdersPlaced.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("idempotency check failed: %w", err)
	}
	if !ok {
		metrics.OrdersPlaced.WithLabelValues("duplicate").Inc()
		return nil, ErrDuplicateRequest
	}

	order := domain.Order{
		ID:      uuid.New().String(),
		UserID:  req.UserID,
		EventID: req.EventID,
		Status:  domain.OrderStatusPending,
	}

	// duplicate lines are merged, first occurrence keeps its position
	merged := (domain.Order{Items: req.Items}).Quantities()
	for _, line := range req.Items {
		productID := line.ProductID
		quantity, pending := merged[productID]
		if !pending {
			continue
		}
		delete(merged, productID)

		p, err := s.products.GetProduct(ctx, productID)
		if errors.Is(err, domain.ErrNotFound) {
			metrics.OrdersPlaced.WithLabelValues("invalid").Inc()
			return nil, fmt.Errorf("%w: unknown product %s", ErrInvalidInput, productID)
		}
		if err != nil {
			metrics.OrdersPlaced.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("price lookup failed: %w", err)
		}
		if !p.Active {
			metrics.OrdersPlaced.WithLabelValues("invalid").Inc()
			return nil, fmt.Errorf("%w: product %s is not available", ErrInvalidInput, productID)
		}

		order.Items = append(order.Items, domain.OrderItem{
			OrderID:        order.ID,
			ProductID:      productID,
			Quantity:       quantity,
			UnitPriceCents: p.PriceCents,
		})
		order.TotalCents += p.PriceCents * int64(quantity)
	}

	quantities := order.Quantities()
	ok, err = s.cache.ReserveStock(ctx, quantities)
	if err != nil {
		metrics.OrdersPlaced.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("stock reservation failed: %w", err)
	}
	if !ok {
		metrics.OrdersPlaced.WithLabelValues("sold_out").Inc()
		return nil, ErrInsufficientStock
	}

	now := time.Now()
	order.CreatedAt = now
	order.UpdatedAt = now

	if err := s.enqueue(ctx, order); err != nil {
		if relErr := s.cache.ReleaseStock(context.WithoutCancel(ctx), quantities); relErr != nil {
			logging.Ctx(ctx).Error().Err(relErr).Str("order_id", order.ID).Msg("CRITICAL: failed to release reserved stock")
		}
		metrics.OrdersPlaced.WithLabelValues("error").Inc()
		return nil, err
	}

	metrics.OrdersPlaced.WithLabelValues("accepted").Inc()
	metrics.OrderQueueDepth.Set(float64(len(s.orderQueue)))
	logging.Ctx(ctx).Info().Str("order_id", order.ID).Int64("total_cents", order.TotalCents).Msg("order queued")
	return &order, nil
}

func (s *OrderService) enqueue(ctx context.Context, order domain.Order) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrQueueClosed
	}

	select {
	case s.orderQueue <- order:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *OrderService) GetOrderQueue() <-chan domain.Order {
	return s.orderQueue
}

// Close stops accepting orders. Workers drain what is already queued.
func (s *OrderService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.orderQueue)
	}
}

func (s *OrderService) GetOrder(ctx context.Context, requester domain.User, id string) (*domain.Order, error) {
	order, err := s.orders.GetOrder(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order %s: %w", id, err)
	}
	if order.UserID != requester.ID && !requester.CanManageOrders() {
		return nil, ErrForbidden
	}
	return order, nil
}

func (s *OrderService) ListOrders(ctx context.Context, userID string) ([]domain.Order, error) {
	orders, err := s.orders.ListOrdersByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	return orders, nil
}

func (s *OrderService) ListAllOrders(ctx context.Context, requester domain.User, status domain.OrderStatus, limit int) ([]domain.Order, error) {
	if !requester.CanManageOrders() {
		return nil, ErrForbidden
	}
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}
	if limit <= 0 {
		limit = defaultOrderListLimit
	}
	if limit > maxOrderListLimit {
		limit = maxOrderListLimit
	}

	orders, err := s.orders.ListOrders(ctx, status, limit)
	if err != nil {
		return nil, fmt.Errorf("list all orders: %w", err)
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	return orders, nil
}

// UpdateOrderStatus moves an order along the fulfilment flow. Moving to
// cancelled or rejected returns the stock.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, requester domain.User, id string, to domain.OrderStatus) (*domain.Order, error) {
	if !requester.CanManageOrders() {
		return nil, ErrForbidden
	}
	if !to.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, to)
	}

	order, err := s.orders.GetOrder(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order %s: %w", id, err)
	}

	return s.transition(ctx, order, to, "")
}

// CancelOrder lets the owner withdraw an order that is not yet being prepared.
func (s *OrderService) CancelOrder(ctx context.Context, requester domain.User, id string) (*domain.Order, error) {
	order, err := s.orders.GetOrder(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order %s: %w", id, err)
	}
	if order.UserID != requester.ID {
		return nil, ErrForbidden
	}
	if !order.Status.Cancellable() {
		return nil, fmt.Errorf("%w: order is %s", ErrInvalidTransition, order.Status)
	}

	return s.transition(ctx, order, domain.OrderStatusCancelled, "cancelled by customer")
}

func (s *OrderService) transition(ctx context.Context, order *domain.Order, to domain.OrderStatus, reason string) (*domain.Order, error) {
	from := order.Status
	if !from.CanTransitionTo(to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	releases := to == domain.OrderStatusCancelled || to == domain.OrderStatusRejected
	if releases {
		if err := s.orders.CancelOrder(ctx, order.ID, from, to); err != nil {
			return nil, fmt.Errorf("%s order %s: %w", to, order.ID, err)
		}
		if err := s.cache.ReleaseStock(ctx, order.Quantities()); err != nil {
			// the next stock sync repairs the counters
			logging.Ctx(ctx).Error().Err(err).Str("order_id", order.ID).Msg("failed to release cached stock")
		}
	} else if err := s.orders.UpdateOrderStatus(ctx, order.ID, from, to); err != nil {
		return nil, fmt.Errorf("update order %s: %w", order.ID, err)
	}

	order.Status = to
	order.UpdatedAt = time.Now()

	s.publishStatus(*order, reason)
	logging.Ctx(ctx).Info().Str("order_id", order.ID).Str("from", string(from)).Str("to", string(to)).Msg("order status changed")
	return order, nil
}

func (s *OrderService) publishStatus(order domain.Order, reason string) {
	if s.notifier == nil {
		return
	}
	update := domain.OrderStatusUpdate{
		OrderID:   order.ID,
		UserID:    order.UserID,
		Status:    order.Status,
		Reason:    reason,
		UpdatedAt: order.UpdatedAt,
	}
	s.notifier.SendToUser(order.UserID, domain.EventOrderStatus, update)
	s.notifier.BroadcastToRoom(domain.AdminsRoom, domain.EventOrderStatus, update, 0)
}
