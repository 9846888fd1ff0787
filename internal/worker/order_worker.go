package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/Neiland85/ochio-club-monorepo-sub001/internal/core/domain"
	"github.com/Neiland85/ochio-club-monorepo-sub001/internal/logging"
	"github.com/Neiland85/ochio-club-monorepo-sub001/internal/metrics"
	"github.com/Neiland85/ochio-club-monorepo-sub001/internal/port"
)

// OrderPool persists queued orders. A failed write releases the Redis
// reservation and tells the customer the order was rejected.
type OrderPool struct {
	queue    <-chan domain.Order
	orders   port.OrderRepository
	cache    port.CacheRepository
	notifier port.Broadcaster
	workers  int
	timeout  time.Duration
}

func NewOrderPool(queue <-chan domain.Order, orders port.OrderRepository, cache port.CacheRepository, notifier port.Broadcaster, workers int, timeout time.Duration) *OrderPool {
	if workers <= 0 {
		workers = 1
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &OrderPool{
		queue:    queue,
		orders:   orders,
		cache:    cache,
		notifier: notifier,
		workers:  workers,
		timeout:  timeout,
	}
}

// Serve runs the workers until the queue is closed. On cancellation the
// workers first drain whatever is already buffered.
func (p *OrderPool) Serve(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.workerLoop(ctx, id)
		}(i)
	}
	logging.Info().Int("workers", p.workers).Msg("order workers started")

	wg.Wait()
	logging.Info().Msg("order workers stopped")

	if ctx.Err() != nil {
		return ctx.Err()
	}
	return suture.ErrDoNotRestart
}

func (p *OrderPool) String() string {
	return "order-workers"
}

func (p *OrderPool) workerLoop(ctx context.Context, id int) {
	for {
		select {
		case order, ok := <-p.queue:
			if !ok {
				return
			}
			p.process(id, order)
		case <-ctx.Done():
			p.drain(id)
			return
		}
	}
}

func (p *OrderPool) drain(id int) {
	for {
		select {
		case order, ok := <-p.queue:
			if !ok {
				return
			}
			p.process(id, order)
		default:
			return
		}
	}
}

func (p *OrderPool) process(id int, order domain.Order) {
	// detached from the serve context so a shutdown does not abort a write
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	metrics.OrderQueueDepth.Set(float64(len(p.queue)))
	log := logging.With().Int("worker", id).Str("order_id", order.ID).Logger()

	if err := p.orders.CreateOrder(ctx, order); err != nil {
		log.Error().Err(err).Msg("failed to save order")
		metrics.OrdersPersisted.WithLabelValues("rejected").Inc()

		// Rollback: restore stock in Redis
		if rollbackErr := p.cache.ReleaseStock(ctx, order.Quantities()); rollbackErr != nil {
			log.Error().Err(rollbackErr).Msg("CRITICAL: rollback failed")
		} else {
			log.Info().Msg("rolled back stock")
		}

		p.notify(order, domain.OrderStatusRejected, rejectReason(err))
		return
	}

	metrics.OrdersPersisted.WithLabelValues("saved").Inc()
	log.Debug().Msg("saved order")
	p.notify(order, domain.OrderStatusPending, "")
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrStockExhausted):
		return "sold out"
	case errors.Is(err, domain.ErrReferenced):
		return "unknown product or event"
	default:
		return "could not be saved"
	}
}

func (p *OrderPool) notify(order domain.Order, status domain.OrderStatus, reason string) {
	if p.notifier == nil {
		return
	}
	p.notifier.SendToUser(order.UserID, domain.EventOrderStatus, domain.OrderStatusUpdate{
		OrderID:   order.ID,
		UserID:    order.UserID,
		Status:    status,
		Reason:    reason,
		UpdatedAt: time.Now(),
	})
}
