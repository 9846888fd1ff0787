package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Neiland85/ochio-club-monorepo-sub001/internal/adapter/storage"
	"github.com/Neiland85/ochio-club-monorepo-sub001/internal/core/domain"
	"github.com/Neiland85/ochio-club-monorepo-sub001/internal/core/service"
	"github.com/Neiland85/ochio-club-monorepo-sub001/internal/logging"
)

const (
	productID  = "stress-ochio"
	priceCents = 250
	queueSize  = 1000
)

// fixedCatalog prices the single stress product without a database.
type fixedCatalog struct{}

func (fixedCatalog) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	if id != productID {
		return nil, domain.ErrNotFound
	}
	return &domain.Product{ID: productID, Name: "Ochío", PriceCents: priceCents, Active: true}, nil
}

func main() {
	redisAddr := flag.String("redis", envOr("REDIS_ADDR", "localhost:6379"), "redis address")
	initialStock := flag.Int("stock", 20, "units available")
	totalRequests := flag.Int("requests", 50, "concurrent orders to place")
	flag.Parse()

	ctx := context.Background()

	// Initialize Redis
	rdb := redis.NewClient(&redis.Options{Addr: *redisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logging.Fatal().Err(err).Str("addr", *redisAddr).Msg("failed to connect redis")
	}
	defer rdb.Close()

	// Clear previous test data
	runID := time.Now().UnixNano()
	rdb.Del(ctx, "stock:"+productID)

	redisAdapter := storage.NewRedisAdapter(rdb)
	if err := redisAdapter.SetStock(ctx, productID, *initialStock); err != nil {
		logging.Fatal().Err(err).Msg("failed to set stock")
	}

	// orders are only queued here, so no repository or notifier is needed
	orderService := service.NewOrderService(redisAdapter, nil, fixedCatalog{}, nil, queueSize)
	defer orderService.Close()

	go func() {
		for range orderService.GetOrderQueue() {
		}
	}()

	var successCount, soldOutCount, errorCount atomic.Int32
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < *totalRequests; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			_, err := orderService.PlaceOrder(ctx, service.PlaceOrderRequest{
				RequestID: fmt.Sprintf("stress-%d-%d", runID, n),
				UserID:    fmt.Sprintf("user-%d", n),
				Items:     []domain.OrderItem{{ProductID: productID, Quantity: 1}},
			})
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, service.ErrInsufficientStock):
				soldOutCount.Add(1)
			default:
				errorCount.Add(1)
				logging.Warn().Err(err).Int("request", n).Msg("order failed")
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	success := int(successCount.Load())
	soldOut := int(soldOutCount.Load())
	expectedSuccess := min(*initialStock, *totalRequests)

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Stock:    %d\n", *initialStock)
	fmt.Printf("Total Requests:   %d\n", *totalRequests)
	fmt.Printf("Accepted:         %d\n", success)
	fmt.Printf("Sold out:         %d\n", soldOut)
	fmt.Printf("Errors:           %d\n", errorCount.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	failed := false
	if success == expectedSuccess && soldOut == *totalRequests-expectedSuccess {
		fmt.Printf("PASS: exactly %d orders accepted, %d sold out\n", success, soldOut)
	} else {
		fmt.Printf("FAIL: expected %d accepted/%d sold out, got %d/%d\n",
			expectedSuccess, *totalRequests-expectedSuccess, success, soldOut)
		failed = true
	}

	finalStock, _ := rdb.Get(ctx, "stock:"+productID).Int()
	fmt.Printf("Final Redis Stock: %d\n", finalStock)
	if finalStock == *initialStock-expectedSuccess {
		fmt.Println("PASS: stock never went negative")
	} else {
		fmt.Printf("FAIL: expected stock %d, got %d\n", *initialStock-expectedSuccess, finalStock)
		failed = true
	}

	if failed {
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
