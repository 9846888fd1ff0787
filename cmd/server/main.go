package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/thejerf/suture/v4"

	"github.com/Neiland85/ochio-club-monorepo-sub001/internal/adapter/handler"
	"github.com/Neiland85/ochio-club-monorepo-sub001/internal/adapter/realtime"
	"github.com/Neiland85/ochio-club-monorepo-sub001/internal/adapter/storage"
	"github.com/Neiland85/ochio-club-monorepo-sub001/internal/config"
	"github.com/Neiland85/ochio-club-monorepo-sub001/internal/core/service"
	"github.com/Neiland85/ochio-club-monorepo-sub001/internal/logging"
	"github.com/Neiland85/ochio-club-monorepo-sub001/internal/worker"
)

func main() {
	// a missing .env is normal outside development
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}
	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Postgres
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to open postgres")
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		logging.Fatal().Err(err).Msg("failed to ping postgres")
	}
	logging.Info().Msg("connected to postgres")

	if cfg.Database.MigrateOnStart {
		if err := storage.Migrate(db); err != nil {
			logging.Fatal().Err(err).Msg("failed to migrate database")
		}
		logging.Info().Msg("database schema up to date")
	}

	// Initialize Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logging.Fatal().Err(err).Msg("failed to connect redis")
	}
	logging.Info().Str("addr", cfg.Redis.Addr).Msg("connected to redis")

	// Initialize adapters
	redisAdapter := storage.NewRedisAdapter(rdb)
	pgAdapter := storage.NewPostgresAdapter(db)

	hub := realtime.NewHub(realtime.Options{
		SendBuffer:     cfg.Realtime.SendBuffer,
		MessagesPerSec: cfg.Realtime.MessagesPerSec,
		MessageBurst:   cfg.Realtime.MessageBurst,
		AllowedOrigins: cfg.Realtime.AllowedOrigins,
	})

	// Initialize services
	catalogService := service.NewCatalogService(pgAdapter, redisAdapter, cfg.Cache.CatalogTTL)
	venueService := service.NewVenueService(pgAdapter, redisAdapter, cfg.Cache.VenueTTL)
	userService := service.NewUserService(pgAdapter)
	pushService := service.NewPushService(pgAdapter)
	locationService := service.NewLocationService(pgAdapter, redisAdapter, venueService, hub, cfg.Realtime.LocationTTL, cfg.Realtime.NearbyMaxRadius)
	orderService := service.NewOrderService(redisAdapter, pgAdapter, catalogService, hub, cfg.Orders.QueueSize)

	// Sync stock to Redis
	if err := catalogService.SyncStock(ctx); err != nil {
		logging.Fatal().Err(err).Msg("failed to sync stock")
	}

	scheduler := worker.NewScheduler(time.Minute)
	if err := scheduler.Add("stock-sync", cfg.Orders.StockSyncSpec, catalogService.SyncStock); err != nil {
		logging.Fatal().Err(err).Msg("failed to schedule stock sync")
	}
	if err := scheduler.Add("location-prune", cfg.Realtime.PruneSpec, func(ctx context.Context) error {
		_, err := locationService.PruneStaleLocations(ctx)
		return err
	}); err != nil {
		logging.Fatal().Err(err).Msg("failed to schedule location prune")
	}

	readiness := map[string]handler.Pinger{
		"postgres": pgAdapter,
		"redis":    redisAdapter,
	}

	api := handler.NewHTTPHandler(handler.Dependencies{
		Catalog:   catalogService,
		Orders:    orderService,
		Venues:    venueService,
		Users:     userService,
		Push:      pushService,
		Locations: locationService,
		Socket:    realtime.NewEndpoint(hub, locationService),
		Auth:      handler.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Audience, userService),
		Health:    handler.NewHealthHandler(readiness),
	})

	httpServer := &http.Server{
		Addr: cfg.Server.Addr(),
		Handler: api.Routes(handler.MiddlewareConfig{
			CORSOrigins:       cfg.Server.CORSOrigins,
			RateLimitRequests: cfg.Server.RateLimitRequests,
			RateLimitWindow:   cfg.Server.RateLimitWindow,
			RateLimitDisabled: cfg.Server.RateLimitDisabled,
		}),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// The core layer (hub, workers, scheduler) outlives the API layer so
	// in-flight orders are persisted and their status still delivered.
	spec := suture.Spec{
		EventHook: eventHook,
		Timeout:   cfg.Server.ShutdownTimeout + 5*time.Second,
	}
	core := suture.New("core", spec)
	core.Add(hub)
	core.Add(worker.NewOrderPool(orderService.GetOrderQueue(), pgAdapter, redisAdapter, hub, cfg.Orders.Workers, cfg.Orders.PersistTimeout))
	core.Add(scheduler)

	apiLayer := suture.New("api", spec)
	apiLayer.Add(handler.NewServerService(httpServer, cfg.Server.ShutdownTimeout))
	if cfg.Server.GRPCPort != 0 {
		apiLayer.Add(handler.NewGRPCHealthService(cfg.Server.GRPCAddr(), readiness, cfg.Server.GRPCHealthInterval, cfg.Server.ShutdownTimeout))
	}

	coreCtx, coreCancel := context.WithCancel(ctx)
	defer coreCancel()
	apiCtx, apiCancel := context.WithCancel(ctx)
	defer apiCancel()

	coreErr := core.ServeBackground(coreCtx)
	apiErr := apiLayer.ServeBackground(apiCtx)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logging.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-apiErr:
		logging.Error().Err(err).Msg("api supervisor exited")
	case err := <-coreErr:
		logging.Error().Err(err).Msg("core supervisor exited")
	}

	// Stop accepting requests, then close the queue so workers drain it
	apiCancel()
	waitSupervisor("api", apiErr, cfg.Server.ShutdownTimeout+time.Second)

	orderService.Close()
	coreCancel()
	waitSupervisor("core", coreErr, cfg.Server.ShutdownTimeout+5*time.Second)

	// Close connections
	if err := rdb.Close(); err != nil {
		logging.Warn().Err(err).Msg("failed to close redis")
	}
	if err := db.Close(); err != nil {
		logging.Warn().Err(err).Msg("failed to close postgres")
	}
	logging.Info().Msg("connections closed")
}

func waitSupervisor(name string, errCh <-chan error, timeout time.Duration) {
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Warn().Err(err).Str("supervisor", name).Msg("supervisor stopped with error")
		}
	case <-time.After(timeout):
		logging.Warn().Str("supervisor", name).Msg("supervisor did not stop in time")
	}
}

// eventHook logs supervisor events through zerolog.
func eventHook(e suture.Event) {
	switch ev := e.(type) {
	case suture.EventServicePanic:
		logging.Error().
			Str("supervisor", ev.SupervisorName).
			Str("service", ev.ServiceName).
			Str("panic", ev.PanicMsg).
			Str("stacktrace", ev.Stacktrace).
			Msg("service panicked")
	case suture.EventServiceTerminate:
		logging.Warn().
			Str("supervisor", ev.SupervisorName).
			Str("service", ev.ServiceName).
			Interface("error", ev.Err).
			Bool("restarting", ev.Restarting).
			Msg("service terminated")
	case suture.EventBackoff:
		logging.Warn().Str("supervisor", ev.SupervisorName).Msg("supervisor entering backoff")
	case suture.EventResume:
		logging.Info().Str("supervisor", ev.SupervisorName).Msg("supervisor resuming")
	case suture.EventStopTimeout:
		logging.Error().Str("supervisor", ev.SupervisorName).Str("service", ev.ServiceName).Msg("service did not stop in time")
	default:
		logging.Debug().Str("event", e.String()).Msg("supervisor event")
	}
}
