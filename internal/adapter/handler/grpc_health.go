package handler

import (
	"context"
	"fmt"
	"net"
	"sort"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/Neiland85/ochio-club-monorepo-sub001/internal/logging"
)

// GRPCHealthService serves the standard gRPC health protocol next to the
// HTTP API. The overall status ("") and one status per dependency follow the
// same pings as /health/ready, refreshed every interval.
type GRPCHealthService struct {
	addr            string
	checks          map[string]Pinger
	health          *health.Server
	interval        time.Duration
	pingTimeout     time.Duration
	shutdownTimeout time.Duration
}

func NewGRPCHealthService(addr string, checks map[string]Pinger, interval, shutdownTimeout time.Duration) *GRPCHealthService {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &GRPCHealthService{
		addr:            addr,
		checks:          checks,
		health:          health.NewServer(),
		interval:        interval,
		pingTimeout:     2 * time.Second,
		shutdownTimeout: shutdownTimeout,
	}
}

func (s *GRPCHealthService) Serve(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("grpc listen on %s: %w", s.addr, err)
	}
	return s.serve(ctx, lis)
}

func (s *GRPCHealthService) serve(ctx context.Context, lis net.Listener) error {
	server := grpc.NewServer()
	healthpb.RegisterHealthServer(server, s.health)
	// a restart after Shutdown must report again
	s.health.Resume()
	s.refresh(ctx)

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", lis.Addr().String()).Msg("gRPC health server listening")
		errCh <- server.Serve(lis)
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("grpc server failed: %w", err)
			}
			return nil

		case <-ticker.C:
			s.refresh(ctx)

		case <-ctx.Done():
			// Watch streams would hold GracefulStop open forever.
			s.health.Shutdown()
			stopped := make(chan struct{})
			go func() {
				server.GracefulStop()
				close(stopped)
			}()
			select {
			case <-stopped:
			case <-time.After(s.shutdownTimeout):
				server.Stop()
			}
			<-errCh
			logging.Info().Msg("gRPC health server stopped")
			return ctx.Err()
		}
	}
}

// refresh pings every dependency and publishes the results.
func (s *GRPCHealthService) refresh(ctx context.Context) {
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	overall := healthpb.HealthCheckResponse_SERVING
	for _, name := range names {
		pingCtx, cancel := context.WithTimeout(ctx, s.pingTimeout)
		err := s.checks[name].Ping(pingCtx)
		cancel()

		status := healthpb.HealthCheckResponse_SERVING
		if err != nil {
			status = healthpb.HealthCheckResponse_NOT_SERVING
			overall = healthpb.HealthCheckResponse_NOT_SERVING
			logging.Debug().Err(err).Str("check", name).Msg("dependency not ready")
		}
		s.health.SetServingStatus(name, status)
	}
	s.health.SetServingStatus("", overall)
}

func (s *GRPCHealthService) String() string {
	return "grpc-health-server"
}
