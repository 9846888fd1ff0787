package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Neiland85/ochio-club-monorepo-sub001/internal/logging"
	"github.com/Neiland85/ochio-club-monorepo-sub001/internal/metrics"
)

// JobFunc is a scheduled unit of work.
type JobFunc func(ctx context.Context) error

// Scheduler runs cron jobs for as long as it is being served.
type Scheduler struct {
	cron    *cron.Cron
	timeout time.Duration

	mu  sync.RWMutex
	ctx context.Context
}

func NewScheduler(timeout time.Duration) *Scheduler {
	if timeout <= 0 {
		timeout = time.Minute
	}
	logger := cronLogger{}
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		timeout: timeout,
		ctx:     context.Background(),
	}
}

// Add registers a job under a cron spec such as "@every 1m" or "*/5 * * * *".
func (s *Scheduler) Add(name, spec string, job JobFunc) error {
	_, err := s.cron.AddFunc(spec, func() {
		s.run(name, job)
	})
	if err != nil {
		return fmt.Errorf("schedule %s (%q): %w", name, spec, err)
	}
	return nil
}

func (s *Scheduler) run(name string, job JobFunc) {
	s.mu.RLock()
	parent := s.ctx
	s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(parent, s.timeout)
	defer cancel()

	start := time.Now()
	err := job(ctx)
	metrics.RecordJob(name, err)

	if err != nil {
		logging.Error().Err(err).Str("job", name).Msg("scheduled job failed")
		return
	}
	logging.Debug().Str("job", name).Dur("took", time.Since(start)).Msg("scheduled job finished")
}

// Serve starts the cron loop and blocks until ctx is done, then waits for
// running jobs.
func (s *Scheduler) Serve(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	s.cron.Start()
	logging.Info().Int("jobs", len(s.cron.Entries())).Msg("scheduler started")

	<-ctx.Done()
	<-s.cron.Stop().Done()
	logging.Info().Msg("scheduler stopped")
	return ctx.Err()
}

func (s *Scheduler) String() string {
	return "scheduler"
}

// cronLogger routes robfig/cron logs to zerolog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logging.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logging.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
