package cycle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"gigalert/internal/model"
)

// Scheduler owns the main loop: it runs one cycle at a time, either on
// a fixed interval or on a cron spec. Cycles never overlap — the next
// one starts only after the previous returns, so a slow cycle delays
// the schedule instead of stacking up.
type Scheduler struct {
	runner   *Runner
	interval time.Duration
	spec     string // cron spec; empty means interval loop
	logger   *slog.Logger
}

// NewScheduler creates a scheduler driving the given runner. When spec
// is non-empty it takes precedence over interval.
func NewScheduler(runner *Runner, interval time.Duration, spec string, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		runner:   runner,
		interval: interval,
		spec:     spec,
		logger:   logger,
	}
}

// Run blocks until ctx is cancelled, returning nil on graceful shutdown.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.spec != "" {
		return s.runCron(ctx)
	}
	return s.runInterval(ctx)
}

// runInterval runs one immediate cycle, then ticks on the configured
// interval.
func (s *Scheduler) runInterval(ctx context.Context) error {
	s.logger.Info("starting scheduler", "interval", s.interval.String())

	s.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("shutting down scheduler")
			return nil
		case <-time.After(s.interval):
			s.runOnce(ctx)
		}
	}
}

// runCron registers the cycle with a cron schedule. SkipIfStillRunning
// preserves the no-overlap guarantee when a cycle outlasts the spec.
func (s *Scheduler) runCron(ctx context.Context) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(s.spec, func() {
		s.runOnce(ctx)
	})
	if err != nil {
		return fmt.Errorf("cron spec %q: %w", s.spec, err)
	}

	s.logger.Info("starting scheduler", "cron", s.spec)
	c.Start()

	<-ctx.Done()
	s.logger.Info("shutting down scheduler")

	// Let an in-flight cycle finish its current step before returning.
	<-c.Stop().Done()
	return nil
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if err := s.runner.Run(ctx); err != nil {
		if model.IsStoreUnavailable(err) {
			s.logger.Error("cycle aborted, sent store unavailable; retrying next interval", "error", err)
			return
		}
		s.logger.Error("cycle failed", "error", err)
	}
}
