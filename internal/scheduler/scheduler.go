package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/stuartgraham/metoffice2influx/internal/observability"
	"github.com/stuartgraham/metoffice2influx/internal/pipeline"
)

// Process exit codes, following sysexits.h.
const (
	ExitOK       = 0
	ExitTempFail = 75 // EX_TEMPFAIL: provider or sink unreachable, try again later
	ExitConfig   = 78 // EX_CONFIG: configuration or credentials need fixing
)

// ErrHalted is returned by Run when a cycle reports a condition that
// retrying cannot fix.
var ErrHalted = errors.New("scheduler halted")

// Runner executes one ingestion cycle.
type Runner interface {
	Run(ctx context.Context) pipeline.Report
}

// Scheduler runs ingestion cycles once or on a fixed interval.
type Scheduler struct {
	scheduler *gocron.Scheduler
	runner    Runner
	interval  time.Duration
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// New creates a Scheduler. interval is only used by Run.
func New(runner Runner, interval time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	// A cycle, including any throttle backoff, blocks the ticks that fall
	// inside it; they are skipped rather than queued.
	s.SingletonModeAll()
	return &Scheduler{
		scheduler: s,
		runner:    runner,
		interval:  interval,
		logger:    logger,
		metrics:   metrics,
	}
}

// RunOnce executes a single cycle and returns the process exit code.
func (s *Scheduler) RunOnce(ctx context.Context) int {
	report := s.runner.Run(ctx)
	s.logReport(report)
	return ExitCode(report)
}

// Run starts a cycle immediately and then every interval until ctx is
// cancelled or a cycle reports a fatal outcome. Cancellation returns nil; a
// fatal outcome returns an error wrapping ErrHalted and the cycle's error.
func (s *Scheduler) Run(ctx context.Context) error {
	fatal := make(chan pipeline.Report, 1)

	_, err := s.scheduler.Every(s.interval).Do(func() {
		if ctx.Err() != nil {
			return
		}
		report := s.runner.Run(ctx)
		s.logReport(report)
		if report.Fatal() {
			select {
			case fatal <- report:
			default:
			}
		}
	})
	if err != nil {
		return fmt.Errorf("schedule cycle: %w", err)
	}

	s.logger.Info("scheduler started", "interval", s.interval)
	s.scheduler.StartAsync()
	s.metrics.SchedulerRunning.Set(1)
	defer func() {
		s.scheduler.Stop()
		s.metrics.SchedulerRunning.Set(0)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("scheduler stopping", "reason", ctx.Err())
		return nil
	case report := <-fatal:
		s.logger.Error("fatal cycle outcome, stopping scheduler",
			"cycle_id", report.CycleID,
			"outcome", report.Outcome,
			"error", report.Err,
		)
		return fmt.Errorf("%w: cycle %s: %w", ErrHalted, report.CycleID, report.Err)
	}
}

func (s *Scheduler) logReport(r pipeline.Report) {
	s.logger.Info("cycle finished",
		"cycle_id", r.CycleID,
		"outcome", r.Outcome,
		"points", r.Points,
		"skipped", r.Skipped,
		"delay", r.Delay,
	)
}

// ExitCode maps a single-run report to a process exit code. Throttled and
// invalid cycles are expected conditions and exit 0.
func ExitCode(r pipeline.Report) int {
	switch {
	case r.Fatal():
		return ExitConfig
	case r.Failed():
		return ExitTempFail
	default:
		return ExitOK
	}
}
