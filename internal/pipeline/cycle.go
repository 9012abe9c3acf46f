package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stuartgraham/metoffice2influx/internal/domain"
	"github.com/stuartgraham/metoffice2influx/internal/observability"
)

// Sink writes a whole batch in one call and returns the number of points sent.
type Sink interface {
	Write(ctx context.Context, batch domain.Batch) (int, error)
}

// Mirror receives every batch the sink accepted.
type Mirror interface {
	Publish(ctx context.Context, batch domain.Batch) error
}

// Outcome is the terminal state of one ingestion cycle.
type Outcome string

const (
	OutcomeWritten           Outcome = "written"
	OutcomeThrottled         Outcome = "throttled"
	OutcomeInvalid           Outcome = "invalid"
	OutcomeFetchFailed       Outcome = "fetch_failed"
	OutcomeWriteUnauthorized Outcome = "write_unauthorized"
	OutcomeWriteTransport    Outcome = "write_transport"
)

// Report summarizes one cycle for the scheduler.
type Report struct {
	CycleID string
	Outcome Outcome
	Points  int           // points accepted by the sink
	Skipped int           // points dropped for having no fields
	Delay   time.Duration // throttle suspension, zero otherwise
	Reason  string        // validator diagnostic for invalid payloads
	Err     error
}

// Fatal reports whether the cycle hit a condition that retrying cannot fix.
func (r Report) Fatal() bool {
	return r.Outcome == OutcomeWriteUnauthorized
}

// Failed reports whether the cycle ended on a recoverable error.
func (r Report) Failed() bool {
	return r.Outcome == OutcomeFetchFailed || r.Outcome == OutcomeWriteTransport
}

// Option configures a Cycle.
type Option func(*Cycle)

// WithClock replaces the wall clock used for backoff and timing.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Cycle) { c.clock = clock }
}

// WithMirror publishes every written batch to m.
func WithMirror(m Mirror) Option {
	return func(c *Cycle) { c.mirror = m }
}

// Cycle runs fetch, validate, backoff or normalize, and write. It holds no
// state between runs beyond its collaborators and must not be run concurrently.
type Cycle struct {
	fetcher domain.ForecastFetcher
	sink    Sink
	mirror  Mirror
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics
	ready   atomic.Bool
}

// New creates a Cycle with the given collaborators and observability.
func New(f domain.ForecastFetcher, s Sink, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Cycle {
	c := &Cycle{
		fetcher: f,
		sink:    s,
		clock:   clockwork.NewRealClock(),
		logger:  logger,
		metrics: metrics,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CheckReadiness returns nil once a cycle has written to the sink.
func (c *Cycle) CheckReadiness(_ context.Context) error {
	if !c.ready.Load() {
		return errors.New("no batch has been written yet")
	}
	return nil
}

// Run executes one cycle. At most one fetch and one write happen; a throttle
// notice suspends the caller until the provider's retry time or ctx ends.
func (c *Cycle) Run(ctx context.Context) Report {
	report := Report{CycleID: uuid.NewString()}
	logger := c.logger.With("cycle_id", report.CycleID)

	report = c.run(ctx, logger, report)
	c.metrics.Cycles.WithLabelValues(string(report.Outcome)).Inc()
	return report
}

func (c *Cycle) run(ctx context.Context, logger *slog.Logger, report Report) Report {
	start := c.clock.Now()
	raw, err := c.fetcher.Fetch(ctx)
	c.metrics.FetchDuration.Observe(c.clock.Since(start).Seconds())
	if err != nil {
		logger.Error("fetch forecast failed", "error", err)
		report.Outcome = OutcomeFetchFailed
		report.Err = err
		return report
	}

	out := domain.Validate(raw)
	switch out.Verdict {
	case domain.Throttled:
		return c.backoff(ctx, logger, report, out.RetryAt)
	case domain.Invalid:
		logger.Warn("invalid forecast payload", "reason", out.Reason)
		report.Outcome = OutcomeInvalid
		report.Reason = out.Reason
		return report
	}

	batch, skipped := domain.Normalize(out.TimeSeries).WithFields()
	report.Skipped = skipped
	if skipped > 0 {
		logger.Warn("dropping points without fields", "skipped", skipped)
		c.metrics.PointsSkipped.Add(float64(skipped))
	}
	if len(batch) == 0 {
		logger.Warn("no points to write", "records", len(out.TimeSeries))
		report.Outcome = OutcomeWritten
		return report
	}

	return c.write(ctx, logger, report, batch)
}

func (c *Cycle) backoff(ctx context.Context, logger *slog.Logger, report Report, retryAt string) Report {
	delay := domain.ComputeDelay(retryAt, c.clock.Now())
	report.Outcome = OutcomeThrottled
	report.Delay = delay
	c.metrics.ThrottleBackoff.Observe(delay.Seconds())

	logger.Warn("provider throttled request, backing off", "next_access_time", retryAt, "delay", delay)
	if !sleepWithContext(ctx, c.clock, delay) {
		logger.Info("backoff interrupted", "reason", ctx.Err())
		report.Err = ctx.Err()
	}
	return report
}

func (c *Cycle) write(ctx context.Context, logger *slog.Logger, report Report, batch domain.Batch) Report {
	start := c.clock.Now()
	n, err := c.sink.Write(ctx, batch)
	c.metrics.WriteDuration.Observe(c.clock.Since(start).Seconds())
	if err != nil {
		report.Err = err
		if errors.Is(err, domain.ErrWriteUnauthorized) {
			logger.Error("sink rejected credentials", "error", err, "points", len(batch))
			report.Outcome = OutcomeWriteUnauthorized
			return report
		}
		logger.Error("write batch failed", "error", err, "points", len(batch))
		report.Outcome = OutcomeWriteTransport
		return report
	}

	report.Outcome = OutcomeWritten
	report.Points = n
	c.metrics.PointsWritten.Add(float64(n))
	c.metrics.LastSuccess.Set(float64(c.clock.Now().Unix()))
	c.ready.Store(true)
	logger.Info("batch written", "points", n)

	if c.mirror != nil {
		if err := c.mirror.Publish(ctx, batch); err != nil {
			logger.Warn("mirror publish failed", "error", err, "points", len(batch))
			c.metrics.MirrorErrors.Inc()
		}
	}
	return report
}

// sleepWithContext waits for d on clock. Returns false if ctx ended first.
func sleepWithContext(ctx context.Context, clock clockwork.Clock, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
