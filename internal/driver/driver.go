// Package driver runs a stepper for a fixed number of steps, optionally with
// a concurrent monitor that reports progress while the run advances.
package driver

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/onnwee/particle-dynamics/internal/logger"
	"github.com/onnwee/particle-dynamics/internal/metrics"
	"github.com/onnwee/particle-dynamics/internal/particles"
	"github.com/onnwee/particle-dynamics/internal/progress"
	"github.com/onnwee/particle-dynamics/internal/simerr"
	"github.com/onnwee/particle-dynamics/internal/tracing"
)

// DefaultPollInterval is how often the monitor samples the step counter.
const DefaultPollInterval = 250 * time.Millisecond

// Stepper advances a particle system by one time step.
type Stepper interface {
	Step(ctx context.Context, sys *particles.System, h float64) error
}

// AfterStepFunc runs on the worker goroutine after each successful step.
// step is the 0-based index of the step just completed.
type AfterStepFunc func(ctx context.Context, step uint64, sys *particles.System) error

// StepError reports the step at which a run stopped.
type StepError struct {
	Step uint64
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// StepIndex returns the 0-based index of the failing step.
func (e *StepError) StepIndex() uint64 { return e.Step }

// Code classifies the underlying failure.
func (e *StepError) Code() simerr.ErrorCode { return simerr.CodeOf(e.Err) }

// Runner drives a single particle system.
type Runner struct {
	stepper   Stepper
	sys       *particles.System
	reporter  progress.Reporter
	poll      time.Duration
	afterStep AfterStepFunc
	log       *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithReporter sets where RunWithProgress sends reports.
func WithReporter(r progress.Reporter) Option {
	return func(rn *Runner) { rn.reporter = r }
}

// WithPollInterval sets the monitor sampling period. Non-positive values
// keep the default.
func WithPollInterval(d time.Duration) Option {
	return func(rn *Runner) {
		if d > 0 {
			rn.poll = d
		}
	}
}

// WithAfterStep installs a hook run after every successful step.
func WithAfterStep(fn AfterStepFunc) Option {
	return func(rn *Runner) { rn.afterStep = fn }
}

// New creates a runner for sys.
func New(stepper Stepper, sys *particles.System, opts ...Option) *Runner {
	r := &Runner{
		stepper: stepper,
		sys:     sys,
		poll:    DefaultPollInterval,
		log:     logger.WithComponent("driver"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// System returns the system being driven.
func (r *Runner) System() *particles.System { return r.sys }

// Run performs steps sequential steps of size h and stops at the first
// failure, returning a *StepError. Completed steps are kept.
// Cancelling ctx stops the run between steps.
func (r *Runner) Run(ctx context.Context, steps uint64, h float64) error {
	var counter atomic.Uint64
	return r.run(ctx, steps, h, &counter)
}

// RunWithProgress behaves like Run while a monitor goroutine polls the
// completed-step count and reports progress. The monitor stops once the
// run is complete or the worker has exited, so a failed run never leaves it
// waiting. On success the reporter's Finish is called.
func (r *Runner) RunWithProgress(ctx context.Context, steps uint64, h float64) error {
	var (
		counter  atomic.Uint64
		finished atomic.Bool
	)
	reporter := r.reporter
	if reporter == nil {
		reporter = progress.Multi{}
	}

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		defer finished.Store(true)
		defer func() {
			if rec := recover(); rec != nil {
				err = simerr.Recovered("run worker", rec)
				r.recordFailure(err)
			}
		}()
		return r.run(gctx, steps, h, &counter)
	})
	g.Go(func() error {
		r.monitor(steps, start, &counter, &finished, reporter)
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	reporter.Finish(progress.Summary{Steps: steps, Elapsed: time.Since(start)})
	return nil
}

func (r *Runner) run(ctx context.Context, steps uint64, h float64, counter *atomic.Uint64) error {
	ctx, span := tracing.StartSpan(ctx, "driver.Run",
		tracing.AttrSteps.Int64(int64(steps)),
		tracing.TimeStep(h),
		tracing.Particles(r.sys.Len()),
	)
	defer span.End()

	metrics.ParticlesTotal.Set(float64(r.sys.Len()))
	r.log.Debug("Starting run", "steps", steps, "h", h, "particles", r.sys.Len())

	for i := uint64(0); i < steps; i++ {
		if err := ctx.Err(); err != nil {
			return &StepError{Step: i, Err: err}
		}
		if err := r.stepper.Step(ctx, r.sys, h); err != nil {
			serr := &StepError{Step: i, Err: err}
			span.RecordError(serr)
			r.recordFailure(serr)
			return serr
		}
		if r.afterStep != nil {
			if err := r.afterStep(ctx, i, r.sys); err != nil {
				serr := &StepError{Step: i, Err: fmt.Errorf("after step: %w", err)}
				span.RecordError(serr)
				r.recordFailure(serr)
				return serr
			}
		}
		counter.Add(1)
	}
	return nil
}

func (r *Runner) monitor(steps uint64, start time.Time, counter *atomic.Uint64, finished *atomic.Bool, reporter progress.Reporter) {
	ticker := time.NewTicker(r.poll)
	defer ticker.Stop()
	for {
		done := counter.Load()
		if done >= steps || finished.Load() {
			return
		}
		reporter.Report(progress.Estimate(done, steps, time.Since(start)))
		<-ticker.C
	}
}

func (r *Runner) recordFailure(err error) {
	code := simerr.CodeOf(err)
	metrics.RunFailures.WithLabelValues(string(code)).Inc()
	r.log.Error("Run failed", "error", err, "code", code)
}
