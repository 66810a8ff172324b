// Package simulation assembles a complete run from configuration: the
// initial cloud, the trap, the integrator, progress reporting and
// checkpointing.
package simulation

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"time"

	"github.com/onnwee/particle-dynamics/internal/cache"
	"github.com/onnwee/particle-dynamics/internal/checkpoint"
	"github.com/onnwee/particle-dynamics/internal/config"
	"github.com/onnwee/particle-dynamics/internal/diagnostics"
	"github.com/onnwee/particle-dynamics/internal/driver"
	"github.com/onnwee/particle-dynamics/internal/errorreporting"
	"github.com/onnwee/particle-dynamics/internal/force"
	"github.com/onnwee/particle-dynamics/internal/integrator"
	"github.com/onnwee/particle-dynamics/internal/logger"
	"github.com/onnwee/particle-dynamics/internal/metrics"
	"github.com/onnwee/particle-dynamics/internal/particles"
	"github.com/onnwee/particle-dynamics/internal/progress"
	"github.com/onnwee/particle-dynamics/internal/scenario"
	"github.com/onnwee/particle-dynamics/internal/server"
)

// progressLogInterval throttles progress lines in the structured log.
const progressLogInterval = 10 * time.Second

// Simulation is one configured run.
type Simulation struct {
	cfg     *config.Config
	runID   string
	sys     *particles.System
	cache   *cache.Ristretto
	store   *checkpoint.Store
	hub     *server.Hub
	release driver.AfterStepFunc
	runner  *driver.Runner
	log     *slog.Logger
}

// New builds a run from cfg. Progress lines go to out when enabled.
func New(cfg *config.Config, out io.Writer) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	s := &Simulation{
		cfg:   cfg,
		runID: fmt.Sprintf("%d-%d", time.Now().Unix(), cfg.Seed),
		sys:   particles.New(),
		hub:   server.NewHub(),
		log:   logger.WithComponent("simulation"),
	}
	s.release = scenario.ReleaseAfter(cfg.TrapReleaseTime, cfg.TimeStep)

	scenario.GaussianCloud(s.sys, cfg.Particles, rand.New(rand.NewSource(cfg.Seed)), cfg.PositionSigma, cfg.VelocitySigma)
	s.sys.SetPotential(scenario.HarmonicTrap{Kx: cfg.TrapKx, Ky: cfg.TrapKy, Kz: cfg.TrapKz})

	if cfg.CheckpointEvery > 0 {
		c, err := cache.NewRistrettoMB(cfg.CheckpointCacheMB, cfg.CheckpointEntries)
		if err != nil {
			return nil, fmt.Errorf("checkpoint cache: %w", err)
		}
		s.cache = c
		s.store = checkpoint.NewStore(c)
	}

	evaluator := force.New(
		force.WithParams(force.Params{Attracting: cfg.Attracting, Repelling: cfg.Repelling, Cap: cfg.ForceCap}),
		force.WithWorkers(cfg.Workers),
	)
	var yopts []integrator.Option
	if cfg.Rollback {
		yopts = append(yopts, integrator.WithRollback())
	}

	reporters := progress.Multi{progress.NewLog(progressLogInterval), progress.Gauge{}, s.hub}
	if cfg.Progress && out != nil {
		reporters = append(reporters, progress.NewTerminal(out))
	}

	s.runner = driver.New(integrator.NewYoshida(evaluator, yopts...), s.sys,
		driver.WithReporter(reporters),
		driver.WithPollInterval(cfg.ProgressInterval),
		driver.WithAfterStep(s.afterStep),
	)
	return s, nil
}

// RunID identifies this run in logs and error reports.
func (s *Simulation) RunID() string { return s.runID }

// System returns the simulated particles.
func (s *Simulation) System() *particles.System { return s.sys }

// Hub returns the progress hub for the status server.
func (s *Simulation) Hub() *server.Hub { return s.hub }

// Store returns the checkpoint store, or nil when checkpoints are disabled.
func (s *Simulation) Store() *checkpoint.Store { return s.store }

// Cache returns the checkpoint cache, or nil when checkpoints are disabled.
func (s *Simulation) Cache() *cache.Ristretto { return s.cache }

// Run advances the configured number of steps. On failure the error is
// reported with the step and the last good checkpoint.
func (s *Simulation) Run(ctx context.Context) error {
	ctx = logger.ContextWithRunID(ctx, s.runID)
	h := s.cfg.TimeStep

	s.checkpoint(ctx, 0)
	logger.InfoContext(ctx, "Starting simulation",
		"particles", s.sys.Len(),
		"steps", s.cfg.Steps,
		"h", h,
		"trap_release_time", s.cfg.TrapReleaseTime,
	)
	errorreporting.AddBreadcrumb("run", "started "+s.runID)

	err := s.runner.RunWithProgress(ctx, uint64(s.cfg.Steps), h)
	if err == nil {
		logger.InfoContext(ctx, "Simulation complete", "diagnostics", diagnostics.Summarize(s.sys.Snapshot()))
		return nil
	}

	extras := map[string]interface{}{"particles": s.sys.Len(), "h": h}
	args := []any{"error", err}
	if s.store != nil {
		if cp, lerr := s.store.Latest(); lerr == nil {
			extras["last_checkpoint_step"] = cp.Step
			args = append(args, "last_checkpoint_step", cp.Step)
		}
	}
	logger.ErrorContext(ctx, "Simulation failed", args...)
	errorreporting.CaptureRunFailure(err, s.runID, extras)
	return err
}

// Close releases the checkpoint cache.
func (s *Simulation) Close() {
	if s.cache != nil {
		s.cache.Close()
	}
}

func (s *Simulation) afterStep(ctx context.Context, step uint64, sys *particles.System) error {
	trapped := sys.HasPotential()
	if err := s.release(ctx, step, sys); err != nil {
		return err
	}
	done := step + 1
	if trapped && !sys.HasPotential() {
		errorreporting.AddBreadcrumb("run", fmt.Sprintf("trap released after step %d", done))
	}
	if s.cfg.CheckpointEvery > 0 && done%uint64(s.cfg.CheckpointEvery) == 0 {
		s.checkpoint(ctx, done)
	}
	return nil
}

// checkpoint saves the current state after done steps and records its
// diagnostics. Failures are logged; checkpoints are best effort.
func (s *Simulation) checkpoint(ctx context.Context, done uint64) {
	snap := s.sys.Snapshot()
	sum := diagnostics.Summarize(snap)
	metrics.KineticEnergy.Set(sum.KineticEnergy)
	metrics.MomentumMagnitude.Set(sum.Momentum.Norm())

	if s.store == nil {
		return
	}
	cp := checkpoint.Checkpoint{Step: done, Time: float64(done) * s.cfg.TimeStep, Snapshot: snap}
	if err := s.store.Save(cp); err != nil {
		logger.WarnContext(ctx, "Checkpoint not saved", "step", done, "error", err)
		return
	}
	s.log.Debug("Checkpoint saved",
		"step", done,
		"kinetic_energy", sum.KineticEnergy,
		"momentum", sum.Momentum.Norm(),
	)
}
