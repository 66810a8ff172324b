package driver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/onnwee/particle-dynamics/internal/force"
	"github.com/onnwee/particle-dynamics/internal/integrator"
	"github.com/onnwee/particle-dynamics/internal/particles"
	"github.com/onnwee/particle-dynamics/internal/progress"
	"github.com/onnwee/particle-dynamics/internal/simerr"
	"github.com/onnwee/particle-dynamics/internal/vec3"
)

type fakeStepper struct {
	calls   int
	failAt  int
	panicAt int
	err     error
	delay   time.Duration
}

func (f *fakeStepper) Step(ctx context.Context, sys *particles.System, h float64) error {
	idx := f.calls
	f.calls++
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.panicAt >= 0 && idx == f.panicAt {
		panic("stepper exploded")
	}
	if f.failAt >= 0 && idx == f.failAt {
		return f.err
	}
	return nil
}

func newFake() *fakeStepper { return &fakeStepper{failAt: -1, panicAt: -1} }

type recorder struct {
	reports  []progress.Report
	finishes []progress.Summary
}

func (r *recorder) Report(rep progress.Report) { r.reports = append(r.reports, rep) }
func (r *recorder) Finish(s progress.Summary) { r.finishes = append(r.finishes, s) }

func TestRunCallsStepperSequentially(t *testing.T) {
	tests := []struct {
		name  string
		steps uint64
	}{
		{"zero steps", 0},
		{"one step", 1},
		{"many steps", 25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := newFake()
			if err := New(fs, particles.New()).Run(context.Background(), tt.steps, 0.01); err != nil {
				t.Fatalf("Run: %v", err)
			}
			if uint64(fs.calls) != tt.steps {
				t.Errorf("stepper called %d times, want %d", fs.calls, tt.steps)
			}
		})
	}
}

func TestRunStopsAtFirstFailure(t *testing.T) {
	boom := simerr.New(simerr.ExternalPotential, "potential blew up")
	fs := newFake()
	fs.failAt, fs.err = 3, boom

	err := New(fs, particles.New()).Run(context.Background(), 10, 0.01)
	var se *StepError
	if !errors.As(err, &se) {
		t.Fatalf("expected *StepError, got %T: %v", err, err)
	}
	if se.Step != 3 {
		t.Errorf("Step = %d, want 3", se.Step)
	}
	if !errors.Is(err, boom) {
		t.Error("StepError should unwrap to the stepper error")
	}
	if got := simerr.CodeOf(err); got != simerr.ExternalPotential {
		t.Errorf("CodeOf = %s, want %s", got, simerr.ExternalPotential)
	}
	if fs.calls != 4 {
		t.Errorf("stepper called %d times, want 4", fs.calls)
	}
}

func TestRunHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fs := newFake()

	err := New(fs, particles.New()).Run(ctx, 5, 0.01)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if fs.calls != 0 {
		t.Errorf("stepper called %d times after cancellation", fs.calls)
	}
}

func TestAfterStepHook(t *testing.T) {
	var seen []uint64
	hook := func(_ context.Context, step uint64, _ *particles.System) error {
		seen = append(seen, step)
		if step == 2 {
			return errors.New("checkpoint store full")
		}
		return nil
	}

	err := New(newFake(), particles.New(), WithAfterStep(hook)).Run(context.Background(), 5, 0.01)
	var se *StepError
	if !errors.As(err, &se) || se.Step != 2 {
		t.Fatalf("expected StepError at step 2, got %v", err)
	}
	if len(seen) != 3 || seen[0] != 0 || seen[2] != 2 {
		t.Errorf("hook saw steps %v, want [0 1 2]", seen)
	}
}

func TestRunWithProgressReportsAndFinishes(t *testing.T) {
	fs := newFake()
	fs.delay = 2 * time.Millisecond
	rec := &recorder{}

	r := New(fs, particles.New(), WithReporter(rec), WithPollInterval(5*time.Millisecond))
	if err := r.RunWithProgress(context.Background(), 20, 0.01); err != nil {
		t.Fatalf("RunWithProgress: %v", err)
	}

	if fs.calls != 20 {
		t.Errorf("stepper called %d times, want 20", fs.calls)
	}
	if len(rec.reports) == 0 {
		t.Error("expected at least one progress report")
	}
	var last uint64
	for _, rep := range rec.reports {
		if rep.Total != 20 || rep.Done > rep.Total {
			t.Errorf("bad report %+v", rep)
		}
		if rep.Done < last {
			t.Errorf("progress went backwards: %d after %d", rep.Done, last)
		}
		last = rep.Done
	}
	if len(rec.finishes) != 1 || rec.finishes[0].Steps != 20 {
		t.Errorf("finishes = %+v, want one summary with 20 steps", rec.finishes)
	}
}

func runWithTimeout(t *testing.T, r *Runner, steps uint64) error {
	t.Helper()
	errc := make(chan error, 1)
	go func() { errc <- r.RunWithProgress(context.Background(), steps, 0.01) }()
	select {
	case err := <-errc:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("RunWithProgress did not return; monitor is stuck")
		return nil
	}
}

func TestRunWithProgressFailureStopsMonitor(t *testing.T) {
	boom := errors.New("boom")
	fs := newFake()
	fs.failAt, fs.err = 2, boom
	rec := &recorder{}

	r := New(fs, particles.New(), WithReporter(rec), WithPollInterval(time.Millisecond))
	err := runWithTimeout(t, r, 1000)
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if len(rec.finishes) != 0 {
		t.Error("Finish must not be called for a failed run")
	}
}

func TestRunWithProgressRecoversPanic(t *testing.T) {
	fs := newFake()
	fs.panicAt = 1

	err := runWithTimeout(t, New(fs, particles.New(), WithPollInterval(time.Millisecond)), 10)
	if err == nil {
		t.Fatal("expected an error from a panicking stepper")
	}
	if got := simerr.CodeOf(err); got != simerr.ConcurrencyFailure {
		t.Errorf("CodeOf = %s, want %s", got, simerr.ConcurrencyFailure)
	}
}

func TestRunWithProgressZeroSteps(t *testing.T) {
	rec := &recorder{}
	if err := New(newFake(), particles.New(), WithReporter(rec)).RunWithProgress(context.Background(), 0, 0.01); err != nil {
		t.Fatalf("RunWithProgress: %v", err)
	}
	if len(rec.reports) != 0 {
		t.Errorf("expected no reports, got %d", len(rec.reports))
	}
	if len(rec.finishes) != 1 {
		t.Errorf("expected one Finish, got %d", len(rec.finishes))
	}
}

func TestWithPollIntervalIgnoresNonPositive(t *testing.T) {
	r := New(newFake(), particles.New(), WithPollInterval(0))
	if r.poll != DefaultPollInterval {
		t.Errorf("poll = %v, want %v", r.poll, DefaultPollInterval)
	}
}

func TestRunTwoParticlesEndToEnd(t *testing.T) {
	sys := particles.New()
	sys.Add(vec3.New(0, 0, 0), vec3.Zero, 1)
	sys.Add(vec3.New(2, 0, 0), vec3.Zero, 1)

	r := New(integrator.NewYoshida(force.New(force.WithWorkers(2))), sys, WithPollInterval(time.Millisecond))
	if err := r.RunWithProgress(context.Background(), 100, 0.001); err != nil {
		t.Fatalf("RunWithProgress: %v", err)
	}

	v := sys.Velocities()
	if !(v[0].X > 0 && v[1].X < 0) {
		t.Errorf("particles should approach each other, got velocities %v", v)
	}
	if v[0].X+v[1].X != 0 {
		t.Errorf("velocities not equal and opposite: %v", v)
	}
}
