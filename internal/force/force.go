// Package force evaluates the pairwise Lennard-Jones-type force field plus an
// optional external potential for every particle.
package force

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/onnwee/particle-dynamics/internal/metrics"
	"github.com/onnwee/particle-dynamics/internal/numeric"
	"github.com/onnwee/particle-dynamics/internal/particles"
	"github.com/onnwee/particle-dynamics/internal/simerr"
	"github.com/onnwee/particle-dynamics/internal/tracing"
	"github.com/onnwee/particle-dynamics/internal/vec3"
)

// ErrMalformedPotential is returned when the external potential produces a
// non-finite force.
var ErrMalformedPotential = errors.New("external potential returned a non-finite force")

// Params are the non-dimensionalized potential strength constants.
type Params struct {
	Attracting float64
	Repelling  float64
	// Cap bounds the scalar force magnitude to [-Cap, Cap].
	Cap float64
}

// DefaultParams returns unit strengths and a force cap of 3.
func DefaultParams() Params {
	return Params{Attracting: 1.0, Repelling: 1.0, Cap: 3.0}
}

// Pairwise returns the force on a particle at pi exerted by a particle at pj.
// Coincident positions, including i == j, contribute the zero vector.
func Pairwise(pi, pj vec3.Vec3, p Params) vec3.Vec3 {
	r := pj.Sub(pi)
	rsq := r.Norm2()
	if numeric.ApproxEqual(rsq, 0) {
		return vec3.Zero
	}

	r6 := rsq * rsq * rsq
	f := p.Attracting/r6 - p.Repelling/(r6*r6)
	f = numeric.Clamp(f, -p.Cap, p.Cap)

	// rsq is non-zero here, so the norm is too
	return r.Div(r.Norm()).Scale(f)
}

// PotentialError reports a failure of the external potential for one particle.
type PotentialError struct {
	Index    int
	Position vec3.Vec3
	Err      error
}

func (e *PotentialError) Error() string {
	return fmt.Sprintf("external potential failed for particle %d at %v: %v", e.Index, e.Position, e.Err)
}

func (e *PotentialError) Unwrap() error { return e.Err }

// Code classifies the error for the run boundary.
func (e *PotentialError) Code() simerr.ErrorCode { return simerr.ExternalPotential }

// Evaluator computes total forces with a fixed-size worker pool.
type Evaluator struct {
	params  Params
	workers int
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithParams overrides the potential constants.
func WithParams(p Params) Option {
	return func(e *Evaluator) { e.params = p }
}

// WithWorkers sets the pool size. Values below 1 select GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(e *Evaluator) { e.workers = n }
}

// New creates an evaluator with default params and GOMAXPROCS workers.
func New(opts ...Option) *Evaluator {
	e := &Evaluator{params: DefaultParams()}
	for _, opt := range opts {
		opt(e)
	}
	if e.workers < 1 {
		e.workers = runtime.GOMAXPROCS(0)
	}
	return e
}

// Params returns the potential constants in use.
func (e *Evaluator) Params() Params { return e.params }

// Workers returns the pool size.
func (e *Evaluator) Workers() int { return e.workers }

// Forces returns the total force on every particle. The external potential
// is evaluated sequentially on the calling goroutine, one call per particle;
// the pairwise sums are fanned out across the worker pool. On error no
// forces are returned.
//
// The result does not depend on the number of workers: each particle's sum
// is reduced in index order by a single goroutine.
func (e *Evaluator) Forces(ctx context.Context, positions []vec3.Vec3, potential particles.Potential) (forces []vec3.Vec3, err error) {
	_, span := tracing.StartSpan(ctx, "force.Forces",
		tracing.Particles(len(positions)),
		tracing.AttrWorkers.Int(e.workers),
	)
	defer span.End()

	start := time.Now()
	defer func() {
		metrics.ForceEvaluationDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			span.RecordError(err)
			metrics.ForceEvaluations.WithLabelValues("failed").Inc()
		} else {
			metrics.ForceEvaluations.WithLabelValues("success").Inc()
		}
	}()

	n := len(positions)
	external, err := externalForces(positions, potential)
	if err != nil {
		return nil, err
	}

	forces = make([]vec3.Vec3, n)
	if n == 0 {
		return forces, nil
	}

	blocks := e.workers
	if blocks > n {
		blocks = n
	}
	size := (n + blocks - 1) / blocks

	var g errgroup.Group
	g.SetLimit(e.workers)
	for lo := 0; lo < n; lo += size {
		lo, hi := lo, min(lo+size, n)
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = simerr.Recovered("force worker", r)
				}
			}()
			for i := lo; i < hi; i++ {
				forces[i] = e.total(i, positions, external)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return forces, nil
}

// total sums the pairwise forces on particle i in index order, then adds
// its external contribution.
func (e *Evaluator) total(i int, positions []vec3.Vec3, external []vec3.Vec3) vec3.Vec3 {
	pi := positions[i]
	acc := vec3.Zero
	for _, pj := range positions {
		acc = acc.Add(Pairwise(pi, pj, e.params))
	}
	if external != nil {
		acc = acc.Add(external[i])
	}
	return acc
}

// externalForces evaluates the potential once per particle. A nil potential
// yields a nil slice.
func externalForces(positions []vec3.Vec3, potential particles.Potential) ([]vec3.Vec3, error) {
	if potential == nil {
		return nil, nil
	}
	out := make([]vec3.Vec3, len(positions))
	for i, p := range positions {
		f, err := potential.Force(p)
		if err != nil {
			return nil, &PotentialError{Index: i, Position: p, Err: err}
		}
		if !f.IsFinite() {
			return nil, &PotentialError{Index: i, Position: p, Err: ErrMalformedPotential}
		}
		out[i] = f
	}
	return out, nil
}
