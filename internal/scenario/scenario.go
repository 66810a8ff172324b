// Package scenario builds initial conditions and external potentials for
// simulation runs.
package scenario

import (
	"context"
	"errors"
	"math/rand"

	"github.com/onnwee/particle-dynamics/internal/logger"
	"github.com/onnwee/particle-dynamics/internal/particles"
	"github.com/onnwee/particle-dynamics/internal/vec3"
)

// GaussianCloud adds n unit-mass particles to sys. Positions and velocities
// are drawn from zero-mean normal distributions in the xy plane with the
// given standard deviations; z components are zero.
func GaussianCloud(sys *particles.System, n int, rng *rand.Rand, posSigma, velSigma float64) {
	for i := 0; i < n; i++ {
		x := vec3.New(rng.NormFloat64()*posSigma, rng.NormFloat64()*posSigma, 0)
		v := vec3.New(rng.NormFloat64()*velSigma, rng.NormFloat64()*velSigma, 0)
		sys.Add(x, v, 1)
	}
}

// HarmonicTrap is an anisotropic confining potential. The force at p points
// along p with magnitude (Kx x² + Ky y² + Kz z²)/2, towards the origin.
type HarmonicTrap struct {
	Kx, Ky, Kz float64
}

// DefaultTrap returns the trap used by the default run.
func DefaultTrap() HarmonicTrap {
	return HarmonicTrap{Kx: 0.01, Ky: 0.03, Kz: 0.01}
}

// Force implements particles.Potential. The force at the origin is zero.
func (h HarmonicTrap) Force(p vec3.Vec3) (vec3.Vec3, error) {
	u, err := p.Unit()
	if errors.Is(err, vec3.ErrZeroVector) {
		return vec3.Zero, nil
	}
	if err != nil {
		return vec3.Zero, err
	}
	factor := -(h.Kx*p.X*p.X + h.Ky*p.Y*p.Y + h.Kz*p.Z*p.Z) / 2
	return u.Scale(factor), nil
}

// ReleaseAfter returns a per-step hook that clears the external potential
// once simulated time (step+1)*h exceeds release.
func ReleaseAfter(release, h float64) func(context.Context, uint64, *particles.System) error {
	return func(_ context.Context, step uint64, sys *particles.System) error {
		if sys.HasPotential() && float64(step+1)*h > release {
			sys.ClearPotential()
			logger.WithComponent("scenario").Info("Released external potential",
				"step", step, "time", float64(step+1)*h)
		}
		return nil
	}
}
