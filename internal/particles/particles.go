// Package particles holds the data-oriented particle state. A particle has no
// identity of its own; particle i is row i across the aligned slices.
package particles

import (
	"fmt"

	"github.com/onnwee/particle-dynamics/internal/simerr"
	"github.com/onnwee/particle-dynamics/internal/vec3"
)

// Potential computes the external force acting on a particle at position p.
// Implementations may be called many times per step and must not retain p.
type Potential interface {
	Force(p vec3.Vec3) (vec3.Vec3, error)
}

// PotentialFunc adapts a function to the Potential interface.
type PotentialFunc func(p vec3.Vec3) (vec3.Vec3, error)

func (f PotentialFunc) Force(p vec3.Vec3) (vec3.Vec3, error) { return f(p) }

// PotentialFromPure adapts a function that cannot fail.
func PotentialFromPure(f func(vec3.Vec3) vec3.Vec3) Potential {
	return PotentialFunc(func(p vec3.Vec3) (vec3.Vec3, error) { return f(p), nil })
}

// System is an N-particle state container. It is not safe for concurrent
// mutation; reads via the accessors return copies.
type System struct {
	positions  []vec3.Vec3
	velocities []vec3.Vec3
	masses     []float64

	// borrowed, never owned
	potential Potential
}

// Snapshot is a deep copy of the particle state aligned by index.
type Snapshot struct {
	Positions  []vec3.Vec3 `json:"positions"`
	Velocities []vec3.Vec3 `json:"velocities"`
	Masses     []float64   `json:"masses"`
}

// Len returns the number of particles in the snapshot.
func (s Snapshot) Len() int { return len(s.Positions) }

// Validate checks the equal-length invariant.
func (s Snapshot) Validate() error {
	if len(s.Positions) != len(s.Velocities) || len(s.Positions) != len(s.Masses) {
		return simerr.New(simerr.InvalidState, fmt.Sprintf(
			"misaligned snapshot: %d positions, %d velocities, %d masses",
			len(s.Positions), len(s.Velocities), len(s.Masses),
		))
	}
	return nil
}

// New creates an empty system with no external potential.
func New() *System {
	return &System{}
}

// Add appends a particle and returns the new particle count.
func (s *System) Add(x, v vec3.Vec3, m float64) int {
	s.positions = append(s.positions, x)
	s.velocities = append(s.velocities, v)
	s.masses = append(s.masses, m)
	return len(s.positions)
}

// SetPotential installs an external potential. A nil p clears it.
func (s *System) SetPotential(p Potential) {
	s.potential = p
}

// ClearPotential removes the external potential.
func (s *System) ClearPotential() {
	s.potential = nil
}

// HasPotential reports whether an external potential is set.
func (s *System) HasPotential() bool {
	return s.potential != nil
}

// Potential returns the external potential, or nil.
func (s *System) Potential() Potential {
	return s.potential
}

// Len returns the number of particles.
func (s *System) Len() int {
	return len(s.positions)
}

// Positions returns a copy of all positions in insertion order.
func (s *System) Positions() []vec3.Vec3 {
	return cloneVecs(s.positions)
}

// Velocities returns a copy of all velocities in insertion order.
func (s *System) Velocities() []vec3.Vec3 {
	return cloneVecs(s.velocities)
}

// Masses returns a copy of all masses in insertion order.
func (s *System) Masses() []float64 {
	out := make([]float64, len(s.masses))
	copy(out, s.masses)
	return out
}

// Snapshot returns a deep copy of the current state.
func (s *System) Snapshot() Snapshot {
	return Snapshot{
		Positions:  s.Positions(),
		Velocities: s.Velocities(),
		Masses:     s.Masses(),
	}
}

// Restore replaces the particle state with snap. The external potential is
// left untouched.
func (s *System) Restore(snap Snapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}
	s.positions = cloneVecs(snap.Positions)
	s.velocities = cloneVecs(snap.Velocities)
	s.masses = append([]float64(nil), snap.Masses...)
	return nil
}

// Reset removes every particle.
func (s *System) Reset() {
	s.positions = nil
	s.velocities = nil
	s.masses = nil
}

// MutableState exposes the live slices for in-place integration. Callers
// may overwrite elements but must not append, truncate or retain them.
func (s *System) MutableState() (positions, velocities []vec3.Vec3, masses []float64) {
	return s.positions, s.velocities, s.masses
}

func cloneVecs(in []vec3.Vec3) []vec3.Vec3 {
	out := make([]vec3.Vec3, len(in))
	copy(out, in)
	return out
}
