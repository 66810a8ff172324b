// Package diagnostics computes conserved-quantity summaries of a particle
// system for logging and invariant checks.
package diagnostics

import (
	"gonum.org/v1/gonum/floats"

	"github.com/onnwee/particle-dynamics/internal/particles"
	"github.com/onnwee/particle-dynamics/internal/vec3"
)

// Summary holds aggregate quantities of one snapshot.
type Summary struct {
	Particles     int       `json:"particles"`
	TotalMass     float64   `json:"total_mass"`
	KineticEnergy float64   `json:"kinetic_energy"`
	Momentum      vec3.Vec3 `json:"momentum"`
	CenterOfMass  vec3.Vec3 `json:"center_of_mass"`
}

// KineticEnergy returns ½ Σ mᵢ|vᵢ|².
func KineticEnergy(snap particles.Snapshot) float64 {
	if snap.Len() == 0 {
		return 0
	}
	speeds2 := make([]float64, snap.Len())
	for i, v := range snap.Velocities {
		speeds2[i] = v.Norm2()
	}
	return 0.5 * floats.Dot(snap.Masses, speeds2)
}

// Momentum returns Σ mᵢvᵢ.
func Momentum(snap particles.Snapshot) vec3.Vec3 {
	return weightedSum(snap.Masses, snap.Velocities)
}

// VelocitySum returns Σ vᵢ, the quantity conserved by mass-independent
// dynamics.
func VelocitySum(snap particles.Snapshot) vec3.Vec3 {
	return vec3.Sum(snap.Velocities...)
}

// CenterOfMass returns Σ mᵢxᵢ / Σ mᵢ, or the zero vector for a massless
// system.
func CenterOfMass(snap particles.Snapshot) vec3.Vec3 {
	total := floats.Sum(snap.Masses)
	if total == 0 {
		return vec3.Zero
	}
	return weightedSum(snap.Masses, snap.Positions).Div(total)
}

// Summarize computes every diagnostic for snap.
func Summarize(snap particles.Snapshot) Summary {
	return Summary{
		Particles:     snap.Len(),
		TotalMass:     floats.Sum(snap.Masses),
		KineticEnergy: KineticEnergy(snap),
		Momentum:      Momentum(snap),
		CenterOfMass:  CenterOfMass(snap),
	}
}

func weightedSum(w []float64, vs []vec3.Vec3) vec3.Vec3 {
	n := len(vs)
	if n == 0 {
		return vec3.Zero
	}
	xs, ys, zs := make([]float64, n), make([]float64, n), make([]float64, n)
	for i, v := range vs {
		xs[i], ys[i], zs[i] = v.X, v.Y, v.Z
	}
	return vec3.New(floats.Dot(w, xs), floats.Dot(w, ys), floats.Dot(w, zs))
}
