package vec3

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// ErrZeroVector is returned when normalizing a vector of zero magnitude.
var ErrZeroVector = errors.New("cannot normalize zero vector")

// Vec3 is an immutable 3D vector. All operations return new values.
type Vec3 struct {
	X, Y, Z float64
}

// Zero is the additive identity.
var Zero = Vec3{}

// New creates a vector from its components.
func New(x, y, z float64) Vec3 {
	return Vec3{X: x, Y: y, Z: z}
}

// FromR3 converts a gonum vector.
func FromR3(v r3.Vec) Vec3 { return Vec3(v) }

// R3 converts to a gonum vector.
func (v Vec3) R3() r3.Vec { return r3.Vec(v) }

func (v Vec3) Add(u Vec3) Vec3 { return Vec3(r3.Add(r3.Vec(v), r3.Vec(u))) }

func (v Vec3) Sub(u Vec3) Vec3 { return Vec3(r3.Sub(r3.Vec(v), r3.Vec(u))) }

func (v Vec3) Neg() Vec3 { return Vec3{-v.X, -v.Y, -v.Z} }

// Scale multiplies every component by s.
func (v Vec3) Scale(s float64) Vec3 { return Vec3(r3.Scale(s, r3.Vec(v))) }

// Div divides every component by s. Division by zero follows IEEE-754.
func (v Vec3) Div(s float64) Vec3 { return Vec3{v.X / s, v.Y / s, v.Z / s} }

// Dot returns the scalar product.
func (v Vec3) Dot(u Vec3) float64 { return r3.Dot(r3.Vec(v), r3.Vec(u)) }

// Norm2 returns the squared magnitude.
func (v Vec3) Norm2() float64 { return r3.Norm2(r3.Vec(v)) }

// Norm returns the magnitude.
func (v Vec3) Norm() float64 { return r3.Norm(r3.Vec(v)) }

// Unit returns v scaled to unit length, or ErrZeroVector when v has zero
// magnitude.
func (v Vec3) Unit() (Vec3, error) {
	n := v.Norm()
	if n == 0 {
		return Zero, ErrZeroVector
	}
	return v.Div(n), nil
}

// IsFinite reports whether no component is NaN or infinite.
func (v Vec3) IsFinite() bool {
	return isFinite(v.X) && isFinite(v.Y) && isFinite(v.Z)
}

func isFinite(f float64) bool {
	return f-f == 0
}

func (v Vec3) String() string {
	return fmt.Sprintf("(%g, %g, %g)", v.X, v.Y, v.Z)
}

// Sum adds vs left to right starting from the zero vector.
func Sum(vs ...Vec3) Vec3 {
	acc := Zero
	for _, v := range vs {
		acc = acc.Add(v)
	}
	return acc
}
