package valueobjects

import (
	"math"

	pkgerrors "github.com/yash-217/yash.fun/pkg/errors"
)

// Position is a point in 3D space, in ångström.
type Position struct {
	x float64
	y float64
	z float64
}

// NewPosition3D creates a position, rejecting NaN and infinite coordinates.
func NewPosition3D(x, y, z float64) (Position, error) {
	if !isValidCoordinate(x) || !isValidCoordinate(y) || !isValidCoordinate(z) {
		return Position{}, pkgerrors.NewValidationError("invalid coordinates: must be finite numbers")
	}
	return Position{x: x, y: y, z: z}, nil
}

// Vec builds a position without validation. Exporters check IsFinite
// before writing, so imported or computed values may pass through here.
func Vec(x, y, z float64) Position {
	return Position{x: x, y: y, z: z}
}

// Origin returns the zero position.
func Origin() Position {
	return Position{}
}

// X returns the X coordinate
func (p Position) X() float64 {
	return p.x
}

// Y returns the Y coordinate
func (p Position) Y() float64 {
	return p.y
}

// Z returns the Z coordinate
func (p Position) Z() float64 {
	return p.z
}

// IsFinite reports whether all three coordinates are finite.
func (p Position) IsFinite() bool {
	return isValidCoordinate(p.x) && isValidCoordinate(p.y) && isValidCoordinate(p.z)
}

func (p Position) Add(o Position) Position {
	return Position{x: p.x + o.x, y: p.y + o.y, z: p.z + o.z}
}

func (p Position) Sub(o Position) Position {
	return Position{x: p.x - o.x, y: p.y - o.y, z: p.z - o.z}
}

func (p Position) Scale(f float64) Position {
	return Position{x: p.x * f, y: p.y * f, z: p.z * f}
}

// Norm is the Euclidean length of p treated as a vector.
func (p Position) Norm() float64 {
	return math.Sqrt(p.x*p.x + p.y*p.y + p.z*p.z)
}

// Unit returns p scaled to length 1. The second result is false for the zero vector.
func (p Position) Unit() (Position, bool) {
	n := p.Norm()
	if n == 0 || !isValidCoordinate(n) {
		return Position{}, false
	}
	return p.Scale(1 / n), true
}

// DistanceTo calculates the Euclidean distance to another position
func (p Position) DistanceTo(other Position) float64 {
	return p.Sub(other).Norm()
}

// Equals checks if two positions are equal
func (p Position) Equals(other Position) bool {
	const epsilon = 1e-9
	return math.Abs(p.x-other.x) < epsilon &&
		math.Abs(p.y-other.y) < epsilon &&
		math.Abs(p.z-other.z) < epsilon
}

// Translate moves the position by the given offsets
func (p Position) Translate(dx, dy, dz float64) (Position, error) {
	return NewPosition3D(p.x+dx, p.y+dy, p.z+dz)
}

// Centroid returns the per-axis mean of ps, or the origin for an empty slice.
func Centroid(ps []Position) Position {
	if len(ps) == 0 {
		return Position{}
	}
	var sum Position
	for _, p := range ps {
		sum = sum.Add(p)
	}
	return sum.Scale(1 / float64(len(ps)))
}

// isValidCoordinate checks if a coordinate is a valid finite number
func isValidCoordinate(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
