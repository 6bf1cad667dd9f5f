package valueobjects

import (
	"math"

	pkgerrors "github.com/yash-217/yash.fun/pkg/errors"
)

// Rotation is a unit quaternion describing a residue's orientation.
// Bonding never reads it; it only travels with the residue.
type Rotation struct {
	w, x, y, z float64
}

// IdentityRotation is the "no rotation" quaternion.
func IdentityRotation() Rotation {
	return Rotation{w: 1}
}

// NewRotation normalises the quaternion (w, x, y, z).
func NewRotation(w, x, y, z float64) (Rotation, error) {
	for _, v := range []float64{w, x, y, z} {
		if !isValidCoordinate(v) {
			return Rotation{}, pkgerrors.NewValidationError("invalid rotation: components must be finite numbers")
		}
	}
	n := math.Sqrt(w*w + x*x + y*y + z*z)
	if n == 0 {
		return Rotation{}, pkgerrors.NewValidationError("invalid rotation: zero quaternion")
	}
	return Rotation{w: w / n, x: x / n, y: y / n, z: z / n}, nil
}

func (r Rotation) W() float64 { return r.w }
func (r Rotation) X() float64 { return r.x }
func (r Rotation) Y() float64 { return r.y }
func (r Rotation) Z() float64 { return r.z }

// IsIdentity reports whether r leaves orientation unchanged.
func (r Rotation) IsIdentity() bool {
	const epsilon = 1e-9
	return math.Abs(math.Abs(r.w)-1) < epsilon &&
		math.Abs(r.x) < epsilon && math.Abs(r.y) < epsilon && math.Abs(r.z) < epsilon
}

// Components returns the quaternion as [w, x, y, z].
func (r Rotation) Components() [4]float64 {
	return [4]float64{r.w, r.x, r.y, r.z}
}
