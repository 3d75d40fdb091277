// Package pose turns per-frame face landmarks into a stable eyewear pose.
//
// A Processor owns one tracking session: it gates each landmark set, derives a
// raw pose geometrically, smooths the position with a constant-velocity Kalman
// filter and bridges short detection gaps with the last stable pose.
package pose

import (
	"math"

	"github.com/golang/geo/r3"
)

// Face mesh landmark indices. They are part of the contract with the
// landmark detector and must be revalidated whenever the detector changes.
const (
	LeftEyeOuter  = 33
	LeftEyeInner  = 133
	RightEyeOuter = 263
	RightEyeInner = 362

	LeftEyeTop     = 159
	LeftEyeBottom  = 145
	RightEyeTop    = 386
	RightEyeBottom = 374

	NoseBridge = 168
	NoseTip    = 1
	NoseBottom = 2

	// Left and right are image sides, as for the eyes above.
	LeftTemple  = 227
	RightTemple = 447

	LeftEyebrowInner  = 105
	LeftEyebrowOuter  = 46
	RightEyebrowInner = 334
	RightEyebrowOuter = 276

	LeftCheek  = 123
	RightCheek = 352

	FaceLeft  = 234
	FaceRight = 454

	// LandmarkCount is the size of a refined face mesh. A 468 point mesh is
	// also usable since every index above is below 468.
	LandmarkCount = 478
)

// GeometryIndices lists every landmark the geometry estimator reads.
var GeometryIndices = []int{
	LeftEyeOuter, LeftEyeInner, RightEyeOuter, RightEyeInner,
	LeftEyeTop, LeftEyeBottom, RightEyeTop, RightEyeBottom,
	NoseBridge, NoseTip, NoseBottom,
	LeftTemple, RightTemple,
	LeftEyebrowInner, LeftEyebrowOuter, RightEyebrowInner, RightEyebrowOuter,
	LeftCheek, RightCheek,
}

// Landmark is one detector point. X and Y are normalized to the image size,
// Z is a relative depth with no fixed unit.
type Landmark struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Vec returns the landmark as an r3 vector.
func (l Landmark) Vec() r3.Vector {
	return r3.Vector{X: l.X, Y: l.Y, Z: l.Z}
}

func (l Landmark) finite() bool {
	return isFinite(l.X) && isFinite(l.Y) && isFinite(l.Z)
}

// LandmarkSet is an ordered landmark list where the index is the semantic
// identity of each point.
type LandmarkSet []Landmark

// At returns the landmark at i and whether it is usable: in bounds and with
// finite coordinates.
func (ls LandmarkSet) At(i int) (Landmark, bool) {
	if i < 0 || i >= len(ls) {
		return Landmark{}, false
	}
	l := ls[i]
	if !l.finite() {
		return Landmark{}, false
	}
	return l, true
}

// Has reports whether every index is usable.
func (ls LandmarkSet) Has(indices ...int) bool {
	for _, i := range indices {
		if _, ok := ls.At(i); !ok {
			return false
		}
	}
	return true
}

// Missing returns the indices that are not usable, in the given order.
func (ls LandmarkSet) Missing(indices ...int) []int {
	var missing []int
	for _, i := range indices {
		if _, ok := ls.At(i); !ok {
			missing = append(missing, i)
		}
	}
	return missing
}

// Vector3 is a JSON friendly 3D value used for pose components.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func vector3(v r3.Vector) Vector3 {
	return Vector3{X: v.X, Y: v.Y, Z: v.Z}
}

// Vec returns v as an r3 vector.
func (v Vector3) Vec() r3.Vector {
	return r3.Vector{X: v.X, Y: v.Y, Z: v.Z}
}

// Finite reports whether all components are finite.
func (v Vector3) Finite() bool {
	return isFinite(v.X) && isFinite(v.Y) && isFinite(v.Z)
}

// Pose places the overlay object. Position is in pixel-scale units, rotation
// holds pitch (X), yaw (Y) and roll (Z) in radians, scale is anisotropic.
type Pose struct {
	Position Vector3 `json:"position"`
	Rotation Vector3 `json:"rotation"`
	Scale    Vector3 `json:"scale"`
}

// Finite reports whether all nine scalars are finite.
func (p Pose) Finite() bool {
	return p.Position.Finite() && p.Rotation.Finite() && p.Scale.Finite()
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
