package pose

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
)

// Geometry derives a raw pose from a landmark set. It is a pure function of
// its input and configuration.
type Geometry struct {
	cfg GeometryConfig
}

// NewGeometry returns an estimator using cfg.
func NewGeometry(cfg GeometryConfig) *Geometry {
	return &Geometry{cfg: cfg}
}

var defaultGeometry = NewGeometry(DefaultGeometryConfig())

// Estimate derives a pose with the default estimator constants.
func Estimate(ls LandmarkSet, width, height int) (Pose, error) {
	return defaultGeometry.Estimate(ls, width, height)
}

// centroid averages the given landmarks. Callers ensure the indices exist.
func centroid(ls LandmarkSet, indices ...int) r3.Vector {
	var sum r3.Vector
	for _, i := range indices {
		sum = sum.Add(ls[i].Vec())
	}
	return sum.Mul(1 / float64(len(indices)))
}

// Estimate returns position in pixel units, rotation as pitch/yaw/roll in
// radians and an anisotropic scale. Degenerate inputs that would produce
// non-finite or non-positive values yield ErrDegenerateGeometry.
func (g *Geometry) Estimate(ls LandmarkSet, width, height int) (Pose, error) {
	if width <= 0 || height <= 0 {
		return Pose{}, fmt.Errorf("%w: %dx%d", ErrInvalidImageDimension, width, height)
	}
	if missing := ls.Missing(GeometryIndices...); len(missing) > 0 {
		return Pose{}, &CheckError{Check: CheckCompleteness, Missing: missing, Err: ErrIncompleteLandmarks}
	}

	c := g.cfg
	w, h := float64(width), float64(height)

	leftEye := centroid(ls, LeftEyeOuter, LeftEyeInner, LeftEyeTop, LeftEyeBottom)
	rightEye := centroid(ls, RightEyeOuter, RightEyeInner, RightEyeTop, RightEyeBottom)
	eyeMid := leftEye.Add(rightEye).Mul(0.5)

	bridge, tip, bottom := ls[NoseBridge], ls[NoseTip], ls[NoseBottom]
	lTemple, rTemple := ls[LeftTemple], ls[RightTemple]
	lBrowIn, rBrowIn := ls[LeftEyebrowInner], ls[RightEyebrowInner]
	lBrowOut, rBrowOut := ls[LeftEyebrowOuter], ls[RightEyebrowOuter]
	lCheek, rCheek := ls[LeftCheek], ls[RightCheek]

	var p Pose

	// Position.
	noseHeight := bridge.Y - bottom.Y
	browY := (lBrowIn.Y + rBrowIn.Y) / 2
	p.Position.X = eyeMid.X * w
	p.Position.Y = (eyeMid.Y + noseHeight*c.NoseHeightFactor + (browY-eyeMid.Y)*c.EyebrowOffsetFactor) * h

	eyeDistance := math.Abs(rightEye.X-leftEye.X) * w
	noseDepth := math.Abs(tip.Z - bridge.Z)
	cheekDepth := (lCheek.Z + rCheek.Z) / 2
	denom := eyeDistance * (1 + noseDepth + cheekDepth)
	if math.Abs(denom) < c.MinDenominator {
		return Pose{}, fmt.Errorf("%w: depth denominator %g", ErrDegenerateGeometry, denom)
	}
	p.Position.Z = -(w * c.BaseDistanceFraction / denom) * c.DepthScale

	// Rotation.
	nose := tip.Vec().Sub(bridge.Vec())
	p.Rotation.X = math.Atan2(nose.Y, math.Hypot(nose.X, nose.Z))

	depthDiff := ((rTemple.Z - lTemple.Z) + (ls[RightEyeOuter].Z - ls[LeftEyeOuter].Z) + (rCheek.Z - lCheek.Z)) / 3
	p.Rotation.Y = math.Atan2(depthDiff, rightEye.X-leftEye.X)

	eyes := rightEye.Sub(leftEye)
	temples := rTemple.Vec().Sub(lTemple.Vec())
	brows := rBrowIn.Vec().Sub(lBrowIn.Vec())
	p.Rotation.Z = math.Atan2((eyes.Y+temples.Y+brows.Y)/3, (eyes.X+temples.X+brows.X)/3)

	// Scale.
	eyeWidth := math.Abs(ls[RightEyeOuter].X-ls[LeftEyeOuter].X) * w
	faceWidth := math.Abs(temples.X) * w
	browWidth := math.Abs(rBrowOut.X-lBrowOut.X) * w
	base := (eyeWidth + faceWidth*c.FaceWidthWeight + browWidth*c.EyebrowWidthWeight) / c.ScaleReference
	if base <= 0 {
		return Pose{}, fmt.Errorf("%w: scale %g", ErrDegenerateGeometry, base)
	}
	p.Scale = Vector3{X: base, Y: base * c.ScaleYRatio, Z: base * c.ScaleZRatio}

	if !p.Finite() {
		return Pose{}, fmt.Errorf("%w: non-finite pose", ErrDegenerateGeometry)
	}
	return p, nil
}
