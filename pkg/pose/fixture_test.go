package pose

import (
	"math"
	"math/rand"
	"time"
)

// frontalFace returns a level, frontal face with the left eye centre at
// (0.3, 0.4), the right eye centre at (0.7, 0.4), the nose bridge at
// (0.5, 0.3, 0.05) and the nose tip at (0.5, 0.6, 0.1).
func frontalFace() LandmarkSet {
	ls := make(LandmarkSet, LandmarkCount)
	set := func(i int, x, y, z float64) { ls[i] = Landmark{X: x, Y: y, Z: z} }

	set(LeftEyeOuter, 0.25, 0.40, 0)
	set(LeftEyeInner, 0.35, 0.40, 0)
	set(LeftEyeTop, 0.30, 0.38, 0)
	set(LeftEyeBottom, 0.30, 0.42, 0)
	set(RightEyeInner, 0.65, 0.40, 0)
	set(RightEyeOuter, 0.75, 0.40, 0)
	set(RightEyeTop, 0.70, 0.38, 0)
	set(RightEyeBottom, 0.70, 0.42, 0)

	set(NoseBridge, 0.5, 0.30, 0.05)
	set(NoseTip, 0.5, 0.60, 0.10)
	set(NoseBottom, 0.5, 0.65, 0.08)

	set(LeftTemple, 0.15, 0.42, 0.3)
	set(RightTemple, 0.85, 0.42, 0.3)

	set(LeftEyebrowInner, 0.40, 0.32, 0)
	set(LeftEyebrowOuter, 0.20, 0.33, 0)
	set(RightEyebrowInner, 0.60, 0.32, 0)
	set(RightEyebrowOuter, 0.80, 0.33, 0)

	set(LeftCheek, 0.30, 0.55, 0.05)
	set(RightCheek, 0.70, 0.55, 0.05)

	set(FaceLeft, 0.10, 0.50, 0.2)
	set(FaceRight, 0.90, 0.50, 0.2)
	return ls
}

// transformFace scales the frontal face by s and rotates it in the image
// plane by theta around (cx, cy).
func transformFace(s, theta, cx, cy float64) LandmarkSet {
	base := frontalFace()
	out := make(LandmarkSet, len(base))
	sin, cos := math.Sincos(theta)
	for i, l := range base {
		dx, dy := (l.X-0.5)*s, (l.Y-0.4)*s
		out[i] = Landmark{
			X: cx + dx*cos - dy*sin,
			Y: cy + dx*sin + dy*cos,
			Z: l.Z,
		}
	}
	return out
}

// randomFace draws a plausible face: moderate scale, small roll, jittered
// depth.
func randomFace(rng *rand.Rand) (LandmarkSet, float64) {
	s := 0.5 + rng.Float64()*0.7
	theta := (rng.Float64() - 0.5) * 0.6
	cx := 0.35 + rng.Float64()*0.3
	cy := 0.35 + rng.Float64()*0.25
	ls := transformFace(s, theta, cx, cy)
	for i := range ls {
		ls[i].Z += (rng.Float64() - 0.5) * 0.04
	}
	return ls, theta
}

func frameOf(ls LandmarkSet) Frame {
	return Frame{Detected: true, Landmarks: ls, ImageWidth: 640, ImageHeight: 480}
}

// fakeClock advances only when told to.
type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }
