// Package posetest provides landmark fixtures for tests of packages built on
// pose.
package posetest

import "OpticalFactory/pkg/pose"

const (
	ImageWidth  = 640
	ImageHeight = 480
)

// FrontalFace returns a full mesh of a level, frontal face centred in the
// image. Only the indices the engine reads carry coordinates.
func FrontalFace() pose.LandmarkSet {
	ls := make(pose.LandmarkSet, pose.LandmarkCount)
	set := func(i int, x, y, z float64) { ls[i] = pose.Landmark{X: x, Y: y, Z: z} }

	set(pose.LeftEyeOuter, 0.25, 0.40, 0)
	set(pose.LeftEyeInner, 0.35, 0.40, 0)
	set(pose.LeftEyeTop, 0.30, 0.38, 0)
	set(pose.LeftEyeBottom, 0.30, 0.42, 0)
	set(pose.RightEyeInner, 0.65, 0.40, 0)
	set(pose.RightEyeOuter, 0.75, 0.40, 0)
	set(pose.RightEyeTop, 0.70, 0.38, 0)
	set(pose.RightEyeBottom, 0.70, 0.42, 0)

	set(pose.NoseBridge, 0.5, 0.30, 0.05)
	set(pose.NoseTip, 0.5, 0.60, 0.10)
	set(pose.NoseBottom, 0.5, 0.65, 0.08)

	set(pose.LeftTemple, 0.15, 0.42, 0.3)
	set(pose.RightTemple, 0.85, 0.42, 0.3)

	set(pose.LeftEyebrowInner, 0.40, 0.32, 0)
	set(pose.LeftEyebrowOuter, 0.20, 0.33, 0)
	set(pose.RightEyebrowInner, 0.60, 0.32, 0)
	set(pose.RightEyebrowOuter, 0.80, 0.33, 0)

	set(pose.LeftCheek, 0.30, 0.55, 0.05)
	set(pose.RightCheek, 0.70, 0.55, 0.05)

	set(pose.FaceLeft, 0.10, 0.50, 0.2)
	set(pose.FaceRight, 0.90, 0.50, 0.2)
	return ls
}

// AsymmetricFace fails the eye symmetry check.
func AsymmetricFace() pose.LandmarkSet {
	ls := FrontalFace()
	ls[pose.RightEyeInner].X = 0.745
	return ls
}

// Detected wraps ls in a frame of the fixture image size.
func Detected(ls pose.LandmarkSet) pose.Frame {
	return pose.Frame{Detected: true, Landmarks: ls, ImageWidth: ImageWidth, ImageHeight: ImageHeight}
}

// Missed is a frame in which the detector found no face.
func Missed() pose.Frame {
	return pose.Frame{ImageWidth: ImageWidth, ImageHeight: ImageHeight}
}
