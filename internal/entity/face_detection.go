package entity

import (
	"time"

	"OpticalFactory/pkg/pose"
)

// LandmarkDetectionResult is the landmark detector's reply for one image.
// Landmarks are normalised to the image, with z relative to face depth.
type LandmarkDetectionResult struct {
	Detected    bool            `json:"detected"`
	Landmarks   []pose.Landmark `json:"landmarks"`
	ImageWidth  int             `json:"image_width"`
	ImageHeight int             `json:"image_height"`
	Confidence  float64         `json:"confidence,omitempty"`
	Error       string          `json:"error,omitempty"`
}

func (r *LandmarkDetectionResult) Frame(ts time.Time) pose.Frame {
	return pose.Frame{
		Detected:    r.Detected && len(r.Landmarks) > 0,
		Landmarks:   pose.LandmarkSet(r.Landmarks),
		ImageWidth:  r.ImageWidth,
		ImageHeight: r.ImageHeight,
		Timestamp:   ts,
	}
}
