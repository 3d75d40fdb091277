package pose

import (
	"errors"
	"fmt"
)

var (
	ErrIncompleteLandmarks   = errors.New("incomplete landmarks")
	ErrAsymmetricDetection   = errors.New("asymmetric detection")
	ErrPoorQuality           = errors.New("poor detection quality")
	ErrNoFaceDetected        = errors.New("no face detected")
	ErrDegenerateGeometry    = errors.New("degenerate geometry")
	ErrDetectionFailure      = errors.New("detection failure")
	ErrSingularInnovation    = errors.New("singular innovation covariance")
	ErrNonFiniteMeasurement  = errors.New("non-finite measurement")
	ErrInvalidConfig         = errors.New("invalid pose config")
	ErrInvalidImageDimension = errors.New("invalid image dimension")
)

// CheckError describes a quality check that evaluated and failed.
type CheckError struct {
	Check     string
	Value     float64
	Threshold float64
	Missing   []int
	Err       error
}

func (e *CheckError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("%s: %v (missing landmarks %v)", e.Check, e.Err, e.Missing)
	}
	return fmt.Sprintf("%s: %v (value %.4f, threshold %.4f)", e.Check, e.Err, e.Value, e.Threshold)
}

func (e *CheckError) Unwrap() error {
	return e.Err
}

// FailureKind is the outward classification of a failed frame.
type FailureKind string

const (
	FailureNoFace      FailureKind = "NO_FACE_DETECTED"
	FailurePoorQuality FailureKind = "POOR_DETECTION_QUALITY"
)

// FrameError is returned by Processor.Process when a frame cannot produce a
// pose and the recovery window is exhausted. It matches ErrDetectionFailure
// and the underlying cause with errors.Is.
type FrameError struct {
	Kind     FailureKind
	Failures int
	Cause    error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("%v after %d consecutive failures: %v", ErrDetectionFailure, e.Failures, e.Cause)
}

func (e *FrameError) Unwrap() []error {
	return []error{ErrDetectionFailure, e.Cause}
}

// Check returns the name of the quality check that rejected the frame, if any.
func (e *FrameError) Check() string {
	var ce *CheckError
	if errors.As(e.Cause, &ce) {
		return ce.Check
	}
	return ""
}

func failureKind(cause error) FailureKind {
	if errors.Is(cause, ErrNoFaceDetected) {
		return FailureNoFace
	}
	return FailurePoorQuality
}
