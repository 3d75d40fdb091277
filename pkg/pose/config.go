package pose

import (
	"fmt"
	"time"
)

// GateConfig holds the landmark quality thresholds.
type GateConfig struct {
	EyeSymmetryMin float64 // min/max eye width ratio below which a frame is rejected

	CheckEyebrow       bool
	EyebrowSymmetryMin float64 // min/max brow-to-lid height ratio

	CheckCheek    bool
	CheekDepthMax float64 // max |left.z - right.z| between cheeks

	CheckNose     bool
	NoseOffsetMax float64 // max nose tip offset from face centre, as a fraction of face width
}

// GeometryConfig holds the constants of the pose estimator.
type GeometryConfig struct {
	NoseHeightFactor     float64 // share of bridge-to-bottom nose height added to position.y
	EyebrowOffsetFactor  float64 // share of brow-to-eye offset added to position.y
	BaseDistanceFraction float64 // reference distance as a fraction of image width
	DepthScale           float64 // multiplier applied to position.z
	FaceWidthWeight      float64 // temple span weight in the base scale
	EyebrowWidthWeight   float64 // brow span weight in the base scale
	ScaleReference       float64 // divisor normalising the base scale
	ScaleYRatio          float64 // scale.y as a fraction of scale.x
	ScaleZRatio          float64 // scale.z as a fraction of scale.x
	MinDenominator       float64 // smallest usable |denominator| in pixels
}

// FilterConfig holds the Kalman noise terms. Both matrices are diagonal.
type FilterConfig struct {
	ProcessNoise     float64 // Q diagonal
	MeasurementNoise float64 // R diagonal
}

// RecoveryConfig bounds how long a stale pose may stand in for a detection.
// A zero RecoveryDelay disables the time guard; a zero
// MaxConsecutiveFailures disables fallback entirely.
type RecoveryConfig struct {
	MaxConsecutiveFailures int
	RecoveryDelay          time.Duration
}

// Config groups the tunable surface of a Processor.
type Config struct {
	Gate     GateConfig
	Geometry GeometryConfig
	Filter   FilterConfig
	Recovery RecoveryConfig
}

// DefaultGeometryConfig returns the reference estimator constants.
func DefaultGeometryConfig() GeometryConfig {
	return GeometryConfig{
		NoseHeightFactor:     0.2,
		EyebrowOffsetFactor:  0.3,
		BaseDistanceFraction: 0.2,
		DepthScale:           100,
		FaceWidthWeight:      0.2,
		EyebrowWidthWeight:   0.1,
		ScaleReference:       100,
		ScaleYRatio:          0.4,
		ScaleZRatio:          0.6,
		MinDenominator:       1e-6,
	}
}

// DefaultConfig returns the reference tuning: eye symmetry only, three
// frames or 300ms of fallback.
func DefaultConfig() Config {
	return Config{
		Gate: GateConfig{
			EyeSymmetryMin:     0.2,
			EyebrowSymmetryMin: 0.5,
			CheekDepthMax:      0.1,
			NoseOffsetMax:      0.35,
		},
		Geometry: DefaultGeometryConfig(),
		Filter: FilterConfig{
			ProcessNoise:     0.01,
			MeasurementNoise: 0.01,
		},
		Recovery: RecoveryConfig{
			MaxConsecutiveFailures: 3,
			RecoveryDelay:          300 * time.Millisecond,
		},
	}
}

// StrictConfig rejects more frames and tolerates a single missed frame.
func StrictConfig() Config {
	cfg := DefaultConfig()
	cfg.Gate.EyeSymmetryMin = 0.5
	cfg.Gate.CheckEyebrow = true
	cfg.Gate.CheckCheek = true
	cfg.Gate.CheckNose = true
	cfg.Recovery.MaxConsecutiveFailures = 1
	cfg.Recovery.RecoveryDelay = 100 * time.Millisecond
	return cfg
}

// PermissiveConfig favours continuity: loose symmetry, many fallback frames
// and no time bound.
func PermissiveConfig() Config {
	cfg := DefaultConfig()
	cfg.Gate.EyeSymmetryMin = 0.1
	cfg.Filter.MeasurementNoise = 0.05
	cfg.Recovery.MaxConsecutiveFailures = 10
	cfg.Recovery.RecoveryDelay = 0
	return cfg
}

// ConfigByName resolves a preset name.
func ConfigByName(name string) (Config, error) {
	switch name {
	case "", "default":
		return DefaultConfig(), nil
	case "strict":
		return StrictConfig(), nil
	case "permissive":
		return PermissiveConfig(), nil
	default:
		return Config{}, fmt.Errorf("%w: unknown preset %q", ErrInvalidConfig, name)
	}
}

// Validate rejects configurations the engine cannot run with.
func (c Config) Validate() error {
	switch {
	case c.Gate.EyeSymmetryMin < 0 || c.Gate.EyeSymmetryMin > 1:
		return fmt.Errorf("%w: eye symmetry threshold %v outside [0,1]", ErrInvalidConfig, c.Gate.EyeSymmetryMin)
	case c.Gate.CheckEyebrow && (c.Gate.EyebrowSymmetryMin < 0 || c.Gate.EyebrowSymmetryMin > 1):
		return fmt.Errorf("%w: eyebrow symmetry threshold %v outside [0,1]", ErrInvalidConfig, c.Gate.EyebrowSymmetryMin)
	case c.Gate.CheckCheek && c.Gate.CheekDepthMax <= 0:
		return fmt.Errorf("%w: cheek depth threshold must be positive", ErrInvalidConfig)
	case c.Gate.CheckNose && c.Gate.NoseOffsetMax <= 0:
		return fmt.Errorf("%w: nose offset threshold must be positive", ErrInvalidConfig)
	case c.Geometry.ScaleReference <= 0:
		return fmt.Errorf("%w: scale reference must be positive", ErrInvalidConfig)
	case c.Geometry.MinDenominator <= 0:
		return fmt.Errorf("%w: minimum denominator must be positive", ErrInvalidConfig)
	case c.Filter.ProcessNoise <= 0:
		return fmt.Errorf("%w: process noise must be positive", ErrInvalidConfig)
	case c.Filter.MeasurementNoise <= 0:
		return fmt.Errorf("%w: measurement noise must be positive", ErrInvalidConfig)
	case c.Recovery.MaxConsecutiveFailures < 0:
		return fmt.Errorf("%w: max consecutive failures must not be negative", ErrInvalidConfig)
	case c.Recovery.RecoveryDelay < 0:
		return fmt.Errorf("%w: recovery delay must not be negative", ErrInvalidConfig)
	}
	return nil
}
