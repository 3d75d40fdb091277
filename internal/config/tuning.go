package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"OpticalFactory/internal/api/tryon"
	"OpticalFactory/pkg/pose"
)

// LoadTuning resolves POSE_PRESET and applies the POSE_* overrides on top of
// it. The result is validated.
func LoadTuning() (pose.Config, error) {
	cfg, err := pose.ConfigByName(os.Getenv("POSE_PRESET"))
	if err != nil {
		return pose.Config{}, err
	}

	var errs []error
	floatEnv(&errs, "POSE_EYE_SYMMETRY_MIN", &cfg.Gate.EyeSymmetryMin)
	floatEnv(&errs, "POSE_EYEBROW_SYMMETRY_MIN", &cfg.Gate.EyebrowSymmetryMin)
	floatEnv(&errs, "POSE_CHEEK_DEPTH_MAX", &cfg.Gate.CheekDepthMax)
	floatEnv(&errs, "POSE_NOSE_OFFSET_MAX", &cfg.Gate.NoseOffsetMax)
	boolEnv(&errs, "POSE_CHECK_EYEBROW", &cfg.Gate.CheckEyebrow)
	boolEnv(&errs, "POSE_CHECK_CHEEK", &cfg.Gate.CheckCheek)
	boolEnv(&errs, "POSE_CHECK_NOSE", &cfg.Gate.CheckNose)
	floatEnv(&errs, "POSE_PROCESS_NOISE", &cfg.Filter.ProcessNoise)
	floatEnv(&errs, "POSE_MEASUREMENT_NOISE", &cfg.Filter.MeasurementNoise)
	intEnv(&errs, "POSE_MAX_FAILURES", &cfg.Recovery.MaxConsecutiveFailures)
	durationEnv(&errs, "POSE_RECOVERY_DELAY", &cfg.Recovery.RecoveryDelay)
	if len(errs) > 0 {
		return pose.Config{}, errs[0]
	}

	if err := cfg.Validate(); err != nil {
		return pose.Config{}, err
	}
	return cfg, nil
}

// LoadSessionSettings reads the session service limits, falling back to
// tryon.DefaultSettings for anything unset.
func LoadSessionSettings() (tryon.Settings, error) {
	s := tryon.DefaultSettings()
	if preset := os.Getenv("POSE_PRESET"); preset != "" {
		s.Preset = preset
	}

	var errs []error
	durationEnv(&errs, "SESSION_IDLE_TIMEOUT", &s.IdleTimeout)
	intEnv(&errs, "SESSION_MAX", &s.MaxSessions)
	intEnv(&errs, "SNAPSHOT_EVERY", &s.SnapshotEvery)
	durationEnv(&errs, "SNAPSHOT_TTL", &s.SnapshotTTL)
	boolEnv(&errs, "TRACE_EXPORT", &s.TraceExport)
	intEnv(&errs, "TRACE_MAX_FRAMES", &s.TraceMaxFrames)
	if len(errs) > 0 {
		return tryon.Settings{}, errs[0]
	}

	switch {
	case s.IdleTimeout <= 0:
		return tryon.Settings{}, fmt.Errorf("SESSION_IDLE_TIMEOUT must be positive, got %s", s.IdleTimeout)
	case s.MaxSessions < 0:
		return tryon.Settings{}, fmt.Errorf("SESSION_MAX must not be negative, got %d", s.MaxSessions)
	case s.SnapshotEvery < 0:
		return tryon.Settings{}, fmt.Errorf("SNAPSHOT_EVERY must not be negative, got %d", s.SnapshotEvery)
	case s.TraceMaxFrames < 0:
		return tryon.Settings{}, fmt.Errorf("TRACE_MAX_FRAMES must not be negative, got %d", s.TraceMaxFrames)
	}
	return s, nil
}

func floatEnv(errs *[]error, key string, dst *float64) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = v
}

func intEnv(errs *[]error, key string, dst *int) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = v
}

func boolEnv(errs *[]error, key string, dst *bool) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = v
}

func durationEnv(errs *[]error, key string, dst *time.Duration) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = v
}
