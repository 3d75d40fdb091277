package pose

import (
	"fmt"
	"time"
)

// TrackingState is the recovery state of a session.
type TrackingState int

const (
	// StateLost is also the state of a session that has not locked on yet.
	StateLost TrackingState = iota
	StateTracking
	StateDegraded
)

func (s TrackingState) String() string {
	switch s {
	case StateTracking:
		return "tracking"
	case StateDegraded:
		return "degraded"
	case StateLost:
		return "lost"
	default:
		return "unknown"
	}
}

func (s TrackingState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *TrackingState) UnmarshalText(text []byte) error {
	switch string(text) {
	case "tracking":
		*s = StateTracking
	case "degraded":
		*s = StateDegraded
	case "lost":
		*s = StateLost
	default:
		return fmt.Errorf("unknown tracking state %q", text)
	}
	return nil
}

// Recovery decides whether a failed frame may be bridged with the last
// stable pose. It is not safe for concurrent use.
type Recovery struct {
	cfg RecoveryConfig

	state      TrackingState
	failures   int
	hasLast    bool
	lastGood   Pose
	lastGoodAt time.Time
}

func NewRecovery(cfg RecoveryConfig) *Recovery {
	return &Recovery{cfg: cfg, state: StateLost}
}

// Accept records a fresh stable pose and clears the failure streak.
func (r *Recovery) Accept(p Pose, now time.Time) {
	r.state = StateTracking
	r.failures = 0
	r.hasLast = true
	r.lastGood = p
	r.lastGoodAt = now
}

// Fail records a failed frame. It returns the last stable pose and true when
// the frame may be bridged, or false once the session is lost. The streak
// keeps counting while lost. A frame stamped before the last good detection
// is never bridged while the time guard is on.
func (r *Recovery) Fail(now time.Time) (Pose, bool) {
	allowed := r.hasLast &&
		r.failures < r.cfg.MaxConsecutiveFailures &&
		r.withinDelay(now)
	r.failures++

	if !allowed {
		r.state = StateLost
		return Pose{}, false
	}
	r.state = StateDegraded
	return r.lastGood, true
}

func (r *Recovery) withinDelay(now time.Time) bool {
	if r.cfg.RecoveryDelay == 0 {
		return true
	}
	if now.Before(r.lastGoodAt) {
		return false
	}
	return now.Sub(r.lastGoodAt) < r.cfg.RecoveryDelay
}

func (r *Recovery) State() TrackingState {
	return r.state
}

// Failures returns the current consecutive failure count.
func (r *Recovery) Failures() int {
	return r.failures
}

// LastGood returns the last accepted pose, if any.
func (r *Recovery) LastGood() (Pose, time.Time, bool) {
	return r.lastGood, r.lastGoodAt, r.hasLast
}
