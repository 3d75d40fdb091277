package pose

import (
	"errors"
	"fmt"
	"time"
)

// Frame is one detector output.
type Frame struct {
	Detected    bool        `json:"detected"`
	Landmarks   LandmarkSet `json:"landmarks,omitempty"`
	ImageWidth  int         `json:"image_width"`
	ImageHeight int         `json:"image_height"`
	// Timestamp defaults to the processor clock when zero.
	Timestamp time.Time `json:"timestamp"`
}

// Result is the outcome of a frame that produced a pose. Recovered results
// carry the last stable pose and the reason the fresh frame was rejected.
type Result struct {
	Pose      Pose
	State     TrackingState
	Recovered bool
	Cause     error
}

// Observer is called after every state transition.
type Observer func(from, to TrackingState, failures int, cause error)

// Snapshot summarises a session for diagnostics and persistence.
type Snapshot struct {
	Frames     int           `json:"frames"`
	Tracked    int           `json:"tracked"`
	Degraded   int           `json:"degraded"`
	Lost       int           `json:"lost"`
	Failures   int           `json:"failures"`
	State      TrackingState `json:"state"`
	LastPose   *Pose         `json:"last_pose,omitempty"`
	LastGoodAt time.Time     `json:"last_good_at"`
	Velocity   Vector3       `json:"velocity"`
}

type ProcessorOption func(*Processor)

// WithClock sets the time source used for frames without a timestamp.
func WithClock(now func() time.Time) ProcessorOption {
	return func(p *Processor) {
		p.now = now
	}
}

func WithObserver(o Observer) ProcessorOption {
	return func(p *Processor) {
		p.observer = o
	}
}

// Processor runs gate, geometry, filter and recovery for one session. Frames
// must be processed in arrival order; it is not safe for concurrent use.
type Processor struct {
	cfg      Config
	gate     *Gate
	geometry *Geometry
	filter   *KalmanFilter
	recovery *Recovery

	now      func() time.Time
	observer Observer

	frames, tracked, degraded, lost int
}

func NewProcessor(cfg Config, opts ...ProcessorOption) (*Processor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Processor{
		cfg:      cfg,
		gate:     NewGate(cfg.Gate),
		geometry: NewGeometry(cfg.Geometry),
		filter:   NewKalmanFilter(cfg.Filter),
		recovery: NewRecovery(cfg.Recovery),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *Processor) Config() Config {
	return p.cfg
}

// Process handles one frame. A nil error means Result holds a pose to render,
// fresh or recovered. Once the recovery window is exhausted Process returns a
// *FrameError and the session stays usable for the next frame.
func (p *Processor) Process(f Frame) (Result, error) {
	now := f.Timestamp
	if now.IsZero() {
		now = p.now()
	}
	p.frames++

	if !f.Detected || len(f.Landmarks) == 0 {
		return p.fail(ErrNoFaceDetected, now)
	}
	if err := p.gate.Validate(f.Landmarks); err != nil {
		return p.fail(err, now)
	}

	raw, err := p.geometry.Estimate(f.Landmarks, f.ImageWidth, f.ImageHeight)
	if err != nil {
		return p.fail(err, now)
	}
	pos, err := p.filter.Update(raw.Position)
	if err != nil {
		return p.fail(fmt.Errorf("%w: %w", ErrPoorQuality, err), now)
	}

	stable := raw
	stable.Position = pos

	from := p.recovery.State()
	p.recovery.Accept(stable, now)
	p.tracked++
	p.notify(from, nil)

	return Result{Pose: stable, State: StateTracking}, nil
}

func (p *Processor) fail(cause error, now time.Time) (Result, error) {
	from := p.recovery.State()
	fallback, ok := p.recovery.Fail(now)
	p.notify(from, cause)

	if ok {
		p.degraded++
		return Result{Pose: fallback, State: StateDegraded, Recovered: true, Cause: cause}, nil
	}

	p.lost++
	return Result{State: StateLost, Cause: cause}, &FrameError{
		Kind:     failureKind(cause),
		Failures: p.recovery.Failures(),
		Cause:    cause,
	}
}

func (p *Processor) notify(from TrackingState, cause error) {
	to := p.recovery.State()
	if p.observer == nil || from == to {
		return
	}
	p.observer(from, to, p.recovery.Failures(), cause)
}

// Snapshot returns the session counters.
func (p *Processor) Snapshot() Snapshot {
	s := Snapshot{
		Frames:   p.frames,
		Tracked:  p.tracked,
		Degraded: p.degraded,
		Lost:     p.lost,
		Failures: p.recovery.Failures(),
		State:    p.recovery.State(),
		Velocity: p.filter.State().Velocity,
	}
	if last, at, ok := p.recovery.LastGood(); ok {
		s.LastPose = &last
		s.LastGoodAt = at
	}
	return s
}

// IsFrameError reports whether err is a lost-session frame failure and
// returns it.
func IsFrameError(err error) (*FrameError, bool) {
	var fe *FrameError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}
