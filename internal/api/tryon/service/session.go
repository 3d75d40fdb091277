package tryonService

import (
	"sync"
	"sync/atomic"
	"time"

	"OpticalFactory/internal/api/tryon"
	"OpticalFactory/internal/entity"
	"OpticalFactory/pkg/pose"
)

type session struct {
	mu sync.Mutex

	id        string
	userID    string
	preset    string
	startedAt time.Time
	processor *pose.Processor
	trace     *traceRing
	closed    bool

	// unix nanos of the last frame, read by the janitor without mu
	lastSeen atomic.Int64
}

func (s *session) touch(now time.Time) {
	s.lastSeen.Store(now.UnixNano())
}

func (s *session) idleSince(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, s.lastSeen.Load()))
}

func (s *session) ownedBy(user entity.UserLoginData) bool {
	return s.userID == "" || s.userID == user.ID
}

// snapshotLocked requires s.mu.
func (s *session) snapshotLocked(now time.Time) entity.SessionSnapshot {
	return entity.SessionSnapshot{
		SessionID: s.id,
		UserID:    s.userID,
		Preset:    s.preset,
		StartedAt: s.startedAt,
		UpdatedAt: now,
		Snapshot:  s.processor.Snapshot(),
	}
}

func (s *session) summaryLocked(now time.Time, reason string) entity.TrackingSession {
	snap := s.processor.Snapshot()
	return entity.TrackingSession{
		ID:         s.id,
		UserID:     s.userID,
		Preset:     s.preset,
		Frames:     snap.Frames,
		Tracked:    snap.Tracked,
		Degraded:   snap.Degraded,
		Lost:       snap.Lost,
		FinalState: snap.State.String(),
		EndReason:  reason,
		StartedAt:  s.startedAt,
		EndedAt:    now,
	}
}

// TraceEntry is one processed frame as exported with the session trace.
type TraceEntry struct {
	Seq       int        `json:"seq"`
	At        time.Time  `json:"at"`
	State     string     `json:"state"`
	Recovered bool       `json:"recovered"`
	Landmarks int        `json:"landmarks"`
	ClientAt  *time.Time `json:"client_at,omitempty"`
	Pose      *pose.Pose `json:"pose,omitempty"`
	Code      string     `json:"code,omitempty"`
	Cause     string     `json:"cause,omitempty"`
}

func newTraceEntry(seq int, at time.Time, o tryon.FrameOutcome) TraceEntry {
	e := TraceEntry{
		Seq:       seq,
		At:        at,
		State:     o.Result.State.String(),
		Recovered: o.Result.Recovered,
		Landmarks: len(o.Frame.Landmarks),
	}
	if ts := o.Frame.Timestamp; !ts.IsZero() {
		e.ClientAt = &ts
	}
	if o.Failure != nil {
		e.Code = string(o.Failure.Kind)
		e.Cause = o.Failure.Cause.Error()
		return e
	}

	p := o.Result.Pose
	e.Pose = &p
	if o.Result.Cause != nil {
		e.Cause = o.Result.Cause.Error()
	}
	return e
}

// traceRing keeps the most recent frames of a session.
type traceRing struct {
	entries []TraceEntry
	next    int
	full    bool
	seq     int
}

func newTraceRing(size int) *traceRing {
	if size <= 0 {
		return nil
	}
	return &traceRing{entries: make([]TraceEntry, size)}
}

func (r *traceRing) add(at time.Time, o tryon.FrameOutcome) {
	if r == nil {
		return
	}
	r.seq++
	r.entries[r.next] = newTraceEntry(r.seq, at, o)
	r.next = (r.next + 1) % len(r.entries)
	if r.next == 0 {
		r.full = true
	}
}

// items returns the entries oldest first.
func (r *traceRing) items() []TraceEntry {
	if r == nil {
		return nil
	}
	if !r.full {
		return append([]TraceEntry(nil), r.entries[:r.next]...)
	}
	out := make([]TraceEntry, 0, len(r.entries))
	out = append(out, r.entries[r.next:]...)
	return append(out, r.entries[:r.next]...)
}
