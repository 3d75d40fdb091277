package entity

import (
	"time"

	"OpticalFactory/pkg/pose"
)

// TrackingSession is the summary stored when a try-on session ends.
type TrackingSession struct {
	ID         string    `json:"id" db:"id"`
	UserID     string    `json:"user_id,omitempty" db:"user_id"`
	Preset     string    `json:"preset" db:"preset"`
	Frames     int       `json:"frames" db:"frames"`
	Tracked    int       `json:"tracked" db:"tracked"`
	Degraded   int       `json:"degraded" db:"degraded"`
	Lost       int       `json:"lost" db:"lost"`
	FinalState string    `json:"final_state" db:"final_state"`
	EndReason  string    `json:"end_reason" db:"end_reason"`
	TraceURL   string    `json:"trace_url,omitempty" db:"trace_url"`
	StartedAt  time.Time `json:"started_at" db:"started_at"`
	EndedAt    time.Time `json:"ended_at" db:"ended_at"`
}

// DetectionRate is the share of frames that produced a fresh pose.
func (s TrackingSession) DetectionRate() float64 {
	if s.Frames == 0 {
		return 0
	}
	return float64(s.Tracked) / float64(s.Frames)
}

// SessionSnapshot is the live view of a session, also cached in redis.
type SessionSnapshot struct {
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id,omitempty"`
	Preset    string    `json:"preset"`
	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
	pose.Snapshot
}
