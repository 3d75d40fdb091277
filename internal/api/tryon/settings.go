package tryon

import "time"

// Settings bound the session service independently of the pose tuning.
type Settings struct {
	// IdleTimeout closes sessions that have not received a frame.
	IdleTimeout time.Duration
	// MaxSessions caps concurrently open sessions; 0 means unlimited.
	MaxSessions int
	// SnapshotEvery caches the session snapshot every N frames; 0 disables.
	SnapshotEvery int
	SnapshotTTL   time.Duration
	TraceExport   bool
	// TraceMaxFrames is the number of most recent frames kept for export.
	TraceMaxFrames int
	// Preset names the pose config the sessions run with.
	Preset string
}

func DefaultSettings() Settings {
	return Settings{
		IdleTimeout:    2 * time.Minute,
		MaxSessions:    1000,
		SnapshotEvery:  30,
		SnapshotTTL:    10 * time.Minute,
		TraceExport:    false,
		TraceMaxFrames: 900,
		Preset:         "default",
	}
}
