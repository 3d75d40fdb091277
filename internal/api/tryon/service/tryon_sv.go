package tryonService

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"OpticalFactory/internal/api/tryon"
	"OpticalFactory/internal/entity"
	contextPkg "OpticalFactory/pkg/context"
	"OpticalFactory/pkg/pose"
	redisPkg "OpticalFactory/pkg/redis"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

func (s *tryOnService) OpenSession(ctx context.Context, user entity.UserLoginData) (string, error) {
	sess, err := s.newSession(user)
	if err != nil {
		return "", err
	}

	s.log.WithFields(logrus.Fields{
		"request_id": contextPkg.GetRequestID(ctx),
		"session_id": sess.id,
		"user_id":    user.ID,
		"preset":     sess.preset,
	}).Info("Try-on session opened")

	return sess.id, nil
}

func (s *tryOnService) newSession(user entity.UserLoginData) (*session, error) {
	id := s.utils.NewSessionID()
	now := s.now()

	sess := &session{
		id:        id,
		userID:    user.ID,
		preset:    s.settings.Preset,
		startedAt: now,
		trace:     newTraceRing(s.settings.TraceMaxFrames),
	}
	sess.touch(now)

	processor, err := pose.NewProcessor(s.cfg,
		pose.WithClock(s.now),
		pose.WithObserver(s.stateObserver(id)),
	)
	if err != nil {
		return nil, err
	}
	sess.processor = processor

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.settings.MaxSessions > 0 && len(s.sessions) >= s.settings.MaxSessions {
		return nil, tryon.ErrTooManySessions
	}
	s.sessions[id] = sess

	return sess, nil
}

func (s *tryOnService) stateObserver(sessionID string) pose.Observer {
	return func(from, to pose.TrackingState, failures int, cause error) {
		entry := s.log.WithFields(logrus.Fields{
			"session_id": sessionID,
			"from":       from.String(),
			"state":      to.String(),
			"failures":   failures,
		})
		if cause != nil {
			entry = entry.WithField("error", cause.Error())
		}

		switch to {
		case pose.StateLost:
			entry.Warn("Tracking lost")
		case pose.StateDegraded:
			entry.Info("Tracking degraded, holding last stable pose")
		default:
			entry.Info("Tracking acquired")
		}
	}
}

// acquire returns the named session, or a new one when sessionID is empty.
func (s *tryOnService) acquire(sessionID string, user entity.UserLoginData) (*session, error) {
	if sessionID == "" {
		return s.newSession(user)
	}

	s.mu.RLock()
	sess, ok := s.sessions[sessionID]
	s.mu.RUnlock()

	if !ok {
		return nil, tryon.ErrSessionNotFound
	}
	if !sess.ownedBy(user) {
		return nil, tryon.ErrSessionForbidden
	}
	return sess, nil
}

func (s *tryOnService) ProcessFrame(ctx context.Context, sessionID string, user entity.UserLoginData, frame pose.Frame) (tryon.FrameOutcome, error) {
	sess, err := s.acquire(sessionID, user)
	if err != nil {
		return tryon.FrameOutcome{}, err
	}
	return s.process(ctx, sess, frame)
}

func (s *tryOnService) DetectFrame(ctx context.Context, sessionID string, user entity.UserLoginData, image []byte) (tryon.FrameOutcome, error) {
	if len(image) == 0 {
		return tryon.FrameOutcome{}, tryon.ErrInvalidImage
	}

	// Existing sessions are checked before the detector is called; new ones
	// are only opened once it answered.
	var sess *session
	if sessionID != "" {
		var err error
		if sess, err = s.acquire(sessionID, user); err != nil {
			return tryon.FrameOutcome{}, err
		}
	}

	detection, err := s.detector.DetectLandmarks(ctx, image)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": contextPkg.GetRequestID(ctx),
			"session_id": sessionID,
			"error":      err.Error(),
		}).Error("Landmark detection failed")
		return tryon.FrameOutcome{SessionID: sessionID}, fmt.Errorf("%w: %w", tryon.ErrDetectorUnavailable, err)
	}

	if sess == nil {
		if sess, err = s.acquire("", user); err != nil {
			return tryon.FrameOutcome{}, err
		}
	}

	return s.process(ctx, sess, detection.Frame(time.Time{}))
}

func (s *tryOnService) process(ctx context.Context, sess *session, frame pose.Frame) (tryon.FrameOutcome, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.closed {
		return tryon.FrameOutcome{}, tryon.ErrSessionNotFound
	}

	now := s.now()
	sess.touch(now)

	// Every transport is timed on the server clock; the client's own
	// timestamp is kept for the trace only.
	stamped := frame
	stamped.Timestamp = now

	res, err := sess.processor.Process(stamped)
	outcome := tryon.FrameOutcome{SessionID: sess.id, Frame: frame, Result: res}
	if err != nil {
		fe, ok := pose.IsFrameError(err)
		if !ok {
			return outcome, err
		}
		outcome.Failure = fe
	}

	sess.trace.add(now, outcome)

	if every := s.settings.SnapshotEvery; every > 0 && s.cache != nil {
		snap := sess.snapshotLocked(now)
		if snap.Frames%every == 0 {
			s.storeSnapshot(contextPkg.GetRequestID(ctx), snap)
		}
	}

	return outcome, nil
}

func (s *tryOnService) storeSnapshot(requestID string, snap entity.SessionSnapshot) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if err := s.cache.SetSnapshot(ctx, snap, s.settings.SnapshotTTL); err != nil {
			s.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"session_id": snap.SessionID,
				"error":      err.Error(),
			}).Warn("Failed to cache session snapshot")
		}
	}()
}

func (s *tryOnService) GetSnapshot(ctx context.Context, sessionID string, user entity.UserLoginData) (entity.SessionSnapshot, error) {
	s.mu.RLock()
	sess, ok := s.sessions[sessionID]
	s.mu.RUnlock()

	if ok {
		if !sess.ownedBy(user) {
			return entity.SessionSnapshot{}, tryon.ErrSessionForbidden
		}
		sess.mu.Lock()
		defer sess.mu.Unlock()
		return sess.snapshotLocked(s.now()), nil
	}

	if s.cache == nil {
		return entity.SessionSnapshot{}, tryon.ErrSessionNotFound
	}

	snap, err := s.cache.GetSnapshot(ctx, sessionID)
	if err != nil {
		if errors.Is(err, redisPkg.ErrSnapshotNotFound) {
			return entity.SessionSnapshot{}, tryon.ErrSessionNotFound
		}
		return entity.SessionSnapshot{}, fmt.Errorf("get cached snapshot: %w", err)
	}
	if snap.UserID != "" && snap.UserID != user.ID {
		return entity.SessionSnapshot{}, tryon.ErrSessionForbidden
	}
	return snap, nil
}

// CloseSession ends a session, stores its summary and exports its trace.
// The session is gone even when persisting fails.
func (s *tryOnService) CloseSession(ctx context.Context, sessionID string, user entity.UserLoginData, reason string) (entity.TrackingSession, error) {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	if ok && !sess.ownedBy(user) {
		s.mu.Unlock()
		return entity.TrackingSession{}, tryon.ErrSessionForbidden
	}
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	if !ok {
		return entity.TrackingSession{}, tryon.ErrSessionNotFound
	}

	sess.mu.Lock()
	sess.closed = true
	summary := sess.summaryLocked(s.now(), reason)
	trace := sess.trace.items()
	sess.mu.Unlock()

	requestID := contextPkg.GetRequestID(ctx)
	logFields := logrus.Fields{
		"request_id": requestID,
		"session_id": sessionID,
	}

	if s.settings.TraceExport && s.exporter != nil && len(trace) > 0 {
		location, err := s.exportTrace(ctx, summary, trace)
		if err != nil {
			s.log.WithFields(logFields).WithField("error", err.Error()).Warn("Failed to export session trace")
		} else {
			summary.TraceURL = location
		}
	}

	if s.cache != nil {
		if err := s.cache.DeleteSnapshot(ctx, sessionID); err != nil {
			s.log.WithFields(logFields).WithField("error", err.Error()).Warn("Failed to delete cached snapshot")
		}
	}

	s.log.WithFields(logFields).WithFields(logrus.Fields{
		"reason":         reason,
		"frames":         summary.Frames,
		"detection_rate": summary.DetectionRate(),
		"state":          summary.FinalState,
	}).Info("Try-on session closed")

	if err := s.saveSummary(ctx, summary); err != nil {
		return summary, err
	}
	return summary, nil
}

type traceDocument struct {
	Session entity.TrackingSession `json:"session"`
	Frames  []TraceEntry           `json:"frames"`
}

func (s *tryOnService) exportTrace(ctx context.Context, summary entity.TrackingSession, trace []TraceEntry) (string, error) {
	body, err := jsoniter.Marshal(traceDocument{Session: summary, Frames: trace})
	if err != nil {
		return "", fmt.Errorf("marshal trace: %w", err)
	}
	return s.exporter.UploadTrace(ctx, summary.ID, bytes.NewReader(body))
}

func (s *tryOnService) saveSummary(ctx context.Context, summary entity.TrackingSession) error {
	if s.repository == nil || summary.Frames == 0 {
		return nil
	}

	client, err := s.repository.NewClient(false)
	if err != nil {
		return fmt.Errorf("save session summary: %w", err)
	}
	if err := client.Sessions.CreateSession(ctx, summary); err != nil {
		return fmt.Errorf("save session summary: %w", err)
	}
	return nil
}

func (s *tryOnService) GetHistory(ctx context.Context, userID string, limit int) ([]entity.TrackingSession, error) {
	if s.repository == nil {
		return []entity.TrackingSession{}, nil
	}

	client, err := s.repository.NewClient(false)
	if err != nil {
		return nil, err
	}
	return client.Sessions.GetSessionsByUserID(ctx, userID, limit)
}
