package tryonService

import (
	"context"
	"time"

	"OpticalFactory/internal/entity"

	"github.com/sirupsen/logrus"
)

// Run evicts idle sessions until ctx is done.
func (s *tryOnService) Run(ctx context.Context) {
	if s.settings.IdleTimeout <= 0 {
		<-ctx.Done()
		return
	}

	interval := s.settings.IdleTimeout / 4
	if interval < time.Second {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.evictIdle(ctx)
		}
	}
}

func (s *tryOnService) evictIdle(ctx context.Context) int {
	now := s.now()

	s.mu.RLock()
	var idle []*session
	for _, sess := range s.sessions {
		if sess.idleSince(now) >= s.settings.IdleTimeout {
			idle = append(idle, sess)
		}
	}
	s.mu.RUnlock()

	for _, sess := range idle {
		if _, err := s.CloseSession(ctx, sess.id, entity.UserLoginData{ID: sess.userID}, EndReasonIdle); err != nil {
			s.log.WithFields(logrus.Fields{
				"session_id": sess.id,
				"error":      err.Error(),
			}).Warn("Failed to close idle session")
		}
	}
	return len(idle)
}

// Shutdown closes every open session and waits for pending snapshot writes.
func (s *tryOnService) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	open := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		open = append(open, sess)
	}
	s.mu.RUnlock()

	for _, sess := range open {
		if _, err := s.CloseSession(ctx, sess.id, entity.UserLoginData{ID: sess.userID}, EndReasonShutdown); err != nil {
			s.log.WithFields(logrus.Fields{
				"session_id": sess.id,
				"error":      err.Error(),
			}).Warn("Failed to close session on shutdown")
		}
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
