package tryonService

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"OpticalFactory/internal/api/tryon"
	tryonRepository "OpticalFactory/internal/api/tryon/repository"
	"OpticalFactory/internal/entity"
	"OpticalFactory/pkg/pose"
	redisPkg "OpticalFactory/pkg/redis"
	"OpticalFactory/pkg/utils"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeDetector struct {
	result *entity.LandmarkDetectionResult
	err    error
	calls  int
}

func (d *fakeDetector) DetectLandmarks(_ context.Context, _ []byte) (*entity.LandmarkDetectionResult, error) {
	d.calls++
	return d.result, d.err
}

type fakeCache struct {
	mu      sync.Mutex
	stored  map[string]entity.SessionSnapshot
	sets    int
	deleted []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{stored: map[string]entity.SessionSnapshot{}}
}

func (c *fakeCache) SetSnapshot(_ context.Context, snap entity.SessionSnapshot, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.stored[snap.SessionID] = snap
	return nil
}

func (c *fakeCache) GetSnapshot(_ context.Context, id string) (entity.SessionSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap, ok := c.stored[id]
	if !ok {
		return entity.SessionSnapshot{}, redisPkg.ErrSnapshotNotFound
	}
	return snap, nil
}

func (c *fakeCache) DeleteSnapshot(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.stored, id)
	c.deleted = append(c.deleted, id)
	return nil
}

func (c *fakeCache) setCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sets
}

type fakeExporter struct {
	mu      sync.Mutex
	uploads map[string][]byte
	err     error
}

func (e *fakeExporter) UploadTrace(_ context.Context, id string, body io.Reader) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return "", e.err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	if e.uploads == nil {
		e.uploads = map[string][]byte{}
	}
	e.uploads[id] = data
	return "https://bucket.s3.amazonaws.com/traces/" + id + ".json", nil
}

type fakeSessions struct {
	mu    sync.Mutex
	saved []entity.TrackingSession
	err   error
}

func (f *fakeSessions) CreateSession(_ context.Context, s entity.TrackingSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, s)
	return nil
}

func (f *fakeSessions) GetSessionByID(_ context.Context, id string) (entity.TrackingSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.saved {
		if s.ID == id {
			return s, nil
		}
	}
	return entity.TrackingSession{}, tryon.ErrSessionNotFound
}

func (f *fakeSessions) GetSessionsByUserID(_ context.Context, userID string, limit int) ([]entity.TrackingSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []entity.TrackingSession
	for _, s := range f.saved {
		if s.UserID == userID && len(out) < limit {
			out = append(out, s)
		}
	}
	return out, nil
}

type fakeRepository struct {
	sessions *fakeSessions
}

func (r *fakeRepository) NewClient(bool) (tryonRepository.Client, error) {
	noop := func() error { return nil }
	return tryonRepository.Client{Sessions: r.sessions, Commit: noop, Rollback: noop}, nil
}

var errBoom = errors.New("boom")

type harness struct {
	svc      *tryOnService
	clock    *fakeClock
	detector *fakeDetector
	cache    *fakeCache
	exporter *fakeExporter
	repo     *fakeSessions
	logs     *test.Hook
}

func newHarness(t *testing.T, settings tryon.Settings) *harness {
	t.Helper()

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	h := &harness{
		clock:    newFakeClock(),
		detector: &fakeDetector{},
		cache:    newFakeCache(),
		exporter: &fakeExporter{},
		repo:     &fakeSessions{},
		logs:     hook,
	}

	svc, err := NewTryOnService(logger, pose.DefaultConfig(), settings, h.detector, utils.New(),
		WithClock(h.clock.Now),
		WithSnapshotCache(h.cache),
		WithTraceExporter(h.exporter),
		WithRepository(&fakeRepository{sessions: h.repo}),
	)
	require.NoError(t, err)
	h.svc = svc.(*tryOnService)
	return h
}
