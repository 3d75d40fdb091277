package tryonService

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"OpticalFactory/internal/api/tryon"
	tryonRepository "OpticalFactory/internal/api/tryon/repository"
	"OpticalFactory/internal/entity"
	"OpticalFactory/pkg/pose"
	"OpticalFactory/pkg/utils"

	"github.com/sirupsen/logrus"
)

const (
	EndReasonClosed       = "closed"
	EndReasonIdle         = "idle"
	EndReasonDisconnected = "disconnected"
	EndReasonShutdown     = "shutdown"
)

type ITryOnService interface {
	OpenSession(ctx context.Context, user entity.UserLoginData) (string, error)
	ProcessFrame(ctx context.Context, sessionID string, user entity.UserLoginData, frame pose.Frame) (tryon.FrameOutcome, error)
	DetectFrame(ctx context.Context, sessionID string, user entity.UserLoginData, image []byte) (tryon.FrameOutcome, error)
	GetSnapshot(ctx context.Context, sessionID string, user entity.UserLoginData) (entity.SessionSnapshot, error)
	CloseSession(ctx context.Context, sessionID string, user entity.UserLoginData, reason string) (entity.TrackingSession, error)
	GetHistory(ctx context.Context, userID string, limit int) ([]entity.TrackingSession, error)
	ActiveSessions() int
	Run(ctx context.Context)
	Shutdown(ctx context.Context) error
}

type LandmarkDetector interface {
	DetectLandmarks(ctx context.Context, frame []byte) (*entity.LandmarkDetectionResult, error)
}

type SnapshotCache interface {
	SetSnapshot(ctx context.Context, snapshot entity.SessionSnapshot, expiration time.Duration) error
	GetSnapshot(ctx context.Context, sessionID string) (entity.SessionSnapshot, error)
	DeleteSnapshot(ctx context.Context, sessionID string) error
}

type TraceExporter interface {
	UploadTrace(ctx context.Context, sessionID string, body io.Reader) (string, error)
}

type Option func(*tryOnService)

func WithRepository(repo tryonRepository.Repository) Option {
	return func(s *tryOnService) {
		s.repository = repo
	}
}

func WithSnapshotCache(cache SnapshotCache) Option {
	return func(s *tryOnService) {
		s.cache = cache
	}
}

func WithTraceExporter(exporter TraceExporter) Option {
	return func(s *tryOnService) {
		s.exporter = exporter
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *tryOnService) {
		s.now = now
	}
}

type tryOnService struct {
	log        *logrus.Logger
	cfg        pose.Config
	settings   tryon.Settings
	detector   LandmarkDetector
	utils      utils.IUtils
	repository tryonRepository.Repository
	cache      SnapshotCache
	exporter   TraceExporter
	now        func() time.Time

	mu       sync.RWMutex
	sessions map[string]*session

	// background snapshot writes
	wg sync.WaitGroup
}

func NewTryOnService(
	log *logrus.Logger,
	cfg pose.Config,
	settings tryon.Settings,
	detector LandmarkDetector,
	utils utils.IUtils,
	opts ...Option,
) (ITryOnService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("tryon service: %w", err)
	}

	s := &tryOnService{
		log:      log,
		cfg:      cfg,
		settings: settings,
		detector: detector,
		utils:    utils,
		now:      time.Now,
		sessions: make(map[string]*session),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *tryOnService) ActiveSessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.sessions)
}
