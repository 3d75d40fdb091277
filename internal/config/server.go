package config

import (
	"context"
	"errors"
	"fmt"
	"os"

	"OpticalFactory/database/postgres"
	"OpticalFactory/internal/api/tryon"
	tryonHandler "OpticalFactory/internal/api/tryon/handler"
	tryonRepository "OpticalFactory/internal/api/tryon/repository"
	tryonService "OpticalFactory/internal/api/tryon/service"
	"OpticalFactory/internal/middleware"
	"OpticalFactory/pkg/pose"
	"OpticalFactory/pkg/redis"
	"OpticalFactory/pkg/s3"
	"OpticalFactory/pkg/utils"
	websocketPkg "OpticalFactory/pkg/websocket"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

const Version = "1.2.0"

type ServerOption func(*Server) error

type Server struct {
	engine         *fiber.App
	db             *sqlx.DB
	log            *logrus.Logger
	middleware     middleware.Middleware
	validator      *validator.Validate
	utils          utils.IUtils
	handlers       []handler
	redisServer    redis.IRedis
	landmarkClient websocketPkg.IWebsocket
	s3Client       s3.ItfS3
	tuning         pose.Config
	settings       tryon.Settings
	tryOnService   tryonService.ITryOnService
}

type handler interface {
	Start(srv fiber.Router)
}

func NewServer(options ...ServerOption) (*Server, error) {
	server := &Server{
		tuning:   pose.DefaultConfig(),
		settings: tryon.DefaultSettings(),
	}

	for _, option := range options {
		if err := option(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if server.engine == nil {
		return nil, fmt.Errorf("fiber app is required")
	}
	if server.log == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if server.landmarkClient == nil {
		return nil, fmt.Errorf("landmark client is required")
	}
	if server.middleware == nil {
		server.middleware = middleware.New(server.log)
	}
	if server.validator == nil {
		server.validator = NewValidator()
	}
	if server.utils == nil {
		server.utils = utils.New()
	}

	return server, nil
}

func WithFiber(fiberApp *fiber.App) ServerOption {
	return func(s *Server) error {
		s.engine = fiberApp
		return nil
	}
}

func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) error {
		s.log = logger
		return nil
	}
}

func WithValidator(validator *validator.Validate) ServerOption {
	return func(s *Server) error {
		s.validator = validator
		return nil
	}
}

func WithDatabase() ServerOption {
	return func(s *Server) error {
		db, err := postgres.New()
		if err != nil {
			if s.log != nil {
				s.log.Errorf("Failed to connect to database: %v", err)
			}
			return fmt.Errorf("failed to create database connection: %w", err)
		}
		s.db = db
		return nil
	}
}

func WithRedisServer(redisServer redis.IRedis) ServerOption {
	return func(s *Server) error {
		s.redisServer = redisServer
		return nil
	}
}

func WithLandmarkClient(client websocketPkg.IWebsocket) ServerOption {
	return func(s *Server) error {
		s.landmarkClient = client
		return nil
	}
}

func WithMiddleware(opts ...middleware.Option) ServerOption {
	return func(s *Server) error {
		if s.log == nil {
			return fmt.Errorf("logger must be set before middleware")
		}
		s.middleware = middleware.New(s.log, opts...)
		return nil
	}
}

func WithS3Client() ServerOption {
	return func(s *Server) error {
		client, err := s3.New()
		if err != nil {
			if s.log != nil {
				s.log.Errorf("Failed to initialize S3 client: %v", err)
			}
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		s.s3Client = client
		return nil
	}
}

func WithUtils() ServerOption {
	return func(s *Server) error {
		s.utils = utils.New()
		return nil
	}
}

// WithTuning sets the pose config and the session limits every try-on
// session runs with.
func WithTuning(cfg pose.Config, settings tryon.Settings) ServerOption {
	return func(s *Server) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		s.tuning = cfg
		s.settings = settings
		return nil
	}
}

func (s *Server) RegisterHandler() error {
	var opts []tryonService.Option
	if s.db != nil {
		opts = append(opts, tryonService.WithRepository(tryonRepository.New(s.db, s.log)))
	}
	if s.redisServer != nil {
		opts = append(opts, tryonService.WithSnapshotCache(s.redisServer))
	}
	if s.s3Client != nil && s.settings.TraceExport {
		opts = append(opts, tryonService.WithTraceExporter(s.s3Client))
	}

	// Try-On Domain
	tryOnServices, err := tryonService.NewTryOnService(s.log, s.tuning, s.settings, s.landmarkClient, s.utils, opts...)
	if err != nil {
		return err
	}
	tryOnHandlers := tryonHandler.New(s.log, s.validator, s.middleware, tryOnServices, s.utils)

	s.tryOnService = tryOnServices
	s.engine.Use(s.middleware.NewRequestIDMiddleware(), s.middleware.NewLoggingMiddleware())
	s.setupHealthCheck()
	s.handlers = append(s.handlers, tryOnHandlers)
	return nil
}

// Run starts the session janitor and blocks serving HTTP until the app is
// shut down.
func (s *Server) Run(ctx context.Context) error {
	if s.tryOnService == nil {
		return errors.New("handlers are not registered")
	}

	router := s.engine.Group("/api/v1")
	for _, h := range s.handlers {
		h.Start(router)
	}

	go s.tryOnService.Run(ctx)

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "3000"
	}

	return s.engine.Listen(fmt.Sprintf(":%s", port))
}

// Shutdown stops accepting requests, closes every open session and releases
// the backing clients.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error

	if err := s.engine.ShutdownWithContext(ctx); err != nil {
		errs = append(errs, fmt.Errorf("fiber: %w", err))
	}
	if s.tryOnService != nil {
		if err := s.tryOnService.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("sessions: %w", err))
		}
	}

	s.landmarkClient.CloseConnections()
	if s.redisServer != nil {
		if err := s.redisServer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("postgres: %w", err))
		}
	}

	return errors.Join(errs...)
}

func (s *Server) setupHealthCheck() {
	s.engine.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.JSON(fiber.Map{
			"status":          "ok",
			"service":         "optical-factory-tryon",
			"version":         Version,
			"preset":          s.settings.Preset,
			"active_sessions": s.tryOnService.ActiveSessions(),
			"detector_online": s.landmarkClient.IsConnected(),
		})
	})
}
