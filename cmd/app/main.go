package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"OpticalFactory/internal/config"
	"OpticalFactory/pkg/log"
	"OpticalFactory/pkg/redis"
	websocketPkg "OpticalFactory/pkg/websocket"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn(log.Fields{"error": err.Error()}, "No .env file loaded, using process environment")
	}
	logger := log.NewLogger()

	tuning, err := config.LoadTuning()
	if err != nil {
		logger.Fatalf("Invalid pose tuning: %v", err)
	}
	settings, err := config.LoadSessionSettings()
	if err != nil {
		logger.Fatalf("Invalid session settings: %v", err)
	}

	fiberApp := config.NewFiber(logger)
	validator := config.NewValidator()
	redisServer := redis.New()
	landmarkClient := websocketPkg.NewLandmarkClient(os.Getenv("AI_LANDMARK_URL"), websocketPkg.WithLogger(logger))

	options := []config.ServerOption{
		config.WithFiber(fiberApp),
		config.WithLogger(logger),
		config.WithValidator(validator),
		config.WithDatabase(),
		config.WithRedisServer(redisServer),
		config.WithLandmarkClient(landmarkClient),
		config.WithMiddleware(),
		config.WithUtils(),
		config.WithTuning(tuning, settings),
	}
	if settings.TraceExport {
		options = append(options, config.WithS3Client())
	}

	server, err := config.NewServer(options...)
	if err != nil {
		logger.Fatal(err)
	}

	if err := server.RegisterHandler(); err != nil {
		logger.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := server.Run(ctx); err != nil {
			logger.Fatalf("Error starting server: %v", err)
		}
	}()

	logger.WithField("preset", settings.Preset).Info("Server started successfully")

	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Shutdown finished with errors: %v", err)
	}
}
