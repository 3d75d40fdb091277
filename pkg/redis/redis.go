package redis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"OpticalFactory/internal/entity"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const snapshotKeyPrefix = "tryon:session:"

var ErrSnapshotNotFound = errors.New("session snapshot not found")

type IRedis interface {
	SetSnapshot(ctx context.Context, snapshot entity.SessionSnapshot, expiration time.Duration) error
	GetSnapshot(ctx context.Context, sessionID string) (entity.SessionSnapshot, error)
	DeleteSnapshot(ctx context.Context, sessionID string) error
	Close() error
}

type redisClient struct {
	client *redis.Client
}

func New() IRedis {
	db, _ := strconv.Atoi(os.Getenv("REDIS_DB"))
	redisAddr := os.Getenv("REDIS_ADDRESS")
	redisPassword := os.Getenv("REDIS_PASSWORD")

	logrus.Info(fmt.Sprintf("Connecting to Redis at %s...", redisAddr))

	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: redisPassword,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		logrus.Error(fmt.Sprintf("Failed to connect to Redis: %v", err))
	} else {
		logrus.Info("Successfully connected to Redis")
	}

	return NewWithClient(client)
}

func NewWithClient(client *redis.Client) IRedis {
	return &redisClient{client: client}
}

func snapshotKey(sessionID string) string {
	return snapshotKeyPrefix + sessionID
}

func (r *redisClient) SetSnapshot(ctx context.Context, snapshot entity.SessionSnapshot, expiration time.Duration) error {
	key := snapshotKey(snapshot.SessionID)

	payload, err := jsoniter.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	if err := r.client.Set(ctx, key, payload, expiration).Err(); err != nil {
		logrus.WithFields(logrus.Fields{
			"key":   key,
			"error": err.Error(),
		}).Error("Error setting session snapshot")
		return err
	}
	return nil
}

func (r *redisClient) GetSnapshot(ctx context.Context, sessionID string) (entity.SessionSnapshot, error) {
	key := snapshotKey(sessionID)

	payload, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return entity.SessionSnapshot{}, ErrSnapshotNotFound
	} else if err != nil {
		logrus.WithFields(logrus.Fields{
			"key":   key,
			"error": err.Error(),
		}).Error("Error getting session snapshot")
		return entity.SessionSnapshot{}, err
	}

	var snapshot entity.SessionSnapshot
	if err := jsoniter.Unmarshal(payload, &snapshot); err != nil {
		return entity.SessionSnapshot{}, fmt.Errorf("unmarshal snapshot %s: %w", key, err)
	}
	return snapshot, nil
}

func (r *redisClient) DeleteSnapshot(ctx context.Context, sessionID string) error {
	key := snapshotKey(sessionID)

	result, err := r.client.Del(ctx, key).Result()
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"key":   key,
			"error": err.Error(),
		}).Error("Error deleting session snapshot")
		return err
	}

	if result == 0 {
		logrus.Debug(fmt.Sprintf("Snapshot key %s not found for deletion", key))
	}
	return nil
}

func (r *redisClient) Close() error {
	return r.client.Close()
}
