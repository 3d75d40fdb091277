package redis

import (
	"context"
	"testing"
	"time"

	"OpticalFactory/internal/entity"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestSnapshotKey(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "tryon:session:abc", snapshotKey("abc"))
}

func TestUnreachableServer(t *testing.T) {
	t.Parallel()

	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	cache := NewWithClient(client)
	defer cache.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := cache.SetSnapshot(ctx, entity.SessionSnapshot{SessionID: "abc"}, time.Minute)
	assert.Error(t, err)

	_, err = cache.GetSnapshot(ctx, "abc")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrSnapshotNotFound)
}
