package pubsub

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectRejectsInvalidURL(t *testing.T) {
	_, err := Connect(context.Background(), "not-a-redis-url", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse redis url")
}

func TestPublishFailsWhenServerUnreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:       "localhost:1",
		MaxRetries: -1,
	})
	bus := NewRedisBus(client, "", nil)
	defer bus.Close()

	assert.Equal(t, DefaultChannel, bus.channel)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.Error(t, bus.Publish(ctx, "user-1"))
}

func TestRedisBusRoundTrip(t *testing.T) {
	redisURL := os.Getenv("VIDGALLERY_TEST_REDIS_URL")
	if redisURL == "" {
		t.Skip("VIDGALLERY_TEST_REDIS_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	opts, err := redis.ParseURL(redisURL)
	require.NoError(t, err)
	channel := "vidgallery:test:" + t.Name()
	bus := NewRedisBus(redis.NewClient(opts), channel, nil)
	defer bus.Close()

	received := make(chan string, 1)
	listenCtx, stop := context.WithCancel(ctx)
	listening := make(chan error, 1)
	go func() {
		listening <- bus.Listen(listenCtx, func(userID string) {
			select {
			case received <- userID:
			default:
			}
		})
	}()

	// Publish until the subscriber has attached.
	require.Eventually(t, func() bool {
		if err := bus.Publish(ctx, "user-1"); err != nil {
			return false
		}
		select {
		case got := <-received:
			return got == "user-1"
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 5*time.Second, 100*time.Millisecond)

	stop()
	assert.NoError(t, <-listening)
}
