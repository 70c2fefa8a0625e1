package gallery

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidgallery/backend/internal/models"
	"github.com/vidgallery/backend/internal/repositories"
)

const waitFor = 2 * time.Second

func receive(t *testing.T, sub *Subscription) []models.Video {
	t.Helper()
	select {
	case videos, ok := <-sub.C:
		require.True(t, ok, "subscription closed unexpectedly")
		return videos
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for snapshot")
		return nil
	}
}

func waitClosed(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case <-sub.Done():
	case <-time.After(waitFor):
		t.Fatal("subscription did not end")
	}
	for range sub.C {
	}
}

func newHubService(t *testing.T) (*Service, *Hub) {
	t.Helper()
	svc, _, _ := newTestService(t)
	hub := NewHub(svc, nil, nil)
	svc.Changes = hub
	t.Cleanup(hub.Close)
	return svc, hub
}

func TestHubDeliversInitialSnapshot(t *testing.T) {
	svc, hub := newHubService(t)
	ctx := context.Background()

	_, err := svc.Add(ctx, "ann", "dQw4w9WgXcQ", "First", "")
	require.NoError(t, err)

	sub, err := hub.Subscribe(ctx, "ann", "session-1")
	require.NoError(t, err)
	defer sub.Close()

	videos := receive(t, sub)
	require.Len(t, videos, 1)
	assert.Equal(t, "First", videos[0].Title)
}

func TestHubEmptyGallerySnapshot(t *testing.T) {
	_, hub := newHubService(t)

	sub, err := hub.Subscribe(context.Background(), "bob", "session-1")
	require.NoError(t, err)
	defer sub.Close()

	videos := receive(t, sub)
	assert.NotNil(t, videos)
	assert.Empty(t, videos)
}

func TestHubSnapshotAfterChange(t *testing.T) {
	svc, hub := newHubService(t)
	ctx := context.Background()

	sub, err := hub.Subscribe(ctx, "ann", "session-1")
	require.NoError(t, err)
	defer sub.Close()
	assert.Empty(t, receive(t, sub))

	_, err = svc.Add(ctx, "ann", "https://youtu.be/dQw4w9WgXcQ", "", "music, 80s")
	require.NoError(t, err)

	videos := receive(t, sub)
	require.Len(t, videos, 1)
	assert.Equal(t, "dQw4w9WgXcQ", videos[0].YoutubeVideoID)
	assert.Equal(t, []string{"music", "80s"}, videos[0].Tags)

	second, err := svc.Add(ctx, "ann", "https://youtu.be/aaaaaaaaaaa", "Second", "")
	require.NoError(t, err)

	videos = receive(t, sub)
	require.Len(t, videos, 2)
	assert.Equal(t, second.ID, videos[0].ID)
}

type downBus struct {
	calls atomic.Int32
}

func (d *downBus) Publish(context.Context, string) error {
	d.calls.Add(1)
	return errors.New("redis: connection refused")
}

func TestRelayWakesLocalSubscribersWhenRemoteFails(t *testing.T) {
	svc, hub := newHubService(t)
	bus := &downBus{}
	svc.Changes = Relay{Local: hub, Remote: bus}
	ctx := context.Background()

	sub, err := hub.Subscribe(ctx, "ann", "session-1")
	require.NoError(t, err)
	defer sub.Close()
	assert.Empty(t, receive(t, sub))

	added, err := svc.Add(ctx, "ann", "https://youtu.be/dQw4w9WgXcQ", "Kept", "")
	require.NoError(t, err)

	videos := receive(t, sub)
	require.Len(t, videos, 1)
	assert.Equal(t, added.ID, videos[0].ID)
	assert.Equal(t, int32(1), bus.calls.Load())
}

func TestHubIgnoresOtherUsers(t *testing.T) {
	svc, hub := newHubService(t)
	ctx := context.Background()

	sub, err := hub.Subscribe(ctx, "ann", "session-1")
	require.NoError(t, err)
	defer sub.Close()
	receive(t, sub)

	_, err = svc.Add(ctx, "bob", "dQw4w9WgXcQ", "", "")
	require.NoError(t, err)

	select {
	case videos := <-sub.C:
		t.Fatalf("unexpected snapshot: %v", videos)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHubCoalescesBursts(t *testing.T) {
	loader := &countingLoader{}
	hub := NewHub(loader, nil, nil)
	defer hub.Close()

	sub, err := hub.Subscribe(context.Background(), "ann", "session-1")
	require.NoError(t, err)
	defer sub.Close()
	receive(t, sub)

	for range 10 {
		hub.Notify("ann")
	}
	receive(t, sub)

	select {
	case <-sub.C:
	case <-time.After(100 * time.Millisecond):
	}
	assert.LessOrEqual(t, loader.calls.Load(), int32(3))
}

func TestHubCloseSessionEndsSubscriptions(t *testing.T) {
	_, hub := newHubService(t)
	ctx := context.Background()

	first, err := hub.Subscribe(ctx, "ann", "session-1")
	require.NoError(t, err)
	other, err := hub.Subscribe(ctx, "ann", "session-2")
	require.NoError(t, err)
	defer other.Close()
	receive(t, first)
	receive(t, other)

	hub.CloseSession("session-1")
	waitClosed(t, first)

	hub.Notify("ann")
	receive(t, other)
}

func TestHubContextCancelEndsSubscription(t *testing.T) {
	_, hub := newHubService(t)
	ctx, cancel := context.WithCancel(context.Background())

	sub, err := hub.Subscribe(ctx, "ann", "session-1")
	require.NoError(t, err)
	receive(t, sub)

	cancel()
	waitClosed(t, sub)

	hub.mu.Lock()
	defer hub.mu.Unlock()
	assert.Empty(t, hub.subs)
}

func TestHubClose(t *testing.T) {
	_, hub := newHubService(t)

	sub, err := hub.Subscribe(context.Background(), "ann", "session-1")
	require.NoError(t, err)

	hub.Close()
	waitClosed(t, sub)

	_, err = hub.Subscribe(context.Background(), "ann", "session-1")
	assert.ErrorIs(t, err, ErrHubClosed)
}

func TestHubSurvivesLoadFailure(t *testing.T) {
	loader := &countingLoader{}
	loader.fail.Store(true)
	hub := NewHub(loader, nil, nil)
	defer hub.Close()

	sub, err := hub.Subscribe(context.Background(), "ann", "session-1")
	require.NoError(t, err)
	defer sub.Close()

	require.Eventually(t, func() bool { return loader.calls.Load() >= 1 }, waitFor, 10*time.Millisecond)

	loader.fail.Store(false)
	hub.Notify("ann")
	receive(t, sub)
}

func TestHubRunForwardsListenerNotifications(t *testing.T) {
	svc, hub := newHubService(t)
	svc.Changes = nil
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	listener := &chanListener{userIDs: make(chan string)}
	go func() { _ = hub.Run(ctx, listener) }()

	sub, err := hub.Subscribe(ctx, "ann", "session-1")
	require.NoError(t, err)
	defer sub.Close()
	receive(t, sub)

	_, err = svc.Add(ctx, "ann", "dQw4w9WgXcQ", "", "")
	require.NoError(t, err)
	listener.userIDs <- "ann"

	assert.Len(t, receive(t, sub), 1)
}

type countingLoader struct {
	calls atomic.Int32
	fail  atomic.Bool
}

func (c *countingLoader) Snapshot(context.Context, string) ([]models.Video, error) {
	c.calls.Add(1)
	if c.fail.Load() {
		return nil, errors.New("database unavailable")
	}
	return []models.Video{}, nil
}

type chanListener struct {
	userIDs chan string
}

func (l *chanListener) Listen(ctx context.Context, handler func(string)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case userID := <-l.userIDs:
			handler(userID)
		}
	}
}

var _ VideoStore = repositories.NewMemoryStore().Videos()
