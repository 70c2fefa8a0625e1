package thumbnails

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vidgallery/backend/internal/models"
)

type fetcherStub struct {
	mu   sync.Mutex
	urls []string
	data []byte
	err  error
}

func (f *fetcherStub) Fetch(_ context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.urls = append(f.urls, url)
	return f.data, f.err
}

type storageStub struct {
	mu    sync.Mutex
	saved map[string][]byte
	err   error
}

func (s *storageStub) Save(_ context.Context, name string, r io.Reader) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saved == nil {
		s.saved = make(map[string][]byte)
	}
	s.saved[name] = data
	return fmt.Sprintf("https://cdn.example.com/%s", name), nil
}

type updaterStub struct {
	mu       sync.Mutex
	ready    map[string]string
	failed   []string
	readyErr error
}

func (u *updaterStub) MarkThumbnailReady(_ context.Context, videoID, location string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.ready == nil {
		u.ready = make(map[string]string)
	}
	u.ready[videoID] = location
	return u.readyErr
}

func (u *updaterStub) MarkThumbnailFailed(_ context.Context, videoID string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.failed = append(u.failed, videoID)
	return nil
}

func (u *updaterStub) snapshot() (map[string]string, []string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	ready := make(map[string]string, len(u.ready))
	for k, v := range u.ready {
		ready[k] = v
	}
	return ready, append([]string(nil), u.failed...)
}

type publisherStub struct {
	mu    sync.Mutex
	users []string
}

func (p *publisherStub) Publish(_ context.Context, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.users = append(p.users, userID)
	return nil
}

func (p *publisherStub) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.users)
}

func shutdown(t *testing.T, m *Mirror) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := m.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestMirrorSuccess(t *testing.T) {
	fetcher := &fetcherStub{data: []byte("jpeg-bytes")}
	storage := &storageStub{}
	updater := &updaterStub{}
	changes := &publisherStub{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	mirror := NewMirror(fetcher, storage, updater, changes, nil, Config{QueueSize: 1, Workers: 1}, logger)

	video := models.Video{ID: "video-1", UserID: "ann", YoutubeVideoID: "dQw4w9WgXcQ"}
	if err := mirror.Enqueue(context.Background(), video); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	waitForCondition(t, func() bool { return changes.count() > 0 }, time.Second)
	shutdown(t, mirror)

	if got := fetcher.urls[0]; got != "https://img.youtube.com/vi/dQw4w9WgXcQ/hqdefault.jpg" {
		t.Fatalf("unexpected fetch url: %s", got)
	}
	if string(storage.saved["thumbnails/video-1.jpg"]) != "jpeg-bytes" {
		t.Fatalf("expected thumbnail saved under video key, got %v", storage.saved)
	}
	ready, failed := updater.snapshot()
	if ready["video-1"] != "https://cdn.example.com/thumbnails/video-1.jpg" {
		t.Fatalf("unexpected ready location: %q", ready["video-1"])
	}
	if len(failed) != 0 {
		t.Fatalf("expected no failures, got %v", failed)
	}
}

func TestMirrorFetchFailure(t *testing.T) {
	fetcher := &fetcherStub{err: errors.New("404")}
	updater := &updaterStub{}
	changes := &publisherStub{}

	mirror := NewMirror(fetcher, &storageStub{}, updater, changes, nil, Config{QueueSize: 1, Workers: 1}, nil)
	if err := mirror.Enqueue(context.Background(), models.Video{ID: "video-2", UserID: "ann"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	waitForCondition(t, func() bool { return changes.count() > 0 }, time.Second)
	shutdown(t, mirror)

	ready, failed := updater.snapshot()
	if len(ready) != 0 {
		t.Fatalf("expected no ready calls on failure")
	}
	if len(failed) != 1 || failed[0] != "video-2" {
		t.Fatalf("expected failure recorded, got %v", failed)
	}
}

func TestMirrorStorageFailure(t *testing.T) {
	updater := &updaterStub{}
	changes := &publisherStub{}

	mirror := NewMirror(&fetcherStub{data: []byte("x")}, &storageStub{err: ErrStorageUnavailable}, updater, changes, nil, Config{}, nil)
	if err := mirror.Enqueue(context.Background(), models.Video{ID: "video-3", UserID: "ann"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	waitForCondition(t, func() bool { return changes.count() > 0 }, time.Second)
	shutdown(t, mirror)

	if _, failed := updater.snapshot(); len(failed) != 1 {
		t.Fatalf("expected failure recorded, got %v", failed)
	}
}

func TestMirrorRejectsAfterShutdown(t *testing.T) {
	mirror := NewMirror(&fetcherStub{}, &storageStub{}, &updaterStub{}, nil, nil, Config{}, nil)
	shutdown(t, mirror)

	if err := mirror.Enqueue(context.Background(), models.Video{ID: "late"}); !errors.Is(err, errMirrorClosed) {
		t.Fatalf("expected closed error, got %v", err)
	}
}

func TestMirrorEnqueueHonoursContext(t *testing.T) {
	mirror := NewMirror(&fetcherStub{}, &storageStub{}, &updaterStub{}, nil, nil, Config{}, nil)
	defer shutdown(t, mirror)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := mirror.Enqueue(ctx, models.Video{ID: "cancelled"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
}

func TestHTTPFetcher(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.jpg":
			w.Header().Set("Content-Type", "image/jpeg")
			_, _ = w.Write([]byte("jpeg"))
		case "/html":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<html>"))
		case "/big.jpg":
			w.Header().Set("Content-Type", "image/jpeg")
			_, _ = w.Write([]byte(strings.Repeat("x", MaxImageBytes+1)))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	fetcher := HTTPFetcher{Client: server.Client()}

	data, err := fetcher.Fetch(context.Background(), server.URL+"/ok.jpg")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if string(data) != "jpeg" {
		t.Fatalf("unexpected body %q", data)
	}

	for _, path := range []string{"/missing.jpg", "/html", "/big.jpg"} {
		if _, err := fetcher.Fetch(context.Background(), server.URL+path); err == nil {
			t.Fatalf("expected error for %s", path)
		}
	}
}

func TestObjectKey(t *testing.T) {
	if got := ObjectKey("abc"); got != "thumbnails/abc.jpg" {
		t.Fatalf("unexpected key %s", got)
	}
}

func waitForCondition(t *testing.T, predicate func() bool, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if predicate() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}
