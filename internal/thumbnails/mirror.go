// Package thumbnails copies YouTube thumbnails into the application's object
// store in the background.
package thumbnails

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/vidgallery/backend/internal/logging"
	"github.com/vidgallery/backend/internal/metrics"
	"github.com/vidgallery/backend/internal/models"
	"github.com/vidgallery/backend/internal/youtube"
)

// ErrStorageUnavailable indicates no object store is configured.
var ErrStorageUnavailable = errors.New("thumbnail storage unavailable")

var errMirrorClosed = errors.New("thumbnail mirror closed")

// AssetStorage persists binary objects and returns their public location.
type AssetStorage interface {
	Save(ctx context.Context, name string, r io.Reader) (string, error)
}

// StatusUpdater records the outcome of a mirror job on the video.
type StatusUpdater interface {
	MarkThumbnailReady(ctx context.Context, videoID, location string) error
	MarkThumbnailFailed(ctx context.Context, videoID string) error
}

// Fetcher downloads the image at url.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Publisher announces that a user's gallery changed.
type Publisher interface {
	Publish(ctx context.Context, userID string) error
}

// Config controls the concurrency characteristics of the mirror.
type Config struct {
	QueueSize  int
	Workers    int
	JobTimeout time.Duration
}

// Mirror is a worker pool that fetches each new video's high resolution
// thumbnail and stores it under thumbnails/<videoID>.jpg.
type Mirror struct {
	fetcher Fetcher
	storage AssetStorage
	updater StatusUpdater
	changes Publisher
	metrics *metrics.Metrics
	logger  *slog.Logger
	timeout time.Duration

	jobs   chan job
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// NewMirror starts cfg.Workers goroutines. changes and m may be nil.
func NewMirror(fetcher Fetcher, storage AssetStorage, updater StatusUpdater, changes Publisher, m *metrics.Metrics, cfg Config, logger *slog.Logger) *Mirror {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 16
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	mir := &Mirror{
		fetcher: fetcher,
		storage: storage,
		updater: updater,
		changes: changes,
		metrics: m,
		logger:  logger,
		timeout: cfg.JobTimeout,
		jobs:    make(chan job, cfg.QueueSize),
		ctx:     ctx,
		cancel:  cancel,
	}

	mir.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go mir.worker()
	}

	return mir
}

// ObjectKey is where the thumbnail of videoID is stored.
func ObjectKey(videoID string) string {
	return "thumbnails/" + videoID + ".jpg"
}

// job pairs a video with the logging scope of the request that added it.
type job struct {
	scope context.Context
	video models.Video
}

// Enqueue schedules the video's thumbnail for mirroring. The job outlives
// ctx but keeps its request and trace ids in the logs.
func (m *Mirror) Enqueue(ctx context.Context, video models.Video) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-m.ctx.Done():
		return errMirrorClosed
	default:
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-m.ctx.Done():
		return errMirrorClosed
	case m.jobs <- job{scope: logging.Detach(ctx), video: video}:
		return nil
	}
}

// Shutdown stops accepting jobs and waits for in-flight ones to finish.
func (m *Mirror) Shutdown(ctx context.Context) error {
	m.once.Do(func() {
		m.cancel()
		close(m.jobs)
	})

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (m *Mirror) worker() {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			return
		case j, ok := <-m.jobs:
			if !ok {
				return
			}
			m.handle(j)
		}
	}
}

func (m *Mirror) handle(j job) {
	video := j.video
	if m.fetcher == nil || m.storage == nil || m.updater == nil {
		m.logger.Error("thumbnail mirror missing dependencies", "hasFetcher", m.fetcher != nil, "hasStorage", m.storage != nil, "hasUpdater", m.updater != nil)
		return
	}

	ctx, cancel := context.WithTimeout(j.scope, m.timeout)
	defer cancel()
	ctx, span := logging.StartSpan(ctx, "thumbnails.mirror")
	defer span.End()

	logger := m.logger
	if requestID := logging.RequestIDFromContext(ctx); requestID != "" {
		logger = logger.With("request_id", requestID, "trace_id", logging.TraceIDFromContext(ctx))
	}

	location, err := m.mirror(ctx, video)
	if err != nil {
		span.Fail(err)
		logger.Error("thumbnail mirror failed", "videoId", video.ID, "youtubeVideoId", video.YoutubeVideoID, "error", err)
		m.metrics.ThumbnailMirror(metrics.OutcomeError)
		if err := m.updater.MarkThumbnailFailed(ctx, video.ID); err != nil {
			logger.Error("record thumbnail failure", "videoId", video.ID, "error", err)
		}
		m.publish(ctx, video.UserID)
		return
	}

	if err := m.updater.MarkThumbnailReady(ctx, video.ID, location); err != nil {
		// the video may have been deleted while the job was queued
		logger.Warn("mark thumbnail ready", "videoId", video.ID, "error", err)
		m.metrics.ThumbnailMirror(metrics.OutcomeRejected)
		return
	}

	logger.Debug("thumbnail mirrored", "videoId", video.ID, "location", location)
	m.metrics.ThumbnailMirror(metrics.OutcomeSuccess)
	m.publish(ctx, video.UserID)
}

func (m *Mirror) mirror(ctx context.Context, video models.Video) (string, error) {
	data, err := m.fetcher.Fetch(ctx, youtube.ThumbnailURL(video.YoutubeVideoID, youtube.ResolutionHigh))
	if err != nil {
		return "", err
	}
	location, err := m.storage.Save(ctx, ObjectKey(video.ID), bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("store thumbnail: %w", err)
	}
	return location, nil
}

func (m *Mirror) publish(ctx context.Context, userID string) {
	if m.changes == nil {
		return
	}
	if err := m.changes.Publish(ctx, userID); err != nil {
		m.logger.Warn("gallery change not published", "userId", userID, "error", err)
	}
}
