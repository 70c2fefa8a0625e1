package gallery

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vidgallery/backend/internal/apperrors"
	"github.com/vidgallery/backend/internal/logging"
	"github.com/vidgallery/backend/internal/metrics"
	"github.com/vidgallery/backend/internal/models"
	"github.com/vidgallery/backend/internal/repositories"
	"github.com/vidgallery/backend/internal/youtube"
)

// VideoStore captures the persistence used by the gallery.
type VideoStore interface {
	Create(ctx context.Context, video models.Video) error
	ListByOwner(ctx context.Context, userID string) ([]models.Video, error)
	UpdateDetails(ctx context.Context, userID, videoID, title string, tags []string) (models.Video, error)
	Delete(ctx context.Context, userID, videoID string) error
}

// Publisher announces that a user's gallery changed.
type Publisher interface {
	Publish(ctx context.Context, userID string) error
}

// ThumbnailQueue schedules thumbnail mirroring for newly added videos.
type ThumbnailQueue interface {
	Enqueue(ctx context.Context, video models.Video) error
}

// Service implements gallery CRUD for the owning user.
type Service struct {
	Videos     VideoStore
	Changes    Publisher
	Thumbnails ThumbnailQueue
	Metrics    *metrics.Metrics
	NowFunc    func() time.Time
}

// PlaceholderTitle is the title given to videos added without one.
func PlaceholderTitle(videoID string) string {
	return "YouTube video " + videoID
}

// Add validates rawURL and saves the video to the user's gallery. Invalid
// URLs are rejected before anything is written.
func (s *Service) Add(ctx context.Context, userID, rawURL, title, tagsCSV string) (_ models.Video, err error) {
	ctx, span := logging.StartSpan(ctx, "gallery.add")
	defer func() {
		span.Fail(err)
		span.End()
	}()

	videoID, ok := youtube.ParseVideoID(rawURL)
	if !ok {
		s.Metrics.VideoWrite("add", metrics.OutcomeRejected)
		return models.Video{}, apperrors.Validation("Invalid YouTube URL")
	}

	title = strings.TrimSpace(title)
	if title == "" {
		title = PlaceholderTitle(videoID)
	}

	video := models.Video{
		ID:                   uuid.NewString(),
		UserID:               userID,
		YoutubeURL:           rawURL,
		YoutubeVideoID:       videoID,
		Title:                title,
		ThumbnailURL:         youtube.ThumbnailURL(videoID, youtube.ResolutionMedium),
		Tags:                 SplitTags(tagsCSV),
		CreatedAt:            s.now(),
		ThumbnailAssetStatus: models.AssetStatusPending,
	}
	if s.Thumbnails == nil {
		video.ThumbnailAssetStatus = models.AssetStatusDisabled
	}

	if err := s.Videos.Create(ctx, video); err != nil {
		s.Metrics.VideoWrite("add", metrics.OutcomeError)
		return models.Video{}, apperrors.Transient("failed to add video", err)
	}

	s.Metrics.VideoWrite("add", metrics.OutcomeSuccess)
	s.publish(ctx, userID)

	if s.Thumbnails != nil {
		if err := s.Thumbnails.Enqueue(ctx, video); err != nil {
			logging.FromContext(ctx).Warn("thumbnail mirror not scheduled", "videoId", video.ID, "error", err)
		}
	}

	return video, nil
}

// Update overwrites the title and tags of a video. Nothing else changes.
func (s *Service) Update(ctx context.Context, userID, videoID, title, tagsCSV string) (models.Video, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		s.Metrics.VideoWrite("update", metrics.OutcomeRejected)
		return models.Video{}, apperrors.Validation("title is required")
	}

	video, err := s.Videos.UpdateDetails(ctx, userID, videoID, title, SplitTags(tagsCSV))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			s.Metrics.VideoWrite("update", metrics.OutcomeRejected)
			return models.Video{}, apperrors.NotFound("video not found")
		}
		s.Metrics.VideoWrite("update", metrics.OutcomeError)
		return models.Video{}, apperrors.Transient("failed to update video", err)
	}

	s.Metrics.VideoWrite("update", metrics.OutcomeSuccess)
	s.publish(ctx, userID)
	return video, nil
}

// Delete removes a video once the caller has confirmed the deletion.
func (s *Service) Delete(ctx context.Context, userID, videoID string, confirmed bool) error {
	if !confirmed {
		s.Metrics.VideoWrite("delete", metrics.OutcomeRejected)
		return apperrors.Validation("deletion must be confirmed")
	}

	if err := s.Videos.Delete(ctx, userID, videoID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			s.Metrics.VideoWrite("delete", metrics.OutcomeRejected)
			return apperrors.NotFound("video not found")
		}
		s.Metrics.VideoWrite("delete", metrics.OutcomeError)
		return apperrors.Transient("failed to delete video", err)
	}

	s.Metrics.VideoWrite("delete", metrics.OutcomeSuccess)
	s.publish(ctx, userID)
	return nil
}

// Snapshot returns the user's whole gallery, newest first.
func (s *Service) Snapshot(ctx context.Context, userID string) ([]models.Video, error) {
	videos, err := s.Videos.ListByOwner(ctx, userID)
	if err != nil {
		return nil, apperrors.Transient("failed to load videos", err)
	}
	if videos == nil {
		videos = []models.Video{}
	}
	SortNewestFirst(videos)
	return videos, nil
}

// List returns the user's gallery narrowed by query.
func (s *Service) List(ctx context.Context, userID, query string) ([]models.Video, error) {
	videos, err := s.Snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	return Filter(videos, query), nil
}

func (s *Service) publish(ctx context.Context, userID string) {
	if s.Changes == nil {
		return
	}
	if err := s.Changes.Publish(ctx, userID); err != nil {
		logging.FromContext(ctx).Warn("gallery change not published", "userId", userID, "error", err)
	}
}

func (s *Service) now() time.Time {
	if s.NowFunc != nil {
		return s.NowFunc()
	}
	return time.Now().UTC()
}
