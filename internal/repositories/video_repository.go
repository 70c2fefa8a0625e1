package repositories

import (
	"context"

	"github.com/vidgallery/backend/internal/models"
)

// VideoRepository exposes data access for gallery videos. Every mutation is
// scoped to the owning user so callers cannot touch another gallery.
type VideoRepository interface {
	Create(ctx context.Context, video models.Video) error
	ListByOwner(ctx context.Context, userID string) ([]models.Video, error)
	UpdateDetails(ctx context.Context, userID, videoID, title string, tags []string) (models.Video, error)
	Delete(ctx context.Context, userID, videoID string) error
	MarkThumbnailReady(ctx context.Context, videoID, location string) error
	MarkThumbnailFailed(ctx context.Context, videoID string) error
}
