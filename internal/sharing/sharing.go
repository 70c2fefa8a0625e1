// Package sharing serves read-only views of a user's gallery to anyone holding
// the owner's share token.
package sharing

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/vidgallery/backend/internal/apperrors"
	"github.com/vidgallery/backend/internal/gallery"
	"github.com/vidgallery/backend/internal/logging"
	"github.com/vidgallery/backend/internal/metrics"
	"github.com/vidgallery/backend/internal/models"
	"github.com/vidgallery/backend/internal/repositories"
)

// UserStore resolves gallery owners.
type UserStore interface {
	FindByID(ctx context.Context, uid string) (models.UserProfile, error)
	FindByShareToken(ctx context.Context, token string) (models.UserProfile, error)
}

// VideoStore lists an owner's videos.
type VideoStore interface {
	ListByOwner(ctx context.Context, userID string) ([]models.Video, error)
}

// SharedGallery is what a share link reveals: the owner's display name and
// their videos. Nothing else about the owner is exposed.
type SharedGallery struct {
	OwnerName string        `json:"ownerName"`
	Videos    []SharedVideo `json:"videos"`
}

// SharedVideo is a video as seen through a share link. It omits the owner's
// account id.
type SharedVideo struct {
	ID                   string    `json:"id"`
	YoutubeURL           string    `json:"youtubeUrl"`
	YoutubeVideoID       string    `json:"youtubeVideoId"`
	Title                string    `json:"title"`
	ThumbnailURL         string    `json:"thumbnailUrl"`
	Tags                 []string  `json:"tags"`
	CreatedAt            time.Time `json:"createdAt"`
	ThumbnailAssetURL    string    `json:"thumbnailAssetUrl,omitempty"`
	ThumbnailAssetStatus string    `json:"thumbnailAssetStatus,omitempty"`
}

func sharedVideos(videos []models.Video) []SharedVideo {
	out := make([]SharedVideo, 0, len(videos))
	for _, v := range videos {
		out = append(out, SharedVideo{
			ID:                   v.ID,
			YoutubeURL:           v.YoutubeURL,
			YoutubeVideoID:       v.YoutubeVideoID,
			Title:                v.Title,
			ThumbnailURL:         v.ThumbnailURL,
			Tags:                 v.Tags,
			CreatedAt:            v.CreatedAt,
			ThumbnailAssetURL:    v.ThumbnailAssetURL,
			ThumbnailAssetStatus: v.ThumbnailAssetStatus,
		})
	}
	return out
}

// Link is the shareable address of a user's gallery.
type Link struct {
	Token string `json:"shareToken"`
	URL   string `json:"shareUrl"`
}

// Reader opens shared galleries and builds share links.
type Reader struct {
	Users   UserStore
	Videos  VideoStore
	Links   Links
	Metrics *metrics.Metrics
}

// Open returns the gallery behind token, narrowed by query and sorted newest
// first.
func (r *Reader) Open(ctx context.Context, token, query string) (_ SharedGallery, err error) {
	ctx, span := logging.StartSpan(ctx, "sharing.open")
	defer func() {
		span.Fail(err)
		span.End()
	}()

	token = strings.TrimSpace(token)
	if token == "" {
		r.Metrics.ShareLookup(metrics.OutcomeRejected)
		return SharedGallery{}, apperrors.NotFound("Invalid share link")
	}

	owner, err := r.Users.FindByShareToken(ctx, token)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			r.Metrics.ShareLookup(metrics.OutcomeRejected)
			return SharedGallery{}, apperrors.NotFound("Gallery not found")
		}
		r.Metrics.ShareLookup(metrics.OutcomeError)
		return SharedGallery{}, apperrors.Transient("failed to load shared gallery", err)
	}

	videos, err := r.Videos.ListByOwner(ctx, owner.UID)
	if err != nil {
		r.Metrics.ShareLookup(metrics.OutcomeError)
		return SharedGallery{}, apperrors.Transient("failed to load shared gallery", err)
	}
	gallery.SortNewestFirst(videos)

	logging.FromContext(ctx).Debug("shared gallery opened", "ownerId", owner.UID, "videos", len(videos))
	r.Metrics.ShareLookup(metrics.OutcomeSuccess)

	name := owner.DisplayName
	if name == "" {
		name = "User"
	}
	return SharedGallery{OwnerName: name, Videos: sharedVideos(gallery.Filter(videos, query))}, nil
}

// LinkFor returns the share link of userID's gallery.
func (r *Reader) LinkFor(ctx context.Context, userID string) (Link, error) {
	owner, err := r.Users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return Link{}, apperrors.NotFound("user not found")
		}
		return Link{}, apperrors.Transient("failed to load profile", err)
	}
	return Link{Token: owner.ShareToken, URL: r.Links.URL(owner.ShareToken)}, nil
}
