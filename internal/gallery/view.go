package gallery

import (
	"slices"
	"strings"

	"github.com/vidgallery/backend/internal/models"
)

// SplitTags turns comma separated input into tags, trimming whitespace and
// dropping empty segments. Order and duplicates are preserved.
func SplitTags(csv string) []string {
	tags := []string{}
	for _, part := range strings.Split(csv, ",") {
		if tag := strings.TrimSpace(part); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// Filter returns the videos whose title or any tag contains query,
// ignoring case. An empty query returns videos unchanged. The input slice is
// never modified.
func Filter(videos []models.Video, query string) []models.Video {
	if query == "" {
		return videos
	}
	needle := strings.ToLower(query)

	out := make([]models.Video, 0, len(videos))
	for _, video := range videos {
		if matches(video, needle) {
			out = append(out, video)
		}
	}
	return out
}

func matches(video models.Video, needle string) bool {
	if strings.Contains(strings.ToLower(video.Title), needle) {
		return true
	}
	for _, tag := range video.Tags {
		if strings.Contains(strings.ToLower(tag), needle) {
			return true
		}
	}
	return false
}

// SortNewestFirst orders videos by creation time, newest first. Videos created
// at the same instant keep their relative order.
func SortNewestFirst(videos []models.Video) {
	slices.SortStableFunc(videos, func(a, b models.Video) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
}
