package youtube

import "regexp"

// IDLength is the length of a canonical YouTube video identifier.
const IDLength = 11

var (
	urlPattern  = regexp.MustCompile(`(?:youtube\.com/watch\?v=|youtu\.be/|youtube\.com/embed/|youtube\.com/v/)([a-zA-Z0-9_-]{11})`)
	barePattern = regexp.MustCompile(`^([a-zA-Z0-9_-]{11})$`)

	patterns = []*regexp.Regexp{urlPattern, barePattern}
)

// ParseVideoID extracts the video identifier from a YouTube URL or a bare
// identifier. The input is matched as-is; surrounding whitespace is not trimmed.
func ParseVideoID(input string) (string, bool) {
	for _, pattern := range patterns {
		if match := pattern.FindStringSubmatch(input); match != nil {
			return match[1], true
		}
	}
	return "", false
}

// Resolution selects one of the fixed thumbnail variants.
type Resolution int

const (
	ResolutionMedium Resolution = iota
	ResolutionHigh
)

// ThumbnailURL returns the image address for the supplied video identifier.
func ThumbnailURL(videoID string, res Resolution) string {
	variant := "mqdefault"
	if res == ResolutionHigh {
		variant = "hqdefault"
	}
	return "https://img.youtube.com/vi/" + videoID + "/" + variant + ".jpg"
}

// WatchURL returns the canonical watch page for a video identifier.
func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}
