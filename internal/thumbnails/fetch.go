package thumbnails

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// MaxImageBytes bounds the size of a fetched thumbnail.
const MaxImageBytes = 2 << 20

// HTTPFetcher downloads images over HTTP.
type HTTPFetcher struct {
	Client *http.Client
}

// Fetch GETs url and returns the body when the response is a 200 image.
func (f HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build thumbnail request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch thumbnail: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch thumbnail: unexpected status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") {
		return nil, fmt.Errorf("fetch thumbnail: unexpected content type %q", ct)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read thumbnail: %w", err)
	}
	if len(data) > MaxImageBytes {
		return nil, fmt.Errorf("fetch thumbnail: image exceeds %d bytes", MaxImageBytes)
	}
	return data, nil
}
