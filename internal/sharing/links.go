package sharing

import (
	"bytes"
	"fmt"
	"image/png"
	"net/url"
	"strings"

	"github.com/skip2/go-qrcode"
)

// DefaultQRSize is the edge length in pixels of generated QR codes.
const DefaultQRSize = 256

// Links builds public share URLs rooted at BaseURL.
type Links struct {
	BaseURL string
}

// URL returns <base>/share/<token>.
func (l Links) URL(token string) string {
	return strings.TrimRight(l.BaseURL, "/") + "/share/" + url.PathEscape(token)
}

// QRCode renders the share URL of token as a PNG. Sizes outside 64..1024 fall
// back to DefaultQRSize.
func (l Links) QRCode(token string, size int) ([]byte, error) {
	if size < 64 || size > 1024 {
		size = DefaultQRSize
	}

	qr, err := qrcode.New(l.URL(token), qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("encode share link: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(size)); err != nil {
		return nil, fmt.Errorf("render share qr: %w", err)
	}
	return buf.Bytes(), nil
}
