// Package media retrieves post media and uploads it to Blossom hosts.
package media

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/Adda-Baaj/nostr-mirror/pkg/httpclient"
)

const (
	defaultContentType = "image/jpeg"
	defaultMaxBytes    = 25 << 20
)

// Blob is a downloaded media file.
type Blob struct {
	Data        []byte
	ContentType string
	SHA256      string
}

// NewBlob wraps data, hashing it and normalizing contentType.
func NewBlob(data []byte, contentType string) Blob {
	sum := sha256.Sum256(data)
	return Blob{
		Data:        data,
		ContentType: normalizeContentType(contentType, data),
		SHA256:      hex.EncodeToString(sum[:]),
	}
}

// DownloaderOptions configures a Downloader.
type DownloaderOptions struct {
	ProxyURL string
	MaxBytes int64
	Headers  map[string]string
}

// Downloader fetches media URLs into memory.
type Downloader struct {
	client   httpclient.Client
	proxyURL string
	maxBytes int64
	headers  map[string]string
}

// NewDownloader builds a downloader with the provided HTTP client (or a default one).
func NewDownloader(client httpclient.Client, opts DownloaderOptions) *Downloader {
	if client == nil {
		client = httpclient.NewRestyClient(30 * time.Second)
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = defaultMaxBytes
	}
	return &Downloader{
		client:   client,
		proxyURL: opts.ProxyURL,
		maxBytes: opts.MaxBytes,
		headers:  opts.Headers,
	}
}

// Download retrieves mediaURL. Non-2xx responses, empty bodies and oversized bodies are errors.
func (d *Downloader) Download(ctx context.Context, mediaURL string) (Blob, error) {
	if strings.TrimSpace(mediaURL) == "" {
		return Blob{}, fmt.Errorf("media url is empty")
	}

	resp, err := d.client.Get(ctx, httpclient.ProxyURL(d.proxyURL, mediaURL), d.headers)
	if err != nil {
		return Blob{}, fmt.Errorf("http fetch: %w", err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		return Blob{}, fmt.Errorf("media returned status %d", resp.StatusCode())
	}

	body := resp.Body()
	if len(body) == 0 {
		return Blob{}, fmt.Errorf("media body is empty")
	}
	if int64(len(body)) > d.maxBytes {
		return Blob{}, fmt.Errorf("media is %d bytes, limit is %d", len(body), d.maxBytes)
	}

	return NewBlob(body, resp.Header("Content-Type")), nil
}

// normalizeContentType keeps image types, sniffs when the header is missing and
// falls back to JPEG for anything that is not an image.
func normalizeContentType(header string, data []byte) string {
	ct := ""
	if header != "" {
		if parsed, _, err := mime.ParseMediaType(header); err == nil {
			ct = parsed
		}
	}
	if ct == "" || ct == "application/octet-stream" {
		ct, _, _ = mime.ParseMediaType(http.DetectContentType(data))
	}
	if !strings.HasPrefix(ct, "image/") && !strings.HasPrefix(ct, "video/") {
		return defaultContentType
	}
	return ct
}

// Extension returns a file extension for the blob's content type.
func (b Blob) Extension() string {
	switch b.ContentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	case "video/mp4":
		return ".mp4"
	}
	if exts, err := mime.ExtensionsByType(b.ContentType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}
