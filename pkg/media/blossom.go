package media

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Adda-Baaj/nostr-mirror/pkg/httpclient"
	"github.com/Adda-Baaj/nostr-mirror/pkg/signer"
	"github.com/go-resty/resty/v2"
	"github.com/nbd-wtf/go-nostr"
)

const (
	// KindBlossomAuth is the Blossom authorization event kind (BUD-01).
	KindBlossomAuth = 24242

	authExpiry = 5 * time.Minute
)

// Descriptor is the blob descriptor returned by a Blossom server.
type Descriptor struct {
	URL      string `json:"url"`
	SHA256   string `json:"sha256"`
	Size     int64  `json:"size"`
	Type     string `json:"type"`
	Uploaded int64  `json:"uploaded"`
}

// BlossomUploader uploads blobs to the first Blossom server that accepts them.
type BlossomUploader struct {
	servers []string
	client  *resty.Client
	now     func() time.Time
}

// NewBlossomUploader builds an uploader for servers (tried in order).
func NewBlossomUploader(servers []string, timeout time.Duration) *BlossomUploader {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	cleaned := make([]string, 0, len(servers))
	for _, s := range servers {
		if s = strings.TrimRight(strings.TrimSpace(s), "/"); s != "" {
			cleaned = append(cleaned, s)
		}
	}
	return &BlossomUploader{
		servers: cleaned,
		client:  httpclient.NewRestyHTTPClient(timeout),
		now:     time.Now,
	}
}

// Upload stores blob and returns the reference tags describing it:
// url, x, ox, size and m, in that order.
func (u *BlossomUploader) Upload(ctx context.Context, keys signer.Keys, blob Blob) (nostr.Tags, error) {
	if len(u.servers) == 0 {
		return nil, errors.New("no blossom servers configured")
	}

	auth, err := u.authorization(keys, blob)
	if err != nil {
		return nil, err
	}

	var errs []error
	for _, server := range u.servers {
		desc, err := u.put(ctx, server, auth, blob)
		if err != nil {
			errs = append(errs, fmt.Errorf("blossom %s: %w", server, err))
			continue
		}
		return descriptorTags(desc, blob), nil
	}
	return nil, errors.Join(errs...)
}

func (u *BlossomUploader) put(ctx context.Context, server, auth string, blob Blob) (Descriptor, error) {
	resp, err := u.client.R().
		SetContext(ctx).
		SetHeader("Authorization", auth).
		SetHeader("Content-Type", blob.ContentType).
		SetBody(blob.Data).
		Put(server + "/upload")
	if err != nil {
		return Descriptor{}, fmt.Errorf("http request: %w", err)
	}
	if resp.IsError() {
		reason := strings.TrimSpace(resp.Header().Get("X-Reason"))
		if reason == "" {
			reason = snippet(resp.Body())
		}
		return Descriptor{}, fmt.Errorf("http response status %d: %s", resp.StatusCode(), reason)
	}

	var desc Descriptor
	if err := json.Unmarshal(resp.Body(), &desc); err != nil {
		return Descriptor{}, fmt.Errorf("decode blob descriptor: %w", err)
	}
	if strings.TrimSpace(desc.URL) == "" {
		return Descriptor{}, errors.New("blob descriptor has no url")
	}
	return desc, nil
}

// authorization builds the "Nostr <base64 event>" header value for an upload.
func (u *BlossomUploader) authorization(keys signer.Keys, blob Blob) (string, error) {
	now := u.now()
	evt := nostr.Event{
		Kind:      KindBlossomAuth,
		CreatedAt: nostr.Timestamp(now.Unix()),
		Tags: nostr.Tags{
			{"t", "upload"},
			{"x", blob.SHA256},
			{"expiration", strconv.FormatInt(now.Add(authExpiry).Unix(), 10)},
		},
		Content: "Upload instagram-image" + blob.Extension(),
	}
	if err := keys.Sign(&evt); err != nil {
		return "", fmt.Errorf("sign upload authorization: %w", err)
	}
	raw, err := json.Marshal(evt)
	if err != nil {
		return "", fmt.Errorf("encode upload authorization: %w", err)
	}
	return "Nostr " + base64.StdEncoding.EncodeToString(raw), nil
}

func descriptorTags(desc Descriptor, blob Blob) nostr.Tags {
	sha := desc.SHA256
	if sha == "" {
		sha = blob.SHA256
	}
	size := desc.Size
	if size <= 0 {
		size = int64(len(blob.Data))
	}
	typ := desc.Type
	if typ == "" {
		typ = blob.ContentType
	}
	return nostr.Tags{
		{"url", desc.URL},
		{"x", sha},
		{"ox", blob.SHA256},
		{"size", strconv.FormatInt(size, 10)},
		{"m", typ},
	}
}

func snippet(body []byte) string {
	if len(body) > 512 {
		body = body[:512]
	}
	return strings.TrimSpace(string(body))
}
