// Package publisher mirrors one candidate post to the configured endpoints:
// download media, upload it to Blossom, build and sign a note, broadcast it.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Adda-Baaj/nostr-mirror/internal/domain"
	"github.com/Adda-Baaj/nostr-mirror/pkg/media"
	"github.com/Adda-Baaj/nostr-mirror/pkg/signer"
	"github.com/nbd-wtf/go-nostr"
)

// Pipeline steps, used in StepError.
const (
	StepSign      = "sign"
	StepDownload  = "download"
	StepUpload    = "upload"
	StepBroadcast = "broadcast"
)

// Hashtags attached to every mirrored note.
var defaultTags = nostr.Tags{
	{"t", "instagram-mirror"},
	{"t", "social-media"},
}

// Downloader fetches the media of a post.
type Downloader interface {
	Download(ctx context.Context, mediaURL string) (media.Blob, error)
}

// Uploader stores a blob on a media host and returns its reference tags.
type Uploader interface {
	Upload(ctx context.Context, keys signer.Keys, blob media.Blob) (nostr.Tags, error)
}

// Broadcaster delivers a signed event and reports how many endpoints accepted it.
type Broadcaster interface {
	Broadcast(ctx context.Context, endpoints []string, evt nostr.Event) (int, error)
}

// StepError identifies the pipeline step that failed for a post.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string { return fmt.Sprintf("%s: %v", e.Step, e.Err) }
func (e *StepError) Unwrap() error { return e.Err }

// Service publishes posts. It holds no per-post state.
type Service struct {
	downloader  Downloader
	uploader    Uploader
	broadcaster Broadcaster
	now         func() time.Time
}

// NewService wires the publishing pipeline.
func NewService(d Downloader, u Uploader, b Broadcaster) *Service {
	return &Service{downloader: d, uploader: u, broadcaster: b, now: time.Now}
}

// Publish mirrors post. A nil error means at least one endpoint accepted the note.
func (s *Service) Publish(ctx context.Context, signingKey string, post domain.CandidatePost, endpoints []string) error {
	if len(endpoints) == 0 {
		return &StepError{Step: StepBroadcast, Err: domain.ErrNoEndpoints}
	}
	keys, err := signer.Parse(signingKey)
	if err != nil {
		return &StepError{Step: StepSign, Err: err}
	}

	blob, err := s.downloader.Download(ctx, post.MediaURL)
	if err != nil {
		return &StepError{Step: StepDownload, Err: err}
	}

	hostTags, err := s.uploader.Upload(ctx, keys, blob)
	if err != nil {
		return &StepError{Step: StepUpload, Err: err}
	}

	evt := BuildEvent(post, hostTags, s.now())
	if err := keys.Sign(&evt); err != nil {
		return &StepError{Step: StepSign, Err: err}
	}

	delivered, err := s.broadcaster.Broadcast(ctx, endpoints, evt)
	if delivered == 0 {
		if err == nil {
			err = errors.New("no endpoint acknowledged the event")
		}
		return &StepError{Step: StepBroadcast, Err: err}
	}
	return nil
}

// BuildEvent assembles the unsigned kind-1 note for post.
func BuildEvent(post domain.CandidatePost, hostTags nostr.Tags, at time.Time) nostr.Event {
	tags := make(nostr.Tags, 0, len(defaultTags)+1+len(hostTags))
	for _, t := range defaultTags {
		tags = append(tags, append(nostr.Tag(nil), t...))
	}
	tags = append(tags, nostr.Tag{"u", post.Link})
	tags = append(tags, hostTags...)

	return nostr.Event{
		Kind:      nostr.KindTextNote,
		CreatedAt: nostr.Timestamp(at.Unix()),
		Tags:      tags,
		Content:   noteContent(post, uploadedURL(hostTags)),
	}
}

func noteContent(post domain.CandidatePost, imageURL string) string {
	var b strings.Builder
	b.WriteString(post.Caption)
	b.WriteString("\n\nOriginal Post: ")
	b.WriteString(post.Link)
	b.WriteString("\nImage: ")
	b.WriteString(imageURL)
	return b.String()
}

func uploadedURL(tags nostr.Tags) string {
	for _, t := range tags {
		if len(t) >= 2 && t[0] == "url" {
			return t[1]
		}
	}
	return ""
}
