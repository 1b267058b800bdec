package providers

import (
	"context"

	"github.com/Adda-Baaj/nostr-mirror/internal/domain"
	"github.com/Adda-Baaj/nostr-mirror/pkg/httpclient"
)

// Fetcher retrieves the recent posts of one account on a source platform.
// Concrete implementations live in platform-specific files (e.g., instagram.go).
type Fetcher interface {
	ID() string
	Fetch(ctx context.Context, account string) ([]domain.CandidatePost, error)
}

// FetcherRegistry resolves the fetcher implementation for a given provider config.
type FetcherRegistry interface {
	FetcherFor(cfg Provider) (Fetcher, error)
}

// HTTPClient aliases the shared httpclient.Client interface for clarity within providers.
type HTTPClient = httpclient.Client
