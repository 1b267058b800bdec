package providers

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Adda-Baaj/nostr-mirror/pkg/httpclient"
)

// fetcherRegistry resolves fetchers by provider type.
type fetcherRegistry struct {
	mu       sync.RWMutex
	fetchers map[string]Fetcher
}

// NewFetcherRegistry registers each fetcher under its ID, which names the provider type it serves.
func NewFetcherRegistry(fetchers ...Fetcher) FetcherRegistry {
	reg := &fetcherRegistry{fetchers: make(map[string]Fetcher, len(fetchers))}
	for _, f := range fetchers {
		if f != nil {
			reg.register(f.ID(), f)
		}
	}
	return reg
}

func (r *fetcherRegistry) register(typ string, f Fetcher) {
	key := normalizeType(typ)
	if key == "" {
		return
	}
	r.mu.Lock()
	r.fetchers[key] = f
	r.mu.Unlock()
}

// FetcherFor returns the fetcher for cfg.Type, falling back to cfg.ID when no type is set.
func (r *fetcherRegistry) FetcherFor(cfg Provider) (Fetcher, error) {
	key := normalizeType(cfg.Type)
	if key == "" {
		key = normalizeType(cfg.ID)
	}
	if key == "" {
		return nil, errors.New("provider has neither type nor id")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if f, ok := r.fetchers[key]; ok {
		return f, nil
	}
	return nil, fmt.Errorf("no fetcher registered for provider %q (type %q)", cfg.ID, cfg.Type)
}

func normalizeType(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

// DefaultHTTPClient returns the client used for profile pages when none is injected.
func DefaultHTTPClient(timeout time.Duration) HTTPClient {
	return httpclient.New(httpclient.Options{Timeout: timeout, Retries: 1})
}

// DefaultFetcherRegistry registers every supported platform fetcher for cfg.
func DefaultFetcherRegistry(client HTTPClient, cfg Provider) FetcherRegistry {
	if client == nil {
		client = DefaultHTTPClient(0)
	}
	return NewFetcherRegistry(NewInstagramFetcher(client, cfg))
}
