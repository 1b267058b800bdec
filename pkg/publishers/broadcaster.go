package publishers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/Adda-Baaj/nostr-mirror/internal/domain"
	"github.com/Adda-Baaj/nostr-mirror/internal/logger"
	"github.com/nbd-wtf/go-nostr"
)

// Broadcaster resolves endpoint URIs to publishers, caching them, and fans events out.
type Broadcaster struct {
	registry Registry
	opts     Options
	log      logger.Logger

	mu    sync.Mutex
	cache map[string]Publisher
}

// NewBroadcaster builds a broadcaster. A nil registry uses DefaultRegistry.
func NewBroadcaster(reg Registry, opts Options, log logger.Logger) *Broadcaster {
	if reg == nil {
		reg = DefaultRegistry()
	}
	return &Broadcaster{
		registry: reg,
		opts:     normalizeOptions(opts),
		log:      logger.Ensure(log),
		cache:    make(map[string]Publisher),
	}
}

// Broadcast sends evt to every endpoint and returns how many accepted it.
// Endpoints that cannot be resolved count as failures; the rest are still attempted.
func (b *Broadcaster) Broadcast(ctx context.Context, endpoints []string, evt nostr.Event) (int, error) {
	if len(endpoints) == 0 {
		return 0, domain.ErrNoEndpoints
	}

	var errs []error
	pubs := make([]Publisher, 0, len(endpoints))
	for _, raw := range endpoints {
		pub, err := b.publisherFor(ctx, raw)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		pubs = append(pubs, pub)
	}

	delivered, err := NewFanout(pubs, b.opts.Timeout).Publish(ctx, evt)
	if err != nil {
		errs = append(errs, err)
	}

	b.log.DebugObj("broadcast finished", "broadcast_result", map[string]any{
		"event_id":  evt.ID,
		"endpoints": len(endpoints),
		"delivered": delivered,
	})
	return delivered, errors.Join(errs...)
}

func (b *Broadcaster) publisherFor(ctx context.Context, raw string) (Publisher, error) {
	ep, err := ParseEndpoint(raw)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if pub, ok := b.cache[ep.Raw]; ok {
		return pub, nil
	}
	pub, err := b.registry.PublisherFor(ctx, ep, b.opts, b.log)
	if err != nil {
		return nil, fmt.Errorf("build publisher for %s: %w", ep.Raw, err)
	}
	b.cache[ep.Raw] = pub
	return pub, nil
}

// Close releases cached publishers that hold connections.
func (b *Broadcaster) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var errs []error
	for key, pub := range b.cache {
		if c, ok := pub.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", key, err))
			}
		}
		delete(b.cache, key)
	}
	return errors.Join(errs...)
}
