package publishers

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/Adda-Baaj/nostr-mirror/internal/logger"
)

// Builder creates a Publisher for an endpoint.
type Builder func(ctx context.Context, ep Endpoint, opts Options, log logger.Logger) (Publisher, error)

// Registry maps endpoint schemes to builders.
type Registry interface {
	Register(scheme string, builder Builder)
	PublisherFor(ctx context.Context, ep Endpoint, opts Options, log logger.Logger) (Publisher, error)
}

type registry struct {
	mu       sync.RWMutex
	builders map[string]Builder
}

// NewRegistry returns a registry with optional pre-registered builders.
func NewRegistry(builders map[string]Builder) Registry {
	r := &registry{
		builders: make(map[string]Builder),
	}
	for scheme, b := range builders {
		r.Register(scheme, b)
	}
	return r
}

// Register associates a builder with an endpoint scheme.
func (r *registry) Register(scheme string, builder Builder) {
	if scheme = strings.TrimSpace(strings.ToLower(scheme)); scheme == "" || builder == nil {
		return
	}

	r.mu.Lock()
	r.builders[scheme] = builder
	r.mu.Unlock()
}

// PublisherFor returns the publisher built for the endpoint.
func (r *registry) PublisherFor(ctx context.Context, ep Endpoint, opts Options, log logger.Logger) (Publisher, error) {
	r.mu.RLock()
	builder := r.builders[ep.Scheme]
	r.mu.RUnlock()

	if builder == nil {
		return nil, fmt.Errorf("no publisher registered for scheme %q", ep.Scheme)
	}
	return builder(ctx, ep, normalizeOptions(opts), logger.Ensure(log))
}

// DefaultRegistry wires up known publishers.
func DefaultRegistry() Registry {
	builders := map[string]Builder{
		"ws":        newRelayPublisher,
		"wss":       newRelayPublisher,
		"http":      newHTTPPublisher,
		"https":     newHTTPPublisher,
		schemeSQS:   newSQSPublisher,
		"sns":       newSNSPublisher,
		"gcppubsub": newGCPPubSubPublisher,
	}
	return NewRegistry(builders)
}
