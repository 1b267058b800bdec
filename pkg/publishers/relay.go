package publishers

import (
	"context"
	"fmt"
	"sync"

	"github.com/Adda-Baaj/nostr-mirror/internal/logger"
	"github.com/nbd-wtf/go-nostr"
)

// relayConn is the subset of *nostr.Relay used for publishing.
type relayConn interface {
	Publish(ctx context.Context, evt nostr.Event) error
	Close() error
}

type relayDialer func(ctx context.Context, url string) (relayConn, error)

func dialRelay(ctx context.Context, url string) (relayConn, error) {
	r, err := nostr.RelayConnect(ctx, url)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// relayPublisher sends events to a Nostr relay, connecting lazily and
// reconnecting after a failed publish.
type relayPublisher struct {
	id   string
	url  string
	dial relayDialer
	log  logger.Logger

	mu   sync.Mutex
	conn relayConn
}

func newRelayPublisher(_ context.Context, ep Endpoint, _ Options, log logger.Logger) (Publisher, error) {
	return &relayPublisher{
		id:   ep.Raw,
		url:  ep.Raw,
		dial: dialRelay,
		log:  logger.Ensure(log),
	}, nil
}

func (r *relayPublisher) ID() string   { return r.id }
func (r *relayPublisher) Type() string { return TypeRelay }

// Publish succeeds only when the relay acknowledges the event with OK true.
func (r *relayPublisher) Publish(ctx context.Context, evt nostr.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn == nil {
		conn, err := r.dial(ctx, r.url)
		if err != nil {
			return fmt.Errorf("connect relay: %w", err)
		}
		r.conn = conn
	}

	if err := r.conn.Publish(ctx, evt); err != nil {
		_ = r.conn.Close()
		r.conn = nil
		r.log.WarnObj("relay rejected event", "publisher_relay_error", map[string]any{
			"relay":    r.url,
			"event_id": evt.ID,
			"error":    err.Error(),
		})
		return fmt.Errorf("publish to relay: %w", err)
	}
	r.log.DebugObj("relay accepted event", "publisher_relay_delivery", map[string]any{
		"relay":    r.url,
		"event_id": evt.ID,
	})
	return nil
}

// Close drops the relay connection.
func (r *relayPublisher) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn == nil {
		return nil
	}
	err := r.conn.Close()
	r.conn = nil
	return err
}
