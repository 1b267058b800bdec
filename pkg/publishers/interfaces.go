package publishers

import (
	"context"

	"github.com/nbd-wtf/go-nostr"
)

// Publisher delivers a signed event to one destination endpoint (relay, webhook, queue).
type Publisher interface {
	ID() string
	Type() string
	Publish(ctx context.Context, evt nostr.Event) error
}
