package publishers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nbd-wtf/go-nostr"
)

// Fanout dispatches events to all configured publishers.
type Fanout struct {
	publishers []Publisher
	timeout    time.Duration
}

// NewFanout builds a dispatcher that fans out events across publishers.
// A positive timeout bounds each publisher's call individually.
func NewFanout(pubs []Publisher, timeout time.Duration) *Fanout {
	cp := make([]Publisher, 0, len(pubs))
	for _, p := range pubs {
		if p == nil {
			continue
		}
		cp = append(cp, p)
	}
	return &Fanout{publishers: cp, timeout: timeout}
}

// Publish forwards the event to every registered publisher.
// It returns the number of publishers that successfully handled the event.
func (f *Fanout) Publish(ctx context.Context, evt nostr.Event) (int, error) {
	if f == nil || len(f.publishers) == 0 {
		return 0, nil
	}

	var errs []error
	successful := 0
	for _, p := range f.publishers {
		if err := f.publishOne(ctx, p, evt); err != nil {
			errs = append(errs, fmt.Errorf("%s publisher[%s]: %w", p.Type(), p.ID(), err))
		} else {
			successful++
		}
	}
	return successful, errors.Join(errs...)
}

func (f *Fanout) publishOne(ctx context.Context, p Publisher, evt nostr.Event) error {
	if f.timeout <= 0 {
		return p.Publish(ctx, evt)
	}
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	return p.Publish(ctx, evt)
}

// Size returns the number of active publishers.
func (f *Fanout) Size() int {
	if f == nil {
		return 0
	}
	return len(f.publishers)
}
