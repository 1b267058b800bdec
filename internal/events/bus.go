// Package events is a synchronous in-process notification bus for status and log updates.
package events

import (
	"sync"
	"time"

	"github.com/Adda-Baaj/nostr-mirror/internal/domain"
)

// Kind identifies the payload carried by an Event.
type Kind string

const (
	KindStatus Kind = "status"
	KindLog    Kind = "log"
)

// Event is one notification. Exactly one of Status or Log is set, according to Kind.
type Event struct {
	Kind   Kind
	Status *domain.BotStatus
	Log    *domain.LogEntry
}

// Listener receives events on the dispatching goroutine.
type Listener func(Event)

// Bus delivers every event to each subscribed listener, in subscription order.
// Delivery is synchronous, at most once per dispatch, and never retried.
type Bus struct {
	mu        sync.RWMutex
	nextID    uint64
	listeners []entry
}

type entry struct {
	id uint64
	fn Listener
}

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	bus  *Bus
	id   uint64
	once sync.Once
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers fn. A nil fn is ignored and returns a no-op subscription.
func (b *Bus) Subscribe(fn Listener) *Subscription {
	if fn == nil {
		return &Subscription{}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.listeners = append(b.listeners, entry{id: b.nextID, fn: fn})
	return &Subscription{bus: b, id: b.nextID}
}

// Unsubscribe removes the listener. Safe to call more than once and from inside a listener.
func (s *Subscription) Unsubscribe() {
	if s == nil || s.bus == nil {
		return
	}
	s.once.Do(func() { s.bus.remove(s.id) })
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, l := range b.listeners {
		if l.id == id {
			// copy so in-flight dispatch snapshots are unaffected
			next := make([]entry, 0, len(b.listeners)-1)
			next = append(next, b.listeners[:i]...)
			b.listeners = append(next, b.listeners[i+1:]...)
			return
		}
	}
}

// Len returns the number of registered listeners.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// Dispatch calls every listener registered at the time of the call. Each listener
// receives its own copy of the payload. Listener panics propagate to the caller.
func (b *Bus) Dispatch(evt Event) {
	b.mu.RLock()
	snapshot := b.listeners
	b.mu.RUnlock()

	for _, l := range snapshot {
		l.fn(clone(evt))
	}
}

// DispatchStatus broadcasts a copy of status.
func (b *Bus) DispatchStatus(status domain.BotStatus) {
	b.Dispatch(Event{Kind: KindStatus, Status: &status})
}

// DispatchLog broadcasts a log entry stamped with at.
func (b *Bus) DispatchLog(at time.Time, level domain.LogLevel, msg string) {
	b.Dispatch(Event{Kind: KindLog, Log: &domain.LogEntry{Time: at, Level: level, Message: msg}})
}

func clone(evt Event) Event {
	if evt.Status != nil {
		s := evt.Status.Clone()
		evt.Status = &s
	}
	if evt.Log != nil {
		l := *evt.Log
		evt.Log = &l
	}
	return evt
}
