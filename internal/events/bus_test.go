package events

import (
	"testing"
	"time"

	"github.com/Adda-Baaj/nostr-mirror/internal/domain"
)

func TestDispatchInRegistrationOrder(t *testing.T) {
	bus := NewBus()
	var order []int
	bus.Subscribe(func(Event) { order = append(order, 1) })
	bus.Subscribe(func(Event) { order = append(order, 2) })
	bus.Subscribe(func(Event) { order = append(order, 3) })

	bus.DispatchLog(time.Now(), domain.LevelInfo, "hello")

	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Fatalf("unexpected delivery order %v", order)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus()
	calls := 0
	sub := bus.Subscribe(func(Event) { calls++ })

	bus.DispatchLog(time.Now(), domain.LevelInfo, "one")
	sub.Unsubscribe()
	sub.Unsubscribe()
	bus.DispatchLog(time.Now(), domain.LevelInfo, "two")

	if calls != 1 {
		t.Fatalf("expected 1 delivery, got %d", calls)
	}
	if bus.Len() != 0 {
		t.Fatalf("expected empty registry, got %d", bus.Len())
	}
}

func TestUnsubscribeDuringDispatchTakesEffectNextTime(t *testing.T) {
	bus := NewBus()
	var second int
	var sub *Subscription
	sub = bus.Subscribe(func(Event) { sub.Unsubscribe() })
	bus.Subscribe(func(Event) { second++ })

	bus.DispatchLog(time.Now(), domain.LevelInfo, "a")
	bus.DispatchLog(time.Now(), domain.LevelInfo, "b")

	if second != 2 {
		t.Fatalf("later listener should see both events, got %d", second)
	}
	if bus.Len() != 1 {
		t.Fatalf("expected 1 listener left, got %d", bus.Len())
	}
}

func TestDispatchStatusDeliversCopies(t *testing.T) {
	bus := NewBus()
	msg := "boom"
	now := time.Now()
	status := domain.BotStatus{IsRunning: true, LastRun: &now, LastError: &msg}

	bus.Subscribe(func(evt Event) {
		*evt.Status.LastError = "mutated"
		evt.Status.IsRunning = false
	})
	var seen domain.BotStatus
	bus.Subscribe(func(evt Event) {
		if evt.Kind != KindStatus {
			t.Errorf("unexpected kind %q", evt.Kind)
		}
		seen = *evt.Status
	})

	bus.DispatchStatus(status)

	if msg != "boom" {
		t.Fatalf("listener mutated the caller's error string")
	}
	if !seen.IsRunning || *seen.LastError != "boom" {
		t.Fatalf("second listener saw a mutated payload: %+v", seen)
	}
}

func TestSubscribeNilIsNoop(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(nil)
	sub.Unsubscribe()
	if bus.Len() != 0 {
		t.Fatalf("nil listener must not register")
	}
}
