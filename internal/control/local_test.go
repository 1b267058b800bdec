package control

import (
	"context"
	"testing"
	"time"

	"github.com/Adda-Baaj/nostr-mirror/internal/domain"
	"github.com/Adda-Baaj/nostr-mirror/internal/events"
	"github.com/Adda-Baaj/nostr-mirror/internal/ledger"
	"github.com/Adda-Baaj/nostr-mirror/internal/scheduler"
	"github.com/Adda-Baaj/nostr-mirror/internal/settings"
	"github.com/Adda-Baaj/nostr-mirror/internal/storage"
)

type noPosts struct{}

func (noPosts) Fetch(context.Context, []string) ([]domain.CandidatePost, error) { return nil, nil }

type noPublish struct{}

func (noPublish) Publish(context.Context, string, domain.CandidatePost, []string) error { return nil }

func TestLocalBuffersSchedulerLogs(t *testing.T) {
	kv := storage.NewMemoryStore()
	sched := scheduler.New(settings.NewStore(kv, nil), ledger.New(kv), noPosts{}, noPublish{}, nil, scheduler.Options{})
	local := NewLocal(sched, 10)
	defer local.Close()
	ctx := context.Background()

	var statuses int
	local.Events().Subscribe(func(evt events.Event) {
		if evt.Kind == events.KindStatus {
			statuses++
		}
	})

	before := time.Now().Add(-time.Second)
	st, err := local.RunNow(ctx)
	if err != nil {
		t.Fatalf("RunNow: %v", err)
	}
	if st.LastError == nil {
		t.Fatalf("expected configuration error with default config")
	}
	entries, _ := local.Logs(ctx, before)
	if len(entries) == 0 {
		t.Fatalf("no buffered logs")
	}
	if statuses != 1 {
		t.Fatalf("status events = %d", statuses)
	}

	cfg := domain.BotConfiguration{Accounts: []string{"alice"}, IntervalMinutes: 5, SigningKey: "k"}
	if err := local.Configure(ctx, cfg); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	got, _ := local.Configuration(ctx)
	if got.IntervalMinutes != 5 || len(got.Endpoints) != 0 {
		t.Fatalf("Configuration = %+v", got)
	}
	if s, _ := local.Status(ctx); s.IsRunning {
		t.Fatalf("unexpected running status")
	}
}
