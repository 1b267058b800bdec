package control

import (
	"context"
	"time"

	"github.com/Adda-Baaj/nostr-mirror/internal/domain"
	"github.com/Adda-Baaj/nostr-mirror/internal/events"
	"github.com/Adda-Baaj/nostr-mirror/internal/scheduler"
)

// Local drives an in-process scheduler.
type Local struct {
	sched *scheduler.Scheduler
	logs  *LogBuffer
	sub   *events.Subscription
}

var _ Controller = (*Local)(nil)

// NewLocal subscribes a bounded log buffer to the scheduler's bus.
func NewLocal(sched *scheduler.Scheduler, logBufferSize int) *Local {
	l := &Local{sched: sched, logs: NewLogBuffer(logBufferSize)}
	l.sub = sched.Bus().Subscribe(func(evt events.Event) {
		if evt.Kind == events.KindLog && evt.Log != nil {
			l.logs.Add(*evt.Log)
		}
	})
	return l
}

// Events returns the bus for push-style status and log updates.
func (l *Local) Events() *events.Bus { return l.sched.Bus() }

func (l *Local) Configure(ctx context.Context, cfg domain.BotConfiguration) error {
	return l.sched.Reconfigure(ctx, cfg)
}

func (l *Local) Configuration(ctx context.Context) (domain.BotConfiguration, error) {
	return l.sched.Configuration(ctx)
}

func (l *Local) Start(ctx context.Context) error { return l.sched.Start(ctx) }
func (l *Local) Stop(ctx context.Context) error  { return l.sched.Stop(ctx) }

func (l *Local) RunNow(ctx context.Context) (domain.BotStatus, error) {
	return l.sched.RunCycle(ctx)
}

func (l *Local) Status(context.Context) (domain.BotStatus, error) {
	return l.sched.Status(), nil
}

func (l *Local) Logs(_ context.Context, since time.Time) ([]domain.LogEntry, error) {
	return l.logs.Since(since), nil
}

// Close detaches the log buffer and closes the scheduler.
func (l *Local) Close() error {
	l.sub.Unsubscribe()
	return l.sched.Close()
}
