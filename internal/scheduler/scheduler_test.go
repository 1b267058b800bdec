package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Adda-Baaj/nostr-mirror/internal/crawler"
	"github.com/Adda-Baaj/nostr-mirror/internal/domain"
	"github.com/Adda-Baaj/nostr-mirror/internal/events"
	"github.com/Adda-Baaj/nostr-mirror/internal/ledger"
	"github.com/Adda-Baaj/nostr-mirror/internal/settings"
	"github.com/Adda-Baaj/nostr-mirror/internal/storage"
)

const testKey = "5ee1c8000ab28edd64d74a7d951ac2dd559814887b1b9e1ac7c5f89e96125c12"

var alicePost = domain.CandidatePost{
	ID:       "123",
	Account:  "alice",
	MediaURL: "https://cdn.example/123.jpg",
	Caption:  "hello",
	Link:     "https://platform.example/p/123",
}

// fakeSource returns preset posts and records fetch times.
type fakeSource struct {
	mu      sync.Mutex
	posts   []domain.CandidatePost
	err     error
	calls   []time.Time
	entered chan struct{}
	release chan struct{}
}

func (f *fakeSource) Fetch(ctx context.Context, _ []string) ([]domain.CandidatePost, error) {
	f.mu.Lock()
	f.calls = append(f.calls, time.Now())
	posts, err, entered, release := f.posts, f.err, f.entered, f.release
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
		}
	}
	return posts, err
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeSource) callTimes() []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Time(nil), f.calls...)
}

// fakePublisher records published links and can fail or panic per call.
type fakePublisher struct {
	mu        sync.Mutex
	published []string
	failNext  int
	panicNext bool
}

func (f *fakePublisher) Publish(_ context.Context, key string, post domain.CandidatePost, endpoints []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panicNext {
		f.panicNext = false
		panic("boom")
	}
	if f.failNext > 0 {
		f.failNext--
		return errors.New("relay rejected")
	}
	if key == "" || len(endpoints) == 0 {
		return errors.New("unexpected publish arguments")
	}
	f.published = append(f.published, post.Link)
	return nil
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.published)
}

type fixture struct {
	kv     storage.Store
	config *settings.Store
	ledger *ledger.Ledger
	source *fakeSource
	pub    *fakePublisher
	bus    *events.Bus
	sched  *Scheduler
}

func newFixture(t *testing.T, kv storage.Store, cfg domain.BotConfiguration) *fixture {
	t.Helper()
	if kv == nil {
		kv = storage.NewMemoryStore()
	}
	f := &fixture{
		kv:     kv,
		config: settings.NewStore(kv, nil),
		ledger: ledger.New(kv),
		source: &fakeSource{posts: []domain.CandidatePost{alicePost}},
		pub:    &fakePublisher{},
		bus:    events.NewBus(),
	}
	if err := f.ledger.Load(); err != nil {
		t.Fatalf("ledger Load: %v", err)
	}
	if err := f.config.Set(context.Background(), cfg); err != nil {
		t.Fatalf("config Set: %v", err)
	}
	f.sched = New(f.config, f.ledger, f.source, f.pub, f.bus, Options{IntervalUnit: time.Millisecond})
	t.Cleanup(func() { _ = f.sched.Close() })
	return f
}

func aliceConfig(interval int) domain.BotConfiguration {
	return domain.BotConfiguration{
		Accounts:        []string{"alice"},
		IntervalMinutes: interval,
		SigningKey:      testKey,
		Endpoints:       []string{"wss://relay.example"},
	}
}

func (f *fixture) logs() *logRecorder {
	rec := &logRecorder{}
	f.bus.Subscribe(func(evt events.Event) {
		if evt.Kind == events.KindLog {
			rec.add(*evt.Log)
		}
	})
	return rec
}

type logRecorder struct {
	mu      sync.Mutex
	entries []domain.LogEntry
}

func (r *logRecorder) add(e domain.LogEntry) {
	r.mu.Lock()
	r.entries = append(r.entries, e)
	r.mu.Unlock()
}

func (r *logRecorder) has(level domain.LogLevel, substr string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.Level == level && strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestWorkedExamplePublishesOnce(t *testing.T) {
	f := newFixture(t, nil, aliceConfig(30))
	ctx := context.Background()

	status, err := f.sched.RunCycle(ctx)
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if status.LastPostCount != 1 || status.LastError != nil || status.LastRun == nil {
		t.Fatalf("first cycle status = %+v", status)
	}
	if !f.ledger.Contains(alicePost.Link) {
		t.Fatalf("ledger missing %s", alicePost.Link)
	}

	status, _ = f.sched.RunCycle(ctx)
	if status.LastPostCount != 0 {
		t.Fatalf("second cycle count = %d", status.LastPostCount)
	}
	if f.pub.count() != 1 {
		t.Fatalf("published %d times", f.pub.count())
	}
}

func TestFetchedDuplicatesPublishOnce(t *testing.T) {
	f := newFixture(t, nil, aliceConfig(30))
	dup := alicePost
	dup.ID = "other-id"
	f.source.posts = []domain.CandidatePost{alicePost, dup, {Link: "  ", MediaURL: "x"}}

	status, _ := f.sched.RunCycle(context.Background())
	if status.LastPostCount != 1 || f.pub.count() != 1 {
		t.Fatalf("count=%d published=%d", status.LastPostCount, f.pub.count())
	}
}

func TestEmptyAccountsIsConfigurationError(t *testing.T) {
	cfg := aliceConfig(30)
	cfg.Accounts = nil
	f := newFixture(t, nil, cfg)
	logs := f.logs()

	status, err := f.sched.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if f.source.callCount() != 0 || f.pub.count() != 0 {
		t.Fatalf("expected no fetch or publish")
	}
	if status.LastError == nil || !strings.Contains(*status.LastError, domain.ErrNoAccounts.Error()) {
		t.Fatalf("LastError = %v", status.LastError)
	}
	if !logs.has(domain.LevelWarn, "configuration error") {
		t.Fatalf("expected configuration warning")
	}
}

func TestMissingSigningKeyIsConfigurationError(t *testing.T) {
	cfg := aliceConfig(30)
	cfg.SigningKey = "  "
	f := newFixture(t, nil, cfg)

	status, _ := f.sched.RunCycle(context.Background())
	if f.source.callCount() != 0 {
		t.Fatalf("fetched without signing key")
	}
	if status.LastError == nil || !strings.Contains(*status.LastError, domain.ErrMissingSigningKey.Error()) {
		t.Fatalf("LastError = %v", status.LastError)
	}
}

func TestFailedPostIsRetriedNextCycle(t *testing.T) {
	f := newFixture(t, nil, aliceConfig(30))
	f.pub.failNext = 1
	logs := f.logs()

	status, _ := f.sched.RunCycle(context.Background())
	if status.LastPostCount != 0 || status.LastError == nil || !strings.Contains(*status.LastError, "relay rejected") {
		t.Fatalf("failed cycle status = %+v", status)
	}
	if f.ledger.Contains(alicePost.Link) {
		t.Fatalf("failed post recorded in ledger")
	}
	if !logs.has(domain.LevelError, "failed to publish") {
		t.Fatalf("expected error log for publish failure")
	}

	status, _ = f.sched.RunCycle(context.Background())
	if status.LastPostCount != 1 || status.LastError != nil {
		t.Fatalf("retry cycle status = %+v", status)
	}
}

func TestAccountFailuresAreWarnings(t *testing.T) {
	f := newFixture(t, nil, aliceConfig(30))
	f.source.err = errors.Join(&crawler.AccountError{Account: "bob", Err: errors.New("status 429")})
	logs := f.logs()

	status, _ := f.sched.RunCycle(context.Background())
	if status.LastPostCount != 1 {
		t.Fatalf("count = %d", status.LastPostCount)
	}
	if !logs.has(domain.LevelWarn, "@bob") {
		t.Fatalf("expected per-account warning")
	}
}

func TestDedupSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mirror.db")
	kv, err := storage.NewStore(storage.TypeBBolt, path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	f := newFixture(t, kv, aliceConfig(30))
	if status, _ := f.sched.RunCycle(context.Background()); status.LastPostCount != 1 {
		t.Fatalf("first process count = %d", status.LastPostCount)
	}
	_ = f.sched.Close()
	if err := kv.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	kv2, err := storage.NewStore(storage.TypeBBolt, path)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer kv2.Close()
	l2 := ledger.New(kv2)
	if err := l2.Load(); err != nil {
		t.Fatalf("ledger Load: %v", err)
	}
	pub := &fakePublisher{}
	s2 := New(settings.NewStore(kv2, nil), l2, &fakeSource{posts: []domain.CandidatePost{alicePost}}, pub, nil, Options{})
	defer s2.Close()

	status, _ := s2.RunCycle(context.Background())
	if status.LastPostCount != 0 || pub.count() != 0 {
		t.Fatalf("republished after reopen: %+v", status)
	}
}

func TestStartRunsImmediatelyAndStopHalts(t *testing.T) {
	f := newFixture(t, nil, aliceConfig(10))
	logs := f.logs()
	ctx := context.Background()

	if err := f.sched.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !f.sched.Status().IsRunning || !f.sched.IsRunning() {
		t.Fatalf("expected running status")
	}
	waitFor(t, "repeated cycles", func() bool { return f.source.callCount() >= 3 })

	if err := f.sched.Start(ctx); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if !logs.has(domain.LevelWarn, "already running") {
		t.Fatalf("expected already running warning")
	}

	if err := f.sched.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	waitFor(t, "in-flight cycle", func() bool { return !f.sched.inFlight.Load() })
	stopped := f.source.callCount()
	time.Sleep(80 * time.Millisecond)
	if got := f.source.callCount(); got != stopped {
		t.Fatalf("cycles after stop: %d -> %d", stopped, got)
	}
	if f.sched.Status().IsRunning {
		t.Fatalf("status still running after stop")
	}
	if err := f.sched.Stop(ctx); err != nil {
		t.Fatalf("Stop on idle: %v", err)
	}
}

func TestReconfigureAppliesNewInterval(t *testing.T) {
	f := newFixture(t, nil, aliceConfig(10000))
	ctx := context.Background()

	if err := f.sched.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, "initial cycle", func() bool { return f.source.callCount() == 1 })

	if err := f.sched.Reconfigure(ctx, aliceConfig(20)); err != nil {
		t.Fatalf("Reconfigure: %v", err)
	}
	waitFor(t, "cycles at new interval", func() bool { return f.source.callCount() >= 3 })

	calls := f.source.callTimes()
	delta := calls[2].Sub(calls[1])
	if delta < 10*time.Millisecond || delta > 2*time.Second {
		t.Fatalf("interval after reconfigure = %v", delta)
	}
	stored, _ := f.sched.Configuration(ctx)
	if stored.IntervalMinutes != 20 {
		t.Fatalf("stored interval = %d", stored.IntervalMinutes)
	}
}

func TestReconfigureRejectsInvalidInterval(t *testing.T) {
	f := newFixture(t, nil, aliceConfig(30))
	if err := f.sched.Reconfigure(context.Background(), aliceConfig(0)); !errors.Is(err, domain.ErrInvalidInterval) {
		t.Fatalf("expected ErrInvalidInterval, got %v", err)
	}
}

func TestOverlappingCycleIsSkipped(t *testing.T) {
	f := newFixture(t, nil, aliceConfig(30))
	f.source.entered = make(chan struct{}, 1)
	f.source.release = make(chan struct{})
	logs := f.logs()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = f.sched.RunCycle(context.Background())
	}()
	<-f.source.entered

	if _, err := f.sched.RunCycle(context.Background()); !errors.Is(err, ErrCycleInFlight) {
		t.Fatalf("expected ErrCycleInFlight, got %v", err)
	}
	if !logs.has(domain.LevelWarn, "skipping") {
		t.Fatalf("expected skip warning")
	}

	close(f.source.release)
	<-done
	if f.source.callCount() != 1 {
		t.Fatalf("skipped cycle was queued: %d fetches", f.source.callCount())
	}
}

func TestPanicIsRecoveredAsSystemError(t *testing.T) {
	f := newFixture(t, nil, aliceConfig(30))
	f.pub.panicNext = true

	status, err := f.sched.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if status.LastError == nil || !strings.Contains(*status.LastError, "panic") {
		t.Fatalf("LastError = %v", status.LastError)
	}

	status, _ = f.sched.RunCycle(context.Background())
	if status.LastPostCount != 1 {
		t.Fatalf("scheduler unusable after panic: %+v", status)
	}
}

func TestStatusEventsAreCopies(t *testing.T) {
	f := newFixture(t, nil, aliceConfig(30))
	var got []domain.BotStatus
	f.bus.Subscribe(func(evt events.Event) {
		if evt.Kind == events.KindStatus {
			got = append(got, *evt.Status)
		}
	})

	_, _ = f.sched.RunCycle(context.Background())
	if len(got) != 1 || got[0].LastRun == nil {
		t.Fatalf("status events = %+v", got)
	}
	*got[0].LastRun = time.Time{}
	if f.sched.Status().LastRun.IsZero() {
		t.Fatalf("listener mutated scheduler status")
	}
}

func TestCloseStopsScheduler(t *testing.T) {
	f := newFixture(t, nil, aliceConfig(10))
	if err := f.sched.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := f.sched.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if f.sched.IsRunning() {
		t.Fatalf("running after Close")
	}
	if err := f.sched.Start(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if _, err := f.sched.RunCycle(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed from RunCycle, got %v", err)
	}
}
