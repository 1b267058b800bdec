// Package scheduler runs the mirror cycle on a timer and owns the bot status.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adda-Baaj/nostr-mirror/internal/crawler"
	"github.com/Adda-Baaj/nostr-mirror/internal/domain"
	"github.com/Adda-Baaj/nostr-mirror/internal/events"
	"github.com/Adda-Baaj/nostr-mirror/internal/logger"
	"github.com/Adda-Baaj/nostr-mirror/internal/metrics"
	"github.com/Adda-Baaj/nostr-mirror/pkg/publisher"
)

var (
	// ErrCycleInFlight is returned by RunCycle when another cycle has not finished yet.
	ErrCycleInFlight = errors.New("a cycle is already in progress")
	// ErrClosed is returned once Close has been called.
	ErrClosed = errors.New("scheduler is closed")
)

// ConfigStore is the configuration persistence used by the scheduler.
type ConfigStore interface {
	Get(ctx context.Context) (domain.BotConfiguration, error)
	Set(ctx context.Context, cfg domain.BotConfiguration) error
}

// Ledger records the source links that were already mirrored.
type Ledger interface {
	Contains(link string) bool
	Add(link string) bool
	Persist() error
	Len() int
}

// Publisher mirrors one post to the destination endpoints.
type Publisher interface {
	Publish(ctx context.Context, signingKey string, post domain.CandidatePost, endpoints []string) error
}

// Options tunes a Scheduler. Zero values select production defaults.
type Options struct {
	// IntervalUnit is the duration of one configured interval minute.
	IntervalUnit time.Duration
	Now          func() time.Time
	Metrics      *metrics.Metrics
	Log          logger.Logger
}

// Scheduler is the Idle/Running state machine around the mirror cycle.
// Bus listeners must not call Start, Stop or Reconfigure synchronously.
type Scheduler struct {
	configs   ConfigStore
	ledger    Ledger
	source    crawler.PostSource
	publisher Publisher
	bus       *events.Bus

	unit    time.Duration
	now     func() time.Time
	metrics *metrics.Metrics
	log     logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	running  bool
	closed   bool
	stopLoop context.CancelFunc

	inFlight atomic.Bool

	statusMu sync.RWMutex
	status   domain.BotStatus
}

// New builds an idle scheduler. The bus may be shared with other components.
func New(configs ConfigStore, ledger Ledger, source crawler.PostSource, pub Publisher, bus *events.Bus, opts Options) *Scheduler {
	if bus == nil {
		bus = events.NewBus()
	}
	if opts.IntervalUnit <= 0 {
		opts.IntervalUnit = time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		configs:   configs,
		ledger:    ledger,
		source:    source,
		publisher: pub,
		bus:       bus,
		unit:      opts.IntervalUnit,
		now:       opts.Now,
		metrics:   opts.Metrics,
		log:       logger.Ensure(opts.Log),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Bus returns the dispatcher carrying status and log events.
func (s *Scheduler) Bus() *events.Bus { return s.bus }

// Start arms the timer and runs one cycle immediately. Starting a running
// scheduler only logs a warning.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startLocked(ctx)
}

func (s *Scheduler) startLocked(ctx context.Context) error {
	if s.closed {
		return ErrClosed
	}
	if s.running {
		s.emit(domain.LevelWarn, "bot is already running")
		return nil
	}

	cfg, err := s.configs.Get(ctx)
	if err != nil {
		s.emit(domain.LevelError, fmt.Sprintf("failed to load configuration: %v", err))
		return fmt.Errorf("load configuration: %w", err)
	}
	interval := cfg.Interval(s.unit)

	loopCtx, cancel := context.WithCancel(s.ctx)
	s.running = true
	s.stopLoop = cancel
	s.metrics.SetRunning(true)
	s.publishStatus(func(st *domain.BotStatus) { st.IsRunning = true })
	s.emit(domain.LevelInfo, fmt.Sprintf("bot started; polling every %d minutes", positiveOr(cfg.IntervalMinutes, domain.DefaultIntervalMinutes)))

	s.wg.Add(1)
	go s.loop(loopCtx, interval)
	return nil
}

// Stop disarms the timer. A cycle already in flight runs to completion.
func (s *Scheduler) Stop(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	return nil
}

func (s *Scheduler) stopLocked() {
	if !s.running {
		return
	}
	s.stopLoop()
	s.stopLoop = nil
	s.running = false
	s.metrics.SetRunning(false)
	s.publishStatus(func(st *domain.BotStatus) { st.IsRunning = false })
	s.emit(domain.LevelInfo, "bot stopped")
}

// Reconfigure persists cfg and, when running, restarts so the new interval applies.
func (s *Scheduler) Reconfigure(ctx context.Context, cfg domain.BotConfiguration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.configs.Set(ctx, cfg); err != nil {
		s.emit(domain.LevelError, fmt.Sprintf("failed to save configuration: %v", err))
		return err
	}
	s.emit(domain.LevelInfo, "configuration updated")

	if !s.running {
		return nil
	}
	s.stopLocked()
	return s.startLocked(ctx)
}

// Configuration returns the stored configuration.
func (s *Scheduler) Configuration(ctx context.Context) (domain.BotConfiguration, error) {
	return s.configs.Get(ctx)
}

// RunCycle runs one cycle on the caller's goroutine and returns the resulting status.
func (s *Scheduler) RunCycle(ctx context.Context) (domain.BotStatus, error) {
	if s.isClosed() {
		return s.Status(), ErrClosed
	}
	if !s.inFlight.CompareAndSwap(false, true) {
		s.skipped()
		return s.Status(), ErrCycleInFlight
	}
	s.wg.Add(1)
	defer s.wg.Done()
	s.cycle(ctx)
	return s.Status(), nil
}

// Status returns a copy of the latest status snapshot.
func (s *Scheduler) Status() domain.BotStatus {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	return s.status.Clone()
}

// IsRunning reports whether the timer is armed.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Close stops the scheduler, cancels in-flight cycles and waits for them.
func (s *Scheduler) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.stopLocked()
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	return nil
}

func (s *Scheduler) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Scheduler) loop(ctx context.Context, interval time.Duration) {
	defer s.wg.Done()

	s.fire(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.fire(ctx)
		}
	}
}

// fire starts a background cycle unless the loop was disarmed or a cycle is in flight.
func (s *Scheduler) fire(loopCtx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if loopCtx.Err() != nil {
		return
	}
	if !s.inFlight.CompareAndSwap(false, true) {
		s.skipped()
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.cycle(s.ctx)
	}()
}

func (s *Scheduler) skipped() {
	s.metrics.CycleSkipped()
	s.emit(domain.LevelWarn, "previous cycle still in progress; skipping this run")
}

// cycle performs fetch, filter, publish and persist, then overwrites the status.
// The caller must hold the in-flight guard; cycle releases it before dispatching
// the final status.
func (s *Scheduler) cycle(ctx context.Context) {
	started := s.now()
	var (
		count   int
		lastErr error
		outcome = metrics.OutcomeOK
	)

	defer func() {
		if r := recover(); r != nil {
			lastErr = &domain.SystemError{Err: fmt.Errorf("panic: %v", r)}
			outcome = metrics.OutcomeSystemError
			s.emit(domain.LevelError, lastErr.Error())
		}
		if err := s.ledger.Persist(); err != nil {
			lastErr = &domain.SystemError{Err: fmt.Errorf("persist ledger: %w", err)}
			outcome = metrics.OutcomeSystemError
			s.emit(domain.LevelError, lastErr.Error())
		}
		s.metrics.CycleFinished(outcome, s.now().Sub(started))
		s.inFlight.Store(false)
		s.finish(count, lastErr)
	}()

	s.emit(domain.LevelInfo, "running mirror cycle")

	cfg, err := s.configs.Get(ctx)
	if err != nil {
		lastErr = &domain.SystemError{Err: fmt.Errorf("load configuration: %w", err)}
		outcome = metrics.OutcomeSystemError
		s.emit(domain.LevelError, lastErr.Error())
		return
	}
	if cfgErr := checkConfiguration(cfg); cfgErr != nil {
		lastErr = cfgErr
		outcome = metrics.OutcomeConfigError
		s.emit(domain.LevelWarn, cfgErr.Error())
		return
	}

	s.emit(domain.LevelInfo, fmt.Sprintf("checking %d accounts", len(cfg.Accounts)))
	posts, fetchErr := s.source.Fetch(ctx, cfg.Accounts)
	if fetchErr != nil {
		failures := crawler.AccountErrors(fetchErr)
		for _, f := range failures {
			s.emit(domain.LevelWarn, fmt.Sprintf("failed to fetch posts for @%s: %v", f.Account, f.Err))
		}
		s.metrics.FetchFailed(len(failures))
		if len(failures) == 0 {
			s.emit(domain.LevelWarn, fmt.Sprintf("fetch failed: %v", fetchErr))
		}
	}

	handled := make(map[string]struct{}, len(posts))
	for _, post := range posts {
		if ctx.Err() != nil {
			lastErr = &domain.SystemError{Err: ctx.Err()}
			break
		}
		link := strings.TrimSpace(post.Link)
		if link == "" {
			continue
		}
		if _, dup := handled[link]; dup || s.ledger.Contains(link) {
			continue
		}
		handled[link] = struct{}{}
		post.Link = link

		s.emit(domain.LevelInfo, fmt.Sprintf("new post detected: %s", link))
		if err := s.publisher.Publish(ctx, cfg.SigningKey, post, cfg.Endpoints); err != nil {
			lastErr = fmt.Errorf("publish %s: %w", link, err)
			s.metrics.PublishFailed(failedStep(err))
			s.emit(domain.LevelError, fmt.Sprintf("failed to publish %s: %v", link, err))
			continue
		}

		s.ledger.Add(link)
		if err := s.ledger.Persist(); err != nil {
			s.emit(domain.LevelError, fmt.Sprintf("failed to persist ledger: %v", err))
		}
		count++
		s.metrics.PostPublished(s.ledger.Len())
		s.emit(domain.LevelInfo, fmt.Sprintf("published %s", link))
	}

	s.log.DebugObj("mirror cycle finished", "cycle_meta", map[string]any{
		"candidates": len(posts),
		"published":  count,
		"elapsed_ms": s.now().Sub(started).Milliseconds(),
	})
	s.emit(domain.LevelInfo, fmt.Sprintf("cycle finished: %d new posts published", count))
}

// finish overwrites the status snapshot and dispatches it.
func (s *Scheduler) finish(count int, lastErr error) {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	at := s.now()
	next := domain.BotStatus{
		IsRunning:     running,
		LastRun:       &at,
		LastPostCount: count,
	}
	if lastErr != nil {
		msg := lastErr.Error()
		next.LastError = &msg
	}

	s.statusMu.Lock()
	s.status = next
	s.statusMu.Unlock()
	s.bus.DispatchStatus(next)
}

// publishStatus applies mutate to the snapshot and dispatches the result.
func (s *Scheduler) publishStatus(mutate func(*domain.BotStatus)) {
	s.statusMu.Lock()
	next := s.status.Clone()
	mutate(&next)
	s.status = next
	s.statusMu.Unlock()
	s.bus.DispatchStatus(next)
}

func (s *Scheduler) emit(level domain.LogLevel, msg string) {
	s.bus.DispatchLog(s.now(), level, msg)
}

func checkConfiguration(cfg domain.BotConfiguration) error {
	if strings.TrimSpace(cfg.SigningKey) == "" {
		return &domain.ConfigurationError{Err: domain.ErrMissingSigningKey}
	}
	if len(cfg.Accounts) == 0 {
		return &domain.ConfigurationError{Err: domain.ErrNoAccounts}
	}
	return nil
}

func failedStep(err error) string {
	var stepErr *publisher.StepError
	if errors.As(err, &stepErr) {
		return stepErr.Step
	}
	return ""
}

func positiveOr(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}
