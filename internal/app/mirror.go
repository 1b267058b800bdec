package app

import (
	"context"
	"fmt"
	"time"

	"github.com/Adda-Baaj/nostr-mirror/internal/config"
	"github.com/Adda-Baaj/nostr-mirror/internal/control"
	"github.com/Adda-Baaj/nostr-mirror/internal/crawler"
	"github.com/Adda-Baaj/nostr-mirror/internal/domain"
	"github.com/Adda-Baaj/nostr-mirror/internal/events"
	"github.com/Adda-Baaj/nostr-mirror/internal/ledger"
	"github.com/Adda-Baaj/nostr-mirror/internal/logger"
	"github.com/Adda-Baaj/nostr-mirror/internal/metrics"
	"github.com/Adda-Baaj/nostr-mirror/internal/scheduler"
	"github.com/Adda-Baaj/nostr-mirror/internal/settings"
	"github.com/Adda-Baaj/nostr-mirror/internal/storage"
	"github.com/Adda-Baaj/nostr-mirror/pkg/httpclient"
	"github.com/Adda-Baaj/nostr-mirror/pkg/media"
	"github.com/Adda-Baaj/nostr-mirror/pkg/providers"
	"github.com/Adda-Baaj/nostr-mirror/pkg/publisher"
	"github.com/Adda-Baaj/nostr-mirror/pkg/publishers"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const shutdownTimeout = 10 * time.Second

// Mirror is the daemon runtime. It owns storage, the scheduler, the publisher
// connections and the control server, and releases them in reverse order on exit.
type Mirror struct {
	cfg         *config.Config
	log         logger.Logger
	store       storage.Store
	settings    *settings.Store
	ledger      *ledger.Ledger
	broadcaster *publishers.Broadcaster
	sched       *scheduler.Scheduler
	local       *control.Local
	server      *control.Server
	registry    *prometheus.Registry
	logSub      *events.Subscription
}

// NewMirror builds the mirror runtime from process configuration.
func NewMirror(ctx context.Context, cfg *config.Config, log logger.Logger) (*Mirror, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	log = logger.Ensure(log)
	if ctx == nil {
		ctx = context.Background()
	}

	store, err := storage.NewStore(cfg.StorageType, cfg.BBoltPath)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	log.InfoObj("storage initialized", "storage_config", map[string]any{
		"type": cfg.StorageType,
		"path": cfg.BBoltPath,
	})

	m := &Mirror{cfg: cfg, log: log, store: store}
	if err := m.init(ctx); err != nil {
		m.closeStore()
		return nil, err
	}
	return m, nil
}

func (m *Mirror) init(ctx context.Context) error {
	cfg := m.cfg

	m.settings = settings.NewStore(m.store, cfg.DefaultEndpoints)
	if cfg.SeedFile != "" {
		seed, err := settings.LoadFile(cfg.SeedFile)
		if err != nil {
			return fmt.Errorf("load seed configuration: %w", err)
		}
		applied, err := m.settings.Seed(ctx, seed)
		if err != nil {
			return fmt.Errorf("seed configuration: %w", err)
		}
		m.log.InfoObj("seed configuration checked", "seed_meta", map[string]any{
			"file":    cfg.SeedFile,
			"applied": applied,
		})
	}

	m.ledger = ledger.New(m.store)
	if err := m.ledger.Load(); err != nil {
		return fmt.Errorf("load ledger: %w", err)
	}
	m.log.InfoObj("ledger loaded", "ledger_size", m.ledger.Len())

	provider := providers.InstagramProvider(cfg.FetchProxyURL, map[string]string{
		providers.ConfigUserAgentKey:      cfg.UserAgent,
		providers.ConfigAcceptLanguageKey: cfg.AcceptLanguage,
	})
	client := httpclient.New(httpclient.Options{
		Timeout:   cfg.FetchTimeout,
		Retries:   cfg.FetchRetries,
		UserAgent: cfg.UserAgent,
	})
	fetchers := providers.DefaultFetcherRegistry(client, provider)
	source := crawler.NewService(fetchers, provider, time.Duration(cfg.RequestDelayMs)*time.Millisecond)

	downloader := media.NewDownloader(client, media.DownloaderOptions{
		ProxyURL: cfg.MediaProxyURL,
		MaxBytes: cfg.MediaMaxBytes,
	})
	uploader := media.NewBlossomUploader(cfg.BlossomServers, cfg.FetchTimeout)

	m.broadcaster = publishers.NewBroadcaster(publishers.DefaultRegistry(), publishers.Options{
		Timeout:            cfg.BroadcastTimeout,
		AWSRegion:          cfg.AWSRegion,
		AWSAccessKeyID:     cfg.AWSAccessKeyID,
		AWSSecretAccessKey: cfg.AWSSecretAccessKey,
		GCPCredentialsFile: cfg.GCPCredentialsFile,
	}, m.log)
	pipeline := publisher.NewService(downloader, uploader, m.broadcaster)

	m.registry = prometheus.NewRegistry()
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m.sched = scheduler.New(m.settings, m.ledger, source, pipeline, events.NewBus(), scheduler.Options{
		IntervalUnit: cfg.IntervalUnit,
		Metrics:      metrics.New(m.registry),
		Log:          m.log,
	})
	m.logSub = m.sched.Bus().Subscribe(m.logActivity)

	m.local = control.NewLocal(m.sched, cfg.LogBufferSize)
	m.server = control.NewServer(cfg.ControlAddr, m.local, m.registry, m.log)
	return nil
}

// Controller returns the in-process controller.
func (m *Mirror) Controller() *control.Local { return m.local }

// Run serves the control API until ctx is cancelled, then shuts everything down.
func (m *Mirror) Run(ctx context.Context) error {
	if m == nil || m.sched == nil {
		return fmt.Errorf("mirror is not initialized")
	}
	defer m.close()

	if err := m.server.Start(); err != nil {
		return err
	}

	if m.cfg.AutoStart {
		if err := m.local.Start(ctx); err != nil {
			m.log.ErrorObj("auto start failed", "error", err.Error())
		}
	}

	m.log.InfoObj("mirror running", "mirror_state", map[string]any{
		"control_addr":  m.cfg.ControlAddr,
		"auto_start":    m.cfg.AutoStart,
		"interval_unit": m.cfg.IntervalUnit.String(),
		"ledger_size":   m.ledger.Len(),
	})

	<-ctx.Done()
	m.log.InfoObj("mirror shutting down", "reason", ctx.Err().Error())
	return nil
}

// logActivity forwards bot activity to the process log.
func (m *Mirror) logActivity(evt events.Event) {
	if evt.Kind != events.KindLog || evt.Log == nil {
		return
	}
	switch evt.Log.Level {
	case domain.LevelError:
		m.log.ErrorObj(evt.Log.Message, "source", "bot")
	case domain.LevelWarn:
		m.log.WarnObj(evt.Log.Message, "source", "bot")
	default:
		m.log.InfoObj(evt.Log.Message, "source", "bot")
	}
}

func (m *Mirror) close() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := m.server.Shutdown(shutdownCtx); err != nil {
		m.log.ErrorObj("control server shutdown failed", "error", err.Error())
	}
	m.logSub.Unsubscribe()
	if err := m.local.Close(); err != nil {
		m.log.ErrorObj("scheduler close failed", "error", err.Error())
	}
	if err := m.broadcaster.Close(); err != nil {
		m.log.ErrorObj("publisher close failed", "error", err.Error())
	}
	m.closeStore()
}

// closeStore safely closes the storage backend, logging any errors encountered.
func (m *Mirror) closeStore() {
	if m == nil || m.store == nil {
		return
	}
	if err := m.store.Close(); err != nil {
		m.log.ErrorObj("storage close failed", "error", err.Error())
	}
}
