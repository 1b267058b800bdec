package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/Adda-Baaj/nostr-mirror/internal/domain"
	"github.com/Adda-Baaj/nostr-mirror/internal/logger"
	"github.com/Adda-Baaj/nostr-mirror/internal/scheduler"
	"github.com/fasthttp/router"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

// Server serves a Controller over HTTP.
type Server struct {
	server *fasthttp.Server
	Router *router.Router
	addr   string
	ctrl   Controller
	log    logger.Logger

	// base is the context handed to the controller; Shutdown cancels it.
	base   context.Context
	cancel context.CancelFunc
}

// NewServer registers the control routes. A nil gatherer disables /metrics.
func NewServer(addr string, ctrl Controller, gatherer prometheus.Gatherer, log logger.Logger) *Server {
	r := router.New()
	base, cancel := context.WithCancel(context.Background())
	s := &Server{
		Router: r,
		addr:   addr,
		ctrl:   ctrl,
		log:    logger.Ensure(log),
		base:   base,
		cancel: cancel,
	}

	r.GET("/health", s.health)
	r.GET("/bot/status", s.status)
	r.GET("/bot/logs", s.logs)
	r.GET("/bot/config", s.getConfig)
	r.POST("/bot/config", s.setConfig)
	r.POST("/bot/start", s.start)
	r.POST("/bot/stop", s.stop)
	r.POST("/bot/run", s.run)
	if gatherer != nil {
		r.GET("/metrics", fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	s.server = &fasthttp.Server{
		Handler:      r.Handler,
		Name:         "nostr-mirror",
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  2 * time.Minute,
	}
	return s
}

// Handler returns the routed request handler.
func (s *Server) Handler() fasthttp.RequestHandler { return s.server.Handler }

// Start listens on the configured address in a separate goroutine.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	s.log.InfoObj("control server listening", "control_addr", ln.Addr().String())
	go s.Serve(ln)
	return nil
}

// Serve handles requests on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) {
	if err := s.server.Serve(ln); err != nil {
		s.log.ErrorObj("control server error", "error", err.Error())
	}
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()
	if err := s.server.ShutdownWithContext(ctx); err != nil {
		return fmt.Errorf("shutdown control server: %w", err)
	}
	return nil
}

func (s *Server) health(ctx *fasthttp.RequestCtx) {
	st, err := s.ctrl.Status(s.base)
	if err != nil {
		writeError(ctx, err, fasthttp.StatusServiceUnavailable)
		return
	}
	writeResponse(ctx, map[string]any{"status": "ok", "running": st.IsRunning})
}

func (s *Server) status(ctx *fasthttp.RequestCtx) {
	st, err := s.ctrl.Status(s.base)
	if err != nil {
		writeError(ctx, err, statusFor(err))
		return
	}
	writeResponse(ctx, st)
}

func (s *Server) logs(ctx *fasthttp.RequestCtx) {
	var since time.Time
	if raw := strings.TrimSpace(string(ctx.QueryArgs().Peek("since"))); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			writeError(ctx, fmt.Errorf("invalid since: %w", err), fasthttp.StatusBadRequest)
			return
		}
		since = t
	}
	entries, err := s.ctrl.Logs(s.base, since)
	if err != nil {
		writeError(ctx, err, statusFor(err))
		return
	}
	writeResponse(ctx, entries)
}

func (s *Server) getConfig(ctx *fasthttp.RequestCtx) {
	cfg, err := s.ctrl.Configuration(s.base)
	if err != nil {
		writeError(ctx, err, statusFor(err))
		return
	}
	writeResponse(ctx, Redact(cfg))
}

func (s *Server) setConfig(ctx *fasthttp.RequestCtx) {
	var cfg domain.BotConfiguration
	if err := json.Unmarshal(ctx.PostBody(), &cfg); err != nil {
		writeError(ctx, fmt.Errorf("decode configuration: %w", err), fasthttp.StatusBadRequest)
		return
	}
	if err := s.ctrl.Configure(s.base, cfg); err != nil {
		writeError(ctx, err, statusFor(err))
		return
	}
	s.log.InfoObj("configuration replaced", "config_meta", map[string]any{
		"accounts":         len(cfg.Accounts),
		"interval_minutes": cfg.IntervalMinutes,
		"endpoints":        len(cfg.Endpoints),
	})
	writeResponse(ctx, Redact(cfg))
}

func (s *Server) start(ctx *fasthttp.RequestCtx) {
	if err := s.ctrl.Start(s.base); err != nil {
		writeError(ctx, err, statusFor(err))
		return
	}
	s.status(ctx)
}

func (s *Server) stop(ctx *fasthttp.RequestCtx) {
	if err := s.ctrl.Stop(s.base); err != nil {
		writeError(ctx, err, statusFor(err))
		return
	}
	s.status(ctx)
}

func (s *Server) run(ctx *fasthttp.RequestCtx) {
	st, err := s.ctrl.RunNow(s.base)
	if err != nil {
		writeError(ctx, err, statusFor(err))
		return
	}
	writeResponse(ctx, st)
}

func statusFor(err error) int {
	var cfgErr *domain.ConfigurationError
	switch {
	case errors.Is(err, domain.ErrInvalidInterval), errors.As(err, &cfgErr):
		return fasthttp.StatusBadRequest
	case errors.Is(err, scheduler.ErrCycleInFlight):
		return fasthttp.StatusConflict
	case errors.Is(err, scheduler.ErrClosed):
		return fasthttp.StatusServiceUnavailable
	default:
		return fasthttp.StatusInternalServerError
	}
}
