// Package app wires all segue subsystems into a running daemon.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run executes their loops until the context is cancelled, and
// Shutdown tears everything down in order.
//
// For testing, inject doubles via functional options (WithHostConn,
// WithAnnouncer, etc.). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/segue/internal/announce"
	"github.com/MrWong99/segue/internal/bus"
	"github.com/MrWong99/segue/internal/config"
	"github.com/MrWong99/segue/internal/coordinator"
	"github.com/MrWong99/segue/internal/health"
	"github.com/MrWong99/segue/internal/observe"
	"github.com/MrWong99/segue/internal/observer"
	"github.com/MrWong99/segue/internal/resilience"
	"github.com/MrWong99/segue/internal/trap"
)

// serverShutdownGrace bounds how long an admin request may run after the
// main context is cancelled.
const serverShutdownGrace = 5 * time.Second

// App owns all subsystem lifetimes for the segue daemon.
type App struct {
	cfg      *config.Config
	registry *config.Registry
	metrics  *observe.Metrics

	// Subsystems, initialised in New and torn down in Shutdown.
	bus       *bus.Bus
	hostConn  config.HostConn
	obs       *observer.Observer
	trap      *trap.Trap
	monitor   *trap.Monitor
	poller    *observer.Poller
	announcer announce.Service
	client    *announce.Client
	coord     *coordinator.Coordinator
	server    *http.Server

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithHostConn injects a host connection instead of creating one via the
// source registry.
func WithHostConn(conn config.HostConn) Option {
	return func(a *App) { a.hostConn = conn }
}

// WithAnnouncer injects an announcement service instead of building the
// WebSocket client and failover chain from config.
func WithAnnouncer(svc announce.Service) Option {
	return func(a *App) { a.announcer = svc }
}

// WithRegistry replaces the default host-source registry.
func WithRegistry(r *config.Registry) Option {
	return func(a *App) { a.registry = r }
}

// WithMetrics injects a metrics instance instead of the package default.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. Nothing connects to
// the outside world yet; connections are established by [App.Run].
func New(cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}
	if a.registry == nil {
		a.registry = config.DefaultRegistry()
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── 1. Host connection ───────────────────────────────────────────────
	if a.hostConn == nil {
		conn, err := a.registry.CreateSource(cfg.Host)
		if err != nil {
			return nil, fmt.Errorf("app: create host source: %w", err)
		}
		a.hostConn = conn
	}

	// ── 2. Event bus, observer, trap ─────────────────────────────────────
	a.bus = bus.New()
	a.obs = observer.New(a.hostConn)
	a.trap = trap.New(a.bus, a.hostConn, a.obs)
	a.monitor = trap.NewMonitor(a.hostConn, a.trap, 0)
	a.poller = observer.NewPoller(a.obs, a.bus, cfg.Host.PollInterval.Std())

	// ── 3. Announcement service ──────────────────────────────────────────
	a.initAnnouncer()

	// ── 4. Coordinator ───────────────────────────────────────────────────
	coordOpts := []coordinator.Option{coordinator.WithMetrics(a.metrics)}
	if d := cfg.Announcer.AnnounceTimeout.Std(); d > 0 {
		coordOpts = append(coordOpts, coordinator.WithAnnounceTimeout(d))
	}
	if d := cfg.Announcer.PrefetchDelay.Std(); d > 0 {
		coordOpts = append(coordOpts, coordinator.WithPrefetchDelay(d))
	}
	a.coord = coordinator.New(a.bus, a.announcer, coordOpts...)

	// ── 5. Admin server ──────────────────────────────────────────────────
	if cfg.Server.ListenAddr != "" {
		a.initServer()
	}

	return a, nil
}

// initAnnouncer builds the failover chain around the configured announcement
// service. With no URL configured, transitions degrade to silent pauses.
func (a *App) initAnnouncer() {
	if a.announcer != nil {
		return
	}
	if a.cfg.Announcer.URL == "" {
		slog.Warn("no announcement service configured, transitions will be silent pauses")
		a.announcer = announce.NewSilent()
		return
	}

	a.client = announce.NewClient(announce.ClientConfig{
		URL:   a.cfg.Announcer.URL,
		Token: a.cfg.Announcer.Token,
	})

	breaker := a.cfg.Announcer.Breaker
	chain := resilience.NewChain(resilience.BreakerConfig{
		MaxFailures:  breaker.MaxFailures,
		ResetTimeout: breaker.ResetTimeout.Std(),
		HalfOpenMax:  breaker.HalfOpenMax,
	})
	chain.Add("websocket", a.client)
	chain.Add("silent", announce.NewSilent())
	a.closers = append(a.closers, chain.Close)
	a.announcer = chain
}

// initServer assembles the admin HTTP server with metrics, health, and
// readiness endpoints.
func (a *App) initServer() {
	connected := func() bool { return true }
	if a.client != nil {
		connected = a.client.Connected
	}
	checks := health.New(
		health.HostSource(a.hostConn),
		health.Announcer(connected),
	)

	mux := http.NewServeMux()
	checks.Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	a.server = &http.Server{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           observe.Middleware(a.metrics)(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run starts every subsystem loop and blocks until ctx is cancelled or a
// loop fails. On cancellation Run returns context.Canceled after all loops
// have stopped.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.hostConn.Run(ctx) })
	g.Go(func() error { return a.monitor.Run(ctx) })
	g.Go(func() error { return a.poller.Run(ctx) })
	g.Go(func() error { return a.coord.Run(ctx) })
	if a.client != nil {
		g.Go(func() error { return a.client.Run(ctx) })
	}

	if a.server != nil {
		g.Go(func() error {
			err := a.listenAndServe()
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), serverShutdownGrace)
			defer cancel()
			if err := a.server.Shutdown(shutdownCtx); err != nil {
				slog.Warn("admin server shutdown", "err", err)
			}
			return ctx.Err()
		})
	}

	slog.Info("segue running",
		"source", a.cfg.Host.Source,
		"announcer", a.cfg.Announcer.URL != "",
		"listen", a.cfg.Server.ListenAddr)

	return g.Wait()
}

func (a *App) listenAndServe() error {
	if tls := a.cfg.Server.TLS; tls != nil {
		slog.Info("admin server listening", "addr", a.server.Addr, "tls", true)
		return a.server.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
	}
	slog.Info("admin server listening", "addr", a.server.Addr)
	return a.server.ListenAndServe()
}

// ─── Reload ──────────────────────────────────────────────────────────────────

// ApplyReload applies a changed configuration to the running application.
// Log level and coordinator timing take effect immediately; changes to
// connection endpoints only log a restart hint.
func (a *App) ApplyReload(old, updated *config.Config) {
	diff := config.Diff(old, updated)

	if diff.LogLevelChanged {
		slog.SetLogLoggerLevel(diff.NewLogLevel.Slog())
		slog.Info("log level changed", "level", diff.NewLogLevel)
	}
	if diff.TimingChanged {
		a.coord.SetTiming(diff.NewAnnounceTimeout.Std(), diff.NewPrefetchDelay.Std())
		slog.Info("coordinator timing changed",
			"announce_timeout", diff.NewAnnounceTimeout.Std(),
			"prefetch_delay", diff.NewPrefetchDelay.Std())
	}
	if diff.RequiresRestart {
		slog.Warn("configuration change requires a restart to take effect")
	}

	a.cfg = updated
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems in reverse-init order. It respects the
// context deadline: if ctx expires before all closers finish, remaining
// closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		if a.server != nil {
			if err := a.server.Shutdown(ctx); err != nil {
				slog.Warn("admin server shutdown error", "err", err)
			}
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// Trap exposes the metadata trap, mainly so tests and the readiness surface
// can inspect the lock state.
func (a *App) Trap() *trap.Trap { return a.trap }

// Bus exposes the transition event bus.
func (a *App) Bus() *bus.Bus { return a.bus }
