// Package app wires the Claire subsystems into a running HTTP service.
//
// The App struct owns the full lifecycle: New opens the stores and builds the
// gateway, companion, usage gate and HTTP routes, Run serves until the
// context is cancelled, and Shutdown closes the stores in order.
//
// For testing, inject in-memory stores via functional options
// (WithUsageStore, WithHistoryStore). When an option is not provided, New
// creates the stores selected by the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/claire/internal/api"
	"github.com/MrWong99/claire/internal/config"
	"github.com/MrWong99/claire/internal/gateway"
	"github.com/MrWong99/claire/internal/health"
	"github.com/MrWong99/claire/internal/mcp/readingtools"
	"github.com/MrWong99/claire/internal/observe"
	"github.com/MrWong99/claire/internal/resilience"
	"github.com/MrWong99/claire/internal/support"
	"github.com/MrWong99/claire/internal/usage"
	"github.com/MrWong99/claire/pkg/history"
	"github.com/MrWong99/claire/pkg/history/postgres"
	"github.com/MrWong99/claire/pkg/provider/llm"
	"github.com/MrWong99/claire/pkg/provider/stt"
	"github.com/MrWong99/claire/pkg/provider/tts"
)

// ErrLLMNotConfigured is reported by the optional "llm" readiness check.
var ErrLLMNotConfigured = errors.New("no llm provider configured; using local fallbacks")

// Providers holds one interface value per provider slot. Nil means the
// provider is not configured. Populated by [BuildProviders].
type Providers struct {
	LLM llm.Provider
	TTS tts.Provider
	STT stt.Provider
}

// App owns all subsystem lifetimes of the Claire server.
type App struct {
	cfg       *config.Config
	providers *Providers
	metrics   *observe.Metrics
	level     *slog.LevelVar
	watcher   *config.Watcher

	// Subsystems, initialised in New and closed in Shutdown.
	usageStore usage.Store
	history    history.Store
	gate       *usage.Gate
	gateway    *gateway.Gateway
	companion  *support.Companion
	health     *health.Handler
	api        *api.Server
	server     *http.Server

	// closers are called in order during Shutdown.
	closers []func() error

	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithUsageStore injects a usage counter store instead of creating one from
// config.
func WithUsageStore(s usage.Store) Option {
	return func(a *App) { a.usageStore = s }
}

// WithHistoryStore injects a history store instead of creating one from
// config.
func WithHistoryStore(s history.Store) Option {
	return func(a *App) { a.history = s }
}

// WithMetrics records to m instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithLevelVar lets config reloads change the level of the process logger.
func WithLevelVar(v *slog.LevelVar) Option {
	return func(a *App) { a.level = v }
}

// WithWatcher runs w alongside the HTTP server. Pass [App.Reload] (through a
// closure) as the watcher's callback to apply reloadable settings.
func WithWatcher(w *config.Watcher) Option {
	return func(a *App) { a.watcher = w }
}

// New creates an App by wiring all subsystems together. The providers struct
// comes from [BuildProviders]; any of its fields may be nil.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil {
		providers = &Providers{}
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if a.level == nil {
		a.level = new(slog.LevelVar)
		a.level.Set(cfg.Server.LogLevel.SlogLevel())
	}

	a.health = health.New(health.Checker{
		Name:     "llm",
		Optional: true,
		Check: func(context.Context) error {
			if a.providers.LLM == nil {
				return ErrLLMNotConfigured
			}
			return chainCheck(a.providers.LLM)
		},
	})
	if providers.TTS != nil {
		a.health.Add(health.Checker{Name: "tts", Optional: true, Check: func(context.Context) error {
			return chainCheck(a.providers.TTS)
		}})
	}
	if providers.STT != nil {
		a.health.Add(health.Checker{Name: "stt", Optional: true, Check: func(context.Context) error {
			return chainCheck(a.providers.STT)
		}})
	}

	if err := a.initUsage(ctx); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init usage: %w", err)
	}
	if err := a.initHistory(ctx); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init history: %w", err)
	}

	a.initContent()
	a.initRoutes()

	a.server = &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           a.api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return a, nil
}

// initUsage opens the usage counter store selected by usage.store.
func (a *App) initUsage(ctx context.Context) error {
	if a.usageStore == nil {
		u := a.cfg.Usage
		switch u.Store {
		case config.UsageStoreSQLite:
			s, err := usage.OpenSQLite(ctx, u.SQLitePath)
			if err != nil {
				return err
			}
			a.usageStore = s
			a.closers = append(a.closers, s.Close)
			slog.Info("usage counters in sqlite", "path", u.SQLitePath)

		case config.UsageStoreRedis:
			s, err := usage.NewRedisStore(ctx, u.RedisAddr)
			if err != nil {
				return err
			}
			a.usageStore = s
			a.closers = append(a.closers, s.Close)
			a.health.Add(health.Checker{Name: "redis", Check: s.Ping})
			slog.Info("usage counters in redis", "addr", u.RedisAddr)

		default:
			a.usageStore = usage.NewMemStore()
			slog.Info("usage counters in memory")
		}
	}

	a.gate = usage.NewGate(a.usageStore,
		usage.WithLimit(a.cfg.Usage.Limit),
		usage.WithMetrics(a.metrics),
	)
	return nil
}

// initHistory connects the PostgreSQL history store or falls back to memory.
func (a *App) initHistory(ctx context.Context) error {
	if a.history != nil {
		return nil
	}

	dsn := a.cfg.History.PostgresDSN
	if dsn == "" {
		a.history = history.NewMemStore()
		return nil
	}

	store, err := postgres.NewStore(ctx, dsn)
	if err != nil {
		return err
	}
	a.history = store
	a.health.Add(health.Checker{Name: "postgres", Check: store.Ping})
	a.closers = append(a.closers, func() error {
		store.Close()
		return nil
	})
	return nil
}

// initContent builds the content gateway and the support companion around
// the LLM provider.
func (a *App) initContent() {
	g := a.cfg.Gateway
	model := a.cfg.Providers.LLM.Model

	a.gateway = gateway.New(a.providers.LLM,
		gateway.WithMaxInputChars(g.MaxInputChars),
		gateway.WithTimeout(g.Timeout),
		gateway.WithMaxAttempts(g.MaxAttempts),
		gateway.WithRetryDelay(g.RetryDelay),
		gateway.WithTemperature(g.Temperature),
		gateway.WithMaxTokens(g.MaxTokens),
		gateway.WithModelName(model),
		gateway.WithMetrics(a.metrics),
	)

	s := a.cfg.Support
	a.companion = support.New(a.providers.LLM,
		support.WithTemperature(s.Temperature),
		support.WithMaxTokens(s.MaxTokens),
		support.WithTimeout(s.Timeout),
		support.WithModelName(model),
		support.WithMetrics(a.metrics),
	)
}

// initRoutes registers the API, probes, metrics and, when enabled, the MCP
// endpoint on one mux.
func (a *App) initRoutes() {
	a.api = api.New(api.Config{
		Gateway:         a.gateway,
		Companion:       a.companion,
		TTS:             a.providers.TTS,
		STT:             a.providers.STT,
		Gate:            a.gate,
		History:         a.history,
		Metrics:         a.metrics,
		CORSOrigin:      a.cfg.Server.CORSOrigin,
		DefaultVoice:    a.cfg.Speech.DefaultVoice,
		DefaultLanguage: a.cfg.Speech.DefaultLanguage,
	})

	a.health.Register(a.api.Mux())
	a.api.Handle("GET /metrics", observe.MetricsHandler())

	if a.cfg.MCP.Enabled {
		srv := readingtools.NewServer(a.gateway, readingtools.WithMetrics(a.metrics))
		a.api.Handle(a.cfg.MCP.Path, readingtools.Handler(srv))
		slog.Info("mcp reading tools enabled", "path", a.cfg.MCP.Path)
	}
}

// Handler returns the fully wrapped HTTP handler.
func (a *App) Handler() http.Handler { return a.server.Handler }

// Gate returns the usage gate.
func (a *App) Gate() *usage.Gate { return a.gate }

// Gateway returns the content gateway.
func (a *App) Gateway() *gateway.Gateway { return a.gateway }

// Run listens on server.listen_addr and serves until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.Server.ListenAddr)
	if err != nil {
		return fmt.Errorf("app: listen: %w", err)
	}
	return a.Serve(ctx, ln)
}

// Serve serves HTTP on ln, and runs the config watcher if one was given,
// until ctx is cancelled. The server is then shut down gracefully within
// server.shutdown_timeout. Serve returns nil after a clean shutdown.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		if tls := a.cfg.Server.TLS; tls != nil {
			err = a.server.ServeTLS(ln, tls.CertFile, tls.KeyFile)
		} else {
			err = a.server.Serve(ln)
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: serve: %w", err)
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("app: http shutdown: %w", err)
		}
		return nil
	})

	if a.watcher != nil {
		g.Go(func() error { return a.watcher.Run(gctx) })
	}

	slog.Info("claire listening", "addr", ln.Addr().String(), "tls", a.cfg.Server.TLS != nil)
	return g.Wait()
}

// Reload applies the reloadable settings of next: log level, gateway timeout
// and usage limit. Other changes are logged and take effect after a restart.
func (a *App) Reload(prev, next *config.Config) {
	d := config.Diff(prev, next)
	if d.Empty() {
		return
	}
	if d.LogLevelChanged {
		a.level.Set(d.NewLogLevel.SlogLevel())
		slog.Info("config reload: log level changed", "level", d.NewLogLevel)
	}
	if d.GatewayTimeoutChanged {
		a.gateway.SetTimeout(d.NewGatewayTimeout)
		slog.Info("config reload: gateway timeout changed", "timeout", d.NewGatewayTimeout)
	}
	if d.UsageLimitChanged {
		a.gate.SetLimit(d.NewUsageLimit)
		slog.Info("config reload: usage limit changed", "limit", d.NewUsageLimit)
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("config reload: restart required to apply changes", "sections", d.RestartRequired)
	}
}

// Shutdown closes all stores in init order. It respects the context
// deadline: if ctx expires before all closers finish, remaining closers are
// skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))
		var errs []error
		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				errs = append(errs, ctx.Err())
				shutdownErr = errors.Join(errs...)
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
				errs = append(errs, err)
			}
		}
		shutdownErr = errors.Join(errs...)
		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// closeAll releases whatever New opened before it failed.
func (a *App) closeAll() {
	for _, closer := range a.closers {
		_ = closer()
	}
	a.closers = nil
}

// chainCheck fails once every backend of a fallback chain has an open
// breaker. Single providers always pass.
func chainCheck(p any) error {
	chain, ok := p.(interface{ Breakers() map[string]resilience.State })
	if !ok {
		return nil
	}
	states := chain.Breakers()
	for _, s := range states {
		if s != resilience.StateOpen {
			return nil
		}
	}
	return fmt.Errorf("all %d backends have an open circuit", len(states))
}
