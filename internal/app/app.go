// Package app wires all Lectern subsystems into a running server.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves until the context is cancelled, and Shutdown tears
// everything down in order.
//
// For testing, pass mock providers and inject in-memory stores via
// WithStores. Without injected stores, New connects to PostgreSQL from the
// config.
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

	"github.com/MrWong99/lectern/internal/auth"
	"github.com/MrWong99/lectern/internal/config"
	"github.com/MrWong99/lectern/internal/health"
	"github.com/MrWong99/lectern/internal/httpapi"
	"github.com/MrWong99/lectern/internal/ingest"
	"github.com/MrWong99/lectern/internal/ledger"
	"github.com/MrWong99/lectern/internal/observe"
	"github.com/MrWong99/lectern/internal/room"
	"github.com/MrWong99/lectern/internal/storage"
	"github.com/MrWong99/lectern/internal/store"
	"github.com/MrWong99/lectern/internal/store/postgres"
	"github.com/MrWong99/lectern/internal/tasks"
	"github.com/MrWong99/lectern/internal/ws"
	"github.com/MrWong99/lectern/pkg/provider/asr"
	"github.com/MrWong99/lectern/pkg/provider/translate"
)

const sweepInterval = time.Hour

// Providers holds the speech and translation backends. Populated by main.go
// via the config registry; nil Translate disables translation.
type Providers struct {
	ASR       asr.Provider
	Translate translate.Provider
}

// Stores bundles the three storage contracts. Used to inject in-memory
// stores for tests; when absent, New connects to PostgreSQL.
type Stores struct {
	Utterances store.UtteranceStore
	Lectures   store.LectureStore
	Users      store.UserStore

	// Ping reports store health for the readiness endpoint. Optional.
	Ping func(ctx context.Context) error
}

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers
	logLevel  *slog.LevelVar

	// Subsystems — initialised in New, torn down in Shutdown.
	stores   *Stores
	registry *room.Registry
	ledger   *ledger.Ledger
	queue    *tasks.Queue
	exports  *storage.Exports
	server   *http.Server

	// closers are called in order during Shutdown.
	closers []func(ctx context.Context) error

	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStores injects storage implementations instead of connecting to
// PostgreSQL.
func WithStores(s *Stores) Option {
	return func(a *App) { a.stores = s }
}

// WithLogLevel hands New the level var driving the process logger, so config
// reloads can adjust verbosity at runtime.
func WithLogLevel(level *slog.LevelVar) Option {
	return func(a *App) { a.logLevel = level }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry).
//
// New performs all initialisation synchronously: store connection, room
// registry and ledger assembly, persistence queue construction, and HTTP
// route registration. The queue workers and the listener start in Run.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil || providers.ASR == nil {
		return nil, errors.New("app: an ASR provider is required")
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}

	// ── 1. Durable stores ────────────────────────────────────────────────
	if err := a.initStores(ctx); err != nil {
		return nil, fmt.Errorf("app: init stores: %w", err)
	}

	// ── 2. Rooms, ledger, persistence queue ──────────────────────────────
	a.registry = room.NewRegistry()
	a.ledger = ledger.New(a.stores.Utterances)
	a.registry.OnEmpty(a.ledger.Drop)
	a.queue = tasks.NewQueue(a.stores.Utterances, tasks.Config{
		Workers:    a.cfg.Queue.Workers,
		Capacity:   a.cfg.Queue.Capacity,
		DrainGrace: a.cfg.Queue.DrainGrace.Std(),
	})

	// ── 3. Export file store ─────────────────────────────────────────────
	exports, err := storage.NewExports(a.cfg.Storage.Dir, a.cfg.Storage.ExportTTL.Std())
	if err != nil {
		return nil, fmt.Errorf("app: init export store: %w", err)
	}
	a.exports = exports

	// ── 4. HTTP server: API, WebSocket, health, metrics ──────────────────
	if err := a.initServer(); err != nil {
		return nil, fmt.Errorf("app: init server: %w", err)
	}

	return a, nil
}

// initStores connects to PostgreSQL unless stores were injected.
func (a *App) initStores(ctx context.Context) error {
	if a.stores != nil {
		return nil
	}
	dsn := a.cfg.Postgres.DSN
	if dsn == "" {
		return errors.New("postgres.dsn is required when stores are not injected")
	}
	pg, err := postgres.New(ctx, dsn)
	if err != nil {
		return err
	}
	a.stores = &Stores{
		Utterances: pg.Utterances(),
		Lectures:   pg.Lectures(),
		Users:      pg.Users(),
		Ping:       pg.Ping,
	}
	a.closers = append(a.closers, func(context.Context) error {
		pg.Close()
		return nil
	})
	return nil
}

// initServer assembles the full HTTP surface on one mux. The /api routes go
// through the auth middleware and the observability middleware; the
// WebSocket endpoint authenticates itself with its query-parameter token,
// and the operational endpoints stay open.
func (a *App) initServer() error {
	metrics := observe.DefaultMetrics()

	authSvc := auth.NewService(a.stores.Users)

	translator := a.providers.Translate
	pipeline, err := ingest.New(ingest.Config{
		ASR:              a.providers.ASR,
		Translator:       translator,
		Ledger:           a.ledger,
		Broadcaster:      room.NewBroadcaster(a.registry, a.cfg.Broadcast.SendTimeout.Std()),
		Queue:            a.queue,
		Metrics:          metrics,
		SourceLang:       a.cfg.Providers.SourceLang,
		TargetLang:       a.cfg.Providers.TargetLang,
		RetryTranslation: translator != nil,
	})
	if err != nil {
		return fmt.Errorf("init pipeline: %w", err)
	}

	wsServer, err := ws.NewServer(ws.Config{
		Auth:              authSvc,
		Lectures:          a.stores.Lectures,
		Utterances:        a.stores.Utterances,
		Registry:          a.registry,
		Ledger:            a.ledger,
		Pipeline:          pipeline,
		Metrics:           metrics,
		HeartbeatInterval: a.cfg.Broadcast.HeartbeatInterval.Std(),
	})
	if err != nil {
		return fmt.Errorf("init websocket server: %w", err)
	}

	api, err := httpapi.NewServer(authSvc, a.stores.Lectures, a.stores.Utterances,
		httpapi.WithExports(a.exports))
	if err != nil {
		return fmt.Errorf("init api server: %w", err)
	}

	apiMux := http.NewServeMux()
	api.Register(apiMux)
	apiHandler := observe.Middleware(metrics)(
		auth.Middleware(authSvc, httpapi.ExemptPaths...)(apiMux))

	checkers := []health.Checker{health.Queue(a.queue.Running)}
	if a.stores.Ping != nil {
		checkers = append(checkers, health.Postgres(a.stores.Ping))
	}

	mux := http.NewServeMux()
	mux.Handle("/api/", apiHandler)
	wsServer.Register(mux)
	health.New(checkers...).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	a.server = &http.Server{
		Addr:    a.cfg.Server.ListenAddr,
		Handler: mux,
	}
	return nil
}

// Handler exposes the assembled HTTP surface. Used by tests to drive the
// server without binding a listener.
func (a *App) Handler() http.Handler {
	return a.server.Handler
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run starts the queue workers, the export sweeper and the HTTP listener,
// then blocks until ctx is cancelled or the listener fails. Shutdown runs in
// either case.
func (a *App) Run(ctx context.Context) error {
	a.queue.Start()

	g, runCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.exports.RunSweeper(runCtx, sweepInterval)
		return nil
	})

	g.Go(func() error {
		var err error
		if tls := a.cfg.Server.TLS; tls != nil {
			slog.Info("listening", "addr", a.server.Addr, "tls", true)
			err = a.server.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			slog.Info("listening", "addr", a.server.Addr, "tls", false)
			err = a.server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-runCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(),
			a.cfg.Queue.DrainGrace.Std()+5*time.Second)
		defer cancel()
		return a.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	return ctx.Err()
}

// ApplyConfig applies a hot-reloadable configuration change. Only the log
// level takes effect immediately; broadcast settings apply to connections
// opened after the reload and are logged for the operator.
func (a *App) ApplyConfig(old, updated *config.Config) {
	diff := config.Diff(old, updated)
	if !diff.HasChanges() {
		return
	}
	if diff.LogLevelChanged && a.logLevel != nil {
		a.logLevel.Set(diff.NewLogLevel.Slog())
		slog.Info("log level changed", "level", diff.NewLogLevel)
	}
	if diff.BroadcastChanged {
		slog.Info("broadcast settings changed, applies to new connections",
			"send_timeout", diff.NewBroadcast.SendTimeout.Std(),
			"heartbeat_interval", diff.NewBroadcast.HeartbeatInterval.Std())
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown stops accepting connections, drains the persistence queue within
// its grace period, and closes the stores. Safe to call more than once.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down")

		if err := a.server.Shutdown(ctx); err != nil {
			slog.Warn("http shutdown error", "error", err)
			shutdownErr = err
		}

		if err := a.queue.Shutdown(ctx); err != nil {
			slog.Warn("queue drain error", "error", err)
			if shutdownErr == nil {
				shutdownErr = err
			}
		}

		for i, closer := range a.closers {
			if err := closer(ctx); err != nil {
				slog.Warn("closer error", "index", i, "error", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
