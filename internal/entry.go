// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/almanac/internal/api"
	"github.com/starford/almanac/internal/journal"
	"github.com/starford/almanac/internal/noteservice"
	"github.com/starford/almanac/internal/notify"
	"github.com/starford/almanac/internal/sse"
	"github.com/starford/almanac/internal/state"
	"github.com/starford/almanac/internal/storage"
	"github.com/starford/almanac/internal/watch"
)

// sseBacklog is how many recent events a reconnecting client receives.
const sseBacklog = 16

// Session is an opened vault and state store with a ready note service.
// One-shot commands use it without starting any background loop.
type Session struct {
	Service *noteservice.Service
	Logger  *slog.Logger
	Store   storage.Provider
	State   *state.DB
}

// Close stops pending timers and closes the state store.
func (s *Session) Close() {
	s.Service.Close()
	if err := s.State.Close(); err != nil {
		s.Logger.Warn("close state failed", slog.String("error", err.Error()))
	}
}

func newApplication(opts []Option) (*application, error) {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

func (a *application) newLogger() *slog.Logger {
	out := a.logOutput
	if out == nil {
		out = os.Stdout
	}
	return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: a.config.App.LogLevel,
	}))
}

func (a *application) appSurface(extra ...notify.AppSurface) notify.AppSurface {
	surfaces := append(append(notify.MultiSurface{}, extra...), a.app...)
	if len(surfaces) == 1 {
		return surfaces[0]
	}
	return surfaces
}

func (a *application) systemSurface() notify.SystemSurface {
	if a.system != nil {
		return a.system
	}
	return notify.Desktop{Icon: a.config.Notification.Icon}
}

// open prepares the vault, the state store and the note service.
func (a *application) open(ctx context.Context, logger *slog.Logger, app notify.AppSurface, opener func(string)) (*Session, error) {
	cfg := a.config

	// Ensure vault directory exists.
	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create vault dir: %w", err)
	}

	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	db, err := state.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init state: %w", err)
	}

	svc, err := noteservice.New(ctx, cfg.ServiceSettings(), noteservice.Deps{
		Store:  store,
		State:  db,
		App:    app,
		System: a.systemSurface(),
		Clock:  a.clock,
		Logger: logger,
		Opener: opener,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init note service: %w", err)
	}

	return &Session{Service: svc, Logger: logger, Store: store, State: db}, nil
}

// Open builds a Session for one-shot commands. Reminders created through it
// are persisted and armed by the next Run.
func Open(ctx context.Context, opts ...Option) (*Session, error) {
	app, err := newApplication(opts)
	if err != nil {
		return nil, err
	}
	logger := app.newLogger()
	opener := func(path string) {
		logger.Info("open note", slog.String("path", path))
	}
	return app.open(ctx, logger, app.appSurface(), opener)
}

// autoCreateTasks returns the periodic checks enabled in the config.
func autoCreateTasks(cfg *Config, svc *noteservice.Service) []journal.Task {
	var tasks []journal.Task
	if cfg.Periodic.Daily.AutoCreate {
		tasks = append(tasks, func(ctx context.Context) {
			svc.Daily().EnsureToday(ctx)
		})
	}
	if cfg.Journal.AutoCreate {
		tasks = append(tasks, svc.Journal().EnsureThisWeekTask())
	}
	return tasks
}

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := app.newLogger()
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("timezone", cfg.App.Location().String()),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// SSE broker carries alerts and note events to connected editors.
	broker := sse.NewBroker(sseBacklog)
	defer broker.Close()

	opener := func(path string) {
		broker.PublishNoteEvent(sse.NoteOpened, path)
	}
	sess, err := app.open(ctx, logger, app.appSurface(notify.NewBrokerSurface(broker)), opener)
	if err != nil {
		return err
	}
	defer sess.Close()
	svc := sess.Service

	svc.Restore(ctx)

	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start vault watcher; note events go to the SSE stream.
	g.Go(func() error {
		w := watch.New(cfg.Vault.Path, sess.Store, svc.Reminders(), sess.State, logger, broker.PublishNoteEvent)
		w.Reconcile(gCtx)
		if err := w.Run(gCtx); err != nil {
			logger.Warn("watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})

	// Start auto-creation of today's daily note and this week's journal.
	if tasks := autoCreateTasks(cfg, svc); len(tasks) > 0 {
		g.Go(func() error {
			return journal.NewAutoCreator(cfg.Journal.AutoCreateInterval, sess.Service.Clock(), logger, tasks...).Run(gCtx)
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		// Stop the watcher and auto-creator once the server is down.
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

var errShutdown = errors.New("shutdown requested")
