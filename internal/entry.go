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
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/sync/errgroup"

	"github.com/starford/furrow/internal/api"
	"github.com/starford/furrow/internal/auth"
	"github.com/starford/furrow/internal/docstore"
	"github.com/starford/furrow/internal/index"
	"github.com/starford/furrow/internal/mcpserver"
	"github.com/starford/furrow/internal/posts"
	"github.com/starford/furrow/internal/sse"
)

func (a *application) resolve() (*Config, error) {
	if a.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if a.version == "" {
		a.version = "dev"
	}
	return a.config, nil
}

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := newApplication(opts)
	cfg, err := app.resolve()
	if err != nil {
		return err
	}

	// Initialize structured JSON logger.
	logger := newLogger(cfg, os.Stdout)
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("env", cfg.App.Env),
		slog.String("content_dir", cfg.Content.Dir),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("cms_backend", cfg.CMS.Backend),
		slog.String("uploads_backend", cfg.Uploads.Backend),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	// Posts committed to GitHub never reach the index, so they are
	// announced directly. The other backends are picked up by the watcher
	// and the document sync loop.
	var notify func(posts.Event)
	if cfg.CMS.Backend == BackendGitHub {
		notify = func(ev posts.Event) {
			broker.PublishEntryEvent(ev.Type, "blog/"+ev.Slug)
		}
	}

	svc, err := newServices(cfg, notify)
	if err != nil {
		return err
	}
	defer svc.Close()

	// Run initial sync.
	if err := index.Sync(ctx, svc.db, svc.sources, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	authSvc, err := newAuth(cfg)
	if err != nil {
		return fmt.Errorf("init auth: %w", err)
	}
	if len(cfg.Auth.Users) == 0 && cfg.Auth.APIKey == "" {
		logger.Warn("no users or api key configured; authenticated endpoints are unreachable")
	}

	deps := api.Deps{
		Catalog: svc.catalog,
		Posts:   svc.posts,
		CMS:     svc.cms,
		Media:   svc.media,
		Preview: svc.preview,
		Auth:    authSvc,
		Events:  broker,
	}
	if cfg.Auth.LoginRate > 0 {
		deps.Limiter = auth.NewLoginLimiter(cfg.Auth.LoginRate)
	}
	if svc.github != nil {
		deps.Sync = svc.github
	}
	apiRouter := api.NewRouter(deps)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(rootMiddleware(cfg)...)
	if len(cfg.App.CORS.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.App.CORS.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := svc.db.Count(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	// Locally stored uploads.
	if svc.uploads != nil {
		prefix := "/" + strings.Trim(cfg.Uploads.URLPrefix, "/")
		r.Get(prefix+"/{filename}", api.NewUploadServer(svc.uploads.Root()).ServeFile)
	}

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start file watcher with SSE callback.
	g.Go(func() error {
		err := index.Watch(gCtx, svc.db, svc.sources, svc.store.Root(), logger, broker.PublishEntryEvent)
		if err != nil {
			logger.Error("watcher failed", slog.String("error", err.Error()))
		}
		return nil
	})

	// Re-index documents after writes to the document store.
	docsChanged := make(chan struct{}, 1)
	svc.docs.OnChange(func(c docstore.Change) {
		broker.Publish(sse.Event{Type: sse.TypeDocChanged, Data: map[string]string{"path": c.Path, "op": string(c.Op)}})
		select {
		case docsChanged <- struct{}{}:
		default:
		}
	})
	g.Go(func() error {
		for {
			select {
			case <-gCtx.Done():
				return nil
			case <-docsChanged:
				if err := index.SyncDocs(gCtx, svc.db, svc.sources, logger, broker.PublishEntryEvent); err != nil {
					logger.Warn("document sync failed", slog.String("error", err.Error()))
				}
			}
		}
	})

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

		// Streaming SSE clients would otherwise hold Shutdown open.
		broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// rootMiddleware returns the handlers every request passes through.
// Forwarding headers are only honoured when the app sits behind a proxy.
func rootMiddleware(cfg *Config) []func(http.Handler) http.Handler {
	mw := []func(http.Handler) http.Handler{middleware.RequestID}
	if cfg.App.TrustProxy {
		mw = append(mw, middleware.RealIP)
	}
	return append(mw, middleware.Logger, middleware.Recoverer)
}

// errShutdown ends the errgroup so the watcher and sync loop stop once the
// server has shut down.
var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools over stdin/stdout. Logs go to stderr.
func RunMCP(ctx context.Context, opts ...Option) error {
	app := newApplication(opts)
	cfg, err := app.resolve()
	if err != nil {
		return err
	}
	logger := newLogger(cfg, os.Stderr)
	slog.SetDefault(logger)

	svc, err := newServices(cfg, nil)
	if err != nil {
		return err
	}
	defer svc.Close()

	if err := index.Sync(ctx, svc.db, svc.sources, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	srv := mcpserver.New(mcpserver.Deps{
		Catalog: svc.catalog,
		Index:   svc.db,
		Preview: svc.preview,
		Posts:   svc.posts,
		Media:   svc.media,
	}, app.version)

	logger.Info("MCP server starting", slog.String("version", app.version))
	return srv.ServeStdio()
}

// Reindex brings the search index up to date and exits.
func Reindex(ctx context.Context, opts ...Option) error {
	app := newApplication(opts)
	cfg, err := app.resolve()
	if err != nil {
		return err
	}
	logger := newLogger(cfg, os.Stdout)

	svc, err := newServices(cfg, nil)
	if err != nil {
		return err
	}
	defer svc.Close()

	if err := index.Sync(ctx, svc.db, svc.sources, logger); err != nil {
		return fmt.Errorf("reindex: %w", err)
	}
	n, err := svc.db.Count()
	if err != nil {
		return fmt.Errorf("reindex: count: %w", err)
	}
	logger.Info("Reindex complete", slog.Int("entries", n))
	return nil
}
