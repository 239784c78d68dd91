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

	"github.com/starford/numeral/internal/api"
	"github.com/starford/numeral/internal/chartservice"
	"github.com/starford/numeral/internal/harmony"
	"github.com/starford/numeral/internal/index"
	"github.com/starford/numeral/internal/mcpserver"
	"github.com/starford/numeral/internal/sse"
	"github.com/starford/numeral/internal/storage"
)

// Version is reported by the MCP server.
var Version = "dev"

// Library bundles the chart library components shared by the HTTP server
// and the MCP server.
type Library struct {
	Store   *storage.FS
	DB      *index.DB
	Service *chartservice.Service
}

// Close releases the index database.
func (l *Library) Close() error {
	return l.DB.Close()
}

// NewAnalyzer builds an analyzer from the analysis section of cfg.
func NewAnalyzer(cfg *Config, logger *slog.Logger) *harmony.Analyzer {
	return harmony.New(
		harmony.WithWeights(cfg.Analysis.Weights),
		harmony.WithDisplay(cfg.Analysis.Display),
		harmony.WithLogger(logger),
	)
}

// OpenLibrary opens the chart directory and its index and runs an initial
// sync. A failed sync is logged and not fatal.
func OpenLibrary(cfg *Config, logger *slog.Logger) (*Library, error) {
	if err := os.MkdirAll(cfg.Library.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create library dir: %w", err)
	}

	store, err := storage.NewFS(cfg.Library.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	svc := chartservice.NewService(store, db, NewAnalyzer(cfg, logger), chartservice.Config{
		DefaultKey:  cfg.Analysis.DefaultKey,
		Workers:     cfg.Analysis.Workers,
		BarsPerLine: cfg.Analysis.BarsPerLine,
	}, logger)

	if err := index.Sync(db, store, svc.IndexFile, svc.Settings(), logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	return &Library{Store: store, DB: db, Service: svc}, nil
}

func (a *application) init() (*Config, *slog.Logger, error) {
	if a.config == nil {
		return nil, nil, fmt.Errorf("config is required")
	}
	if a.logger == nil {
		a.logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: a.config.App.LogLevel,
		}))
		slog.SetDefault(a.logger)
	}
	return a.config, a.logger, nil
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}

	cfg, logger, err := app.init()
	if err != nil {
		return err
	}

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("library_path", cfg.Library.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("default_key", cfg.Analysis.DefaultKey),
		slog.String("log_level", cfg.App.LogLevel.String()))

	lib, err := OpenLibrary(cfg, logger)
	if err != nil {
		return err
	}
	defer lib.Close()

	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	apiRouter := api.NewRouter(lib.Service, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

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
		if err := lib.DB.Ping(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	if cfg.Library.Watch {
		g.Go(func() error {
			err := index.Watch(gCtx, lib.DB, lib.Store, lib.Service.IndexFile, cfg.Library.Path, logger, broker.PublishChartEvent)
			if err != nil {
				logger.Error("watcher stopped", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

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

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the MCP tools on stdin/stdout. Logs must not go to stdout
// here, so the default logger writes to stderr.
func RunMCP(_ context.Context, opts ...Option) error {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.logger == nil && app.config != nil {
		app.logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: app.config.App.LogLevel,
		}))
	}

	cfg, logger, err := app.init()
	if err != nil {
		return err
	}

	lib, err := OpenLibrary(cfg, logger)
	if err != nil {
		return err
	}
	defer lib.Close()

	logger.Info("MCP server starting", slog.String("library_path", cfg.Library.Path))
	return mcpserver.New(lib.Service, Version).ServeStdio()
}
