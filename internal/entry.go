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

	"github.com/mkerring/sift/internal/api"
	"github.com/mkerring/sift/internal/embedcache"
	"github.com/mkerring/sift/internal/index"
	"github.com/mkerring/sift/internal/mcpserver"
	"github.com/mkerring/sift/internal/query"
	"github.com/mkerring/sift/internal/registry"
	"github.com/mkerring/sift/internal/sse"
	"github.com/mkerring/sift/internal/storage"
	"github.com/mkerring/sift/internal/syncer"
	"github.com/mkerring/sift/internal/tagger"
)

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Structured JSON logger. In MCP mode stdout carries the protocol,
	// so logs go to stderr.
	logOut := os.Stdout
	if app.mcpMode {
		logOut = os.Stderr
	}
	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{
		Level: cfg.App.Level(),
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("watch_root", cfg.Watch.Root),
		slog.String("index_dir", cfg.Index.Dir),
		slog.String("cache_dir", cfg.Cache.Dir),
		slog.String("tagger", cfg.Tagger.Provider),
		slog.String("log_level", cfg.App.Level().String()))

	// Ensure the watched root exists.
	if err := os.MkdirAll(cfg.Watch.Root, 0o755); err != nil {
		return fmt.Errorf("create watch root: %w", err)
	}

	store, err := storage.NewFS(cfg.Watch.Root, cfg.Watch.Extensions)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	db, err := index.Open(cfg.Index.Dir)
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	defer db.Close()

	cache, err := embedcache.Open(cfg.Cache.Dir)
	if err != nil {
		return fmt.Errorf("init tag cache: %w", err)
	}
	defer cache.Close()

	reg := registry.New()

	var tg tagger.Tagger
	switch cfg.Tagger.Provider {
	case TaggerEmbedding:
		tg = tagger.NewEmbedding(cfg.Tagger.Endpoint, cfg.Tagger.APIKey, cfg.Tagger.Model, cfg.Tagger.TopK)
	default:
		tg = tagger.NewKeyword(cfg.Tagger.TopK)
	}

	var broker *sse.Broker
	var cb syncer.EventCallback
	if !app.mcpMode {
		broker = sse.NewBroker()
		defer broker.Close()
		cb = func(kind, path string) {
			broker.PublishFileEvent(kind, path)
		}
	}

	sync := syncer.New(db, cache, reg, store, tg, logger, cb)
	pipeline := syncer.NewPipeline(sync, store, logger)

	svc := query.NewService(db, logger)

	g, gCtx := errgroup.WithContext(ctx)

	// Watch first, then scan. The watcher must cover the tree before the
	// scan starts so nothing slips through the gap; events arriving during
	// the scan buffer inside the pipeline and replay afterwards.
	g.Go(func() error {
		return pipeline.Run(gCtx)
	})
	g.Go(func() error {
		select {
		case <-pipeline.Started():
		case <-gCtx.Done():
			return nil
		}
		if err := sync.Scan(gCtx); err != nil {
			logger.Warn("initial scan failed", slog.String("error", err.Error()))
		}
		pipeline.ScanComplete()
		return nil
	})

	if app.mcpMode {
		srv := mcpserver.New(store, db, svc, func() map[string]any {
			n, _ := db.Count()
			tracked, processing := reg.Stats()
			cached, _ := cache.Len()
			return map[string]any{
				"pipeline":      pipeline.State().String(),
				"indexed_files": n,
				"tracked":       tracked,
				"processing":    processing,
				"cached_tags":   cached,
			}
		})
		g.Go(func() error {
			logger.Info("Starting MCP server on stdio")
			return srv.ServeStdio()
		})
	} else {
		status := func() api.Status {
			n, _ := db.Count()
			tracked, processing := reg.Stats()
			cached, _ := cache.Len()
			return api.Status{
				Pipeline:     pipeline.State().String(),
				IndexedFiles: n,
				Tracked:      tracked,
				Processing:   processing,
				CachedTags:   cached,
			}
		}
		apiRouter := api.NewRouter(svc, db, store, status, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

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

		r.Mount("/api", apiRouter)

		httpServer := &http.Server{
			Addr:    cfg.App.HTTP.Address(),
			Handler: r,
		}

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
	}

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}
