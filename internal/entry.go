// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/erikfacundo/mechiv2-sub000/internal/api"
	"github.com/erikfacundo/mechiv2-sub000/internal/mcpserver"
	"github.com/erikfacundo/mechiv2-sub000/internal/sse"
)

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	c, err := build(opts)
	if err != nil {
		return err
	}
	defer c.Close()

	cfg := c.cfg
	logger := c.logger

	// Load the category catalogue.
	if err := ensureDir(cfg.Catalog.Path); err != nil {
		return fmt.Errorf("create catalog dir: %w", err)
	}
	publishCategory := func(kind, id string) {
		c.broker.Publish(sse.Event{
			Type: "category." + kind,
			Data: map[string]string{"id": id},
		})
	}
	if err := c.catalog.Sync(ctx, publishCategory); err != nil {
		logger.Warn("initial catalog sync failed", slog.String("error", err.Error()))
	}

	handler := api.NewHandler(c.orders, c.photos, c.db, logger)
	apiRouter := api.NewRouter(handler, cfg.Auth.AuthEnabled(), cfg.Auth.Token, c.broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		writeStatus(w, http.StatusOK, "ok")
	})
	r.Get("/health/ready", func(w http.ResponseWriter, req *http.Request) {
		if err := c.db.Ping(req.Context()); err != nil {
			logger.Warn("readiness check failed", slog.String("error", err.Error()))
			writeStatus(w, http.StatusServiceUnavailable, "unavailable")
			return
		}
		writeStatus(w, http.StatusOK, "ok")
	})
	r.Handle("/metrics", c.metrics.Handler())

	// Locally stored photos.
	if c.files != nil {
		r.Handle("/files/*", http.StripPrefix("/files/", http.FileServer(http.Dir(c.files.Root()))))
	}

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Keep the categories collection in step with the catalogue directory.
	if cfg.Catalog.Watch {
		g.Go(func() error {
			if err := c.catalog.Watch(gCtx, publishCategory); err != nil {
				logger.Warn("catalog watcher failed", slog.String("error", err.Error()))
			}
			return nil
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

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group so the watcher stops with the server.
var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools over stdio until stdin closes.
func RunMCP(_ context.Context, opts ...Option) error {
	c, err := build(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	defer c.Close()

	c.logger.Info("MCP server starting on stdio")
	return mcpserver.New(c.orders, c.logger).ServeStdio()
}

// PrintOrphans writes the orphaned checklist items of every order to w as
// JSON.
func PrintOrphans(ctx context.Context, w io.Writer, opts ...Option) error {
	c, err := build(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	defer c.Close()

	reports, err := c.orders.AllOrphans(ctx)
	if err != nil {
		return fmt.Errorf("list orphans: %w", err)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(reports)
}

// PrintNextNumber writes the next order number to w. A fallback number is
// reported on stderr through the logger.
func PrintNextNumber(ctx context.Context, w io.Writer, opts ...Option) error {
	c, err := build(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	defer c.Close()

	number, _ := c.orders.NextNumber(ctx)
	_, err = fmt.Fprintln(w, number)
	return err
}

func writeStatus(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": msg})
}
