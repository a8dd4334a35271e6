// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/starford/notesearch/internal/api"
	"github.com/starford/notesearch/internal/corpus"
	"github.com/starford/notesearch/internal/mcpserver"
	"github.com/starford/notesearch/internal/metrics"
	"github.com/starford/notesearch/internal/noteservice"
	"github.com/starford/notesearch/internal/sse"
	"github.com/starford/notesearch/internal/storage"
)

// components are the parts shared by every command.
type components struct {
	store storage.Provider
	db    *corpus.DB
	svc   *noteservice.Service
}

func (c *components) Close() {
	c.svc.Close()
	if err := c.db.Close(); err != nil {
		slog.Warn("corpus close failed", slog.String("error", err.Error()))
	}
}

func newApplication(opts []Option, logOut io.Writer) (*application, error) {
	app := &application{version: "dev"}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if app.logger == nil {
		app.logger = slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{
			Level: app.config.App.LogLevel,
		}))
	}
	slog.SetDefault(app.logger)
	return app, nil
}

// open prepares the vault, opens the corpus, brings it in step with the
// vault and builds the note service.
func (a *application) open(ctx context.Context, extra ...noteservice.Option) (*components, error) {
	cfg := a.config

	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create vault dir: %w", err)
	}
	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	ordering, err := cfg.Search.Ordering()
	if err != nil {
		return nil, fmt.Errorf("search ordering: %w", err)
	}
	scope, err := noteservice.ParseScope(cfg.Search.Scope, noteservice.ScopeActive)
	if err != nil {
		return nil, fmt.Errorf("search scope: %w", err)
	}

	db, err := corpus.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init corpus: %w", err)
	}
	if err := corpus.Sync(ctx, db, store, a.logger); err != nil {
		a.logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	opts := append([]noteservice.Option{
		noteservice.WithLogger(a.logger),
		noteservice.WithOrdering(ordering),
		noteservice.WithDefaultScope(scope),
		noteservice.WithFetchTimeout(cfg.Search.FetchTimeout),
	}, extra...)

	return &components{
		store: store,
		db:    db,
		svc:   noteservice.NewService(store, db, opts...),
	}, nil
}

// newRouter mounts health, metrics and the authenticated API.
func newRouter(cfg *Config, c *components, broker *sse.Broker) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware())

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		writeStatus(w, http.StatusOK, "ok")
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if err := c.db.Ping(r.Context()); err != nil {
			writeStatus(w, http.StatusServiceUnavailable, "unavailable")
			return
		}
		writeStatus(w, http.StatusOK, "ok")
	})
	r.Handle("/metrics", promhttp.Handler())

	var events http.Handler
	if broker != nil {
		events = broker
	}
	r.Mount("/api", api.NewRouter(c.svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, events))
	return r
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = fmt.Fprintf(w, `{"status":%q}`, status)
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts, os.Stdout)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.logger

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()),
		slog.Bool("watch", cfg.Vault.Watch))

	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	c, err := app.open(ctx, noteservice.WithPublisher(broker))
	if err != nil {
		return err
	}
	defer c.Close()

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           newRouter(cfg, c, broker),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	if cfg.Vault.Watch {
		g.Go(func() error {
			if err := corpus.Watch(gCtx, c.db, c.store, cfg.Vault.Path, logger, c.svc.CorpusChanged); err != nil {
				return fmt.Errorf("watcher: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		return c.svc.RunSweeper(gCtx, cfg.Search.SessionTTL, cfg.Search.SweepInterval)
	})

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

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		// Unblock the watcher and sweeper after a signal.
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools on stdio. Logs go to stderr.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts, os.Stderr)
	if err != nil {
		return err
	}
	c, err := app.open(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	srv := mcpserver.New(c.svc, app.version)
	app.logger.Info("mcp: serving on stdio", slog.String("vault_path", app.config.Vault.Path))
	return srv.ServeStdio()
}

// Search runs q once and writes the grouped result to out.
func Search(ctx context.Context, out io.Writer, q noteservice.Query, opts ...Option) error {
	app, err := newApplication(opts, os.Stderr)
	if err != nil {
		return err
	}
	c, err := app.open(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	snap, err := c.svc.Search(ctx, q)
	if err != nil {
		return err
	}
	if snap.Len() == 0 {
		_, err := fmt.Fprintln(out, "no matching notes")
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, sec := range snap.Sections {
		fmt.Fprintf(tw, "%s\n", sec.Name)
		for _, n := range sec.Notes {
			fmt.Fprintf(tw, "  %s\t%s\t%s\n", n.ID, n.Title(), strings.Join(n.TagList(), ","))
		}
	}
	return tw.Flush()
}
