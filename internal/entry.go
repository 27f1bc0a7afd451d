// Package internal provides application initialization and the
// long-running watch and MCP serve modes.
package internal

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/arpa73/AIKnowSys-sub002/internal/index"
	"github.com/arpa73/AIKnowSys-sub002/internal/knowledge"
	"github.com/arpa73/AIKnowSys-sub002/internal/mcpserver"
	"github.com/arpa73/AIKnowSys-sub002/internal/search"
	"github.com/arpa73/AIKnowSys-sub002/internal/storage"
)

// App bundles the wired components behind every CLI command.
type App struct {
	Config  *Config
	Logger  *slog.Logger
	Store   *storage.FS
	Index   *index.Store
	Search  *search.DB // nil when search is disabled
	Service *knowledge.Service
}

// NewApp builds the application from options. Logs go to stderr as JSON so
// command output and the MCP stdio transport keep stdout to themselves.
func NewApp(opts ...Option) (*App, error) {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg := app.config

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	store, err := storage.NewFS(cfg.Knowledge.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	idxStore := index.NewStore(cfg.Index.Path, logger)

	var searchDB *search.DB
	if cfg.Search.Enabled {
		searchDB, err = search.Open(cfg.Search.Path)
		if err != nil {
			return nil, fmt.Errorf("init search: %w", err)
		}
	}

	svcOpts := []knowledge.Option{}
	if searchDB != nil {
		svcOpts = append(svcOpts, knowledge.WithSearch(searchDB))
	}
	svc := knowledge.NewService(store, idxStore, logger, svcOpts...)

	return &App{
		Config:  cfg,
		Logger:  logger,
		Store:   store,
		Index:   idxStore,
		Search:  searchDB,
		Service: svc,
	}, nil
}

// Close releases held resources.
func (a *App) Close() error {
	if a.Search != nil {
		return a.Search.Close()
	}
	return nil
}

// RunWatch keeps the index fresh continuously: an fsnotify watcher over
// the knowledge root rebuilds the index (and search mirror) on changes,
// until a shutdown signal or context cancellation.
func (a *App) RunWatch(ctx context.Context) error {
	a.Logger.Info("watch mode starting",
		slog.String("knowledge_path", a.Store.Root()),
		slog.String("index_path", a.Index.Path()))

	// Bring everything up to date before watching.
	if _, err := a.Service.Rebuild(""); err != nil {
		a.Logger.Warn("initial rebuild failed", slog.String("error", err.Error()))
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		onRebuild := func(ix *index.Index) {
			if a.Search != nil {
				if err := search.Sync(a.Search, a.Store, ix, a.Logger); err != nil {
					a.Logger.Warn("search sync failed", slog.String("error", err.Error()))
				}
			}
		}
		return index.Watch(gCtx, a.Index, a.Store, a.Store.Root(), a.Logger, onRebuild)
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			a.Logger.Info("received shutdown signal", slog.String("signal", sig.String()))
			return context.Canceled
		case <-gCtx.Done():
			return nil
		}
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		return err
	}
	a.Logger.Info("watch mode stopped")
	return nil
}

// RunMCP serves the tool-call adapter over stdio.
func (a *App) RunMCP(ctx context.Context) error {
	srv := mcpserver.New(a.Service)
	a.Logger.Info("mcp server starting (stdio)")
	return srv.ServeStdio()
}
