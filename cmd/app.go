package cmd

import (
	"context"
	"fmt"

	"zotero-sync/core/cache"
	"zotero-sync/core/config"
	"zotero-sync/core/database"
	"zotero-sync/core/events"
	"zotero-sync/core/logger"
	"zotero-sync/core/metrics"
	"zotero-sync/core/storage"
	"zotero-sync/core/zotero"
	"zotero-sync/feature/library"
	"zotero-sync/feature/tags"

	"go.uber.org/zap"
)

// application is the wired engine shared by the server and the one-shot commands.
type application struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *metrics.Collector
	bus     *events.Bus
	client  *zotero.Client
	syncer  *library.Syncer
	library *library.Service
	tags    *tags.Service
	stops   []func()
}

// bootstrap wires the engine. The snapshot archive and the history database are
// only connected when enabled; their failures are fatal once asked for.
func bootstrap(ctx context.Context, cfg *config.Config, logg *zap.Logger) (*application, error) {
	app := &application{
		cfg:     cfg,
		logger:  logg,
		metrics: metrics.NewCollector("zotero_sync"),
		bus:     events.NewBus(logg),
	}

	app.client = zotero.NewClient(cfg.Zotero, logg).WithMetrics(app.metrics)
	store := cache.NewMemoryStore(cfg.Cache.TTL(), app.metrics)
	registry := library.NewCitekeyRegistry()

	app.syncer = library.NewSyncer(app.client, store, app.bus, logg).
		WithMetrics(app.metrics).
		WithLookup(registry.Has)
	app.library = library.NewService(app.syncer, store, registry, cfg.Zotero.APIKey, logg)

	if cfg.Cache.ArchiveSnapshots {
		client, err := storage.NewClient(cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage client: %w", err)
		}
		archive := storage.NewArchive(client, "snapshots", logg)
		if err := archive.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("failed to prepare snapshot bucket: %w", err)
		}
		snapshots := library.NewArchiveSnapshots(archive)
		app.syncer.WithSnapshots(snapshots)
		app.library.WithSnapshots(snapshots)
		logg.Info("Snapshot archive enabled", zap.String("bucket", cfg.Storage.Bucket))
	}

	if cfg.Database.Enabled {
		db, err := database.Connect(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to history database: %w", err)
		}
		repo := database.NewHistoryRepository(db)
		if err := repo.Migrate(); err != nil {
			return nil, fmt.Errorf("failed to migrate history table: %w", err)
		}
		app.library.WithHistory(repo)
		app.stops = append(app.stops, library.NewHistoryRecorder(repo, logg).Start(app.bus))
		logg.Info("Sync history enabled", zap.String("database", cfg.Database.Name))
	}

	mutator := tags.NewMutator(app.client, app.syncer, store, app.bus, logg).WithMetrics(app.metrics)
	app.tags = tags.NewService(app.client, store, mutator, cfg.Zotero.APIKey, logg)

	return app, nil
}

// resolveLibrary resolves a --library flag, falling back to the configured library.
func (a *application) resolveLibrary(flag string) (zotero.Library, error) {
	if flag == "" {
		flag = a.cfg.Zotero.Library
	}
	if flag == "" {
		return zotero.Library{}, fmt.Errorf("no library given: pass --library or set ZOTERO_LIBRARY")
	}
	return zotero.ParseLibrary(flag)
}

// Close stops background workers in reverse order.
func (a *application) Close() {
	for i := len(a.stops) - 1; i >= 0; i-- {
		a.stops[i]()
	}
}

// load reads configuration and builds a logger for the one-shot commands.
func load() (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	l, err := logger.New(&cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, l, nil
}
