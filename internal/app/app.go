package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/errgroup"

	"PadaOne/internal/config"
	"PadaOne/internal/infrastructure/cache"
	"PadaOne/internal/infrastructure/curation"
	"PadaOne/internal/infrastructure/pubmed"
	"PadaOne/internal/infrastructure/scheduler"
	"PadaOne/internal/infrastructure/storage"
	"PadaOne/internal/logging"
	"PadaOne/internal/metrics"
	"PadaOne/internal/ports"
	"PadaOne/internal/transport/httpapi"
	"PadaOne/internal/transport/web"
	"PadaOne/internal/usecase"
	"PadaOne/pkg/logger"
)

const (
	memoryCacheSize        = 10000
	limiterCleanupInterval = time.Minute
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg    config.Config
	logger *slog.Logger

	db      *sqlx.DB
	redis   *cache.RedisCache
	curator *usecase.Curator

	scheduler *usecase.Scheduler
	watcher   *curation.Watcher
	limiter   *httpapi.RateLimiter
	server    *http.Server
}

// New connects to the database and builds every component of the web service.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	db, err := openDatabase(ctx, cfg, baseLogger)
	if err != nil {
		return nil, err
	}
	a := &Application{cfg: cfg, logger: baseLogger, db: db}

	repo := storage.NewPostgresRepository(db)
	store, err := curation.NewFileStore(cfg.Curation.Dir)
	if err != nil {
		a.Close()
		return nil, err
	}
	m := metrics.New()

	catalog := usecase.NewCatalog(usecase.CatalogDeps{
		Papers:       repo,
		Curation:     store,
		PubMed:       a.pubMedFetcher(),
		Cache:        a.cache(ctx),
		CacheTTL:     cfg.Cache.TTL,
		DefaultLimit: cfg.Pagination.DefaultLimit,
		MaxLimit:     cfg.Pagination.MaxLimit,
		Metrics:      m,
		Logger:       baseLogger.With("component", "catalog"),
	})
	a.curator = usecase.NewCurator(usecase.CuratorDeps{
		Store:   store,
		Index:   repo,
		Papers:  repo,
		Metrics: m,
		Logger:  baseLogger.With("component", "curator"),
	})

	a.scheduler = usecase.NewScheduler(
		scheduler.NewCronScheduler(cfg.Scheduler.CronExpression, cfg.Scheduler.Location()),
		a.curator,
		baseLogger.With("component", "scheduler"),
	)
	if cfg.Curation.Watch {
		a.watcher = curation.NewWatcher(store.Dirs(), cfg.Curation.Debounce, func(ctx context.Context) {
			a.scheduler.Trigger(ctx, usecase.SyncSourceWatcher)
		}, baseLogger.With("component", "curation.watcher"))
	}
	if cfg.RateLimit.RequestsPerSecond > 0 {
		a.limiter = httpapi.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	}

	router := httpapi.NewRouter(httpapi.RouterDeps{
		Catalog: catalog,
		Curator: a.curator,
		Metrics: m,
		Limiter: a.limiter,
		Logger:  baseLogger.With("component", "http"),
	})
	pages, err := web.New(catalog, a.curator, baseLogger.With("component", "web"),
		web.WithPubMedEnrichment(cfg.PubMed.Enabled))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("load pages: %w", err)
	}
	pages.Register(router)

	a.server = &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		ErrorLog:          logger.Std(baseLogger, "http.server"),
	}
	return a, nil
}

func openDatabase(ctx context.Context, cfg config.Config, log *slog.Logger) (*sqlx.DB, error) {
	db, err := storage.Open(ctx, cfg.Database.DSN, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
	if err != nil {
		return nil, err
	}
	if cfg.Database.AutoMigrate {
		version, err := storage.Migrate(db.DB)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		log.Info("database migrated", "version", version)
	}
	return db, nil
}

// cache prefers Redis and falls back to an in-process map when it is not reachable.
func (a *Application) cache(ctx context.Context) ports.Cache {
	if a.cfg.Cache.RedisURL == "" {
		return cache.NewMemory(memoryCacheSize)
	}
	rc, err := cache.NewRedisCache(ctx, a.cfg.Cache.RedisURL, a.cfg.Cache.Prefix)
	if err != nil {
		a.logger.Warn("redis unavailable, using in-memory cache", "error", err)
		return cache.NewMemory(memoryCacheSize)
	}
	a.redis = rc
	return rc
}

func (a *Application) pubMedFetcher() ports.PubMedFetcher {
	if !a.cfg.PubMed.Enabled {
		return nil
	}
	return pubmed.NewClient(
		&http.Client{Timeout: a.cfg.PubMed.Timeout},
		a.cfg.PubMed.BaseURL,
		a.logger.With("component", "pubmed"),
	)
}

// Run serves HTTP and runs the background curation sync until ctx is cancelled
// or one of the components fails.
func (a *Application) Run(ctx context.Context) error {
	if err := a.scheduler.Start(ctx); err != nil {
		return err
	}
	a.logger.Info("curation sync scheduled", "cron", a.cfg.Scheduler.CronExpression, "tz", a.cfg.Scheduler.Location().String())

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("http server listening", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()

		stopErr := a.scheduler.Stop(shutdownCtx)
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return errors.Join(fmt.Errorf("shutdown http server: %w", err), stopErr)
		}
		return stopErr
	})

	if a.watcher != nil {
		g.Go(func() error {
			// Without the watcher the cron sync still picks up new flags.
			if err := a.watcher.Run(gctx); err != nil {
				a.logger.Error("curation watcher stopped", "error", err)
			}
			return nil
		})
	}
	if a.limiter != nil {
		g.Go(func() error {
			a.limiter.Run(gctx, limiterCleanupInterval)
			return nil
		})
	}

	g.Go(func() error {
		// Flags written while the service was down become visible to the browse filter.
		a.scheduler.Trigger(gctx, usecase.SyncSourceStartup)
		return nil
	})

	return g.Wait()
}

// Close releases the database and cache connections.
func (a *Application) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("close redis", "error", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("close database", "error", err)
		}
	}
}

// Migrate applies the embedded schema migrations and reports the resulting version.
func Migrate(ctx context.Context, cfg config.Config, log *slog.Logger) (uint, error) {
	db, err := storage.Open(ctx, cfg.Database.DSN, 1, 1)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	version, err := storage.Migrate(db.DB)
	if err != nil {
		return 0, err
	}
	log.Info("database migrated", "version", version)
	return version, nil
}

// SyncCuration mirrors the flag files into the database once.
func SyncCuration(ctx context.Context, cfg config.Config, log *slog.Logger) (int, error) {
	db, err := openDatabase(ctx, cfg, log)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	store, err := curation.NewFileStore(cfg.Curation.Dir)
	if err != nil {
		return 0, err
	}
	repo := storage.NewPostgresRepository(db)
	curator := usecase.NewCurator(usecase.CuratorDeps{
		Store:  store,
		Index:  repo,
		Papers: repo,
		Logger: log.With("component", "curator"),
	})
	return curator.Sync(ctx)
}
