package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/iammrherb/authensi-smart-sub008/internal/cache"
	"github.com/iammrherb/authensi-smart-sub008/internal/catalog"
	"github.com/iammrherb/authensi-smart-sub008/internal/scoping"
	"github.com/iammrherb/authensi-smart-sub008/internal/services/health"
	"github.com/iammrherb/authensi-smart-sub008/internal/shared/config"
	"github.com/iammrherb/authensi-smart-sub008/internal/shared/server"
	"github.com/iammrherb/authensi-smart-sub008/internal/shared/storage/db"
	"github.com/iammrherb/authensi-smart-sub008/internal/shared/storage/object"
	localstore "github.com/iammrherb/authensi-smart-sub008/internal/shared/storage/object/local"
	s3store "github.com/iammrherb/authensi-smart-sub008/internal/shared/storage/object/s3"
	"github.com/iammrherb/authensi-smart-sub008/internal/shared/telemetry"
)

// App holds shared dependencies and the assembled router.
type App struct {
	Config       config.Config
	Router       *gin.Engine
	DB           *sql.DB
	Store        object.ObjectStore
	Redis        *cache.Redis
	Cache        cache.DecisionCache
	Holder       *catalog.Holder
	Reloader     *catalog.Reloader
	Revisions    catalog.RevisionRepo
	Service      *scoping.Service
	Handler      *scoping.Handler
	AdminHandler *scoping.AdminHandler
	Health       *health.Service
}

// Build prepares dependencies and wires routes. It does not load the catalog;
// callers run Reloader.ReloadNow before serving.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Holder: catalog.NewHolder(),
		Health: health.NewService(),
	}

	if sqlDB != nil {
		app.Revisions = &catalog.PGRevisionRepo{DB: sqlDB}
	} else {
		app.Revisions = catalog.NewMemoryRevisionRepo()
	}

	if cfg.CatalogSource == config.CatalogSourceObject {
		store, err := buildStore(ctx, cfg)
		if err != nil {
			app.Close()
			return nil, err
		}
		app.Store = store
	}

	source, err := buildSource(cfg, app)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Reloader = &catalog.Reloader{
		Source:   source,
		Holder:   app.Holder,
		Interval: cfg.CatalogReloadInterval,
	}

	if err := buildCache(ctx, cfg, app); err != nil {
		app.Close()
		return nil, err
	}

	app.Service = &scoping.Service{
		Catalogs: scoping.FromHolder(app.Holder),
		Cache:    app.Cache,
		Budget:   cfg.EvalBudget,
	}
	app.Handler = scoping.NewHandler(app.Service, app.Holder)
	app.AdminHandler = &scoping.AdminHandler{Reloader: app.Reloader, Revisions: app.Revisions}
	registerChecks(app)

	app.Router = server.NewRouter(server.RouterDeps{
		Config:  cfg,
		Health:  app.Health,
		Scoping: app.Handler,
		Admin:   app.AdminHandler,
	})
	return app, nil
}

// Close releases the database and cache connections.
func (a *App) Close() error {
	var errs []error
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if cfg.CatalogSource == config.CatalogSourceRevisions && !isDevLike(cfg.Env) {
			return nil, fmt.Errorf("DATABASE_URL is required for CATALOG_SOURCE=%s", cfg.CatalogSource)
		}
		telemetry.Info("bootstrap.memory_revisions", map[string]any{"reason": "DATABASE_URL empty"})
		return nil, nil
	}

	opts := db.OptionsFromEnv(db.DefaultServerOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.database_unavailable", map[string]any{"error": err})
			return nil, nil
		}
		return nil, err
	}
	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildSource(cfg config.Config, app *App) (catalog.Source, error) {
	switch cfg.CatalogSource {
	case config.CatalogSourceFile, "":
		if strings.TrimSpace(cfg.CatalogPath) == "" {
			return nil, errors.New("CATALOG_PATH is required for CATALOG_SOURCE=file")
		}
		return catalog.FileSource{Path: cfg.CatalogPath}, nil
	case config.CatalogSourceObject:
		return &catalog.ObjectSource{Store: app.Store, Key: cfg.CatalogObjectKey}, nil
	case config.CatalogSourceRevisions:
		return catalog.RevisionSource{Repo: app.Revisions}, nil
	default:
		return nil, fmt.Errorf("unknown CATALOG_SOURCE %q", cfg.CatalogSource)
	}
}

func buildCache(ctx context.Context, cfg config.Config, app *App) error {
	app.Cache = cache.Nop{}
	if strings.TrimSpace(cfg.RedisURL) == "" {
		return nil
	}
	r, err := cache.NewRedis(cfg.RedisURL, cache.WithTTL(cfg.CacheTTL))
	if err != nil {
		return err
	}
	if err := r.Ping(ctx); err != nil {
		_ = r.Close()
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.cache_unavailable", map[string]any{"error": err})
			return nil
		}
		return fmt.Errorf("redis ping: %w", err)
	}
	app.Redis = r
	app.Cache = r
	return nil
}

func registerChecks(app *App) {
	app.Health.Register("catalog", func(context.Context) error {
		_, err := app.Holder.Catalog()
		return err
	})
	if app.DB != nil {
		app.Health.Register("database", func(ctx context.Context) error {
			return db.Ping(ctx, app.DB, 0)
		})
	}
	if app.Redis != nil {
		app.Health.Register("cache", app.Redis.Ping)
	}
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local", "test":
		return true
	default:
		return false
	}
}
