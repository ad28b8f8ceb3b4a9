package cmd

import (
	"context"
	"fmt"

	"crm-bridge/core/config"
	"crm-bridge/core/database"
	"crm-bridge/core/lock"
	"crm-bridge/core/logger"
	"crm-bridge/core/mapper"
	"crm-bridge/core/models"
	"crm-bridge/core/orchestrator"
	"crm-bridge/core/reconcile"
	"crm-bridge/core/remote"
	"crm-bridge/core/storage"
	"crm-bridge/core/store"
	"crm-bridge/feature/crm"
	"crm-bridge/feature/projectsystem"

	"github.com/redis/go-redis/v9"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// components holds the parts shared by the server and the CLI commands.
type components struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *gorm.DB
	store  *store.Store

	mapper  *mapper.Mapper
	project *projectsystem.Transport
	crm     *crm.Transport
	archive *storage.Archive
	redis   *redis.Client
}

// setup selects what bootstrap builds.
type setup struct {
	// Remotes loads the mapping and builds both transports.
	Remotes bool
	// SkipMigrate leaves the state store schema untouched.
	SkipMigrate bool
}

// bootstrap loads configuration and opens the state store.
func bootstrap(ctx context.Context, opts setup) (*components, error) {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logg, err := logger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to state store: %w", err)
	}
	st := store.New(db)
	if !opts.SkipMigrate {
		if err := st.Migrate(ctx); err != nil {
			return nil, err
		}
	}

	rt := &components{cfg: cfg, logger: logg, db: db, store: st}

	if cfg.Storage.Enabled {
		client, err := storage.NewClient(cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage client: %w", err)
		}
		rt.archive = storage.NewArchive(client, cfg.Storage)
	}

	if opts.Remotes {
		mapping, err := mapper.LoadMapping(cfg.Sync.MappingFile)
		if err != nil {
			return nil, err
		}
		if rt.mapper, err = mapper.New(mapping); err != nil {
			return nil, err
		}
		rt.project = projectsystem.New(cfg.Project)
		rt.crm = crm.New(cfg.CRM, rt.mapper)
	}

	return rt, nil
}

// newOrchestrator builds the reconciliation engine and the cycle orchestrator.
func (rt *components) newOrchestrator(metrics *orchestrator.Metrics) (*orchestrator.Orchestrator, error) {
	if rt.mapper == nil {
		return nil, fmt.Errorf("remotes are not configured")
	}
	orchCfg, err := rt.cfg.Sync.Orchestrator()
	if err != nil {
		return nil, err
	}

	projectClient := remote.NewClient(rt.project, rt.cfg.Project.Limits, rt.logger)
	crmClient := remote.NewClient(rt.crm, rt.cfg.CRM.Limits, rt.logger)
	engine := reconcile.NewEngine(projectClient, crmClient, rt.mapper, rt.store, rt.logger, rt.cfg.Sync.Engine())

	opts := []orchestrator.Option{orchestrator.WithLogger(rt.logger)}
	if metrics != nil {
		opts = append(opts, orchestrator.WithMetrics(metrics))
	}
	if rt.cfg.Redis.Enabled() {
		rt.redis = redis.NewClient(&redis.Options{
			Addr:     rt.cfg.Redis.Addr,
			Password: rt.cfg.Redis.Password,
			DB:       rt.cfg.Redis.DB,
		})
		opts = append(opts, orchestrator.WithLocker(lock.NewRedis(rt.redis, rt.cfg.Redis.Key, rt.cfg.Redis.TTL, rt.logger)))
		rt.logger.Info("Distributed cycle lock enabled", zap.String("addr", rt.cfg.Redis.Addr))
	}

	return orchestrator.New(engine, rt.store, orchCfg, opts...), nil
}

// inspectors returns the schema inspectors of both remotes.
func (rt *components) inspectors() map[models.System]remote.SchemaInspector {
	if rt.mapper == nil {
		return nil
	}
	return map[models.System]remote.SchemaInspector{
		models.SystemProject: rt.project,
		models.SystemCRM:     rt.crm,
	}
}

// Close releases the database and redis connections.
func (rt *components) Close() error {
	var errs error
	if rt.redis != nil {
		errs = multierr.Append(errs, rt.redis.Close())
	}
	if sqlDB, err := rt.db.DB(); err == nil {
		errs = multierr.Append(errs, sqlDB.Close())
	}
	_ = rt.logger.Sync()
	return errs
}
