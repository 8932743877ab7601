// Package container wires configuration, adapters, and services into a
// ready Engine. It is the only package that knows every concrete type.
package container

import (
	"context"
	"fmt"

	"datawhisperer/adapters/columnar"
	"datawhisperer/adapters/echarts"
	"datawhisperer/adapters/memory"
	"datawhisperer/adapters/postgres"
	"datawhisperer/adapters/rng"
	"datawhisperer/app"
	dquality "datawhisperer/domain/quality"
	"datawhisperer/internal"
	"datawhisperer/internal/config"
	"datawhisperer/internal/describe"
	"datawhisperer/internal/inference"
	"datawhisperer/internal/ingest"
	"datawhisperer/internal/ledger"
	"datawhisperer/internal/migration"
	"datawhisperer/internal/profiling"
	"datawhisperer/internal/quality"
	"datawhisperer/internal/registry"
	"datawhisperer/internal/viz"
	"datawhisperer/internal/wrangle"
	"datawhisperer/ports"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Container holds the wired dependency graph.
type Container struct {
	Config *config.Config
	Log    *internal.Logger

	// DB is nil when the engine runs on in-memory metadata stores.
	DB *sqlx.DB

	Registry *registry.Service
	Engine   *app.Engine
}

// New wires a container from configuration. With DATABASE_URL set the
// metadata stores run on Postgres (migrating first); otherwise
// everything metadata-shaped lives in memory while dataset payloads
// and chart artifacts stay durable on disk either way.
func New(ctx context.Context, cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	log := internal.NewDefaultLogger()

	var (
		db          *sqlx.DB
		datasetRepo ports.DatasetRepository
		runRepo     ports.RunRepository
		prefRepo    ports.PreferenceRepository
	)
	if cfg.Database.URL != "" {
		var err error
		db, err = sqlx.Open("postgres", cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("database connection test failed: %w", err)
		}
		if err := migration.NewRunner().Run(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
		datasetRepo = postgres.NewDatasetRepository(db)
		runRepo = postgres.NewRunRepository(db)
		prefRepo = postgres.NewPreferenceRepository(db)
		log.Info("metadata store: postgres")
	} else {
		datasetRepo = memory.NewDatasetRepository()
		runRepo = memory.NewRunRepository()
		prefRepo = memory.NewPreferenceRepository()
		log.Info("metadata store: in-memory (set DATABASE_URL for durability)")
	}

	reg := registry.NewService(datasetRepo, columnar.NewLocalStore(cfg.Paths.DataDir), log)

	engine := app.NewEngine(app.Deps{
		Registry:     reg,
		Ingest:       ingest.NewService(reg, log),
		Profiler:     profiling.NewProfiler(),
		Scorer:       quality.NewScorer(dquality.DefaultWeights()),
		Describe:     describe.NewService(),
		Inference:    inference.NewService(rng.NewSource(cfg.Analysis.Seed)),
		Wrangle:      wrangle.NewService(reg, log),
		Viz:          viz.NewService(reg, echarts.NewRenderer(cfg.Paths.PlotsDir), cfg.Paths.PlotsDir, log),
		Ledger:       ledger.NewService(runRepo, log),
		Prefs:        prefRepo,
		Log:          log,
		DefaultAlpha: cfg.Analysis.DefaultAlpha,
	})

	return &Container{
		Config:   cfg,
		Log:      log,
		DB:       db,
		Registry: reg,
		Engine:   engine,
	}, nil
}

// Shutdown releases held resources.
func (c *Container) Shutdown() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
