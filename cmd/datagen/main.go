// Command datagen simulates e-commerce customer behavior and streams the
// resulting events to a Tinybird ingestion endpoint, periodically persisting
// aggregate totals to Postgres.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // database/sql driver for the sqlx backend

	"github.com/ecommsim/datagen/internal/aggregate"
	"github.com/ecommsim/datagen/internal/catalog"
	"github.com/ecommsim/datagen/internal/config"
	"github.com/ecommsim/datagen/internal/generator"
	"github.com/ecommsim/datagen/internal/sink"
	"github.com/ecommsim/datagen/internal/state"
	"github.com/ecommsim/datagen/internal/store"
)

const shutdownFlushTimeout = 10 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("generator failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	settingsPath := flag.String("config", "settings.yaml", "path to the settings file")
	flag.Parse()

	cfg, err := config.Load(*settingsPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := initializeStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := st.Bootstrap(ctx); err != nil {
		return fmt.Errorf("bootstrapping schema: %w", err)
	}

	cat, err := loadCatalog(ctx, cfg, st)
	if err != nil {
		return err
	}

	table := state.NewTable(cfg.NumCustomers)

	weights, err := generator.NewWeights(cfg.EventTypeWeights)
	if err != nil {
		return fmt.Errorf("building action weights: %w", err)
	}

	tinybird, err := buildSink(cfg, logger)
	if err != nil {
		return fmt.Errorf("building delivery sink: %w", err)
	}

	pool, err := generator.NewPool(generator.PoolConfig{
		Workers:             cfg.Workers,
		DuplicatePercentage: cfg.DuplicateDataPercentage,
		Pacing:              generator.Pacing{Min: cfg.PacingMin(), Max: cfg.PacingMax()},
		MaxEventsPerSecond:  cfg.MaxEventsPerSecond,
	}, table, cat, weights, tinybird, logger)
	if err != nil {
		return fmt.Errorf("building worker pool: %w", err)
	}

	logger.Info("generator starting",
		"customers", cfg.NumCustomers,
		"products", cat.Len(),
		"workers", cfg.Workers,
		"duplicate_percentage", cfg.DuplicateDataPercentage,
		"db_update_interval", cfg.DBUpdateInterval(),
		"persist_totals", cfg.PersistTotals())

	var aggregator *aggregate.Aggregator
	if cfg.PersistTotals() {
		aggregator, err = aggregate.New(table, cat, st, cfg.DBUpdateInterval(), logger)
		if err != nil {
			return fmt.Errorf("building aggregator: %w", err)
		}
		go aggregator.Run(ctx)
	} else {
		logger.Info("totals persistence disabled, events are delivered only")
	}

	pool.Run(ctx)

	if aggregator != nil {
		// One final flush so the last interval's totals are not lost on shutdown.
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownFlushTimeout)
		defer cancel()
		if err := aggregator.Flush(flushCtx); err != nil {
			logger.Error("final aggregate flush failed", "error", err)
		}
	}

	logger.Info("generator stopped")

	return nil
}

// initializeStore connects to Postgres with the configured driver backend.
func initializeStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (*store.Store, func(), error) {
	switch cfg.DBDriver {
	case config.DriverSQLX:
		db, err := sqlx.ConnectContext(ctx, "postgres", cfg.Secrets.PostgresDSN())
		if err != nil {
			return nil, nil, fmt.Errorf("connecting via sqlx: %w", err)
		}

		st, err := store.NewFromSQLX(db, store.WithLogger(logger))
		if err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("creating store: %w", err)
		}

		return st, func() { _ = db.Close() }, nil

	default:
		poolConfig, err := config.PGXPoolConfig(cfg.Secrets)
		if err != nil {
			return nil, nil, err
		}

		pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err != nil {
			return nil, nil, fmt.Errorf("creating pgx pool: %w", err)
		}

		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("connecting to database: %w", err)
		}

		st, err := store.NewFromPGXPool(pool, store.WithLogger(logger))
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("creating store: %w", err)
		}

		return st, pool.Close, nil
	}
}

// loadCatalog reads the products from the database, seeding generated ones
// first when the table is empty and seeding is configured. An empty catalog is
// fatal: every generation cycle draws from it.
func loadCatalog(ctx context.Context, cfg config.Config, st *store.Store) (*catalog.Catalog, error) {
	products, err := st.LoadProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}

	if len(products) == 0 && cfg.SeedProducts > 0 {
		if products, err = st.SeedProducts(ctx, cfg.SeedProducts); err != nil {
			return nil, fmt.Errorf("seeding catalog: %w", err)
		}
	}

	cat, err := catalog.New(products)
	if err != nil {
		return nil, fmt.Errorf("building catalog: %w", err)
	}

	return cat, nil
}

func buildSink(cfg config.Config, logger *slog.Logger) (*sink.Tinybird, error) {
	options := []sink.Option{sink.WithLogger(logger)}
	if cfg.Secrets.TinybirdSecondaryToken != "" {
		options = append(options, sink.WithSecondaryToken(cfg.Secrets.TinybirdSecondaryToken))
	}

	return sink.NewTinybird(cfg.TinybirdAPIEndpoint, cfg.Secrets.TinybirdToken, options...)
}
