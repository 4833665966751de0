// Package aggregate periodically derives summary counts from the customer
// state table and persists them.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ecommsim/datagen/internal/catalog"
	"github.com/ecommsim/datagen/internal/state"
	"github.com/ecommsim/datagen/internal/store"
)

// ErrInvalidInterval is returned when the aggregation interval is not positive.
var ErrInvalidInterval = errors.New("aggregation interval must be positive")

// Store is the persistence surface the aggregator needs.
type Store interface {
	InsertTotals(ctx context.Context, totals store.Totals) error
	UpdateStock(ctx context.Context, products []catalog.Product) error
}

// Aggregator scans the state table on a fixed period and writes one totals
// row plus the current product stock counts. Persistence failures are logged
// and swallowed; the next tick retries on schedule.
type Aggregator struct {
	table    *state.Table
	catalog  *catalog.Catalog
	store    Store
	interval time.Duration
	log      *slog.Logger
}

// New creates an aggregator ticking at the given interval.
func New(table *state.Table, cat *catalog.Catalog, st Store, interval time.Duration, log *slog.Logger) (*Aggregator, error) {
	if interval <= 0 {
		return nil, ErrInvalidInterval
	}

	return &Aggregator{
		table:    table,
		catalog:  cat,
		store:    st,
		interval: interval,
		log:      log,
	}, nil
}

// Run ticks until the context is canceled.
func (a *Aggregator) Run(ctx context.Context) {
	a.log.Info("aggregator started", "interval", a.interval)

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.log.Info("aggregator stopped")
			return
		case <-ticker.C:
			if err := a.Flush(ctx); err != nil {
				a.log.Error("aggregate persistence failed", "error", err)
			}
		}
	}
}

// Flush scans the state table once and persists the totals and the stock
// counts. It is also called once more during shutdown so the last interval is
// not lost.
func (a *Aggregator) Flush(ctx context.Context) error {
	snapshot := a.table.Snapshot()

	totals := store.Totals{
		Timestamp:    time.Now().UTC(),
		TotalOrders:  snapshot.TotalOrders,
		TotalReturns: snapshot.TotalReturns,
		TotalCarts:   snapshot.TotalCarts,
		TotalUncarts: snapshot.TotalUncarts,
		TotalViews:   snapshot.TotalViews,
	}

	if err := a.store.InsertTotals(ctx, totals); err != nil {
		return fmt.Errorf("persisting totals: %w", err)
	}

	if err := a.store.UpdateStock(ctx, a.catalog.Products()); err != nil {
		return fmt.Errorf("persisting stock counts: %w", err)
	}

	a.log.Info("aggregate totals persisted",
		"orders", totals.TotalOrders,
		"returns", totals.TotalReturns,
		"carts", totals.TotalCarts,
		"uncarts", totals.TotalUncarts,
		"views", totals.TotalViews)

	return nil
}
