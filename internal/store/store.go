// Package store persists generator data in Postgres: the product catalog is
// read (and optionally seeded) from product_info, aggregate totals are
// appended to ecomm_totals and stock counts are written back to product_info.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect import
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/ecommsim/datagen/internal/catalog"
)

const (
	productTableName = "product_info"
	totalsTableName  = "ecomm_totals"
	dialectPostgres  = "postgres"
)

const createTotalsTableDDL = `
CREATE TABLE IF NOT EXISTS ecomm_totals (
	timestamp TIMESTAMP,
	total_orders INT,
	total_returns INT,
	total_carts INT,
	total_uncarts INT,
	total_views INT
)`

const createProductTableDDL = `
CREATE TABLE IF NOT EXISTS product_info (
	product_id TEXT PRIMARY KEY,
	brand TEXT NOT NULL,
	model TEXT NOT NULL,
	price NUMERIC(10,2) NOT NULL,
	number_on_hand INT NOT NULL
)`

// Totals is one append-only aggregate row, written once per aggregation cycle
// and never updated in place.
type Totals struct {
	Timestamp    time.Time
	TotalOrders  int64
	TotalReturns int64
	TotalCarts   int64
	TotalUncarts int64
	TotalViews   int64
}

// Store wraps a database adapter with the generator's persistence operations.
type Store struct {
	db      DBAdapter
	dialect goqu.DialectWrapper
	log     *slog.Logger
}

// Option configures a Store.
type Option func(*Store) error

// WithLogger sets the logger for query logging.
func WithLogger(log *slog.Logger) Option {
	return func(s *Store) error {
		s.log = log
		return nil
	}
}

// NewFromPGXPool creates a Store backed by a pgx connection pool.
func NewFromPGXPool(pool *pgxpool.Pool, options ...Option) (*Store, error) {
	if pool == nil {
		return nil, ErrNilDatabaseConnection
	}
	return newStore(&pgxAdapter{pool: pool}, options...)
}

// NewFromSQLX creates a Store backed by a sqlx database handle.
func NewFromSQLX(db *sqlx.DB, options ...Option) (*Store, error) {
	if db == nil {
		return nil, ErrNilDatabaseConnection
	}
	return newStore(&sqlxAdapter{db: db}, options...)
}

func newStore(db DBAdapter, options ...Option) (*Store, error) {
	store := &Store{
		db:      db,
		dialect: goqu.Dialect(dialectPostgres),
		log:     slog.Default(),
	}

	for _, option := range options {
		if err := option(store); err != nil {
			return nil, err
		}
	}

	return store, nil
}

// Bootstrap creates the product_info and ecomm_totals tables if they do not exist.
func (s *Store) Bootstrap(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, createProductTableDDL); err != nil {
		return fmt.Errorf("creating %s: %w", productTableName, err)
	}

	if _, err := s.db.Exec(ctx, createTotalsTableDDL); err != nil {
		return fmt.Errorf("creating %s: %w", totalsTableName, err)
	}

	return nil
}

// LoadProducts reads the whole catalog from product_info.
func (s *Store) LoadProducts(ctx context.Context) ([]catalog.Product, error) {
	query, _, err := s.dialect.
		From(productTableName).
		Select("product_id", "brand", "model", "price", "number_on_hand").
		Order(goqu.C("product_id").Asc()).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("building product select: %w", err)
	}

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying products: %w", err)
	}
	defer s.closeRows(rows)

	var products []catalog.Product
	for rows.Next() {
		var product catalog.Product
		var price decimal.Decimal

		if err := rows.Scan(&product.ID, &product.Brand, &product.Model, &price, &product.StockCount); err != nil {
			return nil, fmt.Errorf("scanning product row: %w", err)
		}

		product.Price = price
		products = append(products, product)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating product rows: %w", err)
	}

	s.log.Info("products loaded from database", "count", len(products))

	return products, nil
}

// SeedProducts inserts n generated products so a fresh database is usable
// without manual catalog setup. Product ids follow product_<i>.
func (s *Store) SeedProducts(ctx context.Context, n int) ([]catalog.Product, error) {
	products := make([]catalog.Product, 0, n)
	records := make([]goqu.Record, 0, n)

	for i := 0; i < n; i++ {
		product := catalog.Product{
			ID:         fmt.Sprintf("product_%d", i),
			Brand:      gofakeit.Company(),
			Model:      gofakeit.ProductName(),
			Price:      decimal.NewFromFloat(gofakeit.Price(5, 500)).Round(2),
			StockCount: gofakeit.Number(10, 500),
		}

		products = append(products, product)
		records = append(records, goqu.Record{
			"product_id":     product.ID,
			"brand":          product.Brand,
			"model":          product.Model,
			"price":          product.Price.String(),
			"number_on_hand": product.StockCount,
		})
	}

	query, _, err := s.dialect.Insert(productTableName).Rows(records).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("building product insert: %w", err)
	}

	if _, err := s.db.Exec(ctx, query); err != nil {
		return nil, fmt.Errorf("seeding products: %w", err)
	}

	s.log.Info("seeded generated products", "count", len(products))

	return products, nil
}

// InsertTotals appends one aggregate row to ecomm_totals.
func (s *Store) InsertTotals(ctx context.Context, totals Totals) error {
	query, _, err := s.dialect.
		Insert(totalsTableName).
		Rows(goqu.Record{
			"timestamp":     totals.Timestamp.UTC().Format("2006-01-02 15:04:05.000000"),
			"total_orders":  totals.TotalOrders,
			"total_returns": totals.TotalReturns,
			"total_carts":   totals.TotalCarts,
			"total_uncarts": totals.TotalUncarts,
			"total_views":   totals.TotalViews,
		}).
		ToSQL()
	if err != nil {
		return fmt.Errorf("building totals insert: %w", err)
	}

	if _, err := s.db.Exec(ctx, query); err != nil {
		return fmt.Errorf("inserting totals: %w", err)
	}

	return nil
}

// UpdateStock writes each product's current stock count back to product_info.
func (s *Store) UpdateStock(ctx context.Context, products []catalog.Product) error {
	for _, product := range products {
		query, _, err := s.dialect.
			Update(productTableName).
			Set(goqu.Record{"number_on_hand": product.StockCount}).
			Where(goqu.C("product_id").Eq(product.ID)).
			ToSQL()
		if err != nil {
			return fmt.Errorf("building stock update for %s: %w", product.ID, err)
		}

		if _, err := s.db.Exec(ctx, query); err != nil {
			return fmt.Errorf("updating stock for %s: %w", product.ID, err)
		}
	}

	return nil
}

func (s *Store) closeRows(rows DBRows) {
	if err := rows.Close(); err != nil {
		s.log.Warn("failed to close database rows", "error", err)
	}
}
