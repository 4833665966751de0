package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
)

// ErrNilDatabaseConnection is returned when a store is created without a connection.
var ErrNilDatabaseConnection = errors.New("database connection must not be nil")

// DBAdapter abstracts the database driver behind the store. Queries are fully
// interpolated SQL strings, so adapters do not deal with bind parameters.
type DBAdapter interface {
	Query(ctx context.Context, query string) (DBRows, error)
	Exec(ctx context.Context, query string) (int64, error)
}

// DBRows abstracts query result iteration across drivers.
type DBRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// pgxAdapter implements DBAdapter for a pgx connection pool.
type pgxAdapter struct {
	pool *pgxpool.Pool
}

func (a *pgxAdapter) Query(ctx context.Context, query string) (DBRows, error) {
	rows, err := a.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	return &pgxRows{rows: rows}, nil
}

func (a *pgxAdapter) Exec(ctx context.Context, query string) (int64, error) {
	tag, err := a.pool.Exec(ctx, query)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// pgxRows wraps pgx.Rows to implement DBRows.
type pgxRows struct {
	rows pgx.Rows
}

func (r *pgxRows) Next() bool {
	return r.rows.Next()
}

func (r *pgxRows) Scan(dest ...any) error {
	return r.rows.Scan(dest...)
}

func (r *pgxRows) Err() error {
	return r.rows.Err()
}

func (r *pgxRows) Close() error {
	r.rows.Close()
	return nil
}

// sqlxAdapter implements DBAdapter for a sqlx database handle.
type sqlxAdapter struct {
	db *sqlx.DB
}

func (a *sqlxAdapter) Query(ctx context.Context, query string) (DBRows, error) {
	rows, err := a.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	return &sqlRows{rows: rows}, nil
}

func (a *sqlxAdapter) Exec(ctx context.Context, query string) (int64, error) {
	result, err := a.db.ExecContext(ctx, query)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// sqlRows wraps *sql.Rows to implement DBRows.
type sqlRows struct {
	rows *sql.Rows
}

func (r *sqlRows) Next() bool {
	return r.rows.Next()
}

func (r *sqlRows) Scan(dest ...any) error {
	return r.rows.Scan(dest...)
}

func (r *sqlRows) Err() error {
	return r.rows.Err()
}

func (r *sqlRows) Close() error {
	return r.rows.Close()
}
