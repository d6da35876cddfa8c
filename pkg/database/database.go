package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/leaveflow/lms-core/pkg/config"
	"github.com/leaveflow/lms-core/pkg/logger"
)

// DB wraps sqlx.DB with the context-pinned-transaction behavior the Unit of
// Work is built on: once a transaction is stashed in a context (WithTx),
// every DB method called with that context runs against it transparently.
type DB struct {
	*sqlx.DB
	logger *logger.Logger
}

// New creates a new database connection.
func New(cfg *config.DatabaseConfig, log *logger.Logger) (*DB, error) {
	db, err := sqlx.Connect("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return &DB{DB: db, logger: log}, nil
}

// NewWithDSN creates a new database connection with a DSN string directly,
// used by test fixtures that don't go through config.
func NewWithDSN(dsn string, log *logger.Logger) (*DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return &DB{DB: db, logger: log}, nil
}

// NewFromSQLX wraps an already-open *sqlx.DB, used by repository/engine
// unit tests to bind this module's context-pinned-transaction behavior to
// a sqlmock-backed connection instead of a real Postgres one.
func NewFromSQLX(db *sqlx.DB, log *logger.Logger) *DB {
	return &DB{DB: db, logger: log}
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.DB.Close()
}

// Health returns the health status of the database.
func (db *DB) Health(ctx context.Context) map[string]string {
	status := map[string]string{"status": "up"}

	ctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		status["status"] = "down"
		status["error"] = err.Error()
	}

	return status
}

type txKey struct{}

// BeginTx opens a transaction and returns both the raw *sqlx.Tx (for
// explicit Commit/Rollback by the Unit of Work) and a context that pins
// it — every subsequent GetContext/SelectContext/ExecContext call made
// with the returned context runs inside this transaction.
func (db *DB) BeginTx(ctx context.Context) (*sqlx.Tx, context.Context, error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return tx, context.WithValue(ctx, txKey{}, tx), nil
}

// Transaction runs fn inside a transaction, committing on success and
// rolling back on any error fn returns. Engines never call this directly —
// it exists for call sites (event consumers, scheduled jobs) that need a
// single-shot transaction without a full UnitOfWork scope.
func (db *DB) Transaction(ctx context.Context, fn func(context.Context) error) error {
	tx, txCtx, err := db.BeginTx(ctx)
	if err != nil {
		return err
	}

	if err := fn(txCtx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			db.logger.Error().Err(rbErr).Msg("failed to rollback transaction")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (db *DB) getTx(ctx context.Context) *sqlx.Tx {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return nil
}

// GetContext gets a single record, using the transaction pinned to ctx if present.
func (db *DB) GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	if tx := db.getTx(ctx); tx != nil {
		return tx.GetContext(ctx, dest, query, args...)
	}
	return db.DB.GetContext(ctx, dest, query, args...)
}

// SelectContext gets multiple records, using the transaction pinned to ctx if present.
func (db *DB) SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	if tx := db.getTx(ctx); tx != nil {
		return tx.SelectContext(ctx, dest, query, args...)
	}
	return db.DB.SelectContext(ctx, dest, query, args...)
}

// QueryRowxContext queries a single row, using the transaction pinned to ctx if present.
func (db *DB) QueryRowxContext(ctx context.Context, query string, args ...interface{}) *sqlx.Row {
	if tx := db.getTx(ctx); tx != nil {
		return tx.QueryRowxContext(ctx, query, args...)
	}
	return db.DB.QueryRowxContext(ctx, query, args...)
}

// QueryxContext executes a query, using the transaction pinned to ctx if present.
func (db *DB) QueryxContext(ctx context.Context, query string, args ...interface{}) (*sqlx.Rows, error) {
	if tx := db.getTx(ctx); tx != nil {
		return tx.QueryxContext(ctx, query, args...)
	}
	return db.DB.QueryxContext(ctx, query, args...)
}

// ExecContext executes a query, using the transaction pinned to ctx if present.
func (db *DB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	if tx := db.getTx(ctx); tx != nil {
		return tx.ExecContext(ctx, query, args...)
	}
	return db.DB.ExecContext(ctx, query, args...)
}
