// Package database is a generic persistence engine: entities describe their
// columns through static field descriptors and the engine derives DDL, runs
// parametrized CRUD against a pooled connection and scans rows back into records.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tablebook/internal/metrics"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver for postgres
	_ "github.com/mattn/go-sqlite3"    // sqlite3 driver
	"github.com/rs/zerolog"
)

// Engine owns the connection pool. Each operation runs in its own implicit
// transaction; the engine offers no transaction spanning several operations.
type Engine struct {
	db      *sql.DB
	dialect Dialect
	cfg     Config
	logger  zerolog.Logger
}

// Open establishes the pool and verifies it with a ping.
func Open(ctx context.Context, cfg Config, logger *zerolog.Logger) (*Engine, error) {
	cfg = cfg.WithDefaults()

	dialect, err := DialectFor(cfg.Driver)
	if err != nil {
		return nil, &ConnectionSetupError{Driver: cfg.Driver, Err: err}
	}

	if _, ok := dialect.(sqliteDialect); ok && !strings.HasPrefix(cfg.Path, ":memory:") {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, &ConnectionSetupError{Driver: cfg.Driver, Err: fmt.Errorf("create database directory: %w", err)}
		}
	}

	dsn, err := cfg.DSN()
	if err != nil {
		return nil, &ConnectionSetupError{Driver: cfg.Driver, Err: err}
	}

	db, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, &ConnectionSetupError{Driver: cfg.Driver, Err: err}
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MinIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime())

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, &ConnectionSetupError{Driver: cfg.Driver, Err: err}
	}

	l := zerolog.Nop()
	if logger != nil {
		l = *logger
	}
	e := &Engine{
		db:      db,
		dialect: dialect,
		cfg:     cfg,
		logger:  l.With().Str("component", "database").Str("dialect", dialect.Name()).Logger(),
	}
	e.logger.Info().Int("max_open_conns", cfg.MaxOpenConns).Msg("Database pool initialized")
	return e, nil
}

func (e *Engine) Dialect() Dialect { return e.dialect }

// DB exposes the pool for maintenance tasks that cannot run inside a transaction.
func (e *Engine) DB() *sql.DB { return e.db }

func (e *Engine) Ping(ctx context.Context) error {
	return e.db.PingContext(ctx)
}

func (e *Engine) Close() error {
	return e.db.Close()
}

// withTx acquires a connection, runs fn in a transaction and commits, or rolls
// back on any failure. The connection is returned to the pool on every path.
func (e *Engine) withTx(ctx context.Context, op, table string, fn func(ctx context.Context, tx *sql.Tx) error) (err error) {
	start := time.Now()
	defer func() {
		metrics.ObserveStorageOp(op, table, time.Since(start), err)
		if err != nil {
			e.logger.Debug().Err(err).Str("op", op).Str("table", table).Msg("Storage operation failed")
		}
	}()

	if timeout := e.cfg.OpTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return persistErr(op, table, fmt.Errorf("begin tx: %w", err))
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(ctx, tx); err != nil {
		return persistErr(op, table, err)
	}
	if err = tx.Commit(); err != nil {
		return persistErr(op, table, fmt.Errorf("commit: %w", err))
	}
	return nil
}

// CreateTable derives DDL from the schema and executes it.
func (e *Engine) CreateTable(ctx context.Context, s *Schema, dropIfExists bool) error {
	ddl, err := DeriveSchema(e.dialect, s)
	if err != nil {
		return persistErr("create_table", s.Table, err)
	}
	return e.withTx(ctx, "create_table", s.Table, func(ctx context.Context, tx *sql.Tx) error {
		if dropIfExists {
			drop := "DROP TABLE IF EXISTS " + e.dialect.Quote(s.Table)
			if _, ok := e.dialect.(postgresDialect); ok {
				drop += " CASCADE"
			}
			if _, err := tx.ExecContext(ctx, drop); err != nil {
				return fmt.Errorf("drop: %w", err)
			}
		}
		if _, err := tx.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("exec %s: %w", trimSQL(ddl), err)
		}
		return nil
	})
}

// EnsureSchema creates tables in the given order. Drops run in reverse order
// first so that referencing tables go before the tables they reference.
func (e *Engine) EnsureSchema(ctx context.Context, dropIfExists bool, schemas ...*Schema) error {
	if dropIfExists {
		for i := len(schemas) - 1; i >= 0; i-- {
			s := schemas[i]
			err := e.withTx(ctx, "drop_table", s.Table, func(ctx context.Context, tx *sql.Tx) error {
				_, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+e.dialect.Quote(s.Table))
				return err
			})
			if err != nil {
				return err
			}
		}
	}
	for _, s := range schemas {
		if err := e.CreateTable(ctx, s, false); err != nil {
			return err
		}
	}
	e.logger.Info().Int("tables", len(schemas)).Bool("dropped", dropIfExists).Msg("Schema ensured")
	return nil
}

func trimSQL(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}
