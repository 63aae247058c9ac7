package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
)

/* PoolConfig sizes the connection pool */
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	AcquireTimeout  time.Duration
}

/* Open opens the pool and verifies one connection */
func Open(ctx context.Context, dsn string, pool PoolConfig) (*sqlx.DB, error) {
	conn, err := sqlx.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(pool.MaxOpenConns)
	conn.SetMaxIdleConns(pool.MaxIdleConns)
	conn.SetConnMaxLifetime(pool.ConnMaxLifetime)
	conn.SetConnMaxIdleTime(pool.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return conn, nil
}

/* queryer is what both a pooled connection and a transaction provide */
type queryer interface {
	sqlx.QueryerContext
	sqlx.ExecerContext
}

var (
	_ queryer = (*sqlx.Conn)(nil)
	_ queryer = (*sqlx.Tx)(nil)
	_ Store   = (*Queries)(nil)
)

/* Queries is the Postgres-backed Store */
type Queries struct {
	db             *sqlx.DB
	tx             *sqlx.Tx
	acquireTimeout time.Duration
}

/* NewQueries wraps a pool; acquireTimeout bounds the wait for a free connection */
func NewQueries(db *sqlx.DB, acquireTimeout time.Duration) *Queries {
	return &Queries{db: db, acquireTimeout: acquireTimeout}
}

/* GetDB returns the underlying pool */
func (q *Queries) GetDB() *sqlx.DB {
	return q.db
}

func (q *Queries) acquire(ctx context.Context) (*sqlx.Conn, error) {
	acquireCtx := ctx
	if q.acquireTimeout > 0 {
		var cancel context.CancelFunc
		acquireCtx, cancel = context.WithTimeout(ctx, q.acquireTimeout)
		defer cancel()
	}
	conn, err := q.db.Connx(acquireCtx)
	if err != nil {
		return nil, fmt.Errorf("%w: acquire connection: %w", ErrUnavailable, err)
	}
	return conn, nil
}

/* run executes fn on the open transaction, or on a freshly acquired connection */
func (q *Queries) run(ctx context.Context, fn func(queryer) error) error {
	if q.tx != nil {
		return classify(fn(q.tx))
	}
	conn, err := q.acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	return classify(fn(conn))
}

/* WithTx runs fn in a read committed transaction. Nested calls join the outer transaction. */
func (q *Queries) WithTx(ctx context.Context, fn func(Store) error) error {
	if q.tx != nil {
		return fn(q)
	}

	conn, err := q.acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	tx, err := conn.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return classify(fmt.Errorf("begin transaction: %w", err))
	}

	if err := fn(&Queries{db: q.db, tx: tx, acquireTimeout: q.acquireTimeout}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return classify(fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}

/* Ping checks that a connection can be acquired and used */
func (q *Queries) Ping(ctx context.Context) error {
	return q.run(ctx, func(ext queryer) error {
		_, err := ext.ExecContext(ctx, "SELECT 1")
		return err
	})
}

func (q *Queries) get(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return q.run(ctx, func(ext queryer) error {
		return sqlx.GetContext(ctx, ext, dest, query, args...)
	})
}

func (q *Queries) selectAll(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return q.run(ctx, func(ext queryer) error {
		return sqlx.SelectContext(ctx, ext, dest, query, args...)
	})
}

func (q *Queries) exec(ctx context.Context, query string, args ...interface{}) (int64, error) {
	var affected int64
	err := q.run(ctx, func(ext queryer) error {
		res, err := ext.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	return affected, err
}

/* classify maps driver errors onto the package sentinels */
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrUniqueViolation) || errors.Is(err, ErrUnavailable) {
		return err
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%w: %s", ErrUniqueViolation, pgErr.ConstraintName)
		case "40001", "40P01", "57P01", "57P03", "53300":
			return fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		return err
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return err
}
