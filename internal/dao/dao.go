// Package dao is the metadata-persistence layer (spec.md §4.D): it owns the
// single Postgres connection, the schema migrations, and the transactional
// row shapes for face/vehicle tracks, persons, libraries and
// vehicles-of-interest.
//
// Grounded on the teacher's internal/platform/database/database.go
// (sql.Open + ping) and services/indexer/storage.go (connection pool
// tuning, $N-parameterized queries, ON CONFLICT upserts), using
// jmoiron/sqlx for struct scanning and golang-migrate for schema setup.
package dao

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB wraps the shared connection plus the single-worker executor that all
// SQL runs through, keeping async callers off the blocking driver call.
type DB struct {
	conn     *sqlx.DB
	executor *Executor
}

// Open establishes the Postgres connection, runs migrations, and starts the
// background executor.
func Open(ctx context.Context, dsn string, maxConns int, idleTimeout time.Duration) (*DB, error) {
	sqlDB, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	sqlDB.SetMaxOpenConns(maxConns)
	sqlDB.SetMaxIdleConns(maxConns)
	sqlDB.SetConnMaxIdleTime(idleTimeout)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if err := migrateUp(sqlDB); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	conn := sqlx.NewDb(sqlDB, "postgres")
	return &DB{conn: conn, executor: NewExecutor(1)}, nil
}

func migrateUp(sqlDB *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load embedded migrations: %w", err)
	}
	driver, err := postgres.WithInstance(sqlDB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("postgres migrate driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("new migrator: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

// Close shuts down the executor and the connection pool.
func (d *DB) Close() error {
	d.executor.Stop()
	return d.conn.Close()
}

// Do offloads fn onto the single DB executor goroutine, so request-handling
// or coalescer goroutines never block directly on the driver (spec.md §5's
// "dedicated blocking-capable executor").
func (d *DB) Do(ctx context.Context, fn func(*sqlx.DB) error) error {
	return d.executor.Run(ctx, func() error { return fn(d.conn) })
}

// Executor is a single-worker, channel-backed task runner. Having exactly
// one consumer of the work channel is what makes the DB connection's mutual
// exclusion implicit rather than an explicit sync.Mutex.
type Executor struct {
	work chan func()
	done chan struct{}
}

// NewExecutor starts n worker goroutines draining the work channel. The DAO
// always uses n=1 so SQL execution is strictly serialized onto one
// connection, per spec.md §4.D.
func NewExecutor(n int) *Executor {
	if n < 1 {
		n = 1
	}
	e := &Executor{
		work: make(chan func(), 256),
		done: make(chan struct{}),
	}
	for i := 0; i < n; i++ {
		go e.loop()
	}
	return e
}

func (e *Executor) loop() {
	for {
		select {
		case fn, ok := <-e.work:
			if !ok {
				return
			}
			fn()
		case <-e.done:
			return
		}
	}
}

// Run submits fn and blocks until it completes or ctx is canceled.
func (e *Executor) Run(ctx context.Context, fn func() error) error {
	resultCh := make(chan error, 1)
	task := func() { resultCh <- fn() }

	select {
	case e.work <- task:
	case <-ctx.Done():
		return ctx.Err()
	case <-e.done:
		return fmt.Errorf("executor stopped")
	}

	select {
	case err := <-resultCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop terminates all executor workers.
func (e *Executor) Stop() {
	close(e.done)
}
