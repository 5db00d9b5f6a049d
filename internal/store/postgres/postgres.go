// Package postgres implements the store.Store interface backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/alfredjeanlab/reqgraph/internal/model"
	"github.com/alfredjeanlab/reqgraph/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore implements store.Store backed by a PostgreSQL database.
type PostgresStore struct {
	db *sql.DB
}

// Compile-time check that PostgresStore implements store.Store.
var _ store.Store = (*PostgresStore)(nil)

// New opens a connection to the PostgreSQL database at the given URL,
// configures the connection pool, and runs any pending migrations.
func New(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewWithDB wraps an already opened database without running migrations.
func NewWithDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) CreateGraph(ctx context.Context, g *model.DependencyGraph) error {
	return queryCreateGraph(ctx, s.db, g)
}

func (s *PostgresStore) LoadGraph(ctx context.Context, requirementID string) (*model.DependencyGraph, error) {
	return queryLoadGraph(ctx, s.db, requirementID, noLock)
}

func (s *PostgresStore) LoadGraphs(ctx context.Context, requirementIDs []string) (map[string]*model.DependencyGraph, error) {
	return queryLoadGraphs(ctx, s.db, requirementIDs, noLock)
}

func (s *PostgresStore) ListGraphs(ctx context.Context) ([]*model.DependencyGraph, error) {
	return queryListGraphs(ctx, s.db)
}

func (s *PostgresStore) SaveGraph(ctx context.Context, g *model.DependencyGraph) error {
	return querySaveGraph(ctx, s.db, g)
}

func (s *PostgresStore) Append(ctx context.Context, e *model.HistoryEvent) error {
	return queryAppendHistory(ctx, s.db, e)
}

func (s *PostgresStore) QueryByRequirement(ctx context.Context, requirementID string, filter model.HistoryFilter) ([]*model.HistoryEvent, error) {
	return queryHistory(ctx, s.db, requirementID, filter)
}

// RunInTransaction begins a database transaction, creates a txStore that
// delegates to it, calls fn, and commits on success or rolls back on error.
// Graph reads inside the transaction take FOR SHARE row locks, so two
// transactions that each read what the other writes end in a deadlock that
// PostgreSQL breaks by aborting one of them with ErrConcurrentModification.
func (s *PostgresStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	txS := &txStore{tx: tx}
	if err := fn(txS); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", conflict(err))
	}
	return nil
}

// txStore implements store.Store using a *sql.Tx.
type txStore struct {
	tx *sql.Tx
}

// Compile-time check that txStore implements store.Store.
var _ store.Store = (*txStore)(nil)

func (s *txStore) CreateGraph(ctx context.Context, g *model.DependencyGraph) error {
	return queryCreateGraph(ctx, s.tx, g)
}

func (s *txStore) LoadGraph(ctx context.Context, requirementID string) (*model.DependencyGraph, error) {
	return queryLoadGraph(ctx, s.tx, requirementID, forShare)
}

func (s *txStore) LoadGraphs(ctx context.Context, requirementIDs []string) (map[string]*model.DependencyGraph, error) {
	return queryLoadGraphs(ctx, s.tx, requirementIDs, forShare)
}

func (s *txStore) ListGraphs(ctx context.Context) ([]*model.DependencyGraph, error) {
	return queryListGraphs(ctx, s.tx)
}

func (s *txStore) SaveGraph(ctx context.Context, g *model.DependencyGraph) error {
	return querySaveGraph(ctx, s.tx, g)
}

func (s *txStore) Append(ctx context.Context, e *model.HistoryEvent) error {
	return queryAppendHistory(ctx, s.tx, e)
}

func (s *txStore) QueryByRequirement(ctx context.Context, requirementID string, filter model.HistoryFilter) ([]*model.HistoryEvent, error) {
	return queryHistory(ctx, s.tx, requirementID, filter)
}

// RunInTransaction on a txStore reuses the existing transaction (no nesting).
func (s *txStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(s)
}

// Close is a no-op for a transaction store; the parent store owns the connection.
func (s *txStore) Close() error {
	return nil
}
