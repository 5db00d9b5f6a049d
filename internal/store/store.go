package store

import (
	"context"
	"errors"

	"github.com/alfredjeanlab/reqgraph/internal/history"
	"github.com/alfredjeanlab/reqgraph/internal/model"
)

var (
	// ErrNotFound is returned when a graph record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned when creating a record that exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrConcurrentModification is returned by SaveGraph when the stored
	// record's version no longer matches the version that was loaded.
	ErrConcurrentModification = errors.New("concurrent modification")
)

// Store defines the persistence interface for dependency graph records and
// their history ledger.
type Store interface {
	// Graph records
	CreateGraph(ctx context.Context, g *model.DependencyGraph) error
	LoadGraph(ctx context.Context, requirementID string) (*model.DependencyGraph, error)
	LoadGraphs(ctx context.Context, requirementIDs []string) (map[string]*model.DependencyGraph, error) // missing ids are absent from the map
	ListGraphs(ctx context.Context) ([]*model.DependencyGraph, error)

	// SaveGraph persists g if the stored version equals g.Version, then
	// increments g.Version. Otherwise it returns ErrConcurrentModification
	// (or ErrNotFound if the record is gone) and leaves g untouched.
	SaveGraph(ctx context.Context, g *model.DependencyGraph) error

	// History ledger
	history.Ledger

	// Transaction support
	RunInTransaction(ctx context.Context, fn func(tx Store) error) error

	// Lifecycle
	Close() error
}
