// Package memory implements store.Store in process memory. Records are
// deep-copied on every read and write, and transactions stage their writes
// until commit.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/alfredjeanlab/reqgraph/internal/graph"
	"github.com/alfredjeanlab/reqgraph/internal/history"
	"github.com/alfredjeanlab/reqgraph/internal/model"
	"github.com/alfredjeanlab/reqgraph/internal/store"
)

// MemoryStore implements store.Store backed by maps guarded by a mutex.
type MemoryStore struct {
	mu     sync.RWMutex
	graphs map[string]*model.DependencyGraph
	ledger *history.MemoryLedger
}

// Compile-time check that MemoryStore implements store.Store.
var _ store.Store = (*MemoryStore)(nil)

// New returns an empty MemoryStore.
func New() *MemoryStore {
	return &MemoryStore{
		graphs: make(map[string]*model.DependencyGraph),
		ledger: history.NewMemoryLedger(),
	}
}

func (s *MemoryStore) CreateGraph(_ context.Context, g *model.DependencyGraph) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.graphs[g.RequirementID]; ok {
		return fmt.Errorf("create graph %s: %w", g.RequirementID, store.ErrAlreadyExists)
	}
	s.graphs[g.RequirementID] = graph.Clone(g)
	return nil
}

func (s *MemoryStore) LoadGraph(_ context.Context, requirementID string) (*model.DependencyGraph, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.graphs[requirementID]
	if !ok {
		return nil, fmt.Errorf("load graph %s: %w", requirementID, store.ErrNotFound)
	}
	return graph.Clone(g), nil
}

func (s *MemoryStore) LoadGraphs(_ context.Context, requirementIDs []string) (map[string]*model.DependencyGraph, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*model.DependencyGraph, len(requirementIDs))
	for _, id := range requirementIDs {
		if g, ok := s.graphs[id]; ok {
			out[id] = graph.Clone(g)
		}
	}
	return out, nil
}

func (s *MemoryStore) ListGraphs(_ context.Context) ([]*model.DependencyGraph, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.DependencyGraph, 0, len(s.graphs))
	for _, g := range s.graphs {
		out = append(out, graph.Clone(g))
	}
	sortByID(out)
	return out, nil
}

func (s *MemoryStore) SaveGraph(_ context.Context, g *model.DependencyGraph) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkVersion(g.RequirementID, g.Version); err != nil {
		return err
	}
	g.Version++
	s.graphs[g.RequirementID] = graph.Clone(g)
	return nil
}

// checkVersion must be called with s.mu held.
func (s *MemoryStore) checkVersion(id string, version int64) error {
	cur, ok := s.graphs[id]
	if !ok {
		return fmt.Errorf("save graph %s: %w", id, store.ErrNotFound)
	}
	if cur.Version != version {
		return fmt.Errorf("save graph %s: version %d, stored %d: %w",
			id, version, cur.Version, store.ErrConcurrentModification)
	}
	return nil
}

func (s *MemoryStore) Append(ctx context.Context, e *model.HistoryEvent) error {
	return s.ledger.Append(ctx, e)
}

func (s *MemoryStore) QueryByRequirement(ctx context.Context, requirementID string, filter model.HistoryFilter) ([]*model.HistoryEvent, error) {
	return s.ledger.QueryByRequirement(ctx, requirementID, filter)
}

// RunInTransaction calls fn with a transaction that stages writes. On
// success the staged graphs are committed if none of the records the
// transaction read or wrote changed since it first touched them; otherwise
// everything is discarded.
func (s *MemoryStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	tx := &txStore{
		parent:  s,
		staged:  make(map[string]*model.DependencyGraph),
		base:    make(map[string]int64),
		read:    make(map[string]int64),
		created: make(map[string]bool),
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.commit(ctx, tx)
}

func (s *MemoryStore) commit(ctx context.Context, tx *txStore) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id := range tx.staged {
		cur, exists := s.graphs[id]
		if tx.created[id] {
			if exists {
				return fmt.Errorf("commit graph %s: %w", id, store.ErrAlreadyExists)
			}
			continue
		}
		if !exists {
			return fmt.Errorf("commit graph %s: %w", id, store.ErrNotFound)
		}
		if cur.Version != tx.base[id] {
			return fmt.Errorf("commit graph %s: %w", id, store.ErrConcurrentModification)
		}
	}
	for id, version := range tx.read {
		if _, ok := tx.staged[id]; ok {
			continue
		}
		cur, exists := s.graphs[id]
		if !exists || cur.Version != version {
			return fmt.Errorf("commit: graph %s read at version %d changed: %w",
				id, version, store.ErrConcurrentModification)
		}
	}
	if err := s.ledger.AppendAll(ctx, tx.events); err != nil {
		return fmt.Errorf("commit history: %w", err)
	}
	for id, g := range tx.staged {
		s.graphs[id] = g
	}
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}

func sortByID(gs []*model.DependencyGraph) {
	slices.SortFunc(gs, func(a, b *model.DependencyGraph) int {
		return cmp.Compare(a.RequirementID, b.RequirementID)
	})
}

// txStore implements store.Store over a MemoryStore, holding writes until
// commit.
type txStore struct {
	parent  *MemoryStore
	staged  map[string]*model.DependencyGraph
	base    map[string]int64 // stored version when the tx first wrote the record
	read    map[string]int64 // stored version when the tx first read the record
	created map[string]bool
	events  []*model.HistoryEvent
}

// Compile-time check that txStore implements store.Store.
var _ store.Store = (*txStore)(nil)

func (t *txStore) CreateGraph(ctx context.Context, g *model.DependencyGraph) error {
	if _, ok := t.staged[g.RequirementID]; ok {
		return fmt.Errorf("create graph %s: %w", g.RequirementID, store.ErrAlreadyExists)
	}
	t.parent.mu.RLock()
	_, exists := t.parent.graphs[g.RequirementID]
	t.parent.mu.RUnlock()
	if exists {
		return fmt.Errorf("create graph %s: %w", g.RequirementID, store.ErrAlreadyExists)
	}
	t.staged[g.RequirementID] = graph.Clone(g)
	t.created[g.RequirementID] = true
	return nil
}

func (t *txStore) LoadGraph(ctx context.Context, requirementID string) (*model.DependencyGraph, error) {
	if g, ok := t.staged[requirementID]; ok {
		return graph.Clone(g), nil
	}
	g, err := t.parent.LoadGraph(ctx, requirementID)
	if err != nil {
		return nil, err
	}
	t.noteRead(g)
	return g, nil
}

// noteRead remembers the version of a record read from the parent store.
func (t *txStore) noteRead(g *model.DependencyGraph) {
	if _, ok := t.read[g.RequirementID]; !ok {
		t.read[g.RequirementID] = g.Version
	}
}

func (t *txStore) LoadGraphs(ctx context.Context, requirementIDs []string) (map[string]*model.DependencyGraph, error) {
	out, err := t.parent.LoadGraphs(ctx, requirementIDs)
	if err != nil {
		return nil, err
	}
	for _, id := range requirementIDs {
		if g, ok := t.staged[id]; ok {
			out[id] = graph.Clone(g)
		} else if g, ok := out[id]; ok {
			t.noteRead(g)
		}
	}
	return out, nil
}

func (t *txStore) ListGraphs(ctx context.Context) ([]*model.DependencyGraph, error) {
	all, err := t.parent.ListGraphs(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(all))
	for i, g := range all {
		seen[g.RequirementID] = true
		if st, ok := t.staged[g.RequirementID]; ok {
			all[i] = graph.Clone(st)
		}
	}
	for id, st := range t.staged {
		if !seen[id] {
			all = append(all, graph.Clone(st))
		}
	}
	sortByID(all)
	return all, nil
}

func (t *txStore) SaveGraph(_ context.Context, g *model.DependencyGraph) error {
	id := g.RequirementID
	if st, ok := t.staged[id]; ok {
		if st.Version != g.Version {
			return fmt.Errorf("save graph %s: version %d, staged %d: %w",
				id, g.Version, st.Version, store.ErrConcurrentModification)
		}
	} else {
		t.parent.mu.RLock()
		err := t.parent.checkVersion(id, g.Version)
		t.parent.mu.RUnlock()
		if err != nil {
			return err
		}
		t.base[id] = g.Version
	}
	g.Version++
	t.staged[id] = graph.Clone(g)
	return nil
}

func (t *txStore) Append(_ context.Context, e *model.HistoryEvent) error {
	if err := history.Check(e); err != nil {
		return err
	}
	t.events = append(t.events, e.Clone())
	return nil
}

func (t *txStore) QueryByRequirement(ctx context.Context, requirementID string, filter model.HistoryFilter) ([]*model.HistoryEvent, error) {
	stored, err := t.parent.QueryByRequirement(ctx, requirementID, model.HistoryFilter{Ascending: true})
	if err != nil {
		return nil, err
	}
	for _, e := range t.events {
		if e.RequirementID == requirementID {
			stored = append(stored, e.Clone())
		}
	}
	return history.FilterEvents(stored, filter), nil
}

// RunInTransaction on a txStore reuses the existing transaction (no nesting).
func (t *txStore) RunInTransaction(_ context.Context, fn func(tx store.Store) error) error {
	return fn(t)
}

// Close is a no-op for a transaction store; the parent store owns the data.
func (t *txStore) Close() error {
	return nil
}
