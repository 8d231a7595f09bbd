// Package memory holds map-backed repositories used when no database is
// configured and by the service tests.
package memory

import (
	"context"
	"sync"

	models "librarian/internal/domain/models/library"
)

type grantKey struct {
	resourceID string
	action     models.Action
	roleID     string
}

// Store is the shared state behind every memory repository. Rows are stored
// by value so callers never alias stored data.
type Store struct {
	mu        sync.RWMutex
	libraries map[string]models.Library
	folders   map[string]models.Folder
	datasets  map[string]models.Dataset
	grants    map[grantKey]models.PermissionGrant
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		libraries: make(map[string]models.Library),
		folders:   make(map[string]models.Folder),
		datasets:  make(map[string]models.Dataset),
		grants:    make(map[grantKey]models.PermissionGrant),
	}
}

// journal collects undo steps for the transaction in ctx.
type journal struct {
	undo []func()
}

type journalKey struct{}

func journalFrom(ctx context.Context) *journal {
	j, _ := ctx.Value(journalKey{}).(*journal)
	return j
}

// lock takes the store for writing. A ctx carrying a transaction already
// holds the write lock for the transaction's lifetime.
func (s *Store) lock(ctx context.Context) func() {
	if journalFrom(ctx) != nil {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// rlock takes the store for reading, see lock.
func (s *Store) rlock(ctx context.Context) func() {
	if journalFrom(ctx) != nil {
		return func() {}
	}
	s.mu.RLock()
	return s.mu.RUnlock
}

// record registers an undo step. Must be called with s.mu held.
func (s *Store) record(ctx context.Context, undo func()) {
	if j := journalFrom(ctx); j != nil {
		j.undo = append(j.undo, undo)
	}
}

func (s *Store) putLibrary(ctx context.Context, lib models.Library) {
	prev, existed := s.libraries[lib.ID]
	s.record(ctx, func() {
		if existed {
			s.libraries[lib.ID] = prev
		} else {
			delete(s.libraries, lib.ID)
		}
	})
	s.libraries[lib.ID] = lib
}

func (s *Store) putFolder(ctx context.Context, f models.Folder) {
	prev, existed := s.folders[f.ID]
	s.record(ctx, func() {
		if existed {
			s.folders[f.ID] = prev
		} else {
			delete(s.folders, f.ID)
		}
	})
	s.folders[f.ID] = f
}

func (s *Store) putDataset(ctx context.Context, ds models.Dataset) {
	prev, existed := s.datasets[ds.ID]
	s.record(ctx, func() {
		if existed {
			s.datasets[ds.ID] = prev
		} else {
			delete(s.datasets, ds.ID)
		}
	})
	s.datasets[ds.ID] = ds
}

func (s *Store) putGrant(ctx context.Context, g models.PermissionGrant) {
	key := grantKey{resourceID: g.ResourceID, action: g.Action, roleID: g.RoleID}
	if _, ok := s.grants[key]; ok {
		return
	}
	s.record(ctx, func() { delete(s.grants, key) })
	s.grants[key] = g
}

func (s *Store) deleteGrant(ctx context.Context, key grantKey) {
	prev, ok := s.grants[key]
	if !ok {
		return
	}
	s.record(ctx, func() { s.grants[key] = prev })
	delete(s.grants, key)
}
