package repository

import (
	"context"
	"sync"

	"session-registry/backend/internal/session/domain"
)

// MemoryStore is an in-memory Store implementation. A single RWMutex guards
// the map and the insertion-order index; every read-modify-write sequence
// happens under the write lock so duplicate-id races cannot slip through.
type MemoryStore struct {
	mu    sync.RWMutex
	m     map[string]*domain.Session
	order []string // session ids in creation order
}

// NewMemoryStore returns a new in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{m: make(map[string]*domain.Session)}
}

// Create inserts the record. Returns ErrDuplicateID if the id is taken.
func (s *MemoryStore) Create(ctx context.Context, rec *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.m[rec.SessionID]; ok {
		return ErrDuplicateID
	}
	cp := *rec
	s.m[rec.SessionID] = &cp
	s.order = append(s.order, rec.SessionID)
	return nil
}

// Get returns a copy of the session for id, or nil if not found.
func (s *MemoryStore) Get(ctx context.Context, id string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.m[id]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

// Update merges the given fields into the record under the write lock and
// returns a copy of the result. Returns ErrNotFound if the id is unknown and
// ErrStatusConflict if IfStatus is set but no longer matches the stored status.
func (s *MemoryStore) Update(ctx context.Context, id string, upd Update) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.m[id]
	if !ok {
		return nil, ErrNotFound
	}
	if upd.IfStatus != nil && rec.Status != *upd.IfStatus {
		return nil, ErrStatusConflict
	}
	if upd.Status != nil {
		rec.Status = *upd.Status
	}
	if upd.LastAccessed != nil && upd.LastAccessed.After(rec.LastAccessed) {
		rec.LastAccessed = *upd.LastAccessed
	}
	cp := *rec
	return &cp, nil
}

// Remove deletes the record. Returns ErrNotFound if the id is unknown.
func (s *MemoryStore) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.m[id]; !ok {
		return ErrNotFound
	}
	delete(s.m, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// ListAll returns copies of every record in creation order.
func (s *MemoryStore) ListAll(ctx context.Context) ([]*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Session, 0, len(s.order))
	for _, id := range s.order {
		if rec, ok := s.m[id]; ok {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ListByStatus returns copies of the records with the given status, in creation order.
func (s *MemoryStore) ListByStatus(ctx context.Context, status domain.Status) ([]*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Session
	for _, id := range s.order {
		if rec, ok := s.m[id]; ok && rec.Status == status {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}

// Clear removes every record unconditionally.
func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m = make(map[string]*domain.Session)
	s.order = nil
	return nil
}
