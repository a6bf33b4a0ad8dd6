// Package repository defines persistence for session records and provides
// memory, Postgres, and MongoDB implementations of the same contract.
package repository

import (
	"context"
	"errors"
	"time"

	"session-registry/backend/internal/session/domain"
)

// ErrDuplicateID is returned by Create when the session id is already present.
// The service treats it as a retry-and-regenerate condition, never a user error.
var ErrDuplicateID = errors.New("session id already exists")

// ErrNotFound is returned by Update and Remove for an unknown session id.
var ErrNotFound = errors.New("session not found")

// ErrStatusConflict is returned by a conditional Update when the record exists
// but its status no longer matches IfStatus: another writer transitioned the
// session between the caller's read and this write. Terminal states must never
// be rewritten, so callers treat this as "already closed" and re-read or skip.
var ErrStatusConflict = errors.New("session status changed concurrently")

// Update carries the fields to merge into an existing record. Nil fields are
// left unchanged. An update is applied atomically per record.
//
// IfStatus, when set, makes the update conditional: it applies only while the
// stored status equals IfStatus, checked atomically with the write. This is
// how state transitions stay race-safe across the status path, logout, and
// the reaper without holding a lock over the intervening read.
//
// LastAccessed only ever moves the stored timestamp forward; a stale value
// from a slower racing writer is dropped, keeping the timestamp monotonic.
type Update struct {
	Status       *domain.Status
	LastAccessed *time.Time
	IfStatus     *domain.Status
}

// Store defines persistence for sessions. All implementations must detect
// duplicate-id races in Create atomically and must be safe for concurrent use.
type Store interface {
	// Create inserts the record. Returns ErrDuplicateID if the id is taken.
	Create(ctx context.Context, s *domain.Session) error
	// Get returns the session for id, or nil if not found.
	// It returns an error only for backend failures, not for missing records.
	Get(ctx context.Context, id string) (*domain.Session, error)
	// Update merges the given fields into the record and returns the result.
	// Returns ErrNotFound if the id is unknown and ErrStatusConflict if
	// IfStatus is set and no longer matches.
	Update(ctx context.Context, id string, upd Update) (*domain.Session, error)
	// Remove deletes the record. Returns ErrNotFound if the id is unknown.
	Remove(ctx context.Context, id string) error
	// ListAll returns every record in creation order.
	ListAll(ctx context.Context) ([]*domain.Session, error)
	// ListByStatus returns the records with the given status, in creation order.
	ListByStatus(ctx context.Context, status domain.Status) ([]*domain.Session, error)
	// Clear removes every record unconditionally. Irreversible.
	Clear(ctx context.Context) error
}
