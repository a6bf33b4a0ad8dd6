// Package service implements the session use cases: login, status, update,
// logout, enumeration, and purge, plus the background reaper.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"session-registry/backend/internal/clock"
	"session-registry/backend/internal/netinfo"
	"session-registry/backend/internal/security"
	"session-registry/backend/internal/session/domain"
	"session-registry/backend/internal/session/repository"
	"session-registry/backend/internal/telemetry"
)

// Sentinel errors for the session service; the HTTP layer maps them to status codes.
var (
	// ErrValidation means required identity fields were missing or empty.
	ErrValidation = errors.New("email, nickname, and clientMAC are required")
	// ErrNotFound means the session id is unknown.
	ErrNotFound = errors.New("session not found")
	// ErrInvalidState means the operation was attempted on a terminal session.
	// Terminal sessions are never resurrected; only a fresh login produces a new record.
	ErrInvalidState = errors.New("session is already closed")
)

// createRetries bounds id regeneration on the (negligible) chance of a UUID collision.
const createRetries = 3

// errConcurrentTransition means another writer closed the session between this
// path's read and its conditional write. The record still exists; callers
// re-read it or treat the session as already closed.
var errConcurrentTransition = errors.New("session closed concurrently")

// LoginInput carries the caller-supplied identity and network provenance for a login.
type LoginInput struct {
	Email     string
	Nickname  string
	ClientMAC string
	ClientIP  string
}

// Service composes the store, the lifecycle policy, and the clock. The idle
// threshold lives here once; the status path and the reaper both go through it.
type Service struct {
	store       repository.Store
	clock       clock.Clock
	serverNet   domain.NetworkInfo
	idleTimeout time.Duration
	cipher      *security.FieldCipher
	emitter     telemetry.EventEmitter
}

// New returns a Service. serverInfo is the process-wide network identity
// captured at startup. cipher may be nil (emails stored in plaintext);
// emitter may be nil (no audit events).
func New(store repository.Store, clk clock.Clock, serverInfo netinfo.ServerInfo, idleTimeout time.Duration, cipher *security.FieldCipher, emitter telemetry.EventEmitter) *Service {
	return &Service{
		store:       store,
		clock:       clk,
		serverNet:   domain.NetworkInfo{IP: serverInfo.IP, MAC: serverInfo.MAC},
		idleTimeout: idleTimeout,
		cipher:      cipher,
		emitter:     emitter,
	}
}

// IdleTimeout returns the configured inactivity threshold.
func (s *Service) IdleTimeout() time.Duration { return s.idleTimeout }

// Login creates a new Active session and returns it. Returns ErrValidation
// when identity fields are missing. A duplicate-id race is retried with a
// fresh identifier, never surfaced to the caller.
func (s *Service) Login(ctx context.Context, in LoginInput) (*domain.Session, error) {
	now := s.clock.Now()
	rec := &domain.Session{
		SessionID:     uuid.NewString(),
		Email:         in.Email,
		Nickname:      in.Nickname,
		ClientNetwork: domain.NetworkInfo{IP: in.ClientIP, MAC: in.ClientMAC},
		ServerNetwork: s.serverNet,
		CreatedAt:     now,
		LastAccessed:  now,
		Status:        domain.StatusActive,
	}
	if err := rec.Validate(); err != nil {
		if errors.Is(err, domain.ErrMissingFields) {
			return nil, ErrValidation
		}
		return nil, err
	}

	stored := *rec
	sealed, err := s.cipher.Encrypt(rec.Email)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	stored.Email = sealed

	for attempt := 0; ; attempt++ {
		err := s.store.Create(ctx, &stored)
		if err == nil {
			break
		}
		if !errors.Is(err, repository.ErrDuplicateID) || attempt >= createRetries {
			return nil, fmt.Errorf("login: %w", err)
		}
		stored.SessionID = uuid.NewString()
	}
	rec.SessionID = stored.SessionID

	telemetry.EmitAsync(s.emitter, ctx, &telemetry.Event{
		SessionID: rec.SessionID,
		EventType: telemetry.EventLogin,
		Source:    "http",
		ClientIP:  rec.ClientNetwork.IP,
		Status:    string(rec.Status),
		CreatedAt: now,
	})
	return rec, nil
}

// Status returns the current snapshot of the session plus its inactivity.
//
// This read path has a write side effect: when an Active session's inactivity
// has reached the idle threshold, its expiry is applied and persisted here, so
// a later Status call sees ClosedBySystem without re-running the transition.
func (s *Service) Status(ctx context.Context, id string) (*domain.Session, time.Duration, error) {
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, 0, fmt.Errorf("status: %w", err)
	}
	if rec == nil {
		return nil, 0, ErrNotFound
	}

	now := s.clock.Now()
	inactivity := domain.Inactivity(rec.LastAccessed, now)
	if domain.ShouldExpire(rec.Status, rec.LastAccessed, now, s.idleTimeout) {
		rec, err = s.expire(ctx, rec, now, "http")
		if errors.Is(err, errConcurrentTransition) {
			// Closed by another path between our read and write; the
			// terminal state it chose wins. Re-read and report that.
			rec, err = s.store.Get(ctx, id)
			if err != nil {
				return nil, 0, fmt.Errorf("status: %w", err)
			}
			if rec == nil {
				return nil, 0, ErrNotFound
			}
		} else if err != nil {
			return nil, 0, err
		}
	}
	if err := s.reveal(rec); err != nil {
		return nil, 0, err
	}
	return rec, inactivity, nil
}

// Touch refreshes the session's lastAccessed timestamp. Returns ErrNotFound
// for an unknown id and ErrInvalidState for a terminal session. A session
// whose inactivity has already reached the threshold is expired (persisted)
// and the touch fails with ErrInvalidState: the reaper merely hadn't caught
// up, and refreshing it would disagree with the status path.
func (s *Service) Touch(ctx context.Context, id string) (*domain.Session, error) {
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("touch: %w", err)
	}
	if rec == nil {
		return nil, ErrNotFound
	}

	now := s.clock.Now()
	if domain.ShouldExpire(rec.Status, rec.LastAccessed, now, s.idleTimeout) {
		if _, err := s.expire(ctx, rec, now, "http"); err != nil && !errors.Is(err, errConcurrentTransition) {
			return nil, err
		}
		return nil, ErrInvalidState
	}
	if rec.Status.Terminal() {
		return nil, ErrInvalidState
	}

	domain.Touch(rec, now)
	active := domain.StatusActive
	updated, err := s.store.Update(ctx, id, repository.Update{LastAccessed: &rec.LastAccessed, IfStatus: &active})
	if err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			// Closed between our read and write; never refresh a terminal record.
			return nil, ErrInvalidState
		}
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("touch: %w", err)
	}
	if err := s.reveal(updated); err != nil {
		return nil, err
	}

	telemetry.EmitAsync(s.emitter, ctx, &telemetry.Event{
		SessionID: id,
		EventType: telemetry.EventRefresh,
		Source:    "http",
		Status:    string(updated.Status),
		CreatedAt: now,
	})
	return updated, nil
}

// Logout closes the session on the user's behalf. The record is retained with
// terminal status ClosedByUser so the closure stays auditable. Returns
// ErrNotFound for an unknown id, ErrInvalidState if already terminal.
func (s *Service) Logout(ctx context.Context, id string) (*domain.Session, error) {
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("logout: %w", err)
	}
	if rec == nil {
		return nil, ErrNotFound
	}
	if rec.Status.Terminal() {
		return nil, ErrInvalidState
	}

	now := s.clock.Now()
	domain.Close(rec, now)
	active := domain.StatusActive
	updated, err := s.store.Update(ctx, id, repository.Update{Status: &rec.Status, LastAccessed: &rec.LastAccessed, IfStatus: &active})
	if err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			// The reaper (or another logout) closed it between our read and
			// write; the terminal state that landed first stands.
			return nil, ErrInvalidState
		}
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("logout: %w", err)
	}
	if err := s.reveal(updated); err != nil {
		return nil, err
	}

	telemetry.EmitAsync(s.emitter, ctx, &telemetry.Event{
		SessionID: id,
		EventType: telemetry.EventLogout,
		Source:    "http",
		Status:    string(updated.Status),
		CreatedAt: now,
	})
	return updated, nil
}

// ListAll returns every session in creation order.
func (s *Service) ListAll(ctx context.Context) ([]*domain.Session, error) {
	list, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}
	for _, rec := range list {
		if err := s.reveal(rec); err != nil {
			return nil, err
		}
	}
	return list, nil
}

// ListActive returns the sessions whose status is Active, in creation order.
func (s *Service) ListActive(ctx context.Context) ([]*domain.Session, error) {
	list, err := s.store.ListByStatus(ctx, domain.StatusActive)
	if err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}
	for _, rec := range list {
		if err := s.reveal(rec); err != nil {
			return nil, err
		}
	}
	return list, nil
}

// PurgeAll wipes every session unconditionally, terminal records included.
// Irreversible; exposed only through the DELETE endpoint.
func (s *Service) PurgeAll(ctx context.Context) error {
	if err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("purge: %w", err)
	}
	telemetry.EmitAsync(s.emitter, ctx, &telemetry.Event{
		EventType: telemetry.EventPurge,
		Source:    "http",
		CreatedAt: s.clock.Now(),
	})
	return nil
}

// ExpireIdle runs one expiry pass: every Active session whose inactivity has
// reached the threshold transitions to ClosedBySystem through the same policy
// functions the status path uses. Sessions that disappear or close
// concurrently are skipped, not failed. Returns the number of sessions expired.
func (s *Service) ExpireIdle(ctx context.Context, source string) (int, error) {
	list, err := s.store.ListByStatus(ctx, domain.StatusActive)
	if err != nil {
		return 0, fmt.Errorf("expire idle: %w", err)
	}
	now := s.clock.Now()
	expired := 0
	for _, rec := range list {
		if !domain.ShouldExpire(rec.Status, rec.LastAccessed, now, s.idleTimeout) {
			continue
		}
		if _, err := s.expire(ctx, rec, now, source); err != nil {
			if errors.Is(err, ErrNotFound) || errors.Is(err, errConcurrentTransition) {
				continue // closed or purged concurrently; skip, never overwrite
			}
			return expired, err
		}
		expired++
	}
	return expired, nil
}

// expire applies and persists the system-close transition, then emits the
// audit event. The write is conditional on the session still being Active, so
// a logout that landed after the caller's read is never overwritten; that case
// surfaces as errConcurrentTransition without an audit event.
func (s *Service) expire(ctx context.Context, rec *domain.Session, now time.Time, source string) (*domain.Session, error) {
	domain.Expire(rec, now)
	active := domain.StatusActive
	updated, err := s.store.Update(ctx, rec.SessionID, repository.Update{Status: &rec.Status, LastAccessed: &rec.LastAccessed, IfStatus: &active})
	if err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return nil, errConcurrentTransition
		}
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("expire: %w", err)
	}
	telemetry.EmitAsync(s.emitter, ctx, &telemetry.Event{
		SessionID: rec.SessionID,
		EventType: telemetry.EventExpired,
		Source:    source,
		Status:    string(updated.Status),
		CreatedAt: now,
	})
	return updated, nil
}

// reveal decrypts the email field in place. A nil cipher is the identity transform.
func (s *Service) reveal(rec *domain.Session) error {
	plain, err := s.cipher.Decrypt(rec.Email)
	if err != nil {
		return fmt.Errorf("reveal email: %w", err)
	}
	rec.Email = plain
	return nil
}
