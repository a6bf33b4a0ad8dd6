package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"session-registry/backend/internal/session/domain"
)

func newRecord(id string) *domain.Session {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return &domain.Session{
		SessionID:     id,
		Email:         "a@b.com",
		Nickname:      "bob",
		ClientNetwork: domain.NetworkInfo{IP: "10.0.0.1", MAC: "AA:BB"},
		ServerNetwork: domain.NetworkInfo{IP: "10.0.0.2", MAC: "CC:DD"},
		CreatedAt:     now,
		LastAccessed:  now,
		Status:        domain.StatusActive,
	}
}

func TestMemoryStore_CreateAndGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Create(ctx, newRecord("s1")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := store.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil {
		t.Fatal("Get returned nil for existing record")
	}
	if got.Email != "a@b.com" || got.Status != domain.StatusActive {
		t.Errorf("Get returned %+v", got)
	}
}

func TestMemoryStore_Create_Duplicate(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Create(ctx, newRecord("s1")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.Create(ctx, newRecord("s1")); err != ErrDuplicateID {
		t.Errorf("Create duplicate = %v, want ErrDuplicateID", err)
	}
}

func TestMemoryStore_Get_Missing(t *testing.T) {
	store := NewMemoryStore()

	got, err := store.Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Errorf("Get missing = %+v, want nil", got)
	}
}

func TestMemoryStore_Update(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	rec := newRecord("s1")
	if err := store.Create(ctx, rec); err != nil {
		t.Fatalf("Create: %v", err)
	}

	closed := domain.StatusClosedByUser
	at := rec.LastAccessed.Add(time.Minute)
	got, err := store.Update(ctx, "s1", Update{Status: &closed, LastAccessed: &at})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.Status != domain.StatusClosedByUser {
		t.Errorf("Status = %q, want ClosedByUser", got.Status)
	}
	if !got.LastAccessed.Equal(at) {
		t.Errorf("LastAccessed = %v, want %v", got.LastAccessed, at)
	}
	// Immutable fields untouched.
	if got.Email != rec.Email || !got.CreatedAt.Equal(rec.CreatedAt) {
		t.Errorf("Update touched immutable fields: %+v", got)
	}
}

func TestMemoryStore_Update_IfStatusPredicate(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	if err := store.Create(ctx, newRecord("s1")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	active := domain.StatusActive
	closedBySystem := domain.StatusClosedBySystem
	closedByUser := domain.StatusClosedByUser

	// Matching predicate: the transition applies.
	got, err := store.Update(ctx, "s1", Update{Status: &closedBySystem, IfStatus: &active})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.Status != domain.StatusClosedBySystem {
		t.Errorf("Status = %q, want ClosedBySystem", got.Status)
	}

	// Stale predicate: the record exists but is no longer Active; the write
	// must be refused, not applied over the terminal state.
	if _, err := store.Update(ctx, "s1", Update{Status: &closedByUser, IfStatus: &active}); err != ErrStatusConflict {
		t.Fatalf("Update = %v, want ErrStatusConflict", err)
	}
	cur, err := store.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if cur.Status != domain.StatusClosedBySystem {
		t.Errorf("Status = %q after refused update, want ClosedBySystem", cur.Status)
	}

	// Unknown id still reports ErrNotFound, not a conflict.
	if _, err := store.Update(ctx, "nope", Update{Status: &closedByUser, IfStatus: &active}); err != ErrNotFound {
		t.Errorf("Update unknown id = %v, want ErrNotFound", err)
	}
}

func TestMemoryStore_Update_LastAccessedNeverMovesBackwards(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	rec := newRecord("s1")
	if err := store.Create(ctx, rec); err != nil {
		t.Fatalf("Create: %v", err)
	}

	forward := rec.LastAccessed.Add(time.Minute)
	if _, err := store.Update(ctx, "s1", Update{LastAccessed: &forward}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	// A slower racing writer carrying an older timestamp must not rewind it.
	stale := rec.LastAccessed.Add(30 * time.Second)
	got, err := store.Update(ctx, "s1", Update{LastAccessed: &stale})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !got.LastAccessed.Equal(forward) {
		t.Errorf("LastAccessed = %v, want %v (monotonic)", got.LastAccessed, forward)
	}
}

func TestMemoryStore_Update_NilFieldsUnchanged(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	rec := newRecord("s1")
	if err := store.Create(ctx, rec); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := store.Update(ctx, "s1", Update{})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.Status != domain.StatusActive || !got.LastAccessed.Equal(rec.LastAccessed) {
		t.Errorf("empty update changed record: %+v", got)
	}
}

func TestMemoryStore_Update_NotFound(t *testing.T) {
	store := NewMemoryStore()

	if _, err := store.Update(context.Background(), "nope", Update{}); err != ErrNotFound {
		t.Errorf("Update = %v, want ErrNotFound", err)
	}
}

func TestMemoryStore_Remove(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	if err := store.Create(ctx, newRecord("s1")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := store.Remove(ctx, "s1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := store.Remove(ctx, "s1"); err != ErrNotFound {
		t.Errorf("Remove again = %v, want ErrNotFound", err)
	}
	got, _ := store.Get(ctx, "s1")
	if got != nil {
		t.Error("record still present after Remove")
	}
}

func TestMemoryStore_ListAll_CreationOrder(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	for _, id := range []string{"s1", "s2", "s3"} {
		if err := store.Create(ctx, newRecord(id)); err != nil {
			t.Fatalf("Create %s: %v", id, err)
		}
	}

	list, err := store.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("len = %d, want 3", len(list))
	}
	for i, want := range []string{"s1", "s2", "s3"} {
		if list[i].SessionID != want {
			t.Errorf("list[%d] = %q, want %q", i, list[i].SessionID, want)
		}
	}
}

func TestMemoryStore_ListByStatus(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	if err := store.Create(ctx, newRecord("s1")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.Create(ctx, newRecord("s2")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	closed := domain.StatusClosedByUser
	if _, err := store.Update(ctx, "s2", Update{Status: &closed}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	active, err := store.ListByStatus(ctx, domain.StatusActive)
	if err != nil {
		t.Fatalf("ListByStatus: %v", err)
	}
	if len(active) != 1 || active[0].SessionID != "s1" {
		t.Errorf("active = %+v", active)
	}
}

func TestMemoryStore_Clear(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if err := store.Create(ctx, newRecord(fmt.Sprintf("s%d", i))); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	list, err := store.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("len = %d after Clear, want 0", len(list))
	}
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	if err := store.Create(ctx, newRecord("s1")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, _ := store.Get(ctx, "s1")
	got.Status = domain.StatusClosedByUser // mutate the copy

	again, _ := store.Get(ctx, "s1")
	if again.Status != domain.StatusActive {
		t.Error("mutating a returned record leaked into the store")
	}
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("s%d", n)
			_ = store.Create(ctx, newRecord(id))
			_, _ = store.Get(ctx, id)
			at := time.Now().UTC()
			_, _ = store.Update(ctx, id, Update{LastAccessed: &at})
			_, _ = store.ListAll(ctx)
		}(i)
	}
	wg.Wait()
	// If there's a race condition, the test will fail with -race flag.

	list, err := store.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(list) != 20 {
		t.Errorf("len = %d, want 20", len(list))
	}
}

func TestMemoryStore_ConcurrentDuplicateCreate(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- store.Create(ctx, newRecord("same-id"))
		}()
	}
	wg.Wait()
	close(errs)

	ok, dup := 0, 0
	for err := range errs {
		switch err {
		case nil:
			ok++
		case ErrDuplicateID:
			dup++
		default:
			t.Errorf("Create: %v", err)
		}
	}
	if ok != 1 || dup != 9 {
		t.Errorf("ok=%d dup=%d, want exactly one winner", ok, dup)
	}
}
