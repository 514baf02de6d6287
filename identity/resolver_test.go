package identity

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
)

func TestResolveSequentialIsIdempotent(t *testing.T) {
	store := NewMemoryStore()
	r, err := NewResolver(store)
	if err != nil {
		t.Fatalf("NewResolver failed: %v", err)
	}

	first, err := r.Resolve(context.Background(), Attributes{Email: "Alice@Example.com"})
	if err != nil {
		t.Fatalf("first resolve failed: %v", err)
	}
	second, err := r.Resolve(context.Background(), Attributes{Email: "alice@example.com "})
	if err != nil {
		t.Fatalf("second resolve failed: %v", err)
	}

	if first.ID != second.ID {
		t.Fatalf("expected same identity id, got %q and %q", first.ID, second.ID)
	}
	if first.Email != "alice@example.com" {
		t.Fatalf("expected normalized email, got %q", first.Email)
	}
	if store.Len() != 1 {
		t.Fatalf("expected one stored identity, got %d", store.Len())
	}
}

func TestResolveConcurrentFirstTimeConverges(t *testing.T) {
	const workers = 32

	store := &racingStore{MemoryStore: NewMemoryStore()}
	store.gate.Add(1)
	r, err := NewResolver(store)
	if err != nil {
		t.Fatalf("NewResolver failed: %v", err)
	}

	var (
		wg   sync.WaitGroup
		ids  = make([]string, workers)
		errs = make([]error, workers)
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, err := r.Resolve(context.Background(), Attributes{Email: "new@example.com"})
			errs[i] = err
			if got != nil {
				ids[i] = got.ID
			}
		}(i)
	}
	store.waitForMisses(workers)
	store.gate.Done()
	wg.Wait()

	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Fatalf("worker %d failed: %v", i, errs[i])
		}
		if ids[i] != ids[0] {
			t.Fatalf("worker %d resolved %q, expected %q", i, ids[i], ids[0])
		}
	}
	if store.Len() != 1 {
		t.Fatalf("expected exactly one identity, got %d", store.Len())
	}
	if store.conflicts.Load() != workers-1 {
		t.Fatalf("expected %d conflicts, got %d", workers-1, store.conflicts.Load())
	}
}

func TestResolveConflictExhausted(t *testing.T) {
	store := &alwaysConflictStore{}
	var hooked []int
	r, err := NewResolver(store,
		WithMaxAttempts(3),
		WithConflictHook(func(_ string, attempt int) { hooked = append(hooked, attempt) }),
	)
	if err != nil {
		t.Fatalf("NewResolver failed: %v", err)
	}

	_, err = r.Resolve(context.Background(), Attributes{Email: "stuck@example.com"})
	if !errors.Is(err, ErrCreateConflictExhausted) {
		t.Fatalf("expected ErrCreateConflictExhausted, got %v", err)
	}
	if store.creates != 3 {
		t.Fatalf("expected 3 create attempts, got %d", store.creates)
	}
	if len(hooked) != 3 || hooked[2] != 3 {
		t.Fatalf("unexpected conflict hook calls: %v", hooked)
	}
}

func TestResolveRejectsInvalidAttribute(t *testing.T) {
	store := NewMemoryStore()
	r, _ := NewResolver(store)

	for _, email := range []string{"", "   ", "not-an-email", "a@", "@b.com"} {
		_, err := r.Resolve(context.Background(), Attributes{Email: email})
		if !errors.Is(err, ErrAttributeInvalid) {
			t.Fatalf("email %q: expected ErrAttributeInvalid, got %v", email, err)
		}
	}
	if store.Len() != 0 {
		t.Fatalf("expected no identity to be created, got %d", store.Len())
	}
}

func TestResolvePropagatesStoreFailure(t *testing.T) {
	boom := errors.New("db down")
	r, _ := NewResolver(&failingStore{err: boom})

	_, err := r.Resolve(context.Background(), Attributes{Email: "alice@example.com"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected store error, got %v", err)
	}
	if errors.Is(err, ErrCreateConflictExhausted) {
		t.Fatal("store failure must not look like a conflict")
	}
}

func TestResolveHonorsCanceledContext(t *testing.T) {
	r, _ := NewResolver(NewMemoryStore())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := r.Resolve(ctx, Attributes{Email: "alice@example.com"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestExtractEmailReasons(t *testing.T) {
	_, err := ExtractEmail("")
	var ae AttributeError
	if !errors.As(err, &ae) || ae.Reason != "E-Mail is blank." {
		t.Fatalf("expected blank reason, got %v", err)
	}
	_, err = ExtractEmail("nope")
	if !errors.As(err, &ae) || ae.Reason != "E-Mail is invalid." {
		t.Fatalf("expected invalid reason, got %v", err)
	}
	got, err := ExtractEmail("  Mixed.Case@Example.COM ")
	if err != nil || got != "mixed.case@example.com" {
		t.Fatalf("unexpected normalize result %q, %v", got, err)
	}
}

// racingStore holds every first lookup until the test releases the gate,
// so all workers miss and race on Create.
type racingStore struct {
	*MemoryStore
	gate      sync.WaitGroup
	misses    atomic.Int32
	conflicts atomic.Int32
	released  atomic.Bool
}

func (s *racingStore) FindByEmail(ctx context.Context, email string) (*Identity, error) {
	got, err := s.MemoryStore.FindByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) && !s.released.Load() {
		s.misses.Add(1)
		s.gate.Wait()
	}
	return got, err
}

func (s *racingStore) Create(ctx context.Context, in Identity) (*Identity, error) {
	s.released.Store(true)
	out, err := s.MemoryStore.Create(ctx, in)
	if IsConflict(err) {
		s.conflicts.Add(1)
	}
	return out, err
}

func (s *racingStore) waitForMisses(n int32) {
	for s.misses.Load() < n {
		runtime.Gosched()
	}
}

type alwaysConflictStore struct {
	creates int
}

func (s *alwaysConflictStore) FindByEmail(context.Context, string) (*Identity, error) {
	return nil, ErrNotFound
}

func (s *alwaysConflictStore) Create(context.Context, Identity) (*Identity, error) {
	s.creates++
	return nil, ConflictError{Op: "test", Field: "email"}
}

type failingStore struct {
	err error
}

func (s *failingStore) FindByEmail(context.Context, string) (*Identity, error) {
	return nil, s.err
}

func (s *failingStore) Create(context.Context, Identity) (*Identity, error) {
	return nil, s.err
}

func TestResolveCreateHookFiresOnce(t *testing.T) {
	var created int
	r, _ := NewResolver(NewMemoryStore(), WithCreateHook(func(*Identity) { created++ }))

	for i := 0; i < 3; i++ {
		if _, err := r.Resolve(context.Background(), Attributes{Email: "once@example.com"}); err != nil {
			t.Fatalf("resolve %d: %v", i, err)
		}
	}
	if created != 1 {
		t.Fatalf("expected one create callback, got %d", created)
	}
}
