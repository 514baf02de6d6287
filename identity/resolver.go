package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxAttempts bounds the create/re-read loop.
const DefaultMaxAttempts = 3

// Resolver finds or creates the identity linked to a set of verified claims.
type Resolver struct {
	store       Store
	maxAttempts int
	now         func() time.Time
	onConflict  func(email string, attempt int)
	onCreate    func(created *Identity)
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithMaxAttempts sets how many create attempts are made before giving up.
// Values below 1 are ignored.
func WithMaxAttempts(n int) ResolverOption {
	return func(r *Resolver) {
		if n >= 1 {
			r.maxAttempts = n
		}
	}
}

// WithConflictHook installs a callback invoked after each create conflict,
// before the re-read. Used for metrics.
func WithConflictHook(fn func(email string, attempt int)) ResolverOption {
	return func(r *Resolver) {
		r.onConflict = fn
	}
}

// WithCreateHook installs a callback invoked once for every identity this
// Resolver actually created.
func WithCreateHook(fn func(created *Identity)) ResolverOption {
	return func(r *Resolver) {
		r.onCreate = fn
	}
}

// WithClock overrides the CreatedAt clock.
func WithClock(now func() time.Time) ResolverOption {
	return func(r *Resolver) {
		if now != nil {
			r.now = now
		}
	}
}

// NewResolver builds a Resolver over store.
func NewResolver(store Store, opts ...ResolverOption) (*Resolver, error) {
	if store == nil {
		return nil, errors.New("identity: nil store")
	}
	r := &Resolver{
		store:       store,
		maxAttempts: DefaultMaxAttempts,
		now:         time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r, nil
}

// Resolve returns the identity for attrs.Email, creating it if absent.
//
// A create that loses the uniqueness race is followed by a fresh lookup.
// Other store failures are returned as-is (wrapped). After maxAttempts
// conflicting creates the result is [ErrCreateConflictExhausted].
func (r *Resolver) Resolve(ctx context.Context, attrs Attributes) (*Identity, error) {
	email, err := ExtractEmail(attrs.Email)
	if err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		found, err := r.store.FindByEmail(ctx, email)
		if err == nil {
			return found, nil
		}
		if !IsNotFound(err) {
			return nil, fmt.Errorf("identity: find by email: %w", err)
		}

		created, err := r.store.Create(ctx, Identity{
			ID:        uuid.NewString(),
			Email:     email,
			UID:       attrs.UID,
			CreatedAt: r.now().UTC(),
		})
		if err == nil {
			if r.onCreate != nil {
				r.onCreate(created)
			}
			return created, nil
		}
		if !IsConflict(err) {
			return nil, fmt.Errorf("identity: create: %w", err)
		}
		if r.onConflict != nil {
			r.onConflict(email, attempt)
		}
	}

	return nil, errors.Join(ErrCreateConflictExhausted, ConflictError{Op: "identity.Resolve", Field: "email"})
}
