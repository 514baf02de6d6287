package session

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidTTL is returned when the computed session lifetime is not
// positive, usually because the token expires before the session could be
// written.
var ErrInvalidTTL = errors.New("session ttl must be positive")

// Manager creates and destroys sessions, keeping at most one live session
// per identity.
type Manager struct {
	store  *Store
	maxTTL time.Duration
	now    func() time.Time
}

// NewManager returns a Manager over store. maxTTL caps every session
// lifetime and must be positive.
func NewManager(store *Store, maxTTL time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("session: nil store")
	}
	if maxTTL <= 0 {
		return nil, errors.New("session: max ttl must be > 0")
	}
	return &Manager{
		store:  store,
		maxTTL: maxTTL,
		now:    time.Now,
	}, nil
}

// MaxTTL returns the configured lifetime cap.
func (m *Manager) MaxTTL() time.Duration {
	return m.maxTTL
}

// TTLFor returns min(remaining, MaxTTL). Anything below one millisecond is
// [ErrInvalidTTL], since Redis PX cannot express it.
func (m *Manager) TTLFor(remaining time.Duration) (time.Duration, error) {
	ttl := remaining
	if ttl > m.maxTTL {
		ttl = m.maxTTL
	}
	if ttl < time.Millisecond {
		return 0, fmt.Errorf("%w: got %v", ErrInvalidTTL, ttl)
	}
	return ttl.Truncate(time.Millisecond), nil
}

// Created is the outcome of [Manager.Create].
type Created struct {
	Record *Record
	// TTL is the expiry written to Redis.
	TTL time.Duration
	// Replaced counts the live sessions removed by this create.
	Replaced int
}

// Create replaces every session of identityID with a fresh one whose
// lifetime is min(remaining, MaxTTL). On error no new session exists and
// prior sessions are untouched.
func (m *Manager) Create(ctx context.Context, identityID string, remaining time.Duration) (*Created, error) {
	if identityID == "" {
		return nil, errors.New("session: empty identity id")
	}
	ttl, err := m.TTLFor(remaining)
	if err != nil {
		return nil, err
	}

	sid, err := NewID()
	if err != nil {
		return nil, err
	}

	now := m.now()
	rec := &Record{
		SessionID:  sid,
		IdentityID: identityID,
		CreatedAt:  now.UnixMilli(),
		ExpiresAt:  now.Add(ttl).UnixMilli(),
	}
	replaced, err := m.store.Replace(ctx, rec, ttl)
	if err != nil {
		return nil, err
	}
	return &Created{Record: rec, TTL: ttl, Replaced: replaced}, nil
}

// Destroy removes every session of identityID and reports how many were
// live. An identity without sessions yields 0 and no error.
func (m *Manager) Destroy(ctx context.Context, identityID string) (int, error) {
	if identityID == "" {
		return 0, nil
	}
	return m.store.DeleteAllForIdentity(ctx, identityID)
}

// IDs lists the live session ids of identityID.
func (m *Manager) IDs(ctx context.Context, identityID string) ([]string, error) {
	return m.store.ActiveSessionIDs(ctx, identityID)
}

// Lookup returns the live session with the given id. Malformed ids are
// [ErrNotFound] without a Redis round trip.
func (m *Manager) Lookup(ctx context.Context, sessionID string) (*Record, error) {
	if !ValidID(sessionID) {
		return nil, ErrNotFound
	}
	return m.store.Get(ctx, sessionID)
}
