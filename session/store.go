package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps any transport or server failure.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrNotFound is returned when a session is missing or expired.
var ErrNotFound = errors.New("session not found")

// replaceSessionScript drops every session indexed for the identity, then
// writes the new record and a fresh one-member index with the same expiry.
//
// KEYS[1] identity index, KEYS[2] new session key
// ARGV[1] session id, ARGV[2] encoded record, ARGV[3] ttl ms, ARGV[4] session key prefix
const replaceSessionScript = `
local old = redis.call("SMEMBERS", KEYS[1])
local removed = 0
for _, sid in ipairs(old) do
  removed = removed + redis.call("DEL", ARGV[4] .. sid)
end
redis.call("DEL", KEYS[1])
redis.call("SET", KEYS[2], ARGV[2], "PX", ARGV[3])
redis.call("SADD", KEYS[1], ARGV[1])
redis.call("PEXPIRE", KEYS[1], ARGV[3])
return removed
`

var replaceSessionLua = redis.NewScript(replaceSessionScript)

// KEYS[1] identity index; ARGV[1] session key prefix
const destroySessionsScript = `
local old = redis.call("SMEMBERS", KEYS[1])
local removed = 0
for _, sid in ipairs(old) do
  removed = removed + redis.call("DEL", ARGV[1] .. sid)
end
redis.call("DEL", KEYS[1])
return removed
`

var destroySessionsLua = redis.NewScript(destroySessionsScript)

// Store is the Redis expiring store for session records.
type Store struct {
	redis  *redis.Client
	prefix string
}

// NewStore creates a session [Store] backed by the given Redis client.
// prefix sets the Redis key namespace.
func NewStore(redis *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = "jws"
	}
	return &Store{
		redis:  redis,
		prefix: prefix,
	}
}

func (s *Store) sessionPrefix() string {
	return s.prefix + ":s:"
}

func (s *Store) key(sessionID string) string {
	return s.sessionPrefix() + sessionID
}

func (s *Store) identityKey(identityID string) string {
	return s.prefix + ":u:" + identityID
}

// Replace stores rec with ttl and atomically removes every other session of
// rec.IdentityID. It returns how many live prior sessions were removed.
//
//	Performance: 1 EVALSHA.
func (s *Store) Replace(ctx context.Context, rec *Record, ttl time.Duration) (int, error) {
	if ttl < time.Millisecond {
		return 0, fmt.Errorf("session ttl %v below 1ms", ttl)
	}
	data, err := Encode(rec)
	if err != nil {
		return 0, err
	}

	removed, err := replaceSessionLua.Run(
		ctx,
		s.redis,
		[]string{s.identityKey(rec.IdentityID), s.key(rec.SessionID)},
		rec.SessionID,
		data,
		ttl.Milliseconds(),
		s.sessionPrefix(),
	).Int()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return removed, nil
}

// DeleteAllForIdentity removes every session of identityID and its index.
// It returns the number of live sessions deleted; a missing index is 0.
//
//	Performance: 1 EVALSHA.
func (s *Store) DeleteAllForIdentity(ctx context.Context, identityID string) (int, error) {
	removed, err := destroySessionsLua.Run(
		ctx,
		s.redis,
		[]string{s.identityKey(identityID)},
		s.sessionPrefix(),
	).Int()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return removed, nil
}

// ActiveSessionIDs returns indexed session ids of identityID whose record
// still exists.
func (s *Store) ActiveSessionIDs(ctx context.Context, identityID string) ([]string, error) {
	ids, err := s.redis.SMembers(ctx, s.identityKey(identityID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(ids) == 0 {
		return []string{}, nil
	}

	pipe := s.redis.Pipeline()
	existsCmds := make([]*redis.IntCmd, len(ids))
	for i, sid := range ids {
		existsCmds[i] = pipe.Exists(ctx, s.key(sid))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	live := make([]string, 0, len(ids))
	for i, cmd := range existsCmds {
		n, cmdErr := cmd.Result()
		if cmdErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, cmdErr)
		}
		if n == 1 {
			live = append(live, ids[i])
		}
	}
	return live, nil
}

// Get fetches a live session by id. Expiry is the key's PX ttl; the
// stored ExpiresAt is informational.
//
//	Performance: 1 Redis GET.
func (s *Store) Get(ctx context.Context, sessionID string) (*Record, error) {
	data, err := s.redis.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	rec, err := Decode(data)
	if err != nil {
		return nil, err
	}
	rec.SessionID = sessionID
	return rec, nil
}

// TTL returns the server-side remaining lifetime of a session key.
func (s *Store) TTL(ctx context.Context, sessionID string) (time.Duration, error) {
	ttl, err := s.redis.PTTL(ctx, s.key(sessionID)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if ttl < 0 {
		return 0, ErrNotFound
	}
	return ttl, nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}
