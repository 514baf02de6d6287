// Package session provides the Redis-backed session lifecycle: at most one
// live session per identity, each with a server-enforced expiry.
//
// # Storage layout
//
// A session record lives at "<prefix>:s:<sessionID>" with a PX expiry. The
// identity index "<prefix>:u:<identityID>" is a Redis set holding the ids
// of that identity's sessions and carries the same expiry. Replacing and
// destroying sessions run as single Lua scripts, so concurrent creates for
// one identity serialize inside Redis and the last writer wins.
//
// The scripts touch session keys named in the index, which are not
// declared in KEYS, so [Store] takes a single-node *redis.Client rather
// than a cluster client.
//
// # Expiry
//
// Redis removes expired records and indexes. The package never sweeps.
//
// # What this package must NOT do
//
//   - Verify tokens or resolve identities.
//   - Import the root jwtsession package.
package session
