// Package identity resolves verified token claims to a durable identity
// record, creating the record on first sight.
//
// # Creation race
//
// Two requests carrying a token for a not-yet-seen email may both miss the
// lookup and both attempt to create. The store's uniqueness constraint on
// the normalized email rejects the loser with a [ConflictError]; the
// [Resolver] then re-reads instead of failing. The re-read loop is bounded
// by [WithMaxAttempts] and ends in [ErrCreateConflictExhausted].
//
// Identities are never updated or deleted by this package.
package identity
