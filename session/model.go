package session

import "time"

// Record is a stored session: an opaque id bound to an identity.
type Record struct {
	SessionID  string
	IdentityID string

	// CreatedAt and ExpiresAt are Unix milliseconds.
	CreatedAt int64
	ExpiresAt int64
}

// Expires returns ExpiresAt as a time.
func (r *Record) Expires() time.Time {
	return time.UnixMilli(r.ExpiresAt)
}

// TTL returns the lifetime left at now, never negative.
func (r *Record) TTL(now time.Time) time.Duration {
	if r == nil {
		return 0
	}
	left := r.Expires().Sub(now)
	if left < 0 {
		return 0
	}
	return left
}
