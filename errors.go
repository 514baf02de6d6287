package jwtsession

import (
	"errors"

	"github.com/MrEthical07/jwtsession/identity"
)

var (
	// ErrUnauthorized is the single externally visible authentication failure.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrTokenInvalid marks a token that failed verification.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrIdentityAttributeInvalid marks claims that cannot be linked to an identity.
	ErrIdentityAttributeInvalid = errors.New("identity attribute invalid")
	// ErrIdentityCreateConflict marks a lost identity creation race. A custom
	// [IdentityStore] returns it (or wraps it) from Create when the email is
	// already taken; the engine re-reads and retries, so callers never see it.
	ErrIdentityCreateConflict = identity.ErrConflict
	// ErrIdentityCreateConflictExhausted marks a creation race that did not converge.
	ErrIdentityCreateConflictExhausted = errors.New("identity create conflict retries exhausted")
	// ErrIdentityBackend marks an identity store failure other than a conflict.
	ErrIdentityBackend = errors.New("identity backend unavailable")
	// ErrSessionInvalidTTL is returned when the token expires before a session could start.
	ErrSessionInvalidTTL = errors.New("session ttl must be positive")
	// ErrSessionBackend is returned when the session store fails.
	ErrSessionBackend = errors.New("session backend unavailable")
	// ErrSessionNotFound is returned by LookupSession for missing or expired sessions.
	ErrSessionNotFound = errors.New("session not found")
	// ErrThrottled is returned while a client is over its failure budget.
	// It is not an [AuthError].
	ErrThrottled = errors.New("too many failed attempts")
	// ErrEngineNotReady is returned when a nil or partially built Engine is used.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// AuthError is the error returned for every authentication failure.
//
// Kind names the failure class and is matched by errors.Is. The cause is
// kept unexported and only forwarded to the report sink, so Error and
// Unwrap never reveal it.
type AuthError struct {
	Kind   error
	detail error
}

func newAuthError(kind, detail error) *AuthError {
	return &AuthError{Kind: kind, detail: detail}
}

func (e *AuthError) Error() string {
	return ErrUnauthorized.Error()
}

// Is reports a match for ErrUnauthorized and for Kind.
func (e *AuthError) Is(target error) bool {
	if e == nil {
		return false
	}
	return target == ErrUnauthorized || (e.Kind != nil && target == e.Kind)
}

func kindName(kind error) string {
	switch kind {
	case ErrTokenInvalid:
		return "token_invalid"
	case ErrIdentityAttributeInvalid:
		return "identity_attribute_invalid"
	case ErrIdentityCreateConflictExhausted:
		return "identity_create_conflict_exhausted"
	case ErrIdentityBackend:
		return "identity_backend"
	case ErrSessionBackend:
		return "session_backend"
	case ErrSessionInvalidTTL:
		return "session_invalid_ttl"
	case ErrThrottled:
		return "throttled"
	default:
		return "unknown"
	}
}
