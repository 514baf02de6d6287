package jwtsession

import (
	"time"

	"github.com/MrEthical07/jwtsession/identity"
	"github.com/MrEthical07/jwtsession/jwt"
)

// Identity is the durable principal a token resolves to.
type Identity = identity.Identity

// IdentityStore is the persistence boundary for identities.
type IdentityStore = identity.Store

// Claims is the verified token payload.
type Claims = jwt.Claims

// AuthResult is returned by [Engine.Authenticate].
//
// Email is always set. Identity is set only when
// [ResultConfig.ReturnIdentity] is enabled.
type AuthResult struct {
	Email    string
	Identity *Identity
	Claims   *Claims
}

// SessionResult describes a freshly created session.
type SessionResult struct {
	SessionID  string
	IdentityID string
	TTL        time.Duration
	ExpiresAt  time.Time
	// Replaced is the number of live sessions this create removed.
	Replaced int
}

// SessionInfo is a live session looked up by id.
type SessionInfo struct {
	SessionID  string
	IdentityID string
	CreatedAt  time.Time
	ExpiresAt  time.Time
}
