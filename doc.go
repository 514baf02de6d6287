// Package jwtsession authenticates bearer tokens against a durable identity
// store and manages one Redis-backed session per identity.
//
// A request flows through three steps. The token is verified by
// [jwt.Verifier]. Its claims are resolved to an identity by
// [identity.Resolver], which creates the identity on first sight and
// re-reads after losing a creation race. The session path then replaces
// any live session of that identity with a new one whose lifetime is the
// token's remaining validity, capped by [SessionConfig.MaxTTL].
//
// Engine methods are safe for concurrent use after [Builder.Build].
//
// # Errors
//
// Every authentication failure, whatever its cause, surfaces as an
// [*AuthError] that matches [ErrUnauthorized]. The underlying cause is sent
// to the configured report sink and never returned to the caller. Session
// backend failures and an unusable session lifetime are not
// authentication failures and are returned as [ErrSessionBackend] and
// [ErrSessionInvalidTTL]. A client over the optional failure budget gets
// [ErrThrottled] before its token is looked at.
//
// # What this package must NOT do
//
//   - Issue tokens.
//   - Expose Redis clients, store internals or the record encoding.
//   - Import httpapi or middleware (no import cycles).
package jwtsession
