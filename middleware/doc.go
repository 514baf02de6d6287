// Package middleware exposes net/http adapters around jwtsession.Engine.
//
// # Guards
//
//   - [Guard]: bearer token authentication through Engine.Authenticate.
//   - [RequireSession]: session cookie authentication through Engine.LookupSession.
//
// Both inject their result into the request context and answer 401 with a
// fixed body on any failure. Guard answers 429 for a throttled client.
//
// # What this package must NOT do
//
//   - Parse JWTs or touch Redis directly (the Engine does).
//   - Distinguish failure causes in responses.
package middleware
