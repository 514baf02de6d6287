// Package httpapi serves the session endpoints over chi.
//
//	POST   /api/v2/sessions  create a session from a bearer token (201, 401)
//	DELETE /api/v2/sessions  destroy the caller's sessions (200, 401)
//	GET    /api/v2/me        authenticated email, optionally the identity
//	GET    /api/v2/session   the live session named by the session cookie
//	GET    /healthz, /readyz liveness and Redis readiness
//	GET    /metrics          Prometheus exposition, when a gatherer is set
//
// Tokens are read from the Authorization header or the "token" form field.
// Throttled clients get 429 and session backend failures 503.
package httpapi
