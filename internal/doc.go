// Package internal contains helpers private to jwtsession.
//
// # Sub-packages
//
//   - config: environment-driven process configuration
//   - logger: zap logger construction
//   - rate: Redis fixed-window failure counters
//   - report: async diagnostic event dispatch (Dispatcher + Sink implementations)
//
// # What this package must NOT do
//
//   - Export types that appear in the public jwtsession API.
package internal
