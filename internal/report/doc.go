// Package report forwards authentication failure diagnostics to a sink
// off the request path.
//
// # Components
//
//   - [Sink]: event consumer (zap logger, channel, JSON writer, no-op).
//   - [Dispatcher]: buffered async fan-out with optional drop-on-full.
//
// Events carry the fine-grained failure cause that callers never see.
// A slow or failing sink can delay or drop events but cannot change the
// outcome of the request that produced them.
package report
