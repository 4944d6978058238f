// Package progress provides the event primitives, non-blocking hub, and
// emitter interfaces the pipeline uses to report harvest progress. Events are
// batched on a background goroutine and fanned out to pluggable sinks such as
// Prometheus metrics or structured logs.
package progress
