// Package sinks holds the progress.Sink implementations: structured logs,
// Prometheus collectors, and an in-memory status board.
package sinks
