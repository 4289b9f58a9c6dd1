// Package progress carries per-page pipeline events from crawl workers to
// observers. Workers emit through a non-blocking Hub that batches events on a
// background goroutine and fans each batch out to sinks (logs, Prometheus,
// the in-memory status board served over HTTP).
package progress
