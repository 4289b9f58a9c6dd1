// Package memory keeps page records in process, for tests and dry runs.
package memory

import (
	"context"
	"sync"

	"github.com/JakeFAU/a11y-crawler/internal/crawler"
)

// Sink stores records in append order.
type Sink struct {
	mu      sync.RWMutex
	records []crawler.PageRecord
}

// New returns an empty Sink.
func New() *Sink {
	return &Sink{}
}

// Append stores the record.
func (s *Sink) Append(_ context.Context, record crawler.PageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return nil
}

// Records returns a copy of everything appended so far.
func (s *Sink) Records() []crawler.PageRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]crawler.PageRecord, len(s.records))
	copy(out, s.records)
	return out
}

// URLs lists the URL of every stored record.
func (s *Sink) URLs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r.URL)
	}
	return out
}
