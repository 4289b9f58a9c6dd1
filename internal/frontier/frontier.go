// Package frontier holds the crawl queue, the page budget, and link scoping.
package frontier

import (
	"context"
	"errors"
	"sync"

	"github.com/JakeFAU/a11y-crawler/internal/crawler"
)

// ErrDrained is returned by Next when no work is queued or in flight, or the
// frontier was closed.
var ErrDrained = errors.New("frontier drained")

// Frontier is a FIFO of URLs to visit. Every URL is admitted at most once
// for the life of the frontier.
type Frontier struct {
	mu       sync.Mutex
	queue    []crawler.Item
	seen     map[string]struct{}
	inflight int
	closed   bool
	wake     chan struct{}
}

// New returns an empty frontier.
func New() *Frontier {
	return &Frontier{
		seen: make(map[string]struct{}),
		wake: make(chan struct{}),
	}
}

// Add enqueues item unless its normalized URL was seen before. It reports
// whether the item was enqueued.
func (f *Frontier) Add(item crawler.Item) bool {
	key, err := NormalizeURL(item.URL)
	if err != nil {
		return false
	}
	item.URL = key

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false
	}
	if _, dup := f.seen[key]; dup {
		return false
	}
	f.seen[key] = struct{}{}
	f.queue = append(f.queue, item)
	f.broadcastLocked()
	return true
}

// Next blocks until an item is available and marks it in flight. Callers
// must call Done for every item returned.
func (f *Frontier) Next(ctx context.Context) (crawler.Item, error) {
	for {
		f.mu.Lock()
		switch {
		case f.closed:
			f.mu.Unlock()
			return crawler.Item{}, ErrDrained
		case len(f.queue) > 0:
			item := f.queue[0]
			f.queue[0] = crawler.Item{}
			f.queue = f.queue[1:]
			f.inflight++
			f.mu.Unlock()
			return item, nil
		case f.inflight == 0:
			f.mu.Unlock()
			return crawler.Item{}, ErrDrained
		}
		wake := f.wake
		f.mu.Unlock()

		select {
		case <-ctx.Done():
			return crawler.Item{}, ctx.Err()
		case <-wake:
		}
	}
}

// Done marks one in-flight item finished.
func (f *Frontier) Done() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.inflight > 0 {
		f.inflight--
	}
	f.broadcastLocked()
}

// Close stops the frontier; pending and future Next calls return ErrDrained.
func (f *Frontier) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	f.broadcastLocked()
}

// Len reports queued (not in-flight) items.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue)
}

// Seen reports how many distinct URLs were admitted.
func (f *Frontier) Seen() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.seen)
}

func (f *Frontier) broadcastLocked() {
	close(f.wake)
	f.wake = make(chan struct{})
}
