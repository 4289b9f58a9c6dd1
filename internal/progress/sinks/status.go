package sinks

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JakeFAU/a11y-crawler/internal/progress"
)

// Status is a point-in-time summary of a crawl run.
type Status struct {
	RunID      uuid.UUID             `json:"run_id"`
	StartedAt  time.Time             `json:"started_at,omitempty"`
	FinishedAt time.Time             `json:"finished_at,omitempty"`
	Running    bool                  `json:"running"`
	Stages     map[string]int64      `json:"stages"`
	Skips      map[string]int64      `json:"skips"`
	Sites      map[string]SiteStatus `json:"sites"`
	LastURL    string                `json:"last_url,omitempty"`
	LastSeenAt time.Time             `json:"last_seen_at,omitempty"`
}

// SiteStatus tallies one host.
type SiteStatus struct {
	Dispatched int64 `json:"dispatched"`
	Persisted  int64 `json:"persisted"`
	Skipped    int64 `json:"skipped"`
}

// StatusBoard keeps running tallies of the most recent run for the status
// endpoint.
type StatusBoard struct {
	mu     sync.RWMutex
	status Status
}

// NewStatusBoard returns an empty board.
func NewStatusBoard() *StatusBoard {
	return &StatusBoard{status: emptyStatus(uuid.Nil)}
}

func emptyStatus(id uuid.UUID) Status {
	return Status{
		RunID:  id,
		Stages: make(map[string]int64),
		Skips:  make(map[string]int64),
		Sites:  make(map[string]SiteStatus),
	}
}

// Consume folds the batch into the board. A new run id resets the tallies.
func (b *StatusBoard) Consume(_ context.Context, batch []progress.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, evt := range batch {
		if evt.RunID != b.status.RunID {
			b.status = emptyStatus(evt.RunID)
		}
		b.apply(evt)
	}
	return nil
}

func (b *StatusBoard) apply(evt progress.Event) {
	st := &b.status
	switch evt.Stage {
	case progress.StageRunStart:
		st.StartedAt = evt.TS
		st.Running = true
		return
	case progress.StageRunDone:
		st.FinishedAt = evt.TS
		st.Running = false
		return
	case progress.StageConsole:
		return
	}

	st.Stages[string(evt.Stage)]++
	site := st.Sites[evt.Site]
	switch evt.Stage {
	case progress.StageDispatched:
		site.Dispatched++
	case progress.StagePersisted:
		site.Persisted++
	case progress.StageSkipped:
		site.Skipped++
		st.Skips[evt.Reason]++
	}
	st.Sites[evt.Site] = site
	if evt.URL != "" {
		st.LastURL = evt.URL
		st.LastSeenAt = evt.TS
	}
}

// Snapshot returns a deep copy of the current status.
func (b *StatusBoard) Snapshot() Status {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := b.status
	out.Stages = make(map[string]int64, len(b.status.Stages))
	for k, v := range b.status.Stages {
		out.Stages[k] = v
	}
	out.Skips = make(map[string]int64, len(b.status.Skips))
	for k, v := range b.status.Skips {
		out.Skips[k] = v
	}
	out.Sites = make(map[string]SiteStatus, len(b.status.Sites))
	for k, v := range b.status.Sites {
		out.Sites[k] = v
	}
	return out
}

// Close is a no-op.
func (b *StatusBoard) Close(context.Context) error {
	return nil
}
