// Package dispatcher fans a crawl run out over a pool of workers.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/a11y-crawler/internal/clock"
	"github.com/JakeFAU/a11y-crawler/internal/crawler"
	"github.com/JakeFAU/a11y-crawler/internal/progress"
	"github.com/JakeFAU/a11y-crawler/internal/worker"
)

// ErrNoSeeds is returned when no seed URL could be admitted.
var ErrNoSeeds = errors.New("no valid seed urls")

// Summary describes a finished run.
type Summary struct {
	RunID   uuid.UUID
	Pages   int
	Seen    int
	Elapsed time.Duration
}

// Dispatcher owns the workers of one run.
type Dispatcher struct {
	runID   uuid.UUID
	deps    worker.Deps
	workers []*worker.Worker
	logger  *zap.Logger
}

// New builds concurrency workers sharing deps.
func New(runID uuid.UUID, deps worker.Deps, cfg worker.Config, concurrency int, logger *zap.Logger) *Dispatcher {
	if concurrency <= 0 {
		concurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Events == nil {
		deps.Events = progress.Discard{}
	}
	if deps.Clock == nil {
		deps.Clock = clock.System{}
	}
	workers := make([]*worker.Worker, 0, concurrency)
	for i := range concurrency {
		workers = append(workers, worker.New(i, runID, deps, cfg, logger))
	}
	return &Dispatcher{runID: runID, deps: deps, workers: workers, logger: logger}
}

// Seed admits the seed URLs and reports how many were accepted.
func (d *Dispatcher) Seed(seeds []string) (int, error) {
	added := 0
	for _, s := range seeds {
		if d.deps.Frontier.Add(crawler.Item{URL: s}) {
			added++
			continue
		}
		d.logger.Warn("seed rejected", zap.String("url", s))
	}
	if added == 0 {
		return 0, ErrNoSeeds
	}
	return added, nil
}

// Run starts every worker and blocks until the frontier drains, the budget
// is spent, or ctx is canceled.
func (d *Dispatcher) Run(ctx context.Context) (Summary, error) {
	start := time.Now()
	d.deps.Events.Emit(progress.Event{RunID: d.runID, TS: d.deps.Clock.Now(), Stage: progress.StageRunStart})
	d.logger.Info("crawl started",
		zap.Stringer("run_id", d.runID),
		zap.Int("workers", len(d.workers)),
		zap.Int("queued", d.deps.Frontier.Len()),
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, w := range d.workers {
		g.Go(func() error {
			return w.Run(gctx)
		})
	}
	err := g.Wait()

	summary := Summary{
		RunID:   d.runID,
		Seen:    d.deps.Frontier.Seen(),
		Elapsed: time.Since(start),
	}
	if d.deps.Budget != nil {
		summary.Pages = d.deps.Budget.Used()
	}
	d.deps.Events.Emit(progress.Event{
		RunID: d.runID,
		TS:    d.deps.Clock.Now(),
		Stage: progress.StageRunDone,
		Links: summary.Pages,
		Dur:   summary.Elapsed,
	})
	d.logger.Info("crawl finished",
		zap.Stringer("run_id", d.runID),
		zap.Int("pages", summary.Pages),
		zap.Int("seen", summary.Seen),
		zap.Duration("elapsed", summary.Elapsed),
	)
	if err != nil {
		return summary, fmt.Errorf("run workers: %w", err)
	}
	return summary, nil
}
