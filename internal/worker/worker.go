// Package worker runs the per-page evaluation pipeline.
package worker

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/a11y-crawler/internal/clock"
	"github.com/JakeFAU/a11y-crawler/internal/crawler"
	"github.com/JakeFAU/a11y-crawler/internal/evaluate"
	"github.com/JakeFAU/a11y-crawler/internal/frontier"
	"github.com/JakeFAU/a11y-crawler/internal/id"
	"github.com/JakeFAU/a11y-crawler/internal/metrics"
	"github.com/JakeFAU/a11y-crawler/internal/progress"
	"github.com/JakeFAU/a11y-crawler/internal/report"
)

const tracerName = "github.com/JakeFAU/a11y-crawler/internal/worker"

// Config controls Worker behavior.
type Config struct {
	// EnqueueLinks admits discovered in-scope links to the frontier.
	EnqueueLinks bool
	Report       report.Options
	Legacy       report.LegacyOptions
}

// Deps are the collaborators shared by every worker of a run. Checker and
// Limiter are optional. IDs keys each page record and defaults to UUIDv7.
type Deps struct {
	Frontier  *frontier.Frontier
	Budget    *frontier.Budget
	Scope     *frontier.HostScope
	Browser   crawler.Browser
	Evaluator crawler.Evaluator
	Checker   crawler.Checker
	Limiter   crawler.Limiter
	Sink      crawler.Sink
	Events    progress.Emitter
	Clock     clock.Clock
	IDs       id.Generator
}

// Worker pulls items from the frontier and evaluates one page at a time.
type Worker struct {
	id     int
	runID  uuid.UUID
	deps   Deps
	cfg    Config
	logger *zap.Logger
	tracer trace.Tracer
}

// New constructs a Worker.
func New(workerID int, runID uuid.UUID, deps Deps, cfg Config, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Events == nil {
		deps.Events = progress.Discard{}
	}
	if deps.Clock == nil {
		deps.Clock = clock.System{}
	}
	if deps.IDs == nil {
		deps.IDs = id.V7{}
	}
	return &Worker{
		id:     workerID,
		runID:  runID,
		deps:   deps,
		cfg:    cfg,
		logger: logger.With(zap.Int("worker", workerID)),
		tracer: otel.Tracer(tracerName),
	}
}

// Run consumes frontier items until the frontier drains, the page budget is
// spent, or ctx is canceled. Only cancellation is returned as an error.
func (w *Worker) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		item, err := w.deps.Frontier.Next(ctx)
		if err != nil {
			if errors.Is(err, frontier.ErrDrained) {
				return nil
			}
			return err
		}
		if w.deps.Budget != nil && !w.deps.Budget.Acquire() {
			w.logger.Info("page budget spent; stopping dispatch",
				zap.Int("used", w.deps.Budget.Used()))
			w.deps.Frontier.Done()
			w.deps.Frontier.Close()
			return nil
		}
		w.visit(ctx, item)
	}
}

// page carries per-visit state through the pipeline.
type page struct {
	item  crawler.Item
	site  string
	url   string
	title string
	span  trace.Span
}

func (w *Worker) visit(ctx context.Context, item crawler.Item) {
	defer w.deps.Frontier.Done()
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	ctx, span := w.tracer.Start(ctx, "page",
		trace.WithAttributes(
			attribute.String("url", item.URL),
			attribute.Int("depth", item.Depth),
		))
	defer span.End()

	p := &page{item: item, site: metrics.SanitizeSite(item.URL), url: item.URL, span: span}
	w.emit(p, progress.StageDispatched, 0)

	if ok := w.preflight(ctx, p); !ok {
		return
	}

	start := time.Now()
	pg, err := w.deps.Browser.Open(ctx, item.URL)
	if err != nil {
		w.skip(p, crawler.SkipReasonLoad, err)
		return
	}
	defer pg.Close()
	if !pg.Loaded() {
		w.logger.Warn("load wait timed out; continuing", zap.String("url", item.URL))
	}
	if loc, err := pg.Location(ctx); err == nil && loc != "" {
		p.url = loc
	}
	if title, err := pg.Title(ctx); err != nil {
		w.logger.Warn("read title", zap.String("url", p.url), zap.Error(err))
	} else {
		p.title = title
	}
	w.stage(p, progress.StageLoaded, start)

	start = time.Now()
	if err := w.deps.Evaluator.WaitReady(ctx, pg); err != nil {
		w.skip(p, crawler.SkipReasonCapability, err)
		return
	}
	raw, err := w.deps.Evaluator.Invoke(ctx, pg)
	if err != nil {
		w.skip(p, evaluationReason(err), err)
		return
	}
	w.stage(p, progress.StageEvaluated, start)

	start = time.Now()
	container := report.NormalizeContainer(raw, w.cfg.Report)
	record, err := report.Finalize(container, report.PageInfo{URL: p.url, Title: p.title}, w.cfg.Legacy)
	if err != nil {
		w.skip(p, crawler.SkipReasonFinalize, err)
		return
	}
	if record.ID, err = w.deps.IDs.NewID(); err != nil {
		w.skip(p, crawler.SkipReasonFinalize, err)
		return
	}
	record.CreatedAt = w.deps.Clock.Now()
	w.stage(p, progress.StageNormalized, start)

	start = time.Now()
	if err := w.deps.Sink.Append(ctx, record); err != nil {
		w.skip(p, crawler.SkipReasonSink, err)
		return
	}
	w.stage(p, progress.StagePersisted, start)
	metrics.ObservePage(p.url, metrics.OutcomePersisted)

	w.expand(ctx, p, pg)
	w.emit(p, progress.StageDone, 0)
}

// preflight applies politeness and the HTTP check. It reports whether the
// page should proceed to the browser.
func (w *Worker) preflight(ctx context.Context, p *page) bool {
	if w.deps.Limiter != nil {
		if err := w.deps.Limiter.Wait(ctx, p.item.URL); err != nil {
			w.skip(p, crawler.SkipReasonRateLimit, err)
			return false
		}
	}
	if w.deps.Checker == nil {
		return true
	}
	res, err := w.deps.Checker.Check(ctx, p.item.URL)
	if err != nil {
		w.skip(p, crawler.SkipReasonPreflight, err)
		return false
	}
	if res.RobotsFallback {
		w.logger.Debug("robots.txt unavailable; assumed allow-all", zap.String("site", p.site))
	}
	return true
}

// expand collects the rendered page's links and, when enabled, admits the
// in-scope ones. Discovery failures are logged and otherwise ignored.
func (w *Worker) expand(ctx context.Context, p *page, pg crawler.Page) {
	start := time.Now()
	links, err := pg.Links(ctx)
	if err != nil {
		w.logger.Warn("collect links", zap.String("url", p.url), zap.Error(err))
		return
	}
	enqueued := 0
	if w.cfg.EnqueueLinks {
		for _, link := range links {
			if w.deps.Scope != nil && !w.deps.Scope.Allows(link) {
				continue
			}
			next := crawler.Item{URL: link, Depth: p.item.Depth + 1, Parent: p.item.URL}
			if w.deps.Frontier.Add(next) {
				enqueued++
			}
		}
	}
	p.span.SetAttributes(attribute.Int("links.found", len(links)), attribute.Int("links.enqueued", enqueued))
	w.emitLinks(p, len(links), enqueued, time.Since(start))
}

func evaluationReason(err error) string {
	if errors.Is(err, evaluate.ErrCapabilityTimeout) {
		return crawler.SkipReasonCapability
	}
	return crawler.SkipReasonEvaluation
}

func (w *Worker) skip(p *page, reason string, err error) {
	w.logger.Warn("page skipped",
		zap.String("url", p.item.URL),
		zap.String("reason", reason),
		zap.Error(err),
	)
	p.span.SetStatus(codes.Error, reason)
	p.span.RecordError(err)
	metrics.ObservePage(p.item.URL, metrics.OutcomeSkipped)
	w.deps.Events.Emit(progress.Event{
		RunID:  w.runID,
		TS:     w.deps.Clock.Now(),
		Stage:  progress.StageSkipped,
		Site:   p.site,
		URL:    p.item.URL,
		Reason: reason,
		Note:   err.Error(),
	})
}

func (w *Worker) stage(p *page, stage progress.Stage, start time.Time) {
	d := time.Since(start)
	metrics.ObserveStage(string(stage), d)
	w.emit(p, stage, d)
}

func (w *Worker) emit(p *page, stage progress.Stage, d time.Duration) {
	w.deps.Events.Emit(progress.Event{
		RunID: w.runID,
		TS:    w.deps.Clock.Now(),
		Stage: stage,
		Site:  p.site,
		URL:   p.url,
		Dur:   d,
	})
}

func (w *Worker) emitLinks(p *page, found, enqueued int, d time.Duration) {
	w.deps.Events.Emit(progress.Event{
		RunID: w.runID,
		TS:    w.deps.Clock.Now(),
		Stage: progress.StageLinksExpanded,
		Site:  p.site,
		URL:   p.url,
		Links: found,
		Dur:   d,
		Note:  enqueuedNote(enqueued),
	})
}

func enqueuedNote(n int) string {
	if n == 0 {
		return ""
	}
	return "enqueued=" + strconv.Itoa(n)
}
