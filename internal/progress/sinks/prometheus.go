package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/a11y-crawler/internal/progress"
)

// PrometheusSink turns progress events into Prometheus collectors.
type PrometheusSink struct {
	runsStarted   prometheus.Counter
	runsCompleted prometheus.Counter
	runsActive    prometheus.Gauge
	runDuration   prometheus.Histogram

	pageStages    *prometheus.CounterVec
	pageSkips     *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	linksFound    *prometheus.CounterVec
	console       *prometheus.CounterVec

	tracker *runTracker
}

// NewPrometheusSink registers the collectors with reg (the default registerer
// when nil).
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "a11y_runs_started_total",
			Help: "Crawl runs started.",
		}),
		runsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "a11y_runs_completed_total",
			Help: "Crawl runs completed.",
		}),
		runsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "a11y_runs_active",
			Help: "Crawl runs in progress.",
		}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "a11y_run_duration_seconds",
			Help:    "Wall time per completed crawl run.",
			Buckets: []float64{10, 30, 60, 300, 600, 1800, 3600, 7200},
		}),
		pageStages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "a11y_page_stages_total",
			Help: "Pages reaching each pipeline stage, by site.",
		}, []string{"site", "stage"}),
		pageSkips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "a11y_page_skips_total",
			Help: "Pages skipped, by site and reason.",
		}, []string{"site", "reason"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "a11y_page_stage_duration_seconds",
			Help:    "Time spent reaching each pipeline stage.",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		}, []string{"stage"}),
		linksFound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "a11y_links_discovered_total",
			Help: "Links discovered in rendered pages, by site.",
		}, []string{"site"}),
		console: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "a11y_console_messages_total",
			Help: "Console messages mirrored from pages, by level.",
		}, []string{"level"}),
		tracker: newRunTracker(),
	}
	for _, c := range []prometheus.Collector{
		s.runsStarted, s.runsCompleted, s.runsActive, s.runDuration,
		s.pageStages, s.pageSkips, s.stageDuration, s.linksFound, s.console,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors. Safe for concurrent use.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageRunStart:
		s.runsStarted.Inc()
		if s.tracker.start(evt.RunID) {
			s.runsActive.Inc()
		}
	case progress.StageRunDone:
		s.runsCompleted.Inc()
		if evt.Dur > 0 {
			s.runDuration.Observe(evt.Dur.Seconds())
		}
		if s.tracker.complete(evt.RunID) {
			s.runsActive.Dec()
		}
	case progress.StageConsole:
		level := evt.Reason
		if level == "" {
			level = "log"
		}
		s.console.WithLabelValues(level).Inc()
	case progress.StageSkipped:
		s.pageSkips.WithLabelValues(evt.Site, evt.Reason).Inc()
	default:
		s.pageStages.WithLabelValues(evt.Site, string(evt.Stage)).Inc()
		if evt.Dur > 0 {
			s.stageDuration.WithLabelValues(string(evt.Stage)).Observe(evt.Dur.Seconds())
		}
		if evt.Stage == progress.StageLinksExpanded && evt.Links > 0 {
			s.linksFound.WithLabelValues(evt.Site).Add(float64(evt.Links))
		}
	}
}

// Close is a no-op.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

type runTracker struct {
	mu      sync.Mutex
	running map[uuid.UUID]struct{}
}

func newRunTracker() *runTracker {
	return &runTracker{running: make(map[uuid.UUID]struct{})}
}

func (t *runTracker) start(id uuid.UUID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; ok {
		return false
	}
	t.running[id] = struct{}{}
	return true
}

func (t *runTracker) complete(id uuid.UUID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; !ok {
		return false
	}
	delete(t.running, id)
	return true
}
