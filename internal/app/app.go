// Package app builds a crawl run from configuration and owns the lifetime of
// every long-lived dependency it creates.
package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/a11y-crawler/internal/browser"
	"github.com/JakeFAU/a11y-crawler/internal/config"
	"github.com/JakeFAU/a11y-crawler/internal/crawler"
	"github.com/JakeFAU/a11y-crawler/internal/dispatcher"
	"github.com/JakeFAU/a11y-crawler/internal/evaluate"
	"github.com/JakeFAU/a11y-crawler/internal/frontier"
	"github.com/JakeFAU/a11y-crawler/internal/id"
	"github.com/JakeFAU/a11y-crawler/internal/logging"
	"github.com/JakeFAU/a11y-crawler/internal/metrics"
	"github.com/JakeFAU/a11y-crawler/internal/policy/ratelimit"
	"github.com/JakeFAU/a11y-crawler/internal/preflight"
	"github.com/JakeFAU/a11y-crawler/internal/progress"
	progresssinks "github.com/JakeFAU/a11y-crawler/internal/progress/sinks"
	"github.com/JakeFAU/a11y-crawler/internal/report"
	"github.com/JakeFAU/a11y-crawler/internal/server"
	"github.com/JakeFAU/a11y-crawler/internal/sink"
	gcssink "github.com/JakeFAU/a11y-crawler/internal/sink/gcs"
	localsink "github.com/JakeFAU/a11y-crawler/internal/sink/local"
	memorysink "github.com/JakeFAU/a11y-crawler/internal/sink/memory"
	pgsink "github.com/JakeFAU/a11y-crawler/internal/sink/postgres"
	pubsubsink "github.com/JakeFAU/a11y-crawler/internal/sink/pubsub"
	"github.com/JakeFAU/a11y-crawler/internal/telemetry"
	"github.com/JakeFAU/a11y-crawler/internal/worker"
)

// ServiceName identifies the process in traces.
const ServiceName = "a11y-crawler"

// Version is stamped at build time.
var Version = "dev"

// App holds the dependencies of one crawl run.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	runID    uuid.UUID
	hub      *progress.Hub
	status   *progresssinks.StatusBoard
	browser  crawler.Browser
	closeBr  func()
	sink     crawler.Sink
	dispatch *dispatcher.Dispatcher
	server   *server.Server
	tracer   *sdktrace.TracerProvider
}

// Option overrides a dependency Build would otherwise create.
type Option func(*options)

type options struct {
	browser    crawler.Browser
	evaluator  crawler.Evaluator
	sink       crawler.Sink
	registerer prometheus.Registerer
	ids        id.Generator
}

// WithBrowser replaces the chromedp browser.
func WithBrowser(b crawler.Browser) Option {
	return func(o *options) { o.browser = b }
}

// WithEvaluator replaces the in-page evaluator.
func WithEvaluator(e crawler.Evaluator) Option {
	return func(o *options) { o.evaluator = e }
}

// WithSink replaces the configured sink backends.
func WithSink(s crawler.Sink) Option {
	return func(o *options) { o.sink = s }
}

// WithRegisterer registers run metrics somewhere other than the default
// Prometheus registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithIDs sets the run id source.
func WithIDs(g id.Generator) Option {
	return func(o *options) { o.ids = g }
}

// Build creates every dependency of a run. On error, anything already
// created is released.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (_ *App, err error) {
	o := options{registerer: prometheus.DefaultRegisterer, ids: id.V7{}}
	for _, opt := range opts {
		opt(&o)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()

	runID, err := o.ids.NewID()
	if err != nil {
		return nil, fmt.Errorf("run id: %w", err)
	}
	a := &App{cfg: cfg, runID: runID, logger: logging.ForRun(logger, runID)}
	defer func() {
		if err != nil {
			if closeErr := a.Close(context.WithoutCancel(ctx)); closeErr != nil {
				a.logger.Warn("cleanup after failed build", zap.Error(closeErr))
			}
		}
	}()

	a.tracer, err = telemetry.InitTracerProvider(ctx, telemetry.Options{ServiceName: ServiceName, Version: Version})
	if err != nil {
		return nil, fmt.Errorf("tracer init failed: %w", err)
	}

	if err = a.setupProgress(ctx, o.registerer); err != nil {
		return nil, err
	}

	a.sink = o.sink
	if a.sink == nil {
		if a.sink, err = buildSink(ctx, cfg.Sink, a.logger); err != nil {
			return nil, err
		}
	}

	a.browser = o.browser
	if a.browser == nil {
		if err = a.setupBrowser(); err != nil {
			return nil, err
		}
	}

	evaluator := o.evaluator
	if evaluator == nil {
		evaluator = evaluate.New(evaluate.Config{
			Request: evaluate.Request{
				Ruleset:  cfg.Evaluation.Ruleset,
				Level:    cfg.Evaluation.Level,
				Scope:    cfg.Evaluation.Scope,
				RuleList: cfg.Evaluation.RuleList,
			},
			CapabilityTimeout: cfg.Evaluation.CapabilityTimeout,
			PollInterval:      cfg.Evaluation.PollInterval,
			SettleDelay:       cfg.Evaluation.SettleDelay,
			MaxUnwrapLayers:   cfg.Evaluation.MaxUnwrapLayers,
		}, a.logger.Named("evaluate"))
	}

	deps, err := a.workerDeps(evaluator)
	if err != nil {
		return nil, err
	}
	a.dispatch = dispatcher.New(runID, deps, workerConfig(cfg), cfg.Crawler.Concurrency, a.logger.Named("dispatcher"))
	if _, err = a.dispatch.Seed(cfg.Crawler.Seeds); err != nil {
		return nil, fmt.Errorf("seed frontier: %w", err)
	}

	if cfg.Server.Enabled {
		a.server = server.New(a.status, a.logger.Named("http"))
	}

	a.logger.Info("crawl run built",
		zap.Strings("seeds", cfg.Crawler.Seeds),
		zap.Int("max_pages", cfg.Crawler.MaxPages),
		zap.Int("concurrency", cfg.Crawler.Concurrency),
		zap.Strings("sinks", cfg.Sink.Kinds()),
		zap.Bool("enqueue_links", cfg.Crawler.EnqueueLinks),
	)
	return a, nil
}

// RunID identifies this run in events, logs and metrics.
func (a *App) RunID() uuid.UUID {
	return a.runID
}

// Status returns the live status board.
func (a *App) Status() *progresssinks.StatusBoard {
	return a.status
}

// Run crawls until the frontier drains, the page budget is spent, or ctx is
// canceled. The status server, when enabled, lives for the duration of the
// crawl.
func (a *App) Run(ctx context.Context) (dispatcher.Summary, error) {
	if a.server == nil {
		return a.dispatch.Run(ctx)
	}

	srvCtx, stopServer := context.WithCancel(ctx)
	defer stopServer()
	g, gctx := errgroup.WithContext(srvCtx)
	g.Go(func() error {
		return a.server.ListenAndServe(gctx, ":"+strconv.Itoa(a.cfg.Server.Port))
	})

	summary, err := a.dispatch.Run(ctx)
	stopServer()
	if srvErr := g.Wait(); srvErr != nil {
		err = errors.Join(err, srvErr)
	}
	return summary, err
}

// Close releases everything Build created, in reverse dependency order.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.closeBr != nil {
		a.closeBr()
	}
	if a.sink != nil {
		if err := sink.Close(ctx, a.sink); err != nil {
			errs = append(errs, fmt.Errorf("close sink: %w", err))
		}
	}
	if a.hub != nil {
		if err := a.hub.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close progress hub: %w", err))
		}
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer shutdown: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (a *App) setupProgress(ctx context.Context, reg prometheus.Registerer) error {
	promSink, err := progresssinks.NewPrometheusSink(reg)
	if err != nil {
		return fmt.Errorf("progress metrics: %w", err)
	}
	a.status = progresssinks.NewStatusBoard()
	a.hub = progress.NewHub(progress.Config{
		BaseContext: context.WithoutCancel(ctx),
		Logger:      a.logger.Named("progress_hub"),
	},
		progresssinks.NewLogSink(a.logger.Named("progress_log")),
		promSink,
		a.status,
	)
	return nil
}

func (a *App) setupBrowser() error {
	script, err := browser.LoadLibrary(a.cfg.Browser.LibraryPath)
	if err != nil {
		return err
	}
	if script == "" {
		a.logger.Warn("no evaluation library configured; pages must provide it themselves")
	}
	b, err := browser.New(browser.Config{
		MaxParallel:       a.cfg.Browser.MaxParallel,
		UserAgent:         a.cfg.Crawler.UserAgent,
		NavigationTimeout: a.cfg.Browser.NavTimeout,
		LoadTimeout:       a.cfg.Browser.LoadTimeout,
		Headless:          a.cfg.Browser.Headless,
		Residential:       a.cfg.Proxy.Residential,
		Proxy:             a.cfg.Proxy.URL,
		LibraryScript:     script,
	}, a.logger.Named("browser"), a.forwardConsole)
	if err != nil {
		return fmt.Errorf("browser init failed: %w", err)
	}
	a.browser = b
	a.closeBr = b.Close
	return nil
}

// forwardConsole turns mirrored page console output into progress events.
func (a *App) forwardConsole(msg crawler.ConsoleMessage) {
	a.hub.Emit(consoleEvent(a.runID, msg))
}

func consoleEvent(runID uuid.UUID, msg crawler.ConsoleMessage) progress.Event {
	return progress.Event{
		RunID:  runID,
		TS:     msg.TS,
		Stage:  progress.StageConsole,
		Site:   metrics.SanitizeSite(msg.URL),
		URL:    msg.URL,
		Reason: msg.Level,
		Note:   msg.Text,
	}
}

func (a *App) workerDeps(evaluator crawler.Evaluator) (worker.Deps, error) {
	cfg := a.cfg
	deps := worker.Deps{
		Frontier:  frontier.New(),
		Budget:    frontier.NewBudget(cfg.Crawler.MaxPages),
		Scope:     frontier.NewHostScope(cfg.Crawler.Seeds, cfg.Crawler.SameHostOnly).Exclude(cfg.Crawler.ExcludeHosts...),
		Browser:   a.browser,
		Evaluator: evaluator,
		Sink:      a.sink,
		Events:    a.hub,
	}
	if cfg.Crawler.DomainQPS > 0 {
		deps.Limiter = ratelimit.New(ratelimit.Config{RPS: cfg.Crawler.DomainQPS, Burst: 1})
	}
	if cfg.Preflight.Enabled {
		pcfg := preflight.Config{
			UserAgent:     cfg.Crawler.UserAgent,
			RespectRobots: cfg.Preflight.RespectRobots,
			Timeout:       cfg.Preflight.Timeout,
		}
		if cfg.Proxy.Residential {
			pcfg.Proxy = cfg.Proxy.URL
		}
		checker, err := preflight.New(pcfg)
		if err != nil {
			return deps, fmt.Errorf("preflight init failed: %w", err)
		}
		deps.Checker = checker
	}
	return deps, nil
}

// buildSink creates one retrying backend per configured kind and fans out
// when there is more than one.
func buildSink(ctx context.Context, cfg config.SinkConfig, logger *zap.Logger) (_ crawler.Sink, err error) {
	var built sink.Fanout
	defer func() {
		if err != nil {
			_ = built.Close(context.WithoutCancel(ctx))
		}
	}()

	for _, kind := range cfg.Kinds() {
		backend, backendErr := newBackend(ctx, kind, cfg)
		if backendErr != nil {
			return nil, fmt.Errorf("%s sink init failed: %w", kind, backendErr)
		}
		logger.Info("sink configured", zap.String("kind", kind))
		built = append(built, sink.NewRetrying(backend, sink.RetryConfig{
			Name:       kind,
			MaxRetries: cfg.MaxRetries,
			Backoff:    cfg.RetryBackoff,
		}, logger.Named("sink")))
	}
	switch len(built) {
	case 0:
		return nil, fmt.Errorf("no sink configured")
	case 1:
		return built[0], nil
	default:
		return built, nil
	}
}

func newBackend(ctx context.Context, kind string, cfg config.SinkConfig) (crawler.Sink, error) {
	switch kind {
	case config.SinkMemory:
		return memorysink.New(), nil
	case config.SinkLocal:
		return localsink.New(localsink.Config{Path: cfg.Path})
	case config.SinkGCS:
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client: %w", err)
		}
		s, err := gcssink.New(client, gcssink.Config{Bucket: cfg.GCSBucket, Prefix: cfg.GCSPrefix})
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		return s, nil
	case config.SinkPostgres:
		return pgsink.New(ctx, pgsink.Config{DSN: cfg.PostgresDSN, Table: cfg.PostgresTable})
	case config.SinkPubSub:
		return pubsubsink.New(ctx, cfg.PubSubProject, cfg.PubSubTopic)
	default:
		return nil, fmt.Errorf("unknown sink kind %q", kind)
	}
}

func workerConfig(cfg config.Config) worker.Config {
	return worker.Config{
		EnqueueLinks: cfg.Crawler.EnqueueLinks,
		Report:       report.Options{Destructive: cfg.Report.DestructiveCleanup},
		Legacy: report.LegacyOptions{
			URLEncodingParity: cfg.Report.URLEncodingParity,
			WrapResults:       cfg.Report.WrapResults,
		},
	}
}
