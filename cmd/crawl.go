// Package cmd defines the CLI commands of the a11y-crawler executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/a11y-crawler/internal/app"
	"github.com/JakeFAU/a11y-crawler/internal/config"
)

type crawlOptions struct {
	seeds     []string
	maxPages  int
	noEnqueue bool
	wrap      bool
	sinkKind  string
	serve     bool
}

func newCrawlCmd(root *rootOptions) *cobra.Command {
	opts := &crawlOptions{}
	cmd := &cobra.Command{
		Use:   "crawl [seed-url...]",
		Short: "Crawl from the configured seeds and persist one report per page",
		Long: `Starts a crawl run. Seeds come from the config file, the environment
(A11Y_CRAWLER_SEEDS), --seed flags or positional arguments. The run ends when
the frontier drains, the page budget is spent, or the process is interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.seeds = append(opts.seeds, args...)
			return runCrawl(cmd, root, opts)
		},
	}

	opts.bind(cmd)
	return cmd
}

func (o *crawlOptions) bind(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringSliceVar(&o.seeds, "seed", nil, "seed url (repeatable)")
	f.IntVar(&o.maxPages, "max-pages", 0, "page budget for the run (0 = unlimited)")
	f.BoolVar(&o.noEnqueue, "no-enqueue", false, "evaluate only the seeds")
	f.BoolVar(&o.wrap, "wrap", false, "persist results as a JSON string")
	f.StringVar(&o.sinkKind, "sink", "", "sink backend or comma separated list")
	f.BoolVar(&o.serve, "serve", false, "expose /healthz, /metrics and /v1/status while crawling")
}

// overrides maps explicitly set flags onto config keys.
func (o *crawlOptions) overrides(cmd *cobra.Command) map[string]any {
	out := map[string]any{}
	if len(o.seeds) > 0 {
		out["crawler.seeds"] = o.seeds
	}
	if cmd.Flags().Changed("max-pages") {
		out["crawler.max_pages"] = o.maxPages
	}
	if o.noEnqueue {
		out["crawler.enqueue_links"] = false
	}
	if cmd.Flags().Changed("wrap") {
		out["report.wrap_results"] = o.wrap
	}
	if o.sinkKind != "" {
		out["sink.kind"] = o.sinkKind
	}
	if cmd.Flags().Changed("serve") {
		out["server.enabled"] = o.serve
	}
	return out
}

func runCrawl(cmd *cobra.Command, root *rootOptions, opts *crawlOptions) error {
	cfg, err := config.Load(root.configFile, opts.overrides(cmd))
	if err != nil {
		return err
	}
	logger, err := root.newLogger(cmd, cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	run, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("build crawl: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
		defer cancel()
		if cerr := run.Close(closeCtx); cerr != nil {
			logger.Warn("shutdown incomplete", zap.Error(cerr))
		}
	}()

	summary, err := run.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run crawl: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "run %s: %d pages evaluated, %d urls seen in %s\n",
		summary.RunID, summary.Pages, summary.Seen, summary.Elapsed.Round(time.Millisecond))
	return nil
}
