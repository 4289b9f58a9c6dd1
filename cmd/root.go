package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/a11y-crawler/internal/logging"
)

type rootOptions struct {
	configFile  string
	development bool
	logLevel    string
}

// newRootCmd creates the root command and its subcommands.
func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "a11y-crawler",
		Short: "Crawl websites and record accessibility evaluation reports.",
		Long: `a11y-crawler renders pages in headless Chrome, runs an in-page
accessibility audit on each one, normalizes the report into the legacy
record shape, and persists it to the configured sinks.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (yaml, json or toml)")
	cmd.PersistentFlags().BoolVar(&opts.development, "dev", false, "human-readable development logging")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "minimum log level (debug, info, warn, error)")

	cmd.AddCommand(newCrawlCmd(opts))
	cmd.AddCommand(newNormalizeCmd())
	return cmd
}

// newLogger honors the --dev and --log-level flags over the config file.
func (o *rootOptions) newLogger(cmd *cobra.Command, development bool, level string) (*zap.Logger, error) {
	if cmd.Flags().Changed("dev") {
		development = o.development
	}
	if o.logLevel != "" {
		level = o.logLevel
	}
	return logging.New(logging.Options{Development: development, Level: level})
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
