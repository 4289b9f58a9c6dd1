package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/a11y-crawler/internal/report"
)

type normalizeOptions struct {
	url         string
	title       string
	destructive bool
	parity      bool
	wrap        bool
	indent      bool
}

// newNormalizeCmd converts a saved evaluation report into a page record
// offline, without a browser.
func newNormalizeCmd() *cobra.Command {
	opts := &normalizeOptions{}
	cmd := &cobra.Command{
		Use:   "normalize [report.json|-]",
		Short: "Normalize a saved evaluation report into a page record",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "-"
			if len(args) == 1 {
				path = args[0]
			}
			return runNormalize(cmd, path, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.url, "url", "", "page url to record")
	f.StringVar(&opts.title, "title", "", "page title to record")
	f.BoolVar(&opts.destructive, "destructive", false, "drop fields that only exist in the new report shape")
	f.BoolVar(&opts.parity, "url-encoding-parity", false, "copy eval_url into eval_url_encoded")
	f.BoolVar(&opts.wrap, "wrap", false, "emit results as a JSON string")
	f.BoolVar(&opts.indent, "indent", false, "pretty-print the output")
	return cmd
}

func runNormalize(cmd *cobra.Command, path string, opts *normalizeOptions) error {
	raw, err := readInput(cmd.InOrStdin(), path)
	if err != nil {
		return err
	}

	container := report.NormalizeContainer(string(raw), report.Options{Destructive: opts.destructive})
	record, err := report.Finalize(container, report.PageInfo{URL: opts.url, Title: opts.title}, report.LegacyOptions{
		URLEncodingParity: opts.parity,
		WrapResults:       opts.wrap,
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	if opts.indent {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(record); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	return nil
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return b, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	return b, nil
}
