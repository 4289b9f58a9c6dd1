package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

const savedReport = `{"ruleset":"WCAG21","version":"1.0","date":"2024-05-01","allRuleResults":[{"rule_id":"HEADING_1","results_violation":2,"results":[{"ordinal_position":null}]}]}`

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestNormalizeFromFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, os.WriteFile(path, []byte(savedReport), 0o600))

	out, err := execute(t, "", "normalize", path, "--url", "https://example.com/", "--title", "Home", "--destructive")
	require.NoError(t, err)

	var record struct {
		Title   string         `json:"title"`
		URL     string         `json:"url"`
		Results map[string]any `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &record))
	require.Equal(t, "Home", record.Title)
	require.Equal(t, "https://example.com/", record.URL)
	require.Equal(t, "WCAG21", record.Results["ruleset_id"])
	require.Equal(t, "https://example.com/", record.Results["eval_url"])
	require.NotContains(t, record.Results, "date")

	rule := record.Results["rule_results"].([]any)[0].(map[string]any)
	require.EqualValues(t, 2, rule["elements_violation"])
	element := rule["element_results"].([]any)[0].(map[string]any)
	require.EqualValues(t, 2, element["ordinal_position"])
	require.Equal(t, "page", element["element_identifier"])
}

func TestNormalizeFromStdinWrapped(t *testing.T) {
	t.Parallel()

	out, err := execute(t, savedReport, "normalize", "--wrap", "--url-encoding-parity", "--url", "https://example.com/a b")
	require.NoError(t, err)

	var record struct {
		Results string `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &record))

	var inner map[string]any
	require.NoError(t, json.Unmarshal([]byte(record.Results), &inner))
	require.Equal(t, "https://example.com/a b", inner["eval_url_encoded"])
}

func TestNormalizeMissingFile(t *testing.T) {
	t.Parallel()

	_, err := execute(t, "", "normalize", filepath.Join(t.TempDir(), "missing.json"))
	require.ErrorContains(t, err, "read report")
}

func TestCrawlOverrides(t *testing.T) {
	t.Parallel()

	opts := &crawlOptions{}
	cmd := &cobra.Command{Use: "crawl"}
	opts.bind(cmd)
	require.NoError(t, cmd.ParseFlags([]string{"--seed", "https://a.example/", "--max-pages", "0", "--no-enqueue", "--sink", "memory"}))

	got := opts.overrides(cmd)
	require.Equal(t, []string{"https://a.example/"}, got["crawler.seeds"])
	require.Equal(t, 0, got["crawler.max_pages"])
	require.Equal(t, false, got["crawler.enqueue_links"])
	require.Equal(t, "memory", got["sink.kind"])
	require.NotContains(t, got, "report.wrap_results")
	require.NotContains(t, got, "server.enabled")
}

func TestCrawlOverridesEmpty(t *testing.T) {
	t.Parallel()

	opts := &crawlOptions{}
	cmd := &cobra.Command{Use: "crawl"}
	opts.bind(cmd)
	require.NoError(t, cmd.ParseFlags(nil))
	require.Empty(t, opts.overrides(cmd))
}

func TestCrawlRequiresSeeds(t *testing.T) {
	t.Setenv("A11Y_CRAWLER_SEEDS", "")

	_, err := execute(t, "", "crawl", "--sink", "memory")
	require.ErrorContains(t, err, "crawler.seeds")
}
