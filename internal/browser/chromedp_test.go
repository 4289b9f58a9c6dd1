package browser

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/a11y-crawler/internal/crawler"
	"github.com/JakeFAU/a11y-crawler/internal/evaluate"
	"github.com/JakeFAU/a11y-crawler/internal/report"
)

func TestNewValidation(t *testing.T) {
	t.Parallel()

	_, err := New(Config{MaxParallel: -1}, nil, nil)
	require.Error(t, err)

	_, err = New(Config{Residential: true}, nil, nil)
	require.Error(t, err)

	b, err := New(Config{MaxParallel: 2}, zap.NewNop(), nil)
	require.NoError(t, err)
	defer b.Close()
	require.Equal(t, 2, cap(b.limiter))
	require.Equal(t, 30*time.Second, b.cfg.NavigationTimeout)
	require.Equal(t, 10*time.Second, b.cfg.LoadTimeout)
}

func TestAllocatorOptionsGrowWithConfig(t *testing.T) {
	t.Parallel()

	base := len(allocatorOptions(Config{Headless: true}))
	withProxy := len(allocatorOptions(Config{Headless: true, Residential: true, Proxy: "http://proxy:8080", UserAgent: "ua"}))
	require.Equal(t, base+2, withProxy)
}

func TestAcquireRespectsContext(t *testing.T) {
	t.Parallel()

	b := &Browser{limiter: make(chan struct{}, 1)}
	require.NoError(t, b.acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, b.acquire(ctx), context.DeadlineExceeded)

	b.release()
	require.NoError(t, b.acquire(context.Background()))
}

func TestLoadLibrary(t *testing.T) {
	t.Parallel()

	src, err := LoadLibrary("")
	require.NoError(t, err)
	require.Empty(t, src)

	_, err = LoadLibrary("/definitely/not/here.js")
	require.Error(t, err)
}

const fakeLibrary = `
window.openA11y = {
  evaluate: async (ruleset, level, scope, ruleList) => {
    const report = {
      ruleset: ruleset,
      version: "1.0",
      level: level,
      allRuleResults: [{results_violation: 1, results: [{ordinal_position: null}]}],
      helper: () => 1,
    };
    report.self = report;
    console.log("audit", ruleset);
    return report;
  },
};`

func chromeAvailable() bool {
	for _, name := range []string{"google-chrome", "chromium", "chromium-browser", "headless-shell"} {
		if _, err := exec.LookPath(name); err == nil {
			return true
		}
	}
	return false
}

func TestBrowserEvaluatesPage(t *testing.T) {
	if testing.Short() || !chromeAvailable() {
		t.Skip("chrome not available")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head><title>Fixture</title></head><body><a href="/next#x">next</a></body></html>`)
	}))
	defer srv.Close()

	consoleC := make(chan string, 8)
	b, err := New(Config{Headless: true, MaxParallel: 1, LibraryScript: fakeLibrary}, zap.NewNop(), func(msg crawler.ConsoleMessage) {
		select {
		case consoleC <- msg.Text:
		default:
		}
	})
	require.NoError(t, err)
	defer b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pg, err := b.Open(ctx, srv.URL)
	require.NoError(t, err)
	defer pg.Close()

	title, err := pg.Title(ctx)
	require.NoError(t, err)
	require.Equal(t, "Fixture", title)

	inv := evaluate.New(evaluate.Config{
		Request:           evaluate.Request{Ruleset: "WCAG21", Level: "AA"},
		CapabilityTimeout: 5 * time.Second,
		PollInterval:      50 * time.Millisecond,
	}, zap.NewNop())
	require.NoError(t, inv.WaitReady(ctx, pg))
	raw, err := inv.Invoke(ctx, pg)
	require.NoError(t, err)
	require.False(t, strings.Contains(raw, "helper"))

	container := report.NormalizeContainer(raw, report.Options{})
	require.Equal(t, "WCAG21", container[report.FieldRulesetID])

	links, err := pg.Links(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{srv.URL + "/next"}, links)

	select {
	case text := <-consoleC:
		require.Equal(t, "audit WCAG21", text)
	case <-time.After(5 * time.Second):
		t.Fatal("console message not mirrored")
	}

	require.True(t, pg.Loaded())
}
