package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestSanitizeSite(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://example.com/path", "example.com"},
		{"standard https", "https://Example.com/path", "example.com"},
		{"no scheme", "example.com/path", "example.com"},
		{"host with port", "example.com:8080", "example.com"},
		{"ip address", "192.168.1.1", "192.168.1.1"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expected, SanitizeSite(tc.input))
		})
	}
}

func TestInitIsIdempotent(t *testing.T) {
	Init()
	first := pagesTotal
	Init()
	require.Same(t, first, pagesTotal)
}

func TestObservers(t *testing.T) {
	ObservePage("https://Example.org/a", OutcomePersisted)
	before := testutil.ToFloat64(pagesTotal.WithLabelValues("example.org", OutcomePersisted))
	ObservePage("https://example.org/b", OutcomePersisted)
	require.Equal(t, before+1, testutil.ToFloat64(pagesTotal.WithLabelValues("example.org", OutcomePersisted)))

	failures := testutil.ToFloat64(sinkFailuresTotal.WithLabelValues("gcs"))
	ObserveSinkFailure("gcs")
	require.Equal(t, failures+1, testutil.ToFloat64(sinkFailuresTotal.WithLabelValues("gcs")))

	fallbacks := testutil.ToFloat64(robotsFallbackTotal)
	ObserveRobotsFallback()
	require.Equal(t, fallbacks+1, testutil.ToFloat64(robotsFallbackTotal))

	workers := testutil.ToFloat64(activeWorkers)
	IncActiveWorkers()
	require.Equal(t, workers+1, testutil.ToFloat64(activeWorkers))
	DecActiveWorkers()
	require.Equal(t, workers, testutil.ToFloat64(activeWorkers))

	ObserveStage("evaluated", 1500*time.Millisecond)
	ObserveRateLimitDelay("example.org", time.Second)
	require.Positive(t, testutil.CollectAndCount(stageDurationSeconds))
	require.Positive(t, testutil.CollectAndCount(rateLimitDelaySeconds))
}

func FuzzSanitizeSite(f *testing.F) {
	for _, seed := range []string{"http://example.com", "https://google.com", "ftp://example.com"} {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		require.NotEmpty(t, SanitizeSite(orig))
	})
}
