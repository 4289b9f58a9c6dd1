package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/a11y-crawler/internal/crawler"
)

func TestSinkConcurrentAppend(t *testing.T) {
	t.Parallel()

	s := New()
	var wg sync.WaitGroup
	for i := range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, s.Append(context.Background(), crawler.PageRecord{URL: fmt.Sprintf("https://a.com/%d", i)}))
		}()
	}
	wg.Wait()

	require.Len(t, s.Records(), 100)
	require.Len(t, s.URLs(), 100)
}

func TestSinkRecordsIsACopy(t *testing.T) {
	t.Parallel()

	s := New()
	require.NoError(t, s.Append(context.Background(), crawler.PageRecord{URL: "https://a.com/"}))
	got := s.Records()
	got[0].URL = "mutated"
	require.Equal(t, "https://a.com/", s.Records()[0].URL)
}
