package gcs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/JakeFAU/a11y-crawler/internal/clock"
	"github.com/JakeFAU/a11y-crawler/internal/crawler"
	"github.com/JakeFAU/a11y-crawler/internal/id"
)

func newTestClient(t *testing.T, handler http.Handler) *storage.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := storage.NewClient(context.Background(), option.WithEndpoint(server.URL), option.WithoutAuthentication())
	require.NoError(t, err)
	return client
}

func TestNewValidates(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "b"})
	require.Error(t, err)

	client := newTestClient(t, http.NotFoundHandler())
	_, err = New(client, Config{})
	require.Error(t, err)
}

func TestObjectName(t *testing.T) {
	t.Parallel()

	oid := uuid.MustParse("01890a5d-ac96-774b-bcce-b302099a8057")
	at := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	s, err := New(newTestClient(t, http.NotFoundHandler()), Config{Bucket: "b", Prefix: "/reports/"},
		WithClock(clock.Fixed(at)), WithIDs(id.NewSequence(oid)))
	require.NoError(t, err)

	name, err := s.ObjectName(crawler.PageRecord{URL: "https://WWW.Example.com/about?x=1"})
	require.NoError(t, err)
	require.Equal(t, "reports/2024/05/01/www.example.com/01890a5d-ac96-774b-bcce-b302099a8057.json", name)
}

func TestObjectNameUsesRecordKey(t *testing.T) {
	t.Parallel()

	// An exhausted generator proves the record's own key is used.
	s, err := New(newTestClient(t, http.NotFoundHandler()), Config{Bucket: "b"},
		WithClock(clock.Fixed(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC))), WithIDs(id.NewSequence()))
	require.NoError(t, err)

	record := crawler.PageRecord{
		URL:       "https://example.com/",
		ID:        uuid.MustParse("01890a5d-ac96-774b-bcce-b302099a8057"),
		CreatedAt: time.Date(2024, 5, 1, 23, 59, 59, 0, time.UTC),
	}
	first, err := s.ObjectName(record)
	require.NoError(t, err)
	second, err := s.ObjectName(record)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, "2024/05/01/example.com/01890a5d-ac96-774b-bcce-b302099a8057.json", first)
}

func TestAppendUploadsRecord(t *testing.T) {
	t.Parallel()

	var (
		mu     sync.Mutex
		bodies []string
	)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/upload/storage/v1/b/test-bucket/o")
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)

		mu.Lock()
		bodies = append(bodies, string(body))
		mu.Unlock()

		fmt.Fprint(w, `{"name":"object","bucket":"test-bucket"}`)
	})

	oid := uuid.MustParse("01890a5d-ac96-774b-bcce-b302099a8057")
	s, err := New(newTestClient(t, handler), Config{Bucket: "test-bucket", Prefix: "pages"},
		WithClock(clock.Fixed(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))), WithIDs(id.NewSequence(oid)))
	require.NoError(t, err)

	record := crawler.PageRecord{Title: "Home", URL: "https://example.com/", Results: map[string]any{"ruleset_id": "WCAG21"}}
	require.NoError(t, s.Append(context.Background(), record))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, bodies, 1)
	require.Contains(t, bodies[0], `"ruleset_id":"WCAG21"`)
	require.Contains(t, bodies[0], `"title":"Home"`)
	require.Contains(t, bodies[0], "pages/2024/05/01/example.com/"+oid.String()+".json")
}

func TestAppendIsCreateOnly(t *testing.T) {
	t.Parallel()

	var (
		mu      sync.Mutex
		queries []string
		bodies  []string
	)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)

		mu.Lock()
		queries = append(queries, r.URL.Query().Get("ifGenerationMatch"))
		bodies = append(bodies, string(body))
		attempt := len(bodies)
		mu.Unlock()

		if attempt > 1 {
			w.WriteHeader(http.StatusPreconditionFailed)
			fmt.Fprint(w, `{"error":{"code":412,"message":"conditionNotMet"}}`)
			return
		}
		fmt.Fprint(w, `{"name":"object","bucket":"test-bucket"}`)
	})

	s, err := New(newTestClient(t, handler), Config{Bucket: "test-bucket"}, WithIDs(id.NewSequence()))
	require.NoError(t, err)

	oid := uuid.MustParse("01890a5d-ac96-774b-bcce-b302099a8057")
	record := crawler.PageRecord{
		URL:       "https://example.com/",
		ID:        oid,
		CreatedAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.Append(context.Background(), record))
	require.NoError(t, s.Append(context.Background(), record), "an existing object counts as written")

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"0", "0"}, queries)
	require.Len(t, bodies, 2)
	for _, body := range bodies {
		require.Contains(t, body, "2024/05/01/example.com/"+oid.String()+".json")
	}
}

func TestAppendServerError(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	s, err := New(newTestClient(t, handler), Config{Bucket: "test-bucket"})
	require.NoError(t, err)

	require.Error(t, s.Append(context.Background(), crawler.PageRecord{URL: "https://example.com/"}))
}
