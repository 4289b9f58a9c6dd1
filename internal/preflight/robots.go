package preflight

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/JakeFAU/a11y-crawler/internal/metrics"
)

const (
	robotsMaxRetries = 3
	robotsRetryBase  = 250 * time.Millisecond
)

// robotsAwareTransport retries robots.txt fetches that time out and, when
// they keep timing out, answers with an allow-all file so the page is still
// audited.
type robotsAwareTransport struct {
	base  http.RoundTripper
	state *robotsFallbackState
}

func (t *robotsAwareTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("robots transport received nil request")
	}
	if t.state == nil || !isRobotsTxtRequest(req) {
		resp, err := t.base.RoundTrip(req)
		if err != nil {
			return nil, fmt.Errorf("roundtrip: %w", err)
		}
		return resp, nil
	}
	return t.state.roundTripWithRetry(req, t.base)
}

func isRobotsTxtRequest(req *http.Request) bool {
	return req.URL != nil && strings.EqualFold(req.URL.Path, "/robots.txt")
}

// robotsFallbackState remembers hosts whose robots.txt was replaced by the
// allow-all fallback.
type robotsFallbackState struct {
	mu        sync.Mutex
	hosts     map[string]struct{}
	retryBase time.Duration
}

func newRobotsFallbackState() *robotsFallbackState {
	return &robotsFallbackState{hosts: make(map[string]struct{}), retryBase: robotsRetryBase}
}

func (s *robotsFallbackState) fellBack(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.hosts[u.Host]
	return ok
}

func (s *robotsFallbackState) markFallback(host string) {
	s.mu.Lock()
	_, seen := s.hosts[host]
	s.hosts[host] = struct{}{}
	s.mu.Unlock()
	if !seen {
		metrics.ObserveRobotsFallback()
	}
}

// roundTripWithRetry retries transient robots.txt failures with exponential
// backoff. Once retries run out the host gets the allow-all fallback.
func (s *robotsFallbackState) roundTripWithRetry(req *http.Request, base http.RoundTripper) (*http.Response, error) {
	ctx := req.Context()
	var resp *http.Response
	backoff := retry.WithMaxRetries(robotsMaxRetries, retry.NewExponential(s.retryBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		r, err := base.RoundTrip(req.Clone(ctx))
		if err != nil {
			if ctx.Err() == nil && isTransientError(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		resp = r
		return nil
	})
	switch {
	case err == nil:
		return resp, nil
	case ctx.Err() != nil:
		return nil, fmt.Errorf("robots backoff: %w", ctx.Err())
	case isTransientError(err):
		s.markFallback(req.URL.Host)
		return allowAllResponse(req), nil
	default:
		return nil, fmt.Errorf("robots roundtrip: %w", err)
	}
}

func allowAllResponse(req *http.Request) *http.Response {
	const body = "User-agent: *\nAllow: /"
	return &http.Response{
		StatusCode:    http.StatusOK,
		Status:        "200 OK",
		Body:          io.NopCloser(strings.NewReader(body)),
		ContentLength: int64(len(body)),
		Header:        make(http.Header),
		Request:       req,
	}
}

func isTransientError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(err.Error(), "tls: handshake timeout")
}
