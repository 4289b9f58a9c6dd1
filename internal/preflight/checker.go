// Package preflight checks a URL over plain HTTP before a browser tab is
// spent on it: robots.txt, status code, and content type.
package preflight

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/a11y-crawler/internal/crawler"
)

var (
	// ErrRobotsDisallowed reports a URL excluded by robots.txt.
	ErrRobotsDisallowed = errors.New("disallowed by robots.txt")
	// ErrBadStatus reports a 4xx or 5xx response.
	ErrBadStatus = errors.New("unexpected http status")
)

// Config controls the preflight collector.
type Config struct {
	UserAgent     string
	RespectRobots bool
	Timeout       time.Duration
	// Proxy routes checks through the same proxy the browser uses. Empty
	// falls back to the environment.
	Proxy string
}

// Checker implements crawler.Checker with a colly collector that aborts each
// transfer once the response headers arrive.
type Checker struct {
	cfg           Config
	robots        *robotsFallbackState
	baseCollector *colly.Collector
}

var _ crawler.Checker = (*Checker)(nil)

// New builds a Checker.
func New(cfg Config) (*Checker, error) {
	transport, err := newHTTPTransport(cfg.Proxy)
	if err != nil {
		return nil, err
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	// Clones share the base collector's HTTP backend, so transport, timeout
	// and robots settings are fixed here rather than per check.
	c := colly.NewCollector(colly.Async(false), colly.AllowURLRevisit())
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	c.IgnoreRobotsTxt = !cfg.RespectRobots

	p := &Checker{cfg: cfg, baseCollector: c}
	var rt http.RoundTripper = transport
	if cfg.RespectRobots {
		p.robots = newRobotsFallbackState()
		rt = &robotsAwareTransport{base: rt, state: p.robots}
	}
	c.WithTransport(rt)
	c.SetRequestTimeout(cfg.Timeout)
	return p, nil
}

// Check fetches rawURL's headers. A non-HTML document yields the result and
// crawler.ErrNotHTML.
func (p *Checker) Check(ctx context.Context, rawURL string) (crawler.CheckResult, error) {
	var (
		mu     sync.Mutex
		result = crawler.CheckResult{URL: rawURL}
	)
	start := time.Now()
	collector := p.baseCollector.Clone()
	collector.Context = ctx

	collector.OnResponseHeaders(func(r *colly.Response) {
		mu.Lock()
		result.URL = r.Request.URL.String()
		result.StatusCode = r.StatusCode
		result.ContentType = r.Headers.Get("Content-Type")
		mu.Unlock()
		r.Request.Abort()
	})

	err := p.runCollector(ctx, collector, rawURL)
	mu.Lock()
	defer mu.Unlock()
	result.Duration = time.Since(start)
	if p.robots != nil {
		result.RobotsFallback = p.robots.fellBack(rawURL)
	}
	if err != nil {
		return result, err
	}
	if result.StatusCode >= http.StatusBadRequest {
		return result, fmt.Errorf("%w: %d", ErrBadStatus, result.StatusCode)
	}
	if !isHTML(result.ContentType) {
		return result, fmt.Errorf("%w: %q", crawler.ErrNotHTML, result.ContentType)
	}
	return result, nil
}

func (p *Checker) runCollector(ctx context.Context, collector *colly.Collector, rawURL string) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(rawURL)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("preflight canceled: %w", ctx.Err())
	case err := <-done:
		switch {
		case err == nil, errors.Is(err, colly.ErrAbortedAfterHeaders):
			return nil
		case errors.Is(err, colly.ErrRobotsTxtBlocked):
			return ErrRobotsDisallowed
		default:
			return fmt.Errorf("preflight %s: %w", rawURL, err)
		}
	}
}

// isHTML treats a missing content type as HTML; the browser decides.
func isHTML(contentType string) bool {
	if contentType == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	switch mediaType {
	case "text/html", "application/xhtml+xml":
		return true
	default:
		return false
	}
}

// proxyFunc accepts the same forms Chrome's --proxy-server does, including a
// bare host:port.
func proxyFunc(raw string) (func(*http.Request) (*url.URL, error), error) {
	if raw == "" {
		return http.ProxyFromEnvironment, nil
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse proxy: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("proxy %q has no host", raw)
	}
	return http.ProxyURL(u), nil
}

func newHTTPTransport(proxy string) (*http.Transport, error) {
	pf, err := proxyFunc(proxy)
	if err != nil {
		return nil, err
	}
	return &http.Transport{
		Proxy: pf,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}, nil
}
