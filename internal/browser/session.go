package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/JakeFAU/a11y-crawler/internal/crawler"
)

// Session is one open tab. It implements crawler.Page.
type Session struct {
	ctx     context.Context
	cancel  func()
	url     string
	console *consoleMirror
	loaded  bool

	loadOnce sync.Once
	loadC    chan struct{}
	closed   sync.Once
}

var _ crawler.Page = (*Session)(nil)

// bind derives a context that runs actions in this tab but is canceled when
// either parent is, with an optional timeout.
func (s *Session) bind(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(s.ctx, timeout)
	} else {
		ctx, cancel = context.WithCancel(s.ctx)
	}
	stop := context.AfterFunc(parent, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (s *Session) handleEvent(ev any) {
	switch e := ev.(type) {
	case *page.EventLoadEventFired:
		s.loadOnce.Do(func() { close(s.loadC) })
	case *runtime.EventConsoleAPICalled:
		s.console.called(e)
	case *runtime.EventExceptionThrown:
		s.console.thrown(e)
	}
}

func (s *Session) waitLoad(ctx context.Context, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-s.loadC:
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}

// Evaluate runs expression in the page, awaiting promises, and decodes the
// result into out.
func (s *Session) Evaluate(ctx context.Context, expression string, out any) error {
	runCtx, cancel := s.bind(ctx, 0)
	defer cancel()
	err := chromedp.Run(runCtx, chromedp.Evaluate(expression, out, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithAwaitPromise(true)
	}))
	if err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}
	return nil
}

// Title returns the document title.
func (s *Session) Title(ctx context.Context) (string, error) {
	runCtx, cancel := s.bind(ctx, 0)
	defer cancel()
	var title string
	if err := chromedp.Run(runCtx, chromedp.Title(&title)); err != nil {
		return "", fmt.Errorf("read title: %w", err)
	}
	return title, nil
}

// Location returns the current document URL.
func (s *Session) Location(ctx context.Context) (string, error) {
	runCtx, cancel := s.bind(ctx, 0)
	defer cancel()
	var loc string
	if err := chromedp.Run(runCtx, chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("read location: %w", err)
	}
	return loc, nil
}

// Links returns the absolute http(s) anchors of the rendered DOM.
func (s *Session) Links(ctx context.Context) ([]string, error) {
	runCtx, cancel := s.bind(ctx, 0)
	defer cancel()
	var (
		html string
		loc  string
	)
	if err := chromedp.Run(runCtx,
		chromedp.Location(&loc),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	); err != nil {
		return nil, fmt.Errorf("read rendered dom: %w", err)
	}
	if loc == "" {
		loc = s.url
	}
	return ExtractLinks(loc, html)
}

// Loaded reports whether the load event fired before the load timeout.
func (s *Session) Loaded() bool {
	return s.loaded
}

// Close closes the tab and frees its browser slot. It is idempotent.
func (s *Session) Close() {
	s.closed.Do(s.cancel)
}
