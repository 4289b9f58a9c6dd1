// Package browser drives headless Chrome through chromedp. Each page is a
// tab in a shared browser process; the evaluation library is injected into
// every new document before any page script runs.
package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/JakeFAU/a11y-crawler/internal/crawler"
)

// Config controls the browser pool.
type Config struct {
	MaxParallel       int
	UserAgent         string
	NavigationTimeout time.Duration
	LoadTimeout       time.Duration
	Headless          bool
	// Proxy is handed to Chrome as --proxy-server when Residential is set.
	Residential bool
	Proxy       string
	// LibraryScript is injected into every document. Empty disables injection.
	LibraryScript string
}

// ConsoleFunc receives console output mirrored out of a page. It is called
// from the chromedp event loop and must not block.
type ConsoleFunc func(crawler.ConsoleMessage)

// Browser implements crawler.Browser on top of a chromedp exec allocator.
type Browser struct {
	cfg         Config
	logger      *zap.Logger
	onConsole   ConsoleFunc
	limiter     chan struct{}
	allocator   context.Context
	allocCancel context.CancelFunc
}

var _ crawler.Browser = (*Browser)(nil)

// New creates a Browser. The Chrome process starts lazily with the first tab.
func New(cfg Config, logger *zap.Logger, onConsole ConsoleFunc) (*Browser, error) {
	if cfg.MaxParallel < 0 {
		return nil, fmt.Errorf("max parallel must be >= 0")
	}
	if cfg.Residential && cfg.Proxy == "" {
		return nil, errors.New("residential proxy enabled without a proxy url")
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 30 * time.Second
	}
	if cfg.LoadTimeout <= 0 {
		cfg.LoadTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	var limiter chan struct{}
	if cfg.MaxParallel > 0 {
		limiter = make(chan struct{}, cfg.MaxParallel)
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocatorOptions(cfg)...)
	return &Browser{
		cfg:         cfg,
		logger:      logger,
		onConsole:   onConsole,
		limiter:     limiter,
		allocator:   allocCtx,
		allocCancel: allocCancel,
	}, nil
}

func allocatorOptions(cfg Config) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	if cfg.Headless {
		opts = append(opts, chromedp.Flag("headless", "new"))
	} else {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if cfg.Residential {
		opts = append(opts, chromedp.ProxyServer(cfg.Proxy))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	return opts
}

// LoadLibrary reads the evaluation library source from disk.
func LoadLibrary(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read evaluation library: %w", err)
	}
	return string(b), nil
}

// Close shuts down the browser process.
func (b *Browser) Close() {
	b.allocCancel()
}

// Open creates a tab and navigates it to rawURL. A load event that does not
// arrive within the load timeout is not an error; the returned page reports
// Loaded() == false and remains usable.
func (b *Browser) Open(ctx context.Context, rawURL string) (crawler.Page, error) {
	if err := b.acquire(ctx); err != nil {
		return nil, err
	}

	tabCtx, tabCancel := chromedp.NewContext(b.allocator)
	s := &Session{
		ctx:     tabCtx,
		url:     rawURL,
		console: newConsoleMirror(rawURL, b.onConsole),
		loadC:   make(chan struct{}),
	}
	s.cancel = func() {
		tabCancel()
		b.release()
	}
	chromedp.ListenTarget(tabCtx, s.handleEvent)

	navCtx, navCancel := s.bind(ctx, b.cfg.NavigationTimeout)
	defer navCancel()
	if err := chromedp.Run(navCtx, b.setupAction(), navigateAction(rawURL)); err != nil {
		s.Close()
		return nil, fmt.Errorf("open %s: %w", rawURL, err)
	}

	s.loaded = s.waitLoad(ctx, b.cfg.LoadTimeout)
	if !s.loaded {
		b.logger.Warn("page load wait expired; continuing", zap.String("url", rawURL), zap.Duration("load_timeout", b.cfg.LoadTimeout))
	}
	return s, nil
}

func (b *Browser) setupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if err := page.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable page domain: %w", err)
		}
		if b.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(b.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		if b.cfg.LibraryScript != "" {
			if _, err := page.AddScriptToEvaluateOnNewDocument(b.cfg.LibraryScript).Do(ctx); err != nil {
				return fmt.Errorf("inject evaluation library: %w", err)
			}
		}
		return nil
	})
}

// navigateAction commits a navigation without waiting for the load event.
func navigateAction(rawURL string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		_, _, errText, _, err := page.Navigate(rawURL).Do(ctx)
		if err != nil {
			return fmt.Errorf("navigate: %w", err)
		}
		if errText != "" {
			return fmt.Errorf("navigate: %s", errText)
		}
		return nil
	})
}

func (b *Browser) acquire(ctx context.Context) error {
	if b.limiter == nil {
		return nil
	}
	select {
	case b.limiter <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("browser slot wait canceled: %w", ctx.Err())
	}
}

func (b *Browser) release() {
	if b.limiter == nil {
		return
	}
	select {
	case <-b.limiter:
	default:
	}
}
