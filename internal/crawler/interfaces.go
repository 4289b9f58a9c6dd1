package crawler

import "context"

// Runtime evaluates JavaScript inside a page. Promises are awaited and the
// result is decoded into out.
type Runtime interface {
	Evaluate(ctx context.Context, expression string, out any) error
}

// Page is an open browser document.
type Page interface {
	Runtime
	// Title returns the document title as currently rendered.
	Title(ctx context.Context) (string, error)
	// Location returns the document's current URL.
	Location(ctx context.Context) (string, error)
	// Links returns the absolute http(s) links found in the rendered DOM.
	Links(ctx context.Context) ([]string, error)
	// Loaded reports whether the load wait completed before its deadline.
	Loaded() bool
	Close()
}

// Browser opens pages.
type Browser interface {
	Open(ctx context.Context, rawURL string) (Page, error)
}

// Evaluator drives the in-page accessibility audit.
type Evaluator interface {
	// WaitReady blocks until the evaluation capability is callable.
	WaitReady(ctx context.Context, rt Runtime) error
	// Invoke runs the audit and returns its JSON text.
	Invoke(ctx context.Context, rt Runtime) (string, error)
}

// Checker performs a cheap HTTP check ahead of the browser.
type Checker interface {
	Check(ctx context.Context, rawURL string) (CheckResult, error)
}

// Limiter applies per-host politeness.
type Limiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// Sink persists page records. Implementations must be safe for concurrent
// use; no ordering across calls is implied.
type Sink interface {
	Append(ctx context.Context, record PageRecord) error
}
