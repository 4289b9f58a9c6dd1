package evaluate

import (
	"context"
	"fmt"

	"github.com/JakeFAU/a11y-crawler/internal/crawler"
)

// ReportFunc produces a report without a browser. The returned value may be
// any Go value, including ones with cycles or function fields.
type ReportFunc func(ctx context.Context, pageURL string, req Request) (any, error)

// InProcess adapts a ReportFunc to crawler.Evaluator. It is used for dry runs
// and tests where no page runtime is available.
type InProcess struct {
	Request   Request
	MaxLayers int
	Report    ReportFunc
	// Locate resolves the current page URL from the runtime. Optional.
	Locate func(ctx context.Context, rt crawler.Runtime) string
}

var _ crawler.Evaluator = (*InProcess)(nil)

// WaitReady is a no-op; the capability is always present.
func (p *InProcess) WaitReady(context.Context, crawler.Runtime) error {
	return nil
}

// Invoke calls the report function and snapshots its result.
func (p *InProcess) Invoke(ctx context.Context, rt crawler.Runtime) (string, error) {
	var pageURL string
	if p.Locate != nil {
		pageURL = p.Locate(ctx, rt)
	}
	v, err := p.Report(ctx, pageURL, p.Request)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEvaluationFailed, err)
	}
	if s, ok := v.(string); ok {
		return Unwrap(s, p.layers())
	}
	text, err := Snapshot(v)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEvaluationFailed, err)
	}
	return Unwrap(text, p.layers())
}

func (p *InProcess) layers() int {
	if p.MaxLayers <= 0 {
		return 1
	}
	return p.MaxLayers
}
