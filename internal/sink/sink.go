// Package sink composes page record sinks: retry with backoff and fan-out to
// several backends. Backends live in the subpackages.
package sink

import (
	"context"
	"errors"
	"fmt"

	"github.com/JakeFAU/a11y-crawler/internal/crawler"
)

// Closer is implemented by sinks holding connections or files.
type Closer interface {
	Close(ctx context.Context) error
}

// Close closes s when it implements Closer.
func Close(ctx context.Context, s crawler.Sink) error {
	if c, ok := s.(Closer); ok {
		return c.Close(ctx)
	}
	return nil
}

// Fanout writes every record to each of its sinks in order.
type Fanout []crawler.Sink

// Append writes to all sinks and joins their errors. A failing sink does not
// stop the rest.
func (f Fanout) Append(ctx context.Context, record crawler.PageRecord) error {
	var errs []error
	for _, s := range f {
		if err := s.Append(ctx, record); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink that supports it.
func (f Fanout) Close(ctx context.Context) error {
	var errs []error
	for _, s := range f {
		if err := Close(ctx, s); err != nil {
			errs = append(errs, fmt.Errorf("close sink: %w", err))
		}
	}
	return errors.Join(errs...)
}
