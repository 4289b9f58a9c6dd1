package sink

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/JakeFAU/a11y-crawler/internal/crawler"
	"github.com/JakeFAU/a11y-crawler/internal/metrics"
)

// ErrDropped is returned once a record has been given up on.
var ErrDropped = errors.New("record dropped")

// RetryConfig tunes Retrying.
type RetryConfig struct {
	// Name labels metrics and logs.
	Name       string
	MaxRetries uint64
	Backoff    time.Duration
}

// Retrying retries a sink with exponential backoff, then drops the record.
type Retrying struct {
	next   crawler.Sink
	cfg    RetryConfig
	logger *zap.Logger
}

// NewRetrying wraps next. Defaults: 3 retries starting at 250ms.
func NewRetrying(next crawler.Sink, cfg RetryConfig, logger *zap.Logger) *Retrying {
	if cfg.Backoff <= 0 {
		cfg.Backoff = 250 * time.Millisecond
	}
	if cfg.Name == "" {
		cfg.Name = "sink"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retrying{next: next, cfg: cfg, logger: logger}
}

// Append writes the record, retrying transient failures. Cancellation is
// returned as is; anything else that survives the retries is logged,
// counted and reported as ErrDropped.
func (r *Retrying) Append(ctx context.Context, record crawler.PageRecord) error {
	backoff := retry.WithMaxRetries(r.cfg.MaxRetries, retry.NewExponential(r.cfg.Backoff))
	attempts := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		if err := r.next.Append(ctx, record); err != nil {
			if ctx.Err() != nil {
				return err
			}
			return retry.RetryableError(err)
		}
		return nil
	})
	if err == nil {
		metrics.ObserveSinkWrite(r.cfg.Name)
		return nil
	}
	if ctx.Err() != nil {
		return fmt.Errorf("append %s: %w", r.cfg.Name, ctx.Err())
	}

	metrics.ObserveSinkFailure(r.cfg.Name)
	r.logger.Error("dropping page record",
		zap.String("sink", r.cfg.Name),
		zap.String("url", record.URL),
		zap.Int("attempts", attempts),
		zap.Error(err),
	)
	return fmt.Errorf("%w: %s: %v", ErrDropped, r.cfg.Name, err)
}

// Close closes the wrapped sink.
func (r *Retrying) Close(ctx context.Context) error {
	return Close(ctx, r.next)
}
