package sinks

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/JakeFAU/a11y-crawler/internal/progress"
)

// LogSink writes each event as a structured log line. Skips and console
// errors log at warn; everything else at debug.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wraps logger.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs the batch.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.Stringer("run_id", evt.RunID),
			zap.String("stage", string(evt.Stage)),
			zap.String("site", evt.Site),
			zap.String("url", evt.URL),
		}
		if evt.Reason != "" {
			fields = append(fields, zap.String("reason", evt.Reason))
		}
		if evt.Links > 0 {
			fields = append(fields, zap.Int("links", evt.Links))
		}
		if evt.Dur > 0 {
			fields = append(fields, zap.Duration("dur", evt.Dur))
		}
		if evt.Note != "" {
			fields = append(fields, zap.String("note", evt.Note))
		}
		s.logger.Log(levelFor(evt), "progress event", fields...)
	}
	return nil
}

func levelFor(evt progress.Event) zapcore.Level {
	switch {
	case evt.Stage == progress.StageSkipped:
		return zapcore.WarnLevel
	case evt.Stage == progress.StageConsole && (evt.Reason == "error" || evt.Reason == "exception"):
		return zapcore.WarnLevel
	case evt.Stage == progress.StageRunStart, evt.Stage == progress.StageRunDone:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}

// Close is a no-op.
func (s *LogSink) Close(context.Context) error {
	return nil
}
