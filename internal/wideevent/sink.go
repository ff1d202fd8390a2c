package wideevent

import (
	"context"
	"errors"
	"log/slog"
	"sort"
)

// Sink is an append-only destination for finalized event records.
// Write failures are reported to the recorder's fallback logger and never
// reach the request's caller.
type Sink interface {
	Write(ctx context.Context, ev *Event) error
}

// LoggerSink emits one structured slog record per event. The log level
// follows the outcome so failed requests surface in filtered views.
type LoggerSink struct {
	Logger *slog.Logger
}

// NewLoggerSink constructs a LoggerSink; a nil logger falls back to slog.Default.
func NewLoggerSink(lg *slog.Logger) *LoggerSink {
	return &LoggerSink{Logger: lg}
}

// Write logs the full event record as one line with stable attribute order.
func (s *LoggerSink) Write(ctx context.Context, ev *Event) error {
	lg := s.Logger
	if lg == nil {
		lg = slog.Default()
	}
	rec := ev.Record()
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	attrs := make([]slog.Attr, 0, len(keys))
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, rec[k]))
	}
	var level slog.Level
	switch ev.Outcome() {
	case OutcomeError:
		level = slog.LevelError
	case OutcomeFailure:
		level = slog.LevelWarn
	default:
		level = slog.LevelInfo
	}
	lg.LogAttrs(ctx, level, "wide_event", attrs...)
	return nil
}

// MultiSink fans an event out to several sinks. Every sink is attempted;
// errors are joined so the recorder can report all of them.
type MultiSink []Sink

// Write writes the event to each sink in order.
func (m MultiSink) Write(ctx context.Context, ev *Event) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Write(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
