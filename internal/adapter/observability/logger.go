package observability

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fairyhunter13/investor-api/internal/config"
)

// SetupLogger configures a JSON slog logger with environment fields.
func SetupLogger(cfg config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{}
	// In dev, show debug level; in prod, default to info
	if cfg.IsDev() {
		opts.Level = slog.LevelDebug
	}
	h := slog.NewJSONHandler(os.Stdout, opts)
	logger := slog.New(h).With(
		slog.String("service", cfg.ServiceName),
		slog.String("env", cfg.AppEnv),
	)
	return logger
}

// SetupWideEventLogger returns the logger backing the wide-event log sink.
// When WideEventLogFile is set, records go to that file (one JSON line per
// request); otherwise the shared process logger is reused. The returned
// closer is non-nil only when a file was opened.
func SetupWideEventLogger(cfg config.Config, shared *slog.Logger) (*slog.Logger, func() error, error) {
	if cfg.WideEventLogFile == "" {
		return shared, nil, nil
	}
	if dir := filepath.Dir(cfg.WideEventLogFile); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, nil, fmt.Errorf("op=observability.SetupWideEventLogger: %w", err)
		}
	}
	f, err := os.OpenFile(cfg.WideEventLogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return nil, nil, fmt.Errorf("op=observability.SetupWideEventLogger: %w", err)
	}
	lg := slog.New(slog.NewJSONHandler(f, nil)).With(
		slog.String("service", cfg.ServiceName),
		slog.String("env", cfg.AppEnv),
	)
	return lg, f.Close, nil
}
