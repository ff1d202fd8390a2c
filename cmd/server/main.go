// Command server starts the investor API HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	httpserver "github.com/fairyhunter13/investor-api/internal/adapter/httpserver"
	"github.com/fairyhunter13/investor-api/internal/adapter/marketdata/yahoo"
	"github.com/fairyhunter13/investor-api/internal/adapter/observability"
	"github.com/fairyhunter13/investor-api/internal/adapter/quotecache"
	"github.com/fairyhunter13/investor-api/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/investor-api/internal/app"
	"github.com/fairyhunter13/investor-api/internal/config"
	"github.com/fairyhunter13/investor-api/internal/domain"
	"github.com/fairyhunter13/investor-api/internal/usecase"
	"github.com/fairyhunter13/investor-api/internal/wideevent"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)

	// Register all Prometheus metrics once per process so that /metrics
	// exposes HTTP, provider, and wide-event instrumentation.
	observability.InitMetrics()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	ctx := context.Background()

	// Optional snapshot archive
	var snapshots domain.SnapshotRepository
	var dbPool app.Pinger
	if cfg.SnapshotsEnabled() {
		pool, err := postgres.NewPool(ctx, cfg.DBURL)
		if err != nil {
			slog.Error("db connect failed", slog.Any("error", err))
			os.Exit(1)
		}
		defer pool.Close()
		snapshots = postgres.NewSnapshotRepo(pool)
		dbPool = pool
		slog.Info("snapshot archive enabled")
	}

	// Optional quote cache
	var rdb *redis.Client
	var cache domain.QuoteCache
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer func() { _ = rdb.Close() }()
		cache = quotecache.New(rdb, cfg.QuoteCacheTTL)
		slog.Info("quote cache enabled", slog.String("addr", cfg.RedisAddr), slog.Duration("ttl", cfg.QuoteCacheTTL))
	}

	// Market data provider
	provider := yahoo.New(cfg)

	// Services
	quoteSvc := usecase.NewQuoteService(provider, cache, snapshots)

	// Watchlist snapshot loop
	if cfg.WatchlistFile != "" && snapshots != nil {
		wl, err := usecase.LoadWatchlist(cfg.WatchlistFile)
		if err != nil {
			slog.Error("watchlist load failed", slog.String("file", cfg.WatchlistFile), slog.Any("error", err))
			os.Exit(1)
		}
		watchSvc := usecase.NewWatchlistService(provider, snapshots, wl)
		go watchSvc.RunPeriodic(ctx, cfg.WatchlistInterval)
		slog.Info("watchlist snapshot loop started",
			slog.Int("symbols", len(wl.Symbols)),
			slog.Duration("interval", cfg.WatchlistInterval))
	}

	// Wide-event sinks: structured log always, Kafka when configured.
	weLogger, closeWELog, err := observability.SetupWideEventLogger(cfg, logger)
	if err != nil {
		slog.Error("wide event log setup failed", slog.Any("error", err))
		os.Exit(1)
	}
	if closeWELog != nil {
		defer func() { _ = closeWELog() }()
	}
	sinks := wideevent.MultiSink{wideevent.NewLoggerSink(weLogger)}
	if cfg.KafkaSinkEnabled() {
		kafkaSink, err := wideevent.NewKafkaSink(cfg.KafkaBrokers, cfg.WideEventTopic)
		if err != nil {
			slog.Error("kafka sink connect failed", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			if err := kafkaSink.Close(); err != nil {
				slog.Error("failed to close kafka sink", slog.Any("error", err))
			}
		}()
		sinks = append(sinks, kafkaSink)
		slog.Info("wide-event kafka sink enabled", slog.String("topic", cfg.WideEventTopic))
	}
	recorder := app.NewRecorder(cfg, sinks)

	// Readiness checks for the optional backends
	dbCheck, redisCheck := app.BuildReadinessChecks(dbPool, rdb)

	// HTTP server
	srv := httpserver.NewServer(cfg, quoteSvc, dbCheck, redisCheck)
	handler := app.BuildRouter(cfg, srv, recorder)

	srvHTTP := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting", slog.Int("port", cfg.Port))
		errCh <- srvHTTP.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	_ = srvHTTP.Shutdown(shutdownCtx)
}
