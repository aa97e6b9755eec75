package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"market-gateway/internal/api"
	"market-gateway/internal/assets"
	"market-gateway/internal/domain"
	"market-gateway/internal/events"
	"market-gateway/internal/monitor"
	"market-gateway/internal/orderbook"
	"market-gateway/internal/rates"
	"market-gateway/pkg/candles"
	"market-gateway/pkg/config"
	"market-gateway/pkg/db"
	"market-gateway/pkg/redisstore"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Logger level comes from config; fall back to a production logger to report the failure.
		logger, _ := zap.NewProduction()
		logger.Fatal("config load failed", zap.Error(err))
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	// Prices go out as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("gateway stopped", zap.Error(err))
	}
}

func newLogger(level string) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, errors.Wrapf(err, "LOG_LEVEL %q", level)
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("starting market gateway",
		zap.String("port", cfg.Port),
		zap.String("db_driver", cfg.DBDriver),
		zap.String("redis_addr", cfg.RedisAddr),
	)

	// Core services
	bus := events.NewBus()
	metrics := monitor.NewMetrics()
	mon := &monitor.Monitor{
		Bus:     bus,
		Metrics: metrics,
		Sink:    monitor.LogSink{Logger: logger.Named("alerts")},
		Logger:  logger,
	}
	mon.Start(ctx)

	// Asset pairs and feed history
	database, err := db.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return errors.Wrap(err, "open database")
	}
	defer database.Close()
	if err := db.ApplyMigrations(database); err != nil {
		return errors.Wrap(err, "apply migrations")
	}
	if cfg.AssetPairsFile != "" {
		pairs, err := db.LoadSeed(cfg.AssetPairsFile)
		if err != nil {
			return err
		}
		if err := database.SyncSeed(ctx, pairs); err != nil {
			return errors.Wrap(err, "seed asset pairs")
		}
		logger.Info("asset pairs seeded", zap.String("file", cfg.AssetPairsFile), zap.Int("count", len(pairs)))
	}

	directory := assets.NewDirectory(database, cfg.AssetPairsTTL, logger.Named("assets"))
	if err := directory.Warm(ctx); err != nil {
		return errors.Wrap(err, "warm asset directory")
	}
	feed := db.FeedHistory{
		DB: database,
		Observe: func(elapsed time.Duration, err error) {
			mon.Observe("feed_history", metrics.FeedLatency, elapsed, err)
		},
	}

	// Order books and market profile
	redisClient, err := redisstore.Dial(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return err
	}
	defer redisClient.Close()
	redisClient.AddHook(redisstore.NewLatencyHook(func(elapsed time.Duration, err error) {
		mon.Observe("redis", metrics.CacheLatency, elapsed, err)
	}))
	store := redisstore.New(redisClient, redisstore.Options{
		OrderBookKeyPattern: cfg.OrderBookKeyFormat,
		ProfileKey:          cfg.MarketProfileKey,
	})

	// Candle history, one client per configured segment
	provider := candles.NewProvider(map[domain.MarketSegment]*candles.Client{
		domain.SegmentSpot:   newCandleClient(cfg, cfg.CandlesSpotURL, domain.SegmentSpot, mon, metrics, logger),
		domain.SegmentMargin: newCandleClient(cfg, cfg.CandlesMtURL, domain.SegmentMargin, mon, metrics, logger),
	})
	if len(provider.Segments()) == 0 {
		logger.Warn("no candle service configured; single-pair history and margin dictionary will fail")
	}

	server := api.NewServer(&api.Server{
		Bus:        bus,
		Metrics:    metrics,
		Reconciler: rates.NewReconciler(directory, feed, cfg.HistoryConcurrency, logger.Named("history")),
		Resolver:   rates.NewResolver(provider, domain.SegmentSpot, mon, logger.Named("candles")),
		Snapshot:   rates.NewSnapshot(directory, store, provider, logger.Named("snapshot")),
		OrderBooks: orderbook.NewAssembler(store, directory, cfg.HistoryConcurrency),
		Directory:  directory,
		DB:         database,
		Cache:      store,
		Logger:     logger.Named("api"),
	}, api.Options{
		RequestTimeout: cfg.RequestTimeout,
		CORSOrigins:    cfg.CORSOrigins,
	})
	go server.RunRateBroadcast(ctx, cfg.RateStreamInterval)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("api listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case sig := <-sigChan:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-serveErr:
		if err != nil {
			return errors.Wrap(err, "api server")
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("api shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
	return nil
}

// newCandleClient returns nil when the segment has no base URL; the provider skips it.
func newCandleClient(cfg *config.Config, baseURL string, segment domain.MarketSegment, mon *monitor.Monitor, metrics *monitor.Metrics, logger *zap.Logger) *candles.Client {
	if baseURL == "" {
		return nil
	}
	source := "candles:" + segment.String()
	return candles.NewClient(baseURL,
		candles.WithRateLimit(cfg.CandlesRPS),
		candles.WithTimeout(cfg.CandlesTimeout),
		candles.WithLogger(logger.Named("candles").With(zap.String("segment", segment.String()))),
		candles.WithObserver(func(elapsed time.Duration, err error) {
			mon.Observe(source, metrics.CandlesLatency, elapsed, err)
		}),
	)
}
