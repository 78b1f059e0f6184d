package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/scottdixon-github/App-Garden/internal/config"
	"github.com/scottdixon-github/App-Garden/internal/lifecycle"
	"github.com/scottdixon-github/App-Garden/internal/logging"
	"github.com/scottdixon-github/App-Garden/internal/outbox"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger := logging.New(logging.Config{Level: cfg.Logger.Level, Encoding: cfg.Logger.Encoding}).Named("dlq")
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	lm := lifecycle.New(cfg.HTTP.ShutdownTimeout, logger)
	lm.Listen(cancel)

	pool, err := pgxpool.New(ctx, cfg.Postgres.URL)
	if err != nil {
		logger.Fatal("connect postgres", zap.Error(err))
	}
	lm.Register("postgres", func(context.Context) error {
		pool.Close()
		return nil
	})

	metricsSrv := &http.Server{Addr: cfg.HTTP.MetricsAddress, Handler: promhttp.Handler()}
	go func() {
		logger.Info("dlq manager metrics listening", zap.String("address", cfg.HTTP.MetricsAddress))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", zap.Error(err))
		}
	}()
	lm.Register("metrics server", metricsSrv.Shutdown)

	manager := outbox.NewDLQManager(pool, cfg.DLQ.MaxRetries, cfg.DLQ.BaseDelay, logger)
	manager.Run(ctx, cfg.DLQ.PollInterval, cfg.DLQ.BatchSize)

	if err := lm.Shutdown(context.Background()); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
