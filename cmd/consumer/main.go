package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/scottdixon-github/App-Garden/internal/cache"
	"github.com/scottdixon-github/App-Garden/internal/config"
	"github.com/scottdixon-github/App-Garden/internal/consumer"
	"github.com/scottdixon-github/App-Garden/internal/domain"
	"github.com/scottdixon-github/App-Garden/internal/lifecycle"
	"github.com/scottdixon-github/App-Garden/internal/logging"
	"github.com/scottdixon-github/App-Garden/internal/observability"
	"github.com/scottdixon-github/App-Garden/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger := logging.New(logging.Config{Level: cfg.Logger.Level, Encoding: cfg.Logger.Encoding}).Named("consumer")
	defer logger.Sync()

	if cfg.Store.Driver != config.DriverPostgres {
		logger.Fatal("the consumer requires STORE_DRIVER=postgres", zap.String("driver", cfg.Store.Driver))
	}
	// Garden lists are served by the api only.
	cfg.Store.KVDriver = config.KVMemory

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	lm := lifecycle.New(cfg.HTTP.ShutdownTimeout, logger)
	lm.Listen(cancel)

	stores, err := storage.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("open storage", zap.Error(err))
	}
	lm.RegisterCloser("storage", stores)

	notifier := domain.MultiNotifier{observability.SnapshotRecorder{}}
	redisClient := stores.Redis
	if redisClient == nil {
		if client, err := cache.NewClient(ctx, cfg.Redis.URL); err != nil {
			logger.Warn("redis unavailable, snapshot updates stay local", zap.Error(err))
		} else {
			redisClient = client
			lm.RegisterCloser("redis", client)
		}
	}
	if redisClient != nil {
		notifier = append(notifier, cache.NewRedisNotifier(redisClient, cfg.Redis.UpdateChannel))
	}

	opts := []domain.Option{
		domain.WithClock(cfg.Clock()),
		domain.WithNotifier(notifier),
		domain.WithLogger(logger),
	}
	if cfg.Redis.CacheEnabled {
		opts = append(opts, domain.WithCache(cache.NewRedisSnapshotCache(stores.Redis)))
	}
	service := domain.NewService(stores.Sessions, opts...)

	handler := consumer.Handlers{
		consumer.NewPersistenceHandler(stores.Pool),
		consumer.NewSnapshotProjector(service, logger),
	}

	metricsSrv := &http.Server{Addr: cfg.HTTP.MetricsAddress, Handler: promhttp.Handler()}
	go func() {
		logger.Info("consumer metrics listening", zap.String("address", cfg.HTTP.MetricsAddress))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", zap.Error(err))
		}
	}()
	lm.Register("metrics server", metricsSrv.Shutdown)

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:         cfg.Kafka.Brokers,
		GroupID:         cfg.Kafka.ConsumerGroup,
		Topic:           cfg.Kafka.Topic,
		MinBytes:        1e3,
		MaxBytes:        10e6,
		CommitInterval:  time.Second,
		RetentionTime:   24 * time.Hour,
		ReadLagInterval: -1,
	})
	lm.RegisterCloser("kafka reader", reader)

	proc := consumer.NewProcessor(reader, handler, consumer.WithLogger(logger))
	logger.Info("consumer started", zap.String("topic", cfg.Kafka.Topic), zap.String("group", cfg.Kafka.ConsumerGroup))
	if err := proc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("consumer stopped", zap.Error(err))
	}

	if err := lm.Shutdown(context.Background()); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
