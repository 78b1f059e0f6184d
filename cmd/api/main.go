package main

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/scottdixon-github/App-Garden/internal/api"
	"github.com/scottdixon-github/App-Garden/internal/cache"
	"github.com/scottdixon-github/App-Garden/internal/config"
	"github.com/scottdixon-github/App-Garden/internal/domain"
	"github.com/scottdixon-github/App-Garden/internal/lifecycle"
	"github.com/scottdixon-github/App-Garden/internal/logging"
	"github.com/scottdixon-github/App-Garden/internal/observability"
	"github.com/scottdixon-github/App-Garden/internal/outbox"
	"github.com/scottdixon-github/App-Garden/internal/realtime"
	"github.com/scottdixon-github/App-Garden/internal/storage"
	httptransport "github.com/scottdixon-github/App-Garden/internal/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger := logging.New(logging.Config{Level: cfg.Logger.Level, Encoding: cfg.Logger.Encoding})
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	lm := lifecycle.New(cfg.HTTP.ShutdownTimeout, logger)
	lm.Listen(cancel)

	stores, err := storage.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("open storage", zap.Error(err))
	}
	lm.RegisterCloser("storage", stores)

	var service *domain.Service
	hub := realtime.NewHub(func(ctx context.Context) (domain.Snapshot, error) {
		return service.Snapshot(ctx)
	}, logger.Named("realtime"))
	lm.RegisterCloser("websocket hub", hub)

	// With redis every process publishes there and the hub listens, so clients
	// also see snapshots recomputed by the consumer.
	notifier := domain.MultiNotifier{observability.SnapshotRecorder{}}
	if stores.Redis != nil {
		notifier = append(notifier, cache.NewRedisNotifier(stores.Redis, cfg.Redis.UpdateChannel))
		go func() {
			if err := hub.Bridge(ctx, stores.Redis, cfg.Redis.UpdateChannel); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("snapshot bridge stopped", zap.Error(err))
			}
		}()
	} else {
		notifier = append(notifier, hub)
	}

	opts := []domain.Option{
		domain.WithClock(cfg.Clock()),
		domain.WithNotifier(notifier),
		domain.WithLogger(logger.Named("domain")),
	}
	if cfg.Redis.CacheEnabled {
		opts = append(opts, domain.WithCache(cache.NewRedisSnapshotCache(stores.Redis)))
	}
	service = domain.NewService(stores.Sessions, opts...)
	garden := domain.NewGardenService(stores.Garden,
		domain.WithGardenClock(cfg.Clock()),
		domain.WithSampleData(cfg.Store.SeedSample),
	)

	if snap, err := service.Refresh(ctx); err != nil {
		logger.Warn("initial snapshot failed", zap.Error(err))
	} else {
		logger.Info("streak loaded", zap.Int("current_streak", snap.CurrentStreak), zap.Int("total_sessions", snap.TotalSessions))
	}

	if stores.Pool != nil {
		producer := outbox.NewKafkaProducer(cfg.Kafka.Brokers, outbox.WithProducerLogger(logger.Named("kafka")))
		lm.RegisterCloser("kafka producer", producer)

		registry := outbox.NewSchemaRegistryClient(cfg.Kafka.SchemaRegistryURL)
		dispatcher := outbox.NewDispatcher(stores.Pool, producer, registry, cfg.Outbox.PollInterval, cfg.Outbox.BatchSize,
			outbox.WithDispatcherLogger(logger.Named("outbox")))
		go dispatcher.Start(ctx)
		lm.Register("outbox dispatcher", func(context.Context) error {
			dispatcher.Wait()
			return nil
		})
	}

	handler := api.NewHandler(service, garden,
		api.WithLogger(logger.Named("http")),
		api.WithStreamHandler(hub.HandleWebSocket),
	)

	server := httptransport.NewServer(httptransport.ServerConfig{
		Address:      cfg.HTTP.Address,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		Logger:       logger.Named("http.server"),
	}, handler.Routes())
	lm.Register("http server", server.Shutdown)

	go func() {
		logger.Info("garden streak api listening", zap.String("address", cfg.HTTP.Address), zap.String("store", cfg.Store.Driver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
			cancel()
		}
	}()

	<-ctx.Done()
	if err := lm.Shutdown(context.Background()); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
