// Package storage opens the session repository and garden stores selected by
// configuration.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/scottdixon-github/App-Garden/internal/cache"
	"github.com/scottdixon-github/App-Garden/internal/config"
	"github.com/scottdixon-github/App-Garden/internal/domain"
	"github.com/scottdixon-github/App-Garden/internal/persistence/bolt"
	"github.com/scottdixon-github/App-Garden/internal/persistence/kv"
	"github.com/scottdixon-github/App-Garden/internal/persistence/postgres"
	"github.com/scottdixon-github/App-Garden/internal/persistence/sqlite"
)

const sqliteDSN = "file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

// Stores bundles everything the services need from storage.
type Stores struct {
	Sessions domain.SessionRepository
	Garden   domain.GardenStores

	// Pool is set for the postgres driver.
	Pool *pgxpool.Pool
	// Redis is set when the redis kv driver or the snapshot cache is enabled.
	Redis *redis.Client

	closers []func() error
}

// Open builds the stores for cfg. Call Close when done.
func Open(ctx context.Context, cfg config.Config, logger *zap.Logger) (_ *Stores, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Stores{}
	defer func() {
		if err != nil {
			s.Close()
		}
	}()

	if cfg.Store.KVDriver == config.KVRedis || cfg.Redis.CacheEnabled {
		client, err := cache.NewClient(ctx, cfg.Redis.URL)
		if err != nil {
			return nil, err
		}
		s.Redis = client
		s.closers = append(s.closers, client.Close)
	}

	switch cfg.Store.Driver {
	case config.DriverSQLite:
		db, repo, err := openSQLite(ctx, cfg.Store.SQLitePath, cfg.Store.SeedSample)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, db.Close)
		s.Sessions = repo
		s.Garden = kv.GardenStores(sqlite.NewDocumentStore(db))

	case config.DriverPostgres:
		if cfg.Postgres.AutoMigrate {
			if err := postgres.RunMigrations(cfg.Postgres.URL, cfg.Postgres.MigrationsPath, logger); err != nil {
				return nil, err
			}
		}
		pool, err := pgxpool.New(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		s.closers = append(s.closers, func() error { pool.Close(); return nil })
		s.Pool = pool
		s.Sessions = postgres.NewRepository(pool, cfg.Kafka.Topic)

		store, err := s.openKV(cfg)
		if err != nil {
			return nil, err
		}
		s.Garden = kv.GardenStores(store)

	default:
		store, err := s.openKV(cfg)
		if err != nil {
			return nil, err
		}
		s.Sessions = kv.NewSessionRepository(store, cfg.Store.SeedSample)
		s.Garden = kv.GardenStores(store)
	}

	logger.Info("storage opened",
		zap.String("driver", cfg.Store.Driver),
		zap.String("kv_driver", cfg.Store.KVDriver),
		zap.Bool("redis", s.Redis != nil),
	)
	return s, nil
}

func (s *Stores) openKV(cfg config.Config) (kv.Store, error) {
	switch cfg.Store.KVDriver {
	case config.KVRedis:
		return kv.NewRedisStore(s.Redis, cfg.Redis.KeyPrefix), nil
	case config.KVMemory:
		return kv.NewMemoryStore(), nil
	default:
		store, err := bolt.Open(cfg.Store.BoltPath, "")
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, store.Close)
		return store, nil
	}
}

func openSQLite(ctx context.Context, path string, seed bool) (*sql.DB, *sqlite.SessionRepository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create sqlite directory: %w", err)
	}
	db, err := sql.Open("sqlite", fmt.Sprintf(sqliteDSN, path))
	if err != nil {
		return nil, nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer at a time keeps sqlite from returning SQLITE_BUSY under load.
	db.SetMaxOpenConns(1)

	repo := sqlite.NewSessionRepository(db)
	if err := repo.InitTable(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	if seed {
		if err := repo.Seed(ctx, domain.SampleSessions()); err != nil {
			db.Close()
			return nil, nil, err
		}
	}
	return db, repo, nil
}

// Close releases every opened resource, most recent first.
func (s *Stores) Close() error {
	var err error
	for i := len(s.closers) - 1; i >= 0; i-- {
		err = errors.Join(err, s.closers[i]())
	}
	s.closers = nil
	return err
}
