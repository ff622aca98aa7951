package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"bankroll/internal/amqp"
	"bankroll/internal/auth"
	"bankroll/internal/cache"
	"bankroll/internal/core"
	"bankroll/internal/storage"
	"bankroll/internal/storage/memory"

	"github.com/redis/go-redis/v9"
)

const cacheCleanupInterval = time.Minute

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend opens the store, the caches and the optional AMQP publisher.
// On error everything opened so far is closed again.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var cleanups []CleanupFunc
	cleanupAll := func() error {
		var errs []error
		for i := len(cleanups) - 1; i >= 0; i-- {
			errs = append(errs, cleanups[i]())
		}
		return errors.Join(errs...)
	}

	store, err := f.createStore(ctx, config)
	if err != nil {
		return nil, err
	}
	cleanups = append(cleanups, store.Close)

	caches, closeCaches, err := f.createCaches(ctx, config)
	if err != nil {
		_ = cleanupAll()
		return nil, err
	}
	cleanups = append(cleanups, closeCaches)

	result := &BackendResult{Store: store, Caches: caches}

	// AMQP is optional: without it the ledger works but nothing is exported.
	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without export", "error", err)
		} else {
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
			result.AMQP = client
			result.Publisher = client
			cleanups = append(cleanups, client.Close)
		}
	}

	result.Cleanup = cleanupAll
	return result, nil
}

func (f *DefaultFactory) createStore(ctx context.Context, config Config) (storage.Store, error) {
	switch config.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
		return repo, nil
	case PostgresBackend:
		repo, err := storage.NewPostgresRepository(ctx, config.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Postgres repository: %w", err)
		}
		f.logger.Info("Initialized Postgres backend")
		return repo, nil
	case MemoryBackend:
		f.logger.Info("Initialized memory backend")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createCaches(ctx context.Context, config Config) (Caches, CleanupFunc, error) {
	size := config.CacheSize
	if size <= 0 {
		size = 1000
	}
	recordsTTL := config.RecordsTTL
	if recordsTTL <= 0 {
		recordsTTL = 5 * time.Minute
	}
	sessionTTL := config.SessionTTL
	if sessionTTL <= 0 {
		sessionTTL = 24 * time.Hour
	}
	// A zero debounce disables the duplicate-submit guard.
	debounce := config.SubmitDebounce

	if config.CacheType == RedisCache {
		client, err := cache.NewRedisClient(ctx, config.RedisAddr, config.RedisPassword, config.RedisDB)
		if err != nil {
			return Caches{}, nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		f.logger.Info("Initialized Redis caches", "addr", config.RedisAddr)
		return redisCaches(client, recordsTTL, debounce, sessionTTL), client.Close, nil
	}

	manager := cache.NewManager(f.logger)
	caches := Caches{
		Records:  cache.NewLRUCache[[]core.BetRecord](size, recordsTTL),
		Sessions: cache.NewLRUCache[auth.Session](size, sessionTTL),
	}
	manager.Register(caches.Records)
	manager.Register(caches.Sessions)
	if debounce > 0 {
		submissions := cache.NewLRUCache[bool](size, debounce)
		manager.Register(submissions)
		caches.Submissions = submissions
	}
	manager.StartCleanup(cacheCleanupInterval)
	f.logger.Info("Initialized in-memory caches", "size", size)

	return caches, func() error {
		manager.Stop()
		return nil
	}, nil
}

func redisCaches(client redis.UniversalClient, recordsTTL, debounce, sessionTTL time.Duration) Caches {
	caches := Caches{
		Records:  cache.NewRedisCache[[]core.BetRecord](client, "bankroll:records:", recordsTTL),
		Sessions: cache.NewRedisCache[auth.Session](client, "bankroll:sessions:", sessionTTL),
	}
	if debounce > 0 {
		caches.Submissions = cache.NewRedisCache[bool](client, "bankroll:submissions:", debounce)
	}
	return caches
}
