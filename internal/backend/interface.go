package backend

import (
	"context"
	"time"

	"bankroll/internal/amqp"
	"bankroll/internal/auth"
	"bankroll/internal/cache"
	"bankroll/internal/core"
	"bankroll/internal/services"
	"bankroll/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Caches groups the caches the API server needs.
type Caches struct {
	Records     cache.Cache[[]core.BetRecord]
	Submissions cache.Cache[bool]
	Sessions    cache.Cache[auth.Session]
}

// BackendResult contains everything the API server reads and writes through.
type BackendResult struct {
	Store     storage.Store
	Caches    Caches
	Publisher services.EventPublisher // nil when AMQP is not configured
	AMQP      *amqp.Client
	Cleanup   CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	SQLiteDBPath string
	PostgresDSN  string

	CacheType      CacheType
	CacheSize      int
	RecordsTTL     time.Duration
	SubmitDebounce time.Duration
	SessionTTL     time.Duration
	RedisAddr      string
	RedisPassword  string
	RedisDB        int

	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// BackendType represents the type of backend
type BackendType string

const (
	MemoryBackend   BackendType = "memory"
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend, PostgresBackend:
		return true
	default:
		return false
	}
}

type CacheType string

const (
	MemoryCache CacheType = "memory"
	RedisCache  CacheType = "redis"
)

func (ct CacheType) IsValid() bool {
	return ct == MemoryCache || ct == RedisCache
}
