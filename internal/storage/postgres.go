package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

// PostgresRepository is the shared-database backend.
type PostgresRepository struct {
	sqlStore
}

func NewPostgresRepository(ctx context.Context, dsn string) (*PostgresRepository, error) {
	if _, err := pq.ParseURL(dsn); err != nil && !looksLikeKeyValueDSN(dsn) {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations("postgres", dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &PostgresRepository{
		sqlStore: sqlStore{db: db, d: dialect{name: "postgres", postgres: true, isUnique: isPostgresUnique}},
	}, nil
}

// looksLikeKeyValueDSN accepts "host=... dbname=..." connection strings,
// which pq.ParseURL rejects.
func looksLikeKeyValueDSN(dsn string) bool {
	return strings.Contains(dsn, "=")
}

func isPostgresUnique(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

var _ Store = (*PostgresRepository)(nil)

// Truncate empties every table. Used by integration tests.
func (r *PostgresRepository) Truncate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, "TRUNCATE bets, users, profiles RESTART IDENTITY")
	return err
}
