package storage

import (
	"context"
	"errors"
	"time"

	"bankroll/internal/core"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate")
)

// User is an account as persisted; the password is only ever kept hashed.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Confirmed    bool
	ConfirmToken string
	CreatedAt    time.Time
}

type (
	// RecordStore persists bet records. Every method is scoped to one user.
	RecordStore interface {
		ListRecords(ctx context.Context, userID string) ([]core.BetRecord, error)
		InsertRecord(ctx context.Context, r core.BetRecord) (core.BetRecord, error)
		GetRecord(ctx context.Context, userID string, id int64) (core.BetRecord, error)
		DeleteRecord(ctx context.Context, userID string, id int64) error
		// DeleteRange removes the records dated within [start, end] and
		// returns how many were removed.
		DeleteRange(ctx context.Context, userID string, start, end time.Time) (int64, error)
	}

	UserStore interface {
		CreateUser(ctx context.Context, u User) error
		GetUserByEmail(ctx context.Context, email string) (User, error)
		// ConfirmUser marks the account owning token as confirmed.
		ConfirmUser(ctx context.Context, token string) (User, error)
	}

	ProfileStore interface {
		// GetInitialBank reports false when the user never set one.
		GetInitialBank(ctx context.Context, userID string) (decimal.Decimal, bool, error)
		SetInitialBank(ctx context.Context, userID string, amount decimal.Decimal) error
	}

	// Store is a complete data backend.
	Store interface {
		RecordStore
		UserStore
		ProfileStore
		Ping(ctx context.Context) error
		Close() error
	}
)
