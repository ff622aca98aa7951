package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"bankroll/internal/core"

	"github.com/shopspring/decimal"
)

// dialect captures the few places where SQLite and Postgres differ.
type dialect struct {
	name     string
	postgres bool
	isUnique func(error) bool
}

// bind rewrites ? placeholders to $n for Postgres.
func (d dialect) bind(query string) string {
	if !d.postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// timeArg encodes an instant for a date column. SQLite keeps UTC RFC3339 text
// so that range comparisons stay lexicographic.
func (d dialect) timeArg(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	if d.postgres {
		return t
	}
	return t.UTC().Format(time.RFC3339)
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// parseDate returns the zero time for NULL or unparseable values so that the
// record still counts toward totals that do not depend on its date.
func parseDate(ns sql.NullString) time.Time {
	if !ns.Valid {
		return time.Time{}
	}
	v := strings.TrimSpace(ns.String)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t
		}
	}
	return time.Time{}
}

// sqlStore implements Store on top of database/sql for both SQL backends.
type sqlStore struct {
	db *sql.DB
	d  dialect
}

const recordColumns = "id, user_id, description, amount, status, created_at, date"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (core.BetRecord, error) {
	var (
		r         core.BetRecord
		status    string
		createdAt sql.NullString
		date      sql.NullString
	)
	if err := row.Scan(&r.ID, &r.UserID, &r.Description, &r.Amount, &status, &createdAt, &date); err != nil {
		return core.BetRecord{}, err
	}
	r.Status = core.Status(status)
	r.CreatedAt = parseDate(createdAt)
	r.Date = parseDate(date)
	return r, nil
}

func (s *sqlStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *sqlStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *sqlStore) ListRecords(ctx context.Context, userID string) ([]core.BetRecord, error) {
	rows, err := s.db.QueryContext(ctx, s.d.bind(
		"SELECT "+recordColumns+" FROM bets WHERE user_id = ? ORDER BY date, id"), userID)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var out []core.BetRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}

func (s *sqlStore) InsertRecord(ctx context.Context, r core.BetRecord) (core.BetRecord, error) {
	if err := r.Validate(); err != nil {
		return core.BetRecord{}, err
	}
	if r.Status == "" {
		r.Status = core.StatusFromAmount(r.Amount)
	}
	if r.Description == "" {
		r.Description = core.DefaultDescription
	}

	row := s.db.QueryRowContext(ctx, s.d.bind(
		"INSERT INTO bets (user_id, description, amount, status, date) VALUES (?, ?, ?, ?, ?) RETURNING "+recordColumns),
		r.UserID, r.Description, r.Amount.StringFixed(2), string(r.Status), s.d.timeArg(r.Date))
	created, err := scanRecord(row)
	if err != nil {
		return core.BetRecord{}, fmt.Errorf("insert record: %w", err)
	}

	slog.InfoContext(ctx, "Record saved",
		"backend", s.d.name,
		"id", created.ID,
		"user_id", created.UserID,
		"amount", created.Amount.String(),
		"status", created.Status)

	return created, nil
}

func (s *sqlStore) GetRecord(ctx context.Context, userID string, id int64) (core.BetRecord, error) {
	row := s.db.QueryRowContext(ctx, s.d.bind(
		"SELECT "+recordColumns+" FROM bets WHERE user_id = ? AND id = ?"), userID, id)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.BetRecord{}, ErrNotFound
	}
	if err != nil {
		return core.BetRecord{}, fmt.Errorf("get record %d: %w", id, err)
	}
	return r, nil
}

func (s *sqlStore) DeleteRecord(ctx context.Context, userID string, id int64) error {
	res, err := s.db.ExecContext(ctx, s.d.bind("DELETE FROM bets WHERE user_id = ? AND id = ?"), userID, id)
	if err != nil {
		return fmt.Errorf("delete record %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete record %d: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	slog.InfoContext(ctx, "Record deleted", "backend", s.d.name, "id", id, "user_id", userID)
	return nil
}

func (s *sqlStore) DeleteRange(ctx context.Context, userID string, start, end time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.d.bind(
		"DELETE FROM bets WHERE user_id = ? AND date >= ? AND date <= ?"),
		userID, s.d.timeArg(start), s.d.timeArg(end))
	if err != nil {
		return 0, fmt.Errorf("delete range: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete range: %w", err)
	}
	slog.InfoContext(ctx, "Records cleared",
		"backend", s.d.name,
		"user_id", userID,
		"start", start,
		"end", end,
		"deleted", n)
	return n, nil
}

func (s *sqlStore) CreateUser(ctx context.Context, u User) error {
	var token any
	if u.ConfirmToken != "" {
		token = u.ConfirmToken
	}
	_, err := s.db.ExecContext(ctx, s.d.bind(
		"INSERT INTO users (id, email, password_hash, confirmed, confirm_token) VALUES (?, ?, ?, ?, ?)"),
		u.ID, u.Email, u.PasswordHash, u.Confirmed, token)
	if err != nil {
		if s.d.isUnique(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

const userColumns = "id, email, password_hash, confirmed, confirm_token, created_at"

func scanUser(row rowScanner) (User, error) {
	var (
		u         User
		token     sql.NullString
		createdAt sql.NullString
	)
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Confirmed, &token, &createdAt); err != nil {
		return User{}, err
	}
	u.ConfirmToken = token.String
	u.CreatedAt = parseDate(createdAt)
	return u, nil
}

func (s *sqlStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := s.db.QueryRowContext(ctx, s.d.bind("SELECT "+userColumns+" FROM users WHERE email = ?"), email)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *sqlStore) ConfirmUser(ctx context.Context, token string) (User, error) {
	if token == "" {
		return User{}, ErrNotFound
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return User{}, fmt.Errorf("begin confirm: %w", err)
	}
	defer tx.Rollback()

	u, err := scanUser(tx.QueryRowContext(ctx, s.d.bind("SELECT "+userColumns+" FROM users WHERE confirm_token = ?"), token))
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("lookup confirm token: %w", err)
	}
	if _, err := tx.ExecContext(ctx, s.d.bind(
		"UPDATE users SET confirmed = ?, confirm_token = NULL WHERE id = ?"), true, u.ID); err != nil {
		return User{}, fmt.Errorf("confirm user: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return User{}, fmt.Errorf("commit confirm: %w", err)
	}
	u.Confirmed = true
	u.ConfirmToken = ""
	return u, nil
}

func (s *sqlStore) GetInitialBank(ctx context.Context, userID string) (decimal.Decimal, bool, error) {
	var amount decimal.Decimal
	err := s.db.QueryRowContext(ctx, s.d.bind("SELECT initial_bank FROM profiles WHERE user_id = ?"), userID).Scan(&amount)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("get initial bank: %w", err)
	}
	return amount, true, nil
}

func (s *sqlStore) SetInitialBank(ctx context.Context, userID string, amount decimal.Decimal) error {
	_, err := s.db.ExecContext(ctx, s.d.bind(
		`INSERT INTO profiles (user_id, initial_bank) VALUES (?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET initial_bank = excluded.initial_bank, updated_at = CURRENT_TIMESTAMP`),
		userID, amount.StringFixed(2))
	if err != nil {
		return fmt.Errorf("set initial bank: %w", err)
	}
	return nil
}
