// Package storagetest holds behaviour checks shared by every Store backend.
package storagetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"bankroll/internal/core"
	"bankroll/internal/storage"

	"github.com/shopspring/decimal"
)

func noonUTC(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, core.EntryHour, 0, 0, 0, time.UTC)
}

func record(user, amount string, date time.Time) core.BetRecord {
	a := decimal.RequireFromString(amount)
	return core.BetRecord{
		UserID:      user,
		Description: core.DefaultDescription,
		Amount:      a,
		Status:      core.StatusFromAmount(a),
		Date:        date,
	}
}

// RunStoreContract exercises a fresh, empty store.
func RunStoreContract(t *testing.T, newStore func(t *testing.T) storage.Store) {
	t.Run("records", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		created, err := s.InsertRecord(ctx, record("u1", "50", noonUTC(2024, time.March, 5)))
		if err != nil {
			t.Fatalf("insert: %v", err)
		}
		if created.ID == 0 || !created.Amount.Equal(decimal.NewFromInt(50)) || created.Status != core.Green {
			t.Fatalf("unexpected created record %+v", created)
		}
		if _, err := s.InsertRecord(ctx, record("u1", "-30", noonUTC(2024, time.March, 5))); err != nil {
			t.Fatalf("insert: %v", err)
		}
		if _, err := s.InsertRecord(ctx, record("u1", "20.5", noonUTC(2024, time.April, 7))); err != nil {
			t.Fatalf("insert: %v", err)
		}
		if _, err := s.InsertRecord(ctx, record("u2", "99", noonUTC(2024, time.March, 5))); err != nil {
			t.Fatalf("insert: %v", err)
		}

		list, err := s.ListRecords(ctx, "u1")
		if err != nil || len(list) != 3 {
			t.Fatalf("expected 3 records for u1, got %d (err=%v)", len(list), err)
		}
		if !list[0].Date.Equal(noonUTC(2024, time.March, 5)) {
			t.Fatalf("date did not round-trip: %v", list[0].Date)
		}
		if !core.RunningBankroll(decimal.Zero, list).Equal(decimal.RequireFromString("40.5")) {
			t.Fatalf("unexpected amounts %+v", list)
		}

		got, err := s.GetRecord(ctx, "u1", created.ID)
		if err != nil || got.ID != created.ID {
			t.Fatalf("get: %+v err=%v", got, err)
		}
		if _, err := s.GetRecord(ctx, "u2", created.ID); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("expected not found across users, got %v", err)
		}

		march := core.Window{Year: 2024, Month: time.March}
		start, end := march.Bounds()
		n, err := s.DeleteRange(ctx, "u1", start, end)
		if err != nil || n != 2 {
			t.Fatalf("expected 2 deleted, got %d (err=%v)", n, err)
		}
		list, _ = s.ListRecords(ctx, "u1")
		if len(list) != 1 || list[0].Date.Month() != time.April {
			t.Fatalf("april record must survive clearing march: %+v", list)
		}
		other, _ := s.ListRecords(ctx, "u2")
		if len(other) != 1 {
			t.Fatalf("other user's records must survive: %+v", other)
		}

		if err := s.DeleteRecord(ctx, "u1", list[0].ID); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if err := s.DeleteRecord(ctx, "u1", list[0].ID); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("expected not found on second delete, got %v", err)
		}
	})

	t.Run("undated record", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		if _, err := s.InsertRecord(ctx, record("u1", "10", time.Time{})); err != nil {
			t.Fatalf("insert: %v", err)
		}
		list, err := s.ListRecords(ctx, "u1")
		if err != nil || len(list) != 1 || !list[0].Date.IsZero() {
			t.Fatalf("expected one undated record, got %+v (err=%v)", list, err)
		}
	})

	t.Run("users", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		u := storage.User{ID: "id-1", Email: "a@b.c", PasswordHash: "h", ConfirmToken: "tok"}
		if err := s.CreateUser(ctx, u); err != nil {
			t.Fatalf("create: %v", err)
		}
		if err := s.CreateUser(ctx, storage.User{ID: "id-2", Email: "a@b.c", PasswordHash: "h"}); !errors.Is(err, storage.ErrDuplicate) {
			t.Fatalf("expected duplicate, got %v", err)
		}
		got, err := s.GetUserByEmail(ctx, "a@b.c")
		if err != nil || got.ID != "id-1" || got.Confirmed {
			t.Fatalf("unexpected user %+v err=%v", got, err)
		}
		if _, err := s.GetUserByEmail(ctx, "x@y.z"); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
		confirmed, err := s.ConfirmUser(ctx, "tok")
		if err != nil || !confirmed.Confirmed || confirmed.ID != "id-1" {
			t.Fatalf("confirm: %+v err=%v", confirmed, err)
		}
		if _, err := s.ConfirmUser(ctx, "tok"); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("token must be single use, got %v", err)
		}
	})

	t.Run("profiles", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		if _, ok, err := s.GetInitialBank(ctx, "u1"); err != nil || ok {
			t.Fatalf("expected no bank yet, ok=%v err=%v", ok, err)
		}
		if err := s.SetInitialBank(ctx, "u1", decimal.RequireFromString("250.5")); err != nil {
			t.Fatalf("set: %v", err)
		}
		if err := s.SetInitialBank(ctx, "u1", decimal.RequireFromString("300")); err != nil {
			t.Fatalf("set again: %v", err)
		}
		v, ok, err := s.GetInitialBank(ctx, "u1")
		if err != nil || !ok || !v.Equal(decimal.NewFromInt(300)) {
			t.Fatalf("unexpected bank %s ok=%v err=%v", v, ok, err)
		}
	})
}
