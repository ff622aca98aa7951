// Package memory is an in-process Store used for development and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"bankroll/internal/core"
	"bankroll/internal/storage"

	"github.com/shopspring/decimal"
)

type Store struct {
	mu       sync.Mutex
	nextID   int64
	records  []core.BetRecord
	users    map[string]storage.User // by email
	profiles map[string]decimal.Decimal
	now      func() time.Time
}

func New() *Store {
	return &Store{
		users:    make(map[string]storage.User),
		profiles: make(map[string]decimal.Decimal),
		now:      time.Now,
	}
}

// NewWithRecords seeds the store, assigning ids to records that lack one.
func NewWithRecords(records []core.BetRecord) *Store {
	s := New()
	for _, r := range records {
		if r.ID == 0 {
			s.nextID++
			r.ID = s.nextID
		} else if r.ID > s.nextID {
			s.nextID = r.ID
		}
		s.records = append(s.records, r)
	}
	return s
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

func (s *Store) ListRecords(_ context.Context, userID string) ([]core.BetRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.BetRecord
	for _, r := range s.records {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) InsertRecord(_ context.Context, r core.BetRecord) (core.BetRecord, error) {
	if err := r.Validate(); err != nil {
		return core.BetRecord{}, err
	}
	if r.Status == "" {
		r.Status = core.StatusFromAmount(r.Amount)
	}
	if r.Description == "" {
		r.Description = core.DefaultDescription
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	r.ID = s.nextID
	r.CreatedAt = s.now().UTC()
	s.records = append(s.records, r)
	return r, nil
}

func (s *Store) GetRecord(_ context.Context, userID string, id int64) (core.BetRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.ID == id && r.UserID == userID {
			return r, nil
		}
	}
	return core.BetRecord{}, storage.ErrNotFound
}

func (s *Store) DeleteRecord(_ context.Context, userID string, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.records {
		if r.ID == id && r.UserID == userID {
			s.records = append(s.records[:i], s.records[i+1:]...)
			return nil
		}
	}
	return storage.ErrNotFound
}

func (s *Store) DeleteRange(_ context.Context, userID string, start, end time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.records[:0]
	var n int64
	for _, r := range s.records {
		if r.UserID == userID && r.HasDate() && !r.Date.Before(start) && !r.Date.After(end) {
			n++
			continue
		}
		kept = append(kept, r)
	}
	s.records = kept
	return n, nil
}

func (s *Store) CreateUser(_ context.Context, u storage.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.Email]; ok {
		return storage.ErrDuplicate
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now().UTC()
	}
	s.users[u.Email] = u
	return nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (storage.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[email]
	if !ok {
		return storage.User{}, storage.ErrNotFound
	}
	return u, nil
}

func (s *Store) ConfirmUser(_ context.Context, token string) (storage.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token == "" {
		return storage.User{}, storage.ErrNotFound
	}
	for email, u := range s.users {
		if u.ConfirmToken == token {
			u.Confirmed = true
			u.ConfirmToken = ""
			s.users[email] = u
			return u, nil
		}
	}
	return storage.User{}, storage.ErrNotFound
}

func (s *Store) GetInitialBank(_ context.Context, userID string) (decimal.Decimal, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.profiles[userID]
	return v, ok, nil
}

func (s *Store) SetInitialBank(_ context.Context, userID string, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[userID] = amount.Round(2)
	return nil
}

var _ storage.Store = (*Store)(nil)
