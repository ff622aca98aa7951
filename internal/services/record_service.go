package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"bankroll/internal/amqp"
	"bankroll/internal/cache"
	"bankroll/internal/core"
	"bankroll/internal/metrics"
	"bankroll/internal/storage"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

// DefaultStoreTimeout bounds every call into the data backend.
const DefaultStoreTimeout = 7 * time.Second

var (
	ErrDuplicateSubmission = errors.New("identical record submitted moments ago")
	ErrFetchFailed         = errors.New("could not load records")
)

// EventPublisher receives a message after every successful ledger write.
type EventPublisher interface {
	PublishRecordEvent(ctx context.Context, msg *amqp.RecordEventMessage) error
}

// Repository is the part of a storage backend the ledger needs.
type Repository interface {
	storage.RecordStore
	storage.ProfileStore
}

type RecordServiceConfig struct {
	// InitialBank is the baseline for users who never saved one.
	InitialBank  decimal.Decimal
	Location     *time.Location
	StoreTimeout time.Duration
}

// RecordService orchestrates ledger operations across the store, the read
// cache and the event broker.
type RecordService struct {
	repo        Repository
	records     cache.Cache[[]core.BetRecord]
	submissions cache.Cache[bool]
	publisher   EventPublisher
	metrics     *metrics.Metrics
	cfg         RecordServiceConfig
	group       singleflight.Group

	// gens counts invalidations per user; a fetch that overlaps one must
	// not repopulate the cache with its older snapshot.
	genMu sync.Mutex
	gens  map[string]uint64
}

// NewRecordService wires the service. records, submissions, publisher and m
// are optional.
func NewRecordService(
	repo Repository,
	records cache.Cache[[]core.BetRecord],
	submissions cache.Cache[bool],
	publisher EventPublisher,
	m *metrics.Metrics,
	cfg RecordServiceConfig,
) *RecordService {
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = DefaultStoreTimeout
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &RecordService{
		repo:        repo,
		records:     records,
		submissions: submissions,
		publisher:   publisher,
		metrics:     m,
		cfg:         cfg,
		gens:        make(map[string]uint64),
	}
}

// Location is the calendar timezone used to pin and bucket records.
func (s *RecordService) Location() *time.Location {
	return s.cfg.Location
}

func (s *RecordService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.cfg.StoreTimeout)
}

// Records returns every record of the user. Concurrent calls for the same
// user share one store round-trip.
func (s *RecordService) Records(ctx context.Context, userID string) ([]core.BetRecord, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, core.ErrEmptyUser
	}
	if s.records != nil {
		cached, ok := s.records.Get(ctx, userID)
		s.metrics.CacheLookup("records", ok)
		if ok {
			return cached, nil
		}
	}

	v, err, _ := s.group.Do(userID, func() (any, error) {
		fctx, cancel := s.withTimeout(context.WithoutCancel(ctx))
		defer cancel()
		gen := s.generation(userID)
		list, err := s.repo.ListRecords(fctx, userID)
		if err != nil {
			return nil, err
		}
		s.storeIfCurrent(fctx, userID, gen, list)
		return list, nil
	})
	if err != nil {
		slog.ErrorContext(ctx, "Failed to fetch records", "user_id", userID, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	return v.([]core.BetRecord), nil
}

// RecordsInWindow narrows Records to one month.
func (s *RecordService) RecordsInWindow(ctx context.Context, userID string, w core.Window) ([]core.BetRecord, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	all, err := s.Records(ctx, userID)
	if err != nil {
		return nil, err
	}
	if w.Location == nil {
		w.Location = s.cfg.Location
	}
	return core.InWindow(all, w), nil
}

func (s *RecordService) generation(userID string) uint64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.gens[userID]
}

// storeIfCurrent caches list unless the user was invalidated after gen was read.
func (s *RecordService) storeIfCurrent(ctx context.Context, userID string, gen uint64, list []core.BetRecord) {
	if s.records == nil {
		return
	}
	s.genMu.Lock()
	defer s.genMu.Unlock()
	if s.gens[userID] != gen {
		slog.DebugContext(ctx, "Dropping stale records snapshot", "user_id", userID)
		return
	}
	s.records.Set(ctx, userID, list)
}

func (s *RecordService) invalidate(ctx context.Context, userID string) {
	s.genMu.Lock()
	s.gens[userID]++
	if s.records != nil {
		s.records.Delete(ctx, userID)
	}
	s.genMu.Unlock()
	s.group.Forget(userID)
}

func submissionKey(r core.BetRecord) string {
	return strings.Join([]string{
		r.UserID,
		r.Date.Format(time.DateOnly),
		r.Amount.StringFixed(2),
		string(r.Status),
		r.Description,
	}, "|")
}

// Create validates and stores a new record. An identical submission from the
// same user inside the debounce window is rejected.
func (s *RecordService) Create(ctx context.Context, in core.RecordInput) (core.BetRecord, error) {
	rec, err := core.NewRecord(in, s.cfg.Location)
	if err != nil {
		return core.BetRecord{}, err
	}

	key := submissionKey(rec)
	if s.submissions != nil && !s.submissions.Add(ctx, key, true) {
		slog.WarnContext(ctx, "Duplicate submission rejected", "user_id", rec.UserID)
		return core.BetRecord{}, ErrDuplicateSubmission
	}

	sctx, cancel := s.withTimeout(ctx)
	defer cancel()
	created, err := s.repo.InsertRecord(sctx, rec)
	if err != nil {
		if s.submissions != nil {
			s.submissions.Delete(ctx, key)
		}
		return core.BetRecord{}, fmt.Errorf("save record: %w", err)
	}

	s.invalidate(ctx, rec.UserID)
	s.publish(ctx, amqp.NewRecordCreatedMessage(created))
	return created, nil
}

// Delete removes one record of the user.
func (s *RecordService) Delete(ctx context.Context, userID string, id int64) error {
	sctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rec, err := s.repo.GetRecord(sctx, userID, id)
	if err != nil {
		return fmt.Errorf("load record %d: %w", id, err)
	}
	if err := s.repo.DeleteRecord(sctx, userID, id); err != nil {
		return fmt.Errorf("delete record %d: %w", id, err)
	}

	s.invalidate(ctx, userID)
	s.publish(ctx, amqp.NewRecordDeletedMessage(rec))
	return nil
}

// ClearMonth deletes every record of the user dated inside the window and
// returns how many were removed. Other months are untouched.
func (s *RecordService) ClearMonth(ctx context.Context, userID string, w core.Window) (int64, error) {
	if strings.TrimSpace(userID) == "" {
		return 0, core.ErrEmptyUser
	}
	if err := w.Validate(); err != nil {
		return 0, err
	}
	if w.Location == nil {
		w.Location = s.cfg.Location
	}
	start, end := w.Bounds()

	sctx, cancel := s.withTimeout(ctx)
	defer cancel()
	n, err := s.repo.DeleteRange(sctx, userID, start, end)
	if err != nil {
		return 0, fmt.Errorf("clear month: %w", err)
	}

	s.invalidate(ctx, userID)
	s.publish(ctx, amqp.NewMonthClearedMessage(userID, w, n))
	return n, nil
}

// InitialBank returns the user's baseline, falling back to the configured
// default when none was saved.
func (s *RecordService) InitialBank(ctx context.Context, userID string) (decimal.Decimal, error) {
	sctx, cancel := s.withTimeout(ctx)
	defer cancel()
	v, ok, err := s.repo.GetInitialBank(sctx, userID)
	if err != nil {
		return s.cfg.InitialBank, fmt.Errorf("load initial bank: %w", err)
	}
	if !ok {
		return s.cfg.InitialBank, nil
	}
	return v, nil
}

func (s *RecordService) SetInitialBank(ctx context.Context, userID string, amount decimal.Decimal) error {
	if strings.TrimSpace(userID) == "" {
		return core.ErrEmptyUser
	}
	if amount.IsNegative() {
		return core.ErrInvalidAmount
	}
	sctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.repo.SetInitialBank(sctx, userID, amount.Round(2)); err != nil {
		return fmt.Errorf("save initial bank: %w", err)
	}
	return nil
}

// Dashboard builds the calendar view. A failed fetch does not block the view:
// the dashboard is built from zero records and the error is returned with it.
func (s *RecordService) Dashboard(ctx context.Context, userID string, nav core.Navigator) (core.Dashboard, error) {
	if nav.Window.Location == nil {
		nav.Window.Location = s.cfg.Location
	}

	records, fetchErr := s.Records(ctx, userID)
	if fetchErr != nil {
		records = nil
	}

	bank, err := s.InitialBank(ctx, userID)
	if err != nil {
		slog.WarnContext(ctx, "Using default initial bank", "user_id", userID, "error", err)
	}

	return core.BuildDashboard(records, nav, bank), fetchErr
}

func (s *RecordService) publish(ctx context.Context, msg *amqp.RecordEventMessage) {
	s.metrics.RecordEvent(string(msg.Type))
	if s.publisher == nil {
		slog.DebugContext(ctx, "No event publisher configured, skipping record event", "type", msg.Type)
		return
	}
	// The write already succeeded; a broker failure must not fail the request.
	if err := s.publisher.PublishRecordEvent(ctx, msg); err != nil {
		s.metrics.PublishFailed()
		slog.ErrorContext(ctx, "Failed to publish record event",
			"type", msg.Type,
			"user_id", msg.UserID,
			"error", err)
	}
}
