package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"bankroll/internal/amqp"
	"bankroll/internal/cache"
	"bankroll/internal/core"
	"bankroll/internal/storage"
	"bankroll/internal/storage/memory"

	"github.com/shopspring/decimal"
)

type fakePublisher struct {
	mu   sync.Mutex
	msgs []*amqp.RecordEventMessage
	err  error
}

func (f *fakePublisher) PublishRecordEvent(_ context.Context, msg *amqp.RecordEventMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msg)
	return f.err
}

func (f *fakePublisher) types() []amqp.EventType {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []amqp.EventType
	for _, m := range f.msgs {
		out = append(out, m.Type)
	}
	return out
}

// countingRepo counts list calls and can block or fail them.
type countingRepo struct {
	Repository
	lists   atomic.Int32
	gate    chan struct{}
	listErr error
}

func (r *countingRepo) ListRecords(ctx context.Context, userID string) ([]core.BetRecord, error) {
	r.lists.Add(1)
	if r.gate != nil {
		<-r.gate
	}
	if r.listErr != nil {
		return nil, r.listErr
	}
	return r.Repository.ListRecords(ctx, userID)
}

func newTestService(repo Repository, pub EventPublisher) *RecordService {
	return NewRecordService(
		repo,
		cache.NewLRUCache[[]core.BetRecord](100, time.Minute),
		cache.NewLRUCache[bool](100, 2*time.Second),
		pub,
		nil,
		RecordServiceConfig{InitialBank: core.DefaultInitialBank},
	)
}

func input(amount string, day int) core.RecordInput {
	return core.RecordInput{UserID: "u1", Amount: decimal.RequireFromString(amount), Year: 2024, Month: 3, Day: day}
}

func TestRecordService_MarchScenario(t *testing.T) {
	pub := &fakePublisher{}
	svc := newTestService(memory.New(), pub)
	ctx := context.Background()

	for _, in := range []core.RecordInput{input("50", 5), input("-30", 5), input("20", 7)} {
		if _, err := svc.Create(ctx, in); err != nil {
			t.Fatalf("create %s: %v", in.Amount, err)
		}
	}

	nav, _ := core.NewNavigator(core.Window{Year: 2024, Month: time.March}).SelectDay(5)
	d, err := svc.Dashboard(ctx, "u1", nav)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if !d.Month.Total.Equal(decimal.NewFromInt(40)) || d.Month.WinRate != 66.7 {
		t.Fatalf("unexpected month %+v", d.Month)
	}
	if !d.Bankroll.CurrentBank.Equal(decimal.NewFromInt(1040)) {
		t.Fatalf("unexpected bank %s", d.Bankroll.CurrentBank)
	}
	if len(d.DayRecords) != 2 || d.DayRecords[0].Date.Hour() != core.EntryHour {
		t.Fatalf("unexpected day records %+v", d.DayRecords)
	}
	if got := pub.types(); len(got) != 3 || got[0] != amqp.RecordCreated {
		t.Fatalf("expected 3 created events, got %v", got)
	}
}

func TestRecordService_DuplicateSubmission(t *testing.T) {
	svc := newTestService(memory.New(), nil)
	ctx := context.Background()

	if _, err := svc.Create(ctx, input("50", 5)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Create(ctx, input("50", 5)); !errors.Is(err, ErrDuplicateSubmission) {
		t.Fatalf("expected duplicate submission, got %v", err)
	}
	if _, err := svc.Create(ctx, input("50", 6)); err != nil {
		t.Fatalf("different day must be accepted: %v", err)
	}
	list, _ := svc.Records(ctx, "u1")
	if len(list) != 2 {
		t.Fatalf("expected 2 records, got %d", len(list))
	}
}

func TestRecordService_InvalidInputNeverStored(t *testing.T) {
	svc := newTestService(memory.New(), nil)
	ctx := context.Background()
	if _, err := svc.Create(ctx, core.RecordInput{UserID: "u1", Amount: decimal.NewFromInt(1), Year: 2023, Month: 2, Day: 29}); !errors.Is(err, core.ErrInvalidDay) {
		t.Fatalf("expected invalid day, got %v", err)
	}
	list, _ := svc.Records(ctx, "u1")
	if len(list) != 0 {
		t.Fatalf("invalid record was stored")
	}
}

func TestRecordService_CacheInvalidatedOnWrite(t *testing.T) {
	repo := &countingRepo{Repository: memory.New()}
	svc := newTestService(repo, nil)
	ctx := context.Background()

	svc.Records(ctx, "u1")
	svc.Records(ctx, "u1")
	if repo.lists.Load() != 1 {
		t.Fatalf("second read must hit the cache, lists=%d", repo.lists.Load())
	}
	created, err := svc.Create(ctx, input("10", 1))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	list, _ := svc.Records(ctx, "u1")
	if len(list) != 1 || repo.lists.Load() != 2 {
		t.Fatalf("write must invalidate the cache: len=%d lists=%d", len(list), repo.lists.Load())
	}
	if err := svc.Delete(ctx, "u1", created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	list, _ = svc.Records(ctx, "u1")
	if len(list) != 0 {
		t.Fatalf("deleted record still listed")
	}
}

func TestRecordService_ConcurrentFetchesShareOneCall(t *testing.T) {
	repo := &countingRepo{Repository: memory.New(), gate: make(chan struct{})}
	svc := newTestService(repo, nil)
	ctx := context.Background()

	var started, done sync.WaitGroup
	for i := 0; i < 5; i++ {
		started.Add(1)
		done.Add(1)
		go func() {
			defer done.Done()
			started.Done()
			if _, err := svc.Records(ctx, "u1"); err != nil {
				t.Errorf("records: %v", err)
			}
		}()
	}
	started.Wait()
	for repo.lists.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	// Let the remaining callers join the in-flight call before it returns.
	time.Sleep(20 * time.Millisecond)
	close(repo.gate)
	done.Wait()

	if n := repo.lists.Load(); n != 1 {
		t.Fatalf("expected 1 store call for 5 concurrent readers, got %d", n)
	}
}

// snapshotRepo takes the first list snapshot, then holds it until released.
type snapshotRepo struct {
	Repository
	once    sync.Once
	taken   chan struct{}
	release chan struct{}
}

func (r *snapshotRepo) ListRecords(ctx context.Context, userID string) ([]core.BetRecord, error) {
	list, err := r.Repository.ListRecords(ctx, userID)
	first := false
	r.once.Do(func() { first = true })
	if first {
		close(r.taken)
		<-r.release
	}
	return list, err
}

func TestRecordService_WriteDuringFetchIsNotMaskedByCache(t *testing.T) {
	repo := &snapshotRepo{Repository: memory.New(), taken: make(chan struct{}), release: make(chan struct{})}
	svc := newTestService(repo, nil)
	ctx := context.Background()

	fetched := make(chan struct{})
	go func() {
		defer close(fetched)
		if _, err := svc.Records(ctx, "u1"); err != nil {
			t.Errorf("records: %v", err)
		}
	}()
	<-repo.taken
	if _, err := svc.Create(ctx, input("50", 5)); err != nil {
		t.Fatalf("create: %v", err)
	}
	close(repo.release)
	<-fetched

	cases := []struct {
		name string
		read func() ([]core.BetRecord, error)
	}{
		{"records", func() ([]core.BetRecord, error) { return svc.Records(ctx, "u1") }},
		{"window", func() ([]core.BetRecord, error) {
			return svc.RecordsInWindow(ctx, "u1", core.Window{Year: 2024, Month: time.March})
		}},
	}
	for _, tc := range cases {
		list, err := tc.read()
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if len(list) != 1 {
			t.Fatalf("%s: expected the record written during the fetch, got %d records", tc.name, len(list))
		}
	}
}

func TestRecordService_FetchFailureDoesNotBlockDashboard(t *testing.T) {
	mem := memory.New()
	mem.SetInitialBank(context.Background(), "u1", decimal.NewFromInt(500))
	repo := &countingRepo{Repository: mem, listErr: errors.New("network down")}
	svc := newTestService(repo, nil)

	d, err := svc.Dashboard(context.Background(), "u1", core.NewNavigator(core.Window{Year: 2024, Month: time.March}))
	if !errors.Is(err, ErrFetchFailed) {
		t.Fatalf("expected fetch failure, got %v", err)
	}
	if d.Month.Count != 0 || !d.Bankroll.CurrentBank.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("expected empty dashboard over the saved bank, got %+v", d.Bankroll)
	}
}

func TestRecordService_ClearMonth(t *testing.T) {
	pub := &fakePublisher{}
	svc := newTestService(memory.New(), pub)
	ctx := context.Background()

	svc.Create(ctx, input("50", 1))
	svc.Create(ctx, input("-30", 31))
	april := input("15", 2)
	april.Month = 4
	svc.Create(ctx, april)

	n, err := svc.ClearMonth(ctx, "u1", core.Window{Year: 2024, Month: time.March})
	if err != nil || n != 2 {
		t.Fatalf("expected 2 cleared, got %d err=%v", n, err)
	}
	list, _ := svc.Records(ctx, "u1")
	if len(list) != 1 || list[0].Date.Month() != time.April {
		t.Fatalf("april must survive: %+v", list)
	}
	types := pub.types()
	if types[len(types)-1] != amqp.MonthCleared {
		t.Fatalf("expected month.cleared last, got %v", types)
	}

	if _, err := svc.ClearMonth(ctx, "u1", core.Window{Year: 2024, Month: 13}); !errors.Is(err, core.ErrInvalidMonth) {
		t.Fatalf("expected invalid month, got %v", err)
	}
}

func TestRecordService_DeleteUnknown(t *testing.T) {
	svc := newTestService(memory.New(), nil)
	if err := svc.Delete(context.Background(), "u1", 42); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRecordService_PublishFailureKeepsWrite(t *testing.T) {
	svc := newTestService(memory.New(), &fakePublisher{err: errors.New("broker down")})
	if _, err := svc.Create(context.Background(), input("5", 1)); err != nil {
		t.Fatalf("broker failure must not fail the write: %v", err)
	}
}

func TestRecordService_InitialBank(t *testing.T) {
	svc := newTestService(memory.New(), nil)
	ctx := context.Background()

	v, err := svc.InitialBank(ctx, "u1")
	if err != nil || !v.Equal(core.DefaultInitialBank) {
		t.Fatalf("expected default bank, got %s err=%v", v, err)
	}
	if err := svc.SetInitialBank(ctx, "u1", decimal.NewFromInt(-1)); !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
	if err := svc.SetInitialBank(ctx, "u1", decimal.RequireFromString("2500.555")); err != nil {
		t.Fatalf("set: %v", err)
	}
	v, _ = svc.InitialBank(ctx, "u1")
	if !v.Equal(decimal.RequireFromString("2500.56")) {
		t.Fatalf("unexpected bank %s", v)
	}
}
