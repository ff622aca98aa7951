package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"bankroll/internal/amqp"
	"bankroll/internal/core"
	"bankroll/internal/metrics"

	"github.com/shopspring/decimal"
)

type fakeExporter struct {
	appended []core.BetRecord
	removed  []int64
	years    []int
	cleared  []core.Window
	reads    []int
	left     []core.BetRecord // rows ReadLedger still reports
	err      error
}

func (f *fakeExporter) AppendRecord(_ context.Context, r core.BetRecord) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.appended = append(f.appended, r)
	return "2024 Bets!A2:F2", nil
}

func (f *fakeExporter) RemoveRecord(_ context.Context, _ string, id int64, year int) error {
	if f.err != nil {
		return f.err
	}
	f.removed = append(f.removed, id)
	f.years = append(f.years, year)
	return nil
}

func (f *fakeExporter) ClearWindow(_ context.Context, _ string, w core.Window) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.cleared = append(f.cleared, w)
	return 2, nil
}

func (f *fakeExporter) ReadLedger(_ context.Context, _ string, year int) ([]core.BetRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.reads = append(f.reads, year)
	return f.left, nil
}

func assertExported(t *testing.T, m *metrics.Metrics, eventType, result string) {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	want := fmt.Sprintf(`bankroll_sheet_exports_total{result=%q,type=%q} 1`, result, eventType)
	if !strings.Contains(rec.Body.String(), want) {
		t.Fatalf("metrics output missing %s", want)
	}
}

func sampleRecord() core.BetRecord {
	return core.BetRecord{
		ID:          7,
		UserID:      "u1",
		Description: "Entrada",
		Amount:      decimal.RequireFromString("-12.50"),
		Status:      core.Red,
		Date:        time.Date(2024, time.March, 5, 12, 0, 0, 0, time.UTC),
	}
}

func TestHandleRecordCreated(t *testing.T) {
	exp := &fakeExporter{}
	m := metrics.New()
	w := NewExportWorker(exp, m)

	if err := w.HandleRecordEvent(context.Background(), amqp.NewRecordCreatedMessage(sampleRecord())); err != nil {
		t.Fatalf("HandleRecordEvent: %v", err)
	}
	if len(exp.appended) != 1 {
		t.Fatalf("appended = %d, want 1", len(exp.appended))
	}
	got := exp.appended[0]
	if got.ID != 7 || got.UserID != "u1" || got.Status != core.Red || !got.Amount.Equal(decimal.RequireFromString("-12.5")) {
		t.Fatalf("unexpected exported record: %+v", got)
	}
	assertExported(t, m, string(amqp.RecordCreated), "ok")
}

func TestHandleRecordDeleted(t *testing.T) {
	exp := &fakeExporter{}
	w := NewExportWorker(exp, nil)

	if err := w.HandleRecordEvent(context.Background(), amqp.NewRecordDeletedMessage(sampleRecord())); err != nil {
		t.Fatalf("HandleRecordEvent: %v", err)
	}
	if len(exp.removed) != 1 || exp.removed[0] != 7 || exp.years[0] != 2024 {
		t.Fatalf("removed = %v years = %v", exp.removed, exp.years)
	}
}

func TestHandleRecordDeletedUndated(t *testing.T) {
	exp := &fakeExporter{}
	w := NewExportWorker(exp, nil)

	r := sampleRecord()
	r.Date = time.Time{}
	if err := w.HandleRecordEvent(context.Background(), amqp.NewRecordDeletedMessage(r)); err != nil {
		t.Fatalf("HandleRecordEvent: %v", err)
	}
	if exp.years[0] != 0 {
		t.Fatalf("year = %d, want 0 for undated record", exp.years[0])
	}
}

func TestHandleMonthCleared(t *testing.T) {
	exp := &fakeExporter{}
	w := NewExportWorker(exp, nil)

	msg := amqp.NewMonthClearedMessage("u1", core.Window{Year: 2024, Month: time.March}, 2)
	if err := w.HandleRecordEvent(context.Background(), msg); err != nil {
		t.Fatalf("HandleRecordEvent: %v", err)
	}
	if len(exp.cleared) != 1 || exp.cleared[0].Year != 2024 || exp.cleared[0].Month != time.March {
		t.Fatalf("cleared = %+v", exp.cleared)
	}
	if len(exp.reads) != 1 || exp.reads[0] != 2024 {
		t.Fatalf("expected one read-back of 2024, got %v", exp.reads)
	}
}

func TestHandleMonthClearedChecksReadBack(t *testing.T) {
	april := sampleRecord()
	april.Date = time.Date(2024, time.April, 2, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		left []core.BetRecord
		want error
	}{
		{name: "nothing left"},
		{name: "other month only", left: []core.BetRecord{april}},
		{name: "row survived", left: []core.BetRecord{sampleRecord(), april}, want: ErrRowsRemain},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := metrics.New()
			w := NewExportWorker(&fakeExporter{left: tt.left}, m)
			msg := amqp.NewMonthClearedMessage("u1", core.Window{Year: 2024, Month: time.March}, 1)
			err := w.HandleRecordEvent(context.Background(), msg)
			if tt.want == nil {
				if err != nil {
					t.Fatalf("HandleRecordEvent: %v", err)
				}
				assertExported(t, m, string(amqp.MonthCleared), "ok")
				return
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
			assertExported(t, m, string(amqp.MonthCleared), "error")
		})
	}
}

func TestHandleRecordEventErrors(t *testing.T) {
	tests := []struct {
		name string
		msg  *amqp.RecordEventMessage
		err  error
		want error
	}{
		{
			name: "exporter failure",
			msg:  amqp.NewRecordCreatedMessage(sampleRecord()),
			err:  errors.New("quota exceeded"),
		},
		{
			name: "unknown type",
			msg:  &amqp.RecordEventMessage{Type: "record.renamed", UserID: "u1"},
			want: amqp.ErrInvalidMessage,
		},
		{
			name: "created without record",
			msg:  &amqp.RecordEventMessage{Type: amqp.RecordCreated, UserID: "u1"},
			want: amqp.ErrInvalidMessage,
		},
		{
			name: "bad month",
			msg:  &amqp.RecordEventMessage{Type: amqp.MonthCleared, UserID: "u1", Year: 2024, Month: 13},
			want: amqp.ErrInvalidMessage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := metrics.New()
			w := NewExportWorker(&fakeExporter{err: tt.err}, m)
			err := w.HandleRecordEvent(context.Background(), tt.msg)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
			assertExported(t, m, string(tt.msg.Type), "error")
		})
	}
}
