package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"bankroll/internal/amqp"
	"bankroll/internal/core"
	"bankroll/internal/metrics"
	"bankroll/internal/sheets"
)

// ErrRowsRemain means a cleared month still has rows in the sheet.
var ErrRowsRemain = errors.New("exported rows remain after clearing")

// ExportWorker mirrors ledger changes into the exported spreadsheet.
type ExportWorker struct {
	exporter sheets.LedgerMirror
	metrics  *metrics.Metrics
}

func NewExportWorker(exporter sheets.LedgerMirror, m *metrics.Metrics) *ExportWorker {
	return &ExportWorker{exporter: exporter, metrics: m}
}

// HandleRecordEvent processes a single record event from AMQP. A returned
// error makes the consumer requeue the message.
func (w *ExportWorker) HandleRecordEvent(ctx context.Context, msg *amqp.RecordEventMessage) error {
	slog.InfoContext(ctx, "Processing record event",
		"type", msg.Type,
		"user_id", msg.UserID,
		"timestamp", msg.Timestamp)

	var err error
	switch msg.Type {
	case amqp.RecordCreated:
		err = w.exportRecord(ctx, msg)
	case amqp.RecordDeleted:
		err = w.removeRecord(ctx, msg)
	case amqp.MonthCleared:
		err = w.clearMonth(ctx, msg)
	default:
		err = fmt.Errorf("%w: unknown type %q", amqp.ErrInvalidMessage, msg.Type)
	}
	w.metrics.Export(string(msg.Type), err)
	return err
}

func (w *ExportWorker) exportRecord(ctx context.Context, msg *amqp.RecordEventMessage) error {
	if msg.Record == nil {
		return amqp.ErrInvalidMessage
	}
	r := recordFromSnapshot(msg.UserID, msg.Record)
	ref, err := w.exporter.AppendRecord(ctx, r)
	if err != nil {
		return fmt.Errorf("append record %d: %w", r.ID, err)
	}
	slog.InfoContext(ctx, "Exported record",
		"id", r.ID,
		"sheets_ref", ref,
		"amount", r.Amount.StringFixed(2))
	return nil
}

func (w *ExportWorker) removeRecord(ctx context.Context, msg *amqp.RecordEventMessage) error {
	if msg.Record == nil {
		return amqp.ErrInvalidMessage
	}
	year := 0
	if r := recordFromSnapshot(msg.UserID, msg.Record); r.HasDate() {
		year = r.Date.Year()
	}
	if err := w.exporter.RemoveRecord(ctx, msg.UserID, msg.Record.ID, year); err != nil {
		return fmt.Errorf("remove record %d: %w", msg.Record.ID, err)
	}
	slog.InfoContext(ctx, "Removed exported record", "id", msg.Record.ID)
	return nil
}

func (w *ExportWorker) clearMonth(ctx context.Context, msg *amqp.RecordEventMessage) error {
	win := core.Window{Year: msg.Year, Month: time.Month(msg.Month)}
	if err := win.Validate(); err != nil {
		return fmt.Errorf("%w: %v", amqp.ErrInvalidMessage, err)
	}
	n, err := w.exporter.ClearWindow(ctx, msg.UserID, win)
	if err != nil {
		return fmt.Errorf("clear %d-%02d: %w", msg.Year, msg.Month, err)
	}
	if int64(n) != msg.Deleted {
		slog.WarnContext(ctx, "Exported rows differ from deleted records",
			"year", msg.Year,
			"month", msg.Month,
			"rows", n,
			"deleted", msg.Deleted)
	}
	return w.verifyCleared(ctx, msg.UserID, win)
}

// verifyCleared reads the sheet back; rows still dated in the window make the
// event fail so it is redelivered and cleared again.
func (w *ExportWorker) verifyCleared(ctx context.Context, userID string, win core.Window) error {
	exported, err := w.exporter.ReadLedger(ctx, userID, win.Year)
	if err != nil {
		return fmt.Errorf("read back %d-%02d: %w", win.Year, int(win.Month), err)
	}
	if left := core.InWindow(exported, win); len(left) > 0 {
		slog.WarnContext(ctx, "Cleared month still has exported rows",
			"year", win.Year,
			"month", int(win.Month),
			"rows", len(left))
		return fmt.Errorf("%w: %d in %d-%02d", ErrRowsRemain, len(left), win.Year, int(win.Month))
	}
	return nil
}

func recordFromSnapshot(userID string, s *amqp.RecordSnapshot) core.BetRecord {
	return core.BetRecord{
		ID:          s.ID,
		UserID:      userID,
		Description: s.Description,
		Amount:      s.Amount,
		Status:      core.StatusFromAmount(s.Amount),
		Date:        s.Date,
	}
}
