package sheets

import (
	"context"

	"bankroll/internal/core"
)

// Ports for the spreadsheet mirror of the ledger.
type (
	RecordAppender interface {
		// AppendRecord adds the record unless a row with its id already
		// exists, so redelivered events are harmless.
		AppendRecord(ctx context.Context, r core.BetRecord) (rowRef string, err error)
	}

	RecordRemover interface {
		RemoveRecord(ctx context.Context, userID string, id int64, year int) error
	}

	WindowClearer interface {
		// ClearWindow removes the user's rows dated inside the window and
		// returns how many were removed.
		ClearWindow(ctx context.Context, userID string, w core.Window) (int, error)
	}

	LedgerReader interface {
		ReadLedger(ctx context.Context, userID string, year int) ([]core.BetRecord, error)
	}

	LedgerExporter interface {
		RecordAppender
		RecordRemover
		WindowClearer
	}

	// LedgerMirror can also read back what it exported.
	LedgerMirror interface {
		LedgerExporter
		LedgerReader
	}
)
