package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"

	"bankroll/internal/core"
	ports "bankroll/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Config selects the spreadsheet and the service account used to reach it.
type Config struct {
	SpreadsheetID      string
	SheetBase          string // per-year sheets are named "<year> <SheetBase>"
	ServiceAccountJSON string
	ServiceAccountFile string
}

// Client mirrors each user's ledger into one sheet per year.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetBase     string

	mu       sync.Mutex
	sheetIDs map[string]int64 // title -> numeric sheet id
}

// Ensure interface conformance
var (
	_ ports.LedgerMirror = (*Client)(nil)
)

func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	spreadsheetID := strings.TrimSpace(cfg.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	base := strings.TrimSpace(cfg.SheetBase)
	if base == "" {
		base = "Bets"
	}

	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetBase:     base,
		sheetIDs:      make(map[string]int64),
	}, nil
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
// Falls back to GOOGLE_APPLICATION_CREDENTIALS when neither inline JSON nor a
// file is configured.
func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(cfg.ServiceAccountJSON)
	serviceAccountFile := strings.TrimSpace(cfg.ServiceAccountFile)
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		b, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	slog.InfoContext(ctx, "Creating Google Sheets service with Service Account",
		"credentials_size", len(credentialsJSON),
		"scope", gsheet.SpreadsheetsScope)

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

func (c *Client) sheetFor(year int) string {
	return sheetTitle(c.sheetBase, year)
}

// ensureSheet returns the numeric id of the sheet, creating it with a header
// row when missing.
func (c *Client) ensureSheet(ctx context.Context, title string) (int64, error) {
	c.mu.Lock()
	id, ok := c.sheetIDs[title]
	c.mu.Unlock()
	if ok {
		return id, nil
	}

	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("get spreadsheet: %w", err)
	}
	c.mu.Lock()
	for _, sh := range ss.Sheets {
		if sh.Properties != nil {
			c.sheetIDs[sh.Properties.Title] = sh.Properties.SheetId
		}
	}
	id, ok = c.sheetIDs[title]
	c.mu.Unlock()
	if ok {
		return id, nil
	}

	resp, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: title}},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("add sheet %s: %w", title, err)
	}
	if len(resp.Replies) == 0 || resp.Replies[0].AddSheet == nil {
		return 0, fmt.Errorf("add sheet %s: empty reply", title)
	}
	id = resp.Replies[0].AddSheet.Properties.SheetId

	header := &gsheet.ValueRange{Values: [][]any{ledgerHeader}}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, fmt.Sprintf("%s!A1:F1", title), header).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return 0, fmt.Errorf("write header to %s: %w", title, err)
	}

	c.mu.Lock()
	c.sheetIDs[title] = id
	c.mu.Unlock()
	slog.InfoContext(ctx, "Created ledger sheet", "title", title, "sheet_id", id)
	return id, nil
}

func (c *Client) readRows(ctx context.Context, title string) ([][]any, error) {
	if _, err := c.ensureSheet(ctx, title); err != nil {
		return nil, err
	}
	rng := fmt.Sprintf("%s!A:F", title)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return resp.Values, nil
}

func (c *Client) AppendRecord(ctx context.Context, r core.BetRecord) (string, error) {
	if err := r.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	title := c.sheetFor(recordYear(r))
	values, err := c.readRows(ctx, title)
	if err != nil {
		return "", err
	}
	if existing := findRecordRows(values, r.UserID, r.ID); len(existing) > 0 {
		ref := fmt.Sprintf("%s!A%d:F%d", title, existing[0]+1, existing[0]+1)
		slog.InfoContext(ctx, "Record already exported, skipping", "id", r.ID, "ref", ref)
		return ref, nil
	}

	nextRow := len(values) + 1
	rng := fmt.Sprintf("%s!A%d:F%d", title, nextRow, nextRow)
	vr := &gsheet.ValueRange{Values: [][]any{recordRow(r)}}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("failed to update %s: %w", rng, err)
	}
	return rng, nil
}

func (c *Client) RemoveRecord(ctx context.Context, userID string, id int64, year int) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	title := c.sheetFor(year)
	values, err := c.readRows(ctx, title)
	if err != nil {
		return err
	}
	rows := findRecordRows(values, userID, id)
	if len(rows) == 0 {
		slog.InfoContext(ctx, "Record not in sheet, nothing to remove", "id", id, "sheet", title)
		return nil
	}
	return c.deleteRows(ctx, title, rows)
}

func (c *Client) ClearWindow(ctx context.Context, userID string, w core.Window) (int, error) {
	if c.svc == nil {
		return 0, errors.New("sheets service not initialized")
	}
	title := c.sheetFor(w.Year)
	values, err := c.readRows(ctx, title)
	if err != nil {
		return 0, err
	}
	rows := findWindowRows(values, userID, w)
	if len(rows) == 0 {
		return 0, nil
	}
	if err := c.deleteRows(ctx, title, rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}

// deleteRows removes the given zero-based rows in one batch, bottom-up so
// earlier deletions do not shift later indexes.
func (c *Client) deleteRows(ctx context.Context, title string, rows []int) error {
	sheetID, err := c.ensureSheet(ctx, title)
	if err != nil {
		return err
	}
	sorted := append([]int(nil), rows...)
	sort.Sort(sort.Reverse(sort.IntSlice(sorted)))

	reqs := make([]*gsheet.Request, 0, len(sorted))
	for _, r := range sorted {
		reqs = append(reqs, &gsheet.Request{
			DeleteDimension: &gsheet.DeleteDimensionRequest{
				Range: &gsheet.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "ROWS",
					StartIndex: int64(r),
					EndIndex:   int64(r + 1),
				},
			},
		})
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, &gsheet.BatchUpdateSpreadsheetRequest{Requests: reqs}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete rows from %s: %w", title, err)
	}
	slog.InfoContext(ctx, "Deleted ledger rows", "sheet", title, "count", len(sorted))
	return nil
}

// ReadLedger lists the user's exported records for a year.
func (c *Client) ReadLedger(ctx context.Context, userID string, year int) ([]core.BetRecord, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	values, err := c.readRows(ctx, c.sheetFor(year))
	if err != nil {
		return nil, err
	}
	return parseLedgerRows(values, userID), nil
}
