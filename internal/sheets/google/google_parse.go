package google

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"bankroll/internal/core"

	"github.com/shopspring/decimal"
)

// Column layout of a ledger sheet.
const (
	colID = iota
	colUser
	colDate
	colDescription
	colAmount
	colStatus
	numCols
)

var ledgerHeader = []any{"ID", "User", "Date", "Description", "Amount", "Status"}

// recordRow renders a record in sheet column order. The amount is written
// as a plain number so sheet formulas can sum it.
func recordRow(r core.BetRecord) []any {
	date := ""
	if r.HasDate() {
		date = r.Date.Format(time.DateOnly)
	}
	amount, _ := r.Amount.Float64()
	return []any{r.ID, r.UserID, date, r.Description, amount, string(r.Status)}
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}

// rowMatches reports whether the row belongs to userID and, when id > 0,
// carries that id.
func rowMatches(row []string, userID string, id int64) bool {
	if safeGet(row, colUser) != userID {
		return false
	}
	if id <= 0 {
		return true
	}
	got, err := strconv.ParseInt(safeGet(row, colID), 10, 64)
	return err == nil && got == id
}

// findRecordRows returns the zero-based indexes of rows holding the record.
func findRecordRows(values [][]any, userID string, id int64) []int {
	var out []int
	for i, raw := range values {
		if rowMatches(toStrings(raw), userID, id) {
			out = append(out, i)
		}
	}
	return out
}

// findWindowRows returns the zero-based indexes of the user's rows whose date
// falls in the window's month.
func findWindowRows(values [][]any, userID string, w core.Window) []int {
	prefix := fmt.Sprintf("%04d-%02d-", w.Year, int(w.Month))
	var out []int
	for i, raw := range values {
		row := toStrings(raw)
		if rowMatches(row, userID, 0) && strings.HasPrefix(safeGet(row, colDate), prefix) {
			out = append(out, i)
		}
	}
	return out
}

// parseLedgerRows converts sheet rows back into records, skipping the header
// and anything that does not parse.
func parseLedgerRows(values [][]any, userID string) []core.BetRecord {
	var out []core.BetRecord
	for _, raw := range values {
		row := toStrings(raw)
		if len(row) < colAmount+1 || !rowMatches(row, userID, 0) {
			continue
		}
		id, err := strconv.ParseInt(row[colID], 10, 64)
		if err != nil {
			continue
		}
		amount, err := decimal.NewFromString(strings.ReplaceAll(row[colAmount], ",", "."))
		if err != nil {
			continue
		}
		var date time.Time
		if d, err := time.Parse(time.DateOnly, row[colDate]); err == nil {
			date = d.Add(core.EntryHour * time.Hour)
		}
		out = append(out, core.BetRecord{
			ID:          id,
			UserID:      userID,
			Description: row[colDescription],
			Amount:      amount.Round(2),
			Status:      core.StatusFromAmount(amount),
			Date:        date,
		})
	}
	return out
}

// undatedPrefix names the sheet holding records without a date.
const undatedPrefix = "Undated"

// recordYear is the ledger year a record is filed under, 0 when undated.
func recordYear(r core.BetRecord) int {
	if !r.HasDate() {
		return 0
	}
	return r.Date.Year()
}

// sheetTitle resolves the sheet for a ledger year. Years <= 0 share one
// undated sheet so appends and removals of undated records agree.
func sheetTitle(base string, year int) string {
	if year <= 0 {
		return fmt.Sprintf("%s %s", undatedPrefix, strings.TrimSpace(base))
	}
	return yearPrefixedName(base, year)
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
